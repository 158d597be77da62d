package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"library-catalog/internal/domain"
	"library-catalog/internal/errors"
)

const (
	tableTransactions        = "transactions"
	constraintOneOpenPerPair = "idx_transactions_one_open_per_user_book"
)

var transactionColumns = []interface{}{
	"id", "user_id", "book_id", "status", "checkout_date", "due_date", "return_date", "created_at", "updated_at",
}

type transactionRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewTransactionRepository(db SQLExecutor, logger *slog.Logger) domain.TransactionRepository {
	return &transactionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *transactionRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions
		(id, user_id, book_id, status, checkout_date, due_date, return_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, query,
		tx.ID,
		tx.UserID,
		tx.BookID,
		string(tx.Status),
		tx.CheckoutDate,
		tx.DueDate,
		nullTime(tx.ReturnDate),
		now,
		now,
	)

	if err != nil {
		if isUniqueViolation(err, constraintOneOpenPerPair) {
			r.logger.Warn("Open checkout already exists", "user_id", tx.UserID, "book_id", tx.BookID)
			return errors.ErrAlreadyCheckedOut
		}
		if isForeignKeyViolation(err) {
			return errors.NewAppError(errors.InvalidInput, "unknown user or book").WithDetails(err.Error())
		}
		r.logger.Error("Failed to create transaction",
			"user_id", tx.UserID,
			"book_id", tx.BookID,
			"error", err)
		return internalError("failed to create transaction", err)
	}

	tx.CreatedAt = now
	tx.UpdatedAt = now
	r.logger.Info("Transaction created successfully", "transaction_id", tx.ID)
	return nil
}

func (r *transactionRepository) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `
		SELECT id, user_id, book_id, status, checkout_date, due_date, return_date, created_at, updated_at
		FROM transactions WHERE id = $1
	`

	return r.scanTransaction(ctx, query, id)
}

func (r *transactionRepository) GetTransactionForUpdate(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `
		SELECT id, user_id, book_id, status, checkout_date, due_date, return_date, created_at, updated_at
		FROM transactions WHERE id = $1 FOR UPDATE
	`

	return r.scanTransaction(ctx, query, id)
}

func (r *transactionRepository) scanTransaction(ctx context.Context, query string, id uuid.UUID) (*domain.Transaction, error) {
	var transaction domain.Transaction

	err := scanTransactionRow(r.db.QueryRowContext(ctx, query, id), &transaction)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrTransactionNotFound
		}
		r.logger.Error("Failed to get transaction", "transaction_id", id, "error", err)
		return nil, internalError("failed to get transaction", err)
	}

	return &transaction, nil
}

func (r *transactionRepository) HasOpenTransaction(ctx context.Context, userID, bookID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE user_id = $1 AND book_id = $2 AND status <> $3
		)
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID, bookID, string(domain.StatusReturned)).Scan(&exists); err != nil {
		r.logger.Error("Failed to check open transaction", "user_id", userID, "book_id", bookID, "error", err)
		return false, internalError("failed to check open transaction", err)
	}

	return exists, nil
}

func (r *transactionRepository) ListTransactionsByUser(ctx context.Context, userID int64, openOnly bool) ([]domain.Transaction, error) {
	ds := dialect.From(tableTransactions).
		Select(transactionColumns...).
		Where(goqu.C("user_id").Eq(userID)).
		Order(goqu.I("checkout_date").Desc())
	if openOnly {
		ds = ds.Where(goqu.C("status").Neq(string(domain.StatusReturned)))
	}

	return r.list(ctx, ds)
}

func (r *transactionRepository) ListTransactionsByStatus(ctx context.Context, status domain.TransactionStatus) ([]domain.Transaction, error) {
	ds := dialect.From(tableTransactions).
		Select(transactionColumns...).
		Where(goqu.C("status").Eq(string(status))).
		Order(goqu.I("due_date").Asc())

	return r.list(ctx, ds)
}

func (r *transactionRepository) ListOverdueCandidates(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	query, args, err := dialect.From(tableTransactions).
		Select("id").
		Where(
			goqu.C("status").Eq(string(domain.StatusOpen)),
			goqu.C("due_date").Lt(now),
		).
		Order(goqu.I("due_date").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to build overdue query").WithDetails(err.Error())
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list overdue candidates", "error", err)
		return nil, internalError("failed to list overdue candidates", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, internalError("failed to scan transaction id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, internalError("failed to list overdue candidates", err)
	}

	return ids, nil
}

func (r *transactionRepository) UpdateTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `UPDATE transactions SET status = $1, return_date = $2, updated_at = $3 WHERE id = $4`

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query, string(tx.Status), nullTime(tx.ReturnDate), now, tx.ID)
	if err != nil {
		r.logger.Error("Failed to update transaction",
			"transaction_id", tx.ID, "status", tx.Status, "error", err)
		return internalError("failed to update transaction", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return internalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return errors.ErrTransactionNotFound
	}

	tx.UpdatedAt = now
	r.logger.Info("Transaction status updated", "transaction_id", tx.ID, "status", tx.Status)
	return nil
}

func (r *transactionRepository) list(ctx context.Context, ds *goqu.SelectDataset) ([]domain.Transaction, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to build transaction query").WithDetails(err.Error())
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list transactions", "error", err)
		return nil, internalError("failed to list transactions", err)
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0)
	for rows.Next() {
		var transaction domain.Transaction
		if err := scanTransactionRow(rows, &transaction); err != nil {
			return nil, internalError("failed to scan transaction", err)
		}
		transactions = append(transactions, transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, internalError("failed to list transactions", err)
	}

	return transactions, nil
}

func scanTransactionRow(row rowScanner, tx *domain.Transaction) error {
	var status string
	var returnDate sql.NullTime

	if err := row.Scan(
		&tx.ID,
		&tx.UserID,
		&tx.BookID,
		&status,
		&tx.CheckoutDate,
		&tx.DueDate,
		&returnDate,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	); err != nil {
		return err
	}

	tx.Status = domain.TransactionStatus(status)
	if returnDate.Valid {
		t := returnDate.Time
		tx.ReturnDate = &t
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
