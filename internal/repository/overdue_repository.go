package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"library-catalog/internal/domain"
	"library-catalog/internal/errors"
)

type overdueRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewOverdueRepository(db SQLExecutor, logger *slog.Logger) domain.OverdueRepository {
	return &overdueRepository{
		db:     db,
		logger: logger,
	}
}

func (r *overdueRepository) CreateOverdue(ctx context.Context, overdue *domain.Overdue) error {
	query := `
		INSERT INTO overdues
		(id, transaction_id, overdue_date, penalty_amount, is_paid, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, query,
		overdue.ID,
		overdue.TransactionID,
		overdue.OverdueDate,
		overdue.PenaltyAmount.StringFixed(2),
		overdue.IsPaid,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create overdue record", "transaction_id", overdue.TransactionID, "error", err)
		return internalError("failed to create overdue record", err)
	}

	overdue.CreatedAt = now
	overdue.UpdatedAt = now
	r.logger.Info("Overdue record created", "overdue_id", overdue.ID, "transaction_id", overdue.TransactionID)
	return nil
}

func (r *overdueRepository) GetOverdue(ctx context.Context, id uuid.UUID) (*domain.Overdue, error) {
	query := `
		SELECT id, transaction_id, overdue_date, penalty_amount, is_paid, created_at, updated_at
		FROM overdues WHERE id = $1
	`

	return r.getOverdue(ctx, query, id)
}

func (r *overdueRepository) GetOverdueForUpdate(ctx context.Context, id uuid.UUID) (*domain.Overdue, error) {
	query := `
		SELECT id, transaction_id, overdue_date, penalty_amount, is_paid, created_at, updated_at
		FROM overdues WHERE id = $1 FOR UPDATE
	`

	return r.getOverdue(ctx, query, id)
}

func (r *overdueRepository) getOverdue(ctx context.Context, query string, id uuid.UUID) (*domain.Overdue, error) {
	overdue, err := r.scanOverdue(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if overdue == nil {
		return nil, errors.ErrOverdueNotFound
	}
	return overdue, nil
}

func (r *overdueRepository) GetOverdueByTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.Overdue, error) {
	query := `
		SELECT id, transaction_id, overdue_date, penalty_amount, is_paid, created_at, updated_at
		FROM overdues WHERE transaction_id = $1
	`

	return r.scanOverdue(ctx, query, transactionID)
}

func (r *overdueRepository) GetOverdueByTransactionForUpdate(ctx context.Context, transactionID uuid.UUID) (*domain.Overdue, error) {
	query := `
		SELECT id, transaction_id, overdue_date, penalty_amount, is_paid, created_at, updated_at
		FROM overdues WHERE transaction_id = $1 FOR UPDATE
	`

	return r.scanOverdue(ctx, query, transactionID)
}

func (r *overdueRepository) scanOverdue(ctx context.Context, query string, arg uuid.UUID) (*domain.Overdue, error) {
	var overdue domain.Overdue
	var penaltyStr string

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&overdue.ID,
		&overdue.TransactionID,
		&overdue.OverdueDate,
		&penaltyStr,
		&overdue.IsPaid,
		&overdue.CreatedAt,
		&overdue.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get overdue record", "arg", arg, "error", err)
		return nil, internalError("failed to get overdue record", err)
	}

	penalty, err := decimal.NewFromString(penaltyStr)
	if err != nil {
		r.logger.Error("Failed to parse penalty", "overdue_id", overdue.ID, "penalty_str", penaltyStr, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to parse penalty").WithDetails(err.Error())
	}
	overdue.PenaltyAmount = penalty

	return &overdue, nil
}

func (r *overdueRepository) UpdateOverdue(ctx context.Context, overdue *domain.Overdue) error {
	query := `UPDATE overdues SET penalty_amount = $1, is_paid = $2, updated_at = $3 WHERE id = $4`

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query, overdue.PenaltyAmount.StringFixed(2), overdue.IsPaid, now, overdue.ID)
	if err != nil {
		r.logger.Error("Failed to update overdue record", "overdue_id", overdue.ID, "error", err)
		return internalError("failed to update overdue record", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return internalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return errors.ErrOverdueNotFound
	}

	overdue.UpdatedAt = now
	r.logger.Info("Overdue record updated", "overdue_id", overdue.ID, "penalty_amount", overdue.PenaltyAmount, "is_paid", overdue.IsPaid)
	return nil
}
