package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/doug-martin/goqu/v9"

	"library-catalog/internal/domain"
	"library-catalog/internal/errors"
)

const (
	tableBooks          = "books"
	constraintBooksISBN = "books_isbn_key"
)

var bookColumns = []interface{}{
	"id", "title", "author", "isbn", "published_date",
	"total_copies", "available_copies", "created_at", "updated_at",
}

type bookRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewBookRepository(db SQLExecutor, logger *slog.Logger) domain.BookRepository {
	return &bookRepository{
		db:     db,
		logger: logger,
	}
}

func (r *bookRepository) CreateBook(ctx context.Context, book *domain.Book) error {
	query := `
		INSERT INTO books
		(title, author, isbn, published_date, total_copies, available_copies, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, query,
		book.Title,
		book.Author,
		book.ISBN,
		book.PublishedDate,
		book.TotalCopies,
		book.AvailableCopies,
		now,
		now,
	).Scan(&book.ID)

	if err != nil {
		if isUniqueViolation(err, constraintBooksISBN) {
			r.logger.Warn("Duplicate isbn", "isbn", book.ISBN)
			return errors.ErrDuplicateBook
		}
		if isCheckViolation(err) {
			return errors.NewAppError(errors.InvalidInput, "copy counts violate inventory constraints").WithDetails(err.Error())
		}
		r.logger.Error("Failed to create book", "isbn", book.ISBN, "error", err)
		return internalError("failed to create book", err)
	}

	book.CreatedAt = now
	book.UpdatedAt = now
	r.logger.Info("Book created successfully", "book_id", book.ID, "isbn", book.ISBN)
	return nil
}

func (r *bookRepository) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	query := `
		SELECT id, title, author, isbn, published_date, total_copies, available_copies, created_at, updated_at
		FROM books WHERE id = $1
	`

	return r.scanBook(ctx, query, id)
}

func (r *bookRepository) GetBookForUpdate(ctx context.Context, id int64) (*domain.Book, error) {
	query := `
		SELECT id, title, author, isbn, published_date, total_copies, available_copies, created_at, updated_at
		FROM books WHERE id = $1 FOR UPDATE
	`

	return r.scanBook(ctx, query, id)
}

func (r *bookRepository) scanBook(ctx context.Context, query string, id int64) (*domain.Book, error) {
	var book domain.Book

	err := scanBookRow(r.db.QueryRowContext(ctx, query, id), &book)
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Warn("Book not found", "book_id", id)
			return nil, errors.ErrBookNotFound
		}
		r.logger.Error("Failed to get book", "book_id", id, "error", err)
		return nil, internalError("failed to get book", err)
	}

	return &book, nil
}

func (r *bookRepository) ListBooks(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	ds := dialect.From(tableBooks).Select(bookColumns...).Order(goqu.I("title").Asc(), goqu.I("id").Asc())
	if filter.AvailableOnly {
		ds = ds.Where(goqu.C("available_copies").Gt(0))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to build book query").WithDetails(err.Error())
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list books", "error", err)
		return nil, internalError("failed to list books", err)
	}
	defer rows.Close()

	books := make([]domain.Book, 0)
	for rows.Next() {
		var book domain.Book
		if err := scanBookRow(rows, &book); err != nil {
			return nil, internalError("failed to scan book", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, internalError("failed to list books", err)
	}

	return books, nil
}

func (r *bookRepository) UpdateCopies(ctx context.Context, id int64, available, total int) error {
	query := `
		UPDATE books
		SET available_copies = $1, total_copies = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := r.db.ExecContext(ctx, query, available, total, time.Now().UTC(), id)
	if err != nil {
		if isCheckViolation(err) {
			r.logger.Error("Inventory constraint violated", "book_id", id, "available", available, "total", total)
			return errors.ErrInventoryOverflow.WithDetails(err.Error())
		}
		r.logger.Error("Failed to update book copies", "book_id", id, "error", err)
		return internalError("failed to update book copies", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return internalError("failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		r.logger.Warn("No book found to update", "book_id", id)
		return errors.ErrBookNotFound
	}

	r.logger.Debug("Book copies updated", "book_id", id, "available_copies", available, "total_copies", total)
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBookRow(row rowScanner, book *domain.Book) error {
	return row.Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.ISBN,
		&book.PublishedDate,
		&book.TotalCopies,
		&book.AvailableCopies,
		&book.CreatedAt,
		&book.UpdatedAt,
	)
}
