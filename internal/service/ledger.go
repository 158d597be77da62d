package service

import (
	"context"
	"log/slog"

	"library-catalog/internal/domain"
	"library-catalog/internal/errors"
)

// Ledger is the only writer of a book's copy counters. Every method expects a
// book row already locked by the enclosing unit of work and updates book in
// place after persisting.
type Ledger struct {
	logger *slog.Logger
}

func NewLedger(logger *slog.Logger) *Ledger {
	return &Ledger{logger: logger}
}

// ReserveCopy takes one copy off the shelf.
func (l *Ledger) ReserveCopy(ctx context.Context, books domain.BookRepository, book *domain.Book) error {
	if book.AvailableCopies <= 0 {
		l.logger.Info("No copies available", "book_id", book.ID)
		return errors.ErrNoCopiesAvailable
	}

	available := book.AvailableCopies - 1
	if err := books.UpdateCopies(ctx, book.ID, available, book.TotalCopies); err != nil {
		return err
	}

	book.AvailableCopies = available
	l.logger.Debug("Copy reserved", "book_id", book.ID, "available_copies", available)
	return nil
}

// ReleaseCopy puts one copy back. Releasing more copies than the book owns is
// an internal error.
func (l *Ledger) ReleaseCopy(ctx context.Context, books domain.BookRepository, book *domain.Book) error {
	if book.AvailableCopies >= book.TotalCopies {
		l.logger.Error("Copy released past total copies",
			"book_id", book.ID,
			"available_copies", book.AvailableCopies,
			"total_copies", book.TotalCopies)
		return errors.ErrInventoryOverflow.WithDetails("book has no copies checked out")
	}

	available := book.AvailableCopies + 1
	if err := books.UpdateCopies(ctx, book.ID, available, book.TotalCopies); err != nil {
		return err
	}

	book.AvailableCopies = available
	l.logger.Debug("Copy released", "book_id", book.ID, "available_copies", available)
	return nil
}

// AddCopies stocks n new copies.
func (l *Ledger) AddCopies(ctx context.Context, books domain.BookRepository, book *domain.Book, n int) error {
	if n <= 0 {
		return errors.ErrInvalidInput.WithDetails("copies must be positive")
	}

	available := book.AvailableCopies + n
	total := book.TotalCopies + n
	if err := books.UpdateCopies(ctx, book.ID, available, total); err != nil {
		return err
	}

	book.AvailableCopies = available
	book.TotalCopies = total
	l.logger.Info("Copies added", "book_id", book.ID, "added", n, "total_copies", total)
	return nil
}
