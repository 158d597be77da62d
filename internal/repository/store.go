package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"library-catalog/internal/domain"
	"library-catalog/internal/errors"
)

// Store provides a unified interface for all repository operations with transaction support
type Store struct {
	db          DB
	executor    SQLExecutor
	logger      *slog.Logger
	maxAttempts int
	baseDelay   time.Duration
	inTx        bool
}

// Option configures a Store.
type Option func(*Store)

// WithMaxAttempts bounds how often WithTransaction reruns a unit of work that
// lost a lock or serialization race.
func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBaseDelay sets the first backoff delay between attempts.
func WithBaseDelay(d time.Duration) Option {
	return func(s *Store) {
		if d >= 0 {
			s.baseDelay = d
		}
	}
}

// NewStore creates a new Store instance
func NewStore(db *sql.DB, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		db:          db,
		executor:    db,
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ domain.UnitOfWork = (*Store)(nil)

func (s *Store) Users() domain.UserRepository {
	return NewUserRepository(s.executor, s.logger)
}

func (s *Store) Books() domain.BookRepository {
	return NewBookRepository(s.executor, s.logger)
}

func (s *Store) Transactions() domain.TransactionRepository {
	return NewTransactionRepository(s.executor, s.logger)
}

func (s *Store) Overdues() domain.OverdueRepository {
	return NewOverdueRepository(s.executor, s.logger)
}

func (s *Store) Notifications() domain.NotificationRepository {
	return NewNotificationRepository(s.executor, s.logger)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTransaction executes fn within a database transaction. Row locks taken
// through the repositories of the passed UnitOfWork are held until fn returns.
// Runs that lose a lock or serialization race are retried with backoff; when
// the attempts are exhausted the caller gets ErrTransientConflict.
func (s *Store) WithTransaction(ctx context.Context, fn func(domain.UnitOfWork) error) error {
	// Nested calls join the outer transaction
	if s.inTx {
		return fn(s)
	}

	err := retryWithExponentialBackoff(ctx, s.maxAttempts, s.baseDelay,
		func(ctx context.Context) error {
			return s.runInTransaction(ctx, fn)
		},
		func(attempt int, err error) {
			s.logger.Warn("Retrying transaction after concurrency conflict", "attempt", attempt, "error", err)
		},
	)

	if err != nil && isRetryable(err) {
		s.logger.Error("Transaction retries exhausted", "attempts", s.maxAttempts, "error", err)
		return errors.ErrTransientConflict.WithDetails(err.Error())
	}
	return err
}

func (s *Store) runInTransaction(ctx context.Context, fn func(domain.UnitOfWork) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return internalError("failed to begin transaction", err)
	}

	txStore := &Store{
		db:          s.db,
		executor:    tx,
		logger:      s.logger,
		maxAttempts: s.maxAttempts,
		baseDelay:   s.baseDelay,
		inTx:        true,
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return internalError("failed to commit transaction", err)
	}
	return nil
}
