// Package memory is a process-local implementation of domain.UnitOfWork. A
// single mutex serializes units of work, which gives the same guarantees as
// row locking in Postgres at the cost of all concurrency.
package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"library-catalog/internal/domain"
)

type watchKey struct {
	userID int64
	bookID int64
}

type state struct {
	users         map[int64]domain.User
	books         map[int64]domain.Book
	transactions  map[uuid.UUID]domain.Transaction
	overdues      map[uuid.UUID]domain.Overdue
	notifications map[uuid.UUID]domain.Notification
	watches       map[watchKey]time.Time
	nextUserID    int64
	nextBookID    int64
}

func newState() *state {
	return &state{
		users:         make(map[int64]domain.User),
		books:         make(map[int64]domain.Book),
		transactions:  make(map[uuid.UUID]domain.Transaction),
		overdues:      make(map[uuid.UUID]domain.Overdue),
		notifications: make(map[uuid.UUID]domain.Notification),
		watches:       make(map[watchKey]time.Time),
	}
}

func (s *state) clone() *state {
	c := &state{
		users:         make(map[int64]domain.User, len(s.users)),
		books:         make(map[int64]domain.Book, len(s.books)),
		transactions:  make(map[uuid.UUID]domain.Transaction, len(s.transactions)),
		overdues:      make(map[uuid.UUID]domain.Overdue, len(s.overdues)),
		notifications: make(map[uuid.UUID]domain.Notification, len(s.notifications)),
		watches:       make(map[watchKey]time.Time, len(s.watches)),
		nextUserID:    s.nextUserID,
		nextBookID:    s.nextBookID,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.books {
		c.books[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.overdues {
		c.overdues[k] = v
	}
	for k, v := range s.notifications {
		c.notifications[k] = v
	}
	for k, v := range s.watches {
		c.watches[k] = v
	}
	return c
}

// Store keeps all records in maps guarded by one mutex.
type Store struct {
	mu     *sync.Mutex
	st     *state
	logger *slog.Logger
	inTx   bool
}

func NewStore(logger *slog.Logger) *Store {
	return &Store{
		mu:     &sync.Mutex{},
		st:     newState(),
		logger: logger,
	}
}

var _ domain.UnitOfWork = (*Store)(nil)

// view runs fn against the current state, taking the lock unless the caller
// is already inside a unit of work.
func (s *Store) view(fn func(st *state) error) error {
	if s.inTx {
		return fn(s.st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

func (s *Store) Users() domain.UserRepository                 { return &userRepository{s} }
func (s *Store) Books() domain.BookRepository                 { return &bookRepository{s} }
func (s *Store) Transactions() domain.TransactionRepository   { return &transactionRepository{s} }
func (s *Store) Overdues() domain.OverdueRepository           { return &overdueRepository{s} }
func (s *Store) Notifications() domain.NotificationRepository { return &notificationRepository{s} }

func (s *Store) Ping(context.Context) error { return nil }

// WithTransaction runs fn on a private copy of the state and publishes the
// copy only when fn succeeds.
func (s *Store) WithTransaction(ctx context.Context, fn func(domain.UnitOfWork) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	txStore := &Store{
		mu:     s.mu,
		st:     s.st.clone(),
		logger: s.logger,
		inTx:   true,
	}

	if err := fn(txStore); err != nil {
		return err
	}

	s.st = txStore.st
	return nil
}

func sortTransactions(txs []domain.Transaction, less func(a, b domain.Transaction) bool) {
	sort.Slice(txs, func(i, j int) bool { return less(txs[i], txs[j]) })
}
