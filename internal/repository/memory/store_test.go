package memory

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-catalog/internal/domain"
	"library-catalog/internal/errors"
)

func newTestStore() *Store {
	return NewStore(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func seed(t *testing.T, s *Store) (*domain.User, *domain.Book) {
	t.Helper()
	ctx := context.Background()

	user := &domain.User{Username: "reader", Email: "reader@example.com", Role: domain.RoleMember, IsActive: true}
	require.NoError(t, s.Users().CreateUser(ctx, user))

	book := &domain.Book{Title: "Dune", Author: "Frank Herbert", ISBN: "9780441172719", TotalCopies: 1, AvailableCopies: 1}
	require.NoError(t, s.Books().CreateBook(ctx, book))

	return user, book
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	_, book := seed(t, s)

	boom := stderrors.New("boom")
	err := s.WithTransaction(ctx, func(uow domain.UnitOfWork) error {
		require.NoError(t, uow.Books().UpdateCopies(ctx, book.ID, 0, 1))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Books().GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)
}

func TestWithTransaction_CommitsOnSuccess(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	_, book := seed(t, s)

	err := s.WithTransaction(ctx, func(uow domain.UnitOfWork) error {
		return uow.WithTransaction(ctx, func(inner domain.UnitOfWork) error {
			return inner.Books().UpdateCopies(ctx, book.ID, 0, 1)
		})
	})
	require.NoError(t, err)

	got, err := s.Books().GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableCopies)
}

func TestTransactions_OneOpenPerUserAndBook(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	user, book := seed(t, s)

	first := domain.NewTransaction(user.ID, book.ID, time.Now(), 0)
	require.NoError(t, s.Transactions().CreateTransaction(ctx, first))

	second := domain.NewTransaction(user.ID, book.ID, time.Now(), 0)
	assert.True(t, errors.Is(s.Transactions().CreateTransaction(ctx, second), errors.ErrAlreadyCheckedOut))

	require.True(t, first.MarkReturned(time.Now()))
	require.NoError(t, s.Transactions().UpdateTransaction(ctx, first))
	assert.NoError(t, s.Transactions().CreateTransaction(ctx, second))
}

func TestBooks_UpdateCopiesRejectsOverflow(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	_, book := seed(t, s)

	err := s.Books().UpdateCopies(ctx, book.ID, 2, 1)
	assert.True(t, errors.Is(err, errors.ErrInventoryOverflow))
}

func TestNotifications_TakeWatchersEmptiesList(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	user, book := seed(t, s)

	require.NoError(t, s.Notifications().AddWatch(ctx, user.ID, book.ID))
	require.NoError(t, s.Notifications().AddWatch(ctx, user.ID, book.ID))

	watchers, err := s.Notifications().TakeWatchers(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{user.ID}, watchers)

	watchers, err = s.Notifications().TakeWatchers(ctx, book.ID)
	require.NoError(t, err)
	assert.Empty(t, watchers)
}
