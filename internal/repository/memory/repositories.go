package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"library-catalog/internal/domain"
	"library-catalog/internal/errors"
)

type userRepository struct{ s *Store }

func (r *userRepository) CreateUser(_ context.Context, user *domain.User) error {
	return r.s.view(func(st *state) error {
		for _, u := range st.users {
			if u.Username == user.Username {
				return errors.ErrDuplicateUser
			}
		}
		now := time.Now().UTC()
		st.nextUserID++
		user.ID = st.nextUserID
		user.CreatedAt = now
		user.UpdatedAt = now
		if user.DateOfMembership.IsZero() {
			user.DateOfMembership = now
		}
		st.users[user.ID] = *user
		r.s.logger.Info("User created successfully", "user_id", user.ID, "username", user.Username)
		return nil
	})
}

func (r *userRepository) GetUser(_ context.Context, id int64) (*domain.User, error) {
	var out *domain.User
	err := r.s.view(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return errors.ErrUserNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r *userRepository) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	var out *domain.User
	err := r.s.view(func(st *state) error {
		for _, u := range st.users {
			if u.Username == username {
				u := u
				out = &u
				return nil
			}
		}
		return errors.ErrUserNotFound
	})
	return out, err
}

type bookRepository struct{ s *Store }

func (r *bookRepository) CreateBook(_ context.Context, book *domain.Book) error {
	return r.s.view(func(st *state) error {
		for _, b := range st.books {
			if b.ISBN == book.ISBN {
				return errors.ErrDuplicateBook
			}
		}
		if book.AvailableCopies < 0 || book.AvailableCopies > book.TotalCopies {
			return errors.NewAppError(errors.InvalidInput, "copy counts violate inventory constraints")
		}
		now := time.Now().UTC()
		st.nextBookID++
		book.ID = st.nextBookID
		book.CreatedAt = now
		book.UpdatedAt = now
		st.books[book.ID] = *book
		r.s.logger.Info("Book created successfully", "book_id", book.ID, "isbn", book.ISBN)
		return nil
	})
}

func (r *bookRepository) GetBook(_ context.Context, id int64) (*domain.Book, error) {
	var out *domain.Book
	err := r.s.view(func(st *state) error {
		b, ok := st.books[id]
		if !ok {
			return errors.ErrBookNotFound
		}
		out = &b
		return nil
	})
	return out, err
}

// GetBookForUpdate needs no extra locking: a unit of work already holds the
// store mutex.
func (r *bookRepository) GetBookForUpdate(ctx context.Context, id int64) (*domain.Book, error) {
	return r.GetBook(ctx, id)
}

func (r *bookRepository) ListBooks(_ context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	books := make([]domain.Book, 0)
	err := r.s.view(func(st *state) error {
		for _, b := range st.books {
			if filter.AvailableOnly && b.AvailableCopies <= 0 {
				continue
			}
			books = append(books, b)
		}
		return nil
	})
	sort.Slice(books, func(i, j int) bool {
		if books[i].Title == books[j].Title {
			return books[i].ID < books[j].ID
		}
		return books[i].Title < books[j].Title
	})
	return books, err
}

func (r *bookRepository) UpdateCopies(_ context.Context, id int64, available, total int) error {
	return r.s.view(func(st *state) error {
		b, ok := st.books[id]
		if !ok {
			return errors.ErrBookNotFound
		}
		if available < 0 || available > total {
			return errors.ErrInventoryOverflow.WithDetails("available copies out of range")
		}
		b.AvailableCopies = available
		b.TotalCopies = total
		b.UpdatedAt = time.Now().UTC()
		st.books[id] = b
		return nil
	})
}

type transactionRepository struct{ s *Store }

func (r *transactionRepository) CreateTransaction(_ context.Context, tx *domain.Transaction) error {
	return r.s.view(func(st *state) error {
		if _, ok := st.users[tx.UserID]; !ok {
			return errors.NewAppError(errors.InvalidInput, "unknown user or book")
		}
		if _, ok := st.books[tx.BookID]; !ok {
			return errors.NewAppError(errors.InvalidInput, "unknown user or book")
		}
		if tx.IsOpen() {
			for _, t := range st.transactions {
				if t.UserID == tx.UserID && t.BookID == tx.BookID && t.IsOpen() {
					return errors.ErrAlreadyCheckedOut
				}
			}
		}
		now := time.Now().UTC()
		tx.CreatedAt = now
		tx.UpdatedAt = now
		st.transactions[tx.ID] = cloneTransaction(*tx)
		return nil
	})
}

func (r *transactionRepository) GetTransaction(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := r.s.view(func(st *state) error {
		t, ok := st.transactions[id]
		if !ok {
			return errors.ErrTransactionNotFound
		}
		t = cloneTransaction(t)
		out = &t
		return nil
	})
	return out, err
}

func (r *transactionRepository) GetTransactionForUpdate(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return r.GetTransaction(ctx, id)
}

func (r *transactionRepository) HasOpenTransaction(_ context.Context, userID, bookID int64) (bool, error) {
	var found bool
	err := r.s.view(func(st *state) error {
		for _, t := range st.transactions {
			if t.UserID == userID && t.BookID == bookID && t.IsOpen() {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r *transactionRepository) ListTransactionsByUser(_ context.Context, userID int64, openOnly bool) ([]domain.Transaction, error) {
	txs := r.filter(func(t domain.Transaction) bool {
		return t.UserID == userID && (!openOnly || t.IsOpen())
	})
	sortTransactions(txs, func(a, b domain.Transaction) bool { return a.CheckoutDate.After(b.CheckoutDate) })
	return txs, nil
}

func (r *transactionRepository) ListTransactionsByStatus(_ context.Context, status domain.TransactionStatus) ([]domain.Transaction, error) {
	txs := r.filter(func(t domain.Transaction) bool { return t.Status == status })
	sortTransactions(txs, func(a, b domain.Transaction) bool { return a.DueDate.Before(b.DueDate) })
	return txs, nil
}

func (r *transactionRepository) ListOverdueCandidates(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	txs := r.filter(func(t domain.Transaction) bool {
		return t.Status == domain.StatusOpen && t.DueDate.Before(now)
	})
	sortTransactions(txs, func(a, b domain.Transaction) bool { return a.DueDate.Before(b.DueDate) })

	ids := make([]uuid.UUID, 0, len(txs))
	for _, t := range txs {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

func (r *transactionRepository) UpdateTransaction(_ context.Context, tx *domain.Transaction) error {
	return r.s.view(func(st *state) error {
		t, ok := st.transactions[tx.ID]
		if !ok {
			return errors.ErrTransactionNotFound
		}
		t.Status = tx.Status
		t.ReturnDate = tx.ReturnDate
		t.UpdatedAt = time.Now().UTC()
		tx.UpdatedAt = t.UpdatedAt
		st.transactions[tx.ID] = cloneTransaction(t)
		return nil
	})
}

func (r *transactionRepository) filter(keep func(domain.Transaction) bool) []domain.Transaction {
	txs := make([]domain.Transaction, 0)
	_ = r.s.view(func(st *state) error {
		for _, t := range st.transactions {
			if keep(t) {
				txs = append(txs, cloneTransaction(t))
			}
		}
		return nil
	})
	return txs
}

func cloneTransaction(t domain.Transaction) domain.Transaction {
	if t.ReturnDate != nil {
		rd := *t.ReturnDate
		t.ReturnDate = &rd
	}
	return t
}

type overdueRepository struct{ s *Store }

func (r *overdueRepository) CreateOverdue(_ context.Context, overdue *domain.Overdue) error {
	return r.s.view(func(st *state) error {
		for _, o := range st.overdues {
			if o.TransactionID == overdue.TransactionID {
				return errors.NewAppError(errors.InvalidInput, "overdue record already exists for transaction")
			}
		}
		now := time.Now().UTC()
		overdue.CreatedAt = now
		overdue.UpdatedAt = now
		st.overdues[overdue.ID] = *overdue
		return nil
	})
}

func (r *overdueRepository) GetOverdue(_ context.Context, id uuid.UUID) (*domain.Overdue, error) {
	var out *domain.Overdue
	err := r.s.view(func(st *state) error {
		o, ok := st.overdues[id]
		if !ok {
			return errors.ErrOverdueNotFound
		}
		out = &o
		return nil
	})
	return out, err
}

func (r *overdueRepository) GetOverdueByTransaction(_ context.Context, transactionID uuid.UUID) (*domain.Overdue, error) {
	var out *domain.Overdue
	err := r.s.view(func(st *state) error {
		for _, o := range st.overdues {
			if o.TransactionID == transactionID {
				o := o
				out = &o
				return nil
			}
		}
		return nil
	})
	return out, err
}

// The ForUpdate variants rely on the store mutex held by the unit of work.
func (r *overdueRepository) GetOverdueForUpdate(ctx context.Context, id uuid.UUID) (*domain.Overdue, error) {
	return r.GetOverdue(ctx, id)
}

func (r *overdueRepository) GetOverdueByTransactionForUpdate(ctx context.Context, transactionID uuid.UUID) (*domain.Overdue, error) {
	return r.GetOverdueByTransaction(ctx, transactionID)
}

func (r *overdueRepository) UpdateOverdue(_ context.Context, overdue *domain.Overdue) error {
	return r.s.view(func(st *state) error {
		o, ok := st.overdues[overdue.ID]
		if !ok {
			return errors.ErrOverdueNotFound
		}
		o.PenaltyAmount = overdue.PenaltyAmount
		o.IsPaid = overdue.IsPaid
		o.UpdatedAt = time.Now().UTC()
		overdue.UpdatedAt = o.UpdatedAt
		st.overdues[o.ID] = o
		return nil
	})
}

type notificationRepository struct{ s *Store }

func (r *notificationRepository) CreateNotification(_ context.Context, n *domain.Notification) error {
	return r.s.view(func(st *state) error {
		st.notifications[n.ID] = *n
		return nil
	})
}

func (r *notificationRepository) ListNotificationsByUser(_ context.Context, userID int64) ([]domain.Notification, error) {
	out := make([]domain.Notification, 0)
	err := r.s.view(func(st *state) error {
		for _, n := range st.notifications {
			if n.UserID == userID {
				out = append(out, n)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, err
}

func (r *notificationRepository) MarkNotificationRead(_ context.Context, id uuid.UUID, userID int64) error {
	return r.s.view(func(st *state) error {
		n, ok := st.notifications[id]
		if !ok || n.UserID != userID {
			return errors.ErrNotificationNotFound
		}
		n.IsRead = true
		st.notifications[id] = n
		return nil
	})
}

func (r *notificationRepository) AddWatch(_ context.Context, userID, bookID int64) error {
	return r.s.view(func(st *state) error {
		if _, ok := st.books[bookID]; !ok {
			return errors.ErrBookNotFound
		}
		key := watchKey{userID: userID, bookID: bookID}
		if _, ok := st.watches[key]; !ok {
			st.watches[key] = time.Now().UTC()
		}
		return nil
	})
}

func (r *notificationRepository) TakeWatchers(_ context.Context, bookID int64) ([]int64, error) {
	userIDs := make([]int64, 0)
	err := r.s.view(func(st *state) error {
		for key := range st.watches {
			if key.bookID == bookID {
				userIDs = append(userIDs, key.userID)
				delete(st.watches, key)
			}
		}
		return nil
	})
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })
	return userIDs, err
}
