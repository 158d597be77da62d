package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultLoanPeriod is how long a checkout lasts before it is due.
const DefaultLoanPeriod = 14 * 24 * time.Hour

// TransactionStatus is the lifecycle state of a checkout.
// Allowed transitions: open -> overdue, open -> returned, overdue -> returned.
type TransactionStatus string

const (
	StatusOpen     TransactionStatus = "open"
	StatusOverdue  TransactionStatus = "overdue"
	StatusReturned TransactionStatus = "returned"
)

type Transaction struct {
	ID           uuid.UUID         `json:"id"`
	UserID       int64             `json:"user_id"`
	BookID       int64             `json:"book_id"`
	Status       TransactionStatus `json:"status"`
	CheckoutDate time.Time         `json:"checkout_date"`
	DueDate      time.Time         `json:"due_date"`
	ReturnDate   *time.Time        `json:"return_date,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// NewTransaction builds an open checkout starting at checkoutAt.
func NewTransaction(userID, bookID int64, checkoutAt time.Time, loanPeriod time.Duration) *Transaction {
	if loanPeriod <= 0 {
		loanPeriod = DefaultLoanPeriod
	}
	return &Transaction{
		ID:           uuid.New(),
		UserID:       userID,
		BookID:       bookID,
		Status:       StatusOpen,
		CheckoutDate: checkoutAt,
		DueDate:      checkoutAt.Add(loanPeriod),
	}
}

// IsOpen reports whether the book has not been handed back yet. Overdue
// checkouts are still open.
func (t *Transaction) IsOpen() bool {
	return t.Status == StatusOpen || t.Status == StatusOverdue
}

func (t *Transaction) IsReturned() bool {
	return t.Status == StatusReturned
}

func (t *Transaction) IsOverdue() bool {
	return t.Status == StatusOverdue
}

// PastDue reports whether an open checkout has passed its due date at now.
func (t *Transaction) PastDue(now time.Time) bool {
	return t.IsOpen() && t.DueDate.Before(now)
}

// MarkOverdue moves an open checkout to overdue. It returns false when the
// transition is not allowed.
func (t *Transaction) MarkOverdue() bool {
	if t.Status != StatusOpen {
		return false
	}
	t.Status = StatusOverdue
	return true
}

// MarkReturned closes the checkout at returnedAt. It returns false when the
// checkout was already returned.
func (t *Transaction) MarkReturned(returnedAt time.Time) bool {
	if !t.IsOpen() {
		return false
	}
	t.Status = StatusReturned
	t.ReturnDate = &returnedAt
	return true
}

type TransactionRepository interface {
	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	// GetTransactionForUpdate reads the transaction and locks its row until
	// the enclosing unit of work ends.
	GetTransactionForUpdate(ctx context.Context, id uuid.UUID) (*Transaction, error)
	HasOpenTransaction(ctx context.Context, userID, bookID int64) (bool, error)
	ListTransactionsByUser(ctx context.Context, userID int64, openOnly bool) ([]Transaction, error)
	ListTransactionsByStatus(ctx context.Context, status TransactionStatus) ([]Transaction, error)
	// ListOverdueCandidates returns the ids of open checkouts due before now.
	ListOverdueCandidates(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	UpdateTransaction(ctx context.Context, tx *Transaction) error
}
