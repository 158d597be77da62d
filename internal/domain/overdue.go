package domain

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxPenalty is the largest amount the penalty column can hold.
var MaxPenalty = decimal.RequireFromString("9999.99")

type Overdue struct {
	ID            uuid.UUID       `json:"id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	OverdueDate   time.Time       `json:"overdue_date"`
	PenaltyAmount decimal.Decimal `json:"penalty_amount"`
	IsPaid        bool            `json:"is_paid"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// DaysOverdue counts started days past due, with a minimum of one.
func DaysOverdue(due, at time.Time) int64 {
	late := at.Sub(due)
	if late <= 0 {
		return 1
	}
	days := int64(math.Ceil(late.Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days
}

// Penalty computes the fine for a checkout due at due and assessed at at.
func Penalty(due, at time.Time, perDay decimal.Decimal) decimal.Decimal {
	if perDay.IsNegative() {
		perDay = decimal.Zero
	}
	amount := perDay.Mul(decimal.NewFromInt(DaysOverdue(due, at))).Round(2)
	if amount.GreaterThan(MaxPenalty) {
		return MaxPenalty
	}
	return amount
}

type OverdueRepository interface {
	CreateOverdue(ctx context.Context, overdue *Overdue) error
	GetOverdue(ctx context.Context, id uuid.UUID) (*Overdue, error)
	// GetOverdueForUpdate reads the record and locks its row until the
	// enclosing unit of work ends.
	GetOverdueForUpdate(ctx context.Context, id uuid.UUID) (*Overdue, error)
	// GetOverdueByTransaction returns nil, nil when no record exists.
	GetOverdueByTransaction(ctx context.Context, transactionID uuid.UUID) (*Overdue, error)
	// GetOverdueByTransactionForUpdate is GetOverdueByTransaction with a row lock.
	GetOverdueByTransactionForUpdate(ctx context.Context, transactionID uuid.UUID) (*Overdue, error)
	UpdateOverdue(ctx context.Context, overdue *Overdue) error
}
