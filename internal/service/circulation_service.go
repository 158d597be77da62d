package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"library-catalog/internal/domain"
	"library-catalog/internal/errors"
	"library-catalog/internal/notification"
	"library-catalog/internal/policy"
)

// DefaultPenaltyPerDay is charged for every started day past the due date.
var DefaultPenaltyPerDay = decimal.RequireFromString("0.50")

// CirculationService moves books between the shelf and borrowers.
type CirculationService struct {
	store         domain.UnitOfWork
	ledger        *Ledger
	notifier      Notifier
	logger        *slog.Logger
	loanPeriod    time.Duration
	penaltyPerDay decimal.Decimal
	now           func() time.Time
}

type CirculationOption func(*CirculationService)

func WithClock(now func() time.Time) CirculationOption {
	return func(s *CirculationService) {
		s.now = now
	}
}

func WithLoanPeriod(d time.Duration) CirculationOption {
	return func(s *CirculationService) {
		if d > 0 {
			s.loanPeriod = d
		}
	}
}

func WithPenaltyPerDay(rate decimal.Decimal) CirculationOption {
	return func(s *CirculationService) {
		if !rate.IsNegative() {
			s.penaltyPerDay = rate
		}
	}
}

func NewCirculationService(
	store domain.UnitOfWork,
	ledger *Ledger,
	notifier Notifier,
	logger *slog.Logger,
	opts ...CirculationOption,
) *CirculationService {
	s := &CirculationService{
		store:         store,
		ledger:        ledger,
		notifier:      notifier,
		logger:        logger,
		loanPeriod:    domain.DefaultLoanPeriod,
		penaltyPerDay: DefaultPenaltyPerDay,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CirculationService) clock() time.Time {
	return s.now().UTC()
}

// Checkout lends one copy of the book to actor.
func (s *CirculationService) Checkout(ctx context.Context, actor *domain.User, bookID int64) (*domain.Transaction, error) {
	if err := policy.Authorize(actor, policy.ActionCheckout, 0); err != nil {
		return nil, err
	}

	s.logger.Info("Processing checkout", "user_id", actor.ID, "book_id", bookID)

	var transaction *domain.Transaction
	err := s.store.WithTransaction(ctx, func(uow domain.UnitOfWork) error {
		book, err := uow.Books().GetBookForUpdate(ctx, bookID)
		if err != nil {
			return err
		}

		user, err := uow.Users().GetUser(ctx, actor.ID)
		if err != nil {
			return err
		}

		open, err := uow.Transactions().HasOpenTransaction(ctx, user.ID, book.ID)
		if err != nil {
			return err
		}
		if open {
			return errors.ErrAlreadyCheckedOut
		}

		if err := s.ledger.ReserveCopy(ctx, uow.Books(), book); err != nil {
			return err
		}

		transaction = domain.NewTransaction(user.ID, book.ID, s.clock(), s.loanPeriod)
		return uow.Transactions().CreateTransaction(ctx, transaction)
	})
	if err != nil {
		s.logger.Warn("Checkout failed", "user_id", actor.ID, "book_id", bookID, "error", err)
		return nil, err
	}

	s.logger.Info("Checkout completed",
		"transaction_id", transaction.ID,
		"user_id", transaction.UserID,
		"book_id", transaction.BookID,
		"due_date", transaction.DueDate)
	return transaction, nil
}

// ReturnBook closes the checkout and puts the copy back on the shelf.
func (s *CirculationService) ReturnBook(ctx context.Context, actor *domain.User, transactionID uuid.UUID) (*domain.Transaction, error) {
	s.logger.Info("Processing return", "transaction_id", transactionID)

	var transaction *domain.Transaction
	box := &outbox{}
	err := s.store.WithTransaction(ctx, func(uow domain.UnitOfWork) error {
		box.reset()

		t, err := uow.Transactions().GetTransactionForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if err := policy.Authorize(actor, policy.ActionReturn, t.UserID); err != nil {
			return err
		}
		if t.IsReturned() {
			return errors.ErrAlreadyReturned
		}

		book, err := uow.Books().GetBookForUpdate(ctx, t.BookID)
		if err != nil {
			return err
		}
		wasDepleted := book.AvailableCopies == 0

		now := s.clock()
		t.MarkReturned(now)
		if err := uow.Transactions().UpdateTransaction(ctx, t); err != nil {
			return err
		}

		if err := s.ledger.ReleaseCopy(ctx, uow.Books(), book); err != nil {
			return err
		}

		if err := s.finalizePenalty(ctx, uow, t, now); err != nil {
			return err
		}

		borrower, err := uow.Users().GetUser(ctx, t.UserID)
		if err != nil {
			return err
		}
		if err := box.record(ctx, uow, borrower, notification.ReturnedMessage(borrower, book), now); err != nil {
			return err
		}

		if wasDepleted && book.AvailableCopies > 0 {
			if err := notifyWatchers(ctx, uow, box, book, now); err != nil {
				return err
			}
		}

		transaction = t
		return nil
	})
	if err != nil {
		s.logger.Warn("Return failed", "transaction_id", transactionID, "error", err)
		return nil, err
	}

	box.flush(ctx, s.notifier, s.logger)

	s.logger.Info("Return completed", "transaction_id", transaction.ID, "book_id", transaction.BookID)
	return transaction, nil
}

// finalizePenalty recomputes an unpaid penalty as of the return date.
func (s *CirculationService) finalizePenalty(ctx context.Context, uow domain.UnitOfWork, t *domain.Transaction, at time.Time) error {
	overdue, err := uow.Overdues().GetOverdueByTransactionForUpdate(ctx, t.ID)
	if err != nil || overdue == nil || overdue.IsPaid {
		return err
	}

	overdue.PenaltyAmount = domain.Penalty(t.DueDate, at, s.penaltyPerDay)
	return uow.Overdues().UpdateOverdue(ctx, overdue)
}

type ScanResult struct {
	Candidates int `json:"candidates"`
	Marked     int `json:"marked"`
	Failed     int `json:"failed"`
}

// ScanOverdue flags every open checkout past its due date. Each checkout is
// handled in its own unit of work and a failure on one does not stop the rest.
func (s *CirculationService) ScanOverdue(ctx context.Context) (*ScanResult, error) {
	now := s.clock()

	ids, err := s.store.Transactions().ListOverdueCandidates(ctx, now)
	if err != nil {
		s.logger.Error("Overdue scan failed to list candidates", "error", err)
		return nil, err
	}

	result := &ScanResult{Candidates: len(ids)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		marked, err := s.markOverdue(ctx, id, now)
		if err != nil {
			result.Failed++
			s.logger.Error("Failed to mark transaction overdue", "transaction_id", id, "error", err)
			continue
		}
		if marked {
			result.Marked++
		}
	}

	s.logger.Info("Overdue scan completed",
		"candidates", result.Candidates,
		"marked", result.Marked,
		"failed", result.Failed)
	return result, nil
}

// RunOverdueScan is ScanOverdue on behalf of actor.
func (s *CirculationService) RunOverdueScan(ctx context.Context, actor *domain.User) (*ScanResult, error) {
	if err := policy.Authorize(actor, policy.ActionScanOverdue, 0); err != nil {
		return nil, err
	}
	return s.ScanOverdue(ctx)
}

func (s *CirculationService) markOverdue(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	marked := false
	box := &outbox{}

	err := s.store.WithTransaction(ctx, func(uow domain.UnitOfWork) error {
		box.reset()
		marked = false

		t, err := uow.Transactions().GetTransactionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		// Another unit may have returned or flagged it since the listing.
		if t.Status != domain.StatusOpen || !t.DueDate.Before(now) {
			return nil
		}

		t.MarkOverdue()
		if err := uow.Transactions().UpdateTransaction(ctx, t); err != nil {
			return err
		}

		existing, err := uow.Overdues().GetOverdueByTransaction(ctx, t.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			overdue := &domain.Overdue{
				ID:            uuid.New(),
				TransactionID: t.ID,
				OverdueDate:   now,
				PenaltyAmount: domain.Penalty(t.DueDate, now, s.penaltyPerDay),
			}
			if err := uow.Overdues().CreateOverdue(ctx, overdue); err != nil {
				return err
			}
		}

		user, err := uow.Users().GetUser(ctx, t.UserID)
		if err != nil {
			return err
		}
		book, err := uow.Books().GetBook(ctx, t.BookID)
		if err != nil {
			return err
		}
		if err := box.record(ctx, uow, user, notification.OverdueMessage(user, book, t.DueDate), now); err != nil {
			return err
		}

		marked = true
		return nil
	})
	if err != nil {
		return false, err
	}

	box.flush(ctx, s.notifier, s.logger)
	return marked, nil
}

func (s *CirculationService) GetTransaction(ctx context.Context, actor *domain.User, id uuid.UUID) (*domain.Transaction, error) {
	t, err := s.store.Transactions().GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionViewTransaction, t.UserID); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *CirculationService) ListUserTransactions(ctx context.Context, actor *domain.User, openOnly bool) ([]domain.Transaction, error) {
	if actor == nil {
		return nil, errors.ErrUnauthorized
	}
	if err := policy.Authorize(actor, policy.ActionViewTransaction, actor.ID); err != nil {
		return nil, err
	}
	return s.store.Transactions().ListTransactionsByUser(ctx, actor.ID, openOnly)
}

func (s *CirculationService) ListOverdue(ctx context.Context, actor *domain.User) ([]domain.Transaction, error) {
	if err := policy.Authorize(actor, policy.ActionViewOverdue, 0); err != nil {
		return nil, err
	}
	return s.store.Transactions().ListTransactionsByStatus(ctx, domain.StatusOverdue)
}

// PayPenalty marks an overdue record as settled.
func (s *CirculationService) PayPenalty(ctx context.Context, actor *domain.User, overdueID uuid.UUID) (*domain.Overdue, error) {
	if err := policy.Authorize(actor, policy.ActionPayPenalty, 0); err != nil {
		return nil, err
	}

	var overdue *domain.Overdue
	err := s.store.WithTransaction(ctx, func(uow domain.UnitOfWork) error {
		o, err := uow.Overdues().GetOverdueForUpdate(ctx, overdueID)
		if err != nil {
			return err
		}
		if o.IsPaid {
			return errors.ErrPenaltyAlreadyPaid
		}
		o.IsPaid = true
		if err := uow.Overdues().UpdateOverdue(ctx, o); err != nil {
			return err
		}
		overdue = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Penalty paid", "overdue_id", overdue.ID, "amount", overdue.PenaltyAmount)
	return overdue, nil
}
