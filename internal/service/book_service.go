package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"library-catalog/internal/domain"
	"library-catalog/internal/errors"
	"library-catalog/internal/policy"
)

type BookService struct {
	store    domain.UnitOfWork
	ledger   *Ledger
	notifier Notifier
	logger   *slog.Logger
}

func NewBookService(store domain.UnitOfWork, ledger *Ledger, notifier Notifier, logger *slog.Logger) *BookService {
	return &BookService{
		store:    store,
		ledger:   ledger,
		notifier: notifier,
		logger:   logger,
	}
}

// Column widths of books.title and books.author.
const (
	MaxTitleLength  = 200
	MaxAuthorLength = 200
)

type CreateBookRequest struct {
	Title         string
	Author        string
	ISBN          string
	PublishedDate time.Time
	Copies        int
}

func (s *BookService) CreateBook(ctx context.Context, actor *domain.User, req *CreateBookRequest) (*domain.Book, error) {
	if err := policy.Authorize(actor, policy.ActionManageBooks, 0); err != nil {
		return nil, err
	}

	s.logger.Info("Creating book", "isbn", req.ISBN, "copies", req.Copies)

	title := strings.TrimSpace(req.Title)
	author := strings.TrimSpace(req.Author)
	if title == "" || utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, errors.ErrInvalidInput.WithDetails(fmt.Sprintf("title must be between 1 and %d characters", MaxTitleLength))
	}
	if author == "" || utf8.RuneCountInString(author) > MaxAuthorLength {
		return nil, errors.ErrInvalidInput.WithDetails(fmt.Sprintf("author must be between 1 and %d characters", MaxAuthorLength))
	}
	if !domain.ValidISBN(req.ISBN) {
		return nil, errors.ErrInvalidISBN
	}
	if req.Copies < 0 {
		return nil, errors.ErrInvalidInput.WithDetails("copies cannot be negative")
	}
	if req.PublishedDate.IsZero() {
		return nil, errors.ErrInvalidInput.WithDetails("published_date is required")
	}

	book := &domain.Book{
		Title:           title,
		Author:          author,
		ISBN:            req.ISBN,
		PublishedDate:   req.PublishedDate,
		TotalCopies:     req.Copies,
		AvailableCopies: req.Copies,
	}
	if err := s.store.Books().CreateBook(ctx, book); err != nil {
		return nil, err
	}

	return book, nil
}

func (s *BookService) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	if id <= 0 {
		return nil, errors.ErrBookNotFound
	}
	return s.store.Books().GetBook(ctx, id)
}

func (s *BookService) ListBooks(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	return s.store.Books().ListBooks(ctx, filter)
}

// AddCopies stocks n more copies. Watchers are told when the book comes back
// into stock.
func (s *BookService) AddCopies(ctx context.Context, actor *domain.User, bookID int64, n int) (*domain.Book, error) {
	if err := policy.Authorize(actor, policy.ActionManageBooks, 0); err != nil {
		return nil, err
	}

	var book *domain.Book
	box := &outbox{}
	err := s.store.WithTransaction(ctx, func(uow domain.UnitOfWork) error {
		box.reset()

		b, err := uow.Books().GetBookForUpdate(ctx, bookID)
		if err != nil {
			return err
		}
		wasDepleted := b.AvailableCopies == 0

		if err := s.ledger.AddCopies(ctx, uow.Books(), b, n); err != nil {
			return err
		}

		if wasDepleted {
			if err := notifyWatchers(ctx, uow, box, b, time.Now().UTC()); err != nil {
				return err
			}
		}

		book = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	box.flush(ctx, s.notifier, s.logger)
	return book, nil
}

// Watch asks for a notice the next time the book becomes available.
func (s *BookService) Watch(ctx context.Context, actor *domain.User, bookID int64) error {
	if err := policy.Authorize(actor, policy.ActionWatchBook, 0); err != nil {
		return err
	}
	if err := s.store.Notifications().AddWatch(ctx, actor.ID, bookID); err != nil {
		return err
	}

	s.logger.Info("Book watched", "user_id", actor.ID, "book_id", bookID)
	return nil
}
