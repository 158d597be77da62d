package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	NoCopiesAvailable    ErrorCode = "no_copies_available"
	AlreadyCheckedOut    ErrorCode = "already_checked_out"
	AlreadyReturned      ErrorCode = "already_returned"
	TransactionNotFound  ErrorCode = "transaction_not_found"
	BookNotFound         ErrorCode = "book_not_found"
	UserNotFound         ErrorCode = "user_not_found"
	OverdueNotFound      ErrorCode = "overdue_not_found"
	NotificationNotFound ErrorCode = "notification_not_found"
	DuplicateBook        ErrorCode = "duplicate_book"
	DuplicateUser        ErrorCode = "duplicate_user"
	InvalidISBN          ErrorCode = "invalid_isbn"
	InvalidInput         ErrorCode = "invalid_input"
	InvalidCredentials   ErrorCode = "invalid_credentials"
	Unauthorized         ErrorCode = "unauthorized"
	Forbidden            ErrorCode = "forbidden"
	PenaltyAlreadyPaid   ErrorCode = "penalty_already_paid"
	TransientConflict    ErrorCode = "transient_conflict"
	InventoryOverflow    ErrorCode = "inventory_overflow"
	QueueFull            ErrorCode = "queue_full"
	QueueClosed          ErrorCode = "queue_closed"
	InternalError        ErrorCode = "internal_error"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any AppError carrying the same code, so errors built with
// NewAppError compare equal to the predefined ones.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !stderrors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func NewAppErrorf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetails returns a copy of e carrying details. Predefined errors are
// shared, so they are never modified in place.
func (e *AppError) WithDetails(details string) *AppError {
	c := *e
	c.Details = details
	return &c
}

// HTTPStatus maps the error code to the status returned to API clients.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case TransactionNotFound, BookNotFound, UserNotFound, OverdueNotFound, NotificationNotFound:
		return http.StatusNotFound
	case NoCopiesAvailable, AlreadyCheckedOut, AlreadyReturned, PenaltyAlreadyPaid, InvalidISBN, InvalidInput:
		return http.StatusBadRequest
	case DuplicateBook, DuplicateUser, TransientConflict:
		return http.StatusConflict
	case InvalidCredentials, Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Is and As forward to the standard library so callers need only this package.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// From converts any error into an AppError, hiding unexpected ones behind a
// generic internal error.
func From(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return NewAppError(InternalError, "an unexpected error occurred")
}

// Predefined errors for common cases
var (
	ErrNoCopiesAvailable    = NewAppError(NoCopiesAvailable, "no copies available for this book")
	ErrAlreadyCheckedOut    = NewAppError(AlreadyCheckedOut, "you already have this book checked out")
	ErrAlreadyReturned      = NewAppError(AlreadyReturned, "this book has already been returned")
	ErrTransactionNotFound  = NewAppError(TransactionNotFound, "transaction not found")
	ErrBookNotFound         = NewAppError(BookNotFound, "book not found")
	ErrUserNotFound         = NewAppError(UserNotFound, "user not found")
	ErrOverdueNotFound      = NewAppError(OverdueNotFound, "overdue record not found")
	ErrNotificationNotFound = NewAppError(NotificationNotFound, "notification not found")
	ErrDuplicateBook        = NewAppError(DuplicateBook, "a book with this isbn already exists")
	ErrDuplicateUser        = NewAppError(DuplicateUser, "username already taken")
	ErrInvalidISBN          = NewAppError(InvalidISBN, "isbn must be exactly 13 characters long")
	ErrInvalidInput         = NewAppError(InvalidInput, "invalid input")
	ErrInvalidCredentials   = NewAppError(InvalidCredentials, "invalid username or password")
	ErrUnauthorized         = NewAppError(Unauthorized, "authentication required")
	ErrForbidden            = NewAppError(Forbidden, "permission denied")
	ErrPenaltyAlreadyPaid   = NewAppError(PenaltyAlreadyPaid, "penalty already paid")
	ErrTransientConflict    = NewAppError(TransientConflict, "the request conflicted with a concurrent update, try again")
	ErrInventoryOverflow    = NewAppError(InventoryOverflow, "available copies would exceed total copies")
	ErrQueueFull            = NewAppError(QueueFull, "notification queue is full")
	ErrQueueClosed          = NewAppError(QueueClosed, "notification queue is closed")
)
