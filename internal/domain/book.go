package domain

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"
)

// ISBNLength is the exact length an ISBN must have.
const ISBNLength = 13

type Book struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            string    `json:"isbn"`
	PublishedDate   time.Time `json:"published_date"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ValidISBN reports whether isbn is exactly ISBNLength characters long,
// without surrounding whitespace.
func ValidISBN(isbn string) bool {
	return strings.TrimSpace(isbn) == isbn && utf8.RuneCountInString(isbn) == ISBNLength
}

type BookFilter struct {
	AvailableOnly bool
}

type BookRepository interface {
	CreateBook(ctx context.Context, book *Book) error
	GetBook(ctx context.Context, id int64) (*Book, error)
	// GetBookForUpdate reads the book and locks its row until the enclosing
	// unit of work ends.
	GetBookForUpdate(ctx context.Context, id int64) (*Book, error)
	ListBooks(ctx context.Context, filter BookFilter) ([]Book, error)
	UpdateCopies(ctx context.Context, id int64, available, total int) error
}
