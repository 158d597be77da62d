package handler

import (
	"net/http"
	"time"

	"library-catalog/internal/domain"
	"library-catalog/internal/errors"
	"library-catalog/internal/service"
)

type BookHandler struct {
	bookService        *service.BookService
	circulationService *service.CirculationService
}

func NewBookHandler(bookService *service.BookService, circulationService *service.CirculationService) *BookHandler {
	return &BookHandler{
		bookService:        bookService,
		circulationService: circulationService,
	}
}

type CreateBookRequest struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	ISBN          string `json:"isbn"`
	PublishedDate string `json:"published_date"`
	Copies        *int   `json:"copies,omitempty"`
}

type AddCopiesRequest struct {
	Copies int `json:"copies"`
}

func (h *BookHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req CreateBookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	published, err := time.Parse(time.DateOnly, req.PublishedDate)
	if err != nil {
		writeError(w, errors.ErrInvalidInput.WithDetails("published_date must be YYYY-MM-DD"))
		return
	}

	copies := 1
	if req.Copies != nil {
		copies = *req.Copies
	}

	book, err := h.bookService.CreateBook(r.Context(), UserFromContext(r.Context()), &service.CreateBookRequest{
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		PublishedDate: published,
		Copies:        copies,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, book)
}

func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "book_id", errors.ErrBookNotFound)
	if err != nil {
		writeError(w, err)
		return
	}

	book, err := h.bookService.GetBook(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, book)
}

func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.bookService.ListBooks(r.Context(), domain.BookFilter{AvailableOnly: queryBool(r, "available")})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, books)
}

func (h *BookHandler) AddCopies(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "book_id", errors.ErrBookNotFound)
	if err != nil {
		writeError(w, err)
		return
	}

	var req AddCopiesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	book, err := h.bookService.AddCopies(r.Context(), UserFromContext(r.Context()), id, req.Copies)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, book)
}

// Checkout lends the book to the caller.
func (h *BookHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "book_id", errors.ErrBookNotFound)
	if err != nil {
		writeError(w, err)
		return
	}

	transaction, err := h.circulationService.Checkout(r.Context(), UserFromContext(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, transaction)
}

func (h *BookHandler) Watch(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "book_id", errors.ErrBookNotFound)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.bookService.Watch(r.Context(), UserFromContext(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"book_id": id, "watching": true})
}
