package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ariefcatur/go-bookstore-orders/internal/orders"
	"github.com/go-chi/chi/v5"
)

type BooksHandler struct {
	Catalog orders.Catalog
}

func (h *BooksHandler) Register(r chi.Router) {
	r.Get("/books", h.listBooks)
	r.Get("/books/{id}", h.getBook)
}

func (h *BooksHandler) listBooks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	books, err := h.Catalog.ListBooks(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if books == nil {
		books = []orders.Book{}
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *BooksHandler) getBook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	b, err := h.Catalog.GetBook(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, orders.ErrBookNotFound) {
		writeError(w, http.StatusNotFound, "book_not_found", err.Error(), nil)
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
