package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ariefcatur/go-bookstore-orders/internal/orders"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code, Details: details})
}

// writeDomainError maps the orders error taxonomy onto HTTP.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		cartErr  *orders.CartError
		missing  *orders.BookNotFoundError
		stockErr *orders.InsufficientStockError
		transErr *orders.TransitionError
	)
	switch {
	case errors.As(err, &cartErr):
		writeError(w, http.StatusBadRequest, "invalid_cart", err.Error(), map[string]string{"field": cartErr.Field, "reason": cartErr.Reason})
	case errors.As(err, &missing):
		writeError(w, http.StatusBadRequest, "book_not_found", err.Error(), map[string]any{"book_ids": missing.BookIDs})
	case errors.As(err, &stockErr):
		writeError(w, http.StatusBadRequest, "insufficient_stock", err.Error(), map[string]any{"shortages": stockErr.Shortages})
	case errors.Is(err, orders.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error(), nil)
	case errors.As(err, &transErr):
		writeError(w, http.StatusConflict, "illegal_transition", err.Error(), map[string]orders.Status{"from": transErr.From, "to": transErr.To})
	case errors.Is(err, orders.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order_not_found", "order not found", nil)
	case errors.Is(err, orders.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", "caller identity missing", nil)
	case errors.Is(err, orders.ErrPersistence):
		writeError(w, http.StatusInternalServerError, "persistence_failure", err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error(), nil)
	}
}

type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

type OrderList struct {
	Orders     []orders.Order `json:"orders"`
	Pagination Pagination     `json:"pagination"`
}

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

func parsePage(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func newOrderList(list []orders.Order, total, page, limit int) OrderList {
	if list == nil {
		list = []orders.Order{}
	}
	return OrderList{
		Orders: list,
		Pagination: Pagination{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: (total + limit - 1) / limit,
		},
	}
}
