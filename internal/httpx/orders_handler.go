package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-bookstore-orders/internal/orders"
	"github.com/ariefcatur/go-bookstore-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type OrdersHandler struct {
	Orders *orders.Service
	Cache  redisx.Cache // optional
}

type UpdateStatusReq struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(RequireUser)
		r.Post("/orders", h.createOrder)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.With(RequireAdmin).Put("/orders/{id}/status", h.updateStatus)
	})
}

func (h *OrdersHandler) cache() orderCache { return orderCache{c: h.Cache} }

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())

	var cart orders.Cart
	if err := json.NewDecoder(r.Body).Decode(&cart); err != nil {
		// well-formed json with a wrongly typed value is a cart problem, e.g. quantity 1.5
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			writeDomainError(w, &orders.CartError{Field: typeErr.Field, Reason: "must be " + typeErr.Type.String()})
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json", nil)
		return
	}
	cart.IdempotencyKey = strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// fast path: the key was seen recently, serve the stored order
	if id, ok := h.cache().idempotent(ctx, caller.UserID, cart.IdempotencyKey); ok {
		if o, err := h.Orders.GetUserOrder(ctx, caller.UserID, id); err == nil {
			writeJSON(w, http.StatusOK, o)
			return
		}
	}

	order, replayed, err := h.Orders.PlaceOrder(ctx, caller.UserID, cart)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.cache().remember(ctx, caller.UserID, cart.IdempotencyKey, order.ID)
	h.cache().put(ctx, order)

	if replayed {
		writeJSON(w, http.StatusOK, order)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	page, limit := parsePage(r)

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, total, err := h.Orders.ListOrders(ctx, orders.OrderFilter{
		UserID: caller.UserID,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderList(list, total, page, limit))
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	if o, ok := h.cache().get(ctx, orderID); ok {
		if o.UserID != caller.UserID {
			writeDomainError(w, orders.ErrOrderNotFound)
			return
		}
		writeJSON(w, http.StatusOK, o)
		return
	}

	// 2) fallback DB
	o, err := h.Orders.GetUserOrder(ctx, caller.UserID, orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.cache().put(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	updateStatus(w, r, h.Orders, h.cache())
}

// updateStatus is shared by the customer-facing and admin routes.
func updateStatus(w http.ResponseWriter, r *http.Request, svc *orders.Service, oc orderCache) {
	orderID := chi.URLParam(r, "id")

	var req UpdateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := svc.UpdateStatus(ctx, orderID, req.Status)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	oc.invalidate(ctx, orderID)
	writeJSON(w, http.StatusOK, o)
}
