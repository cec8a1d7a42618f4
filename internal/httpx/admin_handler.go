package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-bookstore-orders/internal/orders"
	"github.com/ariefcatur/go-bookstore-orders/internal/redisx"
	"github.com/ariefcatur/go-bookstore-orders/internal/reporting"
	"github.com/go-chi/chi/v5"
)

type AdminHandler struct {
	Orders   *orders.Service
	Reports  *reporting.Service
	Cache    redisx.Cache // optional
	Location *time.Location
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(RequireUser, RequireAdmin)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/statistics", h.orderStatistics)
		r.Get("/orders/{id}", h.getOrder)
		r.Put("/orders/{id}/status", h.updateStatus)
		r.Delete("/orders/{id}", h.deleteOrder)
		r.Get("/dashboard/stats", h.dashboardStats)
	})
}

func (h *AdminHandler) cache() orderCache { return orderCache{c: h.Cache} }

func (h *AdminHandler) parseRange(w http.ResponseWriter, r *http.Request) (reporting.Range, bool) {
	q := r.URL.Query()
	rng, err := reporting.ParseRange(q.Get("startDate"), q.Get("endDate"), h.Location)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date_range", err.Error(), nil)
		return reporting.Range{}, false
	}
	return rng, true
}

func (h *AdminHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	rng, ok := h.parseRange(w, r)
	if !ok {
		return
	}

	filter := orders.OrderFilter{CreatedAfter: rng.Start, CreatedBefore: rng.End}
	if s := r.URL.Query().Get("status"); s != "" {
		st, err := orders.ParseStatus(s)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		filter.Status = st
	}
	page, limit := parsePage(r)
	filter.Limit, filter.Offset = limit, (page-1)*limit

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, total, err := h.Orders.ListOrders(ctx, filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderList(list, total, page, limit))
}

func (h *AdminHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if o, ok := h.cache().get(ctx, orderID); ok {
		writeJSON(w, http.StatusOK, o)
		return
	}
	o, err := h.Orders.GetOrder(ctx, orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.cache().put(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *AdminHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	updateStatus(w, r, h.Orders, h.cache())
}

func (h *AdminHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Orders.DeleteOrder(ctx, orderID); err != nil {
		writeDomainError(w, err)
		return
	}
	h.cache().invalidate(ctx, orderID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) orderStatistics(w http.ResponseWriter, r *http.Request) {
	rng, ok := h.parseRange(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	stats, err := h.Reports.OrderStatistics(ctx, rng)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) dashboardStats(w http.ResponseWriter, r *http.Request) {
	rng, ok := h.parseRange(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	stats, err := h.Reports.Dashboard(ctx, rng)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
