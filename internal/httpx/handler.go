// Package httpx is the HTTP boundary: request decoding and validation,
// domain error mapping, and the JSON envelopes the storefront consumes.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/shop-orders/internal/catalog"
	"github.com/jcmexdev/shop-orders/internal/order"
	"github.com/jcmexdev/shop-orders/internal/pkg/cache"
	"github.com/jcmexdev/shop-orders/internal/queue"
)

// ProductLister is the catalog slice the listing endpoint needs.
type ProductLister interface {
	List(ctx context.Context, page, limit int) ([]catalog.Product, int, error)
}

// OrderService is the state machine port.
type OrderService interface {
	CreateOrder(ctx context.Context, lines []order.NewLine) (int64, error)
	GetOrder(ctx context.Context, id int64) (*order.Order, error)
	SetShippingInfo(ctx context.Context, id int64, email string, info order.ShippingInfo) (*order.Order, error)
	SubmitPayment(ctx context.Context, id int64, card queue.Card) (string, error)
	ListOrders(ctx context.Context) ([]order.Summary, error)
}

// JobReader is the job status lookup port.
type JobReader interface {
	Job(ctx context.Context, jobID string) (*queue.JobInfo, error)
}

// Handler handles incoming HTTP requests for the shop.
type Handler struct {
	products  ProductLister
	orders    OrderService
	jobs      JobReader
	snapshots cache.Cache

	// health reports backend liveness; nil means always healthy.
	health func(ctx context.Context) error
}

func NewHandler(products ProductLister, orders OrderService, jobs JobReader, snapshots cache.Cache, health func(ctx context.Context) error) *Handler {
	return &Handler{
		products:  products,
		orders:    orders,
		jobs:      jobs,
		snapshots: snapshots,
		health:    health,
	}
}

// ListProducts serves the paginated catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page := intQueryParam(r, "page", 1)
	limit := intQueryParam(r, "limit", 10)

	products, total, err := h.products.List(r.Context(), page, limit)
	if err != nil {
		h.writeInternalError(w, r, err)
		return
	}

	resp := ProductListResponse{Products: make([]productDTO, len(products)), Total: total, Page: page}
	for i, p := range products {
		resp.Products[i] = productDTO(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateOrder validates the requested lines and creates an OPEN order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w)
		return
	}

	lines, derr := req.Lines()
	if derr != nil {
		writeDomainError(w, derr)
		return
	}

	id, err := h.orders.CreateOrder(r.Context(), lines)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateOrderResponse{OrderID: id})
}

// GetOrder serves the order snapshot, preferring the worker-written cache
// entry and falling back to the store.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	if cached, err := h.snapshots.Get(r.Context(), cache.OrderKey(id)); err != nil {
		// Cache down is not fatal; the store remains the source of truth.
		slog.WarnContext(r.Context(), "snapshot cache unavailable", "order_id", id, "error", err)
	} else if len(cached) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(cached)
		return
	}

	o, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, o.Snapshot())
}

// UpdateOrder dispatches PUT /order/{id}: either a shipping update or a
// payment submission, never both.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	// The not-found / already-paid checks come before body-shape validation,
	// so a malformed request against a paid order still answers 409.
	o, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if o.Paid {
		writeDomainError(w, order.ErrAlreadyPaid())
		return
	}

	var req UpdateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w)
		return
	}

	switch {
	case req.Order != nil && req.CreditCard != nil:
		writeDomainError(w, order.ErrInvalidOperation())

	case req.Order != nil:
		updated, err := h.orders.SetShippingInfo(r.Context(), id, req.Order.Email, req.Order.ShippingInformation)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated.Snapshot())

	case req.CreditCard != nil:
		jobID, err := h.orders.SubmitPayment(r.Context(), id, *req.CreditCard)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, PaymentAcceptedResponse{
			Message: "Payment processing started",
			JobID:   jobID,
		})

	default:
		writeError(w, http.StatusBadRequest, "order", "invalid-request", "Invalid request format")
	}
}

// ListOrders serves the admin order listing.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.orders.ListOrders(r.Context())
	if err != nil {
		h.writeInternalError(w, r, err)
		return
	}

	resp := OrderListResponse{Orders: make([]orderSummaryDTO, len(summaries))}
	for i, s := range summaries {
		dto := orderSummaryDTO{
			ID:            s.ID,
			TotalPrice:    s.TotalPrice,
			Paid:          s.Paid,
			ProductsCount: s.ProductsCount,
		}
		if s.Email != "" {
			email := s.Email
			dto.Email = &email
		}
		resp.Orders[i] = dto
	}
	writeJSON(w, http.StatusOK, resp)
}

// JobStatus reports the lifecycle state of a payment job. A dead queue
// backend is a 503, distinct from an unknown job id (404).
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	info, err := h.jobs.Job(r.Context(), jobID)
	if errors.Is(err, queue.ErrJobNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Job not found"})
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "job queue unreachable", "job_id", jobID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Job queue unavailable"})
		return
	}

	resp := jobStatusResponse{ID: info.ID, Status: string(info.Status)}
	if info.Status == queue.StatusFinished && len(info.Result) > 0 {
		resp.Result = json.RawMessage(info.Result)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Health is the liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// orderID parses the path id, answering the order not-found envelope for
// anything non-numeric so bad ids and absent orders look the same.
func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeDomainError(w, order.ErrOrderNotFound())
		return 0, false
	}
	return id, true
}

func intQueryParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

// writeError maps a domain error to its envelope, logging anything that is
// not a structured user-facing failure.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var derr *order.Error
	if errors.As(err, &derr) {
		writeDomainError(w, derr)
		return
	}
	h.writeInternalError(w, r, err)
}

func (h *Handler) writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal", "internal-error", "Unexpected server error")
}

func writeDomainError(w http.ResponseWriter, derr *order.Error) {
	writeError(w, derr.Status, derr.Scope, derr.Code, derr.Name)
}

func writeError(w http.ResponseWriter, status int, scope, code, name string) {
	writeJSON(w, status, map[string]any{
		"errors": map[string]any{
			scope: map[string]string{"code": code, "name": name},
		},
	})
}

func writeBadRequest(w http.ResponseWriter) {
	writeError(w, http.StatusBadRequest, "request", "bad-request", "Invalid JSON body")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
