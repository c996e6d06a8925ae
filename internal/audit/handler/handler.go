// Package handler exposes the audit trail over HTTP for compliance
// review.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"verity/internal/audit"
	id "verity/pkg/domain"
	"verity/pkg/platform/httputil"
	"verity/pkg/requestcontext"
)

// Reader defines the audit queries the transport exposes.
type Reader interface {
	ListByOrder(ctx context.Context, orderID id.OrderID) ([]audit.Event, error)
}

// Handler wires the audit endpoint to the audit store.
type Handler struct {
	reader Reader
	logger *slog.Logger
}

// New constructs an audit handler.
func New(reader Reader, logger *slog.Logger) *Handler {
	return &Handler{reader: reader, logger: logger}
}

// Register mounts audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit/orders/{orderID}/events", h.HandleListByOrder)
}

// EventsResponse is the wire shape of the audit trail.
type EventsResponse struct {
	Events []audit.Event `json:"events"`
}

// HandleListByOrder handles GET /audit/orders/{orderID}/events.
func (h *Handler) HandleListByOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	orderID, err := id.ParseOrderID(chi.URLParam(r, "orderID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.reader.ListByOrder(ctx, orderID)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit trail lookup failed",
			"request_id", requestID,
			"order_id", orderID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, EventsResponse{Events: events})
}
