// Package handler exposes delivery handoff verification over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"verity/internal/delivery"
	id "verity/pkg/domain"
	"verity/pkg/platform/httputil"
	"verity/pkg/requestcontext"
)

// Service defines the handoff operations the transport exposes.
type Service interface {
	Verify(ctx context.Context, deliveryID id.DeliveryID, proof delivery.Proof) (*delivery.Verification, error)
	ListByDelivery(ctx context.Context, deliveryID id.DeliveryID) ([]delivery.Verification, error)
}

// Handler wires delivery endpoints to the handoff service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a delivery handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts delivery endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/delivery/{deliveryID}/verify", h.HandleVerify)
	r.Get("/delivery/{deliveryID}/verifications", h.HandleList)
}

// HandleVerify handles POST /delivery/{deliveryID}/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	deliveryID, err := id.ParseDeliveryID(chi.URLParam(r, "deliveryID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := h.service.Verify(ctx, deliveryID, req.proof())
	if err != nil {
		h.logger.WarnContext(ctx, "handoff verification failed",
			"request_id", requestID,
			"delivery_id", deliveryID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromVerification(record))
}

// HandleList handles GET /delivery/{deliveryID}/verifications.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	deliveryID, err := id.ParseDeliveryID(chi.URLParam(r, "deliveryID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	records, err := h.service.ListByDelivery(ctx, deliveryID)
	if err != nil {
		h.logger.ErrorContext(ctx, "handoff lookup failed",
			"request_id", requestID,
			"delivery_id", deliveryID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromVerifications(records))
}
