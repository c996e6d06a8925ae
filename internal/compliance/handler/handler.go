package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"verity/internal/compliance"
	id "verity/pkg/domain"
	dErrors "verity/pkg/domain-errors"
	"verity/pkg/platform/httputil"
	"verity/pkg/requestcontext"
)

// Service defines the compliance operations the transport exposes.
type Service interface {
	GetRequirements(ctx context.Context, jurisdiction id.Jurisdiction, productType id.ProductType) ([]compliance.Requirement, error)
	ListChecks(ctx context.Context, orderID id.OrderID) ([]compliance.Check, error)
}

// Handler wires compliance endpoints to the compliance service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a compliance handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts compliance endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/compliance/requirements/{jurisdiction}", h.HandleGetRequirements)
	r.Get("/compliance/orders/{orderID}/checks", h.HandleListChecks)
}

// HandleGetRequirements handles GET /compliance/requirements/{jurisdiction}.
func (h *Handler) HandleGetRequirements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	jurisdiction := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "jurisdiction")))
	if jurisdiction == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "jurisdiction is required"))
		return
	}
	productType := id.ProductType(strings.TrimSpace(r.URL.Query().Get("productType")))

	rows, err := h.service.GetRequirements(ctx, id.Jurisdiction(jurisdiction), productType)
	if err != nil {
		h.logger.ErrorContext(ctx, "requirement lookup failed",
			"request_id", requestID,
			"jurisdiction", jurisdiction,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, RequirementsResponse{
		Jurisdiction: jurisdiction,
		Requirements: rows,
	})
}

// HandleListChecks handles GET /compliance/orders/{orderID}/checks.
func (h *Handler) HandleListChecks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	orderID, err := id.ParseOrderID(chi.URLParam(r, "orderID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	checks, err := h.service.ListChecks(ctx, orderID)
	if err != nil {
		h.logger.ErrorContext(ctx, "check log lookup failed",
			"request_id", requestID,
			"order_id", orderID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromChecks(checks))
}
