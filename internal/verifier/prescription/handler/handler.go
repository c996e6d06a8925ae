// Package handler exposes prescriber registry management and prescription
// dispensing over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"verity/internal/verifier/prescription"
	id "verity/pkg/domain"
	dErrors "verity/pkg/domain-errors"
	"verity/pkg/platform/httputil"
	"verity/pkg/platform/sentinel"
	"verity/pkg/requestcontext"
)

// Registry defines the prescriber management operations the transport
// exposes.
type Registry interface {
	Register(ctx context.Context, prescriber prescription.Prescriber) error
	Deactivate(ctx context.Context, licenseNumber string) error
}

// Pharmacy defines the prescription record operations the transport
// exposes.
type Pharmacy interface {
	RegisterRecord(ctx context.Context, record prescription.Record) (prescription.Record, error)
	CheckRefill(ctx context.Context, prescriptionID id.PrescriptionID, medication string, now time.Time) (*prescription.RefillResult, error)
	Dispense(ctx context.Context, prescriptionID id.PrescriptionID, orderID id.OrderID, now time.Time) error
}

// Handler wires prescriber and prescription endpoints to their services.
type Handler struct {
	registry Registry
	pharmacy Pharmacy
	logger   *slog.Logger
}

// New constructs a prescription handler.
func New(registry Registry, pharmacy Pharmacy, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, pharmacy: pharmacy, logger: logger}
}

// Register mounts prescriber and prescription endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/prescribers", h.HandleRegister)
	r.Post("/prescribers/{license}/deactivate", h.HandleDeactivate)
	r.Post("/prescriptions", h.HandleRegisterPrescription)
	r.Get("/prescriptions/{prescriptionID}/refill", h.HandleCheckRefill)
	r.Post("/prescriptions/{prescriptionID}/dispense", h.HandleDispense)
}

// RegisterRequest is the HTTP request body for POST /prescribers.
type RegisterRequest struct {
	Name             string    `json:"name"`
	LicenseNumber    string    `json:"license_number"`
	LicenseExpiresAt time.Time `json:"license_expires_at,omitempty"`
}

// Validate validates the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *RegisterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}
	r.LicenseNumber = strings.TrimSpace(r.LicenseNumber)
	if r.LicenseNumber == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "license_number is required")
	}
	return nil
}

// HandleRegister handles POST /prescribers.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	prescriber := prescription.Prescriber{
		Name:             req.Name,
		LicenseNumber:    req.LicenseNumber,
		Active:           true,
		LicenseExpiresAt: req.LicenseExpiresAt,
	}
	if err := h.registry.Register(ctx, prescriber); err != nil {
		h.logger.ErrorContext(ctx, "prescriber registration failed",
			"request_id", requestID,
			"license", req.LicenseNumber,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]string{
		"license_number": req.LicenseNumber,
		"status":         "active",
	})
}

// HandleDeactivate handles POST /prescribers/{license}/deactivate.
func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	license := strings.TrimSpace(chi.URLParam(r, "license"))
	if license == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "license is required"))
		return
	}

	if err := h.registry.Deactivate(ctx, license); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			err = dErrors.New(dErrors.CodeNotFound, "prescriber not found")
		}
		h.logger.WarnContext(ctx, "prescriber deactivation failed",
			"request_id", requestID,
			"license", license,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"license_number": license,
		"status":         "inactive",
	})
}

// RegisterPrescriptionRequest is the HTTP request body for
// POST /prescriptions.
type RegisterPrescriptionRequest struct {
	CustomerID        string    `json:"customer_id"`
	Medication        string    `json:"medication"`
	Schedule          string    `json:"schedule,omitempty"`
	AuthorizedRefills int       `json:"authorized_refills"`
	IssuedAt          time.Time `json:"issued_at"`
	ExpiresAt         time.Time `json:"expires_at,omitempty"`

	parsedCustomerID id.CustomerID
	parsedSchedule   prescription.Schedule
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *RegisterPrescriptionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	customerID, err := id.ParseCustomerID(strings.TrimSpace(r.CustomerID))
	if err != nil {
		return err
	}
	r.parsedCustomerID = customerID

	r.Medication = strings.TrimSpace(r.Medication)
	if r.Medication == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "medication is required")
	}
	if r.AuthorizedRefills < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "authorized_refills must not be negative")
	}

	switch schedule := prescription.Schedule(strings.ToUpper(strings.TrimSpace(r.Schedule))); schedule {
	case prescription.ScheduleII, prescription.ScheduleIII, prescription.ScheduleIV, prescription.ScheduleV, prescription.ScheduleNone:
		r.parsedSchedule = schedule
	default:
		return dErrors.New(dErrors.CodeInvalidInput, "schedule must be II, III, IV, V, or empty")
	}
	return nil
}

// HandleRegisterPrescription handles POST /prescriptions.
func (h *Handler) HandleRegisterPrescription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterPrescriptionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := h.pharmacy.RegisterRecord(ctx, prescription.Record{
		CustomerID:        req.parsedCustomerID,
		Medication:        req.Medication,
		Schedule:          req.parsedSchedule,
		AuthorizedRefills: req.AuthorizedRefills,
		IssuedAt:          req.IssuedAt,
		ExpiresAt:         req.ExpiresAt,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "prescription registration failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]string{
		"prescription_id": record.ID.String(),
		"medication":      record.Medication,
	})
}

// RefillResponse is the wire shape of one refill-eligibility verdict.
type RefillResponse struct {
	Eligible         bool       `json:"eligible"`
	RemainingRefills int        `json:"remaining_refills"`
	NextEligibleAt   *time.Time `json:"next_eligible_at,omitempty"`
	Reason           string     `json:"reason,omitempty"`
}

// HandleCheckRefill handles GET /prescriptions/{prescriptionID}/refill.
func (h *Handler) HandleCheckRefill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	prescriptionID, err := id.ParsePrescriptionID(chi.URLParam(r, "prescriptionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	medication := strings.TrimSpace(r.URL.Query().Get("medication"))
	if medication == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "medication query parameter is required"))
		return
	}

	result, err := h.pharmacy.CheckRefill(ctx, prescriptionID, medication, requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			err = dErrors.New(dErrors.CodeNotFound, "prescription not found")
		}
		h.logger.WarnContext(ctx, "refill check failed",
			"request_id", requestID,
			"prescription_id", prescriptionID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := RefillResponse{
		Eligible:         result.Eligible,
		RemainingRefills: result.RemainingRefills,
		Reason:           result.Reason,
	}
	if !result.NextEligibleAt.IsZero() {
		resp.NextEligibleAt = &result.NextEligibleAt
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// DispenseRequest is the HTTP request body for
// POST /prescriptions/{prescriptionID}/dispense.
type DispenseRequest struct {
	OrderID string `json:"order_id"`

	parsedOrderID id.OrderID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *DispenseRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	orderID, err := id.ParseOrderID(strings.TrimSpace(r.OrderID))
	if err != nil {
		return err
	}
	r.parsedOrderID = orderID
	return nil
}

// HandleDispense handles POST /prescriptions/{prescriptionID}/dispense.
func (h *Handler) HandleDispense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	prescriptionID, err := id.ParsePrescriptionID(chi.URLParam(r, "prescriptionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[DispenseRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.pharmacy.Dispense(ctx, prescriptionID, req.parsedOrderID, requestcontext.Now(ctx)); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			err = dErrors.New(dErrors.CodeNotFound, "prescription not found")
		}
		h.logger.WarnContext(ctx, "dispense failed",
			"request_id", requestID,
			"prescription_id", prescriptionID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"prescription_id": prescriptionID.String(),
		"status":          "dispensed",
	})
}
