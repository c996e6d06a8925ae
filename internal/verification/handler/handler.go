// Package handler exposes the verification session lifecycle over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"verity/internal/evidence/extract"
	"verity/internal/verification"
	id "verity/pkg/domain"
	"verity/pkg/platform/httputil"
	"verity/pkg/requestcontext"
)

// Service defines the session operations the transport exposes.
type Service interface {
	Initiate(ctx context.Context, orderID id.OrderID, customerID id.CustomerID, verificationType verification.Type) (*verification.Session, error)
	UploadDocument(ctx context.Context, sessionID id.SessionID, data []byte, docType extract.DocumentType, side verification.Side) (*verification.DocumentUpload, error)
	UploadSelfie(ctx context.Context, sessionID id.SessionID, data []byte) (*verification.SelfieUpload, error)
	Complete(ctx context.Context, sessionID id.SessionID) (*verification.Result, error)
	GetStatus(ctx context.Context, sessionID id.SessionID) (*verification.StatusInfo, error)
}

// Handler wires verification endpoints to the session service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a verification handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts verification endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/verification/initiate", h.HandleInitiate)
	r.Post("/verification/{sessionID}/document", h.HandleUploadDocument)
	r.Post("/verification/{sessionID}/selfie", h.HandleUploadSelfie)
	r.Post("/verification/{sessionID}/complete", h.HandleComplete)
	r.Get("/verification/{sessionID}/status", h.HandleGetStatus)
}

// HandleInitiate handles POST /verification/initiate.
func (h *Handler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[InitiateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	session, err := h.service.Initiate(ctx, req.parsedOrderID, req.parsedCustomerID, req.parsedType)
	if err != nil {
		h.logger.WarnContext(ctx, "initiate rejected",
			"request_id", requestID,
			"order_id", req.OrderID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, InitiateResponse{
		SessionResponse:  FromSession(session),
		VerificationCode: session.Code,
	})
}

// HandleUploadDocument handles POST /verification/{sessionID}/document.
func (h *Handler) HandleUploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UploadDocumentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	upload, err := h.service.UploadDocument(ctx, sessionID, req.Data, req.parsedType, req.parsedSide)
	if err != nil {
		h.logger.WarnContext(ctx, "document upload rejected",
			"request_id", requestID,
			"session_id", sessionID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, FromDocumentUpload(upload))
}

// HandleUploadSelfie handles POST /verification/{sessionID}/selfie.
func (h *Handler) HandleUploadSelfie(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UploadSelfieRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	upload, err := h.service.UploadSelfie(ctx, sessionID, req.Data)
	if err != nil {
		h.logger.WarnContext(ctx, "selfie upload rejected",
			"request_id", requestID,
			"session_id", sessionID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, SelfieResponse{
		SessionID:         upload.Session.ID.String(),
		MatchScore:        upload.Score,
		LivenessScore:     upload.Liveness,
		BiometricVerified: upload.Verified,
	})
}

// HandleComplete handles POST /verification/{sessionID}/complete.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Complete(ctx, sessionID)
	if err != nil {
		h.logger.WarnContext(ctx, "completion rejected",
			"request_id", requestID,
			"session_id", sessionID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleGetStatus handles GET /verification/{sessionID}/status.
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	status, err := h.service.GetStatus(ctx, sessionID)
	if err != nil {
		h.logger.WarnContext(ctx, "status lookup failed",
			"request_id", requestID,
			"session_id", sessionID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, StatusResponse{
		SessionResponse: FromSession(status.Session),
		Progress:        status.Progress,
		RemainingSteps:  status.RemainingSteps,
	})
}
