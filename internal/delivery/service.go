package delivery

import (
	"context"
	"fmt"
	"log/slog"

	"verity/internal/audit"
	"verity/internal/compliance"
	"verity/internal/delivery/metrics"
	"verity/internal/evidence/biometric"
	"verity/internal/evidence/storage"
	"verity/internal/verification"
	id "verity/pkg/domain"
	dErrors "verity/pkg/domain-errors"
	"verity/pkg/requestcontext"
)

// matchThreshold mirrors the session-side biometric gate: a handoff
// photo at exactly the threshold passes.
const matchThreshold = 0.8

// SessionSource resolves verification sessions for handoff checks.
// Implemented by the verification service.
type SessionSource interface {
	SessionByCode(ctx context.Context, code string) (*verification.Session, error)
	SessionForOrder(ctx context.Context, orderID id.OrderID) (*verification.Session, error)
}

// ComplianceChecker runs the point-of-handoff rule evaluation.
// Implemented by the compliance service.
type ComplianceChecker interface {
	CheckCompliance(ctx context.Context, orderID id.OrderID, jurisdiction id.Jurisdiction, delivery compliance.DeliveryFacts) (*compliance.Check, error)
}

// Proof carries the courier's evidence for one handoff attempt. Exactly
// one of Code or PhotoRef must be set; PhotoRef additionally needs
// OrderID to locate the session.
type Proof struct {
	Code     string
	PhotoRef storage.Ref
	OrderID  id.OrderID
	Facts    compliance.DeliveryFacts
}

// Service verifies handoffs against completed verification sessions.
type Service struct {
	sessions SessionSource
	store    Store
	matcher  biometric.Matcher
	checker  ComplianceChecker
	sink     audit.Sink
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewService constructs the handoff service. The session source, store,
// and matcher are required; the compliance checker, audit sink, and
// metrics may be nil.
func NewService(
	sessions SessionSource,
	store Store,
	matcher biometric.Matcher,
	checker ComplianceChecker,
	sink audit.Sink,
	logger *slog.Logger,
	m *metrics.Metrics,
) (*Service, error) {
	switch {
	case sessions == nil:
		return nil, fmt.Errorf("session source is required")
	case store == nil:
		return nil, fmt.Errorf("store is required")
	case matcher == nil:
		return nil, fmt.Errorf("biometric matcher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sessions: sessions,
		store:    store,
		matcher:  matcher,
		checker:  checker,
		sink:     sink,
		logger:   logger,
		metrics:  m,
	}, nil
}

// Verify decides one handoff attempt. A rejection is data, not an
// error: the record is appended and returned with Passed false so the
// dispatcher can act on it. Errors mean the decision itself could not
// be made.
func (s *Service) Verify(ctx context.Context, deliveryID id.DeliveryID, proof Proof) (*Verification, error) {
	if deliveryID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "delivery id is required")
	}
	hasCode := proof.Code != ""
	hasPhoto := proof.PhotoRef != ""
	if hasCode == hasPhoto {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "exactly one of verification_code or photo_ref is required")
	}
	if hasPhoto && proof.OrderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "order_id is required for photo verification")
	}
	now := requestcontext.Now(ctx)

	method := MethodCode
	var (
		session *verification.Session
		err     error
	)
	if hasCode {
		session, err = s.sessions.SessionByCode(ctx, proof.Code)
	} else {
		method = MethodPhoto
		session, err = s.sessions.SessionForOrder(ctx, proof.OrderID)
	}
	if err != nil {
		return nil, err
	}
	if hasCode && !proof.OrderID.IsNil() && session.OrderID != proof.OrderID {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "verification code does not belong to this order")
	}

	record := &Verification{
		ID:         id.NewHandoffID(),
		DeliveryID: deliveryID,
		OrderID:    session.OrderID,
		SessionID:  session.ID,
		Method:     method,
		VerifiedAt: now,
	}

	if reason := s.sessionGate(session); reason != "" {
		record.Reason = reason
		return s.conclude(ctx, record)
	}
	if method == MethodPhoto {
		if reason, err := s.photoGate(ctx, session, proof.PhotoRef); err != nil {
			return nil, err
		} else if reason != "" {
			record.Reason = reason
			return s.conclude(ctx, record)
		}
	}

	if s.checker != nil {
		facts := proof.Facts
		if facts.At.IsZero() {
			facts.At = now
		}
		check, err := s.checker.CheckCompliance(ctx, session.OrderID, "", facts)
		if err != nil {
			return nil, err
		}
		record.Compliance = check
		if !check.Passed {
			record.Reason = firstIssue(check.Issues)
			return s.conclude(ctx, record)
		}
	}

	record.Passed = true
	return s.conclude(ctx, record)
}

// ListByDelivery returns every recorded attempt for a delivery.
func (s *Service) ListByDelivery(ctx context.Context, deliveryID id.DeliveryID) ([]Verification, error) {
	records, err := s.store.ListByDelivery(ctx, deliveryID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "handoff lookup failed", err)
	}
	return records, nil
}

// sessionGate enforces that the session reached a verified terminal
// decision before any handoff evidence is weighed.
func (s *Service) sessionGate(session *verification.Session) string {
	switch {
	case session.Status != verification.StatusCompleted:
		return "verification session is " + string(session.Status)
	case session.Result == nil || !session.Result.Verified:
		return "verification session did not verify the customer"
	default:
		return ""
	}
}

// photoGate compares the handoff photo against the selfie captured
// during the session.
func (s *Service) photoGate(ctx context.Context, session *verification.Session, photoRef storage.Ref) (string, error) {
	if session.SelfieRef == "" {
		return "session has no selfie to match against", nil
	}
	match, err := s.matcher.Compare(ctx, photoRef, session.SelfieRef)
	if err != nil {
		return "", dErrors.Wrap(dErrors.CodeExternalService, "handoff photo comparison failed", err)
	}
	if match.MatchConfidence < matchThreshold {
		return fmt.Sprintf("handoff photo match %.4f below threshold %.1f", match.MatchConfidence, matchThreshold), nil
	}
	return "", nil
}

// conclude records the attempt, audits it, and returns it.
func (s *Service) conclude(ctx context.Context, record *Verification) (*Verification, error) {
	if err := s.store.Append(ctx, record); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "handoff record could not be stored", err)
	}

	action := audit.ActionDeliveryVerified
	decision := "passed"
	if !record.Passed {
		action = audit.ActionDeliveryRejected
		decision = "rejected"
	}
	if s.sink != nil {
		_ = s.sink.Emit(ctx, audit.Event{
			Timestamp: record.VerifiedAt,
			SessionID: record.SessionID,
			OrderID:   record.OrderID,
			Action:    action,
			Decision:  decision,
			Reason:    record.Reason,
			RequestID: requestcontext.RequestID(ctx),
		})
	}

	s.metrics.IncrementHandoff(record.Passed, string(record.Method))
	s.logger.InfoContext(ctx, "delivery handoff decided",
		"request_id", requestcontext.RequestID(ctx),
		"delivery_id", record.DeliveryID,
		"order_id", record.OrderID,
		"method", record.Method,
		"passed", record.Passed,
		"reason", record.Reason,
	)
	return record, nil
}

func firstIssue(issues []string) string {
	if len(issues) == 0 {
		return "compliance check failed"
	}
	return issues[0]
}
