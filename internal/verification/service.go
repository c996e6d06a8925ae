package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"verity/internal/audit"
	"verity/internal/compliance"
	"verity/internal/dispatch"
	"verity/internal/evidence/biometric"
	"verity/internal/evidence/extract"
	"verity/internal/evidence/storage"
	"verity/internal/order"
	"verity/internal/verification/metrics"
	"verity/internal/verifier/age"
	"verity/internal/verifier/prescription"
	id "verity/pkg/domain"
	dErrors "verity/pkg/domain-errors"
	"verity/pkg/platform/sentinel"
	"verity/pkg/requestcontext"
)

const (
	// DefaultSessionTTL is the evidence-gathering deadline from initiate.
	DefaultSessionTTL = 30 * time.Minute

	// biometricThreshold is the minimum match confidence for identity.
	// A score of exactly 0.8 passes.
	biometricThreshold = 0.8

	// syncExtractBudget bounds the inline extraction attempt on upload.
	// Past the budget the dispatched task carries the work.
	syncExtractBudget = 2 * time.Second

	// casAttempts bounds the re-read-and-retry loop on version conflicts.
	casAttempts = 3
)

// ComplianceChecker is the downstream rule engine notified after a
// session completes.
type ComplianceChecker interface {
	CheckCompliance(ctx context.Context, orderID id.OrderID, jurisdiction id.Jurisdiction, delivery compliance.DeliveryFacts) (*compliance.Check, error)
}

// TaskQueue accepts background work. Satisfied by dispatch.Dispatcher.
type TaskQueue interface {
	Enqueue(task dispatch.Task) error
}

// Service owns the session state machine.
type Service struct {
	sessions  SessionStore
	documents DocumentStore
	orders    order.Reader
	blobs     storage.Store
	engine    extract.Engine
	matcher   biometric.Matcher
	rx        *prescription.Verifier

	checker     ComplianceChecker
	tasks       TaskQueue
	sink        audit.Sink
	tracker     *ActivityTracker
	completions chan<- SessionCompleted

	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// ServiceOption configures optional collaborators.
type ServiceOption func(*Service)

// WithComplianceChecker schedules a compliance check after completion.
func WithComplianceChecker(checker ComplianceChecker) ServiceOption {
	return func(s *Service) { s.checker = checker }
}

// WithTaskQueue sets the dispatcher for extraction and compliance tasks.
// Without one, extraction runs inline only.
func WithTaskQueue(tasks TaskQueue) ServiceOption {
	return func(s *Service) { s.tasks = tasks }
}

// WithAuditSink sets the audit event sink.
func WithAuditSink(sink audit.Sink) ServiceOption {
	return func(s *Service) { s.sink = sink }
}

// WithActivityTracker sets the failed-attempt tracker.
func WithActivityTracker(tracker *ActivityTracker) ServiceOption {
	return func(s *Service) { s.tracker = tracker }
}

// WithCompletions sets the channel receiving SessionCompleted events.
// Sends never block; a full channel drops the event and logs.
func WithCompletions(completions chan<- SessionCompleted) ServiceOption {
	return func(s *Service) { s.completions = completions }
}

// WithSessionTTL overrides the evidence-gathering deadline.
func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService constructs the session service. Stores, the order reader,
// the blob store, the extraction engine, the biometric matcher, and the
// prescription verifier are required.
func NewService(
	sessions SessionStore,
	documents DocumentStore,
	orders order.Reader,
	blobs storage.Store,
	engine extract.Engine,
	matcher biometric.Matcher,
	rx *prescription.Verifier,
	opts ...ServiceOption,
) (*Service, error) {
	switch {
	case sessions == nil:
		return nil, fmt.Errorf("session store is required")
	case documents == nil:
		return nil, fmt.Errorf("document store is required")
	case orders == nil:
		return nil, fmt.Errorf("order reader is required")
	case blobs == nil:
		return nil, fmt.Errorf("blob store is required")
	case engine == nil:
		return nil, fmt.Errorf("extraction engine is required")
	case matcher == nil:
		return nil, fmt.Errorf("biometric matcher is required")
	case rx == nil:
		return nil, fmt.Errorf("prescription verifier is required")
	}
	s := &Service{
		sessions:  sessions,
		documents: documents,
		orders:    orders,
		blobs:     blobs,
		engine:    engine,
		matcher:   matcher,
		rx:        rx,
		ttl:       DefaultSessionTTL,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Initiate creates (or idempotently returns) the session for one
// (order, customer) pair. Orders with no restricted items are
// NotApplicable.
func (s *Service) Initiate(ctx context.Context, orderID id.OrderID, customerID id.CustomerID, verificationType Type) (*Session, error) {
	if orderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "order id is required")
	}
	if customerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "customer id is required")
	}
	if verificationType != "" && !verificationType.Valid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "verification type must be age, prescription, or both")
	}
	now := requestcontext.Now(ctx)

	ord, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "order not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeExternalService, "order lookup failed", err)
	}

	needsAge := ord.RequiresAgeCheck()
	needsRx := ord.RequiresPrescription()
	if !needsAge && !needsRx {
		return nil, dErrors.New(dErrors.CodeNotApplicable, "order contains no restricted items")
	}
	if verificationType == "" {
		switch {
		case needsAge && needsRx:
			verificationType = TypeBoth
		case needsRx:
			verificationType = TypePrescription
		default:
			verificationType = TypeAge
		}
	}

	// Retried client requests must not fork sessions.
	existing, err := s.sessions.FindOpen(ctx, orderID, customerID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "session lookup failed", err)
	}
	if existing != nil {
		if !existing.Expired(now) {
			s.metrics.IncrementInitiated()
			return existing, nil
		}
		// The stale session closes; the caller gets a fresh one.
		s.expire(ctx, existing, now)
	}

	minimumAge := 0
	if needsAge {
		minimumAge = ord.MaxMinimumAge(age.DefaultMinimumAge)
	}
	session := &Session{
		ID:         id.NewSessionID(),
		OrderID:    orderID,
		CustomerID: customerID,
		Type:       verificationType,
		Status:     StatusPending,
		MinimumAge: minimumAge,
		Code:       NewCode(),
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "session could not be created", err)
	}

	s.emit(ctx, session, audit.ActionSessionInitiated, string(verificationType), "")
	s.metrics.IncrementInitiated()
	s.logger.InfoContext(ctx, "verification session initiated",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", session.ID,
		"order_id", orderID,
		"type", verificationType,
	)
	return session, nil
}

// DocumentUpload is the result of one document intake.
type DocumentUpload struct {
	Document Document
	// Extraction is populated when the inline attempt finished within
	// budget; otherwise the dispatched task fills the document later.
	Extraction *extract.Result
}

// UploadDocument persists the evidence, transitions the session to
// in_progress, and extracts the document's fields, inline when fast
// enough and via the dispatcher otherwise.
func (s *Service) UploadDocument(ctx context.Context, sessionID id.SessionID, data []byte, docType extract.DocumentType, side Side) (*DocumentUpload, error) {
	if len(data) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "document bytes are required")
	}
	if !docType.Valid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown document type")
	}
	if side == "" {
		side = SideSingle
	}
	if !side.Valid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "side must be front, back, or single")
	}
	now := requestcontext.Now(ctx)

	documentID := id.NewDocumentID()
	ref, err := s.blobs.Store(ctx, data, fmt.Sprintf("sessions/%s/documents/%s", sessionID, documentID))
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeExternalService, "evidence could not be stored", err)
	}

	document := &Document{
		ID:         documentID,
		SessionID:  sessionID,
		Type:       docType,
		Side:       side,
		StorageRef: ref,
		UploadedAt: now,
	}

	// The session write gates on liveness, so reject expired or closed
	// sessions before the document row exists.
	session, err := s.mutateSession(ctx, sessionID, now, func(session *Session) error {
		session.Documents = append(session.Documents, documentID)
		if session.Status == StatusPending {
			session.Status = StatusInProgress
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.documents.Add(ctx, document); err != nil {
		s.detachDocument(ctx, sessionID, documentID, now)
		return nil, dErrors.Wrap(dErrors.CodeInternal, "document could not be recorded", err)
	}

	upload := &DocumentUpload{Document: *document}
	upload.Extraction = s.extractInline(ctx, document, data)
	if upload.Extraction == nil {
		s.dispatchExtraction(ctx, document, data)
	}

	s.emit(ctx, session, audit.ActionDocumentUploaded, string(docType), "")
	s.metrics.IncrementUpload("document")
	s.logger.InfoContext(ctx, "document uploaded",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", sessionID,
		"document_id", documentID,
		"document_type", docType,
		"extracted_inline", upload.Extraction != nil,
	)
	return upload, nil
}

// detachDocument removes a document reference whose evidence row failed
// to persist, so the session never points at a document that does not
// exist.
func (s *Service) detachDocument(ctx context.Context, sessionID id.SessionID, documentID id.DocumentID, now time.Time) {
	_, err := s.mutateSession(ctx, sessionID, now, func(session *Session) error {
		kept := session.Documents[:0]
		for _, d := range session.Documents {
			if d != documentID {
				kept = append(kept, d)
			}
		}
		session.Documents = kept
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "document reference not rolled back",
			"session_id", sessionID,
			"document_id", documentID,
			"error", err,
		)
	}
}

// extractInline attempts extraction within the synchronous budget.
// Returns nil when the engine is slow or failing; the dispatched task
// picks the document up instead.
func (s *Service) extractInline(ctx context.Context, document *Document, data []byte) *extract.Result {
	inlineCtx, cancel := context.WithTimeout(ctx, syncExtractBudget)
	defer cancel()

	start := time.Now()
	result, err := s.engine.Extract(inlineCtx, data, document.Type)
	if err != nil {
		return nil
	}
	s.metrics.ObserveExtraction(time.Since(start))
	if err := s.documents.SetExtraction(ctx, document.ID, result); err != nil {
		s.logger.ErrorContext(ctx, "extraction result not recorded",
			"document_id", document.ID,
			"error", err,
		)
		return nil
	}
	return result
}

// dispatchExtraction queues the at-least-once extraction task. Duplicate
// runs are idempotent through SetExtraction's first-write-wins rule, and
// a task finishing after session expiry still records its fields for
// audit without resurrecting the session.
func (s *Service) dispatchExtraction(ctx context.Context, document *Document, data []byte) {
	if s.tasks == nil {
		return
	}
	doc := *document
	task := dispatch.Task{
		Name: "document-extraction",
		Run: func(taskCtx context.Context) error {
			start := time.Now()
			result, err := s.engine.Extract(taskCtx, data, doc.Type)
			if err != nil {
				return err
			}
			s.metrics.ObserveExtraction(time.Since(start))
			if err := s.documents.SetExtraction(taskCtx, doc.ID, result); err != nil {
				return err
			}
			s.recordLateExtraction(taskCtx, doc)
			return nil
		},
		Retryable: extract.IsRetryable,
		OnExhausted: func(taskCtx context.Context, err error) {
			s.metrics.IncrementExtractionFailure()
			if markErr := s.documents.MarkFailed(taskCtx, doc.ID); markErr != nil {
				s.logger.ErrorContext(taskCtx, "document not marked failed",
					"document_id", doc.ID,
					"error", markErr,
				)
			}
			s.logger.ErrorContext(taskCtx, "document extraction exhausted retries",
				"document_id", doc.ID,
				"session_id", doc.SessionID,
				"error", err,
			)
		},
	}
	if err := s.tasks.Enqueue(task); err != nil {
		s.logger.ErrorContext(ctx, "extraction task rejected",
			"document_id", document.ID,
			"error", err,
		)
	}
}

// recordLateExtraction audits fields that arrived after the session
// already expired. The session stays expired.
func (s *Service) recordLateExtraction(ctx context.Context, document Document) {
	session, err := s.sessions.Get(ctx, document.SessionID)
	if err != nil || session.Status != StatusExpired {
		return
	}
	s.emit(ctx, session, audit.ActionLateExtraction, string(document.Type), "extraction completed after session expiry")
}

// SelfieUpload is the result of one selfie intake.
type SelfieUpload struct {
	Session  *Session
	Score    float64
	Liveness float64
	Verified bool
}

// UploadSelfie compares the captured selfie against the most recent
// identity document. An identity document must already be present.
func (s *Service) UploadSelfie(ctx context.Context, sessionID id.SessionID, data []byte) (*SelfieUpload, error) {
	if len(data) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "selfie bytes are required")
	}
	now := requestcontext.Now(ctx)

	session, err := s.loadLive(ctx, sessionID, now)
	if err != nil {
		return nil, err
	}
	documents, err := s.documents.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "document lookup failed", err)
	}
	idDoc := latestIdentityDocument(documents)
	if idDoc == nil {
		return nil, dErrors.New(dErrors.CodeMissingPrerequisite, "an identity document must be uploaded before the selfie")
	}

	ref, err := s.blobs.Store(ctx, data, fmt.Sprintf("sessions/%s/selfie", sessionID))
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeExternalService, "selfie could not be stored", err)
	}

	start := time.Now()
	match, err := s.matcher.Compare(ctx, ref, idDoc.StorageRef)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeExternalService, "biometric comparison failed", err)
	}
	s.metrics.ObserveBiometric(time.Since(start))

	score := match.MatchConfidence
	verified := score >= biometricThreshold
	session, err = s.mutateSession(ctx, sessionID, now, func(session *Session) error {
		session.SelfieRef = ref
		session.BiometricScore = &score
		session.BiometricVerified = verified
		if session.Status == StatusPending {
			session.Status = StatusInProgress
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, session, audit.ActionSelfieUploaded, decisionWord(verified),
		fmt.Sprintf("match %.4f, liveness %.4f", score, match.LivenessConfidence))
	s.metrics.IncrementUpload("selfie")
	return &SelfieUpload{
		Session:  session,
		Score:    score,
		Liveness: match.LivenessConfidence,
		Verified: verified,
	}, nil
}

// Complete aggregates the verifier results into the terminal decision.
// Idempotent: a session that already finished returns its stored result
// unchanged. A session missing required documents stays in_progress and
// the caller may retry after uploading them.
func (s *Service) Complete(ctx context.Context, sessionID id.SessionID) (*Result, error) {
	now := requestcontext.Now(ctx)

	for attempt := 0; attempt < casAttempts; attempt++ {
		session, err := s.getSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if session.Status == StatusCompleted || session.Status == StatusFailed {
			result := session.Result.Clone()
			return &result, nil
		}
		if session.Status == StatusExpired {
			return nil, dErrors.New(dErrors.CodeExpiredSession, "verification session has expired")
		}
		if session.Expired(now) {
			s.expire(ctx, session, now)
			return nil, dErrors.New(dErrors.CodeExpiredSession, "verification session has expired")
		}

		// Fresh reads on every attempt: completion must observe extraction
		// results landing right up to this point.
		var (
			documents []Document
			ord       *order.Order
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			fetched, err := s.documents.ListBySession(gctx, sessionID)
			if err != nil {
				return dErrors.Wrap(dErrors.CodeInternal, "document lookup failed", err)
			}
			documents = fetched
			return nil
		})
		g.Go(func() error {
			fetched, err := s.orders.GetOrder(gctx, session.OrderID)
			if err != nil {
				return dErrors.Wrap(dErrors.CodeExternalService, "order lookup failed", err)
			}
			ord = fetched
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		if missing := missingDocumentTypes(session.Type, documents); len(missing) > 0 {
			return nil, dErrors.New(dErrors.CodeMissingDocuments,
				"missing required documents: "+strings.Join(missing, ", "))
		}

		result := s.verify(ctx, session, ord, documents, now)
		session.Result = &result
		if result.Verified {
			session.Status = StatusCompleted
		} else {
			session.Status = StatusFailed
		}

		if err := s.sessions.Update(ctx, session); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				continue
			}
			return nil, dErrors.Wrap(dErrors.CodeInternal, "session could not be finalized", err)
		}

		s.finish(ctx, session, ord)
		returned := result.Clone()
		return &returned, nil
	}
	return nil, dErrors.New(dErrors.CodeConflict, "session is being modified concurrently")
}

// verify runs the applicable verifiers and combines their verdicts.
func (s *Service) verify(ctx context.Context, session *Session, ord *order.Order, documents []Document, now time.Time) Result {
	result := Result{VerifiedAt: now}

	result.IdentityVerified = session.BiometricScore == nil || *session.BiometricScore >= biometricThreshold
	if !result.IdentityVerified {
		result.FailureReasons = append(result.FailureReasons,
			fmt.Sprintf("biometric match %.4f below threshold %.1f", *session.BiometricScore, biometricThreshold))
	}

	if session.Type.NeedsAge() {
		input := age.Input{MinimumAge: session.MinimumAge}
		if input.MinimumAge <= 0 {
			input.MinimumAge = ord.MaxMinimumAge(age.DefaultMinimumAge)
		}
		if idDoc := latestIdentityDocument(documents); idDoc != nil && idDoc.Extracted != nil && !idDoc.Extracted.Fields.Empty() {
			fields := idDoc.Extracted.Fields
			input.Document = &age.DocumentEvidence{
				BirthDate:        fields.DateOfBirth,
				ExpiresAt:        fields.ExpiresAt,
				SecurityFeatures: fields.SecurityFeatures,
			}
		}
		verdict := age.Verify(input, now)
		result.AgeVerified = verdict.Passed
		if !verdict.Passed {
			result.FailureReasons = append(result.FailureReasons, "age verification failed: "+verdict.Reason)
		}
	}

	if session.Type.NeedsPrescription() {
		rxDoc := latestDocumentOfType(documents, extract.DocPrescription)
		switch {
		case rxDoc == nil || rxDoc.Extracted == nil || rxDoc.Extracted.Fields.Empty():
			result.FailureReasons = append(result.FailureReasons, "prescription document could not be read")
		default:
			verdict := s.rx.Verify(ctx, ord, rxDoc.Extracted.Fields, now)
			result.PrescriptionVerified = verdict.Passed
			for _, reason := range verdict.FailureReasons {
				result.FailureReasons = append(result.FailureReasons, "prescription: "+reason)
			}
		}
	}

	result.Verified = result.IdentityVerified &&
		(!session.Type.NeedsAge() || result.AgeVerified) &&
		(!session.Type.NeedsPrescription() || result.PrescriptionVerified)
	return result
}

// finish emits the downstream effects of a terminal decision.
func (s *Service) finish(ctx context.Context, session *Session, ord *order.Order) {
	result := session.Result
	action := audit.ActionSessionCompleted
	if !result.Verified {
		action = audit.ActionSessionFailed
		s.tracker.RecordFailure(ctx, session)
	}
	s.emit(ctx, session, action, decisionWord(result.Verified), firstReason(result.FailureReasons))
	s.metrics.IncrementFinished(string(session.Status))

	if s.completions != nil {
		event := SessionCompleted{
			SessionID:   session.ID,
			OrderID:     session.OrderID,
			CustomerID:  session.CustomerID,
			Verified:    result.Verified,
			Result:      result.Clone(),
			CompletedAt: result.VerifiedAt,
		}
		select {
		case s.completions <- event:
		default:
			s.logger.WarnContext(ctx, "completion event dropped, channel full",
				"session_id", session.ID,
			)
		}
	}

	s.scheduleComplianceCheck(ctx, session, ord)

	s.logger.InfoContext(ctx, "verification session finished",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", session.ID,
		"order_id", session.OrderID,
		"status", session.Status,
		"verified", result.Verified,
	)
}

func (s *Service) scheduleComplianceCheck(ctx context.Context, session *Session, ord *order.Order) {
	if s.checker == nil {
		return
	}
	orderID := session.OrderID
	jurisdiction := ord.DeliveryState
	if s.tasks == nil {
		if _, err := s.checker.CheckCompliance(ctx, orderID, jurisdiction, compliance.DeliveryFacts{}); err != nil {
			s.logger.ErrorContext(ctx, "compliance check failed",
				"order_id", orderID,
				"error", err,
			)
		}
		return
	}
	task := dispatch.Task{
		Name: "compliance-check",
		Run: func(taskCtx context.Context) error {
			_, err := s.checker.CheckCompliance(taskCtx, orderID, jurisdiction, compliance.DeliveryFacts{})
			return err
		},
		Retryable: func(error) bool { return true },
	}
	if err := s.tasks.Enqueue(task); err != nil {
		s.logger.ErrorContext(ctx, "compliance check task rejected",
			"order_id", orderID,
			"error", err,
		)
	}
}

// StatusInfo is the progress view returned by GetStatus.
type StatusInfo struct {
	Session        *Session
	Progress       int
	RemainingSteps []string
}

const (
	StepUploadID           = "upload_id"
	StepUploadSelfie       = "upload_selfie"
	StepUploadPrescription = "upload_prescription"
)

// GetStatus reports the session state and evidence progress. Reading an
// expired session transitions it; the expired status is reported, not an
// error.
func (s *Service) GetStatus(ctx context.Context, sessionID id.SessionID) (*StatusInfo, error) {
	now := requestcontext.Now(ctx)
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Expired(now) {
		s.expire(ctx, session, now)
		session.Status = StatusExpired
	}

	documents, err := s.documents.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "document lookup failed", err)
	}

	steps := []string{StepUploadID, StepUploadSelfie}
	if session.Type.NeedsPrescription() {
		steps = append(steps, StepUploadPrescription)
	}

	var remaining []string
	completed := 0
	for _, step := range steps {
		done := false
		switch step {
		case StepUploadID:
			done = latestIdentityDocument(documents) != nil
		case StepUploadSelfie:
			done = session.SelfieRef != ""
		case StepUploadPrescription:
			done = latestDocumentOfType(documents, extract.DocPrescription) != nil
		}
		if done {
			completed++
		} else {
			remaining = append(remaining, step)
		}
	}

	return &StatusInfo{
		Session:        session,
		Progress:       completed * 100 / len(steps),
		RemainingSteps: remaining,
	}, nil
}

// SessionByCode resolves a session from its delivery verification code.
func (s *Service) SessionByCode(ctx context.Context, code string) (*Session, error) {
	session, err := s.sessions.FindByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no session matches the verification code")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "session lookup failed", err)
	}
	return session, nil
}

// SessionForOrder returns the most recent session for an order.
func (s *Service) SessionForOrder(ctx context.Context, orderID id.OrderID) (*Session, error) {
	session, err := s.sessions.FindLatestByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no session exists for this order")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "session lookup failed", err)
	}
	return session, nil
}

// FactsForOrder implements compliance.SessionReader.
func (s *Service) FactsForOrder(ctx context.Context, orderID id.OrderID) (*compliance.SessionFacts, error) {
	session, err := s.sessions.FindLatestByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	documents, err := s.documents.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	facts := &compliance.SessionFacts{
		DocumentCount:     len(documents),
		BiometricVerified: session.BiometricVerified,
	}
	if session.Result != nil {
		facts.PrescriptionVerified = session.Result.PrescriptionVerified
		facts.PrescriberVerified = session.Result.PrescriptionVerified
	}
	return facts, nil
}

// getSession fetches and translates store errors.
func (s *Service) getSession(ctx context.Context, sessionID id.SessionID) (*Session, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "verification session not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "session lookup failed", err)
	}
	return session, nil
}

// loadLive fetches a session that must accept mutations, enforcing lazy
// expiry and terminal-state rejection.
func (s *Service) loadLive(ctx context.Context, sessionID id.SessionID, now time.Time) (*Session, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Expired(now) {
		s.expire(ctx, session, now)
		return nil, dErrors.New(dErrors.CodeExpiredSession, "verification session has expired")
	}
	if session.Status.IsTerminal() {
		if session.Status == StatusExpired {
			return nil, dErrors.New(dErrors.CodeExpiredSession, "verification session has expired")
		}
		return nil, dErrors.New(dErrors.CodeConflict, "verification session is already "+string(session.Status))
	}
	return session, nil
}

// mutateSession applies fn under the version CAS, re-reading and
// retrying on conflicts so concurrent uploads serialize instead of
// losing writes.
func (s *Service) mutateSession(ctx context.Context, sessionID id.SessionID, now time.Time, fn func(*Session) error) (*Session, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		session, err := s.loadLive(ctx, sessionID, now)
		if err != nil {
			return nil, err
		}
		if err := fn(session); err != nil {
			return nil, err
		}
		err = s.sessions.Update(ctx, session)
		if errors.Is(err, sentinel.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, dErrors.Wrap(dErrors.CodeInternal, "session could not be updated", err)
		}
		return session, nil
	}
	return nil, dErrors.New(dErrors.CodeConflict, "session is being modified concurrently")
}

// expire transitions a stale session and records the event. Best effort:
// a racing writer that already closed the session wins.
func (s *Service) expire(ctx context.Context, session *Session, now time.Time) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		if session.Status.IsTerminal() {
			return
		}
		session.Status = StatusExpired
		err := s.sessions.Update(ctx, session)
		if err == nil {
			s.emit(ctx, session, audit.ActionSessionExpired, "expired",
				fmt.Sprintf("deadline %s passed", session.ExpiresAt.Format(time.RFC3339)))
			s.metrics.IncrementFinished(string(StatusExpired))
			return
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			s.logger.ErrorContext(ctx, "session expiry not recorded",
				"session_id", session.ID,
				"error", err,
			)
			return
		}
		refreshed, getErr := s.sessions.Get(ctx, session.ID)
		if getErr != nil {
			return
		}
		session = refreshed
	}
}

func (s *Service) emit(ctx context.Context, session *Session, action audit.Action, decision, reason string) {
	if s.sink == nil {
		return
	}
	_ = s.sink.Emit(ctx, audit.Event{
		Timestamp:  requestcontext.Now(ctx),
		SessionID:  session.ID,
		OrderID:    session.OrderID,
		CustomerID: session.CustomerID,
		Action:     action,
		Decision:   decision,
		Reason:     reason,
		RequestID:  requestcontext.RequestID(ctx),
	})
}

func missingDocumentTypes(verificationType Type, documents []Document) []string {
	var missing []string
	if latestIdentityDocument(documents) == nil {
		missing = append(missing, "identity document")
	}
	if verificationType.NeedsPrescription() && latestDocumentOfType(documents, extract.DocPrescription) == nil {
		missing = append(missing, "prescription")
	}
	return missing
}

func latestIdentityDocument(documents []Document) *Document {
	for i := len(documents) - 1; i >= 0; i-- {
		if documents[i].Type.IsIdentity() {
			return &documents[i]
		}
	}
	return nil
}

func latestDocumentOfType(documents []Document, docType extract.DocumentType) *Document {
	for i := len(documents) - 1; i >= 0; i-- {
		if documents[i].Type == docType {
			return &documents[i]
		}
	}
	return nil
}

func decisionWord(verified bool) string {
	if verified {
		return "verified"
	}
	return "rejected"
}

func firstReason(reasons []string) string {
	if len(reasons) == 0 {
		return ""
	}
	return reasons[0]
}
