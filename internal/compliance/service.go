package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"verity/internal/audit"
	"verity/internal/compliance/metrics"
	"verity/internal/dispatch"
	"verity/internal/order"
	id "verity/pkg/domain"
	dErrors "verity/pkg/domain-errors"
	"verity/pkg/platform/sentinel"
	"verity/pkg/requestcontext"
)

// SessionReader supplies session facts for an order. Implemented by the
// verification session manager; nil facts mean no session exists yet.
type SessionReader interface {
	FactsForOrder(ctx context.Context, orderID id.OrderID) (*SessionFacts, error)
}

// TaskQueue accepts background work. Satisfied by dispatch.Dispatcher.
type TaskQueue interface {
	Enqueue(task dispatch.Task) error
}

// Service resolves requirements and evaluates per-order compliance.
type Service struct {
	requirements RequirementStore
	checkLog     CheckLog
	orders       order.Reader
	sessions     SessionReader
	checks       *CheckRegistry
	sink         audit.Sink
	tasks        TaskQueue
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// NewService constructs the compliance service. The requirement store,
// check log, order reader, and check registry are required; audit sink,
// session reader, task queue, and metrics may be nil.
func NewService(
	requirements RequirementStore,
	checkLog CheckLog,
	orders order.Reader,
	sessions SessionReader,
	checks *CheckRegistry,
	sink audit.Sink,
	tasks TaskQueue,
	logger *slog.Logger,
	m *metrics.Metrics,
) (*Service, error) {
	if requirements == nil {
		return nil, fmt.Errorf("requirement store is required")
	}
	if checkLog == nil {
		return nil, fmt.Errorf("check log is required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order reader is required")
	}
	if checks == nil {
		return nil, fmt.Errorf("check registry is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		requirements: requirements,
		checkLog:     checkLog,
		orders:       orders,
		sessions:     sessions,
		checks:       checks,
		sink:         sink,
		tasks:        tasks,
		logger:       logger,
		metrics:      m,
	}, nil
}

// GetRequirements resolves the requirement rows applicable to a
// jurisdiction, optionally narrowed to one product type. A row for the
// target jurisdiction replaces the wildcard row for the same product type
// entirely; no field-level merge is performed. That precedence is a
// recorded policy decision, not an accident.
func (s *Service) GetRequirements(ctx context.Context, jurisdiction id.Jurisdiction, productType id.ProductType) ([]Requirement, error) {
	if jurisdiction == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "jurisdiction is required")
	}
	rows, err := s.requirements.List(ctx, jurisdiction, productType)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "requirement lookup failed", err)
	}
	s.metrics.IncrementLookup()

	resolved := make(map[id.ProductType]Requirement)
	for _, row := range rows {
		existing, seen := resolved[row.ProductType]
		switch {
		case !seen:
			resolved[row.ProductType] = row
		case existing.Jurisdiction == id.JurisdictionAll && row.Jurisdiction == jurisdiction:
			resolved[row.ProductType] = row
		}
	}

	result := make([]Requirement, 0, len(resolved))
	for _, row := range resolved {
		result = append(result, row)
	}
	return result, nil
}

// CheckCompliance evaluates every requirement triggered by the order's
// line items against the session and delivery facts, records the verdict,
// and schedules a regulatory report when any applicable row demands one.
// Unmet requirements are data on the returned Check, never an error.
func (s *Service) CheckCompliance(ctx context.Context, orderID id.OrderID, jurisdiction id.Jurisdiction, delivery DeliveryFacts) (*Check, error) {
	if orderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "order id is required")
	}

	var (
		ord   *order.Order
		facts SessionFacts
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fetched, err := s.orders.GetOrder(gctx, orderID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "order not found")
			}
			return dErrors.Wrap(dErrors.CodeExternalService, "order lookup failed", err)
		}
		ord = fetched
		return nil
	})
	g.Go(func() error {
		if s.sessions == nil {
			return nil
		}
		fetched, err := s.sessions.FactsForOrder(gctx, orderID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(dErrors.CodeInternal, "session lookup failed", err)
		}
		if fetched != nil {
			facts = *fetched
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if jurisdiction == "" {
		jurisdiction = ord.DeliveryState
	}
	now := requestcontext.Now(ctx)

	check := &Check{
		ID:           id.NewCheckID(),
		OrderID:      orderID,
		Jurisdiction: jurisdiction,
		ProductTypes: ord.TriggeredProductTypes(),
		CheckedAt:    now,
	}

	evalFacts := Facts{Order: ord, Session: facts, Delivery: delivery}
	reporting := false
	for _, productType := range check.ProductTypes {
		rows, err := s.GetRequirements(ctx, jurisdiction, productType)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			check.Requirements = append(check.Requirements, row)
			if row.ReportingRequired {
				reporting = true
			}
			if row.RequiresIDScan && facts.DocumentCount == 0 {
				check.Issues = append(check.Issues,
					fmt.Sprintf("%s: identity document scan required", productType))
			}
			if row.RequiresBiometric && !facts.BiometricVerified {
				check.Issues = append(check.Issues,
					fmt.Sprintf("%s: biometric verification required", productType))
			}
			for _, name := range row.AdditionalRequirements {
				if issue := s.checks.Evaluate(name, evalFacts); issue != "" {
					check.Issues = append(check.Issues, fmt.Sprintf("%s: %s", productType, issue))
				}
			}
		}
	}
	check.Passed = len(check.Issues) == 0

	if err := s.checkLog.Append(ctx, *check); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "compliance check could not be recorded", err)
	}
	s.metrics.IncrementCheck(check.Passed)

	if s.sink != nil {
		_ = s.sink.Emit(ctx, audit.Event{
			Timestamp:    now,
			OrderID:      orderID,
			CustomerID:   ord.CustomerID,
			Jurisdiction: jurisdiction,
			Action:       audit.ActionComplianceChecked,
			Decision:     decision(check.Passed),
			Reason:       firstIssue(check.Issues),
			RequestID:    requestcontext.RequestID(ctx),
		})
	}

	if reporting {
		s.scheduleReport(ctx, *check)
	}

	s.logger.InfoContext(ctx, "compliance checked",
		"request_id", requestcontext.RequestID(ctx),
		"order_id", orderID,
		"jurisdiction", jurisdiction,
		"passed", check.Passed,
		"issues", len(check.Issues),
	)
	return check, nil
}

// scheduleReport hands a report job to the dispatcher. Report emission is
// keyed by check id, so a retried task never double-reports.
func (s *Service) scheduleReport(ctx context.Context, check Check) {
	if s.tasks == nil || s.sink == nil {
		return
	}
	requestID := requestcontext.RequestID(ctx)
	task := dispatch.Task{
		Name: "compliance-report",
		Run: func(taskCtx context.Context) error {
			return s.sink.Emit(taskCtx, audit.Event{
				Timestamp:    check.CheckedAt,
				OrderID:      check.OrderID,
				Jurisdiction: check.Jurisdiction,
				Action:       audit.ActionReportGenerated,
				Decision:     decision(check.Passed),
				Reason:       fmt.Sprintf("regulatory report for check %s", check.ID),
				RequestID:    requestID,
			})
		},
		Retryable: func(error) bool { return true },
	}
	if err := s.tasks.Enqueue(task); err != nil {
		s.logger.ErrorContext(ctx, "report job rejected",
			"request_id", requestID,
			"order_id", check.OrderID,
			"error", err,
		)
		return
	}
	s.metrics.IncrementReport()
}

// ListChecks returns the recorded verdicts for an order, newest last.
func (s *Service) ListChecks(ctx context.Context, orderID id.OrderID) ([]Check, error) {
	if orderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "order id is required")
	}
	checks, err := s.checkLog.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "check log lookup failed", err)
	}
	return checks, nil
}

func decision(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}

func firstIssue(issues []string) string {
	if len(issues) == 0 {
		return ""
	}
	return issues[0]
}
