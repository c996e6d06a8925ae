package prescription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"verity/internal/audit"
	"verity/internal/evidence/extract"
	"verity/internal/order"
	id "verity/pkg/domain"
	"verity/pkg/platform/sentinel"
)

// Result is the verdict of validating a prescription document against an
// order.
type Result struct {
	Passed         bool
	FailureReasons []string
}

// Verifier validates prescription documents and refill eligibility.
type Verifier struct {
	registry Registry
	store    Store
	sink     audit.Sink

	// uncontrolledSupplyDays is the minimum interval between fills of an
	// uncontrolled medication.
	uncontrolledSupplyDays int
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithUncontrolledSupplyDays overrides the default 30-day supply interval
// for uncontrolled medications.
func WithUncontrolledSupplyDays(days int) Option {
	return func(v *Verifier) {
		if days > 0 {
			v.uncontrolledSupplyDays = days
		}
	}
}

// NewVerifier constructs a prescription verifier.
func NewVerifier(registry Registry, store Store, sink audit.Sink, opts ...Option) (*Verifier, error) {
	if registry == nil {
		return nil, fmt.Errorf("prescriber registry is required")
	}
	if store == nil {
		return nil, fmt.Errorf("prescription store is required")
	}
	v := &Verifier{
		registry:               registry,
		store:                  store,
		sink:                   sink,
		uncontrolledSupplyDays: 30,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify checks the extracted prescription fields against the order's
// controlled items. Every line item flagged requires_prescription needs a
// case-insensitive substring match among the extracted medication names;
// the prescription must be unexpired; and the prescriber must resolve to
// an active, unexpired registry entry by name or license number.
func (v *Verifier) Verify(ctx context.Context, ord *order.Order, fields extract.Fields, now time.Time) Result {
	var reasons []string

	for _, item := range ord.LineItems {
		if !item.RequiresPrescription {
			continue
		}
		if !medicationCovered(item.Name, fields.Medications) {
			reasons = append(reasons, fmt.Sprintf("no prescription found for %s", item.Name))
		}
	}

	if fields.ExpiresAt.IsZero() {
		reasons = append(reasons, "prescription has no expiry date")
	} else if fields.ExpiresAt.Before(now) {
		reasons = append(reasons, "prescription expired")
	}

	if reason := v.checkPrescriber(ctx, fields, now); reason != "" {
		reasons = append(reasons, reason)
	}

	return Result{Passed: len(reasons) == 0, FailureReasons: reasons}
}

// medicationCovered applies the case-insensitive substring rule in both
// directions so "Amoxicillin 500mg" on the scan covers the order line
// "Amoxicillin" and vice versa.
func medicationCovered(itemName string, medications []string) bool {
	item := strings.ToLower(strings.TrimSpace(itemName))
	if item == "" {
		return false
	}
	for _, med := range medications {
		med = strings.ToLower(strings.TrimSpace(med))
		if med == "" {
			continue
		}
		if strings.Contains(med, item) || strings.Contains(item, med) {
			return true
		}
	}
	return false
}

func (v *Verifier) checkPrescriber(ctx context.Context, fields extract.Fields, now time.Time) string {
	key := fields.PrescriberLicense
	if key == "" {
		key = fields.PrescriberName
	}
	if key == "" {
		return "prescription names no prescriber"
	}

	prescriber, err := v.registry.Find(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return fmt.Sprintf("prescriber %s not found in registry", key)
		}
		return "prescriber registry unavailable"
	}
	if !prescriber.Valid(now) {
		return fmt.Sprintf("prescriber %s is inactive or license expired", prescriber.Name)
	}
	return ""
}

// minimum inter-refill intervals by schedule
const (
	scheduleIIIInterval = 30 * 24 * time.Hour
	scheduleVInterval   = 15 * 24 * time.Hour
)

// CheckRefill computes refill eligibility for one medication on one
// prescription. Remaining refills are authorized minus historical fills;
// a schedule-dependent minimum interval applies since the last fill.
// Schedule II never refills.
func (v *Verifier) CheckRefill(ctx context.Context, prescriptionID id.PrescriptionID, medication string, now time.Time) (*RefillResult, error) {
	record, err := v.store.FindRecord(ctx, prescriptionID)
	if err != nil {
		return nil, err
	}

	if record.Schedule == ScheduleII {
		return &RefillResult{
			Eligible:         false,
			RemainingRefills: 0,
			Reason:           "schedule II prescriptions cannot be refilled",
		}, nil
	}

	fills, err := v.store.ListFills(ctx, prescriptionID, medication)
	if err != nil {
		return nil, err
	}

	remaining := record.AuthorizedRefills - len(fills)
	if remaining < 0 {
		remaining = 0
	}
	result := &RefillResult{RemainingRefills: remaining}

	if !record.ExpiresAt.IsZero() && record.ExpiresAt.Before(now) {
		result.Reason = "prescription expired"
		return result, nil
	}
	if remaining == 0 {
		result.Reason = "no refills remaining"
		return result, nil
	}

	interval := v.refillInterval(record.Schedule)
	var lastFill time.Time
	for _, fill := range fills {
		if fill.FilledAt.After(lastFill) {
			lastFill = fill.FilledAt
		}
	}
	if !lastFill.IsZero() {
		next := lastFill.Add(interval)
		if now.Before(next) {
			result.NextEligibleAt = next
			result.Reason = fmt.Sprintf("refill available %s", next.Format("2006-01-02"))
			return result, nil
		}
	}

	result.Eligible = true
	return result, nil
}

func (v *Verifier) refillInterval(schedule Schedule) time.Duration {
	switch schedule {
	case ScheduleIII, ScheduleIV:
		return scheduleIIIInterval
	case ScheduleV:
		return scheduleVInterval
	default:
		return time.Duration(v.uncontrolledSupplyDays) * 24 * time.Hour
	}
}

// RegisterRecord stores a dispensable prescription record, assigning an
// ID when the caller did not.
func (v *Verifier) RegisterRecord(ctx context.Context, record Record) (Record, error) {
	if record.ID.IsNil() {
		record.ID = id.NewPrescriptionID()
	}
	if err := v.store.SaveRecord(ctx, record); err != nil {
		return Record{}, err
	}
	return record, nil
}

// Dispense resolves the record and books the fill against the order.
func (v *Verifier) Dispense(ctx context.Context, prescriptionID id.PrescriptionID, orderID id.OrderID, now time.Time) error {
	record, err := v.store.FindRecord(ctx, prescriptionID)
	if err != nil {
		return err
	}
	return v.RecordDispense(ctx, *record, orderID, now)
}

// RecordDispense records a fill and, for schedule II/III substances,
// emits the reportable event the compliance collaborator consumes.
func (v *Verifier) RecordDispense(ctx context.Context, record Record, orderID id.OrderID, now time.Time) error {
	fill := Fill{
		PrescriptionID: record.ID,
		Medication:     record.Medication,
		FilledAt:       now,
	}
	if err := v.store.RecordFill(ctx, fill); err != nil {
		return err
	}

	if record.Schedule.Reportable() && v.sink != nil {
		_ = v.sink.Emit(ctx, audit.Event{
			Timestamp:  now,
			OrderID:    orderID,
			CustomerID: record.CustomerID,
			Action:     audit.ActionControlledDispense,
			Decision:   "dispensed",
			Reason:     fmt.Sprintf("schedule %s: %s", record.Schedule, record.Medication),
		})
	}
	return nil
}
