package compliance

import (
	"context"
	"sync"

	id "verity/pkg/domain"
)

type requirementKey struct {
	jurisdiction id.Jurisdiction
	productType  id.ProductType
}

// MemoryRequirementStore is the in-process policy table, used directly in
// dev and tests and as the backing store behind the TTL cache in
// production.
type MemoryRequirementStore struct {
	mu   sync.RWMutex
	rows map[requirementKey]Requirement
}

func NewMemoryRequirementStore() *MemoryRequirementStore {
	return &MemoryRequirementStore{rows: make(map[requirementKey]Requirement)}
}

// NewSeededRequirementStore returns a memory store preloaded with the
// default policy table.
func NewSeededRequirementStore() *MemoryRequirementStore {
	store := NewMemoryRequirementStore()
	for _, row := range DefaultRequirements() {
		_ = store.Upsert(context.Background(), row)
	}
	return store
}

func (s *MemoryRequirementStore) List(_ context.Context, jurisdiction id.Jurisdiction, productType id.ProductType) ([]Requirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []Requirement
	for key, row := range s.rows {
		if key.jurisdiction != jurisdiction && key.jurisdiction != id.JurisdictionAll {
			continue
		}
		if productType != "" && key.productType != productType {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *MemoryRequirementStore) Upsert(_ context.Context, requirement Requirement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := requirementKey{jurisdiction: requirement.Jurisdiction, productType: requirement.ProductType}
	s.rows[key] = requirement
	return nil
}

// DefaultRequirements is the baseline policy table. Wildcard rows cover
// every jurisdiction; state rows replace them wholesale where stricter
// rules apply.
func DefaultRequirements() []Requirement {
	return []Requirement{
		{
			Jurisdiction:        id.JurisdictionAll,
			ProductType:         id.ProductAlcohol,
			MinimumAge:          21,
			RequiresIDScan:      true,
			RecordRetentionDays: 365,
			AdditionalRequirements: []string{
				CheckDeliveryWindow,
				CheckSignatureRequired,
			},
		},
		{
			Jurisdiction:        "CA",
			ProductType:         id.ProductAlcohol,
			MinimumAge:          21,
			RequiresIDScan:      true,
			RequiresBiometric:   true,
			RecordRetentionDays: 730,
			ReportingRequired:   true,
			AdditionalRequirements: []string{
				CheckDeliveryWindow,
				CheckSignatureRequired,
				CheckNoSundayMorning,
			},
		},
		{
			Jurisdiction:        id.JurisdictionAll,
			ProductType:         id.ProductTobacco,
			MinimumAge:          21,
			RequiresIDScan:      true,
			RecordRetentionDays: 365,
			AdditionalRequirements: []string{
				CheckSignatureRequired,
			},
		},
		{
			Jurisdiction:        id.JurisdictionAll,
			ProductType:         id.ProductCannabis,
			MinimumAge:          21,
			RequiresIDScan:      true,
			RequiresBiometric:   true,
			RecordRetentionDays: 730,
			ReportingRequired:   true,
			AdditionalRequirements: []string{
				CheckLicensedDeliveryOnly,
				CheckQuantityLimits,
				CheckMedicalCard,
			},
		},
		{
			Jurisdiction:        id.JurisdictionAll,
			ProductType:         id.ProductPrescription,
			MinimumAge:          18,
			RequiresIDScan:      true,
			RecordRetentionDays: 1825,
			ReportingRequired:   true,
			AdditionalRequirements: []string{
				CheckValidPrescription,
				CheckPrescriberVerified,
			},
		},
	}
}

// MemoryCheckLog keeps compliance verdicts in memory for dev and tests.
type MemoryCheckLog struct {
	mu     sync.RWMutex
	checks []Check
}

func NewMemoryCheckLog() *MemoryCheckLog {
	return &MemoryCheckLog{}
}

func (l *MemoryCheckLog) Append(_ context.Context, check Check) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.checks = append(l.checks, check)
	return nil
}

func (l *MemoryCheckLog) ListByOrder(_ context.Context, orderID id.OrderID) ([]Check, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var matched []Check
	for _, check := range l.checks {
		if check.OrderID == orderID {
			matched = append(matched, check)
		}
	}
	return matched, nil
}
