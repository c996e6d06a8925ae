package prescription

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"verity/internal/audit"
	"verity/internal/evidence/extract"
	"verity/internal/order"
	"verity/pkg/cache"
	id "verity/pkg/domain"
)

type VerifierSuite struct {
	suite.Suite
	registry *MemoryRegistry
	store    *MemoryStore
	sink     *audit.MemoryStore
	verifier *Verifier
	now      time.Time
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) SetupTest() {
	s.registry = NewMemoryRegistry()
	s.store = NewMemoryStore()
	s.sink = audit.NewMemoryStore()
	s.now = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	var err error
	s.verifier, err = NewVerifier(s.registry, s.store, audit.NewPublisher(s.sink))
	s.Require().NoError(err)

	s.Require().NoError(s.registry.Register(context.Background(), Prescriber{
		Name:             "DR ALICE WONG",
		LicenseNumber:    "A123456",
		Active:           true,
		LicenseExpiresAt: s.now.AddDate(2, 0, 0),
	}))
}

func (s *VerifierSuite) orderWith(items ...order.LineItem) *order.Order {
	return &order.Order{
		ID:            id.NewOrderID(),
		CustomerID:    id.NewCustomerID(),
		LineItems:     items,
		DeliveryState: "CA",
	}
}

func (s *VerifierSuite) validFields() extract.Fields {
	return extract.Fields{
		Medications:       []string{"Amoxicillin 500mg"},
		PrescriberName:    "DR ALICE WONG",
		PrescriberLicense: "A123456",
		ExpiresAt:         s.now.AddDate(0, 2, 0),
	}
}

func (s *VerifierSuite) TestVerify() {
	ctx := context.Background()
	rxItem := order.LineItem{Name: "Amoxicillin", RequiresPrescription: true}

	s.Run("valid prescription passes", func() {
		result := s.verifier.Verify(ctx, s.orderWith(rxItem), s.validFields(), s.now)
		s.True(result.Passed)
		s.Empty(result.FailureReasons)
	})

	s.Run("medication match is case-insensitive substring", func() {
		fields := s.validFields()
		fields.Medications = []string{"AMOXICILLIN 500MG CAPSULES"}
		result := s.verifier.Verify(ctx, s.orderWith(rxItem), fields, s.now)
		s.True(result.Passed)
	})

	s.Run("uncovered medication fails", func() {
		other := order.LineItem{Name: "Oxycodone", RequiresPrescription: true}
		result := s.verifier.Verify(ctx, s.orderWith(rxItem, other), s.validFields(), s.now)
		s.False(result.Passed)
		s.Contains(result.FailureReasons, "no prescription found for Oxycodone")
	})

	s.Run("expired prescription fails", func() {
		fields := s.validFields()
		fields.ExpiresAt = s.now.AddDate(0, -1, 0)
		result := s.verifier.Verify(ctx, s.orderWith(rxItem), fields, s.now)
		s.False(result.Passed)
		s.Contains(result.FailureReasons, "prescription expired")
	})

	s.Run("unknown prescriber fails", func() {
		fields := s.validFields()
		fields.PrescriberName = "DR NOBODY"
		fields.PrescriberLicense = "Z999999"
		result := s.verifier.Verify(ctx, s.orderWith(rxItem), fields, s.now)
		s.False(result.Passed)
	})

	s.Run("prescriber matched by name when license missing", func() {
		fields := s.validFields()
		fields.PrescriberLicense = ""
		result := s.verifier.Verify(ctx, s.orderWith(rxItem), fields, s.now)
		s.True(result.Passed)
	})

	s.Run("non-prescription items are ignored", func() {
		wine := order.LineItem{Name: "Pinot Noir", AgeRestricted: true}
		result := s.verifier.Verify(ctx, s.orderWith(rxItem, wine), s.validFields(), s.now)
		s.True(result.Passed)
	})

	s.Run("deactivated prescriber fails", func() {
		s.Require().NoError(s.registry.Deactivate(ctx, "A123456"))
		result := s.verifier.Verify(ctx, s.orderWith(rxItem), s.validFields(), s.now)
		s.False(result.Passed)
	})
}

func (s *VerifierSuite) TestCheckRefill() {
	ctx := context.Background()

	save := func(schedule Schedule, refills int) id.PrescriptionID {
		record := Record{
			ID:                id.NewPrescriptionID(),
			CustomerID:        id.NewCustomerID(),
			Medication:        "TestMed",
			Schedule:          schedule,
			AuthorizedRefills: refills,
			IssuedAt:          s.now.AddDate(0, -3, 0),
			ExpiresAt:         s.now.AddDate(0, 9, 0),
		}
		s.Require().NoError(s.store.SaveRecord(ctx, record))
		return record.ID
	}

	s.Run("schedule II never eligible", func() {
		rxID := save(ScheduleII, 5)
		result, err := s.verifier.CheckRefill(ctx, rxID, "TestMed", s.now)
		s.Require().NoError(err)
		s.False(result.Eligible)
		s.Equal(0, result.RemainingRefills)
	})

	s.Run("remaining is authorized minus fills", func() {
		rxID := save(ScheduleNone, 3)
		s.Require().NoError(s.store.RecordFill(ctx, Fill{
			PrescriptionID: rxID, Medication: "TestMed", FilledAt: s.now.AddDate(0, -2, 0),
		}))
		result, err := s.verifier.CheckRefill(ctx, rxID, "TestMed", s.now)
		s.Require().NoError(err)
		s.True(result.Eligible)
		s.Equal(2, result.RemainingRefills)
	})

	s.Run("schedule III enforces 30 day interval", func() {
		rxID := save(ScheduleIII, 3)
		s.Require().NoError(s.store.RecordFill(ctx, Fill{
			PrescriptionID: rxID, Medication: "TestMed", FilledAt: s.now.AddDate(0, 0, -20),
		}))
		result, err := s.verifier.CheckRefill(ctx, rxID, "TestMed", s.now)
		s.Require().NoError(err)
		s.False(result.Eligible)
		s.Equal(2, result.RemainingRefills)
	})

	s.Run("schedule V enforces 15 day interval", func() {
		rxID := save(ScheduleV, 3)
		s.Require().NoError(s.store.RecordFill(ctx, Fill{
			PrescriptionID: rxID, Medication: "TestMed", FilledAt: s.now.AddDate(0, 0, -16),
		}))
		result, err := s.verifier.CheckRefill(ctx, rxID, "TestMed", s.now)
		s.Require().NoError(err)
		s.True(result.Eligible)
	})

	s.Run("exhausted refills not eligible", func() {
		rxID := save(ScheduleNone, 1)
		s.Require().NoError(s.store.RecordFill(ctx, Fill{
			PrescriptionID: rxID, Medication: "TestMed", FilledAt: s.now.AddDate(0, -2, 0),
		}))
		result, err := s.verifier.CheckRefill(ctx, rxID, "TestMed", s.now)
		s.Require().NoError(err)
		s.False(result.Eligible)
		s.Equal(0, result.RemainingRefills)
	})

	s.Run("expired prescription not eligible", func() {
		record := Record{
			ID:                id.NewPrescriptionID(),
			Medication:        "TestMed",
			AuthorizedRefills: 3,
			ExpiresAt:         s.now.AddDate(0, -1, 0),
		}
		s.Require().NoError(s.store.SaveRecord(ctx, record))
		result, err := s.verifier.CheckRefill(ctx, record.ID, "TestMed", s.now)
		s.Require().NoError(err)
		s.False(result.Eligible)
		s.Equal("prescription expired", result.Reason)
	})
}

func (s *VerifierSuite) TestRecordDispense() {
	ctx := context.Background()

	s.Run("schedule II dispense is reported", func() {
		record := Record{
			ID:         id.NewPrescriptionID(),
			CustomerID: id.NewCustomerID(),
			Medication: "Oxycodone 5mg",
			Schedule:   ScheduleII,
		}
		orderID := id.NewOrderID()
		s.Require().NoError(s.verifier.RecordDispense(ctx, record, orderID, s.now))

		events, err := s.sink.ListByOrder(ctx, orderID)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(audit.ActionControlledDispense, events[0].Action)
	})

	s.Run("uncontrolled dispense is not reported", func() {
		record := Record{
			ID:         id.NewPrescriptionID(),
			Medication: "Amoxicillin",
			Schedule:   ScheduleNone,
		}
		orderID := id.NewOrderID()
		s.Require().NoError(s.verifier.RecordDispense(ctx, record, orderID, s.now))

		events, err := s.sink.ListByOrder(ctx, orderID)
		s.Require().NoError(err)
		s.Empty(events)
	})
}

func (s *VerifierSuite) TestCachedRegistryInvalidation() {
	ctx := context.Background()
	cacheStore := cache.NewMemory()
	cached := NewCachedRegistry(s.registry, cacheStore, time.Minute)

	// Prime the cache.
	p, err := cached.Find(ctx, "A123456")
	s.Require().NoError(err)
	s.True(p.Active)

	// Deactivation must be visible immediately, not after TTL.
	s.Require().NoError(cached.Deactivate(ctx, "A123456"))
	p, err = cached.Find(ctx, "A123456")
	s.Require().NoError(err)
	s.False(p.Active)
}
