package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"verity/internal/audit"
	"verity/internal/dispatch"
	"verity/internal/order"
	id "verity/pkg/domain"
	dErrors "verity/pkg/domain-errors"
	"verity/pkg/requestcontext"
)

type capturedQueue struct {
	tasks []dispatch.Task
}

func (q *capturedQueue) Enqueue(task dispatch.Task) error {
	q.tasks = append(q.tasks, task)
	return nil
}

type staticSessions struct {
	facts *SessionFacts
	err   error
}

func (s *staticSessions) FactsForOrder(context.Context, id.OrderID) (*SessionFacts, error) {
	return s.facts, s.err
}

type ServiceSuite struct {
	suite.Suite
	orders   *order.MemoryReader
	log      *MemoryCheckLog
	sink     *audit.MemoryStore
	queue    *capturedQueue
	sessions *staticSessions
	service  *Service
	now      time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.orders = order.NewMemoryReader()
	s.log = NewMemoryCheckLog()
	s.sink = audit.NewMemoryStore()
	s.queue = &capturedQueue{}
	s.sessions = &staticSessions{facts: &SessionFacts{}}
	s.now = time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC) // a Tuesday afternoon

	var err error
	s.service, err = NewService(
		NewSeededRequirementStore(),
		s.log,
		s.orders,
		s.sessions,
		DefaultCheckRegistry(),
		audit.NewPublisher(s.sink),
		s.queue,
		nil,
		nil,
	)
	s.Require().NoError(err)
}

func (s *ServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) TestGetRequirements() {
	s.Run("jurisdiction row replaces the wildcard row", func() {
		rows, err := s.service.GetRequirements(s.ctx(), "CA", id.ProductAlcohol)
		s.Require().NoError(err)
		s.Require().Len(rows, 1)
		s.Equal(id.Jurisdiction("CA"), rows[0].Jurisdiction)
		s.True(rows[0].RequiresBiometric)
		s.True(rows[0].ReportingRequired)
		s.Contains(rows[0].AdditionalRequirements, CheckNoSundayMorning)
	})

	s.Run("unknown jurisdiction falls back to the wildcard row", func() {
		rows, err := s.service.GetRequirements(s.ctx(), "ZZ", id.ProductPrescription)
		s.Require().NoError(err)
		s.Require().Len(rows, 1)
		s.Equal(id.JurisdictionAll, rows[0].Jurisdiction)
	})

	s.Run("no product filter returns one row per product type", func() {
		rows, err := s.service.GetRequirements(s.ctx(), "CA", "")
		s.Require().NoError(err)
		byType := make(map[id.ProductType]Requirement, len(rows))
		for _, row := range rows {
			_, dup := byType[row.ProductType]
			s.False(dup, "duplicate row for %s", row.ProductType)
			byType[row.ProductType] = row
		}
		s.Equal(id.Jurisdiction("CA"), byType[id.ProductAlcohol].Jurisdiction)
		s.Equal(id.JurisdictionAll, byType[id.ProductTobacco].Jurisdiction)
	})

	s.Run("empty jurisdiction is rejected", func() {
		_, err := s.service.GetRequirements(s.ctx(), "", id.ProductAlcohol)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *ServiceSuite) alcoholOrder(state id.Jurisdiction) *order.Order {
	o := &order.Order{
		ID:            id.NewOrderID(),
		CustomerID:    id.NewCustomerID(),
		DeliveryState: state,
		LineItems: []order.LineItem{
			{ItemID: "sku-1", Name: "Pinot Noir", Quantity: 2, AgeRestricted: true, MinimumAge: 21, ProductType: id.ProductAlcohol},
			{ItemID: "sku-2", Name: "Sparkling Water", Quantity: 6},
		},
	}
	s.orders.Put(o)
	return o
}

func (s *ServiceSuite) TestCheckCompliance() {
	delivery := DeliveryFacts{
		At:                 s.now.Add(3 * time.Hour),
		DriverLicensed:     true,
		SignatureCommitted: true,
	}

	s.Run("passes with full evidence", func() {
		o := s.alcoholOrder("CA")
		s.sessions.facts = &SessionFacts{DocumentCount: 1, BiometricVerified: true}

		check, err := s.service.CheckCompliance(s.ctx(), o.ID, "", delivery)
		s.Require().NoError(err)
		s.True(check.Passed)
		s.Empty(check.Issues)
		s.Equal(id.Jurisdiction("CA"), check.Jurisdiction)
		s.Equal([]id.ProductType{id.ProductAlcohol}, check.ProductTypes)
	})

	s.Run("missing evidence surfaces as issues, not errors", func() {
		o := s.alcoholOrder("CA")
		s.sessions.facts = &SessionFacts{}

		check, err := s.service.CheckCompliance(s.ctx(), o.ID, "", delivery)
		s.Require().NoError(err)
		s.False(check.Passed)
		s.Contains(check.Issues, "alcohol: identity document scan required")
		s.Contains(check.Issues, "alcohol: biometric verification required")
	})

	s.Run("sunday morning delivery fails in CA", func() {
		o := s.alcoholOrder("CA")
		s.sessions.facts = &SessionFacts{DocumentCount: 1, BiometricVerified: true}
		sundayMorning := delivery
		sundayMorning.At = time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC) // Sunday 10:00

		check, err := s.service.CheckCompliance(s.ctx(), o.ID, "", sundayMorning)
		s.Require().NoError(err)
		s.False(check.Passed)
		s.Contains(check.Issues, "alcohol: delivery is not permitted on Sunday mornings")
	})

	s.Run("same order passes outside CA without biometric", func() {
		o := s.alcoholOrder("TX")
		s.sessions.facts = &SessionFacts{DocumentCount: 1}

		check, err := s.service.CheckCompliance(s.ctx(), o.ID, "", delivery)
		s.Require().NoError(err)
		s.True(check.Passed)
	})

	s.Run("verdict is appended to the check log and audited", func() {
		o := s.alcoholOrder("CA")
		s.sessions.facts = &SessionFacts{DocumentCount: 1, BiometricVerified: true}

		check, err := s.service.CheckCompliance(s.ctx(), o.ID, "", delivery)
		s.Require().NoError(err)

		logged, err := s.log.ListByOrder(s.ctx(), o.ID)
		s.Require().NoError(err)
		s.Require().Len(logged, 1)
		s.Equal(check.ID, logged[0].ID)

		events, err := s.sink.ListByOrder(s.ctx(), o.ID)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(audit.ActionComplianceChecked, events[0].Action)
	})

	s.Run("reporting requirement schedules a report job", func() {
		o := s.alcoholOrder("CA") // CA alcohol row has reportingRequired
		s.sessions.facts = &SessionFacts{DocumentCount: 1, BiometricVerified: true}
		before := len(s.queue.tasks)

		_, err := s.service.CheckCompliance(s.ctx(), o.ID, "", delivery)
		s.Require().NoError(err)
		s.Require().Len(s.queue.tasks, before+1)

		task := s.queue.tasks[len(s.queue.tasks)-1]
		s.Equal("compliance-report", task.Name)
		s.Require().NoError(task.Run(s.ctx()))

		events, err := s.sink.ListByOrder(s.ctx(), o.ID)
		s.Require().NoError(err)
		var actions []audit.Action
		for _, e := range events {
			actions = append(actions, e.Action)
		}
		s.Contains(actions, audit.ActionReportGenerated)
	})

	s.Run("no report job outside reporting jurisdictions", func() {
		o := s.alcoholOrder("TX")
		s.sessions.facts = &SessionFacts{DocumentCount: 1}
		before := len(s.queue.tasks)

		_, err := s.service.CheckCompliance(s.ctx(), o.ID, "", delivery)
		s.Require().NoError(err)
		s.Len(s.queue.tasks, before)
	})

	s.Run("unknown order is NotFound", func() {
		_, err := s.service.CheckCompliance(s.ctx(), id.NewOrderID(), "", delivery)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestPrescriptionChecks() {
	o := &order.Order{
		ID:            id.NewOrderID(),
		CustomerID:    id.NewCustomerID(),
		DeliveryState: "NY",
		LineItems: []order.LineItem{
			{ItemID: "sku-9", Name: "Amoxicillin", Quantity: 1, RequiresPrescription: true, ProductType: id.ProductPrescription},
		},
	}
	s.orders.Put(o)
	delivery := DeliveryFacts{At: s.now.Add(time.Hour), SignatureCommitted: true, DriverLicensed: true}

	s.Run("unverified prescription is an issue", func() {
		s.sessions.facts = &SessionFacts{DocumentCount: 1}
		check, err := s.service.CheckCompliance(s.ctx(), o.ID, "", delivery)
		s.Require().NoError(err)
		s.False(check.Passed)
		s.Contains(check.Issues, "prescription: no valid prescription on the verification session")
	})

	s.Run("verified prescription and prescriber pass", func() {
		s.sessions.facts = &SessionFacts{DocumentCount: 1, PrescriptionVerified: true, PrescriberVerified: true}
		check, err := s.service.CheckCompliance(s.ctx(), o.ID, "", delivery)
		s.Require().NoError(err)
		s.True(check.Passed)
	})
}
