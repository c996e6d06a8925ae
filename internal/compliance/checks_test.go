package compliance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verity/internal/order"
)

func TestCheckRegistry(t *testing.T) {
	t.Run("rejects duplicate registration", func(t *testing.T) {
		r := NewCheckRegistry()
		require.NoError(t, r.Register("x", func(Facts) string { return "" }))
		require.Error(t, r.Register("x", func(Facts) string { return "" }))
	})

	t.Run("rejects empty name and nil func", func(t *testing.T) {
		r := NewCheckRegistry()
		require.Error(t, r.Register("", func(Facts) string { return "" }))
		require.Error(t, r.Register("y", nil))
	})

	t.Run("unknown check fails closed", func(t *testing.T) {
		r := NewCheckRegistry()
		issue := r.Evaluate("no-such-check", Facts{})
		assert.Contains(t, issue, "no registered check")
	})
}

func TestNamedChecks(t *testing.T) {
	registry := DefaultCheckRegistry()
	tuesday14 := time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC)
	tuesday23 := time.Date(2026, 8, 25, 23, 0, 0, 0, time.UTC)
	sunday9 := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	sunday14 := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)

	bigOrder := &order.Order{LineItems: []order.LineItem{
		{Name: "Vodka", Quantity: 13, AgeRestricted: true, ProductType: "alcohol"},
	}}

	tests := []struct {
		name      string
		check     string
		facts     Facts
		wantIssue bool
	}{
		{"window ok", CheckDeliveryWindow, Facts{Delivery: DeliveryFacts{At: tuesday14}}, false},
		{"window late", CheckDeliveryWindow, Facts{Delivery: DeliveryFacts{At: tuesday23}}, true},
		{"window unscheduled", CheckDeliveryWindow, Facts{}, false},
		{"sunday morning blocked", CheckNoSundayMorning, Facts{Delivery: DeliveryFacts{At: sunday9}}, true},
		{"sunday afternoon ok", CheckNoSundayMorning, Facts{Delivery: DeliveryFacts{At: sunday14}}, false},
		{"weekday morning ok", CheckNoSundayMorning, Facts{Delivery: DeliveryFacts{At: tuesday14}}, false},
		{"signature missing", CheckSignatureRequired, Facts{}, true},
		{"signature committed", CheckSignatureRequired, Facts{Delivery: DeliveryFacts{SignatureCommitted: true}}, false},
		{"unlicensed driver", CheckLicensedDeliveryOnly, Facts{}, true},
		{"licensed driver", CheckLicensedDeliveryOnly, Facts{Delivery: DeliveryFacts{DriverLicensed: true}}, false},
		{"no medical card", CheckMedicalCard, Facts{}, true},
		{"over quantity limit", CheckQuantityLimits, Facts{Order: bigOrder}, true},
		{"no order quantity ok", CheckQuantityLimits, Facts{}, false},
		{"prescription unverified", CheckValidPrescription, Facts{}, true},
		{"prescription verified", CheckValidPrescription, Facts{Session: SessionFacts{PrescriptionVerified: true}}, false},
		{"prescriber unverified", CheckPrescriberVerified, Facts{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issue := registry.Evaluate(tt.check, tt.facts)
			if tt.wantIssue {
				assert.NotEmpty(t, issue)
			} else {
				assert.Empty(t, issue)
			}
		})
	}
}
