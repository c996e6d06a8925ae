package compliance

import (
	"fmt"
	"time"

	"verity/internal/order"
)

// Facts is everything a named requirement check may consult.
type Facts struct {
	Order    *order.Order
	Session  SessionFacts
	Delivery DeliveryFacts
}

// CheckFunc evaluates one named requirement against the collected facts.
// An empty return means the requirement holds; otherwise the returned
// string is the issue recorded on the compliance check.
type CheckFunc func(facts Facts) string

// CheckRegistry maps requirement names to their check functions. Checks
// are registered at startup; an unregistered name fails closed with an
// issue naming the gap rather than silently passing.
type CheckRegistry struct {
	checks map[string]CheckFunc
}

func NewCheckRegistry() *CheckRegistry {
	return &CheckRegistry{checks: make(map[string]CheckFunc)}
}

// Register adds a named check. Registering the same name twice is a
// wiring bug and is rejected.
func (r *CheckRegistry) Register(name string, check CheckFunc) error {
	if name == "" || check == nil {
		return fmt.Errorf("check registration requires a name and a function")
	}
	if _, exists := r.checks[name]; exists {
		return fmt.Errorf("check %q already registered", name)
	}
	r.checks[name] = check
	return nil
}

// Evaluate runs the named check. Unknown names produce an issue so a
// policy row referencing a missing check can never pass unverified.
func (r *CheckRegistry) Evaluate(name string, facts Facts) string {
	check, ok := r.checks[name]
	if !ok {
		return fmt.Sprintf("requirement %q has no registered check", name)
	}
	return check(facts)
}

// Restricted-delivery window and quantity constants. These mirror the
// strictest state rules currently served; per-jurisdiction overrides
// belong in requirement rows, not here.
const (
	deliveryWindowOpenHour  = 8
	deliveryWindowCloseHour = 21
	sundayMorningEndHour    = 12
	maxRestrictedUnits      = 12
)

const (
	CheckDeliveryWindow       = "delivery-window"
	CheckSignatureRequired    = "signature-required"
	CheckNoSundayMorning      = "no-sunday-morning-delivery"
	CheckLicensedDeliveryOnly = "licensed-delivery-only"
	CheckMedicalCard          = "medical-card-verification"
	CheckQuantityLimits       = "quantity-limits"
	CheckValidPrescription    = "valid-prescription"
	CheckPrescriberVerified   = "prescriber-verification"
)

// DefaultCheckRegistry returns the registry with every built-in named
// check installed.
func DefaultCheckRegistry() *CheckRegistry {
	r := NewCheckRegistry()
	mustRegister := func(name string, check CheckFunc) {
		if err := r.Register(name, check); err != nil {
			panic(err)
		}
	}

	mustRegister(CheckDeliveryWindow, checkDeliveryWindow)
	mustRegister(CheckSignatureRequired, checkSignatureRequired)
	mustRegister(CheckNoSundayMorning, checkNoSundayMorning)
	mustRegister(CheckLicensedDeliveryOnly, checkLicensedDeliveryOnly)
	mustRegister(CheckMedicalCard, checkMedicalCard)
	mustRegister(CheckQuantityLimits, checkQuantityLimits)
	mustRegister(CheckValidPrescription, checkValidPrescription)
	mustRegister(CheckPrescriberVerified, checkPrescriberVerified)
	return r
}

func checkDeliveryWindow(facts Facts) string {
	at := facts.Delivery.At
	if at.IsZero() {
		return ""
	}
	hour := at.Hour()
	if hour < deliveryWindowOpenHour || hour >= deliveryWindowCloseHour {
		return fmt.Sprintf("delivery scheduled at %02d:00 is outside the %02d:00-%02d:00 window",
			hour, deliveryWindowOpenHour, deliveryWindowCloseHour)
	}
	return ""
}

func checkSignatureRequired(facts Facts) string {
	if !facts.Delivery.SignatureCommitted {
		return "recipient signature capture is required at handoff"
	}
	return ""
}

func checkNoSundayMorning(facts Facts) string {
	at := facts.Delivery.At
	if at.IsZero() {
		return ""
	}
	if at.Weekday() == time.Sunday && at.Hour() < sundayMorningEndHour {
		return "delivery is not permitted on Sunday mornings"
	}
	return ""
}

func checkLicensedDeliveryOnly(facts Facts) string {
	if !facts.Delivery.DriverLicensed {
		return "order must be carried by a licensed delivery driver"
	}
	return ""
}

func checkMedicalCard(facts Facts) string {
	if !facts.Delivery.MedicalCardOnFile {
		return "a verified medical card is required for this order"
	}
	return ""
}

func checkQuantityLimits(facts Facts) string {
	if facts.Order == nil {
		return ""
	}
	units := 0
	for _, item := range facts.Order.LineItems {
		if item.AgeRestricted || item.RequiresPrescription {
			units += item.Quantity
		}
	}
	if units > maxRestrictedUnits {
		return fmt.Sprintf("order contains %d restricted units, limit is %d", units, maxRestrictedUnits)
	}
	return ""
}

func checkValidPrescription(facts Facts) string {
	if !facts.Session.PrescriptionVerified {
		return "no valid prescription on the verification session"
	}
	return ""
}

func checkPrescriberVerified(facts Facts) string {
	if !facts.Session.PrescriberVerified {
		return "prescriber could not be verified against the registry"
	}
	return ""
}
