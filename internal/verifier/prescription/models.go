package prescription

import (
	"time"

	id "verity/pkg/domain"
)

// Schedule is the controlled-substance schedule of a medication. Empty
// means uncontrolled.
type Schedule string

const (
	ScheduleII   Schedule = "II"
	ScheduleIII  Schedule = "III"
	ScheduleIV   Schedule = "IV"
	ScheduleV    Schedule = "V"
	ScheduleNone Schedule = ""
)

// Reportable reports whether dispensing this schedule must produce a
// compliance report.
func (s Schedule) Reportable() bool {
	return s == ScheduleII || s == ScheduleIII
}

// Prescriber is one entry in the prescriber registry.
type Prescriber struct {
	Name             string
	LicenseNumber    string
	Active           bool
	LicenseExpiresAt time.Time
}

// Valid reports whether the prescriber may currently prescribe.
func (p Prescriber) Valid(now time.Time) bool {
	if !p.Active {
		return false
	}
	if !p.LicenseExpiresAt.IsZero() && p.LicenseExpiresAt.Before(now) {
		return false
	}
	return true
}

// Record is a stored prescription with its refill authorization.
type Record struct {
	ID                id.PrescriptionID
	CustomerID        id.CustomerID
	Medication        string
	Schedule          Schedule
	AuthorizedRefills int
	IssuedAt          time.Time
	ExpiresAt         time.Time
}

// Fill is one historical dispense of a prescription.
type Fill struct {
	PrescriptionID id.PrescriptionID
	Medication     string
	FilledAt       time.Time
	SupplyDays     int
}

// RefillResult is the verdict of one refill-eligibility check.
type RefillResult struct {
	Eligible         bool
	RemainingRefills int
	NextEligibleAt   time.Time
	Reason           string
}
