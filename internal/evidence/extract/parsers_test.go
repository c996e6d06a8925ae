package extract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const licenseScan = `NAME: JANE A DOE
DOB: 1990-06-15
DL NO: D1234567
EXP: 2027-03-01
STATE: CA
SEC: HOLOGRAM, UV, MICROPRINT`

func TestParseDriversLicense(t *testing.T) {
	fields := ParseDriversLicense(licenseScan)

	assert.Equal(t, "JANE A DOE", fields.FullName)
	assert.Equal(t, time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC), fields.DateOfBirth)
	assert.Equal(t, "D1234567", fields.DocumentNumber)
	assert.Equal(t, time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC), fields.ExpiresAt)
	assert.Equal(t, "CA", fields.IssuingRegion)
	assert.ElementsMatch(t,
		[]SecurityFeature{FeatureHologram, FeatureUVMarkers, FeatureMicroprint},
		fields.SecurityFeatures)
}

func TestParseDriversLicense_AlternateDateLayout(t *testing.T) {
	fields := ParseDriversLicense("DOB: 06/15/1990\nEXP: 03/01/2027")
	assert.Equal(t, time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC), fields.DateOfBirth)
	assert.Equal(t, time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC), fields.ExpiresAt)
}

func TestParsePassport(t *testing.T) {
	fields := ParsePassport(`NAME: DOE JANE
PASSPORT NO: P987654
DOB: 1985-01-30
EXP: 2030-01-30
COUNTRY: USA`)

	assert.Equal(t, "P987654", fields.DocumentNumber)
	assert.Equal(t, "USA", fields.IssuingRegion)
	assert.Equal(t, 1985, fields.DateOfBirth.Year())
}

func TestParsePrescription(t *testing.T) {
	fields := ParsePrescription(`PATIENT: JOHN SMITH
PRESCRIBER: DR ALICE WONG
LICENSE: A123456
ISSUED: 2026-08-01
EXP: 2026-11-01
REFILLS: 3
RX: Amoxicillin 500mg
RX: Lisinopril 10mg`)

	assert.Equal(t, "JOHN SMITH", fields.FullName)
	assert.Equal(t, "DR ALICE WONG", fields.PrescriberName)
	assert.Equal(t, "A123456", fields.PrescriberLicense)
	assert.Equal(t, 3, fields.RefillsAuthorized)
	assert.Equal(t, []string{"Amoxicillin 500mg", "Lisinopril 10mg"}, fields.Medications)
}

func TestParse_GarbageYieldsEmptyFields(t *testing.T) {
	for _, parse := range []ParseFunc{ParseDriversLicense, ParsePassport, ParseStateID, ParsePrescription} {
		fields := parse("%%%% unreadable blob \x00\x01")
		assert.True(t, fields.Empty())
	}
}

func TestRegistry_RejectsDoubleRegistration(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(DocPassport, ParsePassport))
	assert.Error(t, r.Register(DocPassport, ParsePassport))
}

func TestRegistry_RejectsUnknownType(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(DocumentType("utility_bill"), ParseStateID))
}

func TestRegistry_UnregisteredTypeParsesEmpty(t *testing.T) {
	r := NewRegistry()
	fields := r.Parse(DocPassport, licenseScan)
	assert.True(t, fields.Empty())
}

func TestStaticEngine_MalformedInputLowConfidence(t *testing.T) {
	engine := NewStaticEngine(DefaultRegistry())

	result, err := engine.Extract(context.Background(), []byte("not a document"), DocDriversLicense)
	require.NoError(t, err)
	assert.True(t, result.Fields.Empty())
	assert.Less(t, result.Confidence, 0.5)
}

func TestStaticEngine_ReadableScan(t *testing.T) {
	engine := NewStaticEngine(DefaultRegistry())

	result, err := engine.Extract(context.Background(), []byte(licenseScan), DocDriversLicense)
	require.NoError(t, err)
	assert.Equal(t, "JANE A DOE", result.Fields.FullName)
	assert.GreaterOrEqual(t, result.Confidence, 0.9)
}
