package extract

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ParseFunc turns engine raw text into structured fields. Parsers are pure:
// same text in, same fields out, no I/O.
type ParseFunc func(rawText string) Fields

// Registry maps document types to parsers. Types are registered once at
// startup; adding a document type is an addition here, not an edit to a
// dispatcher.
type Registry struct {
	mu      sync.RWMutex
	parsers map[DocumentType]ParseFunc
}

func NewRegistry() *Registry {
	return &Registry{parsers: make(map[DocumentType]ParseFunc)}
}

// Register binds a parser to a document type. Re-registering a type is a
// wiring bug and fails loudly.
func (r *Registry) Register(docType DocumentType, fn ParseFunc) error {
	if !docType.Valid() {
		return fmt.Errorf("unknown document type %q", docType)
	}
	if fn == nil {
		return fmt.Errorf("parser for %q is required", docType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.parsers[docType]; exists {
		return fmt.Errorf("parser for %q already registered", docType)
	}
	r.parsers[docType] = fn
	return nil
}

// Parse runs the registered parser. Unregistered types produce empty fields
// rather than an error: the session treats them as unusable evidence.
func (r *Registry) Parse(docType DocumentType, rawText string) Fields {
	r.mu.RLock()
	fn := r.parsers[docType]
	r.mu.RUnlock()
	if fn == nil {
		return Fields{}
	}
	return fn(rawText)
}

// DefaultRegistry returns a registry with all built-in parsers bound.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	// Registration of built-ins cannot collide.
	_ = r.Register(DocDriversLicense, ParseDriversLicense)
	_ = r.Register(DocPassport, ParsePassport)
	_ = r.Register(DocStateID, ParseStateID)
	_ = r.Register(DocPrescription, ParsePrescription)
	return r
}

// OCR output is labeled lines ("DOB: 1990-06-15"). scanLabels folds them
// into a map keyed by upper-cased label.
func scanLabels(rawText string) map[string]string {
	labels := make(map[string]string)
	for _, line := range strings.Split(rawText, "\n") {
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		label = strings.ToUpper(strings.TrimSpace(label))
		value = strings.TrimSpace(value)
		if label == "" || value == "" {
			continue
		}
		labels[label] = value
	}
	return labels
}

var dateLayouts = []string{"2006-01-02", "01/02/2006", "02 Jan 2006"}

func parseDate(raw string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseSecurityFeatures(raw string) []SecurityFeature {
	known := map[string]SecurityFeature{
		"HOLOGRAM":    FeatureHologram,
		"UV":          FeatureUVMarkers,
		"UV_MARKERS":  FeatureUVMarkers,
		"MICROPRINT":  FeatureMicroprint,
		"RAISED_TEXT": FeatureRaisedText,
	}
	var features []SecurityFeature
	for _, token := range strings.Split(raw, ",") {
		token = strings.ToUpper(strings.TrimSpace(token))
		if f, ok := known[token]; ok {
			features = append(features, f)
		}
	}
	return features
}

func firstLabel(labels map[string]string, keys ...string) string {
	for _, key := range keys {
		if v, ok := labels[key]; ok {
			return v
		}
	}
	return ""
}

// ParseDriversLicense extracts the fields a US driver's license scan
// carries.
func ParseDriversLicense(rawText string) Fields {
	labels := scanLabels(rawText)
	return Fields{
		FullName:         firstLabel(labels, "NAME", "FULL NAME"),
		DateOfBirth:      parseDate(firstLabel(labels, "DOB", "DATE OF BIRTH")),
		DocumentNumber:   firstLabel(labels, "DL NO", "LICENSE NO", "NO"),
		ExpiresAt:        parseDate(firstLabel(labels, "EXP", "EXPIRES")),
		IssuingRegion:    firstLabel(labels, "STATE", "ISSUED BY"),
		SecurityFeatures: parseSecurityFeatures(firstLabel(labels, "SEC", "SECURITY")),
	}
}

// ParsePassport extracts passport fields. Passports carry a country code
// rather than a state and no license-style security line beyond the
// hologram/UV markers the engine reports.
func ParsePassport(rawText string) Fields {
	labels := scanLabels(rawText)
	return Fields{
		FullName:         firstLabel(labels, "NAME", "SURNAME AND GIVEN NAMES"),
		DateOfBirth:      parseDate(firstLabel(labels, "DOB", "DATE OF BIRTH")),
		DocumentNumber:   firstLabel(labels, "PASSPORT NO", "NO"),
		ExpiresAt:        parseDate(firstLabel(labels, "EXP", "DATE OF EXPIRY")),
		IssuingRegion:    firstLabel(labels, "COUNTRY", "ISSUING COUNTRY"),
		SecurityFeatures: parseSecurityFeatures(firstLabel(labels, "SEC", "SECURITY")),
	}
}

// ParseStateID extracts non-driver state ID fields; the layout mirrors a
// driver's license without the DL number label.
func ParseStateID(rawText string) Fields {
	labels := scanLabels(rawText)
	return Fields{
		FullName:         firstLabel(labels, "NAME", "FULL NAME"),
		DateOfBirth:      parseDate(firstLabel(labels, "DOB", "DATE OF BIRTH")),
		DocumentNumber:   firstLabel(labels, "ID NO", "NO"),
		ExpiresAt:        parseDate(firstLabel(labels, "EXP", "EXPIRES")),
		IssuingRegion:    firstLabel(labels, "STATE", "ISSUED BY"),
		SecurityFeatures: parseSecurityFeatures(firstLabel(labels, "SEC", "SECURITY")),
	}
}

// ParsePrescription extracts prescription fields. Medications appear as
// repeated "RX" lines or a comma-separated "MEDICATIONS" line.
func ParsePrescription(rawText string) Fields {
	labels := scanLabels(rawText)

	var medications []string
	for _, line := range strings.Split(rawText, "\n") {
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(label), "RX") {
			if med := strings.TrimSpace(value); med != "" {
				medications = append(medications, med)
			}
		}
	}
	if meds := firstLabel(labels, "MEDICATIONS"); meds != "" {
		for _, med := range strings.Split(meds, ",") {
			if med = strings.TrimSpace(med); med != "" {
				medications = append(medications, med)
			}
		}
	}

	refills := 0
	if raw := firstLabel(labels, "REFILLS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			refills = n
		}
	}

	return Fields{
		FullName:          firstLabel(labels, "PATIENT", "NAME"),
		Medications:       medications,
		PrescriberName:    firstLabel(labels, "PRESCRIBER", "DR"),
		PrescriberLicense: firstLabel(labels, "LICENSE", "LICENSE NO", "DEA NO"),
		IssuedAt:          parseDate(firstLabel(labels, "ISSUED", "DATE")),
		ExpiresAt:         parseDate(firstLabel(labels, "EXP", "EXPIRES")),
		RefillsAuthorized: refills,
	}
}
