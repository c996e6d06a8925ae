package extract

import (
	"context"
	"time"
)

// StaticEngine reads the uploaded bytes as the raw text itself and parses
// them through the registry. It backs dev and tests where no OCR service
// exists: a "scan" is just the labeled text a real engine would have read.
type StaticEngine struct {
	registry   *Registry
	confidence float64
}

func NewStaticEngine(registry *Registry) *StaticEngine {
	return &StaticEngine{registry: registry, confidence: 0.95}
}

func (e *StaticEngine) Extract(_ context.Context, data []byte, docType DocumentType) (*Result, error) {
	rawText := string(data)
	fields := e.registry.Parse(docType, rawText)

	confidence := e.confidence
	if fields.Empty() {
		confidence = 0.1
	}

	return &Result{
		Fields:      fields,
		Confidence:  confidence,
		RawText:     rawText,
		ExtractedAt: time.Now(),
	}, nil
}
