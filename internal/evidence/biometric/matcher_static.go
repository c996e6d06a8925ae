package biometric

import (
	"context"

	"verity/internal/evidence/storage"
)

// StaticMatcher returns a fixed verdict. It backs dev and tests; set the
// confidences per scenario.
type StaticMatcher struct {
	MatchConf    float64
	LivenessConf float64
	Err          error
}

func (m *StaticMatcher) Compare(_ context.Context, _, _ storage.Ref) (*Match, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return &Match{
		MatchConfidence:    m.MatchConf,
		LivenessConfidence: m.LivenessConf,
	}, nil
}
