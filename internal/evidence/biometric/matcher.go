// Package biometric wraps the external face-comparison engine. The session
// manager compares a captured selfie against the photo on an identity
// document; the engine returns a match confidence and a liveness signal.
package biometric

import (
	"context"

	"verity/internal/evidence/storage"
)

// Match is the engine's verdict on one comparison.
type Match struct {
	// MatchConfidence is 0.0-1.0; the identity threshold applied by the
	// session manager is 0.8.
	MatchConfidence float64
	// LivenessConfidence is 0.0-1.0; low values suggest a photo-of-a-photo
	// replay.
	LivenessConfidence float64
}

// Matcher is the narrow contract over the face-comparison engine.
type Matcher interface {
	Compare(ctx context.Context, refA, refB storage.Ref) (*Match, error)
}
