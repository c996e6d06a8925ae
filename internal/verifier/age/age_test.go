package age

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"verity/internal/evidence/extract"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAgeAt_WholeYearBoundary(t *testing.T) {
	dob := date(1990, time.June, 15)

	assert.Equal(t, 33, AgeAt(dob, date(2024, time.June, 14)))
	assert.Equal(t, 34, AgeAt(dob, date(2024, time.June, 15)))
	assert.Equal(t, 34, AgeAt(dob, date(2024, time.June, 16)))
}

func TestVerify_DeclaredBirthDate(t *testing.T) {
	now := date(2026, time.August, 31)

	t.Run("passes at exact minimum", func(t *testing.T) {
		result := Verify(Input{MinimumAge: 21, DeclaredBirthDate: date(2005, time.August, 31)}, now)
		assert.True(t, result.Passed)
		assert.Equal(t, 21, result.Age)
	})

	t.Run("fails one day short", func(t *testing.T) {
		result := Verify(Input{MinimumAge: 21, DeclaredBirthDate: date(2005, time.September, 1)}, now)
		assert.False(t, result.Passed)
		assert.Equal(t, 20, result.Age)
	})

	t.Run("defaults minimum to 18", func(t *testing.T) {
		result := Verify(Input{DeclaredBirthDate: date(2007, time.January, 1)}, now)
		assert.True(t, result.Passed)
		assert.Equal(t, 18, result.MinimumAge)
	})

	t.Run("no evidence fails", func(t *testing.T) {
		result := Verify(Input{MinimumAge: 18}, now)
		assert.False(t, result.Passed)
		assert.Equal(t, "no birth date evidence", result.Reason)
	})
}

func TestVerify_DocumentAuthenticity(t *testing.T) {
	now := date(2026, time.August, 31)
	authentic := []extract.SecurityFeature{extract.FeatureHologram, extract.FeatureMicroprint}

	t.Run("authentic document passes", func(t *testing.T) {
		result := Verify(Input{
			MinimumAge: 21,
			Document: &DocumentEvidence{
				BirthDate:        date(1990, time.June, 15),
				ExpiresAt:        date(2028, time.January, 1),
				SecurityFeatures: authentic,
			},
		}, now)
		assert.True(t, result.Passed)
	})

	t.Run("expired document fails despite passing age", func(t *testing.T) {
		result := Verify(Input{
			MinimumAge: 21,
			Document: &DocumentEvidence{
				BirthDate:        date(1990, time.June, 15),
				ExpiresAt:        date(2025, time.January, 1),
				SecurityFeatures: authentic,
			},
		}, now)
		assert.False(t, result.Passed)
		assert.Equal(t, "identity document expired", result.Reason)
	})

	t.Run("one security feature fails", func(t *testing.T) {
		result := Verify(Input{
			MinimumAge: 21,
			Document: &DocumentEvidence{
				BirthDate:        date(1990, time.June, 15),
				ExpiresAt:        date(2028, time.January, 1),
				SecurityFeatures: []extract.SecurityFeature{extract.FeatureHologram},
			},
		}, now)
		assert.False(t, result.Passed)
	})

	t.Run("duplicate features count once", func(t *testing.T) {
		result := Verify(Input{
			MinimumAge: 21,
			Document: &DocumentEvidence{
				BirthDate:        date(1990, time.June, 15),
				ExpiresAt:        date(2028, time.January, 1),
				SecurityFeatures: []extract.SecurityFeature{extract.FeatureHologram, extract.FeatureHologram},
			},
		}, now)
		assert.False(t, result.Passed)
	})

	t.Run("document birth date wins over declared", func(t *testing.T) {
		result := Verify(Input{
			MinimumAge:        21,
			DeclaredBirthDate: date(1990, time.June, 15),
			Document: &DocumentEvidence{
				BirthDate:        date(2010, time.June, 15),
				ExpiresAt:        date(2028, time.January, 1),
				SecurityFeatures: authentic,
			},
		}, now)
		assert.False(t, result.Passed)
		assert.Equal(t, 16, result.Age)
	})
}

func TestVerifyChallenge(t *testing.T) {
	now := date(2026, time.August, 31)

	t.Run("scored against known profile", func(t *testing.T) {
		profile := date(1990, time.June, 15)
		result := VerifyChallenge(ChallengeAnswer{BirthYear: 1990, BirthMonth: time.June}, profile, 18, now)
		assert.True(t, result.Passed)
		assert.Equal(t, 36, result.Age)
	})

	t.Run("wrong answer fails even for adult profile", func(t *testing.T) {
		profile := date(1990, time.June, 15)
		result := VerifyChallenge(ChallengeAnswer{BirthYear: 1991, BirthMonth: time.June}, profile, 18, now)
		assert.False(t, result.Passed)
	})

	t.Run("unknown profile applies 21 floor", func(t *testing.T) {
		// Claimed age 19: would pass an 18 minimum but not the floor.
		result := VerifyChallenge(ChallengeAnswer{BirthYear: 2007, BirthMonth: time.January}, time.Time{}, 18, now)
		assert.False(t, result.Passed)
		assert.Equal(t, 21, result.MinimumAge)
	})

	t.Run("unknown profile accepts face value above floor", func(t *testing.T) {
		result := VerifyChallenge(ChallengeAnswer{BirthYear: 2000, BirthMonth: time.January}, time.Time{}, 18, now)
		assert.True(t, result.Passed)
	})
}
