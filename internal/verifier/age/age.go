// Package age decides whether a customer meets the minimum age for an
// order. Evaluation is pure rule logic: all evidence arrives as arguments
// and the verdict is deterministic from them.
package age

import (
	"fmt"
	"time"

	"verity/internal/evidence/extract"
)

const (
	// DefaultMinimumAge applies when no product-specific minimum resolves.
	DefaultMinimumAge = 18

	// ChallengeFloorAge is the absolute minimum accepted on the
	// knowledge-challenge path when no profile birth date exists to score
	// against.
	ChallengeFloorAge = 21

	// minSecurityFeatures a scanned document must exhibit to be treated
	// as authentic.
	minSecurityFeatures = 2
)

// DocumentEvidence is the slice of extracted fields the verifier needs
// when the birth date originates from a scan.
type DocumentEvidence struct {
	BirthDate        time.Time
	ExpiresAt        time.Time
	SecurityFeatures []extract.SecurityFeature
}

// Input groups the signals for one age check. Document takes precedence
// over the declared birth date when both are present.
type Input struct {
	// MinimumAge of the strictest restricted item; 0 means unresolved and
	// falls back to DefaultMinimumAge.
	MinimumAge        int
	DeclaredBirthDate time.Time
	Document          *DocumentEvidence
}

// Result is the verdict of one age check.
type Result struct {
	Passed     bool
	Age        int
	MinimumAge int
	Reason     string
}

// AgeAt computes whole-years age as of now. The birthday itself counts:
// someone born 1990-06-15 turns 34 on 2024-06-15, not the day after.
func AgeAt(birthDate, now time.Time) int {
	years := now.Year() - birthDate.Year()
	// Back off one year until the birthday has occurred this year.
	anniversary := time.Date(now.Year(), birthDate.Month(), birthDate.Day(), 0, 0, 0, 0, now.Location())
	if now.Before(anniversary) {
		years--
	}
	return years
}

// Verify applies the age rule chain. Rule priority (fail-fast):
//  1. Evidence present: some birth date must exist.
//  2. Document authenticity: a scanned document must be unexpired and
//     show enough security features; failing this fails the check even
//     when the computed age would pass.
//  3. Age threshold.
func Verify(input Input, now time.Time) Result {
	minimumAge := input.MinimumAge
	if minimumAge <= 0 {
		minimumAge = DefaultMinimumAge
	}
	result := Result{MinimumAge: minimumAge}

	birthDate := input.DeclaredBirthDate
	if input.Document != nil {
		birthDate = input.Document.BirthDate
	}
	if birthDate.IsZero() {
		result.Reason = "no birth date evidence"
		return result
	}

	if input.Document != nil {
		if reason, ok := checkAuthenticity(input.Document, now); !ok {
			result.Age = AgeAt(birthDate, now)
			result.Reason = reason
			return result
		}
	}

	result.Age = AgeAt(birthDate, now)
	if result.Age < minimumAge {
		result.Reason = fmt.Sprintf("age %d below minimum %d", result.Age, minimumAge)
		return result
	}

	result.Passed = true
	return result
}

func checkAuthenticity(doc *DocumentEvidence, now time.Time) (reason string, ok bool) {
	if !doc.ExpiresAt.IsZero() && doc.ExpiresAt.Before(now) {
		return "identity document expired", false
	}

	distinct := make(map[extract.SecurityFeature]bool)
	for _, f := range doc.SecurityFeatures {
		distinct[f] = true
	}
	if len(distinct) < minSecurityFeatures {
		return fmt.Sprintf("document shows %d of %d required security features", len(distinct), minSecurityFeatures), false
	}
	return "", true
}

// ChallengeAnswer is the customer's reply to the birth year/month
// multiple-choice fallback used when no scannable document exists.
type ChallengeAnswer struct {
	BirthYear  int
	BirthMonth time.Month
}

// VerifyChallenge scores a challenge answer. With a known profile birth
// date the answer must match it and the age comes from the profile; with
// no profile the answer is taken at face value but the minimum age is
// floored at ChallengeFloorAge.
func VerifyChallenge(answer ChallengeAnswer, profileBirthDate time.Time, minimumAge int, now time.Time) Result {
	if minimumAge <= 0 {
		minimumAge = DefaultMinimumAge
	}

	if !profileBirthDate.IsZero() {
		result := Result{MinimumAge: minimumAge}
		if answer.BirthYear != profileBirthDate.Year() || answer.BirthMonth != profileBirthDate.Month() {
			result.Reason = "challenge answers do not match profile"
			return result
		}
		result.Age = AgeAt(profileBirthDate, now)
		if result.Age < minimumAge {
			result.Reason = fmt.Sprintf("age %d below minimum %d", result.Age, minimumAge)
			return result
		}
		result.Passed = true
		return result
	}

	if minimumAge < ChallengeFloorAge {
		minimumAge = ChallengeFloorAge
	}
	result := Result{MinimumAge: minimumAge}

	// Face value: assume the latest birthday consistent with the answer.
	claimed := time.Date(answer.BirthYear, answer.BirthMonth, 1, 0, 0, 0, 0, now.Location())
	if claimed.IsZero() || answer.BirthYear <= 0 {
		result.Reason = "incomplete challenge answer"
		return result
	}
	result.Age = AgeAt(claimed, now)
	if result.Age < minimumAge {
		result.Reason = fmt.Sprintf("claimed age %d below unverified minimum %d", result.Age, minimumAge)
		return result
	}
	result.Passed = true
	return result
}
