package identity

import (
	"github.com/jwalitptl/identito-api/internal/model"
)

// Quality score weights: trait completeness up to 40, national identifier up
// to 40, identity status up to 20. Capped at 100.
const (
	pointsFamilyName = 10
	pointsGivenName  = 10
	pointsBirthDate  = 10
	pointsSex        = 5
	pointsBirthPlace = 5

	pointsINSPresent     = 20
	pointsINSQualified   = 20
	pointsINSProvisional = 10

	pointsStatusQualified   = 20
	pointsStatusValidated   = 15
	pointsStatusProvisional = 5
)

// QualityScore computes the 0-100 completeness/trust score of an identity
// record. Deterministic, no side effects, no I/O.
func QualityScore(traits model.PatientTraits, ins *model.INSRecord, status model.IdentityStatus) int {
	score := 0

	if traits.BirthFamilyName != "" {
		score += pointsFamilyName
	}
	if traits.BirthGivenName != "" {
		score += pointsGivenName
	}
	if traits.BirthDate != nil && !traits.BirthDate.IsZero() {
		score += pointsBirthDate
	}
	if traits.Sex != "" {
		score += pointsSex
	}
	if traits.BirthPlaceCode != "" {
		score += pointsBirthPlace
	}

	if ins != nil {
		score += pointsINSPresent
		switch ins.Qualification {
		case model.INSQualified:
			score += pointsINSQualified
		case model.INSProvisional:
			score += pointsINSProvisional
		}
	}

	switch status {
	case model.IdentityStatusQualified:
		score += pointsStatusQualified
	case model.IdentityStatusValidated:
		score += pointsStatusValidated
	case model.IdentityStatusProvisional:
		score += pointsStatusProvisional
	}

	if score > 100 {
		score = 100
	}
	return score
}
