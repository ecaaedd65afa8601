package model

import (
	"time"

	"github.com/google/uuid"
)

// IdentitovigilancePolicy is the facility-level configuration consumed
// read-only by the quality scorer, matcher thresholds and compliance checks.
type IdentitovigilancePolicy struct {
	ID         uuid.UUID `db:"id" json:"id"`
	FacilityID string    `db:"facility_id" json:"facility_id"`

	RequiredTraits             []string `db:"-" json:"required_traits"`
	RequiredTraitsJSON         string   `db:"required_traits" json:"-"`
	MandatoryVerifications     []string `db:"-" json:"mandatory_verifications"`
	MandatoryVerificationsJSON string   `db:"mandatory_verifications" json:"-"`

	// Matcher thresholds. Exact classification is fixed at >= 95.
	ProbableThreshold   int     `db:"probable_threshold" json:"probable_threshold"`
	PossibleFloor       int     `db:"possible_floor" json:"possible_floor"`
	SimilarityThreshold float64 `db:"similarity_threshold" json:"similarity_threshold"`

	MinQualityScore        int  `db:"min_quality_score" json:"min_quality_score"`
	INSQualificationNeeded bool `db:"ins_qualification_needed" json:"ins_qualification_needed"`

	// Demotion rule when a qualified INS is invalidated: doubtful when true,
	// validated otherwise.
	DemoteToDoubtful bool `db:"demote_to_doubtful" json:"demote_to_doubtful"`

	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultPolicy returns the fallback policy used when no facility row exists.
func DefaultPolicy() *IdentitovigilancePolicy {
	return &IdentitovigilancePolicy{
		RequiredTraits:         []string{"birth_family_name", "birth_given_name", "birth_date", "sex"},
		MandatoryVerifications: []string{string(VerificationDocument)},
		ProbableThreshold:      80,
		PossibleFloor:          50,
		SimilarityThreshold:    0.8,
		MinQualityScore:        40,
		INSQualificationNeeded: false,
		DemoteToDoubtful:       true,
	}
}

// RequiresTrait reports whether the policy marks the trait mandatory.
func (p *IdentitovigilancePolicy) RequiresTrait(name string) bool {
	for _, t := range p.RequiredTraits {
		if t == name {
			return true
		}
	}
	return false
}
