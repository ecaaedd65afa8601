package model

import (
	"time"

	"github.com/google/uuid"
)

// IdentityStatus is the lifecycle state of a patient identity.
//
// provisional -> validated -> qualified, with doubtful reachable from any
// state when a discrepancy is found. fictitious and anonymous are terminal
// states used for test or unidentified-patient records.
type IdentityStatus string

const (
	IdentityStatusProvisional IdentityStatus = "provisional"
	IdentityStatusValidated   IdentityStatus = "validated"
	IdentityStatusQualified   IdentityStatus = "qualified"
	IdentityStatusDoubtful    IdentityStatus = "doubtful"
	IdentityStatusFictitious  IdentityStatus = "fictitious"
	IdentityStatusAnonymous   IdentityStatus = "anonymous"
)

// Valid reports whether s is a known status.
func (s IdentityStatus) Valid() bool {
	switch s {
	case IdentityStatusProvisional, IdentityStatusValidated, IdentityStatusQualified,
		IdentityStatusDoubtful, IdentityStatusFictitious, IdentityStatusAnonymous:
		return true
	}
	return false
}

// Rank orders statuses along the advancement axis. doubtful ranks below
// provisional so a partial verification can never look like progress.
func (s IdentityStatus) Rank() int {
	switch s {
	case IdentityStatusQualified:
		return 3
	case IdentityStatusValidated:
		return 2
	case IdentityStatusProvisional:
		return 1
	default:
		return 0
	}
}

// PatientTraits carries the regulated birth traits plus extended traits.
// Matching always operates on the birth traits first.
type PatientTraits struct {
	BirthFamilyName string     `db:"birth_family_name" json:"birth_family_name"`
	BirthGivenName  string     `db:"birth_given_name" json:"birth_given_name"`
	BirthDate       *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Sex             string     `db:"sex" json:"sex"`
	BirthPlaceCode  string     `db:"birth_place_code" json:"birth_place_code,omitempty"`

	// Non-regulatory extended traits.
	UsualName     string `db:"usual_name" json:"usual_name,omitempty"`
	AllGivenNames string `db:"all_given_names" json:"all_given_names,omitempty"`
	PreferredName string `db:"preferred_name" json:"preferred_name,omitempty"`
}

// PatientIdentity is the root entity of the identitovigilance engine.
type PatientIdentity struct {
	Base
	PatientTraits
	LocalID        string          `db:"local_id" json:"local_id"`
	Status         IdentityStatus  `db:"status" json:"status"`
	QualityScore   int             `db:"quality_score" json:"quality_score"`
	NormalizedName string          `db:"normalized_family_name" json:"-"`
	Version        int             `db:"version" json:"version"`
	INS            *INSRecord      `db:"-" json:"ins,omitempty"`
	MergedInto     *uuid.UUID      `db:"merged_into" json:"merged_into,omitempty"`
	MergedFromJSON string          `db:"merged_from" json:"-"`
	MergedFrom     []uuid.UUID     `db:"-" json:"merged_from,omitempty"`
	Aliases        []*PatientAlias `db:"-" json:"aliases,omitempty"`
}

// IsTerminal reports whether the record was merged into another one. A
// terminal record accepts no further mutation.
func (p *PatientIdentity) IsTerminal() bool {
	return p.MergedInto != nil
}

// PatientAlias is a historical or alternate name with an optional validity
// window.
type PatientAlias struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	IdentityID uuid.UUID  `db:"identity_id" json:"identity_id"`
	FamilyName string     `db:"family_name" json:"family_name"`
	GivenName  string     `db:"given_name" json:"given_name,omitempty"`
	Kind       string     `db:"kind" json:"kind"`
	ValidFrom  *time.Time `db:"valid_from" json:"valid_from,omitempty"`
	ValidUntil *time.Time `db:"valid_until" json:"valid_until,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// ActiveAt reports whether the alias validity window covers t. Open-ended
// windows always match.
func (a *PatientAlias) ActiveAt(t time.Time) bool {
	if a.ValidFrom != nil && t.Before(*a.ValidFrom) {
		return false
	}
	if a.ValidUntil != nil && t.After(*a.ValidUntil) {
		return false
	}
	return true
}

type CreateIdentityRequest struct {
	LocalID         string     `json:"local_id" binding:"required"`
	BirthFamilyName string     `json:"birth_family_name" binding:"required"`
	BirthGivenName  string     `json:"birth_given_name" binding:"required"`
	BirthDate       *time.Time `json:"birth_date" binding:"required"`
	Sex             string     `json:"sex" binding:"required,oneof=M F U"`
	BirthPlaceCode  string     `json:"birth_place_code"`
	UsualName       string     `json:"usual_name"`
	AllGivenNames   string     `json:"all_given_names"`
	PreferredName   string     `json:"preferred_name"`
}

type UpdateTraitsRequest struct {
	BirthFamilyName *string    `json:"birth_family_name"`
	BirthGivenName  *string    `json:"birth_given_name"`
	BirthDate       *time.Time `json:"birth_date"`
	Sex             *string    `json:"sex" binding:"omitempty,oneof=M F U"`
	BirthPlaceCode  *string    `json:"birth_place_code"`
	UsualName       *string    `json:"usual_name"`
	AllGivenNames   *string    `json:"all_given_names"`
	PreferredName   *string    `json:"preferred_name"`
	Version         int        `json:"version" binding:"required"`
}

type AddAliasRequest struct {
	FamilyName string     `json:"family_name" binding:"required"`
	GivenName  string     `json:"given_name"`
	Kind       string     `json:"kind" binding:"required,oneof=maiden_name spelling_variant pseudonym"`
	ValidFrom  *time.Time `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`
}

type IdentityFilters struct {
	Status        IdentityStatus `json:"status" form:"status" binding:"omitempty,identitystatus"`
	BelowQuality  *int           `json:"below_quality" form:"below_quality"`
	SearchTerm    string         `json:"search_term" form:"search_term"`
	IncludeMerged bool           `json:"include_merged" form:"include_merged"`
}
