package model

import (
	"time"

	"github.com/google/uuid"
)

// MatchClassification buckets a 0-100 match score.
type MatchClassification string

const (
	MatchExact    MatchClassification = "exact"
	MatchProbable MatchClassification = "probable"
	MatchPossible MatchClassification = "possible"
	MatchNone     MatchClassification = "none"
)

// DetectionMethod records how a duplicate pair was surfaced.
type DetectionMethod string

const (
	DetectionAutomatic    DetectionMethod = "automatic"
	DetectionRegistration DetectionMethod = "registration"
	DetectionManual       DetectionMethod = "manual"
)

// DuplicateCandidate is the transient, computed pairing between one identity
// and a candidate match. It is the basis for creating a DuplicateCase, never
// persisted on its own.
type DuplicateCandidate struct {
	IdentityID     uuid.UUID           `json:"identity_id"`
	CandidateID    uuid.UUID           `json:"candidate_id"`
	Score          int                 `json:"score"`
	Classification MatchClassification `json:"classification"`
	MatchedTraits  []string            `json:"matched_traits"`
	Differences    []string            `json:"differences"`
}

// CaseStatus is the duplicate-case lifecycle:
// pending -> investigating -> confirmed_duplicate/not_duplicate -> merged,
// or dismissed.
type CaseStatus string

const (
	CasePending            CaseStatus = "pending"
	CaseInvestigating      CaseStatus = "investigating"
	CaseConfirmedDuplicate CaseStatus = "confirmed_duplicate"
	CaseNotDuplicate       CaseStatus = "not_duplicate"
	CaseMerged             CaseStatus = "merged"
	CaseDismissed          CaseStatus = "dismissed"
)

// Open reports whether the case still accepts resolution.
func (s CaseStatus) Open() bool {
	return s == CasePending || s == CaseInvestigating
}

// ResolutionDecision closes a duplicate case.
type ResolutionDecision string

const (
	DecisionMerge        ResolutionDecision = "merge"
	DecisionNotDuplicate ResolutionDecision = "not_duplicate"
	DecisionNoAction     ResolutionDecision = "no_action"
)

// DuplicateCase tracks investigation of a specific pair of identities. The
// match score is frozen at creation time.
type DuplicateCase struct {
	Base
	PrimaryID   uuid.UUID       `db:"primary_id" json:"primary_id"`
	SecondaryID uuid.UUID       `db:"secondary_id" json:"secondary_id"`
	Method      DetectionMethod `db:"method" json:"method"`
	Score       int             `db:"score" json:"score"`
	Status      CaseStatus      `db:"status" json:"status"`

	// Resolution fields, set once on close.
	Decision   *ResolutionDecision `db:"decision" json:"decision,omitempty"`
	SurvivorID *uuid.UUID          `db:"survivor_id" json:"survivor_id,omitempty"`
	Rationale  string              `db:"rationale" json:"rationale,omitempty"`
	ResolvedBy string              `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt *time.Time          `db:"resolved_at" json:"resolved_at,omitempty"`
}

// References reports whether the case involves the given identity.
func (c *DuplicateCase) References(id uuid.UUID) bool {
	return c.PrimaryID == id || c.SecondaryID == id
}

type CreateCaseRequest struct {
	PrimaryID   uuid.UUID       `json:"primary_id" binding:"required"`
	SecondaryID uuid.UUID       `json:"secondary_id" binding:"required"`
	Method      DetectionMethod `json:"method" binding:"required,oneof=automatic registration manual"`
}

type ResolveCaseRequest struct {
	Decision   ResolutionDecision `json:"decision" binding:"required,oneof=merge not_duplicate no_action"`
	SurvivorID *uuid.UUID         `json:"survivor_id"`
	Rationale  string             `json:"rationale"`
	ResolvedBy string             `json:"resolved_by" binding:"required"`
}

type MergeRequest struct {
	SurvivorID uuid.UUID `json:"survivor_id" binding:"required"`
	MergedID   uuid.UUID `json:"merged_id" binding:"required"`
	Actor      string    `json:"actor" binding:"required"`
}
