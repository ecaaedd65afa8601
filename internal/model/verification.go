package model

import (
	"time"

	"github.com/google/uuid"
)

// VerificationType enumerates how an identity was verified.
type VerificationType string

const (
	VerificationDocument     VerificationType = "document"
	VerificationCard         VerificationType = "card"
	VerificationTeleservice  VerificationType = "teleservice"
	VerificationPatientSelf  VerificationType = "patient_self"
	VerificationFamily       VerificationType = "family"
	VerificationCrossRef     VerificationType = "cross_reference"
	VerificationBiometric    VerificationType = "biometric"
	VerificationInvalidation VerificationType = "ins_invalidation"
)

func (t VerificationType) Valid() bool {
	switch t {
	case VerificationDocument, VerificationCard, VerificationTeleservice,
		VerificationPatientSelf, VerificationFamily, VerificationCrossRef,
		VerificationBiometric, VerificationInvalidation:
		return true
	}
	return false
}

// VerificationOutcome is the result of one verification event.
type VerificationOutcome string

const (
	OutcomeSuccess VerificationOutcome = "success"
	OutcomePartial VerificationOutcome = "partial"
	OutcomeFailure VerificationOutcome = "failure"
)

// IdentityVerification is the append-only audit record of one verification
// event. Never mutated after creation.
type IdentityVerification struct {
	ID             uuid.UUID           `db:"id" json:"id"`
	IdentityID     uuid.UUID           `db:"identity_id" json:"identity_id"`
	Type           VerificationType    `db:"type" json:"type"`
	Outcome        VerificationOutcome `db:"outcome" json:"outcome"`
	VerifiedBy     string              `db:"verified_by" json:"verified_by"`
	Discrepancies  string              `db:"discrepancies" json:"discrepancies,omitempty"`
	PreviousStatus IdentityStatus      `db:"previous_status" json:"previous_status"`
	NewStatus      IdentityStatus      `db:"new_status" json:"new_status"`
	CreatedAt      time.Time           `db:"created_at" json:"created_at"`
}

type RecordVerificationRequest struct {
	Type          VerificationType `json:"type" binding:"required"`
	VerifiedBy    string           `json:"verified_by" binding:"required"`
	Success       bool             `json:"success"`
	Discrepancies []string         `json:"discrepancies"`
}
