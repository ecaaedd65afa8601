package model

import (
	"time"

	"github.com/google/uuid"
)

// QualificationStatus is the lifecycle of an INS qualification request.
type QualificationStatus string

const (
	QualificationPending QualificationStatus = "pending"
	QualificationApplied QualificationStatus = "applied"
	QualificationFailed  QualificationStatus = "failed"
	QualificationExpired QualificationStatus = "expired"
)

// QualificationRequest records one submission of an identity's traits to the
// INSi teleservice. A request that never receives a response stays pending
// until the expiry sweep closes it; the identity itself is untouched.
type QualificationRequest struct {
	ID          uuid.UUID           `db:"id" json:"id"`
	IdentityID  uuid.UUID           `db:"identity_id" json:"identity_id"`
	Type        VerificationType    `db:"type" json:"type"`
	Status      QualificationStatus `db:"status" json:"status"`
	RequestedBy string              `db:"requested_by" json:"requested_by"`
	FailureNote string              `db:"failure_note" json:"failure_note,omitempty"`
	CreatedAt   time.Time           `db:"created_at" json:"created_at"`
	ResolvedAt  *time.Time          `db:"resolved_at" json:"resolved_at,omitempty"`
}

// QualificationResult is the teleservice verdict.
type QualificationResult string

const (
	ResultQualified   QualificationResult = "qualified"
	ResultProvisional QualificationResult = "provisional"
	ResultNotFound    QualificationResult = "not_found"
	ResultError       QualificationResult = "error"
)

// QualificationResponse is the payload applied to a pending request.
type QualificationResponse struct {
	Result QualificationResult `json:"result" binding:"required,oneof=qualified provisional not_found error"`
	Value  string              `json:"value"`
	OID    string              `json:"oid"`
	Type   INSType             `json:"type"`
}

type RequestQualificationRequest struct {
	Actor string `json:"actor" binding:"required"`
}
