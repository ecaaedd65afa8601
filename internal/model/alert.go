package model

import (
	"time"

	"github.com/google/uuid"
)

// AlertType enumerates the collision conditions the engine can raise.
type AlertType string

const (
	AlertSameRoomDuplicate AlertType = "same_room_duplicate"
	AlertDoubleBooking     AlertType = "double_booking"
	AlertTraitMismatch     AlertType = "trait_mismatch"
	AlertWristbandMismatch AlertType = "wristband_mismatch"
	AlertPhotoMismatch     AlertType = "photo_mismatch"
	AlertINSMismatch       AlertType = "ins_mismatch"
	AlertIdentityMismatch  AlertType = "identity_mismatch"
)

type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// AlertStatus lifecycle: active -> acknowledged / resolved / false_positive.
// A closed alert is never reopened; a new alert is raised instead.
type AlertStatus string

const (
	AlertActive        AlertStatus = "active"
	AlertAcknowledged  AlertStatus = "acknowledged"
	AlertResolved      AlertStatus = "resolved"
	AlertFalsePositive AlertStatus = "false_positive"
)

// CollisionAlert is an operational patient-safety signal tied to one identity.
type CollisionAlert struct {
	Base
	IdentityID     uuid.UUID     `db:"identity_id" json:"identity_id"`
	Type           AlertType     `db:"type" json:"type"`
	Severity       AlertSeverity `db:"severity" json:"severity"`
	Status         AlertStatus   `db:"status" json:"status"`
	Location       string        `db:"location" json:"location,omitempty"`
	EncounterID    string        `db:"encounter_id" json:"encounter_id,omitempty"`
	Details        string        `db:"details" json:"details,omitempty"`
	AcknowledgedBy string        `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	ResolvedBy     string        `db:"resolved_by" json:"resolved_by,omitempty"`
	ClosedAt       *time.Time    `db:"closed_at" json:"closed_at,omitempty"`
}

// CheckMethod is the point-of-care confirmation mechanism used.
type CheckMethod string

const (
	CheckVerbal    CheckMethod = "verbal"
	CheckWristband CheckMethod = "wristband"
	CheckDocument  CheckMethod = "document"
	CheckPhoto     CheckMethod = "photo"
)

// CheckResult is the outcome of a point-of-care identity check.
type CheckResult string

const (
	CheckConfirmed      CheckResult = "confirmed"
	CheckDiscrepancy    CheckResult = "discrepancy"
	CheckNotPerformable CheckResult = "not_performable"
)

// IdentityCheck is a point-of-care confirmation record. A discrepancy result
// must produce a CollisionAlert as a side effect.
type IdentityCheck struct {
	ID            uuid.UUID   `db:"id" json:"id"`
	IdentityID    uuid.UUID   `db:"identity_id" json:"identity_id"`
	EncounterID   string      `db:"encounter_id" json:"encounter_id"`
	Location      string      `db:"location" json:"location,omitempty"`
	Method        CheckMethod `db:"method" json:"method"`
	Result        CheckResult `db:"result" json:"result"`
	CheckedTraits string      `db:"checked_traits" json:"checked_traits"`
	CheckedBy     string      `db:"checked_by" json:"checked_by"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
}

type RecordCheckRequest struct {
	EncounterID   string      `json:"encounter_id" binding:"required"`
	Location      string      `json:"location"`
	Method        CheckMethod `json:"method" binding:"required,oneof=verbal wristband document photo"`
	Result        CheckResult `json:"result" binding:"required,oneof=confirmed discrepancy not_performable"`
	CheckedTraits []string    `json:"checked_traits"`
	CheckedBy     string      `json:"checked_by" binding:"required"`
}

type CheckCollisionsRequest struct {
	Location    string `json:"location" binding:"required"`
	EncounterID string `json:"encounter_id" binding:"required"`
}

type AlertActionRequest struct {
	Actor string `json:"actor" binding:"required"`
	Note  string `json:"note"`
}

type AlertFilters struct {
	IdentityID *uuid.UUID    `form:"identity_id"`
	Status     AlertStatus   `form:"status"`
	Severity   AlertSeverity `form:"severity"`
}
