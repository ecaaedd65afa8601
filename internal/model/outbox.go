package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// Outbox event types emitted by the engine.
const (
	EventIdentityCreated    = "identity.created"
	EventTraitsUpdated      = "identity.traits_updated"
	EventStatusChanged      = "identity.status_changed"
	EventIdentitiesMerged   = "identity.merged"
	EventAlertRaised        = "alert.raised"
	EventCaseResolved       = "duplicate_case.resolved"
	EventQualificationDone  = "qualification.applied"
)

// OutboxEvent rows are written in the same transaction as the mutation they
// describe and published asynchronously by the outbox processor.
type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       string          `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
}
