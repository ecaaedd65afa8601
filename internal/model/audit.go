package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditEntry is the append-only trail of engine operations. Superseded
// identities are never hard-deleted, so the trail plus the verification
// history reconstructs every record's full life.
type AuditEntry struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	Actor      string          `db:"actor" json:"actor"`
	Action     string          `db:"action" json:"action"`
	EntityType string          `db:"entity_type" json:"entity_type"`
	EntityID   uuid.UUID       `db:"entity_id" json:"entity_id"`
	Changes    json.RawMessage `db:"changes" json:"changes,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// ComplianceFinding is one identity flagged by the compliance audit.
type ComplianceFinding struct {
	IdentityID   uuid.UUID `json:"identity_id"`
	LocalID      string    `json:"local_id"`
	QualityScore int       `json:"quality_score"`
	Issues       []string  `json:"issues"`
}
