package model

import (
	"time"

	"github.com/google/uuid"
)

// INSType distinguishes the kind of national identifier held.
type INSType string

const (
	INSTypePermanent   INSType = "permanent"
	INSTypeTemporary   INSType = "temporary"
	INSTypeProvisional INSType = "provisional"
)

// INSSource records how the identifier was acquired.
type INSSource string

const (
	INSSourceTeleservice INSSource = "teleservice"
	INSSourceCard        INSSource = "card"
	INSSourceImport      INSSource = "import"
	INSSourceManual      INSSource = "manual"
)

// INSQualification is the qualification status of the identifier against the
// national registry.
type INSQualification string

const (
	INSQualified   INSQualification = "qualified"
	INSProvisional INSQualification = "provisional"
	INSInvalid     INSQualification = "invalid"
)

// INSRecord is the national-identifier record attached 0-or-1 to an identity.
// Owned exclusively by its PatientIdentity.
type INSRecord struct {
	ID            uuid.UUID        `db:"id" json:"id"`
	IdentityID    uuid.UUID        `db:"identity_id" json:"identity_id"`
	Value         string           `db:"value" json:"value"`
	OID           string           `db:"oid" json:"oid"`
	Type          INSType          `db:"type" json:"type"`
	Source        INSSource        `db:"source" json:"source"`
	Qualification INSQualification `db:"qualification" json:"qualification"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}
