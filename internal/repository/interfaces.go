package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/identito-api/internal/model"
)

// All repository interfaces in one file
type (
	// TxManager runs fn inside one database transaction. Repositories called
	// with the ctx passed to fn participate in that transaction. Merges and
	// case resolutions must go through it: partial writes must never be
	// observable.
	TxManager interface {
		RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	}

	// IdentityRepository handles patient identity records. Update is
	// optimistic: it matches on the record's current version and returns a
	// conflict error when the row moved underneath the caller.
	IdentityRepository interface {
		Create(ctx context.Context, identity *model.PatientIdentity) error
		Get(ctx context.Context, id uuid.UUID) (*model.PatientIdentity, error)
		GetByLocalID(ctx context.Context, localID string) (*model.PatientIdentity, error)
		Update(ctx context.Context, identity *model.PatientIdentity) error
		List(ctx context.Context, filters *model.IdentityFilters) ([]*model.PatientIdentity, error)

		// Candidate search support (trait-similarity-friendly lookups).
		SearchByBirthDate(ctx context.Context, birthDate time.Time) ([]*model.PatientIdentity, error)
		SearchByNormalizedName(ctx context.Context, normalizedName string) ([]*model.PatientIdentity, error)
		ListBelowQuality(ctx context.Context, threshold int) ([]*model.PatientIdentity, error)

		// Merge support; only meaningful inside a TxManager transaction.
		LockPair(ctx context.Context, a, b uuid.UUID) error
		MarkMerged(ctx context.Context, mergedID, survivorID uuid.UUID) error
		SetMergedFrom(ctx context.Context, id uuid.UUID, from []uuid.UUID) error
		RepointMergedInto(ctx context.Context, from, to uuid.UUID) error

		UpsertINS(ctx context.Context, record *model.INSRecord) error
		GetINS(ctx context.Context, identityID uuid.UUID) (*model.INSRecord, error)

		AddAlias(ctx context.Context, alias *model.PatientAlias) error
		ListAliases(ctx context.Context, identityID uuid.UUID) ([]*model.PatientAlias, error)
		ReassignAliases(ctx context.Context, fromIdentity, toIdentity uuid.UUID) error
	}

	// VerificationRepository stores the append-only verification history.
	VerificationRepository interface {
		Create(ctx context.Context, v *model.IdentityVerification) error
		ListByIdentity(ctx context.Context, identityID uuid.UUID) ([]*model.IdentityVerification, error)
	}

	DuplicateCaseRepository interface {
		Create(ctx context.Context, c *model.DuplicateCase) error
		Get(ctx context.Context, id uuid.UUID) (*model.DuplicateCase, error)
		Update(ctx context.Context, c *model.DuplicateCase) error
		FindOpenForPair(ctx context.Context, a, b uuid.UUID) (*model.DuplicateCase, error)
		ListOpenForIdentity(ctx context.Context, identityID uuid.UUID) ([]*model.DuplicateCase, error)
	}

	AlertRepository interface {
		Create(ctx context.Context, alert *model.CollisionAlert) error
		Get(ctx context.Context, id uuid.UUID) (*model.CollisionAlert, error)
		Update(ctx context.Context, alert *model.CollisionAlert) error
		List(ctx context.Context, filters *model.AlertFilters) ([]*model.CollisionAlert, error)
		ListActiveByIdentity(ctx context.Context, identityID uuid.UUID) ([]*model.CollisionAlert, error)
	}

	IdentityCheckRepository interface {
		Create(ctx context.Context, check *model.IdentityCheck) error
		ListRecentByIdentity(ctx context.Context, identityID uuid.UUID, since time.Time) ([]*model.IdentityCheck, error)
		GetLatestByEncounter(ctx context.Context, encounterID string) (*model.IdentityCheck, error)
	}

	QualificationRepository interface {
		Create(ctx context.Context, req *model.QualificationRequest) error
		Get(ctx context.Context, id uuid.UUID) (*model.QualificationRequest, error)
		Update(ctx context.Context, req *model.QualificationRequest) error
		ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*model.QualificationRequest, error)
	}

	PolicyRepository interface {
		GetByFacility(ctx context.Context, facilityID string) (*model.IdentitovigilancePolicy, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, entry *model.AuditEntry) error
		ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*model.AuditEntry, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMessage *string) error
	}
)
