package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/identito-api/internal/model"
	"github.com/jwalitptl/identito-api/internal/repository"
	apperrors "github.com/jwalitptl/identito-api/pkg/errors"
)

type identityCheckRepository struct {
	db *sqlx.DB
}

func NewIdentityCheckRepository(db *sqlx.DB) repository.IdentityCheckRepository {
	return &identityCheckRepository{db: db}
}

func (r *identityCheckRepository) Create(ctx context.Context, check *model.IdentityCheck) error {
	query := `
		INSERT INTO identity_checks (
			id, identity_id, encounter_id, location, method, result,
			checked_traits, checked_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if check.CreatedAt.IsZero() {
		check.CreatedAt = time.Now()
	}
	_, err := q(ctx, r.db).ExecContext(ctx, query,
		check.ID, check.IdentityID, check.EncounterID, check.Location,
		check.Method, check.Result, check.CheckedTraits, check.CheckedBy,
		check.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create identity check: %w", err)
	}
	return nil
}

func (r *identityCheckRepository) ListRecentByIdentity(ctx context.Context, identityID uuid.UUID, since time.Time) ([]*model.IdentityCheck, error) {
	query := `
		SELECT * FROM identity_checks
		WHERE identity_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
	`
	var checks []*model.IdentityCheck
	if err := q(ctx, r.db).SelectContext(ctx, &checks, query, identityID, since); err != nil {
		return nil, fmt.Errorf("failed to list recent identity checks: %w", err)
	}
	return checks, nil
}

func (r *identityCheckRepository) GetLatestByEncounter(ctx context.Context, encounterID string) (*model.IdentityCheck, error) {
	query := `
		SELECT * FROM identity_checks
		WHERE encounter_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var check model.IdentityCheck
	err := q(ctx, r.db).GetContext(ctx, &check, query, encounterID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("identity check", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest check for encounter: %w", err)
	}
	return &check, nil
}
