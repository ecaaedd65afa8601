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

type duplicateCaseRepository struct {
	db *sqlx.DB
}

func NewDuplicateCaseRepository(db *sqlx.DB) repository.DuplicateCaseRepository {
	return &duplicateCaseRepository{db: db}
}

func (r *duplicateCaseRepository) Create(ctx context.Context, c *model.DuplicateCase) error {
	query := `
		INSERT INTO duplicate_cases (
			id, primary_id, secondary_id, method, score, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	c.CreatedAt = time.Now()
	c.UpdatedAt = time.Now()

	_, err := q(ctx, r.db).ExecContext(ctx, query,
		c.ID, c.PrimaryID, c.SecondaryID, c.Method, c.Score, c.Status,
		c.CreatedAt, c.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return apperrors.Conflict("an open case already exists for this pair", err)
	}
	if err != nil {
		return fmt.Errorf("failed to create duplicate case: %w", err)
	}
	return nil
}

func (r *duplicateCaseRepository) Get(ctx context.Context, id uuid.UUID) (*model.DuplicateCase, error) {
	query := `SELECT * FROM duplicate_cases WHERE id = $1`
	var c model.DuplicateCase
	err := q(ctx, r.db).GetContext(ctx, &c, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("duplicate case", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get duplicate case: %w", err)
	}
	return &c, nil
}

func (r *duplicateCaseRepository) Update(ctx context.Context, c *model.DuplicateCase) error {
	query := `
		UPDATE duplicate_cases SET
			primary_id = $1, secondary_id = $2, status = $3, decision = $4,
			survivor_id = $5, rationale = $6, resolved_by = $7, resolved_at = $8,
			updated_at = $9
		WHERE id = $10
	`
	c.UpdatedAt = time.Now()
	res, err := q(ctx, r.db).ExecContext(ctx, query,
		c.PrimaryID, c.SecondaryID, c.Status, c.Decision, c.SurvivorID,
		c.Rationale, c.ResolvedBy, c.ResolvedAt, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update duplicate case: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("duplicate case", nil)
	}
	return nil
}

// FindOpenForPair matches the unordered pair: one active case per pair.
func (r *duplicateCaseRepository) FindOpenForPair(ctx context.Context, a, b uuid.UUID) (*model.DuplicateCase, error) {
	query := `
		SELECT * FROM duplicate_cases
		WHERE status IN ('pending', 'investigating')
		  AND ((primary_id = $1 AND secondary_id = $2) OR (primary_id = $2 AND secondary_id = $1))
		LIMIT 1
	`
	var c model.DuplicateCase
	err := q(ctx, r.db).GetContext(ctx, &c, query, a, b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("duplicate case", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open case for pair: %w", err)
	}
	return &c, nil
}

func (r *duplicateCaseRepository) ListOpenForIdentity(ctx context.Context, identityID uuid.UUID) ([]*model.DuplicateCase, error) {
	query := `
		SELECT * FROM duplicate_cases
		WHERE status IN ('pending', 'investigating')
		  AND (primary_id = $1 OR secondary_id = $1)
	`
	var cases []*model.DuplicateCase
	if err := q(ctx, r.db).SelectContext(ctx, &cases, query, identityID); err != nil {
		return nil, fmt.Errorf("failed to list open cases: %w", err)
	}
	return cases, nil
}
