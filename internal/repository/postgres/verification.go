package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/identito-api/internal/model"
	"github.com/jwalitptl/identito-api/internal/repository"
)

type verificationRepository struct {
	db *sqlx.DB
}

func NewVerificationRepository(db *sqlx.DB) repository.VerificationRepository {
	return &verificationRepository{db: db}
}

func (r *verificationRepository) Create(ctx context.Context, v *model.IdentityVerification) error {
	query := `
		INSERT INTO identity_verifications (
			id, identity_id, type, outcome, verified_by, discrepancies,
			previous_status, new_status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	_, err := q(ctx, r.db).ExecContext(ctx, query,
		v.ID, v.IdentityID, v.Type, v.Outcome, v.VerifiedBy,
		v.Discrepancies, v.PreviousStatus, v.NewStatus, v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create verification: %w", err)
	}
	return nil
}

func (r *verificationRepository) ListByIdentity(ctx context.Context, identityID uuid.UUID) ([]*model.IdentityVerification, error) {
	query := `SELECT * FROM identity_verifications WHERE identity_id = $1 ORDER BY created_at`
	var verifications []*model.IdentityVerification
	if err := q(ctx, r.db).SelectContext(ctx, &verifications, query, identityID); err != nil {
		return nil, fmt.Errorf("failed to list verifications: %w", err)
	}
	return verifications, nil
}
