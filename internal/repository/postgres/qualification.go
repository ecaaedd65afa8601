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

type qualificationRepository struct {
	db *sqlx.DB
}

func NewQualificationRepository(db *sqlx.DB) repository.QualificationRepository {
	return &qualificationRepository{db: db}
}

func (r *qualificationRepository) Create(ctx context.Context, req *model.QualificationRequest) error {
	query := `
		INSERT INTO qualification_requests (
			id, identity_id, type, status, requested_by, failure_note, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	_, err := q(ctx, r.db).ExecContext(ctx, query,
		req.ID, req.IdentityID, req.Type, req.Status, req.RequestedBy,
		req.FailureNote, req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create qualification request: %w", err)
	}
	return nil
}

func (r *qualificationRepository) Get(ctx context.Context, id uuid.UUID) (*model.QualificationRequest, error) {
	query := `SELECT * FROM qualification_requests WHERE id = $1`
	var req model.QualificationRequest
	err := q(ctx, r.db).GetContext(ctx, &req, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("qualification request", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get qualification request: %w", err)
	}
	return &req, nil
}

func (r *qualificationRepository) Update(ctx context.Context, req *model.QualificationRequest) error {
	query := `
		UPDATE qualification_requests
		SET status = $1, failure_note = $2, resolved_at = $3
		WHERE id = $4
	`
	res, err := q(ctx, r.db).ExecContext(ctx, query, req.Status, req.FailureNote, req.ResolvedAt, req.ID)
	if err != nil {
		return fmt.Errorf("failed to update qualification request: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("qualification request", nil)
	}
	return nil
}

func (r *qualificationRepository) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*model.QualificationRequest, error) {
	query := `
		SELECT * FROM qualification_requests
		WHERE status = 'pending' AND created_at < $1
	`
	var reqs []*model.QualificationRequest
	if err := q(ctx, r.db).SelectContext(ctx, &reqs, query, cutoff); err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	return reqs, nil
}
