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

type alertRepository struct {
	db *sqlx.DB
}

func NewAlertRepository(db *sqlx.DB) repository.AlertRepository {
	return &alertRepository{db: db}
}

func (r *alertRepository) Create(ctx context.Context, alert *model.CollisionAlert) error {
	query := `
		INSERT INTO collision_alerts (
			id, identity_id, type, severity, status, location, encounter_id,
			details, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	alert.CreatedAt = time.Now()
	alert.UpdatedAt = time.Now()

	_, err := q(ctx, r.db).ExecContext(ctx, query,
		alert.ID, alert.IdentityID, alert.Type, alert.Severity, alert.Status,
		alert.Location, alert.EncounterID, alert.Details,
		alert.CreatedAt, alert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create collision alert: %w", err)
	}
	return nil
}

func (r *alertRepository) Get(ctx context.Context, id uuid.UUID) (*model.CollisionAlert, error) {
	query := `SELECT * FROM collision_alerts WHERE id = $1`
	var alert model.CollisionAlert
	err := q(ctx, r.db).GetContext(ctx, &alert, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("collision alert", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collision alert: %w", err)
	}
	return &alert, nil
}

func (r *alertRepository) Update(ctx context.Context, alert *model.CollisionAlert) error {
	query := `
		UPDATE collision_alerts SET
			status = $1, acknowledged_by = $2, resolved_by = $3, closed_at = $4,
			details = $5, updated_at = $6
		WHERE id = $7
	`
	alert.UpdatedAt = time.Now()
	res, err := q(ctx, r.db).ExecContext(ctx, query,
		alert.Status, alert.AcknowledgedBy, alert.ResolvedBy, alert.ClosedAt,
		alert.Details, alert.UpdatedAt, alert.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update collision alert: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("collision alert", nil)
	}
	return nil
}

func (r *alertRepository) List(ctx context.Context, filters *model.AlertFilters) ([]*model.CollisionAlert, error) {
	query := `SELECT * FROM collision_alerts WHERE deleted_at IS NULL`
	args := []interface{}{}

	if filters != nil {
		if filters.IdentityID != nil {
			args = append(args, *filters.IdentityID)
			query += fmt.Sprintf(` AND identity_id = $%d`, len(args))
		}
		if filters.Status != "" {
			args = append(args, filters.Status)
			query += fmt.Sprintf(` AND status = $%d`, len(args))
		}
		if filters.Severity != "" {
			args = append(args, filters.Severity)
			query += fmt.Sprintf(` AND severity = $%d`, len(args))
		}
	}
	query += ` ORDER BY created_at DESC`

	var alerts []*model.CollisionAlert
	if err := q(ctx, r.db).SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list collision alerts: %w", err)
	}
	return alerts, nil
}

func (r *alertRepository) ListActiveByIdentity(ctx context.Context, identityID uuid.UUID) ([]*model.CollisionAlert, error) {
	query := `SELECT * FROM collision_alerts WHERE identity_id = $1 AND status = 'active'`
	var alerts []*model.CollisionAlert
	if err := q(ctx, r.db).SelectContext(ctx, &alerts, query, identityID); err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}
	return alerts, nil
}
