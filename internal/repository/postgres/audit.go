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

type auditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) repository.AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, entry *model.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (id, actor, action, entity_type, entity_id, changes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := q(ctx, r.db).ExecContext(ctx, query,
		entry.ID, entry.Actor, entry.Action, entry.EntityType, entry.EntityID,
		entry.Changes, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}
	return nil
}

func (r *auditRepository) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*model.AuditEntry, error) {
	query := `
		SELECT * FROM audit_entries
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at
	`
	var entries []*model.AuditEntry
	if err := q(ctx, r.db).SelectContext(ctx, &entries, query, entityType, entityID); err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}
