package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/identito-api/internal/model"
	"github.com/jwalitptl/identito-api/internal/repository"
)

// Service writes the append-only operation trail. Trail writes are ancillary
// to the operations they describe and never veto them; callers log failures.
type Service struct {
	repo repository.AuditRepository
}

func NewService(repo repository.AuditRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Log(ctx context.Context, actor, action, entityType string, entityID uuid.UUID, changes interface{}) error {
	var payload json.RawMessage
	if changes != nil {
		data, err := json.Marshal(changes)
		if err != nil {
			return err
		}
		payload = data
	}

	entry := &model.AuditEntry{
		ID:         uuid.New(),
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Changes:    payload,
		CreatedAt:  time.Now(),
	}
	return s.repo.Create(ctx, entry)
}

func (s *Service) History(ctx context.Context, entityType string, entityID uuid.UUID) ([]*model.AuditEntry, error) {
	return s.repo.ListByEntity(ctx, entityType, entityID)
}
