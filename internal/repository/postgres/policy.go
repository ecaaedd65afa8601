package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/identito-api/internal/model"
	"github.com/jwalitptl/identito-api/internal/repository"
	apperrors "github.com/jwalitptl/identito-api/pkg/errors"
)

type policyRepository struct {
	db *sqlx.DB
}

func NewPolicyRepository(db *sqlx.DB) repository.PolicyRepository {
	return &policyRepository{db: db}
}

func (r *policyRepository) GetByFacility(ctx context.Context, facilityID string) (*model.IdentitovigilancePolicy, error) {
	query := `SELECT * FROM identitovigilance_policies WHERE facility_id = $1`
	var policy model.IdentitovigilancePolicy
	err := q(ctx, r.db).GetContext(ctx, &policy, query, facilityID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("policy", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}

	if policy.RequiredTraitsJSON != "" {
		if err := json.Unmarshal([]byte(policy.RequiredTraitsJSON), &policy.RequiredTraits); err != nil {
			return nil, fmt.Errorf("failed to unmarshal required traits: %w", err)
		}
	}
	if policy.MandatoryVerificationsJSON != "" {
		if err := json.Unmarshal([]byte(policy.MandatoryVerificationsJSON), &policy.MandatoryVerifications); err != nil {
			return nil, fmt.Errorf("failed to unmarshal mandatory verifications: %w", err)
		}
	}
	return &policy, nil
}
