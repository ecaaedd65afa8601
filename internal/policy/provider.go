package policy

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/identito-api/internal/config"
	"github.com/jwalitptl/identito-api/internal/model"
	"github.com/jwalitptl/identito-api/internal/repository"
	apperrors "github.com/jwalitptl/identito-api/pkg/errors"
)

// Provider serves the facility identitovigilance policy with a short TTL
// cache, falling back to configured defaults when no row exists.
type Provider struct {
	repo       repository.PolicyRepository
	cache      *gocache.Cache
	facilityID string
	defaults   *model.IdentitovigilancePolicy
}

func NewProvider(repo repository.PolicyRepository, cfg config.PolicyConfig) *Provider {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	defaults := model.DefaultPolicy()
	if cfg.ProbableThreshold > 0 {
		defaults.ProbableThreshold = cfg.ProbableThreshold
	}
	if cfg.PossibleFloor > 0 {
		defaults.PossibleFloor = cfg.PossibleFloor
	}
	if cfg.MinQualityScore > 0 {
		defaults.MinQualityScore = cfg.MinQualityScore
	}
	if cfg.SimilarityThreshold > 0 {
		defaults.SimilarityThreshold = cfg.SimilarityThreshold
	}
	defaults.DemoteToDoubtful = cfg.DemoteToDoubtful
	defaults.FacilityID = cfg.FacilityID

	return &Provider{
		repo:       repo,
		cache:      gocache.New(ttl, 2*ttl),
		facilityID: cfg.FacilityID,
		defaults:   defaults,
	}
}

// Current returns the active policy. Lookup failures other than not-found
// degrade to the defaults rather than blocking identity operations.
func (p *Provider) Current(ctx context.Context) *model.IdentitovigilancePolicy {
	if cached, ok := p.cache.Get(p.facilityID); ok {
		return cached.(*model.IdentitovigilancePolicy)
	}

	policy, err := p.repo.GetByFacility(ctx, p.facilityID)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			return p.defaults
		}
		policy = p.defaults
	}

	p.cache.Set(p.facilityID, policy, gocache.DefaultExpiration)
	return policy
}
