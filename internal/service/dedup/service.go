package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/identito-api/internal/model"
	"github.com/jwalitptl/identito-api/internal/policy"
	"github.com/jwalitptl/identito-api/internal/repository"
	"github.com/jwalitptl/identito-api/internal/service/audit"
	"github.com/jwalitptl/identito-api/internal/service/matching"
	apperrors "github.com/jwalitptl/identito-api/pkg/errors"
	"github.com/jwalitptl/identito-api/pkg/logger"
	"github.com/jwalitptl/identito-api/pkg/metrics"
)

type DedupService interface {
	FindCandidates(ctx context.Context, identityID uuid.UUID) ([]*model.DuplicateCandidate, error)
	CreateCase(ctx context.Context, req *model.CreateCaseRequest) (*model.DuplicateCase, error)
	GetCase(ctx context.Context, id uuid.UUID) (*model.DuplicateCase, error)
	ListOpenCases(ctx context.Context, identityID uuid.UUID) ([]*model.DuplicateCase, error)
	StartInvestigation(ctx context.Context, id uuid.UUID, actor string) (*model.DuplicateCase, error)
	ResolveCase(ctx context.Context, id uuid.UUID, req *model.ResolveCaseRequest) (*model.DuplicateCase, error)
	MergeIdentities(ctx context.Context, req *model.MergeRequest) (*model.PatientIdentity, error)
}

type Service struct {
	identities    repository.IdentityRepository
	cases         repository.DuplicateCaseRepository
	verifications repository.VerificationRepository
	outbox        repository.OutboxRepository
	tx            repository.TxManager
	policies      *policy.Provider
	auditor       *audit.Service
	metrics       *metrics.Metrics
	logger        *logger.Logger
}

func NewService(
	identities repository.IdentityRepository,
	cases repository.DuplicateCaseRepository,
	verifications repository.VerificationRepository,
	outbox repository.OutboxRepository,
	tx repository.TxManager,
	policies *policy.Provider,
	auditor *audit.Service,
	m *metrics.Metrics,
	l *logger.Logger,
) *Service {
	return &Service{
		identities:    identities,
		cases:         cases,
		verifications: verifications,
		outbox:        outbox,
		tx:            tx,
		policies:      policies,
		auditor:       auditor,
		metrics:       m,
		logger:        l,
	}
}

// FindCandidates searches for potential duplicates of one identity. Blocking
// keys are the birth date and the normalized family name; the union of both
// result sets is scored and anything below the possible floor is dropped.
func (s *Service) FindCandidates(ctx context.Context, identityID uuid.UUID) ([]*model.DuplicateCandidate, error) {
	start := time.Now()
	identity, err := s.identities.Get(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if identity.IsTerminal() {
		return nil, apperrors.Conflict("identity was merged", nil)
	}

	pool := map[uuid.UUID]*model.PatientIdentity{}
	if identity.BirthDate != nil {
		byDate, err := s.identities.SearchByBirthDate(ctx, *identity.BirthDate)
		if err != nil {
			return nil, fmt.Errorf("failed to search by birth date: %w", err)
		}
		for _, c := range byDate {
			pool[c.ID] = c
		}
	}
	byName, err := s.identities.SearchByNormalizedName(ctx, matching.Normalize(identity.BirthFamilyName))
	if err != nil {
		return nil, fmt.Errorf("failed to search by name: %w", err)
	}
	for _, c := range byName {
		pool[c.ID] = c
	}

	matcher := matching.NewMatcher(matching.ConfigFromPolicy(s.policies.Current(ctx)))

	var candidates []*model.DuplicateCandidate
	for _, candidate := range pool {
		if candidate.ID == identity.ID || candidate.IsTerminal() {
			continue
		}
		aliases, err := s.identities.ListAliases(ctx, candidate.ID)
		if err != nil {
			return nil, err
		}
		res := matcher.MatchWithAliases(identity.PatientTraits, candidate.PatientTraits, aliases)
		if res.Classification == model.MatchNone {
			continue
		}
		candidates = append(candidates, &model.DuplicateCandidate{
			IdentityID:     identity.ID,
			CandidateID:    candidate.ID,
			Score:          res.Score,
			Classification: res.Classification,
			MatchedTraits:  res.MatchedTraits,
			Differences:    res.Differences,
		})
		if s.metrics != nil {
			s.metrics.MatchScores.Observe(float64(res.Score))
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if s.metrics != nil {
		s.metrics.CandidateSearch.Observe(time.Since(start).Seconds())
	}
	return candidates, nil
}

// CreateCase opens a duplicate case for a pair. The match score is computed
// once here and frozen; later trait edits do not move it. At most one open
// case may exist per unordered pair.
func (s *Service) CreateCase(ctx context.Context, req *model.CreateCaseRequest) (*model.DuplicateCase, error) {
	if req.PrimaryID == req.SecondaryID {
		return nil, apperrors.Validation("a duplicate case needs two distinct identities", nil)
	}

	primary, err := s.identities.Get(ctx, req.PrimaryID)
	if err != nil {
		return nil, err
	}
	secondary, err := s.identities.Get(ctx, req.SecondaryID)
	if err != nil {
		return nil, err
	}
	if primary.IsTerminal() || secondary.IsTerminal() {
		return nil, apperrors.Conflict("cannot open a case on a merged identity", nil)
	}

	if existing, err := s.cases.FindOpenForPair(ctx, req.PrimaryID, req.SecondaryID); err == nil && existing != nil {
		return nil, apperrors.Conflict("an open case already exists for this pair", nil)
	} else if err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}

	aliases, err := s.identities.ListAliases(ctx, secondary.ID)
	if err != nil {
		return nil, err
	}
	matcher := matching.NewMatcher(matching.ConfigFromPolicy(s.policies.Current(ctx)))
	res := matcher.MatchWithAliases(primary.PatientTraits, secondary.PatientTraits, aliases)

	c := &model.DuplicateCase{
		PrimaryID:   req.PrimaryID,
		SecondaryID: req.SecondaryID,
		Method:      req.Method,
		Score:       res.Score,
		Status:      model.CasePending,
	}
	c.ID = uuid.New()
	if err := s.cases.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create duplicate case: %w", err)
	}

	if s.metrics != nil {
		s.metrics.CasesOpened.WithLabelValues(string(req.Method)).Inc()
	}
	s.auditLog(ctx, "system", "create_case", c.ID, c)
	return c, nil
}

func (s *Service) GetCase(ctx context.Context, id uuid.UUID) (*model.DuplicateCase, error) {
	return s.cases.Get(ctx, id)
}

func (s *Service) ListOpenCases(ctx context.Context, identityID uuid.UUID) ([]*model.DuplicateCase, error) {
	return s.cases.ListOpenForIdentity(ctx, identityID)
}

func (s *Service) StartInvestigation(ctx context.Context, id uuid.UUID, actor string) (*model.DuplicateCase, error) {
	c, err := s.cases.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CasePending {
		return nil, apperrors.InvalidTransition(
			fmt.Sprintf("case in status %q cannot move to investigating", c.Status))
	}
	c.Status = model.CaseInvestigating
	if err := s.cases.Update(ctx, c); err != nil {
		return nil, err
	}
	s.auditLog(ctx, actor, "start_investigation", c.ID, c)
	return c, nil
}

// ResolveCase closes an open case with a decision. A merge decision performs
// the merge in the same transaction as the case closure so that a merged case
// always corresponds to actually merged records.
func (s *Service) ResolveCase(ctx context.Context, id uuid.UUID, req *model.ResolveCaseRequest) (*model.DuplicateCase, error) {
	c, err := s.cases.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Status.Open() {
		return nil, apperrors.InvalidTransition(
			fmt.Sprintf("case in status %q is already resolved", c.Status))
	}

	now := time.Now()
	decision := req.Decision
	c.Decision = &decision
	c.Rationale = req.Rationale
	c.ResolvedBy = req.ResolvedBy
	c.ResolvedAt = &now

	switch req.Decision {
	case model.DecisionNotDuplicate:
		c.Status = model.CaseNotDuplicate
	case model.DecisionNoAction:
		c.Status = model.CaseDismissed
	case model.DecisionMerge:
		if req.SurvivorID == nil {
			return nil, apperrors.Validation("merge decision requires a survivor", nil)
		}
		if !c.References(*req.SurvivorID) {
			return nil, apperrors.Validation("survivor must be one of the case identities", nil)
		}
		c.Status = model.CaseMerged
		c.SurvivorID = req.SurvivorID
	default:
		return nil, apperrors.Validation(fmt.Sprintf("unknown decision %q", req.Decision), nil)
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if req.Decision == model.DecisionMerge {
			mergedID := c.PrimaryID
			if mergedID == *req.SurvivorID {
				mergedID = c.SecondaryID
			}
			if err := s.merge(ctx, *req.SurvivorID, mergedID, req.ResolvedBy); err != nil {
				return err
			}
		}
		if err := s.cases.Update(ctx, c); err != nil {
			return err
		}
		return s.enqueueEvent(ctx, model.EventCaseResolved, c)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.CasesResolved.WithLabelValues(string(req.Decision)).Inc()
	}
	s.auditLog(ctx, req.ResolvedBy, "resolve_case", c.ID, req)
	return c, nil
}

func (s *Service) enqueueEvent(ctx context.Context, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox payload: %w", err)
	}
	return s.outbox.Create(ctx, &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   data,
		Status:    string(model.OutboxStatusPending),
	})
}

func (s *Service) auditLog(ctx context.Context, actor, action string, entityID uuid.UUID, changes interface{}) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Log(ctx, actor, action, "duplicate_case", entityID, changes); err != nil && s.logger != nil {
		s.logger.Error(err, "failed to write audit entry", "action", action)
	}
}
