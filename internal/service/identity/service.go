package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
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

type IdentityService interface {
	CreateIdentity(ctx context.Context, req *model.CreateIdentityRequest) (*model.PatientIdentity, error)
	GetIdentity(ctx context.Context, id uuid.UUID) (*model.PatientIdentity, error)
	ListIdentities(ctx context.Context, filters *model.IdentityFilters) ([]*model.PatientIdentity, error)
	UpdateTraits(ctx context.Context, id uuid.UUID, req *model.UpdateTraitsRequest) (*model.PatientIdentity, error)
	AddAlias(ctx context.Context, id uuid.UUID, req *model.AddAliasRequest) (*model.PatientAlias, error)
	RecordVerification(ctx context.Context, id uuid.UUID, req *model.RecordVerificationRequest) (*model.IdentityVerification, error)
	VerifyWithDocument(ctx context.Context, id uuid.UUID, verifiedBy string, discrepancies []string) (*model.IdentityVerification, error)
	ApplyRemoteQualification(ctx context.Context, id uuid.UUID, ins *model.INSRecord, actor string) (*model.IdentityVerification, error)
	InvalidateINS(ctx context.Context, id uuid.UUID, actor, note string) (*model.IdentityVerification, error)
	GetVerificationHistory(ctx context.Context, id uuid.UUID) ([]*model.IdentityVerification, error)
	GetQualityScore(ctx context.Context, id uuid.UUID) (int, error)
	ListBelowQualityThreshold(ctx context.Context) ([]*model.PatientIdentity, error)
	RunComplianceAudit(ctx context.Context) ([]*model.ComplianceFinding, error)
}

type Service struct {
	repo          repository.IdentityRepository
	verifications repository.VerificationRepository
	outbox        repository.OutboxRepository
	tx            repository.TxManager
	policies      *policy.Provider
	auditor       *audit.Service
	metrics       *metrics.Metrics
	logger        *logger.Logger
}

func NewService(
	repo repository.IdentityRepository,
	verifications repository.VerificationRepository,
	outbox repository.OutboxRepository,
	tx repository.TxManager,
	policies *policy.Provider,
	auditor *audit.Service,
	m *metrics.Metrics,
	l *logger.Logger,
) *Service {
	return &Service{
		repo:          repo,
		verifications: verifications,
		outbox:        outbox,
		tx:            tx,
		policies:      policies,
		auditor:       auditor,
		metrics:       m,
		logger:        l,
	}
}

func (s *Service) CreateIdentity(ctx context.Context, req *model.CreateIdentityRequest) (*model.PatientIdentity, error) {
	traits := model.PatientTraits{
		BirthFamilyName: req.BirthFamilyName,
		BirthGivenName:  req.BirthGivenName,
		BirthDate:       req.BirthDate,
		Sex:             req.Sex,
		BirthPlaceCode:  req.BirthPlaceCode,
		UsualName:       req.UsualName,
		AllGivenNames:   req.AllGivenNames,
		PreferredName:   req.PreferredName,
	}
	if err := s.validateTraits(ctx, traits); err != nil {
		return nil, err
	}

	identity := &model.PatientIdentity{
		PatientTraits:  traits,
		LocalID:        req.LocalID,
		Status:         model.IdentityStatusProvisional,
		NormalizedName: matching.Normalize(traits.BirthFamilyName),
	}
	identity.ID = uuid.New()
	identity.QualityScore = QualityScore(traits, nil, identity.Status)

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, identity); err != nil {
			return err
		}
		return s.enqueueEvent(ctx, model.EventIdentityCreated, identity)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	if s.metrics != nil {
		s.metrics.QualityScore.Observe(float64(identity.QualityScore))
	}
	s.auditLog(ctx, "system", "create", identity.ID, identity)
	return identity, nil
}

func (s *Service) GetIdentity(ctx context.Context, id uuid.UUID) (*model.PatientIdentity, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListIdentities(ctx context.Context, filters *model.IdentityFilters) ([]*model.PatientIdentity, error) {
	return s.repo.List(ctx, filters)
}

// UpdateTraits applies a trait correction under optimistic concurrency: the
// write is conditioned on the version the caller read, and a conflict is
// returned for the caller to retry after re-reading.
func (s *Service) UpdateTraits(ctx context.Context, id uuid.UUID, req *model.UpdateTraitsRequest) (*model.PatientIdentity, error) {
	identity, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if identity.IsTerminal() {
		return nil, apperrors.Conflict("identity was merged and is read-only", nil)
	}

	applyTraitPatch(identity, req)
	if err := s.validateTraits(ctx, identity.PatientTraits); err != nil {
		return nil, err
	}

	identity.NormalizedName = matching.Normalize(identity.BirthFamilyName)
	identity.Version = req.Version
	identity.QualityScore = QualityScore(identity.PatientTraits, identity.INS, identity.Status)

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, identity); err != nil {
			return err
		}
		return s.enqueueEvent(ctx, model.EventTraitsUpdated, identity)
	})
	if err != nil {
		return nil, err
	}

	s.auditLog(ctx, "system", "update_traits", identity.ID, req)
	return identity, nil
}

func (s *Service) AddAlias(ctx context.Context, id uuid.UUID, req *model.AddAliasRequest) (*model.PatientAlias, error) {
	identity, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if identity.IsTerminal() {
		return nil, apperrors.Conflict("identity was merged and is read-only", nil)
	}

	alias := &model.PatientAlias{
		ID:         uuid.New(),
		IdentityID: id,
		FamilyName: req.FamilyName,
		GivenName:  req.GivenName,
		Kind:       req.Kind,
		ValidFrom:  req.ValidFrom,
		ValidUntil: req.ValidUntil,
	}
	if err := s.repo.AddAlias(ctx, alias); err != nil {
		return nil, err
	}
	s.auditLog(ctx, "system", "add_alias", id, alias)
	return alias, nil
}

// RecordVerification feeds one verification event through the state machine
// and persists the transition together with exactly one verification record.
func (s *Service) RecordVerification(ctx context.Context, id uuid.UUID, req *model.RecordVerificationRequest) (*model.IdentityVerification, error) {
	identity, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if identity.IsTerminal() {
		return nil, apperrors.Conflict("identity was merged and is read-only", nil)
	}

	pol := s.policies.Current(ctx)
	transition, err := Advance(identity.Status, VerificationEvent{
		Type:             req.Type,
		Success:          req.Success,
		Discrepancies:    req.Discrepancies,
		DemoteToDoubtful: pol.DemoteToDoubtful,
	})
	if err != nil {
		return nil, err
	}

	verification := &model.IdentityVerification{
		ID:             uuid.New(),
		IdentityID:     id,
		Type:           req.Type,
		Outcome:        transition.Outcome,
		VerifiedBy:     req.VerifiedBy,
		Discrepancies:  strings.Join(req.Discrepancies, "; "),
		PreviousStatus: transition.From,
		NewStatus:      transition.To,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.verifications.Create(ctx, verification); err != nil {
			return err
		}
		if transition.To != transition.From {
			identity.Status = transition.To
			identity.QualityScore = QualityScore(identity.PatientTraits, identity.INS, identity.Status)
			if err := s.repo.Update(ctx, identity); err != nil {
				return err
			}
			return s.enqueueEvent(ctx, model.EventStatusChanged, verification)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.VerificationsRecorded.WithLabelValues(string(req.Type), string(transition.Outcome)).Inc()
		if transition.To != transition.From {
			s.metrics.StatusTransitions.WithLabelValues(string(transition.From), string(transition.To)).Inc()
		}
	}
	s.auditLog(ctx, req.VerifiedBy, "record_verification", id, verification)
	return verification, nil
}

func (s *Service) VerifyWithDocument(ctx context.Context, id uuid.UUID, verifiedBy string, discrepancies []string) (*model.IdentityVerification, error) {
	return s.RecordVerification(ctx, id, &model.RecordVerificationRequest{
		Type:          model.VerificationDocument,
		VerifiedBy:    verifiedBy,
		Success:       true,
		Discrepancies: discrepancies,
	})
}

// ApplyRemoteQualification attaches the national-identifier record returned
// by the teleservice and sets the identity qualified in one transaction.
func (s *Service) ApplyRemoteQualification(ctx context.Context, id uuid.UUID, ins *model.INSRecord, actor string) (*model.IdentityVerification, error) {
	identity, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if identity.IsTerminal() {
		return nil, apperrors.Conflict("identity was merged and is read-only", nil)
	}

	transition, err := Advance(identity.Status, VerificationEvent{
		Type:    model.VerificationTeleservice,
		Success: true,
	})
	if err != nil {
		return nil, err
	}

	verification := &model.IdentityVerification{
		ID:             uuid.New(),
		IdentityID:     id,
		Type:           model.VerificationTeleservice,
		Outcome:        transition.Outcome,
		VerifiedBy:     actor,
		PreviousStatus: transition.From,
		NewStatus:      transition.To,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		ins.IdentityID = id
		if err := s.repo.UpsertINS(ctx, ins); err != nil {
			return err
		}
		if err := s.verifications.Create(ctx, verification); err != nil {
			return err
		}
		identity.Status = transition.To
		identity.INS = ins
		identity.QualityScore = QualityScore(identity.PatientTraits, ins, identity.Status)
		if err := s.repo.Update(ctx, identity); err != nil {
			return err
		}
		return s.enqueueEvent(ctx, model.EventQualificationDone, verification)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.VerificationsRecorded.WithLabelValues(string(model.VerificationTeleservice), string(transition.Outcome)).Inc()
		s.metrics.StatusTransitions.WithLabelValues(string(transition.From), string(transition.To)).Inc()
	}
	s.auditLog(ctx, actor, "apply_qualification", id, verification)
	return verification, nil
}

// InvalidateINS demotes a qualified record whose national identifier turned
// out wrong. The downgrade target follows the facility policy.
func (s *Service) InvalidateINS(ctx context.Context, id uuid.UUID, actor, note string) (*model.IdentityVerification, error) {
	identity, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if identity.IsTerminal() {
		return nil, apperrors.Conflict("identity was merged and is read-only", nil)
	}
	if identity.INS == nil {
		return nil, apperrors.Validation("identity has no national identifier to invalidate", nil)
	}

	pol := s.policies.Current(ctx)
	transition, err := Advance(identity.Status, VerificationEvent{
		Type:             model.VerificationInvalidation,
		Success:          true,
		DemoteToDoubtful: pol.DemoteToDoubtful,
	})
	if err != nil {
		return nil, err
	}

	verification := &model.IdentityVerification{
		ID:             uuid.New(),
		IdentityID:     id,
		Type:           model.VerificationInvalidation,
		Outcome:        transition.Outcome,
		VerifiedBy:     actor,
		Discrepancies:  note,
		PreviousStatus: transition.From,
		NewStatus:      transition.To,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		identity.INS.Qualification = model.INSInvalid
		if err := s.repo.UpsertINS(ctx, identity.INS); err != nil {
			return err
		}
		if err := s.verifications.Create(ctx, verification); err != nil {
			return err
		}
		identity.Status = transition.To
		identity.QualityScore = QualityScore(identity.PatientTraits, identity.INS, identity.Status)
		if err := s.repo.Update(ctx, identity); err != nil {
			return err
		}
		return s.enqueueEvent(ctx, model.EventStatusChanged, verification)
	})
	if err != nil {
		return nil, err
	}

	s.auditLog(ctx, actor, "invalidate_ins", id, verification)
	return verification, nil
}

func (s *Service) GetVerificationHistory(ctx context.Context, id uuid.UUID) ([]*model.IdentityVerification, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.verifications.ListByIdentity(ctx, id)
}

func (s *Service) GetQualityScore(ctx context.Context, id uuid.UUID) (int, error) {
	identity, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return QualityScore(identity.PatientTraits, identity.INS, identity.Status), nil
}

func (s *Service) ListBelowQualityThreshold(ctx context.Context) ([]*model.PatientIdentity, error) {
	pol := s.policies.Current(ctx)
	return s.repo.ListBelowQuality(ctx, pol.MinQualityScore)
}

// RunComplianceAudit checks every active identity against the facility
// policy: mandatory traits, quality floor and, when required, a qualified
// national identifier.
func (s *Service) RunComplianceAudit(ctx context.Context) ([]*model.ComplianceFinding, error) {
	pol := s.policies.Current(ctx)
	identities, err := s.repo.List(ctx, &model.IdentityFilters{})
	if err != nil {
		return nil, fmt.Errorf("failed to list identities for audit: %w", err)
	}

	var findings []*model.ComplianceFinding
	for _, identity := range identities {
		issues := complianceIssues(identity, pol)
		if len(issues) == 0 {
			continue
		}
		findings = append(findings, &model.ComplianceFinding{
			IdentityID:   identity.ID,
			LocalID:      identity.LocalID,
			QualityScore: identity.QualityScore,
			Issues:       issues,
		})
	}
	return findings, nil
}

func complianceIssues(identity *model.PatientIdentity, pol *model.IdentitovigilancePolicy) []string {
	var issues []string
	for _, trait := range pol.RequiredTraits {
		if !hasTrait(identity.PatientTraits, trait) {
			issues = append(issues, "missing mandatory trait: "+trait)
		}
	}
	if identity.QualityScore < pol.MinQualityScore {
		issues = append(issues, fmt.Sprintf("quality score %d below threshold %d", identity.QualityScore, pol.MinQualityScore))
	}
	if pol.INSQualificationNeeded {
		if identity.INS == nil || identity.INS.Qualification != model.INSQualified {
			issues = append(issues, "national identifier not qualified")
		}
	}
	return issues
}

func hasTrait(traits model.PatientTraits, name string) bool {
	switch name {
	case "birth_family_name":
		return traits.BirthFamilyName != ""
	case "birth_given_name":
		return traits.BirthGivenName != ""
	case "birth_date":
		return traits.BirthDate != nil && !traits.BirthDate.IsZero()
	case "sex":
		return traits.Sex != ""
	case "birth_place_code":
		return traits.BirthPlaceCode != ""
	}
	return true
}

func (s *Service) validateTraits(ctx context.Context, traits model.PatientTraits) error {
	pol := s.policies.Current(ctx)
	for _, trait := range pol.RequiredTraits {
		if !hasTrait(traits, trait) {
			return apperrors.Validation("missing mandatory trait: "+trait, nil)
		}
	}
	if traits.BirthDate != nil && traits.BirthDate.After(time.Now()) {
		return apperrors.Validation("birth date is in the future", nil)
	}
	return nil
}

func applyTraitPatch(identity *model.PatientIdentity, req *model.UpdateTraitsRequest) {
	if req.BirthFamilyName != nil {
		identity.BirthFamilyName = *req.BirthFamilyName
	}
	if req.BirthGivenName != nil {
		identity.BirthGivenName = *req.BirthGivenName
	}
	if req.BirthDate != nil {
		identity.BirthDate = req.BirthDate
	}
	if req.Sex != nil {
		identity.Sex = *req.Sex
	}
	if req.BirthPlaceCode != nil {
		identity.BirthPlaceCode = *req.BirthPlaceCode
	}
	if req.UsualName != nil {
		identity.UsualName = *req.UsualName
	}
	if req.AllGivenNames != nil {
		identity.AllGivenNames = *req.AllGivenNames
	}
	if req.PreferredName != nil {
		identity.PreferredName = *req.PreferredName
	}
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
	if err := s.auditor.Log(ctx, actor, action, "identity", entityID, changes); err != nil && s.logger != nil {
		s.logger.Error(err, "failed to write audit entry", "action", action)
	}
}
