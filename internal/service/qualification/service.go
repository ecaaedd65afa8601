package qualification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/identito-api/internal/model"
	"github.com/jwalitptl/identito-api/internal/repository"
	"github.com/jwalitptl/identito-api/internal/service/identity"
	"github.com/jwalitptl/identito-api/internal/teleservice"
	apperrors "github.com/jwalitptl/identito-api/pkg/errors"
	"github.com/jwalitptl/identito-api/pkg/logger"
	"github.com/jwalitptl/identito-api/pkg/metrics"
)

type QualificationService interface {
	RequestQualification(ctx context.Context, identityID uuid.UUID, req *model.RequestQualificationRequest) (*model.QualificationRequest, error)
	ApplyResponse(ctx context.Context, requestID uuid.UUID, response *model.QualificationResponse, actor string) (*model.QualificationRequest, error)
	GetRequest(ctx context.Context, id uuid.UUID) (*model.QualificationRequest, error)
	ExpireRequests(ctx context.Context, cutoff time.Time) (int, error)
}

// Service drives the INS qualification workflow. Submitting to the
// teleservice and applying its verdict are decoupled: a request that never
// gets a response stays pending and leaves the identity untouched until the
// expiry sweep closes it.
type Service struct {
	requests    repository.QualificationRepository
	identities  repository.IdentityRepository
	identitySvc identity.IdentityService
	client      teleservice.Client
	metrics     *metrics.Metrics
	logger      *logger.Logger
}

func NewService(
	requests repository.QualificationRepository,
	identities repository.IdentityRepository,
	identitySvc identity.IdentityService,
	client teleservice.Client,
	m *metrics.Metrics,
	l *logger.Logger,
) *Service {
	return &Service{
		requests:    requests,
		identities:  identities,
		identitySvc: identitySvc,
		client:      client,
		metrics:     m,
		logger:      l,
	}
}

// RequestQualification opens a pending request and submits the identity's
// traits to the teleservice in the background. The HTTP caller gets the
// pending request back immediately.
func (s *Service) RequestQualification(ctx context.Context, identityID uuid.UUID, req *model.RequestQualificationRequest) (*model.QualificationRequest, error) {
	ident, err := s.identities.Get(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if ident.IsTerminal() {
		return nil, apperrors.Conflict("identity was merged", nil)
	}
	if ident.Status == model.IdentityStatusFictitious || ident.Status == model.IdentityStatusAnonymous {
		return nil, apperrors.InvalidTransition(
			fmt.Sprintf("identity in status %q cannot be qualified", ident.Status))
	}

	request := &model.QualificationRequest{
		ID:          uuid.New(),
		IdentityID:  identityID,
		Type:        model.VerificationTeleservice,
		Status:      model.QualificationPending,
		RequestedBy: req.Actor,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to create qualification request: %w", err)
	}

	go s.submit(context.WithoutCancel(ctx), request, ident.PatientTraits)

	return request, nil
}

// submit calls the teleservice and applies its verdict. Transport errors
// leave the request pending for the expiry sweep; a definite verdict is
// applied immediately.
func (s *Service) submit(ctx context.Context, request *model.QualificationRequest, traits model.PatientTraits) {
	response, err := s.client.Submit(ctx, traits)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("teleservice submission failed, request stays pending",
				"request_id", request.ID, "error", err.Error())
		}
		return
	}
	if _, err := s.ApplyResponse(ctx, request.ID, response, request.RequestedBy); err != nil && s.logger != nil {
		s.logger.Error(err, "failed to apply teleservice response", "request_id", request.ID)
	}
}

// ApplyResponse settles a pending request with the teleservice verdict.
// qualified and provisional verdicts attach the national identifier and
// qualify the identity; not_found and error verdicts fail the request and
// leave the identity unchanged.
func (s *Service) ApplyResponse(ctx context.Context, requestID uuid.UUID, response *model.QualificationResponse, actor string) (*model.QualificationRequest, error) {
	request, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != model.QualificationPending {
		return nil, apperrors.InvalidTransition(
			fmt.Sprintf("qualification request in status %q is already settled", request.Status))
	}

	now := time.Now()
	request.ResolvedAt = &now

	switch response.Result {
	case model.ResultQualified, model.ResultProvisional:
		qualification := model.INSQualified
		if response.Result == model.ResultProvisional {
			qualification = model.INSProvisional
		}
		ins := &model.INSRecord{
			ID:            uuid.New(),
			IdentityID:    request.IdentityID,
			Value:         response.Value,
			OID:           response.OID,
			Type:          response.Type,
			Source:        model.INSSourceTeleservice,
			Qualification: qualification,
		}
		if _, err := s.identitySvc.ApplyRemoteQualification(ctx, request.IdentityID, ins, actor); err != nil {
			return nil, err
		}
		request.Status = model.QualificationApplied

	case model.ResultNotFound, model.ResultError:
		request.Status = model.QualificationFailed
		request.FailureNote = string(response.Result)

	default:
		return nil, apperrors.Validation(fmt.Sprintf("unknown qualification result %q", response.Result), nil)
	}

	if err := s.requests.Update(ctx, request); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.QualificationRequests.WithLabelValues(string(request.Status)).Inc()
	}
	return request, nil
}

func (s *Service) GetRequest(ctx context.Context, id uuid.UUID) (*model.QualificationRequest, error) {
	return s.requests.Get(ctx, id)
}

// ExpireRequests closes pending requests older than cutoff. The identities
// involved are untouched.
func (s *Service) ExpireRequests(ctx context.Context, cutoff time.Time) (int, error) {
	pending, err := s.requests.ListPendingBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, request := range pending {
		now := time.Now()
		request.Status = model.QualificationExpired
		request.ResolvedAt = &now
		if err := s.requests.Update(ctx, request); err != nil {
			return expired, err
		}
		expired++
		if s.metrics != nil {
			s.metrics.QualificationRequests.WithLabelValues(string(model.QualificationExpired)).Inc()
		}
	}
	return expired, nil
}
