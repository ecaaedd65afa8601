package qualification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/identito-api/internal/model"
	apperrors "github.com/jwalitptl/identito-api/pkg/errors"
)

type fakeQualificationRepo struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*model.QualificationRequest
}

func newFakeQualificationRepo() *fakeQualificationRepo {
	return &fakeQualificationRepo{requests: map[uuid.UUID]*model.QualificationRequest{}}
}

func (r *fakeQualificationRepo) Create(_ context.Context, req *model.QualificationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *req
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.requests[req.ID] = &cp
	return nil
}

func (r *fakeQualificationRepo) Get(_ context.Context, id uuid.UUID) (*model.QualificationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, apperrors.NotFound("qualification request", nil)
	}
	cp := *req
	return &cp, nil
}

func (r *fakeQualificationRepo) Update(_ context.Context, req *model.QualificationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[req.ID]; !ok {
		return apperrors.NotFound("qualification request", nil)
	}
	cp := *req
	r.requests[req.ID] = &cp
	return nil
}

func (r *fakeQualificationRepo) ListPendingBefore(_ context.Context, cutoff time.Time) ([]*model.QualificationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.QualificationRequest
	for _, req := range r.requests {
		if req.Status == model.QualificationPending && req.CreatedAt.Before(cutoff) {
			cp := *req
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeIdentityRepo struct {
	identities map[uuid.UUID]*model.PatientIdentity
}

func (r *fakeIdentityRepo) Get(_ context.Context, id uuid.UUID) (*model.PatientIdentity, error) {
	identity, ok := r.identities[id]
	if !ok {
		return nil, apperrors.NotFound("identity", nil)
	}
	cp := *identity
	return &cp, nil
}

func (r *fakeIdentityRepo) Create(context.Context, *model.PatientIdentity) error { return nil }
func (r *fakeIdentityRepo) GetByLocalID(context.Context, string) (*model.PatientIdentity, error) {
	return nil, apperrors.NotFound("identity", nil)
}
func (r *fakeIdentityRepo) Update(context.Context, *model.PatientIdentity) error { return nil }
func (r *fakeIdentityRepo) List(context.Context, *model.IdentityFilters) ([]*model.PatientIdentity, error) {
	return nil, nil
}
func (r *fakeIdentityRepo) SearchByBirthDate(context.Context, time.Time) ([]*model.PatientIdentity, error) {
	return nil, nil
}
func (r *fakeIdentityRepo) SearchByNormalizedName(context.Context, string) ([]*model.PatientIdentity, error) {
	return nil, nil
}
func (r *fakeIdentityRepo) ListBelowQuality(context.Context, int) ([]*model.PatientIdentity, error) {
	return nil, nil
}
func (r *fakeIdentityRepo) LockPair(context.Context, uuid.UUID, uuid.UUID) error   { return nil }
func (r *fakeIdentityRepo) MarkMerged(context.Context, uuid.UUID, uuid.UUID) error { return nil }
func (r *fakeIdentityRepo) SetMergedFrom(context.Context, uuid.UUID, []uuid.UUID) error {
	return nil
}
func (r *fakeIdentityRepo) RepointMergedInto(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}
func (r *fakeIdentityRepo) UpsertINS(context.Context, *model.INSRecord) error { return nil }
func (r *fakeIdentityRepo) GetINS(context.Context, uuid.UUID) (*model.INSRecord, error) {
	return nil, apperrors.NotFound("ins record", nil)
}
func (r *fakeIdentityRepo) AddAlias(context.Context, *model.PatientAlias) error { return nil }
func (r *fakeIdentityRepo) ListAliases(context.Context, uuid.UUID) ([]*model.PatientAlias, error) {
	return nil, nil
}
func (r *fakeIdentityRepo) ReassignAliases(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}

// fakeIdentityService records ApplyRemoteQualification calls; the rest of the
// interface is unused here.
type fakeIdentityService struct {
	applied []*model.INSRecord
}

func (s *fakeIdentityService) ApplyRemoteQualification(_ context.Context, id uuid.UUID, ins *model.INSRecord, _ string) (*model.IdentityVerification, error) {
	s.applied = append(s.applied, ins)
	return &model.IdentityVerification{
		IdentityID: id,
		Type:       model.VerificationTeleservice,
		Outcome:    model.OutcomeSuccess,
		NewStatus:  model.IdentityStatusQualified,
	}, nil
}

func (s *fakeIdentityService) CreateIdentity(context.Context, *model.CreateIdentityRequest) (*model.PatientIdentity, error) {
	return nil, nil
}
func (s *fakeIdentityService) GetIdentity(context.Context, uuid.UUID) (*model.PatientIdentity, error) {
	return nil, nil
}
func (s *fakeIdentityService) ListIdentities(context.Context, *model.IdentityFilters) ([]*model.PatientIdentity, error) {
	return nil, nil
}
func (s *fakeIdentityService) UpdateTraits(context.Context, uuid.UUID, *model.UpdateTraitsRequest) (*model.PatientIdentity, error) {
	return nil, nil
}
func (s *fakeIdentityService) AddAlias(context.Context, uuid.UUID, *model.AddAliasRequest) (*model.PatientAlias, error) {
	return nil, nil
}
func (s *fakeIdentityService) RecordVerification(context.Context, uuid.UUID, *model.RecordVerificationRequest) (*model.IdentityVerification, error) {
	return nil, nil
}
func (s *fakeIdentityService) VerifyWithDocument(context.Context, uuid.UUID, string, []string) (*model.IdentityVerification, error) {
	return nil, nil
}
func (s *fakeIdentityService) InvalidateINS(context.Context, uuid.UUID, string, string) (*model.IdentityVerification, error) {
	return nil, nil
}
func (s *fakeIdentityService) GetVerificationHistory(context.Context, uuid.UUID) ([]*model.IdentityVerification, error) {
	return nil, nil
}
func (s *fakeIdentityService) GetQualityScore(context.Context, uuid.UUID) (int, error) {
	return 0, nil
}
func (s *fakeIdentityService) ListBelowQualityThreshold(context.Context) ([]*model.PatientIdentity, error) {
	return nil, nil
}
func (s *fakeIdentityService) RunComplianceAudit(context.Context) ([]*model.ComplianceFinding, error) {
	return nil, nil
}

// fakeClient returns a canned verdict or a transport error.
type fakeClient struct {
	response *model.QualificationResponse
	err      error
}

func (c *fakeClient) Submit(context.Context, model.PatientTraits) (*model.QualificationResponse, error) {
	return c.response, c.err
}

type qualificationFixture struct {
	svc         *Service
	requests    *fakeQualificationRepo
	identitySvc *fakeIdentityService
	client      *fakeClient
}

func newQualificationFixture(p *model.PatientIdentity) *qualificationFixture {
	requests := newFakeQualificationRepo()
	identities := &fakeIdentityRepo{identities: map[uuid.UUID]*model.PatientIdentity{p.ID: p}}
	identitySvc := &fakeIdentityService{}
	client := &fakeClient{}

	return &qualificationFixture{
		svc:         NewService(requests, identities, identitySvc, client, nil, nil),
		requests:    requests,
		identitySvc: identitySvc,
		client:      client,
	}
}

func validatedPatient() *model.PatientIdentity {
	p := &model.PatientIdentity{Status: model.IdentityStatusValidated, LocalID: "IPP-1"}
	p.ID = uuid.New()
	return p
}

func TestApplyResponseQualified(t *testing.T) {
	p := validatedPatient()
	f := newQualificationFixture(p)

	request := &model.QualificationRequest{
		ID:         uuid.New(),
		IdentityID: p.ID,
		Type:       model.VerificationTeleservice,
		Status:     model.QualificationPending,
	}
	require.NoError(t, f.requests.Create(context.Background(), request))

	settled, err := f.svc.ApplyResponse(context.Background(), request.ID, &model.QualificationResponse{
		Result: model.ResultQualified,
		Value:  "185037505612345",
		OID:    "1.2.250.1.213.1.4.8",
		Type:   model.INSTypePermanent,
	}, "insi")
	require.NoError(t, err)

	assert.Equal(t, model.QualificationApplied, settled.Status)
	require.NotNil(t, settled.ResolvedAt)
	require.Len(t, f.identitySvc.applied, 1)
	assert.Equal(t, model.INSQualified, f.identitySvc.applied[0].Qualification)
	assert.Equal(t, model.INSSourceTeleservice, f.identitySvc.applied[0].Source)
}

func TestApplyResponseProvisional(t *testing.T) {
	p := validatedPatient()
	f := newQualificationFixture(p)

	request := &model.QualificationRequest{
		ID:         uuid.New(),
		IdentityID: p.ID,
		Status:     model.QualificationPending,
	}
	require.NoError(t, f.requests.Create(context.Background(), request))

	settled, err := f.svc.ApplyResponse(context.Background(), request.ID, &model.QualificationResponse{
		Result: model.ResultProvisional,
		Value:  "285037505612346",
	}, "insi")
	require.NoError(t, err)

	assert.Equal(t, model.QualificationApplied, settled.Status)
	require.Len(t, f.identitySvc.applied, 1)
	assert.Equal(t, model.INSProvisional, f.identitySvc.applied[0].Qualification)
}

func TestApplyResponseNotFoundLeavesIdentityUntouched(t *testing.T) {
	p := validatedPatient()
	f := newQualificationFixture(p)

	request := &model.QualificationRequest{
		ID:         uuid.New(),
		IdentityID: p.ID,
		Status:     model.QualificationPending,
	}
	require.NoError(t, f.requests.Create(context.Background(), request))

	settled, err := f.svc.ApplyResponse(context.Background(), request.ID, &model.QualificationResponse{
		Result: model.ResultNotFound,
	}, "insi")
	require.NoError(t, err)

	assert.Equal(t, model.QualificationFailed, settled.Status)
	assert.Empty(t, f.identitySvc.applied)
}

func TestApplyResponseTwiceFails(t *testing.T) {
	p := validatedPatient()
	f := newQualificationFixture(p)

	request := &model.QualificationRequest{
		ID:         uuid.New(),
		IdentityID: p.ID,
		Status:     model.QualificationPending,
	}
	require.NoError(t, f.requests.Create(context.Background(), request))

	_, err := f.svc.ApplyResponse(context.Background(), request.ID, &model.QualificationResponse{
		Result: model.ResultNotFound,
	}, "insi")
	require.NoError(t, err)

	_, err = f.svc.ApplyResponse(context.Background(), request.ID, &model.QualificationResponse{
		Result: model.ResultQualified,
	}, "insi")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
}

func TestTransportErrorLeavesRequestPending(t *testing.T) {
	p := validatedPatient()
	f := newQualificationFixture(p)
	f.client.err = errors.New("deadline exceeded")

	request, err := f.svc.RequestQualification(context.Background(), p.ID, &model.RequestQualificationRequest{Actor: "reception"})
	require.NoError(t, err)
	assert.Equal(t, model.QualificationPending, request.Status)

	// Give the background submission time to run and fail.
	assert.Eventually(t, func() bool {
		stored, err := f.requests.Get(context.Background(), request.ID)
		return err == nil && stored.Status == model.QualificationPending
	}, time.Second, 10*time.Millisecond)
	assert.Empty(t, f.identitySvc.applied)
}

func TestRequestQualificationAppliesVerdict(t *testing.T) {
	p := validatedPatient()
	f := newQualificationFixture(p)
	f.client.response = &model.QualificationResponse{
		Result: model.ResultQualified,
		Value:  "185037505612345",
	}

	request, err := f.svc.RequestQualification(context.Background(), p.ID, &model.RequestQualificationRequest{Actor: "reception"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stored, err := f.requests.Get(context.Background(), request.ID)
		return err == nil && stored.Status == model.QualificationApplied
	}, time.Second, 10*time.Millisecond)
}

func TestRequestQualificationRejectsTerminalStatuses(t *testing.T) {
	p := validatedPatient()
	p.Status = model.IdentityStatusFictitious
	f := newQualificationFixture(p)

	_, err := f.svc.RequestQualification(context.Background(), p.ID, &model.RequestQualificationRequest{Actor: "reception"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
}

func TestExpireRequests(t *testing.T) {
	p := validatedPatient()
	f := newQualificationFixture(p)

	stale := &model.QualificationRequest{
		ID:         uuid.New(),
		IdentityID: p.ID,
		Status:     model.QualificationPending,
		CreatedAt:  time.Now().Add(-48 * time.Hour),
	}
	fresh := &model.QualificationRequest{
		ID:         uuid.New(),
		IdentityID: p.ID,
		Status:     model.QualificationPending,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, f.requests.Create(context.Background(), stale))
	require.NoError(t, f.requests.Create(context.Background(), fresh))

	expired, err := f.svc.ExpireRequests(context.Background(), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	staleStored, err := f.requests.Get(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QualificationExpired, staleStored.Status)

	freshStored, err := f.requests.Get(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QualificationPending, freshStored.Status)
}
