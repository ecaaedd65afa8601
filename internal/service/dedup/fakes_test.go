package dedup

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/identito-api/internal/model"
	apperrors "github.com/jwalitptl/identito-api/pkg/errors"
)

type fakeIdentityRepo struct {
	identities map[uuid.UUID]*model.PatientIdentity
	aliases    map[uuid.UUID][]*model.PatientAlias
}

func newFakeIdentityRepo() *fakeIdentityRepo {
	return &fakeIdentityRepo{
		identities: map[uuid.UUID]*model.PatientIdentity{},
		aliases:    map[uuid.UUID][]*model.PatientAlias{},
	}
}

func (r *fakeIdentityRepo) add(identity *model.PatientIdentity) {
	if identity.ID == uuid.Nil {
		identity.ID = uuid.New()
	}
	identity.Version = 1
	r.identities[identity.ID] = identity
}

func (r *fakeIdentityRepo) Create(_ context.Context, identity *model.PatientIdentity) error {
	r.add(identity)
	return nil
}

func (r *fakeIdentityRepo) Get(_ context.Context, id uuid.UUID) (*model.PatientIdentity, error) {
	identity, ok := r.identities[id]
	if !ok {
		return nil, apperrors.NotFound("identity", nil)
	}
	cp := *identity
	cp.Aliases = r.aliases[id]
	return &cp, nil
}

func (r *fakeIdentityRepo) GetByLocalID(_ context.Context, localID string) (*model.PatientIdentity, error) {
	for _, identity := range r.identities {
		if identity.LocalID == localID {
			cp := *identity
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("identity", nil)
}

func (r *fakeIdentityRepo) Update(_ context.Context, identity *model.PatientIdentity) error {
	stored, ok := r.identities[identity.ID]
	if !ok {
		return apperrors.NotFound("identity", nil)
	}
	if stored.MergedInto != nil {
		return apperrors.Conflict("identity already merged", nil)
	}
	cp := *identity
	r.identities[identity.ID] = &cp
	return nil
}

func (r *fakeIdentityRepo) List(_ context.Context, _ *model.IdentityFilters) ([]*model.PatientIdentity, error) {
	var out []*model.PatientIdentity
	for _, identity := range r.identities {
		cp := *identity
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeIdentityRepo) SearchByBirthDate(_ context.Context, birthDate time.Time) ([]*model.PatientIdentity, error) {
	var out []*model.PatientIdentity
	for _, identity := range r.identities {
		if identity.BirthDate != nil && identity.BirthDate.Equal(birthDate) {
			cp := *identity
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeIdentityRepo) SearchByNormalizedName(_ context.Context, normalizedName string) ([]*model.PatientIdentity, error) {
	var out []*model.PatientIdentity
	for _, identity := range r.identities {
		if identity.NormalizedName == normalizedName {
			cp := *identity
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeIdentityRepo) ListBelowQuality(_ context.Context, threshold int) ([]*model.PatientIdentity, error) {
	return nil, nil
}

func (r *fakeIdentityRepo) LockPair(_ context.Context, a, b uuid.UUID) error {
	if _, ok := r.identities[a]; !ok {
		return apperrors.NotFound("identity", nil)
	}
	if _, ok := r.identities[b]; !ok {
		return apperrors.NotFound("identity", nil)
	}
	return nil
}

func (r *fakeIdentityRepo) MarkMerged(_ context.Context, mergedID, survivorID uuid.UUID) error {
	identity, ok := r.identities[mergedID]
	if !ok {
		return apperrors.NotFound("identity", nil)
	}
	if identity.MergedInto != nil {
		return apperrors.Conflict("identity already merged", nil)
	}
	identity.MergedInto = &survivorID
	return nil
}

func (r *fakeIdentityRepo) SetMergedFrom(_ context.Context, id uuid.UUID, from []uuid.UUID) error {
	identity, ok := r.identities[id]
	if !ok {
		return apperrors.NotFound("identity", nil)
	}
	identity.MergedFrom = append([]uuid.UUID{}, from...)
	return nil
}

func (r *fakeIdentityRepo) RepointMergedInto(_ context.Context, from, to uuid.UUID) error {
	for _, identity := range r.identities {
		if identity.MergedInto != nil && *identity.MergedInto == from {
			target := to
			identity.MergedInto = &target
		}
	}
	return nil
}

func (r *fakeIdentityRepo) UpsertINS(_ context.Context, _ *model.INSRecord) error { return nil }

func (r *fakeIdentityRepo) GetINS(_ context.Context, _ uuid.UUID) (*model.INSRecord, error) {
	return nil, apperrors.NotFound("ins record", nil)
}

func (r *fakeIdentityRepo) AddAlias(_ context.Context, alias *model.PatientAlias) error {
	cp := *alias
	r.aliases[alias.IdentityID] = append(r.aliases[alias.IdentityID], &cp)
	return nil
}

func (r *fakeIdentityRepo) ListAliases(_ context.Context, identityID uuid.UUID) ([]*model.PatientAlias, error) {
	return r.aliases[identityID], nil
}

func (r *fakeIdentityRepo) ReassignAliases(_ context.Context, fromIdentity, toIdentity uuid.UUID) error {
	for _, alias := range r.aliases[fromIdentity] {
		alias.IdentityID = toIdentity
		r.aliases[toIdentity] = append(r.aliases[toIdentity], alias)
	}
	delete(r.aliases, fromIdentity)
	return nil
}

type fakeCaseRepo struct {
	cases map[uuid.UUID]*model.DuplicateCase
}

func newFakeCaseRepo() *fakeCaseRepo {
	return &fakeCaseRepo{cases: map[uuid.UUID]*model.DuplicateCase{}}
}

func (r *fakeCaseRepo) Create(_ context.Context, c *model.DuplicateCase) error {
	cp := *c
	r.cases[c.ID] = &cp
	return nil
}

func (r *fakeCaseRepo) Get(_ context.Context, id uuid.UUID) (*model.DuplicateCase, error) {
	c, ok := r.cases[id]
	if !ok {
		return nil, apperrors.NotFound("duplicate case", nil)
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCaseRepo) Update(_ context.Context, c *model.DuplicateCase) error {
	if _, ok := r.cases[c.ID]; !ok {
		return apperrors.NotFound("duplicate case", nil)
	}
	cp := *c
	r.cases[c.ID] = &cp
	return nil
}

func (r *fakeCaseRepo) FindOpenForPair(_ context.Context, a, b uuid.UUID) (*model.DuplicateCase, error) {
	for _, c := range r.cases {
		if !c.Status.Open() {
			continue
		}
		if (c.PrimaryID == a && c.SecondaryID == b) || (c.PrimaryID == b && c.SecondaryID == a) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("duplicate case", nil)
}

func (r *fakeCaseRepo) ListOpenForIdentity(_ context.Context, identityID uuid.UUID) ([]*model.DuplicateCase, error) {
	var out []*model.DuplicateCase
	for _, c := range r.cases {
		if c.Status.Open() && c.References(identityID) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeVerificationRepo struct {
	rows []*model.IdentityVerification
}

func (r *fakeVerificationRepo) Create(_ context.Context, v *model.IdentityVerification) error {
	cp := *v
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeVerificationRepo) ListByIdentity(_ context.Context, identityID uuid.UUID) ([]*model.IdentityVerification, error) {
	var out []*model.IdentityVerification
	for _, v := range r.rows {
		if v.IdentityID == identityID {
			out = append(out, v)
		}
	}
	return out, nil
}

type fakeOutboxRepo struct {
	events []*model.OutboxEvent
}

func (r *fakeOutboxRepo) Create(_ context.Context, event *model.OutboxEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *fakeOutboxRepo) GetPendingEvents(_ context.Context, _ int) ([]*model.OutboxEvent, error) {
	return r.events, nil
}

func (r *fakeOutboxRepo) UpdateStatus(_ context.Context, _ uuid.UUID, _ model.OutboxStatus, _ *string) error {
	return nil
}

type fakeTxManager struct{}

func (fakeTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakePolicyRepo struct{}

func (fakePolicyRepo) GetByFacility(context.Context, string) (*model.IdentitovigilancePolicy, error) {
	return nil, apperrors.NotFound("policy", nil)
}

type fakeAuditRepo struct{}

func (fakeAuditRepo) Create(context.Context, *model.AuditEntry) error { return nil }

func (fakeAuditRepo) ListByEntity(context.Context, string, uuid.UUID) ([]*model.AuditEntry, error) {
	return nil, nil
}
