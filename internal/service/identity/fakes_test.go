package identity

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/identito-api/internal/model"
	apperrors "github.com/jwalitptl/identito-api/pkg/errors"
)

// In-memory repository fakes. They honor the same contracts as the postgres
// implementations: not-found errors, optimistic versioning, terminal guards.

type fakeIdentityRepo struct {
	identities map[uuid.UUID]*model.PatientIdentity
	ins        map[uuid.UUID]*model.INSRecord
	aliases    map[uuid.UUID][]*model.PatientAlias
}

func newFakeIdentityRepo() *fakeIdentityRepo {
	return &fakeIdentityRepo{
		identities: map[uuid.UUID]*model.PatientIdentity{},
		ins:        map[uuid.UUID]*model.INSRecord{},
		aliases:    map[uuid.UUID][]*model.PatientAlias{},
	}
}

func (r *fakeIdentityRepo) Create(_ context.Context, identity *model.PatientIdentity) error {
	for _, existing := range r.identities {
		if existing.LocalID == identity.LocalID {
			return apperrors.Conflict("identity with this local id already exists", nil)
		}
	}
	identity.Version = 1
	cp := *identity
	r.identities[identity.ID] = &cp
	return nil
}

func (r *fakeIdentityRepo) Get(_ context.Context, id uuid.UUID) (*model.PatientIdentity, error) {
	identity, ok := r.identities[id]
	if !ok {
		return nil, apperrors.NotFound("identity", nil)
	}
	cp := *identity
	cp.INS = r.ins[id]
	cp.Aliases = r.aliases[id]
	return &cp, nil
}

func (r *fakeIdentityRepo) GetByLocalID(ctx context.Context, localID string) (*model.PatientIdentity, error) {
	for id, identity := range r.identities {
		if identity.LocalID == localID {
			return r.Get(ctx, id)
		}
	}
	return nil, apperrors.NotFound("identity", nil)
}

func (r *fakeIdentityRepo) Update(_ context.Context, identity *model.PatientIdentity) error {
	stored, ok := r.identities[identity.ID]
	if !ok {
		return apperrors.NotFound("identity", nil)
	}
	if stored.Version != identity.Version || stored.MergedInto != nil {
		return apperrors.Conflict("identity version mismatch", nil)
	}
	cp := *identity
	cp.Version = stored.Version + 1
	r.identities[identity.ID] = &cp
	identity.Version = cp.Version
	return nil
}

func (r *fakeIdentityRepo) List(_ context.Context, filters *model.IdentityFilters) ([]*model.PatientIdentity, error) {
	var out []*model.PatientIdentity
	for id, identity := range r.identities {
		if identity.MergedInto != nil && !filters.IncludeMerged {
			continue
		}
		if filters.Status != "" && identity.Status != filters.Status {
			continue
		}
		cp := *identity
		cp.INS = r.ins[id]
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocalID < out[j].LocalID })
	return out, nil
}

func (r *fakeIdentityRepo) SearchByBirthDate(_ context.Context, birthDate time.Time) ([]*model.PatientIdentity, error) {
	var out []*model.PatientIdentity
	for _, identity := range r.identities {
		if identity.BirthDate == nil || identity.MergedInto != nil {
			continue
		}
		if identity.BirthDate.Equal(birthDate) {
			cp := *identity
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeIdentityRepo) SearchByNormalizedName(_ context.Context, normalizedName string) ([]*model.PatientIdentity, error) {
	var out []*model.PatientIdentity
	for _, identity := range r.identities {
		if identity.MergedInto != nil {
			continue
		}
		if identity.NormalizedName == normalizedName {
			cp := *identity
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeIdentityRepo) ListBelowQuality(_ context.Context, threshold int) ([]*model.PatientIdentity, error) {
	var out []*model.PatientIdentity
	for _, identity := range r.identities {
		if identity.MergedInto == nil && identity.QualityScore < threshold {
			cp := *identity
			out = append(out, &cp)
		}
	}
	return out, nil
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

func (r *fakeIdentityRepo) UpsertINS(_ context.Context, record *model.INSRecord) error {
	cp := *record
	r.ins[record.IdentityID] = &cp
	return nil
}

func (r *fakeIdentityRepo) GetINS(_ context.Context, identityID uuid.UUID) (*model.INSRecord, error) {
	record, ok := r.ins[identityID]
	if !ok {
		return nil, apperrors.NotFound("ins record", nil)
	}
	return record, nil
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

type fakeVerificationRepo struct {
	rows []*model.IdentityVerification
}

func (r *fakeVerificationRepo) Create(_ context.Context, v *model.IdentityVerification) error {
	cp := *v
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
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

func (r *fakeOutboxRepo) GetPendingEvents(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	var out []*model.OutboxEvent
	for _, e := range r.events {
		if e.Status == string(model.OutboxStatusPending) {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeOutboxRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.OutboxStatus, errMessage *string) error {
	for _, e := range r.events {
		if e.ID == id {
			e.Status = string(status)
			e.ErrorMessage = errMessage
			return nil
		}
	}
	return apperrors.NotFound("outbox event", nil)
}

// fakeTxManager runs fn directly; the fakes have no transactional state.
type fakeTxManager struct{}

func (fakeTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakePolicyRepo has no rows, so the provider serves configured defaults.
type fakePolicyRepo struct{}

func (fakePolicyRepo) GetByFacility(context.Context, string) (*model.IdentitovigilancePolicy, error) {
	return nil, apperrors.NotFound("policy", nil)
}

type fakeAuditRepo struct {
	entries []*model.AuditEntry
}

func (r *fakeAuditRepo) Create(_ context.Context, entry *model.AuditEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeAuditRepo) ListByEntity(_ context.Context, entityType string, entityID uuid.UUID) ([]*model.AuditEntry, error) {
	var out []*model.AuditEntry
	for _, e := range r.entries {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}
