package identity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/identito-api/internal/config"
	"github.com/jwalitptl/identito-api/internal/model"
	"github.com/jwalitptl/identito-api/internal/policy"
	"github.com/jwalitptl/identito-api/internal/service/audit"
	apperrors "github.com/jwalitptl/identito-api/pkg/errors"
)

type identityFixture struct {
	svc           *Service
	identities    *fakeIdentityRepo
	verifications *fakeVerificationRepo
	outbox        *fakeOutboxRepo
}

func newIdentityFixture() *identityFixture {
	identities := newFakeIdentityRepo()
	verifications := &fakeVerificationRepo{}
	outbox := &fakeOutboxRepo{}
	policies := policy.NewProvider(fakePolicyRepo{}, config.PolicyConfig{
		FacilityID:       "test",
		DemoteToDoubtful: true,
	})
	auditor := audit.NewService(&fakeAuditRepo{})

	return &identityFixture{
		svc:           NewService(identities, verifications, outbox, fakeTxManager{}, policies, auditor, nil, nil),
		identities:    identities,
		verifications: verifications,
		outbox:        outbox,
	}
}

func createRequest() *model.CreateIdentityRequest {
	bd := time.Date(1985, time.March, 12, 0, 0, 0, 0, time.UTC)
	return &model.CreateIdentityRequest{
		LocalID:         "IPP-0001",
		BirthFamilyName: "Dupont",
		BirthGivenName:  "Marie",
		BirthDate:       &bd,
		Sex:             "F",
	}
}

func TestCreateIdentity(t *testing.T) {
	f := newIdentityFixture()

	identity, err := f.svc.CreateIdentity(context.Background(), createRequest())
	require.NoError(t, err)

	assert.Equal(t, model.IdentityStatusProvisional, identity.Status)
	assert.Equal(t, "DUPONT", identity.NormalizedName)
	assert.Equal(t, 40, identity.QualityScore) // 35 traits + 5 status
	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, model.EventIdentityCreated, f.outbox.events[0].EventType)
}

func TestCreateIdentityMissingMandatoryTrait(t *testing.T) {
	f := newIdentityFixture()
	req := createRequest()
	req.BirthDate = nil

	_, err := f.svc.CreateIdentity(context.Background(), req)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))
}

func TestCreateIdentityDuplicateLocalID(t *testing.T) {
	f := newIdentityFixture()
	_, err := f.svc.CreateIdentity(context.Background(), createRequest())
	require.NoError(t, err)

	_, err = f.svc.CreateIdentity(context.Background(), createRequest())
	assert.True(t, apperrors.IsConflict(err))
}

func TestUpdateTraitsRecomputesDerivedFields(t *testing.T) {
	f := newIdentityFixture()
	identity, err := f.svc.CreateIdentity(context.Background(), createRequest())
	require.NoError(t, err)

	name := "Méliès"
	place := "75056"
	updated, err := f.svc.UpdateTraits(context.Background(), identity.ID, &model.UpdateTraitsRequest{
		BirthFamilyName: &name,
		BirthPlaceCode:  &place,
		Version:         identity.Version,
	})
	require.NoError(t, err)

	assert.Equal(t, "MELIES", updated.NormalizedName)
	assert.Equal(t, 45, updated.QualityScore)
	assert.Greater(t, updated.Version, identity.Version)
}

func TestUpdateTraitsStaleVersionConflicts(t *testing.T) {
	f := newIdentityFixture()
	identity, err := f.svc.CreateIdentity(context.Background(), createRequest())
	require.NoError(t, err)

	name := "Durand"
	_, err = f.svc.UpdateTraits(context.Background(), identity.ID, &model.UpdateTraitsRequest{
		BirthFamilyName: &name,
		Version:         identity.Version,
	})
	require.NoError(t, err)

	// Second writer still holds the old version.
	_, err = f.svc.UpdateTraits(context.Background(), identity.ID, &model.UpdateTraitsRequest{
		BirthFamilyName: &name,
		Version:         identity.Version,
	})
	assert.True(t, apperrors.IsConflict(err))
}

func TestRecordVerificationPairsStatusChangeWithOneRecord(t *testing.T) {
	f := newIdentityFixture()
	identity, err := f.svc.CreateIdentity(context.Background(), createRequest())
	require.NoError(t, err)

	v, err := f.svc.RecordVerification(context.Background(), identity.ID, &model.RecordVerificationRequest{
		Type:       model.VerificationDocument,
		VerifiedBy: "reception",
		Success:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, model.IdentityStatusProvisional, v.PreviousStatus)
	assert.Equal(t, model.IdentityStatusValidated, v.NewStatus)

	stored, err := f.svc.GetIdentity(context.Background(), identity.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IdentityStatusValidated, stored.Status)

	history, err := f.svc.GetVerificationHistory(context.Background(), identity.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRecordVerificationDiscrepancyDemotes(t *testing.T) {
	f := newIdentityFixture()
	identity, err := f.svc.CreateIdentity(context.Background(), createRequest())
	require.NoError(t, err)

	v, err := f.svc.RecordVerification(context.Background(), identity.ID, &model.RecordVerificationRequest{
		Type:          model.VerificationDocument,
		VerifiedBy:    "reception",
		Success:       true,
		Discrepancies: []string{"family name differs from card"},
	})
	require.NoError(t, err)

	assert.Equal(t, model.OutcomePartial, v.Outcome)
	assert.Equal(t, model.IdentityStatusDoubtful, v.NewStatus)
}

// A provisional identity qualified directly by the teleservice skips
// validated, gains the national identifier and exactly one verification row.
func TestApplyRemoteQualificationFromProvisional(t *testing.T) {
	f := newIdentityFixture()
	identity, err := f.svc.CreateIdentity(context.Background(), createRequest())
	require.NoError(t, err)

	ins := &model.INSRecord{
		ID:            uuid.New(),
		Value:         "185037505612345",
		OID:           "1.2.250.1.213.1.4.8",
		Type:          model.INSTypePermanent,
		Source:        model.INSSourceTeleservice,
		Qualification: model.INSQualified,
	}
	v, err := f.svc.ApplyRemoteQualification(context.Background(), identity.ID, ins, "insi")
	require.NoError(t, err)

	assert.Equal(t, model.IdentityStatusProvisional, v.PreviousStatus)
	assert.Equal(t, model.IdentityStatusQualified, v.NewStatus)

	stored, err := f.svc.GetIdentity(context.Background(), identity.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IdentityStatusQualified, stored.Status)
	require.NotNil(t, stored.INS)
	assert.Equal(t, model.INSQualified, stored.INS.Qualification)
	assert.Equal(t, 95, stored.QualityScore) // 35 + 40 + 20

	history, err := f.svc.GetVerificationHistory(context.Background(), identity.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestInvalidateINSDemotesPerPolicy(t *testing.T) {
	f := newIdentityFixture()
	identity, err := f.svc.CreateIdentity(context.Background(), createRequest())
	require.NoError(t, err)

	ins := &model.INSRecord{ID: uuid.New(), Value: "185037505612345", Qualification: model.INSQualified}
	_, err = f.svc.ApplyRemoteQualification(context.Background(), identity.ID, ins, "insi")
	require.NoError(t, err)

	v, err := f.svc.InvalidateINS(context.Background(), identity.ID, "vigilance-officer", "registry mismatch")
	require.NoError(t, err)

	assert.Equal(t, model.IdentityStatusQualified, v.PreviousStatus)
	assert.Equal(t, model.IdentityStatusDoubtful, v.NewStatus)

	stored, err := f.svc.GetIdentity(context.Background(), identity.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IdentityStatusDoubtful, stored.Status)
	require.NotNil(t, stored.INS)
	assert.Equal(t, model.INSInvalid, stored.INS.Qualification)
}

func TestInvalidateINSWithoutINS(t *testing.T) {
	f := newIdentityFixture()
	identity, err := f.svc.CreateIdentity(context.Background(), createRequest())
	require.NoError(t, err)

	_, err = f.svc.InvalidateINS(context.Background(), identity.ID, "vigilance-officer", "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))
}

func TestRunComplianceAudit(t *testing.T) {
	f := newIdentityFixture()
	identity, err := f.svc.CreateIdentity(context.Background(), createRequest())
	require.NoError(t, err)

	// Drop quality by hand to simulate an imported legacy record.
	f.identities.identities[identity.ID].QualityScore = 10
	f.identities.identities[identity.ID].Sex = ""

	findings, err := f.svc.RunComplianceAudit(context.Background())
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, identity.ID, findings[0].IdentityID)
	assert.Contains(t, findings[0].Issues, "missing mandatory trait: sex")
}
