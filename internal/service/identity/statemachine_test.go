package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/identito-api/internal/model"
	apperrors "github.com/jwalitptl/identito-api/pkg/errors"
)

func TestAdvanceSuccessTransitions(t *testing.T) {
	tests := []struct {
		name   string
		from   model.IdentityStatus
		event  VerificationEvent
		wantTo model.IdentityStatus
	}{
		{
			name:   "document validates provisional",
			from:   model.IdentityStatusProvisional,
			event:  VerificationEvent{Type: model.VerificationDocument, Success: true},
			wantTo: model.IdentityStatusValidated,
		},
		{
			name:   "card validates doubtful",
			from:   model.IdentityStatusDoubtful,
			event:  VerificationEvent{Type: model.VerificationCard, Success: true},
			wantTo: model.IdentityStatusValidated,
		},
		{
			name:   "document keeps validated",
			from:   model.IdentityStatusValidated,
			event:  VerificationEvent{Type: model.VerificationDocument, Success: true},
			wantTo: model.IdentityStatusValidated,
		},
		{
			name:   "document never advances past qualified",
			from:   model.IdentityStatusQualified,
			event:  VerificationEvent{Type: model.VerificationDocument, Success: true},
			wantTo: model.IdentityStatusQualified,
		},
		{
			name:   "teleservice qualifies provisional directly",
			from:   model.IdentityStatusProvisional,
			event:  VerificationEvent{Type: model.VerificationTeleservice, Success: true},
			wantTo: model.IdentityStatusQualified,
		},
		{
			name:   "teleservice qualifies validated",
			from:   model.IdentityStatusValidated,
			event:  VerificationEvent{Type: model.VerificationTeleservice, Success: true},
			wantTo: model.IdentityStatusQualified,
		},
		{
			name:   "patient self lifts doubtful to provisional",
			from:   model.IdentityStatusDoubtful,
			event:  VerificationEvent{Type: model.VerificationPatientSelf, Success: true},
			wantTo: model.IdentityStatusProvisional,
		},
		{
			name:   "biometric confirmation keeps qualified",
			from:   model.IdentityStatusQualified,
			event:  VerificationEvent{Type: model.VerificationBiometric, Success: true},
			wantTo: model.IdentityStatusQualified,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Advance(tt.from, tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.from, got.From)
			assert.Equal(t, tt.wantTo, got.To)
			assert.Equal(t, model.OutcomeSuccess, got.Outcome)
		})
	}
}

func TestAdvanceDiscrepanciesDemoteToDoubtful(t *testing.T) {
	for _, from := range []model.IdentityStatus{
		model.IdentityStatusProvisional,
		model.IdentityStatusValidated,
		model.IdentityStatusQualified,
	} {
		got, err := Advance(from, VerificationEvent{
			Type:          model.VerificationDocument,
			Success:       true,
			Discrepancies: []string{"birth date differs from document"},
		})
		require.NoError(t, err)
		assert.Equal(t, model.OutcomePartial, got.Outcome)
		assert.Equal(t, model.IdentityStatusDoubtful, got.To)
	}
}

func TestAdvanceFailureKeepsStatus(t *testing.T) {
	got, err := Advance(model.IdentityStatusValidated, VerificationEvent{
		Type:    model.VerificationCard,
		Success: false,
	})
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeFailure, got.Outcome)
	assert.Equal(t, model.IdentityStatusValidated, got.To)
}

func TestAdvanceInvalidation(t *testing.T) {
	t.Run("demotes qualified to doubtful per policy", func(t *testing.T) {
		got, err := Advance(model.IdentityStatusQualified, VerificationEvent{
			Type:             model.VerificationInvalidation,
			Success:          true,
			DemoteToDoubtful: true,
		})
		require.NoError(t, err)
		assert.Equal(t, model.IdentityStatusDoubtful, got.To)
	})

	t.Run("demotes qualified to validated when policy says so", func(t *testing.T) {
		got, err := Advance(model.IdentityStatusQualified, VerificationEvent{
			Type:    model.VerificationInvalidation,
			Success: true,
		})
		require.NoError(t, err)
		assert.Equal(t, model.IdentityStatusValidated, got.To)
	})

	t.Run("rejected from non-qualified statuses", func(t *testing.T) {
		for _, from := range []model.IdentityStatus{
			model.IdentityStatusProvisional,
			model.IdentityStatusValidated,
			model.IdentityStatusDoubtful,
		} {
			_, err := Advance(from, VerificationEvent{
				Type:    model.VerificationInvalidation,
				Success: true,
			})
			assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition), "from %s", from)
		}
	})
}

func TestAdvanceTerminalStatuses(t *testing.T) {
	for _, from := range []model.IdentityStatus{
		model.IdentityStatusFictitious,
		model.IdentityStatusAnonymous,
	} {
		_, err := Advance(from, VerificationEvent{
			Type:    model.VerificationDocument,
			Success: true,
		})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition), "from %s", from)
	}
}

func TestAdvanceRejectsUnknownInputs(t *testing.T) {
	_, err := Advance(model.IdentityStatusProvisional, VerificationEvent{Type: "palmistry"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))

	_, err = Advance("limbo", VerificationEvent{Type: model.VerificationDocument})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))
}
