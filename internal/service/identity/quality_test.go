package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/identito-api/internal/model"
)

func fullTraits() model.PatientTraits {
	bd := time.Date(1985, time.March, 12, 0, 0, 0, 0, time.UTC)
	return model.PatientTraits{
		BirthFamilyName: "DUPONT",
		BirthGivenName:  "MARIE",
		BirthDate:       &bd,
		Sex:             "F",
		BirthPlaceCode:  "75056",
	}
}

func TestQualityScore(t *testing.T) {
	tests := []struct {
		name   string
		traits model.PatientTraits
		ins    *model.INSRecord
		status model.IdentityStatus
		want   int
	}{
		{
			name:   "empty record",
			traits: model.PatientTraits{},
			status: model.IdentityStatusDoubtful,
			want:   0,
		},
		{
			name:   "full traits provisional no ins",
			traits: fullTraits(),
			status: model.IdentityStatusProvisional,
			want:   45, // 40 traits + 5 status
		},
		{
			name:   "full traits validated no ins",
			traits: fullTraits(),
			status: model.IdentityStatusValidated,
			want:   55,
		},
		{
			name:   "full traits qualified with qualified ins",
			traits: fullTraits(),
			ins:    &model.INSRecord{Qualification: model.INSQualified},
			status: model.IdentityStatusQualified,
			want:   100,
		},
		{
			name:   "provisional ins earns half the qualification points",
			traits: fullTraits(),
			ins:    &model.INSRecord{Qualification: model.INSProvisional},
			status: model.IdentityStatusValidated,
			want:   85, // 40 + 20 + 10 + 15
		},
		{
			name:   "invalid ins earns presence points only",
			traits: fullTraits(),
			ins:    &model.INSRecord{Qualification: model.INSInvalid},
			status: model.IdentityStatusDoubtful,
			want:   60, // 40 + 20 + 0 + 0
		},
		{
			name: "partial traits",
			traits: model.PatientTraits{
				BirthFamilyName: "DUPONT",
				BirthGivenName:  "MARIE",
			},
			status: model.IdentityStatusProvisional,
			want:   25, // 10 + 10 + 5
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QualityScore(tt.traits, tt.ins, tt.status)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, 100)
		})
	}
}

func TestQualityScoreZeroBirthDateEarnsNothing(t *testing.T) {
	zero := time.Time{}
	traits := model.PatientTraits{BirthDate: &zero}
	assert.Equal(t, 0, QualityScore(traits, nil, model.IdentityStatusDoubtful))
}
