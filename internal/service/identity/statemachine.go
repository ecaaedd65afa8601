package identity

import (
	"fmt"

	"github.com/jwalitptl/identito-api/internal/model"
	apperrors "github.com/jwalitptl/identito-api/pkg/errors"
)

// VerificationEvent is one verification observation fed to the state machine.
type VerificationEvent struct {
	Type          model.VerificationType
	Success       bool
	Discrepancies []string
	// DemoteToDoubtful applies only to ins_invalidation events and comes
	// from the facility policy.
	DemoteToDoubtful bool
}

// Transition is the state machine verdict for one event.
type Transition struct {
	From    model.IdentityStatus
	To      model.IdentityStatus
	Outcome model.VerificationOutcome
}

// Advance computes the status transition for a verification event. It is the
// single authority over the status graph:
//
//   - a successful document or card verification moves provisional/doubtful
//     to validated and never advances past qualified;
//   - a successful teleservice verification always sets qualified, the only
//     transition allowed to skip validated;
//   - any event carrying discrepancies is recorded as partial and moves the
//     record to doubtful rather than advancing it;
//   - an ins_invalidation event demotes qualified to doubtful or validated
//     per policy;
//   - fictitious and anonymous records are terminal for verification purposes.
//
// Every accepted transition must be persisted together with exactly one
// IdentityVerification record; status never changes without one.
func Advance(current model.IdentityStatus, event VerificationEvent) (Transition, error) {
	if !event.Type.Valid() {
		return Transition{}, apperrors.Validation(fmt.Sprintf("unknown verification type %q", event.Type), nil)
	}
	if !current.Valid() {
		return Transition{}, apperrors.Validation(fmt.Sprintf("unknown identity status %q", current), nil)
	}

	if current == model.IdentityStatusFictitious || current == model.IdentityStatusAnonymous {
		return Transition{}, apperrors.InvalidTransition(
			fmt.Sprintf("identity in terminal status %q cannot be verified", current))
	}

	t := Transition{From: current, To: current}

	// Discrepancies block advancement: outcome is partial and the record
	// becomes doubtful until they are resolved.
	if len(event.Discrepancies) > 0 {
		t.Outcome = model.OutcomePartial
		t.To = model.IdentityStatusDoubtful
		return t, nil
	}

	if !event.Success {
		t.Outcome = model.OutcomeFailure
		return t, nil
	}

	t.Outcome = model.OutcomeSuccess

	switch event.Type {
	case model.VerificationDocument, model.VerificationCard:
		if current == model.IdentityStatusProvisional || current == model.IdentityStatusDoubtful {
			t.To = model.IdentityStatusValidated
		}
		// validated and qualified records keep their status.

	case model.VerificationTeleservice:
		t.To = model.IdentityStatusQualified

	case model.VerificationInvalidation:
		if current != model.IdentityStatusQualified {
			return Transition{}, apperrors.InvalidTransition(
				fmt.Sprintf("cannot invalidate national identifier from status %q", current))
		}
		if event.DemoteToDoubtful {
			t.To = model.IdentityStatusDoubtful
		} else {
			t.To = model.IdentityStatusValidated
		}

	case model.VerificationPatientSelf, model.VerificationFamily,
		model.VerificationCrossRef, model.VerificationBiometric:
		// Confirmations strengthen the record but never move it along the
		// provisional -> validated -> qualified axis on their own, except to
		// lift a doubtful record back to provisional.
		if current == model.IdentityStatusDoubtful {
			t.To = model.IdentityStatusProvisional
		}
	}

	// A success must never regress status along the advancement axis.
	if t.Outcome == model.OutcomeSuccess && event.Type != model.VerificationInvalidation &&
		t.To.Rank() < t.From.Rank() {
		return Transition{}, apperrors.InvalidTransition(
			fmt.Sprintf("verification would regress status from %q to %q", t.From, t.To))
	}

	return t, nil
}
