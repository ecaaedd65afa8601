package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/identito-api/internal/model"
	apperrors "github.com/jwalitptl/identito-api/pkg/errors"
)

// MergeIdentities merges one identity into a survivor. The whole operation is
// one transaction: after commit the merged record is terminal and points at
// the survivor, the survivor has absorbed the merged record's aliases and
// verification history, and every open case referencing the merged record is
// redirected or dismissed. Merge is irreversible.
func (s *Service) MergeIdentities(ctx context.Context, req *model.MergeRequest) (*model.PatientIdentity, error) {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.merge(ctx, req.SurvivorID, req.MergedID, req.Actor)
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.MergesFailed.Inc()
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.MergesCompleted.Inc()
	}
	s.auditLog(ctx, req.Actor, "merge_identities", req.SurvivorID, req)

	return s.identities.Get(ctx, req.SurvivorID)
}

// merge is the transactional merge body; the caller owns the transaction.
func (s *Service) merge(ctx context.Context, survivorID, mergedID uuid.UUID, actor string) error {
	if survivorID == mergedID {
		return apperrors.Validation("cannot merge an identity into itself", nil)
	}

	// Row locks in deterministic (ascending id) order, then a fresh read of
	// both records under the locks.
	if err := s.identities.LockPair(ctx, survivorID, mergedID); err != nil {
		return err
	}
	survivor, err := s.identities.Get(ctx, survivorID)
	if err != nil {
		return err
	}
	merged, err := s.identities.Get(ctx, mergedID)
	if err != nil {
		return err
	}
	if survivor.IsTerminal() {
		return apperrors.Conflict("survivor identity was already merged", nil)
	}
	if merged.IsTerminal() {
		return apperrors.Conflict("identity was already merged", nil)
	}

	if err := s.identities.MarkMerged(ctx, merged.ID, survivor.ID); err != nil {
		return err
	}

	// The survivor absorbs the merged record and, transitively, anything
	// previously merged into it.
	from := append([]uuid.UUID{}, survivor.MergedFrom...)
	from = append(from, merged.ID)
	from = append(from, merged.MergedFrom...)
	if err := s.identities.SetMergedFrom(ctx, survivor.ID, from); err != nil {
		return err
	}
	// Chains stay flat: records that pointed at the merged one now point
	// directly at the survivor.
	if err := s.identities.RepointMergedInto(ctx, merged.ID, survivor.ID); err != nil {
		return err
	}

	if err := s.absorbAliases(ctx, survivor, merged); err != nil {
		return err
	}
	if err := s.copyVerifications(ctx, survivor.ID, merged.ID); err != nil {
		return err
	}
	if err := s.redirectOpenCases(ctx, survivor.ID, merged.ID, actor); err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]interface{}{
		"survivor_id": survivor.ID,
		"merged_id":   merged.ID,
		"actor":       actor,
	})
	if err != nil {
		return err
	}
	return s.outbox.Create(ctx, &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: model.EventIdentitiesMerged,
		Payload:   payload,
		Status:    string(model.OutboxStatusPending),
	})
}

// absorbAliases moves the merged record's aliases to the survivor and records
// the merged record's birth name as a spelling-variant alias when it differs,
// so the old name stays searchable.
func (s *Service) absorbAliases(ctx context.Context, survivor, merged *model.PatientIdentity) error {
	if err := s.identities.ReassignAliases(ctx, merged.ID, survivor.ID); err != nil {
		return err
	}
	if merged.BirthFamilyName == survivor.BirthFamilyName {
		return nil
	}
	return s.identities.AddAlias(ctx, &model.PatientAlias{
		ID:         uuid.New(),
		IdentityID: survivor.ID,
		FamilyName: merged.BirthFamilyName,
		GivenName:  merged.BirthGivenName,
		Kind:       "spelling_variant",
	})
}

// copyVerifications carries the merged record's verification history over to
// the survivor, preserving original timestamps.
func (s *Service) copyVerifications(ctx context.Context, survivorID, mergedID uuid.UUID) error {
	history, err := s.verifications.ListByIdentity(ctx, mergedID)
	if err != nil {
		return err
	}
	for _, v := range history {
		copied := *v
		copied.ID = uuid.New()
		copied.IdentityID = survivorID
		if err := s.verifications.Create(ctx, &copied); err != nil {
			return fmt.Errorf("failed to copy verification history: %w", err)
		}
	}
	return nil
}

// redirectOpenCases repoints open cases involving the merged record at the
// survivor. A case that would end up pairing the survivor with itself is
// dismissed instead.
func (s *Service) redirectOpenCases(ctx context.Context, survivorID, mergedID uuid.UUID, actor string) error {
	open, err := s.cases.ListOpenForIdentity(ctx, mergedID)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, c := range open {
		if c.PrimaryID == mergedID {
			c.PrimaryID = survivorID
		}
		if c.SecondaryID == mergedID {
			c.SecondaryID = survivorID
		}
		if c.PrimaryID == c.SecondaryID {
			decision := model.DecisionNoAction
			c.Status = model.CaseDismissed
			c.Decision = &decision
			c.Rationale = "pair collapsed by merge"
			c.ResolvedBy = actor
			c.ResolvedAt = &now
		}
		if err := s.cases.Update(ctx, c); err != nil {
			return err
		}
	}
	return nil
}
