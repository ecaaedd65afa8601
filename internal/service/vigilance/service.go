package vigilance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/identito-api/internal/email"
	"github.com/jwalitptl/identito-api/internal/model"
	"github.com/jwalitptl/identito-api/internal/repository"
	"github.com/jwalitptl/identito-api/internal/service/audit"
	apperrors "github.com/jwalitptl/identito-api/pkg/errors"
	"github.com/jwalitptl/identito-api/pkg/logger"
	"github.com/jwalitptl/identito-api/pkg/metrics"
)

// collisionWindow bounds how far back recent checks are considered when
// looking for location collisions.
const collisionWindow = 24 * time.Hour

type VigilanceService interface {
	RecordIdentityCheck(ctx context.Context, identityID uuid.UUID, req *model.RecordCheckRequest) (*model.IdentityCheck, error)
	CheckForCollisions(ctx context.Context, identityID uuid.UUID, req *model.CheckCollisionsRequest) ([]*model.CollisionAlert, error)
	CreateAlert(ctx context.Context, alert *model.CollisionAlert) error
	GetAlert(ctx context.Context, id uuid.UUID) (*model.CollisionAlert, error)
	ListAlerts(ctx context.Context, filters *model.AlertFilters) ([]*model.CollisionAlert, error)
	AcknowledgeAlert(ctx context.Context, id uuid.UUID, req *model.AlertActionRequest) (*model.CollisionAlert, error)
	ResolveAlert(ctx context.Context, id uuid.UUID, req *model.AlertActionRequest) (*model.CollisionAlert, error)
	MarkFalsePositive(ctx context.Context, id uuid.UUID, req *model.AlertActionRequest) (*model.CollisionAlert, error)
}

type Service struct {
	identities repository.IdentityRepository
	alerts     repository.AlertRepository
	checks     repository.IdentityCheckRepository
	outbox     repository.OutboxRepository
	mailer     email.Service
	auditor    *audit.Service
	metrics    *metrics.Metrics
	logger     *logger.Logger
}

func NewService(
	identities repository.IdentityRepository,
	alerts repository.AlertRepository,
	checks repository.IdentityCheckRepository,
	outbox repository.OutboxRepository,
	mailer email.Service,
	auditor *audit.Service,
	m *metrics.Metrics,
	l *logger.Logger,
) *Service {
	return &Service{
		identities: identities,
		alerts:     alerts,
		checks:     checks,
		outbox:     outbox,
		mailer:     mailer,
		auditor:    auditor,
		metrics:    m,
		logger:     l,
	}
}

// RecordIdentityCheck stores a point-of-care check. A discrepancy result
// raises exactly one identity_mismatch alert tied to the same encounter; the
// alert write is part of the operation and its failure fails the whole call.
func (s *Service) RecordIdentityCheck(ctx context.Context, identityID uuid.UUID, req *model.RecordCheckRequest) (*model.IdentityCheck, error) {
	identity, err := s.identities.Get(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if identity.IsTerminal() {
		return nil, apperrors.Conflict("identity was merged", nil)
	}

	check := &model.IdentityCheck{
		ID:            uuid.New(),
		IdentityID:    identityID,
		EncounterID:   req.EncounterID,
		Location:      req.Location,
		Method:        req.Method,
		Result:        req.Result,
		CheckedTraits: strings.Join(req.CheckedTraits, ","),
		CheckedBy:     req.CheckedBy,
	}
	if err := s.checks.Create(ctx, check); err != nil {
		return nil, fmt.Errorf("failed to record identity check: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ChecksRecorded.WithLabelValues(string(req.Method), string(req.Result)).Inc()
	}

	if req.Result == model.CheckDiscrepancy {
		alert := &model.CollisionAlert{
			IdentityID:  identityID,
			Type:        model.AlertIdentityMismatch,
			Severity:    model.SeverityHigh,
			Status:      model.AlertActive,
			Location:    req.Location,
			EncounterID: req.EncounterID,
			Details:     fmt.Sprintf("%s check by %s found a discrepancy", req.Method, req.CheckedBy),
		}
		if err := s.raiseAlert(ctx, alert); err != nil {
			return nil, err
		}
	}

	s.auditLog(ctx, req.CheckedBy, "record_check", identityID, check)
	return check, nil
}

// CheckForCollisions evaluates the collision conditions for an identity at a
// location: another recent check of the same identity elsewhere raises a
// double-booking alert, and an unresolved discrepancy on the same encounter
// raises a same-room alert.
func (s *Service) CheckForCollisions(ctx context.Context, identityID uuid.UUID, req *model.CheckCollisionsRequest) ([]*model.CollisionAlert, error) {
	identity, err := s.identities.Get(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if identity.IsTerminal() {
		return nil, apperrors.Conflict("identity was merged", nil)
	}

	var raised []*model.CollisionAlert

	recent, err := s.checks.ListRecentByIdentity(ctx, identityID, time.Now().Add(-collisionWindow))
	if err != nil {
		return nil, err
	}
	for _, check := range recent {
		if check.Location == "" || check.Location == req.Location {
			continue
		}
		alert := &model.CollisionAlert{
			IdentityID:  identityID,
			Type:        model.AlertDoubleBooking,
			Severity:    model.SeverityCritical,
			Status:      model.AlertActive,
			Location:    req.Location,
			EncounterID: req.EncounterID,
			Details: fmt.Sprintf("identity also checked at %s within the last %s",
				check.Location, collisionWindow),
		}
		if err := s.raiseAlert(ctx, alert); err != nil {
			return nil, err
		}
		raised = append(raised, alert)
		break
	}

	latest, err := s.checks.GetLatestByEncounter(ctx, req.EncounterID)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}
	if latest != nil && latest.Result == model.CheckDiscrepancy && latest.IdentityID != identityID {
		alert := &model.CollisionAlert{
			IdentityID:  identityID,
			Type:        model.AlertSameRoomDuplicate,
			Severity:    model.SeverityCritical,
			Status:      model.AlertActive,
			Location:    req.Location,
			EncounterID: req.EncounterID,
			Details:     "encounter has an unresolved identity discrepancy for another patient",
		}
		if err := s.raiseAlert(ctx, alert); err != nil {
			return nil, err
		}
		raised = append(raised, alert)
	}

	return raised, nil
}

func (s *Service) CreateAlert(ctx context.Context, alert *model.CollisionAlert) error {
	if _, err := s.identities.Get(ctx, alert.IdentityID); err != nil {
		return err
	}
	alert.Status = model.AlertActive
	return s.raiseAlert(ctx, alert)
}

func (s *Service) GetAlert(ctx context.Context, id uuid.UUID) (*model.CollisionAlert, error) {
	return s.alerts.Get(ctx, id)
}

func (s *Service) ListAlerts(ctx context.Context, filters *model.AlertFilters) ([]*model.CollisionAlert, error) {
	return s.alerts.List(ctx, filters)
}

func (s *Service) AcknowledgeAlert(ctx context.Context, id uuid.UUID, req *model.AlertActionRequest) (*model.CollisionAlert, error) {
	alert, err := s.alerts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.Status != model.AlertActive {
		return nil, apperrors.InvalidTransition(
			fmt.Sprintf("alert in status %q cannot be acknowledged", alert.Status))
	}
	alert.Status = model.AlertAcknowledged
	alert.AcknowledgedBy = req.Actor
	if err := s.alerts.Update(ctx, alert); err != nil {
		return nil, err
	}
	s.auditLog(ctx, req.Actor, "acknowledge_alert", alert.ID, req)
	return alert, nil
}

func (s *Service) ResolveAlert(ctx context.Context, id uuid.UUID, req *model.AlertActionRequest) (*model.CollisionAlert, error) {
	return s.closeAlert(ctx, id, model.AlertResolved, "resolve_alert", req)
}

func (s *Service) MarkFalsePositive(ctx context.Context, id uuid.UUID, req *model.AlertActionRequest) (*model.CollisionAlert, error) {
	return s.closeAlert(ctx, id, model.AlertFalsePositive, "mark_false_positive", req)
}

func (s *Service) closeAlert(ctx context.Context, id uuid.UUID, to model.AlertStatus, action string, req *model.AlertActionRequest) (*model.CollisionAlert, error) {
	alert, err := s.alerts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.Status != model.AlertActive && alert.Status != model.AlertAcknowledged {
		return nil, apperrors.InvalidTransition(
			fmt.Sprintf("alert in status %q is already closed", alert.Status))
	}
	now := time.Now()
	alert.Status = to
	alert.ResolvedBy = req.Actor
	alert.ClosedAt = &now
	if req.Note != "" {
		alert.Details = alert.Details + "\nresolution: " + req.Note
	}
	if err := s.alerts.Update(ctx, alert); err != nil {
		return nil, err
	}
	s.auditLog(ctx, req.Actor, action, alert.ID, req)
	return alert, nil
}

// raiseAlert persists the alert, queues the outbox event and, for critical
// severities, mails the vigilance box. Mail failures are logged only; the
// alert row is the system of record.
func (s *Service) raiseAlert(ctx context.Context, alert *model.CollisionAlert) error {
	alert.ID = uuid.New()
	if err := s.alerts.Create(ctx, alert); err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	if err := s.outbox.Create(ctx, &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: model.EventAlertRaised,
		Payload:   payload,
		Status:    string(model.OutboxStatusPending),
	}); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.AlertsRaised.WithLabelValues(string(alert.Type), string(alert.Severity)).Inc()
	}

	if alert.Severity == model.SeverityCritical && s.mailer != nil {
		if err := s.mailer.SendAlertNotification(alert); err != nil && s.logger != nil {
			s.logger.Error(err, "failed to mail alert notification", "alert_id", alert.ID)
		}
	}
	return nil
}

func (s *Service) auditLog(ctx context.Context, actor, action string, entityID uuid.UUID, changes interface{}) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Log(ctx, actor, action, "alert", entityID, changes); err != nil && s.logger != nil {
		s.logger.Error(err, "failed to write audit entry", "action", action)
	}
}
