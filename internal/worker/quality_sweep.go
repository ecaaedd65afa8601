package worker

import (
	"context"
	"strings"
	"time"

	"github.com/jwalitptl/identito-api/internal/model"
	"github.com/jwalitptl/identito-api/internal/service/identity"
	"github.com/jwalitptl/identito-api/internal/service/vigilance"
	"github.com/jwalitptl/identito-api/pkg/logger"
)

// QualitySweep periodically audits identity quality against the facility
// policy and raises trait-mismatch alerts for records that fall below it.
type QualitySweep struct {
	identities identity.IdentityService
	alerts     vigilance.VigilanceService
	interval   time.Duration
	logger     *logger.Logger
}

func NewQualitySweep(
	identities identity.IdentityService,
	alerts vigilance.VigilanceService,
	interval time.Duration,
	l *logger.Logger,
) *QualitySweep {
	if interval <= 0 {
		interval = time.Hour
	}
	return &QualitySweep{
		identities: identities,
		alerts:     alerts,
		interval:   interval,
		logger:     l,
	}
}

func (s *QualitySweep) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("quality sweep started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("quality sweep stopped")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error(err, "quality sweep failed")
			}
		}
	}
}

// RunOnce audits all identities and raises one low-severity alert per flagged
// record that does not already carry an active trait-mismatch alert.
func (s *QualitySweep) RunOnce(ctx context.Context) error {
	findings, err := s.identities.RunComplianceAudit(ctx)
	if err != nil {
		return err
	}

	for _, finding := range findings {
		alert := &model.CollisionAlert{
			IdentityID: finding.IdentityID,
			Type:       model.AlertTraitMismatch,
			Severity:   model.SeverityLow,
			Details:    "compliance audit: " + strings.Join(finding.Issues, "; "),
		}
		if err := s.alerts.CreateAlert(ctx, alert); err != nil {
			s.logger.Error(err, "failed to raise compliance alert", "identity_id", finding.IdentityID)
		}
	}
	s.logger.Info("quality sweep completed", "findings", len(findings))
	return nil
}
