package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/identito-api/internal/service/qualification"
	"github.com/jwalitptl/identito-api/pkg/logger"
)

// QualificationExpiry closes INS qualification requests that never received a
// teleservice response within the configured TTL.
type QualificationExpiry struct {
	qualifications qualification.QualificationService
	interval       time.Duration
	ttl            time.Duration
	logger         *logger.Logger
}

func NewQualificationExpiry(
	qualifications qualification.QualificationService,
	interval, ttl time.Duration,
	l *logger.Logger,
) *QualificationExpiry {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &QualificationExpiry{
		qualifications: qualifications,
		interval:       interval,
		ttl:            ttl,
		logger:         l,
	}
}

func (s *QualificationExpiry) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("qualification expiry sweep started",
		"interval", s.interval.String(), "ttl", s.ttl.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("qualification expiry sweep stopped")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error(err, "qualification expiry sweep failed")
			}
		}
	}
}

func (s *QualificationExpiry) RunOnce(ctx context.Context) error {
	expired, err := s.qualifications.ExpireRequests(ctx, time.Now().Add(-s.ttl))
	if err != nil {
		return err
	}
	if expired > 0 {
		s.logger.Info("expired stale qualification requests", "count", expired)
	}
	return nil
}
