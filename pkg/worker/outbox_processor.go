package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/identito-api/internal/model"
	"github.com/jwalitptl/identito-api/internal/repository"
	"github.com/jwalitptl/identito-api/pkg/logger"
	"github.com/jwalitptl/identito-api/pkg/messaging"
	"github.com/jwalitptl/identito-api/pkg/metrics"
	"github.com/jwalitptl/identito-api/pkg/retry"
)

// OutboxConfig bounds one processing cycle.
type OutboxConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

func (c *OutboxConfig) validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.RetryAttempts <= 0 {
		return fmt.Errorf("retry attempts must be positive, got %d", c.RetryAttempts)
	}
	return nil
}

// OutboxProcessor drains pending outbox rows and publishes them to the
// message broker. Rows are claimed with row locks so multiple processor
// instances can run side by side.
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxConfig
	metrics *metrics.Metrics
	logger  *logger.Logger
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxConfig,
	m *metrics.Metrics,
	l *logger.Logger,
) (*OutboxProcessor, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid outbox config: %w", err)
	}
	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		metrics: m,
		logger:  l,
	}, nil
}

// Start polls until ctx is cancelled.
func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("outbox processor started", "poll_interval", p.config.PollInterval.String())
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox processor stopped")
			return
		case <-ticker.C:
			if err := p.ProcessPending(ctx); err != nil {
				p.logger.Error(err, "outbox processing cycle failed")
			}
		}
	}
}

// ProcessPending handles one batch of pending events.
func (p *OutboxProcessor) ProcessPending(ctx context.Context) error {
	events, err := p.repo.GetPendingEvents(ctx, p.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch pending events: %w", err)
	}

	for _, event := range events {
		start := time.Now()
		err := retry.Do(ctx, retry.Config{
			Attempts: p.config.RetryAttempts,
			Delay:    p.config.RetryDelay,
		}, nil, func() error {
			if p.metrics != nil && event.RetryCount > 0 {
				p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
			}
			return p.broker.Publish(ctx, channelFor(event.EventType), messaging.Message{
				Type:    event.EventType,
				Payload: event.Payload,
			})
		})

		if err != nil {
			msg := err.Error()
			if uerr := p.repo.UpdateStatus(ctx, event.ID, model.OutboxStatusFailed, &msg); uerr != nil {
				p.logger.Error(uerr, "failed to mark outbox event failed", "event_id", event.ID)
			}
			if p.metrics != nil {
				p.metrics.OutboxEventsFailed.Inc()
			}
			p.logger.Error(err, "failed to publish outbox event",
				"event_id", event.ID, "event_type", event.EventType)
			continue
		}

		if err := p.repo.UpdateStatus(ctx, event.ID, model.OutboxStatusProcessed, nil); err != nil {
			p.logger.Error(err, "failed to mark outbox event processed", "event_id", event.ID)
			continue
		}
		if p.metrics != nil {
			p.metrics.OutboxEventsProcessed.Inc()
			p.metrics.OutboxProcessingLatency.Observe(time.Since(start).Seconds())
		}
	}
	return nil
}

// channelFor routes event types to broker channels by their prefix.
func channelFor(eventType string) string {
	switch {
	case eventType == model.EventIdentitiesMerged || eventType == model.EventCaseResolved:
		return messaging.ChannelMergeEvents
	case strings.HasPrefix(eventType, "alert."):
		return messaging.ChannelAlertEvents
	default:
		return messaging.ChannelIdentityEvents
	}
}
