package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/identito-api/internal/model"
	"github.com/jwalitptl/identito-api/pkg/logger"
	"github.com/jwalitptl/identito-api/pkg/messaging"
)

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
	return errors.New("event not found")
}

type fakeBroker struct {
	published map[string][]messaging.Message
	failures  int
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{published: map[string][]messaging.Message{}}
}

func (b *fakeBroker) Publish(_ context.Context, channel string, message interface{}) error {
	if b.failures > 0 {
		b.failures--
		return errors.New("broker unavailable")
	}
	b.published[channel] = append(b.published[channel], message.(messaging.Message))
	return nil
}

func (b *fakeBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not implemented")
}

func (b *fakeBroker) Close() error { return nil }

func testConfig() OutboxConfig {
	return OutboxConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	}
}

func pendingEvent(eventType string) *model.OutboxEvent {
	return &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   []byte(`{}`),
		Status:    string(model.OutboxStatusPending),
	}
}

func TestNewOutboxProcessorValidatesConfig(t *testing.T) {
	_, err := NewOutboxProcessor(&fakeOutboxRepo{}, newFakeBroker(), OutboxConfig{}, nil, logger.NewLogger(nil))
	assert.Error(t, err)
}

func TestProcessPendingPublishesAndMarksProcessed(t *testing.T) {
	repo := &fakeOutboxRepo{}
	broker := newFakeBroker()
	require.NoError(t, repo.Create(context.Background(), pendingEvent(model.EventIdentityCreated)))
	require.NoError(t, repo.Create(context.Background(), pendingEvent(model.EventIdentitiesMerged)))
	require.NoError(t, repo.Create(context.Background(), pendingEvent(model.EventAlertRaised)))

	p, err := NewOutboxProcessor(repo, broker, testConfig(), nil, logger.NewLogger(nil))
	require.NoError(t, err)

	require.NoError(t, p.ProcessPending(context.Background()))

	assert.Len(t, broker.published[messaging.ChannelIdentityEvents], 1)
	assert.Len(t, broker.published[messaging.ChannelMergeEvents], 1)
	assert.Len(t, broker.published[messaging.ChannelAlertEvents], 1)
	for _, e := range repo.events {
		assert.Equal(t, string(model.OutboxStatusProcessed), e.Status)
	}
}

func TestProcessPendingRetriesTransientFailures(t *testing.T) {
	repo := &fakeOutboxRepo{}
	broker := newFakeBroker()
	broker.failures = 2 // fails twice, succeeds on the third attempt
	require.NoError(t, repo.Create(context.Background(), pendingEvent(model.EventIdentityCreated)))

	p, err := NewOutboxProcessor(repo, broker, testConfig(), nil, logger.NewLogger(nil))
	require.NoError(t, err)

	require.NoError(t, p.ProcessPending(context.Background()))
	assert.Equal(t, string(model.OutboxStatusProcessed), repo.events[0].Status)
}

func TestProcessPendingMarksFailedAfterRetriesExhausted(t *testing.T) {
	repo := &fakeOutboxRepo{}
	broker := newFakeBroker()
	broker.failures = 10
	require.NoError(t, repo.Create(context.Background(), pendingEvent(model.EventIdentityCreated)))

	p, err := NewOutboxProcessor(repo, broker, testConfig(), nil, logger.NewLogger(nil))
	require.NoError(t, err)

	require.NoError(t, p.ProcessPending(context.Background()))
	assert.Equal(t, string(model.OutboxStatusFailed), repo.events[0].Status)
	require.NotNil(t, repo.events[0].ErrorMessage)
}
