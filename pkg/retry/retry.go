package retry

import (
	"context"
	"time"
)

// Config bounds retries for transient persistence failures. Merges and case
// resolutions are never passed through Do: re-running those blindly is unsafe.
type Config struct {
	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		Attempts: 3,
		Delay:    100 * time.Millisecond,
		MaxDelay: 2 * time.Second,
	}
}

// Do runs fn up to cfg.Attempts times with exponential backoff. retryable
// decides whether an error is worth another attempt; a nil retryable retries
// every error.
func Do(ctx context.Context, cfg Config, retryable func(error) bool, fn func() error) error {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}

	delay := cfg.Delay
	var err error
	for attempt := 0; attempt < cfg.Attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == cfg.Attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return err
}
