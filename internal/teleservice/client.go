package teleservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jwalitptl/identito-api/internal/config"
	"github.com/jwalitptl/identito-api/internal/model"
	"github.com/jwalitptl/identito-api/pkg/circuitbreaker"
	apperrors "github.com/jwalitptl/identito-api/pkg/errors"
	"github.com/jwalitptl/identito-api/pkg/metrics"
)

// Client submits identity traits to the INSi national-identifier teleservice.
type Client interface {
	Submit(ctx context.Context, traits model.PatientTraits) (*model.QualificationResponse, error)
}

// HTTPClient is the production Client. The remote service has no intrinsic
// timeout, so every call runs under the configured deadline and behind a
// circuit breaker.
type HTTPClient struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	metrics *metrics.Metrics
}

func NewHTTPClient(cfg config.INSiConfig, m *metrics.Metrics) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "insi-teleservice",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}),
		metrics: m,
	}
}

func (c *HTTPClient) Submit(ctx context.Context, traits model.PatientTraits) (*model.QualificationResponse, error) {
	body, err := json.Marshal(map[string]interface{}{
		"birth_family_name": traits.BirthFamilyName,
		"birth_given_name":  traits.BirthGivenName,
		"birth_date":        traits.BirthDate,
		"sex":               traits.Sex,
		"birth_place_code":  traits.BirthPlaceCode,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var response model.QualificationResponse
	start := time.Now()
	err = c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ins/search", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("teleservice returned status %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&response)
	})
	if c.metrics != nil {
		c.metrics.TeleserviceLatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("teleservice call failed: %w", err))
	}
	return &response, nil
}
