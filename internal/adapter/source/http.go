// Package source implements the remote data source for the streaming service.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/mmcdole/reel/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "reel/1.0"
	maxErrorBody   = 512
)

// BreakerSettings configures the circuit breaker in front of the service
type BreakerSettings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// Config holds the settings needed to reach the service
type Config struct {
	URL     string
	Token   string
	Timeout time.Duration
	Breaker BreakerSettings
}

// HTTPSource implements domain.DataSource over HTTP. Each request is POSTed
// as JSON to <url>/<kind>/<component>; the response body is the raw result.
type HTTPSource struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// New creates a new HTTPSource
func New(cfg Config, logger *slog.Logger) (*HTTPSource, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("service URL is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	s := &HTTPSource{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "streaming-service",
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Only trip with enough requests to judge
			if counts.Requests < cfg.Breaker.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.Breaker.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		// Client-side errors say nothing about service health
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, domain.ErrAuthFailed) ||
				errors.Is(err, domain.ErrVideoNotFound) ||
				errors.Is(err, context.Canceled)
		},
	})
	return s, nil
}

// Fetch performs req against the service
func (s *HTTPSource) Fetch(ctx context.Context, req domain.Request) (json.RawMessage, error) {
	result, err := s.breaker.Execute(func() (any, error) {
		return s.do(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		s.logger.Warn("request rejected by circuit breaker", "component", req.Component, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	if err != nil {
		return nil, err
	}
	return result.(json.RawMessage), nil
}

func (s *HTTPSource) do(ctx context.Context, req domain.Request) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/%s/%s", s.baseURL, req.Kind, req.Component)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	if s.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.token)
	}

	s.logger.Debug("service request", "kind", req.Kind, "component", req.Component)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Error("service request failed", "component", req.Component, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, domain.ErrAuthFailed
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrVideoNotFound
	case resp.StatusCode >= 500:
		s.logger.Error("service error", "component", req.Component, "status", resp.StatusCode, "body", truncate(data))
		return nil, fmt.Errorf("%w: status %d", domain.ErrServiceUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		s.logger.Error("unexpected service response", "component", req.Component, "status", resp.StatusCode, "body", truncate(data))
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("service returned invalid JSON for %s", req.Component)
	}
	return json.RawMessage(data), nil
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody])
	}
	return string(b)
}
