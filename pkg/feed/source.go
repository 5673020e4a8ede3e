package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dd0wney/cluso-fraudgraph/pkg/logging"
)

// maxPayloadBytes bounds a snapshot body; the engine targets a few hundred nodes.
const maxPayloadBytes = 8 << 20

// Source retrieves a raw snapshot payload.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]byte, error)

func (f SourceFunc) Fetch(ctx context.Context) ([]byte, error) { return f(ctx) }

// BreakerConfig configures the circuit breaker guarding the feed endpoint.
type BreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures" validate:"gte=1"`
	OpenTimeout time.Duration `yaml:"open_timeout" validate:"min=1s"`
}

// Config describes where snapshots come from and how often.
type Config struct {
	GatewayURL      string        `yaml:"gateway_url" validate:"required,url"`
	Path            string        `yaml:"path" validate:"required,startswith=/"`
	RefreshInterval time.Duration `yaml:"refresh_interval" validate:"min=100ms"`
	Timeout         time.Duration `yaml:"timeout" validate:"min=10ms"`
	Breaker         BreakerConfig `yaml:"breaker"`
}

// DefaultConfig mirrors the dashboard's reference settings.
func DefaultConfig() Config {
	return Config{
		GatewayURL:      "http://localhost:5000",
		Path:            "/graph/network",
		RefreshInterval: 5 * time.Second,
		Timeout:         4 * time.Second,
		Breaker: BreakerConfig{
			Enabled:     true,
			MaxFailures: 5,
			OpenTimeout: 30 * time.Second,
		},
	}
}

// URL joins the gateway and snapshot path.
func (c Config) URL() string {
	return strings.TrimRight(c.GatewayURL, "/") + c.Path
}

// HTTPSource fetches snapshots from the gateway over HTTP.
type HTTPSource struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  logging.Logger
}

// NewHTTPSource builds a source for cfg. A nil client gets one with cfg.Timeout.
func NewHTTPSource(cfg Config, client *http.Client, logger logging.Logger) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	logger = logging.OrNop(logger).With(logging.Component("feed-http"))

	s := &HTTPSource{
		url:    cfg.URL(),
		client: client,
		logger: logger,
	}

	if cfg.Breaker.Enabled {
		maxFailures := cfg.Breaker.MaxFailures
		s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "snapshot-feed",
			MaxRequests: 1,
			Timeout:     cfg.Breaker.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed",
					logging.String("breaker", name),
					logging.String("from", from.String()),
					logging.String("to", to.String()))
			},
		})
	}
	return s
}

// Fetch performs one GET. Every failure is a *NetworkError.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	if s.breaker == nil {
		return s.do(ctx)
	}
	out, err := s.breaker.Execute(func() (any, error) {
		return s.do(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &NetworkError{URL: s.url, Err: err}
		}
		return nil, err
	}
	return out.([]byte), nil
}

func (s *HTTPSource) do(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, &NetworkError{URL: s.url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: s.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &NetworkError{URL: s.url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes+1))
	if err != nil {
		return nil, &NetworkError{URL: s.url, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(body) > maxPayloadBytes {
		return nil, &ParseError{Reason: fmt.Sprintf("payload exceeds %d bytes", maxPayloadBytes)}
	}
	return body, nil
}
