// Package explain retrieves model explanations for a selected transaction.
package explain

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/dd0wney/cluso-fraudgraph/pkg/logging"
)

const maxResponseBytes = 1 << 20

// Explanation is the model's account of one transaction's score.
type Explanation struct {
	Key                 string             `json:"key"`
	Score               *float64           `json:"score,omitempty"`
	FeatureAttributions map[string]float64 `json:"feature_attributions,omitempty"`
	FeatureInfo         map[string]any     `json:"feature_info,omitempty"`
	Summary             any                `json:"summary,omitempty"`
	Meta                map[string]any     `json:"meta,omitempty"`
}

// Attribution is one feature's contribution to the score.
type Attribution struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// TopAttributions returns up to n attributions ordered by absolute weight,
// largest first. Ties sort by feature name.
func (e *Explanation) TopAttributions(n int) []Attribution {
	if e == nil {
		return nil
	}
	out := make([]Attribution, 0, len(e.FeatureAttributions))
	for f, w := range e.FeatureAttributions {
		out = append(out, Attribution{Feature: f, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := abs(out[i].Weight), abs(out[j].Weight)
		if ai != aj {
			return ai > aj
		}
		return out[i].Feature < out[j].Feature
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Explainer looks up the explanation for a key.
type Explainer interface {
	Explain(ctx context.Context, key string) (*Explanation, error)
}

// Config describes the explanation endpoint.
type Config struct {
	GatewayURL string        `yaml:"gateway_url" validate:"omitempty,url"`
	Path       string        `yaml:"path" validate:"required,startswith=/"`
	Timeout    time.Duration `yaml:"timeout" validate:"min=10ms"`
	CacheTTL   time.Duration `yaml:"cache_ttl" validate:"gte=0"`
	RedisAddr  string        `yaml:"redis_addr"`
}

// DefaultConfig returns the reference explanation settings. An empty
// GatewayURL means "same gateway as the feed".
func DefaultConfig() Config {
	return Config{
		Path:     "/events/explain/",
		Timeout:  5 * time.Second,
		CacheTTL: 60 * time.Second,
	}
}

// wirePayload accepts both the wrapped ({"explanation": {...}}) and the flat
// response shapes, plus the service's {"error": "..."} form.
type wirePayload struct {
	Explanation *wireExplanation `json:"explanation"`
	Error       string           `json:"error"`
	wireExplanation
}

type wireExplanation struct {
	Score               *float64           `json:"score"`
	FeatureAttributions map[string]float64 `json:"feature_attributions"`
	FeatureInfo         map[string]any     `json:"feature_info"`
	Summary             any                `json:"summary"`
	Meta                map[string]any     `json:"meta"`
}

// HTTPClient calls the gateway's explanation endpoint.
type HTTPClient struct {
	base   string
	client *http.Client
	logger logging.Logger
}

// NewHTTPClient creates a client rooted at gatewayURL + cfg.Path. A nil
// client gets one with cfg.Timeout.
func NewHTTPClient(gatewayURL string, cfg Config, client *http.Client, logger logging.Logger) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.GatewayURL != "" {
		gatewayURL = cfg.GatewayURL
	}
	path := cfg.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return &HTTPClient{
		base:   strings.TrimRight(gatewayURL, "/") + path,
		client: client,
		logger: logging.OrNop(logger).With(logging.Component("explain")),
	}
}

// Explain implements Explainer. Every failure is an *Error.
func (c *HTTPClient) Explain(ctx context.Context, key string) (*Explanation, error) {
	if key == "" {
		return nil, &Error{Key: key, Message: "empty explanation key"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+url.PathEscape(key), nil)
	if err != nil {
		return nil, &Error{Key: key, Err: err}
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	timer := logging.StartTimer(c.logger, "explanation request",
		logging.String("key", key), logging.String("request_id", requestID))

	resp, err := c.client.Do(req)
	if err != nil {
		timer.EndError(err)
		return nil, &Error{Key: key, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		timer.EndError(err)
		return nil, &Error{Key: key, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	var payload wirePayload
	decodeErr := json.Unmarshal(body, &payload)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := &Error{Key: key, StatusCode: resp.StatusCode}
		if decodeErr == nil {
			e.Message = payload.Error
		}
		timer.EndError(e)
		return nil, e
	}
	if decodeErr != nil {
		timer.EndError(decodeErr)
		return nil, &Error{Key: key, StatusCode: resp.StatusCode, Message: "malformed explanation", Err: decodeErr}
	}
	if payload.Error != "" {
		e := &Error{Key: key, StatusCode: resp.StatusCode, Message: payload.Error}
		timer.EndError(e)
		return nil, e
	}

	w := payload.wireExplanation
	if payload.Explanation != nil {
		w = *payload.Explanation
	}
	timer.End(logging.Int("attributions", len(w.FeatureAttributions)))

	return &Explanation{
		Key:                 key,
		Score:               w.Score,
		FeatureAttributions: w.FeatureAttributions,
		FeatureInfo:         w.FeatureInfo,
		Summary:             w.Summary,
		Meta:                w.Meta,
	}, nil
}
