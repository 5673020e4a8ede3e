// Package config loads fraudgraph settings from YAML and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-fraudgraph/pkg/animation"
	"github.com/dd0wney/cluso-fraudgraph/pkg/engine"
	"github.com/dd0wney/cluso-fraudgraph/pkg/explain"
	"github.com/dd0wney/cluso-fraudgraph/pkg/feed"
	tlspkg "github.com/dd0wney/cluso-fraudgraph/pkg/tls"
	"github.com/dd0wney/cluso-fraudgraph/pkg/validation"
	"github.com/dd0wney/cluso-fraudgraph/pkg/visualization"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FRAUDGRAPH_"

// AnimationConfig controls transitions between layouts.
type AnimationConfig struct {
	Duration      time.Duration `yaml:"duration" validate:"gte=0"`
	FrameInterval time.Duration `yaml:"frame_interval" validate:"min=1ms"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"min=1s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"min=1s"`
	CORSOrigins     []string      `yaml:"cors_origins"`

	// RateLimit is requests per second per client on mutating routes.
	// Zero disables limiting.
	RateLimit      float64  `yaml:"rate_limit" validate:"gte=0"`
	RateBurst      int      `yaml:"rate_burst" validate:"gte=0"`
	TrustedProxies []string `yaml:"trusted_proxies"`

	TLS tlspkg.Config `yaml:"tls"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// Config is the complete application configuration.
type Config struct {
	Feed      feed.Config                `yaml:"feed"`
	Layout    visualization.LayoutConfig `yaml:"layout"`
	Animation AnimationConfig            `yaml:"animation"`
	Explain   explain.Config             `yaml:"explain"`
	Server    ServerConfig               `yaml:"server"`
	Logging   LoggingConfig              `yaml:"logging"`
}

// Default returns the reference configuration.
func Default() *Config {
	return &Config{
		Feed:   feed.DefaultConfig(),
		Layout: visualization.DefaultLayoutConfig(),
		Animation: AnimationConfig{
			Duration:      animation.DefaultDuration,
			FrameInterval: animation.DefaultFrameInterval,
		},
		Explain: explain.DefaultConfig(),
		Server: ServerConfig{
			Addr:            ":8090",
			ReadTimeout:     10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimit:       20,
			RateBurst:       40,
			TLS:             tlspkg.DefaultConfig(),
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads defaults, then the YAML file at path (if any), then
// FRAUDGRAPH_* environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := cfg.Decode(f); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode overlays YAML from r onto cfg. Unknown keys are rejected.
func (c *Config) Decode(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

type envBinding struct {
	name string
	set  func(c *Config, v string) error
}

func envString(dst func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error { *dst(c) = v; return nil }
}

func envDuration(dst func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst(c) = d
		return nil
	}
}

func envBool(dst func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst(c) = b
		return nil
	}
}

func envInt(dst func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst(c) = n
		return nil
	}
}

func envFloat(dst func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*dst(c) = f
		return nil
	}
}

var envBindings = []envBinding{
	{"GATEWAY_URL", envString(func(c *Config) *string { return &c.Feed.GatewayURL })},
	{"FEED_PATH", envString(func(c *Config) *string { return &c.Feed.Path })},
	{"REFRESH_INTERVAL", envDuration(func(c *Config) *time.Duration { return &c.Feed.RefreshInterval })},
	{"FEED_TIMEOUT", envDuration(func(c *Config) *time.Duration { return &c.Feed.Timeout })},
	{"BREAKER_ENABLED", envBool(func(c *Config) *bool { return &c.Feed.Breaker.Enabled })},
	{"RELAX", envBool(func(c *Config) *bool { return &c.Layout.Relax })},
	{"ITERATIONS", envInt(func(c *Config) *int { return &c.Layout.Iterations })},
	{"WEDGE_ROTATION", envFloat(func(c *Config) *float64 { return &c.Layout.WedgeRotation })},
	{"ANIMATION_DURATION", envDuration(func(c *Config) *time.Duration { return &c.Animation.Duration })},
	{"FRAME_INTERVAL", envDuration(func(c *Config) *time.Duration { return &c.Animation.FrameInterval })},
	{"EXPLAIN_URL", envString(func(c *Config) *string { return &c.Explain.GatewayURL })},
	{"EXPLAIN_TIMEOUT", envDuration(func(c *Config) *time.Duration { return &c.Explain.Timeout })},
	{"EXPLAIN_CACHE_TTL", envDuration(func(c *Config) *time.Duration { return &c.Explain.CacheTTL })},
	{"REDIS_ADDR", envString(func(c *Config) *string { return &c.Explain.RedisAddr })},
	{"ADDR", envString(func(c *Config) *string { return &c.Server.Addr })},
	{"RATE_LIMIT", envFloat(func(c *Config) *float64 { return &c.Server.RateLimit })},
	{"TLS_ENABLED", envBool(func(c *Config) *bool { return &c.Server.TLS.Enabled })},
	{"TLS_CERT_FILE", envString(func(c *Config) *string { return &c.Server.TLS.CertFile })},
	{"TLS_KEY_FILE", envString(func(c *Config) *string { return &c.Server.TLS.KeyFile })},
	{"LOG_LEVEL", envString(func(c *Config) *string { return &c.Logging.Level })},
}

// EnvNames lists every recognised environment variable.
func EnvNames() []string {
	names := make([]string, len(envBindings))
	for i, b := range envBindings {
		names[i] = EnvPrefix + b.name
	}
	return names
}

// ApplyEnv overrides fields from the environment. lookup is usually
// os.LookupEnv. Empty values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, b := range envBindings {
		name := EnvPrefix + b.name
		v, ok := lookup(name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := b.set(c, strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}

// Validate checks field constraints, then rules spanning several fields.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}

	l := c.Layout
	cv := validation.NewConfigValidator("Config")
	cv.LessFloat("layout.margin", l.Margin, l.CanvasSize/2).
		Custom("layout.base_radius", func() error {
			if l.BaseRadius <= l.RiskRadiusScale {
				return fmt.Errorf("base radius %g must exceed risk radius scale %g", l.BaseRadius, l.RiskRadiusScale)
			}
			return nil
		}).
		LessFloat("layout.base_radius", l.BaseRadius, l.CanvasSize/2).
		When(c.Animation.Duration > 0, func(v *validation.ConfigValidator) {
			v.LessDuration("animation.frame_interval", c.Animation.FrameInterval, c.Animation.Duration)
		}).
		When(c.Server.RateLimit > 0, func(v *validation.ConfigValidator) {
			v.Custom("server.rate_burst", func() error {
				if c.Server.RateBurst < 1 {
					return errors.New("burst must be at least 1 when rate limiting is enabled")
				}
				return nil
			})
		}).
		When(c.Server.TLS.Enabled, func(v *validation.ConfigValidator) {
			t := c.Server.TLS
			v.Custom("server.tls", func() error {
				if (t.CertFile == "") != (t.KeyFile == "") {
					return errors.New("cert_file and key_file must be set together")
				}
				if t.CertFile == "" && !t.AutoGenerate {
					return errors.New("needs cert_file and key_file or auto_generate")
				}
				return nil
			})
		}).
		Custom("feed.timeout", func() error {
			if c.Feed.Timeout > c.Feed.RefreshInterval {
				return fmt.Errorf("timeout %v exceeds refresh interval %v", c.Feed.Timeout, c.Feed.RefreshInterval)
			}
			return nil
		})
	return cv.Validate()
}

// Engine returns the engine settings.
func (c *Config) Engine() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.RefreshInterval = c.Feed.RefreshInterval
	cfg.AnimationDuration = c.Animation.Duration
	cfg.FrameInterval = c.Animation.FrameInterval
	cfg.ExplainTimeout = c.Explain.Timeout
	cfg.Layout = c.Layout
	return cfg
}
