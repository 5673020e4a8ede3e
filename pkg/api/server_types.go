package api

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/dd0wney/cluso-fraudgraph/pkg/api/middleware"
	"github.com/dd0wney/cluso-fraudgraph/pkg/engine"
	"github.com/dd0wney/cluso-fraudgraph/pkg/feed"
	"github.com/dd0wney/cluso-fraudgraph/pkg/health"
	"github.com/dd0wney/cluso-fraudgraph/pkg/interaction"
	"github.com/dd0wney/cluso-fraudgraph/pkg/logging"
	"github.com/dd0wney/cluso-fraudgraph/pkg/metrics"
	"github.com/dd0wney/cluso-fraudgraph/pkg/pubsub"
)

// GraphEngine is the part of *engine.Engine the HTTP surface drives.
type GraphEngine interface {
	View() engine.View
	Status() engine.Status
	RefreshNow(ctx context.Context) (feed.Outcome, error)
	Subscribe(ctx context.Context, topic string) (*pubsub.Subscription[engine.View], error)
	SetRelaxation(enabled bool)
	Relaxation() bool
	Hover(id string) error
	Unhover()
	Select(id string) (uint64, error)
	ClearSelection()
	Interaction() interaction.State
}

// Config controls the listener and the middleware chain.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
	// KeepAlive is the SSE comment interval.
	KeepAlive   time.Duration
	CORSOrigins []string
	// MaxBodyBytes bounds request bodies; the API takes none larger.
	MaxBodyBytes int64
	// TLS serves HTTPS when set.
	TLS *tls.Config
}

// DefaultConfig returns listener defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8090",
		ReadTimeout:     10 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		KeepAlive:       15 * time.Second,
		MaxBodyBytes:    4 << 10,
	}
}

// Server is the HTTP surface over a GraphEngine.
type Server struct {
	engine   GraphEngine
	cfg      Config
	logger   logging.Logger
	metrics  *metrics.Registry
	health   *health.HealthChecker
	limiter  *middleware.RateLimiter
	clientID middleware.ClientIDFunc
	hsts     bool

	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l logging.Logger) Option {
	return func(s *Server) { s.logger = logging.OrNop(l) }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealth mounts the checker on /health, /health/ready and /health/live.
func WithHealth(hc *health.HealthChecker) Option {
	return func(s *Server) { s.health = hc }
}

// WithRateLimiter limits the mutating routes per client. clientID defaults
// to the peer address.
func WithRateLimiter(rl *middleware.RateLimiter, clientID middleware.ClientIDFunc) Option {
	return func(s *Server) {
		s.limiter = rl
		if clientID != nil {
			s.clientID = clientID
		}
	}
}

// WithHSTS adds Strict-Transport-Security to every response.
func WithHSTS() Option {
	return func(s *Server) { s.hsts = true }
}
