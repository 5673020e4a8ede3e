package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dd0wney/cluso-fraudgraph/pkg/api"
	"github.com/dd0wney/cluso-fraudgraph/pkg/api/middleware"
	"github.com/dd0wney/cluso-fraudgraph/pkg/config"
	"github.com/dd0wney/cluso-fraudgraph/pkg/engine"
	"github.com/dd0wney/cluso-fraudgraph/pkg/explain"
	"github.com/dd0wney/cluso-fraudgraph/pkg/feed"
	"github.com/dd0wney/cluso-fraudgraph/pkg/health"
	"github.com/dd0wney/cluso-fraudgraph/pkg/logging"
	"github.com/dd0wney/cluso-fraudgraph/pkg/metrics"
	tlspkg "github.com/dd0wney/cluso-fraudgraph/pkg/tls"
)

const cachePingTimeout = time.Second

// app holds the wired components of one process.
type app struct {
	engine  *engine.Engine
	server  *api.Server
	health  *health.HealthChecker
	limiter *middleware.RateLimiter
	redis   *redis.Client
}

// newExplainer returns the gateway client, wrapped in a Redis cache when
// an address is configured. The Redis client is nil without a cache.
func newExplainer(cfg *config.Config, logger logging.Logger) (explain.Explainer, *redis.Client) {
	var ex explain.Explainer = explain.NewHTTPClient(cfg.Feed.GatewayURL, cfg.Explain, nil, logger)
	if cfg.Explain.RedisAddr == "" {
		return ex, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Explain.RedisAddr})
	logger.Info("explanation cache enabled",
		logging.String("redis_addr", cfg.Explain.RedisAddr),
		logging.Duration("ttl", cfg.Explain.CacheTTL))
	return explain.NewCachedExplainer(ex, explain.NewRedisCache(rdb, cfg.Explain.CacheTTL), logger), rdb
}

// registerChecks wires engine state into the health checker. Readiness
// waits for the first displayed graph; liveness only needs the process.
func registerChecks(hc *health.HealthChecker, eng *engine.Engine, rdb *redis.Client) {
	hc.RegisterCheck("feed", health.FeedCheck(func() health.FeedState {
		st := eng.Status()
		return health.FeedState{
			Source:              string(st.Source),
			LastSuccess:         st.Feed.LastSuccess,
			ConsecutiveFailures: st.Feed.ConsecutiveFailures,
			RefreshInterval:     st.Interval,
			LastError:           st.LastError,
		}
	}, nil))
	hc.RegisterCheck("animator", health.AnimatorCheck(func() (string, float64, bool) {
		v := eng.View()
		return v.State, v.Progress, v.Pending
	}))
	hc.RegisterReadinessCheck("display", health.DisplayCheck(func() bool {
		return eng.Status().Source != engine.SourceNone
	}))
	hc.RegisterLivenessCheck("process", func() health.Check { return health.SimpleCheck("process") })

	if rdb != nil {
		hc.RegisterCheck("explain_cache", health.CacheCheck(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}, cachePingTimeout))
	}
}

// newRateLimiter returns nil when limiting is disabled.
func newRateLimiter(cfg config.ServerConfig, logger logging.Logger) (*middleware.RateLimiter, middleware.ClientIDFunc, error) {
	proxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, nil, err
	}
	clientID := middleware.ClientIP(proxies)
	if cfg.RateLimit <= 0 {
		return nil, clientID, nil
	}
	rlc := middleware.DefaultRateLimitConfig()
	rlc.RequestsPerSecond = cfg.RateLimit
	rlc.BurstSize = cfg.RateBurst
	return middleware.NewRateLimiter(rlc, logger), clientID, nil
}

// newTLS loads the listener certificate and registers its expiry check.
// It returns nil when TLS is off.
func newTLS(cfg tlspkg.Config, hc *health.HealthChecker, logger logging.Logger) (*tls.Config, error) {
	tc, err := tlspkg.LoadTLSConfig(cfg)
	if err != nil || tc == nil {
		return nil, err
	}
	info, err := tlspkg.Info(tc)
	if err != nil {
		return nil, err
	}
	hc.RegisterCheck("tls_certificate", health.CertificateCheck(info.NotAfter, nil))
	logger.Info("tls enabled",
		logging.String("subject", info.Subject),
		logging.Bool("self_signed", info.SelfSigned),
		logging.Duration("expires_in", info.ExpiresIn(time.Now())))
	return tc, nil
}

// build wires every component from cfg without starting anything.
func build(cfg *config.Config, logger logging.Logger, reg *metrics.Registry) (*app, error) {
	logger = logging.OrNop(logger)
	hc := health.NewHealthChecker()

	tc, err := newTLS(cfg.Server.TLS, hc, logger)
	if err != nil {
		return nil, err
	}
	limiter, clientID, err := newRateLimiter(cfg.Server, logger)
	if err != nil {
		return nil, err
	}

	source := feed.NewHTTPSource(cfg.Feed, &http.Client{Timeout: cfg.Feed.Timeout}, logger)
	adapter := feed.NewAdapter(source, feed.WithLogger(logger), feed.WithMetrics(reg))

	explainer, rdb := newExplainer(cfg, logger)
	eng := engine.New(adapter, explainer, cfg.Engine(),
		engine.WithLogger(logger),
		engine.WithMetrics(reg))
	registerChecks(hc, eng, rdb)

	opts := []api.Option{
		api.WithLogger(logger),
		api.WithMetrics(reg),
		api.WithHealth(hc),
		api.WithRateLimiter(limiter, clientID),
	}
	if tc != nil {
		opts = append(opts, api.WithHSTS())
	}
	server := api.NewServer(eng, api.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CORSOrigins:     cfg.Server.CORSOrigins,
		TLS:             tc,
	}, opts...)

	return &app{
		engine:  eng,
		server:  server,
		health:  hc,
		limiter: limiter,
		redis:   rdb,
	}, nil
}

// close releases what build opened. The engine is stopped separately.
func (a *app) close() {
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}
