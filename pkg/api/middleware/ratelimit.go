package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dd0wney/cluso-fraudgraph/pkg/logging"
)

// RateLimitConfig configures per-client token buckets.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	CleanupInterval   time.Duration
	ClientExpiration  time.Duration
	// MaxClients bounds the bucket table; new clients beyond it are denied.
	MaxClients int
}

// DefaultRateLimitConfig suits the mutating graph routes.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 20,
		BurstSize:         40,
		CleanupInterval:   5 * time.Minute,
		ClientExpiration:  10 * time.Minute,
		MaxClients:        10000,
	}
}

type bucket struct {
	limiter *rate.Limiter

	mu       sync.Mutex
	lastSeen time.Time
}

// RateLimiter keeps one rate.Limiter per client.
type RateLimiter struct {
	config RateLimitConfig
	logger logging.Logger
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*bucket

	stopOnce sync.Once
	stop     chan struct{}
}

// NewRateLimiter starts a limiter and its cleanup loop. Call Stop to end
// the loop.
func NewRateLimiter(config RateLimitConfig, logger logging.Logger) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		logger:  logging.OrNop(logger).With(logging.Component("ratelimit")),
		now:     time.Now,
		clients: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go rl.cleanupLoop()
	}
	return rl
}

// Allow takes one token from clientID's bucket.
func (rl *RateLimiter) Allow(clientID string) bool {
	b := rl.bucket(clientID)
	if b == nil {
		return false
	}

	now := rl.now()
	b.mu.Lock()
	b.lastSeen = now
	b.mu.Unlock()

	return b.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) bucket(clientID string) *bucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if b, ok := rl.clients[clientID]; ok {
		return b
	}
	if rl.config.MaxClients > 0 && len(rl.clients) >= rl.config.MaxClients {
		rl.logger.Warn("rate limiter full, rejecting new client",
			logging.Count(len(rl.clients)),
			logging.String("client", clientID))
		return nil
	}
	b := &bucket{
		limiter:  rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.BurstSize),
		lastSeen: rl.now(),
	}
	rl.clients[clientID] = b
	return b
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

// cleanup drops buckets idle longer than ClientExpiration.
func (rl *RateLimiter) cleanup() int {
	cutoff := rl.now().Add(-rl.config.ClientExpiration)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for id, b := range rl.clients {
		b.mu.Lock()
		idle := b.lastSeen.Before(cutoff)
		b.mu.Unlock()
		if idle {
			delete(rl.clients, id)
			removed++
		}
	}
	if removed > 0 {
		rl.logger.Debug("rate limiter cleanup", logging.Count(removed))
	}
	return removed
}

// Clients reports how many buckets are tracked.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// ClientIDFunc identifies the client behind a request.
type ClientIDFunc func(*http.Request) string

// RateLimit answers 429 with Retry-After once a client's bucket is empty.
// A nil limiter disables limiting.
func RateLimit(limiter *RateLimiter, clientID ClientIDFunc) Middleware {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		limit := strconv.FormatFloat(limiter.config.RequestsPerSecond, 'f', -1, 64)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := clientID(r)
			if !limiter.Allow(id) {
				limiter.logger.Info("rate limit exceeded",
					logging.String("client", id),
					logging.String("path", r.URL.Path))
				w.Header().Set("Retry-After", "1")
				w.Header().Set("X-RateLimit-Limit", limit)
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
