package api

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-fraudgraph/pkg/api/middleware"
	"github.com/dd0wney/cluso-fraudgraph/pkg/engine"
	"github.com/dd0wney/cluso-fraudgraph/pkg/explain"
	"github.com/dd0wney/cluso-fraudgraph/pkg/feed"
	"github.com/dd0wney/cluso-fraudgraph/pkg/health"
	"github.com/dd0wney/cluso-fraudgraph/pkg/metrics"
	tlspkg "github.com/dd0wney/cluso-fraudgraph/pkg/tls"
)

const testPayload = `{"nodes":[
	{"id":1,"category":"card","risk":90},
	{"id":2,"category":"card","risk":10},
	{"id":"ip:10.0.0.1","category":"ip","risk":50,"tx_id":"tx-3"}],
	"links":[{"source":0,"target":1},{"source":1,"target":2}]}`

// gatedSource serves body, optionally blocking each fetch until released.
type gatedSource struct {
	mu    sync.Mutex
	body  string
	err   error
	gate  chan struct{}
	calls atomic.Int32
}

func (s *gatedSource) Fetch(ctx context.Context) ([]byte, error) {
	s.calls.Add(1)
	s.mu.Lock()
	gate, body, err := s.gate, s.body, s.err
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}

type stubExplainer struct{}

func (stubExplainer) Explain(ctx context.Context, key string) (*explain.Explanation, error) {
	score := 0.87
	return &explain.Explanation{
		Key:                 key,
		Score:               &score,
		FeatureAttributions: map[string]float64{"velocity": 0.6, "geo": -0.2},
	}, nil
}

func testEngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.RefreshInterval = time.Hour
	cfg.AnimationDuration = 20 * time.Millisecond
	cfg.FrameInterval = 2 * time.Millisecond
	return cfg
}

func newTestServer(t *testing.T, src feed.Source, opts ...Option) (*Server, *engine.Engine) {
	t.Helper()
	eng := engine.New(feed.NewAdapter(src), stubExplainer{}, testEngineConfig())
	t.Cleanup(eng.Stop)
	return NewServer(eng, DefaultConfig(), opts...), eng
}

func loadedServer(t *testing.T, opts ...Option) (*Server, *engine.Engine) {
	t.Helper()
	s, eng := newTestServer(t, &gatedSource{body: testPayload}, opts...)
	_, err := eng.RefreshNow(context.Background())
	require.NoError(t, err)
	return s, eng
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestFrameJSON(t *testing.T) {
	s, _ := loadedServer(t)

	rr := do(t, s, "GET", "/graph/frame")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))

	v := decode[engine.View](t, rr)
	assert.Equal(t, engine.SourceLive, v.Source)
	require.Len(t, v.Nodes, 3)
	assert.Len(t, v.Links, 2)
	assert.Equal(t, "ip:10.0.0.1", v.Nodes[2].ID)
}

func TestFrameJSONBeforeFirstSnapshot(t *testing.T) {
	s, _ := newTestServer(t, &gatedSource{body: testPayload})

	v := decode[engine.View](t, do(t, s, "GET", "/graph/frame"))
	assert.Equal(t, engine.SourceNone, v.Source)
	assert.Empty(t, v.Nodes)
}

func TestFrameSVG(t *testing.T) {
	s, _ := loadedServer(t)

	rr := do(t, s, "GET", "/graph/frame.svg")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/svg+xml", rr.Header().Get("Content-Type"))

	body := rr.Body.String()
	assert.Contains(t, body, "<svg")
	assert.Equal(t, 3, strings.Count(body, "<circle"))
	assert.Equal(t, 2, strings.Count(body, "<line"))
	assert.Contains(t, body, `id="node-ip:10.0.0.1"`)
}

func TestRefresh(t *testing.T) {
	src := &gatedSource{body: testPayload}
	s, _ := newTestServer(t, src)

	rr := do(t, s, "POST", "/graph/refresh")
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[RefreshResponse](t, rr)
	assert.Equal(t, "fresh", resp.Outcome)
	assert.Equal(t, 3, resp.Nodes)
	assert.Empty(t, resp.Error)
}

func TestRefreshFallbackReportsOutcome(t *testing.T) {
	src := &gatedSource{err: errors.New("gateway down")}
	s, _ := newTestServer(t, src)

	rr := do(t, s, "POST", "/graph/refresh")
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[RefreshResponse](t, rr)
	assert.Equal(t, "placeholder", resp.Outcome)
	assert.Contains(t, resp.Error, "gateway down")
}

func TestRefreshConflictWhileInFlight(t *testing.T) {
	src := &gatedSource{body: testPayload, gate: make(chan struct{})}
	s, eng := newTestServer(t, src)

	done := make(chan struct{})
	go func() {
		defer close(done)
		eng.RefreshNow(context.Background())
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)

	rr := do(t, s, "POST", "/graph/refresh")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "a fetch is already in flight", decode[ErrorResponse](t, rr).Message)

	close(src.gate)
	<-done
}

func TestRefreshAfterStop(t *testing.T) {
	s, eng := loadedServer(t)
	eng.Stop()

	assert.Equal(t, http.StatusServiceUnavailable, do(t, s, "POST", "/graph/refresh").Code)
}

func TestHover(t *testing.T) {
	s, eng := loadedServer(t)

	assert.Equal(t, http.StatusNoContent, do(t, s, "PUT", "/graph/hover/2").Code)
	assert.Equal(t, "2", eng.Interaction().Hovered)

	// A stale leave for another node keeps the hover.
	assert.Equal(t, http.StatusNoContent, do(t, s, "DELETE", "/graph/hover/1").Code)
	assert.Equal(t, "2", eng.Interaction().Hovered)

	assert.Equal(t, http.StatusNoContent, do(t, s, "DELETE", "/graph/hover/2").Code)
	assert.Empty(t, eng.Interaction().Hovered)

	do(t, s, "PUT", "/graph/hover/1")
	assert.Equal(t, http.StatusNoContent, do(t, s, "DELETE", "/graph/hover").Code)
	assert.Empty(t, eng.Interaction().Hovered)
}

func TestHoverErrors(t *testing.T) {
	s, _ := loadedServer(t)

	assert.Equal(t, http.StatusNotFound, do(t, s, "PUT", "/graph/hover/99").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, "PUT", "/graph/hover/").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, "PUT", "/graph/hover/bad%20id").Code)
}

func TestSelectAndSelection(t *testing.T) {
	s, _ := loadedServer(t)

	rr := do(t, s, "POST", "/graph/select/ip:10.0.0.1")
	require.Equal(t, http.StatusAccepted, rr.Code)
	sel := decode[SelectResponse](t, rr)
	assert.Equal(t, "ip:10.0.0.1", sel.NodeID)
	assert.NotZero(t, sel.Token)

	require.Eventually(t, func() bool {
		got := decode[engine.Selection](t, do(t, s, "GET", "/graph/selection"))
		return !got.Loading && got.Explanation != nil
	}, time.Second, 5*time.Millisecond)

	got := decode[engine.Selection](t, do(t, s, "GET", "/graph/selection"))
	assert.Equal(t, "ip:10.0.0.1", got.NodeID)
	assert.Equal(t, "tx-3", got.Key, "nodes with a transaction id are explained by it")
	assert.Equal(t, sel.Token, got.Token)
	require.NotNil(t, got.Explanation.Score)
	assert.InDelta(t, 0.87, *got.Explanation.Score, 1e-9)

	assert.Equal(t, http.StatusNoContent, do(t, s, "DELETE", "/graph/select").Code)
	cleared := decode[engine.Selection](t, do(t, s, "GET", "/graph/selection"))
	assert.Empty(t, cleared.NodeID)
	assert.Nil(t, cleared.Explanation)
}

func TestSelectUnknownNode(t *testing.T) {
	s, _ := loadedServer(t)
	rr := do(t, s, "POST", "/graph/select/404")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, http.StatusNotFound, decode[ErrorResponse](t, rr).Code)
}

func TestRelaxToggle(t *testing.T) {
	s, eng := loadedServer(t)
	require.True(t, eng.Relaxation())

	rr := do(t, s, "PUT", "/graph/relax?enabled=false")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, decode[RelaxResponse](t, rr).Enabled)
	assert.False(t, eng.Relaxation())

	assert.False(t, decode[RelaxResponse](t, do(t, s, "GET", "/graph/relax")).Enabled)

	assert.Equal(t, http.StatusBadRequest, do(t, s, "PUT", "/graph/relax").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, "PUT", "/graph/relax?enabled=sometimes").Code)
}

func TestStatus(t *testing.T) {
	s, _ := loadedServer(t)

	st := decode[StatusResponse](t, do(t, s, "GET", "/graph/status"))
	assert.Equal(t, "live", st.Source)
	assert.Equal(t, "idle", st.Animator)
	assert.Equal(t, "1h0m0s", st.RefreshInterval)
	assert.NotEmpty(t, st.LastSuccess)
	assert.False(t, st.Running)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := loadedServer(t)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, s, "GET", "/graph/refresh").Code)
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	reg := metrics.NewRegistry()
	hc := health.NewHealthChecker()
	hc.RegisterCheck("always", func() health.Check { return health.SimpleCheck("always") })

	s, _ := loadedServer(t, WithMetrics(reg), WithHealth(hc))

	assert.Equal(t, http.StatusOK, do(t, s, "GET", "/health").Code)
	assert.Equal(t, http.StatusOK, do(t, s, "GET", "/health/live").Code)
	assert.Equal(t, http.StatusOK, do(t, s, "GET", "/health/ready").Code)

	do(t, s, "GET", "/graph/frame")
	rr := do(t, s, "GET", "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `path="GET /graph/frame"`)
}

func TestRoutesWithoutHealthOrMetrics(t *testing.T) {
	s, _ := loadedServer(t)
	assert.Equal(t, http.StatusNotFound, do(t, s, "GET", "/metrics").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, "GET", "/health").Code)
}

func TestRateLimitedMutations(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: 0.001,
		BurstSize:         1,
	}, nil)
	defer rl.Stop()

	s, _ := loadedServer(t, WithRateLimiter(rl, nil))

	assert.Equal(t, http.StatusOK, do(t, s, "POST", "/graph/refresh").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, s, "POST", "/graph/select/1").Code)
	assert.Equal(t, http.StatusOK, do(t, s, "GET", "/graph/frame").Code, "reads are not limited")
}

func TestCORSPreflight(t *testing.T) {
	eng := engine.New(feed.NewAdapter(&gatedSource{body: testPayload}), stubExplainer{}, testEngineConfig())
	t.Cleanup(eng.Stop)
	cfg := DefaultConfig()
	cfg.CORSOrigins = []string{"https://console.example.com"}
	s := NewServer(eng, cfg)

	req := httptest.NewRequest("OPTIONS", "/graph/refresh", nil)
	req.Header.Set("Origin", "https://console.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://console.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}

// readEvent reads one SSE event, skipping keep-alive comments.
func readEvent(t *testing.T, r *bufio.Reader) (string, engine.View) {
	t.Helper()
	var event, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "" && data != "":
			var v engine.View
			require.NoError(t, json.Unmarshal([]byte(data), &v))
			return event, v
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestStreamRefreshEvents(t *testing.T) {
	src := &gatedSource{err: errors.New("gateway down")}
	s, eng := newTestServer(t, src)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/graph/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	event, first := readEvent(t, r)
	assert.Equal(t, engine.TopicRefresh, event)
	assert.Equal(t, engine.SourceNone, first.Source)

	_, err = eng.RefreshNow(context.Background())
	require.Error(t, err)

	_, next := readEvent(t, r)
	assert.Equal(t, engine.SourcePlaceholder, next.Source)
	assert.NotEmpty(t, next.Nodes)
}

func TestStreamUnknownTopic(t *testing.T) {
	s, _ := loadedServer(t)
	assert.Equal(t, http.StatusBadRequest, do(t, s, "GET", "/graph/stream?topic=gossip").Code)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s, _ := loadedServer(t)
	ln, err := newLocalListener()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/graph/frame"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServeTLS(t *testing.T) {
	tcfg := tlspkg.DefaultConfig()
	tcfg.Enabled = true
	tc, err := tlspkg.LoadTLSConfig(tcfg)
	require.NoError(t, err)

	eng := engine.New(feed.NewAdapter(&gatedSource{body: testPayload}), stubExplainer{}, testEngineConfig())
	t.Cleanup(eng.Stop)
	_, err = eng.RefreshNow(context.Background())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.TLS = tc
	s := NewServer(eng, cfg, WithHSTS())

	ln, err := newLocalListener()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}}
	url := "https://" + ln.Addr().String() + "/graph/frame"
	var resp *http.Response
	require.Eventually(t, func() bool {
		r, err := client.Get(url)
		if err != nil {
			return false
		}
		resp = r
		return true
	}, 2*time.Second, 20*time.Millisecond)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, resp.TLS)
	assert.NotEmpty(t, resp.Header.Get("Strict-Transport-Security"))

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
