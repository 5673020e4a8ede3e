package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestNewHealthChecker(t *testing.T) {
	hc := NewHealthChecker()

	if hc == nil {
		t.Fatal("NewHealthChecker returned nil")
	}
	if hc.checks == nil {
		t.Error("checks map not initialized")
	}
	if hc.readyChecks == nil {
		t.Error("readyChecks map not initialized")
	}
	if hc.liveChecks == nil {
		t.Error("liveChecks map not initialized")
	}
}

func TestRegisterCheck(t *testing.T) {
	hc := NewHealthChecker()

	called := false
	hc.RegisterCheck("test", func() Check {
		called = true
		return Check{Status: StatusHealthy}
	})

	resp := hc.Check()
	if !called {
		t.Error("registered check was not called")
	}
	if _, exists := resp.Checks["test"]; !exists {
		t.Error("check result not in response")
	}
}

func TestRegisterReadinessCheck(t *testing.T) {
	hc := NewHealthChecker()

	called := false
	hc.RegisterReadinessCheck("ready-test", func() Check {
		called = true
		return Check{Status: StatusHealthy}
	})

	// Should not be called for regular Check()
	hc.Check()
	if called {
		t.Error("readiness check should not be called for Check()")
	}

	// Should be called for CheckReadiness()
	resp := hc.CheckReadiness()
	if !called {
		t.Error("readiness check was not called")
	}
	if _, exists := resp.Checks["ready-test"]; !exists {
		t.Error("readiness check result not in response")
	}
}

func TestRegisterLivenessCheck(t *testing.T) {
	hc := NewHealthChecker()

	called := false
	hc.RegisterLivenessCheck("live-test", func() Check {
		called = true
		return Check{Status: StatusHealthy}
	})

	// Should not be called for regular Check()
	hc.Check()
	if called {
		t.Error("liveness check should not be called for Check()")
	}

	// Should be called for CheckLiveness()
	resp := hc.CheckLiveness()
	if !called {
		t.Error("liveness check was not called")
	}
	if _, exists := resp.Checks["live-test"]; !exists {
		t.Error("liveness check result not in response")
	}
}

func TestCheckStatusAggregation(t *testing.T) {
	tests := []struct {
		name           string
		checkStatuses  []Status
		expectedStatus Status
	}{
		{
			name:           "all healthy",
			checkStatuses:  []Status{StatusHealthy, StatusHealthy, StatusHealthy},
			expectedStatus: StatusHealthy,
		},
		{
			name:           "one degraded",
			checkStatuses:  []Status{StatusHealthy, StatusDegraded, StatusHealthy},
			expectedStatus: StatusDegraded,
		},
		{
			name:           "one unhealthy",
			checkStatuses:  []Status{StatusHealthy, StatusUnhealthy, StatusHealthy},
			expectedStatus: StatusUnhealthy,
		},
		{
			name:           "degraded and unhealthy",
			checkStatuses:  []Status{StatusDegraded, StatusUnhealthy, StatusHealthy},
			expectedStatus: StatusUnhealthy,
		},
		{
			name:           "no checks",
			checkStatuses:  []Status{},
			expectedStatus: StatusHealthy,
		},
		{
			name:           "single healthy",
			checkStatuses:  []Status{StatusHealthy},
			expectedStatus: StatusHealthy,
		},
		{
			name:           "single unhealthy",
			checkStatuses:  []Status{StatusUnhealthy},
			expectedStatus: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()

			for i, status := range tt.checkStatuses {
				s := status // capture
				hc.RegisterCheck(string(rune('a'+i)), func() Check {
					return Check{Status: s}
				})
			}

			resp := hc.Check()
			if resp.Status != tt.expectedStatus {
				t.Errorf("expected status %s, got %s", tt.expectedStatus, resp.Status)
			}
		})
	}
}

func TestCheckTimestamp(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck("test", func() Check {
		return Check{Status: StatusHealthy}
	})

	before := time.Now()
	resp := hc.Check()
	after := time.Now()

	if resp.Timestamp.Before(before) || resp.Timestamp.After(after) {
		t.Errorf("timestamp %v not between %v and %v", resp.Timestamp, before, after)
	}
}

func TestCheckDuration(t *testing.T) {
	hc := NewHealthChecker()

	sleepDuration := 10 * time.Millisecond
	hc.RegisterCheck("slow", func() Check {
		time.Sleep(sleepDuration)
		return Check{Status: StatusHealthy}
	})

	resp := hc.Check()
	check := resp.Checks["slow"]

	if check.Duration < sleepDuration {
		t.Errorf("duration %v less than sleep time %v", check.Duration, sleepDuration)
	}
}

func TestSimpleCheck(t *testing.T) {
	check := SimpleCheck("test-component")

	if check.Name != "test-component" {
		t.Errorf("expected name 'test-component', got %s", check.Name)
	}
	if check.Status != StatusHealthy {
		t.Errorf("expected status healthy, got %s", check.Status)
	}
	if check.LastChecked.IsZero() {
		t.Error("LastChecked not set")
	}
}

func TestHTTPHandler(t *testing.T) {
	tests := []struct {
		name           string
		checkStatus    Status
		expectedCode   int
	}{
		{
			name:           "healthy returns 200",
			checkStatus:    StatusHealthy,
			expectedCode:   http.StatusOK,
		},
		{
			name:           "degraded returns 200",
			checkStatus:    StatusDegraded,
			expectedCode:   http.StatusOK,
		},
		{
			name:           "unhealthy returns 503",
			checkStatus:    StatusUnhealthy,
			expectedCode:   http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			hc.RegisterCheck("test", func() Check {
				return Check{Status: tt.checkStatus}
			})

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rec := httptest.NewRecorder()

			hc.HTTPHandler()(rec, req)

			if rec.Code != tt.expectedCode {
				t.Errorf("expected status code %d, got %d", tt.expectedCode, rec.Code)
			}

			if rec.Header().Get("Content-Type") != "application/json" {
				t.Error("expected Content-Type application/json")
			}

			var resp Response
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}

			if resp.Status != tt.checkStatus {
				t.Errorf("expected response status %s, got %s", tt.checkStatus, resp.Status)
			}
		})
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name           string
		checkStatus    Status
		expectedCode   int
	}{
		{
			name:           "healthy returns 200",
			checkStatus:    StatusHealthy,
			expectedCode:   http.StatusOK,
		},
		{
			name:           "degraded returns 503",
			checkStatus:    StatusDegraded,
			expectedCode:   http.StatusServiceUnavailable,
		},
		{
			name:           "unhealthy returns 503",
			checkStatus:    StatusUnhealthy,
			expectedCode:   http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			hc.RegisterReadinessCheck("test", func() Check {
				return Check{Status: tt.checkStatus}
			})

			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			rec := httptest.NewRecorder()

			hc.ReadinessHandler()(rec, req)

			if rec.Code != tt.expectedCode {
				t.Errorf("expected status code %d, got %d", tt.expectedCode, rec.Code)
			}
		})
	}
}

func TestLivenessHandler(t *testing.T) {
	tests := []struct {
		name           string
		checkStatus    Status
		expectedCode   int
	}{
		{
			name:           "healthy returns 200",
			checkStatus:    StatusHealthy,
			expectedCode:   http.StatusOK,
		},
		{
			name:           "degraded returns 503",
			checkStatus:    StatusDegraded,
			expectedCode:   http.StatusServiceUnavailable,
		},
		{
			name:           "unhealthy returns 503",
			checkStatus:    StatusUnhealthy,
			expectedCode:   http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			hc.RegisterLivenessCheck("test", func() Check {
				return Check{Status: tt.checkStatus}
			})

			req := httptest.NewRequest(http.MethodGet, "/live", nil)
			rec := httptest.NewRecorder()

			hc.LivenessHandler()(rec, req)

			if rec.Code != tt.expectedCode {
				t.Errorf("expected status code %d, got %d", tt.expectedCode, rec.Code)
			}
		})
	}
}

func TestConcurrentCheckRegistration(t *testing.T) {
	hc := NewHealthChecker()

	// Register checks concurrently
	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			hc.RegisterCheck(string(rune('a'+id)), func() Check {
				return Check{Status: StatusHealthy}
			})
			done <- true
		}(i)
	}

	// Wait for all registrations
	for i := 0; i < 10; i++ {
		<-done
	}

	// Run checks concurrently
	for i := 0; i < 10; i++ {
		go func() {
			hc.Check()
			done <- true
		}()
	}

	// Wait for all checks
	for i := 0; i < 10; i++ {
		<-done
	}

	// Verify all checks registered
	resp := hc.Check()
	if len(resp.Checks) != 10 {
		t.Errorf("expected 10 checks, got %d", len(resp.Checks))
	}
}

func TestResponseJSONSerialization(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck("test", func() Check {
		return Check{
			Status:  StatusHealthy,
			Message: "All good",
			Details: map[string]any{
				"version": "1.0.0",
				"count":   42,
			},
		}
	})

	resp := hc.Check()

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("failed to marshal response: %v", err)
	}

	var decoded Response
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if decoded.Status != resp.Status {
		t.Errorf("status mismatch: expected %s, got %s", resp.Status, decoded.Status)
	}

	check, exists := decoded.Checks["test"]
	if !exists {
		t.Fatal("check 'test' not found in decoded response")
	}

	if check.Message != "All good" {
		t.Errorf("message mismatch: expected 'All good', got %s", check.Message)
	}
}

func TestFeedCheck(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	tests := []struct {
		name   string
		state  FeedState
		status Status
	}{
		{"live and fresh", FeedState{Source: "live", LastSuccess: now.Add(-4 * time.Second), RefreshInterval: 5 * time.Second}, StatusHealthy},
		{"live but stalled", FeedState{Source: "live", LastSuccess: now.Add(-time.Minute), RefreshInterval: 5 * time.Second}, StatusDegraded},
		{"stale", FeedState{Source: "stale", LastSuccess: now.Add(-10 * time.Second), ConsecutiveFailures: 2, LastError: "timeout"}, StatusDegraded},
		{"placeholder", FeedState{Source: "placeholder", ConsecutiveFailures: 1}, StatusDegraded},
		{"nothing displayed", FeedState{Source: "none"}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := FeedCheck(func() FeedState { return tt.state }, clock)()
			if check.Status != tt.status {
				t.Errorf("expected %s, got %s (%s)", tt.status, check.Status, check.Message)
			}
			if check.Details["source"] != tt.state.Source {
				t.Errorf("source detail = %v", check.Details["source"])
			}
		})
	}
}

func TestAnimatorCheck(t *testing.T) {
	check := AnimatorCheck(func() (string, float64, bool) { return "animating", 0.25, true })()
	if check.Status != StatusHealthy {
		t.Errorf("animator check should always be healthy, got %s", check.Status)
	}
	if check.Details["progress"] != 0.25 || check.Details["pending"] != true {
		t.Errorf("unexpected details %v", check.Details)
	}
}

func TestDisplayCheck(t *testing.T) {
	if DisplayCheck(func() bool { return true })().Status != StatusHealthy {
		t.Error("expected healthy with a view")
	}
	if DisplayCheck(func() bool { return false })().Status != StatusUnhealthy {
		t.Error("expected unhealthy without a view")
	}
}

func TestCacheCheck(t *testing.T) {
	ok := CacheCheck(func(ctx context.Context) error { return nil }, time.Second)()
	if ok.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", ok.Status)
	}

	down := CacheCheck(func(ctx context.Context) error { return errors.New("connection refused") }, time.Second)()
	if down.Status != StatusDegraded || down.Message != "connection refused" {
		t.Errorf("expected degraded with message, got %s %q", down.Status, down.Message)
	}

	slow := CacheCheck(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 10*time.Millisecond)()
	if slow.Status != StatusDegraded {
		t.Errorf("expected degraded on timeout, got %s", slow.Status)
	}
}

func TestCertificateCheck(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	tests := []struct {
		name     string
		notAfter time.Time
		want     Status
	}{
		{"valid", now.Add(90 * 24 * time.Hour), StatusHealthy},
		{"expiring", now.Add(3 * 24 * time.Hour), StatusDegraded},
		{"expired", now.Add(-time.Hour), StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := CertificateCheck(tt.notAfter, clock)()
			if check.Status != tt.want {
				t.Errorf("status = %s, want %s (%s)", check.Status, tt.want, check.Message)
			}
			if check.Name != "tls_certificate" {
				t.Errorf("name = %q", check.Name)
			}
		})
	}
}
