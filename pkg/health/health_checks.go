package health

import (
	"context"
	"fmt"
	"time"
)

// SimpleCheck creates a simple health check that always returns healthy
func SimpleCheck(name string) Check {
	return Check{
		Name:        name,
		Status:      StatusHealthy,
		LastChecked: time.Now(),
	}
}

// FeedState is the snapshot feed as seen by the engine.
type FeedState struct {
	// Source is "none", "live", "stale" or "placeholder".
	Source              string
	LastSuccess         time.Time
	ConsecutiveFailures int
	LastError           string
	RefreshInterval     time.Duration
}

// StaleAfter is how many refresh intervals may pass without a successful
// fetch before a live feed counts as stalled.
const StaleAfter = 3

// FeedCheck reports feed freshness. Showing stale data or the placeholder
// is degraded; having nothing to show is unhealthy.
func FeedCheck(getState func() FeedState, now func() time.Time) CheckFunc {
	if now == nil {
		now = time.Now
	}
	return func() Check {
		st := getState()
		check := Check{
			Name: "feed",
			Details: map[string]any{
				"source":               st.Source,
				"consecutive_failures": st.ConsecutiveFailures,
			},
		}
		if !st.LastSuccess.IsZero() {
			check.Details["last_success"] = st.LastSuccess
			check.Details["age_seconds"] = now().Sub(st.LastSuccess).Seconds()
		}
		if st.LastError != "" {
			check.Details["last_error"] = st.LastError
		}

		switch st.Source {
		case "live":
			limit := time.Duration(StaleAfter) * st.RefreshInterval
			if st.RefreshInterval > 0 && now().Sub(st.LastSuccess) > limit {
				check.Status = StatusDegraded
				check.Message = fmt.Sprintf("No successful fetch in %v", limit)
			} else {
				check.Status = StatusHealthy
				check.Message = "Feed live"
			}
		case "stale":
			check.Status = StatusDegraded
			check.Message = "Showing last good snapshot"
		case "placeholder":
			check.Status = StatusDegraded
			check.Message = "Feed never reached; showing placeholder graph"
		default:
			check.Status = StatusUnhealthy
			check.Message = "No snapshot displayed"
		}
		return check
	}
}

// AnimatorCheck reports the animator state. It is informational and always
// healthy.
func AnimatorCheck(getState func() (state string, progress float64, pending bool)) CheckFunc {
	return func() Check {
		state, progress, pending := getState()
		return Check{
			Name:    "animator",
			Status:  StatusHealthy,
			Message: state,
			Details: map[string]any{
				"state":    state,
				"progress": progress,
				"pending":  pending,
			},
		}
	}
}

// DisplayCheck is ready once any graph, placeholder included, is displayed.
func DisplayCheck(hasView func() bool) CheckFunc {
	return func() Check {
		if hasView() {
			return Check{Name: "display", Status: StatusHealthy, Message: "Graph displayed"}
		}
		return Check{Name: "display", Status: StatusUnhealthy, Message: "Waiting for first snapshot"}
	}
}

// CacheCheck pings the explanation cache. A failing cache degrades
// explanations to direct lookups, so it is reported as degraded.
func CacheCheck(ping func(ctx context.Context) error, timeout time.Duration) CheckFunc {
	return func() Check {
		check := Check{Name: "explain_cache"}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := ping(ctx); err != nil {
			check.Status = StatusDegraded
			check.Message = err.Error()
		} else {
			check.Status = StatusHealthy
			check.Message = "Connected"
		}
		return check
	}
}

// CertificateExpiryWarning is how close to expiry a certificate becomes
// degraded.
const CertificateExpiryWarning = 14 * 24 * time.Hour

// CertificateCheck reports the serving certificate's remaining validity.
func CertificateCheck(notAfter time.Time, now func() time.Time) CheckFunc {
	if now == nil {
		now = time.Now
	}
	return func() Check {
		left := notAfter.Sub(now())
		check := Check{
			Name: "tls_certificate",
			Details: map[string]any{
				"not_after":        notAfter,
				"expires_in_hours": left.Hours(),
			},
		}
		switch {
		case left <= 0:
			check.Status = StatusUnhealthy
			check.Message = "Certificate expired"
		case left < CertificateExpiryWarning:
			check.Status = StatusDegraded
			check.Message = fmt.Sprintf("Certificate expires in %v", left.Round(time.Hour))
		default:
			check.Status = StatusHealthy
			check.Message = "Certificate valid"
		}
		return check
	}
}
