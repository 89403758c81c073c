// Package internal contains the runtime implementation.
package internal

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

// HealthChecker is a named check. Implementations should be quick and honor
// context deadlines.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

var (
	healthCheckers   []HealthChecker
	healthCheckersMu sync.RWMutex
)

// RegisterHealthChecker registers a process-wide health checker.
func RegisterHealthChecker(checker HealthChecker) {
	healthCheckersMu.Lock()
	defer healthCheckersMu.Unlock()
	healthCheckers = append(healthCheckers, checker)
}

// ClearHealthCheckers removes every process-wide checker (for tests).
func ClearHealthCheckers() {
	healthCheckersMu.Lock()
	defer healthCheckersMu.Unlock()
	healthCheckers = nil
}

func globalCheckers() []HealthChecker {
	healthCheckersMu.RLock()
	defer healthCheckersMu.RUnlock()
	return append([]HealthChecker(nil), healthCheckers...)
}

// CheckHealth runs the global checkers followed by extra and returns the
// failures by checker name.
func CheckHealth(ctx context.Context, extra ...HealthChecker) map[string]string {
	failures := map[string]string{}
	for _, c := range append(globalCheckers(), extra...) {
		if err := c.Check(ctx); err != nil {
			failures[c.Name()] = err.Error()
		}
	}
	return failures
}

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthHandler serves /live, /health and /ready. /live only reports that
// the process answers. /health runs the checks. /ready also requires ready
// to be set.
func HealthHandler(ready *atomic.Bool, checks []HealthChecker, timeout time.Duration) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/live", func(w http.ResponseWriter, r *http.Request) {
		writeReport(w, http.StatusOK, healthReport{Status: "ok"})
	})

	check := func(requireReady bool) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if requireReady && !ready.Load() {
				writeReport(w, http.StatusServiceUnavailable, healthReport{Status: "starting"})
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			if failures := CheckHealth(ctx, checks...); len(failures) > 0 {
				writeReport(w, http.StatusServiceUnavailable, healthReport{Status: "unavailable", Checks: failures})
				return
			}
			writeReport(w, http.StatusOK, healthReport{Status: "ok"})
		}
	}
	mux.HandleFunc("/health", check(false))
	mux.HandleFunc("/ready", check(true))
	return mux
}

func writeReport(w http.ResponseWriter, status int, report healthReport) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(report)
}
