// Package healthz exposes a small HTTP surface for liveness and
// operational stats: no auth, no TLS, bound to loopback by default.
package healthz

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cerplabs/memoryd/internal/scheduler"
	"github.com/cerplabs/memoryd/internal/store"
	"github.com/cerplabs/memoryd/pkg/version"
)

// Status is the shape returned from /healthz.
type Status struct {
	OK              bool   `json:"ok"`
	VectorAvailable bool   `json:"vector_available"`
	Version         string `json:"version"`
}

// Stats is the shape returned from /stats.
type Stats struct {
	GoVersion        string           `json:"go_version"`
	SchedulerRunning bool             `json:"scheduler_running"`
	TasksCompleted   int64            `json:"tasks_completed"`
	TasksFailed      int64            `json:"tasks_failed"`
	LastRunAt        *time.Time       `json:"last_run_at,omitempty"`
}

// Deps is what the mux needs to answer /healthz and /stats. Scheduler may
// be nil when the scheduler is disabled.
type Deps struct {
	Handle    *store.Handle
	Scheduler *scheduler.Scheduler
}

// NewMux builds the chi router serving /healthz and /stats as JSON.
func NewMux(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Status{
			OK:              true,
			VectorAvailable: deps.Handle.VecAvailable(),
			Version:         version.Version,
		})
	})

	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		stats := Stats{GoVersion: version.GoVersion}
		if deps.Scheduler != nil {
			stats.SchedulerRunning = deps.Scheduler.IsRunning()
			s := deps.Scheduler.GetStats()
			stats.TasksCompleted = s.TasksCompleted
			stats.TasksFailed = s.TasksFailed
			if !s.LastRunAt.IsZero() {
				stats.LastRunAt = &s.LastRunAt
			}
		}
		writeJSON(w, http.StatusOK, stats)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
