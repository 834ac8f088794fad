package healthz

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerplabs/memoryd/internal/scheduler"
	"github.com/cerplabs/memoryd/internal/store"
)

func newTestHandle(t *testing.T) *store.Handle {
	t.Helper()
	h, err := store.Open("", 8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestNewMux_HealthzReportsOKAndVectorAvailability(t *testing.T) {
	h := newTestHandle(t)
	mux := NewMux(Deps{Handle: h})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var status Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.OK)
	assert.Equal(t, h.VecAvailable(), status.VectorAvailable)
}

func TestNewMux_StatsWithoutSchedulerReportsNotRunning(t *testing.T) {
	h := newTestHandle(t)
	mux := NewMux(Deps{Handle: h})

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var stats Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.False(t, stats.SchedulerRunning)
	assert.Nil(t, stats.LastRunAt)
}

func TestNewMux_StatsWithSchedulerReportsCounters(t *testing.T) {
	h := newTestHandle(t)
	tasks := store.NewTaskRepository(h)
	results := store.NewTaskResultRepository(h)
	sched := scheduler.New(tasks, results, nil, "*/1 * * * *", nil)

	mux := NewMux(Deps{Handle: h, Scheduler: sched})

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var stats Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.False(t, stats.SchedulerRunning)
	assert.Equal(t, int64(0), stats.TasksCompleted)
	assert.Equal(t, int64(0), stats.TasksFailed)
}
