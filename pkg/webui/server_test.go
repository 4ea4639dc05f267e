package webui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agileforge/pkg/assist"
	"agileforge/pkg/auth"
	"agileforge/pkg/cache"
	"agileforge/pkg/config"
	"agileforge/pkg/retry"
	"agileforge/pkg/sprint"
	"agileforge/pkg/standup"
	"agileforge/pkg/state"
	"agileforge/pkg/store"
)

// memStore is an in-memory remote store for handler tests.
type memStore struct {
	rows   map[string]*store.Row
	nextID int
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]*store.Row)}
}

func (f *memStore) Probe(_ context.Context) error { return nil }

func (f *memStore) Insert(_ context.Context, userID, name, data string) (string, error) {
	f.nextID++
	id := fmt.Sprintf("remote-%d", f.nextID)
	now := time.Now().UTC()
	f.rows[id] = &store.Row{ID: id, UserID: userID, Name: name, Data: data, CreatedAt: now, UpdatedAt: now}
	return id, nil
}

func (f *memStore) Update(_ context.Context, id, name, data string) error {
	row, ok := f.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	row.Name = name
	row.Data = data
	row.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *memStore) Delete(_ context.Context, id string) error {
	delete(f.rows, id)
	return nil
}

func (f *memStore) ListByUser(_ context.Context, userID string) ([]*store.Row, error) {
	var rows []*store.Row
	for _, row := range f.rows {
		if row.UserID == userID {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

type serverEnv struct {
	srv     *Server
	handler http.Handler
	store   *memStore
	alerts  *Alerts
}

func newServerEnv(t *testing.T, cfg config.Config) *serverEnv {
	t.Helper()

	ms := newMemStore()
	localCache, err := cache.NewStore(t.TempDir())
	require.NoError(t, err)
	alerts := NewAlerts()

	st := state.New(state.Config{
		Store: ms,
		Cache: localCache,
		Auth:  auth.NewStaticProvider(auth.User{ID: "user-1", Name: "Dana"}),
		Alert: alerts.Push,
		RetryPolicy: retry.Policy{
			MaxAttempts:   3,
			BaseDelay:     time.Millisecond,
			BackoffFactor: 2.0,
			AttemptBase:   time.Second,
			AttemptGrowth: time.Second,
		},
	})
	t.Cleanup(st.Close)

	suggester, err := assist.NewSuggester()
	require.NoError(t, err)

	srv := NewServer(cfg, st, sprint.NewManager(st), suggester,
		standup.NewTimer(time.Duration(cfg.StandupMinutes)*time.Minute), alerts)

	return &serverEnv{srv: srv, handler: srv.Handler(), store: ms, alerts: alerts}
}

func (e *serverEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestHealthEndpoint(t *testing.T) {
	env := newServerEnv(t, config.Default())

	rec := env.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestGetProjectStartsEmpty(t *testing.T) {
	env := newServerEnv(t, config.Default())

	rec := env.do(t, http.MethodGet, "/api/project", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	decodeBody(t, rec, &got)
	assert.Nil(t, got["id"])
	assert.Equal(t, "", got["name"])
}

func TestPatchProjectUpdatesCurrent(t *testing.T) {
	env := newServerEnv(t, config.Default())

	rec := env.do(t, http.MethodPatch, "/api/project", `{"name":"Mars Rover","vision":"explore"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	decodeBody(t, rec, &got)
	assert.Equal(t, "Mars Rover", got["name"])
	assert.Equal(t, "explore", got["vision"])
}

func TestPatchProjectRejectsBadJSON(t *testing.T) {
	env := newServerEnv(t, config.Default())

	rec := env.do(t, http.MethodPatch, "/api/project", `{not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveProjectAssignsRemoteID(t *testing.T) {
	env := newServerEnv(t, config.Default())
	env.do(t, http.MethodPatch, "/api/project", `{"name":"Mars Rover"}`)

	rec := env.do(t, http.MethodPost, "/api/project/save", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Saved   bool           `json:"saved"`
		Project map[string]any `json:"project"`
	}
	decodeBody(t, rec, &got)
	assert.True(t, got.Saved)
	assert.Equal(t, "remote-1", got.Project["id"])
	require.Len(t, env.store.rows, 1)
}

func TestSaveUnnamedProjectIsNoop(t *testing.T) {
	env := newServerEnv(t, config.Default())

	rec := env.do(t, http.MethodPost, "/api/project/save", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Saved bool `json:"saved"`
	}
	decodeBody(t, rec, &got)
	assert.False(t, got.Saved)
	assert.Empty(t, env.store.rows)
}

func TestNewProjectSavesCurrentFirst(t *testing.T) {
	env := newServerEnv(t, config.Default())
	env.do(t, http.MethodPatch, "/api/project", `{"name":"Mars Rover"}`)

	rec := env.do(t, http.MethodPost, "/api/project/new", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	decodeBody(t, rec, &got)
	assert.Equal(t, "", got["name"])
	assert.Len(t, env.store.rows, 1, "prior named work is saved before reset")
}

func TestProjectListLoadDelete(t *testing.T) {
	env := newServerEnv(t, config.Default())
	env.do(t, http.MethodPatch, "/api/project", `{"name":"Mars Rover"}`)
	env.do(t, http.MethodPost, "/api/project/save", "")
	env.do(t, http.MethodPost, "/api/project/new", "")

	rec := env.do(t, http.MethodGet, "/api/projects", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Projects []map[string]any `json:"projects"`
	}
	decodeBody(t, rec, &list)
	require.Len(t, list.Projects, 1)
	id, ok := list.Projects[0]["id"].(string)
	require.True(t, ok)

	rec = env.do(t, http.MethodPost, "/api/projects/"+id+"/load", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var loaded map[string]any
	decodeBody(t, rec, &loaded)
	assert.Equal(t, "Mars Rover", loaded["name"])

	rec = env.do(t, http.MethodDelete, "/api/projects/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, env.store.rows)
}

func TestLoadUnknownProjectReturns404(t *testing.T) {
	env := newServerEnv(t, config.Default())
	env.do(t, http.MethodPost, "/api/project/save", "")

	rec := env.do(t, http.MethodPost, "/api/projects/nope/load", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSprintLifecycle(t *testing.T) {
	env := newServerEnv(t, config.Default())

	rec := env.do(t, http.MethodPost, "/api/sprints", `{"goals":["ship the demo"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]any
	decodeBody(t, rec, &created)
	assert.Equal(t, float64(1), created["id"])
	assert.Equal(t, "Sprint 1", created["title"])

	rec = env.do(t, http.MethodPatch, "/api/sprints/1", `{"status":"active"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var proj struct {
		Sprints []map[string]any `json:"sprints"`
	}
	decodeBody(t, rec, &proj)
	require.Len(t, proj.Sprints, 1)
	assert.Equal(t, "active", proj.Sprints[0]["status"])

	rec = env.do(t, http.MethodDelete, "/api/sprints/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSprintBurnSnapshot(t *testing.T) {
	env := newServerEnv(t, config.Default())
	env.do(t, http.MethodPost, "/api/sprints",
		`{"tasks":[{"id":"t1","title":"build","status":"todo","estimated":8}]}`)

	rec := env.do(t, http.MethodPost, "/api/sprints/1/burn", `{"day":"2026-08-31"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var proj struct {
		Sprints []struct {
			KPIs struct {
				Burndown []map[string]any `json:"burndown"`
			} `json:"kpis"`
		} `json:"sprints"`
	}
	decodeBody(t, rec, &proj)
	require.Len(t, proj.Sprints, 1)
	require.Len(t, proj.Sprints[0].KPIs.Burndown, 1)
	assert.Equal(t, float64(8), proj.Sprints[0].KPIs.Burndown[0]["remaining"])
}

func TestSprintBurnRequiresDay(t *testing.T) {
	env := newServerEnv(t, config.Default())
	env.do(t, http.MethodPost, "/api/sprints", `{}`)

	rec := env.do(t, http.MethodPost, "/api/sprints/1/burn", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsSummary(t *testing.T) {
	env := newServerEnv(t, config.Default())
	env.do(t, http.MethodPatch, "/api/project",
		`{"estimates":{"s1":5,"s2":8,"s3":13},"team":[{"role":"dev","count":2}]}`)

	rec := env.do(t, http.MethodGet, "/api/metrics/summary", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	decodeBody(t, rec, &got)
	assert.Equal(t, float64(26), got["totalHours"])
	assert.Equal(t, float64(2), got["teamSize"])
	assert.Equal(t, float64(1), got["sprintsNeeded"])
}

func TestSprintCapacityEndpoint(t *testing.T) {
	env := newServerEnv(t, config.Default())
	env.do(t, http.MethodPost, "/api/sprints",
		`{"members":[{"name":"Dana","hours":40,"focus":50}],"tasks":[{"id":"t1","title":"build","status":"done","estimated":12}]}`)

	rec := env.do(t, http.MethodGet, "/api/sprints/1/capacity", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	decodeBody(t, rec, &got)
	assert.Equal(t, float64(20), got["capacityHours"])
	assert.Equal(t, float64(12), got["plannedHours"])
	assert.Equal(t, float64(12), got["completedHours"])
	assert.Equal(t, float64(0), got["remainingHours"])
}

func TestAssistEndpoint(t *testing.T) {
	env := newServerEnv(t, config.Default())

	rec := env.do(t, http.MethodPost, "/api/assist", `{"phase":"vision","input":""}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]string
	decodeBody(t, rec, &got)
	assert.NotEmpty(t, got["suggestion"])

	rec = env.do(t, http.MethodPost, "/api/assist", `{"phase":"nope","input":""}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStandupActions(t *testing.T) {
	env := newServerEnv(t, config.Default())

	rec := env.do(t, http.MethodGet, "/api/standup", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	decodeBody(t, rec, &got)
	assert.Equal(t, false, got["running"])
	assert.Equal(t, float64(15*60), got["remainingSeconds"])

	rec = env.do(t, http.MethodPost, "/api/standup/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &got)
	assert.Equal(t, true, got["running"])

	rec = env.do(t, http.MethodPost, "/api/standup/bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlertsDrainOnce(t *testing.T) {
	env := newServerEnv(t, config.Default())
	env.alerts.Push("could not save; local data is safe")

	rec := env.do(t, http.MethodGet, "/api/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string][]string
	decodeBody(t, rec, &got)
	require.Len(t, got["alerts"], 1)

	rec = env.do(t, http.MethodGet, "/api/alerts", "")
	decodeBody(t, rec, &got)
	assert.Empty(t, got["alerts"])
}

func TestBasicAuthEnforcedWhenConfigured(t *testing.T) {
	hash, err := auth.HashPassword("sekret")
	require.NoError(t, err)
	cfg := config.Default()
	cfg.WebPasswordHash = hash
	env := newServerEnv(t, cfg)

	rec := env.do(t, http.MethodGet, "/api/project", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/project", nil)
	req.SetBasicAuth("agileforge", "sekret")
	ok := httptest.NewRecorder()
	env.handler.ServeHTTP(ok, req)
	assert.Equal(t, http.StatusOK, ok.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/project", nil)
	req.SetBasicAuth("agileforge", "wrong")
	bad := httptest.NewRecorder()
	env.handler.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusUnauthorized, bad.Code)

	// Health stays open for probes.
	rec = env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
