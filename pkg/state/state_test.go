package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agileforge/pkg/auth"
	"agileforge/pkg/cache"
	"agileforge/pkg/project"
	"agileforge/pkg/retry"
	"agileforge/pkg/store"
)

// fakeStore is a scripted in-memory remote store.
type fakeStore struct {
	mu         sync.Mutex
	rows       map[string]*store.Row
	nextID     int
	writeCalls int
	probeCalls int
	failWrites int // fail this many writes before succeeding; -1 fails forever
	failProbes int // fail this many probes before succeeding
	listErr    error
	deleteErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]*store.Row{}}
}

func (f *fakeStore) Probe(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probeCalls++
	if f.failProbes > 0 {
		f.failProbes--
		return errors.New("probe: connection refused")
	}
	return nil
}

func (f *fakeStore) failWrite() bool {
	if f.failWrites == -1 {
		return true
	}
	if f.failWrites > 0 {
		f.failWrites--
		return true
	}
	return false
}

func (f *fakeStore) Insert(_ context.Context, userID, name, data string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeCalls++
	if f.failWrite() {
		return "", errors.New("insert: network timeout")
	}
	f.nextID++
	id := fmt.Sprintf("remote-%d", f.nextID)
	now := time.Now().UTC()
	f.rows[id] = &store.Row{ID: id, UserID: userID, Name: name, Data: data, CreatedAt: now, UpdatedAt: now}
	return id, nil
}

func (f *fakeStore) Update(_ context.Context, id, name, data string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeCalls++
	if f.failWrite() {
		return errors.New("update: network timeout")
	}
	row, ok := f.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	row.Name = name
	row.Data = data
	row.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeStore) ListByUser(_ context.Context, userID string) ([]*store.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var rows []*store.Row
	for _, row := range f.rows {
		if row.UserID == userID {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func fastPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:   3,
		BaseDelay:     time.Millisecond,
		BackoffFactor: 2.0,
		AttemptBase:   time.Second,
	}
}

type managerEnv struct {
	manager *Manager
	store   *fakeStore
	cache   *cache.Store
	alerts  []string
}

func newEnv(t *testing.T) *managerEnv {
	t.Helper()
	env := &managerEnv{store: newFakeStore()}

	localCache, err := cache.NewStore(t.TempDir())
	require.NoError(t, err)
	env.cache = localCache

	env.manager = New(Config{
		Store:       env.store,
		Cache:       localCache,
		Auth:        auth.NewStaticProvider(auth.User{ID: "user-1", Name: "Ana"}),
		Alert:       func(msg string) { env.alerts = append(env.alerts, msg) },
		RetryPolicy: fastPolicy(),
		MirrorDelay: 10 * time.Millisecond,
	})
	t.Cleanup(env.manager.Close)
	return env
}

func named(name string) project.Patch {
	return project.Patch{Name: &name}
}

func TestSaveGuardUnnamed(t *testing.T) {
	env := newEnv(t)

	ok := env.manager.SaveProject(context.Background(), nil)
	assert.False(t, ok)
	assert.Zero(t, env.store.writeCalls, "guard failure must not reach the network")
	assert.Zero(t, env.store.probeCalls)
	assert.Empty(t, env.alerts, "guard failures are silent")
}

func TestSaveGuardNoUser(t *testing.T) {
	env := newEnv(t)
	provider := auth.NewSignedOutProvider()
	env.manager.authp = provider

	env.manager.UpdateProject(named("Orphan"))
	ok := env.manager.SaveProject(context.Background(), nil)
	assert.False(t, ok)
	assert.Zero(t, env.store.writeCalls)
}

func TestSaveInsertMergesAssignedID(t *testing.T) {
	env := newEnv(t)
	env.manager.UpdateProject(named("Fresh"))

	ok := env.manager.SaveProject(context.Background(), nil)
	require.True(t, ok)

	current := env.manager.Current()
	assert.True(t, current.ID.Persisted())
	assert.Equal(t, "remote-1", current.ID.String())

	// A second save becomes an update, not another insert.
	ok = env.manager.SaveProject(context.Background(), nil)
	require.True(t, ok)
	assert.Len(t, env.store.rows, 1)
}

func TestSaveRetriesThenSucceeds(t *testing.T) {
	env := newEnv(t)
	env.store.failWrites = 2
	env.manager.UpdateProject(named("Flaky"))

	ok := env.manager.SaveProject(context.Background(), nil)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, env.store.writeCalls, 3)
	assert.Empty(t, env.alerts)
}

func TestSaveExhaustsAndAlerts(t *testing.T) {
	env := newEnv(t)
	env.store.failWrites = -1
	env.manager.UpdateProject(named("Doomed"))

	ok := env.manager.SaveProject(context.Background(), nil)
	assert.False(t, ok)
	assert.Equal(t, 3, env.store.writeCalls, "exactly MaxAttempts writes")
	require.Len(t, env.alerts, 1)
	assert.Contains(t, env.alerts[0], "local data is safe")
}

func TestSaveProbeFailureCountsAsAttempt(t *testing.T) {
	env := newEnv(t)
	env.store.failProbes = 1
	env.manager.UpdateProject(named("Probed"))

	ok := env.manager.SaveProject(context.Background(), nil)
	assert.True(t, ok)
	// The first attempt died at the probe, so only one write happened.
	assert.Equal(t, 2, env.store.probeCalls)
	assert.Equal(t, 1, env.store.writeCalls)
}

func TestBackupWrittenBeforeSave(t *testing.T) {
	env := newEnv(t)
	env.manager.UpdateProject(named("Backed up"))

	require.True(t, env.manager.SaveProject(context.Background(), nil))

	backups, err := env.cache.ListBackups()
	require.NoError(t, err)
	assert.NotEmpty(t, backups)
}

func TestCreateNewProjectSavesNamedWork(t *testing.T) {
	env := newEnv(t)
	env.manager.UpdateProject(named("Unsaved work"))

	env.manager.CreateNewProject(context.Background())

	current := env.manager.Current()
	assert.Empty(t, current.Name)
	assert.False(t, current.ID.Persisted())
	assert.Empty(t, current.Sprints)
	assert.Len(t, env.store.rows, 1, "named work is saved before discard")

	cached, err := env.cache.LoadCurrent()
	require.NoError(t, err)
	assert.Nil(t, cached, "cache key cleared on reset")
}

func TestCreateNewProjectSkipsSaveWhenUnnamed(t *testing.T) {
	env := newEnv(t)
	env.manager.UpdateProject(project.Patch{Vision: strPtr("scratch ideas")})

	env.manager.CreateNewProject(context.Background())
	assert.Zero(t, env.store.writeCalls)
	assert.Empty(t, env.manager.Current().Vision)
}

func TestLoadProjectSavesCurrentFirst(t *testing.T) {
	env := newEnv(t)

	// Seed a remote project to load.
	seedPayload := `{"vision":"existing","sprints":[]}`
	id, err := env.store.Insert(context.Background(), "user-1", "Existing", seedPayload)
	require.NoError(t, err)
	_, err = env.manager.FetchProjects(context.Background())
	require.NoError(t, err)

	env.manager.UpdateProject(named("Work in progress"))
	require.NoError(t, env.manager.LoadProject(context.Background(), id))

	current := env.manager.Current()
	assert.Equal(t, "Existing", current.Name)
	assert.Equal(t, "existing", current.Vision)

	// The in-progress project was saved before being replaced.
	found := false
	for _, row := range env.store.rows {
		if row.Name == "Work in progress" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestLoadProjectUnknownID(t *testing.T) {
	env := newEnv(t)
	err := env.manager.LoadProject(context.Background(), "missing")
	assert.Error(t, err)
}

func TestDeleteCurrentProjectResetsState(t *testing.T) {
	env := newEnv(t)
	env.manager.UpdateProject(named("Current"))
	require.True(t, env.manager.SaveProject(context.Background(), nil))
	id := env.manager.Current().ID.String()

	env.manager.DeleteProject(context.Background(), id)

	current := env.manager.Current()
	assert.Empty(t, current.Name)
	assert.False(t, current.ID.Persisted())
	assert.Empty(t, env.store.rows)
}

func TestDeleteOtherProjectKeepsState(t *testing.T) {
	env := newEnv(t)
	otherID, err := env.store.Insert(context.Background(), "user-1", "Other", `{}`)
	require.NoError(t, err)

	env.manager.UpdateProject(named("Mine"))
	require.True(t, env.manager.SaveProject(context.Background(), nil))

	env.manager.DeleteProject(context.Background(), otherID)

	current := env.manager.Current()
	assert.Equal(t, "Mine", current.Name)
	assert.True(t, current.ID.Persisted())
}

func TestFetchProjectsMigratesLegacySprint(t *testing.T) {
	env := newEnv(t)
	legacyPayload := `{"sprint":{"goals":["old goal"]},"sprints":[]}`
	_, err := env.store.Insert(context.Background(), "user-1", "Legacy", legacyPayload)
	require.NoError(t, err)

	projects, err := env.manager.FetchProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 1)
	require.Len(t, projects[0].Sprints, 1)
	assert.Equal(t, "Sprint 1", projects[0].Sprints[0].Title)
	assert.Nil(t, projects[0].LegacySprint)
}

func TestFetchProjectsNoUser(t *testing.T) {
	env := newEnv(t)
	env.manager.authp = auth.NewSignedOutProvider()

	projects, err := env.manager.FetchProjects(context.Background())
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestUpdateProjectMirrorsToCache(t *testing.T) {
	env := newEnv(t)
	env.manager.UpdateProject(named("Mirrored"))

	// Synchronous write happens before the debounce fires.
	cached, err := env.cache.LoadCurrent()
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "Mirrored", cached.Name)

	// Let the debounced mirror fire too; the snapshot stays consistent.
	time.Sleep(30 * time.Millisecond)
	cached, err = env.cache.LoadCurrent()
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "Mirrored", cached.Name)
}

func TestManagerHydratesFromCache(t *testing.T) {
	dir := t.TempDir()
	localCache, err := cache.NewStore(dir)
	require.NoError(t, err)

	p := project.NewEmpty()
	p.Name = "Survivor"
	require.NoError(t, localCache.SaveCurrent(p))

	m := New(Config{
		Store:       newFakeStore(),
		Cache:       localCache,
		Auth:        auth.NewStaticProvider(auth.User{ID: "user-1"}),
		RetryPolicy: fastPolicy(),
	})
	defer m.Close()

	assert.Equal(t, "Survivor", m.Current().Name)
}

func strPtr(s string) *string { return &s }
