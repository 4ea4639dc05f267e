// Package state holds the in-memory current project and the user's saved
// project list, and orchestrates the save protocol: guard, local backup,
// bounded retry with growing per-attempt timeouts, and id merge-back.
//
// The container is constructed at app start and torn down on shutdown; all
// project mutation flows through it.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"agileforge/pkg/auth"
	"agileforge/pkg/logx"
	"agileforge/pkg/project"
	"agileforge/pkg/retry"
	"agileforge/pkg/store"
)

// RemoteStore is the remote document store surface the container needs.
// *store.Store satisfies it; tests inject scripted fakes.
type RemoteStore interface {
	Probe(ctx context.Context) error
	Insert(ctx context.Context, userID, name, data string) (string, error)
	Update(ctx context.Context, id, name, data string) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]*store.Row, error)
}

// LocalCache is the local durable cache surface the container needs.
type LocalCache interface {
	SaveCurrent(p *project.Project) error
	LoadCurrent() (*project.Project, error)
	ClearCurrent() error
	WriteBackup(p *project.Project, now time.Time) error
}

// AlertFunc surfaces a blocking user-facing message. Only the
// exhausted-retry save path uses it.
type AlertFunc func(message string)

// DefaultMirrorDelay is the quiet period before the debounced cache mirror
// fires.
const DefaultMirrorDelay = 800 * time.Millisecond

// Config assembles the container's collaborators.
type Config struct {
	Store       RemoteStore
	Cache       LocalCache
	Auth        auth.Provider
	Alert       AlertFunc
	RetryPolicy retry.Policy
	MirrorDelay time.Duration
}

// Manager is the project state container.
type Manager struct {
	mu      sync.Mutex
	current *project.Project
	saved   []*project.Project

	store  RemoteStore
	cache  LocalCache
	authp  auth.Provider
	alert  AlertFunc
	policy retry.Policy
	logger *logx.Logger

	mirrorDelay time.Duration
	mirrorTimer *time.Timer
	closed      bool
}

// New constructs the container and hydrates the current project from the
// local cache. A missing or unreadable snapshot yields the canonical empty
// project.
func New(cfg Config) *Manager {
	m := &Manager{
		store:       cfg.Store,
		cache:       cfg.Cache,
		authp:       cfg.Auth,
		alert:       cfg.Alert,
		policy:      cfg.RetryPolicy,
		logger:      logx.NewLogger("state"),
		mirrorDelay: cfg.MirrorDelay,
	}
	if m.policy.MaxAttempts == 0 {
		m.policy = retry.DefaultPolicy
	}
	if m.mirrorDelay == 0 {
		m.mirrorDelay = DefaultMirrorDelay
	}
	if m.alert == nil {
		m.alert = func(string) {}
	}

	m.current = project.NewEmpty()
	if m.cache != nil {
		if cached, err := m.cache.LoadCurrent(); err != nil {
			m.logger.Warn("Failed to restore cached project: %v", err)
		} else if cached != nil {
			m.current = cached
			m.logger.Info("Restored cached project %q", cached.Name)
		}
	}

	return m
}

// Close flushes the pending mirror write and stops the timer.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	if m.mirrorTimer != nil {
		m.mirrorTimer.Stop()
		m.mirrorTimer = nil
	}
	m.mirrorToCacheLocked()
}

// Current returns a deep copy of the in-memory project.
func (m *Manager) Current() *project.Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Clone()
}

// SavedProjects returns deep copies of the fetched project list.
func (m *Manager) SavedProjects() []*project.Project {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*project.Project, 0, len(m.saved))
	for _, p := range m.saved {
		result = append(result, p.Clone())
	}
	return result
}

// UpdateProject merges the patch into the in-memory project, writes the
// merged result to the cache synchronously, and schedules the debounced
// mirror. This operation cannot fail; cache errors are logged.
func (m *Manager) UpdateProject(patch project.Patch) {
	m.mu.Lock()
	defer m.mu.Unlock()

	patch.Apply(m.current)
	m.current.Normalize()

	if m.cache != nil {
		if err := m.cache.SaveCurrent(m.current); err != nil {
			m.logger.Warn("Failed to write project snapshot: %v", err)
		}
	}
	m.scheduleMirrorLocked()
}

// scheduleMirrorLocked arms (or re-arms) the debounced cache mirror. Classic
// debounce: only the latest pending write survives.
func (m *Manager) scheduleMirrorLocked() {
	if m.closed || m.cache == nil {
		return
	}
	if m.mirrorTimer != nil {
		m.mirrorTimer.Stop()
	}
	m.mirrorTimer = time.AfterFunc(m.mirrorDelay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed {
			return
		}
		m.mirrorToCacheLocked()
	})
}

func (m *Manager) mirrorToCacheLocked() {
	if m.cache == nil {
		return
	}
	if err := m.cache.SaveCurrent(m.current); err != nil {
		m.logger.Warn("Cache mirror write failed: %v", err)
		return
	}
	mirrorWritesTotal.Inc()
}

// SaveProject persists the current (or supplied) project to the remote
// store. Returns true on success. All failures are absorbed here: after
// retries are exhausted the alert callback fires and false is returned.
func (m *Manager) SaveProject(ctx context.Context, override *project.Project) bool {
	m.mu.Lock()
	var p *project.Project
	if override != nil {
		p = override.Clone()
	} else {
		p = m.current.Clone()
	}
	m.mu.Unlock()

	// Guard: unnamed projects are never written to the remote store, and a
	// missing user means no network I/O at all.
	user, ok := m.authp.CurrentUser()
	if !p.Savable() || !ok {
		m.logger.Debug("Save skipped: savable=%v signed_in=%v", p.Savable(), ok)
		return false
	}

	// Safety backup before any network I/O. Best-effort: a failed backup
	// never blocks the save.
	if m.cache != nil {
		if err := m.cache.WriteBackup(p, time.Now()); err != nil {
			m.logger.Warn("Backup write failed (continuing): %v", err)
		}
	}

	payload, err := encodePayload(p)
	if err != nil {
		m.logger.Error("Failed to encode project payload: %v", err)
		return false
	}

	var insertedID string
	saveErr := retry.Do(ctx, m.policy, func(actx context.Context) error {
		// Connectivity probe: fail the attempt fast on obviously broken
		// connectivity before the more expensive write.
		if probeErr := m.store.Probe(actx); probeErr != nil {
			saveAttemptsTotal.WithLabelValues("probe_failed").Inc()
			return probeErr
		}

		if p.ID.Persisted() {
			if updateErr := m.store.Update(actx, p.ID.String(), p.Name, payload); updateErr != nil {
				saveAttemptsTotal.WithLabelValues("write_failed").Inc()
				return updateErr
			}
		} else {
			id, insertErr := m.store.Insert(actx, user.ID, p.Name, payload)
			if insertErr != nil {
				saveAttemptsTotal.WithLabelValues("write_failed").Inc()
				return insertErr
			}
			insertedID = id
		}

		saveAttemptsTotal.WithLabelValues("success").Inc()
		return nil
	})

	if saveErr != nil {
		savesExhaustedTotal.Inc()
		m.logger.Error("Save failed after %d attempts: %v", m.policy.MaxAttempts, saveErr)
		m.alert(fmt.Sprintf(
			"Saving to the remote store failed after %d attempts. Your local data is safe.",
			m.policy.MaxAttempts,
		))
		return false
	}

	// Merge the remote-assigned id back into in-memory state after a first
	// insert, so later saves become updates.
	if insertedID != "" {
		m.mu.Lock()
		if !m.current.ID.Persisted() && m.current.Name == p.Name {
			m.current.ID = project.PersistedID(insertedID)
			if m.cache != nil {
				if cacheErr := m.cache.SaveCurrent(m.current); cacheErr != nil {
					m.logger.Warn("Failed to mirror assigned id: %v", cacheErr)
				}
			}
		}
		m.mu.Unlock()
	}

	m.logger.Info("Saved project %q", p.Name)
	return true
}

// CreateNewProject resets to the canonical empty project. A named in-memory
// project is saved first so unsaved work is never silently dropped.
func (m *Manager) CreateNewProject(ctx context.Context) {
	if m.Current().Savable() {
		m.SaveProject(ctx, nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = project.NewEmpty()
	if m.cache != nil {
		if err := m.cache.ClearCurrent(); err != nil {
			m.logger.Warn("Failed to clear cached project: %v", err)
		}
	}
}

// LoadProject replaces the in-memory project with the identified one from
// the fetched list. The current project is saved first when it is named and
// different from the target.
func (m *Manager) LoadProject(ctx context.Context, id string) error {
	current := m.Current()
	if current.Savable() && current.ID.String() != id {
		m.SaveProject(ctx, nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var target *project.Project
	for _, p := range m.saved {
		if p.ID.String() == id {
			target = p
			break
		}
	}
	if target == nil {
		return fmt.Errorf("project %s not found in saved list", id)
	}

	loaded := target.Clone() // Clone normalizes, which runs the migration
	m.current = loaded
	if m.cache != nil {
		if err := m.cache.SaveCurrent(m.current); err != nil {
			m.logger.Warn("Failed to mirror loaded project: %v", err)
		}
	}
	return nil
}

// DeleteProject removes the project remotely and refreshes the saved list.
// In-memory state resets only when the deleted id is the loaded project's.
// Delete and refresh failures are logged, never alerted.
func (m *Manager) DeleteProject(ctx context.Context, id string) {
	if err := m.store.Delete(ctx, id); err != nil {
		m.logger.Error("Failed to delete project %s: %v", id, err)
		return
	}

	if _, err := m.FetchProjects(ctx); err != nil {
		m.logger.Warn("Failed to refresh project list after delete: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.ID.Persisted() && m.current.ID.String() == id {
		m.current = project.NewEmpty()
		if m.cache != nil {
			if err := m.cache.ClearCurrent(); err != nil {
				m.logger.Warn("Failed to clear cached project: %v", err)
			}
		}
	}
}

// FetchProjects lists the user's projects, most recently updated first, and
// normalizes each before exposing it. No user means an empty list and no
// network call.
func (m *Manager) FetchProjects(ctx context.Context) ([]*project.Project, error) {
	user, ok := m.authp.CurrentUser()
	if !ok {
		m.mu.Lock()
		m.saved = nil
		m.mu.Unlock()
		return nil, nil
	}

	rows, err := m.store.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, logx.Wrap(err, "fetch projects")
	}

	projects := make([]*project.Project, 0, len(rows))
	for _, row := range rows {
		p, decodeErr := decodeRow(row)
		if decodeErr != nil {
			m.logger.Warn("Skipping undecodable project %s: %v", row.ID, decodeErr)
			continue
		}
		projects = append(projects, p)
	}

	m.mu.Lock()
	m.saved = projects
	m.mu.Unlock()

	return m.SavedProjects(), nil
}

// encodePayload serializes a project minus the fields carried on the row
// itself: id, name and created_at.
func encodePayload(p *project.Project) (string, error) {
	payload := p.Clone()
	payload.ID = project.ID{}
	payload.Name = ""
	payload.CreatedAt = time.Time{}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal project payload: %w", err)
	}
	return string(data), nil
}

// decodeRow rebuilds a project from a store row and normalizes it, which
// also folds any legacy single-sprint object.
func decodeRow(row *store.Row) (*project.Project, error) {
	p := &project.Project{}
	if err := json.Unmarshal([]byte(row.Data), p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal project data: %w", err)
	}
	p.ID = project.PersistedID(row.ID)
	p.Name = row.Name
	p.CreatedAt = row.CreatedAt
	p.UpdatedAt = row.UpdatedAt
	p.Normalize()
	return p, nil
}
