// Package cache provides the local durable cache: a stable current-project
// snapshot overwritten on every mirror, plus per-project timestamped backup
// files written before each save attempt.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"agileforge/pkg/project"
)

const currentFile = "PROJECT_current.json"

// Store manages the on-disk project snapshots.
type Store struct {
	baseDir string
}

// NewStore creates a cache store rooted at the given directory.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", baseDir, err)
	}
	return &Store{baseDir: baseDir}, nil
}

// SaveCurrent overwrites the current-project snapshot.
func (s *Store) SaveCurrent(p *project.Project) error {
	if p == nil {
		return fmt.Errorf("project cannot be nil")
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal project snapshot: %w", err)
	}

	path := filepath.Join(s.baseDir, currentFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write project snapshot: %w", err)
	}
	return nil
}

// LoadCurrent restores the current-project snapshot. Returns (nil, nil) when
// no snapshot exists. The restored project is normalized, which also runs the
// legacy sprint migration.
func (s *Store) LoadCurrent() (*project.Project, error) {
	path := filepath.Join(s.baseDir, currentFile)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read project snapshot: %w", err)
	}

	p := &project.Project{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal project snapshot: %w", err)
	}
	p.Normalize()
	return p, nil
}

// ClearCurrent removes the current-project snapshot. Backups are untouched.
func (s *Store) ClearCurrent() error {
	path := filepath.Join(s.baseDir, currentFile)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear project snapshot: %w", err)
	}
	return nil
}

// WriteBackup writes a timestamped safety copy of the project. Called before
// each remote save attempt; callers treat failure as best-effort.
func (s *Store) WriteBackup(p *project.Project, now time.Time) error {
	if p == nil {
		return fmt.Errorf("project cannot be nil")
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal backup: %w", err)
	}

	path := filepath.Join(s.baseDir, backupFilename(p, now))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

// ListBackups returns backup filenames for diagnostics, newest last.
func (s *Store) ListBackups() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), "BACKUP_") && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// backupFilename builds BACKUP_<key>_<unix-millis>.json, keyed by the remote
// id when persisted and the sanitized name otherwise.
func backupFilename(p *project.Project, now time.Time) string {
	key := p.ID.String()
	if key == "" {
		key = sanitizeKey(p.Name)
	}
	if key == "" {
		key = "unnamed"
	}
	return fmt.Sprintf("BACKUP_%s_%d.json", key, now.UnixMilli())
}

// sanitizeKey makes a project name safe for filesystem paths.
func sanitizeKey(name string) string {
	sanitized := strings.ReplaceAll(name, " ", "-")
	sanitized = strings.ReplaceAll(sanitized, "/", "-")
	sanitized = strings.ReplaceAll(sanitized, "\\", "-")
	sanitized = strings.ReplaceAll(sanitized, ":", "-")
	return sanitized
}
