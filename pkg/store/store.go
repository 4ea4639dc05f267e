package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"agileforge/pkg/logx"
)

// ErrNotFound is returned when a project row does not exist.
var ErrNotFound = errors.New("project not found")

// Row is one persisted project document. Data holds the project JSON minus
// id, name and created_at, which live on the row.
type Row struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Data      string    `json:"data"`
}

// Store wraps the SQLite connection for project document operations.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
}

// Open opens (or creates) the database at dbPath and brings the schema to the
// current version. SQLite supports a single writer, so the pool is capped.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000",
		dbPath,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initializeSchemaWithMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)

	logger := logx.NewLogger("store")
	logger.Info("Database initialized: %s", dbPath)

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Probe issues a minimal read to verify the store is reachable. The save
// protocol calls this before attempting a write.
func (s *Store) Probe(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("store probe failed: %w", err)
	}
	return nil
}

// Insert creates a new project row and returns the assigned identifier.
func (s *Store) Insert(ctx context.Context, userID, name, data string) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	query := `
		INSERT INTO projects (id, user_id, name, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query, id, userID, name, data, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to insert project %q: %w", name, err)
	}
	return id, nil
}

// Update replaces the name and data of an existing project row.
func (s *Store) Update(ctx context.Context, id, name, data string) error {
	query := `
		UPDATE projects SET name = ?, data = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, name, data, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update project %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("update project %s: %w", id, ErrNotFound)
	}
	return nil
}

// Delete removes a project row by id. Deleting a missing row is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}
	return nil
}

// GetByID returns a single project row.
func (s *Store) GetByID(ctx context.Context, id string) (*Row, error) {
	query := `
		SELECT id, user_id, name, data, created_at, updated_at
		FROM projects WHERE id = ?
	`
	row := &Row{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&row.ID, &row.UserID, &row.Name, &row.Data, &row.CreatedAt, &row.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", id, err)
	}
	return row, nil
}

// ListByUser returns all projects owned by the user, most recently updated
// first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]*Row, error) {
	query := `
		SELECT id, user_id, name, data, created_at, updated_at
		FROM projects
		WHERE user_id = ?
		ORDER BY updated_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects for user %s: %w", userID, err)
	}
	defer func() {
		_ = rows.Close() // Ignore error - operation should not fail due to close error
	}()

	var result []*Row
	for rows.Next() {
		row := &Row{}
		err := rows.Scan(&row.ID, &row.UserID, &row.Name, &row.Data, &row.CreatedAt, &row.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return result, nil
}
