package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/redtime/internal/model"
)

// defaultMutationLimit applies when a filter sets no limit.
const defaultMutationLimit = 50

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// An in-memory database lives per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// RecordMutation journals a call before it is attempted and returns its id.
func (s *SQLiteStore) RecordMutation(ctx context.Context, m model.Mutation) (string, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mutations (
			id, resource, operation, remote_id, payload,
			dry_run, status, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Resource, m.Operation, m.RemoteID, m.Payload,
		m.DryRun, m.Status, m.Error, m.CreatedAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("recording mutation: %w", err)
	}
	return m.ID, nil
}

// CompleteMutation stores the outcome of a journaled call.
func (s *SQLiteStore) CompleteMutation(ctx context.Context, id string, status int, errMsg string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE mutations SET status = ?, error = ?, completed_at = ?
		WHERE id = ?`,
		status, errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("completing mutation %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("mutation %s not found", id)
	}
	return nil
}

// GetMutation retrieves a single mutation by id. It returns nil, nil when
// no such mutation exists.
func (s *SQLiteStore) GetMutation(ctx context.Context, id string) (*model.Mutation, error) {
	var m model.Mutation
	err := s.db.GetContext(ctx, &m, "SELECT * FROM mutations WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting mutation %s: %w", id, err)
	}
	return &m, nil
}

// RecentMutations lists mutations newest first.
func (s *SQLiteStore) RecentMutations(ctx context.Context, filter MutationFilter) ([]model.Mutation, error) {
	var conditions []string
	var args []interface{}

	if filter.Resource != nil {
		conditions = append(conditions, "resource = ?")
		args = append(args, *filter.Resource)
	}
	if filter.Operation != nil {
		conditions = append(conditions, "operation = ?")
		args = append(args, *filter.Operation)
	}
	if filter.FailedOnly {
		conditions = append(conditions, "error != ''")
	}

	query := "SELECT * FROM mutations"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultMutationLimit
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var mutations []model.Mutation
	if err := s.db.SelectContext(ctx, &mutations, query, args...); err != nil {
		return nil, fmt.Errorf("querying mutations: %w", err)
	}
	return mutations, nil
}

// PruneMutations deletes all but the newest keep mutations and returns how
// many rows were removed.
func (s *SQLiteStore) PruneMutations(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM mutations WHERE id NOT IN (
			SELECT id FROM mutations ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning mutations: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}
