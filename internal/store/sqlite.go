// This file implements an SQLite-backed store for cases and their audit log.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/BTreeMap/CaseTrack/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// SQLite allows a single writer; serializing connections avoids SQLITE_BUSY under the CAS loop.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully", "dsn", dsn)

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateCase(c *models.UserCaseTracker) (*models.UserCaseTracker, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRow(`SELECT 1 FROM cases WHERE user_id = ?`, c.UserID).Scan(&exists)
	if err == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrCaseExists, c.UserID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("case existence check failed: %w", err)
	}

	stored, err := sqliteInsertCase(tx, c)
	if err != nil {
		slog.Error("SQLiteStore.CreateCase failed", "error", err, "userID", c.UserID)
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit case %s: %w", c.UserID, err)
	}
	slog.Debug("SQLiteStore.CreateCase succeeded", "userID", stored.UserID, "caseNumber", stored.CaseNumber)
	return stored, nil
}

func sqliteInsertCase(tx *sql.Tx, c *models.UserCaseTracker) (*models.UserCaseTracker, error) {
	var seq int64
	if err := tx.QueryRow(`SELECT COALESCE(MAX(seq), 0) + 1 FROM cases`).Scan(&seq); err != nil {
		return nil, fmt.Errorf("failed to allocate case sequence: %w", err)
	}
	stored := c.Clone()
	if stored.CaseNumber == "" {
		stored.CaseNumber = formatCaseNumber(seq)
	}
	stored.Version = 1
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = now
	}
	data, err := encodeCase(stored)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(
		`INSERT INTO cases (user_id, seq, case_number, version, current_stage_id, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.UserID, seq, stored.CaseNumber, stored.Version, stored.CurrentStageID, data, stored.CreatedAt, stored.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert case %s: %w", stored.UserID, err)
	}
	return stored, nil
}

func (s *SQLiteStore) GetCase(userID string) (*models.UserCaseTracker, error) {
	c, err := scanCase(s.db.QueryRow(`SELECT data, case_number, version FROM cases WHERE user_id = ?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("SQLiteStore.GetCase not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore.GetCase failed", "error", err, "userID", userID)
		return nil, err
	}
	return c, nil
}

func (s *SQLiteStore) ListCases(f CaseFilter) ([]models.UserCaseTracker, int, error) {
	where := ""
	args := []interface{}{}
	if f.UserID != "" {
		where = ` WHERE user_id = ?`
		args = append(args, f.UserID)
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM cases`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count cases: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.Query(`SELECT data, case_number, version FROM cases`+where+` ORDER BY seq ASC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		slog.Error("SQLiteStore.ListCases query failed", "error", err)
		return nil, 0, fmt.Errorf("failed to query cases: %w", err)
	}
	defer rows.Close()

	out := []models.UserCaseTracker{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate case rows: %w", err)
	}
	return out, total, nil
}

func (s *SQLiteStore) SaveCase(c *models.UserCaseTracker, expectedVersion int) (*models.UserCaseTracker, error) {
	stored := c.Clone()
	stored.Version = expectedVersion + 1
	data, err := encodeCase(stored)
	if err != nil {
		return nil, err
	}
	res, err := s.db.Exec(
		`UPDATE cases SET data = ?, version = ?, case_number = COALESCE(?, case_number), current_stage_id = ?, updated_at = ?
		 WHERE user_id = ? AND version = ?`,
		data, stored.Version, nilIfEmpty(stored.CaseNumber), stored.CurrentStageID, stored.UpdatedAt, stored.UserID, expectedVersion,
	)
	if err != nil {
		slog.Error("SQLiteStore.SaveCase failed", "error", err, "userID", c.UserID)
		return nil, fmt.Errorf("failed to save case %s: %w", c.UserID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, s.saveMiss(c.UserID, expectedVersion)
	}
	return s.GetCase(c.UserID)
}

// saveMiss explains why a conditional update touched no rows.
func (s *SQLiteStore) saveMiss(userID string, expectedVersion int) error {
	var version int
	err := s.db.QueryRow(`SELECT version FROM cases WHERE user_id = ?`, userID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", models.ErrCaseNotFound, userID)
	}
	if err != nil {
		return err
	}
	slog.Debug("SQLiteStore.SaveCase: version conflict", "userID", userID, "expected", expectedVersion, "actual", version)
	return fmt.Errorf("%w: %s at version %d", models.ErrVersionConflict, userID, version)
}

func (s *SQLiteStore) ReplaceAllCases(cases []models.UserCaseTracker) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM case_updates`); err != nil {
		return fmt.Errorf("failed to clear case updates: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM cases`); err != nil {
		return fmt.Errorf("failed to clear cases: %w", err)
	}
	for i := range cases {
		if _, err := sqliteInsertCase(tx, &cases[i]); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit case replacement: %w", err)
	}
	slog.Info("SQLiteStore.ReplaceAllCases", "count", len(cases))
	return nil
}

func (s *SQLiteStore) AddCaseUpdate(u models.CaseUpdate) error {
	if u.ID == "" {
		u.ID = newID()
	}
	data, err := encodeUpdateData(u)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO case_updates (id, case_id, stage_id, action, data, admin_user_id, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.CaseID, u.StageID, u.Action, data, u.AdminUserID, u.Timestamp,
	)
	if err != nil {
		slog.Error("SQLiteStore.AddCaseUpdate failed", "error", err, "caseID", u.CaseID)
		return fmt.Errorf("failed to insert case update for %s: %w", u.CaseID, err)
	}
	return nil
}

func (s *SQLiteStore) ListCaseUpdates(caseID string, limit int) ([]models.CaseUpdate, error) {
	query := `SELECT id, case_id, stage_id, action, data, admin_user_id, timestamp FROM case_updates`
	args := []interface{}{}
	if caseID != "" {
		query += ` WHERE case_id = ?`
		args = append(args, caseID)
	}
	query += ` ORDER BY timestamp DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore.ListCaseUpdates query failed", "error", err)
		return nil, fmt.Errorf("failed to query case updates: %w", err)
	}
	return scanCaseUpdates(rows)
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
