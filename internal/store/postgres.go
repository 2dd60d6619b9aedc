// This file implements a PostgreSQL-backed store for cases and their audit log.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/CaseTrack/internal/models"
	"github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

//go:embed migrations_postgres.sql
var postgresMigrations string

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) CreateCase(c *models.UserCaseTracker) (*models.UserCaseTracker, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stored, err := postgresInsertCase(tx, c)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == "cases_pkey" {
			return nil, fmt.Errorf("%w: %s", models.ErrCaseExists, c.UserID)
		}
		slog.Error("PostgresStore.CreateCase failed", "error", err, "userID", c.UserID)
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit case %s: %w", c.UserID, err)
	}
	slog.Debug("PostgresStore.CreateCase succeeded", "userID", stored.UserID, "caseNumber", stored.CaseNumber)
	return stored, nil
}

func postgresInsertCase(tx *sql.Tx, c *models.UserCaseTracker) (*models.UserCaseTracker, error) {
	var seq int64
	if err := tx.QueryRow(`SELECT nextval('case_seq')`).Scan(&seq); err != nil {
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
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		stored.UserID, seq, stored.CaseNumber, stored.Version, stored.CurrentStageID, data, stored.CreatedAt, stored.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *PostgresStore) GetCase(userID string) (*models.UserCaseTracker, error) {
	c, err := scanCase(s.db.QueryRow(`SELECT data, case_number, version FROM cases WHERE user_id = $1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("PostgresStore.GetCase not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore.GetCase failed", "error", err, "userID", userID)
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) ListCases(f CaseFilter) ([]models.UserCaseTracker, int, error) {
	where := ""
	args := []interface{}{}
	if f.UserID != "" {
		where = ` WHERE user_id = $1`
		args = append(args, f.UserID)
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM cases`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count cases: %w", err)
	}

	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	query := `SELECT data, case_number, version FROM cases` + where + ` ORDER BY seq ASC`
	args = append(args, offset)
	query += fmt.Sprintf(` OFFSET $%d`, len(args))
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore.ListCases query failed", "error", err)
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

func (s *PostgresStore) SaveCase(c *models.UserCaseTracker, expectedVersion int) (*models.UserCaseTracker, error) {
	stored := c.Clone()
	stored.Version = expectedVersion + 1
	data, err := encodeCase(stored)
	if err != nil {
		return nil, err
	}
	saved, err := scanCase(s.db.QueryRow(
		`UPDATE cases SET data = $1, version = $2, case_number = COALESCE($3, case_number), current_stage_id = $4, updated_at = $5
		 WHERE user_id = $6 AND version = $7
		 RETURNING data, case_number, version`,
		data, stored.Version, nilIfEmpty(stored.CaseNumber), stored.CurrentStageID, stored.UpdatedAt, stored.UserID, expectedVersion,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.saveMiss(c.UserID, expectedVersion)
	}
	if err != nil {
		slog.Error("PostgresStore.SaveCase failed", "error", err, "userID", c.UserID)
		return nil, fmt.Errorf("failed to save case %s: %w", c.UserID, err)
	}
	return saved, nil
}

func (s *PostgresStore) saveMiss(userID string, expectedVersion int) error {
	var version int
	err := s.db.QueryRow(`SELECT version FROM cases WHERE user_id = $1`, userID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", models.ErrCaseNotFound, userID)
	}
	if err != nil {
		return err
	}
	slog.Debug("PostgresStore.SaveCase: version conflict", "userID", userID, "expected", expectedVersion, "actual", version)
	return fmt.Errorf("%w: %s at version %d", models.ErrVersionConflict, userID, version)
}

func (s *PostgresStore) ReplaceAllCases(cases []models.UserCaseTracker) error {
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
		if _, err := postgresInsertCase(tx, &cases[i]); err != nil {
			return fmt.Errorf("failed to insert case %s: %w", cases[i].UserID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit case replacement: %w", err)
	}
	slog.Info("PostgresStore.ReplaceAllCases", "count", len(cases))
	return nil
}

func (s *PostgresStore) AddCaseUpdate(u models.CaseUpdate) error {
	if u.ID == "" {
		u.ID = newID()
	}
	data, err := encodeUpdateData(u)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO case_updates (id, case_id, stage_id, action, data, admin_user_id, timestamp) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.CaseID, u.StageID, u.Action, data, u.AdminUserID, u.Timestamp,
	)
	if err != nil {
		slog.Error("PostgresStore.AddCaseUpdate failed", "error", err, "caseID", u.CaseID)
		return fmt.Errorf("failed to insert case update for %s: %w", u.CaseID, err)
	}
	return nil
}

func (s *PostgresStore) ListCaseUpdates(caseID string, limit int) ([]models.CaseUpdate, error) {
	query := `SELECT id, case_id, stage_id, action, data, admin_user_id, timestamp FROM case_updates`
	args := []interface{}{}
	if caseID != "" {
		args = append(args, caseID)
		query += ` WHERE case_id = $1`
	}
	query += ` ORDER BY timestamp DESC, seq DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore.ListCaseUpdates query failed", "error", err)
		return nil, fmt.Errorf("failed to query case updates: %w", err)
	}
	return scanCaseUpdates(rows)
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
