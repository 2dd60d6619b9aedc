// Package store provides storage backends for CaseTrack.
//
// It includes an in-memory store used when no database is configured, and SQLite and PostgreSQL
// stores for persistent deployments. Every backend holds the tracked cases, their audit log and the
// notification outbox.
package store

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/CaseTrack/internal/models"
)

// Driver names understood by DetectDSNType.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// CaseNumberBase offsets the case sequence so generated receipt numbers look like USCIS receipts.
const CaseNumberBase = 2490000000

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType returns the database/sql driver name for dsn.
func DetectDSNType(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DriverPostgres
	}
	// key=value connection strings
	if strings.Contains(lower, "host=") || strings.Contains(lower, "dbname=") || strings.Contains(lower, "user=") {
		return DriverPostgres
	}
	return DriverSQLite
}

// CaseFilter selects a page of cases.
type CaseFilter struct {
	UserID string
	Offset int
	// Limit <= 0 returns every case after Offset.
	Limit int
}

// Store is the persistence boundary of the tracking service.
//
// Returned cases are copies; callers may modify them freely and persist changes through SaveCase.
type Store interface {
	// CreateCase inserts c with a generated case number (when empty) and version 1.
	// It fails with models.ErrCaseExists when the user already has a case.
	CreateCase(c *models.UserCaseTracker) (*models.UserCaseTracker, error)
	// GetCase returns the case of userID, or nil without error when there is none.
	GetCase(userID string) (*models.UserCaseTracker, error)
	// ListCases returns the selected page in creation order and the total number of matching cases.
	ListCases(f CaseFilter) ([]models.UserCaseTracker, int, error)
	// SaveCase replaces the stored case if its version still equals expectedVersion and returns the
	// saved copy with the bumped version. Stale writes fail with models.ErrVersionConflict.
	SaveCase(c *models.UserCaseTracker, expectedVersion int) (*models.UserCaseTracker, error)
	// ReplaceAllCases drops every case and audit record and stores cases instead.
	ReplaceAllCases(cases []models.UserCaseTracker) error

	// AddCaseUpdate appends an audit record.
	AddCaseUpdate(u models.CaseUpdate) error
	// ListCaseUpdates returns the newest audit records first. An empty caseID lists every case;
	// limit <= 0 means no limit.
	ListCaseUpdates(caseID string, limit int) ([]models.CaseUpdate, error)

	OutboxRepo

	Close() error
}

// Open returns the backend selected by dsn: in-memory when empty, otherwise SQLite or PostgreSQL
// according to DetectDSNType.
func Open(dsn string) (Store, error) {
	if dsn == "" {
		slog.Info("store.Open: no DSN configured, using in-memory store")
		return NewInMemoryStore(), nil
	}
	switch DetectDSNType(dsn) {
	case DriverPostgres:
		return NewPostgresStore(WithPostgresDSN(dsn))
	case DriverSQLite:
		return NewSQLiteStore(WithSQLiteDSN(dsn))
	default:
		return nil, fmt.Errorf("unsupported DSN %q", dsn)
	}
}

func formatCaseNumber(seq int64) string {
	return fmt.Sprintf("MSC%010d", CaseNumberBase+seq)
}
