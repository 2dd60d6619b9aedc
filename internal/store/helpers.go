package store

import (
	"database/sql"
	"fmt"

	"github.com/BTreeMap/CaseTrack/internal/models"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

func newID() string {
	return uuid.NewString()
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const outboxColumns = `id, case_id, kind, payload_json, status, attempts, next_attempt_at, dedupe_key, locked_at, last_error, created_at, updated_at`

// scanOutboxMessage scans an OutboxMessage selected with outboxColumns.
func scanOutboxMessage(row rowScanner) (OutboxMessage, error) {
	var m OutboxMessage
	var payloadJSON, dedupeKey, lastError sql.NullString
	var nextAttemptAt, lockedAt sql.NullTime
	err := row.Scan(
		&m.ID, &m.CaseID, &m.Kind, &payloadJSON, &m.Status, &m.Attempts,
		&nextAttemptAt, &dedupeKey, &lockedAt, &lastError, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return m, fmt.Errorf("scan outbox message failed: %w", err)
	}
	m.PayloadJSON = payloadJSON.String
	m.DedupeKey = dedupeKey.String
	m.LastError = lastError.String
	if nextAttemptAt.Valid {
		m.NextAttemptAt = &nextAttemptAt.Time
	}
	if lockedAt.Valid {
		m.LockedAt = &lockedAt.Time
	}
	return m, nil
}

func collectOutboxMessages(rows *sql.Rows) ([]OutboxMessage, error) {
	defer rows.Close()
	var msgs []OutboxMessage
	for rows.Next() {
		m, err := scanOutboxMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox iteration failed: %w", err)
	}
	return msgs, nil
}

// scanCase decodes a case document and overlays the columns the database owns.
func scanCase(row rowScanner) (*models.UserCaseTracker, error) {
	var data string
	var caseNumber string
	var version int
	if err := row.Scan(&data, &caseNumber, &version); err != nil {
		return nil, err
	}
	var c models.UserCaseTracker
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("failed to decode case document: %w", err)
	}
	c.CaseNumber = caseNumber
	c.Version = version
	return &c, nil
}

func encodeCase(c *models.UserCaseTracker) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode case %s: %w", c.UserID, err)
	}
	return string(data), nil
}

func encodeUpdateData(u models.CaseUpdate) (interface{}, error) {
	if len(u.Data) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(u.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode update data: %w", err)
	}
	return string(data), nil
}

func scanCaseUpdates(rows *sql.Rows) ([]models.CaseUpdate, error) {
	defer rows.Close()
	var out []models.CaseUpdate
	for rows.Next() {
		var u models.CaseUpdate
		var data sql.NullString
		if err := rows.Scan(&u.ID, &u.CaseID, &u.StageID, &u.Action, &data, &u.AdminUserID, &u.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan case update row: %w", err)
		}
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &u.Data); err != nil {
				return nil, fmt.Errorf("failed to decode case update data: %w", err)
			}
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate case update rows: %w", err)
	}
	return out, nil
}
