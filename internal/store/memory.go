package store

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/BTreeMap/CaseTrack/internal/models"
)

// Compile-time check that InMemoryStore implements Store.
var _ Store = (*InMemoryStore)(nil)

type memoryCase struct {
	seq  int64
	data *models.UserCaseTracker
}

// InMemoryStore is a mutex-guarded store that lives for the lifetime of the process.
type InMemoryStore struct {
	mu      sync.RWMutex
	seq     int64
	cases   map[string]*memoryCase
	updates []models.CaseUpdate
	outbox  []*OutboxMessage
}

// NewInMemoryStore creates an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{cases: make(map[string]*memoryCase)}
}

func (s *InMemoryStore) CreateCase(c *models.UserCaseTracker) (*models.UserCaseTracker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cases[c.UserID]; ok {
		return nil, fmt.Errorf("%w: %s", models.ErrCaseExists, c.UserID)
	}
	s.insertLocked(c)
	slog.Debug("InMemoryStore.CreateCase", "userID", c.UserID, "caseNumber", s.cases[c.UserID].data.CaseNumber)
	return s.cases[c.UserID].data.Clone(), nil
}

func (s *InMemoryStore) insertLocked(c *models.UserCaseTracker) {
	s.seq++
	stored := c.Clone()
	if stored.CaseNumber == "" {
		stored.CaseNumber = formatCaseNumber(s.seq)
	}
	stored.Version = 1
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = now
	}
	s.cases[c.UserID] = &memoryCase{seq: s.seq, data: stored}
}

func (s *InMemoryStore) GetCase(userID string) (*models.UserCaseTracker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mc, ok := s.cases[userID]
	if !ok {
		return nil, nil
	}
	return mc.data.Clone(), nil
}

func (s *InMemoryStore) ListCases(f CaseFilter) ([]models.UserCaseTracker, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*memoryCase, 0, len(s.cases))
	for _, mc := range s.cases {
		if f.UserID != "" && mc.data.UserID != f.UserID {
			continue
		}
		matched = append(matched, mc)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	total := len(matched)
	start := f.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := total
	if f.Limit > 0 && start+f.Limit < end {
		end = start + f.Limit
	}
	out := make([]models.UserCaseTracker, 0, end-start)
	for _, mc := range matched[start:end] {
		out = append(out, *mc.data.Clone())
	}
	return out, total, nil
}

func (s *InMemoryStore) SaveCase(c *models.UserCaseTracker, expectedVersion int) (*models.UserCaseTracker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mc, ok := s.cases[c.UserID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrCaseNotFound, c.UserID)
	}
	if mc.data.Version != expectedVersion {
		slog.Debug("InMemoryStore.SaveCase: version conflict", "userID", c.UserID, "expected", expectedVersion, "actual", mc.data.Version)
		return nil, fmt.Errorf("%w: %s at version %d", models.ErrVersionConflict, c.UserID, mc.data.Version)
	}
	stored := c.Clone()
	stored.Version = expectedVersion + 1
	if stored.CaseNumber == "" {
		stored.CaseNumber = mc.data.CaseNumber
	}
	stored.CreatedAt = mc.data.CreatedAt
	mc.data = stored
	return stored.Clone(), nil
}

func (s *InMemoryStore) ReplaceAllCases(cases []models.UserCaseTracker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases = make(map[string]*memoryCase, len(cases))
	s.updates = nil
	for i := range cases {
		s.insertLocked(&cases[i])
	}
	slog.Info("InMemoryStore.ReplaceAllCases", "count", len(cases))
	return nil
}

func (s *InMemoryStore) AddCaseUpdate(u models.CaseUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = newID()
	}
	s.updates = append(s.updates, u)
	return nil
}

func (s *InMemoryStore) ListCaseUpdates(caseID string, limit int) ([]models.CaseUpdate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.CaseUpdate
	for i := len(s.updates) - 1; i >= 0; i-- {
		if caseID != "" && s.updates[i].CaseID != caseID {
			continue
		}
		out = append(out, s.updates[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) EnqueueOutboxMessage(caseID, kind, payloadJSON, dedupeKey string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dedupeKey != "" {
		for _, m := range s.outbox {
			if m.DedupeKey == dedupeKey && m.Status != OutboxStatusSent && m.Status != OutboxStatusCanceled {
				slog.Debug("InMemoryStore.EnqueueOutboxMessage: dedupe hit", "dedupeKey", dedupeKey, "existingID", m.ID)
				return m.ID, nil
			}
		}
	}
	now := time.Now()
	m := &OutboxMessage{
		ID:          newID(),
		CaseID:      caseID,
		Kind:        kind,
		PayloadJSON: payloadJSON,
		Status:      OutboxStatusQueued,
		DedupeKey:   dedupeKey,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.outbox = append(s.outbox, m)
	return m.ID, nil
}

func (s *InMemoryStore) ClaimDueOutboxMessages(now time.Time, limit int) ([]OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var claimed []OutboxMessage
	for _, m := range s.outbox {
		if limit > 0 && len(claimed) == limit {
			break
		}
		if m.Status != OutboxStatusQueued || (m.NextAttemptAt != nil && m.NextAttemptAt.After(now)) {
			continue
		}
		locked := now
		m.Status = OutboxStatusSending
		m.LockedAt = &locked
		m.UpdatedAt = now
		claimed = append(claimed, *m)
	}
	return claimed, nil
}

func (s *InMemoryStore) MarkOutboxMessageSent(id string) error {
	return s.updateOutbox(id, func(m *OutboxMessage) {
		m.Status = OutboxStatusSent
	})
}

func (s *InMemoryStore) FailOutboxMessage(id string, errMsg string, nextAttemptAt time.Time) error {
	return s.updateOutbox(id, func(m *OutboxMessage) {
		next := nextAttemptAt
		m.Status = OutboxStatusQueued
		m.Attempts++
		m.LastError = errMsg
		m.NextAttemptAt = &next
		m.LockedAt = nil
	})
}

func (s *InMemoryStore) CancelOutboxMessage(id string) error {
	return s.updateOutbox(id, func(m *OutboxMessage) {
		m.Status = OutboxStatusCanceled
		m.LockedAt = nil
	})
}

func (s *InMemoryStore) RequeueStaleSendingMessages(staleBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.outbox {
		if m.Status == OutboxStatusSending && m.LockedAt != nil && m.LockedAt.Before(staleBefore) {
			m.Status = OutboxStatusQueued
			m.LockedAt = nil
			m.UpdatedAt = time.Now()
			n++
		}
	}
	if n > 0 {
		slog.Info("InMemoryStore.RequeueStaleSendingMessages", "requeued", n)
	}
	return n, nil
}

func (s *InMemoryStore) GetOutboxMessage(id string) (*OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.outbox {
		if m.ID == id {
			out := *m
			return &out, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) HasDeliveredOutboxMessage(dedupeKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.outbox {
		if m.DedupeKey == dedupeKey && m.Status == OutboxStatusSent {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) updateOutbox(id string, fn func(*OutboxMessage)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.outbox {
		if m.ID == id {
			fn(m)
			m.UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("outbox message %s not found", id)
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
