package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestOutboxRepo_EnqueueAndClaim(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)

			id, err := s.EnqueueOutboxMessage("user1", OutboxKindStageCompleted, `{"stage_id":3}`, "")
			if err != nil {
				t.Fatalf("EnqueueOutboxMessage failed: %v", err)
			}
			if id == "" {
				t.Fatal("EnqueueOutboxMessage returned empty ID")
			}

			msgs, err := s.ClaimDueOutboxMessages(time.Now(), 10)
			if err != nil {
				t.Fatalf("ClaimDueOutboxMessages failed: %v", err)
			}
			if len(msgs) != 1 {
				t.Fatalf("Expected 1 message, got %d", len(msgs))
			}
			if msgs[0].CaseID != "user1" || msgs[0].Kind != OutboxKindStageCompleted {
				t.Errorf("unexpected message: %+v", msgs[0])
			}
			if msgs[0].Status != OutboxStatusSending {
				t.Errorf("Expected status 'sending', got %q", msgs[0].Status)
			}

			again, _ := s.ClaimDueOutboxMessages(time.Now(), 10)
			if len(again) != 0 {
				t.Errorf("claimed message was claimed twice")
			}
		})
	}
}

func TestOutboxRepo_DedupeKey(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			id1, _ := s.EnqueueOutboxMessage("user1", OutboxKindReminder, `{}`, "reminder:user1:6:2025-03-01")
			id2, _ := s.EnqueueOutboxMessage("user1", OutboxKindReminder, `{}`, "reminder:user1:6:2025-03-01")
			if id1 != id2 {
				t.Errorf("Expected dedupe to return same ID, got %s and %s", id1, id2)
			}

			if delivered, _ := s.HasDeliveredOutboxMessage("reminder:user1:6:2025-03-01"); delivered {
				t.Error("queued message reported as delivered")
			}

			// A delivered message no longer blocks its key.
			if err := s.MarkOutboxMessageSent(id1); err != nil {
				t.Fatalf("MarkOutboxMessageSent failed: %v", err)
			}
			delivered, err := s.HasDeliveredOutboxMessage("reminder:user1:6:2025-03-01")
			if err != nil || !delivered {
				t.Errorf("expected delivered key, got %v (%v)", delivered, err)
			}
			id3, _ := s.EnqueueOutboxMessage("user1", OutboxKindReminder, `{}`, "reminder:user1:6:2025-03-01")
			if id3 == id1 {
				t.Error("Expected a new message after the first was sent")
			}
		})
	}
}

func TestOutboxRepo_FailCancelAndRequeue(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			id, _ := s.EnqueueOutboxMessage("user1", OutboxKindStageCompleted, `{}`, "")
			now := time.Now()
			s.ClaimDueOutboxMessages(now, 10)

			next := now.Add(time.Hour)
			if err := s.FailOutboxMessage(id, "twilio down", next); err != nil {
				t.Fatalf("FailOutboxMessage failed: %v", err)
			}
			m, err := s.GetOutboxMessage(id)
			if err != nil || m == nil {
				t.Fatalf("GetOutboxMessage failed: %v", err)
			}
			if m.Status != OutboxStatusQueued || m.Attempts != 1 || m.LastError != "twilio down" {
				t.Errorf("unexpected message after failure: %+v", m)
			}
			if due, _ := s.ClaimDueOutboxMessages(now, 10); len(due) != 0 {
				t.Error("message claimed before its retry time")
			}

			due, _ := s.ClaimDueOutboxMessages(next.Add(time.Second), 10)
			if len(due) != 1 {
				t.Fatalf("expected retry to be claimable, got %d", len(due))
			}
			n, err := s.RequeueStaleSendingMessages(next.Add(time.Minute))
			if err != nil || n != 1 {
				t.Errorf("expected 1 stale message requeued, got %d (%v)", n, err)
			}

			if err := s.CancelOutboxMessage(id); err != nil {
				t.Fatalf("CancelOutboxMessage failed: %v", err)
			}
			m, _ = s.GetOutboxMessage(id)
			if m.Status != OutboxStatusCanceled {
				t.Errorf("expected canceled, got %s", m.Status)
			}

			missing, err := s.GetOutboxMessage("nope")
			if err != nil || missing != nil {
				t.Errorf("expected (nil, nil) for unknown id, got (%v, %v)", missing, err)
			}
		})
	}
}

func TestOutboxSender_Poll(t *testing.T) {
	s := NewInMemoryStore()
	okID, _ := s.EnqueueOutboxMessage("ok", OutboxKindStageCompleted, `{}`, "")
	flakyID, _ := s.EnqueueOutboxMessage("flaky", OutboxKindStageCompleted, `{}`, "")
	deadID, _ := s.EnqueueOutboxMessage("dead", OutboxKindStageCompleted, `{}`, "")

	sender := NewOutboxSender(s, func(ctx context.Context, msg OutboxMessage) error {
		switch msg.CaseID {
		case "flaky":
			return errors.New("temporary")
		case "dead":
			return fmt.Errorf("no phone: %w", ErrPermanent)
		}
		return nil
	}, time.Second)
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	sender.now = func() time.Time { return now }

	if n := sender.Poll(context.Background()); n != 3 {
		t.Fatalf("expected 3 claimed messages, got %d", n)
	}

	ok, _ := s.GetOutboxMessage(okID)
	if ok.Status != OutboxStatusSent {
		t.Errorf("expected sent, got %s", ok.Status)
	}
	flaky, _ := s.GetOutboxMessage(flakyID)
	if flaky.Status != OutboxStatusQueued || flaky.NextAttemptAt == nil || !flaky.NextAttemptAt.Equal(now.Add(10*time.Second)) {
		t.Errorf("expected retry in 10s, got %+v", flaky)
	}
	dead, _ := s.GetOutboxMessage(deadID)
	if dead.Status != OutboxStatusCanceled {
		t.Errorf("expected permanent failure to cancel, got %s", dead.Status)
	}
}

func TestOutboxSender_GivesUpAfterMaxAttempts(t *testing.T) {
	s := NewInMemoryStore()
	id, _ := s.EnqueueOutboxMessage("flaky", OutboxKindReminder, `{}`, "")
	sender := NewOutboxSender(s, func(ctx context.Context, msg OutboxMessage) error {
		return errors.New("still down")
	}, time.Second)
	sender.maxAttempts = 2
	now := time.Now()
	sender.now = func() time.Time { return now }

	sender.Poll(context.Background())
	now = now.Add(time.Hour)
	sender.Poll(context.Background())

	m, _ := s.GetOutboxMessage(id)
	if m.Status != OutboxStatusCanceled || m.Attempts != 1 {
		t.Errorf("expected cancel after the second failure, got %+v", m)
	}
}

func TestOutboxSender_Run(t *testing.T) {
	s := newTestSQLiteStore(t)

	var sent int32
	sender := NewOutboxSender(s, func(ctx context.Context, msg OutboxMessage) error {
		atomic.AddInt32(&sent, 1)
		return nil
	}, 50*time.Millisecond)

	if _, err := s.EnqueueOutboxMessage("user1", OutboxKindStageCompleted, `{}`, ""); err != nil {
		t.Fatalf("EnqueueOutboxMessage failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	go sender.Run(ctx)
	<-ctx.Done()

	if atomic.LoadInt32(&sent) != 1 {
		t.Errorf("Expected 1 send, got %d", atomic.LoadInt32(&sent))
	}
}

// TestOutboxSenderRestartRecovery simulates a crash while a message is being sent and verifies the
// message is delivered exactly once after restart.
func TestOutboxSenderRestartRecovery(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "outbox_restart_test_")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)
	dbPath := filepath.Join(tempDir, "test.db")

	s1, err := NewSQLiteStore(WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("NewSQLiteStore (phase 1) failed: %v", err)
	}
	id, _ := s1.EnqueueOutboxMessage("user1", OutboxKindStageCompleted, `{}`, "complete:user1:3")
	// Claimed long ago, then the process died before marking it sent.
	if _, err := s1.ClaimDueOutboxMessages(time.Now().Add(-time.Hour), 10); err != nil {
		t.Fatalf("ClaimDueOutboxMessages failed: %v", err)
	}
	s1.Close()

	s2, err := NewSQLiteStore(WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("NewSQLiteStore (phase 2) failed: %v", err)
	}
	defer s2.Close()

	var sent int32
	sender := NewOutboxSender(s2, func(ctx context.Context, msg OutboxMessage) error {
		atomic.AddInt32(&sent, 1)
		return nil
	}, time.Second)
	if err := sender.RecoverStaleMessages(); err != nil {
		t.Fatalf("RecoverStaleMessages failed: %v", err)
	}
	sender.Poll(context.Background())
	sender.Poll(context.Background())

	if atomic.LoadInt32(&sent) != 1 {
		t.Errorf("Expected exactly 1 send after restart, got %d", atomic.LoadInt32(&sent))
	}
	m, _ := s2.GetOutboxMessage(id)
	if m == nil || m.Status != OutboxStatusSent {
		t.Errorf("expected message sent after recovery, got %+v", m)
	}
}
