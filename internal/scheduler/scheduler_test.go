package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingSweeper struct {
	calls int32
	err   error
}

func (c *countingSweeper) SweepReminders(ctx context.Context) (int, error) {
	atomic.AddInt32(&c.calls, 1)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("sweep without deadline")
	}
	return 2, c.err
}

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	// Should add a valid cron job without error
	if err := s.AddJob("* * * * *", func() {}); err != nil {
		t.Errorf("Expected no error adding job, got %v", err)
	}
	if err := s.AddJob("not a cron", func() {}); err == nil {
		t.Error("Expected error for invalid expression")
	}
}

func TestValidateExpression(t *testing.T) {
	for _, expr := range []string{DefaultReminderSchedule, "*/15 * * * *", "0 9 * * 1-5"} {
		if err := ValidateExpression(expr); err != nil {
			t.Errorf("ValidateExpression(%q) = %v", expr, err)
		}
	}
	for _, expr := range []string{"", "0 9 * *", "0 0 9 * * *", "61 * * * *"} {
		if err := ValidateExpression(expr); err == nil {
			t.Errorf("ValidateExpression(%q) expected error", expr)
		}
	}
}

func TestScheduleReminderSweepDefaultsAndNextRun(t *testing.T) {
	loc := time.UTC
	s := NewScheduler(WithLocation(loc))
	defer s.Stop()

	if _, ok := s.NextRun(); ok {
		t.Error("expected no next run without jobs")
	}
	if err := s.ScheduleReminderSweep("", &countingSweeper{}); err != nil {
		t.Fatalf("ScheduleReminderSweep failed: %v", err)
	}
	next, ok := s.NextRun()
	if !ok {
		t.Fatal("expected a scheduled run")
	}
	if next.In(loc).Hour() != 9 || next.Minute() != 0 {
		t.Errorf("expected a 09:00 run, got %v", next)
	}
}

func TestRunSweep(t *testing.T) {
	sw := &countingSweeper{}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if n := RunSweep(ctx, sw); n != 2 {
		t.Errorf("expected 2 queued, got %d", n)
	}

	sw.err = errors.New("store down")
	if n := RunSweep(ctx, sw); n != 2 {
		t.Errorf("expected partial count on failure, got %d", n)
	}
	if atomic.LoadInt32(&sw.calls) != 2 {
		t.Errorf("expected 2 calls, got %d", sw.calls)
	}
}
