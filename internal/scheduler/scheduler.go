// Package scheduler runs periodic CaseTrack jobs, such as the reminder sweep, on cron expressions.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultReminderSchedule runs the reminder sweep every day at 09:00.
const DefaultReminderSchedule = "0 9 * * *"

// DefaultJobTimeout bounds a single run of a scheduled job.
const DefaultJobTimeout = 5 * time.Minute

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Sweeper is implemented by the tracking service.
type Sweeper interface {
	SweepReminders(ctx context.Context) (int, error)
}

// Opts holds configuration options for the Scheduler.
type Opts struct {
	Location *time.Location
	Timeout  time.Duration
}

// Option defines a configuration option for the Scheduler.
type Option func(*Opts)

// WithLocation evaluates cron expressions in loc instead of the local time zone.
func WithLocation(loc *time.Location) Option {
	return func(o *Opts) {
		o.Location = loc
	}
}

// WithJobTimeout sets the deadline of each job run.
func WithJobTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.Timeout = d
	}
}

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler(opts ...Option) *Scheduler {
	var o Opts
	for _, opt := range opts {
		opt(&o)
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultJobTimeout
	}
	logger := slogLogger{}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(o.Location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Start()
	return &Scheduler{cron: c, timeout: o.Timeout}
}

// ValidateExpression checks a standard 5-field cron expression.
func ValidateExpression(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// ScheduleReminderSweep runs sweeper.SweepReminders on expr, each run bounded by the job timeout.
func (s *Scheduler) ScheduleReminderSweep(expr string, sweeper Sweeper) error {
	if expr == "" {
		expr = DefaultReminderSchedule
	}
	err := s.AddJob(expr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		RunSweep(ctx, sweeper)
	})
	if err != nil {
		return err
	}
	slog.Info("Scheduler.ScheduleReminderSweep: reminder sweep scheduled", "schedule", expr)
	return nil
}

// RunSweep runs one reminder sweep and logs its outcome.
func RunSweep(ctx context.Context, sweeper Sweeper) int {
	start := time.Now()
	n, err := sweeper.SweepReminders(ctx)
	if err != nil {
		slog.Error("scheduler.RunSweep: reminder sweep failed", "queued", n, "error", err)
		return n
	}
	slog.Debug("scheduler.RunSweep: reminder sweep done", "queued", n, "duration", time.Since(start))
	return n
}

// NextRun returns the next activation time of the earliest scheduled job.
func (s *Scheduler) NextRun() (time.Time, bool) {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if next.IsZero() || (!e.Next.IsZero() && e.Next.Before(next)) {
			next = e.Next
		}
	}
	return next, !next.IsZero()
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// slogLogger routes cron's logging through slog.
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
