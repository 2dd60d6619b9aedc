// Package api provides the HTTP server and handlers for CaseTrack.
//
// It exposes the eligibility questionnaire, case tracking, the admin summary and the case
// assistant as JSON endpoints, and runs the notification outbox and reminder scheduler
// alongside the server.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BTreeMap/CaseTrack/internal/assistant"
	"github.com/BTreeMap/CaseTrack/internal/config"
	"github.com/BTreeMap/CaseTrack/internal/eligibility"
	"github.com/BTreeMap/CaseTrack/internal/estimation"
	"github.com/BTreeMap/CaseTrack/internal/genai"
	"github.com/BTreeMap/CaseTrack/internal/notify"
	"github.com/BTreeMap/CaseTrack/internal/scheduler"
	"github.com/BTreeMap/CaseTrack/internal/store"
	"github.com/BTreeMap/CaseTrack/internal/tracking"
)

const (
	// DefaultServerAddress is used when no address is configured.
	DefaultServerAddress = ":8080"
	// DefaultOutboxPollInterval is how often queued notifications are claimed.
	DefaultOutboxPollInterval = 5 * time.Second
	// AdminHeader carries the id of the admin performing a change.
	AdminHeader = "X-Admin-User"
	// shutdownTimeout bounds graceful shutdown.
	shutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr               string
	ConfigPath         string
	NotifyEnabled      bool
	NotifyChannel      string
	ReminderSchedule   string
	OutboxPollInterval time.Duration
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the server address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithConfigPath loads the tracking configuration from a YAML file.
func WithConfigPath(path string) Option {
	return func(o *Opts) {
		o.ConfigPath = path
	}
}

// WithNotifications enables the outbox sender and reminder scheduler.
func WithNotifications(enabled bool) Option {
	return func(o *Opts) {
		o.NotifyEnabled = enabled
	}
}

// WithNotifyChannel selects the delivery channel (notify.ChannelTwilio, notify.ChannelWhatsApp or
// notify.ChannelLog).
func WithNotifyChannel(channel string) Option {
	return func(o *Opts) {
		o.NotifyChannel = channel
	}
}

// WithReminderSchedule sets the cron expression of the reminder sweep.
func WithReminderSchedule(expr string) Option {
	return func(o *Opts) {
		o.ReminderSchedule = expr
	}
}

// WithOutboxPollInterval sets how often the outbox is polled.
func WithOutboxPollInterval(d time.Duration) Option {
	return func(o *Opts) {
		o.OutboxPollInterval = d
	}
}

func buildOpts(opts []Option) Opts {
	o := Opts{
		Addr:               DefaultServerAddress,
		NotifyChannel:      notify.ChannelLog,
		ReminderSchedule:   scheduler.DefaultReminderSchedule,
		OutboxPollInterval: DefaultOutboxPollInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Addr == "" {
		o.Addr = DefaultServerAddress
	}
	return o
}

// Server serves the CaseTrack HTTP API.
type Server struct {
	svc       *tracking.Service
	evaluator *eligibility.Evaluator
	assistant *assistant.Assistant
	addr      string
	mux       *http.ServeMux
}

// NewServer creates a Server over svc. asst may be nil, in which case a knowledge-base-only
// assistant is used.
func NewServer(svc *tracking.Service, asst *assistant.Assistant, opts ...Option) *Server {
	o := buildOpts(opts)
	if asst == nil {
		asst = assistant.New(svc.Config(), nil)
	}
	s := &Server{
		svc:       svc,
		evaluator: eligibility.MustDefault(),
		assistant: asst,
		addr:      o.Addr,
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.healthHandler)
	s.mux.HandleFunc("/eligibility/questions", s.eligibilityQuestionsHandler)
	s.mux.HandleFunc("/eligibility/evaluate", s.eligibilityEvaluateHandler)
	s.mux.HandleFunc("/tracking/config", s.trackingConfigHandler)
	s.mux.HandleFunc("/tracking/cases", s.casesHandler)
	s.mux.HandleFunc("/tracking/cases/{id}", s.caseHandler)
	s.mux.HandleFunc("/tracking/cases/{id}/dashboard", s.dashboardHandler)
	s.mux.HandleFunc("/tracking/stages/complete", s.stageCompleteHandler)
	s.mux.HandleFunc("/tracking/stages/updates", s.stageUpdatesHandler)
	s.mux.HandleFunc("/tracking/estimate", s.estimateHandler)
	s.mux.HandleFunc("/tracking/populate", s.populateHandler)
	s.mux.HandleFunc("/admin/summary", s.adminSummaryHandler)
	s.mux.HandleFunc("/assistant/chat", s.chatHandler)
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.addr
}

// Run wires the configured modules together and serves the API until SIGINT or SIGTERM.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, twilioOpts []notify.TwilioOption, waOpts []notify.WhatsAppOption, apiOpts []Option) error {
	o := buildOpts(apiOpts)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadTrackingConfig(o.ConfigPath)
	if err != nil {
		return err
	}

	var storeCfg store.Opts
	for _, opt := range storeOpts {
		opt(&storeCfg)
	}
	st, err := store.Open(storeCfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("api.Run: failed to close store", "error", err)
		}
	}()

	engine := estimation.NewEngine(cfg)
	svc := tracking.NewService(st, engine, tracking.WithNotifications(o.NotifyEnabled))

	var gen assistant.Generator
	client, err := genai.NewClient(genaiOpts...)
	if err != nil {
		slog.Warn("api.Run: GenAI client not configured, assistant uses the knowledge base only", "error", err)
	} else {
		gen = client
	}
	server := NewServer(svc, assistant.New(cfg, gen), apiOpts...)

	if o.NotifyEnabled {
		sender, closeSender, err := newSender(ctx, o.NotifyChannel, twilioOpts, waOpts)
		if err != nil {
			return err
		}
		defer closeSender()

		outbox := store.NewOutboxSender(st, notify.NewOutboxSendFunc(sender), o.OutboxPollInterval)
		if err := outbox.RecoverStaleMessages(); err != nil {
			slog.Error("api.Run: failed to recover stale outbox messages", "error", err)
		}
		go outbox.Run(ctx)

		sched := scheduler.NewScheduler()
		defer sched.Stop()
		if err := sched.ScheduleReminderSweep(o.ReminderSchedule, svc); err != nil {
			return fmt.Errorf("invalid reminder schedule: %w", err)
		}
	} else {
		slog.Info("api.Run: notifications disabled")
	}

	return server.ListenAndServe(ctx)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server.ListenAndServe: CaseTrack API listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Server.ListenAndServe: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err, ok := <-serverErr:
		if !ok {
			return nil
		}
		return err
	}
}

func loadTrackingConfig(path string) (*config.TrackingConfig, error) {
	if path == "" {
		slog.Debug("api.loadTrackingConfig: using built-in tracking configuration")
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracking configuration: %w", err)
	}
	slog.Info("api.loadTrackingConfig: tracking configuration loaded", "path", path, "stages", len(cfg.Stages))
	return cfg, nil
}

// newSender builds the notification sender for channel and a function releasing it.
func newSender(ctx context.Context, channel string, twilioOpts []notify.TwilioOption, waOpts []notify.WhatsAppOption) (notify.Sender, func(), error) {
	switch channel {
	case notify.ChannelTwilio:
		sender, err := notify.NewTwilioSender(twilioOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Twilio sender: %w", err)
		}
		return sender, func() {}, nil
	case notify.ChannelWhatsApp:
		sender, err := notify.NewWhatsAppSender(ctx, waOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create WhatsApp sender: %w", err)
		}
		return sender, sender.Close, nil
	case notify.ChannelLog, "":
		return notify.LogSender{}, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown notification channel %q", channel)
	}
}
