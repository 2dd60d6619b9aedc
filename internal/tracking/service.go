// Package tracking orchestrates case persistence, estimation and notifications.
//
// Every mutation follows the same cycle: read the case, compute the new state with the estimation
// engine, then save it with a compare-and-swap on the case version. Conflicting writers are retried
// a bounded number of times. Audit records and outbox messages are written only after the case
// itself was saved.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/BTreeMap/CaseTrack/internal/config"
	"github.com/BTreeMap/CaseTrack/internal/dashboard"
	"github.com/BTreeMap/CaseTrack/internal/estimation"
	"github.com/BTreeMap/CaseTrack/internal/models"
	"github.com/BTreeMap/CaseTrack/internal/store"
)

const (
	// DefaultMaxRetries bounds compare-and-swap attempts per mutation.
	DefaultMaxRetries = 5
	// DefaultPageLimit is the page size used when a list request does not name one.
	DefaultPageLimit = 10
	// DefaultUpdatesLimit is the number of audit records returned when no limit is given.
	DefaultUpdatesLimit = 10
	// SystemUserID is recorded as the author of changes without an authenticated admin.
	SystemUserID = "system"
)

// Opts holds configuration options for the Service.
type Opts struct {
	Clock         func() time.Time
	MaxRetries    int
	Notifications bool
}

// Option defines a configuration option for the Service.
type Option func(*Opts)

// WithClock overrides the service's time source. It defaults to the engine's clock.
func WithClock(clock func() time.Time) Option {
	return func(o *Opts) {
		o.Clock = clock
	}
}

// WithMaxRetries sets how many times a mutation is attempted on version conflicts.
func WithMaxRetries(n int) Option {
	return func(o *Opts) {
		o.MaxRetries = n
	}
}

// WithNotifications enables enqueueing outbox messages for cases with a contact phone.
func WithNotifications(enabled bool) Option {
	return func(o *Opts) {
		o.Notifications = enabled
	}
}

// Service implements the tracking operations on top of a Store and an estimation Engine.
type Service struct {
	store      store.Store
	engine     *estimation.Engine
	cfg        *config.TrackingConfig
	now        func() time.Time
	maxRetries int
	notify     bool
}

// NewService creates a Service.
func NewService(st store.Store, engine *estimation.Engine, opts ...Option) *Service {
	var o Opts
	for _, opt := range opts {
		opt(&o)
	}
	if o.Clock == nil {
		o.Clock = engine.Now
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	return &Service{
		store:      st,
		engine:     engine,
		cfg:        engine.Config(),
		now:        o.Clock,
		maxRetries: o.MaxRetries,
		notify:     o.Notifications,
	}
}

// Config returns the tracking configuration.
func (s *Service) Config() *config.TrackingConfig {
	return s.cfg
}

// CreateCase opens a new case at stage 1.
func (s *Service) CreateCase(ctx context.Context, req models.CreateCaseRequest) (*models.UserCaseTracker, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	c, err := s.engine.InitializeCase(
		strings.TrimSpace(req.UserID), req.VisaType, req.ProcessingCenter, req.PriorityDate, req.CountryOfBirth)
	if err != nil {
		return nil, err
	}
	c.IsConcurrentFiling = req.IsConcurrentFiling
	c.HasEADApplication = req.HasEADApplication
	c.HasAPApplication = req.HasAPApplication
	c.AttorneyInfo = req.AttorneyInfo
	c.ContactPhone = req.ContactPhone
	c.PreferredLanguage = req.PreferredLanguage
	if tracker, err := s.engine.ProjectStageDates(c); err == nil {
		c.Tracker = tracker
	}

	stored, err := s.store.CreateCase(c)
	if err != nil {
		if !errors.Is(err, models.ErrCaseExists) {
			slog.Error("Service.CreateCase: store failed", "userID", c.UserID, "error", err)
		}
		return nil, err
	}
	slog.Info("Service.CreateCase: case created", "userID", stored.UserID, "caseNumber", stored.CaseNumber,
		"visaType", stored.VisaType, "center", stored.ProcessingCenter)
	return stored, nil
}

// GetCase returns the case of caseID (the owning user id).
func (s *Service) GetCase(ctx context.Context, caseID string) (*models.UserCaseTracker, error) {
	if strings.TrimSpace(caseID) == "" {
		return nil, models.ErrMissingCaseID
	}
	c, err := s.store.GetCase(caseID)
	if err != nil {
		slog.Error("Service.GetCase: store failed", "caseID", caseID, "error", err)
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrCaseNotFound, caseID)
	}
	return c, nil
}

// ListCases returns one page of cases, optionally restricted to userID. Zero page and limit select
// the first page of DefaultPageLimit cases; limits above models.MaxPageLimit are clamped.
func (s *Service) ListCases(ctx context.Context, userID string, page, limit int) (models.CaseListResponse, error) {
	if page < 0 || limit < 0 {
		return models.CaseListResponse{}, models.ErrInvalidPagination
	}
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = DefaultPageLimit
	}
	if limit > models.MaxPageLimit {
		limit = models.MaxPageLimit
	}
	cases, total, err := s.store.ListCases(store.CaseFilter{UserID: userID, Offset: (page - 1) * limit, Limit: limit})
	if err != nil {
		slog.Error("Service.ListCases: store failed", "error", err)
		return models.CaseListResponse{}, err
	}
	if cases == nil {
		cases = []models.UserCaseTracker{}
	}
	return models.CaseListResponse{Cases: cases, Total: total, Page: page, Limit: limit}, nil
}

// UpdateCase applies an administrative edit. Changing the visa type, processing center or country
// of birth recomputes the projections and is recorded in the audit log.
func (s *Service) UpdateCase(ctx context.Context, caseID string, upd models.CaseFieldsUpdate, adminID string) (*models.UserCaseTracker, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}
	saved, err := s.mutate(ctx, caseID, func(c *models.UserCaseTracker) error {
		upd.ApplyTo(c)
		c.UpdatedAt = s.now()
		if !upd.ChangesClassification() {
			return nil
		}
		return s.reproject(c)
	})
	if err != nil {
		return nil, err
	}

	if upd.ChangesClassification() {
		s.audit(models.CaseUpdate{
			CaseID:  saved.UserID,
			StageID: saved.CurrentStageID,
			Action:  models.UpdateActionUpdateEstimate,
			Data: map[string]interface{}{
				"visa_type":                 saved.VisaType,
				"processing_center":         saved.ProcessingCenter,
				"country_of_birth":          saved.CountryOfBirth,
				"estimated_completion_date": saved.EstimatedCompletionDate,
			},
			AdminUserID: adminOrSystem(adminID),
		})
	}
	slog.Info("Service.UpdateCase: case updated", "caseID", saved.UserID, "version", saved.Version,
		"reprojected", upd.ChangesClassification())
	return saved, nil
}

// UpdateStage marks a stage complete, or attaches a note to it when the request is not a
// completion. Completion recomputes the projections and enqueues a notification.
func (s *Service) UpdateStage(ctx context.Context, req models.StageUpdateRequest, adminID string) (*models.UserCaseTracker, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.cfg.Stage(req.StageID) == nil {
		return nil, fmt.Errorf("%w: %d", models.ErrStageNotFound, req.StageID)
	}
	adminID = adminOrSystem(adminID)
	date := req.DateCompleted
	if date == "" {
		date = models.FormatDate(s.now())
	}

	saved, err := s.mutate(ctx, req.CaseID, func(c *models.UserCaseTracker) error {
		now := s.now()
		if req.IsCompletion() {
			patch, err := s.engine.UpdateCaseEstimates(c, req.StageID, date)
			if err != nil {
				return err
			}
			*c = *patch.Apply(c)
			tracker, err := s.engine.ProjectStageDates(c)
			if err != nil {
				return err
			}
			c.Tracker = tracker
		}
		p := c.Progress(req.StageID)
		if p == nil {
			return fmt.Errorf("%w: case %s has no stage %d", models.ErrStageNotFound, c.UserID, req.StageID)
		}
		if req.Notes != "" {
			p.Notes = req.Notes
		}
		p.UpdatedBy = adminID
		p.UpdatedAt = &now
		c.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !req.IsCompletion() {
		s.audit(models.CaseUpdate{
			CaseID:      saved.UserID,
			StageID:     req.StageID,
			Action:      models.UpdateActionAddNote,
			Data:        map[string]interface{}{"notes": req.Notes},
			AdminUserID: adminID,
		})
		slog.Info("Service.UpdateStage: note added", "caseID", saved.UserID, "stage", req.StageID)
		return saved, nil
	}

	s.audit(models.CaseUpdate{
		CaseID:  saved.UserID,
		StageID: req.StageID,
		Action:  models.UpdateActionComplete,
		Data: map[string]interface{}{
			"date_completed":            date,
			"notes":                     req.Notes,
			"current_stage_id":          saved.CurrentStageID,
			"next_expected_date":        saved.NextStepEstimate.ExpectedDate,
			"estimated_completion_date": saved.EstimatedCompletionDate,
		},
		AdminUserID: adminID,
	})
	s.enqueueStageCompleted(saved, req.StageID, date)
	slog.Info("Service.UpdateStage: stage completed", "caseID", saved.UserID, "stage", req.StageID,
		"current", saved.CurrentStageID, "completion", saved.EstimatedCompletionDate)
	return saved, nil
}

// RecentUpdates returns audit records newest first. An empty caseID covers every case.
func (s *Service) RecentUpdates(ctx context.Context, caseID string, limit int) ([]models.CaseUpdate, error) {
	if limit < 0 {
		return nil, models.ErrInvalidPagination
	}
	if limit == 0 {
		limit = DefaultUpdatesLimit
	}
	if limit > models.MaxPageLimit {
		limit = models.MaxPageLimit
	}
	updates, err := s.store.ListCaseUpdates(caseID, limit)
	if err != nil {
		slog.Error("Service.RecentUpdates: store failed", "caseID", caseID, "error", err)
		return nil, err
	}
	if updates == nil {
		updates = []models.CaseUpdate{}
	}
	return updates, nil
}

// Dashboard returns the localized timeline, case info and alerts of a case.
func (s *Service) Dashboard(ctx context.Context, caseID, lang string) (dashboard.View, error) {
	c, err := s.GetCase(ctx, caseID)
	if err != nil {
		return dashboard.View{}, err
	}
	return dashboard.Build(s.cfg, c, s.now(), lang), nil
}

// AdminSummary aggregates every case for the admin portal.
func (s *Service) AdminSummary(ctx context.Context) (models.AdminDashboardData, error) {
	cases, total, err := s.store.ListCases(store.CaseFilter{})
	if err != nil {
		slog.Error("Service.AdminSummary: store failed", "error", err)
		return models.AdminDashboardData{}, err
	}
	byStage := make(map[int]int)
	pending := make(map[int]int)
	for i := range cases {
		c := &cases[i]
		byStage[c.CurrentStageID]++
		if stage := s.activeStage(c); stage != nil && stage.RequiresUserAction {
			pending[stage.StageID]++
		}
	}
	actions := make([]models.PendingAction, 0, len(pending))
	for stageID, n := range pending {
		actions = append(actions, models.PendingAction{StageID: stageID, Count: n})
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i].StageID < actions[j].StageID })

	recent, err := s.RecentUpdates(ctx, "", DefaultUpdatesLimit)
	if err != nil {
		return models.AdminDashboardData{}, err
	}
	return models.AdminDashboardData{
		TotalCases:     total,
		CasesByStage:   byStage,
		RecentUpdates:  recent,
		PendingActions: actions,
	}, nil
}

// Estimate projects a case described entirely by the request.
func (s *Service) Estimate(ctx context.Context, req models.EstimationRequest) (models.EstimationResult, error) {
	if err := req.Validate(); err != nil {
		return models.EstimationResult{}, err
	}
	return s.engine.Estimate(req)
}

// mutate runs fn on a fresh copy of the case and saves the result with compare-and-swap,
// re-reading and re-running fn when another writer got there first.
func (s *Service) mutate(ctx context.Context, caseID string, fn func(c *models.UserCaseTracker) error) (*models.UserCaseTracker, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := s.GetCase(ctx, caseID)
		if err != nil {
			return nil, err
		}
		version := c.Version
		if err := fn(c); err != nil {
			return nil, err
		}
		saved, err := s.store.SaveCase(c, version)
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, models.ErrVersionConflict) || attempt >= s.maxRetries {
			slog.Error("Service.mutate: save failed", "caseID", caseID, "attempt", attempt, "error", err)
			return nil, err
		}
		slog.Debug("Service.mutate: version conflict, retrying", "caseID", caseID, "attempt", attempt)
	}
}

// activeStage is the first stage of c still waiting to happen: the current stage when it is not
// completed yet, otherwise the one after it. Finished cases have none.
func (s *Service) activeStage(c *models.UserCaseTracker) *models.Stage {
	if p := c.Progress(c.CurrentStageID); p != nil && !p.Completed {
		return s.cfg.Stage(c.CurrentStageID)
	}
	return s.cfg.NextStage(c.CurrentStageID)
}

// reproject recomputes the next step, completion date and per-stage estimates of c.
func (s *Service) reproject(c *models.UserCaseTracker) error {
	if err := s.engine.Refresh(c); err != nil {
		return err
	}
	tracker, err := s.engine.ProjectStageDates(c)
	if err != nil {
		return err
	}
	c.Tracker = tracker
	return nil
}

// audit records u. The case change it describes is already saved, so failures are logged only.
func (s *Service) audit(u models.CaseUpdate) {
	if u.Timestamp.IsZero() {
		u.Timestamp = s.now()
	}
	if err := s.store.AddCaseUpdate(u); err != nil {
		slog.Error("Service.audit: failed to record case update", "caseID", u.CaseID, "action", u.Action, "error", err)
	}
}

func adminOrSystem(adminID string) string {
	if strings.TrimSpace(adminID) == "" {
		return SystemUserID
	}
	return adminID
}
