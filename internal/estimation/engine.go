// Package estimation projects future milestone dates for a case from the tracking configuration.
//
// The Engine is stateless: it holds only the read-only configuration and a clock, takes a case
// snapshot in and returns computed values or a patch out. It never mutates its inputs and is safe
// for concurrent use.
package estimation

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/CaseTrack/internal/config"
	"github.com/BTreeMap/CaseTrack/internal/models"
)

// CaseCompleteName is the stage name reported once a case has no further stages.
const CaseCompleteName = "Case Complete"

// Opts holds configuration options for the Engine.
type Opts struct {
	Clock func() time.Time
}

// Option defines a configuration option for the Engine.
type Option func(*Opts)

// WithClock overrides the time source used for "today".
func WithClock(clock func() time.Time) Option {
	return func(o *Opts) {
		o.Clock = clock
	}
}

// Engine computes next-step and completion projections.
type Engine struct {
	cfg *config.TrackingConfig
	now func() time.Time
}

// NewEngine creates an Engine over cfg. A nil cfg uses config.Default().
func NewEngine(cfg *config.TrackingConfig, opts ...Option) *Engine {
	var o Opts
	for _, opt := range opts {
		opt(&o)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return &Engine{cfg: cfg, now: o.Clock}
}

// Config returns the tracking configuration the engine projects against.
func (e *Engine) Config() *config.TrackingConfig {
	return e.cfg
}

// Now returns the engine's current time.
func (e *Engine) Now() time.Time {
	return e.now()
}

// Today returns the engine's current calendar date.
func (e *Engine) Today() string {
	return models.FormatDate(e.now())
}

// CasePatch is the set of fields changed by UpdateCaseEstimates.
type CasePatch struct {
	Tracker                 []models.StageProgress  `json:"tracker"`
	CurrentStageID          int                     `json:"current_stage_id"`
	NextStepEstimate        models.NextStepEstimate `json:"next_step_estimate"`
	EstimatedCompletionDate string                  `json:"estimated_completion_date"`
	UpdatedAt               time.Time               `json:"updated_at"`
}

// Apply returns a copy of c with the patch merged in.
func (p CasePatch) Apply(c *models.UserCaseTracker) *models.UserCaseTracker {
	out := c.Clone()
	out.Tracker = make([]models.StageProgress, len(p.Tracker))
	copy(out.Tracker, p.Tracker)
	out.CurrentStageID = p.CurrentStageID
	out.NextStepEstimate = p.NextStepEstimate
	out.EstimatedCompletionDate = p.EstimatedCompletionDate
	out.UpdatedAt = p.UpdatedAt
	return out
}

// CalculateNextStep projects the stage after the case's current stage.
func (e *Engine) CalculateNextStep(c *models.UserCaseTracker) (models.NextStepEstimate, error) {
	if err := e.checkCurrentStage(c); err != nil {
		return models.NextStepEstimate{}, err
	}
	next := e.cfg.NextStage(c.CurrentStageID)
	if next == nil {
		return models.NextStepEstimate{
			StageID:         c.CurrentStageID,
			StageName:       CaseCompleteName,
			EtaDays:         0,
			ExpectedDate:    e.Today(),
			ConfidenceLevel: models.ConfidenceHigh,
		}, nil
	}

	pt, _ := e.cfg.ProcessingTime(c.VisaType, c.ProcessingCenter)
	total := e.transitionDays(pt, c.CurrentStageID, *next) + e.countryDelay(pt, c.CountryOfBirth, next.StageID)

	start, err := e.lastCompletedDate(c.Tracker)
	if err != nil {
		return models.NextStepEstimate{}, err
	}
	expected, err := models.AddDays(start, total)
	if err != nil {
		return models.NextStepEstimate{}, err
	}

	return models.NextStepEstimate{
		StageID:         next.StageID,
		StageName:       next.Name,
		EtaDays:         total,
		ExpectedDate:    expected,
		ConfidenceLevel: e.cfg.Confidence.Level(next.StageID, c.CountryOfBirth),
	}, nil
}

// CalculateCompletionDate projects the date the final stage is reached.
func (e *Engine) CalculateCompletionDate(c *models.UserCaseTracker) (string, error) {
	if err := e.checkCurrentStage(c); err != nil {
		return "", err
	}
	pt, _ := e.cfg.ProcessingTime(c.VisaType, c.ProcessingCenter)

	remaining := 0
	prev := c.CurrentStageID
	for _, stage := range e.cfg.StagesAfter(c.CurrentStageID) {
		remaining += e.transitionDays(pt, prev, stage) + e.countryDelay(pt, c.CountryOfBirth, stage.StageID)
		prev = stage.StageID
	}

	start, err := e.lastCompletedDate(c.Tracker)
	if err != nil {
		return "", err
	}
	return models.AddDays(start, remaining)
}

// UpdateCaseEstimates marks stageID complete on completionDate and recomputes the projections.
// The input case is left untouched; the caller persists the returned patch.
func (e *Engine) UpdateCaseEstimates(c *models.UserCaseTracker, stageID int, completionDate string) (CasePatch, error) {
	if _, err := models.ParseDate(completionDate); err != nil {
		return CasePatch{}, err
	}
	if e.cfg.Stage(stageID) == nil {
		return CasePatch{}, fmt.Errorf("%w: %d is not a configured stage", models.ErrStageNotFound, stageID)
	}

	updated := c.Clone()
	progress := updated.Progress(stageID)
	if progress == nil {
		return CasePatch{}, fmt.Errorf("%w: case %s has no stage %d", models.ErrStageNotFound, c.UserID, stageID)
	}
	now := e.now()
	progress.Completed = true
	progress.DateCompleted = completionDate
	progress.UpdatedAt = &now

	updated.CurrentStageID = stageID
	if next := e.cfg.NextStage(stageID); next != nil {
		updated.CurrentStageID = next.StageID
	}
	updated.UpdatedAt = now

	nextStep, err := e.CalculateNextStep(updated)
	if err != nil {
		return CasePatch{}, err
	}
	completion, err := e.CalculateCompletionDate(updated)
	if err != nil {
		return CasePatch{}, err
	}

	slog.Debug("Engine.UpdateCaseEstimates: stage completed", "case", c.UserID, "stage", stageID,
		"current", updated.CurrentStageID, "next_expected", nextStep.ExpectedDate, "completion", completion)
	return CasePatch{
		Tracker:                 updated.Tracker,
		CurrentStageID:          updated.CurrentStageID,
		NextStepEstimate:        nextStep,
		EstimatedCompletionDate: completion,
		UpdatedAt:               now,
	}, nil
}

// InitializeCase builds a fresh case at stage 1 with its initial projections.
func (e *Engine) InitializeCase(userID, visaType, processingCenter, priorityDate, countryOfBirth string) (*models.UserCaseTracker, error) {
	now := e.now()
	today := models.FormatDate(now)

	tracker := make([]models.StageProgress, 0, len(e.cfg.Stages))
	for _, s := range e.cfg.Stages {
		p := models.StageProgress{StageID: s.StageID, Name: s.Name}
		if s.StageID == 1 {
			p.DateEstimated = today
		}
		tracker = append(tracker, p)
	}

	c := &models.UserCaseTracker{
		UserID:           userID,
		VisaType:         visaType,
		ProcessingCenter: processingCenter,
		PriorityDate:     priorityDate,
		CountryOfBirth:   countryOfBirth,
		CurrentStageID:   1,
		Tracker:          tracker,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := e.Refresh(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Refresh recomputes the derived projections of c in place.
func (e *Engine) Refresh(c *models.UserCaseTracker) error {
	next, err := e.CalculateNextStep(c)
	if err != nil {
		return err
	}
	completion, err := e.CalculateCompletionDate(c)
	if err != nil {
		return err
	}
	c.NextStepEstimate = next
	c.EstimatedCompletionDate = completion
	return nil
}

// Estimate projects a case that exists only in the request.
func (e *Engine) Estimate(req models.EstimationRequest) (models.EstimationResult, error) {
	c := &models.UserCaseTracker{
		VisaType:         req.VisaType,
		ProcessingCenter: req.ProcessingCenter,
		CountryOfBirth:   req.CountryOfBirth,
		CurrentStageID:   req.CurrentStageID,
		Tracker:          req.CompletedStages,
	}
	next, err := e.CalculateNextStep(c)
	if err != nil {
		return models.EstimationResult{}, err
	}
	completion, err := e.CalculateCompletionDate(c)
	if err != nil {
		return models.EstimationResult{}, err
	}
	return models.EstimationResult{NextStepEstimate: next, EstimatedCompletionDate: completion}, nil
}

// ProjectStageDates returns a copy of the tracker where every incomplete stage after the current
// one carries the date it is expected to be reached.
func (e *Engine) ProjectStageDates(c *models.UserCaseTracker) ([]models.StageProgress, error) {
	if err := e.checkCurrentStage(c); err != nil {
		return nil, err
	}
	out := c.Clone().Tracker
	start, err := e.lastCompletedDate(c.Tracker)
	if err != nil {
		return nil, err
	}
	pt, _ := e.cfg.ProcessingTime(c.VisaType, c.ProcessingCenter)

	elapsed := 0
	prev := c.CurrentStageID
	for _, stage := range e.cfg.StagesAfter(c.CurrentStageID) {
		elapsed += e.transitionDays(pt, prev, stage) + e.countryDelay(pt, c.CountryOfBirth, stage.StageID)
		prev = stage.StageID
		for i := range out {
			if out[i].StageID != stage.StageID || out[i].Completed {
				continue
			}
			date, err := models.AddDays(start, elapsed)
			if err != nil {
				return nil, err
			}
			out[i].DateEstimated = date
		}
	}
	return out, nil
}

// transitionDays is the configured duration of from->to, or the destination stage's default
// average when the pair or the key is not configured. A configured 0 is kept as 0.
func (e *Engine) transitionDays(pt *models.ProcessingTimeConfig, from int, to models.Stage) int {
	if pt != nil {
		if days, ok := pt.AvgDurationsDays[models.TransitionKey(from, to.StageID)]; ok {
			return days
		}
	}
	return to.EstimatedDurationDays.Average
}

func (e *Engine) countryDelay(pt *models.ProcessingTimeConfig, country string, stageID int) int {
	if pt == nil || stageID != e.cfg.InterviewStageID {
		return 0
	}
	return pt.CountrySpecificDelays[country]
}

// lastCompletedDate is the completion date of the highest completed stage, or today.
func (e *Engine) lastCompletedDate(tracker []models.StageProgress) (string, error) {
	best := -1
	date := ""
	for _, p := range tracker {
		if p.Completed && p.DateCompleted != "" && p.StageID > best {
			best = p.StageID
			date = p.DateCompleted
		}
	}
	if best < 0 {
		return e.Today(), nil
	}
	if _, err := models.ParseDate(date); err != nil {
		return "", fmt.Errorf("stage %d: %w", best, err)
	}
	return date, nil
}

func (e *Engine) checkCurrentStage(c *models.UserCaseTracker) error {
	if c == nil {
		return models.ErrCaseNotFound
	}
	if e.cfg.Stage(c.CurrentStageID) == nil {
		return fmt.Errorf("%w: current_stage_id %d", models.ErrStageNotFound, c.CurrentStageID)
	}
	return nil
}
