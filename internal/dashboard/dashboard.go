// Package dashboard turns a tracked case into the view shown to its owner: case summary,
// stage timeline and alerts.
package dashboard

import (
	"fmt"
	"time"

	"github.com/BTreeMap/CaseTrack/internal/config"
	"github.com/BTreeMap/CaseTrack/internal/models"
)

// StageStatus is the display state of a timeline step.
type StageStatus string

const (
	StatusCompleted  StageStatus = "completed"
	StatusInProgress StageStatus = "in_progress"
	StatusPending    StageStatus = "pending"
)

// StatusOf classifies a stage relative to the case's current stage. Stages before the current
// one that were never completed stay pending; they are reported as skipped by the timeline.
func StatusOf(p models.StageProgress, currentStageID int) StageStatus {
	switch {
	case p.Completed:
		return StatusCompleted
	case p.StageID == currentStageID:
		return StatusInProgress
	default:
		return StatusPending
	}
}

// LocalizedStep is the text of a timeline step in one language.
type LocalizedStep struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Tooltip     string `json:"tooltip"`
}

// TimelineStep is one stage as shown on the dashboard.
type TimelineStep struct {
	ID             string                   `json:"id"`
	StageID        int                      `json:"stage_id"`
	EN             LocalizedStep            `json:"en"`
	ZH             LocalizedStep            `json:"zh"`
	Status         StageStatus              `json:"status"`
	Skipped        bool                     `json:"skipped,omitempty"`
	CompletedDate  string                   `json:"completed_date,omitempty"`
	EstimatedDate  string                   `json:"estimated_date,omitempty"`
	Notes          string                   `json:"notes,omitempty"`
	ProcessingTime *models.DurationEstimate `json:"processing_time,omitempty"`
}

// CaseInfo is the case summary card.
type CaseInfo struct {
	Category            string   `json:"category"`
	PriorityDate        string   `json:"priority_date"`
	USCISCenter         string   `json:"uscis_center"`
	CurrentStep         string   `json:"current_step"`
	EstimatedCompletion string   `json:"estimated_completion"`
	CaseNumber          string   `json:"case_number,omitempty"`
	Receipts            []string `json:"receipts,omitempty"`
}

// View is everything the dashboard renders for one case.
type View struct {
	CaseInfo CaseInfo                `json:"case_info"`
	NextStep models.NextStepEstimate `json:"next_step"`
	Timeline []TimelineStep          `json:"timeline"`
	Alerts   []Alert                 `json:"alerts"`
	Language string                  `json:"language"`
}

// Build assembles the dashboard view of c as of now.
func Build(cfg *config.TrackingConfig, c *models.UserCaseTracker, now time.Time, lang string) View {
	return View{
		CaseInfo: BuildCaseInfo(cfg, c, lang),
		NextStep: c.NextStepEstimate,
		Timeline: TimelineSteps(cfg, c),
		Alerts:   Alerts(cfg, c, now),
		Language: lang,
	}
}

// BuildCaseInfo summarizes c with dates formatted for lang.
func BuildCaseInfo(cfg *config.TrackingConfig, c *models.UserCaseTracker, lang string) CaseInfo {
	current := fmt.Sprintf("Stage %d", c.CurrentStageID)
	if s := cfg.Stage(c.CurrentStageID); s != nil {
		current = s.Name
	}
	if lang == "zh" {
		current = TranslateStageTitle(current)
	}
	info := CaseInfo{
		Category:            c.VisaType,
		PriorityDate:        DisplayDate(c.PriorityDate, lang),
		USCISCenter:         c.ProcessingCenter,
		CurrentStep:         current,
		EstimatedCompletion: DisplayDate(c.EstimatedCompletionDate, lang),
		CaseNumber:          c.CaseNumber,
	}
	if c.CaseNumber != "" {
		info.Receipts = []string{c.CaseNumber}
	}
	return info
}

// TimelineSteps converts the tracker into timeline steps in stage order.
func TimelineSteps(cfg *config.TrackingConfig, c *models.UserCaseTracker) []TimelineStep {
	steps := make([]TimelineStep, 0, len(c.Tracker))
	for _, p := range c.Tracker {
		stage := cfg.Stage(p.StageID)
		description := ""
		var processing *models.DurationEstimate
		if stage != nil {
			description = stage.Description
			d := stage.EstimatedDurationDays
			processing = &d
		}
		status := StatusOf(p, c.CurrentStageID)
		steps = append(steps, TimelineStep{
			ID:      fmt.Sprintf("stage_%d", p.StageID),
			StageID: p.StageID,
			EN: LocalizedStep{
				Title:       p.Name,
				Description: description,
				Tooltip:     tooltip(description, p, "en"),
			},
			ZH: LocalizedStep{
				Title:       TranslateStageTitle(p.Name),
				Description: TranslateStageDescription(description),
				Tooltip:     tooltip(TranslateStageDescription(description), p, "zh"),
			},
			Status:         status,
			Skipped:        status == StatusPending && p.StageID < c.CurrentStageID,
			CompletedDate:  p.DateCompleted,
			EstimatedDate:  p.DateEstimated,
			Notes:          p.Notes,
			ProcessingTime: processing,
		})
	}
	return steps
}

func tooltip(base string, p models.StageProgress, lang string) string {
	switch {
	case p.Completed && p.DateCompleted != "":
		if lang == "zh" {
			return base + "\n\n完成于 " + DisplayDate(p.DateCompleted, lang)
		}
		return base + "\n\nCompleted on " + DisplayDate(p.DateCompleted, lang)
	case p.DateEstimated != "":
		if lang == "zh" {
			return base + "\n\n预计 " + DisplayDate(p.DateEstimated, lang)
		}
		return base + "\n\nEstimated " + DisplayDate(p.DateEstimated, lang)
	}
	return base
}

// DisplayDate renders a YYYY-MM-DD date as "January 2, 2006" (en) or "2006年1月2日" (zh).
// Unparseable input is returned unchanged.
func DisplayDate(date, lang string) string {
	t, err := models.ParseDate(date)
	if err != nil {
		return date
	}
	if lang == "zh" {
		return fmt.Sprintf("%d年%d月%d日", t.Year(), int(t.Month()), t.Day())
	}
	return t.Format("January 2, 2006")
}
