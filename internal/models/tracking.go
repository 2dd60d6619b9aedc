package models

import (
	"fmt"
	"time"
)

// InputKind describes how a stage's completion is usually recorded.
type InputKind string

const (
	// InputManual stages are marked complete by an administrator.
	InputManual InputKind = "manual"
	// InputAuto stages are expected to be detected from USCIS notices.
	InputAuto InputKind = "auto"
	// InputOptional stages may never happen for a given case.
	InputOptional InputKind = "optional"
)

// DurationEstimate is a stage's default duration range in days.
type DurationEstimate struct {
	Min     int `json:"min" yaml:"min"`
	Max     int `json:"max" yaml:"max"`
	Average int `json:"average" yaml:"average"`
}

// Stage is one step of the fixed processing sequence. Stages are reference data.
type Stage struct {
	StageID               int              `json:"stage_id" yaml:"stage_id"`
	Name                  string           `json:"name" yaml:"name"`
	Description           string           `json:"description" yaml:"description"`
	RequiredInput         InputKind        `json:"required_input" yaml:"required_input"`
	EstimatedDurationDays DurationEstimate `json:"estimated_duration_days" yaml:"estimated_duration_days"`
	IsMilestone           bool             `json:"is_milestone" yaml:"is_milestone"`
	RequiresUserAction    bool             `json:"requires_user_action" yaml:"requires_user_action"`
}

// ProcessingTimeConfig holds the average transition durations observed for one
// visa type at one processing center.
type ProcessingTimeConfig struct {
	VisaType         string `json:"visa_type" yaml:"visa_type"`
	ProcessingCenter string `json:"processing_center" yaml:"processing_center"`
	// AvgDurationsDays is keyed by TransitionKey(from, to).
	AvgDurationsDays map[string]int `json:"avg_durations_days" yaml:"avg_durations_days"`
	// CountrySpecificDelays are additive days applied at the interview scheduling stage.
	CountrySpecificDelays map[string]int `json:"country_specific_delays,omitempty" yaml:"country_specific_delays,omitempty"`
	UpdatedAt             string         `json:"updated_at" yaml:"updated_at"`
}

// TransitionKey builds the avg_durations_days key for a transition between two stages.
func TransitionKey(from, to int) string {
	return fmt.Sprintf("%d_to_%d", from, to)
}

// ConfidenceLevel is the qualitative confidence attached to a next-step estimate.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// NextStepEstimate is derived from a case and the tracking configuration; it is never
// edited directly.
type NextStepEstimate struct {
	StageID         int             `json:"stage_id"`
	StageName       string          `json:"stage_name"`
	EtaDays         int             `json:"eta_days"`
	ExpectedDate    string          `json:"expected_date"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level"`
}

// StageProgress is the per-case state of a single stage.
type StageProgress struct {
	StageID       int        `json:"stage_id"`
	Name          string     `json:"name"`
	Completed     bool       `json:"completed"`
	DateCompleted string     `json:"date_completed,omitempty"`
	DateEstimated string     `json:"date_estimated,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	UpdatedBy     string     `json:"updated_by,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// AttorneyInfo identifies the attorney of record, if any.
type AttorneyInfo struct {
	Name  string `json:"name"`
	Firm  string `json:"firm,omitempty"`
	Email string `json:"email,omitempty"`
}

// UserCaseTracker is the root aggregate for one user's case.
type UserCaseTracker struct {
	UserID                  string           `json:"user_id"`
	CaseNumber              string           `json:"case_number,omitempty"`
	VisaType                string           `json:"visa_type"`
	ProcessingCenter        string           `json:"processing_center"`
	CountryOfBirth          string           `json:"country_of_birth"`
	PriorityDate            string           `json:"priority_date"`
	CurrentStageID          int              `json:"current_stage_id"`
	Tracker                 []StageProgress  `json:"tracker"`
	NextStepEstimate        NextStepEstimate `json:"next_step_estimate"`
	EstimatedCompletionDate string           `json:"estimated_completion_date"`
	IsConcurrentFiling      bool             `json:"is_concurrent_filing"`
	HasEADApplication       bool             `json:"has_ead_application"`
	HasAPApplication        bool             `json:"has_ap_application"`
	AttorneyInfo            *AttorneyInfo    `json:"attorney_info,omitempty"`
	ContactPhone            string           `json:"contact_phone,omitempty"`
	PreferredLanguage       string           `json:"preferred_language,omitempty"`
	// Version is bumped on every successful save and used for compare-and-swap.
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers can modify the result without touching c.
func (c *UserCaseTracker) Clone() *UserCaseTracker {
	if c == nil {
		return nil
	}
	out := *c
	out.Tracker = make([]StageProgress, len(c.Tracker))
	copy(out.Tracker, c.Tracker)
	for i := range out.Tracker {
		if c.Tracker[i].UpdatedAt != nil {
			t := *c.Tracker[i].UpdatedAt
			out.Tracker[i].UpdatedAt = &t
		}
	}
	if c.AttorneyInfo != nil {
		a := *c.AttorneyInfo
		out.AttorneyInfo = &a
	}
	return &out
}

// Progress returns the tracker entry for stageID, or nil if the case has none.
func (c *UserCaseTracker) Progress(stageID int) *StageProgress {
	for i := range c.Tracker {
		if c.Tracker[i].StageID == stageID {
			return &c.Tracker[i]
		}
	}
	return nil
}

// UpdateAction labels a CaseUpdate audit record.
type UpdateAction string

const (
	UpdateActionComplete       UpdateAction = "complete"
	UpdateActionAddNote        UpdateAction = "add_note"
	UpdateActionUpdateEstimate UpdateAction = "update_estimate"
)

// CaseUpdate is one audit record written whenever an administrator changes a stage.
type CaseUpdate struct {
	ID          string                 `json:"id"`
	CaseID      string                 `json:"case_id"`
	StageID     int                    `json:"stage_id"`
	Action      UpdateAction           `json:"action"`
	Data        map[string]interface{} `json:"data,omitempty"`
	AdminUserID string                 `json:"admin_user_id"`
	Timestamp   time.Time              `json:"timestamp"`
}
