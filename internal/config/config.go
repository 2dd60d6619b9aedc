// Package config holds the tracking configuration: the ordered stage list, the processing-time
// table and the policies derived from them.
//
// The configuration is read once at startup, either from Default() or from a YAML file via Load,
// and is treated as read-only afterwards.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/BTreeMap/CaseTrack/internal/models"
	"gopkg.in/yaml.v2"
)

// DefaultInterviewStageID is the stage that receives country-specific delays.
const DefaultInterviewStageID = 6

// Error variables for configuration validation
var (
	ErrNoStages             = errors.New("tracking config has no stages")
	ErrNonContiguousStages  = errors.New("stage ids must start at 1 and be contiguous")
	ErrInvalidDuration      = errors.New("invalid stage duration")
	ErrUnknownInterview     = errors.New("interview stage is not a configured stage")
	ErrInvalidTransitionKey = errors.New("invalid transition key")
	ErrInvalidConfidence    = errors.New("invalid confidence policy")
)

// ConfidencePolicy maps the next stage id and the country of birth to a confidence level.
type ConfidencePolicy struct {
	// HighMaxStage is the last next-stage id that still yields high confidence.
	HighMaxStage int `yaml:"high_max_stage" json:"high_max_stage"`
	// MediumMaxStage is the last next-stage id that yields medium confidence regardless of country.
	MediumMaxStage int `yaml:"medium_max_stage" json:"medium_max_stage"`
	// HighBacklogCountries drop to low confidence past MediumMaxStage.
	HighBacklogCountries []string `yaml:"high_backlog_countries" json:"high_backlog_countries"`
}

// Level returns the confidence for a projection into nextStageID.
func (p ConfidencePolicy) Level(nextStageID int, country string) models.ConfidenceLevel {
	if nextStageID <= p.HighMaxStage {
		return models.ConfidenceHigh
	}
	if nextStageID <= p.MediumMaxStage {
		return models.ConfidenceMedium
	}
	for _, c := range p.HighBacklogCountries {
		if c == country {
			return models.ConfidenceLow
		}
	}
	return models.ConfidenceMedium
}

// NotificationTrigger schedules a reminder a number of days before a stage's estimated date.
type NotificationTrigger struct {
	StageID            int    `yaml:"stage_id" json:"stage_id"`
	DaysBeforeEstimate int    `yaml:"days_before_estimate" json:"days_before_estimate"`
	MessageTemplate    string `yaml:"message_template" json:"message_template"`
}

// Option is a value/label pair offered to clients in selection lists.
type Option struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// TrackingConfig is the complete static configuration of the tracker.
type TrackingConfig struct {
	Stages               []models.Stage                `yaml:"stages" json:"stages"`
	ProcessingTimes      []models.ProcessingTimeConfig `yaml:"processing_times" json:"processing_times"`
	InterviewStageID     int                           `yaml:"interview_stage_id" json:"interview_stage_id"`
	Confidence           ConfidencePolicy              `yaml:"confidence" json:"confidence"`
	NotificationTriggers []NotificationTrigger         `yaml:"notification_triggers" json:"notification_triggers"`
	VisaTypes            []Option                      `yaml:"visa_types" json:"visa_types"`
	ProcessingCenters    []Option                      `yaml:"processing_centers" json:"processing_centers"`
	Countries            []Option                      `yaml:"countries" json:"countries"`
}

// Load reads a YAML tracking configuration from path. Sections missing from the file are
// filled in from Default().
func Load(path string) (*TrackingConfig, error) {
	slog.Debug("config.Load: reading tracking config", "path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tracking config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML tracking configuration and validates it.
func Parse(data []byte) (*TrackingConfig, error) {
	var cfg TrackingConfig
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse tracking config: %w", err)
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slog.Debug("config.Parse: tracking config loaded", "stages", len(cfg.Stages), "processing_times", len(cfg.ProcessingTimes))
	return &cfg, nil
}

func (c *TrackingConfig) fillDefaults() {
	def := Default()
	if len(c.Stages) == 0 {
		c.Stages = def.Stages
	}
	if c.ProcessingTimes == nil {
		c.ProcessingTimes = def.ProcessingTimes
	}
	if c.InterviewStageID == 0 {
		c.InterviewStageID = def.InterviewStageID
	}
	if c.Confidence.HighMaxStage == 0 && c.Confidence.MediumMaxStage == 0 {
		c.Confidence = def.Confidence
	}
	if c.NotificationTriggers == nil {
		c.NotificationTriggers = def.NotificationTriggers
	}
	if c.VisaTypes == nil {
		c.VisaTypes = def.VisaTypes
	}
	if c.ProcessingCenters == nil {
		c.ProcessingCenters = def.ProcessingCenters
	}
	if c.Countries == nil {
		c.Countries = def.Countries
	}
}

// Validate checks the structural invariants the estimation engine relies on.
func (c *TrackingConfig) Validate() error {
	if len(c.Stages) == 0 {
		return ErrNoStages
	}
	sort.SliceStable(c.Stages, func(i, j int) bool { return c.Stages[i].StageID < c.Stages[j].StageID })
	for i, s := range c.Stages {
		if s.StageID != i+1 {
			return fmt.Errorf("%w: position %d has stage_id %d", ErrNonContiguousStages, i+1, s.StageID)
		}
		d := s.EstimatedDurationDays
		if d.Min < 0 || d.Max < d.Min || d.Average < d.Min || d.Average > d.Max {
			return fmt.Errorf("%w: stage %d has min=%d average=%d max=%d", ErrInvalidDuration, s.StageID, d.Min, d.Average, d.Max)
		}
	}
	if c.Stage(c.InterviewStageID) == nil {
		return fmt.Errorf("%w: %d", ErrUnknownInterview, c.InterviewStageID)
	}
	for _, pt := range c.ProcessingTimes {
		for key, days := range pt.AvgDurationsDays {
			from, to, err := parseTransitionKey(key)
			if err != nil {
				return fmt.Errorf("%s/%s: %w", pt.VisaType, pt.ProcessingCenter, err)
			}
			if c.Stage(from) == nil || c.Stage(to) == nil || to <= from {
				return fmt.Errorf("%s/%s: %w: %q does not connect configured stages", pt.VisaType, pt.ProcessingCenter, ErrInvalidTransitionKey, key)
			}
			if days < 0 {
				return fmt.Errorf("%s/%s: %w: %q is negative", pt.VisaType, pt.ProcessingCenter, ErrInvalidDuration, key)
			}
		}
		for country, days := range pt.CountrySpecificDelays {
			if days < 0 {
				return fmt.Errorf("%s/%s: %w: delay for %s is negative", pt.VisaType, pt.ProcessingCenter, ErrInvalidDuration, country)
			}
		}
	}
	if c.Confidence.HighMaxStage > c.Confidence.MediumMaxStage {
		return fmt.Errorf("%w: high_max_stage %d exceeds medium_max_stage %d", ErrInvalidConfidence, c.Confidence.HighMaxStage, c.Confidence.MediumMaxStage)
	}
	for _, t := range c.NotificationTriggers {
		if c.Stage(t.StageID) == nil {
			return fmt.Errorf("notification trigger references unknown stage %d", t.StageID)
		}
	}
	return nil
}

func parseTransitionKey(key string) (int, int, error) {
	parts := strings.Split(key, "_to_")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTransitionKey, key)
	}
	from, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTransitionKey, key)
	}
	to, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTransitionKey, key)
	}
	return from, to, nil
}

// Stage returns the configured stage with the given id, or nil.
func (c *TrackingConfig) Stage(id int) *models.Stage {
	// ids are contiguous from 1 after Validate
	if id >= 1 && id <= len(c.Stages) && c.Stages[id-1].StageID == id {
		return &c.Stages[id-1]
	}
	for i := range c.Stages {
		if c.Stages[i].StageID == id {
			return &c.Stages[i]
		}
	}
	return nil
}

// NextStage returns the stage following id, or nil when id is the last stage.
func (c *TrackingConfig) NextStage(id int) *models.Stage {
	return c.Stage(id + 1)
}

// StagesAfter returns every stage with an id greater than id, in ascending order.
func (c *TrackingConfig) StagesAfter(id int) []models.Stage {
	var out []models.Stage
	for _, s := range c.Stages {
		if s.StageID > id {
			out = append(out, s)
		}
	}
	return out
}

// LastStageID returns the id of the final configured stage.
func (c *TrackingConfig) LastStageID() int {
	if len(c.Stages) == 0 {
		return 0
	}
	return c.Stages[len(c.Stages)-1].StageID
}

// ProcessingTime returns the config matching visa type and processing center exactly.
func (c *TrackingConfig) ProcessingTime(visaType, center string) (*models.ProcessingTimeConfig, bool) {
	for i := range c.ProcessingTimes {
		pt := &c.ProcessingTimes[i]
		if pt.VisaType == visaType && pt.ProcessingCenter == center {
			return pt, true
		}
	}
	return nil, false
}

// TriggersFor returns the notification triggers configured for a stage.
func (c *TrackingConfig) TriggersFor(stageID int) []NotificationTrigger {
	var out []NotificationTrigger
	for _, t := range c.NotificationTriggers {
		if t.StageID == stageID {
			out = append(out, t)
		}
	}
	return out
}
