package models

import (
	"fmt"
	"strings"
)

// CreateCaseRequest represents the payload for opening a new tracked case.
type CreateCaseRequest struct {
	UserID             string        `json:"user_id"`
	VisaType           string        `json:"visa_type"`
	ProcessingCenter   string        `json:"processing_center"`
	PriorityDate       string        `json:"priority_date"`
	CountryOfBirth     string        `json:"country_of_birth"`
	IsConcurrentFiling bool          `json:"is_concurrent_filing,omitempty"`
	HasEADApplication  bool          `json:"has_ead_application,omitempty"`
	HasAPApplication   bool          `json:"has_ap_application,omitempty"`
	AttorneyInfo       *AttorneyInfo `json:"attorney_info,omitempty"`
	ContactPhone       string        `json:"contact_phone,omitempty"`
	PreferredLanguage  string        `json:"preferred_language,omitempty"`
}

// Validate validates a CreateCaseRequest.
func (r *CreateCaseRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.UserID) == "" {
		missing = append(missing, "user_id")
	}
	if strings.TrimSpace(r.VisaType) == "" {
		missing = append(missing, "visa_type")
	}
	if strings.TrimSpace(r.ProcessingCenter) == "" {
		missing = append(missing, "processing_center")
	}
	if strings.TrimSpace(r.PriorityDate) == "" {
		missing = append(missing, "priority_date")
	}
	if strings.TrimSpace(r.CountryOfBirth) == "" {
		missing = append(missing, "country_of_birth")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingRequiredFields, strings.Join(missing, ", "))
	}
	if _, err := ParseDate(r.PriorityDate); err != nil {
		return err
	}
	return nil
}

// CaseFieldsUpdate represents an administrative edit of a case. Nil fields are left unchanged.
type CaseFieldsUpdate struct {
	CaseNumber         *string       `json:"case_number,omitempty"`
	VisaType           *string       `json:"visa_type,omitempty"`
	ProcessingCenter   *string       `json:"processing_center,omitempty"`
	PriorityDate       *string       `json:"priority_date,omitempty"`
	CountryOfBirth     *string       `json:"country_of_birth,omitempty"`
	IsConcurrentFiling *bool         `json:"is_concurrent_filing,omitempty"`
	HasEADApplication  *bool         `json:"has_ead_application,omitempty"`
	HasAPApplication   *bool         `json:"has_ap_application,omitempty"`
	AttorneyInfo       *AttorneyInfo `json:"attorney_info,omitempty"`
	ContactPhone       *string       `json:"contact_phone,omitempty"`
	PreferredLanguage  *string       `json:"preferred_language,omitempty"`
}

// Validate validates a CaseFieldsUpdate.
func (u *CaseFieldsUpdate) Validate() error {
	for name, v := range map[string]*string{
		"visa_type":         u.VisaType,
		"processing_center": u.ProcessingCenter,
		"country_of_birth":  u.CountryOfBirth,
		"priority_date":     u.PriorityDate,
	} {
		if v != nil && strings.TrimSpace(*v) == "" {
			return fmt.Errorf("%w: %s cannot be blank", ErrMissingRequiredFields, name)
		}
	}
	if u.PriorityDate != nil {
		if _, err := ParseDate(*u.PriorityDate); err != nil {
			return err
		}
	}
	return nil
}

// ChangesClassification reports whether the update touches a field the estimates depend on.
func (u *CaseFieldsUpdate) ChangesClassification() bool {
	return u.VisaType != nil || u.ProcessingCenter != nil || u.CountryOfBirth != nil
}

// ApplyTo writes the non-nil fields into c.
func (u *CaseFieldsUpdate) ApplyTo(c *UserCaseTracker) {
	if u.CaseNumber != nil {
		c.CaseNumber = *u.CaseNumber
	}
	if u.VisaType != nil {
		c.VisaType = *u.VisaType
	}
	if u.ProcessingCenter != nil {
		c.ProcessingCenter = *u.ProcessingCenter
	}
	if u.PriorityDate != nil {
		c.PriorityDate = *u.PriorityDate
	}
	if u.CountryOfBirth != nil {
		c.CountryOfBirth = *u.CountryOfBirth
	}
	if u.IsConcurrentFiling != nil {
		c.IsConcurrentFiling = *u.IsConcurrentFiling
	}
	if u.HasEADApplication != nil {
		c.HasEADApplication = *u.HasEADApplication
	}
	if u.HasAPApplication != nil {
		c.HasAPApplication = *u.HasAPApplication
	}
	if u.AttorneyInfo != nil {
		a := *u.AttorneyInfo
		c.AttorneyInfo = &a
	}
	if u.ContactPhone != nil {
		c.ContactPhone = *u.ContactPhone
	}
	if u.PreferredLanguage != nil {
		c.PreferredLanguage = *u.PreferredLanguage
	}
}

// StageUpdateRequest marks a stage complete, or attaches a note when Completed is false.
type StageUpdateRequest struct {
	CaseID        string `json:"case_id"`
	StageID       int    `json:"stage_id"`
	Completed     *bool  `json:"completed"`
	DateCompleted string `json:"date_completed,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// Validate validates a StageUpdateRequest.
func (r *StageUpdateRequest) Validate() error {
	if strings.TrimSpace(r.CaseID) == "" || r.Completed == nil {
		return fmt.Errorf("%w: case_id, stage_id, completed", ErrMissingRequiredFields)
	}
	if r.StageID <= 0 {
		return ErrInvalidStageID
	}
	if r.DateCompleted != "" {
		if _, err := ParseDate(r.DateCompleted); err != nil {
			return err
		}
	}
	if len(r.Notes) > MaxNotesLength {
		return fmt.Errorf("%w of %d", ErrNotesTooLong, MaxNotesLength)
	}
	return nil
}

// IsCompletion reports whether the request marks the stage complete.
func (r *StageUpdateRequest) IsCompletion() bool {
	return r.Completed != nil && *r.Completed
}

// EstimationRequest asks for a projection for a case that is not stored.
type EstimationRequest struct {
	VisaType         string          `json:"visa_type"`
	ProcessingCenter string          `json:"processing_center"`
	CountryOfBirth   string          `json:"country_of_birth"`
	CurrentStageID   int             `json:"current_stage_id"`
	CompletedStages  []StageProgress `json:"completed_stages,omitempty"`
}

// Validate validates an EstimationRequest.
func (r *EstimationRequest) Validate() error {
	if r.VisaType == "" || r.ProcessingCenter == "" || r.CountryOfBirth == "" {
		return fmt.Errorf("%w: visa_type, processing_center, country_of_birth", ErrMissingRequiredFields)
	}
	if r.CurrentStageID <= 0 {
		return ErrInvalidStageID
	}
	for _, s := range r.CompletedStages {
		if s.DateCompleted == "" {
			continue
		}
		if _, err := ParseDate(s.DateCompleted); err != nil {
			return err
		}
	}
	return nil
}

// EstimationResult is the projection returned for an EstimationRequest.
type EstimationResult struct {
	NextStepEstimate        NextStepEstimate `json:"next_step_estimate"`
	EstimatedCompletionDate string           `json:"estimated_completion_date"`
}

// CaseListResponse is one page of cases.
type CaseListResponse struct {
	Cases []UserCaseTracker `json:"cases"`
	Total int               `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

// PopulationStatus reports whether demo data is loaded.
type PopulationStatus struct {
	Populated bool `json:"populated"`
	Count     int  `json:"count"`
}

// PendingAction counts cases waiting on a user action at a stage.
type PendingAction struct {
	StageID int `json:"stage_id"`
	Count   int `json:"count"`
}

// AdminDashboardData summarizes all cases for the admin portal.
type AdminDashboardData struct {
	TotalCases     int             `json:"total_cases"`
	CasesByStage   map[int]int     `json:"cases_by_stage"`
	RecentUpdates  []CaseUpdate    `json:"recent_updates"`
	PendingActions []PendingAction `json:"pending_actions"`
}

// ChatRequest is a question for the case assistant.
type ChatRequest struct {
	Message  string `json:"message"`
	Language string `json:"language,omitempty"`
	CaseID   string `json:"case_id,omitempty"`
}

// Validate validates a ChatRequest.
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return ErrEmptyMessage
	}
	if len(r.Message) > MaxChatMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// ChatResponse is the assistant's answer.
type ChatResponse struct {
	Answer     string  `json:"answer"`
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}
