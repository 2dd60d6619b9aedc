package dashboard

import (
	"fmt"
	"time"

	"github.com/BTreeMap/CaseTrack/internal/config"
	"github.com/BTreeMap/CaseTrack/internal/models"
)

// AlertType is the severity of an alert.
type AlertType string

const (
	AlertInfo     AlertType = "info"
	AlertWarning  AlertType = "warning"
	AlertReminder AlertType = "reminder"
)

// Alert ids.
const (
	AlertNextStepSoon  = "next_step_soon"
	AlertEADExpiring   = "ead_expiring"
	AlertInterviewPrep = "interview_prep"
)

// Alert windows in days.
const (
	NextStepWindowDays  = 30
	EADWarningDays      = 90
	InterviewWindowDays = 60
	// EADStageID is the stage whose completion date starts the EAD validity period.
	EADStageID = 4
)

// AlertText is the localized text of an alert.
type AlertText struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Alert is a time-sensitive notice about a case.
type Alert struct {
	ID             string    `json:"id"`
	Type           AlertType `json:"type"`
	EN             AlertText `json:"en"`
	ZH             AlertText `json:"zh"`
	DaysUntil      int       `json:"days_until"`
	Timestamp      time.Time `json:"timestamp"`
	IsRead         bool      `json:"is_read"`
	ActionRequired bool      `json:"action_required"`
}

// Text returns the alert text in lang, defaulting to English.
func (a Alert) Text(lang string) AlertText {
	if lang == "zh" {
		return a.ZH
	}
	return a.EN
}

// Alerts returns the alerts that apply to c as of now.
func Alerts(cfg *config.TrackingConfig, c *models.UserCaseTracker, now time.Time) []Alert {
	var alerts []Alert

	next := c.NextStepEstimate
	if next.StageName != "" && next.ExpectedDate != "" {
		if days, err := models.DaysUntil(now, next.ExpectedDate); err == nil && days > 0 && days <= NextStepWindowDays {
			alerts = append(alerts, Alert{
				ID:   AlertNextStepSoon,
				Type: AlertInfo,
				EN: AlertText{
					Title:   "Next Step Approaching",
					Message: fmt.Sprintf("Your next step %q is expected in %d days.", next.StageName, days),
				},
				ZH: AlertText{
					Title:   "下一步即将到来",
					Message: fmt.Sprintf("您的下一步\"%s\"预计在%d天内进行。", TranslateStageTitle(next.StageName), days),
				},
				DaysUntil: days,
				Timestamp: now,
			})
		}
	}

	if c.HasEADApplication {
		if ead := c.Progress(EADStageID); ead != nil && ead.Completed && ead.DateCompleted != "" {
			if issued, err := models.ParseDate(ead.DateCompleted); err == nil {
				expires := models.FormatDate(issued.AddDate(1, 0, 0))
				if days, err := models.DaysUntil(now, expires); err == nil && days > 0 && days <= EADWarningDays {
					alerts = append(alerts, Alert{
						ID:   AlertEADExpiring,
						Type: AlertWarning,
						EN: AlertText{
							Title:   "EAD Expiring Soon",
							Message: fmt.Sprintf("Your Employment Authorization Document expires in %d days. Consider filing for renewal.", days),
						},
						ZH: AlertText{
							Title:   "EAD即将到期",
							Message: fmt.Sprintf("您的工作许可证将在%d天后到期。请考虑申请续期。", days),
						},
						DaysUntil:      days,
						Timestamp:      now,
						ActionRequired: true,
					})
				}
			}
		}
	}

	if interview := c.Progress(cfg.InterviewStageID); interview != nil && !interview.Completed && interview.DateEstimated != "" {
		if days, err := models.DaysUntil(now, interview.DateEstimated); err == nil && days > 0 && days <= InterviewWindowDays {
			alerts = append(alerts, Alert{
				ID:   AlertInterviewPrep,
				Type: AlertReminder,
				EN: AlertText{
					Title:   "Interview Preparation",
					Message: fmt.Sprintf("Your interview is estimated in %d days. Start preparing your documents and practice common questions.", days),
				},
				ZH: AlertText{
					Title:   "面试准备",
					Message: fmt.Sprintf("您的面试预计在%d天后进行。请开始准备您的文件并练习常见问题。", days),
				},
				DaysUntil:      days,
				Timestamp:      now,
				ActionRequired: true,
			})
		}
	}

	return alerts
}
