package tracking

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/CaseTrack/internal/dashboard"
	"github.com/BTreeMap/CaseTrack/internal/models"
	"github.com/BTreeMap/CaseTrack/internal/notify"
	"github.com/BTreeMap/CaseTrack/internal/store"
)

// enqueueStageCompleted queues the completion notice of stageID for c. Failures are logged; the
// stage update itself already succeeded.
func (s *Service) enqueueStageCompleted(c *models.UserCaseTracker, stageID int, date string) {
	if !s.notify || c.ContactPhone == "" {
		return
	}
	lang := languageOf(c)
	stageName := c.Progress(stageID).Name
	nextName := c.NextStepEstimate.StageName
	if lang == "zh" {
		stageName = dashboard.TranslateStageTitle(stageName)
		nextName = dashboard.TranslateStageTitle(nextName)
	}
	payload := notify.Payload{
		Phone:    c.ContactPhone,
		Language: lang,
		Vars: map[string]string{
			notify.VarCaseNumber:     c.CaseNumber,
			notify.VarStageName:      stageName,
			notify.VarNextStageName:  nextName,
			notify.VarExpectedDate:   c.NextStepEstimate.ExpectedDate,
			notify.VarCompletionDate: c.EstimatedCompletionDate,
		},
	}
	key := fmt.Sprintf("complete:%s:%d:%s", c.UserID, stageID, date)
	if _, err := s.enqueue(c.UserID, store.OutboxKindStageCompleted, payload, key); err != nil {
		slog.Error("Service.enqueueStageCompleted: failed to enqueue", "caseID", c.UserID, "stage", stageID, "error", err)
	}
}

// SweepReminders enqueues reminders for every case with a contact phone: alerts that require an
// action or announce the next step, and the configured notification triggers of the next stage.
// A reminder is sent once per case, subject and target date. It returns the number of reminders
// handed to the outbox; one still pending from an earlier sweep is counted again but not duplicated.
func (s *Service) SweepReminders(ctx context.Context) (int, error) {
	if !s.notify {
		slog.Debug("Service.SweepReminders: notifications disabled")
		return 0, nil
	}
	cases, _, err := s.store.ListCases(store.CaseFilter{})
	if err != nil {
		slog.Error("Service.SweepReminders: store failed", "error", err)
		return 0, err
	}
	now := s.now()
	queued := 0
	for i := range cases {
		if err := ctx.Err(); err != nil {
			return queued, err
		}
		c := &cases[i]
		if c.ContactPhone == "" {
			continue
		}
		lang := languageOf(c)

		for _, alert := range dashboard.Alerts(s.cfg, c, now) {
			if !alert.ActionRequired && alert.ID != dashboard.AlertNextStepSoon {
				continue
			}
			target := models.FormatDate(now.AddDate(0, 0, alert.DaysUntil))
			text := alert.Text(lang)
			payload := notify.Payload{
				Phone:    c.ContactPhone,
				Language: lang,
				Vars: map[string]string{
					notify.VarTitle:      text.Title,
					notify.VarMessage:    text.Message,
					notify.VarCaseNumber: c.CaseNumber,
				},
			}
			key := fmt.Sprintf("reminder:%s:%s:%s", c.UserID, alert.ID, target)
			ok, err := s.enqueue(c.UserID, store.OutboxKindReminder, payload, key)
			if err != nil {
				return queued, err
			}
			if ok {
				queued++
			}
		}

		next := c.NextStepEstimate
		days, err := models.DaysUntil(now, next.ExpectedDate)
		if err != nil {
			continue
		}
		for _, trigger := range s.cfg.TriggersFor(next.StageID) {
			if days <= 0 || days > trigger.DaysBeforeEstimate {
				continue
			}
			payload := notify.Payload{
				Phone:    c.ContactPhone,
				Language: lang,
				Template: trigger.MessageTemplate,
				Vars: map[string]string{
					notify.VarExpectedDate: next.ExpectedDate,
					notify.VarStageName:    next.StageName,
					notify.VarCaseNumber:   c.CaseNumber,
				},
			}
			key := fmt.Sprintf("trigger:%s:%d:%s", c.UserID, next.StageID, next.ExpectedDate)
			ok, err := s.enqueue(c.UserID, store.OutboxKindReminder, payload, key)
			if err != nil {
				return queued, err
			}
			if ok {
				queued++
			}
		}
	}
	slog.Info("Service.SweepReminders: sweep finished", "cases", len(cases), "queued", queued)
	return queued, nil
}

// enqueue adds a message unless one with the same key was already delivered. Pending messages are
// deduplicated by the store.
func (s *Service) enqueue(caseID, kind string, payload notify.Payload, dedupeKey string) (bool, error) {
	delivered, err := s.store.HasDeliveredOutboxMessage(dedupeKey)
	if err != nil {
		return false, err
	}
	if delivered {
		return false, nil
	}
	body, err := payload.Encode()
	if err != nil {
		return false, err
	}
	id, err := s.store.EnqueueOutboxMessage(caseID, kind, body, dedupeKey)
	if err != nil {
		return false, fmt.Errorf("failed to enqueue %s message: %w", kind, err)
	}
	slog.Debug("Service.enqueue: outbox message queued", "caseID", caseID, "kind", kind, "id", id, "dedupeKey", dedupeKey)
	return true, nil
}

func languageOf(c *models.UserCaseTracker) string {
	if c.PreferredLanguage == "zh" {
		return "zh"
	}
	return "en"
}
