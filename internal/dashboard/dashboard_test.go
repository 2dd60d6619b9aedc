package dashboard

import (
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/CaseTrack/internal/config"
	"github.com/BTreeMap/CaseTrack/internal/models"
)

func sampleCase() *models.UserCaseTracker {
	cfg := config.Default()
	c := &models.UserCaseTracker{
		UserID:                  "user123",
		CaseNumber:              "MSC2490012345",
		VisaType:                "EB-2",
		ProcessingCenter:        "California Service Center",
		CountryOfBirth:          "China",
		PriorityDate:            "2021-03-05",
		CurrentStageID:          4,
		EstimatedCompletionDate: "2025-09-15",
		HasEADApplication:       true,
		NextStepEstimate: models.NextStepEstimate{
			StageID: 5, StageName: "Case Transferred", EtaDays: 14, ExpectedDate: "2024-06-11", ConfidenceLevel: models.ConfidenceMedium,
		},
	}
	for _, s := range cfg.Stages {
		c.Tracker = append(c.Tracker, models.StageProgress{StageID: s.StageID, Name: s.Name})
	}
	return c
}

func TestStatusOf(t *testing.T) {
	if got := StatusOf(models.StageProgress{StageID: 2, Completed: true}, 4); got != StatusCompleted {
		t.Errorf("expected completed, got %s", got)
	}
	if got := StatusOf(models.StageProgress{StageID: 4}, 4); got != StatusInProgress {
		t.Errorf("expected in_progress, got %s", got)
	}
	if got := StatusOf(models.StageProgress{StageID: 3}, 4); got != StatusPending {
		t.Errorf("expected pending for skipped stage, got %s", got)
	}
}

func TestTimelineSteps(t *testing.T) {
	cfg := config.Default()
	c := sampleCase()
	c.Tracker[0].Completed = true
	c.Tracker[0].DateCompleted = "2024-03-01"
	c.Tracker[1].Completed = true
	c.Tracker[1].DateCompleted = "2024-03-15"
	c.Tracker[5].DateEstimated = "2025-06-01"

	steps := TimelineSteps(cfg, c)
	if len(steps) != 10 {
		t.Fatalf("expected 10 steps, got %d", len(steps))
	}
	if steps[0].Status != StatusCompleted || steps[3].Status != StatusInProgress || steps[6].Status != StatusPending {
		t.Errorf("unexpected statuses: %s %s %s", steps[0].Status, steps[3].Status, steps[6].Status)
	}
	if !steps[2].Skipped || steps[4].Skipped {
		t.Errorf("stage 3 should be skipped and stage 5 not: %v %v", steps[2].Skipped, steps[4].Skipped)
	}
	if steps[0].ID != "stage_1" || steps[0].ZH.Title != "表格 I-130/I-140 已提交" {
		t.Errorf("unexpected first step: %+v", steps[0])
	}
	if !strings.HasSuffix(steps[0].EN.Tooltip, "Completed on March 1, 2024") {
		t.Errorf("unexpected tooltip %q", steps[0].EN.Tooltip)
	}
	if !strings.HasSuffix(steps[5].ZH.Tooltip, "预计 2025年6月1日") {
		t.Errorf("unexpected zh tooltip %q", steps[5].ZH.Tooltip)
	}
	if steps[5].ProcessingTime == nil || steps[5].ProcessingTime.Average != 180 {
		t.Errorf("unexpected processing time %+v", steps[5].ProcessingTime)
	}
}

func TestBuildCaseInfo(t *testing.T) {
	cfg := config.Default()
	info := BuildCaseInfo(cfg, sampleCase(), "en")
	if info.CurrentStep != "EAD/AP Issued" || info.PriorityDate != "March 5, 2021" {
		t.Errorf("unexpected case info: %+v", info)
	}
	if len(info.Receipts) != 1 || info.Receipts[0] != "MSC2490012345" {
		t.Errorf("unexpected receipts: %v", info.Receipts)
	}
	zh := BuildCaseInfo(cfg, sampleCase(), "zh")
	if zh.CurrentStep != "EAD/AP 已发放" || zh.EstimatedCompletion != "2025年9月15日" {
		t.Errorf("unexpected zh case info: %+v", zh)
	}
}

func TestAlertsNextStepSoon(t *testing.T) {
	cfg := config.Default()
	c := sampleCase()
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	alerts := Alerts(cfg, c, now)
	if len(alerts) != 1 || alerts[0].ID != AlertNextStepSoon {
		t.Fatalf("expected only next_step_soon, got %+v", alerts)
	}
	if alerts[0].DaysUntil != 10 || alerts[0].ActionRequired {
		t.Errorf("unexpected alert: %+v", alerts[0])
	}
	if !strings.Contains(alerts[0].ZH.Message, "案件已转移") {
		t.Errorf("zh message should use translated stage name: %q", alerts[0].ZH.Message)
	}

	// Same day and past dates do not alert.
	if got := Alerts(cfg, c, time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)); len(got) != 0 {
		t.Errorf("expected no alerts on the expected date, got %+v", got)
	}
}

func TestAlertsEADExpiring(t *testing.T) {
	cfg := config.Default()
	c := sampleCase()
	c.NextStepEstimate.ExpectedDate = "2030-01-01"
	c.Tracker[3].Completed = true
	c.Tracker[3].DateCompleted = "2024-01-15"

	alerts := Alerts(cfg, c, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC))
	if len(alerts) != 1 || alerts[0].ID != AlertEADExpiring {
		t.Fatalf("expected ead_expiring, got %+v", alerts)
	}
	if alerts[0].DaysUntil != 45 || !alerts[0].ActionRequired || alerts[0].Type != AlertWarning {
		t.Errorf("unexpected alert: %+v", alerts[0])
	}

	c.HasEADApplication = false
	if got := Alerts(cfg, c, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)); len(got) != 0 {
		t.Errorf("expected no EAD alert without application, got %+v", got)
	}
}

func TestAlertsInterviewPrep(t *testing.T) {
	cfg := config.Default()
	c := sampleCase()
	c.NextStepEstimate.ExpectedDate = "2030-01-01"
	c.Tracker[5].DateEstimated = "2025-03-01"

	alerts := Alerts(cfg, c, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	if len(alerts) != 1 || alerts[0].ID != AlertInterviewPrep {
		t.Fatalf("expected interview_prep, got %+v", alerts)
	}
	if alerts[0].DaysUntil != 45 || alerts[0].Type != AlertReminder {
		t.Errorf("unexpected alert: %+v", alerts[0])
	}

	c.Tracker[5].Completed = true
	if got := Alerts(cfg, c, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)); len(got) != 0 {
		t.Errorf("completed interview stage should not alert, got %+v", got)
	}
}

func TestDisplayDate(t *testing.T) {
	if got := DisplayDate("2024-12-01", "en"); got != "December 1, 2024" {
		t.Errorf("unexpected en date %q", got)
	}
	if got := DisplayDate("", "en"); got != "" {
		t.Errorf("empty date should stay empty, got %q", got)
	}
}
