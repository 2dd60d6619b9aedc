package estimation

import (
	"errors"
	"testing"
	"time"

	"github.com/BTreeMap/CaseTrack/internal/config"
	"github.com/BTreeMap/CaseTrack/internal/models"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(config.Default(), WithClock(func() time.Time { return fixedNow }))
}

// caseAt builds a case whose stages up to and including current are completed, one day apart
// starting at 2024-01-01.
func caseAt(t *testing.T, e *Engine, visa, center, country string, current int) *models.UserCaseTracker {
	t.Helper()
	c, err := e.InitializeCase("user1", visa, center, "2024-01-01", country)
	if err != nil {
		t.Fatalf("InitializeCase failed: %v", err)
	}
	for i := range c.Tracker {
		if c.Tracker[i].StageID <= current {
			c.Tracker[i].Completed = true
			date, _ := models.AddDays("2024-01-01", c.Tracker[i].StageID-1)
			c.Tracker[i].DateCompleted = date
		}
	}
	c.CurrentStageID = current
	return c
}

func TestCalculateNextStepNamesNextStage(t *testing.T) {
	e := newTestEngine(t)
	for n := 1; n < e.Config().LastStageID(); n++ {
		c := caseAt(t, e, "EB-2", "California Service Center", "Mexico", n)
		got, err := e.CalculateNextStep(c)
		if err != nil {
			t.Fatalf("stage %d: unexpected error: %v", n, err)
		}
		want := e.Config().Stage(n + 1)
		if got.StageID != n+1 || got.StageName != want.Name {
			t.Errorf("stage %d: got next %d %q, want %d %q", n, got.StageID, got.StageName, n+1, want.Name)
		}
	}
}

func TestCalculateNextStepTerminal(t *testing.T) {
	e := newTestEngine(t)
	c := caseAt(t, e, "EB-2", "California Service Center", "China", 10)
	got, err := e.CalculateNextStep(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.StageName != CaseCompleteName || got.EtaDays != 0 || got.ConfidenceLevel != models.ConfidenceHigh {
		t.Errorf("unexpected terminal estimate: %+v", got)
	}
	if got.StageID != 10 || got.ExpectedDate != "2024-05-01" {
		t.Errorf("terminal estimate should stay at stage 10 dated today, got %+v", got)
	}
}

func TestCountryDelayAppliedAtInterviewStage(t *testing.T) {
	e := newTestEngine(t)
	c := caseAt(t, e, "EB-2", "California Service Center", "China", 5)
	got, err := e.CalculateNextStep(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.StageID != 6 {
		t.Fatalf("expected next stage 6, got %d", got.StageID)
	}
	if got.EtaDays != 180+730 {
		t.Errorf("expected 910 days into stage 6, got %d", got.EtaDays)
	}
	// stage 5 completed on 2024-01-05
	if got.ExpectedDate != "2026-07-03" {
		t.Errorf("expected 2026-07-03, got %s", got.ExpectedDate)
	}
	if got.ConfidenceLevel != models.ConfidenceMedium {
		t.Errorf("expected medium confidence entering stage 6, got %s", got.ConfidenceLevel)
	}
}

func TestCountryDelayOnlyAtInterviewStage(t *testing.T) {
	e := newTestEngine(t)
	c := caseAt(t, e, "EB-2", "California Service Center", "China", 6)
	got, err := e.CalculateNextStep(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.EtaDays != 30 {
		t.Errorf("expected plain 6_to_7 duration of 30, got %d", got.EtaDays)
	}
	if got.ConfidenceLevel != models.ConfidenceLow {
		t.Errorf("expected low confidence for China past stage 6, got %s", got.ConfidenceLevel)
	}

	noDelay := caseAt(t, e, "EB-2", "California Service Center", "Mexico", 5)
	got, _ = e.CalculateNextStep(noDelay)
	if got.EtaDays != 180 {
		t.Errorf("expected no delay for Mexico, got %d", got.EtaDays)
	}
}

func TestMissingTransitionFallsBackToStageAverage(t *testing.T) {
	e := newTestEngine(t)

	// EB-1 CSC has no 4_to_5 or 5_to_6 key.
	c := caseAt(t, e, "EB-1", "California Service Center", "India", 4)
	got, err := e.CalculateNextStep(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.EtaDays != 14 {
		t.Errorf("expected stage 5 default average 14, got %d", got.EtaDays)
	}

	// No config at all for this center.
	c = caseAt(t, e, "EB-2", "Vermont Service Center", "China", 5)
	got, _ = e.CalculateNextStep(c)
	if got.EtaDays != 180 {
		t.Errorf("expected stage 6 default average without country delay, got %d", got.EtaDays)
	}
}

func TestConfiguredZeroIsAuthoritative(t *testing.T) {
	cfg := config.Default()
	cfg.ProcessingTimes[0].AvgDurationsDays["2_to_3"] = 0
	e := NewEngine(cfg, WithClock(func() time.Time { return fixedNow }))
	c := caseAt(t, e, "EB-2", "California Service Center", "Mexico", 2)
	got, err := e.CalculateNextStep(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.EtaDays != 0 {
		t.Errorf("expected configured 0 days, got %d", got.EtaDays)
	}
}

func TestCalculateCompletionDateWalksRemainingStages(t *testing.T) {
	e := newTestEngine(t)
	c := caseAt(t, e, "EB-2", "California Service Center", "China", 3)
	got, err := e.CalculateCompletionDate(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 3_to_4 90, 4_to_5 default 14, 5_to_6 180+730, then 30+14+10+7
	want, _ := models.AddDays("2024-01-03", 90+14+180+730+30+14+10+7)
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	final := caseAt(t, e, "EB-2", "California Service Center", "China", 10)
	got, _ = e.CalculateCompletionDate(final)
	if got != "2024-01-10" {
		t.Errorf("final stage should complete on its own completion date, got %s", got)
	}
}

func TestCompletionDateMonotonic(t *testing.T) {
	e := newTestEngine(t)
	base, _ := e.InitializeCase("u", "EB-3", "California Service Center", "2024-01-01", "Philippines")
	prev := ""
	for n := e.Config().LastStageID(); n >= 1; n-- {
		c := base.Clone()
		c.CurrentStageID = n
		got, err := e.CalculateCompletionDate(c)
		if err != nil {
			t.Fatalf("stage %d: %v", n, err)
		}
		if prev != "" && got < prev {
			t.Errorf("completion for stage %d (%s) earlier than for stage %d (%s)", n, got, n+1, prev)
		}
		prev = got
	}
}

func TestUpdateCaseEstimatesAdvances(t *testing.T) {
	e := newTestEngine(t)
	c := caseAt(t, e, "EB-2", "California Service Center", "China", 2)
	c.CurrentStageID = 3
	before := c.Clone()

	patch, err := e.UpdateCaseEstimates(c, 3, "2024-04-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patch.CurrentStageID != 4 {
		t.Errorf("expected current stage 4, got %d", patch.CurrentStageID)
	}
	if patch.NextStepEstimate.StageID != 5 {
		t.Errorf("expected next step 5 from stage 4, got %d", patch.NextStepEstimate.StageID)
	}
	var stage3 models.StageProgress
	for _, p := range patch.Tracker {
		if p.StageID == 3 {
			stage3 = p
		}
	}
	if !stage3.Completed || stage3.DateCompleted != "2024-04-10" {
		t.Errorf("stage 3 not completed in patch: %+v", stage3)
	}
	if c.Tracker[2].Completed || c.CurrentStageID != 3 {
		t.Error("input case was mutated")
	}
	if c.Tracker[2].DateCompleted != before.Tracker[2].DateCompleted {
		t.Error("input tracker entry was mutated")
	}

	applied := patch.Apply(c)
	if applied.CurrentStageID != 4 || applied.UserID != c.UserID || !applied.UpdatedAt.Equal(fixedNow) {
		t.Errorf("unexpected applied case: %+v", applied)
	}
}

func TestUpdateCaseEstimatesNextStepFromCurrentStage(t *testing.T) {
	e := newTestEngine(t)
	c := caseAt(t, e, "EB-2", "California Service Center", "China", 2)
	c.CurrentStageID = 3
	patch, err := e.UpdateCaseEstimates(c, 3, "2024-04-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Next step is computed from the advanced current stage (4), projecting 4->5.
	if patch.NextStepEstimate.EtaDays != 14 || patch.NextStepEstimate.ExpectedDate != "2024-04-24" {
		t.Errorf("unexpected next step: %+v", patch.NextStepEstimate)
	}
}

func TestUpdateCaseEstimatesFinalStage(t *testing.T) {
	e := newTestEngine(t)
	c := caseAt(t, e, "EB-2", "California Service Center", "China", 9)
	c.CurrentStageID = 10
	patch, err := e.UpdateCaseEstimates(c, 10, "2024-06-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patch.CurrentStageID != 10 {
		t.Errorf("final stage must not advance, got %d", patch.CurrentStageID)
	}
	if patch.NextStepEstimate.StageName != CaseCompleteName {
		t.Errorf("expected Case Complete, got %+v", patch.NextStepEstimate)
	}
	if patch.EstimatedCompletionDate != "2024-06-01" {
		t.Errorf("expected completion on final date, got %s", patch.EstimatedCompletionDate)
	}
}

func TestUpdateCaseEstimatesRejectsUnknownStage(t *testing.T) {
	e := newTestEngine(t)
	c := caseAt(t, e, "EB-2", "California Service Center", "China", 3)
	if _, err := e.UpdateCaseEstimates(c, 42, "2024-04-10"); !errors.Is(err, models.ErrStageNotFound) {
		t.Errorf("expected ErrStageNotFound for unconfigured stage, got %v", err)
	}

	c.Tracker = c.Tracker[:5]
	if _, err := e.UpdateCaseEstimates(c, 7, "2024-04-10"); !errors.Is(err, models.ErrStageNotFound) {
		t.Errorf("expected ErrStageNotFound for stage missing from tracker, got %v", err)
	}

	if _, err := e.UpdateCaseEstimates(c, 3, "April 10"); !errors.Is(err, models.ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
}

func TestInvalidCurrentStageIsAnError(t *testing.T) {
	e := newTestEngine(t)
	c := caseAt(t, e, "EB-2", "California Service Center", "China", 3)
	c.CurrentStageID = 0
	if _, err := e.CalculateNextStep(c); !errors.Is(err, models.ErrStageNotFound) {
		t.Errorf("expected ErrStageNotFound, got %v", err)
	}
	c.CurrentStageID = 11
	if _, err := e.CalculateCompletionDate(c); !errors.Is(err, models.ErrStageNotFound) {
		t.Errorf("expected ErrStageNotFound, got %v", err)
	}
}

func TestInitializeCase(t *testing.T) {
	e := newTestEngine(t)
	c, err := e.InitializeCase("user9", "EB-2", "Nebraska Service Center", "2024-02-02", "India")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Tracker) != len(e.Config().Stages) {
		t.Fatalf("expected %d tracker entries, got %d", len(e.Config().Stages), len(c.Tracker))
	}
	if c.CurrentStageID != 1 {
		t.Errorf("expected current stage 1, got %d", c.CurrentStageID)
	}
	for _, p := range c.Tracker {
		if p.Completed {
			t.Errorf("stage %d should not be completed", p.StageID)
		}
		if p.StageID == 1 && p.DateEstimated != "2024-05-01" {
			t.Errorf("stage 1 should be estimated today, got %q", p.DateEstimated)
		}
		if p.StageID != 1 && p.DateEstimated != "" {
			t.Errorf("stage %d should have no estimate, got %q", p.StageID, p.DateEstimated)
		}
	}
	if c.NextStepEstimate.StageID != 2 || c.NextStepEstimate.EtaDays != 10 {
		t.Errorf("unexpected initial next step: %+v", c.NextStepEstimate)
	}
	if c.EstimatedCompletionDate == "" {
		t.Error("expected initial completion date")
	}
}

func TestProjectionsAreIdempotent(t *testing.T) {
	e := newTestEngine(t)
	c := caseAt(t, e, "EB-3", "California Service Center", "India", 4)
	a, _ := e.CalculateNextStep(c)
	b, _ := e.CalculateNextStep(c)
	if a != b {
		t.Errorf("next step differs between calls: %+v vs %+v", a, b)
	}
	d1, _ := e.CalculateCompletionDate(c)
	d2, _ := e.CalculateCompletionDate(c)
	if d1 != d2 {
		t.Errorf("completion differs between calls: %s vs %s", d1, d2)
	}
}

func TestSkippedStagesAreTolerated(t *testing.T) {
	e := newTestEngine(t)
	c := caseAt(t, e, "EB-1", "California Service Center", "Mexico", 3)
	// Stage 5 never happens for this case; stage 6 completes directly.
	c.Tracker[5].Completed = true
	c.Tracker[5].DateCompleted = "2024-03-01"
	c.CurrentStageID = 7
	got, err := e.CalculateNextStep(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.StageID != 8 || got.ExpectedDate != "2024-03-15" {
		t.Errorf("unexpected next step: %+v", got)
	}
	if c.Tracker[4].Completed {
		t.Error("skipped stage must not be completed automatically")
	}
}

func TestEstimate(t *testing.T) {
	e := newTestEngine(t)
	res, err := e.Estimate(models.EstimationRequest{
		VisaType:         "EB-2",
		ProcessingCenter: "California Service Center",
		CountryOfBirth:   "India",
		CurrentStageID:   5,
		CompletedStages:  []models.StageProgress{{StageID: 5, Completed: true, DateCompleted: "2024-01-01"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.NextStepEstimate.EtaDays != 180+1095 {
		t.Errorf("expected 1275 days, got %d", res.NextStepEstimate.EtaDays)
	}
	if res.EstimatedCompletionDate <= res.NextStepEstimate.ExpectedDate {
		t.Errorf("completion %s should follow next step %s", res.EstimatedCompletionDate, res.NextStepEstimate.ExpectedDate)
	}
}

func TestProjectStageDates(t *testing.T) {
	e := newTestEngine(t)
	c := caseAt(t, e, "EB-2", "California Service Center", "Mexico", 8)
	stages, err := e.ProjectStageDates(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// stage 8 completed 2024-01-08
	if stages[8].DateEstimated != "2024-01-18" || stages[9].DateEstimated != "2024-01-25" {
		t.Errorf("unexpected projections: 9=%s 10=%s", stages[8].DateEstimated, stages[9].DateEstimated)
	}
	if c.Tracker[8].DateEstimated != "" {
		t.Error("input tracker was mutated")
	}
}
