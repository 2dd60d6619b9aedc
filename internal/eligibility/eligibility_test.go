package eligibility

import (
	"context"
	"testing"
)

func TestDetermineEligibility(t *testing.T) {
	cases := []struct {
		name    string
		answers Answers
		want    string
	}{
		{"married wins", Answers{"q3": true, "q1": true, "q2": true, "q5": true}, CategoryFamilyBasedImmediate},
		{"eb2", Answers{"q1": true, "q2": true, "q5": true}, CategoryEB2},
		{"eb2 missing offer", Answers{"q1": true, "q2": true}, CategoryConsultAttorney},
		{"nothing", Answers{}, CategoryConsultAttorney},
		{"related only", Answers{"q4": true}, CategoryConsultAttorney},
	}
	for _, c := range cases {
		if got := DetermineEligibility(c.answers); got != c.want {
			t.Errorf("%s: got %s, want %s", c.name, got, c.want)
		}
	}
}

func TestEvaluatorReportsMatchedRule(t *testing.T) {
	ev := MustDefault()
	res, err := ev.Determine(context.Background(), Answers{"q1": true, "q2": true, "q5": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.MatchedRule != "q1 && q2 && q5" {
		t.Errorf("unexpected matched rule %q", res.MatchedRule)
	}
	if res.Category.ZH.Title != "就业类（EB-2）" {
		t.Errorf("unexpected zh title %q", res.Category.ZH.Title)
	}
}

func TestCustomRules(t *testing.T) {
	ev, err := NewEvaluator([]Rule{
		{Expression: "q6 || (q2 && !q3)", Category: CategoryEB2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, _ := ev.Determine(context.Background(), Answers{"q2": true})
	if res.CategoryID != CategoryEB2 {
		t.Errorf("expected EB2, got %s", res.CategoryID)
	}
	res, _ = ev.Determine(context.Background(), Answers{"q2": true, "q3": true})
	if res.CategoryID != CategoryConsultAttorney {
		t.Errorf("expected fallback, got %s", res.CategoryID)
	}
}

func TestNewEvaluatorRejectsBadRules(t *testing.T) {
	if _, err := NewEvaluator([]Rule{{Expression: "q1 &&", Category: CategoryEB2}}); err == nil {
		t.Error("expected syntax error")
	}
	if _, err := NewEvaluator([]Rule{{Expression: "q1", Category: "EB9"}}); err == nil {
		t.Error("expected unknown category error")
	}
}

func TestNextQuestion(t *testing.T) {
	if got := NextQuestion("q1"); got != "q2" {
		t.Errorf("expected q2, got %q", got)
	}
	if got := NextQuestion("q6"); got != "" {
		t.Errorf("expected end of questionnaire, got %q", got)
	}
	if got := NextQuestion(""); got != "q1" {
		t.Errorf("expected q1 for unknown id, got %q", got)
	}
}

func TestQuestionsAreBilingual(t *testing.T) {
	qs := Questions()
	if len(qs) != 6 {
		t.Fatalf("expected 6 questions, got %d", len(qs))
	}
	for _, q := range qs {
		if q.Text(LangEN) == "" || q.Text(LangZH) == "" {
			t.Errorf("question %s missing a translation", q.ID)
		}
	}
	qs[0].EN = "changed"
	if Questions()[0].EN == "changed" {
		t.Error("Questions exposes internal slice")
	}
}
