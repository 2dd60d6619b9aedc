// Package eligibility implements the green-card eligibility questionnaire.
//
// Recommendations are produced by an ordered list of rules. Each rule is a boolean expression over
// question ids ("q1 && q2 && q5"), evaluated with gval; the first rule that holds wins and the
// fallback category applies when none does.
package eligibility

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/PaesslerAG/gval"
)

// Rule maps a boolean expression over answers to a category id.
type Rule struct {
	Expression string `json:"expression" yaml:"expression"`
	Category   string `json:"category" yaml:"category"`
}

// DefaultRules reproduces the questionnaire's decision tree.
var DefaultRules = []Rule{
	{Expression: "q3", Category: CategoryFamilyBasedImmediate},
	{Expression: "q1 && q2 && q5", Category: CategoryEB2},
}

// Answers maps question ids to yes/no answers. Missing answers count as "no".
type Answers map[string]bool

// Result is the questionnaire outcome.
type Result struct {
	Category     Category `json:"category"`
	CategoryID   string   `json:"category_id"`
	MatchedRule  string   `json:"matched_rule,omitempty"`
	NextQuestion string   `json:"next_question,omitempty"`
}

type compiledRule struct {
	Rule
	eval gval.Evaluable
}

// Evaluator holds compiled rules.
type Evaluator struct {
	rules    []compiledRule
	fallback string
}

func ruleLanguage() gval.Language {
	return gval.NewLanguage(
		gval.Ident(),
		gval.Parentheses(),
		gval.Constant("true", true),
		gval.Constant("false", false),
		gval.PrefixOperator("!", func(c context.Context, v interface{}) (interface{}, error) {
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("unexpected %T expected bool", v)
			}
			return !b, nil
		}),
		gval.InfixShortCircuit("&&", func(a interface{}) (interface{}, bool) { return false, a == false }),
		gval.InfixBoolOperator("&&", func(a, b bool) (interface{}, error) { return a && b, nil }),
		gval.InfixShortCircuit("||", func(a interface{}) (interface{}, bool) { return true, a == true }),
		gval.InfixBoolOperator("||", func(a, b bool) (interface{}, error) { return a || b, nil }),
	)
}

// NewEvaluator compiles rules. Every referenced category must exist.
func NewEvaluator(rules []Rule) (*Evaluator, error) {
	lang := ruleLanguage()
	ev := &Evaluator{fallback: CategoryConsultAttorney}
	for _, r := range rules {
		if _, ok := CategoryByID(r.Category); !ok {
			return nil, fmt.Errorf("rule %q: unknown category %q", r.Expression, r.Category)
		}
		e, err := lang.NewEvaluable(r.Expression)
		if err != nil {
			return nil, fmt.Errorf("invalid rule expression %q: %w", r.Expression, err)
		}
		ev.rules = append(ev.rules, compiledRule{Rule: r, eval: e})
	}
	slog.Debug("eligibility.NewEvaluator: rules compiled", "count", len(ev.rules))
	return ev, nil
}

// MustDefault returns an Evaluator over DefaultRules.
func MustDefault() *Evaluator {
	ev, err := NewEvaluator(DefaultRules)
	if err != nil {
		panic(err)
	}
	return ev
}

// Determine returns the category recommended for answers.
func (e *Evaluator) Determine(ctx context.Context, answers Answers) (Result, error) {
	params := make(map[string]interface{}, len(questions))
	for _, q := range questions {
		params[q.ID] = answers[q.ID]
	}

	for _, r := range e.rules {
		ok, err := r.eval.EvalBool(ctx, params)
		if err != nil {
			return Result{}, fmt.Errorf("evaluate rule %q: %w", r.Expression, err)
		}
		if ok {
			cat, _ := CategoryByID(r.Category)
			return Result{Category: cat, CategoryID: cat.ID, MatchedRule: r.Expression}, nil
		}
	}
	cat, _ := CategoryByID(e.fallback)
	return Result{Category: cat, CategoryID: cat.ID}, nil
}

// DetermineEligibility evaluates answers against DefaultRules.
func DetermineEligibility(answers Answers) string {
	res, err := MustDefault().Determine(context.Background(), answers)
	if err != nil {
		slog.Error("eligibility.DetermineEligibility: evaluation failed", "error", err)
		return CategoryConsultAttorney
	}
	return res.CategoryID
}
