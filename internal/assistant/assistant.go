// Package assistant answers applicant questions about the green-card process.
//
// Questions are first matched against a small bilingual knowledge base. Unmatched questions go to
// an optional generative model primed with the caller's case; without one, or when it fails, a
// default answer pointing to official resources is returned.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/BTreeMap/CaseTrack/internal/config"
	"github.com/BTreeMap/CaseTrack/internal/dashboard"
	"github.com/BTreeMap/CaseTrack/internal/models"
	"github.com/cbroglie/mustache"
)

// Answer sources.
const (
	SourceKnowledgeBase = "knowledge_base"
	SourceGenAI         = "genai"
	SourceDefault       = "default"
)

// Confidence of answers that do not come from the knowledge base.
const (
	GenAIConfidence   = 0.75
	DefaultConfidence = 0.6
)

// Generator produces free-form answers. *genai.Client implements it.
type Generator interface {
	GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Assistant answers chat questions.
type Assistant struct {
	cfg *config.TrackingConfig
	gen Generator
}

// New creates an Assistant. gen may be nil.
func New(cfg *config.TrackingConfig, gen Generator) *Assistant {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Assistant{cfg: cfg, gen: gen}
}

// DetectLanguage returns "zh" when text contains Han characters, else "en".
func DetectLanguage(text string) string {
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			return "zh"
		}
	}
	return "en"
}

// ResolveLanguage maps a requested language ("", "auto", "en", "zh", or a tag like "zh-CN") to
// the answer language.
func ResolveLanguage(requested, text string) string {
	requested = strings.ToLower(strings.TrimSpace(requested))
	switch {
	case requested == "" || requested == "auto":
		return DetectLanguage(text)
	case strings.HasPrefix(requested, "zh"):
		return "zh"
	default:
		return "en"
	}
}

// Answer responds to req. c is the asking user's case, or nil.
func (a *Assistant) Answer(ctx context.Context, req models.ChatRequest, c *models.UserCaseTracker) (models.ChatResponse, error) {
	if err := req.Validate(); err != nil {
		return models.ChatResponse{}, err
	}
	lang := ResolveLanguage(req.Language, req.Message)
	question := strings.ToLower(req.Message)

	for _, canned := range cannedAnswers[lang] {
		if !strings.Contains(question, canned.keyword) {
			continue
		}
		answer := canned.answer
		if answer == "" {
			answer = a.progressAnswer(lang, c)
		}
		slog.Debug("Assistant.Answer: knowledge base match", "keyword", canned.keyword, "lang", lang)
		return models.ChatResponse{Answer: answer, Language: lang, Confidence: canned.confidence, Source: SourceKnowledgeBase}, nil
	}

	if a.gen != nil {
		answer, err := a.gen.GeneratePrompt(ctx, a.systemPrompt(lang, c), req.Message)
		if err == nil {
			return models.ChatResponse{Answer: answer, Language: lang, Confidence: GenAIConfidence, Source: SourceGenAI}, nil
		}
		slog.Warn("Assistant.Answer: generation failed, using default answer", "error", err)
	}
	return models.ChatResponse{Answer: defaultAnswers[lang], Language: lang, Confidence: DefaultConfidence, Source: SourceDefault}, nil
}

func (a *Assistant) progressAnswer(lang string, c *models.UserCaseTracker) string {
	if c == nil {
		return genericProgress[lang]
	}
	out, err := mustache.Render(progressTemplates[lang], a.caseVars(lang, c))
	if err != nil {
		slog.Error("Assistant.progressAnswer: render failed", "error", err)
		return genericProgress[lang]
	}
	return out
}

func (a *Assistant) caseVars(lang string, c *models.UserCaseTracker) map[string]string {
	current := fmt.Sprintf("Stage %d", c.CurrentStageID)
	if s := a.cfg.Stage(c.CurrentStageID); s != nil {
		current = s.Name
	}
	next := c.NextStepEstimate.StageName
	if lang == "zh" {
		current = dashboard.TranslateStageTitle(current)
		next = dashboard.TranslateStageTitle(next)
	}
	return map[string]string{
		"current_stage_id": fmt.Sprint(c.CurrentStageID),
		"current_stage":    current,
		"next_stage":       next,
		"expected_date":    c.NextStepEstimate.ExpectedDate,
		"confidence":       string(c.NextStepEstimate.ConfidenceLevel),
		"completion_date":  c.EstimatedCompletionDate,
		"visa_type":        c.VisaType,
		"center":           c.ProcessingCenter,
		"country":          c.CountryOfBirth,
	}
}

const systemPromptTemplate = `You are a green card application assistant. Answer concisely and accurately, ` +
	`and recommend consulting an immigration attorney for legal advice.{{#case}} ` +
	`The applicant's case: {{{visa_type}}} at the {{{center}}}, born in {{{country}}}, ` +
	`currently at stage {{{current_stage_id}}} ({{{current_stage}}}); next step {{{next_stage}}} ` +
	`expected around {{{expected_date}}}; estimated completion {{{completion_date}}}.{{/case}}` +
	`{{#zh}} Answer in Simplified Chinese.{{/zh}}`

func (a *Assistant) systemPrompt(lang string, c *models.UserCaseTracker) string {
	data := map[string]interface{}{"zh": lang == "zh"}
	if c != nil {
		data["case"] = a.caseVars("en", c)
	}
	out, err := mustache.Render(systemPromptTemplate, data)
	if err != nil {
		slog.Error("Assistant.systemPrompt: render failed", "error", err)
	}
	return out
}
