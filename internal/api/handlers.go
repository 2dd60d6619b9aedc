// Package api provides HTTP handlers for CaseTrack endpoints.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/BTreeMap/CaseTrack/internal/config"
	"github.com/BTreeMap/CaseTrack/internal/eligibility"
	"github.com/BTreeMap/CaseTrack/internal/models"
)

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, "Server.healthHandler", http.MethodGet) {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"service": "casetrack"}))
}

// localizedQuestion is a question rendered in one language.
type localizedQuestion struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Type string `json:"type"`
}

func (s *Server) eligibilityQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, "Server.eligibilityQuestionsHandler", http.MethodGet) {
		return
	}
	lang := requestLanguage(r)
	qs := eligibility.Questions()
	out := make([]localizedQuestion, 0, len(qs))
	for _, q := range qs {
		out = append(out, localizedQuestion{ID: q.ID, Text: q.Text(lang), Type: q.Type})
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"language":  lang,
		"questions": out,
	}))
}

// EvaluateRequest is the body of POST /eligibility/evaluate.
type EvaluateRequest struct {
	Answers         eligibility.Answers `json:"answers"`
	CurrentQuestion string              `json:"current_question,omitempty"`
	Language        string              `json:"language,omitempty"`
}

// EvaluateResponse is the questionnaire outcome in one language.
type EvaluateResponse struct {
	CategoryID   string                   `json:"category_id"`
	Category     eligibility.CategoryText `json:"category"`
	NextQuestion string                   `json:"next_question,omitempty"`
	Language     string                   `json:"language"`
}

func (s *Server) eligibilityEvaluateHandler(w http.ResponseWriter, r *http.Request) {
	const op = "Server.eligibilityEvaluateHandler"
	if r.Body != nil {
		defer r.Body.Close()
	}
	if !allowMethods(w, r, op, http.MethodPost) {
		return
	}
	var req EvaluateRequest
	if !decodeJSON(w, r, op, &req) {
		return
	}
	lang := requestLanguage(r)
	if req.Language != "" {
		lang = "en"
		if strings.HasPrefix(strings.ToLower(req.Language), eligibility.LangZH) {
			lang = eligibility.LangZH
		}
	}
	res, err := s.evaluator.Determine(r.Context(), req.Answers)
	if err != nil {
		writeError(w, op, err)
		return
	}
	resp := EvaluateResponse{
		CategoryID: res.CategoryID,
		Category:   res.Category.Localized(lang),
		Language:   lang,
	}
	if req.CurrentQuestion != "" {
		resp.NextQuestion = eligibility.NextQuestion(req.CurrentQuestion)
	}
	slog.Debug(op+": eligibility determined", "category", res.CategoryID, "rule", res.MatchedRule)
	writeJSONResponse(w, http.StatusOK, models.Success(resp))
}

// TrackingConfigResponse describes the stages and selectable options.
type TrackingConfigResponse struct {
	Stages            []models.Stage  `json:"stages"`
	VisaTypes         []config.Option `json:"visa_types"`
	ProcessingCenters []config.Option `json:"processing_centers"`
	Countries         []config.Option `json:"countries"`
}

func (s *Server) trackingConfigHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, "Server.trackingConfigHandler", http.MethodGet) {
		return
	}
	cfg := s.svc.Config()
	writeJSONResponse(w, http.StatusOK, models.Success(TrackingConfigResponse{
		Stages:            cfg.Stages,
		VisaTypes:         cfg.VisaTypes,
		ProcessingCenters: cfg.ProcessingCenters,
		Countries:         cfg.Countries,
	}))
}

func (s *Server) casesHandler(w http.ResponseWriter, r *http.Request) {
	const op = "Server.casesHandler"
	if r.Body != nil {
		defer r.Body.Close()
	}
	if !allowMethods(w, r, op, http.MethodGet, http.MethodPost) {
		return
	}

	if r.Method == http.MethodGet {
		q := r.URL.Query()
		page, err := queryInt(q.Get("page"))
		if err != nil {
			writeError(w, op, models.ErrInvalidPagination)
			return
		}
		limit, err := queryInt(q.Get("limit"))
		if err != nil {
			writeError(w, op, models.ErrInvalidPagination)
			return
		}
		list, err := s.svc.ListCases(r.Context(), q.Get("user_id"), page, limit)
		if err != nil {
			writeError(w, op, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(list))
		return
	}

	var req models.CreateCaseRequest
	if !decodeJSON(w, r, op, &req) {
		return
	}
	c, err := s.svc.CreateCase(r.Context(), req)
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Case created", c))
}

func (s *Server) caseHandler(w http.ResponseWriter, r *http.Request) {
	const op = "Server.caseHandler"
	if r.Body != nil {
		defer r.Body.Close()
	}
	if !allowMethods(w, r, op, http.MethodGet, http.MethodPut) {
		return
	}
	id := r.PathValue("id")

	if r.Method == http.MethodGet {
		c, err := s.svc.GetCase(r.Context(), id)
		if err != nil {
			writeError(w, op, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(c))
		return
	}

	var upd models.CaseFieldsUpdate
	if !decodeJSON(w, r, op, &upd) {
		return
	}
	c, err := s.svc.UpdateCase(r.Context(), id, upd, r.Header.Get(AdminHeader))
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Case updated", c))
}

func (s *Server) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	const op = "Server.dashboardHandler"
	if !allowMethods(w, r, op, http.MethodGet) {
		return
	}
	view, err := s.svc.Dashboard(r.Context(), r.PathValue("id"), requestLanguage(r))
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(view))
}

func (s *Server) stageCompleteHandler(w http.ResponseWriter, r *http.Request) {
	const op = "Server.stageCompleteHandler"
	if r.Body != nil {
		defer r.Body.Close()
	}
	if !allowMethods(w, r, op, http.MethodPost) {
		return
	}
	var req models.StageUpdateRequest
	if !decodeJSON(w, r, op, &req) {
		return
	}
	c, err := s.svc.UpdateStage(r.Context(), req, r.Header.Get(AdminHeader))
	if err != nil {
		writeError(w, op, err)
		return
	}
	msg := "Note added"
	if req.IsCompletion() {
		msg = "Stage completed"
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage(msg, c))
}

func (s *Server) stageUpdatesHandler(w http.ResponseWriter, r *http.Request) {
	const op = "Server.stageUpdatesHandler"
	if !allowMethods(w, r, op, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		writeError(w, op, models.ErrInvalidPagination)
		return
	}
	updates, err := s.svc.RecentUpdates(r.Context(), q.Get("case_id"), limit)
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(updates))
}

func (s *Server) estimateHandler(w http.ResponseWriter, r *http.Request) {
	const op = "Server.estimateHandler"
	if r.Body != nil {
		defer r.Body.Close()
	}
	if !allowMethods(w, r, op, http.MethodPost) {
		return
	}
	var req models.EstimationRequest
	if !decodeJSON(w, r, op, &req) {
		return
	}
	res, err := s.svc.Estimate(r.Context(), req)
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(res))
}

func (s *Server) populateHandler(w http.ResponseWriter, r *http.Request) {
	const op = "Server.populateHandler"
	if !allowMethods(w, r, op, http.MethodGet, http.MethodPost) {
		return
	}
	if r.Method == http.MethodGet {
		status, err := s.svc.PopulationStatus(r.Context())
		if err != nil {
			writeError(w, op, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(status))
		return
	}
	cases, err := s.svc.Populate(r.Context())
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Sample data loaded", models.PopulationStatus{
		Populated: len(cases) > 0,
		Count:     len(cases),
	}))
}

func (s *Server) adminSummaryHandler(w http.ResponseWriter, r *http.Request) {
	const op = "Server.adminSummaryHandler"
	if !allowMethods(w, r, op, http.MethodGet) {
		return
	}
	summary, err := s.svc.AdminSummary(r.Context())
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(summary))
}

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	const op = "Server.chatHandler"
	if r.Body != nil {
		defer r.Body.Close()
	}
	if !allowMethods(w, r, op, http.MethodPost) {
		return
	}
	var req models.ChatRequest
	if !decodeJSON(w, r, op, &req) {
		return
	}
	var c *models.UserCaseTracker
	if req.CaseID != "" {
		found, err := s.svc.GetCase(r.Context(), req.CaseID)
		if err != nil {
			writeError(w, op, err)
			return
		}
		c = found
	}
	resp, err := s.assistant.Answer(r.Context(), req, c)
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(resp))
}

// queryInt parses an optional integer query parameter; empty means 0.
func queryInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
