// Package testutil provides common test utilities and helpers for CaseTrack tests.
package testutil

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/BTreeMap/CaseTrack/internal/api"
	"github.com/BTreeMap/CaseTrack/internal/config"
	"github.com/BTreeMap/CaseTrack/internal/estimation"
	"github.com/BTreeMap/CaseTrack/internal/models"
	"github.com/BTreeMap/CaseTrack/internal/store"
	"github.com/BTreeMap/CaseTrack/internal/tracking"
	json "github.com/goccy/go-json"
)

// FixedNow is the instant test services treat as "now".
var FixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// FixedClock returns FixedNow.
func FixedClock() time.Time {
	return FixedNow
}

// TestingT is the subset of *testing.T used by the helpers.
type TestingT interface {
	Helper()
	Errorf(format string, args ...interface{})
	Error(args ...interface{})
	Fatalf(format string, args ...interface{})
	Fatal(args ...interface{})
}

// NewTestService creates a tracking service over an in-memory store with the default
// configuration and a clock fixed at FixedNow.
func NewTestService(opts ...tracking.Option) (*tracking.Service, *store.InMemoryStore) {
	st := store.NewInMemoryStore()
	engine := estimation.NewEngine(config.Default(), estimation.WithClock(FixedClock))
	return tracking.NewService(st, engine, opts...), st
}

// NewTestServer creates a test API server with in-memory dependencies.
func NewTestServer(opts ...tracking.Option) (*api.Server, *tracking.Service, *store.InMemoryStore) {
	svc, st := NewTestService(opts...)
	return api.NewServer(svc, nil), svc, st
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t TestingT, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t TestingT, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// DecodeResult decodes the result field of an APIResponse body into target.
func DecodeResult(t TestingT, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	var envelope struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Result  json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	if len(envelope.Result) == 0 {
		t.Fatalf("response has no result (status %q, message %q)", envelope.Status, envelope.Message)
	}
	if err := json.Unmarshal(envelope.Result, target); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t TestingT, method, url string, body interface{}) *http.Request {
	t.Helper()
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

// CreateJSONRequest creates an HTTP request with a raw JSON body.
func CreateJSONRequest(t TestingT, method, url, jsonBody string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(jsonBody))
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AssertCaseUpdateCount validates the number of audit records stored for caseID.
func AssertCaseUpdateCount(t TestingT, st store.Store, caseID string, expected int, context string) {
	t.Helper()
	updates, err := st.ListCaseUpdates(caseID, 0)
	if err != nil {
		t.Fatalf("%s: failed to list case updates: %v", context, err)
	}
	if len(updates) != expected {
		t.Errorf("%s: expected %d case updates, got %d", context, expected, len(updates))
	}
}

// SeedTestCases opens two cases through svc: user123 (EB-2, California, China, with a contact
// phone) and user456 (EB-1, Nebraska, India).
func SeedTestCases(t TestingT, svc *tracking.Service) []*models.UserCaseTracker {
	t.Helper()
	requests := []models.CreateCaseRequest{
		{
			UserID:            "user123",
			VisaType:          "EB-2",
			ProcessingCenter:  "California Service Center",
			PriorityDate:      "2021-03-05",
			CountryOfBirth:    "China",
			HasEADApplication: true,
			ContactPhone:      "+1 (555) 010-1234",
		},
		{
			UserID:           "user456",
			VisaType:         "EB-1",
			ProcessingCenter: "Nebraska Service Center",
			PriorityDate:     "2023-01-15",
			CountryOfBirth:   "India",
		},
	}
	var out []*models.UserCaseTracker
	for _, req := range requests {
		c, err := svc.CreateCase(context.Background(), req)
		if err != nil {
			t.Fatalf("failed to seed case %s: %v", req.UserID, err)
		}
		out = append(out, c)
	}
	return out
}

// AssertStageCompleted checks that stageID of c is completed on date.
func AssertStageCompleted(t TestingT, c *models.UserCaseTracker, stageID int, date string, context string) {
	t.Helper()
	p := c.Progress(stageID)
	if p == nil {
		t.Errorf("%s: case %s has no stage %d", context, c.UserID, stageID)
		return
	}
	if !p.Completed || p.DateCompleted != date {
		t.Errorf("%s: stage %d expected completed on %s, got completed=%v date=%q",
			context, stageID, date, p.Completed, p.DateCompleted)
	}
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t TestingT, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t TestingT, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
