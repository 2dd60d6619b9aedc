// Package models defines the core data structures for CaseTrack.
//
// It includes the tracking configuration shapes, the per-case tracker aggregate, request payloads
// and the JSON envelope shared by every API response.
package models

import (
	"errors"
)

// Sentinel errors. Callers wrap them with %w; the HTTP layer maps them to statuses with errors.Is.
var (
	ErrMissingRequiredFields = errors.New("missing required fields")
	ErrCaseExists            = errors.New("user already has an active case")
	ErrCaseNotFound          = errors.New("case not found")
	ErrStageNotFound         = errors.New("stage not found")
	ErrInvalidDate           = errors.New("invalid date, expected YYYY-MM-DD")
	ErrVersionConflict       = errors.New("case was modified concurrently")
	ErrMissingCaseID         = errors.New("case id is required")
	ErrInvalidStageID        = errors.New("stage_id must be a positive integer")
	ErrInvalidPagination     = errors.New("page and limit must be positive")
	ErrEmptyMessage          = errors.New("message cannot be empty")
	ErrMessageTooLong        = errors.New("message exceeds maximum length")
	ErrNotesTooLong          = errors.New("notes exceed maximum length")
)

// Input limits.
const (
	MaxNotesLength       = 2000
	MaxChatMessageLength = 1000
	MaxPageLimit         = 100
)

// APIStatus is the status field of every API response.
type APIStatus string

const (
	APIStatusOK    APIStatus = "ok"
	APIStatusError APIStatus = "error"
)

// APIResponse is the JSON envelope of every API response. Message carries a human-readable
// outcome ("Case created") or the error text; Result is omitted on errors.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success wraps result in an ok envelope.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage wraps result in an ok envelope that also carries message.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error returns an error envelope with message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
