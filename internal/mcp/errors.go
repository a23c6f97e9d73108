package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/reverie/internal/domain/journal"
	"github.com/rpggio/reverie/internal/domain/quota"
	"github.com/rpggio/reverie/internal/generation"
)

var (
	// ErrUnknownTool indicates a tool name outside the catalog.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidParams indicates arguments that do not decode.
	ErrInvalidParams = errors.New("invalid params")
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) CodeValue() string {
	return e.Code
}

func (e *APIError) MessageValue() string {
	return e.Message
}

func (e *APIError) DetailsValue() any {
	return e.Details
}

func (e *APIError) RecoveryHintValue() string {
	return e.RecoveryHint
}

// MapError maps domain errors to MCP error codes.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var denial *quota.DenialError
	switch {
	case errors.As(err, &denial):
		return &APIError{
			Code:         "QUOTA_EXCEEDED",
			Message:      denial.Denial.Message(),
			Details:      denial.Denial,
			RecoveryHint: "Usage resets at local midnight; call set_plan to upgrade",
		}
	case errors.Is(err, quota.ErrQuotaExceeded):
		return &APIError{Code: "QUOTA_EXCEEDED", Message: "daily limit reached", RecoveryHint: "Wait for the midnight reset or upgrade"}
	case errors.Is(err, journal.ErrEmptyText), errors.Is(err, generation.ErrEmptyText):
		return &APIError{Code: "EMPTY_TEXT", Message: "dream text is empty", RecoveryHint: "Describe the dream in a few words"}
	case errors.Is(err, journal.ErrInvalidDocument):
		return &APIError{Code: "INVALID_DOCUMENT", Message: err.Error(), RecoveryHint: "Pass a document produced by export_journal"}
	case errors.Is(err, journal.ErrInvalidRange):
		return &APIError{Code: "INVALID_RANGE", Message: err.Error(), RecoveryHint: "Use all, week or month"}
	case errors.Is(err, journal.ErrNoEntries):
		return &APIError{Code: "NO_ENTRIES", Message: "journal is empty", RecoveryHint: "Save a dream first"}
	case errors.Is(err, quota.ErrUnknownPlan):
		return &APIError{Code: "UNKNOWN_PLAN", Message: err.Error(), RecoveryHint: "Use free, lite, standard or pro"}
	case errors.Is(err, ErrUnknownTool):
		return &APIError{Code: "UNKNOWN_TOOL", Message: err.Error(), RecoveryHint: "Call tools/list for the catalog"}
	case errors.Is(err, ErrInvalidParams):
		return &APIError{Code: "INVALID_PARAMS", Message: err.Error(), RecoveryHint: "Check the tool's input schema"}
	default:
		return nil
	}
}
