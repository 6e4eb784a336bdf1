package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// Handlers use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationMissingField   ErrorCode = "validation_missing_required_field"
	ErrCodeValidationLaunchSpeed    ErrorCode = "validation_launch_speed_out_of_range"
	ErrCodeValidationLaunchAngle    ErrorCode = "validation_launch_angle_out_of_range"
	ErrCodeValidationBearing        ErrorCode = "validation_invalid_bearing"
	ErrCodeValidationScenarioIndex  ErrorCode = "validation_invalid_scenario_index"
	ErrCodeValidationInvalidRequest ErrorCode = "validation_invalid_request"
	ErrCodeValidationInvalidJSON    ErrorCode = "validation_invalid_json"

	// Not Found (404)
	ErrCodeNotFoundScenario ErrorCode = "not_found_scenario"
	ErrCodeNotFoundSession  ErrorCode = "not_found_session"
	ErrCodeNotFoundRoute    ErrorCode = "not_found_route"

	// Method Not Allowed (405)
	ErrCodeMethodNotAllowed ErrorCode = "method_not_allowed"

	// Conflict (409)
	ErrCodeConflictAlreadyResolved ErrorCode = "conflict_already_resolved"
	ErrCodeConflictSessionModified ErrorCode = "conflict_session_modified"

	// Internal/Upstream (500/502)
	ErrCodeInternalUnexpected     ErrorCode = "internal_unexpected_error"
	ErrCodeInternalModel          ErrorCode = "internal_model_error"
	ErrCodeInternalSchemaMismatch ErrorCode = "internal_schema_mismatch"
	ErrCodeInternalSessionStore   ErrorCode = "internal_session_store_error"
	ErrCodeUpstreamModel          ErrorCode = "upstream_model_unavailable"
)

// statusByPrefix is consulted in order; the first matching prefix wins.
var statusByPrefix = []struct {
	prefix string
	status int
}{
	{"validation_", http.StatusBadRequest},
	{"not_found_", http.StatusNotFound},
	{"method_", http.StatusMethodNotAllowed},
	{"conflict_", http.StatusConflict},
	{"upstream_", http.StatusBadGateway},
}

// HTTPStatus derives the response status from the code's category prefix.
// internal_ codes and anything unrecognized map to 500.
func (c ErrorCode) HTTPStatus() int {
	for _, p := range statusByPrefix {
		if strings.HasPrefix(string(c), p.prefix) {
			return p.status
		}
	}
	return http.StatusInternalServerError
}

// AppError is the standard application error type.
// Domain and handler errors are expressed as AppError to get consistent
// error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// CodeOf returns the ErrorCode of the first AppError in err's chain, or the
// empty code when there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
