package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"atbat/internal/types"
)

// maxRequestBodySize bounds request bodies. The largest accepted body is a
// swing of three fields.
const maxRequestBodySize = 16 << 10

// APIErrorResponse is the envelope of every error response.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the client-visible part of a *types.AppError.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// JSON writes data as the response body. A value that cannot be encoded is
// replaced by an internal_unexpected_error envelope with status 500.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(envelope(r, types.NewAppError(
			types.ErrCodeInternalUnexpected, "failed to encode response", err)))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes err as an error envelope. Only *types.AppError values reach
// the client as-is; anything else becomes a generic 500 so store and model
// internals never leak.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		appErr = types.NewAppError(types.ErrCodeInternalUnexpected, "an unexpected error occurred", err)
	}
	JSON(w, r, appErr.HTTPStatus(), envelope(r, appErr))
}

func envelope(r *http.Request, e *types.AppError) APIErrorResponse {
	return APIErrorResponse{Error: ErrorDetail{
		Code:      string(e.Code),
		Message:   e.Message,
		Details:   e.Details,
		RequestID: types.GetRequestID(r.Context()),
	}}
}

// DecodeJSON decodes exactly one JSON object from the request body into dst.
// Unknown fields, trailing values, empty and oversized bodies are rejected
// with validation_invalid_json.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}
	if dec.More() {
		return invalidJSON("request body must contain a single JSON object", nil)
	}
	return nil
}

func invalidJSON(msg string, err error) *types.AppError {
	return types.NewAppError(types.ErrCodeValidationInvalidJSON, msg, err)
}

func decodeError(err error) *types.AppError {
	var (
		tooLarge *http.MaxBytesError
		syntax   *json.SyntaxError
		mismatch *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &tooLarge):
		return invalidJSON(fmt.Sprintf("request body must not exceed %d bytes", tooLarge.Limit), err)
	case errors.As(err, &syntax), errors.Is(err, io.ErrUnexpectedEOF):
		return invalidJSON("malformed JSON in request body", err)
	case errors.As(err, &mismatch):
		return invalidJSON("invalid value for field", err).WithDetails(map[string]any{
			"field":    mismatch.Field,
			"expected": mismatch.Type.String(),
		})
	case errors.Is(err, io.EOF):
		return invalidJSON("request body must not be empty", err)
	}
	if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return invalidJSON("unknown field in request body: "+field, err)
	}
	return invalidJSON("invalid JSON in request body", err)
}
