package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultMessage is shown when an error carries no usable detail.
const DefaultMessage = "An unexpected error occurred. Please try again."

// ErrNotFound is returned when a lookup by id matches nothing.
var ErrNotFound = errors.New("api: not found")

// FieldError is one entry of a validation error.
type FieldError struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// APIError represents an error response from the upstream.
type APIError struct {
	StatusCode int
	Detail     string
	Fields     []FieldError
	Body       string
}

func (e *APIError) Error() string {
	switch {
	case e.Detail != "":
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Detail)
	case len(e.Fields) > 0:
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Fields[0].String())
	default:
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
	}
}

func (f FieldError) String() string {
	if len(f.Loc) == 0 {
		return f.Msg
	}
	return fmt.Sprint(f.Loc[len(f.Loc)-1]) + ": " + f.Msg
}

// parseAPIError detects the two error shapes the upstream emits: a detail
// string and a detail array of field errors.
func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: strings.TrimSpace(string(body))}
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &envelope) != nil || len(envelope.Detail) == 0 {
		return apiErr
	}
	var detail string
	if json.Unmarshal(envelope.Detail, &detail) == nil {
		apiErr.Detail = detail
		return apiErr
	}
	var fields []FieldError
	if json.Unmarshal(envelope.Detail, &fields) == nil {
		apiErr.Fields = fields
	}
	return apiErr
}

// Failure is one rejected item of a bulk mutation.
type Failure struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// BulkResult is the response of a bulk mutation.
type BulkResult[T any] struct {
	Succeeded []T       `json:"succeeded"`
	Failed    []Failure `json:"failed"`
}

// PartialFailureError reports the rejected items of a bulk mutation that
// otherwise succeeded.
type PartialFailureError struct {
	Succeeded int
	Failed    []Failure
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%d of %d items failed: %s", len(e.Failed), len(e.Failed)+e.Succeeded, e.Failed[0].Message)
}

func checkBulk[T any](res BulkResult[T]) error {
	if len(res.Failed) == 0 {
		return nil
	}
	return &PartialFailureError{Succeeded: len(res.Succeeded), Failed: res.Failed}
}

// Message maps err to text suitable for a transient notification.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		if len(apiErr.Fields) > 0 && apiErr.Fields[0].Msg != "" {
			return apiErr.Fields[0].String()
		}
		return DefaultMessage
	}
	var partial *PartialFailureError
	if errors.As(err, &partial) && len(partial.Failed) > 0 && partial.Failed[0].Message != "" {
		return partial.Failed[0].Message
	}
	return DefaultMessage
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
