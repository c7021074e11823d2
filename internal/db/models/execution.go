// Package models - execution.go defines the ExecutionRecord model: an immutable
// audit record of one outbound request execution attempt. A record carries
// either a captured HTTP response (any status code) or a transport-level error
// descriptor, never both and never neither.
package models

import "time"

// ExecutionErrorType is the classification stored in an ExecutionError
const ExecutionErrorTypeNetwork = "NETWORK_ERROR"

// ExecutionError describes a transport-level failure (dial, DNS, TLS, timeout).
// HTTP error statuses (4xx/5xx) are not execution errors; they are captured as
// ordinary responses.
type ExecutionError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Type    string `json:"type"`
}

// ExecutionRecord represents one row of the append-only execution history
type ExecutionRecord struct {
	ID              string            `json:"id"`
	RequestID       string            `json:"request_id"`
	UserID          string            `json:"user_id"`
	StatusCode      *int              `json:"status_code"`
	ResponseHeaders map[string]string `json:"response_headers"`
	ResponseBody    *string           `json:"response_body"`
	DurationMs      int64             `json:"duration_ms"`
	Error           *ExecutionError   `json:"error"`
	ExecutedAt      time.Time         `json:"executed_at"`
}

// ExecutionRecordWithContext joins request name and executor username for
// workspace-wide history listings.
type ExecutionRecordWithContext struct {
	ExecutionRecord
	RequestName string `json:"request_name"`
	ExecutedBy  string `json:"executed_by"`
}
