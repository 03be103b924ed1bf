package bridge

import (
	"fmt"
)

// APIError is an operation-level failure reported by the bridge.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("bridge: %s (status %d)", e.Message, e.StatusCode)
	}
	return "bridge: " + e.Message
}

// FloodWaitError is the bridge's back-pressure signal: pause for the
// given number of seconds before retrying this class of request.
type FloodWaitError struct {
	Seconds int
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("bridge: flood wait %ds", e.Seconds)
}

// FloodWaitSeconds exposes the wait for schedulers that absorb
// flood waits as backoff rather than surfacing them.
func (e *FloodWaitError) FloodWaitSeconds() int { return e.Seconds }

// errorResponse is the bridge's error wire shape.
type errorResponse struct {
	Success     bool   `json:"success"`
	Error       string `json:"error"`
	Code        string `json:"code,omitempty"`
	WaitSeconds int    `json:"waitSeconds,omitempty"`
}

// asError converts a decoded error body into a typed error.
func (r *errorResponse) asError(statusCode int) error {
	if r.Code == "FLOOD_WAIT" {
		return &FloodWaitError{Seconds: r.WaitSeconds}
	}
	msg := r.Error
	if msg == "" {
		msg = "request failed"
	}
	return &APIError{StatusCode: statusCode, Message: msg}
}
