package ilovepdf

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Task state errors.
var (
	ErrTaskNotStarted = errors.New("ilovepdf: task not started")
	ErrNoFiles        = errors.New("ilovepdf: no files added to task")
	ErrNotProcessed   = errors.New("ilovepdf: task not processed")
)

// APIError is a non-2xx reply from the vendor.
type APIError struct {
	Op         string
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString("ilovepdf: ")
	b.WriteString(e.Op)
	if hint := e.Hint(); hint != "" {
		b.WriteString(": ")
		b.WriteString(hint)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	return b.String()
}

// Hint names the failure class implied by the status code.
func (e *APIError) Hint() string {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return "authentication failed"
	case http.StatusPaymentRequired, http.StatusTooManyRequests:
		return "quota limit reached"
	case http.StatusNotFound:
		if e.Op == opStart {
			return "unsupported tool"
		}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if e.Op == opUpload || e.Op == opProcess {
			return "file rejected"
		}
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return "timeout"
	}
	return ""
}

// errorBody covers both error envelopes the API returns:
// {"error":{"type":..,"message":..}} and {"name":..,"message":..}.
type errorBody struct {
	Error   json.RawMessage `json:"error"`
	Name    string          `json:"name"`
	Message string          `json:"message"`
}

func decodeError(op string, resp *http.Response) error {
	apiErr := &APIError{Op: op, StatusCode: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		apiErr.Message = strings.TrimSpace(string(raw))
		return apiErr
	}

	apiErr.Type = body.Name
	apiErr.Message = body.Message
	if len(body.Error) > 0 {
		var nested struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		}
		var plain string
		switch {
		case json.Unmarshal(body.Error, &nested) == nil:
			if nested.Type != "" {
				apiErr.Type = nested.Type
			}
			if nested.Message != "" {
				apiErr.Message = nested.Message
			}
		case json.Unmarshal(body.Error, &plain) == nil && plain != "":
			apiErr.Message = plain
		}
	}
	return apiErr
}
