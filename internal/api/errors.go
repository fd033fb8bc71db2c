// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Fixed client-facing messages.
const (
	msgMethodNotAllowed  = "Method not allowed"
	msgKeysNotConfigured = "iLovePDF API keys not configured. Please set ILOVE_PUBLIC_KEY and ILOVE_SECRET_KEY in your environment variables."
	msgBalanceNoKeys     = "iLovePDF API keys not configured"
	msgToolRequired      = "Tool parameter is required"
	msgNoFiles           = "No files uploaded"
	msgMergeMinimum      = "At least 2 PDF files are required for merging"
	msgUnexpected        = "An unexpected error occurred"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Message: message,
	}
}

// NewMethodNotAllowedError creates a 405 error
func NewMethodNotAllowedError() *APIError {
	return &APIError{
		Status:  http.StatusMethodNotAllowed,
		Message: msgMethodNotAllowed,
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// ErrorHandler converts handler errors to the JSON error shape.
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	var httpErr *echo.HTTPError

	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		apiErr = &APIError{
			Status:  httpErr.Code,
			Message: fmt.Sprintf("%v", httpErr.Message),
		}
		if httpErr.Code == http.StatusMethodNotAllowed {
			apiErr.Message = msgMethodNotAllowed
		}
	default:
		apiErr = NewInternalError(msgUnexpected, err)
	}

	if c.Request().Method == http.MethodHead {
		c.NoContent(apiErr.Status)
		return
	}
	c.JSON(apiErr.Status, apiErr)
}
