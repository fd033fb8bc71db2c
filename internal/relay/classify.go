package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Cause is the failure class of a relay error.
type Cause string

const (
	CauseAuthentication Cause = "authentication"
	CauseQuota          Cause = "quota"
	CauseInvalidFile    Cause = "invalid_file"
	CauseUnsupported    Cause = "unsupported"
	CauseTimeout        Cause = "timeout"
	CauseOther          Cause = "other"
)

const (
	msgAuthentication = "Authentication failed. Please check your API credentials."
	msgQuota          = "API quota exceeded. Please check your iLovePDF account limits."
	msgInvalidFile    = "Error processing files. Please ensure all files are valid."
	msgInvalidPDF     = "Error processing files. Please ensure all files are valid PDFs."
	msgTimeout        = "Request timed out. Please try with smaller files or try again later."
	msgBalanceQuota   = "Unable to check API quota. Please check your iLovePDF account."
	msgBalanceFailed  = "Failed to fetch API balance"
)

// cause matches the error text against each class in priority order.
func cause(err error) Cause {
	if errors.Is(err, context.DeadlineExceeded) {
		return CauseTimeout
	}
	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "authentication"):
		return CauseAuthentication
	case strings.Contains(text, "quota"), strings.Contains(text, "limit"):
		return CauseQuota
	case strings.Contains(text, "file"):
		return CauseInvalidFile
	case strings.Contains(text, "unsupported"):
		return CauseUnsupported
	case strings.Contains(text, "timeout"):
		return CauseTimeout
	}
	return CauseOther
}

// Classify maps a processing failure to a cause and a user-facing message.
// Unclassified errors keep their own text.
func Classify(err error, toolID string) (Cause, string) {
	if toolID == "" {
		toolID = "unknown"
	}
	if err == nil || err.Error() == "" {
		return CauseOther, fmt.Sprintf("Error processing files with %s", toolID)
	}

	c := cause(err)
	switch c {
	case CauseAuthentication:
		return c, msgAuthentication
	case CauseQuota:
		return c, msgQuota
	case CauseInvalidFile:
		return c, msgInvalidFile
	case CauseUnsupported:
		return c, fmt.Sprintf("Tool %s is not supported or not available.", toolID)
	case CauseTimeout:
		return c, msgTimeout
	}
	return c, err.Error()
}

// ClassifyMerge is Classify for the legacy merge endpoint.
func ClassifyMerge(err error) (Cause, string) {
	if err == nil || err.Error() == "" {
		return CauseOther, "Error merging PDFs"
	}
	c, msg := Classify(err, "merge")
	switch c {
	case CauseInvalidFile:
		msg = msgInvalidPDF
	case CauseUnsupported:
		msg = err.Error()
	}
	return c, msg
}

// ClassifyBalance maps a balance lookup failure. Only authentication and
// quota get dedicated messages.
func ClassifyBalance(err error) (Cause, string) {
	if err == nil || err.Error() == "" {
		return CauseOther, msgBalanceFailed
	}
	switch c := cause(err); c {
	case CauseAuthentication:
		return c, msgAuthentication
	case CauseQuota:
		return c, msgBalanceQuota
	default:
		return c, err.Error()
	}
}
