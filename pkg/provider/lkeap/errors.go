package lkeap

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/lkeap-plugin/lkeap/pkg/model"
)

// mapVendorError collapses any failure of a vendor call into the single
// invocation error kind. Rate limits, auth failures and server errors are
// not distinguished; retry policy belongs to the host.
func mapVendorError(err error) *model.Error {
	var me *model.Error
	if errors.As(err, &me) && me.Type == model.ErrorTypeInvoke {
		return me
	}
	return model.NewInvokeError("Failed to invoke model: "+err.Error(), err)
}

// StatusError is a non-2xx response from the vendor.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// newStatusError reads the vendor error body and builds a StatusError with
// a descriptive message.
func newStatusError(resp *http.Response) *StatusError {
	message := extractErrorMessage(resp.Body)

	if message == "" {
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			message = "backend authentication failed"
		case resp.StatusCode == http.StatusTooManyRequests:
			message = "backend rate limit exceeded"
		case resp.StatusCode >= http.StatusInternalServerError:
			message = "backend server error"
		default:
			message = "unexpected backend error"
		}
	}

	return &StatusError{StatusCode: resp.StatusCode, Message: message}
}

// networkError wraps connection refused, DNS and timeout failures.
func networkError(err error) error {
	return fmt.Errorf("backend connection error: %w", err)
}

// extractErrorMessage returns error.message from an OpenAI-style error body.
func extractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 || !gjson.ValidBytes(data) {
		return ""
	}

	return gjson.GetBytes(data, "error.message").String()
}

// inBandError returns the error object delivered inside an SSE data line,
// or nil when the payload is a regular chunk.
func inBandError(payload string) error {
	e := gjson.Get(payload, "error")
	if !e.Exists() || e.Type == gjson.Null {
		return nil
	}
	message := e.Get("message").String()
	if message == "" {
		message = e.String()
	}
	return fmt.Errorf("stream error: %s", message)
}
