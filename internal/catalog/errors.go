package catalog

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrEmptyBody is wrapped by a DecodeError when a 2xx response carries no body.
var ErrEmptyBody = errors.New("empty response body")

// HTTPError is returned when the catalog answers with a non-2xx status.
// Body holds the raw (size-capped) response body; Response.Body can be read again.
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
	Body       []byte
	Response   *http.Response
}

func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	status := strings.TrimSpace(e.Status)
	if status == "" {
		status = fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if detail := summarizeBody(e.Body); detail != "" {
		return fmt.Sprintf("catalog api failed: %s: %s (url=%s)", status, detail, e.URL)
	}
	return fmt.Sprintf("catalog api failed: %s (url=%s)", status, e.URL)
}

// DecodeError is returned when a 2xx body is empty or not of the expected JSON shape.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("catalog response decode failed (url=%s): %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// TransportError wraps DNS, dial, TLS, timeout and cancellation failures.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("catalog request failed (url=%s): %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ConfigError reports an invalid Session construction input.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("catalog config: %s %s", e.Field, e.Reason)
}

func summarizeBody(body []byte) string {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return ""
	}
	if strings.HasPrefix(msg, "<!DOCTYPE html") || strings.HasPrefix(msg, "<html") {
		return ""
	}
	msg = strings.Join(strings.Fields(msg), " ")
	const maxLen = 300
	if len(msg) > maxLen {
		msg = msg[:maxLen] + "..."
	}
	return msg
}
