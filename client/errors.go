package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrUnreachable marks requests that got no response at all, timeouts included.
	ErrUnreachable = errors.New("cannot reach server")
	// ErrSessionTerminated marks authentication failures that ended the session.
	ErrSessionTerminated = errors.New("session terminated")
	ErrNoAccessToken     = errors.New("no access token in refresh response")
	ErrMalformedTokens   = errors.New("token response is missing access or refresh token")
)

// HTTPError is a response with a non-2xx status. The body is kept verbatim.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func newHTTPError(req *Request, resp *Response) *HTTPError {
	return &HTTPError{
		Method:     req.Method,
		Path:       req.Path,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
	}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// Payload decodes the body as JSON. A body that is not JSON is returned as
// a trimmed string; an empty body yields nil.
func (e *HTTPError) Payload() any {
	trimmed := bytes.TrimSpace(e.Body)
	if len(trimmed) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return string(trimmed)
	}
	return v
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

const (
	unreachableMessage = "cannot reach server"
	genericMessage     = "something went wrong"
	validationMessage  = "validation error"
	unknownMessage     = "unknown error"
)

var statusMessages = map[int]string{
	http.StatusBadRequest:          "bad request",
	http.StatusUnauthorized:        "authorization required",
	http.StatusForbidden:           "access denied",
	http.StatusNotFound:            "not found",
	http.StatusInternalServerError: "internal server error",
	http.StatusBadGateway:          "server is temporarily unavailable",
	http.StatusServiceUnavailable:  "service unavailable, try again later",
}

// NormalizeError turns err into a short message for the operator. Payload
// fields are tried in order: message, error, detail. Then a fixed text per
// status, then a generic fallback.
func NormalizeError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrUnreachable) {
		return unreachableMessage
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return genericMessage
	}
	if obj, ok := httpErr.Payload().(map[string]any); ok {
		for _, field := range []string{"message", "error", "detail"} {
			if msg := textField(obj, field); msg != "" {
				return msg
			}
		}
	}
	if msg, ok := statusMessages[httpErr.StatusCode]; ok {
		return msg
	}
	return genericMessage
}

// DescribeError renders validation payloads in full: a plain string body,
// then detail, then message, then every field error as "field: a, b".
func DescribeError(err error) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch data := httpErr.Payload().(type) {
		case string:
			return data
		case map[string]any:
			if msg := textField(data, "detail"); msg != "" {
				return msg
			}
			if msg := textField(data, "message"); msg != "" {
				return msg
			}
			return fieldErrors(data)
		}
	}
	if err != nil {
		return err.Error()
	}
	return unknownMessage
}

func fieldErrors(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+": "+stringify(data[k]))
	}
	if len(lines) == 0 {
		return validationMessage
	}
	return strings.Join(lines, "\n")
}

// textField returns a string value, or a list of strings joined by "; ".
func textField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	}
	return ""
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, ", ")
	case nil:
		return "null"
	case map[string]any:
		b, _ := json.Marshal(val)
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
