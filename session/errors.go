package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// RedditError is one entry of a reddit {"json": {"errors": [...]}} payload.
type RedditError struct {
	Code    string
	Message string
	Field   string
}

// APIError is returned for non-2xx responses and for 2xx responses carrying
// reddit errors.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Errors     []RedditError
	Body       string
}

func (e *APIError) Error() string {
	if len(e.Errors) > 0 {
		parts := make([]string, len(e.Errors))
		for i, re := range e.Errors {
			parts[i] = re.Code + ": " + re.Message
			if re.Field != "" {
				parts[i] += " on field " + re.Field
			}
		}
		return fmt.Sprintf("reddit %s %s: %s", e.Method, e.Path, strings.Join(parts, "; "))
	}
	return fmt.Sprintf("HTTP %d %s %s", e.StatusCode, e.Method, e.Path)
}

// IsStatus reports whether err is an *APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// IsForbidden reports whether err is a 403, which reddit returns for missing
// permissions or private threads.
func IsForbidden(err error) bool {
	return IsStatus(err, http.StatusForbidden)
}

// IsNotFound reports whether err is a 404.
func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

func retryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return true
	}
	return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
}

// redditErrors extracts json.errors from a decoded response body.
func redditErrors(v any) []RedditError {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	j, ok := m["json"].(map[string]any)
	if !ok {
		return nil
	}
	list, ok := j["errors"].([]any)
	if !ok {
		return nil
	}
	var out []RedditError
	for _, item := range list {
		fields, ok := item.([]any)
		if !ok || len(fields) == 0 {
			continue
		}
		var re RedditError
		re.Code, _ = fields[0].(string)
		if len(fields) > 1 {
			re.Message, _ = fields[1].(string)
		}
		if len(fields) > 2 {
			re.Field, _ = fields[2].(string)
		}
		out = append(out, re)
	}
	return out
}
