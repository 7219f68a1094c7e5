package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// APIError is a non-2xx response from the GitHub REST API.
type APIError struct {
	StatusCode       int
	Message          string
	DocumentationURL string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

// IsRateLimited reports whether err is a primary (403) or secondary (429)
// rate limit response.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == 429 {
		return true
	}
	lower := strings.ToLower(apiErr.Message)
	return apiErr.StatusCode == 403 &&
		(strings.Contains(lower, "rate limit") || strings.Contains(lower, "abuse detection"))
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var wire struct {
		Message          string `json:"message"`
		DocumentationURL string `json:"documentation_url"`
	}
	if json.Unmarshal(body, &wire) == nil && wire.Message != "" {
		apiErr.Message = wire.Message
		apiErr.DocumentationURL = wire.DocumentationURL
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(body))
	return apiErr
}
