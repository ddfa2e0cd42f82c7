package apiclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	json "github.com/json-iterator/go"
)

// APIError is a non-2xx answer from the API
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
	Op         string `json:"op,omitempty"`
	TargetID   string `json:"target_id,omitempty"`
	Field      string `json:"field,omitempty"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("[%d] %s: %s", e.StatusCode, e.Code, e.Message)
	if e.Field != "" {
		msg += " (field: " + e.Field + ")"
	}
	return msg
}

// ParseError decodes the error body of resp
func ParseError(resp *resty.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode()}
	if err := json.Unmarshal(resp.Body(), apiErr); err != nil || apiErr.Code == "" {
		apiErr.Code = "UNKNOWN_ERROR"
		apiErr.Message = http.StatusText(resp.StatusCode())
	}
	return apiErr
}

// StatusOf returns the HTTP status of an *APIError in err's chain, or 0
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsUnauthorized checks if error is due to missing/invalid authentication
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

// IsNotFound checks if error is due to a missing resource
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}
