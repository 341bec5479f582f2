package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/meecokeeper/internal/common"
)

var (
	ErrUnavailable           = errors.New("server unavailable")
	ErrLocalDataNotAvailable = errors.New("local data unavailable")
)

// APIError is a non-2xx response from the vault or keystore.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
}

// Is lets errors.Is match transport sentinels by status code.
func (e *APIError) Is(target error) bool {
	switch target {
	case common.ErrorNotFound:
		return e.StatusCode == http.StatusNotFound
	case common.ErrorUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrUnavailable:
		return e.StatusCode == http.StatusServiceUnavailable || e.StatusCode == http.StatusBadGateway
	}
	return false
}

type errorsBody struct {
	Errors []struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	} `json:"errors"`
}

// HasErrorCode reports whether the response body lists code among its errors,
// e.g. "username_taken".
func (e *APIError) HasErrorCode(code string) bool {
	var body errorsBody
	if err := json.Unmarshal(e.Body, &body); err != nil {
		return false
	}
	for _, item := range body.Errors {
		if item.Error == code {
			return true
		}
	}
	return false
}

// StatusCode returns the HTTP status of err if it wraps an APIError, else 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
