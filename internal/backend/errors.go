package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotFound signals that no backend record exists for the credential.
// It is not a failure: it is the trigger for the create path.
var ErrNotFound = errors.New("user record not found")

// APIError is a non-2xx reply from the backend-of-record, carrying the
// human-readable detail message the backend includes in its error body.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// IsNotFound reports whether err means "no record for this credential".
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsAuthRejected reports whether err means the cached identity is no
// longer valid (401/403). Distinct from generic server errors, which must
// not clear cached state.
func IsAuthRejected(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}

// IsAlreadyOnboarded classifies the backend's "already onboarded" submit
// rejection, which is distinguished only by a substring of the detail
// message. A fragile but load-bearing contract; kept as a compatibility
// shim until the backend grows a structured error code.
func IsAlreadyOnboarded(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "already onboarded")
}
