package github

import (
	"errors"
	"net/http"

	"github.com/google/go-github/v81/github"
)

// IsNotFound reports whether a GitHub API call failed with 404. The response
// is consulted first (go-github returns it alongside typed errors); the
// error is unwrapped as a fallback for callers that dropped the response.
func IsNotFound(resp *github.Response, err error) bool {
	return hasStatus(resp, err, http.StatusNotFound)
}

// IsForbidden reports whether a GitHub API call failed with 403.
func IsForbidden(resp *github.Response, err error) bool {
	return hasStatus(resp, err, http.StatusForbidden)
}

// ErrStatusCode extracts the HTTP status from a go-github error, or 0.
func ErrStatusCode(err error) int {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode
	}
	return 0
}

func hasStatus(resp *github.Response, err error, code int) bool {
	if resp != nil && resp.StatusCode == code {
		return true
	}
	return ErrStatusCode(err) == code
}
