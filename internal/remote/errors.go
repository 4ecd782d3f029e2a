package remote

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/go-github/v58/github"
)

const updateFailedMessage = "GitHub update failed"

// RemoteFetchError is returned when the remote API rejects a read
type RemoteFetchError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("GitHub fetch failed: %s\n%s", e.Status, e.Body)
}

// RemoteUpdateError is returned when the remote API rejects a write
type RemoteUpdateError struct {
	StatusCode int
	Message    string
}

func (e *RemoteUpdateError) Error() string {
	if e.Message == "" {
		return updateFailedMessage
	}
	return e.Message
}

// upstreamFailure extracts the HTTP response and message from errors that
// go-github produces for non-2xx replies
func upstreamFailure(err error) (*http.Response, string, bool) {
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return errResp.Response, errResp.Message, true
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) && rateErr.Response != nil {
		return rateErr.Response, rateErr.Message, true
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) && abuseErr.Response != nil {
		return abuseErr.Response, abuseErr.Message, true
	}

	return nil, "", false
}

func newFetchError(resp *http.Response, message string) *RemoteFetchError {
	return &RemoteFetchError{
		StatusCode: resp.StatusCode,
		Status:     fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		Body:       responseText(resp, message),
	}
}

func newUpdateError(resp *http.Response, message string) *RemoteUpdateError {
	return &RemoteUpdateError{
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}

// responseText returns the raw error body when it is still readable and
// falls back to the decoded message otherwise
func responseText(resp *http.Response, fallback string) string {
	if resp.Body == nil {
		return fallback
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fallback
	}
	if text := strings.TrimSpace(string(data)); text != "" {
		return text
	}
	return fallback
}
