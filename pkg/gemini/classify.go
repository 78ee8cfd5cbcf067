package gemini

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/chapterhouse/docbot/pkg/retry"
)

// Classify tags upstream errors for the retry loop. Rate limits, request
// timeouts and provider 5xx responses are transient; everything the provider
// rejected outright (bad auth, invalid cache reference, malformed request)
// is permanent, as is an empty or unusable response body.
func Classify(err error) retry.Class {
	if errors.Is(err, context.Canceled) {
		// Caller is gone; retrying only wastes upstream quota.
		return retry.Permanent
	}
	if errors.Is(err, ErrEmptyResponse) {
		return retry.Permanent
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests,
			apiErr.Code == http.StatusRequestTimeout:
			return retry.Transient
		case apiErr.Code >= 500:
			return retry.Transient
		default:
			return retry.Permanent
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return retry.Transient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return retry.Transient
	}

	// Transport-level failures without a provider verdict: worth retrying.
	return retry.Transient
}

// isStaleCache reports whether the provider rejected the held cache
// reference, meaning it expired or was deleted out from under the process.
func isStaleCache(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound:
		return strings.Contains(strings.ToLower(apiErr.Message), "cache")
	default:
		return false
	}
}
