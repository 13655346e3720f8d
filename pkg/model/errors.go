package model

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorKind is the machine-distinguishable category of a text or audio
// service failure.
type ErrorKind string

const (
	ErrorKindTransport      ErrorKind = "transport"
	ErrorKindAuth           ErrorKind = "auth"
	ErrorKindRateLimit      ErrorKind = "rate_limit"
	ErrorKindTimeout        ErrorKind = "timeout"
	ErrorKindCanceled       ErrorKind = "canceled"
	ErrorKindContentPolicy  ErrorKind = "content_policy"
	ErrorKindInvalidRequest ErrorKind = "invalid_request"
	ErrorKindService        ErrorKind = "service"
)

// Retryable reports whether repeating the same request can plausibly succeed.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrorKindRateLimit, ErrorKindTransport, ErrorKindService:
		return true
	default:
		return false
	}
}

// ProviderError is returned by provider packages once they have mapped an SDK
// or HTTP failure onto an ErrorKind.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s error (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func NewProviderError(provider string, kind ErrorKind, statusCode int, err error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Kind:       kind,
		StatusCode: statusCode,
		Err:        err,
	}
}

var contentPolicyMarkers = []string{
	"content_policy",
	"content policy",
	"content_filter",
	"safety",
	"blocked",
}

// KindFromStatus maps an HTTP status (plus the provider's error code or message,
// used to spot content-policy rejections) onto an ErrorKind.
func KindFromStatus(statusCode int, detail string) ErrorKind {
	switch {
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return ErrorKindAuth
	case statusCode == http.StatusTooManyRequests:
		return ErrorKindRateLimit
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusGatewayTimeout:
		return ErrorKindTimeout
	case statusCode >= 400 && statusCode < 500:
		if isContentPolicyDetail(detail) {
			return ErrorKindContentPolicy
		}
		return ErrorKindInvalidRequest
	default:
		return ErrorKindService
	}
}

func isContentPolicyDetail(detail string) bool {
	normalized := strings.ToLower(detail)
	for _, marker := range contentPolicyMarkers {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}

// ClassifyError returns the ErrorKind for any error produced while calling a
// provider. Context errors win over provider classification so that an
// overall request timeout is always reported as a timeout.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ErrorKindCanceled
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Kind
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorKindTimeout
		}
		return ErrorKindTransport
	}

	return ErrorKindService
}
