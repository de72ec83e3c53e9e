// Package apperr defines the canonical error kinds used across jessica-core
// and the single boundary translation to HTTP responses.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a canonical error category
type Kind string

const (
	KindValidation      Kind = "VALIDATION_ERROR"
	KindAuthentication  Kind = "AUTHENTICATION_ERROR"
	KindPermission      Kind = "PERMISSION_ERROR"
	KindNotConnected    Kind = "NOT_CONNECTED"
	KindReauthRequired  Kind = "REAUTHENTICATION_REQUIRED"
	KindTokenRefresh    Kind = "TOKEN_REFRESH_ERROR"
	KindRateLimit       Kind = "RATE_LIMIT_ERROR"
	KindQuotaExceeded   Kind = "QUOTA_EXCEEDED"
	KindNotFound        Kind = "NOT_FOUND"
	KindConfig          Kind = "CONFIG_ERROR"
	KindExternalService Kind = "EXTERNAL_SERVICE_ERROR"
	KindInternal        Kind = "INTERNAL_ERROR"
)

// Error is a typed application error carrying an HTTP status and optional
// downstream service name.
type Error struct {
	Kind       Kind
	Message    string
	Service    string
	RetryAfter int // seconds, 0 when unknown
	wrapped    error
}

func (e *Error) Error() string {
	if e.Service != "" {
		return fmt.Sprintf("[%s] %s", e.Service, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.wrapped }

// StatusCode maps the error kind to an HTTP status
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication, KindReauthRequired:
		return http.StatusUnauthorized
	case KindPermission:
		return http.StatusForbidden
	case KindNotConnected:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimit, KindQuotaExceeded:
		return http.StatusTooManyRequests
	case KindExternalService, KindTokenRefresh:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Validation creates a 400 validation error
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Authentication creates a 401 authentication error
func Authentication(format string, args ...interface{}) *Error {
	return &Error{Kind: KindAuthentication, Message: fmt.Sprintf(format, args...)}
}

// Permission creates a 403 permission error
func Permission(service, format string, args ...interface{}) *Error {
	return &Error{Kind: KindPermission, Service: service, Message: fmt.Sprintf(format, args...)}
}

// NotConnected signals that no token is on file for the requested provider
func NotConnected(provider string) *Error {
	return &Error{
		Kind:    KindNotConnected,
		Service: provider,
		Message: fmt.Sprintf("no %s account connected - please authenticate first", provider),
	}
}

// ReauthRequired signals an expired token with no refresh token available
func ReauthRequired(provider string) *Error {
	return &Error{
		Kind:    KindReauthRequired,
		Service: provider,
		Message: fmt.Sprintf("%s token expired and no refresh token available - please re-authenticate", provider),
	}
}

// TokenRefresh wraps a failed refresh-token grant
func TokenRefresh(provider string, err error) *Error {
	return &Error{
		Kind:    KindTokenRefresh,
		Service: provider,
		Message: fmt.Sprintf("token refresh failed: %v", err),
		wrapped: err,
	}
}

// RateLimit creates a 429 error carrying an optional retry-after hint
func RateLimit(service string, retryAfter int) *Error {
	return &Error{
		Kind:       KindRateLimit,
		Service:    service,
		RetryAfter: retryAfter,
		Message:    "rate limit exceeded",
	}
}

// NotFound creates a 404 error
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Config signals a missing or invalid configuration value. Raised at first
// use of the misconfigured subsystem, never silently degraded.
func Config(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConfig, Message: fmt.Sprintf(format, args...)}
}

// Internal signals an unclassified server-side failure
func Internal(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}

// External wraps a downstream provider failure not otherwise classified
func External(service string, err error) *Error {
	return &Error{
		Kind:    KindExternalService,
		Service: service,
		Message: err.Error(),
		wrapped: err,
	}
}

// FromStatus classifies a downstream HTTP status into a canonical error.
// Provider adapters raise raw statuses through this single translator rather
// than passing them through unclassified.
func FromStatus(service string, status int, body string) *Error {
	switch {
	case status == http.StatusUnauthorized:
		return &Error{Kind: KindAuthentication, Service: service, Message: "invalid or expired credentials"}
	case status == http.StatusForbidden:
		return &Error{Kind: KindPermission, Service: service, Message: "insufficient permissions or scope"}
	case status == http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimit, Service: service, Message: "rate limit exceeded"}
	case status == http.StatusNotFound:
		return &Error{Kind: KindNotFound, Service: service, Message: "resource not found"}
	case status >= 400 && status < 500:
		return &Error{Kind: KindValidation, Service: service, Message: fmt.Sprintf("request rejected with status %d: %s", status, body)}
	default:
		return &Error{Kind: KindExternalService, Service: service, Message: fmt.Sprintf("status %d: %s", status, body)}
	}
}

// errorResponse is the wire shape for error payloads
type errorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	Service    string `json:"service,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// WriteHTTP serializes any error to the canonical JSON error shape. Unknown
// errors become a generic 500 so internals never leak to the caller.
func WriteHTTP(w http.ResponseWriter, err error) {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = &Error{Kind: KindInternal, Message: "An unexpected error occurred", wrapped: err}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode())
	json.NewEncoder(w).Encode(errorResponse{
		Error:      appErr.Message,
		Code:       string(appErr.Kind),
		Service:    appErr.Service,
		RetryAfter: appErr.RetryAfter,
	})
}

// IsKind reports whether err is an application error of the given kind
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
