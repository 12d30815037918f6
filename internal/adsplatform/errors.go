package adsplatform

import (
	"context"
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrUnauthorized        = errors.New("upstream: access token rejected")
	ErrRateLimited         = errors.New("upstream: rate limit reached")
	ErrUpstreamUnavailable = errors.New("upstream: host unreachable or transport failure")
	ErrUpstreamError       = errors.New("upstream: internal error (5xx)")
	ErrUpstreamBadResponse = errors.New("upstream: invalid response format or malformed data")
	ErrTimeout             = errors.New("upstream: request timed out")
	ErrRejected            = errors.New("upstream: request rejected")
)

// PlatformError is a transport-level failure of one platform call.
type PlatformError struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error // Nested lower-level error (e.g. net.Error)
}

func (e *PlatformError) Error() string {
	msg := fmt.Sprintf("adsplatform: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *PlatformError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}

// APIError is the error payload the platform returns for a rejected call:
//
//	{"error":{"message":"...","type":"OAuthException","code":190,"error_subcode":463,"fbtrace_id":"..."}}
type APIError struct {
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       int    `json:"code"`
	Subcode    int    `json:"error_subcode,omitempty"`
	UserTitle  string `json:"error_user_title,omitempty"`
	UserMsg    string `json:"error_user_msg,omitempty"`
	TraceID    string `json:"fbtrace_id,omitempty"`
	HTTPStatus int    `json:"-"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("platform error %d", e.Code)
	if e.Subcode != 0 {
		msg = fmt.Sprintf("%s/%d", msg, e.Subcode)
	}
	if e.Type != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Type)
	}
	if e.UserMsg != "" {
		return fmt.Sprintf("%s: %s: %s", msg, e.Message, e.UserMsg)
	}
	return fmt.Sprintf("%s: %s", msg, e.Message)
}

// Unwrap maps well-known platform codes onto the package sentinels.
func (e *APIError) Unwrap() error {
	switch {
	case e.Code == 190 || e.Code == 102:
		return ErrUnauthorized
	case isRateLimitCode(e.Code):
		return ErrRateLimited
	case e.HTTPStatus >= 500:
		return ErrUpstreamError
	default:
		return ErrRejected
	}
}

// Retryable reports whether the same call may succeed later without changes.
func (e *APIError) Retryable() bool {
	return isRateLimitCode(e.Code) || e.Code == 1 || e.Code == 2 || e.HTTPStatus >= 500
}

func isRateLimitCode(code int) bool {
	switch code {
	case 4, 17, 32, 613, 80000, 80003, 80004:
		return true
	}
	return false
}

type errorEnvelope struct {
	Error *APIError `json:"error"`
}

// countsAgainstBreaker keeps caller mistakes from opening the circuit.
func countsAgainstBreaker(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatus >= 500
	}
	return err != nil
}
