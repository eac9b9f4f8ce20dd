package source

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/nhle/worklist/internal/model"
)

// ErrorKind classifies an adapter failure.
type ErrorKind int

const (
	// KindUnauthorized means the token is invalid or expired. The caller
	// should re-authenticate; it is never retried here.
	KindUnauthorized ErrorKind = iota + 1

	// KindRateLimited means the remote service throttled the request.
	KindRateLimited

	// KindUnreachable covers network failures, timeouts and 5xx replies.
	KindUnreachable

	// KindMalformedResponse means the body did not match the expected
	// schema.
	KindMalformedResponse

	// KindRejected covers any other non-success status (400, 404, 409...).
	KindRejected
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate_limited"
	case KindUnreachable:
		return "unreachable"
	case KindMalformedResponse:
		return "malformed_response"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// AdapterError is returned by every adapter operation that fails.
type AdapterError struct {
	Source model.SourceType
	Op     string
	Kind   ErrorKind

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// RetryAfter is the server's requested wait for KindRateLimited.
	RetryAfter time.Duration

	Err error
}

func (e *AdapterError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Source, e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (%d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind of the first AdapterError in err's chain,
// or 0 if there is none.
func KindOf(err error) ErrorKind {
	var adapterErr *AdapterError
	if errors.As(err, &adapterErr) {
		return adapterErr.Kind
	}
	return 0
}

// IsAuthError reports whether err (or any error in its chain) is an
// unauthorized AdapterError.
func IsAuthError(err error) bool {
	return KindOf(err) == KindUnauthorized
}

// IsNotFound reports whether err is a rejected request with status 404.
func IsNotFound(err error) bool {
	var adapterErr *AdapterError
	return errors.As(err, &adapterErr) &&
		adapterErr.StatusCode == http.StatusNotFound
}

// RetryAfterOf returns the server's requested wait carried by err, or 0.
func RetryAfterOf(err error) time.Duration {
	var adapterErr *AdapterError
	if errors.As(err, &adapterErr) {
		return adapterErr.RetryAfter
	}
	return 0
}

// KindForStatus maps a non-success HTTP status to an ErrorKind.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnauthorized
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindUnreachable
	default:
		return KindRejected
	}
}

// ParseRetryAfter reads a Retry-After header value given in seconds or as
// an HTTP date. It returns 0 when the header is absent or unparsable.
func ParseRetryAfter(header string, now time.Time) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
