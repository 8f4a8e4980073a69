package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// Error kinds reported by Kind.
const (
	KindNetwork    = "network"
	KindHTTPStatus = "http_status"
	KindNotFound   = "not_found"
	KindMalformed  = "malformed"
	KindCanceled   = "canceled"
	KindUnknown    = "unknown"
)

var (
	// ErrNotFound marks a lookup that produced no data (404 or a table miss).
	ErrNotFound = errors.New("data not found")

	// ErrMalformed marks a response whose shape did not match expectations.
	ErrMalformed = errors.New("malformed response")
)

// StatusError is a non-2xx reply from an upstream API.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Service, e.StatusCode, body)
}

// NewStatusError builds a StatusError, wrapping it as transient when the
// status code is safe to retry.
func NewStatusError(service string, statusCode int, body []byte) error {
	se := &StatusError{Service: service, StatusCode: statusCode, Body: string(body)}
	if IsTransientHTTPStatus(statusCode) {
		return NewTransientError(se, statusCode)
	}
	return se
}

// TransientError wraps an error that is safe to retry (e.g., 429, 5xx, network timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or if it matches common transient error patterns (network
// timeouts, connection resets, DNS failures).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	return isNetworkFailure(err)
}

func isNetworkFailure(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"connection refused",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
		"client.timeout exceeded",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}

// Kind classifies err into one of the Kind* categories for logging.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrMalformed):
		return KindMalformed
	case errors.Is(err, context.Canceled):
		return KindCanceled
	}

	var se *StatusError
	if errors.As(err, &se) {
		return KindHTTPStatus
	}
	if isNetworkFailure(err) {
		return KindNetwork
	}
	return KindUnknown
}
