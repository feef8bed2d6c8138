// Package fetch provides the shared HTTP fetch layer used by the upstream
// clients: a request error taxonomy, retry with backoff and jitter, and
// client-side rate limiting.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a request outcome. Kinds drive both retry decisions and
// the enrichment cooldown schedule, so classification is deliberately
// coarse and stable.
type Kind string

// Request outcome kinds.
const (
	KindOK          Kind = "ok"
	KindRateLimited Kind = "rate_limited"
	KindServer      Kind = "server"
	KindTimeout     Kind = "timeout"
	KindNetwork     Kind = "network"
	KindAuth        Kind = "auth"
	KindNotFound    Kind = "not_found"
	KindInvalid     Kind = "invalid"
	KindUnknown     Kind = "unknown"
)

// Retryable reports whether a request failing with this kind may be
// retried. Auth, not-found and invalid outcomes are conclusive.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimited, KindServer, KindTimeout, KindNetwork:
		return true
	}
	return false
}

// Transient reports whether the kind describes a temporary upstream
// condition rather than a property of the request itself.
func (k Kind) Transient() bool {
	switch k {
	case KindRateLimited, KindServer, KindTimeout, KindNetwork:
		return true
	}
	return false
}

// ClassifyStatus maps an HTTP status code to a Kind.
func ClassifyStatus(code int) Kind {
	switch {
	case code >= 200 && code < 300:
		return KindOK
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code >= 500:
		return KindServer
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusNotFound:
		return KindNotFound
	case code == http.StatusBadRequest:
		return KindInvalid
	default:
		return KindUnknown
	}
}

// ClassifyErr maps a transport error to a Kind.
func ClassifyErr(err error) Kind {
	if err == nil {
		return KindOK
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindNetwork
	}
	return KindNetwork
}

// Error is a classified request failure.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the Kind from an error chain, defaulting to unknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindOK
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// Errorf builds a classified error with a formatted message.
func Errorf(kind Kind, status int, format string, args ...any) *Error {
	return &Error{Kind: kind, StatusCode: status, Message: fmt.Sprintf(format, args...)}
}
