package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies why an upstream call failed.
type Kind string

const (
	KindHTTP                  Kind = "http_status"
	KindConnection            Kind = "connection"
	KindTimeout               Kind = "timeout"
	KindInvalidResponse       Kind = "invalid_response"
	KindEmptyResponse         Kind = "empty_response"
	KindStream                Kind = "stream"
	KindUnexpectedContentType Kind = "unexpected_content_type"
)

// Error is returned by every client in this package.
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int
	// Detail is a short excerpt of the upstream error body, for logs only.
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" %d", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of an upstream error anywhere in the chain.
func KindOf(err error) (Kind, bool) {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind, true
	}
	return "", false
}

// StatusOf returns the HTTP status of a KindHTTP error, or 0.
func StatusOf(err error) int {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.StatusCode
	}
	return 0
}

// transportError classifies a failure to exchange bytes with the upstream.
func transportError(op string, err error) *Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	return &Error{Kind: KindConnection, Op: op, Err: err}
}
