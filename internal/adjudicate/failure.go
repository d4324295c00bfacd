// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package adjudicate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
)

// ErrUnresolved is wrapped by every adjudication failure that callers should
// record as an explicit "unresolved" value rather than abort on.
var ErrUnresolved = errors.New("adjudication unresolved")

// ErrPersistence marks cache or audit-log write failures. Losing the audit
// trail is not recoverable, so callers treat it as fatal.
var ErrPersistence = errors.New("adjudication persistence failed")

// FailureClass categorizes why an attempt failed.
type FailureClass int

const (
	FailureNone FailureClass = iota
	FailureParse
	FailureShape
	FailureSchema
	FailureEmpty
	FailureTimeout
	FailureRateLimit
	FailureServer
	FailureClient
	FailureCanceled
)

var failureNames = map[FailureClass]string{
	FailureNone:      "none",
	FailureParse:     "parse",
	FailureShape:     "shape",
	FailureSchema:    "schema",
	FailureEmpty:     "empty",
	FailureTimeout:   "timeout",
	FailureRateLimit: "rate_limit",
	FailureServer:    "server",
	FailureClient:    "client",
	FailureCanceled:  "canceled",
}

func (c FailureClass) String() string {
	if s, ok := failureNames[c]; ok {
		return s
	}
	return fmt.Sprintf("failure(%d)", int(c))
}

// Transient reports whether another attempt may succeed. A response that
// parses and has the right shape but violates the label constraints is a
// permanent rejection.
func (c FailureClass) Transient() bool {
	switch c {
	case FailureParse, FailureShape, FailureEmpty, FailureTimeout, FailureRateLimit, FailureServer:
		return true
	}
	return false
}

// Failure describes a failed adjudication. It matches ErrUnresolved.
type Failure struct {
	Class    FailureClass
	Attempts int
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("adjudication failed (%s after %d attempt(s)): %v", f.Class, f.Attempts, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Is makes errors.Is(err, ErrUnresolved) hold for every Failure.
func (f *Failure) Is(target error) bool { return target == ErrUnresolved }

// StatusError is returned by callers when the service answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string

	// Wait is the server's Retry-After, if it sent one.
	Wait time.Duration
}

// RetryAfter reports the server's requested wait before the next attempt.
func (e *StatusError) RetryAfter() time.Duration { return e.Wait }

func (e *StatusError) Error() string {
	return fmt.Sprintf("adjudication service returned %d: %s", e.Code, e.Body)
}

// classifyTransportError maps a caller error onto a FailureClass.
func classifyTransportError(err error) FailureClass {
	if errors.Is(err, context.Canceled) {
		return FailureCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return FailureTimeout
	}

	code := 0
	var se *StatusError
	var ae *anthropic.Error
	switch {
	case errors.As(err, &se):
		code = se.Code
	case errors.As(err, &ae):
		code = ae.StatusCode
	}
	if code != 0 {
		return classifyStatus(code)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return FailureRateLimit
	case strings.Contains(msg, "status code: 4"):
		return FailureClient
	default:
		return FailureServer
	}
}

func classifyStatus(code int) FailureClass {
	switch {
	case code == 429:
		return FailureRateLimit
	case code == 408:
		return FailureTimeout
	case code >= 500:
		return FailureServer
	default:
		return FailureClient
	}
}
