// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the retry schedule shared by the adjudication
// callers and the client that retries them.
package httputil

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
)

// MaxRetryAfter caps how long a server-supplied Retry-After may stall a request.
var MaxRetryAfter = time.Minute

// Backoff returns the wait before retry n (1-based): base, then doubling
// each retry.
func Backoff(base time.Duration, n int) time.Duration {
	if n < 1 {
		return 0
	}
	return base << (n - 1)
}

// RetryAfter parses a delta-seconds Retry-After header. HTTP dates and
// malformed values yield zero so the exponential schedule applies.
func RetryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > MaxRetryAfter {
		d = MaxRetryAfter
	}
	return d
}

// RetryAfterHint is implemented by errors that carry a server's requested wait.
type RetryAfterHint interface {
	RetryAfter() time.Duration
}

// Wait returns the delay before retry n after err: the exponential backoff,
// stretched to the server's Retry-After when err carries a longer one.
func Wait(base time.Duration, n int, err error) time.Duration {
	wait := Backoff(base, n)
	var ra time.Duration
	var hint RetryAfterHint
	var ae *anthropic.Error
	switch {
	case errors.As(err, &hint):
		ra = hint.RetryAfter()
	case errors.As(err, &ae) && ae.Response != nil:
		ra = RetryAfter(ae.Response.Header)
	}
	if ra > wait {
		wait = ra
	}
	return wait
}
