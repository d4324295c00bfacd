// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	assert.Equal(t, time.Duration(0), Backoff(base, 0))
	assert.Equal(t, 100*time.Millisecond, Backoff(base, 1))
	assert.Equal(t, 200*time.Millisecond, Backoff(base, 2))
	assert.Equal(t, 400*time.Millisecond, Backoff(base, 3))
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "seconds", value: "3", want: 3 * time.Second},
		{name: "absent", value: "", want: 0},
		{name: "http date", value: "Wed, 21 Oct 2026 07:28:00 GMT", want: 0},
		{name: "negative", value: "-5", want: 0},
		{name: "capped", value: "3600", want: time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.value != "" {
				h.Set("Retry-After", tt.value)
			}
			assert.Equal(t, tt.want, RetryAfter(h))
		})
	}
}

type hinted struct{ d time.Duration }

func (h hinted) Error() string             { return "throttled" }
func (h hinted) RetryAfter() time.Duration { return h.d }

func TestWait(t *testing.T) {
	base := 10 * time.Millisecond

	assert.Equal(t, 20*time.Millisecond, Wait(base, 2, errors.New("boom")))
	assert.Equal(t, 20*time.Millisecond, Wait(base, 2, hinted{d: time.Millisecond}), "shorter hint keeps the backoff")
	assert.Equal(t, 5*time.Second, Wait(base, 2, fmt.Errorf("call: %w", hinted{d: 5 * time.Second})))

	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{}}
	resp.Header.Set("Retry-After", "2")
	assert.Equal(t, 2*time.Second, Wait(base, 1, &anthropic.Error{StatusCode: 429, Response: resp}))
}
