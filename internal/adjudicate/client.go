// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package adjudicate resolves ambiguous annotations through an external
// service. Every answer is constrained to a closed label set, validated,
// cached by input fingerprint, and written to an append-only audit log.
package adjudicate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/pdiddy/trial-enricher/internal/httputil"
	"github.com/pdiddy/trial-enricher/pkg/types"
)

// backoffBase is the delay before the second attempt; each later attempt
// doubles it, and a longer Retry-After from the service wins. Tests override
// this to avoid real sleeps.
var backoffBase = time.Second

const defaultMaxAttempts = 3

// Cache stores validated decisions by fingerprint.
type Cache interface {
	Get(ctx context.Context, fingerprint string) (types.CacheEntry, bool, error)
	Put(ctx context.Context, entry types.CacheEntry) error
}

// AuditLog records every adjudication outcome. Append must be durable before
// it returns.
type AuditLog interface {
	Append(ctx context.Context, entry types.AdjudicationLogEntry) error
}

// Adjudicator is what the layers depend on. *Client implements it.
type Adjudicator interface {
	Adjudicate(ctx context.Context, req Request) (Verdict, error)
}

// Verdict is a resolved adjudication.
type Verdict struct {
	Decision    types.Decision
	Fingerprint string
	CacheHit    bool
}

// Has reports whether label was selected.
func (v Verdict) Has(label string) bool {
	for _, l := range v.Decision.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Options configures a Client.
type Options struct {
	Caller            Caller
	Cache             Cache
	Log               AuditLog
	DictionaryVersion string
	Model             string
	RunID             string

	// MaxAttempts bounds calls per request, including the first. Zero means 3.
	MaxAttempts int

	// AttemptTimeout bounds one call. Zero disables the per-attempt deadline.
	AttemptTimeout time.Duration

	// RequestsPerSecond throttles outgoing calls. Zero or less disables throttling.
	RequestsPerSecond float64

	Logger *slog.Logger
}

// Stats counts client activity since creation.
type Stats struct {
	Calls      int64
	CacheHits  int64
	Resolved   int64
	Rejected   int64
	Unresolved int64
}

// Client is the adjudicator client. It is safe for concurrent use; concurrent
// requests with the same fingerprint share one external call.
type Client struct {
	caller      Caller
	cache       Cache
	log         AuditLog
	dictVersion string
	model       string
	runID       string
	maxAttempts int
	timeout     time.Duration
	limiter     *rate.Limiter
	logger      *slog.Logger
	group       singleflight.Group
	now         func() time.Time

	calls      atomic.Int64
	cacheHits  atomic.Int64
	resolved   atomic.Int64
	rejected   atomic.Int64
	unresolved atomic.Int64
}

// NewClient validates opts and returns a Client.
func NewClient(opts Options) (*Client, error) {
	if opts.Caller == nil {
		return nil, errors.New("adjudicate: caller is required")
	}
	if opts.Cache == nil || opts.Log == nil {
		return nil, errors.New("adjudicate: cache and audit log are required")
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Client{
		caller:      opts.Caller,
		cache:       opts.Cache,
		log:         opts.Log,
		dictVersion: opts.DictionaryVersion,
		model:       opts.Model,
		runID:       opts.RunID,
		maxAttempts: opts.MaxAttempts,
		timeout:     opts.AttemptTimeout,
		limiter:     rate.NewLimiter(limit, 1),
		logger:      opts.Logger,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() Stats {
	return Stats{
		Calls:      c.calls.Load(),
		CacheHits:  c.cacheHits.Load(),
		Resolved:   c.resolved.Load(),
		Rejected:   c.rejected.Load(),
		Unresolved: c.unresolved.Load(),
	}
}

// Adjudicate answers req from the cache or, on a miss, from the service.
// A failed adjudication returns an error matching ErrUnresolved; a cache or
// audit-log write failure returns an error matching ErrPersistence.
func (c *Client) Adjudicate(ctx context.Context, req Request) (Verdict, error) {
	if err := req.validate(); err != nil {
		return Verdict{}, err
	}
	fp := Fingerprint(req, c.dictVersion)

	ctx, span := otel.Tracer("trial-enricher/adjudicate").Start(ctx, "adjudicate.call")
	defer span.End()
	span.SetAttributes(
		attribute.String("adjudicate.task", string(req.Task)),
		attribute.String("adjudicate.fingerprint", fp),
	)

	if v, ok, err := c.lookup(ctx, fp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Verdict{}, err
	} else if ok {
		span.SetAttributes(attribute.Bool("adjudicate.cache_hit", true))
		return v, nil
	}

	leader := false
	res, err, _ := c.group.Do(fp, func() (any, error) {
		leader = true
		// A flight that finished while we waited may have filled the cache.
		if v, ok, err := c.lookup(ctx, fp); err != nil || ok {
			return v, err
		}
		v, err := c.resolve(ctx, req, fp)
		return v, err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Verdict{}, err
	}
	v := res.(Verdict)
	if !leader {
		// Answered by another caller's flight without a call of our own.
		v.CacheHit = true
		c.cacheHits.Add(1)
	}
	span.SetAttributes(attribute.Bool("adjudicate.cache_hit", v.CacheHit))
	return v, nil
}

func (c *Client) lookup(ctx context.Context, fp string) (Verdict, bool, error) {
	entry, ok, err := c.cache.Get(ctx, fp)
	if err != nil {
		return Verdict{}, false, fmt.Errorf("%w: reading cache: %v", ErrPersistence, err)
	}
	if !ok {
		return Verdict{}, false, nil
	}
	c.cacheHits.Add(1)
	return Verdict{Decision: entry.Decision, Fingerprint: fp, CacheHit: true}, true, nil
}

// resolve runs the attempt loop for a cache miss.
func (c *Client) resolve(ctx context.Context, req Request, fp string) (Verdict, error) {
	prompt, err := renderPrompt(req)
	if err != nil {
		return Verdict{}, err
	}

	entry := types.AdjudicationLogEntry{
		RunID:             c.runID,
		Fingerprint:       fp,
		Task:              req.Task,
		DictionaryVersion: c.dictVersion,
		Model:             c.model,
		Query:             systemPrompt + "\n\n" + prompt,
	}

	var (
		lastErr   error
		lastClass FailureClass
	)
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		entry.Attempts = attempt
		if attempt > 1 {
			if err := sleep(ctx, httputil.Wait(backoffBase, attempt-1, lastErr)); err != nil {
				lastErr, lastClass = err, FailureCanceled
				break
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			lastErr, lastClass = err, FailureCanceled
			break
		}

		c.calls.Add(1)
		raw, err := c.call(ctx, prompt)
		if err != nil {
			lastErr, lastClass = err, classifyTransportError(err)
			c.logger.Warn("adjudication attempt failed",
				"task", req.Task, "attempt", attempt, "class", lastClass.String(), "error", err)
			if !lastClass.Transient() {
				break
			}
			continue
		}
		entry.RawResponse = raw

		decision, class, err := parseDecision(raw, req)
		if err == nil {
			return c.accept(ctx, req, fp, entry, decision)
		}
		lastErr, lastClass = err, class
		c.logger.Warn("adjudication response invalid",
			"task", req.Task, "attempt", attempt, "class", class.String(), "error", err)
		if class == FailureSchema {
			return Verdict{}, c.reject(ctx, entry, &Failure{Class: class, Attempts: attempt, Err: err})
		}
	}

	f := &Failure{Class: lastClass, Attempts: entry.Attempts, Err: lastErr}
	c.unresolved.Add(1)
	entry.Status = types.AuditUnresolved
	entry.Error = f.Error()
	if err := c.appendLog(ctx, entry); err != nil {
		return Verdict{}, err
	}
	return Verdict{}, f
}

func (c *Client) call(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.caller.Complete(ctx, systemPrompt, prompt)
}

func (c *Client) accept(ctx context.Context, req Request, fp string, entry types.AdjudicationLogEntry, d types.Decision) (Verdict, error) {
	c.resolved.Add(1)
	entry.Status = types.AuditResolved
	entry.Decision = &d
	if err := c.appendLog(ctx, entry); err != nil {
		return Verdict{}, err
	}
	err := c.cache.Put(ctx, types.CacheEntry{
		Fingerprint:       fp,
		Task:              req.Task,
		DictionaryVersion: c.dictVersion,
		Decision:          d,
		CreatedAt:         c.now(),
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: writing cache: %v", ErrPersistence, err)
	}
	return Verdict{Decision: d, Fingerprint: fp}, nil
}

func (c *Client) reject(ctx context.Context, entry types.AdjudicationLogEntry, f *Failure) error {
	c.rejected.Add(1)
	entry.Status = types.AuditRejected
	entry.Error = f.Error()
	if err := c.appendLog(ctx, entry); err != nil {
		return err
	}
	return f
}

func (c *Client) appendLog(ctx context.Context, entry types.AdjudicationLogEntry) error {
	entry.ID = uuid.New().String()
	entry.Timestamp = c.now()
	// The audit trail is written even when the caller's context is done.
	if err := c.log.Append(context.WithoutCancel(ctx), entry); err != nil {
		return fmt.Errorf("%w: appending audit entry: %v", ErrPersistence, err)
	}
	return nil
}

// parseDecision validates raw against the shape and constraint schemas.
// Labels come back in the order they were offered.
func parseDecision(raw string, req Request) (types.Decision, FailureClass, error) {
	cleaned := strings.TrimSpace(stripCodeFences(raw))
	if cleaned == "" {
		return types.Decision{}, FailureEmpty, errors.New("empty response")
	}

	var doc any
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return types.Decision{}, FailureParse, fmt.Errorf("response is not JSON: %w", err)
	}

	s, err := shape()
	if err != nil {
		return types.Decision{}, FailureShape, err
	}
	if err := s.Validate(doc); err != nil {
		return types.Decision{}, FailureShape, fmt.Errorf("response shape: %w", err)
	}

	cs, err := constraintSchema(req.Labels, req.Min, req.Max)
	if err != nil {
		return types.Decision{}, FailureSchema, err
	}
	if err := cs.Validate(doc); err != nil {
		return types.Decision{}, FailureSchema, fmt.Errorf("response violates label constraints: %w", err)
	}

	var d types.Decision
	if err := json.Unmarshal([]byte(cleaned), &d); err != nil {
		return types.Decision{}, FailureParse, err
	}
	chosen := map[string]bool{}
	for _, l := range d.Labels {
		chosen[l] = true
	}
	ordered := make([]string, 0, len(d.Labels))
	for _, l := range req.Labels {
		if chosen[l] {
			ordered = append(ordered, l)
		}
	}
	d.Labels = ordered
	d.Reason = strings.TrimSpace(d.Reason)
	return d, FailureNone, nil
}

// stripCodeFences removes a surrounding markdown code fence, if any.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
