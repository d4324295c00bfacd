// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives trial records through the enrichment layers,
// commits results in input order, and checkpoints so an interrupted run
// resumes where it stopped.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/trial-enricher/internal/adjudicate"
	"github.com/pdiddy/trial-enricher/internal/store"
	"github.com/pdiddy/trial-enricher/pkg/types"
)

// ErrInputMismatch reports that saved run state does not belong to the
// current input or dictionary. Resuming would mix two runs.
var ErrInputMismatch = errors.New("checkpoint does not match input")

// Source yields trial records in input order and io.EOF at the end.
type Source interface {
	Next() (types.TrialRecord, error)
}

// Sink persists committed records and the resume cursor.
type Sink interface {
	LoadCheckpoint(ctx context.Context) (types.Checkpoint, bool, error)
	Commit(ctx context.Context, cp types.Checkpoint) error
	Reset(ctx context.Context) error
	Export(ctx context.Context, dir, base string) (store.ExportPaths, int, error)
}

// EndpointLayer is Layer A.
type EndpointLayer interface {
	Extract(ctx context.Context, rec types.TrialRecord) (types.EndpointResult, error)
}

// ReportingLayer is Layer B.
type ReportingLayer interface {
	Analyze(rec types.TrialRecord, planned types.EndpointResult) types.ReportingResult
}

// ClassificationLayer is Layer C.
type ClassificationLayer interface {
	Classify(ctx context.Context, rec types.TrialRecord) (types.ClassificationResult, error)
}

// StatsSource reports adjudication counters for the run summary.
type StatsSource interface {
	Stats() adjudicate.Stats
}

// Options configures an Orchestrator.
type Options struct {
	Endpoints      EndpointLayer
	Reporting      ReportingLayer
	Classification ClassificationLayer
	Sink           Sink

	// Stats is optional; without it the summary reports no cache hits.
	Stats StatsSource

	DictionaryVersion string

	// RunID names a new run. A resumed run keeps its checkpointed ID.
	// Empty generates one.
	RunID string

	// CheckpointEvery is the number of committed records per checkpoint.
	CheckpointEvery int

	// Workers is the number of records processed concurrently.
	Workers int

	// Fresh discards saved run state instead of resuming from it.
	Fresh bool

	// OutputDir receives the CSV and JSONL exports when the run completes.
	// Empty skips the export.
	OutputDir string
	BaseName  string

	Logger   *slog.Logger
	Progress io.Writer
}

// Summary holds the outcome of a run.
type Summary struct {
	RunID string

	// Enriched counts records committed by this invocation, whatever their status.
	Enriched   int
	Unresolved int
	Partial    int

	// Skipped counts records already committed by an earlier invocation.
	Skipped int

	Adjudications int
	CacheHits     int64

	Exports store.ExportPaths
}

// Total returns the number of input records accounted for.
func (s Summary) Total() int {
	return s.Enriched + s.Skipped
}

// HasFailures reports whether any record failed a layer.
func (s Summary) HasFailures() bool {
	return s.Partial > 0
}

// Orchestrator runs the layer pipeline over a dataset.
type Orchestrator struct {
	opts   Options
	logger *slog.Logger
	out    io.Writer
	tracer trace.Tracer
}

// New validates opts and returns an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Endpoints == nil || opts.Reporting == nil || opts.Classification == nil {
		return nil, errors.New("pipeline: all three layers are required")
	}
	if opts.Sink == nil {
		return nil, errors.New("pipeline: sink is required")
	}
	if opts.CheckpointEvery <= 0 {
		opts.CheckpointEvery = 100
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.BaseName == "" {
		opts.BaseName = "trials_enriched"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	out := opts.Progress
	if out == nil {
		out = io.Discard
	}
	return &Orchestrator{
		opts:   opts,
		logger: logger,
		out:    out,
		tracer: otel.Tracer("trial-enricher/pipeline"),
	}, nil
}

// job is one input record and its 0-based input position.
type job struct {
	pos int
	rec types.TrialRecord
}

// Run enriches every record from src that is not already committed.
//
// Cancelling ctx stops dispatch; records already in flight finish, the
// committed prefix is checkpointed, and ctx's error is returned. Fatal
// errors (invalid input, unwritable store, failed cache or audit writes)
// abort without committing further records.
func (o *Orchestrator) Run(ctx context.Context, src Source) (Summary, error) {
	var sum Summary

	cur, err := o.begin(ctx, src)
	if err != nil {
		return sum, err
	}
	sum.RunID = cur.runID
	sum.Skipped = cur.next
	if cur.next > 0 {
		fmt.Fprintf(o.out, "resuming after %s (%d records already committed)\n", cur.lastID, cur.next)
	}

	// In-flight records must finish after a shutdown request, so workers run
	// on a context that ignores ctx's cancellation and stops only on abort.
	work, abort := context.WithCancel(context.WithoutCancel(ctx))
	defer abort()
	g, gctx := errgroup.WithContext(work)

	jobs := make(chan job)
	results := make(chan types.EnrichedRecord, o.opts.Workers)

	g.Go(func() error {
		defer close(jobs)
		return dispatch(ctx, gctx, src, cur.next, jobs)
	})

	var wg sync.WaitGroup
	for range o.opts.Workers {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for j := range jobs {
				rec, err := o.process(gctx, j)
				if err != nil {
					return fmt.Errorf("record %s: %w", j.rec.ID, err)
				}
				select {
				case results <- rec:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		pending  = map[int]types.EnrichedRecord{}
		batch    []types.EnrichedRecord
		next     = cur.next
		fatalErr error
	)
	for rec := range results {
		// After an abort, drain without committing.
		if fatalErr != nil || gctx.Err() != nil {
			continue
		}
		pending[rec.Position] = rec
		for {
			r, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			batch = append(batch, r)
			o.tally(&sum, r)
			if len(batch) >= o.opts.CheckpointEvery {
				if err := o.flush(ctx, cur.runID, batch); err != nil {
					fatalErr = err
					abort()
					break
				}
				batch = nil
			}
		}
	}

	if err := g.Wait(); fatalErr == nil && err != nil && !errors.Is(err, context.Canceled) {
		fatalErr = err
	}
	if fatalErr != nil {
		return sum, fatalErr
	}
	if err := o.flush(ctx, cur.runID, batch); err != nil {
		return sum, err
	}

	if o.opts.Stats != nil {
		sum.CacheHits = o.opts.Stats.Stats().CacheHits
	}
	if err := ctx.Err(); err != nil {
		fmt.Fprintf(o.out, "\ninterrupted: enriched: %d, unresolved: %d, failed: %d, skipped: %d\n",
			sum.Enriched, sum.Unresolved, sum.Partial, sum.Skipped)
		return sum, err
	}
	fmt.Fprintf(o.out, "\nenriched: %d, unresolved: %d, failed: %d, skipped: %d (adjudications: %d, cache hits: %d)\n",
		sum.Enriched, sum.Unresolved, sum.Partial, sum.Skipped, sum.Adjudications, sum.CacheHits)

	if o.opts.OutputDir != "" {
		paths, n, err := o.opts.Sink.Export(ctx, o.opts.OutputDir, o.opts.BaseName)
		if err != nil {
			return sum, err
		}
		sum.Exports = paths
		fmt.Fprintf(o.out, "exported %d records to %s and %s\n", n, paths.CSV, paths.JSONL)
	}
	return sum, nil
}

// cursor is where a run starts.
type cursor struct {
	runID  string
	next   int
	lastID string
}

// begin loads or discards saved state and advances src past every record
// an earlier invocation already committed.
func (o *Orchestrator) begin(ctx context.Context, src Source) (cursor, error) {
	cur := cursor{runID: o.opts.RunID}
	if cur.runID == "" {
		cur.runID = uuid.New().String()
	}

	var (
		cp types.Checkpoint
		ok bool
	)
	if !o.opts.Fresh {
		var err error
		cp, ok, err = o.opts.Sink.LoadCheckpoint(ctx)
		if err != nil {
			return cur, err
		}
	}
	if !ok {
		return cur, o.opts.Sink.Reset(ctx)
	}
	if cp.DictionaryVersion != o.opts.DictionaryVersion {
		return cur, fmt.Errorf("%w: checkpoint was written with dictionary %s, current dictionary is %s; rerun with a fresh start",
			ErrInputMismatch, cp.DictionaryVersion, o.opts.DictionaryVersion)
	}

	for pos := 0; pos <= cp.Position; pos++ {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			return cur, fmt.Errorf("%w: input ends before checkpointed record %s at position %d",
				ErrInputMismatch, cp.LastID, cp.Position)
		}
		if err != nil {
			return cur, err
		}
		if pos == cp.Position && rec.ID != cp.LastID {
			return cur, fmt.Errorf("%w: position %d holds %s, checkpoint expects %s",
				ErrInputMismatch, pos, rec.ID, cp.LastID)
		}
	}
	o.logger.Info("resuming run", "run_id", cp.RunID, "last_id", cp.LastID, "position", cp.Position)
	return cursor{runID: cp.RunID, next: cp.Position + 1, lastID: cp.LastID}, nil
}

// dispatch feeds records to the workers until src is exhausted, ctx asks
// for shutdown, or the run aborts.
func dispatch(ctx, abort context.Context, src Source, pos int, jobs chan<- job) error {
	for ; ; pos++ {
		if ctx.Err() != nil {
			return nil
		}
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case jobs <- job{pos: pos, rec: rec}:
		case <-ctx.Done():
			return nil
		case <-abort.Done():
			return abort.Err()
		}
	}
}

// flush commits batch with a checkpoint at its last record.
func (o *Orchestrator) flush(ctx context.Context, runID string, batch []types.EnrichedRecord) error {
	if len(batch) == 0 {
		return nil
	}
	last := batch[len(batch)-1]
	cp := types.Checkpoint{
		RunID:             runID,
		LastID:            last.ID,
		Position:          last.Position,
		DictionaryVersion: o.opts.DictionaryVersion,
		WrittenAt:         time.Now().UTC(),
		Records:           batch,
	}
	if err := o.opts.Sink.Commit(context.WithoutCancel(ctx), cp); err != nil {
		return err
	}
	o.logger.Debug("checkpoint written", "last_id", cp.LastID, "position", cp.Position, "records", len(batch))
	return nil
}

func (o *Orchestrator) tally(sum *Summary, r types.EnrichedRecord) {
	sum.Enriched++
	sum.Adjudications += r.Adjudications()
	switch r.Status {
	case types.StatusUnresolved:
		sum.Unresolved++
	case types.StatusPartial:
		sum.Partial++
	}
	fmt.Fprintf(o.out, "enriched %s (%s)\n", r.ID, r.Status)
}
