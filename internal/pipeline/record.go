// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pdiddy/trial-enricher/internal/adjudicate"
	"github.com/pdiddy/trial-enricher/internal/store"
	"github.com/pdiddy/trial-enricher/pkg/types"
)

// Layer names as they appear in output and logs.
const (
	LayerEndpoints      = "endpoints"
	LayerReporting      = "reporting"
	LayerClassification = "classification"
)

// LayerError is a failure contained to one layer of one record.
type LayerError struct {
	Layer string
	Err   error
}

func (e *LayerError) Error() string {
	return fmt.Sprintf("%s layer: %v", e.Layer, e.Err)
}

func (e *LayerError) Unwrap() error { return e.Err }

// fatal reports whether err must abort the whole run rather than one record.
func fatal(err error) bool {
	return errors.Is(err, adjudicate.ErrPersistence) || errors.Is(err, store.ErrUnwritable)
}

// runLayer calls fn, converting a panic or a non-fatal error into a
// LayerError.
func runLayer[T any](layer string, fn func() (T, error)) (res T, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &LayerError{Layer: layer, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	res, err = fn()
	if err != nil && !fatal(err) {
		err = &LayerError{Layer: layer, Err: err}
	}
	return res, err
}

// process runs one record through A, B, and C. Layer failures mark the
// record partial; only fatal errors are returned.
func (o *Orchestrator) process(ctx context.Context, j job) (types.EnrichedRecord, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.record", trace.WithAttributes(
		attribute.String("record_id", j.rec.ID),
		attribute.Int("position", j.pos),
	))
	defer span.End()

	out := types.NewEnrichedRecord(j.rec.ID, j.pos)
	fail := func(err error) error {
		var le *LayerError
		if !errors.As(err, &le) {
			return err
		}
		if out.FailedLayer == "" {
			out.FailedLayer = le.Layer
		}
		out.Errors = append(out.Errors, le.Error())
		o.logger.Error("layer failed", "record_id", j.rec.ID, "layer", le.Layer, "error", le.Err)
		span.RecordError(err)
		return nil
	}

	a, err := runLayer(LayerEndpoints, func() (types.EndpointResult, error) {
		return o.opts.Endpoints.Extract(ctx, j.rec)
	})
	if err == nil {
		out.Endpoints = a
	} else if err := fail(err); err != nil {
		return out, err
	}

	// Layer B reads whatever Layer A settled; after a failure every planned
	// flag is unknown.
	b, err := runLayer(LayerReporting, func() (types.ReportingResult, error) {
		return o.opts.Reporting.Analyze(j.rec, out.Endpoints), nil
	})
	if err == nil {
		out.Reporting = b
	} else if err := fail(err); err != nil {
		return out, err
	}

	c, err := runLayer(LayerClassification, func() (types.ClassificationResult, error) {
		return o.opts.Classification.Classify(ctx, j.rec)
	})
	if err == nil {
		out.Classification = c
	} else if err := fail(err); err != nil {
		return out, err
	}

	out.Status = status(out)
	span.SetAttributes(attribute.String("status", string(out.Status)))
	if out.Status == types.StatusPartial {
		span.SetStatus(codes.Error, out.FailedLayer)
	}
	return out, nil
}

func status(r types.EnrichedRecord) types.RecordStatus {
	if r.FailedLayer != "" {
		return types.StatusPartial
	}
	for _, p := range []types.ResolutionPath{r.Endpoints.Path, r.Reporting.Path, r.Classification.Path} {
		if p == types.PathUnresolved {
			return types.StatusUnresolved
		}
	}
	return types.StatusComplete
}
