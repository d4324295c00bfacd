// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package endpoints derives the planned-endpoint flag vector for a trial.
// Dictionary matches decide each outcome statement; statements that match
// no synonym but still carry meaningful text go to the adjudicator.
package endpoints

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pdiddy/trial-enricher/internal/adjudicate"
	"github.com/pdiddy/trial-enricher/internal/normalize"
	"github.com/pdiddy/trial-enricher/pkg/types"
)

const instruction = "Which of the canonical endpoints listed below does this planned outcome statement measure? " +
	"Choose every code that applies, or none if the statement measures none of them."

// Extractor is Layer A. It is safe for concurrent use.
type Extractor struct {
	dict   *normalize.Dictionary
	adj    adjudicate.Adjudicator
	labels []string
	logger *slog.Logger
}

// New creates an Extractor. A nil adjudicator means statements that need
// adjudication stay unresolved.
func New(dict *normalize.Dictionary, adj adjudicate.Adjudicator, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	labels := make([]string, len(types.EndpointCodes))
	for i, c := range types.EndpointCodes {
		labels[i] = string(c)
	}
	return &Extractor{dict: dict, adj: adj, labels: labels, logger: logger}
}

// Extract computes the endpoint flags for rec. The returned error is
// non-nil only for failures that are not adjudication outcomes; an error
// matching adjudicate.ErrPersistence must abort the run.
func (e *Extractor) Extract(ctx context.Context, rec types.TrialRecord) (types.EndpointResult, error) {
	res := types.EndpointResult{Detected: []types.EndpointCode{}}

	chunks := normalize.SplitOutcomes(rec.PlannedPrimaryOutcomes, rec.PlannedSecondaryOutcomes)
	if len(chunks) == 0 {
		// All flags stay unknown: there is nothing to decide from.
		res.Path = types.PathNoInput
		return res, nil
	}

	found := map[types.EndpointCode]bool{}
	add := func(code types.EndpointCode) {
		if !found[code] {
			found[code] = true
			res.Detected = append(res.Detected, code)
		}
	}

	escalated, unresolved := 0, 0
	for _, chunk := range chunks {
		m := e.dict.Match(chunk)
		for _, c := range m.Codes {
			add(c)
		}
		if len(m.Codes) > 0 || !m.Residual {
			continue
		}

		escalated++
		codes, err := e.adjudicate(ctx, rec.ID, chunk)
		if errors.Is(err, adjudicate.ErrUnresolved) {
			unresolved++
			continue
		}
		if err != nil {
			return res, err
		}
		res.Adjudications++
		for _, c := range codes {
			add(c)
		}
	}

	// Rules win: a true flag is never revised. When any statement stayed
	// unresolved the remaining flags cannot be called false.
	rest := types.FlagFalse
	switch {
	case unresolved > 0:
		rest = types.FlagUnknown
		res.Path = types.PathUnresolved
	case escalated > 0:
		res.Path = types.PathAdjudicated
	default:
		res.Path = types.PathRule
	}
	for i, c := range types.EndpointCodes {
		if found[c] {
			res.Flags[i] = types.FlagTrue
		} else {
			res.Flags[i] = rest
		}
	}
	res.PlannedCount = len(res.Detected)
	return res, nil
}

func (e *Extractor) adjudicate(ctx context.Context, id, chunk string) ([]types.EndpointCode, error) {
	if e.adj == nil {
		return nil, fmt.Errorf("%w: no adjudicator configured", adjudicate.ErrUnresolved)
	}
	v, err := e.adj.Adjudicate(ctx, adjudicate.Request{
		Task:        types.TaskEndpoint,
		Instruction: instruction,
		Text:        chunk,
		Labels:      e.labels,
		Min:         0,
		Max:         len(e.labels),
	})
	if err != nil {
		if errors.Is(err, adjudicate.ErrUnresolved) {
			e.logger.Warn("endpoint adjudication unresolved", "record_id", id, "error", err)
		}
		return nil, err
	}
	codes := make([]types.EndpointCode, 0, len(v.Decision.Labels))
	for _, l := range v.Decision.Labels {
		codes = append(codes, types.EndpointCode(l))
	}
	return codes, nil
}
