// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify assigns a trial its intent and biomarker cohort flags.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pdiddy/trial-enricher/internal/adjudicate"
	"github.com/pdiddy/trial-enricher/pkg/types"
)

const (
	intentInstruction = "What is the intent of this clinical trial? Choose exactly one: " +
		"new-medicine-evaluation (first-in-human, novel or investigational agent, early phase), " +
		"extension-of-indication (an approved agent in a new setting, line, population, or schedule), " +
		"or other."

	cohortInstruction = "Does this trial enroll the %s cohort? Answer positive if the cohort is " +
		"required or targeted, negative if it is excluded or the biomarker status is the opposite."
)

var (
	cohortLabels = []string{"positive", "negative"}
	cohortNames  = map[types.Cohort]string{
		types.CohortHER2Positive:   "HER2-positive",
		types.CohortBRCAMutant:     "BRCA-mutated",
		types.CohortTripleNegative: "triple-negative breast cancer",
		types.CohortHRPositive:     "hormone-receptor-positive",
	}
)

// Classifier is Layer C. It is safe for concurrent use.
type Classifier struct {
	adj          adjudicate.Adjudicator
	intentLabels []string
	logger       *slog.Logger
}

// New creates a Classifier. A nil adjudicator leaves every escalated
// question unresolved.
func New(adj adjudicate.Adjudicator, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	labels := make([]string, len(types.AdjudicableIntents))
	for i, t := range types.AdjudicableIntents {
		labels[i] = string(t)
	}
	return &Classifier{adj: adj, intentLabels: labels, logger: logger}
}

// Classify computes trial intent and cohort flags for rec. As with the
// other layers, only non-adjudication failures are returned as errors.
func (c *Classifier) Classify(ctx context.Context, rec types.TrialRecord) (types.ClassificationResult, error) {
	res := types.ClassificationResult{Intent: types.IntentUnclassified}
	text := pool(rec)
	var escalated, unresolved int

	if r := intentRule(text); r.decided {
		res.Intent = r.value
	} else {
		escalated++
		label, err := c.ask(ctx, rec.ID, adjudicate.Request{
			Task:        types.TaskTrialIntent,
			Instruction: intentInstruction,
			Text:        text,
			Context:     intentContext(rec),
			Labels:      c.intentLabels,
			Min:         1,
			Max:         1,
		})
		switch {
		case errors.Is(err, adjudicate.ErrUnresolved):
			unresolved++
		case err != nil:
			return res, err
		default:
			res.Adjudications++
			res.Intent = types.TrialIntent(label)
		}
	}

	for i, cohort := range types.Cohorts {
		r := cohortRule(cohort, text)
		if r.decided {
			res.Cohorts[i] = r.value
			continue
		}
		escalated++
		label, err := c.ask(ctx, rec.ID, adjudicate.Request{
			Task:        types.CohortTask(cohort),
			Instruction: fmt.Sprintf(cohortInstruction, cohortNames[cohort]),
			Text:        text,
			Labels:      cohortLabels,
			Min:         1,
			Max:         1,
		})
		if errors.Is(err, adjudicate.ErrUnresolved) {
			unresolved++
			res.Cohorts[i] = types.FlagUnknown
			continue
		}
		if err != nil {
			return res, err
		}
		res.Adjudications++
		res.Cohorts[i] = types.FlagOf(label == "positive")
	}

	switch {
	case unresolved > 0:
		res.Path = types.PathUnresolved
	case escalated > 0:
		res.Path = types.PathAdjudicated
	default:
		res.Path = types.PathRule
	}
	return res, nil
}

// ask runs one single-label adjudication and returns the chosen label.
func (c *Classifier) ask(ctx context.Context, id string, req adjudicate.Request) (string, error) {
	if c.adj == nil {
		return "", fmt.Errorf("%w: no adjudicator configured", adjudicate.ErrUnresolved)
	}
	v, err := c.adj.Adjudicate(ctx, req)
	if err != nil {
		if errors.Is(err, adjudicate.ErrUnresolved) {
			c.logger.Warn("classification adjudication unresolved", "record_id", id, "task", req.Task, "error", err)
		}
		return "", err
	}
	if len(v.Decision.Labels) != 1 {
		// The client enforces cardinality; anything else is a broken adjudicator.
		return "", fmt.Errorf("adjudicator returned %d labels for %s", len(v.Decision.Labels), req.Task)
	}
	return v.Decision.Labels[0], nil
}

func intentContext(rec types.TrialRecord) string {
	var parts []string
	if p := strings.TrimSpace(rec.Phase); p != "" {
		parts = append(parts, "phase: "+p)
	}
	if t := strings.TrimSpace(rec.InterventionType); t != "" {
		parts = append(parts, "intervention type: "+t)
	}
	return strings.Join(parts, "; ")
}
