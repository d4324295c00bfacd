// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reporting compares planned endpoints with reported results and
// scores structured reporting quality. Everything here is rule-based and
// deterministic; no external decision is ever requested.
package reporting

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/pdiddy/trial-enricher/internal/normalize"
	"github.com/pdiddy/trial-enricher/pkg/types"
)

var (
	ancillaryRE = regexp.MustCompile(`(?i)\b(subgroup|post[- ]hoc|exploratory|adjusted|interaction|sensitivity)\b`)

	numbersAnalyzedRE = regexp.MustCompile(`(?i)\bn\s*=\s*\d+|\b\d+\s+(participants|patients|subjects)\s+(were\s+)?analy[sz]ed|\bnumber of (participants|patients) analy[sz]ed`)

	estimateRE  = regexp.MustCompile(`(?i)\b(hazard ratio|odds ratio|risk ratio|rate ratio|median|mean|difference|percentage|proportion|hr)\b`)
	precisionRE = regexp.MustCompile(`(?i)\b(95\s*%?\s*ci|confidence interval|standard deviation|sd|standard error|interquartile|iqr|range)\b`)

	participantFlowRE = regexp.MustCompile(`(?i)\b(enrolled|randomi[sz]ed|completed|withdrew|discontinued|lost to follow[- ]up)\b`)
	harmsRE           = regexp.MustCompile(`(?i)\b(adverse events?|serious adverse|toxicit(y|ies)|side effects?)\b`)
)

// Analyzer is Layer B. It is safe for concurrent use.
type Analyzer struct {
	dict   *normalize.Dictionary
	logger *slog.Logger
}

// New creates an Analyzer.
func New(dict *normalize.Dictionary, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Analyzer{dict: dict, logger: logger}
}

// Analyze computes the reporting gap against planned and the reporting
// quality battery for rec. Malformed structured fields count as absent and
// are logged.
func (a *Analyzer) Analyze(rec types.TrialRecord, planned types.EndpointResult) types.ReportingResult {
	res := types.ReportingResult{Reported: []types.EndpointCode{}, Path: types.PathRule}

	kind, _ := classify(rec.ResultsOutcomeMeasures)
	var (
		titles   []string
		measures []measure
	)
	switch kind {
	case fieldStructured:
		ms, err := parseMeasures(rec.ResultsOutcomeMeasures)
		if err != nil {
			a.warn(rec.ID, "results_outcome_measures", err.Error())
			kind = fieldMalformed
			break
		}
		measures = ms
		for _, m := range ms {
			if t := strings.TrimSpace(m.Title); t != "" {
				titles = append(titles, t)
			}
		}
	case fieldText:
		titles = normalize.SplitOutcomes(rec.ResultsOutcomeMeasures)
	case fieldMalformed:
		a.warn(rec.ID, "results_outcome_measures", "unparsable JSON")
	}

	res.Reported = a.reportedCodes(titles)
	a.gap(&res, planned)

	c := &res.Consort
	c[0] = types.FlagOf(kind == fieldStructured && len(measures) > 0 || kind == fieldText)
	c[1] = a.disclosed(rec.ID, "results_participant_flow", rec.ResultsParticipantFlow, participantFlowRE)
	c[2] = types.FlagOf(strings.TrimSpace(rec.StartDate) != "" &&
		(strings.TrimSpace(rec.PrimaryCompletionDate) != "" || strings.TrimSpace(rec.CompletionDate) != ""))
	c[3] = a.disclosed(rec.ID, "results_baseline", rec.ResultsBaseline, nil)

	switch kind {
	case fieldStructured:
		c[4] = types.FlagOf(anyMeasure(measures, measure.hasValues))
		c[5] = types.FlagOf(anyMeasure(measures, func(m measure) bool {
			return strings.TrimSpace(m.ParamType) != "" && (strings.TrimSpace(m.DispersionType) != "" || m.hasLimits())
		}))
	case fieldText:
		text := rec.ResultsOutcomeMeasures
		c[4] = types.FlagOf(numbersAnalyzedRE.MatchString(text))
		c[5] = types.FlagOf(estimateRE.MatchString(text) && precisionRE.MatchString(text))
	default:
		c[4], c[5] = types.FlagFalse, types.FlagFalse
	}

	c[6] = types.FlagOf(anyMatch(ancillaryRE, titles))
	c[7] = a.disclosed(rec.ID, "results_adverse_events", rec.ResultsAdverseEvents, nil)
	if !c[7].IsTrue() && kind == fieldText {
		c[7] = types.FlagOf(harmsRE.MatchString(rec.ResultsOutcomeMeasures))
	}

	res.ConsortScore = res.Consort.Score()
	return res
}

// gap compares planned-true codes with reported codes. The signal is unknown
// only when nothing is missing yet some planned flag is itself unknown.
func (a *Analyzer) gap(res *types.ReportingResult, planned types.EndpointResult) {
	reported := map[types.EndpointCode]bool{}
	for _, c := range res.Reported {
		reported[c] = true
	}
	for i, f := range planned.Flags {
		if f.IsTrue() && !reported[types.EndpointCodes[i]] {
			res.GapCount++
		}
	}
	switch {
	case res.GapCount > 0:
		res.HasUnreportedPlanned = types.FlagTrue
	case planned.Flags.AnyUnknown():
		res.HasUnreportedPlanned = types.FlagUnknown
	default:
		res.HasUnreportedPlanned = types.FlagFalse
	}
}

func (a *Analyzer) reportedCodes(titles []string) []types.EndpointCode {
	codes := a.dict.MatchAll(titles)
	if codes == nil {
		return []types.EndpointCode{}
	}
	return codes
}

// disclosed reports whether a dedicated results field carries content. A
// structured value counts when non-empty; free text counts when it matches
// re (or always, when re is nil).
func (a *Analyzer) disclosed(id, field, cell string, re *regexp.Regexp) types.Flag {
	kind, _ := classify(cell)
	switch kind {
	case fieldStructured:
		return types.FlagTrue
	case fieldText:
		return types.FlagOf(re == nil || re.MatchString(cell))
	case fieldMalformed:
		a.warn(id, field, "unparsable JSON")
	}
	return types.FlagFalse
}

func (a *Analyzer) warn(id, field, msg string) {
	a.logger.Warn("malformed results field", "record_id", id, "field", field, "error", msg)
}

func anyMeasure(ms []measure, pred func(measure) bool) bool {
	for _, m := range ms {
		if pred(m) {
			return true
		}
	}
	return false
}

func anyMatch(re *regexp.Regexp, texts []string) bool {
	for _, t := range texts {
		if re.MatchString(t) {
			return true
		}
	}
	return false
}
