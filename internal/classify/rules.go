// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/trial-enricher/pkg/types"
)

// maxPool bounds the text considered for classification, in runes.
const maxPool = 2000

var (
	firstInHumanRE = regexp.MustCompile(`(?i)\bfirst[- ]in[- ]human\b|\bfih\b`)
	novelAgentRE   = regexp.MustCompile(`(?i)\b(novel|investigational|new agent|new drug|new medicine|nme)\b`)
	phaseOneRE     = regexp.MustCompile(`(?i)\bphase\s*(1|i)\b`)
	extensionRE    = regexp.MustCompile(`(?i)\b(adjuvant|neoadjuvant|maintenance|new indication|extension|line of therapy|expansion)\b`)
)

// pool joins the record text the classifier reads.
func pool(rec types.TrialRecord) string {
	var parts []string
	for _, v := range []string{
		rec.Title, rec.OfficialTitle, rec.Phase, rec.Condition, rec.BiomarkerMentions,
		rec.PlannedPrimaryOutcomes, rec.PlannedSecondaryOutcomes,
	} {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	s := strings.Join(parts, " | ")
	if utf8.RuneCountInString(s) > maxPool {
		s = string([]rune(s)[:maxPool])
	}
	return s
}

// ruling is a rule check's verdict: either it decided a value or it must
// escalate to the adjudicator.
type ruling[T any] struct {
	decided bool
	value   T
}

func decided[T any](v T) ruling[T] { return ruling[T]{decided: true, value: v} }

func escalate[T any]() ruling[T] { return ruling[T]{} }

// intentRule decides trial intent when exactly one family of signals fires.
func intentRule(text string) ruling[types.TrialIntent] {
	nm := firstInHumanRE.MatchString(text) || novelAgentRE.MatchString(text) || phaseOneRE.MatchString(text)
	ei := extensionRE.MatchString(text)
	switch {
	case nm && !ei:
		return decided(types.IntentNewMedicine)
	case ei && !nm:
		return decided(types.IntentExtension)
	default:
		return escalate[types.TrialIntent]()
	}
}

// cohortPattern recognizes one biomarker cohort. Negative phrases are
// removed before the positive pattern is tried, so "non-triple-negative"
// does not read as triple-negative. A nil mention pattern means any
// reference is already polar.
type cohortPattern struct {
	positive *regexp.Regexp
	negative *regexp.Regexp
	mention  *regexp.Regexp
}

var cohortPatterns = map[types.Cohort]cohortPattern{
	types.CohortHER2Positive: {
		positive: regexp.MustCompile(`(?i)\b(her2|erbb2|her-2)\s*[- ]?\s*(\+|positive\b|pos\b|amplified\b|overexpress\w*|3\+)|\bher2\+`),
		negative: regexp.MustCompile(`(?i)\b(her2|erbb2|her-2)\s*[- ]?\s*(negative\b|neg\b|low\b|non[- ]?amplified\b|0\b|1\+|-(\W|$))`),
		mention:  regexp.MustCompile(`(?i)\b(her2|erbb2|her-2)\b`),
	},
	types.CohortBRCAMutant: {
		positive: regexp.MustCompile(`(?i)\b(g?brca[12]?(/[12])?)\s*[- ]?\s*(mutat\w*|mutant\b|m\b|carriers?\b|deleterious\b|pathogenic\b|positive\b)|\bg?brcam\b|\bg?brca[12]m\b`),
		negative: regexp.MustCompile(`(?i)\bg?brca[12]?(/[12])?\s*[- ]?\s*(wild[- ]?type\b|wt\b|negative\b|non[- ]?mutat\w*|unmutated\b)`),
		mention:  regexp.MustCompile(`(?i)\bg?brca[12]?\b`),
	},
	types.CohortTripleNegative: {
		positive: regexp.MustCompile(`(?i)\btriple[- ]negative\b|\btnbc\b`),
		negative: regexp.MustCompile(`(?i)\b(non|not)[- ]triple[- ]negative\b|\bnon[- ]tnbc\b`),
	},
	types.CohortHRPositive: {
		positive: regexp.MustCompile(`(?i)\b(hr|hormone[- ]receptor|er|estrogen[- ]receptor|oestrogen[- ]receptor|pr|progesterone[- ]receptor)\s*[- ]?\s*(\+|positive\b|pos\b)|\ber\+|\bluminal\b`),
		negative: regexp.MustCompile(`(?i)\b(hr|hormone[- ]receptor|er|estrogen[- ]receptor|oestrogen[- ]receptor)\s*[- ]?\s*(negative\b|neg\b|-(\W|$))`),
		mention:  regexp.MustCompile(`(?i)\b(hormone[- ]receptor|estrogen[- ]receptor|oestrogen[- ]receptor|progesterone[- ]receptor)\b`),
	},
}

// cohortRule decides one cohort flag: a positive statement alone is true, a
// negative statement alone is false, no reference is false, and anything
// else (both polarities, or a bare mention) escalates.
func cohortRule(c types.Cohort, text string) ruling[types.Flag] {
	p := cohortPatterns[c]
	neg := p.negative.MatchString(text)
	rest := p.negative.ReplaceAllString(text, " ")
	pos := p.positive.MatchString(rest)

	switch {
	case pos && neg:
		return escalate[types.Flag]()
	case pos:
		return decided(types.FlagTrue)
	case neg:
		return decided(types.FlagFalse)
	case p.mention != nil && p.mention.MatchString(rest):
		return escalate[types.Flag]()
	default:
		return decided(types.FlagFalse)
	}
}
