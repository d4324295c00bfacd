// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"strings"
	"unicode"

	"github.com/pdiddy/trial-enricher/pkg/types"
)

// Match is the result of matching one text against the dictionary.
type Match struct {
	// Codes are the matched endpoint codes in canonical column order.
	Codes []types.EndpointCode

	// Residual is true when some meaningful token was not covered by any
	// matched synonym.
	Residual bool

	// Unmatched lists the meaningful tokens left uncovered.
	Unmatched []string
}

// fillers are tokens that never make text residual: connectives, time-frame
// vocabulary, and generic outcome wording.
var fillers = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true,
	"in": true, "on": true, "at": true, "to": true, "by": true, "for": true,
	"with": true, "from": true, "as": true, "per": true, "vs": true, "versus": true,
	"up": true, "until": true, "after": true, "before": true, "during": true,
	"within": true, "through": true, "about": true, "approximately": true,
	"time": true, "frame": true, "timeframe": true,
	"day": true, "days": true, "week": true, "weeks": true, "month": true,
	"months": true, "year": true, "years": true,
	"rate": true, "rates": true, "assessed": true, "measured": true,
	"primary": true, "secondary": true, "endpoint": true, "endpoints": true,
	"outcome": true, "outcomes": true,
}

// Match returns the codes whose synonyms occur in text on token boundaries.
// Longer synonyms win: a token covered by one match cannot start or extend
// another, so "overall response rate" yields one code, not two.
func (d *Dictionary) Match(text string) Match {
	tokens := Tokens(text)
	covered := make([]bool, len(tokens))
	found := map[types.EndpointCode]bool{}

	for _, t := range d.terms {
		n := len(t.tokens)
		for i := 0; i+n <= len(tokens); i++ {
			if !spanFree(covered, i, n) || !equalTokens(tokens[i:i+n], t.tokens) {
				continue
			}
			for k := i; k < i+n; k++ {
				covered[k] = true
			}
			found[t.code] = true
		}
	}

	m := Match{}
	for _, code := range types.EndpointCodes {
		if found[code] {
			m.Codes = append(m.Codes, code)
		}
	}
	for i, tok := range tokens {
		if covered[i] || fillers[tok] || isNumeric(tok) {
			continue
		}
		m.Unmatched = append(m.Unmatched, tok)
	}
	m.Residual = len(m.Unmatched) > 0
	return m
}

// MatchAll matches each text and returns the union of codes in canonical order.
func (d *Dictionary) MatchAll(texts []string) []types.EndpointCode {
	found := map[types.EndpointCode]bool{}
	for _, t := range texts {
		for _, c := range d.Match(t).Codes {
			found[c] = true
		}
	}
	var out []types.EndpointCode
	for _, code := range types.EndpointCodes {
		if found[code] {
			out = append(out, code)
		}
	}
	return out
}

func spanFree(covered []bool, i, n int) bool {
	for k := i; k < i+n; k++ {
		if covered[k] {
			return false
		}
	}
	return true
}

func equalTokens(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isNumeric(tok string) bool {
	return strings.IndexFunc(tok, func(r rune) bool { return !unicode.IsDigit(r) }) < 0
}
