// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize canonicalizes free text and matches it against the
// endpoint dictionary. Everything in this package is pure and deterministic:
// the same text and dictionary always produce the same result.
package normalize

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Text returns the canonical form of s used for every comparison: NFKC,
// lower case, punctuation and symbols replaced by single spaces, trimmed.
// '+' survives because it carries meaning in biomarker names ("her2+").
func Text(s string) string {
	s = norm.NFKC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// Tokens splits normalized text into tokens.
func Tokens(s string) []string {
	return strings.Fields(Text(s))
}

// ContainsPhrase reports whether phrase occurs in text on token boundaries.
// Both arguments are normalized first.
func ContainsPhrase(text, phrase string) bool {
	p := Text(phrase)
	if p == "" {
		return false
	}
	return strings.Contains(" "+Text(text)+" ", " "+p+" ")
}

// chunkSep splits outcome cells into individual endpoint statements.
var chunkSep = regexp.MustCompile(`[;•|\n\r]+`)

// SplitOutcomes expands outcome cells into individual endpoint statements.
// A cell holding a JSON array contributes one statement per string element
// (or per object "measure"/"title" field); any other cell is plain text.
// Statements are further split on semicolons, bullets, pipes, and newlines.
func SplitOutcomes(cells ...string) []string {
	var out []string
	for _, cell := range cells {
		for _, item := range expandCell(cell) {
			for _, part := range chunkSep.Split(item, -1) {
				if p := strings.TrimSpace(part); p != "" {
					out = append(out, p)
				}
			}
		}
	}
	return out
}

func expandCell(cell string) []string {
	t := strings.TrimSpace(cell)
	if t == "" {
		return nil
	}
	if !strings.HasPrefix(t, "[") || !strings.HasSuffix(t, "]") {
		return []string{t}
	}
	var items []any
	if err := json.Unmarshal([]byte(t), &items); err != nil {
		return []string{t}
	}
	var out []string
	for _, it := range items {
		switch v := it.(type) {
		case string:
			out = append(out, v)
		case map[string]any:
			for _, key := range []string{"measure", "title"} {
				if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
					out = append(out, s)
					break
				}
			}
		}
	}
	return out
}
