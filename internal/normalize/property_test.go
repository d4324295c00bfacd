// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestTextIdempotent verifies Text(Text(s)) == Text(s).
func TestTextIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("normalization is idempotent", prop.ForAll(
		func(s string) bool {
			once := Text(s)
			return Text(once) == once
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

// TestMatchDeterministic verifies matching the same text twice yields the
// same codes and residual tokens.
func TestMatchDeterministic(t *testing.T) {
	d := loadTestDictionary(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	words := gen.OneConstOf("overall", "survival", "and", "objective", "response", "rate",
		"pfs", "os", "toxicity", "time", "to", "progression", "12", "months")

	properties.Property("match is deterministic", prop.ForAll(
		func(ws []string) bool {
			text := ""
			for _, w := range ws {
				text += w + " "
			}
			a, b := d.Match(text), d.Match(text)
			if len(a.Codes) != len(b.Codes) || a.Residual != b.Residual {
				return false
			}
			for i := range a.Codes {
				if a.Codes[i] != b.Codes[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(words),
	))

	properties.TestingRun(t)
}
