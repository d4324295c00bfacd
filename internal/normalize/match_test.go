// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/trial-enricher/pkg/types"
)

func TestMatch(t *testing.T) {
	d := loadTestDictionary(t)

	tests := []struct {
		name     string
		text     string
		codes    []types.EndpointCode
		residual bool
	}{
		{
			name:  "two synonyms joined by a connective",
			text:  "overall survival and objective response rate",
			codes: []types.EndpointCode{types.EndpointOS, types.EndpointORR},
		},
		{
			name:  "abbreviation via alias",
			text:  "ORR per RECIST 1.1",
			codes: []types.EndpointCode{types.EndpointORR},
			// "recist" is not dictionary vocabulary.
			residual: true,
		},
		{
			name:  "longest synonym wins",
			text:  "Best Overall Response",
			codes: []types.EndpointCode{types.EndpointBOR},
		},
		{
			name:  "overall response rate is not also overall response",
			text:  "Overall Response Rate (time frame: up to 24 months)",
			codes: []types.EndpointCode{types.EndpointORR},
		},
		{
			name:  "abbreviation must be a whole token",
			text:  "dose limiting toxicity",
			codes: nil,
			residual: true,
		},
		{
			name:  "punctuation insensitive",
			text:  "Progression–Free-Survival (PFS)",
			codes: []types.EndpointCode{types.EndpointPFS},
		},
		{
			name:  "empty text",
			text:  "",
			codes: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := d.Match(tt.text)
			assert.Equal(t, tt.codes, m.Codes)
			assert.Equal(t, tt.residual, m.Residual, "unmatched: %v", m.Unmatched)
		})
	}
}

func TestMatchAll(t *testing.T) {
	d := loadTestDictionary(t)
	got := d.MatchAll([]string{"Time to Progression", "pCR rate", "overall survival"})
	assert.Equal(t, []types.EndpointCode{types.EndpointPCR, types.EndpointOS, types.EndpointTTP}, got)
}
