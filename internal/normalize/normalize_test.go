// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Overall Survival", "overall survival"},
		{"  progression-free   survival (PFS) ", "progression free survival pfs"},
		{"HER2+ / ERBB2", "her2+ erbb2"},
		{"Time-to-Progression;\tTTP", "time to progression ttp"},
		{"ﬁrst-in-human", "first in human"},
		{"", ""},
		{"---", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.in))
		})
	}
}

func TestContainsPhrase(t *testing.T) {
	assert.True(t, ContainsPhrase("Primary: Overall Survival (OS)", "os"))
	assert.False(t, ContainsPhrase("dose escalation", "os"))
	assert.True(t, ContainsPhrase("first-in-human study", "first in human"))
	assert.False(t, ContainsPhrase("anything", "  "))
}

func TestSplitOutcomes(t *testing.T) {
	tests := []struct {
		name  string
		cells []string
		want  []string
	}{
		{
			name:  "plain text with separators",
			cells: []string{"Overall survival; PFS\nORR"},
			want:  []string{"Overall survival", "PFS", "ORR"},
		},
		{
			name:  "json array of strings",
			cells: []string{`["Overall Survival", "Objective Response Rate"]`},
			want:  []string{"Overall Survival", "Objective Response Rate"},
		},
		{
			name:  "json array of objects",
			cells: []string{`[{"measure": "pCR"}, {"title": "EFS"}, {"other": 1}]`},
			want:  []string{"pCR", "EFS"},
		},
		{
			name:  "malformed json falls back to text",
			cells: []string{`[Overall survival`},
			want:  []string{"[Overall survival"},
		},
		{
			name:  "multiple cells and blanks",
			cells: []string{"", "OS", "  ", "DFS • EFS"},
			want:  []string{"OS", "DFS", "EFS"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitOutcomes(tt.cells...))
		})
	}
}
