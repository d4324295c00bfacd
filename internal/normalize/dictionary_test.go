// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/trial-enricher/pkg/types"
)

func loadTestDictionary(t *testing.T) *Dictionary {
	t.Helper()
	d, err := Load(filepath.Join("testdata", "endpoint_dictionary.yaml"), filepath.Join("testdata", "endpoint_aliases.json"))
	require.NoError(t, err)
	return d
}

func TestLoad(t *testing.T) {
	d := loadTestDictionary(t)

	assert.Equal(t, types.NumEndpoints, d.Len())
	assert.Len(t, d.Version(), 12)

	e, ok := d.Entry(types.EndpointORR)
	require.True(t, ok)
	assert.Equal(t, "Objective Response Rate", e.Name)
	assert.Contains(t, e.Synonyms, "orr")
	assert.Contains(t, e.Synonyms, "objective response")
}

func TestLoad_MappingForm(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dict.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"OS": {"name": "Overall Survival", "synonyms": ["OS"]}, "PFS": {"name": "Progression-Free Survival", "synonyms": ["PFS"]}}`), 0o644))

	d, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())
	assert.Equal(t, []types.EndpointCode{types.EndpointOS}, d.Match("overall survival").Codes)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.Error(t, err)
}

func TestNew_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		defs    []types.EndpointDefinition
		aliases map[string]string
	}{
		{
			name: "unknown code",
			defs: []types.EndpointDefinition{{Code: "NOPE", Name: "Nope", Synonyms: []string{"nope"}}},
		},
		{
			name: "duplicate code",
			defs: []types.EndpointDefinition{
				{Code: types.EndpointOS, Synonyms: []string{"os"}},
				{Code: types.EndpointOS, Synonyms: []string{"overall survival"}},
			},
		},
		{
			name: "empty synonym set",
			defs: []types.EndpointDefinition{{Code: types.EndpointOS, Name: "Overall Survival"}},
		},
		{
			name: "blank synonyms only",
			defs: []types.EndpointDefinition{{Code: types.EndpointOS, Synonyms: []string{" ", "--"}}},
		},
		{
			name: "synonym shared across codes",
			defs: []types.EndpointDefinition{
				{Code: types.EndpointORR, Synonyms: []string{"overall response rate"}},
				{Code: types.EndpointOverallResponse, Synonyms: []string{"Overall-Response Rate"}},
			},
		},
		{
			name:    "alias to unknown target",
			defs:    []types.EndpointDefinition{{Code: types.EndpointOS, Synonyms: []string{"os"}}},
			aliases: map[string]string{"survival": "Survival Overall Extended"},
		},
		{
			name: "alias collides with another code",
			defs: []types.EndpointDefinition{
				{Code: types.EndpointOS, Synonyms: []string{"os"}},
				{Code: types.EndpointPFS, Synonyms: []string{"pfs"}},
			},
			aliases: map[string]string{"OS": "PFS"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.defs, tt.aliases)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidDictionary)
		})
	}
}

func TestVersion_ChangesWithContent(t *testing.T) {
	base := []types.EndpointDefinition{{Code: types.EndpointOS, Name: "Overall Survival", Synonyms: []string{"os"}}}
	d1, err := New(base, nil)
	require.NoError(t, err)
	d2, err := New(base, nil)
	require.NoError(t, err)
	d3, err := New(base, map[string]string{"survival overall": "OS"})
	require.NoError(t, err)

	assert.Equal(t, d1.Version(), d2.Version())
	assert.NotEqual(t, d1.Version(), d3.Version())
}
