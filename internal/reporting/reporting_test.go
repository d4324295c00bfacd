// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reporting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/trial-enricher/internal/normalize"
	"github.com/pdiddy/trial-enricher/pkg/types"
)

func newAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	d, err := normalize.Load("../../configs/endpoint_dictionary.yaml", "../../configs/endpoint_aliases.json")
	require.NoError(t, err)
	return New(d, nil)
}

// plannedFlags returns a rule-resolved Layer A result with codes true and
// every other flag false.
func plannedFlags(codes ...types.EndpointCode) types.EndpointResult {
	var r types.EndpointResult
	for i := range r.Flags {
		r.Flags[i] = types.FlagFalse
	}
	for _, c := range codes {
		i, _ := types.EndpointIndex(c)
		r.Flags[i] = types.FlagTrue
	}
	r.Path = types.PathRule
	return r
}

const structuredResults = `[
  {"type": "PRIMARY", "title": "Overall Survival", "paramType": "MEDIAN", "dispersionType": "95% Confidence Interval",
   "classes": [{"categories": [{"measurements": [{"groupId": "OG000", "value": "21.3", "lowerLimit": "18.1", "upperLimit": "24.0"}]}]}]},
  {"type": "SECONDARY", "title": "Overall survival in the exploratory subgroup with PD-L1 expression"}
]`

func TestAnalyze_GapCounted(t *testing.T) {
	a := newAnalyzer(t)
	rec := types.TrialRecord{ID: "NCT1", ResultsOutcomeMeasures: `[{"title": "Overall Survival"}]`}

	res := a.Analyze(rec, plannedFlags(types.EndpointOS, types.EndpointPFS))
	assert.Equal(t, []types.EndpointCode{types.EndpointOS}, res.Reported)
	assert.Equal(t, 1, res.GapCount)
	assert.Equal(t, types.FlagTrue, res.HasUnreportedPlanned)
	assert.Equal(t, types.PathRule, res.Path)
}

func TestAnalyze_NoGap(t *testing.T) {
	a := newAnalyzer(t)
	rec := types.TrialRecord{ID: "NCT1", ResultsOutcomeMeasures: `[{"title": "Overall Survival"}, {"title": "Objective Response Rate"}]`}

	res := a.Analyze(rec, plannedFlags(types.EndpointOS, types.EndpointORR))
	assert.Zero(t, res.GapCount)
	assert.Equal(t, types.FlagFalse, res.HasUnreportedPlanned)
}

func TestAnalyze_UnknownPlannedFlagsMakeSignalUnknown(t *testing.T) {
	a := newAnalyzer(t)
	planned := plannedFlags(types.EndpointOS)
	i, _ := types.EndpointIndex(types.EndpointTTP)
	planned.Flags[i] = types.FlagUnknown

	res := a.Analyze(types.TrialRecord{ID: "NCT1", ResultsOutcomeMeasures: `["Overall survival"]`}, planned)
	assert.Zero(t, res.GapCount)
	assert.Equal(t, types.FlagUnknown, res.HasUnreportedPlanned)

	// A known gap wins over unknown flags.
	res = a.Analyze(types.TrialRecord{ID: "NCT1"}, planned)
	assert.Equal(t, 1, res.GapCount)
	assert.Equal(t, types.FlagTrue, res.HasUnreportedPlanned)
}

func TestAnalyze_NoResultsMeansEveryPlannedIsMissing(t *testing.T) {
	a := newAnalyzer(t)
	res := a.Analyze(types.TrialRecord{ID: "NCT1"}, plannedFlags(types.EndpointOS, types.EndpointPFS, types.EndpointDFS))
	assert.Equal(t, 3, res.GapCount)
	assert.Equal(t, types.FlagFalse, res.Consort[0])
	assert.Empty(t, res.Reported)
	assert.NotNil(t, res.Reported)
	assert.Zero(t, res.ConsortScore)
}

func TestAnalyze_StructuredConsort(t *testing.T) {
	a := newAnalyzer(t)
	rec := types.TrialRecord{
		ID:                     "NCT1",
		StartDate:              "2019-01",
		CompletionDate:         "2023-05",
		ResultsOutcomeMeasures: structuredResults,
		ResultsParticipantFlow: `{"groups": [{"id": "FG000"}]}`,
		ResultsBaseline:        `{"measures": []}`,
		ResultsAdverseEvents:   `[]`,
	}
	res := a.Analyze(rec, plannedFlags(types.EndpointOS))

	want := map[types.ConsortItem]types.Flag{
		types.ConsortResultsSection:     types.FlagTrue,
		types.ConsortParticipantFlow:    types.FlagTrue,
		types.ConsortRecruitment:        types.FlagTrue,
		types.ConsortBaseline:           types.FlagTrue,
		types.ConsortNumbersAnalyzed:    types.FlagTrue,
		types.ConsortOutcomesEstimation: types.FlagTrue,
		types.ConsortAncillaryAnalyses:  types.FlagTrue,
		types.ConsortHarms:              types.FlagFalse,
	}
	for i, item := range types.ConsortItems {
		assert.Equal(t, want[item], res.Consort[i], item)
	}
	assert.Equal(t, 6, res.ConsortScore)
	assert.Zero(t, res.GapCount)
}

func TestAnalyze_CompactGroups(t *testing.T) {
	a := newAnalyzer(t)
	rec := types.TrialRecord{
		ID: "NCT1",
		ResultsOutcomeMeasures: `[{"type": "PRIMARY", "title": "Progression-free survival", "paramType": "MEDIAN",
			"groups": [{"group": "Arm A", "value": "7.4", "lower": "6.1", "upper": "8.8"}]}]`,
	}
	res := a.Analyze(rec, plannedFlags(types.EndpointPFS))
	assert.Equal(t, types.FlagTrue, res.Consort[4])
	assert.Equal(t, types.FlagTrue, res.Consort[5])
	assert.Equal(t, types.FlagFalse, res.Consort[6])
}

func TestAnalyze_FreeTextFallback(t *testing.T) {
	a := newAnalyzer(t)
	rec := types.TrialRecord{
		ID: "NCT1",
		ResultsOutcomeMeasures: "Overall survival: median 14.2 months (95% CI 12.0-16.1), n=210 analyzed\n" +
			"Post-hoc sensitivity analysis of progression-free survival\n" +
			"Grade 3 adverse events in 31% of patients",
		ResultsParticipantFlow: "250 enrolled, 210 completed",
	}
	res := a.Analyze(rec, plannedFlags(types.EndpointOS, types.EndpointPFS))

	assert.ElementsMatch(t, []types.EndpointCode{types.EndpointOS, types.EndpointPFS}, res.Reported)
	assert.Zero(t, res.GapCount)
	assert.Equal(t, types.FlagTrue, res.Consort[0])
	assert.Equal(t, types.FlagTrue, res.Consort[1])
	assert.Equal(t, types.FlagFalse, res.Consort[2])
	assert.Equal(t, types.FlagTrue, res.Consort[4])
	assert.Equal(t, types.FlagTrue, res.Consort[5])
	assert.Equal(t, types.FlagTrue, res.Consort[6])
	assert.Equal(t, types.FlagTrue, res.Consort[7])
}

func TestAnalyze_MalformedJSONIsFalse(t *testing.T) {
	a := newAnalyzer(t)
	rec := types.TrialRecord{
		ID:                     "NCT1",
		ResultsOutcomeMeasures: `[{"title": "Overall Survival"`,
		ResultsBaseline:        `{broken`,
	}
	res := a.Analyze(rec, plannedFlags(types.EndpointOS))
	assert.Equal(t, types.FlagFalse, res.Consort[0])
	assert.Equal(t, types.FlagFalse, res.Consort[3])
	assert.Equal(t, 1, res.GapCount)
	for _, f := range res.Consort {
		assert.True(t, f.IsKnown(), "reporting flags are never unknown")
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	a := newAnalyzer(t)
	rec := types.TrialRecord{ID: "NCT1", ResultsOutcomeMeasures: structuredResults, StartDate: "2020"}
	first := a.Analyze(rec, plannedFlags(types.EndpointOS))
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, a.Analyze(rec, plannedFlags(types.EndpointOS)))
	}
}
