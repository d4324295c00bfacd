// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// TrialRecord is one registered trial as delivered by the registry extract.
// It is read-only input: no layer mutates it. Column names in tabular input
// match the json tags.
type TrialRecord struct {
	// ID is the stable registry identifier (e.g. "NCT01234567").
	ID string `json:"nct_id" yaml:"nct_id"`

	Title            string `json:"title" yaml:"title"`
	OfficialTitle    string `json:"official_title" yaml:"official_title"`
	Phase            string `json:"phase" yaml:"phase"`
	InterventionType string `json:"intervention_type" yaml:"intervention_type"`
	Condition        string `json:"condition" yaml:"condition"`
	OverallStatus    string `json:"overall_status" yaml:"overall_status"`

	StartDate             string `json:"start_date" yaml:"start_date"`
	PrimaryCompletionDate string `json:"primary_completion_date" yaml:"primary_completion_date"`
	CompletionDate        string `json:"completion_date" yaml:"completion_date"`

	// BiomarkerMentions is free text listing biomarker keywords from eligibility
	// criteria and arm descriptions.
	BiomarkerMentions string `json:"biomarker_mentions" yaml:"biomarker_mentions"`

	// PlannedPrimaryOutcomes and PlannedSecondaryOutcomes hold planned-endpoint
	// text: either plain text or a JSON array of outcome titles.
	PlannedPrimaryOutcomes   string `json:"planned_primary_outcomes" yaml:"planned_primary_outcomes"`
	PlannedSecondaryOutcomes string `json:"planned_secondary_outcomes" yaml:"planned_secondary_outcomes"`

	// ResultsOutcomeMeasures is the reported-outcome text: either a compact JSON
	// list of outcome measures or free results text.
	ResultsOutcomeMeasures string `json:"results_outcome_measures" yaml:"results_outcome_measures"`
	ResultsParticipantFlow string `json:"results_participant_flow" yaml:"results_participant_flow"`
	ResultsBaseline        string `json:"results_baseline" yaml:"results_baseline"`
	ResultsAdverseEvents   string `json:"results_adverse_events" yaml:"results_adverse_events"`
}

// RequiredColumns are the input columns that must be present in every dataset.
var RequiredColumns = []string{
	"nct_id",
	"planned_primary_outcomes",
	"results_outcome_measures",
}

// RecordStatus summarizes how completely a record was enriched.
type RecordStatus string

const (
	StatusComplete   RecordStatus = "complete"
	StatusUnresolved RecordStatus = "unresolved"
	StatusPartial    RecordStatus = "partial"
)

// ResolutionPath records how a layer reached its output.
type ResolutionPath string

const (
	PathRule        ResolutionPath = "rule"
	PathAdjudicated ResolutionPath = "adjudicated"
	PathUnresolved  ResolutionPath = "unresolved"
	PathNoInput     ResolutionPath = "no-input"
	PathFailed      ResolutionPath = "failed"
)

// EndpointFlags is the fixed-width planned-endpoint flag vector, indexed by
// EndpointCodes.
type EndpointFlags [NumEndpoints]Flag

// Get returns the flag for code.
func (e EndpointFlags) Get(code EndpointCode) Flag {
	i, ok := EndpointIndex(code)
	if !ok {
		return FlagUnknown
	}
	return e[i]
}

// AnyTrue reports whether at least one flag is true.
func (e EndpointFlags) AnyTrue() bool {
	for _, f := range e {
		if f.IsTrue() {
			return true
		}
	}
	return false
}

// AnyUnknown reports whether at least one flag is unknown.
func (e EndpointFlags) AnyUnknown() bool {
	for _, f := range e {
		if !f.IsKnown() {
			return true
		}
	}
	return false
}

// ConsortFlags is the fixed-width reporting-quality vector, indexed by ConsortItems.
type ConsortFlags [NumConsort]Flag

// Score counts the true reporting-quality items, excluding the results-section gate.
func (c ConsortFlags) Score() int {
	n := 0
	for _, f := range c[1:] {
		if f.IsTrue() {
			n++
		}
	}
	return n
}

// CohortFlags is the fixed-width biomarker cohort vector, indexed by Cohorts.
type CohortFlags [NumCohorts]Flag

// Tags returns the cohorts whose flag is true.
func (c CohortFlags) Tags() []Cohort {
	var out []Cohort
	for i, f := range c {
		if f.IsTrue() {
			out = append(out, Cohorts[i])
		}
	}
	return out
}

// EndpointResult is Layer A output.
type EndpointResult struct {
	Flags EndpointFlags `json:"flags" yaml:"flags"`

	// Detected lists codes flagged true, in order of first detection.
	Detected []EndpointCode `json:"detected" yaml:"detected"`

	// PlannedCount is the number of endpoints flagged true.
	PlannedCount int `json:"planned_endpoint_count" yaml:"planned_endpoint_count"`

	Path          ResolutionPath `json:"path" yaml:"path"`
	Adjudications int            `json:"adjudications" yaml:"adjudications"`
}

// ReportingResult is Layer B output.
type ReportingResult struct {
	GapCount             int            `json:"gap_count" yaml:"gap_count"`
	HasUnreportedPlanned Flag           `json:"has_unreported_planned" yaml:"has_unreported_planned"`
	Reported             []EndpointCode `json:"reported" yaml:"reported"`
	Consort              ConsortFlags   `json:"consort" yaml:"consort"`
	ConsortScore         int            `json:"consort_score" yaml:"consort_score"`
	Path                 ResolutionPath `json:"path" yaml:"path"`
}

// ClassificationResult is Layer C output.
type ClassificationResult struct {
	Intent        TrialIntent    `json:"intent" yaml:"intent"`
	Cohorts       CohortFlags    `json:"cohorts" yaml:"cohorts"`
	Path          ResolutionPath `json:"path" yaml:"path"`
	Adjudications int            `json:"adjudications" yaml:"adjudications"`
}

// EnrichedRecord is the per-trial output of the layer pipeline. Every field is
// populated for every record; unknown states are explicit values.
type EnrichedRecord struct {
	ID       string `json:"nct_id" yaml:"nct_id"`
	Position int    `json:"position" yaml:"position"`

	Status      RecordStatus `json:"status" yaml:"status"`
	FailedLayer string       `json:"failed_layer" yaml:"failed_layer"`
	Errors      []string     `json:"errors" yaml:"errors"`

	Endpoints      EndpointResult       `json:"endpoints" yaml:"endpoints"`
	Reporting      ReportingResult      `json:"reporting" yaml:"reporting"`
	Classification ClassificationResult `json:"classification" yaml:"classification"`
}

// NewEnrichedRecord returns a record whose every field holds its explicit
// "not yet known" state. Layers overwrite what they resolve.
func NewEnrichedRecord(id string, position int) EnrichedRecord {
	return EnrichedRecord{
		ID:       id,
		Position: position,
		Status:   StatusComplete,
		Errors:   []string{},
		Endpoints: EndpointResult{
			Detected: []EndpointCode{},
			Path:     PathFailed,
		},
		Reporting: ReportingResult{
			Reported: []EndpointCode{},
			Path:     PathFailed,
		},
		Classification: ClassificationResult{
			Intent: IntentUnclassified,
			Path:   PathFailed,
		},
	}
}

// Adjudications returns the number of external decisions used for the record.
func (r EnrichedRecord) Adjudications() int {
	return r.Endpoints.Adjudications + r.Classification.Adjudications
}
