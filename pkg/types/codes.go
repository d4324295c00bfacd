// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// EndpointCode identifies one canonical endpoint category. The set and its
// order are fixed at build time; every EnrichedRecord carries one flag per code.
type EndpointCode string

const (
	EndpointPCR                      EndpointCode = "PCR"
	EndpointEFS                      EndpointCode = "EFS"
	EndpointDFS                      EndpointCode = "DFS"
	EndpointOS                       EndpointCode = "OS"
	EndpointBOR                      EndpointCode = "BOR"
	EndpointDOR                      EndpointCode = "DOR"
	EndpointPFS                      EndpointCode = "PFS"
	EndpointOverallResponse          EndpointCode = "OVERALL_RESPONSE"
	EndpointTargetResponse           EndpointCode = "TARGET_RESPONSE"
	EndpointNonTargetResponse        EndpointCode = "NON_TARGET_RESPONSE"
	EndpointSymptomaticDeterioration EndpointCode = "SYMPTOMATIC_DETERIORATION"
	EndpointDiseaseRecurrence        EndpointCode = "DISEASE_RECURRENCE"
	EndpointCBR                      EndpointCode = "CBR"
	EndpointORR                      EndpointCode = "ORR"
	EndpointTTP                      EndpointCode = "TTP"
)

// NumEndpoints is the width of the endpoint flag vector.
const NumEndpoints = 15

// EndpointCodes lists every endpoint code in output column order.
var EndpointCodes = [NumEndpoints]EndpointCode{
	EndpointPCR,
	EndpointEFS,
	EndpointDFS,
	EndpointOS,
	EndpointBOR,
	EndpointDOR,
	EndpointPFS,
	EndpointOverallResponse,
	EndpointTargetResponse,
	EndpointNonTargetResponse,
	EndpointSymptomaticDeterioration,
	EndpointDiseaseRecurrence,
	EndpointCBR,
	EndpointORR,
	EndpointTTP,
}

// EndpointIndex returns the position of code in EndpointCodes.
func EndpointIndex(code EndpointCode) (int, bool) {
	for i, c := range EndpointCodes {
		if c == code {
			return i, true
		}
	}
	return -1, false
}

// ConsortItem identifies one structured-reporting-quality check.
type ConsortItem string

const (
	ConsortResultsSection     ConsortItem = "results_section"
	ConsortParticipantFlow    ConsortItem = "participant_flow"
	ConsortRecruitment        ConsortItem = "recruitment"
	ConsortBaseline           ConsortItem = "baseline"
	ConsortNumbersAnalyzed    ConsortItem = "numbers_analyzed"
	ConsortOutcomesEstimation ConsortItem = "outcomes_estimation"
	ConsortAncillaryAnalyses  ConsortItem = "ancillary_analyses"
	ConsortHarms              ConsortItem = "harms"
)

// NumConsort is the width of the reporting-quality flag vector.
const NumConsort = 8

// ConsortItems lists the reporting-quality checks in output column order.
// The first item gates the others; ConsortScore counts only the remaining seven.
var ConsortItems = [NumConsort]ConsortItem{
	ConsortResultsSection,
	ConsortParticipantFlow,
	ConsortRecruitment,
	ConsortBaseline,
	ConsortNumbersAnalyzed,
	ConsortOutcomesEstimation,
	ConsortAncillaryAnalyses,
	ConsortHarms,
}

// Cohort identifies one biomarker cohort.
type Cohort string

const (
	CohortHER2Positive   Cohort = "HER2_POSITIVE"
	CohortBRCAMutant     Cohort = "BRCA_MUTANT"
	CohortTripleNegative Cohort = "TRIPLE_NEGATIVE"
	CohortHRPositive     Cohort = "HR_POSITIVE"
)

// NumCohorts is the width of the cohort flag vector.
const NumCohorts = 4

// Cohorts lists the biomarker cohorts in output column order.
var Cohorts = [NumCohorts]Cohort{
	CohortHER2Positive,
	CohortBRCAMutant,
	CohortTripleNegative,
	CohortHRPositive,
}

// TrialIntent is the closed trial-intent enumeration. Exactly one value is
// assigned per record.
type TrialIntent string

const (
	IntentNewMedicine  TrialIntent = "new-medicine-evaluation"
	IntentExtension    TrialIntent = "extension-of-indication"
	IntentOther        TrialIntent = "other"
	IntentUnclassified TrialIntent = "unclassified"
)

// AdjudicableIntents are the intents an adjudicator may choose between.
var AdjudicableIntents = []TrialIntent{IntentNewMedicine, IntentExtension, IntentOther}

// Valid reports whether t belongs to the enumeration.
func (t TrialIntent) Valid() bool {
	switch t {
	case IntentNewMedicine, IntentExtension, IntentOther, IntentUnclassified:
		return true
	}
	return false
}
