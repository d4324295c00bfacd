// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"time"
)

// AdjudicationTask names the question an adjudication answers. Cohort tasks
// carry the cohort code as a suffix ("cohort:HER2_POSITIVE").
type AdjudicationTask string

const (
	TaskEndpoint    AdjudicationTask = "endpoint"
	TaskTrialIntent AdjudicationTask = "trial-intent"
)

// CohortTask returns the adjudication task for one biomarker cohort.
func CohortTask(c Cohort) AdjudicationTask {
	return AdjudicationTask("cohort:" + string(c))
}

// Decision is a validated adjudicator answer: a subset of the closed label
// set offered in the query.
type Decision struct {
	Labels []string `json:"labels" yaml:"labels"`
	Reason string   `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// CacheEntry maps a normalized-input fingerprint to a validated decision.
// Entries persist across runs and are removed only by explicit invalidation.
type CacheEntry struct {
	Fingerprint       string           `json:"fingerprint" yaml:"fingerprint"`
	Task              AdjudicationTask `json:"task" yaml:"task"`
	DictionaryVersion string           `json:"dictionary_version" yaml:"dictionary_version"`
	Decision          Decision         `json:"decision" yaml:"decision"`
	CreatedAt         time.Time        `json:"created_at" yaml:"created_at"`
}

// AuditStatus is the outcome recorded for one adjudication.
type AuditStatus string

const (
	AuditResolved   AuditStatus = "resolved"
	AuditRejected   AuditStatus = "rejected"
	AuditUnresolved AuditStatus = "unresolved"
)

// AdjudicationLogEntry is one append-only audit record of a non-deterministic
// decision. Entries are never updated or deleted.
type AdjudicationLogEntry struct {
	ID                string           `json:"id" yaml:"id"`
	RunID             string           `json:"run_id" yaml:"run_id"`
	Fingerprint       string           `json:"fingerprint" yaml:"fingerprint"`
	Task              AdjudicationTask `json:"task" yaml:"task"`
	DictionaryVersion string           `json:"dictionary_version" yaml:"dictionary_version"`
	Model             string           `json:"model" yaml:"model"`

	// Query is the exact constrained prompt sent to the service.
	Query string `json:"query" yaml:"query"`

	// RawResponse is the last response text received, validated or not.
	RawResponse string `json:"raw_response" yaml:"raw_response"`

	Decision  *Decision   `json:"decision,omitempty" yaml:"decision,omitempty"`
	Status    AuditStatus `json:"status" yaml:"status"`
	Error     string      `json:"error,omitempty" yaml:"error,omitempty"`
	Attempts  int         `json:"attempts" yaml:"attempts"`
	Timestamp time.Time   `json:"timestamp" yaml:"timestamp"`
}

// Checkpoint is the durable resume cursor plus the batch of records committed
// with it. A new checkpoint supersedes the previous one.
type Checkpoint struct {
	RunID             string    `json:"run_id" yaml:"run_id"`
	LastID            string    `json:"last_id" yaml:"last_id"`
	Position          int       `json:"position" yaml:"position"`
	DictionaryVersion string    `json:"dictionary_version" yaml:"dictionary_version"`
	WrittenAt         time.Time `json:"written_at" yaml:"written_at"`

	Records []EnrichedRecord `json:"records" yaml:"records"`
}

// BatchIDs returns the identifiers of the records in the checkpoint batch.
func (c Checkpoint) BatchIDs() []string {
	ids := make([]string, len(c.Records))
	for i, r := range c.Records {
		ids[i] = r.ID
	}
	return ids
}

// MarshalDecision encodes a decision for storage.
func MarshalDecision(d Decision) (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
