// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/trial-enricher/pkg/types"
)

type logRow struct {
	ID                string         `db:"id"`
	RunID             string         `db:"run_id"`
	Fingerprint       string         `db:"fingerprint"`
	Task              string         `db:"task"`
	DictionaryVersion string         `db:"dictionary_version"`
	Model             string         `db:"model"`
	Query             string         `db:"query"`
	RawResponse       string         `db:"raw_response"`
	Decision          sql.NullString `db:"decision"`
	Status            string         `db:"status"`
	Error             string         `db:"error"`
	Attempts          int            `db:"attempts"`
	Timestamp         string         `db:"timestamp"`
}

func (r logRow) entry() (types.AdjudicationLogEntry, error) {
	e := types.AdjudicationLogEntry{
		ID:                r.ID,
		RunID:             r.RunID,
		Fingerprint:       r.Fingerprint,
		Task:              types.AdjudicationTask(r.Task),
		DictionaryVersion: r.DictionaryVersion,
		Model:             r.Model,
		Query:             r.Query,
		RawResponse:       r.RawResponse,
		Status:            types.AuditStatus(r.Status),
		Error:             r.Error,
		Attempts:          r.Attempts,
	}
	e.Timestamp, _ = time.Parse(timeLayout, r.Timestamp)
	if r.Decision.Valid {
		var d types.Decision
		if err := json.Unmarshal([]byte(r.Decision.String), &d); err != nil {
			return e, fmt.Errorf("decoding logged decision %s: %w", r.ID, err)
		}
		e.Decision = &d
	}
	return e, nil
}

// Append writes one audit entry. The log table rejects updates and deletes.
func (s *Store) Append(ctx context.Context, e types.AdjudicationLogEntry) error {
	var decision sql.NullString
	if e.Decision != nil {
		d, err := types.MarshalDecision(*e.Decision)
		if err != nil {
			return err
		}
		decision = sql.NullString{String: d, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO adjudication_log
			(id, run_id, fingerprint, task, dictionary_version, model, query,
			 raw_response, decision, status, error, attempts, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RunID, e.Fingerprint, string(e.Task), e.DictionaryVersion, e.Model, e.Query,
		e.RawResponse, decision, string(e.Status), e.Error, e.Attempts,
		e.Timestamp.UTC().Format(timeLayout))
	if err != nil {
		return unwritable("appending audit entry", err)
	}
	return nil
}

// AuditFilter selects audit entries. Zero fields match everything.
type AuditFilter struct {
	RunID       string
	Status      types.AuditStatus
	Fingerprint string
}

// AuditEntries returns matching entries in append order.
func (s *Store) AuditEntries(ctx context.Context, f AuditFilter) ([]types.AdjudicationLogEntry, error) {
	var clauses []string
	var args []any
	if f.RunID != "" {
		clauses = append(clauses, "run_id = ?")
		args = append(args, f.RunID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Fingerprint != "" {
		clauses = append(clauses, "fingerprint = ?")
		args = append(args, f.Fingerprint)
	}
	q := `SELECT id, run_id, fingerprint, task, dictionary_version, model, query,
			raw_response, decision, status, error, attempts, timestamp
		  FROM adjudication_log`
	if len(clauses) > 0 {
		q += " WHERE " + strings.Join(clauses, " AND ")
	}
	q += " ORDER BY seq"

	var rows []logRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	out := make([]types.AdjudicationLogEntry, 0, len(rows))
	for _, r := range rows {
		e, err := r.entry()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
