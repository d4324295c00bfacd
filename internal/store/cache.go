// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/trial-enricher/pkg/types"
)

type cacheRow struct {
	Fingerprint       string `db:"fingerprint"`
	Task              string `db:"task"`
	DictionaryVersion string `db:"dictionary_version"`
	Decision          string `db:"decision"`
	CreatedAt         string `db:"created_at"`
}

func (r cacheRow) entry() (types.CacheEntry, error) {
	var d types.Decision
	if err := json.Unmarshal([]byte(r.Decision), &d); err != nil {
		return types.CacheEntry{}, fmt.Errorf("decoding cached decision %s: %w", r.Fingerprint, err)
	}
	created, _ := time.Parse(timeLayout, r.CreatedAt)
	return types.CacheEntry{
		Fingerprint:       r.Fingerprint,
		Task:              types.AdjudicationTask(r.Task),
		DictionaryVersion: r.DictionaryVersion,
		Decision:          d,
		CreatedAt:         created,
	}, nil
}

// Get returns the cached decision for fingerprint.
func (s *Store) Get(ctx context.Context, fingerprint string) (types.CacheEntry, bool, error) {
	var row cacheRow
	err := s.db.GetContext(ctx, &row,
		`SELECT fingerprint, task, dictionary_version, decision, created_at
		 FROM cache_entries WHERE fingerprint = ?`, fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return types.CacheEntry{}, false, nil
	}
	if err != nil {
		return types.CacheEntry{}, false, fmt.Errorf("reading cache entry: %w", err)
	}
	e, err := row.entry()
	if err != nil {
		return types.CacheEntry{}, false, err
	}
	return e, true, nil
}

// Put stores entry. An existing entry for the same fingerprint is kept:
// a decision, once cached, only changes through invalidation.
func (s *Store) Put(ctx context.Context, entry types.CacheEntry) error {
	decision, err := types.MarshalDecision(entry.Decision)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO cache_entries (fingerprint, task, dictionary_version, decision, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.Fingerprint, string(entry.Task), entry.DictionaryVersion, decision,
		entry.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return unwritable("writing cache entry", err)
	}
	return nil
}

// CacheFilter selects cache entries for invalidation. Zero fields match
// everything; set fields are combined with AND.
type CacheFilter struct {
	Fingerprint       string
	Task              string
	DictionaryVersion string

	// Before matches entries created strictly before this time.
	Before time.Time
}

func (f CacheFilter) where() (string, []any) {
	var clauses []string
	var args []any
	if f.Fingerprint != "" {
		clauses = append(clauses, "fingerprint = ?")
		args = append(args, f.Fingerprint)
	}
	if f.Task != "" {
		// "cohort" matches every cohort task.
		if strings.HasSuffix(f.Task, ":") || f.Task == "cohort" {
			clauses = append(clauses, "task LIKE ?")
			args = append(args, strings.TrimSuffix(f.Task, ":")+":%")
		} else {
			clauses = append(clauses, "task = ?")
			args = append(args, f.Task)
		}
	}
	if f.DictionaryVersion != "" {
		clauses = append(clauses, "dictionary_version = ?")
		args = append(args, f.DictionaryVersion)
	}
	if !f.Before.IsZero() {
		clauses = append(clauses, "created_at < ?")
		args = append(args, f.Before.UTC().Format(timeLayout))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// InvalidateCache deletes matching entries and returns how many were removed.
// It is the only way cache entries are ever removed.
func (s *Store) InvalidateCache(ctx context.Context, f CacheFilter) (int64, error) {
	where, args := f.where()
	res, err := s.db.ExecContext(ctx, "DELETE FROM cache_entries"+where, args...)
	if err != nil {
		return 0, unwritable("invalidating cache", err)
	}
	return res.RowsAffected()
}

// CacheStats summarizes the cache contents.
type CacheStats struct {
	Entries             int            `json:"entries" yaml:"entries"`
	ByTask              map[string]int `json:"by_task" yaml:"by_task"`
	ByDictionaryVersion map[string]int `json:"by_dictionary_version" yaml:"by_dictionary_version"`
}

// Stats counts cache entries by task and dictionary version.
func (s *Store) Stats(ctx context.Context) (CacheStats, error) {
	stats := CacheStats{ByTask: map[string]int{}, ByDictionaryVersion: map[string]int{}}

	var groups []struct {
		Task              string `db:"task"`
		DictionaryVersion string `db:"dictionary_version"`
		N                 int    `db:"n"`
	}
	err := s.db.SelectContext(ctx, &groups,
		`SELECT task, dictionary_version, count(*) AS n
		 FROM cache_entries GROUP BY task, dictionary_version`)
	if err != nil {
		return stats, fmt.Errorf("counting cache entries: %w", err)
	}
	for _, g := range groups {
		stats.Entries += g.N
		stats.ByTask[g.Task] += g.N
		stats.ByDictionaryVersion[g.DictionaryVersion] += g.N
	}
	return stats, nil
}
