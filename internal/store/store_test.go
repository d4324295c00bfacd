// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/trial-enricher/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "enrich.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enrich.db")
	s, err := Open(path)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, types.CacheEntry{Fingerprint: "fp", Task: types.TaskEndpoint, Decision: types.Decision{Labels: []string{"OS"}}}))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	_, ok, err := s2.Get(ctx, "fp")
	require.NoError(t, err)
	assert.True(t, ok, "cache entries persist across runs")
	assert.Equal(t, path, s2.Path())
}

func TestCache_GetPut(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := types.CacheEntry{
		Fingerprint:       "abc",
		Task:              types.TaskTrialIntent,
		DictionaryVersion: "v1",
		Decision:          types.Decision{Labels: []string{"other"}, Reason: "supportive care"},
		CreatedAt:         created,
	}
	require.NoError(t, s.Put(ctx, entry))

	got, ok, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry.Decision, got.Decision)
	assert.Equal(t, types.TaskTrialIntent, got.Task)
	assert.True(t, created.Equal(got.CreatedAt))

	// A second Put for the same fingerprint does not overwrite.
	entry.Decision = types.Decision{Labels: []string{"new-medicine-evaluation"}}
	require.NoError(t, s.Put(ctx, entry))
	got, _, err = s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, []string{"other"}, got.Decision.Labels)
}

func TestInvalidateCache(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	put := func(fp string, task types.AdjudicationTask, ver string, at time.Time) {
		require.NoError(t, s.Put(ctx, types.CacheEntry{Fingerprint: fp, Task: task, DictionaryVersion: ver, CreatedAt: at}))
	}
	put("a", types.TaskEndpoint, "v1", old)
	put("b", types.TaskEndpoint, "v2", recent)
	put("c", types.CohortTask(types.CohortHER2Positive), "v2", recent)
	put("d", types.CohortTask(types.CohortBRCAMutant), "v2", old)
	put("e", types.TaskTrialIntent, "v2", recent)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Entries)
	assert.Equal(t, 2, stats.ByTask["endpoint"])
	assert.Equal(t, 4, stats.ByDictionaryVersion["v2"])

	n, err := s.InvalidateCache(ctx, CacheFilter{DictionaryVersion: "v1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.InvalidateCache(ctx, CacheFilter{Task: "cohort"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.InvalidateCache(ctx, CacheFilter{Before: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = s.InvalidateCache(ctx, CacheFilter{Fingerprint: "e"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entries)

	n, err = s.InvalidateCache(ctx, CacheFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAuditLog_AppendOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ts := time.Date(2026, 2, 2, 2, 2, 2, 0, time.UTC)
	resolved := types.AdjudicationLogEntry{
		ID: "1", RunID: "run-a", Fingerprint: "fp1", Task: types.TaskEndpoint,
		DictionaryVersion: "v1", Model: "m", Query: "q", RawResponse: `{"labels":["OS"]}`,
		Decision: &types.Decision{Labels: []string{"OS"}}, Status: types.AuditResolved,
		Attempts: 1, Timestamp: ts,
	}
	unresolved := types.AdjudicationLogEntry{
		ID: "2", RunID: "run-b", Fingerprint: "fp2", Task: types.TaskTrialIntent,
		DictionaryVersion: "v1", Model: "m", Query: "q2", Status: types.AuditUnresolved,
		Error: "timeout", Attempts: 3, Timestamp: ts,
	}
	require.NoError(t, s.Append(ctx, resolved))
	require.NoError(t, s.Append(ctx, unresolved))

	all, err := s.AuditEntries(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "1", all[0].ID)
	require.NotNil(t, all[0].Decision)
	assert.Equal(t, []string{"OS"}, all[0].Decision.Labels)
	assert.Nil(t, all[1].Decision)
	assert.True(t, ts.Equal(all[1].Timestamp))

	byRun, err := s.AuditEntries(ctx, AuditFilter{RunID: "run-b"})
	require.NoError(t, err)
	require.Len(t, byRun, 1)
	assert.Equal(t, types.AuditUnresolved, byRun[0].Status)

	byStatus, err := s.AuditEntries(ctx, AuditFilter{Status: types.AuditResolved})
	require.NoError(t, err)
	assert.Len(t, byStatus, 1)

	_, err = s.db.ExecContext(ctx, `UPDATE adjudication_log SET status = 'resolved' WHERE id = '2'`)
	assert.Error(t, err)
	_, err = s.db.ExecContext(ctx, `DELETE FROM adjudication_log`)
	assert.Error(t, err)

	// Duplicate IDs are refused.
	err = s.Append(ctx, resolved)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnwritable))
}

func record(id string, pos int) types.EnrichedRecord {
	r := types.NewEnrichedRecord(id, pos)
	r.Endpoints.Flags[0] = types.FlagTrue
	r.Endpoints.Detected = []types.EndpointCode{types.EndpointCodes[0]}
	r.Endpoints.Path = types.PathRule
	return r
}

func TestCommitAndLoadCheckpoint(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.LoadCheckpoint(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Commit(ctx, types.Checkpoint{
		RunID: "run-1", LastID: "NCT2", Position: 1, DictionaryVersion: "v1",
		WrittenAt: time.Now(),
		Records:   []types.EnrichedRecord{record("NCT1", 0), record("NCT2", 1)},
	}))
	require.NoError(t, s.Commit(ctx, types.Checkpoint{
		RunID: "run-1", LastID: "NCT3", Position: 2, DictionaryVersion: "v1",
		WrittenAt: time.Now(),
		Records:   []types.EnrichedRecord{record("NCT3", 2)},
	}))

	cp, ok, err := s.LoadCheckpoint(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "NCT3", cp.LastID)
	assert.Equal(t, 2, cp.Position)
	assert.Equal(t, []string{"NCT1", "NCT2", "NCT3"}, cp.BatchIDs())

	recs, err := s.Records(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, types.FlagTrue, recs[0].Endpoints.Flags[0])
	assert.Equal(t, types.FlagUnknown, recs[0].Endpoints.Flags[1])
	assert.Equal(t, types.IntentUnclassified, recs[2].Classification.Intent)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, s.Reset(ctx))
	_, ok, err = s.LoadCheckpoint(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCommit_RewriteIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	batch := types.Checkpoint{RunID: "r", LastID: "NCT1", Position: 0, Records: []types.EnrichedRecord{record("NCT1", 0)}}
	require.NoError(t, s.Commit(ctx, batch))
	require.NoError(t, s.Commit(ctx, batch))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestClosedStoreIsUnwritable(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "enrich.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.Commit(context.Background(), types.Checkpoint{RunID: "r"})
	assert.True(t, errors.Is(err, ErrUnwritable))
	err = s.Append(context.Background(), types.AdjudicationLogEntry{ID: "x"})
	assert.True(t, errors.Is(err, ErrUnwritable))
}
