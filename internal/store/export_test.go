// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/trial-enricher/pkg/types"
)

func TestCSVRow_MatchesHeader(t *testing.T) {
	r := types.NewEnrichedRecord("NCT1", 0)
	row := CSVRow(r)
	assert.Len(t, row, len(CSVHeader()))

	header := CSVHeader()
	col := func(name string) string {
		for i, h := range header {
			if h == name {
				return row[i]
			}
		}
		t.Fatalf("column %s not found", name)
		return ""
	}
	assert.Equal(t, "NA", col("endpoint_os"), "unknown flags are visible, not blank")
	assert.Equal(t, "unclassified", col("trial_intent"))
	assert.Equal(t, "NA", col("cohort_her2_positive"))
	assert.Equal(t, "NA", col("has_unreported_planned"))
}

func TestWriteCSV(t *testing.T) {
	a := types.NewEnrichedRecord("NCT1", 0)
	a.Endpoints.Flags[3] = types.FlagTrue
	a.Endpoints.Flags[6] = types.FlagFalse
	a.Endpoints.Detected = []types.EndpointCode{types.EndpointOS, types.EndpointORR}
	a.Errors = []string{"layer b: bad json"}
	b := types.NewEnrichedRecord("NCT2", 1)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []types.EnrichedRecord{a, b}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "nct_id", rows[0][0])
	assert.Equal(t, "NCT1", rows[1][0])
	assert.Equal(t, "1", rows[1][5+3])
	assert.Equal(t, "0", rows[1][5+6])
	assert.Equal(t, "NA", rows[1][5])
	assert.Equal(t, "layer b: bad json", rows[1][4])
	assert.Equal(t, "OS|ORR", rows[1][5+types.NumEndpoints])
}

func TestExport(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Commit(ctx, types.Checkpoint{
		RunID: "r", LastID: "NCT2", Position: 1, WrittenAt: time.Now(),
		// Committed out of order; exports follow position.
		Records: []types.EnrichedRecord{record("NCT2", 1), record("NCT1", 0)},
	}))

	dir := filepath.Join(t.TempDir(), "out")
	paths, n, err := s.Export(ctx, dir, "trials_enriched")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(paths.CSV)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "NCT1,0,"))
	assert.True(t, strings.HasPrefix(lines[2], "NCT2,1,"))

	f, err := os.Open(paths.JSONL)
	require.NoError(t, err)
	defer f.Close()
	sc := bufio.NewScanner(f)
	var count int
	for sc.Scan() {
		count++
	}
	assert.Equal(t, 2, count)

	_, err = os.Stat(paths.CSV + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestAuditReport(t *testing.T) {
	entries := []types.AdjudicationLogEntry{
		{ID: "1", RunID: "r", Fingerprint: strings.Repeat("a", 64), Task: types.TaskEndpoint,
			Status: types.AuditResolved, Attempts: 1, Decision: &types.Decision{Labels: []string{"OS", "TTP"}, Reason: "a | b"}},
		{ID: "2", RunID: "r", Fingerprint: "bb", Task: types.TaskTrialIntent,
			Status: types.AuditUnresolved, Attempts: 3, Error: "timeout"},
	}

	md := AuditMarkdown(entries)
	assert.Contains(t, md, "2 decision(s) recorded.")
	assert.Contains(t, md, "| endpoint | 1 | 0 | 0 |")
	assert.Contains(t, md, "| trial-intent | 0 | 0 | 1 |")
	assert.Contains(t, md, "OS, TTP")
	assert.Contains(t, md, `a \| b`)
	assert.Contains(t, md, "`aaaaaaaaaaaa`")

	var html bytes.Buffer
	require.NoError(t, WriteAuditHTML(&html, entries))
	assert.Contains(t, html.String(), "<table>")
	assert.Contains(t, html.String(), "<h1>Adjudication review</h1>")

	var jsonl bytes.Buffer
	require.NoError(t, WriteAuditJSONL(&jsonl, entries))
	assert.Equal(t, 2, strings.Count(jsonl.String(), "\n"))
}
