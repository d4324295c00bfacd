// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/pdiddy/trial-enricher/pkg/types"
)

// WriteAuditJSONL writes audit entries one per line.
func WriteAuditJSONL(w io.Writer, entries []types.AdjudicationLogEntry) error {
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("encoding audit entry %s: %w", e.ID, err)
		}
	}
	return nil
}

// AuditMarkdown renders a review summary of the audit log: counts by task
// and status, then one table row per entry.
func AuditMarkdown(entries []types.AdjudicationLogEntry) string {
	var b strings.Builder
	b.WriteString("# Adjudication review\n\n")
	fmt.Fprintf(&b, "%d decision(s) recorded.\n\n", len(entries))

	counts := map[types.AdjudicationTask]map[types.AuditStatus]int{}
	for _, e := range entries {
		if counts[e.Task] == nil {
			counts[e.Task] = map[types.AuditStatus]int{}
		}
		counts[e.Task][e.Status]++
	}
	tasks := make([]string, 0, len(counts))
	for t := range counts {
		tasks = append(tasks, string(t))
	}
	sort.Strings(tasks)

	b.WriteString("## Summary\n\n| Task | Resolved | Rejected | Unresolved |\n|---|---|---|---|\n")
	for _, t := range tasks {
		c := counts[types.AdjudicationTask(t)]
		fmt.Fprintf(&b, "| %s | %d | %d | %d |\n", t,
			c[types.AuditResolved], c[types.AuditRejected], c[types.AuditUnresolved])
	}

	b.WriteString("\n## Entries\n\n| Time | Run | Task | Status | Labels | Attempts | Fingerprint | Note |\n|---|---|---|---|---|---|---|---|\n")
	for _, e := range entries {
		labels := ""
		note := e.Error
		if e.Decision != nil {
			labels = strings.Join(e.Decision.Labels, ", ")
			if note == "" {
				note = e.Decision.Reason
			}
		}
		fp := e.Fingerprint
		if len(fp) > 12 {
			fp = fp[:12]
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %d | `%s` | %s |\n",
			e.Timestamp.UTC().Format("2006-01-02 15:04:05"), cell(e.RunID), e.Task, e.Status,
			cell(labels), e.Attempts, fp, cell(note))
	}
	return b.String()
}

// cell escapes text for a Markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

// WriteAuditHTML renders AuditMarkdown as a standalone HTML page.
func WriteAuditHTML(w io.Writer, entries []types.AdjudicationLogEntry) error {
	var content strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(AuditMarkdown(entries)), &content); err != nil {
		return fmt.Errorf("markdown convert: %w", err)
	}
	_, err := io.WriteString(w, "<!doctype html><html><head><meta charset='utf-8'><title>Adjudication review</title>"+
		"<style>body{font-family:sans-serif;margin:1.5rem;} table{border-collapse:collapse;font-size:0.85rem;} "+
		"th,td{border:1px solid #bbb;padding:0.3rem 0.5rem;text-align:left;vertical-align:top;} thead th{background:#f1f5f9;}</style>"+
		"</head><body>"+content.String()+"</body></html>")
	return err
}
