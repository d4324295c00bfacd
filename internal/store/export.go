// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdiddy/trial-enricher/pkg/types"
)

// CSVHeader returns the flat export columns. Every record fills every column.
func CSVHeader() []string {
	h := []string{"nct_id", "position", "status", "failed_layer", "errors"}
	for _, c := range types.EndpointCodes {
		h = append(h, "endpoint_"+strings.ToLower(string(c)))
	}
	h = append(h, "detected_endpoints", "planned_endpoint_count", "endpoints_path", "endpoint_adjudications",
		"gap_count", "has_unreported_planned", "reported_endpoints")
	for _, c := range types.ConsortItems {
		h = append(h, "consort_"+string(c))
	}
	h = append(h, "consort_score", "reporting_path", "trial_intent")
	for _, c := range types.Cohorts {
		h = append(h, "cohort_"+strings.ToLower(string(c)))
	}
	h = append(h, "classification_path", "classification_adjudications")
	return h
}

// CSVRow flattens r in CSVHeader order. Flags use 1, 0, and NA.
func CSVRow(r types.EnrichedRecord) []string {
	row := []string{r.ID, strconv.Itoa(r.Position), string(r.Status), r.FailedLayer, strings.Join(r.Errors, "; ")}
	for _, f := range r.Endpoints.Flags {
		row = append(row, f.CSV())
	}
	row = append(row,
		joinCodes(r.Endpoints.Detected),
		strconv.Itoa(r.Endpoints.PlannedCount),
		string(r.Endpoints.Path),
		strconv.Itoa(r.Endpoints.Adjudications),
		strconv.Itoa(r.Reporting.GapCount),
		r.Reporting.HasUnreportedPlanned.CSV(),
		joinCodes(r.Reporting.Reported),
	)
	for _, f := range r.Reporting.Consort {
		row = append(row, f.CSV())
	}
	row = append(row,
		strconv.Itoa(r.Reporting.ConsortScore),
		string(r.Reporting.Path),
		string(r.Classification.Intent),
	)
	for _, f := range r.Classification.Cohorts {
		row = append(row, f.CSV())
	}
	row = append(row, string(r.Classification.Path), strconv.Itoa(r.Classification.Adjudications))
	return row
}

func joinCodes(codes []types.EndpointCode) string {
	s := make([]string, len(codes))
	for i, c := range codes {
		s[i] = string(c)
	}
	return strings.Join(s, "|")
}

// WriteCSV writes records as the flat shareable table.
func WriteCSV(w io.Writer, records []types.EnrichedRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader()); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(CSVRow(r)); err != nil {
			return fmt.Errorf("writing %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSONL writes one JSON object per record.
func WriteJSONL(w io.Writer, records []types.EnrichedRecord) error {
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding %s: %w", r.ID, err)
		}
	}
	return nil
}

// ExportPaths names the files written by Export.
type ExportPaths struct {
	CSV   string
	JSONL string
}

// Export writes every committed record, in input order, to dir/base.csv and
// dir/base.jsonl. Files are written to a temporary name and renamed so a
// reader never sees a partial export.
func (s *Store) Export(ctx context.Context, dir, base string) (ExportPaths, int, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return ExportPaths{}, 0, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ExportPaths{}, 0, unwritable("creating output directory", err)
	}

	paths := ExportPaths{
		CSV:   filepath.Join(dir, base+".csv"),
		JSONL: filepath.Join(dir, base+".jsonl"),
	}
	if err := writeAtomic(paths.CSV, func(w io.Writer) error { return WriteCSV(w, records) }); err != nil {
		return paths, 0, err
	}
	if err := writeAtomic(paths.JSONL, func(w io.Writer) error { return WriteJSONL(w, records) }); err != nil {
		return paths, 0, err
	}
	return paths, len(records), nil
}

func writeAtomic(path string, fn func(io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return unwritable("creating "+path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return unwritable("writing "+path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return unwritable("closing "+path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return unwritable("renaming "+path, err)
	}
	return nil
}
