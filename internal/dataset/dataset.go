// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dataset reads trial records from tabular input. Column names match
// the json tags on types.TrialRecord; unknown columns are ignored.
package dataset

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/pdiddy/trial-enricher/pkg/types"
)

// ErrInvalidInput marks input that cannot be processed at all: a missing
// required column, a blank or duplicated identifier, or an unreadable row.
var ErrInvalidInput = errors.New("invalid input dataset")

// Reader streams TrialRecords in input order.
type Reader struct {
	next   func() (types.TrialRecord, error)
	closer io.Closer
	line   int
	seen   map[string]int
}

// DetectFormat infers the input format from the file extension.
func DetectFormat(path string) types.InputFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return types.InputJSONL
	default:
		return types.InputCSV
	}
}

// Open opens path for reading. An empty format is inferred from the extension.
func Open(path string, format types.InputFormat) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input %s: %w", path, err)
	}
	if format == "" {
		format = DetectFormat(path)
	}
	r, err := NewReader(f, format)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// NewReader wraps src. For CSV the header row is read and validated
// immediately.
func NewReader(src io.Reader, format types.InputFormat) (*Reader, error) {
	r := &Reader{seen: map[string]int{}}
	switch format {
	case types.InputCSV:
		next, err := csvRows(src, r)
		if err != nil {
			return nil, err
		}
		r.next = next
	case types.InputJSONL:
		r.next = jsonlRows(src, r)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidInput, format)
	}
	return r, nil
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (types.TrialRecord, error) {
	rec, err := r.next()
	if err != nil {
		return rec, err
	}
	rec.ID = strings.TrimSpace(rec.ID)
	if rec.ID == "" {
		return rec, fmt.Errorf("%w: row %d has no nct_id", ErrInvalidInput, r.line)
	}
	if prev, dup := r.seen[rec.ID]; dup {
		return rec, fmt.Errorf("%w: %s on row %d duplicates row %d", ErrInvalidInput, rec.ID, r.line, prev)
	}
	r.seen[rec.ID] = r.line
	return rec, nil
}

// Close closes the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// ReadAll reads every record from path.
func ReadAll(path string, format types.InputFormat) ([]types.TrialRecord, error) {
	r, err := Open(path, format)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []types.TrialRecord
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// fieldIndex maps json tag names to TrialRecord field indexes.
var fieldIndex = func() map[string]int {
	t := reflect.TypeOf(types.TrialRecord{})
	m := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			m[name] = i
		}
	}
	return m
}()

func csvRows(src io.Reader, r *Reader) (func() (types.TrialRecord, error), error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrInvalidInput, err)
	}
	r.line = 1

	cols := make([]int, len(header))
	present := map[string]bool{}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		present[name] = true
		if idx, ok := fieldIndex[name]; ok {
			cols[i] = idx
		} else {
			cols[i] = -1
		}
	}
	if err := requireColumns(present); err != nil {
		return nil, err
	}

	return func() (types.TrialRecord, error) {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return types.TrialRecord{}, io.EOF
		}
		r.line++
		if err != nil {
			return types.TrialRecord{}, fmt.Errorf("%w: row %d: %v", ErrInvalidInput, r.line, err)
		}
		var rec types.TrialRecord
		v := reflect.ValueOf(&rec).Elem()
		for i, cell := range row {
			if i < len(cols) && cols[i] >= 0 {
				v.Field(cols[i]).SetString(cell)
			}
		}
		return rec, nil
	}, nil
}

func requireColumns(present map[string]bool) error {
	var missing []string
	for _, c := range types.RequiredColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required column(s) %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

// jsonlRows decodes one JSON object per line. The first object must carry
// every required key; values may be strings, numbers, arrays, or objects.
// Non-string values are kept as their JSON text.
func jsonlRows(src io.Reader, r *Reader) func() (types.TrialRecord, error) {
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	checked := false

	return func() (types.TrialRecord, error) {
		for sc.Scan() {
			r.line++
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			var obj map[string]json.RawMessage
			if err := json.Unmarshal([]byte(line), &obj); err != nil {
				return types.TrialRecord{}, fmt.Errorf("%w: line %d: %v", ErrInvalidInput, r.line, err)
			}
			if !checked {
				present := map[string]bool{}
				for k := range obj {
					present[strings.ToLower(k)] = true
				}
				if err := requireColumns(present); err != nil {
					return types.TrialRecord{}, err
				}
				checked = true
			}

			var rec types.TrialRecord
			v := reflect.ValueOf(&rec).Elem()
			for k, raw := range obj {
				idx, ok := fieldIndex[strings.ToLower(k)]
				if !ok {
					continue
				}
				v.Field(idx).SetString(cellText(raw))
			}
			return rec, nil
		}
		if err := sc.Err(); err != nil {
			return types.TrialRecord{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return types.TrialRecord{}, io.EOF
	}
}

func cellText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	t := strings.TrimSpace(string(raw))
	if t == "null" {
		return ""
	}
	return t
}
