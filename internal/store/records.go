// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pdiddy/trial-enricher/pkg/types"
)

// Commit writes a checkpoint batch and advances the resume cursor in one
// transaction. Either both land or neither does.
func (s *Store) Commit(ctx context.Context, cp types.Checkpoint) error {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx,
			`INSERT OR REPLACE INTO enriched (record_id, position, status, run_id, row)
			 VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range cp.Records {
			row, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("encoding record %s: %w", r.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, r.ID, r.Position, string(r.Status), cp.RunID, string(row)); err != nil {
				return fmt.Errorf("writing record %s: %w", r.ID, err)
			}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO checkpoints (slot, run_id, last_id, position, dictionary_version, written_at)
			 VALUES (1, ?, ?, ?, ?, ?)`,
			cp.RunID, cp.LastID, cp.Position, cp.DictionaryVersion, cp.WrittenAt.UTC().Format(timeLayout))
		return err
	})
	if err != nil {
		return unwritable("committing checkpoint", err)
	}
	return nil
}

type checkpointRow struct {
	RunID             string `db:"run_id"`
	LastID            string `db:"last_id"`
	Position          int    `db:"position"`
	DictionaryVersion string `db:"dictionary_version"`
	WrittenAt         string `db:"written_at"`
}

// LoadCheckpoint returns the latest checkpoint cursor. Records holds every
// record the checkpointed run committed up to the cursor.
func (s *Store) LoadCheckpoint(ctx context.Context) (types.Checkpoint, bool, error) {
	var row checkpointRow
	err := s.db.GetContext(ctx, &row,
		`SELECT run_id, last_id, position, dictionary_version, written_at FROM checkpoints WHERE slot = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Checkpoint{}, false, nil
	}
	if err != nil {
		return types.Checkpoint{}, false, fmt.Errorf("reading checkpoint: %w", err)
	}
	cp := types.Checkpoint{
		RunID:             row.RunID,
		LastID:            row.LastID,
		Position:          row.Position,
		DictionaryVersion: row.DictionaryVersion,
	}
	cp.WrittenAt, _ = time.Parse(timeLayout, row.WrittenAt)

	recs, err := s.selectRecords(ctx,
		`SELECT row FROM enriched WHERE run_id = ? ORDER BY position`, row.RunID)
	if err != nil {
		return cp, false, err
	}
	for _, r := range recs {
		if r.Position <= cp.Position {
			cp.Records = append(cp.Records, r)
		}
	}
	return cp, true, nil
}

// Reset discards enriched records and the checkpoint so a fresh run starts
// from the first record. The cache and audit log are untouched.
func (s *Store) Reset(ctx context.Context) error {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM enriched`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM checkpoints`)
		return err
	})
	if err != nil {
		return unwritable("resetting run state", err)
	}
	return nil
}

// Records returns every committed enriched record in input order.
func (s *Store) Records(ctx context.Context) ([]types.EnrichedRecord, error) {
	return s.selectRecords(ctx, `SELECT row FROM enriched ORDER BY position`)
}

// Count returns the number of committed records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT count(*) FROM enriched`); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

func (s *Store) selectRecords(ctx context.Context, q string, args ...any) ([]types.EnrichedRecord, error) {
	var rows []string
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("reading enriched records: %w", err)
	}
	out := make([]types.EnrichedRecord, 0, len(rows))
	for _, raw := range rows {
		var r types.EnrichedRecord
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("decoding enriched record: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}
