package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// WriteRun records a run and its decisions in one transaction. A run id is
// generated when run.ID is empty and the next logical seq is assigned.
//
// Uses ON CONFLICT DO NOTHING for idempotency: writing a run whose id is
// already present returns the stored run and leaves its decisions as they
// were.
func (s *Store) WriteRun(ctx context.Context, run Run, decisions []Decision) (Run, error) {
	if run.ID == "" {
		run.ID = s.ids.Generate()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var existing int64
	err = tx.QueryRowContext(ctx, `SELECT seq FROM runs WHERE id = ?`, run.ID).Scan(&existing)
	switch {
	case err == nil:
		stored, err := readRun(ctx, tx, run.ID)
		if err != nil {
			return Run{}, err
		}
		return stored, tx.Commit()
	case !errors.Is(err, sql.ErrNoRows):
		return Run{}, fmt.Errorf("write run: %w", err)
	}

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&run.Seq); err != nil {
		return Run{}, fmt.Errorf("write run: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, program, program_hash, instrumented, safe, undecided, unsafe, guards)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Seq,
		run.Program,
		run.ProgramHash,
		run.Instrumented,
		run.Safe,
		run.Undecided,
		run.Unsafe,
		run.Guards,
	)
	if err != nil {
		return Run{}, fmt.Errorf("write run: %w", err)
	}

	for _, d := range decisions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO decisions
			(run_id, site_id, seq, access, buffer, dim, idx, span, extent, verdict, path, stage, reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, site_id) DO NOTHING
		`,
			run.ID,
			d.SiteID,
			d.Seq,
			d.Access,
			d.Buffer,
			d.Dim,
			d.Index,
			d.Range,
			d.Extent,
			d.Verdict,
			d.Path,
			d.Stage,
			d.Reason,
		)
		if err != nil {
			return Run{}, fmt.Errorf("write decision %s: %w", d.SiteID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("write run: commit: %w", err)
	}
	return run, nil
}
