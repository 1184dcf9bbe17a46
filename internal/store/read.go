package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrRunNotFound is returned by ReadRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// ReadRun returns the run with the given id.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	return readRun(ctx, s.db, id)
}

func readRun(ctx context.Context, q querier, id string) (Run, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+strings.Join(runColumns, ", ")+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ReadRuns returns matching runs ordered by seq.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ReadRuns(ctx context.Context, f RunFilter) ([]Run, error) {
	query, params, err := f.query().compile()
	if err != nil {
		return nil, fmt.Errorf("read runs: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	if f.Limit > 0 && len(runs) > f.Limit {
		runs = runs[len(runs)-f.Limit:]
	}
	return runs, nil
}

// ReadDecisions returns matching decisions ordered by run and position.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ReadDecisions(ctx context.Context, f DecisionFilter) ([]Decision, error) {
	query, params, err := f.query().compile()
	if err != nil {
		return nil, fmt.Errorf("read decisions: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	decisions := []Decision{}
	for rows.Next() {
		var d Decision
		err := rows.Scan(&d.RunID, &d.SiteID, &d.Seq, &d.Access, &d.Buffer, &d.Dim,
			&d.Index, &d.Range, &d.Extent, &d.Verdict, &d.Path, &d.Stage, &d.Reason)
		if err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return decisions, nil
}

func scanRun(row scanner) (Run, error) {
	var r Run
	err := row.Scan(&r.ID, &r.Seq, &r.Program, &r.ProgramHash, &r.Instrumented,
		&r.Safe, &r.Undecided, &r.Unsafe, &r.Guards)
	return r, err
}
