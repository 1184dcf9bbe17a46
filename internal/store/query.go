package store

import (
	"fmt"
	"strings"
)

// predicate is one "column = ?" condition. Values are always bound as
// parameters, never interpolated.
type predicate struct {
	column string
	value  any
}

// selectQuery is a parameterised SELECT over one table.
type selectQuery struct {
	table   string
	columns []string
	where   []predicate
	// orderBy must end in a unique key so results are deterministic.
	orderBy string
}

func (q selectQuery) compile() (string, []any, error) {
	if q.table == "" {
		return "", nil, fmt.Errorf("cannot compile query without table")
	}
	if q.orderBy == "" {
		return "", nil, fmt.Errorf("query on %s has no ORDER BY", q.table)
	}

	cols := "*"
	if len(q.columns) > 0 {
		cols = strings.Join(q.columns, ", ")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", cols, q.table)

	var params []any
	if len(q.where) > 0 {
		parts := make([]string, len(q.where))
		for i, p := range q.where {
			parts[i] = p.column + " = ?"
			params = append(params, p.value)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(parts, " AND "))
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(q.orderBy)
	return sb.String(), params, nil
}

// RunFilter selects runs. Zero fields match everything.
type RunFilter struct {
	Program     string
	ProgramHash string

	// Instrumented, when set, matches runs of that kind only.
	Instrumented *bool

	// Limit keeps only the most recent runs; zero means no limit.
	Limit int
}

func (f RunFilter) query() selectQuery {
	q := selectQuery{
		table:   "runs",
		columns: runColumns,
		orderBy: "seq ASC, id COLLATE BINARY ASC",
	}
	if f.Program != "" {
		q.where = append(q.where, predicate{"program", f.Program})
	}
	if f.ProgramHash != "" {
		q.where = append(q.where, predicate{"program_hash", f.ProgramHash})
	}
	if f.Instrumented != nil {
		q.where = append(q.where, predicate{"instrumented", *f.Instrumented})
	}
	return q
}

// DecisionFilter selects decisions. Zero fields match everything.
type DecisionFilter struct {
	RunID   string
	Buffer  string
	Verdict string
}

func (f DecisionFilter) query() selectQuery {
	q := selectQuery{
		table:   "decisions",
		columns: decisionColumns,
		orderBy: "run_id COLLATE BINARY ASC, seq ASC",
	}
	if f.RunID != "" {
		q.where = append(q.where, predicate{"run_id", f.RunID})
	}
	if f.Buffer != "" {
		q.where = append(q.where, predicate{"buffer", f.Buffer})
	}
	if f.Verdict != "" {
		q.where = append(q.where, predicate{"verdict", f.Verdict})
	}
	return q
}

var runColumns = []string{
	"id", "seq", "program", "program_hash", "instrumented", "safe", "undecided", "unsafe", "guards",
}

var decisionColumns = []string{
	"run_id", "site_id", "seq", "access", "buffer", "dim", "idx", "span", "extent", "verdict", "path", "stage", "reason",
}
