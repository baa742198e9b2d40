// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package transfer copies table rows from Oracle to Postgres. Rows are
// streamed in batches over the COPY protocol when every column type is
// COPY-compatible, with a parameterized INSERT fallback otherwise.
// Failures are isolated per batch and per table.
package transfer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v4"
	"go.uber.org/zap"

	"oralift.io/oralift/sql/orameta"
	"oralift.io/oralift/sql/postgres"
)

// Status classifies the outcome of one table.
type Status string

// Table outcomes.
const (
	Transferred Status = "transferred" // all source rows arrived
	Partial     Status = "partial"     // some batches failed
	Skipped     Status = "skipped"     // empty source table
	Errored     Status = "error"       // table-level failure
)

// A TableResult is the per-table transfer outcome.
type TableResult struct {
	Schema     string   `json:"schema"`
	Table      string   `json:"tableName"`
	Status     Status   `json:"status"`
	Rows       int64    `json:"rowsTransferred"`
	DurationMs int64    `json:"durationMs"`
	Errors     []string `json:"errors,omitempty"`
}

// A Report aggregates all table results.
type Report struct {
	Tables    []*TableResult `json:"tables"`
	TotalRows int64          `json:"totalRows"`
}

// Counts returns the number of tables per outcome class.
func (r *Report) Counts() (transferred, partial, skipped, errored int) {
	for _, t := range r.Tables {
		switch t.Status {
		case Transferred:
			transferred++
		case Partial:
			partial++
		case Skipped:
			skipped++
		default:
			errored++
		}
	}
	return transferred, partial, skipped, errored
}

// Options tune the engine.
type Options struct {
	FetchSize      int  // source cursor fetch size
	CommitInterval int  // rows per destination commit
	ExcludeLOBs    bool // drop LOB columns entirely
	AllowLossy     bool // substitute U+FFFD for invalid text
}

func (o *Options) withDefaults() {
	if o.FetchSize <= 0 {
		o.FetchSize = 1000
	}
	if o.CommitInterval <= 0 {
		o.CommitInterval = 10000
	}
}

// An Engine copies rows between the two databases.
type Engine struct {
	oracle *sql.DB
	pg     *pgx.Conn
	log    *zap.Logger
	opts   Options
}

// New returns an engine reading from oracle and writing through pg.
func New(oracle *sql.DB, pg *pgx.Conn, log *zap.Logger, opts Options) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	opts.withDefaults()
	return &Engine{oracle: oracle, pg: pg, log: log, opts: opts}
}

// lob reports whether the Oracle type is treated as a LOB for the
// exclusion switch. LONG counts as a LOB.
func lob(dataType string) bool {
	switch strings.ToUpper(dataType) {
	case "CLOB", "NCLOB", "BLOB", "BFILE", "LONG", "LONG RAW":
		return true
	}
	return false
}

// Run copies every table and reports per-table outcomes. counts are
// the source row counts from the row-count phase, used to classify
// completeness; progress is invoked once per table.
func (e *Engine) Run(ctx context.Context, tables []*orameta.Table, counts []*orameta.RowCount, progress func(done, total int, table string)) *Report {
	want := wantRows(counts)
	rep := &Report{}
	for i, t := range tables {
		if progress != nil {
			progress(i, len(tables), t.QualifiedName())
		}
		if ctx.Err() != nil {
			break
		}
		res := e.table(ctx, t, want(t.QualifiedName()))
		rep.Tables = append(rep.Tables, res)
		rep.TotalRows += res.Rows
	}
	return rep
}

// wantRows indexes the row-count phase output by qualified table name.
// Tables whose count failed, and tables the count phase never reached,
// report -1 (unknown).
func wantRows(counts []*orameta.RowCount) func(qualified string) int64 {
	m := make(map[string]int64, len(counts))
	for _, rc := range counts {
		if rc.Err == "" {
			m[rc.Schema+"."+rc.Table] = rc.Rows
		} else {
			m[rc.Schema+"."+rc.Table] = -1
		}
	}
	return func(qualified string) int64 {
		w, ok := m[qualified]
		if !ok {
			return -1
		}
		return w
	}
}

// table copies a single table.
func (e *Engine) table(ctx context.Context, t *orameta.Table, want int64) *TableResult {
	start := time.Now()
	res := &TableResult{Schema: t.Schema, Table: t.Name}
	defer func() { res.DurationMs = time.Since(start).Milliseconds() }()

	cols := make([]*orameta.Column, 0, len(t.Columns))
	for _, c := range t.Columns {
		if e.opts.ExcludeLOBs && lob(c.DataType) {
			continue
		}
		cols = append(cols, c)
	}
	if len(cols) == 0 {
		res.Status = Skipped
		res.Errors = append(res.Errors, "no transferable columns")
		return res
	}

	src := make([]string, len(cols))
	dst := make([]string, len(cols))
	copyOK := true
	for i, c := range cols {
		src[i] = fmt.Sprintf("%q", c.Name)
		dst[i] = postgres.Name(c.Name)
		if postgres.ColumnType(c).Unmapped {
			copyOK = false
		}
	}
	query := fmt.Sprintf(`SELECT %s FROM %q.%q`, strings.Join(src, ", "), t.Schema, t.Name)
	rows, err := e.oracle.QueryContext(ctx, query)
	if err != nil {
		res.Status = Errored
		res.Errors = append(res.Errors, fmt.Sprintf("source query: %v", err))
		return res
	}
	defer rows.Close()

	ident := pgx.Identifier{postgres.Name(t.Schema), postgres.Name(t.Name)}
	batch := make([][]any, 0, e.opts.CommitInterval)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		var n int64
		var err error
		if copyOK {
			n, err = e.pg.CopyFrom(ctx, ident, dst, pgx.CopyFromRows(batch))
		} else {
			n, err = e.insertBatch(ctx, ident, dst, batch)
		}
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("batch of %d rows: %v", len(batch), err))
		} else {
			res.Rows += n
		}
		batch = batch[:0]
	}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("scan: %v", err))
			continue
		}
		row, err := e.convertRow(vals)
		if err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		batch = append(batch, row)
		if len(batch) >= e.opts.CommitInterval {
			flush()
			if ctx.Err() != nil {
				break
			}
		}
	}
	if err := rows.Err(); err != nil && ctx.Err() == nil {
		res.Errors = append(res.Errors, fmt.Sprintf("source cursor: %v", err))
	}
	flush()

	res.Status = classify(want, res.Rows, len(res.Errors))
	return res
}

// classify derives the table status from the expected source count;
// want is -1 when that count is unknown.
func classify(want, rows int64, errors int) Status {
	switch {
	case want == 0 && rows == 0 && errors == 0:
		return Skipped
	case (want < 0 || rows == want) && errors == 0:
		return Transferred
	case rows > 0:
		return Partial
	default:
		return Errored
	}
}

// insertBatch is the non-COPY path: parameterized multi-row INSERTs of
// at most FetchSize rows each, so statements stay within parameter
// limits for wide tables.
func (e *Engine) insertBatch(ctx context.Context, ident pgx.Identifier, cols []string, batch [][]any) (int64, error) {
	var total int64
	for len(batch) > 0 {
		n := e.opts.FetchSize
		if n > len(batch) {
			n = len(batch)
		}
		affected, err := e.insertRows(ctx, ident, cols, batch[:n])
		if err != nil {
			return total, err
		}
		total += affected
		batch = batch[n:]
	}
	return total, nil
}

func (e *Engine) insertRows(ctx context.Context, ident pgx.Identifier, cols []string, batch [][]any) (int64, error) {
	var (
		b    strings.Builder
		args []any
	)
	fmt.Fprintf(&b, "INSERT INTO %s (", ident.Sanitize())
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q", c)
	}
	b.WriteString(") VALUES ")
	n := 1
	for i, row := range batch {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", n)
			n++
		}
		b.WriteByte(')')
		args = append(args, row...)
	}
	tag, err := e.pg.Exec(ctx, b.String(), args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// convertRow converts one scanned source row to destination values.
// Text values are pivoted through UTF-8; invalid bytes fail the row
// unless lossy substitution is allowed.
func (e *Engine) convertRow(vals []any) ([]any, error) {
	out := make([]any, len(vals))
	for i, v := range vals {
		switch v := v.(type) {
		case string:
			if !utf8.ValidString(v) {
				if !e.opts.AllowLossy {
					return nil, fmt.Errorf("column %d: invalid character data", i+1)
				}
				v = strings.ToValidUTF8(v, "�")
			}
			out[i] = v
		case []byte:
			out[i] = v
		default:
			out[i] = v
		}
	}
	return out, nil
}
