// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package postgres generates and applies the PostgreSQL side of the
// migration: type mapping, object creation, stub-then-implement phases
// and the Oracle compatibility catalogue.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/jackc/pgconn"
	"go.uber.org/zap"

	"oralift.io/oralift/sql/internal/sqlx"
	"oralift.io/oralift/sql/orameta"
)

// A Creator applies generated DDL to the destination database. Each item
// executes in its own transaction; failures are classified and collected
// into an Outcome, never re-raised.
type Creator struct {
	db   *sql.DB
	log  *zap.Logger
	dump *Dump
}

// NewCreator returns a creator writing through db. A non-nil dump
// receives a copy of every applied statement.
func NewCreator(db *sql.DB, log *zap.Logger, dump *Dump) *Creator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Creator{db: db, log: log, dump: dump}
}

// conflictStates are the SQLSTATEs reported when the object already
// exists. They are authoritative for the skip classification.
var conflictStates = map[string]bool{
	"42P06": true, // duplicate_schema
	"42P07": true, // duplicate_table
	"42710": true, // duplicate_object
	"42712": true, // duplicate_alias
	"42723": true, // duplicate_function
}

// Conflict reports whether the error is a benign already-exists failure.
func Conflict(err error) bool {
	var pge *pgconn.PgError
	return errors.As(err, &pge) && conflictStates[pge.Code]
}

// exec runs a single DDL statement in its own transaction.
func (c *Creator) exec(ctx context.Context, phase, ddl string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	c.dump.Append(phase, ddl)
	return nil
}

// apply executes ddl and files the item into the outcome.
func apply[T any](ctx context.Context, c *Creator, o *orameta.Outcome[T], item T, phase, ddl string) {
	switch err := c.exec(ctx, phase, ddl); {
	case err == nil:
		o.Add(item)
	case Conflict(err):
		o.Skip(item, "already exists")
	default:
		c.log.Debug("ddl failed", zap.String("phase", phase), zap.Error(err))
		o.Error(item, ddl, err)
	}
}

// Schemas creates one Postgres schema per extracted Oracle schema.
func (c *Creator) Schemas(ctx context.Context, schemas []*orameta.Schema) *orameta.Outcome[string] {
	o := orameta.NewOutcome[string]()
	for _, s := range schemas {
		name := Ident(s.Name)
		b := sqlx.B("CREATE SCHEMA").P(name)
		apply(ctx, c, o, name, "schemas", b.String())
	}
	return o
}

// ObjectTypes creates a composite type per Oracle object type.
func (c *Creator) ObjectTypes(ctx context.Context, types []*orameta.ObjectType) *orameta.Outcome[string] {
	o := orameta.NewOutcome[string]()
	for _, t := range types {
		name := QualIdent(t.Schema, t.Name)
		b := sqlx.B("CREATE TYPE").P(name, "AS")
		b.Wrap(func(b *sqlx.Builder) {
			b.MapComma(len(t.Attrs), func(i int, b *sqlx.Builder) {
				a := t.Attrs[i]
				m := AttrType(a)
				if m.Unmapped {
					o.Warn(orameta.Warning{
						Object:  name,
						Column:  a.Name,
						Message: fmt.Sprintf("unmapped attribute type %q", a.DataType),
					})
				}
				b.P(Ident(a.Name), m.T)
			})
		})
		apply(ctx, c, o, name, "object_types", b.String())
	}
	return o
}

// Sequences creates Postgres sequences positioned after the last Oracle
// number, so generated keys continue where the source left off.
func (c *Creator) Sequences(ctx context.Context, seqs []*orameta.Sequence) *orameta.Outcome[string] {
	o := orameta.NewOutcome[string]()
	for _, s := range seqs {
		name := QualIdent(s.Schema, s.Name)
		start := s.Start
		if s.Last > start {
			start = s.Last + s.Cache
		}
		min, max := clampSeq(s.Min), clampSeq(s.Max)
		b := sqlx.B("CREATE SEQUENCE").P(name)
		b.P("INCREMENT BY", fmt.Sprint(s.Increment))
		b.P("MINVALUE", fmt.Sprint(min), "MAXVALUE", fmt.Sprint(max))
		b.P("START WITH", fmt.Sprint(start))
		if s.Cache > 1 {
			b.P("CACHE", fmt.Sprint(s.Cache))
		}
		if s.Cycle {
			b.P("CYCLE")
		}
		apply(ctx, c, o, name, "sequences", b.String())
	}
	return o
}

// clampSeq folds Oracle's 28-digit sequence bounds into bigint range.
func clampSeq(v int64) int64 {
	if v > math.MaxInt64-1 {
		return math.MaxInt64 - 1
	}
	if v < math.MinInt64+1 {
		return math.MinInt64 + 1
	}
	return v
}

// Tables creates tables without constraints. Columns with unmappable
// defaults are created without a default and reported as warnings.
func (c *Creator) Tables(ctx context.Context, tables []*orameta.Table) *orameta.Outcome[string] {
	o := orameta.NewOutcome[string]()
	for _, t := range tables {
		name := QualIdent(t.Schema, t.Name)
		b := sqlx.B("CREATE TABLE").P(name)
		b.Wrap(func(b *sqlx.Builder) {
			b.MapComma(len(t.Columns), func(i int, b *sqlx.Builder) {
				col := t.Columns[i]
				m := ColumnType(col)
				if m.Unmapped {
					o.Warn(orameta.Warning{
						Object:  name,
						Column:  col.Name,
						Message: fmt.Sprintf("unmapped column type %q", col.DataType),
					})
				}
				b.P(Ident(col.Name), m.T)
				if col.Default != "" {
					if d, ok := MapDefault(col.Default, t.Schema); ok {
						b.P("DEFAULT", d)
					} else {
						o.Warn(orameta.Warning{
							Object:        name,
							Column:        col.Name,
							OracleDefault: strings.TrimSpace(col.Default),
							Message:       "unmapped default expression",
						})
					}
				}
				if !col.Nullable {
					b.P("NOT NULL")
				}
			})
		})
		apply(ctx, c, o, name, "tables", b.String())
	}
	return o
}

// constraintOrder applies primary keys first, then unique keys, then
// foreign keys, then checks, so references always find their target.
var constraintOrder = map[orameta.ConstraintType]int{
	orameta.PrimaryKey: 0,
	orameta.Unique:     1,
	orameta.ForeignKey: 2,
	orameta.Check:      3,
}

// Constraints applies the extracted constraints in P, U, R, C order,
// each in its own transaction.
func (c *Creator) Constraints(ctx context.Context, cons []*orameta.Constraint) *orameta.Outcome[string] {
	o := orameta.NewOutcome[string]()
	ordered := make([]*orameta.Constraint, len(cons))
	copy(ordered, cons)
	sort.SliceStable(ordered, func(i, j int) bool {
		return constraintOrder[ordered[i].Type] < constraintOrder[ordered[j].Type]
	})
	for _, cn := range ordered {
		name := Ident(cn.Name)
		b := sqlx.B("ALTER TABLE").P(QualIdent(cn.Schema, cn.Table), "ADD CONSTRAINT", name)
		switch cn.Type {
		case orameta.PrimaryKey, orameta.Unique:
			if cn.Type == orameta.PrimaryKey {
				b.P("PRIMARY KEY")
			} else {
				b.P("UNIQUE")
			}
			columnList(b, cn.Columns)
		case orameta.ForeignKey:
			b.P("FOREIGN KEY")
			columnList(b, cn.Columns)
			b.P("REFERENCES").P(QualIdent(cn.RefSchema, cn.RefTable))
			columnList(b, cn.RefColumns)
		case orameta.Check:
			b.P("CHECK").Wrap(func(b *sqlx.Builder) {
				b.P(TranslateExpr(cn.Check))
			})
		default:
			o.Skip(name, fmt.Sprintf("unsupported constraint type %q", cn.Type))
			continue
		}
		if cn.Deferrable {
			b.P("DEFERRABLE")
			if cn.InitiallyDeferred {
				b.P("INITIALLY DEFERRED")
			}
		}
		apply(ctx, c, o, name, "constraints", b.String())
	}
	return o
}

func columnList(b *sqlx.Builder, cols []string) {
	b.Wrap(func(b *sqlx.Builder) {
		b.MapComma(len(cols), func(i int, b *sqlx.Builder) {
			b.P(Ident(cols[i]))
		})
	})
}

// firstIndexColumnsQuery lists the first column of every index, used to
// decide whether a foreign key is already covered.
const firstIndexColumnsQuery = `
SELECT n.nspname, t.relname, a.attname
FROM pg_index x
JOIN pg_class t ON t.oid = x.indrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = x.indkey[0]
WHERE n.nspname NOT IN ('pg_catalog', 'information_schema')
`

// FKIndexes creates a b-tree index on the referencing columns of every
// foreign key, unless an existing index already leads with the same
// column.
func (c *Creator) FKIndexes(ctx context.Context, cons []*orameta.Constraint) *orameta.Outcome[string] {
	o := orameta.NewOutcome[string]()
	covered := map[string]bool{}
	rows, err := c.db.QueryContext(ctx, firstIndexColumnsQuery)
	if err != nil {
		c.log.Warn("listing existing indexes", zap.Error(err))
	} else {
		defer rows.Close()
		for rows.Next() {
			var ns, tbl, col string
			if err := rows.Scan(&ns, &tbl, &col); err != nil {
				break
			}
			covered[ns+"."+tbl+"."+col] = true
		}
		rows.Close()
	}
	for _, cn := range cons {
		if cn.Type != orameta.ForeignKey || len(cn.Columns) == 0 {
			continue
		}
		name := Ident(cn.Name + "_IDX")
		key := Name(cn.Schema) + "." + Name(cn.Table) + "." + Name(cn.Columns[0])
		if covered[key] {
			o.Skip(name, "covered by existing index")
			continue
		}
		b := sqlx.B("CREATE INDEX").P(name, "ON", QualIdent(cn.Schema, cn.Table))
		columnList(b, cn.Columns)
		apply(ctx, c, o, name, "fk_indexes", b.String())
		covered[key] = true
	}
	return o
}
