// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package oracle reads the Oracle data dictionary into the canonical
// orameta model. Extractors never write to either database; a failure
// on a single object is recorded and does not abort the extraction.
package oracle

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"oralift.io/oralift/sql/internal/sqlx"
	"oralift.io/oralift/sql/orameta"
)

// An Extractor reads dictionary views over a single Oracle connection.
type Extractor struct {
	conn sqlx.ExecQuerier
	log  *zap.Logger
}

// NewExtractor returns an extractor reading through conn.
func NewExtractor(conn sqlx.ExecQuerier, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{conn: conn, log: log}
}

// Schemas lists the non-system schemas of the database. When only is
// non-empty the result is restricted to that set.
func (e *Extractor) Schemas(ctx context.Context, only []string) ([]*orameta.Schema, error) {
	rows, err := e.conn.QueryContext(ctx, schemasQuery)
	if err != nil {
		return nil, fmt.Errorf("oracle: querying schemas: %w", err)
	}
	names, err := sqlx.ScanStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("oracle: scanning schemas: %w", err)
	}
	keep := map[string]bool{}
	for _, n := range only {
		keep[strings.ToUpper(n)] = true
	}
	var schemas []*orameta.Schema
	for _, n := range names {
		if len(keep) > 0 && !keep[n] {
			continue
		}
		schemas = append(schemas, &orameta.Schema{Name: n})
	}
	return schemas, nil
}

// Synonyms lists the synonyms of the given schemas.
func (e *Extractor) Synonyms(ctx context.Context, schemas []string) ([]*orameta.Synonym, []orameta.ExtractError) {
	var (
		out  []*orameta.Synonym
		errs []orameta.ExtractError
	)
	for _, s := range schemas {
		rows, err := e.conn.QueryContext(ctx, synonymsQuery, s)
		if err != nil {
			errs = append(errs, orameta.ExtractError{Object: s, Err: err.Error()})
			continue
		}
		for rows.Next() {
			var name, targetOwner, targetName string
			var link sql.NullString
			if err := rows.Scan(&name, &targetOwner, &targetName, &link); err != nil {
				errs = append(errs, orameta.ExtractError{Object: s, Err: err.Error()})
				break
			}
			out = append(out, &orameta.Synonym{
				Owner:       s,
				Name:        name,
				TargetOwner: targetOwner,
				TargetName:  targetName,
				DBLink:      link.String,
			})
		}
		rows.Close()
	}
	return out, errs
}

// ObjectTypes lists the user-defined object types of the given schemas
// together with their attributes in declaration order.
func (e *Extractor) ObjectTypes(ctx context.Context, schemas []string) ([]*orameta.ObjectType, []orameta.ExtractError) {
	var (
		out  []*orameta.ObjectType
		errs []orameta.ExtractError
	)
	for _, s := range schemas {
		rows, err := e.conn.QueryContext(ctx, objectTypesQuery, s)
		if err != nil {
			errs = append(errs, orameta.ExtractError{Object: s, Err: err.Error()})
			continue
		}
		names, err := sqlx.ScanStrings(rows)
		if err != nil {
			errs = append(errs, orameta.ExtractError{Object: s, Err: err.Error()})
			continue
		}
		for _, name := range names {
			t := &orameta.ObjectType{Schema: s, Name: name}
			if err := e.typeAttrs(ctx, t); err != nil {
				errs = append(errs, orameta.ExtractError{Object: s + "." + name, Err: err.Error()})
				continue
			}
			out = append(out, t)
		}
	}
	return out, errs
}

func (e *Extractor) typeAttrs(ctx context.Context, t *orameta.ObjectType) error {
	rows, err := e.conn.QueryContext(ctx, typeAttrsQuery, t.Schema, t.Name)
	if err != nil {
		return fmt.Errorf("oracle: querying %q attributes: %w", t.Name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			name, typ               string
			length, precision, scal sql.NullInt64
		)
		if err := rows.Scan(&name, &typ, &length, &precision, &scal); err != nil {
			return err
		}
		t.Attrs = append(t.Attrs, &orameta.TypeAttr{
			Name:      name,
			DataType:  typ,
			Length:    int(length.Int64),
			Precision: int(precision.Int64),
			Scale:     int(scal.Int64),
		})
	}
	return rows.Err()
}

// Sequences lists the sequences of the given schemas. Oracle sequence
// bounds exceed 64-bit range and are clamped during scanning.
func (e *Extractor) Sequences(ctx context.Context, schemas []string) ([]*orameta.Sequence, []orameta.ExtractError) {
	var (
		out  []*orameta.Sequence
		errs []orameta.ExtractError
	)
	for _, s := range schemas {
		rows, err := e.conn.QueryContext(ctx, sequencesQuery, s)
		if err != nil {
			errs = append(errs, orameta.ExtractError{Object: s, Err: err.Error()})
			continue
		}
		for rows.Next() {
			var (
				name                string
				minV, maxV, lastV   sql.NullString
				inc, cache          sql.NullInt64
				cycle               sql.NullString
			)
			if err := rows.Scan(&name, &minV, &maxV, &inc, &cycle, &cache, &lastV); err != nil {
				errs = append(errs, orameta.ExtractError{Object: s, Err: err.Error()})
				break
			}
			seq := &orameta.Sequence{
				Schema:    s,
				Name:      name,
				Min:       clampInt64(minV.String),
				Max:       clampInt64(maxV.String),
				Increment: inc.Int64,
				Cycle:     cycle.String == "Y",
				Cache:     cache.Int64,
				Last:      clampInt64(lastV.String),
			}
			seq.Start = seq.Last
			out = append(out, seq)
		}
		rows.Close()
	}
	return out, errs
}

// clampInt64 parses an Oracle NUMBER rendered as text, folding values
// outside int64 range onto the range bounds.
func clampInt64(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return v
	}
	if strings.HasPrefix(s, "-") {
		return -(1<<63 - 1)
	}
	return 1<<63 - 1
}

// Tables lists the tables of the given schemas with their columns in
// position order. Constraints are extracted by a later phase.
func (e *Extractor) Tables(ctx context.Context, schemas []string) ([]*orameta.Table, []orameta.ExtractError) {
	var (
		out  []*orameta.Table
		errs []orameta.ExtractError
	)
	for _, s := range schemas {
		rows, err := e.conn.QueryContext(ctx, tablesQuery, s)
		if err != nil {
			errs = append(errs, orameta.ExtractError{Object: s, Err: err.Error()})
			continue
		}
		names, err := sqlx.ScanStrings(rows)
		if err != nil {
			errs = append(errs, orameta.ExtractError{Object: s, Err: err.Error()})
			continue
		}
		for _, name := range names {
			t := &orameta.Table{Schema: s, Name: name}
			if err := e.columns(ctx, t.Schema, t.Name, func(c *orameta.Column) {
				t.Columns = append(t.Columns, c)
			}); err != nil {
				errs = append(errs, orameta.ExtractError{Object: t.QualifiedName(), Err: err.Error()})
				continue
			}
			out = append(out, t)
		}
	}
	return out, errs
}

// columns scans all_tab_columns for the given relation in ordinal order.
func (e *Extractor) columns(ctx context.Context, schema, name string, add func(*orameta.Column)) error {
	rows, err := e.conn.QueryContext(ctx, columnsQuery, schema, name)
	if err != nil {
		return fmt.Errorf("oracle: querying %q.%q columns: %w", schema, name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cname, typ               string
			charLen, dataLen         sql.NullInt64
			precision, scale, pos    sql.NullInt64
			nullable, deflt          sql.NullString
		)
		if err := rows.Scan(&cname, &typ, &charLen, &dataLen, &precision, &scale, &nullable, &deflt, &pos); err != nil {
			return err
		}
		length := int(charLen.Int64)
		if length == 0 {
			length = int(dataLen.Int64)
		}
		add(&orameta.Column{
			Name:      cname,
			DataType:  typ,
			Length:    length,
			Precision: int(precision.Int64),
			Scale:     int(scale.Int64),
			Nullable:  nullable.String != "N",
			Default:   strings.TrimSpace(deflt.String),
			Position:  int(pos.Int64),
		})
	}
	return rows.Err()
}

// RowCounts counts the rows of every known table. Counting failures are
// recorded on the RowCount itself so the transfer phase can still run
// for the remaining tables.
func (e *Extractor) RowCounts(ctx context.Context, tables []*orameta.Table, progress func(done, total int, table string)) []*orameta.RowCount {
	out := make([]*orameta.RowCount, 0, len(tables))
	for i, t := range tables {
		if progress != nil {
			progress(i, len(tables), t.QualifiedName())
		}
		rc := &orameta.RowCount{Schema: t.Schema, Table: t.Name}
		query := fmt.Sprintf(`SELECT COUNT(*) FROM %q.%q`, t.Schema, t.Name)
		if err := scanCount(ctx, e.conn, query, &rc.Rows); err != nil {
			rc.Err = err.Error()
		}
		out = append(out, rc)
		if ctx.Err() != nil {
			break
		}
	}
	return out
}

func scanCount(ctx context.Context, q sqlx.ExecQuerier, query string, dest *int64) error {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	return sqlx.ScanOne(rows, dest)
}

// notNullCheck matches the implicit checks Oracle generates for NOT
// NULL columns; those are redundant with column nullability.
var notNullCheck = regexp.MustCompile(`(?i)^\s*"?[A-Z0-9_$#]+"?\s+IS\s+NOT\s+NULL\s*$`)

// Constraints lists the enabled P/U/R/C constraints of the given
// schemas, with key columns in Oracle ordering and foreign keys
// resolved to their referenced table and columns.
func (e *Extractor) Constraints(ctx context.Context, schemas []string) ([]*orameta.Constraint, []orameta.ExtractError) {
	var (
		out  []*orameta.Constraint
		errs []orameta.ExtractError
	)
	for _, s := range schemas {
		rows, err := e.conn.QueryContext(ctx, constraintsQuery, s)
		if err != nil {
			errs = append(errs, orameta.ExtractError{Object: s, Err: err.Error()})
			continue
		}
		var cons []*orameta.Constraint
		refs := map[string][2]string{} // constraint name -> (r_owner, r_constraint)
		for rows.Next() {
			var (
				table, name, typ                        string
				cond, rOwner, rName, deferrable, deferd sql.NullString
			)
			if err := rows.Scan(&table, &name, &typ, &cond, &rOwner, &rName, &deferrable, &deferd); err != nil {
				errs = append(errs, orameta.ExtractError{Object: s, Err: err.Error()})
				break
			}
			if typ == "C" && notNullCheck.MatchString(cond.String) {
				continue
			}
			cn := &orameta.Constraint{
				Schema:            s,
				Table:             table,
				Name:              name,
				Type:              orameta.ConstraintType(typ),
				Check:             strings.TrimSpace(cond.String),
				Deferrable:        deferrable.String == "DEFERRABLE",
				InitiallyDeferred: deferd.String == "DEFERRED",
			}
			if typ == "R" && sqlx.ValidString(rName) {
				refs[name] = [2]string{rOwner.String, rName.String}
			}
			cons = append(cons, cn)
		}
		rows.Close()
		for _, cn := range cons {
			if err := e.constraintColumns(ctx, cn.Schema, cn.Name, &cn.Columns); err != nil {
				errs = append(errs, orameta.ExtractError{Object: cn.Name, Err: err.Error()})
				continue
			}
			if ref, ok := refs[cn.Name]; ok {
				if err := e.resolveRef(ctx, cn, ref[0], ref[1]); err != nil {
					errs = append(errs, orameta.ExtractError{Object: cn.Name, Err: err.Error()})
					continue
				}
			}
			out = append(out, cn)
		}
	}
	return out, errs
}

func (e *Extractor) constraintColumns(ctx context.Context, owner, name string, dest *[]string) error {
	rows, err := e.conn.QueryContext(ctx, constraintColumnsQuery, owner, name)
	if err != nil {
		return fmt.Errorf("oracle: querying %q columns: %w", name, err)
	}
	cols, err := sqlx.ScanStrings(rows)
	if err != nil {
		return err
	}
	*dest = cols
	return nil
}

func (e *Extractor) resolveRef(ctx context.Context, cn *orameta.Constraint, rOwner, rName string) error {
	rows, err := e.conn.QueryContext(ctx, refConstraintQuery, rOwner, rName)
	if err != nil {
		return fmt.Errorf("oracle: resolving %q: %w", rName, err)
	}
	var table string
	if err := sqlx.ScanOne(rows, &table); err != nil {
		return fmt.Errorf("oracle: resolving %q: %w", rName, err)
	}
	cn.RefSchema, cn.RefTable = rOwner, table
	return e.constraintColumns(ctx, rOwner, rName, &cn.RefColumns)
}

// Views lists the views of the given schemas with their typed column
// lists and Oracle definitions.
func (e *Extractor) Views(ctx context.Context, schemas []string) ([]*orameta.View, []orameta.ExtractError) {
	var (
		out  []*orameta.View
		errs []orameta.ExtractError
	)
	for _, s := range schemas {
		rows, err := e.conn.QueryContext(ctx, viewsQuery, s)
		if err != nil {
			errs = append(errs, orameta.ExtractError{Object: s, Err: err.Error()})
			continue
		}
		var views []*orameta.View
		for rows.Next() {
			var name, text string
			if err := rows.Scan(&name, &text); err != nil {
				errs = append(errs, orameta.ExtractError{Object: s, Err: err.Error()})
				break
			}
			views = append(views, &orameta.View{Schema: s, Name: name, Definition: text})
		}
		rows.Close()
		for _, v := range views {
			if err := e.columns(ctx, v.Schema, v.Name, func(c *orameta.Column) {
				v.Columns = append(v.Columns, &orameta.ViewColumn{
					Name:      c.Name,
					DataType:  c.DataType,
					Length:    c.Length,
					Precision: c.Precision,
					Scale:     c.Scale,
				})
			}); err != nil {
				errs = append(errs, orameta.ExtractError{Object: v.Schema + "." + v.Name, Err: err.Error()})
				continue
			}
			out = append(out, v)
		}
	}
	return out, errs
}

// Routines lists standalone functions and procedures plus package
// members, with their signatures from ALL_ARGUMENTS.
func (e *Extractor) Routines(ctx context.Context, schemas []string) ([]*orameta.Routine, []orameta.ExtractError) {
	var (
		out  []*orameta.Routine
		errs []orameta.ExtractError
	)
	for _, s := range schemas {
		rows, err := e.conn.QueryContext(ctx, objectsQuery, s)
		if err != nil {
			errs = append(errs, orameta.ExtractError{Object: s, Err: err.Error()})
			continue
		}
		var routines []*orameta.Routine
		for rows.Next() {
			var name, typ string
			if err := rows.Scan(&name, &typ); err != nil {
				errs = append(errs, orameta.ExtractError{Object: s, Err: err.Error()})
				break
			}
			routines = append(routines, &orameta.Routine{Schema: s, Name: name, Type: orameta.RoutineType(typ)})
		}
		rows.Close()
		rows, err = e.conn.QueryContext(ctx, packageProceduresQuery, s)
		if err != nil {
			errs = append(errs, orameta.ExtractError{Object: s, Err: err.Error()})
		} else {
			for rows.Next() {
				var pkg, name string
				if err := rows.Scan(&pkg, &name); err != nil {
					errs = append(errs, orameta.ExtractError{Object: s, Err: err.Error()})
					break
				}
				// Type is fixed up from the argument list below: a
				// position-0 argument means FUNCTION.
				routines = append(routines, &orameta.Routine{Schema: s, Name: name, Package: pkg, Type: orameta.Procedure})
			}
			rows.Close()
		}
		for _, r := range routines {
			if err := e.arguments(ctx, r); err != nil {
				errs = append(errs, orameta.ExtractError{Object: r.Schema + "." + r.FlatName(), Err: err.Error()})
				continue
			}
			out = append(out, r)
		}
	}
	return out, errs
}

func (e *Extractor) arguments(ctx context.Context, r *orameta.Routine) error {
	var pkg any
	if r.Package != "" {
		pkg = r.Package
	}
	rows, err := e.conn.QueryContext(ctx, argumentsQuery, r.Schema, r.Name, pkg)
	if err != nil {
		return fmt.Errorf("oracle: querying %q arguments: %w", r.Name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			name, typ sql.NullString
			inOut     string
			pos       int
		)
		if err := rows.Scan(&name, &typ, &inOut, &pos); err != nil {
			return err
		}
		if pos == 0 {
			r.Return = typ.String
			r.Type = orameta.Function
			continue
		}
		if !sqlx.ValidString(typ) {
			continue
		}
		r.Args = append(r.Args, &orameta.RoutineArg{Name: name.String, DataType: typ.String, InOut: inOut})
	}
	return rows.Err()
}

// TypeMethods lists the methods of user-defined object types with
// their parameters, result types, and the matching slice of the type
// body source when one exists.
func (e *Extractor) TypeMethods(ctx context.Context, schemas []string) ([]*orameta.TypeMethod, []orameta.ExtractError) {
	var (
		out  []*orameta.TypeMethod
		errs []orameta.ExtractError
	)
	for _, s := range schemas {
		rows, err := e.conn.QueryContext(ctx, typeMethodsQuery, s)
		if err != nil {
			errs = append(errs, orameta.ExtractError{Object: s, Err: err.Error()})
			continue
		}
		var methods []*orameta.TypeMethod
		for rows.Next() {
			var tname, mname, mtype, inst string
			if err := rows.Scan(&tname, &mname, &mtype, &inst); err != nil {
				errs = append(errs, orameta.ExtractError{Object: s, Err: err.Error()})
				break
			}
			methods = append(methods, &orameta.TypeMethod{
				Schema:       s,
				TypeName:     tname,
				Name:         mname,
				MethodType:   mtype,
				Instantiable: inst == "YES",
			})
		}
		rows.Close()
		bodies := map[string]string{}
		for _, m := range methods {
			if err := e.methodSignature(ctx, m); err != nil {
				errs = append(errs, orameta.ExtractError{Object: m.TypeName + "." + m.Name, Err: err.Error()})
				continue
			}
			src, ok := bodies[m.TypeName]
			if !ok {
				src, _ = e.typeBody(ctx, s, m.TypeName)
				bodies[m.TypeName] = src
			}
			m.Body = methodBody(src, m.Name)
			out = append(out, m)
		}
	}
	return out, errs
}

func (e *Extractor) methodSignature(ctx context.Context, m *orameta.TypeMethod) error {
	rows, err := e.conn.QueryContext(ctx, methodParamsQuery, m.Schema, m.TypeName, m.Name)
	if err != nil {
		return fmt.Errorf("oracle: querying %q parameters: %w", m.Name, err)
	}
	for rows.Next() {
		var name, typ sql.NullString
		if err := rows.Scan(&name, &typ); err != nil {
			rows.Close()
			return err
		}
		m.Args = append(m.Args, &orameta.RoutineArg{Name: name.String, DataType: typ.String, InOut: "IN"})
	}
	rows.Close()
	rows, err = e.conn.QueryContext(ctx, methodResultQuery, m.Schema, m.TypeName, m.Name)
	if err != nil {
		return fmt.Errorf("oracle: querying %q result: %w", m.Name, err)
	}
	var ret sql.NullString
	if err := sqlx.ScanOne(rows, &ret); err != nil && err != sql.ErrNoRows {
		return err
	}
	m.Return = ret.String
	return nil
}

func (e *Extractor) typeBody(ctx context.Context, schema, typeName string) (string, error) {
	rows, err := e.conn.QueryContext(ctx, typeBodyQuery, schema, typeName)
	if err != nil {
		return "", err
	}
	lines, err := sqlx.ScanStrings(rows)
	if err != nil {
		return "", err
	}
	return strings.Join(lines, ""), nil
}

// methodBody returns the BEGIN..END block of the named method inside a
// type body source, or the empty string when it cannot be isolated.
func methodBody(source, method string) string {
	if source == "" {
		return ""
	}
	re := regexp.MustCompile(`(?is)(?:MEMBER|STATIC)\s+(?:FUNCTION|PROCEDURE)\s+` +
		regexp.QuoteMeta(method) + `\b.*?(?:IS|AS)\s+(BEGIN.*?END)\s*;`)
	m := re.FindStringSubmatch(source)
	if m == nil {
		return ""
	}
	return m[1] + ";"
}

// Triggers lists the enabled table and view triggers of the given
// schemas.
func (e *Extractor) Triggers(ctx context.Context, schemas []string) ([]*orameta.Trigger, []orameta.ExtractError) {
	var (
		out  []*orameta.Trigger
		errs []orameta.ExtractError
	)
	for _, s := range schemas {
		rows, err := e.conn.QueryContext(ctx, triggersQuery, s)
		if err != nil {
			errs = append(errs, orameta.ExtractError{Object: s, Err: err.Error()})
			continue
		}
		for rows.Next() {
			var name, typ, event, table, body string
			if err := rows.Scan(&name, &typ, &event, &table, &body); err != nil {
				errs = append(errs, orameta.ExtractError{Object: s, Err: err.Error()})
				break
			}
			timing, level := splitTriggerType(typ)
			out = append(out, &orameta.Trigger{
				Schema: s,
				Name:   name,
				Table:  table,
				Timing: timing,
				Level:  level,
				Event:  event,
				Body:   body,
			})
		}
		rows.Close()
	}
	return out, errs
}

// splitTriggerType decomposes Oracle trigger types such as
// "BEFORE EACH ROW" or "INSTEAD OF" into timing and level.
func splitTriggerType(t string) (timing, level string) {
	u := strings.ToUpper(t)
	switch {
	case strings.Contains(u, "INSTEAD"):
		timing = "INSTEAD OF"
	case strings.Contains(u, "AFTER"):
		timing = "AFTER"
	default:
		timing = "BEFORE"
	}
	level = "STATEMENT"
	if strings.Contains(u, "ROW") {
		level = "ROW"
	}
	return timing, level
}
