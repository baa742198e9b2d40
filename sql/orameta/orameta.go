// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package orameta defines the canonical model of Oracle schema objects
// extracted from the data dictionary. Extractors produce these values,
// the state store owns them, and the Postgres creators and the transfer
// engine consume them. Values are treated as immutable snapshots once
// published.
package orameta

import "fmt"

type (
	// A Schema holds a single Oracle schema (user) name.
	Schema struct {
		Name string `json:"name"`
	}

	// A Synonym describes an Oracle synonym. DBLink is set for remote
	// synonyms, which have no Postgres equivalent and are skipped.
	Synonym struct {
		Owner       string `json:"owner"`
		Name        string `json:"synonymName"`
		TargetOwner string `json:"targetOwner"`
		TargetName  string `json:"targetName"`
		DBLink      string `json:"dbLink,omitempty"`
	}

	// An ObjectType describes an Oracle user-defined object type,
	// translated to a Postgres composite type.
	ObjectType struct {
		Schema string      `json:"schema"`
		Name   string      `json:"name"`
		Attrs  []*TypeAttr `json:"variables"`
	}

	// A TypeAttr is a single attribute of an object type.
	TypeAttr struct {
		Name      string `json:"name"`
		DataType  string `json:"dataType"`
		Length    int    `json:"length,omitempty"`
		Precision int    `json:"precision,omitempty"`
		Scale     int    `json:"scale,omitempty"`
	}

	// A Sequence describes an Oracle sequence.
	Sequence struct {
		Schema    string `json:"schema"`
		Name      string `json:"name"`
		Start     int64  `json:"startValue"`
		Min       int64  `json:"minValue"`
		Max       int64  `json:"maxValue"`
		Increment int64  `json:"increment"`
		Cycle     bool   `json:"cycle"`
		Cache     int64  `json:"cacheSize"`
		Last      int64  `json:"lastNumber"`
	}

	// A Table describes an Oracle table. Constraints are extracted and
	// created in a later phase and are therefore not attached here.
	Table struct {
		Schema  string    `json:"schema"`
		Name    string    `json:"name"`
		Columns []*Column `json:"columns"`
	}

	// A Column describes a single table column in its Oracle form.
	// Precision 0 on a NUMBER column means the precision was not
	// specified (bare NUMBER).
	Column struct {
		Name      string `json:"name"`
		DataType  string `json:"oracleType"`
		Length    int    `json:"length,omitempty"`
		Precision int    `json:"precision,omitempty"`
		Scale     int    `json:"scale,omitempty"`
		Nullable  bool   `json:"nullable"`
		Default   string `json:"defaultExpression,omitempty"`
		Position  int    `json:"positionOrdinal"`
	}

	// ConstraintType is the Oracle constraint type code.
	ConstraintType string

	// A Constraint describes a table constraint. Columns retain the
	// Oracle key ordering.
	Constraint struct {
		Schema            string         `json:"schema"`
		Table             string         `json:"tableName"`
		Name              string         `json:"constraintName"`
		Type              ConstraintType `json:"constraintType"`
		Columns           []string       `json:"columns"`
		RefSchema         string         `json:"referencedSchema,omitempty"`
		RefTable          string         `json:"referencedTable,omitempty"`
		RefColumns        []string       `json:"referencedColumns,omitempty"`
		Check             string         `json:"checkExpression,omitempty"`
		Deferrable        bool           `json:"deferrable"`
		InitiallyDeferred bool           `json:"initiallyDeferred"`
	}

	// A View describes an Oracle view together with its typed column
	// list. Translated holds the Postgres body once the view phase
	// translated it; it is empty for stub-only views.
	View struct {
		Schema     string        `json:"schema"`
		Name       string        `json:"viewName"`
		Columns    []*ViewColumn `json:"columns"`
		Definition string        `json:"oracleDefinitionSql"`
		Translated string        `json:"translatedSql,omitempty"`
	}

	// A ViewColumn is a single column of a view result set.
	ViewColumn struct {
		Name      string `json:"name"`
		DataType  string `json:"dataType"`
		Length    int    `json:"length,omitempty"`
		Precision int    `json:"precision,omitempty"`
		Scale     int    `json:"scale,omitempty"`
	}

	// RoutineType discriminates functions from procedures.
	RoutineType string

	// A Routine describes a standalone or packaged PL/SQL function or
	// procedure. Packaged routines are flattened to package_name on the
	// Postgres side.
	Routine struct {
		Schema  string        `json:"schema"`
		Name    string        `json:"objectName"`
		Package string        `json:"packageName,omitempty"`
		Type    RoutineType   `json:"objectType"`
		Args    []*RoutineArg `json:"arguments"`
		Return  string        `json:"returnType,omitempty"`
	}

	// A RoutineArg is a single routine argument in declaration order.
	RoutineArg struct {
		Name     string `json:"name"`
		DataType string `json:"dataType"`
		InOut    string `json:"inOut"`
	}

	// A TypeMethod describes a method declared on an object type.
	TypeMethod struct {
		Schema       string        `json:"schema"`
		TypeName     string        `json:"typeName"`
		Name         string        `json:"methodName"`
		MethodType   string        `json:"methodType"`
		Instantiable bool          `json:"instantiable"`
		Args         []*RoutineArg `json:"arguments"`
		Return       string        `json:"returnType,omitempty"`
		Body         string        `json:"body,omitempty"`
	}

	// A Trigger describes an Oracle trigger.
	Trigger struct {
		Schema  string `json:"schema"`
		Name    string `json:"triggerName"`
		Table   string `json:"tableName"`
		Timing  string `json:"triggerType"`   // BEFORE, AFTER, INSTEAD OF
		Level   string `json:"triggerLevel"`  // ROW, STATEMENT
		Event   string `json:"event"`         // INSERT, UPDATE, DELETE, or combined
		Body    string `json:"body"`
	}

	// A RowCount is the source row count of a single table. Err is set
	// when counting failed; such counts compare as unknown.
	RowCount struct {
		Schema string `json:"schema"`
		Table  string `json:"tableName"`
		Rows   int64  `json:"rowCount"`
		Err    string `json:"error,omitempty"`
	}
)

// Constraint type codes as reported by ALL_CONSTRAINTS.
const (
	PrimaryKey ConstraintType = "P"
	Unique     ConstraintType = "U"
	ForeignKey ConstraintType = "R"
	Check      ConstraintType = "C"
)

// Routine types.
const (
	Function  RoutineType = "FUNCTION"
	Procedure RoutineType = "PROCEDURE"
)

// State-store keys, one per extraction phase.
const (
	KeySchemas     = "oracle.schemas"
	KeySynonyms    = "oracle.synonyms"
	KeyObjectTypes = "oracle.object_types"
	KeySequences   = "oracle.sequences"
	KeyTables      = "oracle.tables"
	KeyRowCounts   = "oracle.row_counts"
	KeyConstraints = "oracle.constraints"
	KeyViews       = "oracle.views"
	KeyRoutines    = "oracle.routines"
	KeyTypeMethods = "oracle.type_methods"
	KeyTriggers    = "oracle.triggers"
)

// QualifiedName returns the Oracle-side qualified name of the table.
func (t *Table) QualifiedName() string {
	return fmt.Sprintf("%s.%s", t.Schema, t.Name)
}

// Column returns the table column with the given name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// FlatName returns the Postgres-side routine name: packaged routines are
// flattened to "package_name" with an underscore, uniformly.
func (r *Routine) FlatName() string {
	if r.Package != "" {
		return r.Package + "_" + r.Name
	}
	return r.Name
}

// Remote reports whether the synonym points through a database link.
func (s *Synonym) Remote() bool { return s.DBLink != "" }

// SchemaName returns the owning schema; extraction summaries use it to
// break item counts down per schema.
func (s *Schema) SchemaName() string     { return s.Name }
func (s *Synonym) SchemaName() string    { return s.Owner }
func (o *ObjectType) SchemaName() string { return o.Schema }
func (s *Sequence) SchemaName() string   { return s.Schema }
func (t *Table) SchemaName() string      { return t.Schema }
func (c *Constraint) SchemaName() string { return c.Schema }
func (v *View) SchemaName() string       { return v.Schema }
func (r *Routine) SchemaName() string    { return r.Schema }
func (m *TypeMethod) SchemaName() string { return m.Schema }
func (t *Trigger) SchemaName() string    { return t.Schema }
