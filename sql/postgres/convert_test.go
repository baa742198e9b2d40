// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package postgres

import (
	"testing"

	"github.com/stretchr/testify/require"

	"oralift.io/oralift/sql/orameta"
)

func TestColumnType(t *testing.T) {
	for _, tt := range []struct {
		typ                      string
		length, precision, scale int
		want                     string
		unmapped                 bool
	}{
		{typ: "NUMBER", want: "numeric"},
		{typ: "NUMBER", precision: 10, want: "bigint"},
		{typ: "NUMBER", precision: 5, scale: 2, want: "numeric(5,2)"},
		{typ: "NUMBER", precision: 3, want: "smallint"},
		{typ: "NUMBER", precision: 9, want: "integer"},
		{typ: "NUMBER", precision: 18, want: "bigint"},
		{typ: "NUMBER", precision: 19, want: "numeric(19)"},
		{typ: "NUMBER", precision: 10, scale: -2, want: "numeric(10)"},
		{typ: "INTEGER", want: "numeric(38)"},
		{typ: "FLOAT", precision: 126, want: "double precision"},
		{typ: "BINARY_DOUBLE", want: "double precision"},
		{typ: "VARCHAR2", length: 100, want: "varchar(100)"},
		{typ: "NVARCHAR2", length: 50, want: "varchar(50)"},
		{typ: "CHAR", length: 1, want: "char(1)"},
		{typ: "CLOB", want: "text"},
		{typ: "NCLOB", want: "text"},
		{typ: "LONG", want: "text"},
		{typ: "BLOB", want: "bytea"},
		{typ: "RAW", length: 16, want: "bytea"},
		{typ: "LONG RAW", want: "bytea"},
		{typ: "DATE", want: "timestamp(0)"},
		{typ: "TIMESTAMP(6)", want: "timestamp(6)"},
		{typ: "TIMESTAMP(6) WITH TIME ZONE", want: "timestamptz"},
		{typ: "TIMESTAMP(6) WITH LOCAL TIME ZONE", want: "timestamptz"},
		{typ: "INTERVAL YEAR(2) TO MONTH", want: "interval year to month"},
		{typ: "INTERVAL DAY(2) TO SECOND(6)", want: "interval day to second"},
		{typ: "XMLTYPE", want: "xml"},
		{typ: "ROWID", want: "text"},
		{typ: "HR.ADDRESS_T", want: "hr.address_t"},
		{typ: "SDO_GEOMETRY", want: "text", unmapped: true},
		{typ: "ANYDATA", want: "text", unmapped: true},
	} {
		got := ColumnType(&orameta.Column{
			DataType:  tt.typ,
			Length:    tt.length,
			Precision: tt.precision,
			Scale:     tt.scale,
		})
		require.Equal(t, tt.want, got.T, "type %s(%d,%d,%d)", tt.typ, tt.length, tt.precision, tt.scale)
		require.Equal(t, tt.unmapped, got.Unmapped, "unmapped flag for %s", tt.typ)
	}
}

func TestIdent(t *testing.T) {
	for _, tt := range []struct {
		input, want string
	}{
		{"EMPLOYEES", "employees"},
		{"Employees", "employees"},
		{`"CaseSensitive"`, "casesensitive"},
		{"ORDER", `"order"`},
		{"USER", `"user"`},
		{"1TABLE", `"1table"`},
		{"MY COLUMN", `"my column"`},
		{"COL$X", "col$x"},
		{"A#B", `"a#b"`},
	} {
		require.Equal(t, tt.want, Ident(tt.input), "ident %q", tt.input)
	}
}

// Applying Ident twice must be a fixed point, including for quoted
// outputs.
func TestIdentFixedPoint(t *testing.T) {
	for _, in := range []string{"EMPLOYEES", "ORDER", "1TABLE", "MY COLUMN", "mixedCase", "COL$X"} {
		once := Ident(in)
		require.Equal(t, once, Ident(once), "ident %q is not a fixed point", in)
	}
}

// Name never quotes: it is the form bound against pg_catalog, where a
// reserved word like ORDER is stored bare.
func TestName(t *testing.T) {
	require.Equal(t, "employees", Name("EMPLOYEES"))
	require.Equal(t, "order", Name("ORDER"))
	require.Equal(t, "my column", Name(`"MY COLUMN"`))
	require.Equal(t, Name("ORDER"), Name(Ident("ORDER")))
}

func TestQualIdent(t *testing.T) {
	require.Equal(t, "hr.employees", QualIdent("HR", "EMPLOYEES"))
	require.Equal(t, `hr."order"`, QualIdent("HR", "ORDER"))
	require.Equal(t, "employees", QualIdent("", "EMPLOYEES"))
}

func TestMapDefault(t *testing.T) {
	for _, tt := range []struct {
		expr, want string
		ok         bool
	}{
		{"SYSDATE", "CURRENT_TIMESTAMP", true},
		{"sysdate ", "CURRENT_TIMESTAMP", true},
		{"SYSTIMESTAMP", "CURRENT_TIMESTAMP", true},
		{"USER", "CURRENT_USER", true},
		{"NULL", "NULL", true},
		{"0", "0", true},
		{"-1.5", "-1.5", true},
		{"'N'", "'N'", true},
		{"'it''s'", "'it''s'", true},
		{"SYS_GUID()", "gen_random_uuid()", true},
		{"EMP_SEQ.NEXTVAL", "nextval('hr.emp_seq')", true},
		{"SCOTT.EMP_SEQ.NEXTVAL", "nextval('scott.emp_seq')", true},
		{"PKG.F()", "", false},
		{"TRUNC(SYSDATE)", "", false},
		{"", "", false},
	} {
		got, ok := MapDefault(tt.expr, "HR")
		require.Equal(t, tt.ok, ok, "recognized %q", tt.expr)
		require.Equal(t, tt.want, got, "mapping of %q", tt.expr)
	}
}
