// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package sqlx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	b := B("CREATE TABLE").P("hr.employees")
	b.Wrap(func(b *Builder) {
		b.MapComma(3, func(i int, b *Builder) {
			switch i {
			case 0:
				b.P("id", "bigint", "NOT NULL")
			case 1:
				b.P("name", "varchar(100)")
			case 2:
				b.P("hired", "timestamp(0)", "DEFAULT CURRENT_TIMESTAMP")
			}
		})
	})
	require.Equal(t,
		"CREATE TABLE hr.employees (id bigint NOT NULL, name varchar(100), hired timestamp(0) DEFAULT CURRENT_TIMESTAMP)",
		b.String())
}

func TestBuilderIdent(t *testing.T) {
	for _, tt := range []struct {
		input, want string
	}{
		{"employees", "employees"},
		{"order", "order"}, // quoting is the caller's concern
		{"Mixed", `"Mixed"`},
		{"1st", `"1st"`},
		{"with space", `"with space"`},
		{`emb"edded`, `"emb""edded"`},
		{"col$1", "col$1"},
	} {
		b := &Builder{QuoteChar: '"'}
		require.Equal(t, tt.want, b.Ident(tt.input).String(), "ident %q", tt.input)
	}
}

func TestBuilderTable(t *testing.T) {
	b := B("DROP VIEW")
	b.Table("hr", "v_emps")
	require.Equal(t, "DROP VIEW hr.v_emps", b.String())
}

func TestBuilderWrapRewindsSpaces(t *testing.T) {
	b := B("CHECK")
	b.Wrap(func(b *Builder) {
		b.P("salary > 0")
	})
	require.Equal(t, "CHECK (salary > 0)", b.String())
}
