// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package postgres

import (
	"context"
	"math"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgconn"
	"github.com/stretchr/testify/require"

	"oralift.io/oralift/sql/orameta"
)

func mockDB(t *testing.T) (*Creator, sqlmock.Sqlmock) {
	t.Helper()
	db, m, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewCreator(db, nil, nil), m
}

func expectDDL(m sqlmock.Sqlmock, ddl string) {
	m.ExpectBegin()
	m.ExpectExec(ddl).WillReturnResult(sqlmock.NewResult(0, 0))
	m.ExpectCommit()
}

func expectDDLError(m sqlmock.Sqlmock, ddl string, err error) {
	m.ExpectBegin()
	m.ExpectExec(ddl).WillReturnError(err)
	m.ExpectRollback()
}

func TestCreatorSchemas(t *testing.T) {
	c, m := mockDB(t)
	expectDDL(m, "CREATE SCHEMA hr")
	expectDDLError(m, "CREATE SCHEMA scott", &pgconn.PgError{Code: "42P06"})
	expectDDLError(m, `CREATE SCHEMA "order"`, &pgconn.PgError{Code: "42601"})

	o := c.Schemas(context.Background(), []*orameta.Schema{
		{Name: "HR"}, {Name: "SCOTT"}, {Name: "ORDER"},
	})
	require.NoError(t, m.ExpectationsWereMet())
	require.Equal(t, []string{"hr"}, o.Created)
	require.Len(t, o.Skipped, 1)
	require.Equal(t, "scott", o.Skipped[0].Item)
	require.Equal(t, "already exists", o.Skipped[0].Reason)
	require.Len(t, o.Errors, 1)
	require.NotEmpty(t, o.Errors[0].SQL)
	require.False(t, o.IsSuccessful())
}

// Re-running a creation phase against an existing target yields zero
// created items and a full skip list.
func TestCreatorSchemasIdempotent(t *testing.T) {
	c, m := mockDB(t)
	expectDDLError(m, "CREATE SCHEMA hr", &pgconn.PgError{Code: "42P06"})
	expectDDLError(m, "CREATE SCHEMA scott", &pgconn.PgError{Code: "42P06"})

	o := c.Schemas(context.Background(), []*orameta.Schema{{Name: "HR"}, {Name: "SCOTT"}})
	require.NoError(t, m.ExpectationsWereMet())
	require.Empty(t, o.Created)
	require.Len(t, o.Skipped, 2)
	require.True(t, o.IsSuccessful())
}

func TestCreatorTables(t *testing.T) {
	c, m := mockDB(t)
	expectDDL(m, "CREATE TABLE hr.t (col varchar(10), created timestamp(0) DEFAULT CURRENT_TIMESTAMP NOT NULL)")

	o := c.Tables(context.Background(), []*orameta.Table{{
		Schema: "HR",
		Name:   "T",
		Columns: []*orameta.Column{
			{Name: "COL", DataType: "VARCHAR2", Length: 10, Nullable: true, Default: "PKG.F()"},
			{Name: "CREATED", DataType: "DATE", Default: "SYSDATE"},
		},
	}})
	require.NoError(t, m.ExpectationsWereMet())
	require.Equal(t, []string{"hr.t"}, o.Created)
	// The unmappable default is dropped and reported, not failed.
	require.Len(t, o.Warnings, 1)
	require.Equal(t, "COL", o.Warnings[0].Column)
	require.Equal(t, "PKG.F()", o.Warnings[0].OracleDefault)
}

// Constraints apply in primary key, unique, foreign key, check order
// regardless of extraction order, so references always find a key.
func TestCreatorConstraintOrdering(t *testing.T) {
	c, m := mockDB(t)
	expectDDL(m, "ALTER TABLE hr.a ADD CONSTRAINT a_pk PRIMARY KEY (id)")
	expectDDL(m, "ALTER TABLE hr.b ADD CONSTRAINT b_a_fk FOREIGN KEY (a_id) REFERENCES hr.a (id)")
	expectDDL(m, "ALTER TABLE hr.b ADD CONSTRAINT b_chk CHECK (salary > 0)")

	o := c.Constraints(context.Background(), []*orameta.Constraint{
		{Schema: "HR", Table: "B", Name: "B_CHK", Type: orameta.Check, Check: `"SALARY" > 0`},
		{Schema: "HR", Table: "B", Name: "B_A_FK", Type: orameta.ForeignKey, Columns: []string{"A_ID"}, RefSchema: "HR", RefTable: "A", RefColumns: []string{"ID"}},
		{Schema: "HR", Table: "A", Name: "A_PK", Type: orameta.PrimaryKey, Columns: []string{"ID"}},
	})
	require.NoError(t, m.ExpectationsWereMet())
	require.Equal(t, []string{"a_pk", "b_a_fk", "b_chk"}, o.Created)
}

func TestCreatorConstraintDeferrable(t *testing.T) {
	c, m := mockDB(t)
	expectDDL(m, "ALTER TABLE hr.b ADD CONSTRAINT b_fk FOREIGN KEY (a_id) REFERENCES hr.a (id) DEFERRABLE INITIALLY DEFERRED")

	o := c.Constraints(context.Background(), []*orameta.Constraint{{
		Schema: "HR", Table: "B", Name: "B_FK", Type: orameta.ForeignKey,
		Columns: []string{"A_ID"}, RefSchema: "HR", RefTable: "A", RefColumns: []string{"ID"},
		Deferrable: true, InitiallyDeferred: true,
	}})
	require.NoError(t, m.ExpectationsWereMet())
	require.Len(t, o.Created, 1)
}

func TestCreatorSequences(t *testing.T) {
	c, m := mockDB(t)
	expectDDL(m, "CREATE SEQUENCE hr.emp_seq INCREMENT BY 1 MINVALUE 1 MAXVALUE 9223372036854775806 START WITH 120 CACHE 20")

	o := c.Sequences(context.Background(), []*orameta.Sequence{{
		Schema: "HR", Name: "EMP_SEQ",
		Min: 1, Max: math.MaxInt64, Increment: 1, Cache: 20, Last: 100,
	}})
	require.NoError(t, m.ExpectationsWereMet())
	require.Equal(t, []string{"hr.emp_seq"}, o.Created)
}

func TestCreatorObjectTypes(t *testing.T) {
	c, m := mockDB(t)
	expectDDL(m, "CREATE TYPE hr.address_t AS (street varchar(100), zip char(5))")

	o := c.ObjectTypes(context.Background(), []*orameta.ObjectType{{
		Schema: "HR", Name: "ADDRESS_T",
		Attrs: []*orameta.TypeAttr{
			{Name: "STREET", DataType: "VARCHAR2", Length: 100},
			{Name: "ZIP", DataType: "CHAR", Length: 5},
		},
	}})
	require.NoError(t, m.ExpectationsWereMet())
	require.Equal(t, []string{"hr.address_t"}, o.Created)
}

func TestConflict(t *testing.T) {
	require.True(t, Conflict(&pgconn.PgError{Code: "42P07"}))
	require.True(t, Conflict(&pgconn.PgError{Code: "42710"}))
	require.False(t, Conflict(&pgconn.PgError{Code: "42601"}))
	require.False(t, Conflict(context.Canceled))
}

// FKIndexes skips keys whose leading column is already indexed,
// including indexes created earlier in the same run.
func TestCreatorFKIndexes(t *testing.T) {
	c, m := mockDB(t)
	m.ExpectQuery(firstIndexColumnsQuery).
		WillReturnRows(sqlmock.NewRows([]string{"nspname", "relname", "attname"}).
			AddRow("hr", "b", "a_id"))
	expectDDL(m, "CREATE INDEX c_x_fk_idx ON hr.c (x_id)")

	o := c.FKIndexes(context.Background(), []*orameta.Constraint{
		{Schema: "HR", Table: "B", Name: "B_A_FK", Type: orameta.ForeignKey, Columns: []string{"A_ID"}},
		{Schema: "HR", Table: "C", Name: "C_X_FK", Type: orameta.ForeignKey, Columns: []string{"X_ID"}},
		{Schema: "HR", Table: "C", Name: "C_X2_FK", Type: orameta.ForeignKey, Columns: []string{"X_ID"}},
		{Schema: "HR", Table: "A", Name: "A_PK", Type: orameta.PrimaryKey, Columns: []string{"ID"}},
	})
	require.NoError(t, m.ExpectationsWereMet())
	require.Equal(t, []string{"c_x_fk_idx"}, o.Created)
	require.Len(t, o.Skipped, 2)
}

// Coverage is decided on the unquoted catalog names, so an existing
// index on a reserved-word table still suppresses the new one.
func TestCreatorFKIndexesReservedWordCoverage(t *testing.T) {
	c, m := mockDB(t)
	m.ExpectQuery(firstIndexColumnsQuery).
		WillReturnRows(sqlmock.NewRows([]string{"nspname", "relname", "attname"}).
			AddRow("hr", "order", "user_id"))

	o := c.FKIndexes(context.Background(), []*orameta.Constraint{
		{Schema: "HR", Table: "ORDER", Name: "ORDER_USER_FK", Type: orameta.ForeignKey, Columns: []string{"USER_ID"}},
	})
	require.NoError(t, m.ExpectationsWereMet())
	require.Empty(t, o.Created)
	require.Len(t, o.Skipped, 1)
	require.Equal(t, "covered by existing index", o.Skipped[0].Reason)
}
