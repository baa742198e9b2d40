// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"oralift.io/oralift/sql/orameta"
)

// Catalog lookups bind the unquoted lower-cased names, reserved words
// included.
func TestVerifyViews(t *testing.T) {
	c, m := mockDB(t)
	m.ExpectQuery(viewExistsQuery).WithArgs("hr", "emp_v").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	m.ExpectQuery(viewExistsQuery).WithArgs("hr", "order").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	o := c.VerifyViews(context.Background(), []*orameta.View{
		{Schema: "HR", Name: "EMP_V"},
		{Schema: "HR", Name: "ORDER"},
	})
	require.NoError(t, m.ExpectationsWereMet())
	require.Equal(t, []string{"hr.emp_v"}, o.Created)
	require.Len(t, o.Errors, 1)
}

func TestVerifyTriggers(t *testing.T) {
	c, m := mockDB(t)
	m.ExpectQuery(triggerExistsQuery).WithArgs("hr", "emp_audit").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	o := c.VerifyTriggers(context.Background(), []*orameta.Trigger{
		{Schema: "HR", Name: "EMP_AUDIT", Table: "EMPLOYEES"},
	})
	require.NoError(t, m.ExpectationsWereMet())
	require.Equal(t, []string{"hr.emp_audit"}, o.Created)
	require.Empty(t, o.Errors)
}
