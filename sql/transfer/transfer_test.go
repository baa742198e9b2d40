// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package transfer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"oralift.io/oralift/sql/orameta"
)

func TestLOBTypes(t *testing.T) {
	for _, typ := range []string{"CLOB", "NCLOB", "BLOB", "BFILE", "LONG", "LONG RAW", "long raw"} {
		require.True(t, lob(typ), "%s counts as a LOB", typ)
	}
	for _, typ := range []string{"NUMBER", "VARCHAR2", "RAW", "DATE"} {
		require.False(t, lob(typ), "%s is not a LOB", typ)
	}
}

func TestOptionsDefaults(t *testing.T) {
	var o Options
	o.withDefaults()
	require.Equal(t, 1000, o.FetchSize)
	require.Equal(t, 10000, o.CommitInterval)

	o = Options{FetchSize: 50, CommitInterval: 100}
	o.withDefaults()
	require.Equal(t, 50, o.FetchSize)
	require.Equal(t, 100, o.CommitInterval)
}

func TestReportCounts(t *testing.T) {
	r := &Report{Tables: []*TableResult{
		{Status: Transferred}, {Status: Transferred},
		{Status: Partial},
		{Status: Skipped},
		{Status: Errored},
	}}
	transferred, partial, skipped, errored := r.Counts()
	require.Equal(t, 2, transferred)
	require.Equal(t, 1, partial)
	require.Equal(t, 1, skipped)
	require.Equal(t, 1, errored)
}

func TestWantRows(t *testing.T) {
	want := wantRows([]*orameta.RowCount{
		{Schema: "HR", Table: "A", Rows: 10},
		{Schema: "HR", Table: "B", Err: "ORA-00942: table or view does not exist"},
	})
	require.Equal(t, int64(10), want("HR.A"))
	require.Equal(t, int64(-1), want("HR.B"))
	// A table the count phase never reached is unknown, not empty.
	require.Equal(t, int64(-1), want("HR.C"))
}

func TestClassify(t *testing.T) {
	require.Equal(t, Skipped, classify(0, 0, 0))
	require.Equal(t, Transferred, classify(5, 5, 0))
	// Unknown counts trust the transferred rows.
	require.Equal(t, Transferred, classify(-1, 5, 0))
	require.Equal(t, Transferred, classify(-1, 0, 0))
	require.Equal(t, Partial, classify(5, 3, 1))
	require.Equal(t, Partial, classify(5, 5, 1))
	require.Equal(t, Errored, classify(5, 0, 1))
}

func TestConvertRowStrict(t *testing.T) {
	e := &Engine{}
	// Valid text and binary pass through untouched.
	out, err := e.convertRow([]any{"ok", []byte{0x01}, int64(7), nil})
	require.NoError(t, err)
	require.Equal(t, []any{"ok", []byte{0x01}, int64(7), nil}, out)

	// Invalid character data fails the row when lossy substitution is
	// not allowed.
	_, err = e.convertRow([]any{string([]byte{0xff, 0xfe})})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid character data")
}

func TestConvertRowLossy(t *testing.T) {
	e := &Engine{opts: Options{AllowLossy: true}}
	out, err := e.convertRow([]any{string([]byte{'a', 0xff, 'b'})})
	require.NoError(t, err)
	require.Equal(t, "a�b", out[0])
}
