// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package orchestrate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"oralift.io/oralift/job"
	"oralift.io/oralift/sql/orameta"
	"oralift.io/oralift/state"
)

func TestExtractResultPerSchema(t *testing.T) {
	env := &job.Env{State: state.New()}
	res := extractResult(env, orameta.KeyTables, []*orameta.Table{
		{Schema: "HR", Name: "EMPLOYEES"},
		{Schema: "HR", Name: "DEPARTMENTS"},
		{Schema: "SCOTT", Name: "EMP"},
	}, nil)

	require.Equal(t, 3, res.Counts.Extracted)
	require.Equal(t, map[string]int{"HR": 2, "SCOTT": 1}, res.Summary["perSchema"])

	stored, ok := state.Get[[]*orameta.Table](env.State, orameta.KeyTables)
	require.True(t, ok)
	require.Len(t, stored, 3)
}

func TestExtractResultEmpty(t *testing.T) {
	env := &job.Env{State: state.New()}
	res := extractResult[*orameta.View](env, orameta.KeyViews, nil, nil)
	require.Zero(t, res.Counts.Extracted)
	require.Nil(t, res.Summary)
}
