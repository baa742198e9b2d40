// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	s := New().Snapshot()
	require.True(t, s.AllSchemas)
	require.False(t, s.ExcludeLOBs)
	require.False(t, s.AllowLossy)
	require.GreaterOrEqual(t, s.Workers, 2)
	require.Equal(t, 1024, s.MaxDescriptors)
	require.Equal(t, 5*time.Minute, s.ExtractTimeout)
	require.Equal(t, 1000, s.FetchSize)
	require.Equal(t, 10000, s.CommitInterval)
}

func TestSetAndSnapshot(t *testing.T) {
	c := New()
	c.Set(KeyOracleURL, "oracle://db:1521/XE")
	c.SetAll(map[string]any{
		KeyExcludeLOBs: true,
		KeyTestSchema:  "hr",
		KeyAllSchemas:  false,
	})
	s := c.Snapshot()
	require.Equal(t, "oracle://db:1521/XE", s.OracleURL)
	require.True(t, s.ExcludeLOBs)

	// A snapshot is immutable: later writes are not visible through it.
	c.Set(KeyExcludeLOBs, false)
	require.True(t, s.ExcludeLOBs)
	require.False(t, c.Snapshot().ExcludeLOBs)
}

func TestSchemaFilter(t *testing.T) {
	s := Settings{AllSchemas: true, TestSchema: "hr"}
	require.Nil(t, s.SchemaFilter())

	s = Settings{AllSchemas: false, TestSchema: "hr"}
	require.Equal(t, []string{"HR"}, s.SchemaFilter())

	s = Settings{AllSchemas: false}
	require.Nil(t, s.SchemaFilter())
}

func TestReset(t *testing.T) {
	c := New()
	c.Set(KeyExcludeLOBs, true)
	c.Set(KeyOracleURL, "oracle://db:1521/XE")
	c.Reset()
	s := c.Snapshot()
	require.False(t, s.ExcludeLOBs)
	require.Empty(t, s.OracleURL)
}

func TestLoadMissingFile(t *testing.T) {
	c := New()
	require.NoError(t, c.Load(""))
}
