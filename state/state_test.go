// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package state

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutGet(t *testing.T) {
	s := New()
	s.Put("oracle.tables", []string{"A", "B"})

	v, ok := s.Get("oracle.tables")
	require.True(t, ok)
	require.Equal(t, []string{"A", "B"}, v)

	_, ok = s.Get("oracle.views")
	require.False(t, ok)
}

func TestTypedGet(t *testing.T) {
	s := New()
	s.Put("k", []int{1, 2, 3})

	v, ok := Get[[]int](s, "k")
	require.True(t, ok)
	require.Equal(t, []int{1, 2, 3}, v)

	// Wrong type assertion reports absence, not a panic.
	_, ok = Get[string](s, "k")
	require.False(t, ok)
}

func TestLastWriterWins(t *testing.T) {
	s := New()
	s.Put("k", 1)
	s.Put("k", 2)
	v, _ := Get[int](s, "k")
	require.Equal(t, 2, v)
}

func TestReset(t *testing.T) {
	s := New()
	s.Put("a", 1)
	s.Put("b", 2)
	require.Len(t, s.Keys(), 2)
	s.Reset()
	require.Empty(t, s.Keys())
	_, ok := s.Get("a")
	require.False(t, ok)
}
