// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package job

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestSummarizeCompleted(t *testing.T) {
	now := time.Now()
	s := Summarize(Descriptor{
		ID:         "j1",
		Kind:       SchemaCreate,
		State:      Completed,
		FinishedAt: now,
		Result: &Result{
			Counts:  Counts{Created: 5, Skipped: 2, Errors: 0},
			Summary: map[string]any{"schemas": []string{"hr"}},
		},
	})
	want := &Summary{
		Status:        "success",
		JobID:         "j1",
		OperationKind: SchemaCreate,
		IsSuccessful:  true,
		CreatedCount:  5,
		SkippedCount:  2,
		Summary:       map[string]any{"schemas": []string{"hr"}},
		Timestamp:     now,
	}
	require.Empty(t, cmp.Diff(want, s))
}

func TestSummarizeCompletedWithItemErrors(t *testing.T) {
	s := Summarize(Descriptor{
		ID:    "j2",
		State: Completed,
		Result: &Result{
			Counts: Counts{Created: 1, Errors: 2},
		},
	})
	// Per-item errors do not fail the job, but they do mark the phase
	// unsuccessful.
	require.Equal(t, "success", s.Status)
	require.False(t, s.IsSuccessful)
	require.Equal(t, 2, s.ErrorCount)
}

func TestSummarizeFailed(t *testing.T) {
	s := Summarize(Descriptor{
		ID:    "j3",
		Kind:  DataTransfer,
		State: Failed,
		Err:   "timeout: context deadline exceeded",
	})
	require.Equal(t, "error", s.Status)
	require.False(t, s.IsSuccessful)
	require.Equal(t, "timeout: context deadline exceeded", s.Summary["error"])
}
