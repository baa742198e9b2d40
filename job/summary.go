// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package job

import "time"

// A Summary is the uniform per-phase result shape consumed by the
// front-end, regardless of which phase produced it.
type Summary struct {
	Status        string         `json:"status"` // "success" or "error"
	JobID         string         `json:"jobId"`
	OperationKind OperationKind  `json:"operationKind"`
	IsSuccessful  bool           `json:"isSuccessful"`
	CreatedCount  int            `json:"createdCount"`
	SkippedCount  int            `json:"skippedCount"`
	ErrorCount    int            `json:"errorCount"`
	Extracted     int            `json:"extractedCount,omitempty"`
	Summary       map[string]any `json:"summary,omitempty"`
	Timestamp     time.Time      `json:"executionTimestamp"`
}

// Summarize folds a terminal descriptor into the uniform summary shape.
func Summarize(d Descriptor) *Summary {
	s := &Summary{
		JobID:         d.ID,
		OperationKind: d.Kind,
		Timestamp:     d.FinishedAt,
	}
	switch {
	case d.State == Completed && d.Result != nil:
		s.Status = "success"
		s.IsSuccessful = d.Result.Counts.Errors == 0
		s.CreatedCount = d.Result.Counts.Created
		s.SkippedCount = d.Result.Counts.Skipped
		s.ErrorCount = d.Result.Counts.Errors
		s.Extracted = d.Result.Counts.Extracted
		s.Summary = d.Result.Summary
	case d.State == Completed:
		s.Status = "success"
		s.IsSuccessful = true
	default:
		s.Status = "error"
		s.Summary = map[string]any{"error": d.Err}
	}
	return s
}
