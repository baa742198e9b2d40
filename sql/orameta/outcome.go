// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package orameta

import "time"

type (
	// An Outcome is the standardized summary of a creation phase. Each
	// item ends up in exactly one of Created, Skipped or Errors.
	Outcome[T any] struct {
		Created  []T            `json:"created"`
		Skipped  []Skip[T]      `json:"skipped"`
		Errors   []ItemError[T] `json:"errors"`
		Warnings []Warning      `json:"warnings,omitempty"`
		Took     time.Time      `json:"executionTimestamp"`
	}

	// A Skip records an item that was intentionally not created.
	Skip[T any] struct {
		Item   T      `json:"item"`
		Reason string `json:"reason"`
	}

	// An ItemError records a failed item together with the SQL that was
	// attempted. SQL is never empty for execution failures.
	ItemError[T any] struct {
		Item T      `json:"item"`
		Err  string `json:"errorMessage"`
		SQL  string `json:"sqlStatement,omitempty"`
	}

	// A Warning records a non-fatal mapping gap, e.g. a column default
	// the type mapper could not translate.
	Warning struct {
		Object        string `json:"object"`
		Column        string `json:"column,omitempty"`
		OracleDefault string `json:"oracleDefault,omitempty"`
		Message       string `json:"message"`
	}

	// ExtractError records a single object an extractor failed on
	// without aborting the extraction.
	ExtractError struct {
		Object string `json:"object"`
		Err    string `json:"errorMessage"`
	}
)

// NewOutcome returns an empty outcome stamped with the current time.
func NewOutcome[T any]() *Outcome[T] {
	return &Outcome[T]{Took: time.Now()}
}

// IsSuccessful reports whether the phase completed without item errors.
func (o *Outcome[T]) IsSuccessful() bool { return len(o.Errors) == 0 }

// Add appends a created item.
func (o *Outcome[T]) Add(item T) { o.Created = append(o.Created, item) }

// Skip appends a skipped item with its reason.
func (o *Outcome[T]) Skip(item T, reason string) {
	o.Skipped = append(o.Skipped, Skip[T]{Item: item, Reason: reason})
}

// Error appends a failed item with the attempted SQL.
func (o *Outcome[T]) Error(item T, sql string, err error) {
	o.Errors = append(o.Errors, ItemError[T]{Item: item, Err: err.Error(), SQL: sql})
}

// Warn appends a warning.
func (o *Outcome[T]) Warn(w Warning) { o.Warnings = append(o.Warnings, w) }

// Counts returns the created, skipped and error counts.
func (o *Outcome[T]) Counts() (created, skipped, errors int) {
	return len(o.Created), len(o.Skipped), len(o.Errors)
}
