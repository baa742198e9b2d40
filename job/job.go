// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package job implements the asynchronous migration job subsystem: the
// Job contract, the (database, operation) factory registry, and the
// worker-pool service that schedules jobs and retains their results.
package job

import (
	"context"
	"time"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"oralift.io/oralift/config"
	"oralift.io/oralift/sql/sqlclient"
	"oralift.io/oralift/state"
)

// Error classes of the job subsystem.
var (
	ErrNotFound  = errs.Class("job not found")
	ErrNotReady  = errs.Class("job not ready")
	ErrBusy      = errs.Class("already running")
	ErrShutdown  = errs.Class("shutting down")
	ErrTimeout   = errs.Class("timeout")
	ErrCancelled = errs.Class("cancelled")
	ErrInternal  = errs.Class("internal")
)

// DatabaseTag names the database a job operates against.
type DatabaseTag string

// Database tags.
const (
	Oracle   DatabaseTag = "oracle"
	Postgres DatabaseTag = "postgres"
)

// State is the lifecycle state of a job. Transitions are
// PENDING → RUNNING → {COMPLETED, FAILED, CANCELLED}; terminal states
// are immutable. CANCELLED is reachable from PENDING or RUNNING only.
type State string

// Job states.
const (
	Pending   State = "PENDING"
	Running   State = "RUNNING"
	Completed State = "COMPLETED"
	Failed    State = "FAILED"
	Cancelled State = "CANCELLED"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == Completed || s == Failed || s == Cancelled
}

// OperationKind enumerates the migration phases.
type OperationKind string

// Operation kinds, one per phase.
const (
	TestConnections      OperationKind = "TEST_CONNECTIONS"
	SchemaExtract        OperationKind = "SCHEMA_EXTRACT"
	SchemaCreate         OperationKind = "SCHEMA_CREATE"
	SynonymExtract       OperationKind = "SYNONYM_EXTRACT"
	SynonymViews         OperationKind = "SYNONYM_REPLACEMENT_VIEWS"
	ObjectTypeExtract    OperationKind = "OBJECT_TYPE_EXTRACT"
	ObjectTypeCreate     OperationKind = "OBJECT_TYPE_CREATE"
	SequenceExtract      OperationKind = "SEQUENCE_EXTRACT"
	SequenceCreate       OperationKind = "SEQUENCE_CREATE"
	TableMetadataExtract OperationKind = "TABLE_METADATA_EXTRACT"
	TableCreate          OperationKind = "TABLE_CREATE"
	RowCountExtract      OperationKind = "ROW_COUNT_EXTRACT"
	DataTransfer         OperationKind = "DATA_TRANSFER"
	ConstraintExtract    OperationKind = "CONSTRAINT_EXTRACT"
	ConstraintCreate     OperationKind = "CONSTRAINT_CREATE"
	FKIndexCreate        OperationKind = "FK_INDEX_CREATE"
	ViewExtract          OperationKind = "VIEW_EXTRACT"
	ViewStubCreate       OperationKind = "VIEW_STUB_CREATE"
	ViewImplementation   OperationKind = "VIEW_IMPLEMENTATION"
	ViewVerify           OperationKind = "VIEW_VERIFY"
	FunctionExtract      OperationKind = "FUNCTION_EXTRACT"
	FunctionStubCreate   OperationKind = "FUNCTION_STUB_CREATE"
	TypeMethodExtract    OperationKind = "TYPE_METHOD_EXTRACT"
	TypeMethodStubCreate OperationKind = "TYPE_METHOD_STUB_CREATE"
	TypeMethodImpl       OperationKind = "TYPE_METHOD_IMPLEMENTATION"
	TriggerExtract       OperationKind = "TRIGGER_EXTRACT"
	TriggerImpl          OperationKind = "TRIGGER_IMPLEMENTATION"
	TriggerVerify        OperationKind = "TRIGGER_VERIFY"
	CompatInstall        OperationKind = "ORACLE_COMPAT_INSTALL"
	CompatVerify         OperationKind = "ORACLE_COMPAT_VERIFY"
	FullMigration        OperationKind = "FULL_MIGRATION"
)

// untimed are the kinds exempt from the extraction deadline.
func (k OperationKind) untimed() bool {
	return k == DataTransfer || k == FullMigration
}

// Progress is a point-in-time progress report. Percentage is monotonic
// non-decreasing while the job runs.
type Progress struct {
	Percentage  int    `json:"percentage"`
	CurrentTask string `json:"currentTask"`
	Details     string `json:"details"`
}

// Counts is the uniform item accounting of a finished job.
type Counts struct {
	Created   int `json:"createdCount"`
	Skipped   int `json:"skippedCount"`
	Errors    int `json:"errorCount"`
	Extracted int `json:"extractedCount,omitempty"`
}

// A Result is the successful outcome of a job.
type Result struct {
	Payload any            `json:"-"`
	Counts  Counts         `json:"counts"`
	Summary map[string]any `json:"summary,omitempty"`
}

// A Description identifies a job.
type Description struct {
	Kind     OperationKind `json:"operationType"`
	Database DatabaseTag   `json:"database"`
	Name     string        `json:"friendlyName"`
}

// Submitter is the part of the service the orchestrator depends on.
type Submitter interface {
	Submit(db DatabaseTag, kind OperationKind) (string, error)
	Wait(ctx context.Context, id string) (Descriptor, error)
}

// An Env carries the collaborators a job runs against. Report publishes
// a progress update; it never blocks.
type Env struct {
	State  *state.Store
	Config config.Settings
	Conns  *sqlclient.Client
	Log    *zap.Logger
	Report func(pct int, task, details string)
	Jobs   Submitter
}

// A Job is one unit of migration work. Run observes ctx for
// cooperative cancellation at least once per table, batch or statement.
type Job interface {
	Describe() Description
	Run(ctx context.Context, env *Env) (*Result, error)
}

// A Descriptor is the externally visible record of a submitted job.
type Descriptor struct {
	ID          string        `json:"jobId"`
	Kind        OperationKind `json:"operationType"`
	Database    DatabaseTag   `json:"database"`
	State       State         `json:"status"`
	Progress    Progress      `json:"progress"`
	SubmittedAt time.Time     `json:"submittedAt"`
	StartedAt   time.Time     `json:"startedAt,omitempty"`
	FinishedAt  time.Time     `json:"finishedAt,omitempty"`
	Result      *Result       `json:"-"`
	Err         string        `json:"error,omitempty"`
}

type funcJob struct {
	desc Description
	fn   func(ctx context.Context, env *Env) (*Result, error)
}

func (j *funcJob) Describe() Description { return j.desc }
func (j *funcJob) Run(ctx context.Context, env *Env) (*Result, error) {
	return j.fn(ctx, env)
}

// New adapts a function to the Job interface.
func New(desc Description, fn func(ctx context.Context, env *Env) (*Result, error)) Job {
	return &funcJob{desc: desc, fn: fn}
}
