// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package orchestrate

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"oralift.io/oralift/job"
)

// fakeSubmitter scripts phase outcomes without a worker pool.
type fakeSubmitter struct {
	submitted []job.OperationKind
	outcomes  map[job.OperationKind]job.Descriptor
}

func (f *fakeSubmitter) Submit(db job.DatabaseTag, kind job.OperationKind) (string, error) {
	f.submitted = append(f.submitted, kind)
	return fmt.Sprintf("id-%d", len(f.submitted)), nil
}

func (f *fakeSubmitter) Wait(_ context.Context, id string) (job.Descriptor, error) {
	kind := f.submitted[len(f.submitted)-1]
	if d, ok := f.outcomes[kind]; ok {
		d.ID, d.Kind = id, kind
		return d, nil
	}
	d := job.Descriptor{ID: id, Kind: kind, State: job.Completed, Result: &job.Result{}}
	if isExtract(kind) {
		d.Result.Counts.Extracted = 1
	}
	return d, nil
}

func testEnv(f *fakeSubmitter) *job.Env {
	return &job.Env{Jobs: f, Report: func(int, string, string) {}}
}

func TestPipelineOrdering(t *testing.T) {
	pos := map[job.OperationKind]int{}
	for i, s := range pipeline {
		pos[s.kind] = i
	}
	before := func(a, b job.OperationKind) {
		require.Less(t, pos[a], pos[b], "%s must run before %s", a, b)
	}
	before(job.TestConnections, job.SchemaExtract)
	before(job.SchemaExtract, job.SchemaCreate)
	before(job.SchemaCreate, job.TableCreate)
	before(job.TableMetadataExtract, job.TableCreate)
	before(job.TableCreate, job.DataTransfer)
	before(job.RowCountExtract, job.DataTransfer)
	// Constraints go on only after every table exists and is loaded.
	before(job.DataTransfer, job.ConstraintCreate)
	before(job.ConstraintCreate, job.FKIndexCreate)
	before(job.ViewStubCreate, job.ViewImplementation)
	before(job.ViewImplementation, job.ViewVerify)
	before(job.FunctionStubCreate, job.ViewImplementation)
	before(job.CompatInstall, job.ViewImplementation)
	before(job.TriggerImpl, job.TriggerVerify)
}

// The leading phases follow the canonical migration chain exactly; the
// trailing implementation and verification phases come after it.
func TestPipelineMatchesMigrationChain(t *testing.T) {
	chain := []job.OperationKind{
		job.TestConnections,
		job.SchemaExtract,
		job.SchemaCreate,
		job.SynonymExtract,
		job.ObjectTypeExtract,
		job.ObjectTypeCreate,
		job.SequenceExtract,
		job.SequenceCreate,
		job.TableMetadataExtract,
		job.TableCreate,
		job.RowCountExtract,
		job.DataTransfer,
		job.ConstraintExtract,
		job.ConstraintCreate,
		job.FKIndexCreate,
		job.ViewExtract,
		job.ViewStubCreate,
		job.FunctionExtract,
		job.FunctionStubCreate,
		job.TypeMethodExtract,
		job.TypeMethodStubCreate,
		job.CompatInstall,
		job.ViewImplementation,
	}
	require.GreaterOrEqual(t, len(pipeline), len(chain))
	for i, k := range chain {
		require.Equal(t, k, pipeline[i].kind, "pipeline step %d", i)
	}
}

func TestRunFullHappyPath(t *testing.T) {
	f := &fakeSubmitter{}
	res, err := runFull(context.Background(), testEnv(f))
	require.NoError(t, err)
	require.Len(t, f.submitted, len(pipeline))
	require.Contains(t, res.Summary, "phases")
}

// A failing required phase aborts the pipeline before any further phase
// is submitted.
func TestRunFullAbortsOnConnectionFailure(t *testing.T) {
	f := &fakeSubmitter{outcomes: map[job.OperationKind]job.Descriptor{
		job.TestConnections: {State: job.Completed, Result: &job.Result{Counts: job.Counts{Errors: 2}}},
	}}
	_, err := runFull(context.Background(), testEnv(f))
	require.Error(t, err)
	require.Contains(t, err.Error(), string(job.TestConnections))
	require.Equal(t, []job.OperationKind{job.TestConnections}, f.submitted)
}

func TestRunFullAbortsOnEmptyExtract(t *testing.T) {
	f := &fakeSubmitter{outcomes: map[job.OperationKind]job.Descriptor{
		job.SchemaExtract: {State: job.Completed, Result: &job.Result{}},
	}}
	_, err := runFull(context.Background(), testEnv(f))
	require.Error(t, err)
	require.Contains(t, err.Error(), "nothing to migrate")
	require.Equal(t, []job.OperationKind{job.TestConnections, job.SchemaExtract}, f.submitted)
}

func TestRunFullOptionalFailureContinues(t *testing.T) {
	f := &fakeSubmitter{outcomes: map[job.OperationKind]job.Descriptor{
		job.SequenceExtract: {State: job.Failed, Err: "ORA-00942"},
	}}
	res, err := runFull(context.Background(), testEnv(f))
	require.NoError(t, err)
	require.Len(t, f.submitted, len(pipeline))
	require.NotZero(t, res.Counts.Extracted)
}

func TestRunFullCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &fakeSubmitter{}
	_, err := runFull(ctx, testEnv(f))
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, f.submitted)
}

// Every pipeline step must have a registered factory, and the registry
// covers every operation kind the REST layer can start.
func TestRegistryCoversPipeline(t *testing.T) {
	r := NewRegistry()
	for _, s := range pipeline {
		_, ok := r.Create(s.db, s.kind)
		require.True(t, ok, "no job registered for %s/%s", s.db, s.kind)
	}
	_, ok := r.Create(job.Oracle, job.FullMigration)
	require.True(t, ok)
}
