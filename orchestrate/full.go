// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package orchestrate

import (
	"context"
	"fmt"
	"strings"

	"oralift.io/oralift/job"
)

// A step is one phase of the full pipeline. Required steps abort the
// migration on failure or when an extraction yields nothing to migrate;
// optional steps record their failures and let the pipeline continue.
type step struct {
	db       job.DatabaseTag
	kind     job.OperationKind
	required bool
}

// pipeline is the full migration in dependency order: structure before
// data, constraints after data, stubs before implementations, the
// compatibility layer before view bodies that may call it, then the
// trigger and verification phases.
var pipeline = []step{
	{job.Oracle, job.TestConnections, true},
	{job.Oracle, job.SchemaExtract, true},
	{job.Postgres, job.SchemaCreate, true},
	{job.Oracle, job.SynonymExtract, false},
	{job.Oracle, job.ObjectTypeExtract, false},
	{job.Postgres, job.ObjectTypeCreate, false},
	{job.Oracle, job.SequenceExtract, false},
	{job.Postgres, job.SequenceCreate, false},
	{job.Oracle, job.TableMetadataExtract, true},
	{job.Postgres, job.TableCreate, true},
	{job.Oracle, job.RowCountExtract, false},
	{job.Oracle, job.DataTransfer, false},
	{job.Oracle, job.ConstraintExtract, false},
	{job.Postgres, job.ConstraintCreate, false},
	{job.Postgres, job.FKIndexCreate, false},
	{job.Oracle, job.ViewExtract, false},
	{job.Postgres, job.ViewStubCreate, false},
	{job.Oracle, job.FunctionExtract, false},
	{job.Postgres, job.FunctionStubCreate, false},
	{job.Oracle, job.TypeMethodExtract, false},
	{job.Postgres, job.TypeMethodStubCreate, false},
	{job.Postgres, job.CompatInstall, true},
	{job.Postgres, job.ViewImplementation, false},
	{job.Postgres, job.TypeMethodImpl, false},
	{job.Postgres, job.SynonymViews, false},
	{job.Postgres, job.ViewVerify, false},
	{job.Oracle, job.TriggerExtract, false},
	{job.Postgres, job.TriggerImpl, false},
	{job.Postgres, job.TriggerVerify, false},
	{job.Postgres, job.CompatVerify, false},
}

// registerFullMigration installs the orchestrator. The service runs it
// on a dedicated goroutine off the worker pool, so the phase jobs it
// submits always find a free worker; results still land in the same
// descriptor store the UI polls.
func registerFullMigration(r *job.Registry) {
	desc := job.Description{Kind: job.FullMigration, Database: job.Oracle, Name: "Full migration"}
	r.Register(job.Oracle, job.FullMigration, func() job.Job {
		return job.New(desc, runFull)
	})
}

func runFull(ctx context.Context, env *job.Env) (*job.Result, error) {
	var (
		phases []*job.Summary
		counts job.Counts
	)
	for i, s := range pipeline {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		env.Report(pct(i, len(pipeline)), string(s.kind), "")
		id, err := env.Jobs.Submit(s.db, s.kind)
		if err != nil {
			if !s.required {
				counts.Errors++
				continue
			}
			return nil, fmt.Errorf("orchestrate: submitting %s: %w", s.kind, err)
		}
		d, err := env.Jobs.Wait(ctx, id)
		if err != nil {
			return nil, err
		}
		sum := job.Summarize(d)
		phases = append(phases, sum)
		counts.Created += sum.CreatedCount
		counts.Skipped += sum.SkippedCount
		counts.Errors += sum.ErrorCount
		counts.Extracted += sum.Extracted
		if s.required {
			if reason := abortReason(s, d); reason != "" {
				return nil, fmt.Errorf("orchestrate: aborted at %s: %s", s.kind, reason)
			}
		}
	}
	return &job.Result{
		Payload: phases,
		Counts:  counts,
		Summary: map[string]any{"phases": phases},
	}, nil
}

// abortReason decides whether a required step stops the pipeline.
func abortReason(s step, d job.Descriptor) string {
	if d.State != job.Completed {
		if d.Err != "" {
			return d.Err
		}
		return fmt.Sprintf("phase %s", strings.ToLower(string(d.State)))
	}
	if d.Result == nil {
		return ""
	}
	if d.Result.Counts.Errors > 0 {
		return fmt.Sprintf("%d item errors", d.Result.Counts.Errors)
	}
	if isExtract(s.kind) && d.Result.Counts.Extracted == 0 {
		return "nothing to migrate"
	}
	return ""
}

func isExtract(k job.OperationKind) bool {
	return strings.HasSuffix(string(k), "_EXTRACT")
}
