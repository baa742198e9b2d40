// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package orchestrate binds the extraction and creation phases to the
// job subsystem. Each phase is registered as an individual job; the
// full-migration job submits them in dependency order through the same
// service the UI uses.
package orchestrate

import (
	"context"
	"path/filepath"

	"github.com/zeebo/errs"

	"oralift.io/oralift/job"
	"oralift.io/oralift/sql/orameta"
	"oralift.io/oralift/sql/oracle"
	"oralift.io/oralift/sql/postgres"
	"oralift.io/oralift/state"
)

// ErrMissingState is returned when a creation phase runs before the
// extraction it depends on.
var ErrMissingState = errs.Class("missing state")

// NewRegistry returns a registry with every migration phase installed.
func NewRegistry() *job.Registry {
	r := job.NewRegistry()
	registerConnections(r)
	registerExtracts(r)
	registerCreates(r)
	registerTransfer(r)
	registerFullMigration(r)
	return r
}

// oracleJob wraps a function over an extractor into a job factory.
func oracleJob(kind job.OperationKind, name string, fn func(context.Context, *job.Env, *oracle.Extractor) (*job.Result, error)) job.Factory {
	desc := job.Description{Kind: kind, Database: job.Oracle, Name: name}
	return func() job.Job {
		return job.New(desc, func(ctx context.Context, env *job.Env) (*job.Result, error) {
			db, err := env.Conns.Oracle(ctx)
			if err != nil {
				return nil, err
			}
			return fn(ctx, env, oracle.NewExtractor(db, env.Log))
		})
	}
}

// pgJob wraps a function over a creator into a job factory. The creator
// dumps every applied statement under the target project root when one
// is configured.
func pgJob(kind job.OperationKind, name string, fn func(context.Context, *job.Env, *postgres.Creator) (*job.Result, error)) job.Factory {
	desc := job.Description{Kind: kind, Database: job.Postgres, Name: name}
	return func() job.Job {
		return job.New(desc, func(ctx context.Context, env *job.Env) (*job.Result, error) {
			db, err := env.Conns.Postgres(ctx)
			if err != nil {
				return nil, err
			}
			var dump *postgres.Dump
			if root := env.Config.TargetRoot; root != "" {
				dump = postgres.NewDump(filepath.Join(root, "sql"), env.Log)
			}
			return fn(ctx, env, postgres.NewCreator(db, env.Log, dump))
		})
	}
}

// fromState reads a dependency of a later phase from the state store.
func fromState[T any](env *job.Env, key string, dep job.OperationKind) (T, error) {
	v, ok := state.Get[T](env.State, key)
	if !ok {
		var zero T
		return zero, ErrMissingState.New("%s: run %s first", key, dep)
	}
	return v, nil
}

// schemaNames returns the schema set every schema-scoped phase operates
// on, extracting and storing it on first use.
func schemaNames(ctx context.Context, env *job.Env, ex *oracle.Extractor) ([]string, error) {
	schemas, ok := state.Get[[]*orameta.Schema](env.State, orameta.KeySchemas)
	if !ok {
		var err error
		if schemas, err = ex.Schemas(ctx, env.Config.SchemaFilter()); err != nil {
			return nil, err
		}
		env.State.Put(orameta.KeySchemas, schemas)
	}
	names := make([]string, len(schemas))
	for i, s := range schemas {
		names[i] = s.Name
	}
	return names, nil
}

// outcomeResult folds a creation outcome into the uniform job result.
func outcomeResult[T any](o *orameta.Outcome[T]) *job.Result {
	created, skipped, errors := o.Counts()
	res := &job.Result{
		Payload: o,
		Counts:  job.Counts{Created: created, Skipped: skipped, Errors: errors},
	}
	if len(o.Warnings) > 0 {
		res.Summary = map[string]any{"warnings": o.Warnings}
	}
	return res
}

// extractResult stores the extracted items and folds the per-object
// failures and the per-schema item counts into the uniform job result.
func extractResult[T any](env *job.Env, key string, items []T, errs []orameta.ExtractError) *job.Result {
	env.State.Put(key, items)
	res := &job.Result{
		Payload: items,
		Counts:  job.Counts{Extracted: len(items), Errors: len(errs)},
		Summary: map[string]any{},
	}
	perSchema := map[string]int{}
	for _, it := range items {
		if sq, ok := any(it).(interface{ SchemaName() string }); ok {
			perSchema[sq.SchemaName()]++
		}
	}
	if len(perSchema) > 0 {
		res.Summary["perSchema"] = perSchema
	}
	if len(errs) > 0 {
		res.Summary["extractErrors"] = errs
	}
	if len(res.Summary) == 0 {
		res.Summary = nil
	}
	return res
}

// registerConnections installs the connection test under both tags so
// either side of the UI can trigger it.
func registerConnections(r *job.Registry) {
	fn := func(db job.DatabaseTag) job.Factory {
		desc := job.Description{Kind: job.TestConnections, Database: db, Name: "Test database connections"}
		return func() job.Job {
			return job.New(desc, func(ctx context.Context, env *job.Env) (*job.Result, error) {
				ora := env.Conns.TestOracle(ctx)
				pg := env.Conns.TestPostgres(ctx)
				errors := 0
				if !ora.Connected {
					errors++
				}
				if !pg.Connected {
					errors++
				}
				return &job.Result{
					Counts:  job.Counts{Errors: errors},
					Summary: map[string]any{"oracle": ora, "postgres": pg},
				}, nil
			})
		}
	}
	r.Register(job.Oracle, job.TestConnections, fn(job.Oracle))
	r.Register(job.Postgres, job.TestConnections, fn(job.Postgres))
}

// extractPhase registers a schema-scoped extraction phase.
func extractPhase[T any](r *job.Registry, kind job.OperationKind, name, key string,
	fn func(context.Context, *oracle.Extractor, []string) ([]T, []orameta.ExtractError)) {
	r.Register(job.Oracle, kind, oracleJob(kind, name, func(ctx context.Context, env *job.Env, ex *oracle.Extractor) (*job.Result, error) {
		schemas, err := schemaNames(ctx, env, ex)
		if err != nil {
			return nil, err
		}
		items, errs := fn(ctx, ex, schemas)
		return extractResult(env, key, items, errs), nil
	}))
}

func registerExtracts(r *job.Registry) {
	r.Register(job.Oracle, job.SchemaExtract, oracleJob(job.SchemaExtract, "Extract schemas",
		func(ctx context.Context, env *job.Env, ex *oracle.Extractor) (*job.Result, error) {
			schemas, err := ex.Schemas(ctx, env.Config.SchemaFilter())
			if err != nil {
				return nil, err
			}
			return extractResult(env, orameta.KeySchemas, schemas, nil), nil
		}))
	extractPhase(r, job.SynonymExtract, "Extract synonyms", orameta.KeySynonyms,
		func(ctx context.Context, ex *oracle.Extractor, s []string) ([]*orameta.Synonym, []orameta.ExtractError) {
			return ex.Synonyms(ctx, s)
		})
	extractPhase(r, job.ObjectTypeExtract, "Extract object types", orameta.KeyObjectTypes,
		func(ctx context.Context, ex *oracle.Extractor, s []string) ([]*orameta.ObjectType, []orameta.ExtractError) {
			return ex.ObjectTypes(ctx, s)
		})
	extractPhase(r, job.SequenceExtract, "Extract sequences", orameta.KeySequences,
		func(ctx context.Context, ex *oracle.Extractor, s []string) ([]*orameta.Sequence, []orameta.ExtractError) {
			return ex.Sequences(ctx, s)
		})
	extractPhase(r, job.TableMetadataExtract, "Extract table metadata", orameta.KeyTables,
		func(ctx context.Context, ex *oracle.Extractor, s []string) ([]*orameta.Table, []orameta.ExtractError) {
			return ex.Tables(ctx, s)
		})
	extractPhase(r, job.ConstraintExtract, "Extract constraints", orameta.KeyConstraints,
		func(ctx context.Context, ex *oracle.Extractor, s []string) ([]*orameta.Constraint, []orameta.ExtractError) {
			return ex.Constraints(ctx, s)
		})
	extractPhase(r, job.ViewExtract, "Extract views", orameta.KeyViews,
		func(ctx context.Context, ex *oracle.Extractor, s []string) ([]*orameta.View, []orameta.ExtractError) {
			return ex.Views(ctx, s)
		})
	extractPhase(r, job.FunctionExtract, "Extract functions and procedures", orameta.KeyRoutines,
		func(ctx context.Context, ex *oracle.Extractor, s []string) ([]*orameta.Routine, []orameta.ExtractError) {
			return ex.Routines(ctx, s)
		})
	extractPhase(r, job.TypeMethodExtract, "Extract type methods", orameta.KeyTypeMethods,
		func(ctx context.Context, ex *oracle.Extractor, s []string) ([]*orameta.TypeMethod, []orameta.ExtractError) {
			return ex.TypeMethods(ctx, s)
		})
	extractPhase(r, job.TriggerExtract, "Extract triggers", orameta.KeyTriggers,
		func(ctx context.Context, ex *oracle.Extractor, s []string) ([]*orameta.Trigger, []orameta.ExtractError) {
			return ex.Triggers(ctx, s)
		})
	r.Register(job.Oracle, job.RowCountExtract, oracleJob(job.RowCountExtract, "Count source rows",
		func(ctx context.Context, env *job.Env, ex *oracle.Extractor) (*job.Result, error) {
			tables, err := fromState[[]*orameta.Table](env, orameta.KeyTables, job.TableMetadataExtract)
			if err != nil {
				return nil, err
			}
			counts := ex.RowCounts(ctx, tables, func(done, total int, table string) {
				env.Report(pct(done, total), "counting rows", table)
			})
			errs := 0
			var total int64
			perSchema := map[string]int64{}
			for _, rc := range counts {
				if rc.Err != "" {
					errs++
					continue
				}
				total += rc.Rows
				perSchema[rc.Schema] += rc.Rows
			}
			env.State.Put(orameta.KeyRowCounts, counts)
			return &job.Result{
				Payload: counts,
				Counts:  job.Counts{Extracted: len(counts), Errors: errs},
				Summary: map[string]any{"totalRows": total, "perSchema": perSchema},
			}, nil
		}))
}

// createPhase registers a creation phase fed by one extraction key.
func createPhase[T any](r *job.Registry, kind job.OperationKind, name, key string, dep job.OperationKind,
	fn func(context.Context, *postgres.Creator, []T) *orameta.Outcome[string]) {
	r.Register(job.Postgres, kind, pgJob(kind, name, func(ctx context.Context, env *job.Env, c *postgres.Creator) (*job.Result, error) {
		items, err := fromState[[]T](env, key, dep)
		if err != nil {
			return nil, err
		}
		return outcomeResult(fn(ctx, c, items)), nil
	}))
}

func registerCreates(r *job.Registry) {
	createPhase(r, job.SchemaCreate, "Create schemas", orameta.KeySchemas, job.SchemaExtract,
		func(ctx context.Context, c *postgres.Creator, v []*orameta.Schema) *orameta.Outcome[string] {
			return c.Schemas(ctx, v)
		})
	createPhase(r, job.ObjectTypeCreate, "Create object types", orameta.KeyObjectTypes, job.ObjectTypeExtract,
		func(ctx context.Context, c *postgres.Creator, v []*orameta.ObjectType) *orameta.Outcome[string] {
			return c.ObjectTypes(ctx, v)
		})
	createPhase(r, job.SequenceCreate, "Create sequences", orameta.KeySequences, job.SequenceExtract,
		func(ctx context.Context, c *postgres.Creator, v []*orameta.Sequence) *orameta.Outcome[string] {
			return c.Sequences(ctx, v)
		})
	createPhase(r, job.TableCreate, "Create tables", orameta.KeyTables, job.TableMetadataExtract,
		func(ctx context.Context, c *postgres.Creator, v []*orameta.Table) *orameta.Outcome[string] {
			return c.Tables(ctx, v)
		})
	createPhase(r, job.ConstraintCreate, "Create constraints", orameta.KeyConstraints, job.ConstraintExtract,
		func(ctx context.Context, c *postgres.Creator, v []*orameta.Constraint) *orameta.Outcome[string] {
			return c.Constraints(ctx, v)
		})
	createPhase(r, job.FKIndexCreate, "Index foreign keys", orameta.KeyConstraints, job.ConstraintExtract,
		func(ctx context.Context, c *postgres.Creator, v []*orameta.Constraint) *orameta.Outcome[string] {
			return c.FKIndexes(ctx, v)
		})
	createPhase(r, job.ViewStubCreate, "Create view stubs", orameta.KeyViews, job.ViewExtract,
		func(ctx context.Context, c *postgres.Creator, v []*orameta.View) *orameta.Outcome[string] {
			return c.ViewStubs(ctx, v)
		})
	createPhase(r, job.ViewImplementation, "Implement views", orameta.KeyViews, job.ViewExtract,
		func(ctx context.Context, c *postgres.Creator, v []*orameta.View) *orameta.Outcome[string] {
			return c.ViewImplementations(ctx, v)
		})
	createPhase(r, job.ViewVerify, "Verify views", orameta.KeyViews, job.ViewExtract,
		func(ctx context.Context, c *postgres.Creator, v []*orameta.View) *orameta.Outcome[string] {
			return c.VerifyViews(ctx, v)
		})
	createPhase(r, job.FunctionStubCreate, "Create routine stubs", orameta.KeyRoutines, job.FunctionExtract,
		func(ctx context.Context, c *postgres.Creator, v []*orameta.Routine) *orameta.Outcome[string] {
			return c.RoutineStubs(ctx, v)
		})
	createPhase(r, job.TypeMethodStubCreate, "Create type method stubs", orameta.KeyTypeMethods, job.TypeMethodExtract,
		func(ctx context.Context, c *postgres.Creator, v []*orameta.TypeMethod) *orameta.Outcome[string] {
			return c.TypeMethodStubs(ctx, v)
		})
	createPhase(r, job.TypeMethodImpl, "Implement type methods", orameta.KeyTypeMethods, job.TypeMethodExtract,
		func(ctx context.Context, c *postgres.Creator, v []*orameta.TypeMethod) *orameta.Outcome[string] {
			return c.TypeMethodImplementations(ctx, v)
		})
	createPhase(r, job.TriggerImpl, "Implement triggers", orameta.KeyTriggers, job.TriggerExtract,
		func(ctx context.Context, c *postgres.Creator, v []*orameta.Trigger) *orameta.Outcome[string] {
			return c.TriggerImplementations(ctx, v)
		})
	createPhase(r, job.TriggerVerify, "Verify triggers", orameta.KeyTriggers, job.TriggerExtract,
		func(ctx context.Context, c *postgres.Creator, v []*orameta.Trigger) *orameta.Outcome[string] {
			return c.VerifyTriggers(ctx, v)
		})
	r.Register(job.Postgres, job.SynonymViews, pgJob(job.SynonymViews, "Create synonym views",
		func(ctx context.Context, env *job.Env, c *postgres.Creator) (*job.Result, error) {
			syns, err := fromState[[]*orameta.Synonym](env, orameta.KeySynonyms, job.SynonymExtract)
			if err != nil {
				return nil, err
			}
			return outcomeResult(c.SynonymViews(ctx, syns, knownObjects(env))), nil
		}))
	r.Register(job.Postgres, job.CompatInstall, pgJob(job.CompatInstall, "Install compatibility functions",
		func(ctx context.Context, env *job.Env, c *postgres.Creator) (*job.Result, error) {
			rep := c.InstallCompat(ctx)
			installed, failed := rep.Counts()
			return &job.Result{
				Payload: rep,
				Counts:  job.Counts{Created: installed, Errors: failed},
			}, nil
		}))
	r.Register(job.Postgres, job.CompatVerify, pgJob(job.CompatVerify, "Verify compatibility functions",
		func(ctx context.Context, env *job.Env, c *postgres.Creator) (*job.Result, error) {
			return outcomeResult(c.VerifyCompat(ctx)), nil
		}))
}

// knownObjects lists the migrated relations synonyms may point at, keyed
// by their Postgres qualified name.
func knownObjects(env *job.Env) map[string]bool {
	known := map[string]bool{}
	if tables, ok := state.Get[[]*orameta.Table](env.State, orameta.KeyTables); ok {
		for _, t := range tables {
			known[postgres.QualIdent(t.Schema, t.Name)] = true
		}
	}
	if views, ok := state.Get[[]*orameta.View](env.State, orameta.KeyViews); ok {
		for _, v := range views {
			known[postgres.QualIdent(v.Schema, v.Name)] = true
		}
	}
	return known
}

func pct(done, total int) int {
	if total <= 0 {
		return 0
	}
	return done * 100 / total
}
