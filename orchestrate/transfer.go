// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package orchestrate

import (
	"context"

	"oralift.io/oralift/job"
	"oralift.io/oralift/sql/orameta"
	"oralift.io/oralift/sql/transfer"
)

// registerTransfer installs the data transfer phase. The engine reads
// from Oracle through database/sql and writes through a raw pgx
// connection for COPY support.
func registerTransfer(r *job.Registry) {
	desc := job.Description{Kind: job.DataTransfer, Database: job.Oracle, Name: "Transfer table data"}
	r.Register(job.Oracle, job.DataTransfer, func() job.Job {
		return job.New(desc, func(ctx context.Context, env *job.Env) (*job.Result, error) {
			tables, err := fromState[[]*orameta.Table](env, orameta.KeyTables, job.TableMetadataExtract)
			if err != nil {
				return nil, err
			}
			counts, err := fromState[[]*orameta.RowCount](env, orameta.KeyRowCounts, job.RowCountExtract)
			if err != nil {
				return nil, err
			}
			oraDB, err := env.Conns.Oracle(ctx)
			if err != nil {
				return nil, err
			}
			pgConn, release, err := env.Conns.AcquirePgx(ctx)
			if err != nil {
				return nil, err
			}
			defer release()
			eng := transfer.New(oraDB, pgConn, env.Log, transfer.Options{
				FetchSize:      env.Config.FetchSize,
				CommitInterval: env.Config.CommitInterval,
				ExcludeLOBs:    env.Config.ExcludeLOBs,
				AllowLossy:     env.Config.AllowLossy,
			})
			rep := eng.Run(ctx, tables, counts, func(done, total int, table string) {
				env.Report(pct(done, total), "copying rows", table)
			})
			transferred, partial, skipped, errored := rep.Counts()
			return &job.Result{
				Payload: rep,
				Counts:  job.Counts{Created: transferred, Skipped: skipped, Errors: errored},
				Summary: map[string]any{
					"partialTables": partial,
					"totalRows":     rep.TotalRows,
				},
			}, nil
		})
	})
}
