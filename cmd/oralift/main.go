// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Command oralift runs the Oracle to PostgreSQL migration server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"oralift.io/oralift/config"
	"oralift.io/oralift/httpapi"
	"oralift.io/oralift/job"
	"oralift.io/oralift/orchestrate"
	"oralift.io/oralift/sql/sqlclient"
	"oralift.io/oralift/state"
)

var (
	version = "dev"

	flagAddr    string
	flagConfig  string
	flagVerbose bool
)

func main() {
	root := &cobra.Command{
		Use:          "oralift",
		Short:        "Migrate an Oracle database to PostgreSQL",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to the settings file")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the migration REST server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	serve.Flags().StringVar(&flagAddr, "addr", ":8080", "listen address")

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Run the full migration pipeline and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd.Context())
		},
	}

	root.AddCommand(serve, migrate, &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(*cobra.Command, []string) {
			fmt.Println("oralift " + version)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	if flagVerbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// bootstrap wires the engine: config, state, connections, job service.
func bootstrap(log *zap.Logger) (*config.Store, *sqlclient.Client, *job.Service, error) {
	cfg := config.New()
	if err := cfg.Load(flagConfig); err != nil {
		return nil, nil, nil, err
	}
	conns := sqlclient.New(log, cfg)
	jobs := job.NewService(log, orchestrate.NewRegistry(), state.New(), cfg, conns)
	return cfg, conns, jobs, nil
}

func runServe(ctx context.Context) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	cfg, conns, jobs, err := bootstrap(log)
	if err != nil {
		return err
	}
	defer func() { _ = jobs.Close() }()
	defer conns.Invalidate()

	srv := &http.Server{
		Addr:              flagAddr,
		Handler:           httpapi.New(log, cfg, conns, jobs).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Info("server started", zap.String("addr", flagAddr), zap.String("version", version))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// runMigrate drives the full pipeline headless and reports the summary
// on stdout.
func runMigrate(ctx context.Context) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	_, conns, jobs, err := bootstrap(log)
	if err != nil {
		return err
	}
	defer func() { _ = jobs.Close() }()
	defer conns.Invalidate()

	id, err := jobs.Submit(job.Oracle, job.FullMigration)
	if err != nil {
		return err
	}
	d, err := jobs.Wait(ctx, id)
	if err != nil {
		return err
	}
	sum := job.Summarize(d)
	fmt.Printf("migration %s: created=%d skipped=%d errors=%d\n",
		sum.Status, sum.CreatedCount, sum.SkippedCount, sum.ErrorCount)
	if d.State != job.Completed {
		return errors.New(d.Err)
	}
	return nil
}
