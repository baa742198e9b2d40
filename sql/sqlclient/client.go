// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package sqlclient produces scoped connections to the source Oracle
// and destination Postgres databases. Pools are cached per configured
// URL and invalidated when configuration changes.
package sqlclient

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/stdlib"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/mod/semver"

	_ "github.com/sijms/go-ora/v2" // oracle driver

	"oralift.io/oralift/config"
)

// ErrConnection is the class of connectivity and authentication errors.
var ErrConnection = errs.Class("connection")

// minPostgresVersion is the oldest destination server the generated
// DDL is written for.
const minPostgresVersion = "v12"

// A Client hands out connections per the current configuration.
type Client struct {
	log *zap.Logger
	cfg *config.Store

	mu       sync.Mutex
	oracle   *sql.DB
	oraDSN   string
	postgres *sql.DB
	pgDSN    string
}

// New returns a client reading connection settings from cfg.
func New(log *zap.Logger, cfg *config.Store) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{log: log, cfg: cfg}
}

// Oracle returns the cached Oracle pool, opening it if needed.
func (c *Client) Oracle(ctx context.Context) (*sql.DB, error) {
	s := c.cfg.Snapshot()
	dsn, err := dsnWithUser(s.OracleURL, s.OracleUser, s.OraclePassword)
	if err != nil {
		return nil, ErrConnection.Wrap(err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.oracle != nil && c.oraDSN == dsn {
		return c.oracle, nil
	}
	if c.oracle != nil {
		_ = c.oracle.Close()
	}
	db, err := sql.Open("oracle", dsn)
	if err != nil {
		return nil, ErrConnection.Wrap(err)
	}
	db.SetMaxOpenConns(8)
	c.oracle, c.oraDSN = db, dsn
	return db, nil
}

// Postgres returns the cached Postgres pool, opening it if needed.
func (c *Client) Postgres(ctx context.Context) (*sql.DB, error) {
	s := c.cfg.Snapshot()
	dsn, err := dsnWithUser(s.PostgresURL, s.PostgresUser, s.PostgresPass)
	if err != nil {
		return nil, ErrConnection.Wrap(err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.postgres != nil && c.pgDSN == dsn {
		return c.postgres, nil
	}
	if c.postgres != nil {
		_ = c.postgres.Close()
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, ErrConnection.Wrap(err)
	}
	db.SetMaxOpenConns(8)
	c.postgres, c.pgDSN = db, dsn
	return db, nil
}

// WithOracle runs fn with a dedicated Oracle connection, releasing it
// on all exit paths.
func (c *Client) WithOracle(ctx context.Context, fn func(context.Context, *sql.Conn) error) error {
	db, err := c.Oracle(ctx)
	if err != nil {
		return err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return ErrConnection.Wrap(err)
	}
	defer conn.Close()
	return fn(ctx, conn)
}

// WithPostgres runs fn with a dedicated Postgres connection, releasing
// it on all exit paths.
func (c *Client) WithPostgres(ctx context.Context, fn func(context.Context, *sql.Conn) error) error {
	db, err := c.Postgres(ctx)
	if err != nil {
		return err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return ErrConnection.Wrap(err)
	}
	defer conn.Close()
	return fn(ctx, conn)
}

// AcquirePgx exposes the underlying pgx connection of a pooled Postgres
// connection for bulk-copy use. The release function must be called
// when done.
func (c *Client) AcquirePgx(ctx context.Context) (*pgx.Conn, func(), error) {
	db, err := c.Postgres(ctx)
	if err != nil {
		return nil, nil, err
	}
	conn, err := stdlib.AcquireConn(db)
	if err != nil {
		return nil, nil, ErrConnection.Wrap(err)
	}
	release := func() { _ = stdlib.ReleaseConn(db, conn) }
	return conn, release, nil
}

// Invalidate closes the cached pools. The next acquisition reopens
// them from fresh configuration.
func (c *Client) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.oracle != nil {
		_ = c.oracle.Close()
		c.oracle, c.oraDSN = nil, ""
	}
	if c.postgres != nil {
		_ = c.postgres.Close()
		c.postgres, c.pgDSN = nil, ""
	}
}

// A TestResult reports the outcome of a connection test.
type TestResult struct {
	Connected        bool   `json:"connected"`
	ConnectionTimeMs int64  `json:"connectionTimeMs"`
	Product          string `json:"databaseProductName,omitempty"`
	Version          string `json:"databaseProductVersion,omitempty"`
	Message          string `json:"message,omitempty"`
}

// TestOracle connects to Oracle and reports product and version.
func (c *Client) TestOracle(ctx context.Context) *TestResult {
	start := time.Now()
	r := &TestResult{Product: "Oracle"}
	err := c.WithOracle(ctx, func(ctx context.Context, conn *sql.Conn) error {
		return conn.QueryRowContext(ctx,
			`SELECT banner FROM v$version WHERE ROWNUM = 1`).Scan(&r.Version)
	})
	r.ConnectionTimeMs = time.Since(start).Milliseconds()
	if err != nil {
		r.Message = err.Error()
		return r
	}
	r.Connected = true
	return r
}

// TestPostgres connects to Postgres, reports product and version, and
// rejects servers older than the minimum supported release.
func (c *Client) TestPostgres(ctx context.Context) *TestResult {
	start := time.Now()
	r := &TestResult{Product: "PostgreSQL"}
	err := c.WithPostgres(ctx, func(ctx context.Context, conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, `SHOW server_version`).Scan(&r.Version)
	})
	r.ConnectionTimeMs = time.Since(start).Milliseconds()
	if err != nil {
		r.Message = err.Error()
		return r
	}
	if v := "v" + strings.Fields(r.Version)[0]; semver.IsValid(v) &&
		semver.Compare(semver.Major(v), minPostgresVersion) < 0 {
		r.Message = fmt.Sprintf("postgres %s is older than the minimum supported %s", r.Version, minPostgresVersion)
		return r
	}
	r.Connected = true
	return r
}

// dsnWithUser injects credentials into a database URL.
func dsnWithUser(raw, user, pass string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("database url is not configured")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}
	if user != "" {
		u.User = url.UserPassword(user, pass)
	}
	return u.String(), nil
}
