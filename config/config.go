// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package config holds the process-wide migration settings. The store
// is viper-backed so settings load from a file and environment, and the
// REST layer can overwrite individual keys at runtime. Jobs receive an
// immutable Settings snapshot, never the store itself.
package config

import (
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"github.com/zeebo/errs"
)

// ErrConfig is the class of configuration errors.
var ErrConfig = errs.Class("config")

// Configuration keys. The dotted names are part of the external REST
// contract and mirror the persisted settings file.
const (
	KeyAllSchemas     = "do.all-schemas"
	KeyTestSchema     = "do.only-test-schema"
	KeyExcludeLOBs    = "exclude.lob-data"
	KeyAllowLossy     = "allow.lossy"
	KeyOracleURL      = "oracle.url"
	KeyOracleUser     = "oracle.user"
	KeyOraclePassword = "oracle.password"
	KeyPostgresURL    = "postgre.url"
	KeyPostgresUser   = "postgre.username"
	KeyPostgresPass   = "postgre.password"
	KeyTargetRoot     = "path.target-project-root"
	KeyGeneratedPkg   = "java.generated-package-name"
	KeyWorkers        = "jobs.workers"
	KeyMaxDescriptors = "jobs.max-descriptors"
	KeyExtractTimeout = "jobs.extract-timeout"
	KeyFetchSize      = "transfer.fetch-size"
	KeyCommitInterval = "transfer.commit-interval"
)

// Settings is an immutable snapshot of the store handed to jobs.
type Settings struct {
	AllSchemas     bool
	TestSchema     string
	ExcludeLOBs    bool
	AllowLossy     bool
	OracleURL      string
	OracleUser     string
	OraclePassword string
	PostgresURL    string
	PostgresUser   string
	PostgresPass   string
	TargetRoot     string
	GeneratedPkg   string
	Workers        int
	MaxDescriptors int
	ExtractTimeout time.Duration
	FetchSize      int
	CommitInterval int
}

// SchemaFilter returns the schema restriction implied by the snapshot:
// nil means all non-system schemas, otherwise the single test schema.
func (s Settings) SchemaFilter() []string {
	if s.AllSchemas || s.TestSchema == "" {
		return nil
	}
	return []string{strings.ToUpper(s.TestSchema)}
}

// A Store is the mutable holder of settings.
type Store struct {
	mu sync.RWMutex
	v  *viper.Viper
}

// New returns a store populated with defaults.
func New() *Store {
	s := &Store{v: viper.New()}
	s.defaults()
	return s
}

func (s *Store) defaults() {
	s.v.SetDefault(KeyAllSchemas, true)
	s.v.SetDefault(KeyTestSchema, "")
	s.v.SetDefault(KeyExcludeLOBs, false)
	s.v.SetDefault(KeyAllowLossy, false)
	s.v.SetDefault(KeyWorkers, maxInt(2, runtime.NumCPU()))
	s.v.SetDefault(KeyMaxDescriptors, 1024)
	s.v.SetDefault(KeyExtractTimeout, 5*time.Minute)
	s.v.SetDefault(KeyFetchSize, 1000)
	s.v.SetDefault(KeyCommitInterval, 10000)
}

// Load reads the optional settings file. A missing file is not an
// error; a malformed one is.
func (s *Store) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if path == "" {
		return nil
	}
	s.v.SetConfigFile(path)
	if err := s.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return ErrConfig.Wrap(err)
	}
	return nil
}

// Set overwrites a single key.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(key, value)
}

// SetAll overwrites the given keys.
func (s *Store) SetAll(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.v.Set(k, v)
	}
}

// All returns every known key and its current value.
func (s *Store) All() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.AllSettings()
}

// Reset drops all overrides and file values, reverting to defaults.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v = viper.New()
	s.defaults()
}

// Snapshot returns an immutable copy of the current settings.
func (s *Store) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Settings{
		AllSchemas:     s.v.GetBool(KeyAllSchemas),
		TestSchema:     s.v.GetString(KeyTestSchema),
		ExcludeLOBs:    s.v.GetBool(KeyExcludeLOBs),
		AllowLossy:     s.v.GetBool(KeyAllowLossy),
		OracleURL:      s.v.GetString(KeyOracleURL),
		OracleUser:     s.v.GetString(KeyOracleUser),
		OraclePassword: s.v.GetString(KeyOraclePassword),
		PostgresURL:    s.v.GetString(KeyPostgresURL),
		PostgresUser:   s.v.GetString(KeyPostgresUser),
		PostgresPass:   s.v.GetString(KeyPostgresPass),
		TargetRoot:     s.v.GetString(KeyTargetRoot),
		GeneratedPkg:   s.v.GetString(KeyGeneratedPkg),
		Workers:        s.v.GetInt(KeyWorkers),
		MaxDescriptors: s.v.GetInt(KeyMaxDescriptors),
		ExtractTimeout: s.v.GetDuration(KeyExtractTimeout),
		FetchSize:      s.v.GetInt(KeyFetchSize),
		CommitInterval: s.v.GetInt(KeyCommitInterval),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
