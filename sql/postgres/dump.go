// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package postgres

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// A Dump mirrors every applied DDL statement into per-phase .sql files
// under a target directory. It is best effort: write failures are
// logged and never fail the owning job. A nil Dump discards everything.
type Dump struct {
	root string
	log  *zap.Logger
	mu   sync.Mutex
}

// NewDump returns a dump rooted at dir, or nil when dir is empty.
func NewDump(dir string, log *zap.Logger) *Dump {
	if dir == "" {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dump{root: dir, log: log}
}

// Append appends ddl to the phase file.
func (d *Dump) Append(phase, ddl string) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		d.log.Warn("ddl dump", zap.Error(err))
		return
	}
	path := filepath.Join(d.root, phase+".sql")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		d.log.Warn("ddl dump", zap.Error(err))
		return
	}
	defer f.Close()
	if _, err := f.WriteString(ddl + ";\n\n"); err != nil {
		d.log.Warn("ddl dump", zap.Error(err))
	}
}
