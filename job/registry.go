// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package job

import "sync"

// A Factory produces a fresh Job instance per submission.
type Factory func() Job

type registryKey struct {
	db   DatabaseTag
	kind OperationKind
}

// A Registry maps (database, operation) pairs to job factories. It is
// populated once at startup; unknown combinations fail at submit time.
type Registry struct {
	mu sync.RWMutex
	m  map[registryKey]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{m: make(map[registryKey]Factory)}
}

// Register installs a factory. Registering the same pair twice is a
// programming error.
func (r *Registry) Register(db DatabaseTag, kind OperationKind, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := registryKey{db: db, kind: kind}
	if _, ok := r.m[k]; ok {
		panic("job: Register called twice for " + string(db) + "/" + string(kind))
	}
	r.m[k] = f
}

// Create instantiates a job for the pair, or reports false when no
// factory is registered.
func (r *Registry) Create(db DatabaseTag, kind OperationKind) (Job, bool) {
	r.mu.RLock()
	f, ok := r.m[registryKey{db: db, kind: kind}]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return f(), true
}
