// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package state implements the in-memory repository of extracted
// metadata shared between migration phases. Values are stored per phase
// key and replaced atomically; readers observe either the previous or
// the new snapshot, never a partial one.
package state

import "sync"

// A Store is a phase-keyed snapshot store.
type Store struct {
	mu sync.RWMutex
	m  map[string]any
}

// New returns an empty store.
func New() *Store {
	return &Store{m: make(map[string]any)}
}

// Put replaces the snapshot stored under key. Last writer wins.
func (s *Store) Put(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = v
}

// Get returns the snapshot stored under key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

// Keys returns the currently populated phase keys.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ks := make([]string, 0, len(s.m))
	for k := range s.m {
		ks = append(ks, k)
	}
	return ks
}

// Reset empties the store atomically.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = make(map[string]any)
}

// Get returns the snapshot under key in typed form. The second return
// is false when the key is absent or holds a different type.
func Get[T any](s *Store, key string) (T, bool) {
	var zero T
	v, ok := s.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
