// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package memstore is an in-memory kvstore.Store, the default backend for
// the REPL and for tests that don't need rocksdb's durability.
package memstore

import (
	"context"
	"strings"
	"sync"

	"github.com/cubefs/fluree-lite/storage/kvstore"
)

type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Exists(ctx context.Context, key string) *kvstore.Future[bool] {
	s.mu.RLock()
	_, ok := s.data[key]
	s.mu.RUnlock()
	return kvstore.Resolved(ok, nil)
}

func (s *Store) Read(ctx context.Context, key string) *kvstore.Future[[]byte] {
	s.mu.RLock()
	v, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return kvstore.Resolved[[]byte](nil, kvstore.ErrNotFound)
	}
	out := make([]byte, len(v))
	copy(out, v)
	return kvstore.Resolved(out, nil)
}

func (s *Store) Write(ctx context.Context, key string, value []byte) *kvstore.Future[kvstore.Address] {
	cp := make([]byte, len(value))
	copy(cp, value)
	s.mu.Lock()
	s.data[key] = cp
	s.mu.Unlock()
	return kvstore.Resolved(kvstore.Address(key), nil)
}

func (s *Store) Rename(ctx context.Context, oldKey, newKey string) *kvstore.Future[struct{}] {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[oldKey]
	if !ok {
		return kvstore.Resolved(struct{}{}, kvstore.ErrNotFound)
	}
	s.data[newKey] = v
	delete(s.data, oldKey)
	return kvstore.Resolved(struct{}{}, nil)
}

func (s *Store) Delete(ctx context.Context, key string) *kvstore.Future[struct{}] {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return kvstore.Resolved(struct{}{}, nil)
}

func (s *Store) List(ctx context.Context, prefix string) *kvstore.Future[[]string] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return kvstore.Resolved(out, nil)
}
