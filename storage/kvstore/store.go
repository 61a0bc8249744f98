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

// Package kvstore is the Store capability of §4.2 and §6: an opaque
// key -> bytes blob interface, content-addressed by the core. It is
// narrowed from the teacher's rocksdb column-family Store (which speaks in
// typed Get/Put/iterators over multiple column families) down to the
// single-namespace blob contract the spec requires; see rocks and
// memstore for the two shipped implementations.
package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read when the key has no blob. The node
// cache (index.Resolver) never caches this error — a miss is always
// re-read from Store (§7: "the node cache never caches errors").
var ErrNotFound = errors.New("kvstore: key not found")

// Address is what Write returns: may equal the key, or a canonical URL
// for remote backends (§6: "address may equal the key or a canonical
// URL").
type Address string

// Store is the abstract bytes interface consumed by index, commit, and
// indexer. Every method's result crosses an async boundary and so comes
// back wrapped in a Future (§5 scheduling model).
type Store interface {
	Exists(ctx context.Context, key string) *Future[bool]
	Read(ctx context.Context, key string) *Future[[]byte]
	Write(ctx context.Context, key string, value []byte) *Future[Address]
	Rename(ctx context.Context, oldKey, newKey string) *Future[struct{}]
	Delete(ctx context.Context, key string) *Future[struct{}]
	List(ctx context.Context, prefix string) *Future[[]string]
}
