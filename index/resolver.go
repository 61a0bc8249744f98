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

package index

import (
	"context"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cubefs/fluree-lite/storage/kvstore"
	"github.com/cubefs/fluree-lite/storage/serde"
)

// cacheKey is (node-id, tempid?) per §4.4. Resolve only ever fills id:
// every cached entry is keyed by its node id, and tempID is never set.
type cacheKey struct {
	id     string
	tempID string
}

// Resolver materializes unresolved nodes from Store+Serde and memoizes the
// result behind an LRU sized against a byte budget, shared across every DB
// snapshot of one ledger. This is the generalization the DESIGN.md grounds
// on the teacher's raft.cacheAddressResolver (raft/resolver.go): that type
// memoizes a single resolved Addr per node id behind a sync.Map with no
// eviction; here the cached value is an entire parsed node body, so
// eviction against a byte budget is required and a sync.Map alone would
// leak without bound.
type Resolver struct {
	store kvstore.Store
	serde serde.Serde

	mu        sync.Mutex
	cache     *lru.Cache[cacheKey, *cachedNode]
	budget    int64
	used      int64
	hits      int64
	misses    int64
}

type cachedNode struct {
	node *Node
	size int64
}

// NewResolver builds a Resolver whose cache is sized against budgetBytes —
// §6's "memory (byte budget for caches; minimum 1 MiB)".
func NewResolver(store kvstore.Store, sd serde.Serde, budgetBytes int64) *Resolver {
	if budgetBytes < 1<<20 {
		budgetBytes = 1 << 20
	}
	// the LRU is keyed by count, not bytes; an outsized count cap combined
	// with explicit eviction-on-overflow below gives byte-budget behavior
	// without needing a bytes-aware LRU implementation.
	cache, _ := lru.New[cacheKey, *cachedNode](1 << 20)
	return &Resolver{store: store, serde: sd, cache: cache, budget: budgetBytes}
}

// Resolve materializes n in place if it is not already resolved, reading
// through Store+Serde on a cache miss (§4.4).
func (r *Resolver) Resolve(ctx context.Context, n *Node) (*Node, error) {
	if n.Resolved() {
		return n, nil
	}

	key := cacheKey{id: n.ID}
	r.mu.Lock()
	if cn, ok := r.cache.Get(key); ok {
		atomic.AddInt64(&r.hits, 1)
		r.mu.Unlock()
		return mergeResolved(n, cn.node), nil
	}
	r.mu.Unlock()
	atomic.AddInt64(&r.misses, 1)

	raw, err := r.store.Read(ctx, n.ID).Get(ctx)
	if err != nil {
		return nil, err
	}

	resolved, size, err := r.decode(n, raw)
	if err != nil {
		return nil, err
	}

	r.admit(key, &cachedNode{node: resolved, size: size})
	return mergeResolved(n, resolved), nil
}

func (r *Resolver) decode(n *Node, raw []byte) (*Node, int64, error) {
	out := *n
	if n.IsLeaf {
		leaf, err := r.serde.DeserializeLeaf(raw)
		if err != nil {
			return nil, 0, err
		}
		out.Flakes = serde.FromRecords(leaf.Flakes)
	} else {
		branch, err := r.serde.DeserializeBranch(raw)
		if err != nil {
			return nil, 0, err
		}
		out.Children = make([]Child, len(branch.Children))
		for i, c := range branch.Children {
			out.Children[i] = childFromSummary(c)
		}
	}
	out.markResolved()
	return &out, int64(len(raw)), nil
}

func mergeResolved(orig, resolved *Node) *Node {
	out := *orig
	out.Flakes = resolved.Flakes
	out.Children = resolved.Children
	out.markResolved()
	return &out
}

// admit inserts cn, evicting the oldest entries if the byte budget would
// be exceeded — admissions and evictions are serialized per §5's shared-
// resource contract ("Node LRU cache: concurrently readable; admissions
// and evictions are serialized").
func (r *Resolver) admit(key cacheKey, cn *cachedNode) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.used += cn.size
	r.cache.Add(key, cn)
	for r.used > r.budget && r.cache.Len() > 1 {
		_, evicted, ok := r.cache.RemoveOldest()
		if !ok {
			break
		}
		r.used -= evicted.size
	}
}

// Stats reports cache effectiveness, exported for the indexer/session
// metrics surface (SPEC_FULL §9 "Metrics surface").
func (r *Resolver) Stats() (hits, misses int64, usedBytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return atomic.LoadInt64(&r.hits), atomic.LoadInt64(&r.misses), r.used
}
