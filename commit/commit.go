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

// Package commit implements the atomic publication sequence of §4.8:
// write every new leaf and branch, then the garbage blob, then the
// db-root — the root blob is the single pointer a reader loads by block
// number to see a consistent snapshot.
package commit

import (
	"context"

	"github.com/cubefs/cubefs/blobstore/util/log"

	"github.com/cubefs/fluree-lite/apperr"
	"github.com/cubefs/fluree-lite/db"
	"github.com/cubefs/fluree-lite/flake"
	"github.com/cubefs/fluree-lite/index"
	"github.com/cubefs/fluree-lite/storage/kvstore"
	"github.com/cubefs/fluree-lite/storage/serde"
)

// WriteSet is the output of a reindex pass (built by the indexer):
// freshly-written leaves/branches keyed by the id they were just written
// under, and the node ids they supersede.
type WriteSet struct {
	Leaves   map[flake.Index][]LeafWrite
	Branches map[flake.Index][]BranchWrite
	Roots    map[flake.Index]index.Child // new resolved root per index
	Garbage  []string                    // superseded node ids
}

// LeafWrite and BranchWrite pair a freshly assigned key with its encoded
// body, deferred until Publish so every write happens inside one ordered
// sequence.
type LeafWrite struct {
	Key  string
	Body serde.Leaf
}

type BranchWrite struct {
	Key  string
	Body serde.Branch
}

// Publish executes §4.8's ordered write sequence against next (the DB
// value the indexer produced, already carrying the new roots and a
// novelty overlay trimmed to what remains unindexed) and returns the
// persisted db-root's key.
//
// Order: (1) leaves, (2) branches, (3) garbage blob, (4) db-root. A
// failure at any step aborts before the db-root is written, so a reader
// can never observe a root pointing at nodes that were never persisted.
func Publish(ctx context.Context, store kvstore.Store, sd serde.Serde, next *db.DB, ws WriteSet, timestamp int64, prevIndex int64, fork string, forkBlock int64) (string, error) {
	for _, idx := range flake.All() {
		for _, lw := range ws.Leaves[idx] {
			if err := writeBlob(ctx, store, lw.Key, sd.SerializeLeaf, lw.Body); err != nil {
				return "", apperr.Wrap(err, apperr.StorageError, "commit: write leaf")
			}
		}
	}
	for _, idx := range flake.All() {
		for _, bw := range ws.Branches[idx] {
			if err := writeBlob(ctx, store, bw.Key, sd.SerializeBranch, bw.Body); err != nil {
				return "", apperr.Wrap(err, apperr.StorageError, "commit: write branch")
			}
		}
	}

	if len(ws.Garbage) > 0 {
		garbage := serde.Garbage{LedgerID: next.LedgerID, Block: next.Block, NodeIDs: ws.Garbage}
		gkey := kvstore.GarbageKey(next.Network, next.LedgerID, next.Block)
		if err := writeBlob(ctx, store, gkey, sd.SerializeGarbage, garbage); err != nil {
			return "", apperr.Wrap(err, apperr.StorageError, "commit: write garbage")
		}
	}

	root := serde.Root{
		LedgerID:    next.LedgerID,
		Block:       next.Block,
		T:           next.T,
		Ecount:      next.Ecount,
		StatsFlakes: next.Stats.Flakes,
		StatsSize:   next.Stats.Size,
		Indexed:     next.Stats.Indexed,
		Indexes:     make(map[string]serde.ChildSummary, len(ws.Roots)),
		Timestamp:   timestamp,
		PrevIndex:   prevIndex,
		Fork:        fork,
		ForkBlock:   forkBlock,
	}
	for idx, child := range ws.Roots {
		root.Indexes[string(idx)] = index.ChildToSummary(child)
	}

	rkey := kvstore.RootKey(next.Network, next.LedgerID, next.Block)
	if err := writeBlob(ctx, store, rkey, sd.SerializeRoot, root); err != nil {
		log.Error("commit: write db-root failed for", next.Network, next.LedgerID, "block", next.Block, ":", err)
		return "", apperr.Wrap(err, apperr.StorageError, "commit: write db-root")
	}
	return rkey, nil
}

func writeBlob[T any](ctx context.Context, store kvstore.Store, key string, encode func(T) ([]byte, error), body T) error {
	b, err := encode(body)
	if err != nil {
		return err
	}
	_, err = store.Write(ctx, key, b).Get(ctx)
	return err
}
