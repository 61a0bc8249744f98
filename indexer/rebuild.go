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

package indexer

import (
	"context"

	"github.com/cubefs/fluree-lite/commit"
	"github.com/cubefs/fluree-lite/db"
	"github.com/cubefs/fluree-lite/flake"
	"github.com/cubefs/fluree-lite/index"
	"github.com/cubefs/fluree-lite/novelty"
	"github.com/cubefs/fluree-lite/storage/kvstore"
	"github.com/cubefs/fluree-lite/storage/serde"
)

// collectNodeIDs walks every node reachable from n, resolving as it goes,
// and returns every id visited — the superseded-node list a reindex pass
// appends to the garbage set (§4.9 step 5) once it has rebuilt the same
// index from scratch.
func collectNodeIDs(ctx context.Context, resolver *index.Resolver, n *index.Node) ([]string, error) {
	if n == nil || n.ID == index.EmptyID {
		return nil, nil
	}
	resolved, err := resolver.Resolve(ctx, n)
	if err != nil {
		return nil, err
	}
	ids := []string{resolved.ID}
	if resolved.IsLeaf {
		return ids, nil
	}
	for _, c := range resolved.Children {
		child := index.NodeFromChild(c, resolved.Comparator, resolved.Network, resolved.LedgerID, resolved.Block, resolved.T)
		sub, err := collectNodeIDs(ctx, resolver, child)
		if err != nil {
			return nil, err
		}
		ids = append(ids, sub...)
	}
	return ids, nil
}

// drainAll pulls every flake visible through root merged with nov, in
// comparator order, via the same Cursor the read path uses (§4.4) — the
// reindex pass sees exactly what a full range scan would.
func drainAll(ctx context.Context, resolver *index.Resolver, root *index.Node, nov *novelty.Set, idx flake.Index) ([]flake.Flake, error) {
	cur, err := index.RangeScan(ctx, resolver, root, nov, idx, flake.Flake{}, flake.Flake{}, false)
	if err != nil {
		return nil, err
	}
	var out []flake.Flake
	for {
		f, ok, err := cur.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, f)
	}
}

// splitLeaves partitions flakes (already in comparator order) into
// chunks whose approximate byte weight lies in [leafMin, leafMax] per
// §4.9 step 2. A trailing chunk under leafMin is folded into its
// predecessor rather than left on disk alone.
func splitLeaves(flakes []flake.Flake, leafMin, leafMax int64) [][]flake.Flake {
	if len(flakes) == 0 {
		return [][]flake.Flake{nil}
	}

	var leaves [][]flake.Flake
	var cur []flake.Flake
	var curSize int64
	for _, f := range flakes {
		sz := db.ApproxSize(f)
		if curSize > 0 && curSize+sz > leafMax {
			leaves = append(leaves, cur)
			cur = nil
			curSize = 0
		}
		cur = append(cur, f)
		curSize += sz
	}
	if len(cur) > 0 {
		leaves = append(leaves, cur)
	}

	if len(leaves) > 1 && leafSize(leaves[len(leaves)-1]) < leafMin {
		last := leaves[len(leaves)-1]
		prev := leaves[len(leaves)-2]
		leaves[len(leaves)-2] = append(prev, last...)
		leaves = leaves[:len(leaves)-1]
	}
	return leaves
}

func leafSize(flakes []flake.Flake) int64 {
	var size int64
	for _, f := range flakes {
		size += db.ApproxSize(f)
	}
	return size
}

// writeLeaves assigns a fresh key to each chunk and returns the encoded
// writes plus the Child summary a parent branch (or the root) will carry
// for it, boundary flakes included per §3.3.
func writeLeaves(network, ledger string, idx flake.Index, chunks [][]flake.Flake) ([]commit.LeafWrite, []index.Child) {
	writes := make([]commit.LeafWrite, len(chunks))
	children := make([]index.Child, len(chunks))
	for i, chunk := range chunks {
		key := kvstore.NodeKey(network, ledger, string(idx), true)
		writes[i] = commit.LeafWrite{Key: key, Body: serde.Leaf{Flakes: serde.ToRecords(chunk)}}

		child := index.Child{ID: key, Size: int64(len(chunk)), Leftmost: i == 0, IsLeaf: true}
		if len(chunk) > 0 {
			first := chunk[0]
			child.First = &first
		}
		children[i] = child
	}
	for i := 0; i < len(children)-1; i++ {
		if len(chunks[i+1]) > 0 {
			rhs := chunks[i+1][0]
			children[i].Rhs = &rhs
		}
	}
	return writes, children
}

// buildBranches groups children into branch levels of at most fanout
// entries each, bottom-up, until one Child remains — the root for this
// index (§4.9 step 3: "new branches bottom-up"). A single child needs no
// branch at all: the root is then that leaf itself.
func buildBranches(network, ledger string, idx flake.Index, children []index.Child, fanout int) ([]commit.BranchWrite, index.Child) {
	level := children
	var writes []commit.BranchWrite

	for len(level) > 1 {
		var next []index.Child
		for i := 0; i < len(level); i += fanout {
			end := i + fanout
			if end > len(level) {
				end = len(level)
			}
			group := level[i:end]

			key := kvstore.NodeKey(network, ledger, string(idx), false)
			body := serde.Branch{Children: make([]serde.ChildSummary, len(group))}
			var size int64
			for j, c := range group {
				body.Children[j] = index.ChildToSummary(c)
				size += c.Size
			}
			writes = append(writes, commit.BranchWrite{Key: key, Body: body})

			next = append(next, index.Child{
				ID: key, First: group[0].First, Rhs: group[len(group)-1].Rhs,
				Size: size, Leftmost: group[0].Leftmost, IsLeaf: false,
			})
		}
		level = next
	}
	return writes, level[0]
}
