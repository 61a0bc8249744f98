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

// Package index is the persistent B+-tree-like index of §4.4: branches
// holding child summaries, leaves holding flake sets, both resolved on
// demand through a Resolver that fronts storage/kvstore + storage/serde
// with an LRU cache.
package index

import (
	"github.com/cubefs/fluree-lite/flake"
)

// EmptyID is the sentinel node id for an empty subtree (§3.3: "id: ...
// or :empty").
const EmptyID = ""

// Child is a branch's per-child summary — the same shape as Node minus its
// resolved body (§3.3).
type Child struct {
	ID       string
	First    *flake.Flake
	Rhs      *flake.Flake // exclusive right boundary; nil for rightmost
	Size     int64
	Leftmost bool
	IsLeaf   bool
}

// Node is either a branch (Children != nil) or a leaf (Flakes != nil) once
// resolved; an unresolved node has neither populated and must be passed
// through Resolver.Resolve before use (§3.3, §4.4).
type Node struct {
	ID         string
	First      *flake.Flake
	Rhs        *flake.Flake
	Size       int64
	Leftmost   bool
	Comparator flake.Index
	Network    string
	LedgerID   string
	Block      int64
	T          int64

	Children []Child        // populated once resolved, if a branch
	Flakes   []flake.Flake  // populated once resolved, if a leaf
	IsLeaf   bool
	resolved bool
}

func (n *Node) Resolved() bool { return n.resolved || n.ID == EmptyID }

func (n *Node) markResolved() { n.resolved = true }

// Empty builds the canonical empty leaf for idx — the root of a brand new
// index before any flake has ever been committed.
func Empty(idx flake.Index, network, ledger string) *Node {
	return &Node{
		ID: EmptyID, Comparator: idx, Network: network, LedgerID: ledger,
		Leftmost: true, IsLeaf: true, Flakes: nil, resolved: true,
	}
}
