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
	"github.com/cubefs/fluree-lite/flake"
	"github.com/cubefs/fluree-lite/storage/serde"
)

// ChildFromSummary is the exported counterpart to ChildToSummary, used by
// commit.Load to rebuild root Children from a decoded db-root blob.
func ChildFromSummary(c serde.ChildSummary) Child {
	return childFromSummary(c)
}

func childFromSummary(c serde.ChildSummary) Child {
	out := Child{ID: c.ID, Size: c.Size, Leftmost: c.Leftmost, IsLeaf: c.IsLeaf}
	if c.First != nil {
		f := serde.FromRecord(*c.First)
		out.First = &f
	}
	if c.Rhs != nil {
		f := serde.FromRecord(*c.Rhs)
		out.Rhs = &f
	}
	return out
}

func ChildToSummary(c Child) serde.ChildSummary {
	out := serde.ChildSummary{ID: c.ID, Size: c.Size, Leftmost: c.Leftmost, IsLeaf: c.IsLeaf}
	if c.First != nil {
		r := serde.ToRecord(*c.First)
		out.First = &r
	}
	if c.Rhs != nil {
		r := serde.ToRecord(*c.Rhs)
		out.Rhs = &r
	}
	return out
}

// ChildOf summarizes a resolved node as its parent will store it.
func ChildOf(n *Node) Child {
	return Child{
		ID: n.ID, First: n.First, Rhs: n.Rhs, Size: n.Size,
		Leftmost: n.Leftmost, IsLeaf: n.IsLeaf,
	}
}

// NodeFromChild builds an unresolved Node reference out of a parent's
// child summary, ready for Resolver.Resolve.
func NodeFromChild(c Child, idx flake.Index, network, ledger string, block, t int64) *Node {
	return &Node{
		ID: c.ID, First: c.First, Rhs: c.Rhs, Size: c.Size, Leftmost: c.Leftmost,
		Comparator: idx, Network: network, LedgerID: ledger, Block: block, T: t,
		IsLeaf: c.IsLeaf, resolved: c.ID == EmptyID,
	}
}
