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

// Package novelty is the in-memory overlay of §4.5: one ordered flake set
// per index, holding everything committed since stats.indexed. Ordering
// is delegated to github.com/google/btree, the same ordered-tree library
// the teacher reaches for when it needs a Less-ordered in-memory index
// (shardserver/catalog/shard.go's shardRange.Less over a *btree.BTree),
// generalized here from a single uint64 range key to the full flake
// comparator.
package novelty

import (
	"github.com/google/btree"

	"github.com/cubefs/fluree-lite/flake"
)

const btreeDegree = 32

// item adapts a flake.Flake into a btree.Item ordered by a single index.
type item struct {
	f   flake.Flake
	idx flake.Index
}

func (a item) Less(than btree.Item) bool {
	b := than.(item)
	return flake.Less(a.idx, a.f, b.f)
}

// Set is one index's novelty: every flake added since the index's on-disk
// tree last absorbed it, kept sorted for ordered-merge range scans.
type Set struct {
	idx  flake.Index
	tree *btree.BTree
}

func NewSet(idx flake.Index) *Set {
	return &Set{idx: idx, tree: btree.New(btreeDegree)}
}

func (s *Set) Add(f flake.Flake) {
	s.tree.ReplaceOrInsert(item{f: f, idx: s.idx})
}

func (s *Set) Len() int { return s.tree.Len() }

// Range yields flakes in [from, to) order; hasTo=false means "no upper
// bound", and to is then ignored.
func (s *Set) Range(from, to flake.Flake, hasTo bool, yield func(flake.Flake) bool) {
	fromItem := item{f: from, idx: s.idx}
	visit := func(i btree.Item) bool {
		f := i.(item).f
		if hasTo && !flake.Less(s.idx, f, to) {
			return false
		}
		return yield(f)
	}
	s.tree.AscendGreaterOrEqual(fromItem, visit)
}

// All yields every flake in index order; used by FilterGE to rebuild a
// narrowed Set.
func (s *Set) All(yield func(flake.Flake) bool) {
	s.tree.Ascend(func(i btree.Item) bool { return yield(i.(item).f) })
}

// Clone returns a new Set with the same contents — DB snapshots never
// mutate a shared novelty Set in place (§3.4: "DB values are immutable").
func (s *Set) Clone() *Set {
	return &Set{idx: s.idx, tree: s.tree.Clone()}
}

// FilterGE returns a new Set holding only flakes with t >= tStar, the
// in-memory half of db.AsOf's filtering (§4.6): t grows more negative
// per transaction, so this keeps everything up to and including tStar.
func (s *Set) FilterGE(tStar int64) *Set {
	out := NewSet(s.idx)
	s.All(func(f flake.Flake) bool {
		if f.T >= tStar {
			out.Add(f)
		}
		return true
	})
	return out
}

// Overlay holds all five index-specific novelty sets for one DB snapshot.
// The invariant of §4.5 — novelty[spot] == novelty[psot] == novelty[post]
// as sets, opst is the reference-valued subset, tspo mirrors spot under
// its own order — is maintained by Overlay.Add, the only mutator.
type Overlay struct {
	sets map[flake.Index]*Set
}

func NewOverlay() *Overlay {
	o := &Overlay{sets: make(map[flake.Index]*Set, len(flake.All()))}
	for _, idx := range flake.All() {
		o.sets[idx] = NewSet(idx)
	}
	return o
}

func (o *Overlay) Set(idx flake.Index) *Set { return o.sets[idx] }

// Add inserts f into spot, psot, post, tspo always, and opst only when
// isRef reports the flake's datatype is a subject reference (§3.2, §4.5).
func (o *Overlay) Add(f flake.Flake, isRef flake.RefTypeChecker) {
	o.sets[flake.SPOT].Add(f)
	o.sets[flake.PSOT].Add(f)
	o.sets[flake.POST].Add(f)
	o.sets[flake.TSPO].Add(f)
	if isRef(f.Dt) {
		o.sets[flake.OPST].Add(f)
	}
}

func (o *Overlay) Len() int { return o.sets[flake.SPOT].Len() }

// Clone deep-clones every index's set, giving the caller a novelty
// snapshot independent of subsequent Adds on the original (used by
// db.WithFlakes to produce a new immutable DB value).
func (o *Overlay) Clone() *Overlay {
	clone := &Overlay{sets: make(map[flake.Index]*Set, len(o.sets))}
	for idx, s := range o.sets {
		clone.sets[idx] = s.Clone()
	}
	return clone
}

// FilterGE applies Set.FilterGE across every index, used by db.AsOf to
// narrow a DB's novelty to the transactions visible at tStar.
func (o *Overlay) FilterGE(tStar int64) *Overlay {
	out := &Overlay{sets: make(map[flake.Index]*Set, len(o.sets))}
	for idx, s := range o.sets {
		out.sets[idx] = s.FilterGE(tStar)
	}
	return out
}

// Empty returns a fresh, empty Overlay — used by the indexer once it has
// folded a snapshot's novelty into on-disk nodes (§4.9 step 4).
func Empty() *Overlay { return NewOverlay() }
