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

package db

import (
	"github.com/cubefs/fluree-lite/flake"
	"github.com/cubefs/fluree-lite/index"
	"github.com/cubefs/fluree-lite/novelty"
)

// WithFlakes returns a new DB with flakes layered into novelty (§4.6):
// every index's overlay set gains the flakes that belong in it, opst
// gated by isRef exactly as novelty.Overlay.Add. The returned DB's stats
// and t advance to track the new content; Ecount is carried over
// unchanged, and Indexed is unchanged — these flakes are not yet folded
// into any on-disk tree.
func WithFlakes(d *DB, flakes []flake.Flake, isRef flake.RefTypeChecker) *DB {
	out := d.clone()
	out.Novelty = d.Novelty.Clone()

	var addedSize int64
	first := true
	for _, f := range flakes {
		out.Novelty.Add(f, isRef)
		addedSize += approxSize(f)
		// t decreases by one per transaction inside the commit (§3.4); the
		// caller's transaction is by invariant more recent than anything
		// already in d, so its t always supersedes out.T outright.
		if first || f.T < out.T {
			out.T = f.T
			first = false
		}
	}

	out.Stats.Flakes += int64(len(flakes))
	out.Stats.Size += addedSize
	return out
}

// approxSize is a coarse byte-weight estimate used for stats.size and
// rebalancing thresholds; exact serialized size is only known once the
// indexer actually writes a node (§3.3 "size: byte weight ... for
// rebalancing and cache accounting").
// ApproxSize exposes approxSize for the indexer, which needs the same
// coarse estimate while deciding where to split a leaf.
func ApproxSize(f flake.Flake) int64 { return approxSize(f) }

func approxSize(f flake.Flake) int64 {
	size := int64(8*3 + 4 + 1) // s, p, t as int64; dt int32; op bool
	switch {
	case f.O.Bytes != nil:
		size += int64(len(f.O.Bytes))
	case f.O.JSON != nil:
		size += int64(len(f.O.JSON))
	case f.O.Str != "":
		size += int64(len(f.O.Str))
	case f.O.Dec != "":
		size += int64(len(f.O.Dec))
	default:
		size += 8
	}
	return size
}

// AsOf returns a DB whose reads are filtered to flakes with t >= tStar
// (§4.6): t grows more negative with each transaction, so this keeps
// every transaction up to and including tStar and hides anything more
// recent. Composing two AsOf calls keeps the more restrictive (larger,
// closer-to-zero) cutoff — §8's law `as-of(as-of(d,t1),t2) ==
// as-of(d,min(t1,t2))`, where "min" names the earlier point in time, the
// one closer to zero under this module's t convention.
func AsOf(d *DB, tStar int64) *DB {
	out := d.clone()
	out.T = tStar
	if d.T > tStar {
		// d was already narrower than tStar asks for; the more
		// restrictive (closer-to-zero) bound wins.
		out.T = d.T
	}

	roots := make(map[flake.Index]*index.Node, len(d.Roots))
	for idx, n := range d.Roots {
		roots[idx] = n
	}
	out.Roots = roots
	out.Novelty = filterNovelty(d.Novelty, out.T)
	return out
}

// filterNovelty rebuilds an Overlay containing only flakes with t >= tStar.
// On-disk tree nodes are filtered lazily at scan time (index.RangeScan
// callers pass tStar through to index.PointInTime); novelty, being
// in-memory, is filtered eagerly here so AsOf is cheap to compose.
func filterNovelty(o *novelty.Overlay, tStar int64) *novelty.Overlay {
	return o.FilterGE(tStar)
}
