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
	"math"

	"github.com/cubefs/fluree-lite/flake"
	"github.com/cubefs/fluree-lite/novelty"
)

// Cursor is the pull-style, restartable iterator of §4.4/§9 ("lazy
// sequences over possibly-remote I/O ... expressed as pull-style async
// iterators with restartability"). Its state (path + novelty position) is
// exactly the "cursor = current leaf + offset + novelty cursor" the
// REDESIGN FLAGS describe.
type Cursor struct {
	idx      flake.Index
	resolver *Resolver
	root     *Node
	to       flake.Flake
	hasTo    bool

	path      []*Node // branch chain from root to current leaf, root first
	childIdx  []int    // index into path[i].Children that led to path[i+1]
	leafPos   int      // position within the current leaf's Flakes

	noveltySet   *novelty.Set
	noveltyQueue []flake.Flake
	noveltyPos   int
}

// RangeScan implements §4.4's descent + sibling-walk + novelty-merge
// algorithm over [from, to). hasTo=false means "no upper bound" (to the
// rightmost flake of the index); a zero-value from means "no lower bound"
// (from the leftmost flake of the index).
func RangeScan(ctx context.Context, resolver *Resolver, root *Node, nov *novelty.Set, idx flake.Index, from, to flake.Flake, hasTo bool) (*Cursor, error) {
	if from.Equal(flake.Flake{}) {
		// The zero flake does not sort first: t is strictly negative and
		// tx-metadata subjects are negative, so it would skip them. This
		// flake sorts before every real flake under all five orders.
		from = flake.Flake{S: math.MinInt64, P: math.MinInt64, Dt: math.MinInt32, T: math.MinInt64, Op: true}
	}
	c := &Cursor{idx: idx, resolver: resolver, root: root, to: to, hasTo: hasTo, noveltySet: nov}

	if err := c.descendTo(ctx, from); err != nil {
		return nil, err
	}
	c.primeNovelty(from)
	return c, nil
}

// descendTo walks from root to the leaf that would contain from, per
// §4.4 step 1: "at each branch, select the leftmost child whose rhs is ≥
// from (or the rightmost child if all are less)".
func (c *Cursor) descendTo(ctx context.Context, from flake.Flake) error {
	c.path = c.path[:0]
	c.childIdx = c.childIdx[:0]

	n, err := c.resolver.Resolve(ctx, c.root)
	if err != nil {
		return err
	}
	c.path = append(c.path, n)

	for !n.IsLeaf {
		idx := selectChild(c.idx, n.Children, from)
		c.childIdx = append(c.childIdx, idx)
		child := NodeFromChild(n.Children[idx], c.idx, n.Network, n.LedgerID, n.Block, n.T)
		n, err = c.resolver.Resolve(ctx, child)
		if err != nil {
			return err
		}
		c.path = append(c.path, n)
	}

	c.leafPos = seekFlakes(c.idx, n.Flakes, from)
	return nil
}

func selectChild(idx flake.Index, children []Child, from flake.Flake) int {
	for i, ch := range children {
		if ch.Rhs == nil {
			return i // rightmost child
		}
		if !flake.Less(idx, *ch.Rhs, from) {
			return i
		}
	}
	return len(children) - 1
}

func seekFlakes(idx flake.Index, flakes []flake.Flake, from flake.Flake) int {
	lo, hi := 0, len(flakes)
	for lo < hi {
		mid := (lo + hi) / 2
		if flake.Less(idx, flakes[mid], from) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func (c *Cursor) primeNovelty(from flake.Flake) {
	c.noveltyQueue = c.noveltyQueue[:0]
	if c.noveltySet == nil {
		return
	}
	c.noveltySet.Range(from, c.to, c.hasTo, func(f flake.Flake) bool {
		c.noveltyQueue = append(c.noveltyQueue, f)
		return true
	})
	c.noveltyPos = 0
}

// Next yields the next flake in strict comparator order, merging the
// on-disk leaf stream with the novelty queue deterministically (§5:
// "flakes are emitted in strict comparator order, merging novelty and
// on-disk leaves deterministically").
func (c *Cursor) Next(ctx context.Context) (flake.Flake, bool, error) {
	for {
		diskFlake, diskOK, err := c.peekDisk(ctx)
		if err != nil {
			return flake.Flake{}, false, err
		}

		var novFlake flake.Flake
		novOK := c.noveltyPos < len(c.noveltyQueue)
		if novOK {
			novFlake = c.noveltyQueue[c.noveltyPos]
		}

		switch {
		case !diskOK && !novOK:
			return flake.Flake{}, false, nil
		case !diskOK:
			c.noveltyPos++
			return novFlake, true, nil
		case !novOK:
			c.leafPos++
			return diskFlake, true, nil
		default:
			cmp := flake.Compare(c.idx, diskFlake, novFlake)
			switch {
			case cmp < 0:
				c.leafPos++
				return diskFlake, true, nil
			case cmp > 0:
				c.noveltyPos++
				return novFlake, true, nil
			default:
				// identical flake present in both: on-disk wins, novelty
				// duplicate is skipped (no duplicates in the merged stream).
				c.leafPos++
				c.noveltyPos++
				return diskFlake, true, nil
			}
		}
	}
}

func (c *Cursor) peekDisk(ctx context.Context) (flake.Flake, bool, error) {
	leaf := c.path[len(c.path)-1]
	for c.leafPos >= len(leaf.Flakes) {
		advanced, err := c.advanceLeaf(ctx)
		if err != nil {
			return flake.Flake{}, false, err
		}
		if !advanced {
			return flake.Flake{}, false, nil
		}
		leaf = c.path[len(c.path)-1]
	}
	f := leaf.Flakes[c.leafPos]
	if c.hasTo && !flake.Less(c.idx, f, c.to) {
		return flake.Flake{}, false, nil
	}
	return f, true, nil
}

// advanceLeaf steps to the next leaf via the parent chain, per §4.4 step
// 3: "siblings are reachable without a separate link — the parent keeps
// children in order." A Resolve failure is a storage error, not an
// end-of-range signal, and must be surfaced unchanged to the caller (§7:
// "errors from Store are surfaced unchanged to the read they fail") —
// returning false for it would silently truncate the scan instead.
func (c *Cursor) advanceLeaf(ctx context.Context) (bool, error) {
	for level := len(c.path) - 2; level >= 0; level-- {
		parent := c.path[level]
		nextChild := c.childIdx[level] + 1
		if nextChild >= len(parent.Children) {
			continue
		}
		c.childIdx[level] = nextChild
		c.path = c.path[:level+1]
		c.childIdx = c.childIdx[:level+1]

		child := NodeFromChild(parent.Children[nextChild], c.idx, parent.Network, parent.LedgerID, parent.Block, parent.T)
		n, err := c.resolver.Resolve(ctx, child)
		if err != nil {
			return false, err
		}
		c.path = append(c.path, n)
		for !n.IsLeaf {
			c.childIdx = append(c.childIdx, 0)
			n2, err := c.resolver.Resolve(ctx, NodeFromChild(n.Children[0], c.idx, n.Network, n.LedgerID, n.Block, n.T))
			if err != nil {
				return false, err
			}
			c.path = append(c.path, n2)
			n = n2
		}
		c.leafPos = 0
		return true, nil
	}
	return false, nil
}
