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
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cubefs/fluree-lite/apperr"
	"github.com/cubefs/fluree-lite/flake"
	"github.com/cubefs/fluree-lite/index"
)

// Addr names a time-travel target: exactly one of Block, Instant or T is
// set, per §4.6's `block | t-integer | ISO-8601 instant`.
type Addr struct {
	Block   int64
	Instant time.Time
	T       *int64
}

// TimeTravel resolves addr against d (via resolver, to walk the tspo
// index for metadata lookups) and returns the DB value at that point
// (§4.6). The t case short-circuits to AsOf; block and ISO-8601 both
// search transaction-metadata flakes in tspo for the t to land on.
func TimeTravel(ctx context.Context, resolver *index.Resolver, d *DB, addr Addr) (*DB, error) {
	switch {
	case addr.T != nil:
		if *addr.T >= 0 {
			return nil, apperr.New(apperr.InvalidQuery, "time-travel: t must be strictly negative")
		}
		return AsOf(d, *addr.T), nil
	case !addr.Instant.IsZero():
		t, err := tAtInstant(ctx, resolver, d, addr.Instant)
		if err != nil {
			return nil, err
		}
		return AsOf(d, t), nil
	case addr.Block != 0:
		t, err := tAtBlock(ctx, resolver, d, addr.Block)
		if err != nil {
			return nil, err
		}
		return AsOf(d, t), nil
	default:
		return nil, apperr.New(apperr.InvalidQuery, "time-travel: no address given")
	}
}

type txMetaEntry struct {
	t     int64
	value flake.Flake
}

// scanTxMeta walks the full tspo index (on-disk roots plus novelty) and
// collects every transaction-metadata flake whose predicate is pred.
func scanTxMeta(ctx context.Context, resolver *index.Resolver, d *DB, pred int64) ([]txMetaEntry, error) {
	root := d.Root(flake.TSPO)
	nov := d.Novelty.Set(flake.TSPO)

	cur, err := index.RangeScan(ctx, resolver, root, nov, flake.TSPO, flake.Flake{}, flake.Flake{}, false)
	if err != nil {
		return nil, err
	}

	var out []txMetaEntry
	for {
		f, ok, err := cur.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if f.IsTxMeta() && f.P == pred {
			out = append(out, txMetaEntry{t: f.T, value: f})
		}
	}
	return out, nil
}

// tAtInstant binary-searches transaction-metadata flakes recording commit
// time for the most recent commit whose instant is <= target, i.e. the
// one nearest to target from below in wall-clock time. Since t grows more
// negative as commits proceed, that is the smallest t among the commits
// at or before target.
func tAtInstant(ctx context.Context, resolver *index.Resolver, d *DB, target time.Time) (int64, error) {
	entries, err := scanTxMeta(ctx, resolver, d, flake.TxTimePredicate)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, apperr.New(apperr.Unavailable, "time-travel: no transaction metadata recorded")
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].value.O.Str < entries[j].value.O.Str
	})

	targetStr := target.UTC().Format(time.RFC3339Nano)
	lo, hi := 0, len(entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if entries[mid].value.O.Str <= targetStr {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return 0, apperr.New(apperr.InvalidQuery, fmt.Sprintf("time-travel: no commit at or before %s", targetStr))
	}
	return entries[lo-1].t, nil
}

// tAtBlock finds the t recorded against a specific block number.
func tAtBlock(ctx context.Context, resolver *index.Resolver, d *DB, block int64) (int64, error) {
	entries, err := scanTxMeta(ctx, resolver, d, flake.TxBlockPredicate)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.value.O.I64 == block {
			return e.t, nil
		}
	}
	return 0, apperr.New(apperr.Unavailable, fmt.Sprintf("time-travel: no commit recorded for block %d", block))
}
