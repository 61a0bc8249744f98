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

package session

import (
	"context"
	"time"

	"github.com/cubefs/fluree-lite/apperr"
	"github.com/cubefs/fluree-lite/commit"
	"github.com/cubefs/fluree-lite/db"
	"github.com/cubefs/fluree-lite/flake"
	"github.com/cubefs/fluree-lite/index"
	"github.com/cubefs/fluree-lite/metrics"
)

// Stage applies flakes as one new transaction against (network,
// ledgerID)'s latest value and publishes the result (§4.8, §4.10). A
// flake left with T == 0 is stamped to cur.T-1, the next more-recent
// transaction counter; callers that already assign t (e.g. a signed
// transaction envelope) are left untouched.
//
// This module folds "commit" and "maybe reindex" into one synchronous
// call rather than running the indexer on its own background ticker: a
// transactor-mode Connection has exactly one writer per ledger already
// (§5's single-writer discipline), so there is nothing a separate
// goroutine would buy beyond the complexity of coordinating with it.
// indexer.Indexer.Run remains available for callers that do want an
// independent ticker-driven pass instead.
func (c *Connection) Stage(ctx context.Context, network, ledgerID string, flakes []flake.Flake) (*db.DB, error) {
	ls := c.ledgerStateFor(network, ledgerID)

	ls.mu.Lock()
	defer ls.mu.Unlock()

	cur := ls.latest
	if cur == nil {
		return nil, apperr.New(apperr.InvalidQuery, "session: stage against unknown ledger, call Adopt first")
	}

	if err := ls.indexer.Gate(ctx, cur); err != nil {
		return nil, apperr.Wrap(err, apperr.Unavailable, "session: backpressure wait")
	}

	nextT := cur.T - 1
	stamped := make([]flake.Flake, len(flakes))
	for i, f := range flakes {
		if f.T == 0 {
			f.T = nextT
		}
		stamped[i] = f
	}

	next := db.WithFlakes(cur, stamped, c.cfg.IsRef)
	next.Block = cur.Block + 1

	ws := commit.WriteSet{Roots: make(map[flake.Index]index.Child, len(flake.All()))}
	for _, idx := range flake.All() {
		ws.Roots[idx] = index.ChildOf(cur.Root(idx))
	}

	if _, err := commit.Publish(ctx, c.store, c.cfg.Serde, next, ws, time.Now().UnixNano(), cur.Block, "", 0); err != nil {
		return nil, err
	}

	if ls.indexer.ShouldReindex(next) {
		reindexed, rws, err := ls.indexer.Reindex(ctx, next)
		if err == nil {
			if _, perr := commit.Publish(ctx, c.store, c.cfg.Serde, reindexed, rws, time.Now().UnixNano(), next.Block, "", 0); perr == nil {
				next = reindexed
			}
		}
	}

	ls.latest = next
	metrics.LedgerFlakes.WithLabelValues(network, ledgerID).Set(float64(next.Stats.Flakes))
	metrics.LedgerBytes.WithLabelValues(network, ledgerID).Set(float64(next.Stats.Size))
	metrics.LedgerIndexed.WithLabelValues(network, ledgerID).Set(float64(next.Stats.Indexed))
	c.notify(Update{
		Event: "local-ledger-update", Network: network, LedgerID: ledgerID,
		Block: next.Block, T: next.T, Stats: next.Stats,
	})
	return next, nil
}

// SyncTo installs a one-shot wait for the ledger's latest block to reach
// at least target, per §4.10, rejecting with a timeout error if it
// doesn't arrive in time.
func (c *Connection) SyncTo(ctx context.Context, network, ledgerID string, target int64, timeout time.Duration) (*db.DB, error) {
	if d := c.Latest(network, ledgerID); d != nil && d.Block >= target {
		return d, nil
	}

	ch, unlisten := c.Listen(network, ledgerID, "sync-to", 1)
	defer unlisten()

	deadline := time.After(timeout)
	for {
		select {
		case <-ctx.Done():
			return nil, apperr.Wrap(ctx.Err(), apperr.Timeout, "session: sync-to cancelled")
		case <-deadline:
			return nil, apperr.New(apperr.Timeout, "session: sync-to deadline exceeded")
		case u := <-ch:
			if u.Block >= target {
				return c.Latest(network, ledgerID), nil
			}
		}
	}
}
