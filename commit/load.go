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

package commit

import (
	"context"

	"github.com/cubefs/fluree-lite/apperr"
	"github.com/cubefs/fluree-lite/db"
	"github.com/cubefs/fluree-lite/flake"
	"github.com/cubefs/fluree-lite/index"
	"github.com/cubefs/fluree-lite/novelty"
	"github.com/cubefs/fluree-lite/storage/kvstore"
	"github.com/cubefs/fluree-lite/storage/serde"
)

// Load reads the db-root blob for (network, ledger, block) and rebuilds
// the DB value it describes: five unresolved root nodes (materialized
// lazily through resolver on first touch) and an empty novelty overlay —
// everything the root names as indexed already lives in the trees it
// points at; nothing newer survives a restart in this module, matching
// §3.5's "DB snapshots live in memory" (novelty is not itself persisted).
func Load(ctx context.Context, store kvstore.Store, sd serde.Serde, network, ledger string, block int64) (*db.DB, error) {
	key := kvstore.RootKey(network, ledger, block)
	raw, err := store.Read(ctx, key).Get(ctx)
	if err != nil {
		if err == kvstore.ErrNotFound {
			return nil, apperr.New(apperr.Unavailable, "commit: no db-root for requested block")
		}
		return nil, apperr.Wrap(err, apperr.StorageError, "commit: read db-root")
	}

	root, err := sd.DeserializeRoot(raw)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.StorageError, "commit: decode db-root")
	}

	roots := make(map[flake.Index]*index.Node, len(flake.All()))
	for _, idx := range flake.All() {
		summary, ok := root.Indexes[string(idx)]
		if !ok {
			roots[idx] = index.Empty(idx, network, ledger)
			continue
		}
		child := index.ChildFromSummary(summary)
		roots[idx] = index.NodeFromChild(child, idx, network, ledger, root.Block, root.T)
	}

	return &db.DB{
		Network:  network,
		LedgerID: ledger,
		Block:    root.Block,
		T:        root.T,
		Ecount:   root.Ecount,
		Stats: db.Stats{
			Flakes:  root.StatsFlakes,
			Size:    root.StatsSize,
			Indexed: root.Indexed,
		},
		Roots:   roots,
		Novelty: novelty.NewOverlay(),
	}, nil
}
