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

package kvstore

import (
	"fmt"

	"github.com/google/uuid"
)

// The core composes Store keys itself (§4.2); these helpers are the single
// place that schema lives so commit, indexer, and db.TimeTravel agree on
// key shape.

// RootKey is deterministic in (network, ledger, block) — two DB snapshots
// with identical content still collide on the same root key, which is the
// point: a reader addresses a root purely by coordinates (§4.8).
func RootKey(network, ledger string, block int64) string {
	return fmt.Sprintf("%s_%s_root_%015d", network, ledger, block)
}

// NodeKey carries a fresh UUID so that equal subtrees across ledgers never
// collide in a shared Store (§4.8).
func NodeKey(network, ledger string, idx string, leaf bool) string {
	kind := "b"
	if leaf {
		kind = "l"
	}
	return fmt.Sprintf("%s_%s_%s_%s-%s", network, ledger, idx, uuid.NewString(), kind)
}

// BlockKey is the raw transaction-flake blob for a commit, optionally
// versioned.
func BlockKey(network, ledger string, block int64, version int) string {
	if version == 0 {
		return fmt.Sprintf("%s_%s_block_%015d", network, ledger, block)
	}
	return fmt.Sprintf("%s_%s_block_%015d--v%d", network, ledger, block, version)
}

// GarbageKey names the garbage blob for a block.
func GarbageKey(network, ledger string, block int64) string {
	return fmt.Sprintf("%s_%s_garbage_%d", network, ledger, block)
}
