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

/*

# fluree-lite: an immutable, time-travelling semantic graph store

fluree-lite stores data as flakes -- single-statement (subject, predicate,
object, transaction, assertion/retraction) facts -- and never mutates one
in place. Every transaction layers new flakes into an in-memory novelty
overlay on top of five persistent, content-addressed index orderings
(SPOT, PSOT, POST, OPST, TSPO); a background indexer periodically folds
novelty into fresh on-disk leaves and branches and publishes a new
db-root. Because nothing is ever overwritten, any past block, transaction,
or instant remains queryable: time travel is just resolving the index
roots that were current at that coordinate instead of the latest ones.

# Packages

  - flake:    the atomic record and its five comparators
  - novelty:  the in-memory overlay ordered set, one per index
  - index:    the persistent tree, its resolver/cache, and range scans
  - db:       the immutable snapshot value and its algebra (WithFlakes,
    AsOf, TimeTravel)
  - commit:   the ordered write-then-publish sequence and garbage sweep
  - indexer:  the background reindex pass, its backpressure gate, and
    its metrics
  - session:  one Connection per process: latest-value promises,
    staged transactions, update listeners
  - query:    JSON-LD-shaped select/where/crawl query parsing, planning,
    and execution
  - storage:  the Store and Serde capabilities index/commit/indexer read
    and write through, plus their memstore/rocks and cbor/json
    implementations
  - apperr:   the module's error taxonomy
  - config:   JSON config file loading
  - metrics:  the Prometheus registry every other package reports to

cmd/fluree-lite is a line-oriented REPL driver over a single
session.Connection, for exercising the core without a transport layer.

*/
package fluree
