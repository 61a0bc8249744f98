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

// Package session implements §4.10: one Connection per process, holding
// the latest DB value per ledger under a read-write lock, dispatching
// :local-ledger-update notifications to registered listeners, and gating
// writers against the ledger's indexer.
package session

import (
	"sync"
	"time"

	"github.com/cubefs/fluree-lite/db"
	"github.com/cubefs/fluree-lite/flake"
	"github.com/cubefs/fluree-lite/index"
	"github.com/cubefs/fluree-lite/indexer"
	"github.com/cubefs/fluree-lite/storage/kvstore"
	"github.com/cubefs/fluree-lite/storage/serde"
)

// Config carries §6's enumerated connection options plus two fields of its
// own: Policy (indexer thresholds) and IsRef (reference-datatype test).
type Config struct {
	Servers        []string
	Parallelism    int
	MemoryBudget   int64 // minimum 1 MiB, enforced by index.NewResolver
	Serde          serde.Serde
	DefaultNetwork string
	Transactor     bool
	StorageFactory func() kvstore.Store
	NSLookup       func(ledger string) (string, error)
	KeepAlive      time.Duration
	DID            string
	Context        map[string]any
	TxPrivateKey   string
	Policy         indexer.Policy
	IsRef          flake.RefTypeChecker
}

// Update is the `(event, data)` pair listeners receive on every
// :local-ledger-update.
type Update struct {
	Event    string
	Network  string
	LedgerID string
	Block    int64
	T        int64
	Stats    db.Stats
}

type ledgerKey struct{ network, ledgerID string }

type listenerKey struct {
	network, ledgerID, key string
}

// ledgerState holds one ledger's latest DB value under mu (a caller waits
// for a later one through SyncTo) plus the indexer scoped to it.
type ledgerState struct {
	mu      sync.RWMutex
	latest  *db.DB
	indexer *indexer.Indexer
}

// Connection is §4.10's session/connection: per-ledger latest DB state,
// the listener map, and the shared resolver/store/serde every ledger's
// indexer reads and writes through.
type Connection struct {
	cfg      Config
	store    kvstore.Store
	resolver *index.Resolver

	mu        sync.RWMutex
	ledgers   map[ledgerKey]*ledgerState
	listeners map[listenerKey][]chan Update
}

// Connect builds a Connection against cfg. Per §6, MemoryBudget below 1
// MiB is raised to the floor by index.NewResolver itself.
func Connect(cfg Config) *Connection {
	var store kvstore.Store
	if cfg.StorageFactory != nil {
		store = cfg.StorageFactory()
	}
	if cfg.IsRef == nil {
		cfg.IsRef = func(int32) bool { return false }
	}
	return &Connection{
		cfg:       cfg,
		store:     store,
		resolver:  index.NewResolver(store, cfg.Serde, cfg.MemoryBudget),
		ledgers:   make(map[ledgerKey]*ledgerState),
		listeners: make(map[listenerKey][]chan Update),
	}
}

// Adopt registers d as the latest value for its (Network, LedgerID),
// building a fresh indexer for it if this is the first time the ledger
// has been seen on this Connection — the bootstrap path for a ledger
// loaded via commit.Load or created fresh by a caller.
func (c *Connection) Adopt(d *db.DB) {
	ls := c.ledgerStateFor(d.Network, d.LedgerID)
	ls.mu.Lock()
	ls.latest = d
	ls.mu.Unlock()
}

func (c *Connection) ledgerStateFor(network, ledgerID string) *ledgerState {
	key := ledgerKey{network, ledgerID}
	c.mu.Lock()
	defer c.mu.Unlock()
	ls, ok := c.ledgers[key]
	if !ok {
		ls = &ledgerState{
			indexer: indexer.New(c.store, c.cfg.Serde, c.resolver, c.cfg.IsRef, c.cfg.Policy),
		}
		c.ledgers[key] = ls
	}
	return ls
}

// Resolver returns the node resolver shared by every ledger on this
// Connection, for callers (the query executor) that need to drive their
// own index.RangeScan against a DB value returned by Latest.
func (c *Connection) Resolver() *index.Resolver { return c.resolver }

// Latest returns the most recently adopted DB value for (network,
// ledgerID), or nil if the ledger is unknown to this Connection.
func (c *Connection) Latest(network, ledgerID string) *db.DB {
	c.mu.RLock()
	ls, ok := c.ledgers[ledgerKey{network, ledgerID}]
	c.mu.RUnlock()
	if !ok {
		return nil
	}
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return ls.latest
}

// Listen registers a (network, ledgerID, key) listener per §4.10. The
// returned func unregisters it; a full buffer drops notifications rather
// than blocking the committing writer (§5: single-writer discipline on
// connection state, lock-free snapshot reads).
func (c *Connection) Listen(network, ledgerID, key string, buffer int) (<-chan Update, func()) {
	lk := listenerKey{network, ledgerID, key}
	ch := make(chan Update, buffer)

	c.mu.Lock()
	c.listeners[lk] = append(c.listeners[lk], ch)
	c.mu.Unlock()

	return ch, func() { c.unlisten(lk, ch) }
}

func (c *Connection) unlisten(lk listenerKey, ch chan Update) {
	c.mu.Lock()
	defer c.mu.Unlock()
	chans := c.listeners[lk]
	for i, existing := range chans {
		if existing == ch {
			c.listeners[lk] = append(chans[:i], chans[i+1:]...)
			close(ch)
			break
		}
	}
	if len(c.listeners[lk]) == 0 {
		delete(c.listeners, lk)
	}
}

func (c *Connection) notify(u Update) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for lk, chans := range c.listeners {
		if lk.network != u.Network || lk.ledgerID != u.LedgerID {
			continue
		}
		for _, ch := range chans {
			select {
			case ch <- u:
			default:
			}
		}
	}
}

// Close releases every listener channel and indexer watcher scoped to
// this Connection (§5: "background services ... must release their cache
// references and channels on close").
func (c *Connection) Close() {
	c.mu.Lock()
	for lk, chans := range c.listeners {
		for _, ch := range chans {
			close(ch)
		}
		delete(c.listeners, lk)
	}
	ledgers := make([]*ledgerState, 0, len(c.ledgers))
	for _, ls := range c.ledgers {
		ledgers = append(ledgers, ls)
	}
	c.mu.Unlock()

	for _, ls := range ledgers {
		ls.indexer.Close()
	}
}
