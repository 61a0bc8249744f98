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

// Command fluree-lite is a minimal line-oriented driver over one
// in-process ledger: no RPC surface, no cluster bring-up, just flags into
// a session.Connection and a REPL that stages flakes and runs queries.
// Grounded on the teacher's cmd/cmd.go + single/server.go single-process
// bring-up, trimmed of every piece that exists only to start gRPC/HTTP
// servers and join a raft cluster.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cubefs/cubefs/blobstore/util/log"

	"github.com/cubefs/fluree-lite/config"
	"github.com/cubefs/fluree-lite/db"
	"github.com/cubefs/fluree-lite/flake"
	"github.com/cubefs/fluree-lite/index"
	"github.com/cubefs/fluree-lite/indexer"
	"github.com/cubefs/fluree-lite/metrics"
	"github.com/cubefs/fluree-lite/novelty"
	"github.com/cubefs/fluree-lite/query"
	qcontext "github.com/cubefs/fluree-lite/query/context"
	"github.com/cubefs/fluree-lite/session"
	"github.com/cubefs/fluree-lite/storage/kvstore"
	"github.com/cubefs/fluree-lite/storage/kvstore/memstore"
	"github.com/cubefs/fluree-lite/storage/kvstore/rocks"
	"github.com/cubefs/fluree-lite/storage/serde/jsonserde"
)

// Config is the optional JSON config file's shape, loaded via
// config.Load; every field also has a flag override, following the
// teacher's Config-struct-by-value pattern (cmd/cmd.go's Config, loaded
// then overlaid with derived fields in initConfig).
type Config struct {
	Network      string `json:"network"`
	LedgerID     string `json:"ledger_id"`
	Store        string `json:"store"` // "memstore" or "rocks"
	RocksPath    string `json:"rocks_path"`
	MemoryBudget int64  `json:"memory_budget"`
	ReindexMin   int64  `json:"reindex_min"`
	ReindexMax   int64  `json:"reindex_max"`
	LeafMin      int64  `json:"leaf_min"`
	LeafMax      int64  `json:"leaf_max"`
	Fanout       int    `json:"fanout"`
	MetricsAddr  string `json:"metrics_addr"`
}

func defaultConfig() Config {
	return Config{
		Network: "fluree-lite", LedgerID: "default", Store: "memstore",
		MemoryBudget: 64 << 20, ReindexMin: 1000, ReindexMax: 1 << 20,
		LeafMin: 4 << 10, LeafMax: 64 << 10, Fanout: 32,
	}
}

func main() {
	cfg := defaultConfig()

	configPath := flag.String("config", "", "path to a JSON config file, overlaid on defaults")
	network := flag.String("network", "", "ledger network (overrides config)")
	ledger := flag.String("ledger", "", "ledger id (overrides config)")
	store := flag.String("store", "", "memstore|rocks (overrides config)")
	rocksPath := flag.String("rocks-path", "", "rocksdb data directory, when -store=rocks")
	metricsAddr := flag.String("metrics-addr", "", "address to serve /metrics on, empty disables it")
	flag.Parse()

	if *configPath != "" {
		if err := config.Load(*configPath, &cfg); err != nil {
			log.Fatal("fluree-lite: loading config:", err)
		}
	}
	if *network != "" {
		cfg.Network = *network
	}
	if *ledger != "" {
		cfg.LedgerID = *ledger
	}
	if *store != "" {
		cfg.Store = *store
	}
	if *rocksPath != "" {
		cfg.RocksPath = *rocksPath
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	ctx := context.Background()
	backing, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal("fluree-lite: opening store:", err)
	}

	if cfg.MetricsAddr != "" {
		serveMetrics(cfg.MetricsAddr)
	}

	conn := session.Connect(session.Config{
		StorageFactory: func() kvstore.Store { return backing },
		Serde:          jsonserde.New(),
		DefaultNetwork: cfg.Network,
		MemoryBudget:   cfg.MemoryBudget,
		IsRef:          isRef,
		Policy: indexer.Policy{
			ReindexMin: cfg.ReindexMin, ReindexMax: cfg.ReindexMax,
			LeafMin: cfg.LeafMin, LeafMax: cfg.LeafMax, Fanout: cfg.Fanout,
			Interval: 30 * time.Second,
		},
	})
	defer conn.Close()

	conn.Adopt(genesis(cfg.Network, cfg.LedgerID))

	fmt.Fprintf(os.Stderr, "fluree-lite ready: network=%s ledger=%s store=%s\n", cfg.Network, cfg.LedgerID, cfg.Store)
	runREPL(ctx, conn, cfg.Network, cfg.LedgerID)
}

// isRef is the REPL's fixed datatype convention: dt 99 names a
// subject-reference object, every other dt is a scalar. A real deployment
// would resolve this from the schema's predicate vocabulary instead of a
// single magic constant; the REPL has no vocabulary-loading surface.
const refDt int32 = 99

func isRef(dt int32) bool { return dt == refDt }

func openStore(ctx context.Context, cfg Config) (kvstore.Store, error) {
	switch cfg.Store {
	case "", "memstore":
		return memstore.New(), nil
	case "rocks":
		return rocks.Open(ctx, cfg.RocksPath, rocks.NewDefaultOption())
	default:
		return nil, fmt.Errorf("fluree-lite: unknown store kind %q", cfg.Store)
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("fluree-lite: metrics server exited:", err)
		}
	}()
}

func genesis(network, ledgerID string) *db.DB {
	roots := make(map[flake.Index]*index.Node, len(flake.All()))
	for _, idx := range flake.All() {
		roots[idx] = index.Empty(idx, network, ledgerID)
	}
	return &db.DB{
		Network: network, LedgerID: ledgerID, Block: 0, T: 0,
		Ecount: map[int64]int64{}, Roots: roots, Novelty: novelty.NewOverlay(),
	}
}

// runREPL reads one JSON object per line: {"op": "stage", "flakes":
// [...]}, {"op": "query", ...the query's own top-level keys...}, or
// {"op": "sync", "block": N}.
func runREPL(ctx context.Context, conn *session.Connection, network, ledgerID string) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	enc := json.NewEncoder(os.Stdout)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var raw map[string]any
		if err := json.Unmarshal(line, &raw); err != nil {
			enc.Encode(map[string]any{"error": err.Error()})
			continue
		}

		op, _ := raw["op"].(string)
		switch op {
		case "stage":
			handleStage(ctx, conn, network, ledgerID, raw, enc)
		case "query":
			handleQuery(ctx, conn, network, ledgerID, raw, enc)
		case "sync":
			handleSync(ctx, conn, network, ledgerID, raw, enc)
		default:
			enc.Encode(map[string]any{"error": "unknown op " + op})
		}
	}
}

func handleStage(ctx context.Context, conn *session.Connection, network, ledgerID string, raw map[string]any, enc *json.Encoder) {
	raw2, err := json.Marshal(raw["flakes"])
	if err != nil {
		enc.Encode(map[string]any{"error": err.Error()})
		return
	}
	var flakes []flake.Flake
	if err := json.Unmarshal(raw2, &flakes); err != nil {
		enc.Encode(map[string]any{"error": err.Error()})
		return
	}
	next, err := conn.Stage(ctx, network, ledgerID, flakes)
	if err != nil {
		enc.Encode(map[string]any{"error": err.Error()})
		return
	}
	enc.Encode(map[string]any{"block": next.Block, "t": next.T, "stats": next.Stats})
}

func handleQuery(ctx context.Context, conn *session.Connection, network, ledgerID string, raw map[string]any, enc *json.Encoder) {
	cur := conn.Latest(network, ledgerID)
	if cur == nil {
		enc.Encode(map[string]any{"error": "unknown ledger"})
		return
	}
	qctx := qcontext.Empty()
	if rawCtx, ok := raw["context"].(map[string]any); ok {
		qctx = qcontext.Parse(rawCtx)
	}
	ast, err := query.Parse(raw, qctx, query.NewSchema(cur.Schema))
	if err != nil {
		enc.Encode(map[string]any{"error": err.Error()})
		return
	}
	out, err := query.Exec(ctx, conn.Resolver(), cur, ast, isRef)
	if err != nil {
		enc.Encode(map[string]any{"error": err.Error()})
		return
	}
	enc.Encode(out)
}

func handleSync(ctx context.Context, conn *session.Connection, network, ledgerID string, raw map[string]any, enc *json.Encoder) {
	target, _ := raw["block"].(float64)
	d, err := conn.SyncTo(ctx, network, ledgerID, int64(target), 10*time.Second)
	if err != nil {
		enc.Encode(map[string]any{"error": err.Error()})
		return
	}
	enc.Encode(map[string]any{"block": d.Block, "t": d.T})
}
