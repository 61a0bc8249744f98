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

// Package metrics is the storage-engine metrics registry: stats.flakes /
// stats.size gauges, resolver cache hit/miss gauges, and reindex
// duration, generalized from the teacher's gRPC server metrics
// (grpcprometheus.NewServerMetrics) to the storage/index/indexer
// components this module actually runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Registry = prometheus.NewRegistry()

	LedgerFlakes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "fluree_lite", Name: "ledger_flakes", Help: "stats.flakes for the ledger's latest DB snapshot."},
		[]string{"network", "ledger"},
	)
	LedgerBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "fluree_lite", Name: "ledger_bytes", Help: "stats.size for the ledger's latest DB snapshot."},
		[]string{"network", "ledger"},
	)
	LedgerIndexed = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "fluree_lite", Name: "ledger_indexed", Help: "stats.indexed -- t through which on-disk indexes absorbed novelty."},
		[]string{"network", "ledger"},
	)

	// Gauges, not counters: index.Resolver.Stats() already returns a
	// cumulative total, so each report is a Set of the current snapshot
	// rather than an Inc of a delta.
	ResolverCacheHits = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "fluree_lite", Name: "resolver_cache_hits", Help: "index.Resolver node-cache cumulative hits."},
		[]string{"network", "ledger"},
	)
	ResolverCacheMisses = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "fluree_lite", Name: "resolver_cache_misses", Help: "index.Resolver node-cache cumulative misses."},
		[]string{"network", "ledger"},
	)

	ReindexDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "fluree_lite", Name: "reindex_duration_seconds", Help: "Wall time of one indexer.Reindex call."},
		[]string{"network", "ledger"},
	)
	ReindexFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "fluree_lite", Name: "reindex_failures_total", Help: "indexer.Run reindex attempts that returned an error."},
		[]string{"network", "ledger"},
	)
)

func init() {
	Registry.MustRegister(
		LedgerFlakes, LedgerBytes, LedgerIndexed,
		ResolverCacheHits, ResolverCacheMisses,
		ReindexDuration, ReindexFailures,
	)
}
