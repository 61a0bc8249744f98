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

package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cubefs/fluree-lite/db"
	"github.com/cubefs/fluree-lite/flake"
	"github.com/cubefs/fluree-lite/index"
	"github.com/cubefs/fluree-lite/novelty"
	qcontext "github.com/cubefs/fluree-lite/query/context"
)

func projectSchema() db.Schema {
	return db.Schema{
		Predicates: map[string]db.PredicateMeta{
			"name":    {ID: 10, Ref: false},
			"rdftype": {ID: 30, Ref: false, Multi: true},
			"list":    {ID: 40, Ref: false},
		},
	}
}

func projectDB(flakes []flake.Flake) *db.DB {
	roots := make(map[flake.Index]*index.Node, len(flake.All()))
	for _, idx := range flake.All() {
		roots[idx] = index.Empty(idx, "n", "l")
	}
	d := &db.DB{
		Network: "n", LedgerID: "l", Block: 0, T: -1,
		Roots: roots, Novelty: novelty.NewOverlay(), Schema: projectSchema(),
	}
	for _, f := range flakes {
		d.Novelty.Add(f, execIsRef)
	}
	return d
}

// §4.7: a Multi-flagged predicate must always project as a sequence, even
// when exactly one value is bound.
func TestWildcardMultiPredicateAlwaysProjectsAsSequence(t *testing.T) {
	ctx := context.Background()
	d := projectDB([]flake.Flake{
		{S: 1, P: 30, O: flake.Object{Str: "ex/User"}, Dt: 1, T: -1, Op: true},
	})
	resolver := index.NewResolver(nil, nil, 1<<20)

	raw := map[string]any{
		"select": "*",
		"where":  []any{[]any{"?s", "rdftype", "?t"}},
	}
	ast, err := Parse(raw, qcontext.Empty(), NewSchema(d.Schema))
	require.NoError(t, err)

	out, err := Exec(ctx, resolver, d, ast, execIsRef)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, []any{"ex/User"}, out[0]["rdftype"])
}

// A non-Multi predicate with a single value still collapses to a scalar.
func TestWildcardSingleValuedPredicateStaysScalar(t *testing.T) {
	ctx := context.Background()
	d := projectDB([]flake.Flake{
		{S: 1, P: 10, O: flake.Object{Str: "Alice"}, Dt: 1, T: -1, Op: true},
	})
	resolver := index.NewResolver(nil, nil, 1<<20)

	raw := map[string]any{
		"select": "*",
		"where":  []any{[]any{"?s", "name", "?n"}},
	}
	ast, err := Parse(raw, qcontext.Empty(), NewSchema(d.Schema))
	require.NoError(t, err)

	out, err := Exec(ctx, resolver, d, ast, execIsRef)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "Alice", out[0]["name"])
}

// §4.7: @container: @list predicates preserve their declared order via a
// per-element index in metadata, not index-scan (object-ascending) order.
func TestWildcardListPredicatePreservesMetadataOrder(t *testing.T) {
	ctx := context.Background()
	mk := func(o int64, i int) flake.Flake {
		return flake.Flake{S: 1, P: 40, O: flake.Object{I64: o}, Dt: 1, T: -1, Op: true,
			M: map[string]any{flake.ListIndexKey: i}}
	}
	d := projectDB([]flake.Flake{
		mk(42, 0), mk(2, 1), mk(88, 2), mk(1, 3),
	})
	resolver := index.NewResolver(nil, nil, 1<<20)

	raw := map[string]any{
		"select": "*",
		"where":  []any{[]any{"?s", "list", "?v"}},
	}
	ast, err := Parse(raw, qcontext.Empty(), NewSchema(d.Schema))
	require.NoError(t, err)

	out, err := Exec(ctx, resolver, d, ast, execIsRef)
	require.NoError(t, err)
	require.Len(t, out, 4) // one row per ?v binding, all for subject 1
	require.Equal(t, []any{int64(42), int64(2), int64(88), int64(1)}, out[0]["list"])
}

// A single-element list-indexed predicate still projects as a sequence,
// matching the Multi rule's "always a sequence" posture.
func TestWildcardSingleElementListStillProjectsAsSequence(t *testing.T) {
	ctx := context.Background()
	f := flake.Flake{S: 1, P: 40, O: flake.Object{I64: 7}, Dt: 1, T: -1, Op: true,
		M: map[string]any{flake.ListIndexKey: 0}}
	d := projectDB([]flake.Flake{f})
	resolver := index.NewResolver(nil, nil, 1<<20)

	raw := map[string]any{
		"select": "*",
		"where":  []any{[]any{"?s", "list", "?v"}},
	}
	ast, err := Parse(raw, qcontext.Empty(), NewSchema(d.Schema))
	require.NoError(t, err)

	out, err := Exec(ctx, resolver, d, ast, execIsRef)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, []any{int64(7)}, out[0]["list"])
}

// Crawl (map-select) projection applies the same Multi/list rules as
// wildcard projection.
func TestCrawlMultiPredicateAlwaysProjectsAsSequence(t *testing.T) {
	ctx := context.Background()
	d := projectDB([]flake.Flake{
		{S: 1, P: 10, O: flake.Object{Str: "Alice"}, Dt: 1, T: -1, Op: true},
		{S: 1, P: 30, O: flake.Object{Str: "ex/User"}, Dt: 1, T: -1, Op: true},
	})
	resolver := index.NewResolver(nil, nil, 1<<20)

	raw := map[string]any{
		"select": []any{map[string]any{"?s": []any{"rdftype"}}},
		"where":  []any{[]any{"?s", "name", "Alice"}},
	}
	ast, err := Parse(raw, qcontext.Empty(), NewSchema(d.Schema))
	require.NoError(t, err)

	out, err := Exec(ctx, resolver, d, ast, execIsRef)
	require.NoError(t, err)
	require.Len(t, out, 1)
	crawled := out[0]["?s"].(map[string]any)
	require.Equal(t, []any{"ex/User"}, crawled["rdftype"])
}
