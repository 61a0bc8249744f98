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

const refDt int32 = 99

func execIsRef(dt int32) bool { return dt == refDt }

func execSchema() db.Schema {
	return db.Schema{
		Predicates: map[string]db.PredicateMeta{
			"name":  {ID: 10, Ref: false},
			"knows": {ID: 20, Ref: true},
		},
	}
}

func execRoots() map[flake.Index]*index.Node {
	roots := make(map[flake.Index]*index.Node, len(flake.All()))
	for _, idx := range flake.All() {
		roots[idx] = index.Empty(idx, "n", "l")
	}
	return roots
}

func execDB(t *testing.T) *db.DB {
	d := &db.DB{
		Network: "n", LedgerID: "l", Block: 0, T: -1,
		Roots: execRoots(), Novelty: novelty.NewOverlay(), Schema: execSchema(),
	}
	flakes := []flake.Flake{
		{S: 1, P: 10, O: flake.Object{Str: "Alice"}, Dt: 1, T: -1, Op: true},
		{S: 1, P: 20, O: flake.Object{Ref: 2}, Dt: refDt, T: -1, Op: true},
		{S: 2, P: 10, O: flake.Object{Str: "Bob"}, Dt: 1, T: -1, Op: true},
	}
	for _, f := range flakes {
		d.Novelty.Add(f, execIsRef)
	}
	_ = t
	return d
}

func TestExecBindsPredicateAloneViaPSOT(t *testing.T) {
	ctx := context.Background()
	d := execDB(t)
	resolver := index.NewResolver(nil, nil, 1<<20)

	raw := map[string]any{
		"select": []any{"?o"},
		"where":  []any{[]any{"?s", "knows", "?o"}},
	}
	ast, err := Parse(raw, qcontext.Empty(), NewSchema(d.Schema))
	require.NoError(t, err)

	out, err := Exec(ctx, resolver, d, ast, execIsRef)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.EqualValues(t, 2, out[0]["?o"])
}

func TestExecWildcardProjectsAllPredicatesOfBoundSubject(t *testing.T) {
	ctx := context.Background()
	d := execDB(t)
	resolver := index.NewResolver(nil, nil, 1<<20)

	raw := map[string]any{
		"select": "*",
		"where":  []any{[]any{"?s", "name", "Alice"}},
	}
	ast, err := Parse(raw, qcontext.Empty(), NewSchema(d.Schema))
	require.NoError(t, err)

	out, err := Exec(ctx, resolver, d, ast, execIsRef)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.EqualValues(t, 1, out[0]["_id"])
	require.Equal(t, "Alice", out[0]["name"])
	require.EqualValues(t, 2, out[0]["knows"])
}

func TestExecGraphCrawlFollowsRefPredicate(t *testing.T) {
	ctx := context.Background()
	d := execDB(t)
	resolver := index.NewResolver(nil, nil, 1<<20)

	raw := map[string]any{
		"select": []any{map[string]any{"?s": []any{"knows"}}},
		"where":  []any{[]any{"?s", "name", "Alice"}},
	}
	ast, err := Parse(raw, qcontext.Empty(), NewSchema(d.Schema))
	require.NoError(t, err)

	out, err := Exec(ctx, resolver, d, ast, execIsRef)
	require.NoError(t, err)
	require.Len(t, out, 1)
	crawled := out[0]["?s"].(map[string]any)
	require.EqualValues(t, 2, crawled["knows"])
}

func TestExecFilterNarrowsBindings(t *testing.T) {
	ctx := context.Background()
	d := execDB(t)
	resolver := index.NewResolver(nil, nil, 1<<20)

	raw := map[string]any{
		"select": []any{"?s", "?name"},
		"where":  []any{[]any{"?s", "name", "?name"}},
		"filter": []any{[]any{"?s", "=", float64(2)}},
	}
	ast, err := Parse(raw, qcontext.Empty(), NewSchema(d.Schema))
	require.NoError(t, err)

	out, err := Exec(ctx, resolver, d, ast, execIsRef)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "Bob", out[0]["?name"])
}

func TestExecSelectOneReturnsAtMostOneRow(t *testing.T) {
	ctx := context.Background()
	d := execDB(t)
	resolver := index.NewResolver(nil, nil, 1<<20)

	raw := map[string]any{
		"selectOne": []any{"?name"},
		"where":     []any{[]any{"?s", "name", "?name"}},
	}
	ast, err := Parse(raw, qcontext.Empty(), NewSchema(d.Schema))
	require.NoError(t, err)

	out, err := Exec(ctx, resolver, d, ast, execIsRef)
	require.NoError(t, err)
	require.Len(t, out, 1)
}

// SPEC_FULL.md Open Question 1: selectReduced applies a best-effort dedup
// rather than being a no-op.
func TestExecSelectReducedDedupesRows(t *testing.T) {
	ctx := context.Background()
	d := execDB(t)
	// a second subject sharing Alice's name produces a duplicate ?name row
	// through the same where pattern.
	d.Novelty.Add(flake.Flake{S: 3, P: 10, O: flake.Object{Str: "Alice"}, Dt: 1, T: -1, Op: true}, execIsRef)
	resolver := index.NewResolver(nil, nil, 1<<20)

	raw := map[string]any{
		"selectReduced": []any{"?name"},
		"where":         []any{[]any{"?s", "name", "?name"}},
	}
	ast, err := Parse(raw, qcontext.Empty(), NewSchema(d.Schema))
	require.NoError(t, err)
	require.True(t, ast.Reduced)

	out, err := Exec(ctx, resolver, d, ast, execIsRef)
	require.NoError(t, err)

	seen := map[string]int{}
	for _, row := range out {
		seen[row["?name"].(string)]++
	}
	require.LessOrEqual(t, seen["Alice"], 1)
}

func TestExecGroupByAggregatesCount(t *testing.T) {
	ctx := context.Background()
	d := execDB(t)
	resolver := index.NewResolver(nil, nil, 1<<20)

	raw := map[string]any{
		"select":   []any{"(as (count ?s) ?n)"},
		"where":    []any{[]any{"?s", "name", "?name"}},
		"group-by": []any{"?name"},
	}
	ast, err := Parse(raw, qcontext.Empty(), NewSchema(d.Schema))
	require.NoError(t, err)

	out, err := Exec(ctx, resolver, d, ast, execIsRef)
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, row := range out {
		require.EqualValues(t, 1, row["?n"])
	}
}
