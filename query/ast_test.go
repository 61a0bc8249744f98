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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cubefs/fluree-lite/db"
	"github.com/cubefs/fluree-lite/query/context"
)

func testSchema() Schema {
	return NewSchema(db.Schema{
		Predicates: map[string]db.PredicateMeta{
			"name":  {ID: 10, Ref: false},
			"knows": {ID: 20, Ref: true},
		},
	})
}

func TestParseSelectWildcardAndWhere(t *testing.T) {
	raw := map[string]any{
		"select": "*",
		"where":  []any{[]any{"?s", "name", "Alice"}},
	}
	ast, err := Parse(raw, context.Empty(), testSchema())
	require.NoError(t, err)
	require.Len(t, ast.Select, 1)
	require.Equal(t, Wildcard, ast.Select[0].Kind)
	require.Len(t, ast.Where, 1)
	require.Equal(t, "?s", ast.Where[0].S.Var)
	require.EqualValues(t, 10, ast.Where[0].P.Value)
	require.Equal(t, "Alice", ast.Where[0].O.Value)
}

func TestParseSelectOneSetsLimitAndFlag(t *testing.T) {
	raw := map[string]any{
		"selectOne": []any{"?name"},
		"where":     []any{[]any{"?s", "name", "?name"}},
	}
	ast, err := Parse(raw, context.Empty(), testSchema())
	require.NoError(t, err)
	require.True(t, ast.SelectOne)
	require.Equal(t, 1, ast.Limit)
}

func TestParseSelectRejectsUnknownPredicate(t *testing.T) {
	raw := map[string]any{
		"select": []any{"?x"},
		"where":  []any{[]any{"?s", "nonexistent", "?x"}},
	}
	_, err := Parse(raw, context.Empty(), testSchema())
	require.Error(t, err)
}

func TestParseAggregateSelectEntry(t *testing.T) {
	raw := map[string]any{
		"select": []any{"(as (count ?x) ?total)"},
		"where":  []any{[]any{"?s", "name", "?x"}},
	}
	ast, err := Parse(raw, context.Empty(), testSchema())
	require.NoError(t, err)
	require.Len(t, ast.Select, 1)
	require.Equal(t, Aggregate, ast.Select[0].Kind)
	require.Equal(t, "count", ast.Select[0].AggregateFn)
	require.Equal(t, "?x", ast.Select[0].VariableName)
	require.Equal(t, "?total", ast.Select[0].Alias)
}

func TestParseGraphCrawlSelection(t *testing.T) {
	raw := map[string]any{
		"select": []any{"?s", map[string]any{"?s": []any{"knows"}}},
		"where":  []any{[]any{"?s", "name", "Alice"}},
	}
	ast, err := Parse(raw, context.Empty(), testSchema())
	require.NoError(t, err)
	require.Len(t, ast.Select, 2)
	require.Equal(t, Map, ast.Select[1].Kind)
	require.Equal(t, "?s", ast.Select[1].VariableName)
	require.Len(t, ast.Select[1].Crawl.Predicates, 1)
	require.EqualValues(t, 20, ast.Select[1].Crawl.Predicates[0].PredicateID)
	require.False(t, ast.Select[1].Crawl.Predicates[0].Reverse)
}

func TestParseReverseContextEdge(t *testing.T) {
	ctx := context.Parse(map[string]any{
		"knownBy": map[string]any{"@id": "knows", "@reverse": true},
	})
	raw := map[string]any{
		"select": []any{map[string]any{"?s": []any{"knownBy"}}},
		"where":  []any{[]any{"?s", "name", "Alice"}},
	}
	ast, err := Parse(raw, ctx, testSchema())
	require.NoError(t, err)
	require.True(t, ast.Select[0].Crawl.Predicates[0].Reverse)
}

func TestParseMissingSelectIsInvalid(t *testing.T) {
	_, err := Parse(map[string]any{"where": []any{}}, context.Empty(), testSchema())
	require.Error(t, err)
}
