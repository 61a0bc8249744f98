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

	"github.com/cubefs/fluree-lite/apperr"
	"github.com/cubefs/fluree-lite/db"
	"github.com/cubefs/fluree-lite/flake"
	"github.com/cubefs/fluree-lite/index"
)

// subjectVar returns the variable name bound to the subject position of
// the first `where` pattern that binds one; the projector treats that as
// "the" subject a wildcard/predicate/map select clause crawls out from.
func subjectVar(ast *AST) string {
	for _, p := range ast.Where {
		if p.S.IsVar() {
			return p.S.Var
		}
	}
	return ""
}

func subjectOf(row Row, sv string) (int64, bool) {
	if sv != "" {
		if v, ok := row[sv]; ok {
			return asInt64(v)
		}
		return 0, false
	}
	if v, ok := row["__from"]; ok {
		return asInt64(v)
	}
	return 0, false
}

// project turns each pattern-pipeline row into one result map by running
// ast.Select over it. Grouped queries (group-by present) take a separate
// path since an aggregate clause there folds many rows into one.
func project(ctx context.Context, resolver *index.Resolver, d *db.DB, ast *AST, rows []Row, isRef flake.RefTypeChecker) ([]map[string]any, error) {
	if len(ast.GroupBy) > 0 {
		return projectGrouped(ctx, resolver, d, ast, rows, isRef)
	}
	sv := subjectVar(ast)
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		sid, has := subjectOf(row, sv)
		var subj *int64
		if has {
			subj = &sid
		}
		m, err := projectSelectClauses(ctx, resolver, d, ast.Select, subj, row, ast.Depth, isRef, map[int64]bool{})
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// projectSelectClauses evaluates clauses once, either against a bound
// row (Variable/Aggregate need the pipeline's bindings) or against a
// crawled subject id (Wildcard/Predicate/Map need a node to scan), or
// both when projecting a top-level pattern-pipeline row.
func projectSelectClauses(ctx context.Context, resolver *index.Resolver, d *db.DB, clauses []SelectClause, subj *int64, row Row, depth int, isRef flake.RefTypeChecker, seen map[int64]bool) (map[string]any, error) {
	out := map[string]any{}
	if subj != nil {
		// Variable and Aggregate clauses read only the row, so a row
		// projected from those alone carries no _id and equal tuples stay
		// equal for selectDistinct/selectReduced.
		for _, c := range clauses {
			if c.Kind != Variable && c.Kind != Aggregate {
				out["_id"] = *subj
				break
			}
		}
	}
	for _, c := range clauses {
		switch c.Kind {
		case Variable:
			if row != nil {
				out[c.VariableName] = row[c.VariableName]
			}
		case Wildcard:
			if subj == nil {
				continue
			}
			vals, err := scanSubjectPredicates(ctx, resolver, d, *subj, isRef)
			if err != nil {
				return nil, err
			}
			for k, v := range vals {
				out[k] = v
			}
		case Predicate:
			if subj == nil {
				continue
			}
			val, err := scanPredicateValue(ctx, resolver, d, *subj, c.PredicateID, isRef)
			if err != nil {
				return nil, err
			}
			if val != nil {
				out[c.Alias] = val
			}
		case Map:
			if subj == nil {
				continue
			}
			val, err := crawlNode(ctx, resolver, d, *subj, c.Crawl, depth, isRef, seen)
			if err != nil {
				return nil, err
			}
			out[c.VariableName] = val
		case Aggregate:
			if row != nil {
				out[c.Alias] = aggregate(c.AggregateFn, []any{row[c.VariableName]})
			}
		}
	}
	return out, nil
}

// crawlNode implements the graph-crawl selection of §4.7's "Selection":
// follow each edge out of (or, reversed, into) sid, descending into any
// nested selection up to depth, guarded against cycles by seen.
func crawlNode(ctx context.Context, resolver *index.Resolver, d *db.DB, sid int64, c *Crawl, depth int, isRef flake.RefTypeChecker, seen map[int64]bool) (map[string]any, error) {
	if depth <= 0 || seen[sid] {
		return map[string]any{"_id": sid}, nil
	}
	seen[sid] = true
	defer delete(seen, sid)

	out := map[string]any{"_id": sid}
	for _, edge := range c.Predicates {
		matches, err := scanEdge(ctx, resolver, d, sid, edge, isRef)
		if err != nil {
			return nil, err
		}
		matches, listy := sortByListIndex(matches)
		var vals []any
		for _, f := range matches {
			switch {
			case edge.Reverse:
				childID := f.S
				v, err := crawlEdgeValue(ctx, resolver, d, edge, childID, depth, isRef, seen)
				if err != nil {
					return nil, err
				}
				vals = append(vals, v)
			case isRef(f.Dt):
				childID := f.O.Ref
				v, err := crawlEdgeValue(ctx, resolver, d, edge, childID, depth, isRef, seen)
				if err != nil {
					return nil, err
				}
				vals = append(vals, v)
			default:
				vals = append(vals, objectValue(f, isRef))
			}
		}
		key := predicateIRI(d.Schema, edge.PredicateID)
		_, meta, _ := predicateByID(d.Schema, edge.PredicateID)
		if len(vals) == 1 && !edge.IsList && !listy && !meta.Multi {
			out[key] = vals[0]
		} else {
			out[key] = vals
		}
	}
	return out, nil
}

// sortByListIndex reorders flakes that carry a per-element list-index in
// metadata (§4.7: "@container: @list predicates preserve order via a
// per-element index stored in metadata"), leaving flakes with no index at
// all in their scan-order position. Reports whether any flake actually
// carried one, so callers can force array shape even for a single
// element.
func sortByListIndex(flakes []flake.Flake) ([]flake.Flake, bool) {
	hasIndex := false
	for _, f := range flakes {
		if _, ok := f.ListIndex(); ok {
			hasIndex = true
			break
		}
	}
	if !hasIndex {
		return flakes, false
	}
	out := make([]flake.Flake, len(flakes))
	copy(out, flakes)
	sort.SliceStable(out, func(i, j int) bool {
		ii, iok := out[i].ListIndex()
		jj, jok := out[j].ListIndex()
		if !iok {
			return false
		}
		if !jok {
			return true
		}
		return ii < jj
	})
	return out, true
}

func crawlEdgeValue(ctx context.Context, resolver *index.Resolver, d *db.DB, edge CrawlEdge, childID int64, depth int, isRef flake.RefTypeChecker, seen map[int64]bool) (any, error) {
	if len(edge.Nested) == 0 {
		return childID, nil
	}
	return projectSelectClauses(ctx, resolver, d, edge.Nested, &childID, nil, depth-1, isRef, seen)
}

func scanEdge(ctx context.Context, resolver *index.Resolver, d *db.DB, sid int64, edge CrawlEdge, isRef flake.RefTypeChecker) ([]flake.Flake, error) {
	idx := flake.SPOT
	if edge.Reverse {
		idx = flake.OPST
	}
	cur, err := index.RangeScan(ctx, resolver, d.Root(idx), d.Novelty.Set(idx), idx, flake.Flake{}, flake.Flake{}, false)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.StorageError, "query: crawl scan")
	}
	var out []flake.Flake
	for {
		f, ok, err := cur.Next(ctx)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.StorageError, "query: crawl scan")
		}
		if !ok {
			break
		}
		if !f.Op || f.P != edge.PredicateID {
			continue
		}
		if edge.Reverse && f.O.Ref != sid {
			continue
		}
		if !edge.Reverse && f.S != sid {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func scanAllForSubject(ctx context.Context, resolver *index.Resolver, d *db.DB, sid int64) ([]flake.Flake, error) {
	cur, err := index.RangeScan(ctx, resolver, d.Root(flake.SPOT), d.Novelty.Set(flake.SPOT), flake.SPOT, flake.Flake{}, flake.Flake{}, false)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.StorageError, "query: subject scan")
	}
	var out []flake.Flake
	for {
		f, ok, err := cur.Next(ctx)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.StorageError, "query: subject scan")
		}
		if !ok {
			break
		}
		if f.Op && f.S == sid {
			out = append(out, f)
		}
	}
	return out, nil
}

func scanSubjectPredicates(ctx context.Context, resolver *index.Resolver, d *db.DB, sid int64, isRef flake.RefTypeChecker) (map[string]any, error) {
	flakes, err := scanAllForSubject(ctx, resolver, d, sid)
	if err != nil {
		return nil, err
	}
	grouped := map[int64][]flake.Flake{}
	var order []int64
	for _, f := range flakes {
		if _, ok := grouped[f.P]; !ok {
			order = append(order, f.P)
		}
		grouped[f.P] = append(grouped[f.P], f)
	}
	out := map[string]any{"_id": sid}
	for _, pid := range order {
		key := predicateIRI(d.Schema, pid)
		out[key] = projectPredicateGroup(d.Schema, pid, grouped[pid], isRef)
	}
	return out, nil
}

func scanPredicateValue(ctx context.Context, resolver *index.Resolver, d *db.DB, sid, predID int64, isRef flake.RefTypeChecker) (any, error) {
	flakes, err := scanAllForSubject(ctx, resolver, d, sid)
	if err != nil {
		return nil, err
	}
	var group []flake.Flake
	for _, f := range flakes {
		if f.P == predID {
			group = append(group, f)
		}
	}
	if len(group) == 0 {
		return nil, nil
	}
	return projectPredicateGroup(d.Schema, predID, group, isRef), nil
}

// projectPredicateGroup renders one predicate's flakes as either a bare
// scalar or a []any, per §4.7: a multi-cardinality predicate (schema
// Multi, or any flake carrying a list-index) always renders as a
// sequence, regardless of how many values happen to be present; anything
// else collapses a single value to a scalar.
func projectPredicateGroup(s db.Schema, pid int64, group []flake.Flake, isRef flake.RefTypeChecker) any {
	group, listy := sortByListIndex(group)
	vals := make([]any, 0, len(group))
	for _, f := range group {
		vals = append(vals, objectValue(f, isRef))
	}
	_, meta, _ := predicateByID(s, pid)
	if len(vals) == 1 && !listy && !meta.Multi {
		return vals[0]
	}
	return vals
}

func predicateIRI(s db.Schema, id int64) string {
	iri, _, ok := predicateByID(s, id)
	if !ok {
		return fmt.Sprintf("%d", id)
	}
	return iri
}

func predicateByID(s db.Schema, id int64) (string, db.PredicateMeta, bool) {
	for iri, pm := range s.Predicates {
		if pm.ID == id {
			return iri, pm, true
		}
	}
	return "", db.PredicateMeta{}, false
}

// projectGrouped folds rows sharing a group-by key into one result: plain
// select clauses take the group's representative row, Aggregate clauses
// fold over every row in the group.
func projectGrouped(ctx context.Context, resolver *index.Resolver, d *db.DB, ast *AST, rows []Row, isRef flake.RefTypeChecker) ([]map[string]any, error) {
	groups := map[string][]Row{}
	var order []string
	for _, row := range rows {
		key := groupKey(row, ast.GroupBy)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], row)
	}

	sv := subjectVar(ast)
	out := make([]map[string]any, 0, len(order))
	for _, key := range order {
		grp := groups[key]
		rep := grp[0]
		m := map[string]any{}
		for _, c := range ast.Select {
			switch c.Kind {
			case Variable:
				m[c.VariableName] = rep[c.VariableName]
			case Aggregate:
				vals := make([]any, 0, len(grp))
				for _, r := range grp {
					vals = append(vals, r[c.VariableName])
				}
				m[c.Alias] = aggregate(c.AggregateFn, vals)
			case Wildcard, Predicate, Map:
				sid, has := subjectOf(rep, sv)
				if !has {
					continue
				}
				single, err := projectSelectClauses(ctx, resolver, d, []SelectClause{c}, &sid, rep, ast.Depth, isRef, map[int64]bool{})
				if err != nil {
					return nil, err
				}
				for k, v := range single {
					if k == "_id" {
						continue
					}
					m[k] = v
				}
			}
		}
		out = append(out, m)
	}
	return out, nil
}

func groupKey(row Row, groupBy []string) string {
	key := ""
	for _, g := range groupBy {
		key += fmt.Sprintf("|%v", row[g])
	}
	return key
}

func aggregate(fn string, vals []any) any {
	nums := make([]float64, 0, len(vals))
	for _, v := range vals {
		if f, ok := numeric(v); ok {
			nums = append(nums, f)
		}
	}
	switch fn {
	case "count":
		return len(vals)
	case "sum":
		var s float64
		for _, n := range nums {
			s += n
		}
		return s
	case "avg":
		if len(nums) == 0 {
			return 0.0
		}
		var s float64
		for _, n := range nums {
			s += n
		}
		return s / float64(len(nums))
	case "min":
		if len(nums) == 0 {
			return nil
		}
		m := nums[0]
		for _, n := range nums[1:] {
			if n < m {
				m = n
			}
		}
		return m
	case "max":
		if len(nums) == 0 {
			return nil
		}
		m := nums[0]
		for _, n := range nums[1:] {
			if n > m {
				m = n
			}
		}
		return m
	default:
		return nil
	}
}
