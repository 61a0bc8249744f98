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

// Package query implements §4.7: parsing a query map into an AST, index
// selection per the bound-position table, and the pattern/graph-crawl
// executor that drives range scans against a db.DB.
package query

import (
	"strings"

	"github.com/cubefs/fluree-lite/apperr"
	"github.com/cubefs/fluree-lite/query/context"
)

// Term is either a bound literal (Var == "") or an unbound variable
// (Var holds the "?name" text, Value is nil).
type Term struct {
	Var   string
	Value any
}

func (t Term) IsVar() bool { return t.Var != "" }

// Pattern is a `where` triple: `[s p o]`, each position a Term.
type Pattern struct {
	S, P, O Term
}

// SelectKind is the tagged-variant discriminant the REDESIGN FLAGS call
// for: a flat union of what a `select` entry can be, rather than one
// struct trying to represent all of them at once.
type SelectKind int

const (
	Wildcard SelectKind = iota
	Predicate
	Map
	Aggregate
	Variable
)

// SelectClause is one entry of the tagged-variant `SelectClause` union.
type SelectClause struct {
	Kind SelectKind

	// Variable: the bound variable this clause projects (Variable,
	// Wildcard — wildcard always projects the pattern's subject var).
	VariableName string

	// Predicate: a single predicate projected by id, optionally aliased.
	PredicateID int64
	Alias       string

	// Map: a graph-crawl selection rooted at VariableName.
	Crawl *Crawl

	// Aggregate: fn applied over VariableName's bound values per group.
	AggregateFn string
}

// Crawl is a `{var [selection]}` graph-crawl map (§4.7 "Selection").
type Crawl struct {
	Predicates []CrawlEdge
}

// CrawlEdge is one predicate the crawl follows out of (or, if Reverse,
// into) the current subject, with its own nested selection.
type CrawlEdge struct {
	PredicateID int64
	Reverse     bool
	Nested      []SelectClause
	IsList      bool // @container: @list — preserve element order via m
}

// FilterExpr is a predicate expression over an already-bound variable.
type FilterExpr struct {
	Variable string
	Op       string // "=", "!=", "<", "<=", ">", ">="
	Value    any
}

// OrderTerm is one `order-by` key.
type OrderTerm struct {
	Variable string
	Desc     bool
}

// AST is the parsed, context-resolved query of §4.7.
type AST struct {
	Select      []SelectClause
	SelectOne   bool
	Distinct    bool
	Reduced     bool
	From        Term
	Where       []Pattern
	Filter      []FilterExpr
	GroupBy     []string
	OrderBy     []OrderTerm
	Limit       int
	Offset      int
	Depth       int
	PrettyPrint bool
}

// Schema is the minimal vocabulary lookup Parse needs: a bare keyword in
// a query resolves to a predicate id via schema[:pred] (§4.7).
type Schema interface {
	PredicateID(name string) (int64, bool)
	PredicateRef(name string) bool
}

// Parse builds an AST from raw (a decoded query map per §6's recognized
// top-level keys), resolving IRIs/keywords through ctx and schema.
func Parse(raw map[string]any, ctx *context.Context, schema Schema) (*AST, error) {
	ast := &AST{Limit: -1, Offset: 0, Depth: 1}

	if v, ok := raw["selectOne"]; ok {
		ast.SelectOne = true
		ast.Limit = 1
		if err := parseSelect(v, ctx, schema, ast); err != nil {
			return nil, err
		}
	} else if v, ok := raw["selectDistinct"]; ok {
		ast.Distinct = true
		if err := parseSelect(v, ctx, schema, ast); err != nil {
			return nil, err
		}
	} else if v, ok := raw["selectReduced"]; ok {
		ast.Reduced = true
		if err := parseSelect(v, ctx, schema, ast); err != nil {
			return nil, err
		}
	} else if v, ok := raw["select"]; ok {
		if err := parseSelect(v, ctx, schema, ast); err != nil {
			return nil, err
		}
	} else {
		return nil, apperr.New(apperr.InvalidQuery, "query: missing select/selectOne/selectDistinct/selectReduced")
	}

	if v, ok := raw["from"]; ok {
		ast.From = Term{Value: v}
	}

	where, _ := raw["where"].([]any)
	for _, w := range where {
		triple, ok := w.([]any)
		if !ok || len(triple) != 3 {
			return nil, apperr.New(apperr.InvalidQuery, "query: where pattern must be [s p o]")
		}
		p, err := parsePattern(triple, ctx, schema)
		if err != nil {
			return nil, err
		}
		ast.Where = append(ast.Where, p)
	}

	if filters, ok := raw["filter"].([]any); ok {
		for _, fRaw := range filters {
			f, ok := fRaw.([]any)
			if !ok || len(f) != 3 {
				return nil, apperr.New(apperr.InvalidQuery, "query: filter must be [var op value]")
			}
			v, _ := f[0].(string)
			op, _ := f[1].(string)
			ast.Filter = append(ast.Filter, FilterExpr{Variable: v, Op: op, Value: f[2]})
		}
	}

	if gb, ok := raw["group-by"].([]any); ok {
		for _, v := range gb {
			if s, ok := v.(string); ok {
				ast.GroupBy = append(ast.GroupBy, s)
			}
		}
	}

	if ob, ok := raw["order-by"].([]any); ok {
		for _, v := range ob {
			switch t := v.(type) {
			case string:
				ast.OrderBy = append(ast.OrderBy, OrderTerm{Variable: t})
			case []any:
				if len(t) == 2 {
					v, _ := t[0].(string)
					dir, _ := t[1].(string)
					ast.OrderBy = append(ast.OrderBy, OrderTerm{Variable: v, Desc: dir == "desc"})
				}
			}
		}
	}

	if l, ok := numeric(raw["limit"]); ok {
		ast.Limit = int(l)
	}
	if o, ok := numeric(raw["offset"]); ok {
		ast.Offset = int(o)
	}
	if d, ok := numeric(raw["depth"]); ok {
		ast.Depth = int(d)
	}
	if pp, ok := raw["prettyPrint"].(bool); ok {
		ast.PrettyPrint = pp
	}

	return ast, nil
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func parsePattern(triple []any, ctx *context.Context, schema Schema) (Pattern, error) {
	s := parseTerm(triple[0])
	p := parseTerm(triple[1])
	o := parseTerm(triple[2])

	if !p.IsVar() {
		name, ok := p.Value.(string)
		if ok {
			id, found := schema.PredicateID(ctx.Expand(name))
			if !found {
				return Pattern{}, apperr.New(apperr.InvalidQuery, "query: unknown predicate "+name)
			}
			p.Value = id
		}
	}
	return Pattern{S: s, P: p, O: o}, nil
}

func parseTerm(v any) Term {
	if s, ok := v.(string); ok && len(s) > 0 && s[0] == '?' {
		return Term{Var: s}
	}
	return Term{Value: v}
}

func parseSelect(v any, ctx *context.Context, schema Schema, ast *AST) error {
	switch sel := v.(type) {
	case string:
		clause, err := parseSelectEntry(sel, ctx, schema)
		if err != nil {
			return err
		}
		ast.Select = append(ast.Select, clause)
	case []any:
		for _, entry := range sel {
			switch e := entry.(type) {
			case string:
				clause, err := parseSelectEntry(e, ctx, schema)
				if err != nil {
					return err
				}
				ast.Select = append(ast.Select, clause)
			case map[string]any:
				clause, err := parseCrawlEntry(e, ctx, schema)
				if err != nil {
					return err
				}
				ast.Select = append(ast.Select, clause)
			default:
				return apperr.New(apperr.InvalidQuery, "query: unrecognized select entry")
			}
		}
	case map[string]any:
		clause, err := parseCrawlEntry(sel, ctx, schema)
		if err != nil {
			return err
		}
		ast.Select = append(ast.Select, clause)
	default:
		return apperr.New(apperr.InvalidQuery, "query: select must be a string, map, or list of either")
	}
	return nil
}

func parseSelectEntry(s string, ctx *context.Context, schema Schema) (SelectClause, error) {
	if s == "*" {
		return SelectClause{Kind: Wildcard}, nil
	}
	if len(s) > 0 && s[0] == '(' {
		return parseAggregateEntry(s)
	}
	if len(s) > 0 && s[0] == '?' {
		return SelectClause{Kind: Variable, VariableName: s}, nil
	}
	id, ok := schema.PredicateID(ctx.Expand(s))
	if !ok {
		return SelectClause{}, apperr.New(apperr.InvalidQuery, "query: unknown select predicate "+s)
	}
	return SelectClause{Kind: Predicate, PredicateID: id, Alias: s}, nil
}

// parseAggregateEntry handles the "(fn ?var)" and "(as (fn ?var) ?alias)"
// forms — a small fixed grammar rather than a general s-expression
// parser, sufficient for the handful of aggregate functions §4.7 names.
func parseAggregateEntry(s string) (SelectClause, error) {
	alias := ""
	body := s
	if strings.HasPrefix(s, "(as ") {
		inner := strings.TrimSuffix(strings.TrimPrefix(s, "(as "), ")")
		open := strings.Index(inner, "(")
		close := strings.LastIndex(inner, ")")
		if open < 0 || close < 0 || close < open {
			return SelectClause{}, apperr.New(apperr.InvalidQuery, "query: malformed (as ...) select entry")
		}
		body = inner[open : close+1]
		alias = strings.TrimSpace(inner[close+1:])
	}
	body = strings.TrimSuffix(strings.TrimPrefix(body, "("), ")")
	fields := strings.Fields(body)
	if len(fields) != 2 {
		return SelectClause{}, apperr.New(apperr.InvalidQuery, "query: aggregate select entry must be (fn ?var)")
	}
	fn, variable := fields[0], fields[1]
	if alias == "" {
		alias = fn + "(" + variable + ")"
	}
	return SelectClause{Kind: Aggregate, AggregateFn: fn, VariableName: variable, Alias: alias}, nil
}

func parseCrawlEntry(m map[string]any, ctx *context.Context, schema Schema) (SelectClause, error) {
	for varName, rawEdges := range m {
		edges, ok := rawEdges.([]any)
		if !ok {
			return SelectClause{}, apperr.New(apperr.InvalidQuery, "query: graph-crawl selection must list predicates")
		}
		crawl := &Crawl{}
		for _, e := range edges {
			name, ok := e.(string)
			if !ok {
				continue
			}
			reverse := ctx.IsReverse(name)
			expanded := ctx.Expand(name)
			id, found := schema.PredicateID(expanded)
			if !found {
				return SelectClause{}, apperr.New(apperr.InvalidQuery, "query: unknown crawl predicate "+name)
			}
			crawl.Predicates = append(crawl.Predicates, CrawlEdge{PredicateID: id, Reverse: reverse, IsList: ctx.IsList(name)})
		}
		return SelectClause{Kind: Map, VariableName: varName, Crawl: crawl}, nil
	}
	return SelectClause{}, apperr.New(apperr.InvalidQuery, "query: empty graph-crawl selection")
}
