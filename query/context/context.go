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

// Package context implements the `@context`/`@reverse`/`@container:
// @list` resolution of §4.7: expanding a query's compact keywords into
// full IRIs, and recording which keywords name reverse predicates or
// list-valued (order-preserving) predicates.
package context

// Context holds one query's JSON-LD-style context: a compact-name to
// full-IRI table, plus the subset of names declared `@reverse` or
// `@container: @list`.
type Context struct {
	terms    map[string]string // compact name -> full IRI
	reverse  map[string]bool
	list     map[string]bool
}

// Parse builds a Context from a query's `context` value, a map whose
// entries are either `"name": "iri"` or `"name": {"@id": iri, "@reverse":
// bool, "@container": "@list"}`.
func Parse(raw map[string]any) *Context {
	c := &Context{terms: map[string]string{}, reverse: map[string]bool{}, list: map[string]bool{}}
	for name, v := range raw {
		switch val := v.(type) {
		case string:
			c.terms[name] = val
		case map[string]any:
			if id, ok := val["@id"].(string); ok {
				c.terms[name] = id
			}
			if rev, ok := val["@reverse"].(bool); ok && rev {
				c.reverse[name] = true
			}
			if container, ok := val["@container"].(string); ok && container == "@list" {
				c.list[name] = true
			}
		}
	}
	return c
}

// Empty returns a Context with no declared terms; Expand degrades to the
// identity function and IsReverse/IsList always report false.
func Empty() *Context { return &Context{terms: map[string]string{}, reverse: map[string]bool{}, list: map[string]bool{}} }

// Expand maps a compact name to its full IRI, or returns name unchanged
// if it has no context entry (already a full IRI, or a bare keyword the
// schema resolves directly).
func (c *Context) Expand(name string) string {
	if c == nil {
		return name
	}
	if iri, ok := c.terms[name]; ok {
		return iri
	}
	return name
}

// Compact is Expand's inverse, used when projecting bound values back
// out under their context-declared short names.
func (c *Context) Compact(iri string) string {
	if c == nil {
		return iri
	}
	for name, v := range c.terms {
		if v == iri {
			return name
		}
	}
	return iri
}

// IsReverse reports whether name was declared `@reverse` in this
// context — such a predicate's graph crawl traverses opst instead of
// spot (§4.7).
func (c *Context) IsReverse(name string) bool {
	if c == nil {
		return false
	}
	return c.reverse[name]
}

// IsList reports whether name was declared `@container: @list` — its
// crawled values carry a per-element order index in flake metadata
// rather than an unordered multi-cardinality set (§4.7).
func (c *Context) IsList(name string) bool {
	if c == nil {
		return false
	}
	return c.list[name]
}
