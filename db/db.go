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

// Package db holds the immutable database-value snapshot (§3.4): five
// index roots, the novelty overlay, schema, and the algebra over it
// (WithFlakes, AsOf, TimeTravel).
package db

import (
	"github.com/cubefs/fluree-lite/flake"
	"github.com/cubefs/fluree-lite/index"
	"github.com/cubefs/fluree-lite/novelty"
)

// Stats mirrors §3.4's stats map: flake/byte counts plus the high-water
// mark of on-disk indexing.
type Stats struct {
	Flakes  int64
	Size    int64
	Indexed int64 // t at which on-disk indexes last included all novelty up to
}

// Schema is the vocabulary carried alongside the data: predicate-iri and
// collection-iri bindings the query planner and indexer consult (§3.4).
type Schema struct {
	Predicates  map[string]PredicateMeta
	Collections map[string]int64 // collection-iri -> id
}

// PredicateMeta is the per-predicate vocabulary entry named in §3.4.
type PredicateMeta struct {
	ID        int64
	Type      string
	Multi     bool
	Ref       bool
	Component bool
	Index     bool
	Unique    bool
}

// DB is the immutable snapshot of §3.4. Every algebra operation below
// returns a new value; none mutate the receiver.
type DB struct {
	Network  string
	LedgerID string
	Block    int64
	T        int64
	Ecount   map[int64]int64 // collection-id -> next-subject-id
	Stats    Stats

	Roots   map[flake.Index]*index.Node
	Novelty *novelty.Overlay

	Schema Schema

	// Settings, Permissions, Auth, Roles and Ctx are opaque per-read
	// context threaded through by callers (query execution, auth checks);
	// this package never interprets them.
	Settings    map[string]any
	Permissions map[string]any
	Auth        map[string]any
	Roles       map[string]any
	Ctx         map[string]any
}

// Root returns the resolved root node for idx.
func (d *DB) Root(idx flake.Index) *index.Node {
	return d.Roots[idx]
}

// clone makes a shallow copy of d; callers mutate only the fields they
// intend to change before returning the copy, preserving structural
// sharing with the original (§3.4 "every mutation returns a new value
// sharing structure").
func (d *DB) clone() *DB {
	out := *d
	return &out
}
