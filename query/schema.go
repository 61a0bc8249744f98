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

import "github.com/cubefs/fluree-lite/db"

// dbSchema adapts db.Schema (keyed by predicate IRI) to the Schema
// interface Parse and Plan need.
type dbSchema struct {
	s db.Schema
}

// NewSchema wraps s for use with Parse.
func NewSchema(s db.Schema) Schema { return dbSchema{s: s} }

func (d dbSchema) PredicateID(name string) (int64, bool) {
	pm, ok := d.s.Predicates[name]
	if !ok {
		return 0, false
	}
	return pm.ID, true
}

func (d dbSchema) PredicateRef(name string) bool {
	return d.s.Predicates[name].Ref
}

// refByPredicateID builds the id-keyed lookup Plan needs — schema is kept
// IRI-keyed (§3.4) but a parsed Pattern only carries resolved ids.
func refByPredicateID(s db.Schema) map[int64]bool {
	out := make(map[int64]bool, len(s.Predicates))
	for _, pm := range s.Predicates {
		out[pm.ID] = pm.Ref
	}
	return out
}
