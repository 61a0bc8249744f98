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

// Package flake defines the atomic assertion/retraction record that every
// index, novelty set, and query result in this module is built from.
package flake

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Object is the tagged union over a flake's value. Dt selects which field
// is meaningful; comparison across flakes never coerces between fields.
type Object struct {
	I64   int64           `json:"i,omitempty"`
	F64   float64         `json:"f,omitempty"`
	Dec   string          `json:"d,omitempty"`
	Str   string          `json:"s,omitempty"`
	Bool  bool            `json:"b,omitempty"`
	Bytes []byte          `json:"y,omitempty"`
	Ref   int64           `json:"r,omitempty"`
	JSON  json.RawMessage `json:"j,omitempty"`
}

// Reserved predicate ids on transaction-metadata subjects (s < 0). §4.6
// calls for an ISO-8601 binary search over tspo transaction-metadata
// flakes without naming a wire predicate for it; these two are that
// predicate space, one flake of each written per commit alongside the
// user assertions. TxTimeDt/TxBlockDt are the accompanying datatype ids.
const (
	TxTimePredicate  int64 = -1 // O.Str holds the commit instant, RFC3339Nano
	TxBlockPredicate int64 = -2 // O.I64 holds the commit's block number
	TxTimeDt         int32 = -1
	TxBlockDt        int32 = -2
)

// Flake is the atomic quintuple+metadata record of §3.1.
type Flake struct {
	S  int64          // subject id; positive = user subject, negative = tx metadata
	P  int64          // predicate id, non-negative
	O  Object         // object value
	Dt int32          // datatype id
	T  int64          // transaction counter, strictly negative
	Op bool           // true = assert, false = retract
	M  map[string]any // optional metadata
}

// ListIndexKey is the metadata key carrying a flake's position within an
// `@container: @list` predicate's declared order (§4.7: "@container:
// @list predicates preserve order via a per-element index stored in
// metadata").
const ListIndexKey = "i"

// ListIndex returns the flake's position within its list predicate's
// order, if M carries one.
func (f Flake) ListIndex() (int, bool) {
	v, ok := f.M[ListIndexKey]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Equal reports bitwise identity, required by the total-order contract of
// §4.1: equal flakes must compare equal under every comparator.
func (f Flake) Equal(other Flake) bool {
	if f.S != other.S || f.P != other.P || f.Dt != other.Dt || f.T != other.T || f.Op != other.Op {
		return false
	}
	if !equalObject(f.O, other.O) {
		return false
	}
	return canonicalMeta(f.M) == canonicalMeta(other.M)
}

func equalObject(a, b Object) bool {
	return a.I64 == b.I64 && a.F64 == b.F64 && a.Dec == b.Dec && a.Str == b.Str &&
		a.Bool == b.Bool && bytes.Equal(a.Bytes, b.Bytes) && a.Ref == b.Ref &&
		bytes.Equal(a.JSON, b.JSON)
}

// canonicalMeta serializes a metadata map deterministically: sorted keys,
// no whitespace. This is the tie-breaker named at the end of §4.1's cascade
// and the building block for content-addressed root blobs (§8, law:
// "Content addressing").
func canonicalMeta(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		ordered = append(ordered, k, m[k])
	}
	b, err := json.Marshal(ordered)
	if err != nil {
		// metadata values must be JSON-encodable; a non-encodable value is
		// a caller bug, not a runtime condition to recover from.
		panic(err)
	}
	return string(b)
}

// IsRetraction reports whether f retracts a prior assertion; per §3.1 a
// retraction at t implies an earlier assertion at some t' > t (closer to
// zero, since t grows more negative with each transaction).
func (f Flake) IsRetraction() bool { return !f.Op }

// IsTxMeta reports whether the flake records transaction metadata rather
// than a user assertion (§3.1: negative subject ids are reserved for tx
// metadata, consumed by time-travel's ISO-8601 search over tspo).
func (f Flake) IsTxMeta() bool { return f.S < 0 }

// GroupKey identifies the (s,p,o,dt) group a flake belongs to, exact and
// collision-free across object types — the key point-in-time folding
// (§4.4 "Tombstone/retraction semantics") and idempotent-commit checking
// (§8 "Idempotent commit") group on.
func (f Flake) GroupKey() string {
	b, err := json.Marshal([5]any{f.S, f.P, f.Dt, objectIdentity(f.O)})
	if err != nil {
		panic(err)
	}
	return string(b)
}

func objectIdentity(o Object) [8]any {
	return [8]any{o.I64, o.F64, o.Dec, o.Str, o.Bool, o.Bytes, o.Ref, o.JSON}
}
