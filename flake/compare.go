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

package flake

import "bytes"

// Compare returns -1, 0, or 1 comparing a and b under idx's total order.
// Tie-breaking cascades through the field sequence of §3.2 and ends with
// Op (assert before retract) and the canonical serialization of M, per
// §4.1, to guarantee strictness even between two flakes that agree on
// every other field.
//
// t grows more negative with each transaction (§3.1, and the commit-
// sequence law of §8: block strictly increasing, t strictly decreasing),
// so "t desc" — §3.2's "more recent history precedes older" — sorts by
// plain ascending comparison of the raw t value: the most negative (most
// recent) flake first.
func Compare(idx Index, a, b Flake) int {
	var c int
	switch idx {
	case SPOT:
		c = compareSPOT(a, b)
	case PSOT:
		c = compareInt(a.P, b.P)
		if c == 0 {
			c = compareInt(a.S, b.S)
		}
		if c == 0 {
			c = compareObject(a, b)
		}
		if c == 0 {
			c = compareInt(a.T, b.T) // t desc
		}
	case POST:
		c = compareInt(a.P, b.P)
		if c == 0 {
			c = compareObject(a, b)
		}
		if c == 0 {
			c = compareInt(a.S, b.S)
		}
		if c == 0 {
			c = compareInt(a.T, b.T)
		}
	case OPST:
		c = compareObject(a, b)
		if c == 0 {
			c = compareInt(a.P, b.P)
		}
		if c == 0 {
			c = compareInt(a.S, b.S)
		}
		if c == 0 {
			c = compareInt(a.T, b.T)
		}
	case TSPO:
		c = compareInt(a.T, b.T) // t desc leads
		if c == 0 {
			c = compareInt(a.S, b.S)
		}
		if c == 0 {
			c = compareInt(a.P, b.P)
		}
		if c == 0 {
			c = compareObject(a, b)
		}
	default:
		panic("flake: unknown index " + string(idx))
	}
	if c != 0 {
		return c
	}
	return tieBreak(a, b)
}

func compareSPOT(a, b Flake) int {
	if c := compareInt(a.S, b.S); c != 0 {
		return c
	}
	if c := compareInt(a.P, b.P); c != 0 {
		return c
	}
	if c := compareObject(a, b); c != 0 {
		return c
	}
	return compareInt(a.T, b.T) // t desc
}

// compareObject orders object values (dt asc, value asc-in-type). Cross-
// datatype comparison uses dt only — never numeric coercion (§4.1).
func compareObject(a, b Flake) int {
	if c := compareInt32(a.Dt, b.Dt); c != 0 {
		return c
	}
	o1, o2 := a.O, b.O
	switch {
	case o1.Bytes != nil || o2.Bytes != nil:
		return bytes.Compare(o1.Bytes, o2.Bytes)
	case o1.JSON != nil || o2.JSON != nil:
		return bytes.Compare(o1.JSON, o2.JSON)
	case o1.Str != "" || o2.Str != "":
		return compareString(o1.Str, o2.Str)
	case o1.Dec != "" || o2.Dec != "":
		return compareString(o1.Dec, o2.Dec)
	case o1.Ref != 0 || o2.Ref != 0:
		return compareInt(o1.Ref, o2.Ref)
	case o1.F64 != 0 || o2.F64 != 0:
		return compareFloat(o1.F64, o2.F64)
	case o1.Bool != o2.Bool:
		if !o1.Bool && o2.Bool {
			return -1
		}
		return 1
	default:
		return compareInt(o1.I64, o2.I64)
	}
}

func tieBreak(a, b Flake) int {
	if a.Op != b.Op {
		if a.Op { // assert before retract
			return -1
		}
		return 1
	}
	ma, mb := canonicalMeta(a.M), canonicalMeta(b.M)
	return compareString(ma, mb)
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareInt32(a, b int32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Less reports whether a sorts strictly before b under idx, the predicate
// shape expected by ordered-set implementations (novelty, google/btree).
func Less(idx Index, a, b Flake) bool {
	return Compare(idx, a, b) < 0
}

// MatchesDtype reports whether a query-supplied [value, dt] pair matches f;
// a query that supplies only value matches any dt (§4.1).
func MatchesDtype(f Flake, wantDt int32, dtSpecified bool) bool {
	if !dtSpecified {
		return true
	}
	return f.Dt == wantDt
}
