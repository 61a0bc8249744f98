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

package index

import "github.com/cubefs/fluree-lite/flake"

// PointInTime folds a range of raw flakes (assertions and retractions, in
// canonical order) into the set visible at tStar: for each (s,p,o,dt)
// group, the most recent flake with t >= tStar (the smallest such t, as t
// grows more negative) wins; if its Op is false the group is absent (§4.4
// "Tombstone/retraction semantics").
func PointInTime(flakes []flake.Flake, tStar int64) []flake.Flake {
	winners := make(map[string]flake.Flake)
	order := make([]string, 0, len(flakes))

	absT := tStar
	if absT > 0 {
		absT = -absT
	}

	for _, f := range flakes {
		if f.T < absT {
			// more negative than tStar means the flake postdates it
			// (t decreases with each transaction); not yet visible.
			continue
		}
		gk := f.GroupKey()
		cur, ok := winners[gk]
		if !ok {
			winners[gk] = f
			order = append(order, gk)
			continue
		}
		// smaller t (more negative, i.e. the most recent transaction still
		// within the as-of window) wins; ties cannot occur per §3.1's
		// uniqueness invariant on (s,p,o,dt,t).
		if f.T < cur.T {
			winners[gk] = f
		}
	}

	out := make([]flake.Flake, 0, len(order))
	for _, gk := range order {
		f := winners[gk]
		if f.Op {
			out = append(out, f)
		}
	}
	return out
}
