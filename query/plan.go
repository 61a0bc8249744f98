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

import "github.com/cubefs/fluree-lite/flake"

// Plan picks an index for p per §4.7's bound-position table: `(s,p)` ⇒
// spot; `(o,p)` on a reference ⇒ opst; `(p)` alone ⇒ psot; default spot.
//
// The table leaves the p-alone case ("post or psot") open; this picks
// psot, reasoning that a pattern pipeline binds subjects before objects
// far more often in a subject-centric graph crawl, so the next pattern in
// the same pipeline is more likely to additionally bind s than o.
func Plan(p Pattern, refByPredID map[int64]bool) flake.Index {
	sBound := !p.S.IsVar()
	pBound := !p.P.IsVar()
	oBound := !p.O.IsVar()

	switch {
	case sBound && pBound:
		return flake.SPOT
	case oBound && pBound && isRefBound(p, refByPredID):
		return flake.OPST
	case pBound:
		return flake.PSOT
	default:
		return flake.SPOT
	}
}

func isRefBound(p Pattern, refByPredID map[int64]bool) bool {
	id, ok := p.P.Value.(int64)
	if !ok {
		return false
	}
	return refByPredID[id]
}
