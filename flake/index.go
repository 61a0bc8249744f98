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

// Index names one of the five canonical total orders of §3.2.
type Index string

const (
	SPOT Index = "spot"
	PSOT Index = "psot"
	POST Index = "post"
	OPST Index = "opst"
	TSPO Index = "tspo"
)

// All enumerates the five canonical indexes in a stable order, used by
// novelty, the indexer, and commit/root persistence whenever every index
// must be visited.
func All() []Index { return []Index{SPOT, PSOT, POST, OPST, TSPO} }

// RefTypeChecker reports whether dt marks an object as a reference to a subject,
// the predicate that decides opst membership (§3.2: "only flakes whose dt
// marks o as a subject reference").
type RefTypeChecker func(dt int32) bool

// InOPST reports whether a flake belongs in the opst index under the
// supplied reference-datatype predicate.
func InOPST(f Flake, isRef RefTypeChecker) bool {
	return isRef(f.Dt)
}
