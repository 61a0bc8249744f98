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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cubefs/fluree-lite/flake"
)

func TestPlanSubjectAndPredicateBoundChoosesSPOT(t *testing.T) {
	p := Pattern{S: Term{Value: int64(1)}, P: Term{Value: int64(10)}, O: Term{Var: "?o"}}
	require.Equal(t, flake.SPOT, Plan(p, map[int64]bool{}))
}

func TestPlanObjectAndPredicateBoundOnRefChoosesOPST(t *testing.T) {
	p := Pattern{S: Term{Var: "?s"}, P: Term{Value: int64(20)}, O: Term{Value: int64(7)}}
	require.Equal(t, flake.OPST, Plan(p, map[int64]bool{20: true}))
}

func TestPlanObjectAndPredicateBoundOnNonRefFallsBackToPSOT(t *testing.T) {
	p := Pattern{S: Term{Var: "?s"}, P: Term{Value: int64(10)}, O: Term{Value: "Alice"}}
	require.Equal(t, flake.PSOT, Plan(p, map[int64]bool{10: false}))
}

func TestPlanPredicateAloneChoosesPSOT(t *testing.T) {
	p := Pattern{S: Term{Var: "?s"}, P: Term{Value: int64(10)}, O: Term{Var: "?o"}}
	require.Equal(t, flake.PSOT, Plan(p, map[int64]bool{}))
}

func TestPlanNothingBoundFallsBackToSPOT(t *testing.T) {
	p := Pattern{S: Term{Var: "?s"}, P: Term{Var: "?p"}, O: Term{Var: "?o"}}
	require.Equal(t, flake.SPOT, Plan(p, map[int64]bool{}))
}
