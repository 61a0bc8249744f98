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

package serde

import "github.com/cubefs/fluree-lite/flake"

// ToRecord and FromRecord translate between the in-memory flake.Flake and
// its wire shape, the single seam every Serde implementation's
// (de)serialize pair for Leaf/Block flows through.
func ToRecord(f flake.Flake) FlakeRecord {
	return FlakeRecord{
		S: f.S, P: f.P, T: f.T, Dt: f.Dt, Op: f.Op,
		OI64: f.O.I64, OF64: f.O.F64, ODec: f.O.Dec, OStr: f.O.Str,
		OBool: f.O.Bool, OBytes: f.O.Bytes, ORef: f.O.Ref, OJSON: f.O.JSON,
		M: f.M,
	}
}

func FromRecord(r FlakeRecord) flake.Flake {
	return flake.Flake{
		S: r.S, P: r.P, T: r.T, Dt: r.Dt, Op: r.Op,
		O: flake.Object{
			I64: r.OI64, F64: r.OF64, Dec: r.ODec, Str: r.OStr,
			Bool: r.OBool, Bytes: r.OBytes, Ref: r.ORef, JSON: r.OJSON,
		},
		M: r.M,
	}
}

func ToRecords(fs []flake.Flake) []FlakeRecord {
	out := make([]FlakeRecord, len(fs))
	for i, f := range fs {
		out[i] = ToRecord(f)
	}
	return out
}

func FromRecords(rs []FlakeRecord) []flake.Flake {
	out := make([]flake.Flake, len(rs))
	for i, r := range rs {
		out[i] = FromRecord(r)
	}
	return out
}
