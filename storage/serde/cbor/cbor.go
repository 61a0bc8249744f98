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

// Package cbor implements storage/serde.Serde with deterministic CBOR
// (cbor.CanonicalEncOptions: RFC 7049 §3.9 "Canonical CBOR"), the on-disk codec this
// module ships for leaves, branches, roots, garbage, and blocks.
package cbor

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/cubefs/fluree-lite/storage/serde"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	opts := cbor.CanonicalEncOptions()
	var err error
	if encMode, err = opts.EncMode(); err != nil {
		panic(err)
	}
	if decMode, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic(err)
	}
}

type Codec struct{}

func New() *Codec { return &Codec{} }

func (Codec) SerializeLeaf(v serde.Leaf) ([]byte, error)       { return encMode.Marshal(v) }
func (Codec) DeserializeLeaf(b []byte) (serde.Leaf, error)     { var v serde.Leaf; err := decMode.Unmarshal(b, &v); return v, err }
func (Codec) SerializeBranch(v serde.Branch) ([]byte, error)   { return encMode.Marshal(v) }
func (Codec) DeserializeBranch(b []byte) (serde.Branch, error) { var v serde.Branch; err := decMode.Unmarshal(b, &v); return v, err }
func (Codec) SerializeRoot(v serde.Root) ([]byte, error)       { return encMode.Marshal(v) }
func (Codec) DeserializeRoot(b []byte) (serde.Root, error)     { var v serde.Root; err := decMode.Unmarshal(b, &v); return v, err }
func (Codec) SerializeGarbage(v serde.Garbage) ([]byte, error) { return encMode.Marshal(v) }
func (Codec) DeserializeGarbage(b []byte) (serde.Garbage, error) {
	var v serde.Garbage
	err := decMode.Unmarshal(b, &v)
	return v, err
}
func (Codec) SerializeBlock(v serde.Block) ([]byte, error) { return encMode.Marshal(v) }
func (Codec) DeserializeBlock(b []byte) (serde.Block, error) {
	var v serde.Block
	err := decMode.Unmarshal(b, &v)
	return v, err
}
