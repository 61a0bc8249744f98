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

// Package jsonserde implements storage/serde.Serde with plain JSON, which
// keeps blobs readable by hand. encoding/json writes map keys in sorted
// order, so equal values encode to equal bytes; cmd/fluree-lite and the
// tests commit through this codec, and storage/serde/cbor is the compact
// binary alternative.
package jsonserde

import (
	"encoding/json"

	"github.com/cubefs/fluree-lite/storage/serde"
)

type Codec struct{}

func New() *Codec { return &Codec{} }

func (Codec) SerializeLeaf(v serde.Leaf) ([]byte, error)       { return json.Marshal(v) }
func (Codec) DeserializeLeaf(b []byte) (serde.Leaf, error)     { var v serde.Leaf; err := json.Unmarshal(b, &v); return v, err }
func (Codec) SerializeBranch(v serde.Branch) ([]byte, error)   { return json.Marshal(v) }
func (Codec) DeserializeBranch(b []byte) (serde.Branch, error) { var v serde.Branch; err := json.Unmarshal(b, &v); return v, err }
func (Codec) SerializeRoot(v serde.Root) ([]byte, error)       { return json.Marshal(v) }
func (Codec) DeserializeRoot(b []byte) (serde.Root, error)     { var v serde.Root; err := json.Unmarshal(b, &v); return v, err }
func (Codec) SerializeGarbage(v serde.Garbage) ([]byte, error) { return json.Marshal(v) }
func (Codec) DeserializeGarbage(b []byte) (serde.Garbage, error) {
	var v serde.Garbage
	err := json.Unmarshal(b, &v)
	return v, err
}
func (Codec) SerializeBlock(v serde.Block) ([]byte, error) { return json.Marshal(v) }
func (Codec) DeserializeBlock(b []byte) (serde.Block, error) {
	var v serde.Block
	err := json.Unmarshal(b, &v)
	return v, err
}
