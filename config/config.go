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

// Package config loads the connection configuration of §6 from a JSON
// file, the same encoding/json-tagged-struct shape the teacher uses for
// its own cmd-line configs (cmd/cmd.go's flag-to-struct loading).
package config

import (
	"encoding/json"
	"os"

	"github.com/cubefs/fluree-lite/apperr"
)

// Load reads path and unmarshals it into out, which must be a pointer.
func Load(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return apperr.Wrap(err, apperr.StorageError, "config: read file")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Wrap(err, apperr.InvalidQuery, "config: decode json")
	}
	return nil
}
