// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// Load parses the configuration from the given JSON file. Upon success, it
// returns a non-nil configuration. Otherwise, it returns an error, which
// already includes the filename.
func Load(filename string) (*Optimizer, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	decoder := json.NewDecoder(bufio.NewReader(f))
	decoder.DisallowUnknownFields()
	cfg := new(Optimizer)
	// The double pointer is needed to detect an input of "null".
	err = decoder.Decode(&cfg)
	if err != nil {
		return nil, fmt.Errorf("error decoding JSON value in %v: %v", filename, err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("loading %v resulted in nil config", filename)
	}
	if decoder.More() {
		return nil, fmt.Errorf("found unexpected data after config in %v", filename)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config in %v: %v", filename, err)
	}
	return cfg, nil
}

// Validate returns an error if the configuration can't be used.
func (cfg *Optimizer) Validate() error {
	if cfg.MaxExplorationRounds < 0 {
		return fmt.Errorf("maxExplorationRounds must not be negative, got %d",
			cfg.MaxExplorationRounds)
	}
	seen := make(map[string]bool, len(cfg.RuleSets))
	for _, name := range cfg.RuleSets {
		if name == "" {
			return fmt.Errorf("ruleSets contains an empty name")
		}
		if seen[name] {
			return fmt.Errorf("ruleSets lists %q more than once", name)
		}
		seen[name] = true
	}
	if cfg.Log != nil {
		switch cfg.Log.Format {
		case "", "text", "json":
		default:
			return fmt.Errorf(`log.format must be "text" or "json", got %q`, cfg.Log.Format)
		}
	}
	if cfg.Tracing != nil && (cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1) {
		return fmt.Errorf("tracing.sampleRate must be between 0 and 1, got %v",
			cfg.Tracing.SampleRate)
	}
	if cfg.EliminateUnusedAppendVertices && !cfg.EnablePropertyPruning {
		return fmt.Errorf("eliminateUnusedAppendVertices requires enablePropertyPruning")
	}
	return nil
}

// Write marshalls the configuration as JSON to the given file. It truncates the
// file if it already exists. It returns nil upon success. Otherwise, it returns
// an error, which already includes the filename.
func Write(cfg *Optimizer, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	writer := bufio.NewWriter(f)
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "\t")
	err = firstError(
		encoder.Encode(cfg),
		writer.Flush(),
		f.Close(),
	)
	if err != nil {
		return fmt.Errorf("failed to write %v: %v", filename, err)
	}
	return nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
