// Copyright 2019 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the optional TOML settings file shared by the
// overlapper binaries.  Command line flags override file values.
package config

import (
	"bytes"
	"io"
	"os"
	"runtime"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// Output formats.
const (
	FormatPAF  = "paf"
	FormatJSON = "json"
)

// Config holds every setting of the overlapper binaries.
type Config struct {
	Chainer Chainer `toml:"chainer"`
	Input   Input   `toml:"input"`
	Output  Output  `toml:"output"`
	Server  Server  `toml:"server"`
}

// Chainer configures overlap detection.
type Chainer struct {
	ScratchLimit int  `toml:"scratch-limit" comment:"Scratch memory per call in bytes, 0 for no limit"`
	Verbose      bool `toml:"verbose" comment:"Log each chaining stage"`
}

// Input names the default inputs; local paths or gs://bucket/object.
type Input struct {
	Anchors     string `toml:"anchors"`
	QueryIndex  string `toml:"query-index"`
	TargetIndex string `toml:"target-index"`
}

// Output configures how overlaps are written.
type Output struct {
	Path   string `toml:"path" comment:"Empty or - writes to stdout"`
	Format string `toml:"format" comment:"paf or json"`
	Sort   bool   `toml:"sort" comment:"Order overlaps by query then target read"`
}

// Server configures the overlap service.
type Server struct {
	Port     int      `toml:"port"`
	Chainers int      `toml:"chainers" comment:"Independent chainers serving requests concurrently"`
	Buckets  []string `toml:"buckets" comment:"If set, restricts gs:// inputs to these buckets"`
	MaxBody  int64    `toml:"max-body" comment:"Largest accepted request body in bytes"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		Output: Output{Format: FormatPAF},
		Server: Server{
			Port:     8080,
			Chainers: runtime.GOMAXPROCS(0),
			MaxBody:  256 << 20,
		},
	}
}

// Load reads path over the defaults.  An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening config")
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	return cfg, nil
}

// Parse decodes TOML from r over the defaults and validates the result.
// Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that is out of range.
func (c *Config) Validate() error {
	switch {
	case c.Chainer.ScratchLimit < 0:
		return errors.Errorf("chainer.scratch-limit must not be negative, got %d", c.Chainer.ScratchLimit)
	case c.Output.Format != FormatPAF && c.Output.Format != FormatJSON:
		return errors.Errorf("output.format must be %q or %q, got %q", FormatPAF, FormatJSON, c.Output.Format)
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return errors.Errorf("server.port out of range: %d", c.Server.Port)
	case c.Server.Chainers <= 0:
		return errors.Errorf("server.chainers must be positive, got %d", c.Server.Chainers)
	case c.Server.MaxBody <= 0:
		return errors.Errorf("server.max-body must be positive, got %d", c.Server.MaxBody)
	}
	return nil
}

// Write encodes c as TOML.
func (c *Config) Write(w io.Writer) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}
	_, err = io.Copy(w, bytes.NewReader(data))
	return errors.Wrap(err, "writing config")
}
