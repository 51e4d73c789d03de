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

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	input := `
[chainer]
scratch-limit = 1048576
verbose = true

[input]
anchors = "gs://bucket/run1.anc"
query-index = "reads.fai"

[output]
format = "json"
sort = true

[server]
port = 9000
chainers = 2
buckets = ["bucket", "other"]
`
	cfg, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 1048576, cfg.Chainer.ScratchLimit)
	assert.True(t, cfg.Chainer.Verbose)
	assert.Equal(t, "gs://bucket/run1.anc", cfg.Input.Anchors)
	assert.Equal(t, "reads.fai", cfg.Input.QueryIndex)
	assert.Equal(t, "", cfg.Input.TargetIndex)
	assert.Equal(t, FormatJSON, cfg.Output.Format)
	assert.True(t, cfg.Output.Sort)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Server.Chainers)
	assert.Equal(t, []string{"bucket", "other"}, cfg.Server.Buckets)
	assert.Equal(t, Default().Server.MaxBody, cfg.Server.MaxBody, "unset keys keep their defaults")
}

func TestParse_Invalid(t *testing.T) {
	testCases := []struct{ name, input string }{
		{"unknown key", "[chainer]\nwindow = 10\n"},
		{"bad syntax", "[chainer\n"},
		{"negative scratch", "[chainer]\nscratch-limit = -1\n"},
		{"bad format", "[output]\nformat = \"sam\"\n"},
		{"bad port", "[server]\nport = 70000\n"},
		{"no chainers", "[server]\nchainers = 0\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tc.input)); err == nil {
				t.Errorf("Parse(%q) succeeded", tc.input)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	want := Default()
	want.Output.Sort = true
	want.Server.Buckets = []string{"genomes"}

	var buffer bytes.Buffer
	require.NoError(t, want.Write(&buffer))
	path := filepath.Join(t.TempDir(), "overlapper.toml")
	require.NoError(t, os.WriteFile(path, buffer.Bytes(), 0644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = Load(path + ".missing")
	assert.Error(t, err)
}
