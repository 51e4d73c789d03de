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

// This binary finds candidate overlaps between reads from an anchor dump and
// writes them as PAF or JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"

	"github.com/pkg/profile"

	"github.com/googlegenomics/overlapper/internal/anchorfile"
	"github.com/googlegenomics/overlapper/internal/config"
	"github.com/googlegenomics/overlapper/internal/paf"
	"github.com/googlegenomics/overlapper/internal/readindex"
	"github.com/googlegenomics/overlapper/internal/storage"
	"github.com/googlegenomics/overlapper/overlap"
)

var (
	configPath = flag.String("config", "", "optional TOML settings file; flags override its values")

	anchors     = flag.String("anchors", "", "anchor dump, local path or gs://bucket/object")
	queryIndex  = flag.String("query_index", "", "name and length of each query read (.fai compatible)")
	targetIndex = flag.String("target_index", "", "name and length of each target read; defaults to -query_index")

	output     = flag.String("output", "", "output file; stdout when empty or -")
	format     = flag.String("format", config.FormatPAF, "output format: paf or json")
	sortOutput = flag.Bool("sort", false, "order overlaps by query then target read")

	scratchLimit = flag.Int("scratch_limit", 0, "scratch memory limit in bytes, 0 for no limit")
	verbose      = flag.Bool("v", false, "log each chaining stage")
	profileMode  = flag.String("profile", "", "write a cpu or mem profile to the current directory")

	token  = flag.String("token", "", "OAuth2 access token for gs:// inputs")
	public = flag.Bool("public", false, "read gs:// inputs without credentials")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid settings: %v", err)
	}
	if cfg.Input.Anchors == "" {
		log.Fatalf("You must specify -anchors.")
	}

	switch *profileMode {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	default:
		log.Fatalf("Unknown profile mode %q", *profileMode)
	}

	ctx := context.Background()
	client, err := newStorageClient(ctx, cfg.Input)
	if err != nil {
		log.Fatalf("Failed to create storage client: %v", err)
	}

	input, err := loadAnchors(ctx, client, cfg.Input.Anchors)
	if err != nil {
		log.Fatalf("Failed to load anchors: %v", err)
	}
	query, err := loadIndex(ctx, client, cfg.Input.QueryIndex)
	if err != nil {
		log.Fatalf("Failed to load query index: %v", err)
	}
	target := query
	if cfg.Input.TargetIndex != "" && cfg.Input.TargetIndex != cfg.Input.QueryIndex {
		if target, err = loadIndex(ctx, client, cfg.Input.TargetIndex); err != nil {
			log.Fatalf("Failed to load target index: %v", err)
		}
	}
	log.Printf("Loaded %d anchors, %d query reads and %d target reads", len(input), query.Len(), target.Len())

	options := overlap.Options{ScratchLimit: cfg.Chainer.ScratchLimit}
	if cfg.Chainer.Verbose {
		options.Logf = log.Printf
	}
	chainer := overlap.NewChainer(options)
	defer chainer.Close()

	overlaps, err := chainer.Overlaps(input, query, target)
	if err != nil {
		log.Fatalf("Failed to find overlaps: %v", err)
	}
	if cfg.Output.Sort {
		overlap.SortByReadPair(overlaps)
	}
	log.Printf("Found %d overlaps", len(overlaps))

	if err := writeOverlaps(cfg.Output, overlaps); err != nil {
		log.Fatalf("Failed to write overlaps: %v", err)
	}
}

// applyFlags copies every flag given on the command line into cfg.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "anchors":
			cfg.Input.Anchors = *anchors
		case "query_index":
			cfg.Input.QueryIndex = *queryIndex
		case "target_index":
			cfg.Input.TargetIndex = *targetIndex
		case "output":
			cfg.Output.Path = *output
		case "format":
			cfg.Output.Format = *format
		case "sort":
			cfg.Output.Sort = *sortOutput
		case "scratch_limit":
			cfg.Chainer.ScratchLimit = *scratchLimit
		case "v":
			cfg.Chainer.Verbose = *verbose
		}
	})
}

// newStorageClient returns nil when every input is local.
func newStorageClient(ctx context.Context, input config.Input) (storage.Client, error) {
	if !storage.IsRemote(input.Anchors) && !storage.IsRemote(input.QueryIndex) && !storage.IsRemote(input.TargetIndex) {
		return nil, nil
	}
	switch {
	case *token != "":
		return storage.NewClientFromToken(ctx, *token)
	case *public:
		return storage.NewPublicClient(ctx)
	}
	return storage.NewDefaultClient(ctx)
}

func loadAnchors(ctx context.Context, client storage.Client, path string) ([]overlap.Anchor, error) {
	if !storage.IsRemote(path) {
		return anchorfile.ReadFile(path)
	}
	r, err := storage.Open(ctx, client, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return anchorfile.Read(r)
}

// loadIndex returns an empty index when path is empty.
func loadIndex(ctx context.Context, client storage.Client, path string) (*readindex.Index, error) {
	if path == "" {
		return readindex.New(nil), nil
	}
	r, err := storage.Open(ctx, client, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readindex.Load(r)
}

func writeOverlaps(out config.Output, overlaps []overlap.Overlap) error {
	var w io.Writer = os.Stdout
	if out.Path != "" && out.Path != "-" {
		f, err := os.Create(out.Path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	if out.Format == config.FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for i := range overlaps {
			if err := enc.Encode(&overlaps[i]); err != nil {
				return err
			}
		}
	} else if err := paf.NewWriter(w).WriteAll(overlaps); err != nil {
		return err
	}

	if f, ok := w.(*os.File); ok && f != os.Stdout {
		return f.Close()
	}
	return nil
}
