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

// This binary writes a synthetic anchor dump and read indexes for exercising
// the overlapper.  Each generated read pair shares one chain of anchors on
// either strand; unrelated anchors are mixed in as noise.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"

	"github.com/googlegenomics/overlapper/internal/anchorfile"
	"github.com/googlegenomics/overlapper/internal/readindex"
	"github.com/googlegenomics/overlapper/overlap"
)

var (
	output      = flag.String("output", "anchors.anc", "anchor dump to write")
	queryIndex  = flag.String("query_index", "query.tsv", "query read index to write")
	targetIndex = flag.String("target_index", "target.tsv", "target read index to write")
	compression = flag.String("compression", "bgzf", "anchor dump compression: none, bgzf or zstd")

	reads = flag.Int("reads", 1000, "reads on each side")
	pairs = flag.Int("pairs", 2000, "overlapping read pairs")
	noise = flag.Int("noise", 10000, "unrelated anchors")
	seed  = flag.Int64("seed", 1, "random seed")
)

const (
	minReadLength = 5000
	maxReadLength = 20000
	anchorSpacing = overlap.ChainWindow / 2
)

func main() {
	flag.Parse()

	c, err := anchorfile.ParseCompression(*compression)
	if err != nil {
		log.Fatalf("Invalid -compression: %v", err)
	}
	if *reads <= 0 {
		log.Fatalf("-reads must be positive")
	}

	rng := rand.New(rand.NewSource(*seed))
	query, target := newReads(rng, "q"), newReads(rng, "t")

	var anchors []overlap.Anchor
	for i := 0; i < *pairs; i++ {
		anchors = appendChain(anchors, rng, query, target)
	}
	for i := 0; i < *noise; i++ {
		q, t := rng.Intn(*reads), rng.Intn(*reads)
		anchors = append(anchors, overlap.Anchor{
			QueryReadID:          uint32(q),
			TargetReadID:         uint32(t),
			QueryPositionInRead:  uint32(rng.Intn(int(query[q].Length))),
			TargetPositionInRead: uint32(rng.Intn(int(target[t].Length))),
		})
	}
	rng.Shuffle(len(anchors), func(i, j int) { anchors[i], anchors[j] = anchors[j], anchors[i] })

	if err := writeFile(*output, func(w io.Writer) error { return anchorfile.Write(w, anchors, c) }); err != nil {
		log.Fatalf("Failed to write anchors: %v", err)
	}
	if err := writeFile(*queryIndex, readindex.New(query).Write); err != nil {
		log.Fatalf("Failed to write query index: %v", err)
	}
	if err := writeFile(*targetIndex, readindex.New(target).Write); err != nil {
		log.Fatalf("Failed to write target index: %v", err)
	}
	log.Printf("Wrote %d anchors (%s) for %d read pairs", len(anchors), c, *pairs)
}

func newReads(rng *rand.Rand, prefix string) []readindex.Read {
	list := make([]readindex.Read, *reads)
	for i := range list {
		list[i] = readindex.Read{
			Name:   fmt.Sprintf("%s%06d", prefix, i),
			Length: uint32(minReadLength + rng.Intn(maxReadLength-minReadLength)),
		}
	}
	return list
}

// appendChain adds the anchors of one overlap between a random query and
// target read.  Half of the chains run backwards along the target.
func appendChain(anchors []overlap.Anchor, rng *rand.Rand, query, target []readindex.Read) []overlap.Anchor {
	q, t := rng.Intn(len(query)), rng.Intn(len(target))
	span := minReadLength / 2
	qStart := rng.Intn(int(query[q].Length) - span)
	tStart := rng.Intn(int(target[t].Length) - span)
	reverse := rng.Intn(2) == 1

	for offset := 0; offset < span; offset += anchorSpacing {
		tPos := tStart + offset
		if reverse {
			tPos = tStart + span - 1 - offset
		}
		anchors = append(anchors, overlap.Anchor{
			QueryReadID:          uint32(q),
			TargetReadID:         uint32(t),
			QueryPositionInRead:  uint32(qStart + offset),
			TargetPositionInRead: uint32(tPos),
		})
	}
	return anchors
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
