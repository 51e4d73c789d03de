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

// Package overlap finds candidate overlaps between reads from chains of
// co-linear anchors.
//
// A Chainer sorts the anchors, groups runs of nearby anchors between the same
// pair of reads into chains, drops chains with fewer than MinChainLength
// anchors, fuses consecutive chains of the same read pair and reports one
// Overlap per fused span.  Read names and lengths are filled in from a
// ReadIndex for each side once all the parallel work is done.
package overlap

import (
	"fmt"

	"github.com/googlegenomics/overlapper/keysort"
)

// Strand is the orientation of the target read relative to the query read.
type Strand uint8

const (
	Forward Strand = iota
	Reverse
)

func (s Strand) String() string {
	if s == Reverse {
		return "-"
	}
	return "+"
}

// MarshalText encodes the strand as "+" or "-".
func (s Strand) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses "+" or "-".
func (s *Strand) UnmarshalText(text []byte) error {
	switch string(text) {
	case "+":
		*s = Forward
	case "-":
		*s = Reverse
	default:
		return fmt.Errorf("invalid strand %q", text)
	}
	return nil
}

// ReadIndex resolves read IDs of one read collection.
type ReadIndex interface {
	ReadName(id uint32) string
	ReadLength(id uint32) uint32
}

// Overlap describes a region shared by a query read and a target read.
// Start positions never exceed end positions; RelativeStrand is Reverse when
// the target span had to be flipped to make that hold.
type Overlap struct {
	QueryReadID         uint32 `json:"query_read_id"`
	TargetReadID        uint32 `json:"target_read_id"`
	QueryStartPosition  uint32 `json:"query_start"`
	QueryEndPosition    uint32 `json:"query_end"`
	TargetStartPosition uint32 `json:"target_start"`
	TargetEndPosition   uint32 `json:"target_end"`
	// NumResidues is the number of anchors supporting the overlap.
	NumResidues    int    `json:"num_residues"`
	RelativeStrand Strand `json:"strand"`

	QueryReadName    string `json:"query_read_name"`
	TargetReadName   string `json:"target_read_name"`
	QueryReadLength  uint32 `json:"query_read_length"`
	TargetReadLength uint32 `json:"target_read_length"`

	// Alignment is left empty; it is reserved for a base-level alignment
	// computed downstream.
	Alignment string `json:"alignment,omitempty"`
	Complete  bool   `json:"complete"`
}

// SortByReadPair orders overlaps by query read ID, then target read ID.
func SortByReadPair(overlaps []Overlap) {
	n := len(overlaps)
	if n < 2 {
		return
	}
	var (
		queries   = make([]uint32, n)
		targets   = make([]uint32, n)
		order     = make([]int32, n)
		maxQuery  uint32
		maxTarget uint32
	)
	for i := range overlaps {
		queries[i], targets[i], order[i] = overlaps[i].QueryReadID, overlaps[i].TargetReadID, int32(i)
		maxQuery = max(maxQuery, queries[i])
		maxTarget = max(maxTarget, targets[i])
	}
	keysort.SortByTwoKeys(queries, targets, order, maxQuery, maxTarget)

	sorted := make([]Overlap, n)
	for i, j := range order {
		sorted[i] = overlaps[j]
	}
	copy(overlaps, sorted)
}
