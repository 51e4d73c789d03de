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

package overlap

import "fmt"

const (
	// ChainWindow is the largest distance, exclusive, between two consecutive
	// anchors of a chain along either read.
	ChainWindow = 350

	// MinChainLength is the number of anchors a chain needs to be reported.
	MinChainLength = 3
)

// Anchor is a position shared by a query read and a target read.
type Anchor struct {
	QueryReadID          uint32 `json:"query_read_id"`
	TargetReadID         uint32 `json:"target_read_id"`
	QueryPositionInRead  uint32 `json:"query_position"`
	TargetPositionInRead uint32 `json:"target_position"`
}

func (a Anchor) String() string {
	return fmt.Sprintf("[query:%d@%d, target:%d@%d]",
		a.QueryReadID, a.QueryPositionInRead, a.TargetReadID, a.TargetPositionInRead)
}

// SameReadPair reports whether a and b join the same query and target reads.
func SameReadPair(a, b Anchor) bool {
	return a.QueryReadID == b.QueryReadID && a.TargetReadID == b.TargetReadID
}

// Proximate reports whether prev and next are less than ChainWindow apart on
// both reads.  Distances are absolute, so the result does not depend on the
// order of the two anchors.
func Proximate(prev, next Anchor) bool {
	return distance(prev.QueryPositionInRead, next.QueryPositionInRead) < ChainWindow &&
		distance(prev.TargetPositionInRead, next.TargetPositionInRead) < ChainWindow
}

// ContinuesChain reports whether next extends the chain ending at prev.
func ContinuesChain(prev, next Anchor) bool {
	return SameReadPair(prev, next) && Proximate(prev, next)
}

func distance(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}

// byPosition orders anchors by query read, target read, query position and
// target position.
type byPosition []Anchor

func (s byPosition) Len() int      { return len(s) }
func (s byPosition) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

func (s byPosition) Less(i, j int) bool {
	a, b := &s[i], &s[j]
	if a.QueryReadID != b.QueryReadID {
		return a.QueryReadID < b.QueryReadID
	}
	if a.TargetReadID != b.TargetReadID {
		return a.TargetReadID < b.TargetReadID
	}
	if a.QueryPositionInRead != b.QueryPositionInRead {
		return a.QueryPositionInRead < b.QueryPositionInRead
	}
	return a.TargetPositionInRead < b.TargetPositionInRead
}
