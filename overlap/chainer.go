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

import (
	"math"
	"sync"

	"github.com/exascience/pargo/parallel"
	"github.com/pkg/errors"

	"github.com/googlegenomics/overlapper/internal/device"
)

// Options configures a Chainer.
type Options struct {
	// ScratchLimit caps the scratch memory used by one call, in bytes.  Zero
	// means no limit.
	ScratchLimit int
	// Logf receives per-stage progress when set.
	Logf func(format string, args ...interface{})
}

// Chainer finds overlaps from anchors.  It owns one compute stream; calls on
// the same Chainer are serialized, independent Chainers run concurrently.
// A Chainer must be created with NewChainer and released with Close.
type Chainer struct {
	opts   Options
	mu     sync.Mutex
	stream *device.Stream
}

// NewChainer returns a Chainer configured by opts.
func NewChainer(opts Options) *Chainer {
	if opts.Logf == nil {
		opts.Logf = func(string, ...interface{}) {}
	}
	return &Chainer{opts: opts, stream: device.NewStream()}
}

// Close releases the compute stream.
func (c *Chainer) Close() {
	c.stream.Close()
}

// readPair keys fused spans; the target read is the more significant field.
type readPair struct {
	target, query uint32
}

// fusedSpan is a range [start, end) of sorted anchors backing one overlap.
type fusedSpan struct {
	start, end  int32
	numResidues int32
}

func fuse(acc, next fusedSpan) fusedSpan {
	return fusedSpan{
		start:       min(acc.start, next.start),
		end:         max(acc.end, next.end),
		numResidues: acc.numResidues + next.numResidues,
	}
}

// Overlaps returns the overlaps supported by anchors, in no particular
// order.  anchors is sorted in place.  query and target resolve the read IDs
// on each side of the anchors.
//
// Any failure aborts the whole call; no partial result is returned.
func (c *Chainer) Overlaps(anchors []Anchor, query, target ReadIndex) ([]Overlap, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(anchors)
	if n == 0 {
		return nil, nil
	}
	if n > math.MaxInt32 {
		return nil, errors.Errorf("too many anchors: %d", n)
	}

	var (
		stream  = c.stream
		scratch = device.NewArena(c.opts.ScratchLimit)
	)
	launch := func(name string, p device.Primitive) error {
		return device.Launch(stream, scratch, name, p)
	}
	// Queued work may still reference buffers of this call after a failed
	// launch; drain it before returning.
	abort := func(err error) ([]Overlap, error) {
		stream.Synchronize()
		return nil, err
	}

	if err := launch("sorting anchors", device.Sort(byPosition(anchors))); err != nil {
		return abort(err)
	}

	lengths := make([]int32, n)
	var numChains int
	if err := launch("grouping chains", device.RunLengthEncode(anchors, ContinuesChain, lengths, &numChains)); err != nil {
		return abort(err)
	}
	if err := stream.Synchronize(); err != nil {
		return nil, err
	}
	lengths = lengths[:numChains]
	c.opts.Logf("Grouped %d anchors into %d chains", n, numChains)

	starts := make([]int32, numChains)
	if err := launch("computing chain offsets", device.ExclusiveSum(lengths, starts)); err != nil {
		return abort(err)
	}
	candidates := make([]int32, numChains)
	var numCandidates int
	long := func(i int) bool { return lengths[i] >= MinChainLength }
	if err := launch("filtering chains", device.SelectIf(numChains, long, candidates, &numCandidates)); err != nil {
		return abort(err)
	}
	if err := stream.Synchronize(); err != nil {
		return nil, err
	}
	candidates = candidates[:numCandidates]
	c.opts.Logf("Kept %d of %d chains", numCandidates, numChains)

	var (
		pairs    = make([]readPair, numCandidates)
		spans    = make([]fusedSpan, numCandidates)
		numFused int
	)
	pairOf := func(i int) readPair {
		first := anchors[starts[candidates[i]]]
		return readPair{target: first.TargetReadID, query: first.QueryReadID}
	}
	spanOf := func(i int) fusedSpan {
		chain := candidates[i]
		return fusedSpan{start: starts[chain], end: starts[chain] + lengths[chain], numResidues: lengths[chain]}
	}
	if err := launch("fusing chains", device.ReduceByKey(numCandidates, pairOf, spanOf, fuse, pairs, spans, &numFused)); err != nil {
		return abort(err)
	}
	if err := stream.Synchronize(); err != nil {
		return nil, err
	}
	spans = spans[:numFused]
	c.opts.Logf("Fused %d chains into %d overlaps", numCandidates, numFused)

	overlaps := make([]Overlap, numFused)
	materialize := func(i int) {
		overlaps[i] = newOverlap(anchors, spans[i])
	}
	if err := launch("materializing overlaps", device.Transform(numFused, materialize)); err != nil {
		return abort(err)
	}
	if err := stream.Synchronize(); err != nil {
		return nil, err
	}

	resolveReads(overlaps, query, target)
	return overlaps, nil
}

// newOverlap builds the overlap spanning anchors[span.start:span.end].
func newOverlap(anchors []Anchor, span fusedSpan) Overlap {
	first, last := anchors[span.start], anchors[span.end-1]
	o := Overlap{
		QueryReadID:         first.QueryReadID,
		TargetReadID:        first.TargetReadID,
		QueryStartPosition:  first.QueryPositionInRead,
		QueryEndPosition:    last.QueryPositionInRead,
		TargetStartPosition: first.TargetPositionInRead,
		TargetEndPosition:   last.TargetPositionInRead,
		NumResidues:         int(span.numResidues),
		RelativeStrand:      Forward,
		Complete:            true,
	}
	if o.TargetStartPosition > o.TargetEndPosition {
		o.TargetStartPosition, o.TargetEndPosition = o.TargetEndPosition, o.TargetStartPosition
		o.RelativeStrand = Reverse
	}
	return o
}

// resolveReads fills in read names and lengths.  It must only run once the
// overlaps are final.
func resolveReads(overlaps []Overlap, query, target ReadIndex) {
	if len(overlaps) == 0 {
		return
	}
	parallel.Range(0, len(overlaps), 0, func(low, high int) {
		for i := low; i < high; i++ {
			o := &overlaps[i]
			o.QueryReadName = query.ReadName(o.QueryReadID)
			o.QueryReadLength = query.ReadLength(o.QueryReadID)
			o.TargetReadName = target.ReadName(o.TargetReadID)
			o.TargetReadLength = target.ReadLength(o.TargetReadID)
		}
	})
}
