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

// Package keysort sorts values by a pair of integer keys.
//
// The two keys are packed into a single composite integer whose numeric
// order equals the lexicographic order of the pair, and the composite is
// sorted with a parallel radix sort.  The composite uses the narrowest of 32,
// 64 or 128 bits that can hold the largest possible packed value, so any
// combination of 32 and 64-bit keys is handled without overflow.
package keysort

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/bits"

	"github.com/exascience/pargo/parallel"
	"github.com/twotwotwo/sorts"
)

// Key is the set of integer types accepted as sort keys.  Keys must not be
// negative.
type Key interface {
	~int32 | ~uint32 | ~int64 | ~uint64
}

// SortByTwoKeys permutes more, less and values together so that the pairs
// (more[i], less[i]) are non-decreasing.
//
// maxMore and maxLess must be at least the largest value in more and less
// respectively; they size the composite key and are not checked.  If they
// are too small, or the slices differ in length, the resulting order is
// unspecified.  Elements with equal key pairs end up in no particular order.
func SortByTwoKeys[M, L Key, V any](more []M, less []L, values []V, maxMore M, maxLess L) {
	if len(values) < 2 {
		return
	}
	base := newUint128(uint64(maxLess)).add(1)
	switch CompositeWidth(uint64(maxMore), uint64(maxLess)) {
	case 32:
		s := &compositeSorter[uint32, M, L, V]{keys: make([]uint32, len(values)), more: more, less: less, values: values}
		parallel.Range(0, len(values), 0, func(low, high int) {
			for i := low; i < high; i++ {
				s.keys[i] = uint32(uint64(more[i])*base.lo + uint64(less[i]))
			}
		})
		sorts.ByUint64(s)
	case 64:
		s := &compositeSorter[uint64, M, L, V]{keys: make([]uint64, len(values)), more: more, less: less, values: values}
		parallel.Range(0, len(values), 0, func(low, high int) {
			for i := low; i < high; i++ {
				s.keys[i] = uint64(more[i])*base.lo + uint64(less[i])
			}
		})
		sorts.ByUint64(s)
	default:
		s := &wideSorter[M, L, V]{keys: make([][16]byte, len(values)), more: more, less: less, values: values}
		parallel.Range(0, len(values), 0, func(low, high int) {
			for i := low; i < high; i++ {
				c := base.mul(uint64(more[i])).add(uint64(less[i]))
				binary.BigEndian.PutUint64(s.keys[i][:8], c.hi)
				binary.BigEndian.PutUint64(s.keys[i][8:], c.lo)
			}
		})
		sorts.ByBytes(s)
	}
}

// CompositeWidth returns the number of bits (32, 64 or 128) needed to pack
// keys bounded by maxMore and maxLess.
func CompositeWidth(maxMore, maxLess uint64) int {
	largest := newUint128(maxLess).add(1).mul(maxMore).add(maxLess)
	switch {
	case largest.hi != 0:
		return 128
	case largest.lo > math.MaxUint32:
		return 64
	default:
		return 32
	}
}

type uint128 struct {
	hi, lo uint64
}

func newUint128(v uint64) uint128 {
	return uint128{lo: v}
}

func (u uint128) add(v uint64) uint128 {
	lo, carry := bits.Add64(u.lo, v, 0)
	return uint128{hi: u.hi + carry, lo: lo}
}

// mul returns u*v.  The product of a 65-bit base and a 64-bit key always
// fits in 128 bits.
func (u uint128) mul(v uint64) uint128 {
	hi, lo := bits.Mul64(u.lo, v)
	return uint128{hi: hi + u.hi*v, lo: lo}
}

type compositeSorter[K uint32 | uint64, M, L Key, V any] struct {
	keys   []K
	more   []M
	less   []L
	values []V
}

func (s *compositeSorter[K, M, L, V]) Len() int           { return len(s.keys) }
func (s *compositeSorter[K, M, L, V]) Less(i, j int) bool { return s.keys[i] < s.keys[j] }
func (s *compositeSorter[K, M, L, V]) Key(i int) uint64   { return uint64(s.keys[i]) }

func (s *compositeSorter[K, M, L, V]) Swap(i, j int) {
	s.keys[i], s.keys[j] = s.keys[j], s.keys[i]
	s.more[i], s.more[j] = s.more[j], s.more[i]
	s.less[i], s.less[j] = s.less[j], s.less[i]
	s.values[i], s.values[j] = s.values[j], s.values[i]
}

// wideSorter holds 128-bit composites as big-endian bytes so that byte order
// matches numeric order.
type wideSorter[M, L Key, V any] struct {
	keys   [][16]byte
	more   []M
	less   []L
	values []V
}

func (s *wideSorter[M, L, V]) Len() int           { return len(s.keys) }
func (s *wideSorter[M, L, V]) Less(i, j int) bool { return bytes.Compare(s.keys[i][:], s.keys[j][:]) < 0 }
func (s *wideSorter[M, L, V]) Key(i int) []byte   { return s.keys[i][:] }

func (s *wideSorter[M, L, V]) Swap(i, j int) {
	s.keys[i], s.keys[j] = s.keys[j], s.keys[i]
	s.more[i], s.more[j] = s.more[j], s.more[i]
	s.less[i], s.less[j] = s.less[j], s.less[i]
	s.values[i], s.values[j] = s.values[j], s.values[i]
}
