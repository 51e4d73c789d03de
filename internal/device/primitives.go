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

package device

import (
	"sort"

	"github.com/exascience/pargo/parallel"
	"github.com/pkg/errors"
	"github.com/twotwotwo/sorts"
)

// BlockSize is the number of items handled by one parallel tile.  Primitives
// that need scratch storage keep one 8-byte word per tile.
const BlockSize = 1 << 13

func blocks(n int) int {
	return (n + BlockSize - 1) / BlockSize
}

// forEachBlock calls f for every tile of [0, n) in parallel.
func forEachBlock(n int, f func(b, lo, hi int)) {
	if n == 0 {
		return
	}
	parallel.Range(0, blocks(n), 0, func(low, high int) {
		for b := low; b < high; b++ {
			lo := b * BlockSize
			f(b, lo, min(lo+BlockSize, n))
		}
	})
}

// exclusiveScan replaces counts with their exclusive prefix sums and returns
// the total.
func exclusiveScan(counts []int64) int64 {
	var total int64
	for i, c := range counts {
		counts[i] = total
		total += c
	}
	return total
}

func checkCapacity(what string, need int64, have int) error {
	if need > int64(have) {
		return errors.Errorf("%s: need room for %d items, have %d", what, need, have)
	}
	return nil
}

// Sort orders data with a parallel comparison sort.  It needs no storage.
func Sort(data sort.Interface) Primitive {
	return func(storage []byte, storageBytes *int) error {
		if storage == nil {
			*storageBytes = 0
			return nil
		}
		sorts.Quicksort(data)
		return nil
	}
}

// Transform calls f for every index in [0, n) in parallel.  It needs no
// storage.
func Transform(n int, f func(i int)) Primitive {
	return func(storage []byte, storageBytes *int) error {
		if storage == nil {
			*storageBytes = 0
			return nil
		}
		forEachBlock(n, func(_, lo, hi int) {
			for i := lo; i < hi; i++ {
				f(i)
			}
		})
		return nil
	}
}

// RunLengthEncode groups items into maximal runs in which every item
// continues its predecessor according to continues.  The length of run r is
// written to lengths[r] and the number of runs to *numRuns.
func RunLengthEncode[T any](items []T, continues func(prev, next T) bool, lengths []int32, numRuns *int) Primitive {
	n := len(items)
	head := func(i int) bool {
		return i == 0 || !continues(items[i-1], items[i])
	}
	return func(storage []byte, storageBytes *int) error {
		if storage == nil {
			*storageBytes = blocks(n) * 8
			return nil
		}
		counts, _ := carve(storage, blocks(n))

		forEachBlock(n, func(b, lo, hi int) {
			var c int64
			for i := lo; i < hi; i++ {
				if head(i) {
					c++
				}
			}
			counts[b] = c
		})
		total := exclusiveScan(counts)
		if err := checkCapacity("run lengths", total, len(lengths)); err != nil {
			return err
		}

		// Each tile owns the runs that start inside it, even when they extend
		// past its end.
		forEachBlock(n, func(b, lo, hi int) {
			r := counts[b]
			for i := lo; i < hi; i++ {
				if !head(i) {
					continue
				}
				j := i + 1
				for j < n && !head(j) {
					j++
				}
				lengths[r] = int32(j - i)
				r++
				i = j - 1
			}
		})
		*numRuns = int(total)
		return nil
	}
}

// ExclusiveSum writes the exclusive prefix sums of in to out.  in and out may
// be the same slice.
func ExclusiveSum(in, out []int32) Primitive {
	n := len(in)
	return func(storage []byte, storageBytes *int) error {
		if storage == nil {
			*storageBytes = blocks(n) * 8
			return nil
		}
		if err := checkCapacity("prefix sums", int64(n), len(out)); err != nil {
			return err
		}
		partials, _ := carve(storage, blocks(n))

		forEachBlock(n, func(b, lo, hi int) {
			var sum int64
			for _, v := range in[lo:hi] {
				sum += int64(v)
			}
			partials[b] = sum
		})
		exclusiveScan(partials)
		forEachBlock(n, func(b, lo, hi int) {
			acc := partials[b]
			for i := lo; i < hi; i++ {
				v := in[i]
				out[i] = int32(acc)
				acc += int64(v)
			}
		})
		return nil
	}
}

// SelectIf writes, in ascending order, every index in [0, n) for which keep
// returns true to out and their count to *numSelected.
func SelectIf(n int, keep func(i int) bool, out []int32, numSelected *int) Primitive {
	return func(storage []byte, storageBytes *int) error {
		if storage == nil {
			*storageBytes = blocks(n) * 8
			return nil
		}
		counts, _ := carve(storage, blocks(n))

		forEachBlock(n, func(b, lo, hi int) {
			var c int64
			for i := lo; i < hi; i++ {
				if keep(i) {
					c++
				}
			}
			counts[b] = c
		})
		total := exclusiveScan(counts)
		if err := checkCapacity("selection", total, len(out)); err != nil {
			return err
		}
		forEachBlock(n, func(b, lo, hi int) {
			o := counts[b]
			for i := lo; i < hi; i++ {
				if keep(i) {
					out[o] = int32(i)
					o++
				}
			}
		})
		*numSelected = int(total)
		return nil
	}
}

// ReduceByKey collapses each run of consecutive indices in [0, n) sharing the
// same key into one segment.  The segment key goes to keys, the reduction of
// its values (folded left to right with reduce) to values and the segment
// count to *numSegments.
func ReduceByKey[K comparable, V any](n int, key func(i int) K, value func(i int) V, reduce func(acc, v V) V, keys []K, values []V, numSegments *int) Primitive {
	head := func(i int) bool {
		return i == 0 || key(i-1) != key(i)
	}
	return func(storage []byte, storageBytes *int) error {
		if storage == nil {
			*storageBytes = blocks(n) * 8
			return nil
		}
		counts, _ := carve(storage, blocks(n))

		forEachBlock(n, func(b, lo, hi int) {
			var c int64
			for i := lo; i < hi; i++ {
				if head(i) {
					c++
				}
			}
			counts[b] = c
		})
		total := exclusiveScan(counts)
		if err := checkCapacity("segment keys", total, len(keys)); err != nil {
			return err
		}
		if err := checkCapacity("segment values", total, len(values)); err != nil {
			return err
		}

		forEachBlock(n, func(b, lo, hi int) {
			s := counts[b]
			for i := lo; i < hi; i++ {
				if !head(i) {
					continue
				}
				k, acc := key(i), value(i)
				j := i + 1
				for ; j < n && key(j) == k; j++ {
					acc = reduce(acc, value(j))
				}
				keys[s], values[s] = k, acc
				s++
				i = j - 1
			}
		})
		*numSegments = int(total)
		return nil
	}
}
