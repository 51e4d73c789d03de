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
	"unsafe"

	"github.com/pkg/errors"
)

// ErrOutOfMemory is returned when an Arena cannot grow within its limit.
var ErrOutOfMemory = errors.New("scratch arena exhausted")

// Scratch supplies temporary storage to primitives.
type Scratch interface {
	// EnsureCapacity grows the storage to at least n bytes.  It never
	// shrinks it.
	EnsureCapacity(n int) error
	// Data returns the current storage.  The result is never nil and is
	// aligned for 8-byte words.
	Data() []byte
}

// Arena is a grow-only Scratch.  Growing replaces the backing buffer;
// operations already holding the previous buffer keep using it.
type Arena struct {
	words []uint64
	limit int
}

// NewArena returns an empty Arena.  A positive limit caps its size in bytes.
func NewArena(limit int) *Arena {
	return &Arena{words: make([]uint64, 1), limit: limit}
}

// EnsureCapacity implements Scratch.
func (a *Arena) EnsureCapacity(n int) error {
	if n < 0 {
		return errors.Errorf("negative scratch request: %d", n)
	}
	if n <= a.Len() {
		return nil
	}
	if a.limit > 0 && n > a.limit {
		return errors.Wrapf(ErrOutOfMemory, "requested %d bytes, limit %d", n, a.limit)
	}
	a.words = make([]uint64, wordsFor(n))
	return nil
}

// Data implements Scratch.
func (a *Arena) Data() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&a.words[0])), len(a.words)*8)
}

// Len returns the arena size in bytes.
func (a *Arena) Len() int {
	return len(a.words) * 8
}

func wordsFor(n int) int {
	return (n + 7) / 8
}

// carve splits the leading count int64 values off storage.
func carve(storage []byte, count int) ([]int64, []byte) {
	if count == 0 {
		return nil, storage
	}
	n := count * 8
	return unsafe.Slice((*int64)(unsafe.Pointer(&storage[0])), count), storage[n:]
}
