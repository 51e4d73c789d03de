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
	"testing"

	"github.com/pkg/errors"
)

func TestArena_GrowOnly(t *testing.T) {
	a := NewArena(0)
	if a.Data() == nil {
		t.Fatalf("Data() of empty arena is nil")
	}

	testCases := []struct {
		request, want int
	}{
		{0, 8},
		{13, 16},
		{1024, 1024},
		{100, 1024},
		{1025, 1032},
	}
	for _, tc := range testCases {
		if err := a.EnsureCapacity(tc.request); err != nil {
			t.Fatalf("EnsureCapacity(%d) returned error: %v", tc.request, err)
		}
		if got := a.Len(); got != tc.want {
			t.Errorf("EnsureCapacity(%d): got %d bytes, want %d", tc.request, got, tc.want)
		}
		if got := len(a.Data()); got != a.Len() {
			t.Errorf("len(Data()) = %d, want %d", got, a.Len())
		}
	}
}

func TestArena_Limit(t *testing.T) {
	a := NewArena(64)
	if err := a.EnsureCapacity(64); err != nil {
		t.Fatalf("EnsureCapacity(64) returned error: %v", err)
	}
	err := a.EnsureCapacity(65)
	if errors.Cause(err) != ErrOutOfMemory {
		t.Fatalf("EnsureCapacity(65): got %v, want %v", err, ErrOutOfMemory)
	}
	if got := a.Len(); got != 64 {
		t.Errorf("Failed request changed arena size to %d", got)
	}
	if err := a.EnsureCapacity(-1); err == nil {
		t.Errorf("EnsureCapacity(-1) succeeded")
	}
}

type recordingScratch struct {
	Arena
	requests []int
}

func (s *recordingScratch) EnsureCapacity(n int) error {
	s.requests = append(s.requests, n)
	return s.Arena.EnsureCapacity(n)
}

func TestLaunch_TwoPhase(t *testing.T) {
	stream := NewStream()
	defer stream.Close()
	scratch := &recordingScratch{Arena: *NewArena(0)}

	var calls []int
	p := func(storage []byte, storageBytes *int) error {
		if storage == nil {
			calls = append(calls, -1)
			*storageBytes = 40
			return nil
		}
		calls = append(calls, len(storage))
		return nil
	}
	if err := Launch(stream, scratch, "test", p); err != nil {
		t.Fatalf("Launch() returned error: %v", err)
	}
	if err := stream.Synchronize(); err != nil {
		t.Fatalf("Synchronize() returned error: %v", err)
	}

	if len(calls) != 2 || calls[0] != -1 || calls[1] != 40 {
		t.Errorf("Wrong primitive calls: got %v, want [-1 40]", calls)
	}
	if len(scratch.requests) != 1 || scratch.requests[0] != 40 {
		t.Errorf("Wrong capacity requests: got %v, want [40]", scratch.requests)
	}
}

func TestLaunch_ZeroStorage(t *testing.T) {
	stream := NewStream()
	defer stream.Close()

	ran := false
	err := Launch(stream, NewArena(0), "transform", Transform(1, func(int) { ran = true }))
	if err != nil {
		t.Fatalf("Launch() returned error: %v", err)
	}
	if err := stream.Synchronize(); err != nil {
		t.Fatalf("Synchronize() returned error: %v", err)
	}
	if !ran {
		t.Errorf("Primitive needing no storage was not run")
	}
}

func TestLaunch_OutOfMemory(t *testing.T) {
	stream := NewStream()
	defer stream.Close()

	lengths := make([]int32, 10*BlockSize)
	var runs int
	p := RunLengthEncode(make([]int, 10*BlockSize), func(a, b int) bool { return a == b }, lengths, &runs)
	if err := Launch(stream, NewArena(8), "encode", p); errors.Cause(err) != ErrOutOfMemory {
		t.Fatalf("Launch(): got %v, want %v", err, ErrOutOfMemory)
	}
}
