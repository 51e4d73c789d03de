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

// Package device provides an ordered compute stream, a scratch arena and the
// data-parallel primitives the overlap pipeline is built from.
//
// Work is submitted to a Stream and runs asynchronously with respect to the
// caller but strictly in submission order.  Primitives that need temporary
// storage follow a two-phase protocol: they are first called with nil
// storage to report how many bytes they need, then called again with a
// buffer of at least that size.  Launch implements the protocol against a
// Scratch.
package device

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrStreamClosed is returned when work is submitted to a closed stream.
var ErrStreamClosed = errors.New("stream is closed")

// streamDepth bounds the number of operations that may be queued before
// Enqueue blocks.
const streamDepth = 64

type operation struct {
	run     func() error
	barrier chan error
}

// Stream executes operations one at a time in the order they were enqueued.
// A Stream must be created with NewStream and released with Close.  It is
// safe for use by a single issuing goroutine.
type Stream struct {
	ops  chan operation
	done chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

// NewStream returns a running Stream.
func NewStream() *Stream {
	s := &Stream{
		ops:  make(chan operation, streamDepth),
		done: make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *Stream) loop() {
	defer close(s.done)

	// The first failure since the last barrier.  Once set, the remaining
	// operations before the barrier are skipped.
	var failed error
	for op := range s.ops {
		if op.barrier != nil {
			op.barrier <- failed
			failed = nil
			continue
		}
		if failed != nil {
			continue
		}
		if err := run(op.run); err != nil {
			failed = err
		}
	}
}

// run executes fn and reports a panic as an error.
func run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("operation panicked: %v", r)
		}
	}()
	return fn()
}

// Enqueue schedules fn to run after every previously enqueued operation.
func (s *Stream) Enqueue(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	s.ops <- operation{run: fn}
	return nil
}

// Synchronize blocks until all previously enqueued operations have finished
// and returns the first error any of them reported.
func (s *Stream) Synchronize() error {
	barrier := make(chan error, 1)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStreamClosed
	}
	s.ops <- operation{barrier: barrier}
	s.mu.Unlock()
	return <-barrier
}

// Close waits for queued work to drain and stops the stream.  Errors from
// operations that were never synchronized are discarded.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ops)
		s.mu.Unlock()
		<-s.done
	})
}
