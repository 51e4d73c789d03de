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
	"github.com/pkg/errors"
)

// Primitive is a data-parallel operation that may need temporary storage.
// When storage is nil it only writes the number of bytes it needs to
// *storageBytes.  Otherwise storage holds at least that many bytes and the
// operation runs.
type Primitive func(storage []byte, storageBytes *int) error

// Launch enqueues p on stream using the two-phase protocol: p is asked for
// its storage requirement, scratch is grown to fit and the real invocation
// is enqueued with the scratch buffer.
func Launch(stream *Stream, scratch Scratch, name string, p Primitive) error {
	var required int
	if err := p(nil, &required); err != nil {
		return errors.Wrapf(err, "sizing %s", name)
	}
	if err := scratch.EnsureCapacity(required); err != nil {
		return errors.Wrapf(err, "allocating %d scratch bytes for %s", required, name)
	}
	storage := scratch.Data()[:required]
	err := stream.Enqueue(func() error {
		if err := p(storage, &required); err != nil {
			return errors.Wrap(err, name)
		}
		return nil
	})
	return errors.Wrapf(err, "enqueueing %s", name)
}
