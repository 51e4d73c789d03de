// Copyright 2017 Google Inc.
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

// Package storage opens input files from the local filesystem or from Google
// Cloud Storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const gcsScheme = "gs://"

var (
	// ErrNotFound is reported when an input does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied is reported when an input may not be read.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidAuthentication is reported for missing or rejected credentials.
	ErrInvalidAuthentication = errors.New("invalid authentication")

	errInvalidPath = errors.New("invalid or unspecified object path")
)

// Client is an interface to the storage engine.
type Client interface {
	// NewObjectHandle returns a handle to a specified object in
	// the storage engine.
	NewObjectHandle(bucket, object string) ObjectHandle
}

// ObjectHandle is an interface to the actual storage engine in use.
type ObjectHandle interface {
	// NewRangeReader returns a reader that reads from a specified
	// range. Length of -1 means to capture everything until the
	// end.
	NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error)
}

// IsRemote reports whether path names a Cloud Storage object.
func IsRemote(path string) bool {
	return strings.HasPrefix(path, gcsScheme)
}

// ParsePath splits a gs://bucket/object path into its bucket and object.
func ParsePath(path string) (string, string, error) {
	if !IsRemote(path) {
		return "", "", errInvalidPath
	}
	if parts := strings.SplitN(path[len(gcsScheme):], "/", 2); len(parts) == 2 {
		if parts[0] != "" && parts[1] != "" {
			return parts[0], parts[1], nil
		}
	}
	return "", "", errInvalidPath
}

// Open returns a reader for path.  Paths starting with gs:// are read through
// client, which may be nil when only local paths are used.
func Open(ctx context.Context, client Client, path string) (io.ReadCloser, error) {
	if !IsRemote(path) {
		f, err := os.Open(path)
		if err != nil {
			return nil, newFileError(path, err)
		}
		return f, nil
	}

	bucket, object, err := ParsePath(path)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %v", path, err)
	}
	if client == nil {
		return nil, newError(ErrInvalidAuthentication, path, errors.New("no storage client"))
	}
	r, err := client.NewObjectHandle(bucket, object).NewRangeReader(ctx, 0, -1)
	if err != nil {
		return nil, newStorageError(path, err)
	}
	return r, nil
}

// Error describes a failure to open an input.  It matches one of
// ErrNotFound, ErrPermissionDenied or ErrInvalidAuthentication under
// errors.Is.
type Error struct {
	Kind  error
	Path  string
	Cause error
}

func (err *Error) Error() string {
	return fmt.Sprintf("%s: %v: %v", err.Path, err.Kind, err.Cause)
}

// Is reports whether target is the kind of err.
func (err *Error) Is(target error) bool {
	return target == err.Kind
}

// Unwrap returns the underlying cause.
func (err *Error) Unwrap() error {
	return err.Cause
}

func newError(kind error, path string, cause error) error {
	return &Error{Kind: kind, Path: path, Cause: cause}
}

func newFileError(path string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return newError(ErrNotFound, path, err)
	case errors.Is(err, os.ErrPermission):
		return newError(ErrPermissionDenied, path, err)
	}
	return fmt.Errorf("opening %s: %v", path, err)
}
