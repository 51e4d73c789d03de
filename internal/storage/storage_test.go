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

package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

type fakeClient map[string][]byte

func (c fakeClient) NewObjectHandle(bucket, object string) ObjectHandle {
	return fakeObject{c, bucket + "/" + object}
}

type fakeObject struct {
	client fakeClient
	name   string
}

func (o fakeObject) NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	data, ok := o.client[o.name]
	if !ok {
		return nil, gcs.ErrObjectNotExist
	}
	return ioutil.NopCloser(bytes.NewReader(data)), nil
}

type failingClient struct{ err error }

func (c failingClient) NewObjectHandle(bucket, object string) ObjectHandle { return c }

func (c failingClient) NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	return nil, c.err
}

func TestParsePath(t *testing.T) {
	testCases := []struct {
		path, bucket, object string
		valid                bool
	}{
		{"gs://bucket/object", "bucket", "object", true},
		{"gs://bucket/dir/object.anc", "bucket", "dir/object.anc", true},
		{"gs://bucket", "", "", false},
		{"gs://bucket/", "", "", false},
		{"gs:///object", "", "", false},
		{"/local/file", "", "", false},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			bucket, object, err := ParsePath(tc.path)
			if (err == nil) != tc.valid {
				t.Fatalf("ParsePath(%q) returned error %v, want valid=%v", tc.path, err, tc.valid)
			}
			if bucket != tc.bucket || object != tc.object {
				t.Errorf("ParsePath(%q) = (%q, %q), want (%q, %q)", tc.path, bucket, object, tc.bucket, tc.object)
			}
		})
	}
}

func TestOpen_Local(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reads.tsv")
	if err := os.WriteFile(path, []byte("read0\t10\n"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	r, err := Open(context.Background(), nil, path)
	if err != nil {
		t.Fatalf("Open() returned error: %v", err)
	}
	defer r.Close()
	got, err := ioutil.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() returned error: %v", err)
	}
	if string(got) != "read0\t10\n" {
		t.Errorf("Wrong contents: got %q", got)
	}

	if _, err := Open(context.Background(), nil, path+".missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open(missing) returned %v, want ErrNotFound", err)
	}
}

func TestOpen_Remote(t *testing.T) {
	ctx := context.Background()
	client := fakeClient{"bucket/anchors.anc": []byte("ANC\x01")}

	r, err := Open(ctx, client, "gs://bucket/anchors.anc")
	if err != nil {
		t.Fatalf("Open() returned error: %v", err)
	}
	got, _ := ioutil.ReadAll(r)
	r.Close()
	if string(got) != "ANC\x01" {
		t.Errorf("Wrong contents: got %q", got)
	}

	if _, err := Open(ctx, client, "gs://bucket/other.anc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open(missing object) returned %v, want ErrNotFound", err)
	}
	if _, err := Open(ctx, nil, "gs://bucket/anchors.anc"); !errors.Is(err, ErrInvalidAuthentication) {
		t.Errorf("Open(nil client) returned %v, want ErrInvalidAuthentication", err)
	}
	if _, err := Open(ctx, client, "gs://bucket"); err == nil {
		t.Errorf("Open(invalid path) succeeded")
	}
}

func TestOpen_StorageErrors(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want error
	}{
		{"unauthorized", &googleapi.Error{Code: http.StatusUnauthorized}, ErrInvalidAuthentication},
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden}, ErrPermissionDenied},
		{"missing bucket", gcs.ErrBucketNotExist, ErrNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Open(context.Background(), failingClient{tc.err}, "gs://bucket/object")
			if !errors.Is(err, tc.want) {
				t.Errorf("Open() returned %v, want %v", err, tc.want)
			}
		})
	}

	_, err := Open(context.Background(), failingClient{&googleapi.Error{Code: http.StatusInternalServerError}}, "gs://bucket/object")
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Open() returned %v, want an unclassified error", err)
	}
}

func TestNewClientFromBearerToken_Invalid(t *testing.T) {
	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer a b"} {
		req, _ := http.NewRequest("GET", "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if _, err := NewClientFromBearerToken(req); !errors.Is(err, ErrInvalidAuthentication) {
			t.Errorf("NewClientFromBearerToken(%q) returned %v, want ErrInvalidAuthentication", header, err)
		}
	}
}
