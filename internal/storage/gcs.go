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
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	gcs "cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

var errMissingOrInvalidToken = errors.New("missing or invalid token")

// GCSClient is Client for accessing Google Cloud Storage.
type GCSClient struct {
	*gcs.Client
}

// NewObjectHandle returns a handle to a specified object in the
// storage engine.
func (c GCSClient) NewObjectHandle(bucket, object string) ObjectHandle {
	return gcsObjectHandle{c.Bucket(bucket).Object(object)}
}

type gcsObjectHandle struct {
	*gcs.ObjectHandle
}

func (h gcsObjectHandle) NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	return h.ObjectHandle.NewRangeReader(ctx, offset, length)
}

// cachedClient creates one storage client on first use.
type cachedClient struct {
	once   sync.Once
	client *gcs.Client
	err    error
}

func (c *cachedClient) get(ctx context.Context, opts ...option.ClientOption) (Client, error) {
	c.once.Do(func() {
		c.client, c.err = gcs.NewClient(ctx, opts...)
	})
	if c.err != nil {
		return nil, fmt.Errorf("creating storage client: %v", c.err)
	}
	return GCSClient{c.client}, nil
}

var defaultClient, publicClient cachedClient

// NewDefaultClient returns a storage client that uses the application default
// credentials.  It caches the storage client for efficiency.
func NewDefaultClient(ctx context.Context) (Client, error) {
	return defaultClient.get(ctx)
}

// NewPublicClient returns a storage client that does not use any form of
// client authorization.  It can only be used to read publicly-readable
// objects. It caches the storage client for efficiency.
func NewPublicClient(ctx context.Context) (Client, error) {
	return publicClient.get(ctx, option.WithHTTPClient(http.DefaultClient))
}

// NewClientFromToken constructs a storage client that authorizes every
// request with the OAuth2 access token.
func NewClientFromToken(ctx context.Context, accessToken string) (Client, error) {
	if accessToken == "" {
		return nil, newError(ErrInvalidAuthentication, "", errMissingOrInvalidToken)
	}
	token := oauth2.Token{
		TokenType:   "Bearer",
		AccessToken: accessToken,
	}
	client, err := gcs.NewClient(ctx, option.WithTokenSource(oauth2.StaticTokenSource(&token)))
	if err != nil {
		return nil, fmt.Errorf("creating client with token source: %v", err)
	}
	return GCSClient{client}, nil
}

// NewClientFromBearerToken constructs a storage client that uses the OAuth2
// bearer token found in req to make storage requests.
func NewClientFromBearerToken(req *http.Request) (Client, error) {
	fields := strings.Split(req.Header.Get("Authorization"), " ")
	if len(fields) != 2 || fields[0] != "Bearer" {
		return nil, newError(ErrInvalidAuthentication, "", errMissingOrInvalidToken)
	}
	return NewClientFromToken(req.Context(), fields[1])
}

func newStorageError(path string, err error) error {
	if err == gcs.ErrObjectNotExist || err == gcs.ErrBucketNotExist {
		return newError(ErrNotFound, path, err)
	}
	if apiErr, ok := err.(*googleapi.Error); ok {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return newError(ErrInvalidAuthentication, path, err)
		case http.StatusForbidden:
			return newError(ErrPermissionDenied, path, err)
		case http.StatusNotFound:
			return newError(ErrNotFound, path, err)
		}
	}
	return fmt.Errorf("opening %s: %v", path, err)
}
