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

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gcs "cloud.google.com/go/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/googlegenomics/overlapper/internal/anchorfile"
	"github.com/googlegenomics/overlapper/internal/readindex"
	"github.com/googlegenomics/overlapper/internal/storage"
	"github.com/googlegenomics/overlapper/overlap"
)

type fakeClient map[string][]byte

func (c fakeClient) NewObjectHandle(bucket, object string) storage.ObjectHandle {
	return fakeObject{c[bucket+"/"+object]}
}

type fakeObject struct{ data []byte }

func (o fakeObject) NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	if o.data == nil {
		return nil, gcs.ErrObjectNotExist
	}
	return ioutil.NopCloser(bytes.NewReader(o.data)), nil
}

// forwardChain is three anchors between query read 0 and target read 1.
var forwardChain = []overlap.Anchor{
	{QueryReadID: 0, TargetReadID: 1, QueryPositionInRead: 300, TargetPositionInRead: 50},
	{QueryReadID: 0, TargetReadID: 1, QueryPositionInRead: 100, TargetPositionInRead: 10},
	{QueryReadID: 0, TargetReadID: 1, QueryPositionInRead: 200, TargetPositionInRead: 30},
}

var (
	queryReads  = []readindex.Read{{Name: "q0", Length: 1000}}
	targetReads = []readindex.Read{{Name: "t0", Length: 500}, {Name: "t1", Length: 800}}
)

func setupRouter(t *testing.T, client storage.Client) (*Server, *gin.Engine) {
	server := New(Options{
		Chainers: 2,
		NewStorageClient: func(*http.Request) (storage.Client, error) {
			return client, nil
		},
	})
	t.Cleanup(server.Close)
	return server, server.Router()
}

func post(t *testing.T, router *gin.Engine, url string, body interface{}) *httptest.ResponseRecorder {
	var data []byte
	switch body := body.(type) {
	case string:
		data = []byte(body)
	default:
		var err error
		data, err = json.Marshal(body)
		require.NoError(t, err)
	}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", url, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func expectError(t *testing.T, name string, code int, w *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, code, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "body: %s", w.Body.String())
	assert.Equal(t, name, body["error"])
	assert.NotEmpty(t, body["message"])
}

func TestOverlapsRoute(t *testing.T) {
	_, router := setupRouter(t, nil)

	w := post(t, router, "/overlaps", overlapsRequest{
		Anchors:     forwardChain,
		QueryReads:  queryReads,
		TargetReads: targetReads,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response overlapsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	_, err := uuid.Parse(response.ID)
	assert.NoError(t, err)
	assert.Equal(t, response.ID, w.Header().Get(requestIDHeader))

	want := []overlap.Overlap{{
		QueryReadID:         0,
		TargetReadID:        1,
		QueryStartPosition:  100,
		QueryEndPosition:    300,
		TargetStartPosition: 10,
		TargetEndPosition:   50,
		NumResidues:         3,
		RelativeStrand:      overlap.Forward,
		QueryReadName:       "q0",
		TargetReadName:      "t1",
		QueryReadLength:     1000,
		TargetReadLength:    800,
		Complete:            true,
	}}
	assert.Equal(t, want, response.Overlaps)
}

func TestOverlapsRoute_PAF(t *testing.T) {
	_, router := setupRouter(t, nil)

	w := post(t, router, "/overlaps?format=paf", overlapsRequest{
		Anchors:     forwardChain,
		QueryReads:  queryReads,
		TargetReads: targetReads,
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "q0\t1000\t100\t300\t+\tt1\t800\t10\t50\t3\t3\t255\n", w.Body.String())
}

func TestOverlapsRoute_NoAnchors(t *testing.T) {
	_, router := setupRouter(t, nil)

	w := post(t, router, "/overlaps", `{}`)
	require.Equal(t, http.StatusOK, w.Code)
	var response overlapsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.NotNil(t, response.Overlaps)
	assert.Empty(t, response.Overlaps)
}

func TestOverlapsRoute_AnchorsPath(t *testing.T) {
	var dump bytes.Buffer
	require.NoError(t, anchorfile.Write(&dump, forwardChain, anchorfile.BGZF))
	server, router := setupRouter(t, fakeClient{"bucket/run.anc": dump.Bytes()})
	server.Whitelist([]string{"bucket"})

	w := post(t, router, "/overlaps?format=paf", overlapsRequest{AnchorsPath: "gs://bucket/run.anc"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "0\t0\t100\t300\t+\t1\t0\t10\t50\t3\t3\t255\n", w.Body.String())

	t.Run("missing object", func(t *testing.T) {
		expectError(t, "NotFound", http.StatusNotFound,
			post(t, router, "/overlaps", overlapsRequest{AnchorsPath: "gs://bucket/missing.anc"}))
	})
	t.Run("bucket not whitelisted", func(t *testing.T) {
		expectError(t, "PermissionDenied", http.StatusForbidden,
			post(t, router, "/overlaps", overlapsRequest{AnchorsPath: "gs://other/run.anc"}))
	})
	t.Run("local path", func(t *testing.T) {
		expectError(t, "InvalidInput", http.StatusBadRequest,
			post(t, router, "/overlaps", overlapsRequest{AnchorsPath: "/etc/passwd"}))
	})
	t.Run("inline anchors too", func(t *testing.T) {
		expectError(t, "InvalidInput", http.StatusBadRequest,
			post(t, router, "/overlaps", overlapsRequest{Anchors: forwardChain, AnchorsPath: "gs://bucket/run.anc"}))
	})
}

func TestOverlapsRoute_StorageDisabled(t *testing.T) {
	server := New(Options{Chainers: 1})
	defer server.Close()

	expectError(t, "PermissionDenied", http.StatusForbidden,
		post(t, server.Router(), "/overlaps", overlapsRequest{AnchorsPath: "gs://bucket/run.anc"}))
}

func TestOverlapsRoute_InvalidInputs(t *testing.T) {
	_, router := setupRouter(t, nil)

	testCases := []struct {
		name string
		body interface{}
	}{
		{"malformed json", `{"anchors": [`},
		{"empty body", ``},
		{"unknown target read", overlapsRequest{Anchors: forwardChain, QueryReads: queryReads, TargetReads: targetReads[:1]}},
		{"unknown query read", overlapsRequest{
			Anchors:    []overlap.Anchor{{QueryReadID: 5, TargetReadID: 0}},
			QueryReads: queryReads,
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			expectError(t, "InvalidInput", http.StatusBadRequest, post(t, router, "/overlaps", tc.body))
		})
	}
}

func TestOverlapsRoute_UnsupportedFormat(t *testing.T) {
	_, router := setupRouter(t, nil)

	for _, format := range []string{"sam", "PAF", "xml"} {
		t.Run(format, func(t *testing.T) {
			expectError(t, "UnsupportedFormat", http.StatusBadRequest,
				post(t, router, "/overlaps?format="+format, overlapsRequest{Anchors: forwardChain}))
		})
	}
}

func TestOverlapsRoute_BodyLimit(t *testing.T) {
	server := New(Options{Chainers: 1, MaxBody: 16})
	defer server.Close()

	body := `{"anchors": [` + strings.Repeat(`{"query_read_id": 0},`, 10) + `{}]}`
	expectError(t, "InvalidInput", http.StatusBadRequest, post(t, server.Router(), "/overlaps", body))
}

func TestHealthRoute(t *testing.T) {
	_, router := setupRouter(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/healthz", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}
