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

// Package server exposes overlap detection over HTTP.
//
// POST /overlaps takes a JSON body holding either inline anchors or the
// gs:// path of an anchor dump, plus optional read tables for each side,
// and answers with the overlaps ordered by query and target read.  The
// response is JSON unless format=paf is requested.
package server

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/googlegenomics/overlapper/internal/anchorfile"
	"github.com/googlegenomics/overlapper/internal/paf"
	"github.com/googlegenomics/overlapper/internal/readindex"
	"github.com/googlegenomics/overlapper/internal/storage"
	"github.com/googlegenomics/overlapper/overlap"
)

const (
	overlapsPath = "/overlaps"
	healthPath   = "/healthz"

	requestIDHeader = "X-Request-Id"
)

// NewStorageClientFunc is the type of function that constructs the storage
// client used to read anchor dumps named by the incoming request.
type NewStorageClientFunc func(*http.Request) (storage.Client, error)

// Options configures a Server.
type Options struct {
	// Chainers is the number of requests processed concurrently.
	Chainers int
	// Chainer configures each pooled chainer.
	Chainer overlap.Options
	// NewStorageClient is called for requests naming an anchors_path.  When
	// nil such requests are rejected.
	NewStorageClient NewStorageClientFunc
	// MaxBody caps the request body size in bytes; zero means no limit.
	MaxBody int64
}

// Server answers overlap requests from a fixed pool of chainers.  Must be
// created with New and released with Close.
type Server struct {
	opts      Options
	chainers  chan *overlap.Chainer
	whitelist map[string]bool
}

// New returns a Server holding opts.Chainers independent chainers.
func New(opts Options) *Server {
	if opts.Chainers <= 0 {
		opts.Chainers = 1
	}
	server := &Server{
		opts:      opts,
		chainers:  make(chan *overlap.Chainer, opts.Chainers),
		whitelist: make(map[string]bool),
	}
	for i := 0; i < opts.Chainers; i++ {
		server.chainers <- overlap.NewChainer(opts.Chainer)
	}
	return server
}

// Close releases every chainer.  It waits for requests in flight.
func (server *Server) Close() {
	for i := 0; i < server.opts.Chainers; i++ {
		(<-server.chainers).Close()
	}
}

// Whitelist adds buckets to the set of buckets which the server is allowed to
// access. If Whitelist is never called for a given Server then reads from any
// bucket are allowed.
func (server *Server) Whitelist(buckets []string) {
	for _, bucket := range buckets {
		server.whitelist[bucket] = true
	}
}

// Register adds the server's routes to r.
func (server *Server) Register(r gin.IRoutes) {
	r.POST(overlapsPath, server.serveOverlaps)
	r.GET(healthPath, func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
}

// Router returns a gin engine with the default middleware serving the
// server's routes.
func (server *Server) Router() *gin.Engine {
	router := gin.Default()
	server.Register(router)
	return router
}

type overlapsRequest struct {
	Anchors     []overlap.Anchor `json:"anchors"`
	AnchorsPath string           `json:"anchors_path"`
	QueryReads  []readindex.Read `json:"query_reads"`
	TargetReads []readindex.Read `json:"target_reads"`
}

type overlapsResponse struct {
	ID       string            `json:"id"`
	Overlaps []overlap.Overlap `json:"overlaps"`
}

func (server *Server) serveOverlaps(c *gin.Context) {
	id := uuid.New().String()
	c.Header(requestIDHeader, id)
	start := time.Now()

	format := c.DefaultQuery("format", "json")
	if format != "json" && format != "paf" {
		writeError(c, newUnsupportedFormatError(fmt.Errorf("unsupported format %q", format)))
		return
	}

	if server.opts.MaxBody > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, server.opts.MaxBody)
	}
	var request overlapsRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		writeError(c, newInvalidInputError("decoding request", err))
		return
	}

	anchors, err := server.anchors(c, &request)
	if err != nil {
		writeError(c, err)
		return
	}

	var (
		query  = readindex.New(request.QueryReads)
		target = readindex.New(request.TargetReads)
	)
	if err := checkReadIDs(anchors, query, target); err != nil {
		writeError(c, newInvalidInputError("checking anchors", err))
		return
	}

	var chainer *overlap.Chainer
	select {
	case chainer = <-server.chainers:
	case <-c.Request.Context().Done():
		writeError(c, newUnavailableError(errBusy))
		return
	}
	overlaps, err := chainer.Overlaps(anchors, query, target)
	server.chainers <- chainer
	if err != nil {
		log.Printf("Request %s failed: %v", id, err)
		writeError(c, fmt.Errorf("finding overlaps: %v", err))
		return
	}
	overlap.SortByReadPair(overlaps)
	log.Printf("Request %s: %d anchors, %d overlaps in %v", id, len(anchors), len(overlaps), time.Since(start))

	if format == "paf" {
		var buf bytes.Buffer
		if err := paf.NewWriter(&buf).WriteAll(overlaps); err != nil {
			writeError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", buf.Bytes())
		return
	}
	if overlaps == nil {
		overlaps = []overlap.Overlap{}
	}
	c.JSON(http.StatusOK, overlapsResponse{ID: id, Overlaps: overlaps})
}

// anchors returns the inline anchors of request or loads the dump it names.
func (server *Server) anchors(c *gin.Context, request *overlapsRequest) ([]overlap.Anchor, error) {
	if request.AnchorsPath == "" {
		return request.Anchors, nil
	}
	if len(request.Anchors) > 0 {
		return nil, newInvalidInputError("parsing request", errAmbiguousAnchors)
	}

	bucket, _, err := storage.ParsePath(request.AnchorsPath)
	if err != nil {
		return nil, newInvalidInputError("parsing anchors_path", errNotRemote)
	}
	if err := server.checkWhitelist(bucket); err != nil {
		return nil, newPermissionDeniedError("checking whitelist", err)
	}
	if server.opts.NewStorageClient == nil {
		return nil, newPermissionDeniedError("creating client", fmt.Errorf("storage access is disabled"))
	}
	client, err := server.opts.NewStorageClient(c.Request)
	if err != nil {
		return nil, newStorageError("creating client", err)
	}

	r, err := storage.Open(c.Request.Context(), client, request.AnchorsPath)
	if err != nil {
		return nil, newStorageError("opening anchors", err)
	}
	defer r.Close()

	anchors, err := anchorfile.Read(r)
	if err != nil {
		return nil, newInvalidInputError("reading anchors", err)
	}
	return anchors, nil
}

func (server *Server) checkWhitelist(bucket string) error {
	if len(server.whitelist) == 0 || server.whitelist[bucket] {
		return nil
	}
	return fmt.Errorf("access to bucket %s is not allowed", bucket)
}

// checkReadIDs verifies that every anchor names a read of each non-empty
// table.  An empty table leaves that side unresolved.
func checkReadIDs(anchors []overlap.Anchor, query, target *readindex.Index) error {
	for i, a := range anchors {
		if query.Len() > 0 && !query.Contains(a.QueryReadID) {
			return fmt.Errorf("anchor %d: unknown query read %d", i, a.QueryReadID)
		}
		if target.Len() > 0 && !target.Contains(a.TargetReadID) {
			return fmt.Errorf("anchor %d: unknown target read %d", i, a.TargetReadID)
		}
	}
	return nil
}
