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

// This binary serves overlap detection on App Engine.  Anchor dumps named by
// a request are read with the caller's bearer token.
package main

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"google.golang.org/appengine"

	"github.com/googlegenomics/overlapper/internal/server"
	"github.com/googlegenomics/overlapper/internal/storage"
	"github.com/googlegenomics/overlapper/overlap"
)

func main() {
	chainers, _ := strconv.Atoi(os.Getenv("CHAINERS"))
	srv := server.New(server.Options{
		Chainers:         chainers,
		Chainer:          overlap.Options{ScratchLimit: 512 << 20},
		NewStorageClient: newAppEngineClient,
		MaxBody:          32 << 20,
	})
	if list := os.Getenv("BUCKET_WHITELIST"); list != "" {
		srv.Whitelist(strings.Split(list, ","))
	}
	http.Handle("/", srv.Router())
	appengine.Main()
}

func newAppEngineClient(req *http.Request) (storage.Client, error) {
	return storage.NewClientFromBearerToken(req.WithContext(appengine.NewContext(req)))
}
