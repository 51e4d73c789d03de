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

// This binary serves overlap detection over HTTP.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/googlegenomics/overlapper/internal/config"
	"github.com/googlegenomics/overlapper/internal/server"
	"github.com/googlegenomics/overlapper/internal/storage"
	"github.com/googlegenomics/overlapper/overlap"
)

var (
	configPath = flag.String("config", "", "optional TOML settings file; flags override its values")

	port     = flag.Int("port", 8080, "HTTP service port")
	chainers = flag.Int("chainers", 0, "requests processed concurrently; defaults to GOMAXPROCS")
	buckets  = flag.String("buckets", "", "if set, restricts anchors_path reads to a comma-separated list of buckets")

	secure    = flag.Bool("secure", false, "serve in HTTPS-only mode and forward client bearer tokens")
	httpsCert = flag.String("https_cert", "", "HTTPS certificate file")
	httpsKey  = flag.String("https_key", "", "HTTPS key file")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Server.Port = *port
		case "chainers":
			cfg.Server.Chainers = *chainers
		case "buckets":
			cfg.Server.Buckets = strings.Split(*buckets, ",")
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid settings: %v", err)
	}

	if *secure && (*httpsCert == "" || *httpsKey == "") {
		log.Fatalf("You must specify both -https_cert and -https_key in secure mode.")
	}

	newStorageClient := func(req *http.Request) (storage.Client, error) {
		return storage.NewPublicClient(req.Context())
	}
	if *secure {
		newStorageClient = storage.NewClientFromBearerToken
	}

	options := overlap.Options{ScratchLimit: cfg.Chainer.ScratchLimit}
	if cfg.Chainer.Verbose {
		options.Logf = log.Printf
	}
	srv := server.New(server.Options{
		Chainers:         cfg.Server.Chainers,
		Chainer:          options,
		NewStorageClient: newStorageClient,
		MaxBody:          cfg.Server.MaxBody,
	})
	defer srv.Close()
	if len(cfg.Server.Buckets) > 0 {
		srv.Whitelist(cfg.Server.Buckets)
	}

	router := srv.Router()
	address := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Serving overlaps on %s with %d chainers", address, cfg.Server.Chainers)
	if *secure {
		if err := router.RunTLS(address, *httpsCert, *httpsKey); err != nil {
			log.Fatalf("HTTPS server returned an error: %v", err)
		}
	} else {
		if err := router.Run(address); err != nil {
			log.Fatalf("HTTP server returned an error: %v", err)
		}
	}
}
