//
// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

// This is a command line utility which estimates the probabilities of the most
// popular (query, url) pairs of a search log with the Blender pipeline.
// Usage example:
// go run ./cmd/blender --optin_s_file=optin_s.json --optin_t_file=optin_t.json --client_file=clients.json --output_file=blended.txt
// Inputs are newline-delimited JSON. The opt-in files hold one [query, url]
// array per line. The client file holds either one [query, url] array per line,
// each a client of its own, or {clientId, query, url} objects grouped by client.
// Pass --noise=seeded --seed=N for a reproducible simulation over synthetic data.
package main

import (
	"context"
	"flag"

	log "github.com/golang/glog"
	"github.com/google/differential-privacy/blender/budget"
	"github.com/google/differential-privacy/blender/client"
	"github.com/google/differential-privacy/blender/dataio"
	"github.com/google/differential-privacy/blender/noise"
	"github.com/google/differential-privacy/blender/pipeline"
	"github.com/google/differential-privacy/blender/querydb"
)

var (
	epsilon             = flag.Float64("epsilon", budget.DefaultEpsilon, "Privacy parameter ε.")
	delta               = flag.Float64("delta", budget.DefaultDelta, "Privacy parameter δ.")
	maxOptinRecords     = flag.Float64("m_o", budget.DefaultMaxOptinRecords, "Maximum number of records per opt-in user.")
	maxClientRecords    = flag.Float64("m_c", budget.DefaultMaxClientRecords, "Maximum number of records per client.")
	clientQueryFraction = flag.Float64("f_c", budget.DefaultClientQueryFraction, "Fraction of the client budget spent on the query.")
	headListSize        = flag.Int64("head_list_size", budget.DefaultHeadListSize, "Maximum number of queries in the head list.")
	optinSFile          = flag.String("optin_s_file", "", "Opt-in dataset S, used to discover the head list.")
	optinTFile          = flag.String("optin_t_file", "", "Opt-in dataset T, used to estimate the head list probabilities.")
	clientFile          = flag.String("client_file", "", "Records of the client population.")
	outputFile          = flag.String("output_file", "", "Output file for the blended table.")
	distributionFile    = flag.String("distribution_file", "", "Optional output file for the CBOR-encoded head list sent to clients.")
	noiseKind           = flag.String("noise", "laplace", "Noise kind: laplace or seeded.")
	seed                = flag.Uint64("seed", 0, "Seed of the noise and the client coins when --noise=seeded.")
	workers             = flag.Int("workers", 0, "Number of clients randomized concurrently. 0 uses GOMAXPROCS.")
)

func main() {
	flag.Parse()

	log.Infof("Blender was run with arguments: optinSFile = %q, optinTFile = %q, clientFile = %q, outputFile = %q, noise = %q",
		*optinSFile, *optinTFile, *clientFile, *outputFile, *noiseKind)

	if *optinSFile == "" || *optinTFile == "" {
		log.Exit("Both opt-in files are required")
	}
	if *clientFile == "" {
		log.Exit("No client file was chosen")
	}
	if *outputFile == "" {
		log.Exit("No output file was chosen")
	}

	kind, err := noise.ParseKind(*noiseKind)
	if err != nil {
		log.Exitf("Couldn't parse --noise, err = %v", err)
	}
	coin := client.SecureCoin()
	if kind == noise.SeededLaplaceNoise {
		log.Warningf("Using seeded noise and coins (seed = %d): the output is not private", *seed)
		coin = client.SeededCoin(*seed)
	}

	optinS, err := dataio.LoadPairs(querydb.Counting, *optinSFile)
	if err != nil {
		log.Exit(err)
	}
	optinT, err := dataio.LoadPairs(querydb.Counting, *optinTFile)
	if err != nil {
		log.Exit(err)
	}
	clients, err := dataio.LoadClients(*clientFile)
	if err != nil {
		log.Exit(err)
	}

	opts := &pipeline.Options{
		Params: budget.Params{
			Epsilon:             *epsilon,
			Delta:               *delta,
			MaxOptinRecords:     *maxOptinRecords,
			MaxClientRecords:    *maxClientRecords,
			ClientQueryFraction: *clientQueryFraction,
			HeadListSize:        *headListSize,
		},
		Noise:   noise.ToNoise(kind, *seed),
		Coin:    coin,
		Workers: *workers,
	}
	res, err := pipeline.Run(context.Background(), opts, optinS, optinT, clients)
	if err != nil {
		log.Exitf("Couldn't run the pipeline, err = %v", err)
	}

	if *distributionFile != "" {
		if err := dataio.WriteDistribution(res.Distribution, *distributionFile); err != nil {
			log.Exit(err)
		}
	}
	if err := dataio.WriteResults(res.Blend, *outputFile); err != nil {
		log.Exit(err)
	}

	log.Infof("Successfully wrote the blended table to %q", *outputFile)
}
