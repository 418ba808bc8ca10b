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

// This is a command line utility which plays the client side of the Blender:
// it reads the head list distribution written by cmd/blender --distribution_file
// and locally randomizes the records of every client against it.
// Usage example:
// go run ./cmd/randomize --distribution_file=dist.cbor --client_file=clients.json --output_file=reports.json
// The reports are written as one [query, url] array per line.
package main

import (
	"context"
	"flag"

	log "github.com/golang/glog"
	"github.com/google/differential-privacy/blender/client"
	"github.com/google/differential-privacy/blender/dataio"
)

var (
	distributionFile = flag.String("distribution_file", "", "CBOR-encoded head list distribution.")
	clientFile       = flag.String("client_file", "", "Records of the client population.")
	outputFile       = flag.String("output_file", "", "Output file for the randomized reports.")
	maxClientRecords = flag.Int("m_c", 1, "Maximum number of records reported per client.")
	seed             = flag.Uint64("seed", 0, "Seed of the client coins. 0 uses secure randomness.")
	workers          = flag.Int("workers", 0, "Number of clients randomized concurrently. 0 uses GOMAXPROCS.")
)

func main() {
	flag.Parse()

	log.Infof("Randomize was run with arguments: distributionFile = %q, clientFile = %q, outputFile = %q",
		*distributionFile, *clientFile, *outputFile)

	if *distributionFile == "" {
		log.Exit("No distribution file was chosen")
	}
	if *clientFile == "" {
		log.Exit("No client file was chosen")
	}
	if *outputFile == "" {
		log.Exit("No output file was chosen")
	}

	dist, err := dataio.ReadDistribution(*distributionFile)
	if err != nil {
		log.Exit(err)
	}
	clients, err := dataio.LoadClients(*clientFile)
	if err != nil {
		log.Exit(err)
	}

	coin := client.SecureCoin()
	if *seed != 0 {
		log.Warningf("Using seeded coins (seed = %d): the reports are not private", *seed)
		coin = client.SeededCoin(*seed)
	}
	alg, err := client.NewLocalAlg(dist, coin, *maxClientRecords)
	if err != nil {
		log.Exitf("Couldn't create the local randomizer, err = %v", err)
	}
	reports, err := client.RandomizeAll(context.Background(), alg, clients, *workers)
	if err != nil {
		log.Exitf("Couldn't randomize the clients, err = %v", err)
	}
	if err := dataio.SaveExpanded(reports, *outputFile); err != nil {
		log.Exit(err)
	}

	log.Infof("Successfully wrote %d reports of %d clients", reports.Count(), len(clients))
}
