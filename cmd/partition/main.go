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

// This is a command line utility which splits a raw search log into the two
// opt-in datasets and the client population used by cmd/blender.
// Usage example:
// go run ./cmd/partition --raw_log_file=log.json --optin_s_output_file=optin_s.json --optin_t_output_file=optin_t.json --client_output_file=clients.json
// The raw log holds one {"clientId": ..., "query": ..., "url": ...} object per line.
package main

import (
	"flag"

	log "github.com/golang/glog"
	"github.com/google/differential-privacy/blender/dataio"
)

var (
	rawLogFile       = flag.String("raw_log_file", "", "Raw query log, one JSON object per line.")
	optinFraction    = flag.Float64("optin_fraction", 0.05, "Fraction of users that opt in.")
	optinSFraction   = flag.Float64("optin_s_fraction", 0.95, "Fraction of opt-in users assigned to dataset S.")
	maxOptinRecords  = flag.Int("m_o", 1, "Maximum number of records kept per opt-in user.")
	maxClientRecords = flag.Int("m_c", 1, "Maximum number of records kept per client.")
	salt             = flag.String("salt", "", "Salt mixed into the user hash.")
	optinSOutputFile = flag.String("optin_s_output_file", "", "Output file for opt-in dataset S.")
	optinTOutputFile = flag.String("optin_t_output_file", "", "Output file for opt-in dataset T.")
	clientOutputFile = flag.String("client_output_file", "", "Output file for the client population.")
)

func main() {
	flag.Parse()

	log.Infof("Partition was run with arguments: rawLogFile = %q, optinFraction = %f, optinSFraction = %f",
		*rawLogFile, *optinFraction, *optinSFraction)

	if *rawLogFile == "" {
		log.Exit("No raw log file was chosen")
	}
	if *optinSOutputFile == "" || *optinTOutputFile == "" || *clientOutputFile == "" {
		log.Exit("All three output files are required")
	}

	records, err := dataio.ReadRawLogFile(*rawLogFile)
	if err != nil {
		log.Exit(err)
	}
	p, err := dataio.PartitionLog(records, &dataio.PartitionOptions{
		OptinFraction:    *optinFraction,
		OptinSFraction:   *optinSFraction,
		MaxOptinRecords:  *maxOptinRecords,
		MaxClientRecords: *maxClientRecords,
		Salt:             *salt,
	})
	if err != nil {
		log.Exitf("Couldn't partition the raw log, err = %v", err)
	}
	if err := dataio.WritePartition(p, *optinSOutputFile, *optinTOutputFile, *clientOutputFile); err != nil {
		log.Exit(err)
	}

	log.Infof("Successfully partitioned %d records", len(records))
}
