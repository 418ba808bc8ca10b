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

// Package pipeline runs the Blender stages end to end: head list discovery on
// opt-in dataset S, refinement, truncation and finalization on opt-in dataset
// T, local randomization of the client population against the exported head
// list, client-side estimation and blending.
package pipeline

import (
	"context"
	"fmt"

	log "github.com/golang/glog"
	"github.com/google/differential-privacy/blender/blend"
	"github.com/google/differential-privacy/blender/budget"
	"github.com/google/differential-privacy/blender/client"
	"github.com/google/differential-privacy/blender/headlist"
	"github.com/google/differential-privacy/blender/noise"
	"github.com/google/differential-privacy/blender/querydb"
)

// Options configures Run.
type Options struct {
	// Params holds the privacy parameters. Zero-valued fields take their
	// defaults, see budget.Params.
	Params budget.Params
	// Noise is added to the opt-in counts and probabilities. Defaults to
	// noise.Laplace().
	Noise noise.Noise
	// Coin drives local randomization. Defaults to client.SecureCoin().
	Coin client.Coin
	// Workers bounds the number of clients randomized concurrently. Zero
	// uses GOMAXPROCS.
	Workers int
}

// Result holds the output of every stage of a run.
type Result struct {
	HeadList        *headlist.HeadList
	Distribution    *headlist.Distribution
	Reports         *querydb.Database
	ClientEstimates *querydb.Database
	Blend           *blend.Result
}

// Run executes the pipeline over opt-in datasets optinS and optinT and the
// records of the client population, one slice per client.
func Run(ctx context.Context, opts *Options, optinS, optinT *querydb.Database, clients [][]client.Record) (*Result, error) {
	opts = opts.withDefaults()
	if optinS == nil || optinT == nil {
		return nil, fmt.Errorf("pipeline.Run: both opt-in datasets are required")
	}
	b, err := budget.New(&opts.Params)
	if err != nil {
		return nil, err
	}
	log.Infof("Running with %s", b)
	summarize("opt-in S", optinS)
	summarize("opt-in T", optinT)

	h, err := headlist.New(b, opts.Noise)
	if err != nil {
		return nil, err
	}
	if err := h.Discover(optinS); err != nil {
		return nil, fmt.Errorf("pipeline.Run: couldn't discover the head list, err = %w", err)
	}
	log.Infof("Discovered %d queries and %d pairs", h.NumQueries(), h.Count())
	if err := h.EstimateOptinProbabilities(optinT); err != nil {
		return nil, fmt.Errorf("pipeline.Run: couldn't estimate opt-in probabilities, err = %w", err)
	}
	log.Infof("Finalized head list: %d queries, %d pairs, τ = %f", h.NumQueries(), h.Count(), h.Tau())

	dist, err := h.Distribution()
	if err != nil {
		return nil, err
	}
	alg, err := client.NewLocalAlg(dist, opts.Coin, int(b.MaxClientRecords()))
	if err != nil {
		return nil, err
	}
	reports, err := client.RandomizeAll(ctx, alg, clients, opts.Workers)
	if err != nil {
		return nil, err
	}
	summarize("client reports", reports)

	estimates, err := client.EstimateProbabilities(h, reports)
	if err != nil {
		return nil, fmt.Errorf("pipeline.Run: couldn't estimate client probabilities, err = %w", err)
	}
	if log.V(1) {
		for _, q := range estimates.Queries() {
			b, _ := estimates.Bucket(q)
			p, v, _ := b.QueryEstimate()
			log.Infof("Client estimate of query %q: p = %f, var = %g", q, p, v)
		}
	}
	res, err := blend.Blend(h, estimates)
	if err != nil {
		return nil, fmt.Errorf("pipeline.Run: couldn't blend, err = %w", err)
	}
	log.Infof("Blended %d pairs", res.Database().NumPairs())
	return &Result{
		HeadList:        h,
		Distribution:    dist,
		Reports:         reports,
		ClientEstimates: estimates,
		Blend:           res,
	}, nil
}

func (o *Options) withDefaults() *Options {
	out := Options{}
	if o != nil {
		out = *o
	}
	if out.Noise == nil {
		out.Noise = noise.Laplace()
	}
	if out.Coin == nil {
		out.Coin = client.SecureCoin()
	}
	return &out
}

func summarize(name string, db *querydb.Database) {
	log.Infof("%s: %d records, %d queries, %d pairs", name, db.Count(), db.NumQueries(), db.NumPairs())
}
