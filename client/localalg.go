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

// Package client implements the client half of the Blender: the local
// randomization every client runs over its own records, and the server-side
// estimator that inverts it on the aggregated reports.
package client

import (
	"context"
	"fmt"
	"iter"
	"runtime"
	"slices"

	log "github.com/golang/glog"
	"github.com/google/differential-privacy/blender/headlist"
	"github.com/google/differential-privacy/blender/querydb"
	"golang.org/x/sync/errgroup"
)

// Record is a single (query, url) pair held by a client.
type Record struct {
	Query string `json:"query"`
	URL   string `json:"url"`
}

// LocalAlg randomizes a client's records against a head list distribution.
// It only reads the distribution, so one LocalAlg can serve many clients
// concurrently.
type LocalAlg struct {
	dist       *headlist.Distribution
	queries    []string
	coin       Coin
	maxRecords int
}

// NewLocalAlg returns a LocalAlg over dist. Only the first maxRecords records
// of a client (m_c) are reported.
func NewLocalAlg(dist *headlist.Distribution, coin Coin, maxRecords int) (*LocalAlg, error) {
	if dist == nil {
		return nil, fmt.Errorf("client.NewLocalAlg: distribution is nil")
	}
	if err := dist.Validate(); err != nil {
		return nil, fmt.Errorf("client.NewLocalAlg: %w", err)
	}
	if coin == nil {
		return nil, fmt.Errorf("client.NewLocalAlg: coin is nil")
	}
	if maxRecords < 1 {
		return nil, fmt.Errorf("client.NewLocalAlg: maxRecords is %d, must be at least 1", maxRecords)
	}
	return &LocalAlg{dist: dist, queries: dist.QueryKeys(), coin: coin, maxRecords: maxRecords}, nil
}

// Randomize returns the locally randomized reports of one client.
func (a *LocalAlg) Randomize(records iter.Seq2[string, string]) iter.Seq2[string, string] {
	return a.randomize(a.coin, records)
}

// randomize maps every record onto the head list, then reports a uniformly
// drawn pair with probability 1−τ, otherwise a uniformly drawn url of the
// record's query with probability 1−τ_q, otherwise the record itself.
func (a *LocalAlg) randomize(coin Coin, records iter.Seq2[string, string]) iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		n := 0
		for q, u := range records {
			if n == a.maxRecords {
				return
			}
			n++
			q, u = a.toHeadList(q, u)
			switch {
			case coin.Uniform() <= 1-a.dist.Tau:
				q = a.queries[coin.Index(len(a.queries))]
				urls := a.dist.Queries[q].URLs
				u = urls[coin.Index(len(urls))]
			case coin.Uniform() <= 1-a.dist.Queries[q].Tau:
				urls := a.dist.Queries[q].URLs
				u = urls[coin.Index(len(urls))]
			}
			if !yield(q, u) {
				return
			}
		}
	}
}

// toHeadList replaces a query absent from the head list, or a url absent from
// its query, by the catch-all.
func (a *LocalAlg) toHeadList(query, url string) (string, string) {
	qd, ok := a.dist.Queries[query]
	if !ok {
		query = querydb.Star
		qd = a.dist.Queries[query]
	}
	if _, found := slices.BinarySearch(qd.URLs, url); !found {
		url = querydb.Star
	}
	return query, url
}

// RandomizeAll runs alg over every client, at most workers at a time, and
// aggregates the reports into a database. Client i flips alg's Coin for
// client i, so the result does not depend on scheduling. workers <= 0 uses
// GOMAXPROCS goroutines.
func RandomizeAll(ctx context.Context, alg *LocalAlg, clients [][]Record, workers int) (*querydb.Database, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	reports := make([][]Record, len(clients))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, records := range clients {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out := make([]Record, 0, min(len(records), alg.maxRecords))
			for q, u := range alg.randomize(alg.coin.ForClient(i), Records(records)) {
				out = append(out, Record{q, u})
			}
			reports[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("client.RandomizeAll: %w", err)
	}

	db := querydb.New(querydb.Counting)
	for _, out := range reports {
		db.AddAll(Records(out))
	}
	log.Infof("RandomizeAll: %d clients reported %d records", len(clients), db.Count())
	return db, nil
}

// Records adapts a slice of records to a sequence.
func Records(records []Record) iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, r := range records {
			if !yield(r.Query, r.URL) {
				return
			}
		}
	}
}
