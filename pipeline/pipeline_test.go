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

package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/google/differential-privacy/blender/budget"
	"github.com/google/differential-privacy/blender/client"
	"github.com/google/differential-privacy/blender/headlist"
	"github.com/google/differential-privacy/blender/internal/synthetic"
	"github.com/google/differential-privacy/blender/noise"
	"github.com/google/differential-privacy/blender/querydb"
	"github.com/google/go-cmp/cmp"
)

// noNoise is a Noise instance that doesn't add noise to the data.
type noNoise struct {
	noise.Noise
}

func (noNoise) AddNoiseFloat64(x, _, _ float64) (float64, error) {
	return x, nil
}

// clients returns one client per record of set, holding perClient copies of
// that record.
func clients(set []synthetic.Entry, perClient int) [][]client.Record {
	var out [][]client.Record
	for q, u := range synthetic.Records(set) {
		var c []client.Record
		for range perClient {
			c = append(c, client.Record{Query: q, URL: u})
		}
		out = append(out, c)
	}
	return out
}

func run(t *testing.T, opts *Options, perClient int) *Result {
	t.Helper()
	s := synthetic.Load(querydb.Counting, synthetic.Small)
	tt := synthetic.Load(querydb.Counting, synthetic.Small)
	res, err := Run(context.Background(), opts, s, tt, clients(synthetic.Small, perClient))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

func TestRun(t *testing.T) {
	res := run(t, &Options{Params: synthetic.StandardParams(), Noise: noNoise{}, Coin: client.SeededCoin(1), Workers: 4}, 1)

	if got := res.HeadList.State(); got != headlist.Finalized {
		t.Errorf("Run: head list is %s, want %s", got, headlist.Finalized)
	}
	if diff := cmp.Diff([]string{querydb.Star, "q4", "q6", "q7"}, res.Distribution.QueryKeys()); diff != "" {
		t.Errorf("Run: unexpected distribution queries (-want +got):\n%s", diff)
	}
	if got, want := res.Reports.Count(), int64(1000); got != want {
		t.Errorf("Run: clients reported %d records, want %d", got, want)
	}
	for q, u := range res.Reports.Records() {
		if !res.HeadList.HasPair(q, u) {
			t.Errorf("Run: client report (%s, %s) is not in the head list", q, u)
		}
	}

	var pairs int
	for q, u := range res.HeadList.Records() {
		pairs++
		if _, ok := res.ClientEstimates.Leaf(q, u); !ok {
			t.Errorf("Run: no client estimate for (%s, %s)", q, u)
		}
		if _, ok := res.Blend.Database().Leaf(q, u); !ok {
			t.Errorf("Run: no blended estimate for (%s, %s)", q, u)
		}
	}
	if got := res.Blend.Database().NumPairs(); got != pairs {
		t.Errorf("Run: blended %d pairs, want the %d of the head list", got, pairs)
	}
	for q := range res.Distribution.Queries {
		l, _ := res.HeadList.Leaf(q, querydb.Star)
		if q != querydb.Star && (l.Probability != 0 || l.Variance != 0) {
			t.Errorf("Run: head list (%s, *) = %+v, want probability and variance 0", q, l)
		}
	}
	for row := range res.Blend.Rows() {
		// Without noise the head list holds every catch-all url at an exact
		// zero, which outweighs any client estimate.
		if row.URL == querydb.Star {
			t.Errorf("Run: final table contains catch-all row %+v", row)
		}
		if !res.HeadList.HasPair(row.Query, row.URL) {
			t.Errorf("Run: final table row %+v is not in the head list", row)
		}
	}
}

func TestRunCapsClientRecords(t *testing.T) {
	p := synthetic.StandardParams()
	p.MaxClientRecords = 2
	res := run(t, &Options{Params: p, Noise: noNoise{}, Coin: client.SeededCoin(2)}, 3)
	if got, want := res.Reports.Count(), int64(2000); got != want {
		t.Errorf("Run with m_c = 2: clients reported %d records, want %d", got, want)
	}
}

func TestRunIsReproducibleWithSeeds(t *testing.T) {
	output := func() string {
		res := run(t, &Options{Params: synthetic.StandardParams(), Noise: noise.SeededLaplace(7), Coin: client.SeededCoin(7)}, 1)
		var sb strings.Builder
		if _, err := res.Blend.WriteTo(&sb); err != nil {
			t.Fatalf("WriteTo: %v", err)
		}
		return sb.String()
	}
	first, second := output(), output()
	if first != second {
		t.Errorf("Run with fixed seeds produced different tables:\n%s\nand\n%s", first, second)
	}
}

func TestRunErrors(t *testing.T) {
	small := func() *querydb.Database { return synthetic.Load(querydb.Counting, synthetic.Small) }
	single := querydb.New(querydb.Counting)
	single.Add("q4", "q4u1")
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	for _, tc := range []struct {
		desc   string
		ctx    context.Context
		params budget.Params
		s, t   *querydb.Database
	}{
		{"epsilon is negative", context.Background(), budget.Params{Epsilon: -1}, small(), small()},
		{"S is nil", context.Background(), synthetic.StandardParams(), nil, small()},
		{"T is nil", context.Background(), synthetic.StandardParams(), small(), nil},
		{"T holds one record", context.Background(), synthetic.StandardParams(), small(), single},
		{"the context is cancelled", cancelled, synthetic.StandardParams(), small(), small()},
	} {
		opts := &Options{Params: tc.params, Noise: noNoise{}, Coin: client.SeededCoin(3)}
		if _, err := Run(tc.ctx, opts, tc.s, tc.t, clients(synthetic.Small, 1)); err == nil {
			t.Errorf("Run: when %s got no error, want error", tc.desc)
		}
	}
}
