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

package headlist

import (
	"errors"
	"math"
	"testing"

	"github.com/google/differential-privacy/blender/budget"
	"github.com/google/differential-privacy/blender/internal/synthetic"
	"github.com/google/differential-privacy/blender/noise"
	"github.com/google/differential-privacy/blender/querydb"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const tenten = 1e-10

// noNoise is a Noise instance that doesn't add noise to the data.
type noNoise struct {
	noise.Noise
}

func (noNoise) AddNoiseFloat64(x, _, _ float64) (float64, error) {
	return x, nil
}

// constNoise always adds the same value.
type constNoise struct {
	noise.Noise
	y float64
}

func (c constNoise) AddNoiseFloat64(x, _, _ float64) (float64, error) {
	return x + c.y, nil
}

func approxEqual(x, y float64) bool {
	return cmp.Equal(x, y, cmpopts.EquateApprox(0, tenten))
}

func newHeadList(t *testing.T, m int64, n noise.Noise) *HeadList {
	t.Helper()
	p := synthetic.StandardParams()
	p.HeadListSize = m
	b, err := budget.New(&p)
	if err != nil {
		t.Fatalf("budget.New: %v", err)
	}
	h, err := New(b, n)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func records(h *HeadList) map[string][]string {
	got := make(map[string][]string)
	for q, u := range h.Records() {
		got[q] = append(got[q], u)
	}
	return got
}

// finalized returns a head list built from Small with noise fixed to 0, and
// the opt-in dataset T it was refined on.
func finalized(t *testing.T, m int64) (*HeadList, *querydb.Database) {
	t.Helper()
	h := newHeadList(t, m, noNoise{})
	if err := h.Discover(synthetic.Load(querydb.Counting, synthetic.Small)); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	optinT := synthetic.Load(querydb.Counting, synthetic.Small)
	if err := h.EstimateOptinProbabilities(optinT); err != nil {
		t.Fatalf("EstimateOptinProbabilities: %v", err)
	}
	return h, optinT
}

func TestNewErrors(t *testing.T) {
	b, err := budget.New(nil)
	if err != nil {
		t.Fatalf("budget.New: %v", err)
	}
	for _, tc := range []struct {
		desc  string
		b     *budget.Budget
		noise noise.Noise
	}{
		{"nil budget", nil, noNoise{}},
		{"nil noise", b, nil},
	} {
		if _, err := New(tc.b, tc.noise); err == nil {
			t.Errorf("New: when %s got no error, want error", tc.desc)
		}
	}
}

func TestDiscover(t *testing.T) {
	h := newHeadList(t, 5, noNoise{})
	if err := h.Discover(synthetic.Load(querydb.Counting, synthetic.Tiny)); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := map[string][]string{
		querydb.Star: {querydb.Star},
		"q4":         {"q4u1", "q4u2"},
		"q6":         {"q6u1"},
		"q7":         {"q7u1", "q7u2"},
	}
	if diff := cmp.Diff(want, records(h)); diff != "" {
		t.Errorf("Discover: unexpected head list (-want +got):\n%s", diff)
	}
	if l, _ := h.Leaf(querydb.Star, querydb.Star); l.Count != 0 {
		t.Errorf("Discover: <*,*> count = %d, want 0", l.Count)
	}
	if got := h.Count(); got != 5 {
		t.Errorf("Discover: Count() = %d, want 5", got)
	}
	if got := h.State(); got != Discovered {
		t.Errorf("Discover: State() = %v, want %v", got, Discovered)
	}
}

func TestDiscoverAlwaysAddsCatchAll(t *testing.T) {
	h := newHeadList(t, 5, noNoise{})
	// No pair reaches τ_discover ≈ 83.06.
	if err := h.Discover(synthetic.Load(querydb.Counting, synthetic.Tiny[:4])); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := map[string][]string{querydb.Star: {querydb.Star}}
	if diff := cmp.Diff(want, records(h)); diff != "" {
		t.Errorf("Discover: unexpected head list (-want +got):\n%s", diff)
	}
}

func TestDiscoverUsesNoise(t *testing.T) {
	// Noise of +60 lifts the pairs counted 30 and 99 above τ_discover ≈ 83.06.
	h := newHeadList(t, 5, constNoise{y: 60})
	if err := h.Discover(synthetic.Load(querydb.Counting, synthetic.Tiny)); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if !h.HasPair("q3", "q3u1") {
		t.Errorf("Discover with noise 60: dropped (q3, q3u1) with noisy count 90")
	}
	if got, want := h.NumQueries(), 5; got != want {
		t.Errorf("Discover with noise 60: NumQueries() = %d, want %d", got, want)
	}
	if h.HasPair("q1", "q1u1") {
		t.Errorf("Discover with noise 60: kept (q1, q1u1) with noisy count 70")
	}
}

func TestRefine(t *testing.T) {
	h := newHeadList(t, 5, noNoise{})
	if err := h.Discover(synthetic.Load(querydb.Counting, synthetic.Small)); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	optinT := synthetic.Load(querydb.Counting, synthetic.Small)
	if err := h.Refine(optinT); err != nil {
		t.Fatalf("Refine: %v", err)
	}
	for q, u := range optinT.Records() {
		l, _ := optinT.Leaf(q, u)
		want := int64(100)
		if q == querydb.Star {
			want = 500
		}
		if l.Count != want {
			t.Errorf("Refine: T count of (%s, %s) = %d, want %d", q, u, l.Count, want)
		}
	}
	if got := optinT.Count(); got != 1000 {
		t.Errorf("Refine: T count = %d, want 1000", got)
	}
	for q, u := range h.Records() {
		l, _ := h.Leaf(q, u)
		want := 0.1
		if q == querydb.Star {
			want = 0.5
		}
		if l.Probability != want {
			t.Errorf("Refine: probability of (%s, %s) = %f, want %f", q, u, l.Probability, want)
		}
	}
	if got := h.TotalProbability(); !approxEqual(got, 1) {
		t.Errorf("Refine: TotalProbability() = %f, want 1", got)
	}
	if got := h.index.Len(); got != 3 {
		t.Errorf("Refine: index holds %d queries, want 3", got)
	}
}

func TestRefineAddsFreshNoisePerPair(t *testing.T) {
	h := newHeadList(t, 5, noNoise{})
	if err := h.Discover(synthetic.Load(querydb.Counting, synthetic.Small)); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	h.noise = constNoise{y: 1}
	if err := h.Refine(synthetic.Load(querydb.Counting, synthetic.Small)); err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if l, _ := h.Leaf("q4", "q4u1"); !approxEqual(l.Probability, 0.101) {
		t.Errorf("Refine with noise 1: probability of (q4, q4u1) = %f, want 0.101", l.Probability)
	}
	// Five pairs and <*,*> each received +1.
	if got := h.TotalProbability(); !approxEqual(got, 1.006) {
		t.Errorf("Refine with noise 1: TotalProbability() = %f, want 1.006", got)
	}
}

func TestTruncate(t *testing.T) {
	h := newHeadList(t, 2, noNoise{})
	if err := h.Discover(synthetic.Load(querydb.Counting, synthetic.Small)); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	optinT := synthetic.Load(querydb.Counting, synthetic.Small)
	if err := h.Refine(optinT); err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if err := h.Truncate(); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	want := map[string][]string{
		querydb.Star: {querydb.Star},
		"q4":         {"q4u1", "q4u2"},
		"q7":         {"q7u1", "q7u2"},
	}
	if diff := cmp.Diff(want, records(h)); diff != "" {
		t.Errorf("Truncate: unexpected head list (-want +got):\n%s", diff)
	}
	// Two queries of two urls each, plus q6u1 subsumed into <*,*>.
	if got := h.Count(); got != 5 {
		t.Errorf("Truncate: Count() = %d, want 5", got)
	}
	if l, _ := h.Leaf(querydb.Star, querydb.Star); l.Count != 1 {
		t.Errorf("Truncate: <*,*> count = %d, want 1", l.Count)
	}
	if b, _ := h.Bucket(querydb.Star); !approxEqual(b.Probability(), 0.6) {
		t.Errorf("Truncate: probability of %q = %f, want 0.6", querydb.Star, b.Probability())
	}
	if l, _ := optinT.Leaf(querydb.Star, querydb.Star); l.Count != 500 {
		t.Errorf("Truncate: T <*,*> count = %d, want 500", l.Count)
	}
	if got := h.TotalProbability(); math.Abs(got-1) > 1e-9 {
		t.Errorf("Truncate: TotalProbability() = %f, want 1", got)
	}
	if got := h.index.Len(); got != 2 {
		t.Errorf("Truncate: index holds %d queries, want 2", got)
	}
}

func TestTruncateBoundsSizeAndConservesMass(t *testing.T) {
	for _, m := range []int64{1, 2, 3, 4, 100} {
		h, optinT := finalized(t, m)
		queries := 0
		for _, q := range h.Queries() {
			if q != querydb.Star {
				queries++
			}
		}
		wantQueries := int(min(m, 3))
		if queries != wantQueries {
			t.Errorf("M=%d: head list has %d queries besides %q, want %d", m, queries, querydb.Star, wantQueries)
		}
		if got := h.TotalProbability(); math.Abs(got-1) > 1e-9 {
			t.Errorf("M=%d: TotalProbability() = %f, want 1", m, got)
		}
		if got := optinT.Count(); got != 1000 {
			t.Errorf("M=%d: T count = %d, want 1000", m, got)
		}
		if got := h.Count(); got != 5 {
			t.Errorf("M=%d: Count() = %d, want 5", m, got)
		}
	}
}

func TestTruncateBreaksTiesByIndexOrder(t *testing.T) {
	// q4 and q7 tie at 0.2; q4 was indexed first, so M=1 keeps it.
	h, _ := finalized(t, 1)
	if !h.HasPair("q4", "q4u1") || h.HasPair("q7", "q7u1") {
		t.Errorf("Truncate with M=1: got queries %v, want q4 kept and q7 evicted", h.Queries())
	}
}

func TestFinalize(t *testing.T) {
	h, _ := finalized(t, 2)
	if got := h.State(); got != Finalized {
		t.Fatalf("State() = %v, want %v", got, Finalized)
	}
	const n, b = 1000.0, 5.0
	variance := func(p float64) float64 { return p*(1-p)/(n-1) + 2*b*b/(n*(n-1)) }
	for _, tc := range []struct {
		query, url string
		p, v       float64
	}{
		{"q4", "q4u1", 0.1, variance(0.1)},
		{"q7", "q7u2", 0.1, variance(0.1)},
		// Catch-all urls are appended after the variances are computed.
		{"q4", querydb.Star, 0, 0},
		{"q7", querydb.Star, 0, 0},
		{querydb.Star, querydb.Star, 0.6, variance(0.6)},
	} {
		l, ok := h.Leaf(tc.query, tc.url)
		if !ok {
			t.Errorf("Finalize: (%s, %s) missing", tc.query, tc.url)
			continue
		}
		if !approxEqual(l.Probability, tc.p) {
			t.Errorf("Finalize: probability of (%s, %s) = %f, want %f", tc.query, tc.url, l.Probability, tc.p)
		}
		if !approxEqual(l.Variance, tc.v) {
			t.Errorf("Finalize: variance of (%s, %s) = %g, want %g", tc.query, tc.url, l.Variance, tc.v)
		}
	}

	bud := h.Budget()
	if want := budget.RetentionProbability(bud.EpsilonPrimeQ(), bud.DeltaPrimeQ(), 5); !approxEqual(h.Tau(), want) {
		t.Errorf("Finalize: Tau() = %f, want %f", h.Tau(), want)
	}
	// τ_q is taken over the count of the query, which the catch-all url does
	// not increase: q4 holds q4u1, q4u2 and *, yet its population is 2.
	for _, tc := range []struct {
		query string
		count float64
	}{
		{"q4", 2},
		{"q7", 2},
		// <*,*> absorbed q6u1 during truncation.
		{querydb.Star, 1},
	} {
		bucket, _ := h.Bucket(tc.query)
		if got := float64(bucket.Count()); got != tc.count {
			t.Errorf("Finalize: count of %s = %v, want %v", tc.query, got, tc.count)
		}
		tau, ok := bucket.Tau()
		if want := bud.URLRetention(tc.count); !ok || !approxEqual(tau, want) {
			t.Errorf("Finalize: tau of %s = %f (set %t), want %f", tc.query, tau, ok, want)
		}
	}
	if b, _ := h.Bucket("q4"); b.NumURLs() != 3 {
		t.Errorf("Finalize: q4 has %d urls, want 3 with the catch-all", b.NumURLs())
	}
	// ε'_u = 0.6 over two urls.
	if b, _ := h.Bucket("q4"); !approxEqual(mustTau(t, b), 0.6456563328015725) {
		t.Errorf("Finalize: tau of q4 = %.16f, want 0.6456563328015725", mustTau(t, b))
	}
}

func mustTau(t *testing.T, b *querydb.Bucket) float64 {
	t.Helper()
	tau, ok := b.Tau()
	if !ok {
		t.Fatalf("Tau(): not set")
	}
	return tau
}

func TestURLRetentionOverTwoURLs(t *testing.T) {
	// With ε'_u = 1 and δ'_u = 1, a query holding u1 and u2 keeps its url with
	// probability (e + 0.5)/(e + 1).
	db := querydb.New(querydb.WithVarianceAndTau)
	db.Add("q", "u1")
	db.Add("q", "u2")
	db.AppendStarValues()
	b, _ := db.Bucket("q")
	if got := b.Count(); got != 2 {
		t.Errorf("Count() = %d, want 2", got)
	}
	if got := budget.RetentionProbability(1, 1, float64(b.Count())); !cmp.Equal(got, 0.865529289, cmpopts.EquateApprox(0, 1e-9)) {
		t.Errorf("RetentionProbability(1, 1, count of {u1, u2}) = %v, want 0.865529289", got)
	}
}

func TestStagesMustRunInOrder(t *testing.T) {
	optin := func() *querydb.Database { return synthetic.Load(querydb.Counting, synthetic.Small) }

	h := newHeadList(t, 5, noNoise{})
	if err := h.Refine(optin()); err == nil {
		t.Errorf("Refine before Discover: got no error, want error")
	}
	if err := h.Truncate(); err == nil {
		t.Errorf("Truncate before Refine: got no error, want error")
	}
	if err := h.Discover(optin()); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if err := h.Discover(optin()); err == nil {
		t.Errorf("Discover twice: got no error, want error")
	}
	if err := h.Finalize(optin()); err == nil {
		t.Errorf("Finalize before Truncate: got no error, want error")
	}

	done, _ := finalized(t, 5)
	if err := done.EstimateOptinProbabilities(optin()); err == nil {
		t.Errorf("EstimateOptinProbabilities on a finalized head list: got no error, want error")
	}
}

func TestDegenerateOptinSize(t *testing.T) {
	for _, tc := range []struct {
		desc    string
		records []synthetic.Entry
	}{
		{"empty T", nil},
		{"single record T", []synthetic.Entry{{Query: "q4", URL: "q4u1", Count: 1}}},
	} {
		h := newHeadList(t, 5, noNoise{})
		if err := h.Discover(synthetic.Load(querydb.Counting, synthetic.Tiny)); err != nil {
			t.Fatalf("Discover: %v", err)
		}
		err := h.EstimateOptinProbabilities(synthetic.Load(querydb.Counting, tc.records))
		var ce *querydb.ComputationError
		if !errors.As(err, &ce) {
			t.Errorf("EstimateOptinProbabilities: when %s got %v, want a ComputationError", tc.desc, err)
		}
	}
}

func TestSeededNoiseIsReproducible(t *testing.T) {
	build := func() *HeadList {
		h := newHeadList(t, 5, noise.SeededLaplace(17))
		if err := h.Discover(synthetic.Load(querydb.Counting, synthetic.Small)); err != nil {
			t.Fatalf("Discover: %v", err)
		}
		if err := h.EstimateOptinProbabilities(synthetic.Load(querydb.Counting, synthetic.Small)); err != nil {
			t.Fatalf("EstimateOptinProbabilities: %v", err)
		}
		return h
	}
	first, second := build(), build()
	if diff := cmp.Diff(records(first), records(second)); diff != "" {
		t.Errorf("seeded head lists differ (-first +second):\n%s", diff)
	}
	for q, u := range first.Records() {
		a, _ := first.Leaf(q, u)
		b, _ := second.Leaf(q, u)
		if a != b {
			t.Errorf("seeded head lists differ at (%s, %s): %+v vs %+v", q, u, a, b)
		}
	}
	if first.Tau() != second.Tau() {
		t.Errorf("seeded head lists have tau %f and %f", first.Tau(), second.Tau())
	}
}
