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

// Package querydb provides the three-level aggregate structure shared by every
// Blender stage: a Database maps queries to Buckets, and a Bucket maps urls to
// Leaf statistics. Aggregates at each level always equal the sum of their
// children; they are updated on every child mutation, never recomputed.
//
// The distinguished key Star is the catch-all query and, within any bucket,
// the catch-all url. The pair <*,*> absorbs the statistical mass of entries
// excluded from a bounded structure, so total counts are conserved.
package querydb

import (
	"fmt"
	"iter"
	"maps"
	"math"
	"slices"

	log "github.com/golang/glog"
)

// Star is the catch-all query and url key.
const Star = "*"

// Kind selects which statistics the leaves of a Database carry.
type Kind int

// Leaf statistic variants.
const (
	// Counting leaves only carry a count. Opt-in datasets use them.
	Counting Kind = iota
	// WithProbability leaves also carry a probability and a variance. Client
	// and final estimates use them.
	WithProbability
	// WithVarianceAndTau leaves carry a probability and a variance, and their
	// buckets carry a per-query threshold τ_q. The head list uses them.
	WithVarianceAndTau
)

func (k Kind) String() string {
	switch k {
	case Counting:
		return "Counting"
	case WithProbability:
		return "WithProbability"
	case WithVarianceAndTau:
		return "WithVarianceAndTau"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Leaf holds the sufficient statistics of a single (query, url) pair.
type Leaf struct {
	Count       int64
	Probability float64
	Variance    float64
}

// Bucket holds the urls of a single query.
type Bucket struct {
	leaves      map[string]*Leaf
	count       int64
	probability float64

	tau    float64
	hasTau bool

	// Query-level estimate, kept apart from the aggregate probability.
	estimateProbability float64
	estimateVariance    float64
	hasEstimate         bool
}

func newBucket() *Bucket {
	return &Bucket{leaves: make(map[string]*Leaf)}
}

// Count returns the sum of the counts of the bucket's urls.
func (b *Bucket) Count() int64 { return b.count }

// Probability returns the sum of the probabilities of the bucket's urls.
func (b *Bucket) Probability() float64 { return b.probability }

// NumURLs returns the number of unique urls in the bucket, including Star if
// present.
func (b *Bucket) NumURLs() int { return len(b.leaves) }

// URLs returns the bucket's urls in sorted order.
func (b *Bucket) URLs() []string { return slices.Sorted(maps.Keys(b.leaves)) }

// Leaf returns a copy of the statistics of url.
func (b *Bucket) Leaf(url string) (Leaf, bool) {
	l, ok := b.leaves[url]
	if !ok {
		return Leaf{}, false
	}
	return *l, true
}

// Tau returns the per-query threshold τ_q and whether it has been set.
func (b *Bucket) Tau() (float64, bool) { return b.tau, b.hasTau }

// QueryEstimate returns the query-level probability and variance estimate,
// and whether one has been set.
func (b *Bucket) QueryEstimate() (probability, variance float64, ok bool) {
	return b.estimateProbability, b.estimateVariance, b.hasEstimate
}

// PairSet is implemented by anything that can answer membership of a
// (query, url) pair.
type PairSet interface {
	HasPair(query, url string) bool
}

// Database is the top level of the aggregate structure. It is not safe for
// concurrent mutation.
type Database struct {
	kind    Kind
	buckets map[string]*Bucket
	count   int64
}

// New returns an empty Database whose leaves carry the statistics selected by kind.
func New(kind Kind) *Database {
	return &Database{kind: kind, buckets: make(map[string]*Bucket)}
}

// FromRecords returns a Database of the given kind populated with records.
func FromRecords(kind Kind, records iter.Seq2[string, string]) *Database {
	db := New(kind)
	db.AddAll(records)
	return db
}

func (db *Database) String() string {
	return fmt.Sprintf("&Database(kind %s, queries %d, pairs %d, count %d)", db.kind, db.NumQueries(), db.NumPairs(), db.count)
}

// Kind returns the leaf statistics variant of the database.
func (db *Database) Kind() Kind { return db.kind }

// Count returns the number of records added to the database, duplicates included.
func (db *Database) Count() int64 { return db.count }

// NumQueries returns the number of queries, including Star if present.
func (db *Database) NumQueries() int { return len(db.buckets) }

// NumPairs returns the number of (query, url) pairs.
func (db *Database) NumPairs() int {
	n := 0
	for _, b := range db.buckets {
		n += len(b.leaves)
	}
	return n
}

// Queries returns the database's queries in sorted order.
func (db *Database) Queries() []string { return slices.Sorted(maps.Keys(db.buckets)) }

// Bucket returns the bucket of query. The bucket must not be retained across
// mutations of the database.
func (db *Database) Bucket(query string) (*Bucket, bool) {
	b, ok := db.buckets[query]
	return b, ok
}

// URLs returns the urls of query in sorted order, or nil if query is absent.
func (db *Database) URLs(query string) []string {
	b, ok := db.buckets[query]
	if !ok {
		return nil
	}
	return b.URLs()
}

// HasPair reports whether the pair (query, url) is present.
func (db *Database) HasPair(query, url string) bool {
	b, ok := db.buckets[query]
	if !ok {
		return false
	}
	_, ok = b.leaves[url]
	return ok
}

// Leaf returns a copy of the statistics of (query, url).
func (db *Database) Leaf(query, url string) (Leaf, bool) {
	b, ok := db.buckets[query]
	if !ok {
		return Leaf{}, false
	}
	return b.Leaf(url)
}

func (db *Database) leaf(query, url string) (*Bucket, *Leaf) {
	b, ok := db.buckets[query]
	if !ok {
		b = newBucket()
		db.buckets[query] = b
	}
	l, ok := b.leaves[url]
	if !ok {
		l = &Leaf{}
		b.leaves[url] = l
	}
	return b, l
}

// Add records one occurrence of (query, url), creating the entry on demand.
func (db *Database) Add(query, url string) {
	b, l := db.leaf(query, url)
	l.Count++
	b.count++
	db.count++
}

// AddAll adds every record of records.
func (db *Database) AddAll(records iter.Seq2[string, string]) {
	for q, u := range records {
		db.Add(q, u)
	}
}

// Touch creates (query, url) with a zero count if it is absent. It never
// changes an existing entry.
func (db *Database) Touch(query, url string) {
	db.leaf(query, url)
}

// Subsume moves the count and probability of the source pair into the sink
// pair. The source is left in place with zero count and probability; removing
// it is the caller's responsibility. Both pairs must exist.
func (db *Database) Subsume(sinkQuery, sinkURL, srcQuery, srcURL string) error {
	if sinkQuery == srcQuery && sinkURL == srcURL {
		return fmt.Errorf("querydb.Subsume: cannot subsume (%q, %q) into itself", srcQuery, srcURL)
	}
	sinkBucket, ok := db.buckets[sinkQuery]
	if !ok || sinkBucket.leaves[sinkURL] == nil {
		return fmt.Errorf("querydb.Subsume: sink (%q, %q) is not present", sinkQuery, sinkURL)
	}
	srcBucket, ok := db.buckets[srcQuery]
	if !ok || srcBucket.leaves[srcURL] == nil {
		return fmt.Errorf("querydb.Subsume: source (%q, %q) is not present", srcQuery, srcURL)
	}
	sink, src := sinkBucket.leaves[sinkURL], srcBucket.leaves[srcURL]

	sink.Count += src.Count
	sink.Probability += src.Probability
	sinkBucket.count += src.Count
	sinkBucket.probability += src.Probability

	srcBucket.count -= src.Count
	srcBucket.probability -= src.Probability
	src.Count = 0
	src.Probability = 0
	return nil
}

// SubsumeThoseNotPresentIn moves every pair whose query is not Star and which
// other does not contain into <*,*>, then deletes it. Buckets left empty are
// deleted. The total count is unchanged.
func (db *Database) SubsumeThoseNotPresentIn(other PairSet) {
	db.Touch(Star, Star)
	type pair struct{ query, url string }
	var doomed []pair
	for q, u := range db.Records() {
		if q == Star || other.HasPair(q, u) {
			continue
		}
		// Both pairs exist and differ, so Subsume cannot fail.
		if err := db.Subsume(Star, Star, q, u); err != nil {
			log.Fatalf("SubsumeThoseNotPresentIn: %v", err)
		}
		doomed = append(doomed, pair{q, u})
	}
	for _, p := range doomed {
		db.Delete(p.query, p.url)
	}
	log.V(2).Infof("SubsumeThoseNotPresentIn: subsumed %d pairs into <*,*>", len(doomed))
}

// Delete removes (query, url) together with its contribution to the
// aggregates, and removes the bucket of query if it becomes empty. Deleting an
// absent pair is a no-op.
func (db *Database) Delete(query, url string) {
	b, ok := db.buckets[query]
	if !ok {
		return
	}
	l, ok := b.leaves[url]
	if !ok {
		return
	}
	b.count -= l.Count
	b.probability -= l.Probability
	db.count -= l.Count
	delete(b.leaves, url)
	if len(b.leaves) == 0 {
		delete(db.buckets, query)
	}
}

// Records returns every (query, url) pair exactly once, ordered by query and
// then by url. The sequence reads the keys present when each bucket is
// reached, so it can be iterated any number of times. Updating the statistics
// of existing pairs while iterating is fine, but adding or deleting pairs is
// not: collect such changes and apply them after the iteration completes.
func (db *Database) Records() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, q := range db.Queries() {
			b, ok := db.buckets[q]
			if !ok {
				continue
			}
			for _, u := range b.URLs() {
				if !yield(q, u) {
					return
				}
			}
		}
	}
}

// Expand returns every record with multiplicity: (query, url) is yielded as
// many times as its count, in sorted order.
func (db *Database) Expand() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for q, u := range db.Records() {
			for range db.buckets[q].leaves[u].Count {
				if !yield(q, u) {
					return
				}
			}
		}
	}
}

// AppendStarValues makes sure the Star query exists and every bucket has a
// Star url. Counts are not changed.
func (db *Database) AppendStarValues() {
	db.Touch(Star, Star)
	for _, b := range db.buckets {
		if _, ok := b.leaves[Star]; !ok {
			b.leaves[Star] = &Leaf{}
		}
	}
}

func (db *Database) mutableLeaf(op, query, url string) (*Bucket, *Leaf, error) {
	if db.kind == Counting {
		return nil, nil, fmt.Errorf("%s: a %s database does not carry probabilities", op, db.kind)
	}
	b, ok := db.buckets[query]
	if !ok {
		return nil, nil, fmt.Errorf("%s: query %q is not present", op, query)
	}
	l, ok := b.leaves[url]
	if !ok {
		return nil, nil, fmt.Errorf("%s: pair (%q, %q) is not present", op, query, url)
	}
	return b, l, nil
}

// SetProbability sets the probability of (query, url) and updates the
// aggregate probability of its bucket accordingly.
func (db *Database) SetProbability(query, url string, p float64) error {
	b, l, err := db.mutableLeaf("querydb.SetProbability", query, url)
	if err != nil {
		return err
	}
	b.probability += p - l.Probability
	l.Probability = p
	return nil
}

// SetVariance sets the variance of (query, url).
func (db *Database) SetVariance(query, url string, v float64) error {
	_, l, err := db.mutableLeaf("querydb.SetVariance", query, url)
	if err != nil {
		return err
	}
	l.Variance = v
	return nil
}

// SetQueryEstimate stores a query-level probability and variance on the
// bucket of query. It does not touch the aggregate probability.
func (db *Database) SetQueryEstimate(query string, probability, variance float64) error {
	if db.kind == Counting {
		return fmt.Errorf("querydb.SetQueryEstimate: a %s database does not carry probabilities", db.kind)
	}
	b, ok := db.buckets[query]
	if !ok {
		return fmt.Errorf("querydb.SetQueryEstimate: query %q is not present", query)
	}
	b.estimateProbability, b.estimateVariance, b.hasEstimate = probability, variance, true
	return nil
}

// SetTau stores the per-query threshold τ_q on the bucket of query.
func (db *Database) SetTau(query string, tau float64) error {
	if db.kind != WithVarianceAndTau {
		return fmt.Errorf("querydb.SetTau: a %s database does not carry tau", db.kind)
	}
	b, ok := db.buckets[query]
	if !ok {
		return fmt.Errorf("querydb.SetTau: query %q is not present", query)
	}
	b.tau, b.hasTau = tau, true
	return nil
}

// TotalProbability returns the sum of the aggregate probabilities of all buckets.
func (db *Database) TotalProbability() float64 {
	var sum float64
	for _, q := range db.Queries() {
		sum += db.buckets[q].probability
	}
	return sum
}

// Validate checks the aggregate invariants: every bucket's count and
// probability equal the sums over its urls, the database count equals the sum
// of bucket counts, no count is negative and no bucket is empty.
func (db *Database) Validate() error {
	var total int64
	for _, q := range db.Queries() {
		b := db.buckets[q]
		if len(b.leaves) == 0 {
			return fmt.Errorf("querydb.Validate: query %q has no urls", q)
		}
		var count int64
		var prob, scale float64
		for u, l := range b.leaves {
			if l.Count < 0 {
				return fmt.Errorf("querydb.Validate: pair (%q, %q) has negative count %d", q, u, l.Count)
			}
			count += l.Count
			prob += l.Probability
			scale += math.Abs(l.Probability)
		}
		if count != b.count {
			return fmt.Errorf("querydb.Validate: query %q has count %d, its urls sum to %d", q, b.count, count)
		}
		if math.Abs(prob-b.probability) > 1e-9*math.Max(1, scale) {
			return fmt.Errorf("querydb.Validate: query %q has probability %g, its urls sum to %g", q, b.probability, prob)
		}
		total += count
	}
	if total != db.count {
		return fmt.Errorf("querydb.Validate: database has count %d, its queries sum to %d", db.count, total)
	}
	return nil
}
