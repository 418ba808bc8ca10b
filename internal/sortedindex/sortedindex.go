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

// Package sortedindex provides an order-statistic index from float64 keys to
// lists of string identifiers, iterated in descending key order.
package sortedindex

import (
	"fmt"
	"iter"
	"math"
	"slices"
)

// Index maps a numeric key to the identifiers inserted at that key, in
// insertion order. Several identifiers may share a key, and the same
// identifier may appear under several keys. The zero value is an empty index.
type Index struct {
	keys []float64 // ascending, no duplicates
	ids  map[float64][]string
	n    int
}

// Len returns the number of (key, id) entries.
func (x *Index) Len() int { return x.n }

// Insert appends id to the list at key. Existing entries at key are kept.
func (x *Index) Insert(key float64, id string) error {
	if math.IsNaN(key) {
		return fmt.Errorf("sortedindex.Insert: key for %q is NaN", id)
	}
	if x.ids == nil {
		x.ids = make(map[float64][]string)
	}
	if _, ok := x.ids[key]; !ok {
		i, _ := slices.BinarySearch(x.keys, key)
		x.keys = slices.Insert(x.keys, i, key)
	}
	x.ids[key] = append(x.ids[key], id)
	x.n++
	return nil
}

// Remove deletes the first occurrence of id at key. It reports whether an
// entry was removed.
func (x *Index) Remove(key float64, id string) bool {
	list, ok := x.ids[key]
	if !ok {
		return false
	}
	i := slices.Index(list, id)
	if i < 0 {
		return false
	}
	list = slices.Delete(list, i, i+1)
	x.n--
	if len(list) > 0 {
		x.ids[key] = list
		return true
	}
	delete(x.ids, key)
	if j, found := slices.BinarySearch(x.keys, key); found {
		x.keys = slices.Delete(x.keys, j, j+1)
	}
	return true
}

// Move removes id from oldKey and reinserts it at newKey, behind any
// identifiers already there.
func (x *Index) Move(oldKey, newKey float64, id string) error {
	if !x.Remove(oldKey, id) {
		return fmt.Errorf("sortedindex.Move: %q is not indexed at %g", id, oldKey)
	}
	return x.Insert(newKey, id)
}

// Descending returns the entries from the largest key to the smallest. Ties
// are yielded in insertion order. The index must not be modified while the
// sequence is being iterated.
func (x *Index) Descending() iter.Seq2[float64, string] {
	return func(yield func(float64, string) bool) {
		for i := len(x.keys) - 1; i >= 0; i-- {
			key := x.keys[i]
			for _, id := range x.ids[key] {
				if !yield(key, id) {
					return
				}
			}
		}
	}
}
