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

package noise

import "testing"

func TestParseKindRoundTrip(t *testing.T) {
	for _, k := range []Kind{LaplaceNoise, SeededLaplaceNoise} {
		got, err := ParseKind(k.String())
		if err != nil {
			t.Errorf("ParseKind(%q): got error %v", k.String(), err)
		}
		if got != k {
			t.Errorf("ParseKind(%q) = %v, want %v", k.String(), got, k)
		}
	}
	if _, err := ParseKind("gaussian"); err == nil {
		t.Errorf("ParseKind(%q): got no error, want error", "gaussian")
	}
}

func TestToNoise(t *testing.T) {
	if got := ToNoise(LaplaceNoise, 0); got != Laplace() {
		t.Errorf("ToNoise(LaplaceNoise) = %v, want %v", got, Laplace())
	}
	if _, ok := ToNoise(SeededLaplaceNoise, 7).(*seededLaplace); !ok {
		t.Errorf("ToNoise(SeededLaplaceNoise) did not return a seeded sampler")
	}
	if got := ToNoise(Unrecognised, 0); got != nil {
		t.Errorf("ToNoise(Unrecognised) = %v, want nil", got)
	}
}
