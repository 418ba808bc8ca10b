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

// Package checks contains argument checks for the Blender privacy parameters.
package checks

import (
	"fmt"
	"math"
)

// CheckEpsilonStrict returns an error if ε is nonpositive, NaN or +∞.
func CheckEpsilonStrict(label string, epsilon float64) error {
	if epsilon <= 0 || math.IsInf(epsilon, 0) || math.IsNaN(epsilon) {
		return fmt.Errorf("%s: Epsilon is %f, must be strictly positive and finite", label, epsilon)
	}
	return nil
}

// CheckDeltaStrict returns an error if δ is nonpositive or greater than or equal to 1.
func CheckDeltaStrict(label string, delta float64) error {
	if math.IsNaN(delta) {
		return fmt.Errorf("%s: Delta is %e, cannot be NaN", label, delta)
	}
	if delta <= 0 {
		return fmt.Errorf("%s: Delta is %e, must be strictly positive", label, delta)
	}
	if delta >= 1 {
		return fmt.Errorf("%s: Delta is %e, must be strictly less than 1", label, delta)
	}
	return nil
}

// CheckMaxRecords returns an error if the per-user record cap m is less than 1
// or not finite. name identifies the cap in the error message, e.g. "m_o".
func CheckMaxRecords(label, name string, m float64) error {
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return fmt.Errorf("%s: %s is %f, must be finite", label, name, m)
	}
	if m < 1 {
		return fmt.Errorf("%s: %s is %f, must be at least 1", label, name, m)
	}
	return nil
}

// CheckFraction returns an error if f is not within the open interval (0, 1).
func CheckFraction(label, name string, f float64) error {
	if f <= 0 || f >= 1 || math.IsNaN(f) {
		return fmt.Errorf("%s: %s is %f, must be within (0, 1)", label, name, f)
	}
	return nil
}

// CheckHeadListSize returns an error if the maximum head list size is nonpositive.
func CheckHeadListSize(label string, m int64) error {
	if m <= 0 {
		return fmt.Errorf("%s: HeadListSize is %d, must be strictly positive", label, m)
	}
	return nil
}

// CheckL1Sensitivity returns an error if l1Sensitivity is nonpositive or +∞.
func CheckL1Sensitivity(label string, l1Sensitivity float64) error {
	if l1Sensitivity <= 0 || math.IsInf(l1Sensitivity, 0) || math.IsNaN(l1Sensitivity) {
		return fmt.Errorf("%s: L1Sensitivity is %f, must be strictly positive and finite", label, l1Sensitivity)
	}
	return nil
}

// CheckDiscoveryThreshold returns an error if the head list discovery
// threshold τ is less than 1. Thresholds below 1 cannot separate a pair seen
// once from a pair never seen, so the chosen ε, δ and m_o do not support a
// sound discovery mechanism.
func CheckDiscoveryThreshold(label string, tau float64) error {
	if math.IsNaN(tau) || tau < 1 {
		return fmt.Errorf("%s: discovery threshold is %f, must be at least 1 for the chosen epsilon, delta and m_o", label, tau)
	}
	return nil
}
