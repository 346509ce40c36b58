// Copyright 2010-2024 Google LLC
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gridmodel

import (
	"errors"
	"fmt"
)

var (
	// ErrViolated is returned by Verify when a solution breaks a domain or a constraint.
	ErrViolated = errors.New("solution violates the model")
	// ErrSolutionSize is returned by Verify when a solution does not hold one value per variable.
	ErrSolutionSize = errors.New("solution size does not match the model")
)

// Activity returns the value of the constraint expression under `solution`.
func (ct *LinearConstraint) Activity(solution []int64) int64 {
	var a int64
	for k, v := range ct.Vars {
		a += ct.Coeffs[k] * solution[v]
	}
	return a
}

// ObjectiveValue returns the objective value of `solution`, or 0 if the model
// has no objective.
func (m *Model) ObjectiveValue(solution []int64) int64 {
	if m.Objective == nil {
		return 0
	}
	v := m.Objective.Offset
	for k, ind := range m.Objective.Vars {
		v += m.Objective.Coeffs[k] * solution[ind]
	}
	return v
}

// Verify checks `solution` against every variable domain and every constraint
// of the model. The first violation found is returned.
func (m *Model) Verify(solution []int64) error {
	if len(solution) != len(m.Variables) {
		return fmt.Errorf("got %d values for %d variables: %w", len(solution), len(m.Variables), ErrSolutionSize)
	}
	for i, v := range m.Variables {
		if !v.Domain.Contains(solution[i]) {
			return fmt.Errorf("variable %q = %d not in %v: %w", v.Name, solution[i], v.Domain, ErrViolated)
		}
	}
	for i := range m.Constraints {
		ct := &m.Constraints[i]
		if a := ct.Activity(solution); !ct.Domain.Contains(a) {
			return fmt.Errorf("constraint %q activity %d not in %v: %w", ct.Name, a, ct.Domain, ErrViolated)
		}
	}
	return nil
}
