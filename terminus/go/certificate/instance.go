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

package certificate

import (
	"fmt"

	"github.com/gridopt/terminus/terminus/go/gridmodel"
	"github.com/gridopt/terminus/terminus/go/pattern"
)

// Instance is the model of one pattern, with the pieces it was built from.
type Instance struct {
	Pattern     pattern.Pattern
	Grid        *gridmodel.Grid
	Certificate Certificate
	Families    gridmodel.Families
	Counts      Counts
	Model       *gridmodel.Model
}

// Name returns the model name of the instance, e.g. "grid_4_0011".
func (in *Instance) Name() string {
	return fmt.Sprintf("grid_%d_%v", len(in.Pattern), in.Pattern)
}

// NewInstance builds the model of pattern p: the grid, its monotone
// constraint families, the certificate constraints and the corner objective.
func NewInstance(p pattern.Pattern) (*Instance, error) {
	if err := pattern.Validate(p); err != nil {
		return nil, err
	}
	in := &Instance{Pattern: p.Clone()}

	mb := gridmodel.NewModelBuilder()
	mb.SetName(in.Name())
	g, err := gridmodel.NewGrid(mb, len(p))
	if err != nil {
		return nil, err
	}
	in.Grid = g
	in.Families = g.AddMonotoneConstraints()

	in.Certificate = Derive(p)
	if in.Counts, err = in.Certificate.AddConstraints(g); err != nil {
		return nil, err
	}
	g.MinimizeCorner()

	if in.Model, err = mb.Model(); err != nil {
		return nil, fmt.Errorf("failed to instantiate the model of %v: %w", p, err)
	}
	return in, nil
}
