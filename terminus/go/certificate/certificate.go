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

// Package certificate derives, from a boolean run-pattern, the grid cells that
// are forced to equal the corner of the grid (the certificates, or termini),
// and assembles the full per-pattern model around them.
package certificate

import (
	"fmt"

	log "github.com/golang/glog"
	"github.com/gridopt/terminus/terminus/go/gridmodel"
	"github.com/gridopt/terminus/terminus/go/pattern"
)

// Pivot is the (row, column) cell a run of the pattern pins to the corner.
type Pivot struct {
	Row int
	Col int
}

// Pivots returns one pivot per run of p. A run ending at index e-1 yields
// (n-1-(e-1), start); the last run yields (0, start).
func Pivots(p pattern.Pattern) []Pivot {
	runs := p.Runs()
	last := len(p) - 1
	pivots := make([]Pivot, 0, len(runs))
	for k, r := range runs {
		if k == len(runs)-1 {
			pivots = append(pivots, Pivot{Row: 0, Col: r.Start})
			break
		}
		pivots = append(pivots, Pivot{Row: last - (r.End() - 1), Col: r.Start})
	}
	if len(pivots) == 0 {
		return nil
	}
	return pivots
}

// Certificate maps every row i of the grid to the column of the cell in that
// row that must equal the corner.
type Certificate []int

// Derive computes the certificate of p. Rows start on the anti-diagonal,
// pivots overwrite their row, and a running minimum makes the columns
// non-increasing with the row index so the pinned cells agree with the
// monotonicity of the grid.
func Derive(p pattern.Pattern) Certificate {
	n := len(p)
	cert := make(Certificate, n)
	for i := range cert {
		cert[i] = (n - 1) - i
	}
	for _, pv := range Pivots(p) {
		cert[pv.Row] = pv.Col
	}
	for i := 1; i < n; i++ {
		cert[i] = min(cert[i-1], cert[i])
	}
	return cert
}

// Cells returns the certificate cells as pivots, one per row.
func (c Certificate) Cells() []Pivot {
	cells := make([]Pivot, len(c))
	for i, j := range c {
		cells[i] = Pivot{Row: i, Col: j}
	}
	return cells
}

// Counts holds the number of constraints AddConstraints emitted.
type Counts struct {
	Equalities   int
	Inequalities int
}

// AddConstraints adds, for every row i with j = c[i], the equality
// x[i][j] == x[n-1][n-1] and, when j > 0, the strict inequality
// x[n-1][n-1] - x[i][j-1] > 0. Rows sharing a column each get their own pair.
func (c Certificate) AddConstraints(g *gridmodel.Grid) (Counts, error) {
	if len(c) != g.Size() {
		return Counts{}, fmt.Errorf("certificate of %d rows for a %dx%d grid: %w", len(c), g.Size(), g.Size(), gridmodel.ErrGridSize)
	}
	var counts Counts
	mb := g.Builder()
	corner := g.Corner()
	for _, cell := range c.Cells() {
		i, j := cell.Row, cell.Col
		mb.AddEquality(g.Cell(i, j), corner).WithName(fmt.Sprintf("cert_eq_%d", i))
		counts.Equalities++
		if j > 0 {
			mb.AddGreaterThan(corner, g.Cell(i, j-1)).WithName(fmt.Sprintf("cert_gt_%d", i))
			counts.Inequalities++
		}
	}
	log.V(2).Infof("certificate %v: %+v", c, counts)
	return counts, nil
}
