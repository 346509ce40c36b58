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
	"math"

	log "github.com/golang/glog"
)

// ErrGridSize is returned when a grid is requested with fewer than one row.
var ErrGridSize = errors.New("invalid grid size")

// Grid is an n×n lattice of integer variables x[i][j], stored row-major. The
// origin x[0][0] is fixed to 0; every other cell is non-negative without an
// upper bound.
type Grid struct {
	n     int
	cells []IntVar
	mb    *Builder
}

// NewGrid creates the n*n cell variables of a grid in `mb`, named `x_i_j`.
func NewGrid(mb *Builder, n int) (*Grid, error) {
	if n < 1 {
		return nil, fmt.Errorf("n=%d: %w", n, ErrGridSize)
	}
	g := &Grid{n: n, cells: make([]IntVar, 0, n*n), mb: mb}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			ub := int64(math.MaxInt64)
			if i == 0 && j == 0 {
				ub = 0
			}
			g.cells = append(g.cells, mb.NewIntVar(0, ub).WithName(fmt.Sprintf("x_%d_%d", i, j)))
		}
	}
	return g, nil
}

// Size returns n.
func (g *Grid) Size() int {
	return g.n
}

// Cell returns x[i][j]. It panics if (i, j) is outside the grid.
func (g *Grid) Cell(i, j int) IntVar {
	if i < 0 || i >= g.n || j < 0 || j >= g.n {
		panic(fmt.Sprintf("gridmodel: cell (%d,%d) outside %dx%d grid", i, j, g.n, g.n))
	}
	return g.cells[i*g.n+j]
}

// Corner returns x[n-1][n-1].
func (g *Grid) Corner() IntVar {
	return g.cells[len(g.cells)-1]
}

// Builder returns the builder holding the grid variables.
func (g *Grid) Builder() *Builder {
	return g.mb
}

// Families counts the constraints emitted by AddMonotoneConstraints, per family.
type Families struct {
	RowMonotone int
	ColMonotone int
	RowConvex   int
	ColConvex   int
	Cross       int
}

// Total returns the number of constraints across all families.
func (f Families) Total() int {
	return f.RowMonotone + f.ColMonotone + f.RowConvex + f.ColConvex + f.Cross
}

// AddMonotoneConstraints adds the pattern-independent constraints of the grid:
//
//	row monotonicity     x[i][j] <= x[i+1][j]
//	column monotonicity  x[i][j] <= x[i][j+1]
//	row convexity        x[i+1][j]-x[i][j] >= x[i+2][j]-x[i+1][j]
//	column convexity     x[i][j+1]-x[i][j] >= x[i][j+2]-x[i][j+1]
//	cross terms          x[i][j+1]-x[i][j] >= x[i+1][j+1]-x[i+1][j]
//	                     x[i+1][j]-x[i][j] >= x[i+1][j+1]-x[i][j+1]
//
// for every index where all cells exist.
func (g *Grid) AddMonotoneConstraints() Families {
	var f Families
	n := g.n
	x := g.Cell
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i < n-1 {
				g.mb.AddLessOrEqual(x(i, j), x(i+1, j)).WithName(fmt.Sprintf("row_mono_%d_%d", i, j))
				f.RowMonotone++
			}
			if j < n-1 {
				g.mb.AddLessOrEqual(x(i, j), x(i, j+1)).WithName(fmt.Sprintf("col_mono_%d_%d", i, j))
				f.ColMonotone++
			}
			if i < n-1 && j < n-1 {
				g.mb.AddGreaterOrEqual(
					NewLinearExpr().Add(x(i, j+1)).AddTerm(x(i, j), -1),
					NewLinearExpr().Add(x(i+1, j+1)).AddTerm(x(i+1, j), -1),
				).WithName(fmt.Sprintf("cross_a_%d_%d", i, j))
				g.mb.AddGreaterOrEqual(
					NewLinearExpr().Add(x(i+1, j)).AddTerm(x(i, j), -1),
					NewLinearExpr().Add(x(i+1, j+1)).AddTerm(x(i, j+1), -1),
				).WithName(fmt.Sprintf("cross_b_%d_%d", i, j))
				f.Cross += 2
			}
			if i < n-2 {
				g.mb.AddGreaterOrEqual(
					NewLinearExpr().Add(x(i+1, j)).AddTerm(x(i, j), -1),
					NewLinearExpr().Add(x(i+2, j)).AddTerm(x(i+1, j), -1),
				).WithName(fmt.Sprintf("row_conv_%d_%d", i, j))
				f.RowConvex++
			}
			if j < n-2 {
				g.mb.AddGreaterOrEqual(
					NewLinearExpr().Add(x(i, j+1)).AddTerm(x(i, j), -1),
					NewLinearExpr().Add(x(i, j+2)).AddTerm(x(i, j+1), -1),
				).WithName(fmt.Sprintf("col_conv_%d_%d", i, j))
				f.ColConvex++
			}
		}
	}
	log.V(2).Infof("grid %dx%d: monotone families %+v", n, n, f)
	return f
}

// MinimizeCorner sets the objective of the model to minimize x[n-1][n-1].
func (g *Grid) MinimizeCorner() {
	g.mb.Minimize(g.Corner())
}

// Values returns the cell values of `solution` as an n×n matrix.
func (g *Grid) Values(solution []int64) [][]int64 {
	out := make([][]int64, g.n)
	for i := range out {
		out[i] = make([]int64, g.n)
		for j := range out[i] {
			out[i][j] = SolutionIntegerValue(solution, g.Cell(i, j))
		}
	}
	return out
}
