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

package mipsolver

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	// pivotTol is the magnitude under which a tableau entry counts as zero.
	pivotTol = 1e-9
	// feasTol is the largest row violation accepted from a relaxation.
	feasTol = 1e-7
)

var (
	errIterationLimit = errors.New("simplex iteration limit reached")
	// errInterrupted is returned when a limit stops a relaxation mid-solve.
	errInterrupted = errors.New("relaxation interrupted")
)

// tableau is a dense simplex tableau for
//
//	min cost.x  s.t.  rows, x >= 0
//
// Rows 0..m-1 hold the constraints with the basic values in the last
// column; row m holds the reduced costs and -z. Columns are the structural
// variables, then one slack per row, then one artificial per row whose
// right-hand side is negative.
type tableau struct {
	t        *mat.Dense
	m        int
	n        int
	numCols  int
	firstArt int
	basis    []int
	stop     func() bool
}

func newTableau(n int, rows []row, stop func() bool) *tableau {
	m := len(rows)
	numArt := 0
	for _, rw := range rows {
		if rw.rhs < 0 {
			numArt++
		}
	}
	numCols := n + m + numArt
	tb := &tableau{
		t:        mat.NewDense(m+1, numCols+1, nil),
		m:        m,
		n:        n,
		numCols:  numCols,
		firstArt: n + m,
		basis:    make([]int, m),
		stop:     stop,
	}
	art := tb.firstArt
	for i, rw := range rows {
		r := tb.t.RawRowView(i)
		sign := 1.0
		if rw.rhs < 0 {
			sign = -1
		}
		for j, v := range rw.coeffs {
			r[j] = sign * v
		}
		r[n+i] = sign
		r[numCols] = sign * rw.rhs
		if sign < 0 {
			r[art] = 1
			tb.basis[i] = art
			art++
		} else {
			tb.basis[i] = n + i
		}
	}
	return tb
}

// setObjective prices out the current basis for `cost`, one entry per column.
func (tb *tableau) setObjective(cost []float64) {
	obj := tb.t.RawRowView(tb.m)
	copy(obj, cost)
	obj[tb.numCols] = 0
	for i, b := range tb.basis {
		cb := cost[b]
		if cb == 0 {
			continue
		}
		for j, v := range tb.t.RawRowView(i) {
			obj[j] -= cb * v
		}
	}
}

func (tb *tableau) pivot(pr, pc int) {
	prow := tb.t.RawRowView(pr)
	inv := 1 / prow[pc]
	for k := range prow {
		prow[k] *= inv
	}
	prow[pc] = 1
	for i := 0; i <= tb.m; i++ {
		if i == pr {
			continue
		}
		r := tb.t.RawRowView(i)
		f := r[pc]
		if f == 0 {
			continue
		}
		for k, v := range prow {
			if v != 0 {
				r[k] -= f * v
			}
		}
		r[pc] = 0
		if i < tb.m && r[tb.numCols] < 0 && r[tb.numCols] > -feasTol {
			r[tb.numCols] = 0
		}
	}
	tb.basis[pr] = pc
}

// iterate pivots until no column below `allowed` has a negative reduced
// cost. Entering and leaving columns follow Bland's rule, so degenerate
// bases cannot cycle.
func (tb *tableau) iterate(allowed int) error {
	obj := tb.t.RawRowView(tb.m)
	limit := 50 * (tb.m + tb.numCols)
	for it := 0; ; it++ {
		if it >= limit {
			return errIterationLimit
		}
		if tb.stop != nil && tb.stop() {
			return errInterrupted
		}
		enter := -1
		for j := 0; j < allowed; j++ {
			if obj[j] < -pivotTol {
				enter = j
				break
			}
		}
		if enter < 0 {
			return nil
		}
		leave, best := -1, math.Inf(1)
		for i := 0; i < tb.m; i++ {
			r := tb.t.RawRowView(i)
			if r[enter] <= pivotTol {
				continue
			}
			ratio := r[tb.numCols] / r[enter]
			switch {
			case leave < 0 || ratio < best-pivotTol:
				leave, best = i, ratio
			case ratio <= best+pivotTol && tb.basis[i] < tb.basis[leave]:
				leave, best = i, math.Min(best, ratio)
			}
		}
		if leave < 0 {
			return lp.ErrUnbounded
		}
		tb.pivot(leave, enter)
	}
}

// evictArtificials pivots every artificial still basic at zero out of the
// basis. Rows with no structural or slack entry left are redundant and keep
// their artificial, which never enters again.
func (tb *tableau) evictArtificials() {
	for i := range tb.basis {
		if tb.basis[i] < tb.firstArt {
			continue
		}
		r := tb.t.RawRowView(i)
		for j := 0; j < tb.firstArt; j++ {
			if math.Abs(r[j]) > pivotTol {
				tb.pivot(i, j)
				break
			}
		}
	}
}

// solveTableau minimizes cost.x over `rows` with x >= 0 by the two-phase
// simplex method. It returns lp.ErrInfeasible or lp.ErrUnbounded like
// lp.Simplex, and errInterrupted when `stop` fires.
func solveTableau(cost []float64, rows []row, stop func() bool) (float64, []float64, error) {
	tb := newTableau(len(cost), rows, stop)
	if tb.firstArt < tb.numCols {
		phase1 := make([]float64, tb.numCols)
		for j := tb.firstArt; j < tb.numCols; j++ {
			phase1[j] = 1
		}
		tb.setObjective(phase1)
		if err := tb.iterate(tb.numCols); err != nil {
			return 0, nil, err
		}
		if -tb.t.At(tb.m, tb.numCols) > feasTol {
			return 0, nil, lp.ErrInfeasible
		}
		tb.evictArtificials()
	}

	phase2 := make([]float64, tb.numCols)
	copy(phase2, cost)
	tb.setObjective(phase2)
	if err := tb.iterate(tb.firstArt); err != nil {
		return 0, nil, err
	}
	x := make([]float64, tb.n)
	for i, b := range tb.basis {
		if b < tb.n {
			x[b] = math.Max(0, tb.t.At(i, tb.numCols))
		}
	}
	z := 0.0
	for j, c := range cost {
		z += c * x[j]
	}
	return z, x, nil
}
