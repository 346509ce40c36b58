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
	"math"
	"testing"

	"github.com/gridopt/terminus/terminus/go/gridmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// bealeRows is Beale's example, on which the largest-coefficient rule cycles
// through degenerate bases. The optimum is -5/4 at x = (1, 0, 1, 0).
func bealeRows() ([]float64, []row) {
	cost := []float64{-0.75, 20, -0.5, 6}
	rows := []row{
		{coeffs: []float64{0.25, -8, -1, 9}, rhs: 0},
		{coeffs: []float64{0.5, -12, -0.5, 3}, rhs: 0},
		{coeffs: []float64{0, 0, 1, 0}, rhs: 1},
	}
	return cost, rows
}

func TestSolveTableau(t *testing.T) {
	bealeCost, beale := bealeRows()
	testCases := []struct {
		name    string
		cost    []float64
		rows    []row
		wantZ   float64
		wantX   []float64
		wantErr error
	}{
		{
			name:  "degenerate",
			cost:  bealeCost,
			rows:  beale,
			wantZ: -1.25,
			wantX: []float64{1, 0, 1, 0},
		},
		{
			name: "phase one",
			// min x+y s.t. x+y >= 2, x-y <= 0, y <= 5.
			cost: []float64{1, 1},
			rows: []row{
				{coeffs: []float64{-1, -1}, rhs: -2},
				{coeffs: []float64{1, -1}, rhs: 0},
				{coeffs: []float64{0, 1}, rhs: 5},
			},
			wantZ: 2,
		},
		{
			name: "redundant equality",
			// x-y == 0 written twice, x >= 1; min x+y.
			cost: []float64{1, 1},
			rows: []row{
				{coeffs: []float64{1, -1}, rhs: 0},
				{coeffs: []float64{-1, 1}, rhs: 0},
				{coeffs: []float64{1, -1}, rhs: 0},
				{coeffs: []float64{-1, 1}, rhs: 0},
				{coeffs: []float64{-1, 0}, rhs: -1},
			},
			wantZ: 2,
			wantX: []float64{1, 1},
		},
		{
			name: "infeasible",
			cost: []float64{1},
			rows: []row{
				{coeffs: []float64{-1}, rhs: -2},
				{coeffs: []float64{1}, rhs: 1},
			},
			wantErr: lp.ErrInfeasible,
		},
		{
			name:    "unbounded",
			cost:    []float64{-1},
			rows:    []row{{coeffs: []float64{-1}, rhs: -1}},
			wantErr: lp.ErrUnbounded,
		},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			z, x, err := solveTableau(test.cost, test.rows, nil)
			if test.wantErr != nil {
				assert.ErrorIs(t, err, test.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, test.wantZ, z, 1e-9)
			assert.True(t, satisfies(test.rows, x), "x = %v", x)
			if test.wantX != nil {
				assert.InDeltaSlice(t, test.wantX, x, 1e-9)
			}
		})
	}
}

func TestSolveTableau_PollsStopBetweenPivots(t *testing.T) {
	cost, rows := bealeRows()
	calls := 0
	stop := func() bool {
		calls++
		return calls > 1
	}
	_, _, err := solveTableau(cost, rows, stop)
	assert.ErrorIs(t, err, errInterrupted)
	assert.Equal(t, 2, calls)
}

func TestSatisfies(t *testing.T) {
	rows := []row{{coeffs: []float64{1, 1}, rhs: 2}}
	assert.True(t, satisfies(rows, []float64{1, 1}))
	assert.False(t, satisfies(rows, []float64{2, 1}))
	assert.False(t, satisfies(rows, []float64{-1, 0}))
}

func TestSolve_MergedEqualities(t *testing.T) {
	testCases := []struct {
		name     string
		build    func(mb *gridmodel.Builder)
		want     Status
		wantObj  int64
		solution []int64
	}{
		{
			name: "fixed class",
			build: func(mb *gridmodel.Builder) {
				x := mb.NewIntVar(3, 3)
				y := mb.NewIntVar(0, math.MaxInt64)
				z := mb.NewIntVar(0, math.MaxInt64)
				mb.AddEquality(y, x)
				mb.AddGreaterThan(z, y)
				mb.Minimize(gridmodel.NewLinearExpr().AddSum(y, z))
			},
			want:     Optimal,
			wantObj:  7,
			solution: []int64{3, 3, 4},
		},
		{
			name: "class domains intersect",
			build: func(mb *gridmodel.Builder) {
				x := mb.NewIntVar(2, 9)
				y := mb.NewIntVar(0, 5)
				mb.AddEquality(x, y)
				mb.Minimize(gridmodel.NewLinearExpr().AddTerm(y, -1))
			},
			want:     Optimal,
			wantObj:  -5,
			solution: []int64{5, 5},
		},
		{
			name: "disjoint domains",
			build: func(mb *gridmodel.Builder) {
				x := mb.NewIntVar(0, 2)
				y := mb.NewIntVar(5, 9)
				mb.AddEquality(x, y)
			},
			want: Infeasible,
		},
		{
			name: "fixed class violates a row",
			build: func(mb *gridmodel.Builder) {
				x := mb.NewIntVar(0, 0)
				y := mb.NewIntVar(0, 10)
				mb.AddEquality(y, x)
				mb.AddGreaterThan(y, gridmodel.NewConstant(0))
			},
			want: Infeasible,
		},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			mb := gridmodel.NewModelBuilder()
			test.build(mb)
			m, err := mb.Model()
			require.NoError(t, err)
			res := solve(t, m, DefaultParameters())
			require.Equal(t, test.want, res.Status)
			if !test.want.HasSolution() {
				return
			}
			assert.Equal(t, test.wantObj, res.ObjectiveValue)
			assert.Equal(t, test.solution, res.Solution)
			require.NoError(t, m.Verify(res.Solution))
		})
	}
}
