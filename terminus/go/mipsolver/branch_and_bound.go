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
	"fmt"
	"math"
	"sync/atomic"
	"time"

	log "github.com/golang/glog"
	"github.com/gridopt/terminus/terminus/go/gridmodel"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// errInvalidModel marks models that cannot be put in standard form. It
// never leaves the package: such models get the ModelInvalid status.
var errInvalidModel = errors.New("invalid model")

// row is the inequality `coeffs . x <= rhs` over the columns of a relaxation.
type row struct {
	coeffs []float64
	rhs    float64
}

// relaxation is the LP relaxation of a presolved model, with every
// constraint turned into `<=` rows over non-negative columns.
//
// Presolve merges the variables of every `a - b == 0` constraint into one
// class and substitutes fixed classes by their value. Each remaining class
// that appears in a row or has a non-trivial bound is a column; the others
// sit at their lower bound.
type relaxation struct {
	// class[v] is the representative of the class of variable v.
	class []int
	// column[c] is the column of representative c, or -1.
	column []int
	// value[c] is the value of representative c when it is not a column.
	value    []int64
	numCols  int
	cost     []float64
	rows     []row
	offset   float64
	presolve presolveStats
}

type presolveStats struct {
	merged, substituted, dropped int
}

// unionFind partitions variable indices into equality classes.
type unionFind []int

func newUnionFind(n int) unionFind {
	uf := make(unionFind, n)
	for i := range uf {
		uf[i] = i
	}
	return uf
}

func (uf unionFind) find(v int) int {
	for uf[v] != v {
		uf[v] = uf[uf[v]]
		v = uf[v]
	}
	return v
}

// union reports whether a and b were in different classes.
func (uf unionFind) union(a, b int) bool {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return false
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	uf[rb] = ra
	return true
}

// isEquality reports whether ts with domain d reads `a - b == 0`.
func isEquality(ts []term, d gridmodel.ClosedInterval) bool {
	return len(ts) == 2 && ts[0].coeff == -ts[1].coeff && d == gridmodel.Singleton(0)
}

// newRelaxation presolves m and puts it in standard form. It returns
// errInvalidModel for models outside what the solver supports, and the
// Infeasible or Unbounded status when presolve alone decides the model.
func newRelaxation(m *gridmodel.Model) (*relaxation, Status, error) {
	n := len(m.Variables)
	for i, v := range m.Variables {
		if v.Domain.IsEmpty() {
			return nil, ModelInvalid, fmt.Errorf("variable %d (%s) has empty domain %v: %w", i, v.Name, v.Domain, errInvalidModel)
		}
		if v.Domain.Start < 0 {
			return nil, ModelInvalid, fmt.Errorf("variable %d (%s) has negative lower bound %v: %w", i, v.Name, v.Domain, errInvalidModel)
		}
	}
	checkTerms := func(vars []gridmodel.VarIndex, coeffs []int64, what string) ([]term, error) {
		if len(vars) != len(coeffs) {
			return nil, fmt.Errorf("%s has %d variables and %d coefficients: %w", what, len(vars), len(coeffs), errInvalidModel)
		}
		for _, v := range vars {
			if v < 0 || int(v) >= n {
				return nil, fmt.Errorf("%s references variable %d of %d: %w", what, v, n, errInvalidModel)
			}
		}
		return mergeTerms(vars, coeffs), nil
	}

	r := &relaxation{class: make([]int, n), column: make([]int, n), value: make([]int64, n)}
	uf := newUnionFind(n)
	terms := make([][]term, len(m.Constraints))
	var kept []int
	for i, ct := range m.Constraints {
		what := fmt.Sprintf("constraint %d (%s)", i, ct.Name)
		if ct.Domain.IsEmpty() {
			return nil, ModelInvalid, fmt.Errorf("%s has empty domain %v: %w", what, ct.Domain, errInvalidModel)
		}
		ts, err := checkTerms(ct.Vars, ct.Coeffs, what)
		if err != nil {
			return nil, ModelInvalid, err
		}
		terms[i] = ts
		if isEquality(ts, ct.Domain) {
			if uf.union(int(ts[0].v), int(ts[1].v)) {
				r.presolve.merged++
			}
			continue
		}
		kept = append(kept, i)
	}
	var objTerms []term
	if obj := m.Objective; obj != nil {
		ts, err := checkTerms(obj.Vars, obj.Coeffs, "objective")
		if err != nil {
			return nil, ModelInvalid, err
		}
		objTerms = ts
		r.offset = float64(obj.Offset)
	}

	// Intersect the domains of every class.
	lo := make([]int64, n)
	hi := make([]int64, n)
	for v := range lo {
		lo[v], hi[v] = 0, math.MaxInt64
	}
	for v, variable := range m.Variables {
		c := uf.find(v)
		r.class[v] = c
		lo[c] = max(lo[c], variable.Domain.Start)
		hi[c] = min(hi[c], variable.Domain.End)
	}
	fixed := func(c int) bool { return lo[c] == hi[c] }
	for c := range lo {
		if r.class[c] != c {
			continue
		}
		if lo[c] > hi[c] {
			log.V(1).Infof("model %q: equal variables have disjoint domains at %s", m.Name, m.Variables[c].Name)
			return nil, Infeasible, nil
		}
		if fixed(c) {
			r.presolve.substituted++
		}
	}

	cost := make([]float64, n)
	for _, t := range objTerms {
		c := r.class[t.v]
		if fixed(c) {
			r.offset += float64(t.coeff * lo[c])
			continue
		}
		cost[c] += float64(t.coeff)
	}

	var full []row
	for _, i := range kept {
		ct := m.Constraints[i]
		d := make([]float64, n)
		var constant int64
		for _, t := range terms[i] {
			c := r.class[t.v]
			if fixed(c) {
				constant += t.coeff * lo[c]
				continue
			}
			d[c] += float64(t.coeff)
		}
		if isZero(d) {
			if !ct.Domain.Contains(constant) {
				log.V(1).Infof("model %q: constraint %d (%s) is trivially violated", m.Name, i, ct.Name)
				return nil, Infeasible, nil
			}
			r.presolve.dropped++
			continue
		}
		if ct.Domain.HasUpperBound() {
			full = append(full, row{coeffs: d, rhs: float64(ct.Domain.End) - float64(constant)})
		}
		if ct.Domain.HasLowerBound() {
			full = append(full, row{coeffs: negate(d), rhs: float64(constant) - float64(ct.Domain.Start)})
		}
	}

	var representative []int
	for c := range r.column {
		r.column[c] = -1
		if r.class[c] != c {
			continue
		}
		if fixed(c) {
			r.value[c] = lo[c]
			continue
		}
		used := lo[c] > 0 || hi[c] < math.MaxInt64
		for _, rw := range full {
			if rw.coeffs[c] != 0 {
				used = true
				break
			}
		}
		if !used {
			if cost[c] < 0 {
				log.V(1).Infof("model %q: variable %s decreases the objective and is unconstrained", m.Name, m.Variables[c].Name)
				return nil, Unbounded, nil
			}
			r.value[c] = lo[c]
			continue
		}
		r.column[c] = len(representative)
		representative = append(representative, c)
		r.cost = append(r.cost, cost[c])
	}
	r.numCols = len(representative)

	for _, rw := range full {
		p := row{coeffs: make([]float64, r.numCols), rhs: rw.rhs}
		for j, c := range representative {
			p.coeffs[j] = rw.coeffs[c]
		}
		r.rows = append(r.rows, p)
	}
	for j, c := range representative {
		if lo[c] > 0 {
			r.rows = append(r.rows, r.boundRow(j, -1, -float64(lo[c])))
		}
		if hi[c] < math.MaxInt64 {
			r.rows = append(r.rows, r.boundRow(j, 1, float64(hi[c])))
		}
	}
	return r, Unknown, nil
}

func (r *relaxation) boundRow(c int, coeff, rhs float64) row {
	rw := row{coeffs: make([]float64, r.numCols), rhs: rhs}
	rw.coeffs[c] = coeff
	return rw
}

// solve solves the relaxation with the extra branching rows. gonum's simplex
// runs first; when it fails or returns a point outside the rows, the dense
// tableau decides. `stop` is polled between tableau pivots.
func (r *relaxation) solve(extra []row, stop func() bool) (float64, []float64, error) {
	if r.numCols == 0 {
		return r.offset, nil, nil
	}
	rows := append(append([]row(nil), r.rows...), extra...)
	z, x, err := simplex(r.cost, rows)
	if err == nil && !satisfies(rows, x) {
		err = errors.New("lp.Simplex returned a point outside the rows")
	}
	if err != nil {
		log.V(2).Infof("%v; solving the relaxation on the tableau", err)
		if z, x, err = solveTableau(r.cost, rows, stop); err != nil {
			return 0, nil, err
		}
	}
	return z + r.offset, x, nil
}

// simplex solves the rows with lp.Simplex. Every row gets its own slack
// column, so the equality matrix has full row rank.
func simplex(cost []float64, rows []row) (z float64, x []float64, err error) {
	defer func() {
		if p := recover(); p != nil {
			z, x, err = 0, nil, fmt.Errorf("lp.Simplex panicked: %v", p)
		}
	}()
	numCols, m := len(cost), len(rows)
	c := make([]float64, numCols+m)
	copy(c, cost)
	a := mat.NewDense(m, numCols+m, nil)
	b := make([]float64, m)
	for i, rw := range rows {
		for j, v := range rw.coeffs {
			if v != 0 {
				a.Set(i, j, v)
			}
		}
		a.Set(i, numCols+i, 1)
		b[i] = rw.rhs
	}
	z, x, err = lp.Simplex(c, a, b, 0, nil)
	if err != nil {
		return 0, nil, err
	}
	return z, x[:numCols], nil
}

// satisfies reports whether x meets every row within feasTol.
func satisfies(rows []row, x []float64) bool {
	for _, v := range x {
		if v < -feasTol {
			return false
		}
	}
	for _, rw := range rows {
		activity := 0.0
		for j, a := range rw.coeffs {
			activity += a * x[j]
		}
		if activity > rw.rhs+feasTol*math.Max(1, math.Abs(rw.rhs)) {
			return false
		}
	}
	return true
}

// node is an open subproblem: the branching rows on the path from the root.
type node struct {
	branches []row
	// bound is the relaxation value of the parent.
	bound float64
}

// branchAndBound minimizes m over the integers with a depth-first search that
// branches on the most fractional column. `stop` and the time limit are
// polled between nodes and between pivots of the tableau; the node limit is
// checked between nodes.
func branchAndBound(m *gridmodel.Model, params Parameters, stop *atomic.Bool) (*Response, error) {
	res := &Response{Status: Unknown, BestObjectiveBound: math.Inf(-1)}
	r, status, err := newRelaxation(m)
	if errors.Is(err, errInvalidModel) {
		log.Warningf("model %q: %v", m.Name, err)
		res.Status = ModelInvalid
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	if r == nil {
		res.Status = status
		return res, nil
	}
	log.V(2).Infof("model %q: presolve merged %d equalities, substituted %d fixed classes, dropped %d constraints; %d columns, %d rows",
		m.Name, r.presolve.merged, r.presolve.substituted, r.presolve.dropped, r.numCols, len(r.rows))

	var deadline time.Time
	if params.MaxTime > 0 {
		deadline = time.Now().Add(params.MaxTime)
	}
	interrupted := func() bool {
		return stop.Load() || (!deadline.IsZero() && time.Now().After(deadline))
	}
	tol := params.IntegralityTolerance

	var (
		incumbent    []int64
		incumbentObj int64
		limitReached bool
		rootBound    = math.Inf(-1)
	)
	hasIncumbent := func() bool { return incumbent != nil }
	stack := []node{{bound: math.Inf(-1)}}
search:
	for len(stack) > 0 {
		if interrupted() || (params.MaxNodes > 0 && res.NumNodes >= params.MaxNodes) {
			limitReached = true
			break
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if hasIncumbent() && prunable(nd.bound, incumbentObj, tol) {
			continue
		}
		res.NumNodes++

		z, x, err := r.solve(nd.branches, interrupted)
		switch {
		case errors.Is(err, lp.ErrInfeasible):
			continue
		case errors.Is(err, lp.ErrUnbounded):
			// The columns are integers with integral data, so an unbounded
			// relaxation of a node means the node itself is unbounded or empty.
			log.V(1).Infof("model %q: unbounded relaxation at node %d", m.Name, res.NumNodes)
			res.Status = Unbounded
			return res, nil
		case errors.Is(err, errInterrupted):
			limitReached = true
			break search
		case err != nil:
			return nil, fmt.Errorf("simplex failed at node %d: %w", res.NumNodes, err)
		}
		if res.NumNodes == 1 {
			rootBound = z
		}
		if hasIncumbent() && prunable(z, incumbentObj, tol) {
			continue
		}

		k := mostFractional(x, tol)
		if k < 0 {
			sol := r.values(x)
			obj := m.ObjectiveValue(sol)
			if !hasIncumbent() || obj < incumbentObj {
				incumbent, incumbentObj = sol, obj
				if params.LogSearchProgress {
					log.Infof("model %q: #%d solution objective=%d", m.Name, res.NumNodes, obj)
				}
			}
			continue
		}
		// The floor branch is pushed last so it is explored first.
		up := r.boundRow(k, -1, -math.Ceil(x[k]))
		down := r.boundRow(k, 1, math.Floor(x[k]))
		stack = append(stack,
			node{branches: appendRow(nd.branches, up), bound: z},
			node{branches: appendRow(nd.branches, down), bound: z})
	}

	switch {
	case hasIncumbent() && !limitReached:
		res.Status = Optimal
		res.BestObjectiveBound = float64(incumbentObj)
	case hasIncumbent():
		res.Status = Feasible
		res.BestObjectiveBound = rootBound
	case !limitReached:
		res.Status = Infeasible
	default:
		res.BestObjectiveBound = rootBound
	}
	if hasIncumbent() {
		res.ObjectiveValue = incumbentObj
		res.Solution = incumbent
	}
	return res, nil
}

// values expands column values into one rounded value per model variable.
func (r *relaxation) values(x []float64) []int64 {
	sol := make([]int64, len(r.class))
	for v, c := range r.class {
		if j := r.column[c]; j >= 0 {
			sol[v] = int64(math.Round(x[j]))
		} else {
			sol[v] = r.value[c]
		}
	}
	return sol
}

// prunable reports whether a subproblem with relaxation value z cannot beat
// the incumbent. Objectives are integral, so only ceil(z) matters.
func prunable(z float64, incumbent int64, tol float64) bool {
	return math.Ceil(z-tol) >= float64(incumbent)
}

// mostFractional returns the column whose value is farthest from an integer,
// or -1 if every value is within tol of one.
func mostFractional(x []float64, tol float64) int {
	best, bestDist := -1, tol
	for c, v := range x {
		if d := math.Abs(v - math.Round(v)); d > bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func appendRow(rows []row, rw row) []row {
	return append(append(make([]row, 0, len(rows)+1), rows...), rw)
}

func isZero(d []float64) bool {
	for _, v := range d {
		if v != 0 {
			return false
		}
	}
	return true
}

func negate(d []float64) []float64 {
	out := make([]float64, len(d))
	for i, v := range d {
		out[i] = -v
	}
	return out
}
