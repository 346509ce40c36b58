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

// Package gridmodel offers a small API to build integer linear models over
// grids of integer variables.
//
// The `Builder` struct accumulates a `Model` and provides helper methods for
// adding variables, linear constraints and the objective. The `IntVar` and
// `Constraint` structs are references to specific elements of the model being
// built. The `LinearExpr` struct provides helper methods for creating
// constraints and the objective from expressions with many variables and
// coefficients. `Grid` lays out one variable per cell of an n×n lattice and
// emits the monotonicity and convexity constraint families over it.
package gridmodel

import (
	"errors"
	"fmt"

	log "github.com/golang/glog"
)

// ErrMixedModels holds the error when elements added to a model are different.
var ErrMixedModels = errors.New("elements are not part of the same model")

type (
	// VarIndex is the index of a variable in the model.
	VarIndex int32
	// ConstrIndex is the index of a constraint in the model.
	ConstrIndex int32
)

// LinearArgument provides an interface for IntVar and LinearExpr.
type LinearArgument interface {
	addToLinearExpr(e *LinearExpr, c int64)
	evaluateSolutionValue(solution []int64) int64
}

// LinearExpr is a container for a linear expression.
type LinearExpr struct {
	varCoeffs []varCoeff
	offset    int64
}

type varCoeff struct {
	ind   VarIndex
	coeff int64
	mb    *Builder
}

// NewLinearExpr creates a new empty LinearExpr.
func NewLinearExpr() *LinearExpr {
	return &LinearExpr{}
}

// NewConstant creates and returns a LinearExpr containing the constant `c`.
func NewConstant(c int64) *LinearExpr {
	return &LinearExpr{offset: c}
}

// Add adds the linear argument term to the LinearExpr and returns itself.
func (l *LinearExpr) Add(la LinearArgument) *LinearExpr {
	l.AddTerm(la, 1)
	return l
}

// AddConstant adds the constant to the LinearExpr and returns itself.
func (l *LinearExpr) AddConstant(c int64) *LinearExpr {
	l.offset += c
	return l
}

// AddTerm adds the linear argument term with the given coefficient to the LinearExpr and returns itself.
func (l *LinearExpr) AddTerm(la LinearArgument, coeff int64) *LinearExpr {
	la.addToLinearExpr(l, coeff)
	return l
}

// AddSum adds the sum of the linear arguments to the LinearExpr and returns itself.
func (l *LinearExpr) AddSum(las ...LinearArgument) *LinearExpr {
	for _, la := range las {
		l.Add(la)
	}
	return l
}

func (l *LinearExpr) addToLinearExpr(e *LinearExpr, c int64) {
	for _, vc := range l.varCoeffs {
		e.varCoeffs = append(e.varCoeffs, varCoeff{ind: vc.ind, coeff: vc.coeff * c, mb: vc.mb})
	}
	e.offset += l.offset * c
}

func (l *LinearExpr) evaluateSolutionValue(solution []int64) int64 {
	result := l.offset

	for _, vc := range l.varCoeffs {
		result += solution[vc.ind] * vc.coeff
	}

	return result
}

// IntVar is a reference to an integer variable in the model.
type IntVar struct {
	ind VarIndex
	mb  *Builder
}

// Name returns the name of the variable.
func (i IntVar) Name() string {
	return i.mb.m.Variables[i.ind].Name
}

// Domain returns the domain of the variable.
func (i IntVar) Domain() ClosedInterval {
	return i.mb.m.Variables[i.ind].Domain
}

// Index returns the index of the variable.
func (i IntVar) Index() VarIndex {
	return i.ind
}

// WithName sets the name of the variable.
func (i IntVar) WithName(s string) IntVar {
	i.mb.m.Variables[i.ind].Name = s
	return i
}

func (i IntVar) addToLinearExpr(e *LinearExpr, c int64) {
	e.varCoeffs = append(e.varCoeffs, varCoeff{ind: i.ind, coeff: c, mb: i.mb})
}

func (i IntVar) evaluateSolutionValue(solution []int64) int64 {
	return solution[i.ind]
}

// Constraint is a reference to a constraint in the model.
type Constraint struct {
	ind ConstrIndex
	mb  *Builder
}

// WithName sets the name of the constraint.
func (c Constraint) WithName(s string) Constraint {
	c.mb.m.Constraints[c.ind].Name = s
	return c
}

// Name returns the name of the constraint.
func (c Constraint) Name() string {
	return c.mb.m.Constraints[c.ind].Name
}

// Index returns the index of the constraint.
func (c Constraint) Index() ConstrIndex {
	return c.ind
}

// Variable is a variable of a Model.
type Variable struct {
	Name   string
	Domain ClosedInterval
}

// LinearConstraint restricts `sum(Coeffs[k] * x[Vars[k]])` to Domain. A
// variable may appear more than once; its coefficients add up.
type LinearConstraint struct {
	Name   string
	Vars   []VarIndex
	Coeffs []int64
	Domain ClosedInterval
}

// Objective is the minimization objective `Offset + sum(Coeffs[k] * x[Vars[k]])`.
type Objective struct {
	Vars   []VarIndex
	Coeffs []int64
	Offset int64
}

// Model is an integer linear model: integer variables, linear constraints and
// an optional minimization objective.
type Model struct {
	Name        string
	Variables   []Variable
	Constraints []LinearConstraint
	Objective   *Objective
}

// checkSameModelAndSetErrorf returns true if `mb` and `mb2` point to the same Builder.
// If false, an error with the error message `errString` is set on `mb` if `mb.err`
// is nil.
func (mb *Builder) checkSameModelAndSetErrorf(mb2 *Builder, format string, a ...any) bool {
	if mb == mb2 {
		return true
	}
	var args = make([]any, len(a)+1)
	copy(args, a)
	args[len(a)] = ErrMixedModels
	err := fmt.Errorf(format+": %w", args...)
	log.Errorf("%v; use `-log_backtrace_at` flag to get the error stack", err)
	if mb.err == nil {
		mb.err = err
	}
	return false
}

// Builder accumulates a Model.
type Builder struct {
	m *Model
	// The first and only the first error is reported in Model.
	err error
}

// NewModelBuilder creates and returns a new model Builder.
func NewModelBuilder() *Builder {
	return &Builder{m: &Model{}}
}

// SetName sets the name of the model.
func (mb *Builder) SetName(name string) {
	mb.m.Name = name
}

// NewIntVar creates a new integer variable with domain `[lb,ub]`. Use math.MaxInt64 as
// `ub` for a variable without upper bound.
func (mb *Builder) NewIntVar(lb, ub int64) IntVar {
	return mb.NewIntVarFromInterval(ClosedInterval{lb, ub})
}

// NewIntVarFromInterval creates a new integer variable with the given domain.
func (mb *Builder) NewIntVarFromInterval(d ClosedInterval) IntVar {
	intVar := IntVar{mb: mb, ind: VarIndex(len(mb.m.Variables))}
	mb.m.Variables = append(mb.m.Variables, Variable{Domain: d})
	return intVar
}

// NumVariables returns the number of variables created so far.
func (mb *Builder) NumVariables() int {
	return len(mb.m.Variables)
}

// NumConstraints returns the number of constraints added so far.
func (mb *Builder) NumConstraints() int {
	return len(mb.m.Constraints)
}

func (mb *Builder) appendConstraint(ct LinearConstraint) Constraint {
	i := ConstrIndex(len(mb.m.Constraints))
	mb.m.Constraints = append(mb.m.Constraints, ct)

	return Constraint{mb: mb, ind: i}
}

// addLinearConstraint adds a linear constraint that enforces the value of `le` to be in
// `interval`. The constant offset of `le` is subtracted from the interval.
func (mb *Builder) addLinearConstraint(le *LinearExpr, interval ClosedInterval) Constraint {
	ct := LinearConstraint{Domain: interval.Offset(-le.offset)}
	for _, vc := range le.varCoeffs {
		mb.checkSameModelAndSetErrorf(vc.mb, "variable %v added to constraint %v", vc.ind, len(mb.m.Constraints))
		ct.Vars = append(ct.Vars, vc.ind)
		ct.Coeffs = append(ct.Coeffs, vc.coeff)
	}

	return mb.appendConstraint(ct)
}

// AddLinearConstraint adds the linear constraint `lb <= expr <= ub`
func (mb *Builder) AddLinearConstraint(expr LinearArgument, lb, ub int64) Constraint {
	linExpr := NewLinearExpr().Add(expr)
	return mb.addLinearConstraint(linExpr, ClosedInterval{lb, ub})
}

// AddEquality adds the linear constraint `lhs == rhs`.
func (mb *Builder) AddEquality(lhs LinearArgument, rhs LinearArgument) Constraint {
	diff := NewLinearExpr().Add(lhs).AddTerm(rhs, -1)

	return mb.addLinearConstraint(diff, Singleton(0))
}

// AddLessOrEqual adds the linear constraint `lhs <= rhs`.
func (mb *Builder) AddLessOrEqual(lhs LinearArgument, rhs LinearArgument) Constraint {
	diff := NewLinearExpr().Add(lhs).AddTerm(rhs, -1)

	return mb.addLinearConstraint(diff, AtMost(0))
}

// AddLessThan adds the linear constraint `lhs < rhs`.
func (mb *Builder) AddLessThan(lhs LinearArgument, rhs LinearArgument) Constraint {
	diff := NewLinearExpr().Add(lhs).AddTerm(rhs, -1)

	return mb.addLinearConstraint(diff, AtMost(-1))
}

// AddGreaterOrEqual adds the linear constraint `lhs >= rhs`.
func (mb *Builder) AddGreaterOrEqual(lhs LinearArgument, rhs LinearArgument) Constraint {
	diff := NewLinearExpr().Add(lhs).AddTerm(rhs, -1)

	return mb.addLinearConstraint(diff, AtLeast(0))
}

// AddGreaterThan adds the linear constraint `lhs > rhs`.
func (mb *Builder) AddGreaterThan(lhs LinearArgument, rhs LinearArgument) Constraint {
	diff := NewLinearExpr().Add(lhs).AddTerm(rhs, -1)

	return mb.addLinearConstraint(diff, AtLeast(1))
}

// Minimize sets a linear minimization objective, replacing any previous one.
func (mb *Builder) Minimize(obj LinearArgument) {
	o := NewLinearExpr().Add(obj)

	opb := &Objective{Offset: o.offset}
	for _, vc := range o.varCoeffs {
		if !mb.checkSameModelAndSetErrorf(vc.mb, "variable %v added to the objective", vc.ind) {
			return
		}
		opb.Vars = append(opb.Vars, vc.ind)
		opb.Coeffs = append(opb.Coeffs, vc.coeff)
	}

	mb.m.Objective = opb
}

// Model returns the built model. The model returned is a pointer to the model in Builder,
// and if modified, future calls to the Builder API can result in an invalid model.
//
// Model returns an error when invalid parameters have been used during model building (e.g.
// passing variables from other builders).
func (mb *Builder) Model() (*Model, error) {
	if mb.err != nil {
		return nil, mb.err
	}
	return mb.m, nil
}

// SolutionIntegerValue returns the value of LinearArgument `la` under `solution`, which
// holds one value per model variable.
func SolutionIntegerValue(solution []int64, la LinearArgument) int64 {
	return la.evaluateSolutionValue(solution)
}
