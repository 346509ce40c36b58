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

// Package mipsolver solves gridmodel models with an LP-based branch-and-bound
// on top of gonum's simplex, backed by a dense two-phase tableau for the
// degenerate relaxations gonum gives up on, and exports models to
// interchange formats.
//
// Use it like this:
//
//	err := mipsolver.WithSolver("grid", mipsolver.DefaultParameters(), func(s *mipsolver.Solver) error {
//		if err := s.LoadModel(m); err != nil {
//			return err
//		}
//		if _, err := s.Solve(ctx); err != nil {
//			return err
//		}
//		res = s.Solution()
//		return nil
//	})
package mipsolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/golang/glog"
	"github.com/gridopt/terminus/terminus/go/gridmodel"
)

var (
	// ErrSolverDeleted is returned by every method of a deleted Solver.
	ErrSolverDeleted = errors.New("solver has been deleted")
	// ErrNoModel is returned by Solve when no model has been loaded.
	ErrNoModel = errors.New("no model loaded")
	// ErrInvalidParameters is returned by New for out of range parameters.
	ErrInvalidParameters = errors.New("invalid solver parameters")
	// ErrSolverPanic wraps a panic raised while the solver was in use.
	ErrSolverPanic = errors.New("solver panicked")
)

// Status is the outcome of a solve.
type Status int32

// Possible solve statuses.
const (
	// Unknown: a limit stopped the search before any solution was found.
	Unknown Status = iota
	// ModelInvalid: the model cannot be solved as given.
	ModelInvalid
	// Feasible: a solution was found but a limit stopped the search before optimality was proven.
	Feasible
	// Infeasible: the model has no integer solution.
	Infeasible
	// Unbounded: the objective can decrease without limit.
	Unbounded
	// Optimal: the solution is proven optimal.
	Optimal
)

var statusNames = map[Status]string{
	Unknown:      "UNKNOWN",
	ModelInvalid: "MODEL_INVALID",
	Feasible:     "FEASIBLE",
	Infeasible:   "INFEASIBLE",
	Unbounded:    "UNBOUNDED",
	Optimal:      "OPTIMAL",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Status(%d)", int32(s))
}

// HasSolution reports whether a solve with this status returns values.
func (s Status) HasSolution() bool {
	return s == Optimal || s == Feasible
}

// Parameters configures a Solver.
type Parameters struct {
	// MaxNodes bounds the number of branch-and-bound nodes. 0 means no limit.
	MaxNodes int64
	// MaxTime bounds the wall time of a solve. 0 means no limit.
	//
	// The deadline and interrupts are checked between nodes and between the
	// pivots of the fallback tableau. A relaxation that gonum's lp.Simplex
	// solves runs to completion, so a solve may overrun MaxTime by one such
	// call.
	MaxTime time.Duration
	// IntegralityTolerance is the distance to the nearest integer under which
	// an LP value counts as integral. Must be in (0, 0.5).
	IntegralityTolerance float64
	// LogSearchProgress logs every improving solution at INFO level.
	LogSearchProgress bool
}

// DefaultParameters returns the parameters New uses when none are tuned.
func DefaultParameters() Parameters {
	return Parameters{IntegralityTolerance: 1e-6}
}

func (p Parameters) validate() error {
	if p.MaxNodes < 0 {
		return fmt.Errorf("MaxNodes=%d: %w", p.MaxNodes, ErrInvalidParameters)
	}
	if p.MaxTime < 0 {
		return fmt.Errorf("MaxTime=%v: %w", p.MaxTime, ErrInvalidParameters)
	}
	if !(p.IntegralityTolerance > 0 && p.IntegralityTolerance < 0.5) {
		return fmt.Errorf("IntegralityTolerance=%v: %w", p.IntegralityTolerance, ErrInvalidParameters)
	}
	return nil
}

// Response is the result of a solve.
type Response struct {
	Status Status
	// ObjectiveValue is the objective of Solution. Only meaningful if Status.HasSolution().
	ObjectiveValue int64
	// BestObjectiveBound is a lower bound on the optimal objective.
	BestObjectiveBound float64
	// Solution holds one value per model variable.
	Solution []int64
	NumNodes int64
	WallTime time.Duration
}

// Value returns the value of `la` in the response solution.
func (r *Response) Value(la gridmodel.LinearArgument) int64 {
	return gridmodel.SolutionIntegerValue(r.Solution, la)
}

// Solver solves one loaded model at a time.
//
// The caller must call Delete on a solver when it is done with it, or use
// WithSolver. All methods of a deleted solver return ErrSolverDeleted.
type Solver struct {
	name   string
	params Parameters

	mutex    sync.Mutex
	deleted  bool // Guarded by mutex.
	model    *gridmodel.Model
	response *Response
}

// New initializes a new solver, given a name and parameters.
func New(name string, params Parameters) (*Solver, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &Solver{name: name, params: params}, nil
}

// Delete releases the solver and its loaded model. Calling it multiple times
// has no effect.
func Delete(s *Solver) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.deleted = true
	s.model = nil
	s.response = nil
}

// WithSolver creates a solver, calls fn with it and deletes it on every exit
// path. A panic inside fn is returned as an error wrapping ErrSolverPanic.
func WithSolver(name string, params Parameters, fn func(*Solver) error) (err error) {
	s, err := New(name, params)
	if err != nil {
		return err
	}
	defer Delete(s)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("solver %q: %v: %w", name, r, ErrSolverPanic)
		}
	}()
	return fn(s)
}

// Name returns the solver name.
func (s *Solver) Name() string {
	return s.name
}

// Parameters returns the solver parameters.
func (s *Solver) Parameters() Parameters {
	return s.params
}

func (s *Solver) checkAlive() error {
	if s.deleted {
		return fmt.Errorf("solver %q: %w", s.name, ErrSolverDeleted)
	}
	return nil
}

// LoadModel loads m, replacing any previous model and response. The model
// must not be modified until the solver is done with it.
func (s *Solver) LoadModel(m *gridmodel.Model) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := s.checkAlive(); err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("solver %q: nil model: %w", s.name, ErrNoModel)
	}
	s.model = m
	s.response = nil
	return nil
}

// Model returns the loaded model, or nil.
func (s *Solver) Model() *gridmodel.Model {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.model
}

// Solve solves the loaded model. It stops early when ctx is done, in which
// case the status reflects the best solution found so far.
func (s *Solver) Solve(ctx context.Context) (Status, error) {
	return s.SolveInterruptible(ctx.Done())
}

// SolveInterruptible solves the loaded model. The solve can be interrupted by
// closing `interrupt`.
func (s *Solver) SolveInterruptible(interrupt <-chan struct{}) (Status, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := s.checkAlive(); err != nil {
		return Unknown, err
	}
	if s.model == nil {
		return Unknown, fmt.Errorf("solver %q: %w", s.name, ErrNoModel)
	}

	var limitReached atomic.Bool
	solveDone := make(chan struct{})
	defer close(solveDone)
	// Wait for either the solve to finish or the solve to be interrupted.
	go func() {
		select {
		case <-interrupt:
			limitReached.Store(true)
		case <-solveDone:
		}
	}()
	// An already closed `interrupt` must stop the solve before it starts; the
	// goroutine above may not have been scheduled yet.
	select {
	case <-interrupt:
		limitReached.Store(true)
	default:
	}

	start := time.Now()
	res, err := branchAndBound(s.model, s.params, &limitReached)
	if err != nil {
		return Unknown, fmt.Errorf("solver %q: %w", s.name, err)
	}
	res.WallTime = time.Since(start)
	log.V(1).Infof("solver %q: %v objective=%d nodes=%d in %v", s.name, res.Status, res.ObjectiveValue, res.NumNodes, res.WallTime)
	s.response = res
	return res.Status, nil
}

// Solution returns a copy of the response of the last solve, or nil if the
// loaded model has not been solved.
func (s *Solver) Solution() *Response {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.response == nil {
		return nil
	}
	r := *s.response
	r.Solution = append([]int64(nil), s.response.Solution...)
	return &r
}
