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

package driver

import (
	"context"
	"errors"
	"fmt"
	"iter"

	log "github.com/golang/glog"
	"github.com/gridopt/terminus/terminus/go/gridmodel"
	"github.com/gridopt/terminus/terminus/go/mipsolver"
	"github.com/gridopt/terminus/terminus/go/pattern"
)

// Model export formats.
const (
	FormatLP   = "lp"
	FormatJSON = "json"
)

// DefaultExportDir is the directory models are exported to unless configured.
const DefaultExportDir = "models"

// ErrInvalidConfig is returned by Config.Validate for inconsistent settings.
var ErrInvalidConfig = errors.New("invalid configuration")

// Backend solves one loaded model. *mipsolver.Solver implements it.
type Backend interface {
	LoadModel(m *gridmodel.Model) error
	Solve(ctx context.Context) (mipsolver.Status, error)
	Solution() *mipsolver.Response
}

// NewSolverFunc acquires a backend for the model `name`. The driver calls
// `release` once it is done with the backend, on every exit path.
type NewSolverFunc func(name string, params mipsolver.Parameters) (b Backend, release func(), err error)

// NewMIPSolver acquires a mipsolver.Solver.
func NewMIPSolver(name string, params mipsolver.Parameters) (Backend, func(), error) {
	s, err := mipsolver.New(name, params)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { mipsolver.Delete(s) }, nil
}

// Config holds every setting of a run.
type Config struct {
	// MinLength and MaxLength bound the pattern lengths to enumerate.
	MinLength int
	MaxLength int
	// Pattern, when set, is the only instance solved; the length range is
	// ignored.
	Pattern string
	// Verbose prints the solved grid beneath each status line.
	Verbose bool
	// ExportModels writes every model to ExportDir in ExportFormat.
	ExportModels bool
	ExportDir    string
	ExportFormat string
	Params       mipsolver.Parameters
	// NewSolver defaults to NewMIPSolver.
	NewSolver NewSolverFunc
}

// DefaultConfig returns a configuration solving every pattern of every
// supported length.
func DefaultConfig() Config {
	return Config{
		MinLength:    pattern.MinLength,
		MaxLength:    pattern.MaxLength,
		ExportDir:    DefaultExportDir,
		ExportFormat: FormatLP,
		Params:       mipsolver.DefaultParameters(),
	}
}

// Validate reports the first invalid setting of c.
func (c Config) Validate() error {
	if c.Pattern != "" {
		p, err := pattern.Parse(c.Pattern)
		if err != nil {
			return err
		}
		if err := pattern.Validate(p); err != nil {
			return err
		}
	} else {
		if err := pattern.CheckLength(c.MinLength); err != nil {
			return fmt.Errorf("min length: %w", err)
		}
		if err := pattern.CheckLength(c.MaxLength); err != nil {
			return fmt.Errorf("max length: %w", err)
		}
		if c.MinLength > c.MaxLength {
			return fmt.Errorf("min length %d > max length %d: %w", c.MinLength, c.MaxLength, ErrInvalidConfig)
		}
	}
	if c.ExportModels {
		if c.ExportDir == "" {
			return fmt.Errorf("empty export directory: %w", ErrInvalidConfig)
		}
		if c.ExportFormat != FormatLP && c.ExportFormat != FormatJSON {
			return fmt.Errorf("export format %q is neither %q nor %q: %w", c.ExportFormat, FormatLP, FormatJSON, ErrInvalidConfig)
		}
	}
	return nil
}

// Patterns returns the patterns of the run in order: the explicit pattern
// alone, or every non-constant pattern of each length in the range. c must
// be valid.
func (c Config) Patterns() iter.Seq[pattern.Pattern] {
	return func(yield func(pattern.Pattern) bool) {
		if c.Pattern != "" {
			if p, err := pattern.Parse(c.Pattern); err == nil {
				yield(p)
			}
			return
		}
		for n := c.MinLength; n <= c.MaxLength; n++ {
			e, err := pattern.NewEnumerator(n)
			if err != nil {
				return
			}
			log.V(1).Infof("length %d: %d patterns", n, e.Count())
			for p := range e.All() {
				if !yield(p) {
					return
				}
			}
		}
	}
}
