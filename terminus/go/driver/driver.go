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

// Package driver solves the terminus model of every configured pattern and
// reports one status line per instance.
package driver

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/golang/glog"
	"github.com/gridopt/terminus/terminus/go/certificate"
	"github.com/gridopt/terminus/terminus/go/mipsolver"
	"github.com/gridopt/terminus/terminus/go/pattern"
)

// Run builds, optionally exports, and solves the model of every pattern of
// cfg, writing `<n>\t<bits>\t<STATUS>[\t<objective>]` to out for each one.
// The first solver failure ends the run.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.NewSolver == nil {
		cfg.NewSolver = NewMIPSolver
	}
	for p := range cfg.Patterns() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := runInstance(ctx, cfg, p, out); err != nil {
			return err
		}
	}
	return nil
}

func runInstance(ctx context.Context, cfg Config, p pattern.Pattern, out io.Writer) error {
	in, err := certificate.NewInstance(p)
	if err != nil {
		return err
	}
	log.V(1).Infof("%s: %d variables, %d constraints, certificate %v", in.Name(), len(in.Model.Variables), len(in.Model.Constraints), in.Certificate)

	if cfg.ExportModels {
		path, err := exportModel(cfg, in)
		if err != nil {
			return err
		}
		log.V(1).Infof("%s: exported to %s", in.Name(), path)
	}

	res, err := solveInstance(ctx, cfg, in)
	if err != nil {
		return err
	}
	if res.Status.HasSolution() {
		if err := in.Model.Verify(res.Solution); err != nil {
			return fmt.Errorf("%s: %v solution rejected: %w", in.Name(), res.Status, err)
		}
	}
	return report(out, cfg, in, res)
}

// solveInstance runs one solve and releases the backend on every exit path,
// turning a panic into an error wrapping mipsolver.ErrSolverPanic.
func solveInstance(ctx context.Context, cfg Config, in *certificate.Instance) (res *mipsolver.Response, err error) {
	b, release, err := cfg.NewSolver(in.Name(), cfg.Params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", in.Name(), err)
	}
	defer release()
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%s: %v: %w", in.Name(), r, mipsolver.ErrSolverPanic)
		}
	}()

	if err := b.LoadModel(in.Model); err != nil {
		return nil, fmt.Errorf("%s: %w", in.Name(), err)
	}
	if _, err := b.Solve(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", in.Name(), err)
	}
	res = b.Solution()
	if res == nil {
		return nil, fmt.Errorf("%s: solver returned no response: %w", in.Name(), mipsolver.ErrNoModel)
	}
	return res, nil
}

func exportModel(cfg Config, in *certificate.Instance) (string, error) {
	var text string
	var err error
	switch cfg.ExportFormat {
	case FormatJSON:
		text, err = mipsolver.ExportModelAsJSON(in.Model)
	default:
		text, err = mipsolver.ExportModelAsLpFormat(in.Model)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", in.Name(), err)
	}
	if err := os.MkdirAll(cfg.ExportDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(cfg.ExportDir, in.Name()+"."+cfg.ExportFormat)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func report(out io.Writer, cfg Config, in *certificate.Instance, res *mipsolver.Response) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d\t%v\t%v", len(in.Pattern), in.Pattern, res.Status)
	if res.Status.HasSolution() {
		fmt.Fprintf(&sb, "\t%d", res.ObjectiveValue)
	}
	sb.WriteString("\n")
	if cfg.Verbose && res.Status.HasSolution() {
		for _, row := range in.Grid.Values(res.Solution) {
			cells := make([]string, len(row))
			for j, v := range row {
				cells[j] = fmt.Sprint(v)
			}
			sb.WriteString(strings.Join(cells, " "))
			sb.WriteString("\n")
		}
	}
	_, err := io.WriteString(out, sb.String())
	return err
}
