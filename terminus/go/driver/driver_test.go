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
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gridopt/terminus/terminus/go/gridmodel"
	"github.com/gridopt/terminus/terminus/go/mipsolver"
	"github.com/gridopt/terminus/terminus/go/pattern"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var errBoom = errors.New("boom")

type fakeBackend struct {
	res      *mipsolver.Response
	solveErr error
	panics   bool
	loaded   []string
}

func (f *fakeBackend) LoadModel(m *gridmodel.Model) error {
	f.loaded = append(f.loaded, m.Name)
	return nil
}

func (f *fakeBackend) Solve(context.Context) (mipsolver.Status, error) {
	if f.panics {
		panic("solver crashed")
	}
	if f.solveErr != nil {
		return mipsolver.Unknown, f.solveErr
	}
	if f.res == nil {
		return mipsolver.Unknown, nil
	}
	return f.res.Status, nil
}

func (f *fakeBackend) Solution() *mipsolver.Response {
	return f.res
}

// withFake makes cfg solve on f and counts the releases.
func withFake(cfg *Config, f *fakeBackend, released *int) {
	cfg.NewSolver = func(string, mipsolver.Parameters) (Backend, func(), error) {
		return f, func() { *released++ }, nil
	}
}

func ExampleRun() {
	cfg := DefaultConfig()
	cfg.Pattern = "01"
	cfg.Verbose = true
	if err := Run(context.Background(), cfg, os.Stdout); err != nil {
		panic(err)
	}
	// Output:
	// 2	01	OPTIMAL	1
	// 0 1
	// 1 1
}

func TestRun_LengthRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinLength, cfg.MaxLength = 2, 2
	var out bytes.Buffer
	if err := Run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("Run() returned unexpected err %v", err)
	}
	want := "2\t01\tOPTIMAL\t1\n2\t10\tOPTIMAL\t1\n"
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("Run() output returned unexpected diff (-want+got): %v", diff)
	}
}

func TestRun_LengthFourSolvesEveryPattern(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinLength, cfg.MaxLength = 4, 4
	var out bytes.Buffer
	if err := Run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("Run() returned unexpected err %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if got, want := len(lines), 14; got != want {
		t.Fatalf("Run() printed %d lines, want %d:\n%s", got, want, out.String())
	}
	for _, line := range lines {
		if fields := strings.Split(line, "\t"); len(fields) != 4 || fields[2] != "OPTIMAL" {
			t.Errorf("Run() printed %q, want an OPTIMAL line with an objective", line)
		}
	}
	for _, want := range []string{"4\t0010\tOPTIMAL\t4\n", "4\t0101\tOPTIMAL\t3\n"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Run() output is missing %q", want)
		}
	}
}

func TestRun_PatternOverridesRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinLength, cfg.MaxLength = 3, 5
	cfg.Pattern = "10"
	f := &fakeBackend{res: &mipsolver.Response{Status: mipsolver.Infeasible}}
	released := 0
	withFake(&cfg, f, &released)

	var out bytes.Buffer
	if err := Run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("Run() returned unexpected err %v", err)
	}
	if diff := cmp.Diff("2\t10\tINFEASIBLE\n", out.String()); diff != "" {
		t.Errorf("Run() output returned unexpected diff (-want+got): %v", diff)
	}
	if diff := cmp.Diff([]string{"grid_2_10"}, f.loaded); diff != "" {
		t.Errorf("loaded models returned unexpected diff (-want+got): %v", diff)
	}
	if released != 1 {
		t.Errorf("backend released %d times, want 1", released)
	}
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		edit    func(c *Config)
		wantErr error
	}{
		{name: "default", edit: func(*Config) {}},
		{name: "constant pattern", edit: func(c *Config) { c.Pattern = "0000" }, wantErr: pattern.ErrConstantPattern},
		{name: "malformed pattern", edit: func(c *Config) { c.Pattern = "0a1" }, wantErr: pattern.ErrMalformedPattern},
		{name: "short pattern", edit: func(c *Config) { c.Pattern = "1" }, wantErr: pattern.ErrLengthOutOfRange},
		{name: "min too small", edit: func(c *Config) { c.MinLength = 1 }, wantErr: pattern.ErrLengthOutOfRange},
		{name: "max too large", edit: func(c *Config) { c.MaxLength = 17 }, wantErr: pattern.ErrLengthOutOfRange},
		{name: "empty range", edit: func(c *Config) { c.MinLength, c.MaxLength = 5, 3 }, wantErr: ErrInvalidConfig},
		{name: "range ignored with pattern", edit: func(c *Config) { c.MinLength, c.Pattern = 0, "0110" }},
		{name: "bad export format", edit: func(c *Config) { c.ExportModels, c.ExportFormat = true, "mps" }, wantErr: ErrInvalidConfig},
		{name: "empty export dir", edit: func(c *Config) { c.ExportModels, c.ExportDir = true, "" }, wantErr: ErrInvalidConfig},
		{name: "format unchecked without export", edit: func(c *Config) { c.ExportFormat = "mps" }},
	}
	for _, test := range testCases {
		cfg := DefaultConfig()
		test.edit(&cfg)
		err := cfg.Validate()
		if test.wantErr == nil && err != nil {
			t.Errorf("%s: Validate() returned unexpected err %v", test.name, err)
		}
		if test.wantErr != nil && !errors.Is(err, test.wantErr) {
			t.Errorf("%s: Validate() err = %v, want %v", test.name, err, test.wantErr)
		}
	}
}

func TestRun_InvalidConfigBuildsNothing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pattern = "111"
	called := false
	cfg.NewSolver = func(string, mipsolver.Parameters) (Backend, func(), error) {
		called = true
		return nil, nil, errBoom
	}
	var out bytes.Buffer
	if err := Run(context.Background(), cfg, &out); !errors.Is(err, pattern.ErrConstantPattern) {
		t.Errorf("Run() err = %v, want %v", err, pattern.ErrConstantPattern)
	}
	if called || out.Len() != 0 {
		t.Errorf("Run() solved or printed with an invalid config: called=%v output=%q", called, out.String())
	}
}

func TestConfig_Patterns(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinLength, cfg.MaxLength = 2, 3
	var got []string
	for p := range cfg.Patterns() {
		got = append(got, p.String())
	}
	want := []string{"01", "10", "001", "010", "011", "100", "101", "110"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Patterns() returned unexpected diff (-want+got): %v", diff)
	}
}

func TestRun_FailsFast(t *testing.T) {
	testCases := []struct {
		name    string
		backend *fakeBackend
		wantErr error
	}{
		{name: "solve error", backend: &fakeBackend{solveErr: errBoom}, wantErr: errBoom},
		{name: "panic", backend: &fakeBackend{panics: true}, wantErr: mipsolver.ErrSolverPanic},
		{name: "no response", backend: &fakeBackend{}, wantErr: mipsolver.ErrNoModel},
		{
			name:    "violating solution",
			backend: &fakeBackend{res: &mipsolver.Response{Status: mipsolver.Optimal, Solution: make([]int64, 4)}},
			wantErr: gridmodel.ErrViolated,
		},
	}
	for _, test := range testCases {
		cfg := DefaultConfig()
		cfg.MinLength, cfg.MaxLength = 2, 3
		released := 0
		withFake(&cfg, test.backend, &released)
		var out bytes.Buffer
		err := Run(context.Background(), cfg, &out)
		if !errors.Is(err, test.wantErr) {
			t.Errorf("%s: Run() err = %v, want %v", test.name, err, test.wantErr)
		}
		if got := len(test.backend.loaded); got != 1 {
			t.Errorf("%s: %d models loaded, want 1", test.name, got)
		}
		if released != 1 {
			t.Errorf("%s: backend released %d times, want 1", test.name, released)
		}
		if out.Len() != 0 {
			t.Errorf("%s: Run() printed %q after a failure", test.name, out.String())
		}
	}
}

func TestRun_NewSolverError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pattern = "01"
	cfg.NewSolver = func(string, mipsolver.Parameters) (Backend, func(), error) {
		return nil, nil, errBoom
	}
	if err := Run(context.Background(), cfg, &bytes.Buffer{}); !errors.Is(err, errBoom) {
		t.Errorf("Run() err = %v, want %v", err, errBoom)
	}
}

func TestRun_InvalidSolverParameters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pattern = "01"
	cfg.Params = mipsolver.Parameters{}
	if err := Run(context.Background(), cfg, &bytes.Buffer{}); !errors.Is(err, mipsolver.ErrInvalidParameters) {
		t.Errorf("Run() err = %v, want %v", err, mipsolver.ErrInvalidParameters)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := DefaultConfig()
	cfg.Pattern = "01"
	var out bytes.Buffer
	if err := Run(ctx, cfg, &out); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() err = %v, want %v", err, context.Canceled)
	}
	if out.Len() != 0 {
		t.Errorf("Run() printed %q with a cancelled context", out.String())
	}
}

func TestRun_ExportModels(t *testing.T) {
	for _, format := range []string{FormatLP, FormatJSON} {
		cfg := DefaultConfig()
		cfg.Pattern = "0011"
		cfg.ExportModels = true
		cfg.ExportFormat = format
		cfg.ExportDir = filepath.Join(t.TempDir(), "nested", "models")
		if err := Run(context.Background(), cfg, &bytes.Buffer{}); err != nil {
			t.Fatalf("Run(%s) returned unexpected err %v", format, err)
		}

		b, err := os.ReadFile(filepath.Join(cfg.ExportDir, "grid_4_0011."+format))
		if err != nil {
			t.Fatalf("ReadFile(%s) returned unexpected err %v", format, err)
		}
		switch format {
		case FormatLP:
			if !strings.HasPrefix(string(b), "\\Problem name: grid_4_0011\nMinimize\n obj: x_3_3\n") {
				t.Errorf("LP export starts with %q", strings.SplitN(string(b), "Subject To", 2)[0])
			}
		case FormatJSON:
			s := &structpb.Struct{}
			if err := protojson.Unmarshal(b, s); err != nil {
				t.Fatalf("protojson.Unmarshal() returned unexpected err %v", err)
			}
			if got, want := s.GetFields()["name"].GetStringValue(), "grid_4_0011"; got != want {
				t.Errorf("JSON export name = %q, want %q", got, want)
			}
		}
	}
}
