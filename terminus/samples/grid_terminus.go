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

// The grid_terminus command solves, for every non-constant pattern of the
// requested lengths, the minimal corner value of a monotone grid whose
// certificate cells are pinned to the corner.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	log "github.com/golang/glog"
	"github.com/gridopt/terminus/terminus/go/driver"
	"github.com/gridopt/terminus/terminus/go/pattern"
)

var (
	length       = flag.Int("length", 0, "Solve a single length. Overrides -min_length and -max_length.")
	minLength    = flag.Int("min_length", pattern.MinLength, "Smallest pattern length to solve.")
	maxLength    = flag.Int("max_length", pattern.MaxLength, "Largest pattern length to solve.")
	patternBits  = flag.String("pattern", "", "Solve only this pattern, e.g. 0011. Overrides the lengths.")
	verbose      = flag.Bool("verbose", false, "Print the solved grid beneath each status line.")
	exportModels = flag.Bool("export_models", false, "Write every model to -export_dir.")
	exportDir    = flag.String("export_dir", driver.DefaultExportDir, "Directory models are exported to.")
	exportFormat = flag.String("export_format", driver.FormatLP, "Model export format: lp or json.")
	maxNodes     = flag.Int64("max_nodes", 0, "Branch-and-bound node limit per model. 0 means no limit.")
	timeLimit    = flag.Duration("time_limit", 0, "Time limit per model, e.g. 10s. 0 means no limit.")
)

func config() driver.Config {
	cfg := driver.DefaultConfig()
	cfg.MinLength, cfg.MaxLength = *minLength, *maxLength
	if *length != 0 {
		cfg.MinLength, cfg.MaxLength = *length, *length
	}
	cfg.Pattern = *patternBits
	cfg.Verbose = *verbose
	cfg.ExportModels = *exportModels
	cfg.ExportDir = *exportDir
	cfg.ExportFormat = *exportFormat
	cfg.Params.MaxNodes = *maxNodes
	cfg.Params.MaxTime = *timeLimit
	cfg.Params.LogSearchProgress = bool(log.V(1))
	return cfg
}

func gridTerminus() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := config()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return driver.Run(ctx, cfg, os.Stdout)
}

func main() {
	flag.Parse()
	if err := gridTerminus(); err != nil {
		log.Exitf("gridTerminus returned with error: %v", err)
	}
}
