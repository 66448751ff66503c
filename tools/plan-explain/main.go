// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command plan-explain optimizes a query plan read from a JSON file and
// explains the result.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	docopt "github.com/docopt/docopt-go"
	"github.com/ebay/graphopt/config"
	"github.com/ebay/graphopt/query/planner"
	"github.com/ebay/graphopt/query/planner/plandef"
	"github.com/ebay/graphopt/util/debuglog"
	"github.com/ebay/graphopt/util/graphviz"
	"github.com/ebay/graphopt/util/profiling"
	"github.com/ebay/graphopt/util/tracing"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const usage = `plan-explain optimizes a query plan and explains the result.

Usage:
  plan-explain [-c FILE -f FORMAT -w N -o FILE -r SETS --no-prune --before --log=LEVEL --trace=URL --cpuprofile=FILE] PLAN
  plan-explain -h | --help

Options:
  -c FILE, --config=FILE       Optimizer configuration, in JSON.
  -f FORMAT, --format=FORMAT   Output format: table, dot, or json [default: table].
  -w N, --width=N              Wrap table cells wider than N characters, or 0
                               not to wrap [default: 80].
  -o FILE, --output=FILE       Also render the optimized plan with Graphviz into
                               FILE. The file type comes from the extension:
                               .pdf, .png, .svg, or .dot.
  -r SETS, --rules=SETS        Comma-separated rule sets to apply, overriding the
                               configuration.
  --no-prune                   Don't remove unused properties from the plan.
  --before                     Also explain the plan as it was read.
  --log=LEVEL                  Minimum level to log, such as "debug".
  --trace=URL                  Send OpenTracing traces to this Jaeger collector
                               endpoint.
  --cpuprofile=FILE            Write a pprof CPU profile of the run to FILE.
  -h, --help                   Show this screen.

Use "-" as PLAN to read the plan from standard input.

Example plan:
  {
    "schema": {"tags": {"person": ["name", "age"]}},
    "nodes": [
      {"name": "start", "kind": "Start", "cols": ["s"]},
      {"name": "get", "kind": "GetVertices", "deps": ["start"], "cols": ["s", "v"],
       "args": {"space": "g", "src": "$-.s",
                "vertexProps": [{"tag": "person", "allProps": true}]}},
      {"name": "out", "kind": "Project", "deps": ["get"], "cols": ["n"],
       "args": {"columns": [{"expr": "v.person.name", "alias": "n"}]}}
    ]
  }
`

type options struct {
	ConfigFile string `docopt:"--config"`
	Format     string `docopt:"--format"`
	Width      int    `docopt:"--width"`
	OutputFile string `docopt:"--output"`
	Rules      string `docopt:"--rules"`
	NoPrune    bool   `docopt:"--no-prune"`
	Before     bool   `docopt:"--before"`
	LogLevel   string `docopt:"--log"`
	Trace      string `docopt:"--trace"`
	CPUProfile string `docopt:"--cpuprofile"`
	PlanFile   string `docopt:"PLAN"`
}

func parseArgs(parser *docopt.Parser, argv []string) (*options, error) {
	opts, err := parser.ParseArgs(usage, argv, "")
	if err != nil {
		return nil, err
	}
	var options options
	if err := opts.Bind(&options); err != nil {
		return nil, fmt.Errorf("error binding command-line arguments: %v\nfrom: %+v", err, opts)
	}
	if options.Width < 0 {
		return nil, fmt.Errorf("width must not be negative, got %d", options.Width)
	}
	switch options.Format {
	case "table", "dot", "json":
	default:
		return nil, fmt.Errorf("unknown output format %q", options.Format)
	}
	return &options, nil
}

func main() {
	options, err := parseArgs(docopt.DefaultParser, os.Args[1:])
	if err != nil {
		log.Fatalf("Error parsing command-line arguments: %v", err)
	}
	stopProfile := func() {}
	if options.CPUProfile != "" {
		stopProfile, err = profiling.StartCPUProfile(options.CPUProfile)
		if err != nil {
			log.Fatalf("Unable to start CPU profile: %v", err)
		}
	}
	err = run(context.Background(), options, os.Stdout)
	stopProfile()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// loadConfig returns the optimizer configuration for the command-line
// options.
func loadConfig(options *options) (*config.Optimizer, error) {
	cfg := config.Default()
	if options.ConfigFile != "" {
		var err error
		cfg, err = config.Load(options.ConfigFile)
		if err != nil {
			return nil, err
		}
	}
	if options.Rules != "" {
		cfg.RuleSets = strings.Split(options.Rules, ",")
		for i := range cfg.RuleSets {
			cfg.RuleSets[i] = strings.TrimSpace(cfg.RuleSets[i])
		}
	}
	if options.NoPrune {
		cfg.EnablePropertyPruning = false
		cfg.EliminateUnusedAppendVertices = false
	}
	logOpts := debuglog.Options{Level: options.LogLevel}
	if cfg.Log != nil {
		if logOpts.Level == "" {
			logOpts.Level = cfg.Log.Level
		}
		logOpts.Format = cfg.Log.Format
	}
	if err := debuglog.Configure(logOpts); err != nil {
		return nil, errors.Wrap(err, "invalid log configuration")
	}
	return cfg, cfg.Validate()
}

func readPlanFile(filename string) (*loadedPlan, error) {
	if filename == "-" {
		return readPlan(os.Stdin)
	}
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	plan, err := readPlan(f)
	if err != nil {
		return nil, errors.Wrapf(err, "error loading %v", filename)
	}
	return plan, nil
}

func run(ctx context.Context, options *options, out io.Writer) error {
	cfg, err := loadConfig(options)
	if err != nil {
		return err
	}
	tracingCfg := cfg.Tracing
	if options.Trace != "" {
		tracingCfg = &config.Tracing{Endpoint: options.Trace}
	}
	tracer, err := tracing.New("plan-explain", tracingCfg)
	if err != nil {
		log.WithError(err).Warn("Could not initialize OpenTracing tracer")
	} else {
		defer tracer.Close()
	}
	span, ctx := opentracing.StartSpanFromContext(ctx, "plan-explain run")
	defer span.Finish()

	plan, err := readPlanFile(options.PlanFile)
	if err != nil {
		return err
	}
	if options.Before {
		if err := explain(out, options.Format, options.Width, "Input plan", plan.graph.Describe(plan.root)); err != nil {
			return err
		}
	}
	res, err := planner.Optimize(ctx, plan.graph, plan.root, nil, planner.Options{
		Config: cfg,
		Schema: plan.schema,
	})
	if err != nil {
		return err
	}
	if err := explain(out, options.Format, options.Width, "Optimized plan", res.Description); err != nil {
		return err
	}
	if options.Format == "table" {
		if err := writeSummary(out, &res.Stats); err != nil {
			return err
		}
	}
	if options.OutputFile != "" {
		err := graphviz.Create(options.OutputFile, func(w io.Writer) {
			writeDot(w, res.Description)
		}, graphviz.Options{})
		if err != nil {
			return err
		}
		log.Infof("Wrote %v", options.OutputFile)
	}
	return nil
}

// explain writes desc in the given format, under a title for the table format.
func explain(out io.Writer, format string, width int, title string, desc *plandef.PlanDescription) error {
	switch format {
	case "dot":
		writeDot(out, desc)
		return nil
	case "json":
		return writeJSON(out, desc)
	}
	if _, err := fmt.Fprintf(out, "%v:\n", title); err != nil {
		return err
	}
	return writeTable(out, desc, width)
}
