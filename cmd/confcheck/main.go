package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tablenorm/internal/config"
	"tablenorm/internal/normalizer"
)

// confcheck inspects a columns document without touching any data. It
// reports alias conflicts and unresolvable pipeline steps, and can print
// the execution plan the engine would run for the document.
func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// checkConfig holds the parsed flags for one invocation.
type checkConfig struct {
	Path      string
	Strict    bool
	Plan      bool
	Pipelines bool
}

// run executes the checker and returns an exit code.
//
// Exit codes:
//   - 0: document loads; in permissive mode issues are reported but tolerated.
//   - 1: document cannot load, or issues were found in strict mode.
//   - 2: usage error.
func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 2
	}

	mode := config.Permissive
	if cfg.Strict {
		mode = config.Strict
	}

	// Loader warnings (legacy literal forms, ignored alias shapes) go to
	// stderr so CI logs show them next to the issue list.
	zlog := zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(stderr),
		zapcore.WarnLevel,
	))
	defer zlog.Sync()

	cc, err := config.Load(cfg.Path, mode, zlog)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	issues := append(cc.ValidateAliases(), normalizer.ValidateConfig(cc)...)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "issue: %s\n", iss)
	}

	if cfg.Plan {
		printPlan(stdout, cc)
	}
	if cfg.Pipelines {
		printPipelines(stdout, cc)
	}

	fmt.Fprintf(stdout, "%s: %d columns, %d issues\n", cfg.Path, cc.Len(), len(issues))

	if cfg.Strict && len(issues) > 0 {
		return 1
	}
	return 0
}

// parseFlags parses command arguments into a validated checkConfig.
//
// Errors:
//   - Returns an error for invalid/missing required flags.
//   - Does not exit the process (caller decides exit code).
func parseFlags(args []string) (checkConfig, error) {
	fs := flag.NewFlagSet("confcheck", flag.ContinueOnError)

	// Capture help/usage text instead of writing to stdout.
	var usageBuf strings.Builder
	fs.SetOutput(&usageBuf)

	fs.Usage = func() {
		fmt.Fprintf(&usageBuf, "Usage of %s:\n", fs.Name())
		fs.PrintDefaults()
	}

	var cfg checkConfig
	fs.StringVar(&cfg.Path, "config", "", "columns document path (YAML or JSON)")
	fs.BoolVar(&cfg.Strict, "strict", false, "treat issues as fatal")
	fs.BoolVar(&cfg.Plan, "plan", false, "print the step-level execution plan")
	fs.BoolVar(&cfg.Pipelines, "pipelines", false, "print columns batched by identical full pipeline")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return checkConfig{}, errors.New(usageBuf.String())
		}
		return checkConfig{}, fmt.Errorf("%v\n\n%s", err, usageBuf.String())
	}

	if strings.TrimSpace(cfg.Path) == "" {
		return checkConfig{}, errors.New("missing required -config <columns.yaml>")
	}
	return cfg, nil
}

// printPlan writes the step-level execution plan: one line per group in
// application order, the step's canonical form followed by the columns it
// runs on.
func printPlan(w io.Writer, cc *config.ColumnsConfig) {
	for _, g := range cc.GroupByNormalization() {
		fmt.Fprintf(w, "%s -> %s\n", g.Spec.Hash(), strings.Join(g.Columns, ", "))
	}
}

// printPipelines writes columns batched by their entire ordered pipeline.
// Columns without any pipeline group under (none).
func printPipelines(w io.Writer, cc *config.ColumnsConfig) {
	for _, g := range cc.GroupByNormalizationPipeline() {
		key := "(none)"
		if len(g.Pipeline) > 0 {
			specs := make([]string, 0, len(g.Pipeline))
			for _, s := range g.Pipeline {
				specs = append(specs, s.Hash())
			}
			key = strings.Join(specs, " | ")
		}
		fmt.Fprintf(w, "%s -> %s\n", key, strings.Join(g.Columns, ", "))
	}
}
