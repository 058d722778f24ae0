package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tablenorm/internal/config"
	"tablenorm/internal/metrics"
	"tablenorm/internal/metrics/datadog"
	"tablenorm/internal/normalizer"
	"tablenorm/internal/table"
)

// main is the entry point for the tablenorm binary. It loads the columns
// configuration, optionally initializes a metrics backend, reads the input
// table, runs the normalization engine and writes the result.
func main() {
	os.Exit(runMain(context.Background(), os.Args[1:], os.Stdout, os.Stderr, prodDeps()))
}

// Seams for tests. Production values talk to the real packages; tests swap
// them to observe wiring without touching the network or global state.
var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		return datadog.NewBackend(ctx, opts)
	}
	setMetricsBackend = func(b any) {
		if mb, ok := b.(metrics.Backend); ok {
			metrics.SetBackend(mb)
		}
	}
	logPrintf = log.Printf
)

// metricsBackend is the slice of the Datadog backend the CLI needs.
type metricsBackend interface {
	Close() error
}

// jobSpec carries the I/O settings of one normalization run.
type jobSpec struct {
	InputPath  string // "-" or empty reads stdin
	OutputPath string // "-" or empty writes stdout
	Delimiter  string
}

// runner executes one normalization job from a loaded configuration.
type runner interface {
	Run(ctx context.Context, cc *config.ColumnsConfig, job jobSpec) error
}

// appDeps injects the effectful pieces of runMain so tests can fake them.
type appDeps struct {
	readFile    func(path string) ([]byte, error)
	parseConfig func(data []byte, mode config.Mode, log *zap.Logger) (*config.ColumnsConfig, error)
	initMetrics func(ctx context.Context, jobName, backendName string) (func(), error)
	newRunner   func(stdout io.Writer, log *zap.Logger) runner
}

func prodDeps() appDeps {
	return appDeps{
		readFile:    os.ReadFile,
		parseConfig: config.Parse,
		initMetrics: initMetrics,
		newRunner: func(stdout io.Writer, log *zap.Logger) runner {
			return &csvRunner{stdin: os.Stdin, stdout: stdout, log: log}
		},
	}
}

// runMain is the testable body of main. It returns the process exit code:
// 0 on success, 1 on runtime failure, 2 on usage errors.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	fs := flag.NewFlagSet("tablenorm", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		cfgPath           string
		inputPath         string
		outputPath        string
		delimiter         string
		metricsBackendFlg string
		validate          bool
		strict            bool
	)
	fs.StringVar(&cfgPath, "config", "", "columns document path (YAML or JSON)")
	fs.StringVar(&inputPath, "input", "-", "input CSV path, - for stdin")
	fs.StringVar(&outputPath, "output", "-", "output CSV path, - for stdout")
	fs.StringVar(&delimiter, "delimiter", ",", "CSV field delimiter")
	fs.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (datadog, none)")
	fs.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	fs.BoolVar(&strict, "strict", false, "fail on alias conflicts and unresolvable steps")
	verbose := fs.Bool("v", false, "enable verbose logs")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(cfgPath) == "" {
		fmt.Fprintln(stderr, "usage: tablenorm -config <columns.yaml> [-input <csv>] [-output <csv>] [flags]")
		return 2
	}

	zlog := newLogger(stderr, *verbose)
	defer zlog.Sync()

	mode := config.Permissive
	if strict {
		mode = config.Strict
	}

	data, err := deps.readFile(cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "read config: %v\n", err)
		return 1
	}
	cc, err := deps.parseConfig(data, mode, zlog)
	if err != nil {
		fmt.Fprintf(stderr, "parse config: %v\n", err)
		return 1
	}

	// Surface configuration problems before any work happens. In a
	// permissive run they are warnings: alias conflicts were already
	// resolved by the parser and unresolvable steps are skipped by the
	// engine. Strict and -validate runs refuse to proceed instead.
	issues := append(cc.ValidateAliases(), normalizer.ValidateConfig(cc)...)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "config issue: %s\n", iss)
	}
	if len(issues) > 0 && (validate || strict) {
		fmt.Fprintf(stderr, "configuration is invalid: %s\n", cfgPath)
		return 1
	}
	if validate {
		logPrintf("configuration is valid: %s", cfgPath)
		return 0
	}

	// Decide metrics backend: flag, then env, then disabled.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	jobName := cc.Meta.Name
	if jobName == "" {
		jobName = "tablenorm"
	}
	cleanup, err := deps.initMetrics(ctx, jobName, backendName)
	if err != nil {
		fmt.Fprintf(stderr, "init metrics: %v\n", err)
		return 1
	}
	defer cleanup()

	start := time.Now()
	r := deps.newRunner(stdout, zlog)
	if err := r.Run(ctx, cc, jobSpec{InputPath: inputPath, OutputPath: outputPath, Delimiter: delimiter}); err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		return 1
	}

	if *verbose {
		logPrintf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
	return 0
}

// initMetrics wires the requested metrics backend into the process-global
// metrics package and returns a cleanup that flushes it at shutdown.
//
// The returned cleanup is always non-nil and safe to call, error or not.
func initMetrics(ctx context.Context, jobName, backendName string) (func(), error) {
	switch backendName {
	case "", "none", "noop":
		// metrics disabled; the nop backend stays in place.
		return func() {}, nil

	case "datadog", "dd":
		// The backend buffers series, submits once per minute, and
		// submits one final time when the cleanup closes it.
		b, err := newDatadogBackend(ctx, datadog.Options{
			JobName:    jobName,
			Tags:       datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS")),
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			return func() {}, fmt.Errorf("datadog backend: %w", err)
		}
		setMetricsBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				logPrintf("metrics: datadog close error: %v", err)
			}
		}, nil

	default:
		return func() {}, fmt.Errorf("unknown metrics backend %q (want none|datadog)", backendName)
	}
}

// newLogger builds a console logger writing to w. Quiet runs only surface
// warnings; -v lowers the threshold so run summaries and phase timings
// show up.
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	lvl := zapcore.WarnLevel
	if verbose {
		lvl = zapcore.DebugLevel
	}
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), lvl))
}

// csvRunner is the production runner: it reads the input CSV, pushes the
// frame through the normalization engine and writes the result back out.
type csvRunner struct {
	stdin  io.Reader
	stdout io.Writer
	log    *zap.Logger
}

func (r *csvRunner) Run(ctx context.Context, cc *config.ColumnsConfig, job jobSpec) error {
	in := r.stdin
	if job.InputPath != "" && job.InputPath != "-" {
		f, err := os.Open(job.InputPath)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	opt := config.Options{"comma": job.Delimiter}
	frame, err := table.ReadCSV(in, opt)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	frame, _, err = normalizer.New(cc, r.log).Run(frame)
	if err != nil {
		return err
	}

	out := r.stdout
	var file *os.File
	if job.OutputPath != "" && job.OutputPath != "-" {
		file, err = os.Create(job.OutputPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		out = file
	}
	if err := table.WriteCSV(out, frame, opt); err != nil {
		if file != nil {
			file.Close()
		}
		return fmt.Errorf("write output: %w", err)
	}
	if file != nil {
		if err := file.Close(); err != nil {
			return fmt.Errorf("close output: %w", err)
		}
	}
	return nil
}
