package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/Mindburn-Labs/artifact-validator/pkg/artifacts"
	"github.com/Mindburn-Labs/artifact-validator/pkg/config"
	"github.com/Mindburn-Labs/artifact-validator/pkg/fingerprint"
	"github.com/Mindburn-Labs/artifact-validator/pkg/observability"
	"github.com/Mindburn-Labs/artifact-validator/pkg/report"
	"github.com/Mindburn-Labs/artifact-validator/pkg/validator"
)

const version = "1.0.0"

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// startLambda is a variable to allow mocking in tests
var startLambda = runLambda

// Run is the entrypoint for testing
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
			return startLambda(stderr)
		}
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "lambda":
		return startLambda(stderr)
	case "compare":
		return runCompareCmd(args[2:], stdout, stderr)
	case "fingerprint":
		return runFingerprintCmd(args[2:], stdout, stderr)
	case "version":
		_, _ = fmt.Fprintf(stdout, "artifact-validator %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintf(w, "artifact-validator %s\n", version)
	_, _ = fmt.Fprintln(w, "Gate a pipeline stage on byte-identical artifacts.")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "USAGE:")
	_, _ = fmt.Fprintln(w, "  artifact-validator <command> [flags]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "COMMANDS:")
	printCommand(w, "lambda", "Serve CodePipeline job events (default inside AWS Lambda)")
	printCommand(w, "compare", "Compare two packages (--candidate, --reference, --json)")
	printCommand(w, "fingerprint", "Print file digests (--dir or --package, --algorithm)")
	printCommand(w, "version", "Show version information")
	printCommand(w, "help", "Show this help")
	_, _ = fmt.Fprintln(w, "")
}

func printCommand(w io.Writer, name, desc string) {
	_, _ = fmt.Fprintf(w, "  %-12s %s\n", name, desc)
}

// setupLogging installs the process-wide JSON logger. It must run before any
// component is constructed, since components capture slog.Default().
func setupLogging(cfg *config.Config, w io.Writer) {
	level, err := cfg.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

func telemetryConfig(cfg *config.Config) *observability.Config {
	tc := observability.DefaultConfig()
	tc.Enabled = cfg.Telemetry.Enabled
	tc.OTLPEndpoint = cfg.Telemetry.Endpoint
	tc.Insecure = cfg.Telemetry.Insecure
	tc.ServiceName = cfg.Telemetry.ServiceName
	tc.Environment = cfg.Telemetry.Environment
	tc.ServiceVersion = version
	return tc
}

func newValidator(cfg *config.Config, fetcher artifacts.Fetcher, orch report.Orchestrator, telemetry *observability.Provider, extra ...validator.Option) *validator.Validator {
	alg, _ := fingerprint.ParseAlgorithm(cfg.HashAlgorithm) // checked by config.Validate
	opts := []validator.Option{
		validator.WithFingerprinter(fingerprint.New(alg)),
		validator.WithScratchRoot(cfg.ScratchRoot),
		validator.WithReferenceKey(cfg.ReferenceKey),
		validator.WithParallel(cfg.Parallel),
		validator.WithTelemetry(telemetry),
	}
	return validator.New(fetcher, orch, append(opts, extra...)...)
}

func closeFetcher(ctx context.Context, f artifacts.Fetcher) {
	if c, ok := f.(io.Closer); ok {
		if err := c.Close(); err != nil {
			slog.Default().WarnContext(ctx, "failed to close artifact store client", "error", err)
		}
	}
}

// runLambda wires production clients and hands control to the Lambda runtime.
func runLambda(stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	setupLogging(cfg, stderr)
	logger := slog.Default().With("component", "main")

	ctx := context.Background()
	telemetry, err := observability.New(ctx, telemetryConfig(cfg))
	if err != nil {
		logger.ErrorContext(ctx, "failed to init observability", "error", err)
		return 2
	}

	fetcher, err := artifacts.NewFetcher(ctx, cfg.FetcherConfig())
	if err != nil {
		logger.ErrorContext(ctx, "failed to init artifact store", "error", err)
		return 2
	}
	orch, err := report.NewCodePipeline(ctx, cfg.Orchestrator.Region)
	if err != nil {
		logger.ErrorContext(ctx, "failed to init orchestrator client", "error", err)
		return 2
	}

	v := newValidator(cfg, fetcher, orch, telemetry)
	logger.InfoContext(ctx, "starting lambda handler",
		"storage", cfg.Storage.Type,
		"reference_key", cfg.ReferenceKey,
		"algorithm", cfg.HashAlgorithm,
	)

	lambda.StartWithOptions(v.HandleEvent, lambda.WithEnableSIGTERM(func() {
		_ = telemetry.Shutdown(context.Background())
		closeFetcher(context.Background(), fetcher)
	}))
	return 0
}
