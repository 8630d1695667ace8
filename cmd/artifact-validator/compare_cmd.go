package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/artifact-validator/pkg/artifacts"
	"github.com/Mindburn-Labs/artifact-validator/pkg/config"
	"github.com/Mindburn-Labs/artifact-validator/pkg/event"
	"github.com/Mindburn-Labs/artifact-validator/pkg/observability"
	"github.com/Mindburn-Labs/artifact-validator/pkg/report"
	"github.com/Mindburn-Labs/artifact-validator/pkg/unpack"
	"github.com/Mindburn-Labs/artifact-validator/pkg/validator"
	"github.com/Mindburn-Labs/artifact-validator/pkg/verdict"
)

type compareOutput struct {
	JobID     string           `json:"job_id"`
	Candidate string           `json:"candidate"`
	Reference string           `json:"reference"`
	Verdict   *verdict.Verdict `json:"verdict,omitempty"`
	Error     string           `json:"error,omitempty"`
	Class     string           `json:"error_class,omitempty"`
}

// runCompareCmd implements `artifact-validator compare`.
//
// Runs the same gate as the Lambda handler against two packages given as
// local paths or object URIs, reporting to the terminal.
//
// Exit codes:
//
//	0 = artifacts are equivalent
//	1 = artifacts differ
//	2 = runtime error
func runCompareCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("compare", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		candidate  string
		reference  string
		algorithm  string
		depth      int
		jsonOutput bool
	)

	cmd.StringVar(&candidate, "candidate", "", "Candidate package: path, s3://bucket/key or gs://bucket/key (REQUIRED)")
	cmd.StringVar(&reference, "reference", "", "Reference package: path, s3://bucket/key or gs://bucket/key (REQUIRED)")
	cmd.StringVar(&algorithm, "algorithm", "", "Hash algorithm: sha256 or blake3 (default from config)")
	cmd.IntVar(&depth, "depth", unpack.MaxNestedDepth, "Nested package levels to expand")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if candidate == "" || reference == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --candidate and --reference are required")
		cmd.Usage()
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if algorithm != "" {
		cfg.HashAlgorithm = algorithm
		if err := cfg.Validate(); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	}
	setupLogging(cfg, stderr)

	candRef, err := parseArtifactRef(candidate)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	refRef, err := parseArtifactRef(reference)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	storeCfg, err := fetcherConfig(cfg.FetcherConfig(), candRef, refRef)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetry, err := observability.New(ctx, telemetryConfig(cfg))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = telemetry.Shutdown(context.Background()) }()

	fetcher, err := artifacts.NewFetcher(ctx, storeCfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer closeFetcher(ctx, fetcher)

	consoleOut := stdout
	if jsonOutput {
		consoleOut = io.Discard
	}
	v := newValidator(cfg, fetcher, report.NewConsole(consoleOut), telemetry,
		validator.WithUnpacker(unpack.NewWithDepth(depth)))

	job := event.Job{
		ID:        "local-" + uuid.NewString(),
		Candidate: candRef.location,
		Reference: refRef.location,
	}
	res := v.Handle(ctx, job)

	if jsonOutput {
		out := compareOutput{
			JobID:     job.ID,
			Candidate: candidate,
			Reference: reference,
		}
		if res.Err != nil {
			out.Error = res.Err.Error()
			out.Class = validator.Classify(res.Err)
		} else {
			out.Verdict = &res.Verdict
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	}

	switch {
	case res.Err != nil:
		return 2
	case !res.Verdict.Passed:
		return 1
	default:
		return 0
	}
}
