// Package validator drives one artifact-equivalence check: fetch both
// packages, unpack them, fingerprint the trees, compare, report, clean up.
package validator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/Mindburn-Labs/artifact-validator/pkg/artifacts"
	"github.com/Mindburn-Labs/artifact-validator/pkg/event"
	"github.com/Mindburn-Labs/artifact-validator/pkg/fingerprint"
	"github.com/Mindburn-Labs/artifact-validator/pkg/observability"
	"github.com/Mindburn-Labs/artifact-validator/pkg/report"
	"github.com/Mindburn-Labs/artifact-validator/pkg/scratch"
	"github.com/Mindburn-Labs/artifact-validator/pkg/unpack"
	"github.com/Mindburn-Labs/artifact-validator/pkg/verdict"
)

// Artifact roles, used for scratch labels, log fields and span attributes.
const (
	RoleCandidate = "candidate"
	RoleReference = "reference"
)

const scratchPrefix = "artifact-validator"

// Result is the outcome of one run. Exactly one of Verdict and Err is
// meaningful: Err non-nil means no verdict could be reached.
type Result struct {
	JobID   string
	Verdict verdict.Verdict
	Err     error
}

// Outcome classifies the result for metrics.
func (r Result) Outcome() string {
	switch {
	case r.Err != nil:
		return observability.OutcomeError
	case r.Verdict.Passed:
		return observability.OutcomePassed
	default:
		return observability.OutcomeFailed
	}
}

func (r Result) attributes() []attribute.KeyValue {
	attrs := observability.JobAttributes(r.JobID)
	if r.Err == nil && !r.Verdict.Passed {
		attrs = append(attrs, observability.AttrReason.String(string(r.Verdict.Reason)))
	}
	return attrs
}

// Validator runs validation jobs.
type Validator struct {
	fetcher       artifacts.Fetcher
	reporter      *report.JobReporter
	unpacker      *unpack.Unpacker
	fingerprinter *fingerprint.Fingerprinter
	telemetry     *observability.Provider
	scratchRoot   string
	referenceKey  string
	parallel      bool
	logger        *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithUnpacker overrides the default one-level unpacker.
func WithUnpacker(u *unpack.Unpacker) Option {
	return func(v *Validator) { v.unpacker = u }
}

// WithFingerprinter overrides the default SHA-256 fingerprinter.
func WithFingerprinter(f *fingerprint.Fingerprinter) Option {
	return func(v *Validator) { v.fingerprinter = f }
}

// WithTelemetry attaches an observability provider.
func WithTelemetry(p *observability.Provider) Option {
	return func(v *Validator) { v.telemetry = p }
}

// WithScratchRoot sets the parent of per-run scratch directories.
func WithScratchRoot(root string) Option {
	return func(v *Validator) { v.scratchRoot = root }
}

// WithReferenceKey sets the object key of the reference package.
func WithReferenceKey(key string) Option {
	return func(v *Validator) { v.referenceKey = key }
}

// WithParallel toggles concurrent preparation of the two artifacts.
func WithParallel(enabled bool) Option {
	return func(v *Validator) { v.parallel = enabled }
}

// New creates a Validator reading from fetcher and reporting to orchestrator.
func New(fetcher artifacts.Fetcher, orchestrator report.Orchestrator, opts ...Option) *Validator {
	v := &Validator{
		fetcher:       fetcher,
		reporter:      report.NewJobReporter(orchestrator),
		unpacker:      unpack.New(),
		fingerprinter: fingerprint.New(fingerprint.SHA256),
		referenceKey:  event.DefaultReferenceKey,
		parallel:      true,
		logger:        slog.Default().With("component", "validator"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// HandleEvent is the Lambda entry point. It never returns an error: every
// outcome that can be attributed to a job is reported to the orchestrator,
// and an event without a job id is only logged.
func (v *Validator) HandleEvent(ctx context.Context, evt events.CodePipelineJobEvent) (err error) {
	job, err := event.FromCodePipeline(evt, v.referenceKey)

	reported := false
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		perr := fmt.Errorf("panic: %v", r)
		v.logger.ErrorContext(ctx, "validation panicked", "job_id", job.ID, "error", perr, "stack", string(debug.Stack()))
		if job.ID != "" && !reported {
			_ = v.reporter.ReportError(context.WithoutCancel(ctx), job.ID, perr)
			v.telemetry.RecordOutcome(ctx, observability.OutcomeError, observability.JobAttributes(job.ID)...)
		}
		err = nil
	}()

	if err != nil {
		if job.ID == "" {
			v.logger.ErrorContext(ctx, "cannot report: event has no job id", "error", err)
			return nil
		}
		v.logger.ErrorContext(ctx, "invalid job event", "job_id", job.ID, "error", err)
		reported = true
		_ = v.reporter.ReportError(context.WithoutCancel(ctx), job.ID, err)
		v.telemetry.RecordOutcome(ctx, observability.OutcomeError, observability.JobAttributes(job.ID)...)
		return nil
	}

	v.execute(ctx, job, func(ctx context.Context, res Result, dirs report.ArtifactDirs) {
		reported = true
		v.report(ctx, job.ID, res, dirs)
	})
	return nil
}

// Handle runs job and sends exactly one result to the orchestrator. The
// returned Result carries the run outcome; reporting errors are logged.
func (v *Validator) Handle(ctx context.Context, job event.Job) Result {
	return v.execute(ctx, job, func(ctx context.Context, res Result, dirs report.ArtifactDirs) {
		v.report(ctx, job.ID, res, dirs)
	})
}

// report sends the result on a context detached from the run's cancellation:
// a canceled run must still be reported.
func (v *Validator) report(ctx context.Context, jobID string, res Result, dirs report.ArtifactDirs) {
	ctx, finish := v.telemetry.TrackOperation(context.WithoutCancel(ctx), "validator.report", observability.JobAttributes(jobID)...)
	var err error
	if res.Err != nil {
		err = v.reporter.ReportError(ctx, jobID, res.Err)
	} else {
		err = v.reporter.Report(ctx, jobID, res.Verdict, dirs)
	}
	finish(err)
}

// Run validates job without reporting.
func (v *Validator) Run(ctx context.Context, job event.Job) Result {
	return v.execute(ctx, job, nil)
}

// execute runs the pipeline inside a scratch area. onDone, when set, is
// called while the unpacked trees still exist; the area is released after.
func (v *Validator) execute(ctx context.Context, job event.Job, onDone func(context.Context, Result, report.ArtifactDirs)) Result {
	ctx, finish := v.telemetry.TrackOperation(ctx, "validator.run", observability.JobAttributes(job.ID)...)
	logger := v.logger.With("job_id", job.ID)

	area := scratch.NewArea(v.scratchRoot, scratchPrefix)
	defer func() {
		if err := area.Release(context.WithoutCancel(ctx)); err != nil {
			logger.WarnContext(ctx, "scratch cleanup incomplete", "error", err)
		}
	}()

	logger.InfoContext(ctx, "validating artifacts",
		"candidate", job.Candidate.String(),
		"reference", job.Reference.String(),
		"parallel", v.parallel,
	)

	res := Result{JobID: job.ID}
	candidate, reference, err := v.prepareBoth(ctx, area, job)
	if err != nil {
		res.Err = err
		logger.ErrorContext(ctx, "an unexpected error occurred", "error", err, "class", Classify(err))
	} else {
		_, done := v.telemetry.TrackOperation(ctx, "validator.compare", observability.JobAttributes(job.ID)...)
		res.Verdict = verdict.Compare(candidate.hashes, reference.hashes)
		done(nil)
		logger.InfoContext(ctx, "comparison complete", "summary", res.Verdict.Summary())
	}

	if onDone != nil {
		onDone(ctx, res, report.ArtifactDirs{Candidate: candidate.dir, Reference: reference.dir})
	}

	v.telemetry.RecordOutcome(ctx, res.Outcome(), res.attributes()...)
	finish(res.Err)
	return res
}

type prepared struct {
	dir    string
	hashes fingerprint.Map
}

// prepareBoth fetches, unpacks and fingerprints the candidate and the
// reference, concurrently when enabled. The first error wins.
func (v *Validator) prepareBoth(ctx context.Context, area *scratch.Area, job event.Job) (prepared, prepared, error) {
	var candidate, reference prepared

	if !v.parallel {
		var err error
		if candidate, err = v.prepare(ctx, area, RoleCandidate, job.Candidate); err != nil {
			return candidate, reference, err
		}
		reference, err = v.prepare(ctx, area, RoleReference, job.Reference)
		return candidate, reference, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		candidate, err = v.prepare(gctx, area, RoleCandidate, job.Candidate)
		return err
	})
	g.Go(func() error {
		var err error
		reference, err = v.prepare(gctx, area, RoleReference, job.Reference)
		return err
	})
	err := g.Wait()
	return candidate, reference, err
}

// prepare materialises one artifact as a fingerprinted tree in its own
// scratch directory.
func (v *Validator) prepare(ctx context.Context, area *scratch.Area, role string, loc artifacts.Location) (out prepared, err error) {
	// Runs on errgroup goroutines, where a panic would take the process
	// down before any result is reported.
	defer func() {
		if r := recover(); r != nil {
			v.logger.ErrorContext(ctx, "artifact preparation panicked", "role", role, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%s: panic: %v", role, r)
		}
	}()

	dir, err := area.NewDir(role)
	if err != nil {
		return out, fmt.Errorf("%s: %w", role, err)
	}
	out.dir = dir

	// The download gets a unique name so it cannot clash with an entry of
	// the package itself.
	pkg := filepath.Join(dir, uuid.NewString()+unpack.PackageExt)

	stepCtx, done := v.telemetry.TrackOperation(ctx, "validator.fetch",
		observability.ArtifactOperation("fetch", role, loc.Bucket, loc.Key)...)
	err = v.fetcher.Fetch(stepCtx, loc, pkg)
	done(err)
	if err != nil {
		return out, fmt.Errorf("%s: %w", role, err)
	}
	v.logger.InfoContext(ctx, "downloaded artifact", "role", role, "location", loc.String())

	stepCtx, done = v.telemetry.TrackOperation(ctx, "validator.unpack",
		observability.ArtifactOperation("unpack", role, loc.Bucket, loc.Key)...)
	_, err = v.unpacker.Unpack(stepCtx, dir, pkg)
	done(err)
	if err != nil {
		return out, fmt.Errorf("%s: %w", role, err)
	}

	stepCtx, done = v.telemetry.TrackOperation(ctx, "validator.fingerprint",
		observability.FingerprintOperation(role, string(v.fingerprinter.Algorithm()))...)
	out.hashes, err = v.fingerprinter.Compute(stepCtx, dir)
	done(err)
	if err != nil {
		return out, fmt.Errorf("%s: %w", role, err)
	}
	observability.AddSpanEvent(stepCtx, "fingerprinted", observability.AttrFileCount.Int(len(out.hashes)))

	v.logger.InfoContext(ctx, "file hashes computed", "role", role, "files", len(out.hashes))
	v.logger.DebugContext(ctx, "file hashes", "role", role, "hashes", out.hashes)
	return out, nil
}
