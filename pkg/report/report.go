// Package report turns comparison verdicts into orchestrator job results.
package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/Mindburn-Labs/artifact-validator/pkg/verdict"
)

// FailureKind is the orchestrator's failure category.
type FailureKind string

// FailureJobFailed is the only kind this gate emits.
const FailureJobFailed FailureKind = "JobFailed"

// MaxMessageLength is the longest failure message the orchestrator accepts.
const MaxMessageLength = 5000

const truncationMarker = "\n... (truncated, see logs)"

// maxDumpBytes bounds how much of each file is logged for a content mismatch.
const maxDumpBytes = 64 << 10

// FailureDetails is the payload of a failure signal.
type FailureDetails struct {
	Kind    FailureKind
	Message string
}

// Orchestrator receives the job result. Implementations must be safe to call
// once per job.
type Orchestrator interface {
	ReportSuccess(ctx context.Context, jobID string) error
	ReportFailure(ctx context.Context, jobID string, details FailureDetails) error
}

// ArtifactDirs points at the extracted trees, used to dump mismatched file
// contents into the log.
type ArtifactDirs struct {
	Candidate string
	Reference string
}

// JobReporter sends exactly one result per call to the orchestrator.
type JobReporter struct {
	orchestrator Orchestrator
	logger       *slog.Logger
}

// NewJobReporter wraps an orchestrator client.
func NewJobReporter(orchestrator Orchestrator) *JobReporter {
	return &JobReporter{
		orchestrator: orchestrator,
		logger:       slog.Default().With("component", "report"),
	}
}

// Report signals success or failure for v. Send failures are logged and
// returned; the caller must not report again.
func (r *JobReporter) Report(ctx context.Context, jobID string, v verdict.Verdict, dirs ArtifactDirs) error {
	if v.Passed {
		r.logger.InfoContext(ctx, "validation successful, all file hashes match", "job_id", jobID)
		if err := r.orchestrator.ReportSuccess(ctx, jobID); err != nil {
			r.logger.ErrorContext(ctx, "failed to send success signal", "job_id", jobID, "error", err)
			return fmt.Errorf("report success: %w", err)
		}
		r.logger.InfoContext(ctx, "success signal sent", "job_id", jobID)
		return nil
	}

	switch v.Reason {
	case verdict.ReasonMissingFiles:
		r.logger.ErrorContext(ctx, "file lists do not match",
			"job_id", jobID,
			"differences", v.MissingFiles,
			"missing_from_candidate", v.MissingFromCandidate,
			"missing_from_reference", v.MissingFromReference,
		)
	case verdict.ReasonContentMismatch:
		r.logger.ErrorContext(ctx, "file hashes do not match", "job_id", jobID, "mismatches", v.Mismatches)
		r.dumpMismatches(ctx, v, dirs)
	}

	return r.fail(ctx, jobID, FailureDetails{Kind: FailureJobFailed, Message: v.Message()})
}

// ReportError signals failure for a run that could not produce a verdict.
func (r *JobReporter) ReportError(ctx context.Context, jobID string, cause error) error {
	return r.fail(ctx, jobID, FailureDetails{
		Kind:    FailureJobFailed,
		Message: fmt.Sprintf("unexpected error: %v", cause),
	})
}

func (r *JobReporter) fail(ctx context.Context, jobID string, details FailureDetails) error {
	details.Message = truncate(details.Message)
	if err := r.orchestrator.ReportFailure(ctx, jobID, details); err != nil {
		r.logger.ErrorContext(ctx, "failed to report job failure", "job_id", jobID, "error", err)
		return fmt.Errorf("report failure: %w", err)
	}
	return nil
}

// dumpMismatches logs both versions of every mismatched file when both are
// readable text. Read errors are logged and skipped.
func (r *JobReporter) dumpMismatches(ctx context.Context, v verdict.Verdict, dirs ArtifactDirs) {
	if dirs.Candidate == "" || dirs.Reference == "" {
		return
	}
	for _, path := range v.MismatchedPaths() {
		candidate, err := readText(filepath.Join(dirs.Candidate, filepath.FromSlash(path)))
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to read file content", "file", path, "side", "candidate", "error", err)
			continue
		}
		reference, err := readText(filepath.Join(dirs.Reference, filepath.FromSlash(path)))
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to read file content", "file", path, "side", "reference", "error", err)
			continue
		}
		r.logger.ErrorContext(ctx, "difference in file",
			"file", path,
			"candidate_content", candidate,
			"reference_content", reference,
		)
	}
}

func readText(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path inside driver-owned scratch dir
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck // read-only

	data, err := io.ReadAll(io.LimitReader(f, maxDumpBytes+1))
	if err != nil {
		return "", err
	}
	truncated := len(data) > maxDumpBytes
	if truncated {
		cut := maxDumpBytes
		for cut > 0 && !utf8.RuneStart(data[cut]) {
			cut--
		}
		data = data[:cut]
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s is not valid UTF-8 text", filepath.Base(path))
	}
	if truncated {
		return string(data) + truncationMarker, nil
	}
	return string(data), nil
}

func truncate(msg string) string {
	if len(msg) <= MaxMessageLength {
		return msg
	}
	cut := MaxMessageLength - len(truncationMarker)
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut] + truncationMarker
}
