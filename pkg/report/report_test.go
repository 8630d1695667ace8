package report

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Mindburn-Labs/artifact-validator/pkg/verdict"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	kind    string
	jobID   string
	details FailureDetails
}

type fakeOrchestrator struct {
	calls []call
	err   error
}

func (f *fakeOrchestrator) ReportSuccess(_ context.Context, jobID string) error {
	f.calls = append(f.calls, call{kind: "success", jobID: jobID})
	return f.err
}

func (f *fakeOrchestrator) ReportFailure(_ context.Context, jobID string, details FailureDetails) error {
	f.calls = append(f.calls, call{kind: "failure", jobID: jobID, details: details})
	return f.err
}

func newTestReporter(orch Orchestrator) (*JobReporter, *bytes.Buffer) {
	var buf bytes.Buffer
	r := NewJobReporter(orch)
	r.logger = slog.New(slog.NewTextHandler(&buf, nil))
	return r, &buf
}

func TestReport_Success(t *testing.T) {
	orch := &fakeOrchestrator{}
	r, _ := newTestReporter(orch)

	require.NoError(t, r.Report(context.Background(), "job-1", verdict.Success(), ArtifactDirs{}))
	require.Len(t, orch.calls, 1)
	assert.Equal(t, call{kind: "success", jobID: "job-1"}, orch.calls[0])
}

func TestReport_MissingFiles(t *testing.T) {
	orch := &fakeOrchestrator{}
	r, _ := newTestReporter(orch)

	v := verdict.Verdict{
		Reason:               verdict.ReasonMissingFiles,
		MissingFiles:         []string{"b.txt"},
		MissingFromCandidate: []string{"b.txt"},
	}
	require.NoError(t, r.Report(context.Background(), "job-2", v, ArtifactDirs{}))
	require.Len(t, orch.calls, 1)
	assert.Equal(t, "failure", orch.calls[0].kind)
	assert.Equal(t, FailureJobFailed, orch.calls[0].details.Kind)
	assert.Contains(t, orch.calls[0].details.Message, "b.txt")
}

func TestReport_ContentMismatchDumpsText(t *testing.T) {
	candDir, refDir := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(candDir, "a.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(refDir, "a.txt"), []byte("bye"), 0o644))

	orch := &fakeOrchestrator{}
	r, logs := newTestReporter(orch)

	v := verdict.Verdict{
		Reason:     verdict.ReasonContentMismatch,
		Mismatches: map[string]verdict.HashPair{"a.txt": {Candidate: "h1", Reference: "h2"}},
	}
	require.NoError(t, r.Report(context.Background(), "job-3", v, ArtifactDirs{Candidate: candDir, Reference: refDir}))

	require.Len(t, orch.calls, 1)
	msg := orch.calls[0].details.Message
	assert.Contains(t, msg, "a.txt")
	assert.Contains(t, msg, "h1")
	assert.Contains(t, msg, "h2")

	assert.Contains(t, logs.String(), "difference in file")
	assert.Contains(t, logs.String(), "candidate_content=hi")
	assert.Contains(t, logs.String(), "reference_content=bye")
}

func TestReport_BinaryContentNotDumped(t *testing.T) {
	candDir, refDir := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(candDir, "x.bin"), []byte{0xff, 0xfe, 0x00}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(refDir, "x.bin"), []byte{0xff, 0xfd}, 0o644))

	orch := &fakeOrchestrator{}
	r, logs := newTestReporter(orch)

	v := verdict.Verdict{
		Reason:     verdict.ReasonContentMismatch,
		Mismatches: map[string]verdict.HashPair{"x.bin": {Candidate: "h1", Reference: "h2"}},
	}
	require.NoError(t, r.Report(context.Background(), "job-4", v, ArtifactDirs{Candidate: candDir, Reference: refDir}))
	assert.Len(t, orch.calls, 1)
	assert.Contains(t, logs.String(), "failed to read file content")
	assert.NotContains(t, logs.String(), "difference in file")
}

func TestReport_FailureSendErrorIsLogged(t *testing.T) {
	orch := &fakeOrchestrator{err: errors.New("throttled")}
	r, logs := newTestReporter(orch)

	err := r.ReportError(context.Background(), "job-5", errors.New("boom"))
	require.Error(t, err)
	require.Len(t, orch.calls, 1)
	assert.Equal(t, "unexpected error: boom", orch.calls[0].details.Message)
	assert.Contains(t, logs.String(), "failed to report job failure")
}

func TestTruncate(t *testing.T) {
	short := "short"
	assert.Equal(t, short, truncate(short))

	long := strings.Repeat("é", MaxMessageLength)
	got := truncate(long)
	assert.LessOrEqual(t, len(got), MaxMessageLength)
	assert.True(t, strings.HasSuffix(got, truncationMarker))
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	require.NoError(t, c.ReportFailure(context.Background(), "local", FailureDetails{Kind: FailureJobFailed, Message: "File lists do not match"}))
	assert.Contains(t, buf.String(), "FAILED (job local, JobFailed)")
	assert.Contains(t, buf.String(), "File lists do not match")

	buf.Reset()
	require.NoError(t, c.ReportSuccess(context.Background(), "local"))
	assert.Equal(t, "✅ Artifact validation PASSED (job local)\n", buf.String())
}

type fakeCodePipeline struct {
	success *codepipeline.PutJobSuccessResultInput
	failure *codepipeline.PutJobFailureResultInput
}

func (f *fakeCodePipeline) PutJobSuccessResult(_ context.Context, in *codepipeline.PutJobSuccessResultInput, _ ...func(*codepipeline.Options)) (*codepipeline.PutJobSuccessResultOutput, error) {
	f.success = in
	return &codepipeline.PutJobSuccessResultOutput{}, nil
}

func (f *fakeCodePipeline) PutJobFailureResult(_ context.Context, in *codepipeline.PutJobFailureResultInput, _ ...func(*codepipeline.Options)) (*codepipeline.PutJobFailureResultOutput, error) {
	f.failure = in
	return &codepipeline.PutJobFailureResultOutput{}, nil
}

func TestCodePipeline_Requests(t *testing.T) {
	client := &fakeCodePipeline{}
	cp := NewCodePipelineWithClient(client)

	require.NoError(t, cp.ReportSuccess(context.Background(), "11111111-abcd"))
	require.NotNil(t, client.success)
	assert.Equal(t, "11111111-abcd", *client.success.JobId)

	require.NoError(t, cp.ReportFailure(context.Background(), "22222222-abcd", FailureDetails{Kind: FailureJobFailed, Message: "nope"}))
	require.NotNil(t, client.failure)
	assert.Equal(t, "22222222-abcd", *client.failure.JobId)
	assert.Equal(t, "JobFailed", string(client.failure.FailureDetails.Type))
	assert.Equal(t, "nope", *client.failure.FailureDetails.Message)
}
