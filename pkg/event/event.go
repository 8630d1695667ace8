// Package event decodes pipeline job invocations into validation jobs.
package event

import (
	"fmt"

	"github.com/Mindburn-Labs/artifact-validator/pkg/artifacts"
	"github.com/aws/aws-lambda-go/events"
)

// DefaultReferenceKey is where the packaging stage publishes the reference
// artifact, in the same bucket as the candidate.
const DefaultReferenceKey = "test-artifact/artifact.zip"

// Job is one validation request.
type Job struct {
	ID        string
	Candidate artifacts.Location
	Reference artifacts.Location
}

// InputError reports a job event that cannot be validated.
type InputError struct {
	JobID  string
	Reason string
}

func (e *InputError) Error() string {
	return "invalid job event: " + e.Reason
}

// FromCodePipeline extracts the job from a CodePipeline invocation. Only the
// first input artifact is used; the reference lives in the same bucket under
// referenceKey (DefaultReferenceKey when empty).
//
// A non-nil error with an empty JobID means no result can be reported.
func FromCodePipeline(evt events.CodePipelineJobEvent, referenceKey string) (Job, error) {
	job := Job{ID: evt.CodePipelineJob.ID}
	if job.ID == "" {
		return job, &InputError{Reason: "missing job id"}
	}

	inputs := evt.CodePipelineJob.Data.InputArtifacts
	if len(inputs) == 0 {
		return job, &InputError{JobID: job.ID, Reason: "no input artifacts found in pipeline event"}
	}

	s3 := inputs[0].Location.S3Location
	if s3.BucketName == "" || s3.ObjectKey == "" {
		return job, &InputError{
			JobID:  job.ID,
			Reason: fmt.Sprintf("input artifact %q has no S3 location", inputs[0].Name),
		}
	}

	if referenceKey == "" {
		referenceKey = DefaultReferenceKey
	}
	job.Candidate = artifacts.Location{Bucket: s3.BucketName, Key: s3.ObjectKey}
	job.Reference = artifacts.Location{Bucket: s3.BucketName, Key: referenceKey}
	return job, nil
}
