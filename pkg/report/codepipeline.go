package report

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	cptypes "github.com/aws/aws-sdk-go-v2/service/codepipeline/types"
)

// CodePipelineAPI is the subset of the CodePipeline client used to publish
// job results.
type CodePipelineAPI interface {
	PutJobSuccessResult(ctx context.Context, params *codepipeline.PutJobSuccessResultInput, optFns ...func(*codepipeline.Options)) (*codepipeline.PutJobSuccessResultOutput, error)
	PutJobFailureResult(ctx context.Context, params *codepipeline.PutJobFailureResultInput, optFns ...func(*codepipeline.Options)) (*codepipeline.PutJobFailureResultOutput, error)
}

// CodePipeline publishes job results to AWS CodePipeline.
type CodePipeline struct {
	client CodePipelineAPI
}

// NewCodePipeline creates a client from the default AWS credential chain.
func NewCodePipeline(ctx context.Context, region string) (*CodePipeline, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewCodePipelineWithClient(codepipeline.NewFromConfig(awsCfg)), nil
}

// NewCodePipelineWithClient wraps an existing client.
func NewCodePipelineWithClient(client CodePipelineAPI) *CodePipeline {
	return &CodePipeline{client: client}
}

func (c *CodePipeline) ReportSuccess(ctx context.Context, jobID string) error {
	_, err := c.client.PutJobSuccessResult(ctx, &codepipeline.PutJobSuccessResultInput{
		JobId: aws.String(jobID),
	})
	if err != nil {
		return fmt.Errorf("codepipeline put success for %s: %w", jobID, err)
	}
	return nil
}

func (c *CodePipeline) ReportFailure(ctx context.Context, jobID string, details FailureDetails) error {
	_, err := c.client.PutJobFailureResult(ctx, &codepipeline.PutJobFailureResultInput{
		JobId: aws.String(jobID),
		FailureDetails: &cptypes.FailureDetails{
			Type:    cptypes.FailureType(details.Kind),
			Message: aws.String(details.Message),
		},
	})
	if err != nil {
		return fmt.Errorf("codepipeline put failure for %s: %w", jobID, err)
	}
	return nil
}
