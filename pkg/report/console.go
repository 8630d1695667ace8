package report

import (
	"context"
	"fmt"
	"io"
)

// Console writes job results to a terminal. It backs the local compare
// command where no orchestrator is present.
type Console struct {
	w io.Writer
}

// NewConsole writes results to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) ReportSuccess(_ context.Context, jobID string) error {
	_, err := fmt.Fprintf(c.w, "✅ Artifact validation PASSED (job %s)\n", jobID)
	return err
}

func (c *Console) ReportFailure(_ context.Context, jobID string, details FailureDetails) error {
	_, err := fmt.Fprintf(c.w, "❌ Artifact validation FAILED (job %s, %s)\n%s\n", jobID, details.Kind, details.Message)
	return err
}
