package validator

import (
	"context"
	"errors"

	"github.com/Mindburn-Labs/artifact-validator/pkg/artifacts"
	"github.com/Mindburn-Labs/artifact-validator/pkg/event"
	"github.com/Mindburn-Labs/artifact-validator/pkg/unpack"
)

// Error classes returned by Classify.
const (
	ClassInput      = "input"
	ClassNotFound   = "not_found"
	ClassRetrieval  = "retrieval"
	ClassUnpack     = "unpack"
	ClassCanceled   = "canceled"
	ClassUnexpected = "unexpected"
)

// Classify names the failure class of err for logs and metrics. It returns
// "" for a nil error.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var inputErr *event.InputError
	var retrievalErr *artifacts.RetrievalError
	var unpackErr *unpack.UnpackError

	switch {
	case errors.As(err, &inputErr):
		return ClassInput
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ClassCanceled
	case errors.Is(err, artifacts.ErrObjectNotFound):
		return ClassNotFound
	case errors.As(err, &retrievalErr):
		return ClassRetrieval
	case errors.As(err, &unpackErr):
		return ClassUnpack
	default:
		return ClassUnexpected
	}
}
