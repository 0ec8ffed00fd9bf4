package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrBadRequest       = errors.New("bad request")
	ErrMissingAPIKey    = errors.New("api key is required")
	ErrMissingRequests  = errors.New("requests must not be empty")
	ErrMissingImage     = errors.New("image data is required")
	ErrMissingPrompt    = errors.New("edit prompt is required")
	ErrProviderFailure  = errors.New("provider failure")
	ErrNoImages         = errors.New("no images returned")
	ErrAllRequestsFail  = errors.New("all requests failed")
	ErrBatchTimeout     = errors.New("batch job timed out")
	ErrUpscaleTimeout   = errors.New("upscale job timed out")
	ErrBatchUnavailable = errors.New("batch path unavailable")
)

// BadRequest marks err as a client input error.
func BadRequest(err error) error {
	return fmt.Errorf("%w: %w", ErrBadRequest, err)
}

// JobFailedError is an authoritative terminal failure reported by a provider.
type JobFailedError struct {
	Job    string
	Reason string
}

func (e *JobFailedError) Error() string {
	reason := strings.TrimSpace(e.Reason)
	if reason == "" {
		reason = "unknown reason"
	}
	return fmt.Sprintf("%s job failed: %s", e.Job, reason)
}

func (e *JobFailedError) Unwrap() error { return ErrProviderFailure }

// UnexpectedStatusError carries a provider status the service does not know
// how to handle.
type UnexpectedStatusError struct {
	Status string
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s", e.Status)
}

func (e *UnexpectedStatusError) Unwrap() error { return ErrProviderFailure }

// PartialFailureError reports a fallback fan-out where at least one item
// errored. Images produced by the other items are discarded.
type PartialFailureError struct {
	Total   int
	Details []string
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%d of %d requests failed", len(e.Details), e.Total)
}

func (e *PartialFailureError) Unwrap() error { return ErrProviderFailure }
