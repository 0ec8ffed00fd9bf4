package orchestrator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"flyerproxy/internal/domain"
	"flyerproxy/internal/infra"
	"flyerproxy/internal/metrics"
	"flyerproxy/internal/providers/genai"
	"flyerproxy/internal/resilient"
)

// BatchOptions configures the bulk generation orchestrator.
type BatchOptions struct {
	Generator    Generator
	Sleeper      resilient.Sleeper
	Logger       *infra.Logger
	Metrics      *metrics.Metrics
	PollInterval time.Duration
	PollAttempts int
	// Concurrency caps the synchronous fallback fan-out. Zero fires every
	// request at once.
	Concurrency int
}

// Batch produces one image per generation request.
type Batch struct {
	path        batchPath
	gen         Generator
	logger      *infra.Logger
	metrics     *metrics.Metrics
	concurrency int
}

// BatchInput is one bulk generation call.
type BatchInput struct {
	APIKey      string
	Requests    []domain.GenerationRequest
	ImageSize   string
	AspectRatio string
}

func NewBatch(opts BatchOptions) *Batch {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = -1
	}
	return &Batch{
		path:        newBatchPath("batch", opts.Generator, opts.Sleeper, opts.Logger, opts.Metrics, opts.PollInterval, opts.PollAttempts),
		gen:         opts.Generator,
		logger:      infra.OrDiscard(opts.Logger),
		metrics:     opts.Metrics,
		concurrency: concurrency,
	}
}

// Submit runs the ladder for in. On success the envelope carries at most
// len(in.Requests) images.
func (b *Batch) Submit(ctx context.Context, in BatchInput) (*domain.Envelope, error) {
	if in.APIKey == "" {
		return nil, domain.BadRequest(domain.ErrMissingAPIKey)
	}
	if len(in.Requests) == 0 {
		return nil, domain.BadRequest(domain.ErrMissingRequests)
	}
	cfg := imageConfig(in.ImageSize, in.AspectRatio)
	items := make([]genai.BatchItem, len(in.Requests))
	for i, req := range in.Requests {
		items[i] = genai.BatchItem{Contents: req.Contents}
	}

	out := b.path.run(ctx, in.APIKey, items, cfg)
	if out.kind == outcomeRetryable {
		out = b.fallback(ctx, in.APIKey, items, cfg)
		b.metrics.Rung("batch", "fallback", out.kind.String())
	}
	if out.kind != outcomeSuccess {
		return nil, out.err
	}
	b.logger.Info().Int("requests", len(items)).Int("images", len(out.images)).Msg("orchestrator: batch complete")
	return &domain.Envelope{Images: out.images}, nil
}

// fallback issues one resilient synchronous call per item. Every goroutine
// records into its own slot, so the group never short-circuits.
func (b *Batch) fallback(ctx context.Context, apiKey string, items []genai.BatchItem, cfg genai.ImageConfig) outcome {
	images := make([]string, len(items))
	errs := make([]error, len(items))

	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			resp, err := b.gen.GenerateContent(ctx, apiKey, item.Contents, cfg)
			if err != nil {
				errs[i] = err
				return nil
			}
			if img, ok := resp.FirstImage(); ok {
				images[i] = img
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return terminal(err)
	}
	var details []string
	for i, err := range errs {
		if err != nil {
			details = append(details, fmt.Sprintf("request %d: %s", i, err.Error()))
		}
	}
	if len(details) > 0 {
		return terminal(&domain.PartialFailureError{Total: len(items), Details: details})
	}
	collected := make([]string, 0, len(images))
	for _, img := range images {
		if img != "" {
			collected = append(collected, img)
		}
	}
	if len(collected) == 0 {
		return terminal(domain.ErrAllRequestsFail)
	}
	return succeeded(collected)
}

func imageConfig(size, ratio string) genai.ImageConfig {
	return genai.ImageConfig{
		ImageSize:   string(domain.NormalizeImageSize(size)),
		AspectRatio: domain.NormalizeAspectRatio(ratio),
	}
}
