// Package orchestrator drives upstream providers for the three proxy
// operations: bulk generation, single-image edit and upscale.
//
// Generation and edit share a three-rung ladder. Rung 1 submits a batch job,
// rung 2 polls it, rung 3 falls back to one synchronous call per request.
// Each rung reports an outcome; only a retryable outcome moves the ladder on.
package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"flyerproxy/internal/domain"
	"flyerproxy/internal/infra"
	"flyerproxy/internal/metrics"
	"flyerproxy/internal/providers/genai"
	"flyerproxy/internal/resilient"
)

// Generator is the generative-image provider surface used by the ladder.
type Generator interface {
	GenerateContent(ctx context.Context, apiKey string, contents json.RawMessage, cfg genai.ImageConfig) (*genai.GenerateContentResponse, error)
	SubmitBatch(ctx context.Context, apiKey string, items []genai.BatchItem, cfg genai.ImageConfig) (*genai.BatchSubmission, error)
	GetBatch(ctx context.Context, apiKey, name string) (*genai.BatchStatus, error)
}

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	// outcomeRetryable advances to the next rung.
	outcomeRetryable
	// outcomeTerminal stops the ladder and is surfaced to the caller.
	outcomeTerminal
)

func (k outcomeKind) String() string {
	switch k {
	case outcomeSuccess:
		return "success"
	case outcomeRetryable:
		return "retryable"
	case outcomeTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

type outcome struct {
	kind   outcomeKind
	images []string
	err    error
}

func succeeded(images []string) outcome { return outcome{kind: outcomeSuccess, images: images} }
func retryable(err error) outcome       { return outcome{kind: outcomeRetryable, err: err} }
func terminal(err error) outcome        { return outcome{kind: outcomeTerminal, err: err} }

const (
	defaultBatchPollInterval = 5 * time.Second
	defaultBatchPollAttempts = 60
)

// batchPath runs rungs 1 and 2 of the ladder.
type batchPath struct {
	name     string
	gen      Generator
	sleeper  resilient.Sleeper
	logger   *infra.Logger
	metrics  *metrics.Metrics
	interval time.Duration
	attempts int
}

func newBatchPath(name string, gen Generator, sleeper resilient.Sleeper, logger *infra.Logger, m *metrics.Metrics, interval time.Duration, attempts int) batchPath {
	if sleeper == nil {
		sleeper = resilient.RealSleeper{}
	}
	if interval <= 0 {
		interval = defaultBatchPollInterval
	}
	if attempts <= 0 {
		attempts = defaultBatchPollAttempts
	}
	return batchPath{
		name:     name,
		gen:      gen,
		sleeper:  sleeper,
		logger:   infra.OrDiscard(logger),
		metrics:  m,
		interval: interval,
		attempts: attempts,
	}
}

func (p batchPath) run(ctx context.Context, apiKey string, items []genai.BatchItem, cfg genai.ImageConfig) outcome {
	sub, err := p.gen.SubmitBatch(ctx, apiKey, items, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return p.record("submit", terminal(ctx.Err()))
		}
		return p.record("submit", retryable(err))
	}
	if sub.Immediate {
		images := capImages(genai.ExtractImages(sub.Responses, false), len(items))
		if len(images) == 0 {
			return p.record("submit", retryable(domain.ErrNoImages))
		}
		return p.record("submit", succeeded(images))
	}
	p.metrics.Rung(p.name, "submit", "pending")
	return p.record("poll", p.poll(ctx, apiKey, sub.Name, len(items)))
}

func (p batchPath) poll(ctx context.Context, apiKey, name string, n int) outcome {
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err := p.sleeper.Sleep(ctx, p.interval); err != nil {
			return terminal(err)
		}
		status, err := p.gen.GetBatch(ctx, apiKey, name)
		if err != nil {
			if ctx.Err() != nil {
				return terminal(ctx.Err())
			}
			p.metrics.Poll(p.name, "error")
			p.logger.Warn().Err(err).Str("batch", name).Int("attempt", attempt).Msg("orchestrator: batch status check failed")
			continue
		}
		p.metrics.Poll(p.name, string(status.State))
		if status.State.Terminal() {
			if status.State == domain.JobStateFailed {
				return terminal(&domain.JobFailedError{Job: "batch", Reason: status.Reason})
			}
			images := capImages(genai.ExtractImages(status.Responses, true), n)
			if len(images) == 0 {
				return retryable(domain.ErrNoImages)
			}
			return succeeded(images)
		}
		p.logger.Debug().Str("batch", name).Str("state", status.RawState).Int("attempt", attempt).Msg("orchestrator: batch pending")
	}
	return terminal(domain.ErrBatchTimeout)
}

// record counts the outcome of a rung and passes it through.
func (p batchPath) record(rung string, out outcome) outcome {
	p.metrics.Rung(p.name, rung, out.kind.String())
	if out.kind == outcomeRetryable {
		p.logger.Warn().Err(out.err).Str("rung", rung).Msg("orchestrator: batch path failed, falling back")
	}
	return out
}

func capImages(images []string, n int) []string {
	if len(images) > n {
		return images[:n]
	}
	return images
}

