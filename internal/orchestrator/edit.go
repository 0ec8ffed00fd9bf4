package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"flyerproxy/internal/codec"
	"flyerproxy/internal/domain"
	"flyerproxy/internal/infra"
	"flyerproxy/internal/metrics"
	"flyerproxy/internal/providers/genai"
	"flyerproxy/internal/resilient"
)

type EditOptions struct {
	Generator    Generator
	Sleeper      resilient.Sleeper
	Logger       *infra.Logger
	Metrics      *metrics.Metrics
	PollInterval time.Duration
	PollAttempts int
}

// Edit applies a text instruction to an existing flyer.
type Edit struct {
	path    batchPath
	gen     Generator
	logger  *infra.Logger
	metrics *metrics.Metrics
}

type EditInput struct {
	APIKey      string
	ImageData   string
	Instruction string
	ImageSize   string
	AspectRatio string
}

func NewEdit(opts EditOptions) *Edit {
	return &Edit{
		path:    newBatchPath("edit", opts.Generator, opts.Sleeper, opts.Logger, opts.Metrics, opts.PollInterval, opts.PollAttempts),
		gen:     opts.Generator,
		logger:  infra.OrDiscard(opts.Logger),
		metrics: opts.Metrics,
	}
}

// Apply returns an envelope carrying exactly one image on success.
func (e *Edit) Apply(ctx context.Context, in EditInput) (*domain.Envelope, error) {
	if in.APIKey == "" {
		return nil, domain.BadRequest(domain.ErrMissingAPIKey)
	}
	instruction := strings.TrimSpace(in.Instruction)
	if instruction == "" {
		return nil, domain.BadRequest(domain.ErrMissingPrompt)
	}
	mime, b64, err := codec.ParseImageData(in.ImageData)
	if err != nil {
		return nil, domain.BadRequest(err)
	}
	contents, err := editContents(mime, b64, instruction)
	if err != nil {
		return nil, err
	}
	cfg := imageConfig(in.ImageSize, in.AspectRatio)

	out := e.path.run(ctx, in.APIKey, []genai.BatchItem{{Contents: contents}}, cfg)
	if out.kind == outcomeRetryable {
		out = e.direct(ctx, in.APIKey, contents, cfg)
		e.metrics.Rung("edit", "fallback", out.kind.String())
	}
	if out.kind != outcomeSuccess {
		return nil, out.err
	}
	e.logger.Info().Str("mime", mime).Msg("orchestrator: edit complete")
	return &domain.Envelope{Image: out.images[0]}, nil
}

// direct is the last rung: a single synchronous call that retries transient
// statuses on its own.
func (e *Edit) direct(ctx context.Context, apiKey string, contents json.RawMessage, cfg genai.ImageConfig) outcome {
	resp, err := e.gen.GenerateContent(ctx, apiKey, contents, cfg)
	if err != nil {
		return terminal(err)
	}
	img, ok := resp.FirstImage()
	if !ok {
		return terminal(domain.ErrNoImages)
	}
	return succeeded([]string{img})
}

func editContents(mime, b64, instruction string) (json.RawMessage, error) {
	contents := []genai.Content{{
		Role: "user",
		Parts: []genai.Part{
			{InlineData: &genai.InlineData{MimeType: mime, Data: b64}},
			{Text: instruction},
		},
	}}
	raw, err := json.Marshal(contents)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: marshal edit contents: %w", err)
	}
	return raw, nil
}
