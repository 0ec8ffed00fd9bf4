package orchestrator

import (
	"context"
	"fmt"
	"time"

	"flyerproxy/internal/codec"
	"flyerproxy/internal/domain"
	"flyerproxy/internal/infra"
	"flyerproxy/internal/metrics"
	"flyerproxy/internal/providers/replicate"
	"flyerproxy/internal/resilient"
)

// FixedScale is the only enlargement factor the upscale model is run with.
const FixedScale = 2

const (
	defaultUpscalePollInterval = 2 * time.Second
	defaultUpscalePollAttempts = 30
)

// Enhancer is the image-enhancement provider surface.
type Enhancer interface {
	CreatePrediction(ctx context.Context, token, version string, input map[string]any) (*replicate.Prediction, error)
	GetPrediction(ctx context.Context, token, id string) (*replicate.Prediction, error)
	Download(ctx context.Context, url string) ([]byte, string, error)
}

type UpscaleOptions struct {
	Enhancer     Enhancer
	Version      string
	Sleeper      resilient.Sleeper
	Logger       *infra.Logger
	Metrics      *metrics.Metrics
	PollInterval time.Duration
	PollAttempts int
}

type Upscale struct {
	enhancer Enhancer
	version  string
	sleeper  resilient.Sleeper
	logger   *infra.Logger
	metrics  *metrics.Metrics
	interval time.Duration
	attempts int
}

type UpscaleInput struct {
	Token     string
	ImageData string
	// Scale is what the caller asked for; FixedScale is always used.
	Scale       *int
	FaceEnhance bool
}

func NewUpscale(opts UpscaleOptions) *Upscale {
	sleeper := opts.Sleeper
	if sleeper == nil {
		sleeper = resilient.RealSleeper{}
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultUpscalePollInterval
	}
	attempts := opts.PollAttempts
	if attempts <= 0 {
		attempts = defaultUpscalePollAttempts
	}
	return &Upscale{
		enhancer: opts.Enhancer,
		version:  opts.Version,
		sleeper:  sleeper,
		logger:   infra.OrDiscard(opts.Logger),
		metrics:  opts.Metrics,
		interval: interval,
		attempts: attempts,
	}
}

// Run submits one enhancement job and waits for its asset.
func (u *Upscale) Run(ctx context.Context, in UpscaleInput) (*domain.UpscaleResult, error) {
	if in.Token == "" {
		return nil, domain.BadRequest(domain.ErrMissingAPIKey)
	}
	mime, b64, err := codec.ParseImageData(in.ImageData)
	if err != nil {
		return nil, domain.BadRequest(err)
	}
	if in.Scale != nil && *in.Scale != FixedScale {
		u.logger.Info().Int("requested", *in.Scale).Int("effective", FixedScale).Msg("orchestrator: requested scale overridden")
	}

	input := map[string]any{
		"image":        "data:" + mime + ";base64," + b64,
		"scale":        FixedScale,
		"face_enhance": in.FaceEnhance,
	}
	pred, err := u.enhancer.CreatePrediction(ctx, in.Token, u.version, input)
	if err != nil {
		return nil, err
	}

	polls := 0
	for {
		state := pred.State()
		switch {
		case state == domain.PredictionSucceeded:
			return u.finish(ctx, pred)
		case state == domain.PredictionFailed:
			return nil, &domain.JobFailedError{Job: "upscale", Reason: pred.FailureReason()}
		case state == domain.PredictionCanceled:
			u.logger.Warn().Str("prediction", pred.ID).Msg("orchestrator: upscale canceled upstream")
			return nil, &domain.UnexpectedStatusError{Status: pred.Status}
		case !state.InFlight():
			return nil, &domain.UnexpectedStatusError{Status: pred.Status}
		}
		if polls >= u.attempts {
			return nil, domain.ErrUpscaleTimeout
		}
		if err := u.sleeper.Sleep(ctx, u.interval); err != nil {
			return nil, err
		}
		polls++
		next, err := u.enhancer.GetPrediction(ctx, in.Token, pred.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			u.metrics.Poll("upscale", "error")
			u.logger.Warn().Err(err).Str("prediction", pred.ID).Int("attempt", polls).Msg("orchestrator: upscale status check failed")
			continue
		}
		pred = next
		u.metrics.Poll("upscale", string(pred.State()))
	}
}

func (u *Upscale) finish(ctx context.Context, pred *replicate.Prediction) (*domain.UpscaleResult, error) {
	url := pred.OutputURL()
	if url == "" {
		return nil, fmt.Errorf("%w: upscale succeeded without output", domain.ErrProviderFailure)
	}
	data, mime, err := u.enhancer.Download(ctx, url)
	if err != nil {
		return nil, err
	}
	return &domain.UpscaleResult{
		Success:     true,
		Image:       codec.DataURI(mime, data),
		OriginalURL: url,
		Scale:       FixedScale,
	}, nil
}
