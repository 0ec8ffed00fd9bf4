package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"flyerproxy/internal/domain"
	"flyerproxy/internal/infra"
	"flyerproxy/internal/middleware"
	"flyerproxy/internal/orchestrator"
)

type BatchGenerator interface {
	Submit(ctx context.Context, in orchestrator.BatchInput) (*domain.Envelope, error)
}

type ImageEditor interface {
	Apply(ctx context.Context, in orchestrator.EditInput) (*domain.Envelope, error)
}

type Upscaler interface {
	Run(ctx context.Context, in orchestrator.UpscaleInput) (*domain.UpscaleResult, error)
}

// App holds the orchestrators behind the proxy routes.
type App struct {
	Generator BatchGenerator
	Editor    ImageEditor
	Upscaler  Upscaler
	Logger    *infra.Logger

	// Server-side credentials used when a request carries none.
	DefaultGeminiKey      string
	DefaultReplicateToken string
	MaxBodyBytes          int64
}

func NewApp(cfg *infra.Config, batch BatchGenerator, edit ImageEditor, upscale Upscaler, logger *infra.Logger) *App {
	return &App{
		Generator:             batch,
		Editor:                edit,
		Upscaler:              upscale,
		Logger:                infra.OrDiscard(logger),
		DefaultGeminiKey:      cfg.GeminiAPIKey,
		DefaultReplicateToken: cfg.ReplicateAPIToken,
		MaxBodyBytes:          cfg.MaxBodyBytes,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, msg string) {
	a.json(w, code, domain.ErrorEnvelope(kind, msg, nil))
}

// decode reads a JSON body into v, answering 400 or 413 itself on failure.
func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := r.Body
	if a.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, a.MaxBodyBytes)
	}
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "Payload too large", err.Error())
			return false
		}
		a.error(w, http.StatusBadRequest, "Bad request", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// fail maps an orchestrator error to its status and envelope. kind names the
// failed operation for 500s.
func (a *App) fail(w http.ResponseWriter, r *http.Request, kind string, err error) {
	code := http.StatusInternalServerError
	env := domain.ErrorEnvelope(kind, err.Error(), nil)
	var partial *domain.PartialFailureError
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		code = http.StatusBadRequest
		env.Error = "Bad request"
		env.Message = strings.TrimPrefix(err.Error(), domain.ErrBadRequest.Error()+": ")
	case errors.Is(err, domain.ErrUpscaleTimeout):
		code = http.StatusGatewayTimeout
		env.Error = "Upscale timeout"
	case errors.As(err, &partial):
		env.Details = partial.Details
	}

	evt := a.Logger.Error()
	if code < http.StatusInternalServerError {
		evt = a.Logger.Warn()
	}
	evt.Err(err).
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Str("path", r.URL.Path).
		Int("status", code).
		Msg("handlers: request failed")
	a.json(w, code, env)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
