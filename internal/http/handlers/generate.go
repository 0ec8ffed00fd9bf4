package handlers

import (
	"net/http"

	"flyerproxy/internal/domain"
	"flyerproxy/internal/orchestrator"
)

type batchGenerateRequest struct {
	APIKey      string                     `json:"apiKey"`
	Requests    []domain.GenerationRequest `json:"requests"`
	ImageSize   string                     `json:"imageSize"`
	AspectRatio string                     `json:"aspectRatio"`
}

// BatchGenerate produces one flyer per request entry.
func (a *App) BatchGenerate(w http.ResponseWriter, r *http.Request) {
	var req batchGenerateRequest
	if !a.decode(w, r, &req) {
		return
	}
	env, err := a.Generator.Submit(r.Context(), orchestrator.BatchInput{
		APIKey:      firstNonEmpty(req.APIKey, a.DefaultGeminiKey),
		Requests:    req.Requests,
		ImageSize:   string(domain.NormalizeImageSize(req.ImageSize)),
		AspectRatio: domain.NormalizeAspectRatio(req.AspectRatio),
	})
	if err != nil {
		a.fail(w, r, "Generation failed", err)
		return
	}
	a.json(w, http.StatusOK, env)
}
