package handlers

import (
	"net/http"

	"flyerproxy/internal/domain"
	"flyerproxy/internal/orchestrator"
)

type editImageRequest struct {
	APIKey      string `json:"apiKey"`
	ImageData   string `json:"imageData"`
	EditPrompt  string `json:"editPrompt"`
	ImageSize   string `json:"imageSize"`
	AspectRatio string `json:"aspectRatio"`
}

func (a *App) EditImage(w http.ResponseWriter, r *http.Request) {
	var req editImageRequest
	if !a.decode(w, r, &req) {
		return
	}
	env, err := a.Editor.Apply(r.Context(), orchestrator.EditInput{
		APIKey:      firstNonEmpty(req.APIKey, a.DefaultGeminiKey),
		ImageData:   req.ImageData,
		Instruction: req.EditPrompt,
		ImageSize:   string(domain.NormalizeImageSize(req.ImageSize)),
		AspectRatio: domain.NormalizeAspectRatio(req.AspectRatio),
	})
	if err != nil {
		a.fail(w, r, "Edit failed", err)
		return
	}
	a.json(w, http.StatusOK, env)
}
