package handlers

import (
	"net/http"

	"flyerproxy/internal/orchestrator"
)

type upscaleRequest struct {
	ProviderAPIKey string `json:"providerApiKey"`
	ImageData      string `json:"imageData"`
	Scale          *int   `json:"scale"`
	FaceEnhance    bool   `json:"faceEnhance"`
}

func (a *App) Upscale(w http.ResponseWriter, r *http.Request) {
	var req upscaleRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.Upscaler.Run(r.Context(), orchestrator.UpscaleInput{
		Token:       firstNonEmpty(req.ProviderAPIKey, a.DefaultReplicateToken),
		ImageData:   req.ImageData,
		Scale:       req.Scale,
		FaceEnhance: req.FaceEnhance,
	})
	if err != nil {
		a.fail(w, r, "Upscale failed", err)
		return
	}
	a.json(w, http.StatusOK, res)
}
