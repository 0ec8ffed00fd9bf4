package middleware

import (
	"encoding/json"
	"net/http"

	"flyerproxy/internal/domain"
)

func writeError(w http.ResponseWriter, code int, kind, message string) {
	writeEnvelope(w, code, domain.ErrorEnvelope(kind, message, nil))
}

func writeEnvelope(w http.ResponseWriter, code int, env *domain.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(env)
}
