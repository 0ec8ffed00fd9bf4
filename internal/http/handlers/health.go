package handlers

import (
	"net/http"
)

// Health answers liveness probes on the ops listener.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
