package handlers

import (
	"net/http"

	"autovideo/internal/domain"
)

// Health reports liveness together with how many jobs sit in each phase.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	phases := make(map[domain.Phase]int)
	for _, job := range a.Pipeline.Jobs() {
		phases[job.Phase]++
	}
	a.json(w, http.StatusOK, map[string]any{"status": "ok", "jobs": phases})
}

func (a *App) ListVoices(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"voices": a.Voices.Voices(r.Context())})
}
