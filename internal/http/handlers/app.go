package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"autovideo/internal/domain"
	"autovideo/internal/infra"
	"autovideo/internal/storage"
	"autovideo/internal/voices"
)

// Pipeline is the job API the handlers drive. *pipeline.Orchestrator
// satisfies it.
type Pipeline interface {
	Generate(ctx context.Context, req domain.GenerateRequest) (domain.Job, error)
	ApproveScript(id string) error
	ApproveVoice(id string) error
	EditScript(id, instruction string) error
	RegenerateVoice(id string) error
	Job(id string) (domain.Job, error)
	Jobs() []domain.Job
	Script(id string) (domain.Script, error)
	Voice(id string) (domain.VoiceTrack, error)
}

// VoiceCatalog lists narration voices.
type VoiceCatalog interface {
	Voices(ctx context.Context) []voices.Voice
}

type App struct {
	Pipeline Pipeline
	Voices   VoiceCatalog
	// Output holds the exported deliverables, one directory per job.
	Output *storage.FileStore
	Logger *infra.Logger
}

func NewApp(pipeline Pipeline, catalog VoiceCatalog, output *storage.FileStore, logger *infra.Logger) *App {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &App{Pipeline: pipeline, Voices: catalog, Output: output, Logger: logger}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorBody{Error: errorDetail{Code: errCode, Message: message}})
}

// fail maps a pipeline error onto the HTTP status contract.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrPrecondition):
		a.error(w, http.StatusBadRequest, "precondition_failed", err.Error())
	case errors.Is(err, domain.ErrJobBusy):
		a.error(w, http.StatusConflict, "job_busy", err.Error())
	case errors.Is(err, domain.ErrInvalidRequest):
		a.error(w, http.StatusUnprocessableEntity, "invalid_request", err.Error())
	case errors.Is(err, domain.ErrNotConfigured):
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("http: provider not configured")
		a.error(w, http.StatusInternalServerError, "not_configured", err.Error())
	default:
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("http: request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
