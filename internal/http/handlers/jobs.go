package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"autovideo/internal/domain"
	"autovideo/internal/middleware"
)

const maxRequestBody = 1 << 20

type generateRequest struct {
	Title              string `json:"title"`
	Prompt             string `json:"prompt"`
	VoiceID            string `json:"voice_id"`
	TargetDuration     int    `json:"target_duration"`
	VideoFormat        string `json:"video_format"`
	VideoType          string `json:"video_type"`
	Language           string `json:"language"`
	AddBackgroundMusic *bool  `json:"add_background_music"`
	AddCaptions        bool   `json:"add_captions"`
}

func (g generateRequest) toDomain() domain.GenerateRequest {
	music := true
	if g.AddBackgroundMusic != nil {
		music = *g.AddBackgroundMusic
	}
	return domain.GenerateRequest{
		Title:              g.Title,
		Prompt:             g.Prompt,
		VoiceID:            g.VoiceID,
		TargetDuration:     g.TargetDuration,
		VideoFormat:        domain.VideoFormat(strings.TrimSpace(g.VideoFormat)),
		VideoType:          domain.VideoType(strings.TrimSpace(g.VideoType)),
		Language:           g.Language,
		AddBackgroundMusic: music,
		AddCaptions:        g.AddCaptions,
	}
}

type editScriptRequest struct {
	Instruction string `json:"instruction"`
}

type scriptResponse struct {
	Text           string `json:"text"`
	TotalWordCount int    `json:"total_word_count"`
	Scenes         int    `json:"scenes"`
}

type jobView struct {
	domain.Job
	Actions []domain.Action `json:"actions"`
}

func newJobView(job domain.Job) jobView {
	return jobView{Job: job, Actions: domain.AvailableActions(job)}
}

// Generate creates a job and starts prompt analysis and script writing.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	if err := decodeJSON(w, r, &body); err != nil {
		a.error(w, http.StatusUnprocessableEntity, "invalid_request", err.Error())
		return
	}
	req := body.toDomain()
	req.Normalize(middleware.LocaleFromContext(r.Context()))
	job, err := a.Pipeline.Generate(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.Logger.Info().Str("job_id", job.ID).Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Msg("http: job accepted")
	a.json(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := a.Pipeline.Jobs()
	views := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, newJobView(job))
	}
	a.json(w, http.StatusOK, map[string]any{"jobs": views})
}

func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.Pipeline.Job(chi.URLParam(r, "job_id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newJobView(job))
}

func (a *App) GetScript(w http.ResponseWriter, r *http.Request) {
	script, err := a.Pipeline.Script(chi.URLParam(r, "job_id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, scriptResponse{
		Text:           script.FullText,
		TotalWordCount: script.TotalWordCount,
		Scenes:         len(script.Scenes),
	})
}

func (a *App) ApproveScript(w http.ResponseWriter, r *http.Request) {
	a.trigger(w, r, a.Pipeline.ApproveScript)
}

func (a *App) ApproveVoice(w http.ResponseWriter, r *http.Request) {
	a.trigger(w, r, a.Pipeline.ApproveVoice)
}

func (a *App) RegenerateVoice(w http.ResponseWriter, r *http.Request) {
	a.trigger(w, r, a.Pipeline.RegenerateVoice)
}

func (a *App) EditScript(w http.ResponseWriter, r *http.Request) {
	var body editScriptRequest
	if err := decodeJSON(w, r, &body); err != nil {
		a.error(w, http.StatusUnprocessableEntity, "invalid_request", err.Error())
		return
	}
	a.trigger(w, r, func(id string) error {
		return a.Pipeline.EditScript(id, body.Instruction)
	})
}

func (a *App) trigger(w http.ResponseWriter, r *http.Request, fn func(id string) error) {
	id := chi.URLParam(r, "job_id")
	if err := fn(id); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"ok": true})
}

// GetVoice streams the current voiceover for review.
func (a *App) GetVoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	voice, err := a.Pipeline.Voice(id)
	path := voice.AudioPath
	if err != nil {
		if !errors.Is(err, domain.ErrNotReady) {
			a.fail(w, r, err)
			return
		}
		path, err = a.Output.Path(id + "/voiceover.wav")
		if err != nil {
			a.error(w, http.StatusNotFound, "not_found", "voice not ready yet")
			return
		}
	}
	f, err := os.Open(path)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "voice not ready yet")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	http.ServeContent(w, r, "voiceover.wav", info.ModTime(), f)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}
