package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"autovideo/internal/audio"
	"autovideo/internal/domain"
	"autovideo/internal/infra"
	"autovideo/internal/storage"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io/v1"
	defaultModel   = "eleven_turbo_v2_5"
	defaultTimeout = 2 * time.Minute

	outputFormat = "pcm_44100"

	// SceneGapSeconds is the silence inserted between narrated scenes.
	SceneGapSeconds = 0.45
	// FailedSceneSeconds is the silence substituted for a scene the provider could not voice.
	FailedSceneSeconds = 2.0

	voiceoverFile = "voiceover.wav"
)

// Options controls how the ElevenLabs client is configured.
type Options struct {
	APIKey          string
	BaseURL         string
	Model           string
	Stability       float64
	SimilarityBoost float64
	HTTPClient      *http.Client
	Files           *storage.FileStore
	Logger          *infra.Logger
}

// Client synthesizes narration and lists voices.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	settings   voiceSettings
	httpClient *http.Client
	files      *storage.FileStore
	logger     *infra.Logger
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Voice is a voice available to the account.
type Voice struct {
	VoiceID     string            `json:"voice_id"`
	Name        string            `json:"name"`
	Category    string            `json:"category"`
	Description string            `json:"description,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	PreviewURL  string            `json:"preview_url,omitempty"`
}

type voicesResponse struct {
	Voices []Voice `json:"voices"`
}

// NewClient constructs a client. Files is where voiceovers are written.
func NewClient(opts Options) (*Client, error) {
	if opts.Files == nil {
		return nil, errors.New("elevenlabs: file store is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	settings := voiceSettings{Stability: opts.Stability, SimilarityBoost: opts.SimilarityBoost}
	if settings.Stability <= 0 {
		settings.Stability = 0.5
	}
	if settings.SimilarityBoost <= 0 {
		settings.SimilarityBoost = 0.75
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		settings:   settings,
		httpClient: client,
		files:      opts.Files,
		logger:     logger,
	}, nil
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// GenerateVoice voices each scene in order, joins them with short gaps and
// writes {jobID}/voiceover.wav. A scene the provider rejects is replaced by
// silence so the timeline stays intact; the call fails only when no scene
// could be voiced.
func (c *Client) GenerateVoice(ctx context.Context, jobID string, script domain.Script, voiceID string) (domain.VoiceTrack, error) {
	if c.apiKey == "" {
		return domain.VoiceTrack{}, domain.StageErrorf(domain.CategoryAuth, "elevenlabs api key is not configured")
	}
	if len(script.Scenes) == 0 {
		return domain.VoiceTrack{}, domain.StageErrorf(domain.CategoryAudio, "script has no scenes to narrate")
	}

	var (
		pcm     bytes.Buffer
		timings = make([]domain.SceneTiming, 0, len(script.Scenes))
		elapsed float64
		voiced  int
		lastErr error
	)
	gap := audio.Silence(SceneGapSeconds)
	for i, scene := range script.Scenes {
		samples, err := c.synthesize(ctx, scene.Narration, voiceID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return domain.VoiceTrack{}, ctxErr
			}
			c.logger.Warn().Err(err).Str("job_id", jobID).Str("scene_id", scene.SceneID).
				Msg("elevenlabs: scene synthesis failed, substituting silence")
			samples = audio.Silence(FailedSceneSeconds)
			lastErr = err
		} else {
			voiced++
		}

		duration := audio.PCMDuration(samples)
		timings = append(timings, domain.SceneTiming{
			SceneID:   scene.SceneID,
			StartTime: round2(elapsed),
			EndTime:   round2(elapsed + duration),
			Duration:  round2(duration),
		})
		elapsed += duration
		pcm.Write(samples)
		if i < len(script.Scenes)-1 {
			pcm.Write(gap)
			elapsed += audio.PCMDuration(gap)
		}
	}
	if voiced == 0 {
		return domain.VoiceTrack{}, fmt.Errorf("no scene could be voiced: %w", lastErr)
	}

	path, err := c.files.Write(ctx, jobID+"/"+voiceoverFile, audio.EncodeWAV(pcm.Bytes()))
	if err != nil {
		return domain.VoiceTrack{}, domain.NewStageError(domain.CategoryIO, err)
	}
	total := audio.PCMDuration(pcm.Bytes())
	c.logger.Info().Str("job_id", jobID).Float64("seconds", total).Int("scenes", len(timings)).
		Msg("elevenlabs: voiceover written")
	return domain.VoiceTrack{
		AudioPath:            path,
		TotalDurationSeconds: round2(total),
		Scenes:               timings,
	}, nil
}

func (c *Client) synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.StageErrorf(domain.CategoryAudio, "empty narration")
	}
	body, err := json.Marshal(ttsRequest{Text: text, ModelID: c.model, VoiceSettings: c.settings})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s", c.baseURL, url.PathEscape(voiceID), outputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "audio/pcm")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoke elevenlabs: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, statusError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(data)%2 == 1 {
		data = data[:len(data)-1]
	}
	if len(data) == 0 {
		return nil, domain.StageErrorf(domain.CategoryAudio, "elevenlabs returned empty audio")
	}
	return data, nil
}

// ListVoices returns the voices available to the account.
func (c *Client) ListVoices(ctx context.Context) ([]Voice, error) {
	if c.apiKey == "" {
		return nil, domain.StageErrorf(domain.CategoryAuth, "elevenlabs api key is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoke elevenlabs: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, statusError(resp)
	}
	var decoded voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, domain.NewStageError(domain.CategoryParse, fmt.Errorf("decode voices: %w", err))
	}
	return decoded.Voices, nil
}

func statusError(resp *http.Response) error {
	category := domain.CategoryAPI
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		category = domain.CategoryAuth
	case http.StatusTooManyRequests:
		category = domain.CategoryRateLimit
	case http.StatusNotFound:
		category = domain.CategoryNotFound
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<10))
	if msg := strings.TrimSpace(string(data)); msg != "" {
		return domain.StageErrorf(category, "elevenlabs status %d: %s", resp.StatusCode, msg)
	}
	return domain.StageErrorf(category, "elevenlabs status %d", resp.StatusCode)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
