// Package voices serves the narration voices offered to clients.
package voices

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"autovideo/internal/infra"
	"autovideo/internal/providers/elevenlabs"
)

// DefaultTTL is how long a remote listing is served from cache.
const DefaultTTL = 5 * time.Minute

// Voice is a narration voice as exposed by the API.
type Voice struct {
	ID          string `json:"id" toml:"id"`
	Name        string `json:"name" toml:"name"`
	Category    string `json:"category,omitempty" toml:"category"`
	Gender      string `json:"gender" toml:"gender"`
	Accent      string `json:"accent,omitempty" toml:"accent"`
	Age         string `json:"age,omitempty" toml:"age"`
	Description string `json:"description" toml:"description"`
	UseCase     string `json:"use_case,omitempty" toml:"use_case"`
	PreviewURL  string `json:"preview_url,omitempty" toml:"preview_url"`
}

// Defaults is the built-in catalog used when no remote listing is available.
var Defaults = []Voice{
	{ID: "21m00Tcm4TlvDq8ikWAM", Name: "Rachel", Description: "Warm, calm, narration & docs", Gender: "female"},
	{ID: "29vD33N1CtxCmqQRPOHJ", Name: "Drew", Description: "Well-rounded, storytelling", Gender: "male"},
	{ID: "EXAVITQu4vr4xnSDxMaL", Name: "Sarah", Description: "Soft, natural, journalism", Gender: "female"},
	{ID: "TX3LPaxmHKxFdv7VOQHJ", Name: "Liam", Description: "Crisp, clear, documentary", Gender: "male"},
}

type fileCatalog struct {
	Voices []Voice `toml:"voice"`
}

// LoadFile reads a static catalog from a TOML file of [[voice]] tables. A
// missing path or file yields Defaults.
func LoadFile(path string) ([]Voice, error) {
	if path == "" {
		return Defaults, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Defaults, nil
		}
		return nil, err
	}
	var cfg fileCatalog
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("decode voices file: %w", err)
	}
	if len(cfg.Voices) == 0 {
		return Defaults, nil
	}
	return cfg.Voices, nil
}

// Lister fetches the voices available to the account.
type Lister interface {
	ListVoices(ctx context.Context) ([]elevenlabs.Voice, error)
}

// Catalog serves the remote listing with a short cache and falls back to a
// static list when the provider cannot be reached.
type Catalog struct {
	lister   Lister
	fallback []Voice
	ttl      time.Duration
	now      func() time.Time
	logger   *infra.Logger

	mu       sync.Mutex
	cached   []Voice
	cachedAt time.Time
}

// Option customizes a Catalog.
type Option func(*Catalog)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Catalog) { c.ttl = ttl }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) { c.now = now }
}

// WithLogger sets the logger used for fetch failures.
func WithLogger(logger *infra.Logger) Option {
	return func(c *Catalog) { c.logger = logger }
}

// NewCatalog builds a catalog. A nil lister serves fallback only.
func NewCatalog(lister Lister, fallback []Voice, opts ...Option) *Catalog {
	if len(fallback) == 0 {
		fallback = Defaults
	}
	c := &Catalog{lister: lister, fallback: fallback, ttl: DefaultTTL, now: time.Now, logger: infra.NopLogger()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Voices returns the cached listing, refreshing it when stale.
func (c *Catalog) Voices(ctx context.Context) []Voice {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.cached) > 0 && c.now().Sub(c.cachedAt) < c.ttl {
		return c.cached
	}
	if c.lister == nil {
		return c.fallback
	}
	remote, err := c.lister.ListVoices(ctx)
	if err != nil || len(remote) == 0 {
		c.logger.Warn().Err(err).Msg("voices: remote listing unavailable, using fallback")
		return c.fallback
	}
	c.cached = fromRemote(remote)
	c.cachedAt = c.now()
	return c.cached
}

func fromRemote(remote []elevenlabs.Voice) []Voice {
	out := make([]Voice, 0, len(remote))
	for _, v := range remote {
		category := v.Category
		if category == "" {
			category = "premade"
		}
		useCase := v.Labels["use case"]
		if useCase == "" {
			useCase = v.Labels["use_case"]
		}
		out = append(out, Voice{
			ID:          v.VoiceID,
			Name:        v.Name,
			Category:    category,
			Gender:      v.Labels["gender"],
			Accent:      v.Labels["accent"],
			Age:         v.Labels["age"],
			Description: v.Labels["description"],
			UseCase:     useCase,
			PreviewURL:  v.PreviewURL,
		})
	}
	return out
}
