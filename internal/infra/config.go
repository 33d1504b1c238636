package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv   string
	LogLevel string
	Port     string

	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string
	PexelsAPIKey     string
	PexelsBaseURL    string
	ElevenLabsAPIKey string
	ElevenLabsModel  string
	ElevenLabsURL    string

	OutputDir    string
	TempDir      string
	FFmpegPath   string
	FFprobePath  string
	VoicesFile   string
	WorkerPool   int
	StageTimeout time.Duration

	DatabaseURL string
	GeoIPDBPath string
	S3Bucket    string
	S3Region    string
	S3Prefix    string

	CORSAllowedOrigins []string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
		Port:               getEnv("PORT", "8000"),
		AnthropicAPIKey:    strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		AnthropicModel:     getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-6"),
		AnthropicBaseURL:   getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com/v1"),
		PexelsAPIKey:       strings.TrimSpace(os.Getenv("PEXELS_API_KEY")),
		PexelsBaseURL:      getEnv("PEXELS_BASE_URL", "https://api.pexels.com"),
		ElevenLabsAPIKey:   strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY")),
		ElevenLabsModel:    getEnv("ELEVENLABS_MODEL", "eleven_turbo_v2_5"),
		ElevenLabsURL:      getEnv("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io/v1"),
		OutputDir:          getEnv("OUTPUT_DIR", "outputs"),
		TempDir:            getEnv("TEMP_DIR", "temp"),
		FFmpegPath:         getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:        getEnv("FFPROBE_PATH", "ffprobe"),
		VoicesFile:         os.Getenv("VOICES_FILE"),
		WorkerPool:         getEnvInt("WORKER_POOL_SIZE", 2),
		StageTimeout:       time.Second * time.Duration(getEnvInt("STAGE_TIMEOUT_SECONDS", 600)),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		S3Bucket:           os.Getenv("S3_BUCKET"),
		S3Region:           getEnv("S3_REGION", "us-east-1"),
		S3Prefix:           os.Getenv("S3_PREFIX"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://127.0.0.1:3000"}),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.WorkerPool < 1 {
		return nil, fmt.Errorf("WORKER_POOL_SIZE must be at least 1, got %d", cfg.WorkerPool)
	}
	if cfg.StageTimeout <= 0 {
		return nil, fmt.Errorf("STAGE_TIMEOUT_SECONDS must be positive")
	}

	return cfg, nil
}

// MissingProviderKeys names the provider keys that are still empty.
func (c *Config) MissingProviderKeys() []string {
	var missing []string
	if c.AnthropicAPIKey == "" {
		missing = append(missing, "ANTHROPIC_API_KEY")
	}
	if c.PexelsAPIKey == "" {
		missing = append(missing, "PEXELS_API_KEY")
	}
	if c.ElevenLabsAPIKey == "" {
		missing = append(missing, "ELEVENLABS_API_KEY")
	}
	return missing
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
