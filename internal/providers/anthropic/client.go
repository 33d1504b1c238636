package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"autovideo/internal/domain"
	"autovideo/internal/infra"
)

const (
	defaultBaseURL    = "https://api.anthropic.com/v1"
	defaultModel      = "claude-sonnet-4-6"
	defaultAPIVersion = "2023-06-01"
	defaultTimeout    = 5 * time.Minute
	defaultMaxTokens  = 2048
)

// Options controls how the Anthropic client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a thin Messages API client shared by the text stages.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// Request is a single-turn completion request.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messagesResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient constructs a client. A nil HTTP client is replaced with one that
// has a generous timeout for long script generations.
func NewClient(opts Options) (*Client, error) {
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
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     logger,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Complete sends req and returns the concatenated text blocks of the reply.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", domain.StageErrorf(domain.CategoryAuth, "anthropic api key is not configured")
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	payload := messagesRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  []message{{Role: "user", Content: req.Prompt}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", defaultAPIVersion)

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("invoke anthropic: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", statusError(resp)
	}

	var decoded messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", domain.NewStageError(domain.CategoryParse, fmt.Errorf("decode anthropic response: %w", err))
	}
	var sb strings.Builder
	for _, block := range decoded.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	c.logger.Debug().
		Str("model", c.model).
		Int("max_tokens", maxTokens).
		Str("stop_reason", decoded.StopReason).
		Dur("elapsed", time.Since(started)).
		Msg("anthropic: completion received")
	if text == "" {
		return "", domain.StageErrorf(domain.CategoryAPI, "anthropic returned no text content")
	}
	return text, nil
}

func statusError(resp *http.Response) error {
	category := categoryForStatus(resp.StatusCode)
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var apiErr errorResponse
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
		return domain.StageErrorf(category, "anthropic status %d: %s", resp.StatusCode, apiErr.Error.Message)
	}
	if msg := strings.TrimSpace(string(data)); msg != "" {
		return domain.StageErrorf(category, "anthropic status %d: %s", resp.StatusCode, msg)
	}
	return domain.StageErrorf(category, "anthropic status %d", resp.StatusCode)
}

func categoryForStatus(code int) string {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.CategoryAuth
	case http.StatusTooManyRequests:
		return domain.CategoryRateLimit
	case http.StatusNotFound:
		return domain.CategoryNotFound
	default:
		return domain.CategoryAPI
	}
}
