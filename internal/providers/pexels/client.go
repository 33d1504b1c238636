package pexels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"autovideo/internal/domain"
	"autovideo/internal/infra"
	"autovideo/internal/storage"
)

const (
	defaultBaseURL     = "https://api.pexels.com"
	defaultTimeout     = 30 * time.Second
	defaultConcurrency = 4

	searchPerPage    = 5
	secondaryPerPage = 2
	maxKeywords      = 3

	defaultSceneSeconds = 30.0

	// License is attached to every Pexels asset.
	License = "Pexels License"
	// Source names the provider on asset records.
	Source = "pexels"
)

var unsafeName = regexp.MustCompile(`[^\w\-]`)

// Options controls how the Pexels client is configured.
type Options struct {
	APIKey      string
	BaseURL     string
	HTTPClient  *http.Client
	Files       *storage.FileStore
	Concurrency int
	Logger      *infra.Logger
}

// Client searches Pexels and downloads footage for each scene.
type Client struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	files       *storage.FileStore
	concurrency int
	logger      *infra.Logger
}

type videoFile struct {
	Link     string `json:"link"`
	FileType string `json:"file_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type video struct {
	ID         int64       `json:"id"`
	Duration   float64     `json:"duration"`
	VideoFiles []videoFile `json:"video_files"`
}

type photo struct {
	ID     int64 `json:"id"`
	Width  int   `json:"width"`
	Height int   `json:"height"`
	Src    struct {
		Large2x  string `json:"large2x"`
		Original string `json:"original"`
	} `json:"src"`
}

type videoSearchResponse struct {
	Videos []video `json:"videos"`
}

type photoSearchResponse struct {
	Photos []photo `json:"photos"`
}

// NewClient constructs a client. Files is where footage is downloaded.
func NewClient(opts Options) (*Client, error) {
	if opts.Files == nil {
		return nil, errors.New("pexels: file store is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Client{
		apiKey:      strings.TrimSpace(opts.APIKey),
		baseURL:     baseURL,
		httpClient:  client,
		files:       opts.Files,
		concurrency: concurrency,
		logger:      logger,
	}, nil
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// SourceFootage finds one primary asset and at most one secondary clip per
// scene. Scenes without matches get a nil primary asset; search and download
// failures are logged and skipped.
func (c *Client) SourceFootage(ctx context.Context, jobID string, script domain.Script, voice domain.VoiceTrack, format domain.VideoFormat) (domain.FootageResult, error) {
	if c.apiKey == "" {
		return domain.FootageResult{}, domain.StageErrorf(domain.CategoryAuth, "pexels api key is not configured")
	}
	if _, err := c.files.Dir(jobID + "/footage"); err != nil {
		return domain.FootageResult{}, domain.NewStageError(domain.CategoryIO, err)
	}

	durations := make(map[string]float64, len(voice.Scenes))
	for _, timing := range voice.Scenes {
		durations[timing.SceneID] = timing.Duration
	}
	targetWidth, _ := format.Resolution()

	results := make([]domain.SceneAssets, len(script.Scenes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, scene := range script.Scenes {
		i, scene := i, scene
		g.Go(func() error {
			duration, ok := durations[scene.SceneID]
			if !ok {
				duration = defaultSceneSeconds
			}
			results[i] = c.sourceScene(gctx, jobID, scene, duration, format, targetWidth)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return domain.FootageResult{}, err
	}
	return domain.FootageResult{Scenes: results}, nil
}

func (c *Client) sourceScene(ctx context.Context, jobID string, scene domain.Scene, duration float64, format domain.VideoFormat, targetWidth int) domain.SceneAssets {
	keywords := scene.VisualKeywords
	if len(keywords) == 0 {
		keywords = []string{scene.Name}
	}
	out := domain.SceneAssets{
		SceneID:         scene.SceneID,
		SceneName:       scene.Name,
		Duration:        duration,
		SecondaryAssets: []domain.AssetItem{},
	}

	for i, keyword := range keywords {
		if i >= maxKeywords || out.PrimaryAsset != nil {
			break
		}
		if asset, ok := c.firstVideo(ctx, jobID, scene.SceneID, keyword, keyword, "0", searchPerPage, format, targetWidth); ok {
			out.PrimaryAsset = &asset
			break
		}
		if asset, ok := c.firstPhoto(ctx, jobID, scene.SceneID, keyword, format); ok {
			out.PrimaryAsset = &asset
		}
	}

	if len(keywords) > 1 {
		alt := keywords[1]
		if asset, ok := c.firstVideo(ctx, jobID, scene.SceneID, alt+" detail", alt, "1", secondaryPerPage, format, targetWidth); ok {
			out.SecondaryAssets = append(out.SecondaryAssets, asset)
		}
	}
	return out
}

func (c *Client) firstVideo(ctx context.Context, jobID, sceneID, query, keyword, suffix string, perPage int, format domain.VideoFormat, targetWidth int) (domain.AssetItem, bool) {
	videos, err := c.searchVideos(ctx, query, perPage, format)
	if err != nil {
		c.logger.Warn().Err(err).Str("job_id", jobID).Str("query", query).Msg("pexels: video search failed")
		return domain.AssetItem{}, false
	}
	for _, v := range videos {
		file, ok := bestVideoFile(v.VideoFiles, targetWidth)
		if !ok {
			continue
		}
		key := fmt.Sprintf("%s/footage/%s_%s_%s.mp4", jobID, sceneID, safeFilename(keyword), suffix)
		path, err := c.download(ctx, file.Link, key)
		if err != nil {
			c.logger.Warn().Err(err).Str("job_id", jobID).Str("url", file.Link).Msg("pexels: download failed")
			continue
		}
		return domain.AssetItem{
			AssetType:       domain.AssetTypeVideo,
			URL:             file.Link,
			LocalPath:       path,
			Duration:        v.Duration,
			Width:           orDefault(file.Width, 1920),
			Height:          orDefault(file.Height, 1080),
			Source:          Source,
			License:         License,
			PexelsID:        v.ID,
			KeywordsMatched: []string{keyword},
		}, true
	}
	return domain.AssetItem{}, false
}

func (c *Client) firstPhoto(ctx context.Context, jobID, sceneID, keyword string, format domain.VideoFormat) (domain.AssetItem, bool) {
	photos, err := c.searchPhotos(ctx, keyword, searchPerPage, format)
	if err != nil {
		c.logger.Warn().Err(err).Str("job_id", jobID).Str("query", keyword).Msg("pexels: photo search failed")
		return domain.AssetItem{}, false
	}
	for _, p := range photos {
		link := p.Src.Large2x
		if link == "" {
			link = p.Src.Original
		}
		if link == "" {
			continue
		}
		key := fmt.Sprintf("%s/footage/%s_%s_img.jpg", jobID, sceneID, safeFilename(keyword))
		path, err := c.download(ctx, link, key)
		if err != nil {
			c.logger.Warn().Err(err).Str("job_id", jobID).Str("url", link).Msg("pexels: download failed")
			continue
		}
		return domain.AssetItem{
			AssetType:       domain.AssetTypeImage,
			URL:             link,
			LocalPath:       path,
			Width:           orDefault(p.Width, 1920),
			Height:          orDefault(p.Height, 1080),
			Source:          Source,
			License:         License,
			PexelsID:        p.ID,
			KeywordsMatched: []string{keyword},
		}, true
	}
	return domain.AssetItem{}, false
}

func (c *Client) searchVideos(ctx context.Context, query string, perPage int, format domain.VideoFormat) ([]video, error) {
	var decoded videoSearchResponse
	if err := c.getJSON(ctx, "/videos/search", searchParams(query, perPage, format), &decoded); err != nil {
		return nil, err
	}
	return decoded.Videos, nil
}

func (c *Client) searchPhotos(ctx context.Context, query string, perPage int, format domain.VideoFormat) ([]photo, error) {
	var decoded photoSearchResponse
	if err := c.getJSON(ctx, "/v1/search", searchParams(query, perPage, format), &decoded); err != nil {
		return nil, err
	}
	return decoded.Photos, nil
}

func searchParams(query string, perPage int, format domain.VideoFormat) url.Values {
	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("orientation", orientation(format))
	return params
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke pexels: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("pexels status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode pexels response: %w", err)
	}
	return nil
}

// download fetches link into key unless a file is already there.
func (c *Client) download(ctx context.Context, link, key string) (string, error) {
	path, err := c.files.Path(key)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return path, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("download status %d", resp.StatusCode)
	}
	path, _, err = c.files.WriteFrom(ctx, key, resp.Body)
	return path, err
}

// bestVideoFile picks the mp4 rendition whose width is closest to target.
func bestVideoFile(files []videoFile, target int) (videoFile, bool) {
	var (
		best  videoFile
		found bool
		delta int
	)
	for _, f := range files {
		if f.FileType != "video/mp4" || f.Link == "" {
			continue
		}
		d := f.Width - target
		if d < 0 {
			d = -d
		}
		if !found || d < delta {
			best, delta, found = f, d, true
		}
	}
	return best, found
}

func orientation(format domain.VideoFormat) string {
	if format == domain.VideoFormatPortrait {
		return "portrait"
	}
	return "landscape"
}

func safeFilename(text string) string {
	name := unsafeName.ReplaceAllString(text, "_")
	if len(name) > 40 {
		name = name[:40]
	}
	return name
}

func orDefault(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}
