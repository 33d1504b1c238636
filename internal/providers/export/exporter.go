// Package export organizes the deliverables of a finished job.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"autovideo/internal/domain"
	"autovideo/internal/infra"
	"autovideo/internal/storage"
)

// Deliverable file names inside {OUTPUT_DIR}/{job}/.
const (
	FinalVideoFile = "final_video.mp4"
	ScriptFile     = "script.txt"
	VoiceoverFile  = "voiceover.wav"
	AssetListFile  = "assets.json"
	TimelineFile   = "timeline.json"
)

// Publisher copies a deliverable to remote storage and returns its URL.
type Publisher interface {
	Publish(ctx context.Context, jobID, localPath string) (string, error)
}

// Options controls the exporter.
type Options struct {
	Files     *storage.FileStore
	Publisher Publisher
	Clock     func() time.Time
	Logger    *infra.Logger
}

// Exporter writes the deliverables of a job into its output directory.
type Exporter struct {
	files     *storage.FileStore
	publisher Publisher
	clock     func() time.Time
	logger    *infra.Logger
}

// NewExporter constructs an exporter. Publisher is optional.
func NewExporter(opts Options) (*Exporter, error) {
	if opts.Files == nil {
		return nil, errors.New("export: file store is required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Exporter{files: opts.Files, publisher: opts.Publisher, clock: clock, logger: logger}, nil
}

type assetEntry struct {
	Scene    string `json:"scene"`
	Type     string `json:"type"`
	Source   string `json:"source"`
	URL      string `json:"url"`
	License  string `json:"license"`
	PexelsID *int64 `json:"pexels_id"`
}

type timelineScene struct {
	SceneID          string  `json:"scene_id"`
	Name             string  `json:"name"`
	StartTime        float64 `json:"start_time"`
	EndTime          float64 `json:"end_time"`
	Duration         float64 `json:"duration"`
	MontageType      string  `json:"montage_type"`
	Pace             string  `json:"pace"`
	Transition       string  `json:"transition"`
	HasVideo         bool    `json:"has_video"`
	NarrationExcerpt string  `json:"narration_excerpt"`
}

type timeline struct {
	Title                string             `json:"title"`
	TotalDurationSeconds float64            `json:"total_duration_seconds"`
	VideoFormat          domain.VideoFormat `json:"video_format"`
	Resolution           [2]int             `json:"resolution"`
	FPS                  int                `json:"fps"`
	Scenes               []timelineScene    `json:"scenes"`
}

// Export copies the video and narration and writes the script, asset list
// and timeline. When a publisher is configured every deliverable is also
// published; publish failures are logged and leave the local files intact.
func (e *Exporter) Export(ctx context.Context, in domain.ExportInput) (domain.ExportResult, error) {
	prefix := in.JobID + "/"
	videoPath, err := e.files.CopyFile(ctx, prefix+FinalVideoFile, in.Edit.VideoPath)
	if err != nil {
		return domain.ExportResult{}, ioError(err)
	}
	voicePath, err := e.files.CopyFile(ctx, prefix+VoiceoverFile, in.Voice.AudioPath)
	if err != nil {
		return domain.ExportResult{}, ioError(err)
	}
	scriptPath, err := e.files.Write(ctx, prefix+ScriptFile, []byte(renderScript(in.Title, in.Script, e.clock())))
	if err != nil {
		return domain.ExportResult{}, ioError(err)
	}
	assets, err := json.MarshalIndent(assetList(in.Footage), "", "  ")
	if err != nil {
		return domain.ExportResult{}, fmt.Errorf("encode asset list: %w", err)
	}
	assetPath, err := e.files.Write(ctx, prefix+AssetListFile, assets)
	if err != nil {
		return domain.ExportResult{}, ioError(err)
	}
	tl, err := json.MarshalIndent(buildTimeline(in.Title, in.Blueprint), "", "  ")
	if err != nil {
		return domain.ExportResult{}, fmt.Errorf("encode timeline: %w", err)
	}
	timelinePath, err := e.files.Write(ctx, prefix+TimelineFile, tl)
	if err != nil {
		return domain.ExportResult{}, ioError(err)
	}

	result := domain.ExportResult{
		FinalVideo:      videoPath,
		ScriptFile:      scriptPath,
		VoiceoverFile:   voicePath,
		AssetListFile:   assetPath,
		TimelineFile:    timelinePath,
		DurationSeconds: in.Edit.DurationSeconds,
	}
	result.Published = e.publish(ctx, in.JobID, videoPath, scriptPath, voicePath, assetPath, timelinePath)
	return result, nil
}

func (e *Exporter) publish(ctx context.Context, jobID string, paths ...string) map[string]string {
	if e.publisher == nil {
		return nil
	}
	out := make(map[string]string, len(paths))
	for _, p := range paths {
		url, err := e.publisher.Publish(ctx, jobID, p)
		if err != nil {
			e.logger.Warn().Err(err).Str("job_id", jobID).Str("file", filepath.Base(p)).Msg("export: publish failed")
			continue
		}
		out[filepath.Base(p)] = url
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func renderScript(title string, script domain.Script, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\nGenerated: %s\n\n", title, now.UTC().Format(time.RFC3339))
	for _, scene := range script.Scenes {
		fmt.Fprintf(&sb, "## %s\n%s\n\n", scene.Name, scene.Narration)
	}
	return sb.String()
}

func assetList(footage domain.FootageResult) []assetEntry {
	entries := []assetEntry{}
	for _, scene := range footage.Scenes {
		if scene.PrimaryAsset != nil {
			entries = append(entries, newAssetEntry(scene.SceneName, *scene.PrimaryAsset))
		}
		for _, sec := range scene.SecondaryAssets {
			entries = append(entries, newAssetEntry(scene.SceneName+" (secondary)", sec))
		}
	}
	return entries
}

func newAssetEntry(scene string, a domain.AssetItem) assetEntry {
	entry := assetEntry{Scene: scene, Type: a.AssetType, Source: a.Source, URL: a.URL, License: a.License}
	if a.PexelsID != 0 {
		id := a.PexelsID
		entry.PexelsID = &id
	}
	return entry
}

func buildTimeline(title string, bp domain.Blueprint) timeline {
	out := timeline{
		Title:                title,
		TotalDurationSeconds: bp.TotalDuration,
		VideoFormat:          bp.VideoFormat,
		Resolution:           [2]int{bp.Width, bp.Height},
		FPS:                  bp.FPS,
		Scenes:               make([]timelineScene, 0, len(bp.Scenes)),
	}
	for _, s := range bp.Scenes {
		out.Scenes = append(out.Scenes, timelineScene{
			SceneID:          s.SceneID,
			Name:             s.SceneName,
			StartTime:        s.StartTime,
			EndTime:          s.EndTime,
			Duration:         s.Duration,
			MontageType:      s.MontageType,
			Pace:             s.Pace,
			Transition:       s.Transition,
			HasVideo:         s.PrimaryAsset != nil && s.PrimaryAsset.AssetType == domain.AssetTypeVideo,
			NarrationExcerpt: s.NarrationExcerpt,
		})
	}
	return out
}

func ioError(err error) error {
	return domain.NewStageError(domain.CategoryIO, err)
}
