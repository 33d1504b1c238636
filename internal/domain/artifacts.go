package domain

// ArtifactKind keys the intermediate artifacts a job carries between phases.
type ArtifactKind string

const (
	ArtifactRequest  ArtifactKind = "req"
	ArtifactAnalysis ArtifactKind = "analysis"
	ArtifactScript   ArtifactKind = "script"
	ArtifactVoice    ArtifactKind = "voice"
)

// Artifact is a typed intermediate output stored alongside a job.
type Artifact interface {
	Kind() ArtifactKind
}

// TalkingPoint is one section of the planned narrative.
type TalkingPoint struct {
	Index          int      `json:"index"`
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	VisualKeywords []string `json:"visual_keywords"`
}

// PromptAnalysis is the structured reading of a user prompt.
type PromptAnalysis struct {
	Topic                    string         `json:"topic"`
	TalkingPoints            []TalkingPoint `json:"talking_points"`
	Tone                     string         `json:"tone"`
	Style                    string         `json:"style"`
	EstimatedDurationMinutes float64        `json:"estimated_duration_minutes"`
	VisualElements           []string       `json:"visual_elements"`
	Language                 string         `json:"language"`
}

// Kind implements Artifact.
func (PromptAnalysis) Kind() ArtifactKind { return ArtifactAnalysis }

// Scene is a narration unit of the script.
type Scene struct {
	SceneID                  string   `json:"scene_id"`
	Name                     string   `json:"name"`
	Narration                string   `json:"narration"`
	WordCount                int      `json:"word_count"`
	EstimatedDurationSeconds float64  `json:"estimated_duration_seconds"`
	VisualKeywords           []string `json:"visual_keywords"`
}

// Script is the full narration split into scenes.
type Script struct {
	FullText                 string  `json:"full_text"`
	Scenes                   []Scene `json:"scenes"`
	TotalWordCount           int     `json:"total_word_count"`
	EstimatedDurationMinutes float64 `json:"estimated_duration_minutes"`
}

// Kind implements Artifact.
func (Script) Kind() ArtifactKind { return ArtifactScript }

// SceneTiming places a scene on the narration timeline.
type SceneTiming struct {
	SceneID   string  `json:"scene_id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Duration  float64 `json:"duration"`
}

// VoiceTrack is the synthesized narration and its per-scene timing.
type VoiceTrack struct {
	AudioPath            string        `json:"audio_path"`
	TotalDurationSeconds float64       `json:"total_duration_seconds"`
	Scenes               []SceneTiming `json:"scenes"`
}

// Kind implements Artifact.
func (VoiceTrack) Kind() ArtifactKind { return ArtifactVoice }

// Rescale stretches the scene timings so they end at total seconds.
func (v VoiceTrack) Rescale(total float64) VoiceTrack {
	out := VoiceTrack{AudioPath: v.AudioPath, TotalDurationSeconds: total}
	out.Scenes = make([]SceneTiming, len(v.Scenes))
	factor := 1.0
	if v.TotalDurationSeconds > 0 && total > 0 {
		factor = total / v.TotalDurationSeconds
	}
	for i, s := range v.Scenes {
		out.Scenes[i] = SceneTiming{
			SceneID:   s.SceneID,
			StartTime: s.StartTime * factor,
			EndTime:   s.EndTime * factor,
			Duration:  s.Duration * factor,
		}
	}
	return out
}

// Asset types.
const (
	AssetTypeVideo = "video"
	AssetTypeImage = "image"
)

// AssetItem is a downloaded clip or image.
type AssetItem struct {
	AssetType       string   `json:"asset_type"`
	URL             string   `json:"url"`
	LocalPath       string   `json:"local_path"`
	Duration        float64  `json:"duration,omitempty"`
	Width           int      `json:"width"`
	Height          int      `json:"height"`
	Source          string   `json:"source"`
	License         string   `json:"license"`
	PexelsID        int64    `json:"pexels_id,omitempty"`
	KeywordsMatched []string `json:"keywords_matched"`
}

// SceneAssets groups the visuals sourced for one scene.
type SceneAssets struct {
	SceneID         string      `json:"scene_id"`
	SceneName       string      `json:"scene_name"`
	Duration        float64     `json:"duration"`
	PrimaryAsset    *AssetItem  `json:"primary_asset"`
	SecondaryAssets []AssetItem `json:"secondary_assets"`
}

// FootageResult is the output of footage sourcing.
type FootageResult struct {
	Scenes []SceneAssets `json:"scenes"`
}

// Montage defaults.
const (
	MontageBRoll     = "b-roll"
	PaceMedium       = "medium"
	TransitionCut    = "cut"
	DefaultFrameRate = 30
)

// BlueprintScene is one timeline entry of the edit plan.
type BlueprintScene struct {
	SceneID          string      `json:"scene_id"`
	SceneName        string      `json:"scene_name"`
	StartTime        float64     `json:"start_time"`
	EndTime          float64     `json:"end_time"`
	Duration         float64     `json:"duration"`
	NarrationExcerpt string      `json:"narration_excerpt"`
	PrimaryAsset     *AssetItem  `json:"primary_asset"`
	SecondaryAssets  []AssetItem `json:"secondary_assets"`
	MontageType      string      `json:"montage_type"`
	Pace             string      `json:"pace"`
	Transition       string      `json:"transition"`
}

// Blueprint is the edit plan handed to assembly.
type Blueprint struct {
	TotalDuration float64          `json:"total_duration"`
	VideoFormat   VideoFormat      `json:"video_format"`
	Width         int              `json:"width"`
	Height        int              `json:"height"`
	FPS           int              `json:"fps"`
	Scenes        []BlueprintScene `json:"scenes"`
}

// EditResult is the rendered video.
type EditResult struct {
	VideoPath       string  `json:"video_path"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// ExportResult lists the organized deliverables.
type ExportResult struct {
	FinalVideo      string            `json:"final_video"`
	ScriptFile      string            `json:"script_file"`
	VoiceoverFile   string            `json:"voiceover_file"`
	AssetListFile   string            `json:"asset_list_file"`
	TimelineFile    string            `json:"timeline_file"`
	DurationSeconds float64           `json:"duration_seconds"`
	Published       map[string]string `json:"published,omitempty"`
}

// JobResult converts the export manifest to the job result shape.
func (e ExportResult) JobResult() *JobResult {
	return &JobResult{
		FinalVideo:      e.FinalVideo,
		ScriptFile:      e.ScriptFile,
		VoiceoverFile:   e.VoiceoverFile,
		AssetListFile:   e.AssetListFile,
		TimelineFile:    e.TimelineFile,
		DurationSeconds: e.DurationSeconds,
		Published:       e.Published,
	}
}
