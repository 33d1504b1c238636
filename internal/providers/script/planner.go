package script

import (
	"context"
	"fmt"
	"strings"

	"autovideo/internal/domain"
	"autovideo/internal/infra"
	"autovideo/internal/providers/anthropic"
)

const (
	blueprintMaxTokens = 2048
	excerptLength      = 150
	summaryLength      = 80
)

var (
	montageTypes = []string{domain.MontageBRoll, "zoom-image", "sequence", "map", "text-overlay"}
	paces        = []string{"slow", domain.PaceMedium, "fast"}
	transitions  = []string{domain.TransitionCut, "dissolve", "fade"}
)

// Planner builds the edit blueprint. Timing comes from the voice track; the
// model only picks montage, pace and transition per scene, and any model
// failure falls back to defaults.
type Planner struct {
	model  Completer
	logger *infra.Logger
}

// NewPlanner wraps model. A nil logger discards output.
func NewPlanner(model Completer, logger *infra.Logger) *Planner {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Planner{model: model, logger: logger}
}

type sceneDirection struct {
	SceneID     string `json:"scene_id"`
	MontageType string `json:"montage_type"`
	Pace        string `json:"pace"`
	Transition  string `json:"transition"`
}

type directionPayload struct {
	Scenes []sceneDirection `json:"scenes"`
}

// BuildBlueprint lays the scenes out on the narration timeline.
func (p *Planner) BuildBlueprint(ctx context.Context, in domain.BlueprintInput) (domain.Blueprint, error) {
	width, height := in.VideoFormat.Resolution()
	timings := make(map[string]domain.SceneTiming, len(in.Voice.Scenes))
	for _, t := range in.Voice.Scenes {
		timings[t.SceneID] = t
	}
	footage := make(map[string]domain.SceneAssets, len(in.Footage.Scenes))
	for _, s := range in.Footage.Scenes {
		footage[s.SceneID] = s
	}

	directions := p.directions(ctx, in, timings, footage)

	scenes := make([]domain.BlueprintScene, 0, len(in.Script.Scenes))
	for _, scene := range in.Script.Scenes {
		timing, ok := timings[scene.SceneID]
		if !ok {
			timing = domain.SceneTiming{StartTime: 0, EndTime: defaultSceneSeconds, Duration: defaultSceneSeconds}
		}
		assets := footage[scene.SceneID]
		secondaries := assets.SecondaryAssets
		if secondaries == nil {
			secondaries = []domain.AssetItem{}
		}
		d := directions[scene.SceneID]
		scenes = append(scenes, domain.BlueprintScene{
			SceneID:          scene.SceneID,
			SceneName:        scene.Name,
			StartTime:        timing.StartTime,
			EndTime:          timing.EndTime,
			Duration:         timing.Duration,
			NarrationExcerpt: truncate(scene.Narration, excerptLength),
			PrimaryAsset:     assets.PrimaryAsset,
			SecondaryAssets:  secondaries,
			MontageType:      oneOf(d.MontageType, montageTypes, domain.MontageBRoll),
			Pace:             oneOf(d.Pace, paces, domain.PaceMedium),
			Transition:       oneOf(d.Transition, transitions, domain.TransitionCut),
		})
	}

	return domain.Blueprint{
		TotalDuration: in.Voice.TotalDurationSeconds,
		VideoFormat:   in.VideoFormat,
		Width:         width,
		Height:        height,
		FPS:           domain.DefaultFrameRate,
		Scenes:        scenes,
	}, nil
}

func (p *Planner) directions(ctx context.Context, in domain.BlueprintInput, timings map[string]domain.SceneTiming, footage map[string]domain.SceneAssets) map[string]sceneDirection {
	out := make(map[string]sceneDirection)
	if p.model == nil {
		return out
	}
	raw, err := p.model.Complete(ctx, anthropic.Request{
		System:    blueprintSystemPrompt,
		Prompt:    buildBlueprintPrompt(in, timings, footage),
		MaxTokens: blueprintMaxTokens,
	})
	if err != nil {
		p.logger.Warn().Err(err).Msg("planner: model call failed, using default directions")
		return out
	}
	payload, err := parseModelPayload[directionPayload](raw)
	if err != nil {
		p.logger.Warn().Err(err).Msg("planner: unparseable directions, using defaults")
		return out
	}
	for _, d := range payload.Scenes {
		out[d.SceneID] = d
	}
	return out
}

func buildBlueprintPrompt(in domain.BlueprintInput, timings map[string]domain.SceneTiming, footage map[string]domain.SceneAssets) string {
	sb := &strings.Builder{}
	sb.WriteString("Create an edit blueprint for this video.\n\n")
	fmt.Fprintf(sb, "Title: %s\nTotal duration: %.1f seconds\nVideo format: %s\nTone: %s\nStyle: %s\n\n",
		in.Title, in.Voice.TotalDurationSeconds, in.VideoFormat, in.Tone, in.Style)
	sb.WriteString("Scene list:\n")
	for _, scene := range in.Script.Scenes {
		var duration float64 = defaultSceneSeconds
		if t, ok := timings[scene.SceneID]; ok {
			duration = t.Duration
		}
		visual := "image-only"
		if assets, ok := footage[scene.SceneID]; ok && assets.PrimaryAsset != nil {
			visual = "video"
		}
		fmt.Fprintf(sb, "- %s (%s, %.1fs, %s): %s...\n", scene.SceneID, scene.Name, duration, visual, truncate(scene.Narration, summaryLength))
	}
	sb.WriteString("\nFor each scene decide:\n")
	fmt.Fprintf(sb, "- montage_type: one of [%s]\n", strings.Join(montageTypes, ", "))
	fmt.Fprintf(sb, "- pace: one of [%s]\n", strings.Join(paces, ", "))
	fmt.Fprintf(sb, "- transition: one of [%s]\n\n", strings.Join(transitions, ", "))
	sb.WriteString("Choose pace based on:\n")
	sb.WriteString("- Hook scenes: fast\n- Emotional/dramatic: slow\n- Information-heavy: medium\n- Countdowns/lists: medium-fast\n\n")
	sb.WriteString("Return ONLY this JSON (no markdown):\n")
	sb.WriteString(`{"scenes": [{"scene_id": "scene_1", "montage_type": "b-roll", "pace": "fast", "transition": "cut"}]}`)
	return sb.String()
}

func oneOf(value string, allowed []string, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if value == a {
			return a
		}
	}
	return fallback
}

func truncate(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
