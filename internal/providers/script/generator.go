package script

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"autovideo/internal/domain"
	"autovideo/internal/providers/anthropic"
)

const (
	// NarrationWPM is the assumed narration speed used for duration estimates.
	NarrationWPM = 150

	analysisMaxTokens = 2048
	scriptMaxTokens   = 8192

	defaultSceneSeconds  = 30
	defaultScriptMinutes = 10
)

// Completer is the text model the stages talk to.
type Completer interface {
	Complete(ctx context.Context, req anthropic.Request) (string, error)
}

// Generator implements prompt analysis, script writing and script editing.
type Generator struct {
	model Completer
}

// NewGenerator wraps model.
func NewGenerator(model Completer) *Generator {
	return &Generator{model: model}
}

type analysisPayload struct {
	Topic                    string                `json:"topic"`
	TalkingPoints            []domain.TalkingPoint `json:"talking_points"`
	Tone                     string                `json:"tone"`
	Style                    string                `json:"style"`
	EstimatedDurationMinutes float64               `json:"estimated_duration_minutes"`
	VisualElements           []string              `json:"visual_elements"`
	Language                 string                `json:"language"`
}

type scenePayload struct {
	SceneID                  string   `json:"scene_id"`
	Name                     string   `json:"name"`
	Narration                string   `json:"narration"`
	WordCount                *int     `json:"word_count"`
	EstimatedDurationSeconds *float64 `json:"estimated_duration_seconds"`
	VisualKeywords           []string `json:"visual_keywords"`
}

type scriptPayload struct {
	FullText                 string         `json:"full_text"`
	Scenes                   []scenePayload `json:"scenes"`
	TotalWordCount           *int           `json:"total_word_count"`
	EstimatedDurationMinutes *float64       `json:"estimated_duration_minutes"`
}

// Analyze extracts the editorial structure of the request.
func (g *Generator) Analyze(ctx context.Context, req domain.GenerateRequest) (domain.PromptAnalysis, error) {
	raw, err := g.model.Complete(ctx, anthropic.Request{
		System:    analysisSystemPrompt,
		Prompt:    buildAnalysisPrompt(req),
		MaxTokens: analysisMaxTokens,
	})
	if err != nil {
		return domain.PromptAnalysis{}, fmt.Errorf("analyze prompt: %w", err)
	}
	payload, err := parseModelPayload[analysisPayload](raw)
	if err != nil {
		return domain.PromptAnalysis{}, domain.NewStageError(domain.CategoryParse, fmt.Errorf("parse analysis: %w", err))
	}
	if strings.TrimSpace(payload.Topic) == "" || len(payload.TalkingPoints) == 0 {
		return domain.PromptAnalysis{}, domain.StageErrorf(domain.CategoryParse, "analysis is missing topic or talking points")
	}
	for i := range payload.TalkingPoints {
		tp := &payload.TalkingPoints[i]
		if tp.Index == 0 {
			tp.Index = i + 1
		}
		tp.VisualKeywords = normalizeKeywords(tp.VisualKeywords)
	}
	estimated := payload.EstimatedDurationMinutes
	if estimated <= 0 {
		estimated = float64(req.TargetDuration)
	}
	return domain.PromptAnalysis{
		Topic:                    strings.TrimSpace(payload.Topic),
		TalkingPoints:            payload.TalkingPoints,
		Tone:                     payload.Tone,
		Style:                    payload.Style,
		EstimatedDurationMinutes: estimated,
		VisualElements:           payload.VisualElements,
		Language:                 coalesce(payload.Language, req.Language),
	}, nil
}

// WriteScript produces the scene-segmented narration.
func (g *Generator) WriteScript(ctx context.Context, req domain.GenerateRequest, analysis domain.PromptAnalysis) (domain.Script, error) {
	raw, err := g.model.Complete(ctx, anthropic.Request{
		System:    writerSystemPrompt,
		Prompt:    buildWriterPrompt(req, analysis),
		MaxTokens: scriptMaxTokens,
	})
	if err != nil {
		return domain.Script{}, fmt.Errorf("write script: %w", err)
	}
	return parseScript(raw)
}

// EditScript applies instruction to an existing script.
func (g *Generator) EditScript(ctx context.Context, current domain.Script, instruction string) (domain.Script, error) {
	encoded, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return domain.Script{}, fmt.Errorf("encode current script: %w", err)
	}
	minutes := int(math.Round(current.EstimatedDurationMinutes))
	if minutes <= 0 {
		minutes = defaultScriptMinutes
	}
	raw, err := g.model.Complete(ctx, anthropic.Request{
		System:    editorSystemPrompt,
		Prompt:    buildEditorPrompt(encoded, instruction, minutes),
		MaxTokens: scriptMaxTokens,
	})
	if err != nil {
		return domain.Script{}, fmt.Errorf("edit script: %w", err)
	}
	return parseScript(raw)
}

func parseScript(raw string) (domain.Script, error) {
	payload, err := parseModelPayload[scriptPayload](raw)
	if err != nil {
		return domain.Script{}, domain.NewStageError(domain.CategoryParse, fmt.Errorf("parse script: %w", err))
	}
	if len(payload.Scenes) == 0 {
		return domain.Script{}, domain.StageErrorf(domain.CategoryParse, "script has no scenes")
	}

	scenes := make([]domain.Scene, 0, len(payload.Scenes))
	narrations := make([]string, 0, len(payload.Scenes))
	for i, sp := range payload.Scenes {
		narration := strings.TrimSpace(sp.Narration)
		scene := domain.Scene{
			SceneID:                  coalesce(sp.SceneID, fmt.Sprintf("scene_%d", i+1)),
			Name:                     coalesce(sp.Name, fmt.Sprintf("Scene %d", i+1)),
			Narration:                narration,
			WordCount:                len(strings.Fields(narration)),
			EstimatedDurationSeconds: defaultSceneSeconds,
			VisualKeywords:           normalizeKeywords(sp.VisualKeywords),
		}
		if sp.WordCount != nil {
			scene.WordCount = *sp.WordCount
		}
		if sp.EstimatedDurationSeconds != nil {
			scene.EstimatedDurationSeconds = *sp.EstimatedDurationSeconds
		}
		scenes = append(scenes, scene)
		narrations = append(narrations, narration)
	}

	fullText := strings.TrimSpace(payload.FullText)
	if fullText == "" {
		fullText = strings.Join(narrations, "\n\n")
	}
	out := domain.Script{
		FullText:                 fullText,
		Scenes:                   scenes,
		TotalWordCount:           len(strings.Fields(fullText)),
		EstimatedDurationMinutes: defaultScriptMinutes,
	}
	if payload.TotalWordCount != nil {
		out.TotalWordCount = *payload.TotalWordCount
	}
	if payload.EstimatedDurationMinutes != nil {
		out.EstimatedDurationMinutes = *payload.EstimatedDurationMinutes
	}
	return out, nil
}
