package script

import (
	"fmt"
	"strings"

	"autovideo/internal/domain"
)

const analysisSystemPrompt = `You are a professional video script analyst.
Given a video title and a user prompt, extract structured editorial information.
Always respond with valid JSON matching the schema exactly, no extra keys, no markdown.`

const writerSystemPrompt = `You are an expert video scriptwriter.
Write narration scripts that are compelling, natural-sounding for text-to-speech,
and precisely structured by scenes.
Always respond with valid JSON matching the schema exactly.`

const editorSystemPrompt = `You are an expert video scriptwriter.
You will receive an existing narration script and a modification instruction.
Apply the modification while preserving the overall structure, tone, and style.
Always respond with valid JSON matching the schema exactly.`

const blueprintSystemPrompt = `You are a professional video editor AI.
Given a script, voiceover timing, and sourced footage, create a detailed edit plan.
Always respond with valid JSON matching the schema exactly.`

const scriptSchema = `{
  "full_text": "Complete narration as a single string (all scenes joined)",
  "scenes": [
    {
      "scene_id": "scene_1",
      "name": "Hook",
      "narration": "The narration text for this scene only",
      "word_count": 75,
      "estimated_duration_seconds": 30,
      "visual_keywords": ["keyword1", "keyword2"]
    }
  ],
  "total_word_count": 1500,
  "estimated_duration_minutes": %d
}`

func buildAnalysisPrompt(req domain.GenerateRequest) string {
	sb := &strings.Builder{}
	sb.WriteString("Analyze the following video request and return a JSON object.\n\n")
	fmt.Fprintf(sb, "Title: %s\nType: %s\nTarget duration: %d minutes\nLanguage: %s\n\n", req.Title, req.VideoType, req.TargetDuration, req.Language)
	fmt.Fprintf(sb, "User Prompt:\n%s\n\n", req.Prompt)
	sb.WriteString("Return ONLY this JSON structure (no markdown, no explanation):\n")
	fmt.Fprintf(sb, `{
  "topic": "concise description of the main subject",
  "talking_points": [
    {"index": 1, "title": "point title", "content": "what this point covers", "visual_keywords": ["keyword1", "keyword2", "keyword3"]}
  ],
  "tone": "one of: serious | mysterious | urgent | educational | entertaining | neutral",
  "style": "one of: documentary | top10 | mystery | news | educational",
  "estimated_duration_minutes": %d,
  "visual_elements": ["specific visual element 1", "specific visual element 2"],
  "language": %q
}`, req.TargetDuration, req.Language)
	sb.WriteString("\n\nRules:\n")
	sb.WriteString("- Extract 4-10 talking points based on the prompt and target duration\n")
	sb.WriteString("- visual_keywords must be concrete, searchable terms (e.g. \"NASA spacecraft\", not \"space stuff\")\n")
	sb.WriteString("- visual_elements should list key visuals needed across the whole video\n")
	sb.WriteString("- Do NOT invent facts not present in the prompt")
	return sb.String()
}

func buildWriterPrompt(req domain.GenerateRequest, analysis domain.PromptAnalysis) string {
	language := coalesce(analysis.Language, req.Language)
	sb := &strings.Builder{}
	sb.WriteString("Write a complete narration script for the following video.\n\n")
	fmt.Fprintf(sb, "Title: %s\nTopic: %s\nTone: %s\nStyle: %s\nTarget duration: %d minutes\nLanguage: %s\n\n",
		req.Title, analysis.Topic, analysis.Tone, analysis.Style, req.TargetDuration, language)
	sb.WriteString("Talking Points:\n")
	for _, tp := range analysis.TalkingPoints {
		fmt.Fprintf(sb, "%d. %s: %s\n", tp.Index, tp.Title, tp.Content)
	}
	sb.WriteString("\nRequirements:\n")
	sb.WriteString("- Structure: Hook, Context, one scene per talking point, Conclusion\n")
	sb.WriteString("- Natural TTS flow: no stage directions, no [PAUSE], no NARRATOR:, no timestamps\n")
	fmt.Fprintf(sb, "- Match the tone (%s) and style (%s)\n", analysis.Tone, analysis.Style)
	sb.WriteString("- Smooth transitions between scenes\n")
	sb.WriteString("- Engaging hook and strong conclusion\n\n")
	sb.WriteString("Return ONLY this JSON (no markdown):\n")
	fmt.Fprintf(sb, scriptSchema, req.TargetDuration)
	sb.WriteString("\n\nScene naming guide:\n")
	sb.WriteString("- scene_1: Hook (attention-grabbing opening)\n")
	sb.WriteString("- scene_2: Context / Background\n")
	sb.WriteString("- scene_3..N-1: One scene per talking point\n")
	sb.WriteString("- scene_N: Conclusion\n\n")
	sb.WriteString("Word count per scene should be proportional to talking point importance.\n")
	fmt.Fprintf(sb, "At %d words per minute average narration speed.", NarrationWPM)
	return sb.String()
}

func buildEditorPrompt(current []byte, instruction string, targetMinutes int) string {
	sb := &strings.Builder{}
	sb.WriteString("Here is an existing video narration script in JSON format:\n\n")
	sb.Write(current)
	fmt.Fprintf(sb, "\n\nModification instruction: %s\n\n", instruction)
	sb.WriteString("Rewrite the script applying the modification instruction exactly.\n")
	sb.WriteString("Return ONLY the same JSON schema (no markdown):\n")
	fmt.Fprintf(sb, scriptSchema, targetMinutes)
	return sb.String()
}
