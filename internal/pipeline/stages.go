package pipeline

import (
	"context"

	"autovideo/internal/domain"
)

// Analyzer extracts topic, talking points, tone and visuals from a prompt.
type Analyzer interface {
	Analyze(ctx context.Context, req domain.GenerateRequest) (domain.PromptAnalysis, error)
}

// ScriptWriter turns an analysis into scene-segmented narration.
type ScriptWriter interface {
	WriteScript(ctx context.Context, req domain.GenerateRequest, analysis domain.PromptAnalysis) (domain.Script, error)
}

// ScriptEditor revises an existing script following a user instruction.
type ScriptEditor interface {
	EditScript(ctx context.Context, script domain.Script, instruction string) (domain.Script, error)
}

// VoiceGenerator synthesizes the narration track.
type VoiceGenerator interface {
	GenerateVoice(ctx context.Context, jobID string, script domain.Script, voiceID string) (domain.VoiceTrack, error)
}

// FootageSourcer finds and downloads visuals per scene.
type FootageSourcer interface {
	SourceFootage(ctx context.Context, jobID string, script domain.Script, voice domain.VoiceTrack, format domain.VideoFormat) (domain.FootageResult, error)
}

// BlueprintBuilder plans the edit timeline.
type BlueprintBuilder interface {
	BuildBlueprint(ctx context.Context, in domain.BlueprintInput) (domain.Blueprint, error)
}

// Assembler renders the final video.
type Assembler interface {
	Assemble(ctx context.Context, in domain.AssemblyInput) (domain.EditResult, error)
}

// Exporter organizes deliverables.
type Exporter interface {
	Export(ctx context.Context, in domain.ExportInput) (domain.ExportResult, error)
}

// AudioProber reports the authoritative duration of a stored audio file in seconds.
type AudioProber interface {
	Probe(path string) (float64, error)
}

// AudioProberFunc adapts a function to AudioProber.
type AudioProberFunc func(path string) (float64, error)

// Probe implements AudioProber.
func (f AudioProberFunc) Probe(path string) (float64, error) { return f(path) }

// Submitter schedules background work. *ants.Pool satisfies it.
type Submitter interface {
	Submit(task func()) error
}

// Stages bundles the external collaborators the orchestrator drives.
type Stages struct {
	Analyzer  Analyzer
	Writer    ScriptWriter
	Editor    ScriptEditor
	Voice     VoiceGenerator
	Footage   FootageSourcer
	Blueprint BlueprintBuilder
	Assembler Assembler
	Exporter  Exporter
}
