package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"

	"autovideo/internal/domain"
	"autovideo/internal/jobstore"
)

const (
	defaultTone  = "neutral"
	defaultStyle = "standard"
)

// runAnalysisPhase runs steps 1-2 and stops at the script approval gate.
func (o *Orchestrator) runAnalysisPhase(id string) {
	req, ok := jobstore.Artifact[domain.GenerateRequest](o.store, id)
	if !ok {
		o.missingData(id, domain.StepAnalysis, "Missing pipeline data for phase 1")
		return
	}

	var analysis domain.PromptAnalysis
	if !o.runStep(id, domain.StepAnalysis, "Analysing prompt…", func(ctx context.Context) (string, error) {
		out, err := o.stages.Analyzer.Analyze(ctx, req)
		if err != nil {
			return "", err
		}
		if err := o.store.SetArtifact(id, out); err != nil {
			return "", err
		}
		analysis = out
		return fmt.Sprintf("Extracted %d talking points | tone: %s", len(out.TalkingPoints), out.Tone), nil
	}) {
		return
	}

	o.runStep(id, domain.StepScript, "Writing narration script…", func(ctx context.Context) (string, error) {
		script, err := o.stages.Writer.WriteScript(ctx, req, analysis)
		if err != nil {
			return "", err
		}
		if err := o.store.SetArtifact(id, script); err != nil {
			return "", err
		}
		return scriptSummary(script), nil
	})
}

// runScriptEditPhase re-runs step 2 with an instruction and stops at the
// script approval gate again.
func (o *Orchestrator) runScriptEditPhase(id, instruction string) {
	current, ok := jobstore.Artifact[domain.Script](o.store, id)
	if !ok {
		o.missingData(id, domain.StepScript, "Missing pipeline data for script edit")
		return
	}
	o.runStep(id, domain.StepScript, "Regenerating script with modifications…", func(ctx context.Context) (string, error) {
		script, err := o.stages.Editor.EditScript(ctx, current, instruction)
		if err != nil {
			return "", err
		}
		if err := o.store.SetArtifact(id, script); err != nil {
			return "", err
		}
		return scriptSummary(script), nil
	})
}

// runVoicePhase runs step 3 and stops at the voice approval gate.
func (o *Orchestrator) runVoicePhase(id string) {
	script, okScript := jobstore.Artifact[domain.Script](o.store, id)
	req, okReq := jobstore.Artifact[domain.GenerateRequest](o.store, id)
	if !okScript || !okReq {
		o.missingData(id, domain.StepVoice, "Missing pipeline data for phase 2")
		return
	}
	o.runStep(id, domain.StepVoice, "Generating voiceover…", func(ctx context.Context) (string, error) {
		voice, err := o.stages.Voice.GenerateVoice(ctx, id, script, req.VoiceID)
		if err != nil {
			return "", err
		}
		if err := o.store.SetArtifact(id, voice); err != nil {
			return "", err
		}
		return fmt.Sprintf("Audio ready: ~%.0fs", voice.TotalDurationSeconds), nil
	})
}

// runAssemblyPhase runs steps 4-7 and completes the job.
func (o *Orchestrator) runAssemblyPhase(id string) {
	script, okScript := jobstore.Artifact[domain.Script](o.store, id)
	req, okReq := jobstore.Artifact[domain.GenerateRequest](o.store, id)
	if !okScript || !okReq {
		o.missingData(id, domain.StepFootage, "Missing pipeline data for phase 3")
		return
	}
	tone, style := defaultTone, defaultStyle
	if analysis, ok := jobstore.Artifact[domain.PromptAnalysis](o.store, id); ok {
		tone = coalesce(analysis.Tone, defaultTone)
		style = coalesce(analysis.Style, defaultStyle)
	}

	var (
		voice     domain.VoiceTrack
		footage   domain.FootageResult
		blueprint domain.Blueprint
		edit      domain.EditResult
		export    domain.ExportResult
	)

	if !o.runStep(id, domain.StepFootage, "Searching and downloading footage…", func(ctx context.Context) (string, error) {
		v, err := o.rehydrateVoice(id)
		if err != nil {
			return "", err
		}
		voice = v
		out, err := o.stages.Footage.SourceFootage(ctx, id, script, voice, req.VideoFormat)
		if err != nil {
			return "", err
		}
		footage = out
		found := 0
		for _, s := range out.Scenes {
			if s.PrimaryAsset != nil {
				found++
			}
		}
		return fmt.Sprintf("Assets found for %d/%d scenes", found, len(out.Scenes)), nil
	}) {
		return
	}

	if !o.runStep(id, domain.StepBlueprint, "Planning edit timeline…", func(ctx context.Context) (string, error) {
		out, err := o.stages.Blueprint.BuildBlueprint(ctx, domain.BlueprintInput{
			Title:       req.Title,
			Script:      script,
			Voice:       voice,
			Footage:     footage,
			VideoFormat: req.VideoFormat,
			Tone:        tone,
			Style:       style,
		})
		if err != nil {
			return "", err
		}
		blueprint = out
		return fmt.Sprintf("Blueprint ready for %d scenes", len(out.Scenes)), nil
	}) {
		return
	}

	if !o.runStep(id, domain.StepAssembly, "Assembling video…", func(ctx context.Context) (string, error) {
		out, err := o.stages.Assembler.Assemble(ctx, domain.AssemblyInput{
			JobID:     id,
			Blueprint: blueprint,
			AudioPath: voice.AudioPath,
			WithMusic: req.AddBackgroundMusic,
		})
		if err != nil {
			return "", err
		}
		edit = out
		return fmt.Sprintf("Video assembled: %.0fs", out.DurationSeconds), nil
	}) {
		return
	}

	if !o.runStep(id, domain.StepExport, "Exporting deliverables…", func(ctx context.Context) (string, error) {
		out, err := o.stages.Exporter.Export(ctx, domain.ExportInput{
			JobID:     id,
			Title:     req.Title,
			Script:    script,
			Voice:     voice,
			Footage:   footage,
			Blueprint: blueprint,
			Edit:      edit,
		})
		if err != nil {
			return "", err
		}
		export = out
		return "All deliverables ready!", nil
	}) {
		return
	}

	o.store.CompleteJob(id, downloadResult(id, export))
	o.logger.Info().Str("job_id", id).Float64("duration_seconds", export.DurationSeconds).Msg("pipeline: job completed")
}

// rehydrateVoice rebuilds the voice timing from the stored audio file so
// assembly never works from a stale duration.
func (o *Orchestrator) rehydrateVoice(id string) (domain.VoiceTrack, error) {
	voice, ok := jobstore.Artifact[domain.VoiceTrack](o.store, id)
	if !ok {
		return domain.VoiceTrack{}, domain.StageErrorf(domain.CategoryMissingData, "Missing pipeline data for phase 3")
	}
	if o.prober == nil {
		return voice, nil
	}
	duration, err := o.prober.Probe(voice.AudioPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.VoiceTrack{}, domain.StageErrorf(domain.CategoryMissingData, "voiceover audio missing: %s", voice.AudioPath)
		}
		return domain.VoiceTrack{}, domain.NewStageError(domain.CategoryAudio, fmt.Errorf("probe voiceover: %w", err))
	}
	if duration <= 0 {
		return domain.VoiceTrack{}, domain.StageErrorf(domain.CategoryAudio, "voiceover audio is empty: %s", voice.AudioPath)
	}
	voice = voice.Rescale(duration)
	if err := o.store.SetArtifact(id, voice); err != nil {
		return domain.VoiceTrack{}, err
	}
	return voice, nil
}

func scriptSummary(script domain.Script) string {
	return fmt.Sprintf("%d scenes | ~%d words", len(script.Scenes), script.TotalWordCount)
}

// downloadResult maps the exported files to retrievable references.
func downloadResult(id string, export domain.ExportResult) domain.JobResult {
	ref := func(file string) string {
		if file == "" {
			return ""
		}
		return path.Join("/api/download", id, filepath.Base(file))
	}
	res := export.JobResult()
	res.FinalVideo = ref(export.FinalVideo)
	res.ScriptFile = ref(export.ScriptFile)
	res.VoiceoverFile = ref(export.VoiceoverFile)
	res.AssetListFile = ref(export.AssetListFile)
	res.TimelineFile = ref(export.TimelineFile)
	return *res
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
