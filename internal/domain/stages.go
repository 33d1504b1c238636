package domain

// BlueprintInput carries everything the edit planner needs.
type BlueprintInput struct {
	Title       string
	Script      Script
	Voice       VoiceTrack
	Footage     FootageResult
	VideoFormat VideoFormat
	Tone        string
	Style       string
}

// AssemblyInput carries the edit plan and narration for rendering.
type AssemblyInput struct {
	JobID     string
	Blueprint Blueprint
	AudioPath string
	WithMusic bool
}

// ExportInput carries every artifact of a finished run.
type ExportInput struct {
	JobID     string
	Title     string
	Script    Script
	Voice     VoiceTrack
	Footage   FootageResult
	Blueprint Blueprint
	Edit      EditResult
}
