package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// StepStatus enumerates the lifecycle of a single pipeline step.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// Step ordinals. They are the stable identity of each stage for the whole life of a job.
const (
	StepAnalysis  = 1
	StepScript    = 2
	StepVoice     = 3
	StepFootage   = 4
	StepBlueprint = 5
	StepAssembly  = 6
	StepExport    = 7

	StepCount = 7
)

type stepDefinition struct {
	name        string
	description string
}

var stepDefinitions = [StepCount]stepDefinition{
	{"Prompt Analysis", "Extracting topic, talking points, tone, and visual elements"},
	{"Script Generation", "Writing full narration script segmented by scenes"},
	{"Voice Generation", "Converting script to speech with selected voice"},
	{"Footage Sourcing", "Finding and downloading visual assets per scene"},
	{"Edit Blueprint", "Planning the timeline and clip assignments"},
	{"Video Assembly", "Assembling footage, voice, and music into final video"},
	{"Export & Delivery", "Organizing all deliverables"},
}

// StepName returns the display name of the given ordinal, or "" when out of range.
func StepName(ordinal int) string {
	if ordinal < 1 || ordinal > StepCount {
		return ""
	}
	return stepDefinitions[ordinal-1].name
}

// PipelineStep is one of the seven fixed stages of a job.
type PipelineStep struct {
	Step        int        `json:"step"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      StepStatus `json:"status"`
	Message     string     `json:"message"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// NewPipelineSteps returns the seven steps in order, all pending.
func NewPipelineSteps() []PipelineStep {
	steps := make([]PipelineStep, StepCount)
	for i, def := range stepDefinitions {
		steps[i] = PipelineStep{
			Step:        i + 1,
			Name:        def.name,
			Description: def.description,
			Status:      StepStatusPending,
		}
	}
	return steps
}

// JobResult is the manifest of deliverables attached to a completed job.
type JobResult struct {
	FinalVideo      string            `json:"final_video"`
	ScriptFile      string            `json:"script_file"`
	VoiceoverFile   string            `json:"voiceover_file"`
	AssetListFile   string            `json:"asset_list_file"`
	TimelineFile    string            `json:"timeline_file"`
	SubtitlesFile   string            `json:"subtitles_file,omitempty"`
	DurationSeconds float64           `json:"duration_seconds"`
	Published       map[string]string `json:"published,omitempty"`
}

// Job encapsulates one end-to-end video generation request.
type Job struct {
	ID          string          `json:"job_id"`
	Status      JobStatus       `json:"status"`
	Phase       Phase           `json:"phase"`
	Config      GenerateRequest `json:"config"`
	Steps       []PipelineStep  `json:"steps"`
	CurrentStep int             `json:"current_step"`
	Result      *JobResult      `json:"result"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at"`
}

// Step returns the step with the given ordinal.
func (j Job) Step(ordinal int) (PipelineStep, bool) {
	if ordinal < 1 || ordinal > len(j.Steps) {
		return PipelineStep{}, false
	}
	return j.Steps[ordinal-1], true
}

// StepStatus returns the status of the given ordinal, pending when unknown.
func (j Job) StepStatus(ordinal int) StepStatus {
	step, ok := j.Step(ordinal)
	if !ok {
		return StepStatusPending
	}
	return step.Status
}

// Clone returns a deep copy so snapshots never alias the stored record.
func (j Job) Clone() Job {
	out := j
	out.Config = j.Config.Clone()
	out.Steps = make([]PipelineStep, len(j.Steps))
	for i, s := range j.Steps {
		s.StartedAt = cloneTime(s.StartedAt)
		s.CompletedAt = cloneTime(s.CompletedAt)
		out.Steps[i] = s
	}
	if j.Result != nil {
		res := *j.Result
		if j.Result.Published != nil {
			res.Published = make(map[string]string, len(j.Result.Published))
			for k, v := range j.Result.Published {
				res.Published[k] = v
			}
		}
		out.Result = &res
	}
	out.CompletedAt = cloneTime(j.CompletedAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
