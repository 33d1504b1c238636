package domain

// Phase is the macro-state of a job's pipeline. It is stored on every job
// snapshot but is always recomputable from the step statuses, see DerivePhase.
type Phase string

const (
	PhasePending                Phase = "pending"
	PhaseAnalysisRunning        Phase = "analysis_running"
	PhaseScriptRunning          Phase = "script_running"
	PhaseAwaitingScriptApproval Phase = "awaiting_script_approval"
	PhaseScriptEditRunning      Phase = "script_edit_running"
	PhaseVoiceRunning           Phase = "voice_running"
	PhaseAwaitingVoiceApproval  Phase = "awaiting_voice_approval"
	PhaseAssemblyRunning        Phase = "assembly_running"
	PhaseCompleted              Phase = "completed"
	PhaseFailed                 Phase = "failed"
)

// Action names a client trigger that may be accepted in a given state.
type Action string

const (
	ActionApproveScript   Action = "approve_script"
	ActionEditScript      Action = "edit_script"
	ActionApproveVoice    Action = "approve_voice"
	ActionRegenerateVoice Action = "regenerate_voice"
)

// DerivePhase computes the macro-state from the job status and step data.
// scheduled is the phase a trigger has handed to the worker pool and that has
// not finished yet, or "" when the job is not being driven.
func DerivePhase(job Job, scheduled Phase) Phase {
	switch job.Status {
	case JobStatusFailed:
		return PhaseFailed
	case JobStatusCompleted:
		return PhaseCompleted
	}
	if scheduled != "" {
		return scheduled
	}

	for _, step := range job.Steps {
		if step.Status == StepStatusRunning {
			return runningPhase(step.Step)
		}
	}
	if job.Status == JobStatusPending {
		return PhasePending
	}
	if job.StepStatus(StepVoice) == StepStatusCompleted && job.StepStatus(StepFootage) == StepStatusPending {
		return PhaseAwaitingVoiceApproval
	}
	if job.StepStatus(StepScript) == StepStatusCompleted && job.StepStatus(StepVoice) == StepStatusPending {
		return PhaseAwaitingScriptApproval
	}
	for _, step := range job.Steps {
		if step.Status == StepStatusPending {
			return runningPhase(step.Step)
		}
	}
	return PhaseAssemblyRunning
}

func runningPhase(ordinal int) Phase {
	switch {
	case ordinal <= StepAnalysis:
		return PhaseAnalysisRunning
	case ordinal == StepScript:
		return PhaseScriptRunning
	case ordinal == StepVoice:
		return PhaseVoiceRunning
	default:
		return PhaseAssemblyRunning
	}
}

// IsRunning reports whether the phase is actively driving steps.
func (p Phase) IsRunning() bool {
	switch p {
	case PhaseAnalysisRunning, PhaseScriptRunning, PhaseScriptEditRunning, PhaseVoiceRunning, PhaseAssemblyRunning:
		return true
	default:
		return false
	}
}

// AvailableActions lists the triggers a client may send for the job, derived
// from step data only. Failed jobs can re-enter from the last gate they passed.
func AvailableActions(job Job) []Action {
	phase := job.Phase
	if phase == "" {
		phase = DerivePhase(job, "")
	}
	if phase.IsRunning() || phase == PhasePending || phase == PhaseCompleted {
		return nil
	}

	var actions []Action
	scriptReady := job.StepStatus(StepScript) == StepStatusCompleted
	voiceReady := job.StepStatus(StepVoice) == StepStatusCompleted
	switch {
	case voiceReady:
		actions = append(actions, ActionApproveVoice, ActionRegenerateVoice, ActionEditScript)
	case scriptReady:
		actions = append(actions, ActionApproveScript, ActionEditScript)
		if job.StepStatus(StepVoice) == StepStatusFailed {
			actions = append(actions, ActionRegenerateVoice)
		}
	}
	return actions
}
