package domain

import (
	"reflect"
	"testing"
)

func jobWithSteps(status JobStatus, steps map[int]StepStatus) Job {
	job := Job{Status: status, Steps: NewPipelineSteps()}
	for ordinal, st := range steps {
		job.Steps[ordinal-1].Status = st
	}
	return job
}

func TestDerivePhase(t *testing.T) {
	cases := []struct {
		name      string
		job       Job
		scheduled Phase
		want      Phase
	}{
		{"fresh", jobWithSteps(JobStatusPending, nil), "", PhasePending},
		{"queued", jobWithSteps(JobStatusPending, nil), PhaseAnalysisRunning, PhaseAnalysisRunning},
		{"analysis without schedule", jobWithSteps(JobStatusRunning, map[int]StepStatus{1: StepStatusRunning}), "", PhaseAnalysisRunning},
		{"script gate", jobWithSteps(JobStatusRunning, map[int]StepStatus{1: StepStatusCompleted, 2: StepStatusCompleted}), "", PhaseAwaitingScriptApproval},
		{"script edit", jobWithSteps(JobStatusRunning, map[int]StepStatus{1: StepStatusCompleted}), PhaseScriptEditRunning, PhaseScriptEditRunning},
		{"voice gate", jobWithSteps(JobStatusRunning, map[int]StepStatus{1: StepStatusCompleted, 2: StepStatusCompleted, 3: StepStatusCompleted}), "", PhaseAwaitingVoiceApproval},
		{"failed while scheduled", jobWithSteps(JobStatusFailed, map[int]StepStatus{1: StepStatusFailed}), PhaseAnalysisRunning, PhaseFailed},
		{"completed", jobWithSteps(JobStatusCompleted, nil), "", PhaseCompleted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DerivePhase(tc.job, tc.scheduled); got != tc.want {
				t.Fatalf("DerivePhase() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAvailableActions(t *testing.T) {
	scriptGate := jobWithSteps(JobStatusRunning, map[int]StepStatus{1: StepStatusCompleted, 2: StepStatusCompleted})
	if got := AvailableActions(scriptGate); !reflect.DeepEqual(got, []Action{ActionApproveScript, ActionEditScript}) {
		t.Fatalf("script gate actions = %v", got)
	}

	voiceGate := jobWithSteps(JobStatusRunning, map[int]StepStatus{1: StepStatusCompleted, 2: StepStatusCompleted, 3: StepStatusCompleted})
	if got := AvailableActions(voiceGate); !reflect.DeepEqual(got, []Action{ActionApproveVoice, ActionRegenerateVoice, ActionEditScript}) {
		t.Fatalf("voice gate actions = %v", got)
	}

	voiceFailed := jobWithSteps(JobStatusFailed, map[int]StepStatus{1: StepStatusCompleted, 2: StepStatusCompleted, 3: StepStatusFailed})
	if got := AvailableActions(voiceFailed); !reflect.DeepEqual(got, []Action{ActionApproveScript, ActionEditScript, ActionRegenerateVoice}) {
		t.Fatalf("voice failure actions = %v", got)
	}

	running := jobWithSteps(JobStatusRunning, map[int]StepStatus{1: StepStatusRunning})
	if got := AvailableActions(running); got != nil {
		t.Fatalf("running actions = %v, want none", got)
	}
}
