package domain

import (
	"testing"
	"time"
)

func TestNewPipelineSteps(t *testing.T) {
	steps := NewPipelineSteps()
	if len(steps) != StepCount {
		t.Fatalf("len(steps) = %d, want %d", len(steps), StepCount)
	}
	for i, s := range steps {
		if s.Step != i+1 {
			t.Fatalf("steps[%d].Step = %d", i, s.Step)
		}
		if s.Status != StepStatusPending {
			t.Fatalf("steps[%d].Status = %q", i, s.Status)
		}
	}
	if steps[6].Name != "Export & Delivery" {
		t.Fatalf("step 7 name = %q", steps[6].Name)
	}
}

func TestJobCloneDoesNotAlias(t *testing.T) {
	now := time.Now()
	job := Job{
		Steps:  NewPipelineSteps(),
		Result: &JobResult{Published: map[string]string{"final_video": "s3://b/k"}},
	}
	job.Steps[0].StartedAt = &now

	cp := job.Clone()
	cp.Steps[0].Status = StepStatusFailed
	*cp.Steps[0].StartedAt = now.Add(time.Hour)
	cp.Result.Published["final_video"] = "changed"

	if job.Steps[0].Status != StepStatusPending {
		t.Fatalf("original step status mutated: %q", job.Steps[0].Status)
	}
	if !job.Steps[0].StartedAt.Equal(now) {
		t.Fatalf("original timestamp mutated")
	}
	if job.Result.Published["final_video"] != "s3://b/k" {
		t.Fatalf("original result mutated")
	}
}

func TestVoiceTrackRescale(t *testing.T) {
	v := VoiceTrack{
		TotalDurationSeconds: 10,
		Scenes: []SceneTiming{
			{SceneID: "a", StartTime: 0, EndTime: 4, Duration: 4},
			{SceneID: "b", StartTime: 4, EndTime: 10, Duration: 6},
		},
	}
	got := v.Rescale(20)
	if got.TotalDurationSeconds != 20 {
		t.Fatalf("TotalDurationSeconds = %v", got.TotalDurationSeconds)
	}
	if got.Scenes[1].EndTime != 20 || got.Scenes[1].StartTime != 8 {
		t.Fatalf("scene b = %+v", got.Scenes[1])
	}
	if v.Scenes[1].EndTime != 10 {
		t.Fatalf("source track mutated")
	}
}

func TestStageErrorUnwrap(t *testing.T) {
	err := StageErrorf(CategoryAuth, "bad key")
	if err.Error() != "bad key" || err.Category != CategoryAuth {
		t.Fatalf("StageError = %q/%q", err.Category, err.Error())
	}
}
