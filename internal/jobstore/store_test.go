package jobstore

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"autovideo/internal/domain"
)

func newTestStore(opts ...Option) *Store {
	var seq int64
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var tick int64
	defaults := []Option{
		WithIDGenerator(func() string {
			return fmt.Sprintf("job-%d", atomic.AddInt64(&seq, 1))
		}),
		WithClock(func() time.Time {
			return base.Add(time.Duration(atomic.AddInt64(&tick, 1)) * time.Millisecond)
		}),
	}
	return New(append(defaults, opts...)...)
}

func sampleRequest() domain.GenerateRequest {
	return domain.GenerateRequest{Title: "T", Prompt: "P"}
}

func TestCreateFreshJob(t *testing.T) {
	s := newTestStore()
	job := s.Create(sampleRequest())

	if job.Status != domain.JobStatusPending {
		t.Fatalf("Status = %q, want %q", job.Status, domain.JobStatusPending)
	}
	if job.Phase != domain.PhasePending {
		t.Fatalf("Phase = %q, want %q", job.Phase, domain.PhasePending)
	}
	if job.CurrentStep != 0 {
		t.Fatalf("CurrentStep = %d, want 0", job.CurrentStep)
	}
	if len(job.Steps) != domain.StepCount {
		t.Fatalf("len(Steps) = %d, want %d", len(job.Steps), domain.StepCount)
	}
	for _, step := range job.Steps {
		if step.Status != domain.StepStatusPending {
			t.Fatalf("step %d status = %q, want pending", step.Step, step.Status)
		}
	}
	if _, ok := Artifact[domain.GenerateRequest](s, job.ID); !ok {
		t.Fatalf("request artifact missing after Create")
	}
}

func TestGetUnknownJob(t *testing.T) {
	s := newTestStore()
	if _, err := s.Get("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get error = %v, want ErrNotFound", err)
	}
}

func TestStartThenCompleteStep(t *testing.T) {
	s := newTestStore()
	job := s.Create(sampleRequest())

	s.StartStep(job.ID, 1, "Analyzing prompt...")
	s.CompleteStep(job.ID, 1, "ok")

	got, err := s.Get(job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	step := got.Steps[0]
	if step.Status != domain.StepStatusCompleted {
		t.Fatalf("step status = %q, want completed", step.Status)
	}
	if step.StartedAt == nil || step.CompletedAt == nil || step.CompletedAt.Before(*step.StartedAt) {
		t.Fatalf("timestamps = %v / %v", step.StartedAt, step.CompletedAt)
	}
	if got.Status != domain.JobStatusRunning {
		t.Fatalf("job status = %q, want running", got.Status)
	}
	if got.CurrentStep != 1 {
		t.Fatalf("CurrentStep = %d, want 1", got.CurrentStep)
	}
}

func TestFailStep(t *testing.T) {
	s := newTestStore()
	job := s.Create(sampleRequest())
	s.StartStep(job.ID, 3, "")
	s.FailStep(job.ID, 3, "boom")

	got, _ := s.Get(job.ID)
	if got.Status != domain.JobStatusFailed || got.Error != "boom" {
		t.Fatalf("job = %q/%q, want failed/boom", got.Status, got.Error)
	}
	if got.Steps[2].Status != domain.StepStatusFailed || got.Steps[2].Message != "boom" {
		t.Fatalf("step 3 = %q/%q", got.Steps[2].Status, got.Steps[2].Message)
	}
	if got.Phase != domain.PhaseFailed {
		t.Fatalf("Phase = %q, want failed", got.Phase)
	}
}

func TestResetFrom(t *testing.T) {
	s := newTestStore()
	job := s.Create(sampleRequest())
	for n := 1; n <= 3; n++ {
		s.StartStep(job.ID, n, "go")
		s.CompleteStep(job.ID, n, "done")
	}
	s.FailJob(job.ID, "later failure", 4)

	before, _ := s.Get(job.ID)
	if err := s.ResetFrom(job.ID, 2); err != nil {
		t.Fatalf("ResetFrom: %v", err)
	}
	after, _ := s.Get(job.ID)

	if !reflect.DeepEqual(after.Steps[0], before.Steps[0]) {
		t.Fatalf("step 1 changed: %+v -> %+v", before.Steps[0], after.Steps[0])
	}
	for _, step := range after.Steps[1:] {
		if step.Status != domain.StepStatusPending || step.Message != "" || step.StartedAt != nil || step.CompletedAt != nil {
			t.Fatalf("step %d not reset: %+v", step.Step, step)
		}
	}
	if after.Status != domain.JobStatusRunning {
		t.Fatalf("Status = %q, want running", after.Status)
	}
	if after.Error != "" {
		t.Fatalf("Error = %q, want empty", after.Error)
	}
}

func TestResetFromKeepsArtifacts(t *testing.T) {
	s := newTestStore()
	job := s.Create(sampleRequest())
	if err := s.SetArtifact(job.ID, domain.Script{FullText: "hello"}); err != nil {
		t.Fatalf("SetArtifact: %v", err)
	}
	_ = s.ResetFrom(job.ID, 1)
	script, ok := Artifact[domain.Script](s, job.ID)
	if !ok || script.FullText != "hello" {
		t.Fatalf("script artifact = %+v, %v", script, ok)
	}
}

func TestResetFromClearsResult(t *testing.T) {
	s := newTestStore()
	job := s.Create(sampleRequest())
	s.CompleteJob(job.ID, domain.JobResult{FinalVideo: "final_video.mp4"})
	_ = s.ResetFrom(job.ID, 3)

	got, _ := s.Get(job.ID)
	if got.Result != nil || got.CompletedAt != nil {
		t.Fatalf("result not cleared: %+v", got.Result)
	}
}

func TestGetIsIdempotent(t *testing.T) {
	s := newTestStore()
	job := s.Create(sampleRequest())
	s.StartStep(job.ID, 1, "x")

	a, _ := s.Get(job.ID)
	b, _ := s.Get(job.ID)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("snapshots differ:\n%+v\n%+v", a, b)
	}

	a.Steps[0].Status = domain.StepStatusFailed
	c, _ := s.Get(job.ID)
	if c.Steps[0].Status != domain.StepStatusRunning {
		t.Fatalf("snapshot mutation leaked into store")
	}
}

func TestScenarioScriptGate(t *testing.T) {
	s := newTestStore()
	job := s.Create(domain.GenerateRequest{Title: "T", Prompt: "P"})
	s.StartStep(job.ID, 1, "")
	s.CompleteStep(job.ID, 1, "ok")
	s.StartStep(job.ID, 2, "")
	s.CompleteStep(job.ID, 2, "ok")

	got, _ := s.Get(job.ID)
	assertScriptGate(t, got)
}

func TestScenarioEditLoop(t *testing.T) {
	s := newTestStore()
	job := s.Create(sampleRequest())
	s.StartStep(job.ID, 1, "")
	s.CompleteStep(job.ID, 1, "ok")
	s.StartStep(job.ID, 2, "")
	s.CompleteStep(job.ID, 2, "ok")

	_ = s.ResetFrom(job.ID, 2)
	got, _ := s.Get(job.ID)
	if got.Steps[0].Status != domain.StepStatusCompleted {
		t.Fatalf("step 1 = %q, want completed", got.Steps[0].Status)
	}
	for _, step := range got.Steps[1:] {
		if step.Status != domain.StepStatusPending {
			t.Fatalf("step %d = %q, want pending", step.Step, step.Status)
		}
	}

	s.StartStep(job.ID, 2, "")
	s.CompleteStep(job.ID, 2, "ok")
	got, _ = s.Get(job.ID)
	assertScriptGate(t, got)
}

func assertScriptGate(t *testing.T, got domain.Job) {
	t.Helper()
	if got.Status != domain.JobStatusRunning {
		t.Fatalf("Status = %q, want running", got.Status)
	}
	if got.Steps[0].Status != domain.StepStatusCompleted || got.Steps[1].Status != domain.StepStatusCompleted {
		t.Fatalf("steps 1-2 = %q/%q, want completed", got.Steps[0].Status, got.Steps[1].Status)
	}
	if got.Steps[2].Status != domain.StepStatusPending {
		t.Fatalf("step 3 = %q, want pending", got.Steps[2].Status)
	}
	if got.Phase != domain.PhaseAwaitingScriptApproval {
		t.Fatalf("Phase = %q, want %q", got.Phase, domain.PhaseAwaitingScriptApproval)
	}
}

func TestScenarioFailure(t *testing.T) {
	s := newTestStore()
	job := s.Create(sampleRequest())
	s.StartStep(job.ID, 1, "")
	s.FailJob(job.ID, "AuthError: bad key", 1)

	got, _ := s.Get(job.ID)
	if got.Status != domain.JobStatusFailed || got.Steps[0].Status != domain.StepStatusFailed {
		t.Fatalf("job/step = %q/%q", got.Status, got.Steps[0].Status)
	}
	if got.CompletedAt == nil {
		t.Fatalf("CompletedAt not set on failure")
	}

	found := false
	for _, j := range s.List() {
		if j.ID == job.ID && j.Status == domain.JobStatusFailed {
			found = true
		}
	}
	if !found {
		t.Fatalf("List() does not include failed job")
	}
}

func TestListOrderIsStable(t *testing.T) {
	s := newTestStore()
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, s.Create(sampleRequest()).ID)
	}

	first := s.List()
	second := s.List()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("List() not stable")
	}

	jobs := s.List()
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	if jobs[0].ID != ids[len(ids)-1] {
		t.Fatalf("newest = %q, want %q", jobs[0].ID, ids[len(ids)-1])
	}
}

func TestMutationOnUnknownJobPanics(t *testing.T) {
	s := newTestStore()
	defer func() {
		if recover() == nil {
			t.Fatalf("StartStep on unknown job did not panic")
		}
	}()
	s.StartStep("missing", 1, "")
}

func TestBeginChecksAndClaims(t *testing.T) {
	s := newTestStore()
	job := s.Create(sampleRequest())

	wantErr := errors.New("nope")
	if err := s.Begin(job.ID, 0, domain.PhaseAnalysisRunning, func(View) error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("Begin check error = %v", err)
	}
	unchanged, _ := s.Get(job.ID)
	if unchanged.Phase != domain.PhasePending {
		t.Fatalf("failed check mutated phase to %q", unchanged.Phase)
	}

	if err := s.Begin(job.ID, 0, domain.PhaseAnalysisRunning, nil); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	got, _ := s.Get(job.ID)
	if got.Phase != domain.PhaseAnalysisRunning {
		t.Fatalf("Phase = %q, want analysis_running", got.Phase)
	}
	if err := s.Begin(job.ID, 0, domain.PhaseAnalysisRunning, nil); !errors.Is(err, domain.ErrJobBusy) {
		t.Fatalf("second Begin error = %v, want ErrJobBusy", err)
	}
	s.End(job.ID)
	if err := s.Begin(job.ID, 0, domain.PhaseAnalysisRunning, nil); err != nil {
		t.Fatalf("Begin after End: %v", err)
	}
	if err := s.Begin("missing", 0, domain.PhaseAnalysisRunning, nil); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Begin unknown error = %v", err)
	}
}

func TestBeginViewSeesArtifacts(t *testing.T) {
	s := newTestStore()
	job := s.Create(sampleRequest())
	_ = s.SetArtifact(job.ID, domain.Script{})

	err := s.Begin(job.ID, 3, domain.PhaseVoiceRunning, func(v View) error {
		if !v.Has(domain.ArtifactScript) || v.Has(domain.ArtifactVoice) {
			return errors.New("unexpected artifacts")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
}

func TestConcurrentTriggersNeverRunTwoSteps(t *testing.T) {
	var violations int64
	s := newTestStore(WithObserver(func(j domain.Job) {
		running := 0
		for _, step := range j.Steps {
			if step.Status == domain.StepStatusRunning {
				running++
			}
		}
		if running > 1 {
			atomic.AddInt64(&violations, 1)
		}
	}))
	job := s.Create(sampleRequest())

	var (
		wg       sync.WaitGroup
		accepted int64
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Begin(job.ID, 1, domain.PhaseAnalysisRunning, nil); err != nil {
				return
			}
			atomic.AddInt64(&accepted, 1)
			defer s.End(job.ID)
			for n := 1; n <= 2; n++ {
				s.StartStep(job.ID, n, "")
				s.CompleteStep(job.ID, n, "ok")
			}
		}()
	}
	wg.Wait()

	if accepted < 1 {
		t.Fatalf("no trigger accepted")
	}
	if v := atomic.LoadInt64(&violations); v != 0 {
		t.Fatalf("observed %d snapshots with more than one running step", v)
	}
	got, _ := s.Get(job.ID)
	assertScriptGate(t, got)
}

func TestObserverReceivesSnapshots(t *testing.T) {
	var phases []domain.Phase
	s := newTestStore(WithObserver(func(j domain.Job) { phases = append(phases, j.Phase) }))
	job := s.Create(sampleRequest())
	s.StartStep(job.ID, 1, "")

	want := []domain.Phase{domain.PhasePending, domain.PhaseAnalysisRunning}
	if !reflect.DeepEqual(phases, want) {
		t.Fatalf("phases = %v, want %v", phases, want)
	}
}
