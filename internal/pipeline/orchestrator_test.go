package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/panjf2000/ants/v2"

	"autovideo/internal/domain"
	"autovideo/internal/jobstore"
)

type inlineSubmitter struct{}

func (inlineSubmitter) Submit(task func()) error {
	task()
	return nil
}

type queueSubmitter struct {
	mu    sync.Mutex
	tasks []func()
}

func (q *queueSubmitter) Submit(task func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *queueSubmitter) drain() {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()
	for _, task := range tasks {
		task()
	}
}

type failingSubmitter struct{}

func (failingSubmitter) Submit(func()) error { return errors.New("pool overloaded") }

type fakeStages struct {
	analyzeErr  error
	analyzeHook func(ctx context.Context) error
	voiceErr    error
	footageErr  error
	voiceCalls  int
	editCalls   int
	footageSeen domain.VoiceTrack
}

func (f *fakeStages) Analyze(ctx context.Context, req domain.GenerateRequest) (domain.PromptAnalysis, error) {
	if f.analyzeHook != nil {
		if err := f.analyzeHook(ctx); err != nil {
			return domain.PromptAnalysis{}, err
		}
	}
	if f.analyzeErr != nil {
		return domain.PromptAnalysis{}, f.analyzeErr
	}
	return domain.PromptAnalysis{
		Topic:         req.Title,
		Tone:          "curious",
		Style:         "cinematic",
		TalkingPoints: []domain.TalkingPoint{{Index: 1}, {Index: 2}, {Index: 3}},
	}, nil
}

func (f *fakeStages) WriteScript(_ context.Context, _ domain.GenerateRequest, _ domain.PromptAnalysis) (domain.Script, error) {
	return domain.Script{
		FullText:       "one two",
		TotalWordCount: 300,
		Scenes: []domain.Scene{
			{SceneID: "s1", Name: "Intro", Narration: "one"},
			{SceneID: "s2", Name: "Outro", Narration: "two"},
		},
	}, nil
}

func (f *fakeStages) EditScript(_ context.Context, script domain.Script, instruction string) (domain.Script, error) {
	f.editCalls++
	script.FullText = instruction
	script.Scenes = script.Scenes[:1]
	script.TotalWordCount = 150
	return script, nil
}

func (f *fakeStages) GenerateVoice(_ context.Context, jobID string, script domain.Script, _ string) (domain.VoiceTrack, error) {
	f.voiceCalls++
	if f.voiceErr != nil {
		return domain.VoiceTrack{}, f.voiceErr
	}
	track := domain.VoiceTrack{AudioPath: "/tmp/" + jobID + "/voiceover.wav", TotalDurationSeconds: 10}
	step := 10.0 / float64(len(script.Scenes))
	for i, s := range script.Scenes {
		track.Scenes = append(track.Scenes, domain.SceneTiming{
			SceneID:   s.SceneID,
			StartTime: float64(i) * step,
			EndTime:   float64(i+1) * step,
			Duration:  step,
		})
	}
	return track, nil
}

func (f *fakeStages) SourceFootage(_ context.Context, _ string, script domain.Script, voice domain.VoiceTrack, _ domain.VideoFormat) (domain.FootageResult, error) {
	f.footageSeen = voice
	if f.footageErr != nil {
		return domain.FootageResult{}, f.footageErr
	}
	out := domain.FootageResult{}
	for i, s := range script.Scenes {
		sa := domain.SceneAssets{SceneID: s.SceneID}
		if i == 0 {
			sa.PrimaryAsset = &domain.AssetItem{AssetType: domain.AssetTypeVideo}
		}
		out.Scenes = append(out.Scenes, sa)
	}
	return out, nil
}

func (f *fakeStages) BuildBlueprint(_ context.Context, in domain.BlueprintInput) (domain.Blueprint, error) {
	bp := domain.Blueprint{TotalDuration: in.Voice.TotalDurationSeconds}
	for _, s := range in.Script.Scenes {
		bp.Scenes = append(bp.Scenes, domain.BlueprintScene{SceneID: s.SceneID})
	}
	return bp, nil
}

func (f *fakeStages) Assemble(_ context.Context, in domain.AssemblyInput) (domain.EditResult, error) {
	return domain.EditResult{VideoPath: "/tmp/" + in.JobID + "/final.mp4", DurationSeconds: in.Blueprint.TotalDuration}, nil
}

func (f *fakeStages) Export(_ context.Context, in domain.ExportInput) (domain.ExportResult, error) {
	dir := "/out/" + in.JobID + "/"
	return domain.ExportResult{
		FinalVideo:      dir + "final_video.mp4",
		ScriptFile:      dir + "script.txt",
		VoiceoverFile:   dir + "voiceover.wav",
		AssetListFile:   dir + "assets.json",
		TimelineFile:    dir + "timeline.json",
		DurationSeconds: in.Edit.DurationSeconds,
	}, nil
}

func (f *fakeStages) bundle() Stages {
	return Stages{
		Analyzer:  f,
		Writer:    f,
		Editor:    f,
		Voice:     f,
		Footage:   f,
		Blueprint: f,
		Assembler: f,
		Exporter:  f,
	}
}

func fixedProber(seconds float64) AudioProber {
	return AudioProberFunc(func(string) (float64, error) { return seconds, nil })
}

func newTestOrchestrator(stages *fakeStages, pool Submitter, opts Options) (*Orchestrator, *jobstore.Store) {
	store := jobstore.New()
	if opts.Prober == nil {
		opts.Prober = fixedProber(20)
	}
	o := New(store, stages.bundle(), pool, opts)
	o.dispatch = func(submit func()) { submit() }
	return o, store
}

func validRequest() domain.GenerateRequest {
	req := domain.GenerateRequest{Title: "Lost Cities", Prompt: "explore forgotten ancient cities"}
	req.Normalize("")
	return req
}

func TestGenerateStopsAtScriptGate(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeStages{}, inlineSubmitter{}, Options{})

	job, err := o.Generate(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if job.Phase != domain.PhaseAwaitingScriptApproval {
		t.Fatalf("Phase = %q, want %q", job.Phase, domain.PhaseAwaitingScriptApproval)
	}
	if job.Steps[0].Message != "Extracted 3 talking points | tone: curious" {
		t.Fatalf("step 1 message = %q", job.Steps[0].Message)
	}
	if job.Steps[1].Message != "2 scenes | ~300 words" {
		t.Fatalf("step 2 message = %q", job.Steps[1].Message)
	}
	if job.Steps[2].Status != domain.StepStatusPending {
		t.Fatalf("step 3 = %q, want pending", job.Steps[2].Status)
	}
}

func TestGenerateNotConfigured(t *testing.T) {
	o, store := newTestOrchestrator(&fakeStages{}, inlineSubmitter{}, Options{
		Ready: func(context.Context) error {
			return fmt.Errorf("ANTHROPIC_API_KEY: %w", domain.ErrNotConfigured)
		},
	})
	if _, err := o.Generate(context.Background(), validRequest()); !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("Generate error = %v, want ErrNotConfigured", err)
	}
	if n := len(store.List()); n != 0 {
		t.Fatalf("jobs created = %d, want 0", n)
	}
}

func TestGenerateInvalidRequest(t *testing.T) {
	o, store := newTestOrchestrator(&fakeStages{}, inlineSubmitter{}, Options{})
	req := validRequest()
	req.Prompt = "short"
	if _, err := o.Generate(context.Background(), req); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("Generate error = %v, want ErrInvalidRequest", err)
	}
	if n := len(store.List()); n != 0 {
		t.Fatalf("jobs created = %d, want 0", n)
	}
}

func TestFullRunCompletesWithRehydratedVoice(t *testing.T) {
	stages := &fakeStages{}
	o, _ := newTestOrchestrator(stages, inlineSubmitter{}, Options{Prober: fixedProber(20)})

	job, err := o.Generate(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := o.ApproveScript(job.ID); err != nil {
		t.Fatalf("ApproveScript: %v", err)
	}
	got, _ := o.Job(job.ID)
	if got.Phase != domain.PhaseAwaitingVoiceApproval {
		t.Fatalf("Phase = %q, want %q", got.Phase, domain.PhaseAwaitingVoiceApproval)
	}
	if got.Steps[2].Message != "Audio ready: ~10s" {
		t.Fatalf("step 3 message = %q", got.Steps[2].Message)
	}

	if err := o.ApproveVoice(job.ID); err != nil {
		t.Fatalf("ApproveVoice: %v", err)
	}
	got, _ = o.Job(job.ID)
	if got.Status != domain.JobStatusCompleted || got.Phase != domain.PhaseCompleted {
		t.Fatalf("job = %q/%q, want completed", got.Status, got.Phase)
	}
	if got.Result == nil {
		t.Fatalf("Result missing")
	}
	if want := "/api/download/" + job.ID + "/final_video.mp4"; got.Result.FinalVideo != want {
		t.Fatalf("FinalVideo = %q, want %q", got.Result.FinalVideo, want)
	}
	if got.Result.DurationSeconds != 20 {
		t.Fatalf("DurationSeconds = %v, want 20", got.Result.DurationSeconds)
	}
	if stages.footageSeen.TotalDurationSeconds != 20 || stages.footageSeen.Scenes[1].EndTime != 20 {
		t.Fatalf("footage saw stale voice timing: %+v", stages.footageSeen)
	}
	if got.Steps[3].Message != "Assets found for 1/2 scenes" {
		t.Fatalf("step 4 message = %q", got.Steps[3].Message)
	}
	if got.Steps[6].Message != "All deliverables ready!" {
		t.Fatalf("step 7 message = %q", got.Steps[6].Message)
	}
}

func TestStageFailureIsCategorized(t *testing.T) {
	stages := &fakeStages{analyzeErr: domain.StageErrorf(domain.CategoryAuth, "bad key")}
	o, _ := newTestOrchestrator(stages, inlineSubmitter{}, Options{})

	job, err := o.Generate(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("Status = %q, want failed", job.Status)
	}
	if job.Error != "AuthError: bad key" {
		t.Fatalf("Error = %q, want %q", job.Error, "AuthError: bad key")
	}
	if job.Steps[0].Status != domain.StepStatusFailed || job.Steps[1].Status != domain.StepStatusPending {
		t.Fatalf("steps = %q/%q", job.Steps[0].Status, job.Steps[1].Status)
	}
	if job.CurrentStep != domain.StepAnalysis {
		t.Fatalf("CurrentStep = %d, want 1", job.CurrentStep)
	}
}

func TestStagePanicIsCaptured(t *testing.T) {
	stages := &fakeStages{analyzeHook: func(context.Context) error { panic("nil scene") }}
	o, _ := newTestOrchestrator(stages, inlineSubmitter{}, Options{})

	job, err := o.Generate(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if job.Error != "PanicError: nil scene" {
		t.Fatalf("Error = %q", job.Error)
	}
}

func TestStageTimeout(t *testing.T) {
	stages := &fakeStages{analyzeHook: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	o, _ := newTestOrchestrator(stages, inlineSubmitter{}, Options{StageTimeout: 10 * time.Millisecond})

	job, err := o.Generate(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.HasPrefix(job.Error, domain.CategoryTimeout+": ") {
		t.Fatalf("Error = %q, want TimeoutError prefix", job.Error)
	}
}

func TestApproveBeforeReadyDoesNotMutate(t *testing.T) {
	stages := &fakeStages{analyzeErr: errors.New("down")}
	o, _ := newTestOrchestrator(stages, inlineSubmitter{}, Options{})
	job, _ := o.Generate(context.Background(), validRequest())
	before, _ := o.Job(job.ID)

	if err := o.ApproveScript(job.ID); !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("ApproveScript error = %v, want ErrPrecondition", err)
	}
	if err := o.ApproveVoice(job.ID); !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("ApproveVoice error = %v, want ErrPrecondition", err)
	}
	if err := o.RegenerateVoice(job.ID); !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("RegenerateVoice error = %v, want ErrPrecondition", err)
	}
	after, _ := o.Job(job.ID)
	if after.Status != before.Status || after.Error != before.Error || after.Phase != before.Phase {
		t.Fatalf("precondition failure mutated job: %+v -> %+v", before, after)
	}
}

func TestTriggersOnUnknownJob(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeStages{}, inlineSubmitter{}, Options{})
	if err := o.ApproveScript("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ApproveScript error = %v, want ErrNotFound", err)
	}
	if _, err := o.Job("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Job error = %v, want ErrNotFound", err)
	}
}

func TestEditScriptReturnsToGate(t *testing.T) {
	stages := &fakeStages{}
	o, store := newTestOrchestrator(stages, inlineSubmitter{}, Options{})
	job, _ := o.Generate(context.Background(), validRequest())

	if err := o.EditScript(job.ID, "  "); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("EditScript empty error = %v, want ErrInvalidRequest", err)
	}
	if err := o.EditScript(job.ID, "make it shorter"); err != nil {
		t.Fatalf("EditScript: %v", err)
	}
	got, _ := o.Job(job.ID)
	if got.Phase != domain.PhaseAwaitingScriptApproval {
		t.Fatalf("Phase = %q, want %q", got.Phase, domain.PhaseAwaitingScriptApproval)
	}
	if got.Steps[0].Status != domain.StepStatusCompleted || got.Steps[1].Status != domain.StepStatusCompleted {
		t.Fatalf("steps = %q/%q", got.Steps[0].Status, got.Steps[1].Status)
	}
	script, _ := jobstore.Artifact[domain.Script](store, job.ID)
	if script.FullText != "make it shorter" || len(script.Scenes) != 1 {
		t.Fatalf("script not replaced: %+v", script)
	}
	if got.Steps[1].Message != "1 scenes | ~150 words" {
		t.Fatalf("step 2 message = %q", got.Steps[1].Message)
	}
}

func TestEditFromVoiceGateResetsVoice(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeStages{}, inlineSubmitter{}, Options{})
	job, _ := o.Generate(context.Background(), validRequest())
	_ = o.ApproveScript(job.ID)

	if err := o.EditScript(job.ID, "new angle"); err != nil {
		t.Fatalf("EditScript: %v", err)
	}
	got, _ := o.Job(job.ID)
	if got.Steps[2].Status != domain.StepStatusPending {
		t.Fatalf("step 3 = %q, want pending", got.Steps[2].Status)
	}
	if err := o.ApproveVoice(job.ID); !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("ApproveVoice after edit error = %v, want ErrPrecondition", err)
	}
}

func TestRegenerateVoiceAfterFailure(t *testing.T) {
	stages := &fakeStages{voiceErr: domain.StageErrorf(domain.CategoryRateLimit, "quota exceeded")}
	o, _ := newTestOrchestrator(stages, inlineSubmitter{}, Options{})
	job, _ := o.Generate(context.Background(), validRequest())
	_ = o.ApproveScript(job.ID)

	got, _ := o.Job(job.ID)
	if got.Error != "RateLimitError: quota exceeded" || got.Steps[2].Status != domain.StepStatusFailed {
		t.Fatalf("job = %q / step 3 %q", got.Error, got.Steps[2].Status)
	}
	actions := domain.AvailableActions(got)
	if len(actions) == 0 || actions[len(actions)-1] != domain.ActionRegenerateVoice {
		t.Fatalf("AvailableActions = %v, want regenerate_voice", actions)
	}

	stages.voiceErr = nil
	if err := o.RegenerateVoice(job.ID); err != nil {
		t.Fatalf("RegenerateVoice: %v", err)
	}
	got, _ = o.Job(job.ID)
	if got.Status != domain.JobStatusRunning || got.Error != "" || got.Phase != domain.PhaseAwaitingVoiceApproval {
		t.Fatalf("job = %q/%q/%q", got.Status, got.Error, got.Phase)
	}
	if stages.voiceCalls != 2 {
		t.Fatalf("voice calls = %d, want 2", stages.voiceCalls)
	}
}

func TestDuplicateTriggerIsBusy(t *testing.T) {
	pool := &queueSubmitter{}
	o, _ := newTestOrchestrator(&fakeStages{}, pool, Options{})

	job, err := o.Generate(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if job.Phase != domain.PhaseAnalysisRunning {
		t.Fatalf("Phase = %q, want analysis_running while queued", job.Phase)
	}
	if err := o.EditScript(job.ID, "again"); !errors.Is(err, domain.ErrJobBusy) {
		t.Fatalf("EditScript while queued error = %v, want ErrJobBusy", err)
	}
	pool.drain()

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- o.ApproveScript(job.ID)
		}()
	}
	wg.Wait()
	close(results)

	accepted, busy := 0, 0
	for err := range results {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, domain.ErrJobBusy):
			busy++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if accepted != 1 || busy != 7 {
		t.Fatalf("accepted=%d busy=%d, want 1/7", accepted, busy)
	}
	pool.drain()
	got, _ := o.Job(job.ID)
	if got.Phase != domain.PhaseAwaitingVoiceApproval {
		t.Fatalf("Phase = %q, want %q", got.Phase, domain.PhaseAwaitingVoiceApproval)
	}
}

func TestSubmitFailureFailsJob(t *testing.T) {
	o, store := newTestOrchestrator(&fakeStages{}, failingSubmitter{}, Options{})
	if _, err := o.Generate(context.Background(), validRequest()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := o.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	jobs := store.List()
	if len(jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(jobs))
	}
	if jobs[0].Status != domain.JobStatusFailed || !strings.HasPrefix(jobs[0].Error, "SchedulerError: ") {
		t.Fatalf("job = %q/%q", jobs[0].Status, jobs[0].Error)
	}
	if jobs[0].Phase != domain.PhaseFailed {
		t.Fatalf("Phase = %q, want failed", jobs[0].Phase)
	}
}

func TestMissingVoiceFileFailsFootageStep(t *testing.T) {
	prober := AudioProberFunc(func(path string) (float64, error) {
		return 0, fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
	})
	o, _ := newTestOrchestrator(&fakeStages{}, inlineSubmitter{}, Options{Prober: prober})
	job, _ := o.Generate(context.Background(), validRequest())
	_ = o.ApproveScript(job.ID)
	if err := o.ApproveVoice(job.ID); err != nil {
		t.Fatalf("ApproveVoice: %v", err)
	}

	got, _ := o.Job(job.ID)
	if got.Status != domain.JobStatusFailed || got.Steps[3].Status != domain.StepStatusFailed {
		t.Fatalf("job/step 4 = %q/%q", got.Status, got.Steps[3].Status)
	}
	if !strings.HasPrefix(got.Error, domain.CategoryMissingData+": ") {
		t.Fatalf("Error = %q, want MissingDataError prefix", got.Error)
	}
	if got.Steps[4].Status != domain.StepStatusPending {
		t.Fatalf("step 5 = %q, want pending", got.Steps[4].Status)
	}
}

func TestJobsMostRecentFirst(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeStages{}, inlineSubmitter{}, Options{})
	first, _ := o.Generate(context.Background(), validRequest())
	time.Sleep(2 * time.Millisecond)
	second, _ := o.Generate(context.Background(), validRequest())

	jobs := o.Jobs()
	if len(jobs) != 2 || jobs[0].ID != second.ID || jobs[1].ID != first.ID {
		t.Fatalf("Jobs() order = %v", []string{jobs[0].ID, jobs[1].ID})
	}
}

func TestGenerateDoesNotWaitForSaturatedPool(t *testing.T) {
	pool, err := ants.NewPool(1)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Release()

	release := make(chan struct{})
	stages := &fakeStages{analyzeHook: func(ctx context.Context) error {
		<-release
		return nil
	}}
	store := jobstore.New()
	o := New(store, stages.bundle(), pool, Options{Prober: fixedProber(20)})

	accepted := make(chan string, 3)
	go func() {
		for i := 0; i < 3; i++ {
			job, err := o.Generate(context.Background(), validRequest())
			if err != nil {
				t.Errorf("Generate %d: %v", i, err)
				return
			}
			accepted <- job.ID
		}
	}()

	ids := make([]string, 0, 3)
	for len(ids) < 3 {
		select {
		case id := <-accepted:
			ids = append(ids, id)
		case <-time.After(2 * time.Second):
			close(release)
			t.Fatalf("Generate blocked with %d of 3 jobs accepted", len(ids))
		}
	}
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	for _, id := range ids {
		job, err := o.Job(id)
		if err != nil {
			t.Fatalf("Job(%s): %v", id, err)
		}
		if job.Phase != domain.PhaseAwaitingScriptApproval {
			t.Fatalf("job %s phase = %q, want %q", id, job.Phase, domain.PhaseAwaitingScriptApproval)
		}
	}
}

func TestArtifactsBeforeReadyAreNotFound(t *testing.T) {
	stages := &fakeStages{analyzeErr: errors.New("model unavailable")}
	o, _ := newTestOrchestrator(stages, inlineSubmitter{}, Options{})
	job, err := o.Generate(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if _, err := o.Script(job.ID); !errors.Is(err, domain.ErrNotReady) || !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Script error = %v, want not ready", err)
	}
	if _, err := o.Voice(job.ID); !errors.Is(err, domain.ErrNotReady) || !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Voice error = %v, want not ready", err)
	}
	if _, err := o.Script("missing"); !errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("Script(missing) error = %v, want plain not found", err)
	}
}
