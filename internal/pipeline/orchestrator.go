package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"autovideo/internal/domain"
	"autovideo/internal/jobstore"
)

const defaultStageTimeout = 10 * time.Minute

// Options tunes an Orchestrator.
type Options struct {
	// StageTimeout bounds every external stage call.
	StageTimeout time.Duration
	// Prober re-derives the narration duration before assembly.
	Prober AudioProber
	// Ready reports whether the providers needed to start a job are configured.
	Ready func(ctx context.Context) error
	// BaseContext is the parent of every stage context; cancel it on shutdown.
	BaseContext context.Context
	Logger      *zerolog.Logger
}

// Orchestrator sequences stages into phases separated by approval gates.
// It keeps no job state; everything lives in the store.
type Orchestrator struct {
	store   *jobstore.Store
	stages  Stages
	pool    Submitter
	timeout time.Duration
	prober  AudioProber
	ready   func(ctx context.Context) error
	baseCtx context.Context
	logger  zerolog.Logger

	// dispatch runs the pool submission of a claimed phase. It defaults to a
	// new goroutine so a saturated pool never blocks the caller.
	dispatch func(submit func())
	inflight sync.WaitGroup
}

// New wires an orchestrator over store, driving stages on pool.
func New(store *jobstore.Store, stages Stages, pool Submitter, opts Options) *Orchestrator {
	o := &Orchestrator{
		store:   store,
		stages:  stages,
		pool:    pool,
		timeout: opts.StageTimeout,
		prober:  opts.Prober,
		ready:   opts.Ready,
		baseCtx: opts.BaseContext,
		logger:  zerolog.Nop(),
	}
	o.dispatch = func(submit func()) { go submit() }
	if o.timeout <= 0 {
		o.timeout = defaultStageTimeout
	}
	if o.baseCtx == nil {
		o.baseCtx = context.Background()
	}
	if opts.Logger != nil {
		o.logger = *opts.Logger
	}
	return o
}

// Generate validates req, creates a job and schedules prompt analysis and
// script generation.
func (o *Orchestrator) Generate(ctx context.Context, req domain.GenerateRequest) (domain.Job, error) {
	if o.ready != nil {
		if err := o.ready(ctx); err != nil {
			return domain.Job{}, err
		}
	}
	if err := req.Validate(); err != nil {
		return domain.Job{}, err
	}
	job := o.store.Create(req)
	o.logger.Info().Str("job_id", job.ID).Str("title", req.Title).Msg("pipeline: job created")
	if err := o.schedule(job.ID, 0, domain.PhaseAnalysisRunning, nil, o.runAnalysisPhase); err != nil {
		return domain.Job{}, err
	}
	return o.store.Get(job.ID)
}

// ApproveScript accepts the script and schedules voice generation.
func (o *Orchestrator) ApproveScript(id string) error {
	return o.schedule(id, domain.StepVoice, domain.PhaseVoiceRunning, func(v jobstore.View) error {
		if v.Job.StepStatus(domain.StepScript) != domain.StepStatusCompleted {
			return domain.PreconditionError("script has not been generated yet")
		}
		if !v.Has(domain.ArtifactScript) {
			return domain.PreconditionError("no script found for this job")
		}
		return nil
	}, o.runVoicePhase)
}

// ApproveVoice accepts the voiceover and schedules footage through export.
func (o *Orchestrator) ApproveVoice(id string) error {
	return o.schedule(id, domain.StepFootage, domain.PhaseAssemblyRunning, func(v jobstore.View) error {
		if v.Job.StepStatus(domain.StepVoice) != domain.StepStatusCompleted {
			return domain.PreconditionError("voiceover has not been generated yet")
		}
		if !v.Has(domain.ArtifactVoice) {
			return domain.PreconditionError("no voiceover found for this job")
		}
		return nil
	}, o.runAssemblyPhase)
}

// EditScript schedules a rewrite of the script following instruction.
func (o *Orchestrator) EditScript(id, instruction string) error {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return domain.ValidationError("instruction", "is required")
	}
	return o.schedule(id, domain.StepScript, domain.PhaseScriptEditRunning, func(v jobstore.View) error {
		if !v.Has(domain.ArtifactScript) || !v.Has(domain.ArtifactRequest) {
			return domain.PreconditionError("no script found for this job")
		}
		return nil
	}, func(id string) { o.runScriptEditPhase(id, instruction) })
}

// RegenerateVoice schedules a fresh voiceover for the current script.
func (o *Orchestrator) RegenerateVoice(id string) error {
	return o.schedule(id, domain.StepVoice, domain.PhaseVoiceRunning, func(v jobstore.View) error {
		if !v.Has(domain.ArtifactScript) {
			return domain.PreconditionError("no script found for this job")
		}
		return nil
	}, o.runVoicePhase)
}

// Job returns a snapshot of the job.
func (o *Orchestrator) Job(id string) (domain.Job, error) {
	return o.store.Get(id)
}

// Jobs returns every job, most recent first.
func (o *Orchestrator) Jobs() []domain.Job {
	jobs := o.store.List()
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// Script returns the current script artifact of the job.
func (o *Orchestrator) Script(id string) (domain.Script, error) {
	if _, err := o.store.Get(id); err != nil {
		return domain.Script{}, err
	}
	script, ok := jobstore.Artifact[domain.Script](o.store, id)
	if !ok {
		return domain.Script{}, domain.NotReadyError("script")
	}
	return script, nil
}

// Voice returns the current voice artifact of the job.
func (o *Orchestrator) Voice(id string) (domain.VoiceTrack, error) {
	if _, err := o.store.Get(id); err != nil {
		return domain.VoiceTrack{}, err
	}
	voice, ok := jobstore.Artifact[domain.VoiceTrack](o.store, id)
	if !ok {
		return domain.VoiceTrack{}, domain.NotReadyError("voiceover")
	}
	return voice, nil
}

// Drain waits until every scheduled phase has finished or ctx is done. Call
// it once no new triggers can arrive.
func (o *Orchestrator) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// schedule claims the job for phase and hands run to the worker pool. The
// claim is synchronous; waiting for a free worker is not. A rejected
// submission fails the job with a scheduler error and releases the claim.
func (o *Orchestrator) schedule(id string, from int, phase domain.Phase, check func(jobstore.View) error, run func(id string)) error {
	if err := o.store.Begin(id, from, phase, check); err != nil {
		return err
	}
	o.inflight.Add(1)
	task := func() {
		defer o.inflight.Done()
		defer o.store.End(id)
		defer o.recoverPhase(id, phase)
		o.logger.Info().Str("job_id", id).Str("phase", string(phase)).Msg("pipeline: phase started")
		run(id)
	}
	o.dispatch(func() {
		if err := o.pool.Submit(task); err != nil {
			o.logger.Error().Err(err).Str("job_id", id).Str("phase", string(phase)).Msg("pipeline: submit failed")
			o.store.FailJob(id, fmt.Sprintf("%s: %v", domain.CategoryScheduler, err), 0)
			o.store.End(id)
			o.inflight.Done()
		}
	})
	return nil
}

func (o *Orchestrator) recoverPhase(id string, phase domain.Phase) {
	r := recover()
	if r == nil {
		return
	}
	job, err := o.store.Get(id)
	step := 0
	if err == nil {
		step = job.CurrentStep
	}
	msg := fmt.Sprintf("%s: %v", domain.CategoryPanic, r)
	o.logger.Error().Str("job_id", id).Str("phase", string(phase)).Interface("panic", r).Msg("pipeline: phase panicked")
	o.store.FailJob(id, msg, step)
}

// runStep drives one step through its lifecycle. It reports whether the
// phase may continue.
func (o *Orchestrator) runStep(id string, ordinal int, startMsg string, fn func(ctx context.Context) (string, error)) bool {
	o.store.StartStep(id, ordinal, startMsg)
	started := time.Now()
	summary, err := o.call(fn)
	if err != nil {
		msg := Describe(err)
		o.logger.Error().Err(err).Str("job_id", id).Int("step", ordinal).Msg("pipeline: step failed")
		o.store.FailJob(id, msg, ordinal)
		return false
	}
	o.logger.Info().Str("job_id", id).Int("step", ordinal).Dur("elapsed", time.Since(started)).Msg("pipeline: step completed")
	o.store.CompleteStep(id, ordinal, summary)
	return true
}

func (o *Orchestrator) call(fn func(ctx context.Context) (string, error)) (summary string, err error) {
	ctx, cancel := context.WithTimeout(o.baseCtx, o.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = domain.StageErrorf(domain.CategoryPanic, "%v", r)
		}
	}()
	return fn(ctx)
}

// missingData fails ordinal without starting it.
func (o *Orchestrator) missingData(id string, ordinal int, msg string) {
	o.logger.Error().Str("job_id", id).Int("step", ordinal).Msg("pipeline: " + msg)
	o.store.FailJob(id, fmt.Sprintf("%s: %s", domain.CategoryMissingData, msg), ordinal)
}
