package jobstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"autovideo/internal/domain"
)

// Observer receives a snapshot after every mutation. It runs while the store
// lock is held and must not block or call back into the store.
type Observer func(domain.Job)

// Option configures a Store.
type Option func(*Store)

// WithObserver registers fn to be called after each mutation.
func WithObserver(fn Observer) Option {
	return func(s *Store) {
		if fn != nil {
			s.observers = append(s.observers, fn)
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides job id allocation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

type record struct {
	job       domain.Job
	artifacts map[domain.ArtifactKind]domain.Artifact
	scheduled domain.Phase
}

// Store is the in-memory registry of jobs and their intermediate artifacts.
// It is the only shared mutable state of the pipeline.
type Store struct {
	mu        sync.RWMutex
	jobs      map[string]*record
	order     []string
	observers []Observer
	now       func() time.Time
	newID     func() string
}

// New constructs an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		jobs:  make(map[string]*record),
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new job with all seven steps pending.
func (s *Store) Create(req domain.GenerateRequest) domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := domain.Job{
		ID:        s.newID(),
		Status:    domain.JobStatusPending,
		Phase:     domain.PhasePending,
		Config:    req.Clone(),
		Steps:     domain.NewPipelineSteps(),
		CreatedAt: s.now(),
	}
	rec := &record{
		job:       job,
		artifacts: map[domain.ArtifactKind]domain.Artifact{domain.ArtifactRequest: req.Clone()},
	}
	s.jobs[job.ID] = rec
	s.order = append(s.order, job.ID)
	s.notify(rec)
	return job.Clone()
}

// Get returns a snapshot of the job.
func (s *Store) Get(id string) (domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	return rec.job.Clone(), nil
}

// List returns snapshots of every job in insertion order.
func (s *Store) List() []domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Job, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.jobs[id].job.Clone())
	}
	return out
}

// SetArtifact stores a under its kind, replacing any previous value.
// Artifacts are shared read-only values; callers must not mutate them after storing.
func (s *Store) SetArtifact(id string, a domain.Artifact) error {
	if a == nil {
		return fmt.Errorf("set artifact on job %s: nil artifact", id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	rec.artifacts[a.Kind()] = a
	return nil
}

// GetArtifact returns the artifact stored under kind.
func (s *Store) GetArtifact(id string, kind domain.ArtifactKind) (domain.Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	a, ok := rec.artifacts[kind]
	return a, ok
}

// HasArtifact reports whether an artifact of the given kind is present.
func (s *Store) HasArtifact(id string, kind domain.ArtifactKind) bool {
	_, ok := s.GetArtifact(id, kind)
	return ok
}

// Artifact returns the typed artifact for job id.
func Artifact[T domain.Artifact](s *Store, id string) (T, bool) {
	var zero T
	a, ok := s.GetArtifact(id, zero.Kind())
	if !ok {
		return zero, false
	}
	v, ok := a.(T)
	return v, ok
}

// ResetFrom forces every step with ordinal >= from back to pending, puts the
// job back to running and clears its error. Artifacts are left untouched.
func (s *Store) ResetFrom(id string, from int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	resetFrom(&rec.job, from)
	s.notify(rec)
	return nil
}

func resetFrom(job *domain.Job, from int) {
	for i := range job.Steps {
		if job.Steps[i].Step < from {
			continue
		}
		job.Steps[i].Status = domain.StepStatusPending
		job.Steps[i].Message = ""
		job.Steps[i].StartedAt = nil
		job.Steps[i].CompletedAt = nil
	}
	job.Status = domain.JobStatusRunning
	job.Error = ""
	job.Result = nil
	job.CompletedAt = nil
}

// StartStep marks the step running and moves the cursor to it.
// It panics when the job does not exist.
func (s *Store) StartStep(id string, ordinal int, message string) {
	s.mutate(id, func(job *domain.Job, now time.Time) {
		job.Status = domain.JobStatusRunning
		job.CurrentStep = ordinal
		if step := stepAt(job, ordinal); step != nil {
			step.Status = domain.StepStatusRunning
			step.Message = message
			step.StartedAt = &now
			step.CompletedAt = nil
		}
	})
}

// CompleteStep marks the step completed. The job status is unchanged.
func (s *Store) CompleteStep(id string, ordinal int, message string) {
	s.mutate(id, func(job *domain.Job, now time.Time) {
		if step := stepAt(job, ordinal); step != nil {
			step.Status = domain.StepStatusCompleted
			step.Message = message
			step.CompletedAt = &now
		}
	})
}

// FailStep fails the job and the step with the same message.
func (s *Store) FailStep(id string, ordinal int, msg string) {
	s.mutate(id, func(job *domain.Job, now time.Time) {
		failStep(job, ordinal, msg, now)
	})
}

func failStep(job *domain.Job, ordinal int, msg string, now time.Time) {
	job.Status = domain.JobStatusFailed
	job.Error = msg
	job.CurrentStep = ordinal
	if step := stepAt(job, ordinal); step != nil {
		step.Status = domain.StepStatusFailed
		step.Message = msg
		step.CompletedAt = &now
	}
}

// CompleteJob attaches the result and marks the job completed.
func (s *Store) CompleteJob(id string, result domain.JobResult) {
	s.mutate(id, func(job *domain.Job, now time.Time) {
		job.Status = domain.JobStatusCompleted
		job.Result = &result
		job.Error = ""
		job.CompletedAt = &now
	})
}

// FailJob marks the job failed. When ordinal is non-zero the step fails too.
func (s *Store) FailJob(id string, msg string, ordinal int) {
	s.mutate(id, func(job *domain.Job, now time.Time) {
		job.Status = domain.JobStatusFailed
		job.Error = msg
		job.CompletedAt = &now
		if ordinal > 0 {
			failStep(job, ordinal, msg, now)
		}
	})
}

// View is the read-only state a trigger check inspects.
type View struct {
	Job       domain.Job
	artifacts map[domain.ArtifactKind]domain.Artifact
}

// Has reports whether the job carries an artifact of kind.
func (v View) Has(kind domain.ArtifactKind) bool {
	_, ok := v.artifacts[kind]
	return ok
}

// Begin atomically claims the job for phase: the job must exist, have no
// other phase scheduled and satisfy check. On success steps >= from are reset
// (when from > 0) and the job reports phase until End is called.
// check runs under the store lock and must not call back into the store.
func (s *Store) Begin(id string, from int, phase domain.Phase, check func(View) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	if rec.scheduled != "" {
		return fmt.Errorf("job %s is %s: %w", id, rec.scheduled, domain.ErrJobBusy)
	}
	if check != nil {
		if err := check(View{Job: rec.job, artifacts: rec.artifacts}); err != nil {
			return err
		}
	}
	if from > 0 {
		resetFrom(&rec.job, from)
	}
	rec.scheduled = phase
	s.notify(rec)
	return nil
}

// End releases the claim taken by Begin.
func (s *Store) End(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return
	}
	rec.scheduled = ""
	s.notify(rec)
}

func (s *Store) mutate(id string, fn func(*domain.Job, time.Time)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		panic(fmt.Sprintf("jobstore: unknown job %q", id))
	}
	fn(&rec.job, s.now())
	s.notify(rec)
}

// notify recomputes the stored phase and fans the snapshot out. Callers hold mu.
func (s *Store) notify(rec *record) {
	rec.job.Phase = domain.DerivePhase(rec.job, rec.scheduled)
	if len(s.observers) == 0 {
		return
	}
	snapshot := rec.job.Clone()
	for _, fn := range s.observers {
		fn(snapshot)
	}
}

func stepAt(job *domain.Job, ordinal int) *domain.PipelineStep {
	if ordinal < 1 || ordinal > len(job.Steps) {
		return nil
	}
	return &job.Steps[ordinal-1]
}
