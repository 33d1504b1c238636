// Package archive mirrors job snapshots into Postgres so that finished and
// failed jobs survive a restart for later inspection.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"autovideo/internal/domain"
	"autovideo/internal/infra"
	"autovideo/internal/sqlinline"
)

const (
	defaultBuffer = 256
	writeTimeout  = 5 * time.Second
)

// Archive receives snapshots from the job store without blocking it and
// writes them from a single goroutine.
type Archive struct {
	sql    infra.SQLExecutor
	logger *infra.Logger
	queue  chan domain.Job
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// New returns an archive with room for buffer pending snapshots.
func New(sql infra.SQLExecutor, buffer int, logger *infra.Logger) *Archive {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Archive{
		sql:    sql,
		logger: logger,
		queue:  make(chan domain.Job, buffer),
		done:   make(chan struct{}),
	}
}

// EnsureSchema creates the video_jobs table when missing.
func (a *Archive) EnsureSchema(ctx context.Context) error {
	_, err := a.sql.Exec(ctx, sqlinline.QCreateVideoJobs)
	return err
}

// Observe queues a snapshot. It never blocks; when the queue is full the
// snapshot is dropped and a later mutation of the same job will catch up.
// Snapshots observed after Close are ignored.
func (a *Archive) Observe(job domain.Job) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- job:
	default:
		a.logger.Warn().Str("job_id", job.ID).Str("phase", string(job.Phase)).Msg("archive: queue full, snapshot dropped")
	}
}

// Run drains the queue until Close is called. Snapshots still queued at
// that point are written before Run returns.
func (a *Archive) Run(ctx context.Context) {
	defer close(a.done)
	for job := range a.queue {
		if err := a.write(ctx, job); err != nil {
			a.logger.Error().Err(err).Str("job_id", job.ID).Msg("archive: write failed")
		}
	}
}

// Close stops accepting snapshots and waits for Run to flush the queue.
func (a *Archive) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Archive) write(ctx context.Context, job domain.Job) error {
	snapshot, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err = a.sql.Exec(ctx, sqlinline.QUpsertVideoJob,
		job.ID, string(job.Status), string(job.Phase), job.CurrentStep, snapshot, job.CreatedAt)
	return err
}
