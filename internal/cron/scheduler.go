// Package cron implements the CronScheduler component: a live mirror of
// active ScheduledJob rows, firing the ExecutionEngine on each job's cron
// expression.
package cron

import (
	"context"
	"sync"
	"time"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/r3elabs/execforge/internal/domain/executionlog"
	"github.com/r3elabs/execforge/internal/domain/scheduledjob"
	"github.com/r3elabs/execforge/internal/execution"
	"github.com/r3elabs/execforge/pkg/logger"
)

// Store is the subset of storage.Store the scheduler needs.
type Store interface {
	ListActiveJobs(ctx context.Context) ([]scheduledjob.Job, error)
	TouchLastRun(ctx context.Context, id string, ranAt time.Time) error
	AppendLog(ctx context.Context, entry executionlog.Log) (executionlog.Log, error)
}

// Engine runs a job's code inside a sandbox.
type Engine interface {
	Execute(ctx context.Context, code string, packages []string, timeoutS int, boundSandbox string) (execution.Result, error)
}

// Scheduler is the CronScheduler component.
type Scheduler struct {
	store  Store
	engine Engine
	log    *logger.Logger

	mu      sync.Mutex
	cron    *robfigcron.Cron
	entries map[string]robfigcron.EntryID // job id -> cron entry
}

// New constructs a Scheduler.
func New(store Store, engine Engine, log *logger.Logger) *Scheduler {
	return &Scheduler{
		store:   store,
		engine:  engine,
		log:     log,
		cron:    robfigcron.New(),
		entries: make(map[string]robfigcron.EntryID),
	}
}

// Start begins firing cron entries and performs an initial Reload.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the underlying cron runner, waiting for in-flight jobs.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	return nil
}

// Reload rebuilds the in-memory schedule from the store, called at startup
// and after create/update of a ScheduledJob.
func (s *Scheduler) Reload(ctx context.Context) error {
	jobs, err := s.store.ListActiveJobs(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.entries {
		s.cron.Remove(entry)
	}
	s.entries = make(map[string]robfigcron.EntryID)

	for _, job := range jobs {
		job := job
		id, err := s.cron.AddFunc(job.CronExpr, func() { s.fire(job) })
		if err != nil {
			s.log.WithField("job", job.ID).WithField("error", err.Error()).Warn("invalid cron expression, skipping")
			continue
		}
		s.entries[job.ID] = id
	}
	return nil
}

func (s *Scheduler) fire(job scheduledjob.Job) {
	ctx := context.Background()
	timeout := job.TimeoutS
	if timeout == 0 {
		timeout = scheduledjob.DefaultTimeoutS
	}

	started := time.Now().UTC()
	result, err := s.engine.Execute(ctx, job.Code, job.PackageSet, timeout, job.BoundSandbox)

	entry := executionlog.Log{
		Parent:    executionlog.Parent{Kind: executionlog.ParentScheduled, ID: job.ID},
		Code:      job.Code,
		StartedAt: started,
	}
	if err != nil {
		entry.Status = executionlog.StatusError
		entry.Error = err.Error()
	} else {
		entry.Status = result.Status()
		entry.Output = result.Output
		entry.Error = result.Error
		entry.SandboxID = result.SandboxID
		entry.ExecutionTimeS = result.ExecutionTimeS
		metrics := result.Metrics
		entry.Metrics = &metrics
	}

	if _, appendErr := s.store.AppendLog(ctx, entry); appendErr != nil {
		s.log.WithField("job", job.ID).WithField("error", appendErr.Error()).Warn("append execution log failed")
	}
	if touchErr := s.store.TouchLastRun(ctx, job.ID, started); touchErr != nil {
		s.log.WithField("job", job.ID).WithField("error", touchErr.Error()).Warn("touch last_run failed")
	}
}
