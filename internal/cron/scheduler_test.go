package cron_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/r3elabs/execforge/internal/cron"
	"github.com/r3elabs/execforge/internal/domain/executionlog"
	"github.com/r3elabs/execforge/internal/domain/scheduledjob"
	"github.com/r3elabs/execforge/internal/execution"
	"github.com/r3elabs/execforge/pkg/logger"
)

type fakeStore struct {
	mu      sync.Mutex
	jobs    []scheduledjob.Job
	logs    []executionlog.Log
	touched []string
}

func (f *fakeStore) ListActiveJobs(context.Context) ([]scheduledjob.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scheduledjob.Job{}, f.jobs...), nil
}

func (f *fakeStore) TouchLastRun(_ context.Context, id string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeStore) AppendLog(_ context.Context, entry executionlog.Log) (executionlog.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, entry)
	return entry, nil
}

type fakeEngine struct {
	calls int
}

func (f *fakeEngine) Execute(context.Context, string, []string, int, string) (execution.Result, error) {
	f.calls++
	return execution.Result{Success: true, Output: "ok"}, nil
}

func TestReloadSkipsInvalidCronExpressions(t *testing.T) {
	store := &fakeStore{jobs: []scheduledjob.Job{
		{ID: "good", CronExpr: "* * * * *", IsActive: true},
		{ID: "bad", CronExpr: "not-a-cron", IsActive: true},
	}}
	engine := &fakeEngine{}
	s := cron.New(store, engine, logger.NewDefault("cron"))

	require.NoError(t, s.Reload(context.Background()))
}

func TestReloadAfterStartIsIdempotent(t *testing.T) {
	store := &fakeStore{jobs: []scheduledjob.Job{{ID: "job-1", Name: "tick", CronExpr: "* * * * *", IsActive: true}}}
	engine := &fakeEngine{}
	s := cron.New(store, engine, logger.NewDefault("cron"))
	require.NoError(t, s.Reload(context.Background()))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	// Directly invoke the reload path again to confirm it is idempotent
	// rather than waiting on a real minute boundary for the cron tick.
	require.NoError(t, s.Reload(context.Background()))
}
