package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/r3elabs/execforge/internal/domain/executionlog"
	"github.com/r3elabs/execforge/internal/domain/scheduledjob"
	"github.com/r3elabs/execforge/internal/domain/secret"
	"github.com/r3elabs/execforge/internal/domain/webhookjob"
	"github.com/r3elabs/execforge/internal/storage"
	"github.com/r3elabs/execforge/internal/storage/memory"
)

func TestScheduledJobCRUD(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	job, err := store.CreateJob(ctx, scheduledjob.Job{Name: "tick", CronExpr: "* * * * *", IsActive: true})
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)

	job.Name = "tick-renamed"
	updated, err := store.UpdateJob(ctx, job)
	require.NoError(t, err)
	require.Equal(t, "tick-renamed", updated.Name)

	active, err := store.ListActiveJobs(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, store.DeleteJob(ctx, job.ID))
	_, err = store.GetJob(ctx, job.ID)
	require.Error(t, err)
}

func TestWebhookJobEndpointUniqueness(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	_, err := store.CreateWebhookJob(ctx, webhookjob.Job{Name: "echo", Endpoint: "/echo", IsActive: true})
	require.NoError(t, err)

	_, err = store.CreateWebhookJob(ctx, webhookjob.Job{Name: "echo2", Endpoint: "/echo", IsActive: true})
	require.Error(t, err)

	found, err := store.GetWebhookJobByEndpoint(ctx, "/echo")
	require.NoError(t, err)
	require.Equal(t, "echo", found.Name)
}

func TestSecretRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	_, err := store.SetSecret(ctx, secret.Secret{Name: "API_KEY", Ciphertext: []byte("cipher")})
	require.NoError(t, err)

	got, err := store.GetSecret(ctx, "api_key")
	require.NoError(t, err)
	require.Equal(t, "API_KEY", got.Name)

	deleted, err := store.DeleteSecret(ctx, "API_KEY")
	require.NoError(t, err)
	require.True(t, deleted)

	_, err = store.GetSecret(ctx, "API_KEY")
	require.Error(t, err)
}

func TestExecutionLogFilteringAndPagination(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	for i := 0; i < 3; i++ {
		_, err := store.AppendLog(ctx, executionlog.Log{
			Parent: executionlog.Parent{Kind: executionlog.ParentScheduled, ID: "job-1"},
			Status: executionlog.StatusSuccess,
		})
		require.NoError(t, err)
	}
	_, err := store.AppendLog(ctx, executionlog.Log{Status: executionlog.StatusSuccess})
	require.NoError(t, err)

	logs, err := store.ListLogs(ctx, storage.ExecutionLogFilter{JobID: "job-1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, logs, 3)

	page, err := store.ListLogs(ctx, storage.ExecutionLogFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
}
