package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/r3elabs/execforge/internal/domain/executionlog"
	"github.com/r3elabs/execforge/internal/domain/scheduledjob"
	"github.com/r3elabs/execforge/internal/domain/secret"
	"github.com/r3elabs/execforge/internal/storage"
)

func newTestStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := Open(dsn)
	require.NoError(t, err)

	require.NoError(t, Migrate(db.DB))
	require.NoError(t, resetTables(db))

	t.Cleanup(func() {
		_ = resetTables(db)
		_ = db.Close()
	})

	return New(db), context.Background()
}

func resetTables(db *sqlx.DB) error {
	_, err := db.Exec(`
		TRUNCATE
			execution_logs,
			secrets,
			persistent_services,
			webhook_jobs,
			scheduled_jobs
		RESTART IDENTITY CASCADE
	`)
	return err
}

func TestStoreScheduledJobCRUD(t *testing.T) {
	store, ctx := newTestStore(t)

	job := scheduledjob.Job{
		Name:     "nightly-report",
		Code:     "print('hi')",
		CronExpr: "0 2 * * *",
		TimeoutS: scheduledjob.DefaultTimeoutS,
		IsActive: true,
	}
	created, err := store.CreateJob(ctx, job)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	fetched, err := store.GetJob(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.Code, fetched.Code)

	fetched.Code = "print('updated')"
	updated, err := store.UpdateJob(ctx, fetched)
	require.NoError(t, err)
	require.Equal(t, "print('updated')", updated.Code)

	active, err := store.ListActiveJobs(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, store.TouchLastRun(ctx, created.ID, time.Now().UTC()))
	require.NoError(t, store.DeleteJob(ctx, created.ID))

	_, err = store.GetJob(ctx, created.ID)
	require.Error(t, err)
}

func TestStoreSecretRoundTrip(t *testing.T) {
	store, ctx := newTestStore(t)

	saved, err := store.SetSecret(ctx, secret.Secret{Name: "API_KEY", Ciphertext: []byte("encrypted"), Description: "third party api key"})
	require.NoError(t, err)
	require.Equal(t, "API_KEY", saved.Name)

	names, err := store.ListSecretNames(ctx)
	require.NoError(t, err)
	require.Contains(t, names, "API_KEY")

	deleted, err := store.DeleteSecret(ctx, "API_KEY")
	require.NoError(t, err)
	require.True(t, deleted)
}

func TestStoreExecutionLogFilter(t *testing.T) {
	store, ctx := newTestStore(t)

	entry := executionlog.Log{
		Code:      "1+1",
		Output:    "2",
		Status:    executionlog.StatusSuccess,
		StartedAt: time.Now().UTC(),
	}
	logged, err := store.AppendLog(ctx, entry)
	require.NoError(t, err)
	require.NotEmpty(t, logged.ID)

	got, err := store.GetLog(ctx, logged.ID)
	require.NoError(t, err)
	require.Equal(t, "2", got.Output)

	list, err := store.ListLogs(ctx, storage.ExecutionLogFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
}
