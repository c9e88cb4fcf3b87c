// Package storage defines the RepositoryStore abstraction: one small,
// context-first interface per persisted entity, matching the spec's
// "abstract repository with the entities of §3" framing. Two implementations
// exist: internal/storage/memory (tests, local runs) and
// internal/storage/postgres (production).
package storage

import (
	"context"
	"time"

	"github.com/r3elabs/execforge/internal/domain/executionlog"
	"github.com/r3elabs/execforge/internal/domain/persistentservice"
	"github.com/r3elabs/execforge/internal/domain/scheduledjob"
	"github.com/r3elabs/execforge/internal/domain/secret"
	"github.com/r3elabs/execforge/internal/domain/webhookjob"
)

// ScheduledJobStore persists ScheduledJob rows.
type ScheduledJobStore interface {
	CreateJob(ctx context.Context, job scheduledjob.Job) (scheduledjob.Job, error)
	UpdateJob(ctx context.Context, job scheduledjob.Job) (scheduledjob.Job, error)
	GetJob(ctx context.Context, id string) (scheduledjob.Job, error)
	ListJobs(ctx context.Context) ([]scheduledjob.Job, error)
	ListActiveJobs(ctx context.Context) ([]scheduledjob.Job, error)
	DeleteJob(ctx context.Context, id string) error
	TouchLastRun(ctx context.Context, id string, ranAt time.Time) error
}

// WebhookJobStore persists WebhookJob rows.
type WebhookJobStore interface {
	CreateWebhookJob(ctx context.Context, job webhookjob.Job) (webhookjob.Job, error)
	UpdateWebhookJob(ctx context.Context, job webhookjob.Job) (webhookjob.Job, error)
	GetWebhookJob(ctx context.Context, id string) (webhookjob.Job, error)
	GetWebhookJobByEndpoint(ctx context.Context, endpoint string) (webhookjob.Job, error)
	ListWebhookJobs(ctx context.Context) ([]webhookjob.Job, error)
	ListActiveWebhookJobs(ctx context.Context) ([]webhookjob.Job, error)
	DeleteWebhookJob(ctx context.Context, id string) error
	TouchLastTriggered(ctx context.Context, id string, triggeredAt time.Time) error
}

// PersistentServiceStore persists PersistentService rows.
type PersistentServiceStore interface {
	CreateService(ctx context.Context, svc persistentservice.Service) (persistentservice.Service, error)
	UpdateService(ctx context.Context, svc persistentservice.Service) (persistentservice.Service, error)
	GetService(ctx context.Context, id string) (persistentservice.Service, error)
	GetServiceByName(ctx context.Context, name string) (persistentservice.Service, error)
	ListServices(ctx context.Context) ([]persistentservice.Service, error)
	DeleteService(ctx context.Context, id string) error
}

// SecretStore persists Secret rows.
type SecretStore interface {
	SetSecret(ctx context.Context, s secret.Secret) (secret.Secret, error)
	GetSecret(ctx context.Context, name string) (secret.Secret, error)
	ListSecretNames(ctx context.Context) ([]string, error)
	ListSecretMetadata(ctx context.Context) ([]secret.Metadata, error)
	ListSecrets(ctx context.Context) ([]secret.Secret, error)
	DeleteSecret(ctx context.Context, name string) (bool, error)
}

// ExecutionLogFilter narrows ListLogs.
type ExecutionLogFilter struct {
	JobID        string
	WebhookJobID string
	Limit        int
	Offset       int
}

// ExecutionLogStore persists the append-only ExecutionLog.
type ExecutionLogStore interface {
	AppendLog(ctx context.Context, entry executionlog.Log) (executionlog.Log, error)
	GetLog(ctx context.Context, id string) (executionlog.Log, error)
	ListLogs(ctx context.Context, filter ExecutionLogFilter) ([]executionlog.Log, error)
}

// SchemaStore reports the persisted schema version.
type SchemaStore interface {
	SchemaVersion(ctx context.Context) (string, error)
}

// Store is the union of all per-entity stores — the RepositoryStore of
// spec.md §2.
type Store interface {
	ScheduledJobStore
	WebhookJobStore
	PersistentServiceStore
	SecretStore
	ExecutionLogStore
	SchemaStore
}
