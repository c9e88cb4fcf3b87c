// Package memory is a thread-safe, map-backed implementation of
// internal/storage.Store. It is intended for tests and for DATABASE_URL-less
// local runs, and deliberately keeps the implementation simple — the same
// goal the teacher's internal/app/storage/memory.go states for its own
// in-memory store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/r3elabs/execforge/internal/domain/executionlog"
	"github.com/r3elabs/execforge/internal/domain/persistentservice"
	"github.com/r3elabs/execforge/internal/domain/scheduledjob"
	"github.com/r3elabs/execforge/internal/domain/secret"
	"github.com/r3elabs/execforge/internal/domain/webhookjob"
	coreservice "github.com/r3elabs/execforge/internal/core/service"
	"github.com/r3elabs/execforge/internal/storage"
)

// Store is an in-memory implementation of storage.Store.
type Store struct {
	mu sync.RWMutex

	jobs        map[string]scheduledjob.Job
	webhookJobs map[string]webhookjob.Job
	services    map[string]persistentservice.Service
	secrets     map[string]secret.Secret
	logs        map[string]executionlog.Log
	logOrder    []string

	schemaVersion string
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		jobs:          make(map[string]scheduledjob.Job),
		webhookJobs:   make(map[string]webhookjob.Job),
		services:      make(map[string]persistentservice.Service),
		secrets:       make(map[string]secret.Secret),
		logs:          make(map[string]executionlog.Log),
		schemaVersion: "memory",
	}
}

func newID() string { return uuid.NewString() }

var _ storage.Store = (*Store)(nil)

// ScheduledJobStore ------------------------------------------------------

func (s *Store) CreateJob(_ context.Context, job scheduledjob.Job) (scheduledjob.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		job.ID = newID()
	} else if _, exists := s.jobs[job.ID]; exists {
		return scheduledjob.Job{}, fmt.Errorf("job %s already exists", job.ID)
	}
	now := time.Now().UTC()
	job.CreatedAt, job.UpdatedAt = now, now
	s.jobs[job.ID] = job
	return job, nil
}

func (s *Store) UpdateJob(_ context.Context, job scheduledjob.Job) (scheduledjob.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.jobs[job.ID]
	if !ok {
		return scheduledjob.Job{}, fmt.Errorf("job %s not found", job.ID)
	}
	job.CreatedAt = existing.CreatedAt
	job.UpdatedAt = time.Now().UTC()
	s.jobs[job.ID] = job
	return job, nil
}

func (s *Store) GetJob(_ context.Context, id string) (scheduledjob.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return scheduledjob.Job{}, fmt.Errorf("job %s not found", id)
	}
	return job, nil
}

func (s *Store) ListJobs(_ context.Context) ([]scheduledjob.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]scheduledjob.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListActiveJobs(ctx context.Context) ([]scheduledjob.Job, error) {
	all, err := s.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]scheduledjob.Job, 0, len(all))
	for _, j := range all {
		if j.IsActive {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *Store) DeleteJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("job %s not found", id)
	}
	delete(s.jobs, id)
	return nil
}

func (s *Store) TouchLastRun(_ context.Context, id string, ranAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	job.LastRun = &ranAt
	job.UpdatedAt = time.Now().UTC()
	s.jobs[id] = job
	return nil
}

// WebhookJobStore ----------------------------------------------------------

func (s *Store) CreateWebhookJob(_ context.Context, job webhookjob.Job) (webhookjob.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.webhookJobs {
		if existing.Endpoint == job.Endpoint {
			return webhookjob.Job{}, fmt.Errorf("endpoint %s already registered", job.Endpoint)
		}
	}
	if job.ID == "" {
		job.ID = newID()
	}
	now := time.Now().UTC()
	job.CreatedAt, job.UpdatedAt = now, now
	s.webhookJobs[job.ID] = job
	return job, nil
}

func (s *Store) UpdateWebhookJob(_ context.Context, job webhookjob.Job) (webhookjob.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.webhookJobs[job.ID]
	if !ok {
		return webhookjob.Job{}, fmt.Errorf("webhook job %s not found", job.ID)
	}
	for id, other := range s.webhookJobs {
		if id != job.ID && other.Endpoint == job.Endpoint {
			return webhookjob.Job{}, fmt.Errorf("endpoint %s already registered", job.Endpoint)
		}
	}
	job.CreatedAt = existing.CreatedAt
	job.UpdatedAt = time.Now().UTC()
	s.webhookJobs[job.ID] = job
	return job, nil
}

func (s *Store) GetWebhookJob(_ context.Context, id string) (webhookjob.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.webhookJobs[id]
	if !ok {
		return webhookjob.Job{}, fmt.Errorf("webhook job %s not found", id)
	}
	return job, nil
}

func (s *Store) GetWebhookJobByEndpoint(_ context.Context, endpoint string) (webhookjob.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, job := range s.webhookJobs {
		if job.Endpoint == endpoint {
			return job, nil
		}
	}
	return webhookjob.Job{}, fmt.Errorf("webhook job for endpoint %s not found", endpoint)
}

func (s *Store) ListWebhookJobs(_ context.Context) ([]webhookjob.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]webhookjob.Job, 0, len(s.webhookJobs))
	for _, j := range s.webhookJobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListActiveWebhookJobs(ctx context.Context) ([]webhookjob.Job, error) {
	all, err := s.ListWebhookJobs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]webhookjob.Job, 0, len(all))
	for _, j := range all {
		if j.IsActive {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *Store) DeleteWebhookJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.webhookJobs[id]; !ok {
		return fmt.Errorf("webhook job %s not found", id)
	}
	delete(s.webhookJobs, id)
	return nil
}

func (s *Store) TouchLastTriggered(_ context.Context, id string, triggeredAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.webhookJobs[id]
	if !ok {
		return fmt.Errorf("webhook job %s not found", id)
	}
	job.LastTriggered = &triggeredAt
	job.UpdatedAt = time.Now().UTC()
	s.webhookJobs[id] = job
	return nil
}

// PersistentServiceStore ----------------------------------------------------

func (s *Store) CreateService(_ context.Context, svc persistentservice.Service) (persistentservice.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.services {
		if existing.Name == svc.Name {
			return persistentservice.Service{}, fmt.Errorf("service name %s already exists", svc.Name)
		}
	}
	if svc.ID == "" {
		svc.ID = newID()
	}
	now := time.Now().UTC()
	svc.CreatedAt, svc.UpdatedAt = now, now
	if svc.Status == "" {
		svc.Status = persistentservice.StatusStopped
	}
	s.services[svc.ID] = svc
	return svc, nil
}

func (s *Store) UpdateService(_ context.Context, svc persistentservice.Service) (persistentservice.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.services[svc.ID]
	if !ok {
		return persistentservice.Service{}, fmt.Errorf("service %s not found", svc.ID)
	}
	for id, other := range s.services {
		if id != svc.ID && other.Name == svc.Name {
			return persistentservice.Service{}, fmt.Errorf("service name %s already exists", svc.Name)
		}
	}
	svc.CreatedAt = existing.CreatedAt
	svc.UpdatedAt = time.Now().UTC()
	s.services[svc.ID] = svc
	return svc, nil
}

func (s *Store) GetService(_ context.Context, id string) (persistentservice.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[id]
	if !ok {
		return persistentservice.Service{}, fmt.Errorf("service %s not found", id)
	}
	return svc, nil
}

func (s *Store) GetServiceByName(_ context.Context, name string) (persistentservice.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, svc := range s.services {
		if svc.Name == name {
			return svc, nil
		}
	}
	return persistentservice.Service{}, fmt.Errorf("service %s not found", name)
}

func (s *Store) ListServices(_ context.Context) ([]persistentservice.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]persistentservice.Service, 0, len(s.services))
	for _, svc := range s.services {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteService(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.services[id]; !ok {
		return fmt.Errorf("service %s not found", id)
	}
	delete(s.services, id)
	return nil
}

// SecretStore ----------------------------------------------------------------

func (s *Store) SetSecret(_ context.Context, secretVal secret.Secret) (secret.Secret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(secretVal.Name)
	existing, ok := s.secrets[key]
	now := time.Now().UTC()
	if ok {
		secretVal.CreatedAt = existing.CreatedAt
	} else {
		secretVal.CreatedAt = now
	}
	secretVal.UpdatedAt = now
	s.secrets[key] = secretVal
	return secretVal, nil
}

func (s *Store) GetSecret(_ context.Context, name string) (secret.Secret, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	secretVal, ok := s.secrets[strings.ToLower(name)]
	if !ok {
		return secret.Secret{}, fmt.Errorf("secret %s not found", name)
	}
	return secretVal, nil
}

func (s *Store) ListSecretNames(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.secrets))
	for _, secretVal := range s.secrets {
		out = append(out, secretVal.Name)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) ListSecretMetadata(_ context.Context) ([]secret.Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]secret.Metadata, 0, len(s.secrets))
	for _, secretVal := range s.secrets {
		out = append(out, secretVal.ToMetadata())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ListSecrets(_ context.Context) ([]secret.Secret, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]secret.Secret, 0, len(s.secrets))
	for _, secretVal := range s.secrets {
		out = append(out, secretVal)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) DeleteSecret(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(name)
	if _, ok := s.secrets[key]; !ok {
		return false, nil
	}
	delete(s.secrets, key)
	return true, nil
}

// ExecutionLogStore ----------------------------------------------------------

func (s *Store) AppendLog(_ context.Context, entry executionlog.Log) (executionlog.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = newID()
	}
	if entry.StartedAt.IsZero() {
		entry.StartedAt = time.Now().UTC()
	}
	s.logs[entry.ID] = entry
	s.logOrder = append(s.logOrder, entry.ID)
	return entry, nil
}

func (s *Store) GetLog(_ context.Context, id string) (executionlog.Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.logs[id]
	if !ok {
		return executionlog.Log{}, fmt.Errorf("execution log %s not found", id)
	}
	return entry, nil
}

func (s *Store) ListLogs(_ context.Context, filter storage.ExecutionLogFilter) ([]executionlog.Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]executionlog.Log, 0, len(s.logOrder))
	for i := len(s.logOrder) - 1; i >= 0; i-- {
		entry := s.logs[s.logOrder[i]]
		if filter.JobID != "" && !(entry.Parent.Kind == "scheduled" && entry.Parent.ID == filter.JobID) {
			continue
		}
		if filter.WebhookJobID != "" && !(entry.Parent.Kind == "webhook" && entry.Parent.ID == filter.WebhookJobID) {
			continue
		}
		out = append(out, entry)
	}

	limit := coreservice.ClampLimit(filter.Limit, coreservice.DefaultListLimit, coreservice.MaxListLimit)
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return []executionlog.Log{}, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (s *Store) SchemaVersion(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schemaVersion, nil
}
