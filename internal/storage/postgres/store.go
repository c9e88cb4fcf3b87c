// Package postgres implements internal/storage.Store backed by PostgreSQL,
// using github.com/lib/pq as the driver and github.com/jmoiron/sqlx for
// query convenience, matching the teacher's internal/app/storage/postgres
// layout (plain database/sql-shaped methods, one file's worth of statements
// per entity family).
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/r3elabs/execforge/internal/domain/executionlog"
	"github.com/r3elabs/execforge/internal/domain/persistentservice"
	"github.com/r3elabs/execforge/internal/domain/scheduledjob"
	"github.com/r3elabs/execforge/internal/domain/secret"
	"github.com/r3elabs/execforge/internal/domain/webhookjob"
	"github.com/r3elabs/execforge/internal/storage"
)

// Store implements storage.Store backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.Store = (*Store)(nil)

// Open connects to dsn and verifies the connection with a ping.
func Open(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// --- ScheduledJobStore ------------------------------------------------------

func (s *Store) CreateJob(ctx context.Context, job scheduledjob.Job) (scheduledjob.Job, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	job.CreatedAt, job.UpdatedAt = now, now

	packages, err := json.Marshal(job.PackageSet)
	if err != nil {
		return scheduledjob.Job{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scheduled_jobs (id, name, code, cron_expr, package_set, bound_sandbox, timeout_s, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, job.ID, job.Name, job.Code, job.CronExpr, packages, job.BoundSandbox, job.TimeoutS, job.IsActive, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return scheduledjob.Job{}, err
	}
	return job, nil
}

func (s *Store) UpdateJob(ctx context.Context, job scheduledjob.Job) (scheduledjob.Job, error) {
	existing, err := s.GetJob(ctx, job.ID)
	if err != nil {
		return scheduledjob.Job{}, err
	}
	job.CreatedAt = existing.CreatedAt
	job.UpdatedAt = time.Now().UTC()

	packages, err := json.Marshal(job.PackageSet)
	if err != nil {
		return scheduledjob.Job{}, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_jobs
		SET name=$2, code=$3, cron_expr=$4, package_set=$5, bound_sandbox=$6, timeout_s=$7, is_active=$8, updated_at=$9
		WHERE id=$1
	`, job.ID, job.Name, job.Code, job.CronExpr, packages, job.BoundSandbox, job.TimeoutS, job.IsActive, job.UpdatedAt)
	if err != nil {
		return scheduledjob.Job{}, err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return scheduledjob.Job{}, sql.ErrNoRows
	}
	return job, nil
}

type jobRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Code         string         `db:"code"`
	CronExpr     string         `db:"cron_expr"`
	PackageSet   []byte         `db:"package_set"`
	BoundSandbox sql.NullString `db:"bound_sandbox"`
	TimeoutS     int            `db:"timeout_s"`
	IsActive     bool           `db:"is_active"`
	LastRun      sql.NullTime   `db:"last_run"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r jobRow) toDomain() (scheduledjob.Job, error) {
	var packages []string
	if len(r.PackageSet) > 0 {
		if err := json.Unmarshal(r.PackageSet, &packages); err != nil {
			return scheduledjob.Job{}, err
		}
	}
	job := scheduledjob.Job{
		ID: r.ID, Name: r.Name, Code: r.Code, CronExpr: r.CronExpr,
		PackageSet: packages, BoundSandbox: r.BoundSandbox.String,
		TimeoutS: r.TimeoutS, IsActive: r.IsActive,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
	if r.LastRun.Valid {
		lastRun := r.LastRun.Time
		job.LastRun = &lastRun
	}
	return job, nil
}

func (s *Store) GetJob(ctx context.Context, id string) (scheduledjob.Job, error) {
	var row jobRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM scheduled_jobs WHERE id=$1`, id); err != nil {
		return scheduledjob.Job{}, err
	}
	return row.toDomain()
}

func (s *Store) ListJobs(ctx context.Context) ([]scheduledjob.Job, error) {
	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM scheduled_jobs ORDER BY created_at`); err != nil {
		return nil, err
	}
	out := make([]scheduledjob.Job, 0, len(rows))
	for _, r := range rows {
		j, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}

func (s *Store) ListActiveJobs(ctx context.Context) ([]scheduledjob.Job, error) {
	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM scheduled_jobs WHERE is_active ORDER BY created_at`); err != nil {
		return nil, err
	}
	out := make([]scheduledjob.Job, 0, len(rows))
	for _, r := range rows {
		j, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}

func (s *Store) DeleteJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_jobs WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) TouchLastRun(ctx context.Context, id string, ranAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE scheduled_jobs SET last_run=$2, updated_at=$2 WHERE id=$1`, id, ranAt)
	return err
}

// --- WebhookJobStore ---------------------------------------------------------

func (s *Store) CreateWebhookJob(ctx context.Context, job webhookjob.Job) (webhookjob.Job, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	job.CreatedAt, job.UpdatedAt = now, now
	packages, err := json.Marshal(job.PackageSet)
	if err != nil {
		return webhookjob.Job{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO webhook_jobs (id, name, endpoint, code, package_set, bound_sandbox, timeout_s, is_active, description, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, job.ID, job.Name, job.Endpoint, job.Code, packages, job.BoundSandbox, job.TimeoutS, job.IsActive, job.Description, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return webhookjob.Job{}, err
	}
	return job, nil
}

func (s *Store) UpdateWebhookJob(ctx context.Context, job webhookjob.Job) (webhookjob.Job, error) {
	existing, err := s.GetWebhookJob(ctx, job.ID)
	if err != nil {
		return webhookjob.Job{}, err
	}
	job.CreatedAt = existing.CreatedAt
	job.UpdatedAt = time.Now().UTC()
	packages, err := json.Marshal(job.PackageSet)
	if err != nil {
		return webhookjob.Job{}, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE webhook_jobs
		SET name=$2, endpoint=$3, code=$4, package_set=$5, bound_sandbox=$6, timeout_s=$7, is_active=$8, description=$9, updated_at=$10
		WHERE id=$1
	`, job.ID, job.Name, job.Endpoint, job.Code, packages, job.BoundSandbox, job.TimeoutS, job.IsActive, job.Description, job.UpdatedAt)
	if err != nil {
		return webhookjob.Job{}, err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return webhookjob.Job{}, sql.ErrNoRows
	}
	return job, nil
}

type webhookJobRow struct {
	ID            string         `db:"id"`
	Name          string         `db:"name"`
	Endpoint      string         `db:"endpoint"`
	Code          string         `db:"code"`
	PackageSet    []byte         `db:"package_set"`
	BoundSandbox  sql.NullString `db:"bound_sandbox"`
	TimeoutS      int            `db:"timeout_s"`
	IsActive      bool           `db:"is_active"`
	Description   sql.NullString `db:"description"`
	LastTriggered sql.NullTime   `db:"last_triggered"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (r webhookJobRow) toDomain() (webhookjob.Job, error) {
	var packages []string
	if len(r.PackageSet) > 0 {
		if err := json.Unmarshal(r.PackageSet, &packages); err != nil {
			return webhookjob.Job{}, err
		}
	}
	job := webhookjob.Job{
		ID: r.ID, Name: r.Name, Endpoint: r.Endpoint, Code: r.Code,
		PackageSet: packages, BoundSandbox: r.BoundSandbox.String,
		TimeoutS: r.TimeoutS, IsActive: r.IsActive, Description: r.Description.String,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
	if r.LastTriggered.Valid {
		lastTriggered := r.LastTriggered.Time
		job.LastTriggered = &lastTriggered
	}
	return job, nil
}

func (s *Store) GetWebhookJob(ctx context.Context, id string) (webhookjob.Job, error) {
	var row webhookJobRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM webhook_jobs WHERE id=$1`, id); err != nil {
		return webhookjob.Job{}, err
	}
	return row.toDomain()
}

func (s *Store) GetWebhookJobByEndpoint(ctx context.Context, endpoint string) (webhookjob.Job, error) {
	var row webhookJobRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM webhook_jobs WHERE endpoint=$1`, endpoint); err != nil {
		return webhookjob.Job{}, err
	}
	return row.toDomain()
}

func (s *Store) ListWebhookJobs(ctx context.Context) ([]webhookjob.Job, error) {
	var rows []webhookJobRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM webhook_jobs ORDER BY created_at`); err != nil {
		return nil, err
	}
	out := make([]webhookjob.Job, 0, len(rows))
	for _, r := range rows {
		j, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}

func (s *Store) ListActiveWebhookJobs(ctx context.Context) ([]webhookjob.Job, error) {
	var rows []webhookJobRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM webhook_jobs WHERE is_active ORDER BY created_at`); err != nil {
		return nil, err
	}
	out := make([]webhookjob.Job, 0, len(rows))
	for _, r := range rows {
		j, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}

func (s *Store) DeleteWebhookJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM webhook_jobs WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) TouchLastTriggered(ctx context.Context, id string, triggeredAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE webhook_jobs SET last_triggered=$2, updated_at=$2 WHERE id=$1`, id, triggeredAt)
	return err
}

// --- PersistentServiceStore --------------------------------------------------

func (s *Store) CreateService(ctx context.Context, svc persistentservice.Service) (persistentservice.Service, error) {
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	svc.CreatedAt, svc.UpdatedAt = now, now
	if svc.Status == "" {
		svc.Status = persistentservice.StatusStopped
	}
	packages, err := json.Marshal(svc.PackageSet)
	if err != nil {
		return persistentservice.Service{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO persistent_services (id, name, code, package_set, bound_sandbox, restart_policy, auto_start, is_active, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, svc.ID, svc.Name, svc.Code, packages, svc.BoundSandbox, svc.RestartPolicy, svc.AutoStart, svc.IsActive, svc.Status, svc.CreatedAt, svc.UpdatedAt)
	if err != nil {
		return persistentservice.Service{}, err
	}
	return svc, nil
}

func (s *Store) UpdateService(ctx context.Context, svc persistentservice.Service) (persistentservice.Service, error) {
	existing, err := s.GetService(ctx, svc.ID)
	if err != nil {
		return persistentservice.Service{}, err
	}
	svc.CreatedAt = existing.CreatedAt
	svc.UpdatedAt = time.Now().UTC()
	packages, err := json.Marshal(svc.PackageSet)
	if err != nil {
		return persistentservice.Service{}, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE persistent_services
		SET name=$2, code=$3, package_set=$4, bound_sandbox=$5, restart_policy=$6, auto_start=$7, is_active=$8,
		    status=$9, started_at=$10, last_restart=$11, updated_at=$12
		WHERE id=$1
	`, svc.ID, svc.Name, svc.Code, packages, svc.BoundSandbox, svc.RestartPolicy, svc.AutoStart, svc.IsActive,
		svc.Status, svc.StartedAt, svc.LastRestart, svc.UpdatedAt)
	if err != nil {
		return persistentservice.Service{}, err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return persistentservice.Service{}, sql.ErrNoRows
	}
	return svc, nil
}

type serviceRow struct {
	ID            string                      `db:"id"`
	Name          string                      `db:"name"`
	Code          string                      `db:"code"`
	PackageSet    []byte                      `db:"package_set"`
	BoundSandbox  sql.NullString              `db:"bound_sandbox"`
	RestartPolicy persistentservice.RestartPolicy `db:"restart_policy"`
	AutoStart     bool                        `db:"auto_start"`
	IsActive      bool                        `db:"is_active"`
	Status        persistentservice.Status    `db:"status"`
	StartedAt     sql.NullTime                `db:"started_at"`
	LastRestart   sql.NullTime                `db:"last_restart"`
	CreatedAt     time.Time                   `db:"created_at"`
	UpdatedAt     time.Time                   `db:"updated_at"`
}

func (r serviceRow) toDomain() (persistentservice.Service, error) {
	var packages []string
	if len(r.PackageSet) > 0 {
		if err := json.Unmarshal(r.PackageSet, &packages); err != nil {
			return persistentservice.Service{}, err
		}
	}
	svc := persistentservice.Service{
		ID: r.ID, Name: r.Name, Code: r.Code, PackageSet: packages,
		BoundSandbox: r.BoundSandbox.String, RestartPolicy: r.RestartPolicy,
		AutoStart: r.AutoStart, IsActive: r.IsActive, Status: r.Status,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
	if r.StartedAt.Valid {
		startedAt := r.StartedAt.Time
		svc.StartedAt = &startedAt
	}
	if r.LastRestart.Valid {
		lastRestart := r.LastRestart.Time
		svc.LastRestart = &lastRestart
	}
	return svc, nil
}

func (s *Store) GetService(ctx context.Context, id string) (persistentservice.Service, error) {
	var row serviceRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM persistent_services WHERE id=$1`, id); err != nil {
		return persistentservice.Service{}, err
	}
	return row.toDomain()
}

func (s *Store) GetServiceByName(ctx context.Context, name string) (persistentservice.Service, error) {
	var row serviceRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM persistent_services WHERE name=$1`, name); err != nil {
		return persistentservice.Service{}, err
	}
	return row.toDomain()
}

func (s *Store) ListServices(ctx context.Context) ([]persistentservice.Service, error) {
	var rows []serviceRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM persistent_services ORDER BY created_at`); err != nil {
		return nil, err
	}
	out := make([]persistentservice.Service, 0, len(rows))
	for _, r := range rows {
		svc, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, nil
}

func (s *Store) DeleteService(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM persistent_services WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- SecretStore --------------------------------------------------------------

func (s *Store) SetSecret(ctx context.Context, secretVal secret.Secret) (secret.Secret, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO secrets (name, ciphertext, description, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$4)
		ON CONFLICT (name) DO UPDATE SET ciphertext=$2, description=$3, updated_at=$4
	`, secretVal.Name, secretVal.Ciphertext, secretVal.Description, now)
	if err != nil {
		return secret.Secret{}, err
	}
	return s.GetSecret(ctx, secretVal.Name)
}

type secretRow struct {
	Name        string         `db:"name"`
	Ciphertext  []byte         `db:"ciphertext"`
	Description sql.NullString `db:"description"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r secretRow) toDomain() secret.Secret {
	return secret.Secret{
		Name: r.Name, Ciphertext: r.Ciphertext, Description: r.Description.String,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func (s *Store) GetSecret(ctx context.Context, name string) (secret.Secret, error) {
	var row secretRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM secrets WHERE lower(name)=lower($1)`, name); err != nil {
		return secret.Secret{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) ListSecretNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.SelectContext(ctx, &names, `SELECT name FROM secrets ORDER BY name`); err != nil {
		return nil, err
	}
	return names, nil
}

func (s *Store) ListSecretMetadata(ctx context.Context) ([]secret.Metadata, error) {
	secrets, err := s.ListSecrets(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]secret.Metadata, 0, len(secrets))
	for _, secretVal := range secrets {
		out = append(out, secretVal.ToMetadata())
	}
	return out, nil
}

func (s *Store) ListSecrets(ctx context.Context) ([]secret.Secret, error) {
	var rows []secretRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM secrets ORDER BY name`); err != nil {
		return nil, err
	}
	out := make([]secret.Secret, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) DeleteSecret(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM secrets WHERE lower(name)=lower($1)`, name)
	if err != nil {
		return false, err
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

// --- ExecutionLogStore --------------------------------------------------------

func (s *Store) AppendLog(ctx context.Context, entry executionlog.Log) (executionlog.Log, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.StartedAt.IsZero() {
		entry.StartedAt = time.Now().UTC()
	}
	var metrics, request, response []byte
	var err error
	if entry.Metrics != nil {
		if metrics, err = json.Marshal(entry.Metrics); err != nil {
			return executionlog.Log{}, err
		}
	}
	if entry.RequestData != nil {
		if request, err = json.Marshal(entry.RequestData); err != nil {
			return executionlog.Log{}, err
		}
	}
	if entry.ResponseData != nil {
		if response, err = json.Marshal(entry.ResponseData); err != nil {
			return executionlog.Log{}, err
		}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO execution_logs (id, parent_kind, parent_id, code, output, error, sandbox_id,
			execution_time_s, started_at, status, request_data, response_data, metrics)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, entry.ID, string(entry.Parent.Kind), entry.Parent.ID, entry.Code, entry.Output, entry.Error, entry.SandboxID,
		entry.ExecutionTimeS, entry.StartedAt, string(entry.Status), request, response, metrics)
	if err != nil {
		return executionlog.Log{}, err
	}
	return entry, nil
}

type logRow struct {
	ID             string         `db:"id"`
	ParentKind     sql.NullString `db:"parent_kind"`
	ParentID       sql.NullString `db:"parent_id"`
	Code           string         `db:"code"`
	Output         sql.NullString `db:"output"`
	Error          sql.NullString `db:"error"`
	SandboxID      sql.NullString `db:"sandbox_id"`
	ExecutionTimeS float64        `db:"execution_time_s"`
	StartedAt      time.Time      `db:"started_at"`
	Status         string         `db:"status"`
	RequestData    []byte         `db:"request_data"`
	ResponseData   []byte         `db:"response_data"`
	Metrics        []byte         `db:"metrics"`
}

func (r logRow) toDomain() (executionlog.Log, error) {
	entry := executionlog.Log{
		ID: r.ID, Code: r.Code, Output: r.Output.String, Error: r.Error.String,
		SandboxID: r.SandboxID.String, ExecutionTimeS: r.ExecutionTimeS,
		StartedAt: r.StartedAt, Status: executionlog.Status(r.Status),
		Parent: executionlog.Parent{Kind: executionlog.ParentKind(r.ParentKind.String), ID: r.ParentID.String},
	}
	if len(r.RequestData) > 0 {
		if err := json.Unmarshal(r.RequestData, &entry.RequestData); err != nil {
			return executionlog.Log{}, err
		}
	}
	if len(r.ResponseData) > 0 {
		if err := json.Unmarshal(r.ResponseData, &entry.ResponseData); err != nil {
			return executionlog.Log{}, err
		}
	}
	if len(r.Metrics) > 0 {
		var metrics executionlog.ResourceMetrics
		if err := json.Unmarshal(r.Metrics, &metrics); err != nil {
			return executionlog.Log{}, err
		}
		entry.Metrics = &metrics
	}
	return entry, nil
}

func (s *Store) GetLog(ctx context.Context, id string) (executionlog.Log, error) {
	var row logRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM execution_logs WHERE id=$1`, id); err != nil {
		return executionlog.Log{}, err
	}
	return row.toDomain()
}

func (s *Store) ListLogs(ctx context.Context, filter storage.ExecutionLogFilter) ([]executionlog.Log, error) {
	query := `SELECT * FROM execution_logs WHERE 1=1`
	var args []interface{}
	argN := 1
	if filter.JobID != "" {
		query += fmt.Sprintf(" AND parent_kind='scheduled' AND parent_id=$%d", argN)
		args = append(args, filter.JobID)
		argN++
	}
	if filter.WebhookJobID != "" {
		query += fmt.Sprintf(" AND parent_kind='webhook' AND parent_id=$%d", argN)
		args = append(args, filter.WebhookJobID)
		argN++
	}
	query += " ORDER BY started_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 25
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argN, argN+1)
	args = append(args, limit, filter.Offset)

	var rows []logRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]executionlog.Log, 0, len(rows))
	for _, r := range rows {
		entry, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

// --- SchemaStore ---------------------------------------------------------------

func (s *Store) SchemaVersion(ctx context.Context) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM schema_info WHERE key='version'`)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}
