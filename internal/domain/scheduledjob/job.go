// Package scheduledjob models a cron-triggered execution owned by the
// RepositoryStore and mirrored live by the CronScheduler.
package scheduledjob

import "time"

// Job is a cron-scheduled unit of user code.
type Job struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Code          string     `json:"code"`
	CronExpr      string     `json:"cron_expr"`
	PackageSet    []string   `json:"package_set,omitempty"`
	BoundSandbox  string     `json:"bound_sandbox,omitempty"`
	TimeoutS      int        `json:"timeout_s"`
	IsActive      bool       `json:"is_active"`
	LastRun       *time.Time `json:"last_run,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// DefaultTimeoutS is applied when a job omits timeout_s (spec §4.7).
const DefaultTimeoutS = 30
