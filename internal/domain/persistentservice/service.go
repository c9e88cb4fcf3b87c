// Package persistentservice models a long-lived, restart-policy-managed unit
// of user code owned by the RepositoryStore and run by the
// ServiceSupervisor.
package persistentservice

import "time"

// RestartPolicy governs how the ServiceSupervisor reacts to a natural exit.
type RestartPolicy string

const (
	RestartAlways     RestartPolicy = "always"
	RestartNever      RestartPolicy = "never"
	RestartOnFailure  RestartPolicy = "on-failure"
)

// Status is the ServiceSupervisor state-machine state (spec §4.9).
type Status string

const (
	StatusStopped    Status = "stopped"
	StatusStarting   Status = "starting"
	StatusRunning    Status = "running"
	StatusError      Status = "error"
	StatusRestarting Status = "restarting"
)

// Service is a persistent, supervised unit of user code.
type Service struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Code          string        `json:"code"`
	PackageSet    []string      `json:"package_set,omitempty"`
	BoundSandbox  string        `json:"bound_sandbox,omitempty"`
	RestartPolicy RestartPolicy `json:"restart_policy"`
	AutoStart     bool          `json:"auto_start"`
	IsActive      bool          `json:"is_active"`
	Status        Status        `json:"status"`
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	LastRestart   *time.Time    `json:"last_restart,omitempty"`
	ProcessHandle string        `json:"-"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
