// Package sandbox models a single hardened container-runtime instance owned
// by the SandboxManager.
package sandbox

import "time"

// Status is the lifecycle state of a Sandbox.
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusGone    Status = "gone"
)

// PortMap records an internal container port published to an external host
// port, used by web-service sandboxes.
type PortMap struct {
	Internal int `json:"internal"`
	External int `json:"external"`
}

// Sandbox is a single container-runtime instance.
type Sandbox struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	ImageDigest  string    `json:"image_digest"`
	PackageSet   []string  `json:"package_set,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Status       Status    `json:"status"`
	MemoryLimit  int64     `json:"memory_limit"`
	CPUQuota     float64   `json:"cpu_quota"`
	PortMap      *PortMap  `json:"port_map,omitempty"`
	LastCode     string    `json:"-"`
	LastWritten  time.Time `json:"-"`
}

// ShortID returns the first 8 characters of the sandbox id, used as the
// proxy path component.
func (s Sandbox) ShortID() string {
	if len(s.ID) <= 8 {
		return s.ID
	}
	return s.ID[:8]
}
