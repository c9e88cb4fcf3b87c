// Package webhookjob models an HTTP-triggered execution owned by the
// RepositoryStore and mirrored live by the WebhookRouter.
package webhookjob

import "time"

// UnboundedTimeout is the sentinel timeout_s value meaning "no deadline".
const UnboundedTimeout = -1

// Job is a webhook-triggered unit of user code.
type Job struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Endpoint      string     `json:"endpoint"`
	Code          string     `json:"code"`
	PackageSet    []string   `json:"package_set,omitempty"`
	BoundSandbox  string     `json:"bound_sandbox,omitempty"`
	TimeoutS      int        `json:"timeout_s"`
	IsActive      bool       `json:"is_active"`
	Description   string     `json:"description,omitempty"`
	LastTriggered *time.Time `json:"last_triggered,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
