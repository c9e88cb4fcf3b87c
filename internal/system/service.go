// Package system provides the lifecycle-management primitives the engine's
// long-running parts (the cron scheduler, the service supervisor, the HTTP
// server) are started and stopped through.
package system

import (
	"context"

	core "github.com/r3elabs/execforge/internal/core/service"
)

// Service represents a lifecycle-managed component. Components registered
// with the Manager implement this interface so the Manager can start and
// stop them deterministically.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// DescriptorProvider optionally advertises service metadata (layer, capabilities).
type DescriptorProvider interface {
	Descriptor() core.Descriptor
}
