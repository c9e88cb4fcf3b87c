// Package sandboxmgr implements the SandboxManager component: it creates
// hardened sandboxes, tracks them in two caches (reusable one-shot sandboxes
// keyed by image digest, and web-service sandboxes keyed by sandbox id), and
// destroys them on demand.
package sandboxmgr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/r3elabs/execforge/internal/apierr"
	"github.com/r3elabs/execforge/internal/domain/sandbox"
	"github.com/r3elabs/execforge/internal/metrics"
	"github.com/r3elabs/execforge/internal/runtime"
	"github.com/r3elabs/execforge/pkg/config"
	"github.com/r3elabs/execforge/pkg/logger"
)

// Runtime is the subset of the Docker client the manager needs.
type Runtime interface {
	CreateAndStart(ctx context.Context, spec runtime.ContainerSpec) (string, error)
	Stop(ctx context.Context, containerID string) error
}

// Manager is the SandboxManager component.
type Manager struct {
	runtime Runtime
	cfg     config.SandboxConfig
	log     *logger.Logger

	mu        sync.Mutex
	sandboxes map[string]*sandbox.Sandbox
	reusable  map[string]string // image digest -> sandbox id
}

// New constructs a Manager.
func New(runtime Runtime, cfg config.SandboxConfig, log *logger.Logger) *Manager {
	return &Manager{
		runtime:   runtime,
		cfg:       cfg,
		log:       log,
		sandboxes: make(map[string]*sandbox.Sandbox),
		reusable:  make(map[string]string),
	}
}

// GetOrCreateReusable returns the one persistent sandbox for digest,
// creating it if absent.
func (m *Manager) GetOrCreateReusable(ctx context.Context, digest, imageRef string) (*sandbox.Sandbox, error) {
	m.mu.Lock()
	if id, ok := m.reusable[digest]; ok {
		if sb, ok := m.sandboxes[id]; ok && sb.Status == sandbox.StatusRunning {
			m.mu.Unlock()
			return sb, nil
		}
	}
	m.mu.Unlock()

	sb, err := m.create(ctx, imageRef, digest, nil)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.reusable[digest] = sb.ID
	m.mu.Unlock()
	return sb, nil
}

// CreateWebSandbox always allocates a fresh sandbox, publishing internalPort
// on the host as externalPort.
func (m *Manager) CreateWebSandbox(ctx context.Context, imageRef, digest string, internalPort, externalPort int) (*sandbox.Sandbox, error) {
	ports := map[string]string{fmt.Sprintf("%d/tcp", internalPort): fmt.Sprintf("%d", externalPort)}
	sb, err := m.create(ctx, imageRef, digest, ports)
	if err != nil {
		return nil, err
	}
	sb.PortMap = &sandbox.PortMap{Internal: internalPort, External: externalPort}
	return sb, nil
}

func (m *Manager) create(ctx context.Context, imageRef, digest string, ports map[string]string) (*sandbox.Sandbox, error) {
	id := uuid.NewString()
	spec := runtime.ContainerSpec{
		Image:          imageRef,
		Name:           "execforge-sbx-" + id[:8],
		Cmd:            []string{"sleep", "infinity"},
		MemoryBytes:    int64(m.cfg.MemoryLimitMB) * 1024 * 1024,
		NanoCPUs:       m.cfg.NanoCPUs,
		PIDsLimit:      int64(m.cfg.PIDsLimit),
		TmpfsSizeMB:    int64(m.cfg.TmpfsSizeMB),
		SeccompProfile: m.cfg.SeccompProfile,
		PortBindings:   ports,
	}

	containerID, err := m.runtime.CreateAndStart(ctx, spec)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindSandboxCreateFailed, "create sandbox", err)
	}

	sb := &sandbox.Sandbox{
		ID:          containerID,
		Name:        spec.Name,
		ImageDigest: digest,
		CreatedAt:   time.Now().UTC(),
		Status:      sandbox.StatusRunning,
		MemoryLimit: spec.MemoryBytes,
		CPUQuota:    float64(spec.NanoCPUs) / 1e9,
	}

	m.mu.Lock()
	m.sandboxes[sb.ID] = sb
	metrics.SetSandboxesActive(len(m.sandboxes))
	m.mu.Unlock()

	return sb, nil
}

// Get returns a tracked sandbox by id.
func (m *Manager) Get(id string) (*sandbox.Sandbox, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sb, ok := m.sandboxes[id]
	return sb, ok
}

// Destroy stops, removes, and evicts sandboxId from both caches.
func (m *Manager) Destroy(ctx context.Context, sandboxID string) error {
	if err := m.runtime.Stop(ctx, sandboxID); err != nil {
		m.log.WithField("sandbox", sandboxID).WithField("error", err.Error()).Warn("sandbox stop failed")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if sb, ok := m.sandboxes[sandboxID]; ok {
		sb.Status = sandbox.StatusGone
		delete(m.sandboxes, sandboxID)
	}
	for digest, id := range m.reusable {
		if id == sandboxID {
			delete(m.reusable, digest)
		}
	}
	metrics.SetSandboxesActive(len(m.sandboxes))
	return nil
}

// CleanupAll destroys every sandbox the manager owns.
func (m *Manager) CleanupAll(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sandboxes))
	for id := range m.sandboxes {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := m.Destroy(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Count returns the number of live tracked sandboxes.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sandboxes)
}

// List returns a snapshot of every tracked sandbox, for GET /containers.
func (m *Manager) List() []*sandbox.Sandbox {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*sandbox.Sandbox, 0, len(m.sandboxes))
	for _, sb := range m.sandboxes {
		out = append(out, sb)
	}
	return out
}
