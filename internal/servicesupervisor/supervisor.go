// Package servicesupervisor implements the ServiceSupervisor component: a
// state machine per PersistentService that starts, monitors, and restarts
// long-lived user code according to its restart policy.
package servicesupervisor

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/r3elabs/execforge/internal/apierr"
	"github.com/r3elabs/execforge/internal/domain/persistentservice"
	"github.com/r3elabs/execforge/internal/imagecache"
	"github.com/r3elabs/execforge/internal/runtime"
	"github.com/r3elabs/execforge/internal/sandboxmgr"
	"github.com/r3elabs/execforge/pkg/logger"
)

// Store is the subset of storage.Store the supervisor needs.
type Store interface {
	GetService(ctx context.Context, id string) (persistentservice.Service, error)
	UpdateService(ctx context.Context, svc persistentservice.Service) (persistentservice.Service, error)
	ListServices(ctx context.Context) ([]persistentservice.Service, error)
}

// Supervisor is the ServiceSupervisor component.
type Supervisor struct {
	store     Store
	images    *imagecache.Cache
	sandboxes *sandboxmgr.Manager
	runtime   *runtime.DockerClient
	log       *logger.Logger

	mu       sync.Mutex
	monitors map[string]context.CancelFunc
}

// New constructs a Supervisor.
func New(store Store, images *imagecache.Cache, sandboxes *sandboxmgr.Manager, rt *runtime.DockerClient, log *logger.Logger) *Supervisor {
	return &Supervisor{store: store, images: images, sandboxes: sandboxes, runtime: rt, log: log, monitors: make(map[string]context.CancelFunc)}
}

// AutoStart starts every service with auto_start=true and is_active=true at
// engine startup. Per-service failures are logged and do not block startup.
func (s *Supervisor) AutoStart(ctx context.Context) {
	services, err := s.store.ListServices(ctx)
	if err != nil {
		s.log.WithField("error", err.Error()).Warn("list services for autostart failed")
		return
	}
	for _, svc := range services {
		if !svc.AutoStart || !svc.IsActive {
			continue
		}
		if err := s.Start(ctx, svc.ID); err != nil {
			s.log.WithField("service", svc.ID).WithField("error", err.Error()).Warn("autostart failed")
		}
	}
}

// Start resolves a sandbox, launches the service's code detached, and
// transitions it to running.
func (s *Supervisor) Start(ctx context.Context, serviceID string) error {
	svc, err := s.store.GetService(ctx, serviceID)
	if err != nil {
		return err
	}

	svc.Status = persistentservice.StatusStarting
	svc, err = s.store.UpdateService(ctx, svc)
	if err != nil {
		return err
	}

	ref, err := s.images.Build(ctx, svc.PackageSet)
	if err != nil {
		return s.markError(ctx, svc, err)
	}
	digest := imagecache.Digest(svc.PackageSet)

	var sandboxID string
	if svc.BoundSandbox != "" {
		sandboxID = svc.BoundSandbox
	} else {
		sb, err := s.sandboxes.GetOrCreateReusable(ctx, digest, ref)
		if err != nil {
			return s.markError(ctx, svc, err)
		}
		sandboxID = sb.ID
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(svc.Code))
	cmd := []string{"sh", "-c", fmt.Sprintf(
		"rm -f /tmp/service.exit; nohup sh -c 'echo %s | base64 -d | python3; echo $? > /tmp/service.exit' > /tmp/service.log 2>&1 & echo -n $!",
		encoded,
	)}
	result, err := s.runtime.Exec(ctx, sandboxID, cmd, nil)
	if err != nil {
		return s.markError(ctx, svc, err)
	}
	pid := strings.TrimSpace(result.Output)

	now := time.Now().UTC()
	svc.Status = persistentservice.StatusRunning
	svc.BoundSandbox = sandboxID
	svc.StartedAt = &now
	svc.ProcessHandle = pid
	if _, err := s.store.UpdateService(ctx, svc); err != nil {
		return err
	}

	s.monitor(serviceID, sandboxID, pid, svc.RestartPolicy)
	return nil
}

func (s *Supervisor) markError(ctx context.Context, svc persistentservice.Service, cause error) error {
	svc.Status = persistentservice.StatusError
	_, _ = s.store.UpdateService(ctx, svc)
	return apierr.Wrap(apierr.KindSandboxCreateFailed, "start service", cause)
}

// monitor polls at a small interval for two distinct failure modes: the
// sandbox container itself disappearing, and the launched process exiting
// inside an otherwise-healthy, tail-sleeping sandbox (reusable sandboxes
// never exit on their own, per spec.md §4.2, so liveness of the container
// says nothing about liveness of the service). The loop exits when either
// is detected, or an external stop cancels ctx.
func (s *Supervisor) monitor(serviceID, sandboxID, pid string, policy persistentservice.RestartPolicy) {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if existing, ok := s.monitors[serviceID]; ok {
		existing()
	}
	s.monitors[serviceID] = cancel
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, alive := s.sandboxes.Get(sandboxID); !alive {
					s.handleExit(ctx, serviceID, policy, 1)
					return
				}
				if !s.processAlive(ctx, sandboxID, pid) {
					s.handleExit(ctx, serviceID, policy, s.exitCode(ctx, sandboxID))
					return
				}
			}
		}
	}()
}

// processAlive checks /proc/<pid> inside the sandbox, since the launching
// shell backgrounds the process and returns immediately, leaving no wait()
// handle the supervisor can poll directly.
func (s *Supervisor) processAlive(ctx context.Context, sandboxID, pid string) bool {
	if pid == "" {
		return true
	}
	result, err := s.runtime.Exec(ctx, sandboxID, []string{"sh", "-c", fmt.Sprintf("test -d /proc/%s", pid)}, nil)
	if err != nil {
		return true
	}
	return result.ExitCode == 0
}

// exitCode reads the code the launch script wrote to /tmp/service.exit on
// process exit. Defaults to 1 (treated as a failure) if unreadable.
func (s *Supervisor) exitCode(ctx context.Context, sandboxID string) int {
	result, err := s.runtime.Exec(ctx, sandboxID, []string{"sh", "-c", "cat /tmp/service.exit 2>/dev/null"}, nil)
	if err != nil {
		return 1
	}
	code, err := strconv.Atoi(strings.TrimSpace(result.Output))
	if err != nil {
		return 1
	}
	return code
}

func (s *Supervisor) handleExit(ctx context.Context, serviceID string, policy persistentservice.RestartPolicy, exitCode int) {
	svc, err := s.store.GetService(ctx, serviceID)
	if err != nil {
		return
	}

	switch policy {
	case persistentservice.RestartAlways:
		if svc.IsActive {
			s.restart(ctx, svc)
			return
		}
	case persistentservice.RestartOnFailure:
		if exitCode != 0 && svc.IsActive {
			s.restart(ctx, svc)
			return
		}
	}

	svc.Status = persistentservice.StatusStopped
	_, _ = s.store.UpdateService(ctx, svc)
}

func (s *Supervisor) restart(ctx context.Context, svc persistentservice.Service) {
	now := time.Now().UTC()
	svc.Status = persistentservice.StatusRestarting
	svc.LastRestart = &now
	_, _ = s.store.UpdateService(ctx, svc)

	time.Sleep(2 * time.Second)
	_ = s.Start(ctx, svc.ID)
}

// Logs returns the tail of a running or stopped service's captured stdout,
// read from the /tmp/service.log the detached exec redirects to in Start.
func (s *Supervisor) Logs(ctx context.Context, serviceID string) (string, error) {
	svc, err := s.store.GetService(ctx, serviceID)
	if err != nil {
		return "", err
	}
	if svc.BoundSandbox == "" {
		return "", apierr.NotFound("service has no bound sandbox")
	}
	result, err := s.runtime.Exec(ctx, svc.BoundSandbox, []string{"sh", "-c", "tail -n 200 /tmp/service.log 2>/dev/null"}, nil)
	if err != nil {
		return "", apierr.Wrap(apierr.KindInfra, "read service log", err)
	}
	return result.Output, nil
}

// Stop transitions serviceID to stopped and best-effort kills its process
// inside the sandbox, releasing the runtime handle.
func (s *Supervisor) Stop(ctx context.Context, serviceID string) error {
	s.mu.Lock()
	if cancel, ok := s.monitors[serviceID]; ok {
		cancel()
		delete(s.monitors, serviceID)
	}
	s.mu.Unlock()

	svc, err := s.store.GetService(ctx, serviceID)
	if err != nil {
		return err
	}

	if svc.BoundSandbox != "" {
		_, _ = s.runtime.Exec(ctx, svc.BoundSandbox, []string{"pkill", "-f", "python3"}, nil)
	}

	svc.Status = persistentservice.StatusStopped
	svc.ProcessHandle = ""
	_, err = s.store.UpdateService(ctx, svc)
	return err
}
