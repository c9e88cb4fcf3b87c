package websvc

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/r3elabs/execforge/internal/apierr"
	"github.com/r3elabs/execforge/internal/domain/webservice"
	"github.com/r3elabs/execforge/internal/imagecache"
	"github.com/r3elabs/execforge/internal/runtime"
	"github.com/r3elabs/execforge/internal/sandboxmgr"
	"github.com/r3elabs/execforge/pkg/config"
	"github.com/r3elabs/execforge/pkg/logger"
)

// internalPort is fixed inside every sandbox; only the host-published
// external port varies per spec.md's port range.
const internalPort = 8501

// Supervisor is the WebServiceSupervisor component.
type Supervisor struct {
	images    *imagecache.Cache
	sandboxes *sandboxmgr.Manager
	runtime   *runtime.DockerClient
	cfg       config.SandboxConfig
	log       *logger.Logger

	mu       sync.Mutex
	services map[string]*webservice.WebService
}

// New constructs a Supervisor.
func New(images *imagecache.Cache, sandboxes *sandboxmgr.Manager, rt *runtime.DockerClient, cfg config.SandboxConfig, log *logger.Logger) *Supervisor {
	return &Supervisor{images: images, sandboxes: sandboxes, runtime: rt, cfg: cfg, log: log, services: make(map[string]*webservice.WebService)}
}

// Detect implements execution.Classifier.
func (s *Supervisor) Detect(code string, packages []string) (string, bool) {
	return NewDetector().Detect(code, packages)
}

// Launch builds an image, creates a fresh web sandbox, writes the
// framework-patched code into it, starts the launcher detached, and waits
// for readiness, per spec.md §4.3 step 2.
func (s *Supervisor) Launch(ctx context.Context, code string, packages []string) (*webservice.WebService, error) {
	framework := Framework(mustDetect(code, packages))
	if framework == FrameworkNone {
		return nil, apierr.New(apierr.KindValidation, "code is not a recognised web service")
	}

	port, err := AllocatePort(s.cfg.PortRangeStart, s.cfg.PortRangeEnd, 100)
	if err != nil {
		return nil, err
	}

	ref, err := s.images.Build(ctx, packages)
	if err != nil {
		return nil, err
	}
	digest := imagecache.Digest(packages)

	sb, err := s.sandboxes.CreateWebSandbox(ctx, ref, digest, internalPort, port)
	if err != nil {
		return nil, err
	}

	shortID := sb.ShortID()
	patched, runner := LaunchScript(framework, code, internalPort, shortID)

	if err := s.writeAndLaunch(ctx, sb.ID, patched, runner); err != nil {
		return nil, apierr.Wrap(apierr.KindSandboxCreateFailed, "launch web service", err)
	}

	startupLog, ready := s.waitForReadiness(ctx, sb.ID, port)

	svc := &webservice.WebService{
		SandboxID:    sb.ID,
		Framework:    webservice.Framework(framework),
		InternalPort: internalPort,
		ExternalPort: port,
		ProxyPath:    webservice.ProxyPathFor(sb.ID),
		StartedAt:    time.Now().UTC(),
		LastActiveAt: time.Now().UTC(),
		Ready:        ready,
		StartupLog:   startupLog,
	}
	s.mu.Lock()
	s.services[sb.ID] = svc
	s.mu.Unlock()
	return svc, nil
}

func mustDetect(code string, packages []string) string {
	f, _ := NewDetector().Detect(code, packages)
	return f
}

// writeAndLaunch transfers patched via a base64-encoded pipe (never
// interpolating user text into a shell string) and starts it detached.
func (s *Supervisor) writeAndLaunch(ctx context.Context, sandboxID, code string, runner []string) error {
	encoded := base64.StdEncoding.EncodeToString([]byte(code))
	writeCmd := []string{"sh", "-c", fmt.Sprintf("echo %s | base64 -d > /tmp/app.py", encoded)}
	if _, err := s.runtime.Exec(ctx, sandboxID, writeCmd, nil); err != nil {
		return err
	}

	launchLine := strings.Join(runner, " ")
	startCmd := []string{"sh", "-c", fmt.Sprintf("nohup %s > /tmp/launch.log 2>&1 &", launchLine)}
	_, err := s.runtime.Exec(ctx, sandboxID, startCmd, nil)
	return err
}

// waitForReadiness polls for a bounded grace period (10s), reading the
// launcher's log tail and checking with `ss` that the internal port is
// listening; ready means the port was seen listening. The process list is
// not checked.
func (s *Supervisor) waitForReadiness(ctx context.Context, sandboxID string, port int) (log string, ready bool) {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		tail, _ := s.runtime.Exec(ctx, sandboxID, []string{"sh", "-c", "tail -n 50 /tmp/launch.log 2>/dev/null"}, nil)
		log = tail.Output

		listening, _ := s.runtime.Exec(ctx, sandboxID, []string{"sh", "-c", fmt.Sprintf("ss -ltn 2>/dev/null | grep -q ':%d ' && echo LISTENING", internalPort)}, nil)
		if strings.Contains(listening.Output, "LISTENING") {
			return log, true
		}
		time.Sleep(300 * time.Millisecond)
	}
	return log, false
}

// Get returns a tracked web service by its sandbox id.
func (s *Supervisor) Get(sandboxID string) (*webservice.WebService, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[sandboxID]
	return svc, ok
}

// All returns every tracked web service.
func (s *Supervisor) All() []*webservice.WebService {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*webservice.WebService, 0, len(s.services))
	for _, svc := range s.services {
		out = append(out, svc)
	}
	return out
}

// Remove stops tracking a web service (its sandbox is destroyed by the
// caller via SandboxManager).
func (s *Supervisor) Remove(sandboxID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.services, sandboxID)
}
