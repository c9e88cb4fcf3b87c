// Package app wires every component of the execution engine together:
// storage, the sandbox/image/execution stack, the activation dispatchers
// (cron, webhook, persistent service), the secrets vault, the reverse
// proxy, and the HTTP surface, all under one lifecycle-managed Application.
package app

import (
	"context"
	"fmt"
	"net/http"

	core "github.com/r3elabs/execforge/internal/core/service"
	"github.com/r3elabs/execforge/internal/cron"
	"github.com/r3elabs/execforge/internal/execution"
	"github.com/r3elabs/execforge/internal/httpapi"
	"github.com/r3elabs/execforge/internal/imagecache"
	"github.com/r3elabs/execforge/internal/proxy"
	"github.com/r3elabs/execforge/internal/runtime"
	"github.com/r3elabs/execforge/internal/sandboxmgr"
	"github.com/r3elabs/execforge/internal/secretsvault"
	"github.com/r3elabs/execforge/internal/servicesupervisor"
	"github.com/r3elabs/execforge/internal/storage"
	"github.com/r3elabs/execforge/internal/system"
	"github.com/r3elabs/execforge/internal/webhook"
	"github.com/r3elabs/execforge/internal/websvc"
	"github.com/r3elabs/execforge/pkg/config"
	"github.com/r3elabs/execforge/pkg/logger"
)

// Application ties every engine component together and manages their
// lifecycle via the system.Manager, mirroring the teacher's Application
// shape (Stores in, Manager owns Start/Stop, Descriptors for introspection).
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Store       storage.Store
	Sandboxes   *sandboxmgr.Manager
	Images      *imagecache.Cache
	Engine      *execution.Engine
	WebServices *websvc.Supervisor
	Proxy       *proxy.Server
	Secrets     *secretsvault.Vault
	Scheduler   *cron.Scheduler
	Webhooks    *webhook.Router
	Services    *servicesupervisor.Supervisor
	Handler     *httpapi.Handler

	descriptors []core.Descriptor
}

// New builds a fully wired Application from cfg against store (postgres in
// production, memory.New() for local runs and tests).
func New(cfg *config.Config, store storage.Store, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("execforge")
	}

	dockerClient, err := runtime.NewDockerClient(cfg.Docker.Host, cfg.Docker.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("connect docker: %w", err)
	}

	images := imagecache.New(dockerClient, cfg.Docker.BaseImageRepo, log)
	sandboxes := sandboxmgr.New(dockerClient, cfg.Sandbox, log)
	webservices := websvc.New(images, sandboxes, dockerClient, cfg.Sandbox, log)

	secrets, err := secretsvault.Open(store, cfg.Secrets.KeyFile, log)
	if err != nil {
		return nil, fmt.Errorf("open secrets vault: %w", err)
	}

	engine := execution.New(images, sandboxes, dockerClient, webservices, secrets, log)
	scheduler := cron.New(store, engine, log)
	webhooks := webhook.New(store, engine, log)
	services := servicesupervisor.New(store, images, sandboxes, dockerClient, log)
	proxySrv := proxy.New(webservices, cfg.Docker, cfg.Proxy, log)

	handler := httpapi.New(store, sandboxes, engine, services, webhooks, proxySrv, webservices, scheduler, secrets, cfg.Proxy, log)

	manager := system.NewManager()
	app := &Application{
		manager:     manager,
		log:         log,
		Store:       store,
		Sandboxes:   sandboxes,
		Images:      images,
		Engine:      engine,
		WebServices: webservices,
		Proxy:       proxySrv,
		Secrets:     secrets,
		Scheduler:   scheduler,
		Webhooks:    webhooks,
		Services:    services,
		Handler:     handler,
	}

	if err := manager.Register(newSchedulerService(scheduler)); err != nil {
		return nil, fmt.Errorf("register cron scheduler: %w", err)
	}
	if err := manager.Register(newSupervisorService(services)); err != nil {
		return nil, fmt.Errorf("register service supervisor: %w", err)
	}
	if err := manager.Register(newHTTPServerService(cfg.Server, handler, cfg.Proxy.AllowedOrigins, log)); err != nil {
		return nil, fmt.Errorf("register http server: %w", err)
	}

	app.descriptors = manager.Descriptors()
	return app, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(svc system.Service) error {
	return a.manager.Register(svc)
}

// Start begins all registered services in registration order.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services in reverse registration order.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// Descriptors returns advertised service descriptors for introspection.
func (a *Application) Descriptors() []core.Descriptor {
	out := make([]core.Descriptor, len(a.descriptors))
	copy(out, a.descriptors)
	return out
}

// schedulerService adapts cron.Scheduler to system.Service.
type schedulerService struct {
	scheduler *cron.Scheduler
}

func newSchedulerService(s *cron.Scheduler) *schedulerService { return &schedulerService{scheduler: s} }

func (s *schedulerService) Name() string                    { return "cron-scheduler" }
func (s *schedulerService) Start(ctx context.Context) error { return s.scheduler.Start(ctx) }
func (s *schedulerService) Stop(ctx context.Context) error  { return s.scheduler.Stop(ctx) }
func (s *schedulerService) Descriptor() core.Descriptor {
	return core.Descriptor{Name: s.Name(), Domain: "execution", Layer: core.LayerDispatch}
}

// supervisorService runs ServiceSupervisor.AutoStart once at Start and does
// nothing on Stop; individual persistent services keep running so operators
// can choose to leave them up across a controlled engine restart.
type supervisorService struct {
	supervisor *servicesupervisor.Supervisor
}

func newSupervisorService(s *servicesupervisor.Supervisor) *supervisorService {
	return &supervisorService{supervisor: s}
}

func (s *supervisorService) Name() string {
	return "service-supervisor"
}
func (s *supervisorService) Start(ctx context.Context) error {
	s.supervisor.AutoStart(ctx)
	return nil
}
func (s *supervisorService) Stop(ctx context.Context) error { return nil }
func (s *supervisorService) Descriptor() core.Descriptor {
	return core.Descriptor{Name: s.Name(), Domain: "execution", Layer: core.LayerDispatch}
}

// httpServerService adapts the httpapi.Handler's router to system.Service,
// mirroring the teacher's internal/app/httpapi/service.go Start/Stop shape.
type httpServerService struct {
	server *http.Server
	log    *logger.Logger
}

func newHTTPServerService(cfg config.ServerConfig, handler *httpapi.Handler, allowedOrigins []string, log *logger.Logger) *httpServerService {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &httpServerService{
		server: &http.Server{Addr: addr, Handler: handler.Router(allowedOrigins)},
		log:    log,
	}
}

func (h *httpServerService) Name() string { return "http-server" }

func (h *httpServerService) Start(ctx context.Context) error {
	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.log.WithField("error", err.Error()).Error("http server exited")
		}
	}()
	return nil
}

func (h *httpServerService) Stop(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

func (h *httpServerService) Descriptor() core.Descriptor {
	return core.Descriptor{Name: h.Name(), Domain: "ingress", Layer: core.LayerIngress}
}
