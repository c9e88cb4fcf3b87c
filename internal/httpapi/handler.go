// Package httpapi wires the REST surface of spec.md §6 onto a gorilla/mux
// router: containers, one-shot execution, scheduled jobs, webhook jobs,
// persistent services, secrets, execution logs, and the reverse proxy.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/r3elabs/execforge/internal/apierr"
	"github.com/r3elabs/execforge/internal/cron"
	"github.com/r3elabs/execforge/internal/execution"
	"github.com/r3elabs/execforge/internal/metrics"
	"github.com/r3elabs/execforge/internal/proxy"
	"github.com/r3elabs/execforge/internal/sandboxmgr"
	"github.com/r3elabs/execforge/internal/secretsvault"
	"github.com/r3elabs/execforge/internal/servicesupervisor"
	"github.com/r3elabs/execforge/internal/storage"
	"github.com/r3elabs/execforge/internal/webhook"
	"github.com/r3elabs/execforge/internal/websvc"
	"github.com/r3elabs/execforge/pkg/config"
	"github.com/r3elabs/execforge/pkg/logger"
)

// Handler bundles every dependency the REST surface dispatches against.
type Handler struct {
	store       storage.Store
	sandboxes   *sandboxmgr.Manager
	engine      *execution.Engine
	services    *servicesupervisor.Supervisor
	webhooks    *webhook.Router
	proxy       *proxy.Server
	webservices *websvc.Supervisor
	scheduler   *cron.Scheduler
	secrets     *secretsvault.Vault
	proxyCfg    config.ProxyConfig
	log         *logger.Logger
}

// New constructs a Handler.
func New(store storage.Store, sandboxes *sandboxmgr.Manager, engine *execution.Engine, services *servicesupervisor.Supervisor, webhooks *webhook.Router, proxySrv *proxy.Server, webservices *websvc.Supervisor, scheduler *cron.Scheduler, secrets *secretsvault.Vault, proxyCfg config.ProxyConfig, log *logger.Logger) *Handler {
	return &Handler{store: store, sandboxes: sandboxes, engine: engine, services: services, webhooks: webhooks, proxy: proxySrv, webservices: webservices, scheduler: scheduler, secrets: secrets, proxyCfg: proxyCfg, log: log}
}

// Router returns the fully mounted gorilla/mux router, wrapped with metrics
// instrumentation and CORS, mirroring the teacher's InstrumentHandler /
// wrapWithCORS layering in internal/app/httpapi/service.go.
func (h *Handler) Router(allowedOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", metrics.Handler())
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)

	r.HandleFunc("/containers", h.createContainer).Methods(http.MethodPost)
	r.HandleFunc("/containers", h.listContainers).Methods(http.MethodGet)
	r.HandleFunc("/containers", h.destroyAllContainers).Methods(http.MethodDelete)
	r.HandleFunc("/containers/{id}", h.getContainer).Methods(http.MethodGet)
	r.HandleFunc("/containers/{id}", h.destroyContainer).Methods(http.MethodDelete)

	r.HandleFunc("/execute", h.execute).Methods(http.MethodPost)

	r.HandleFunc("/jobs", h.createJob).Methods(http.MethodPost)
	r.HandleFunc("/jobs", h.listJobs).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}", h.getJob).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}", h.updateJob).Methods(http.MethodPut, http.MethodPatch)
	r.HandleFunc("/jobs/{id}", h.deleteJob).Methods(http.MethodDelete)

	r.HandleFunc("/webhook-jobs", h.createWebhookJob).Methods(http.MethodPost)
	r.HandleFunc("/webhook-jobs", h.listWebhookJobs).Methods(http.MethodGet)
	r.HandleFunc("/webhook-jobs/{id}", h.getWebhookJob).Methods(http.MethodGet)
	r.HandleFunc("/webhook-jobs/{id}", h.updateWebhookJob).Methods(http.MethodPut, http.MethodPatch)
	r.HandleFunc("/webhook-jobs/{id}", h.deleteWebhookJob).Methods(http.MethodDelete)
	r.PathPrefix("/webhook/").Handler(h.webhooks)

	r.HandleFunc("/services", h.createService).Methods(http.MethodPost)
	r.HandleFunc("/services", h.listServices).Methods(http.MethodGet)
	r.HandleFunc("/services/{id}", h.getService).Methods(http.MethodGet)
	r.HandleFunc("/services/{id}", h.updateService).Methods(http.MethodPut, http.MethodPatch)
	r.HandleFunc("/services/{id}", h.deleteService).Methods(http.MethodDelete)
	r.HandleFunc("/services/{id}/start", h.startService).Methods(http.MethodPost)
	r.HandleFunc("/services/{id}/stop", h.stopService).Methods(http.MethodPost)
	r.HandleFunc("/services/{id}/restart", h.restartService).Methods(http.MethodPost)
	r.HandleFunc("/services/{id}/logs", h.serviceLogs).Methods(http.MethodGet)

	r.HandleFunc("/env", h.setSecret).Methods(http.MethodPost)
	r.HandleFunc("/env", h.listSecretNames).Methods(http.MethodGet)
	r.HandleFunc("/env/metadata", h.listSecretMetadata).Methods(http.MethodGet)
	r.HandleFunc("/env/metadata/{name}", h.getSecretMetadata).Methods(http.MethodGet)
	r.HandleFunc("/env/{name}", h.getSecret).Methods(http.MethodGet)
	r.HandleFunc("/env/{name}", h.deleteSecret).Methods(http.MethodDelete)

	r.HandleFunc("/logs", h.listLogs).Methods(http.MethodGet)
	r.HandleFunc("/logs/{id}", h.getLog).Methods(http.MethodGet)

	r.HandleFunc("/proxy", h.listProxied).Methods(http.MethodGet)
	r.PathPrefix("/proxy/").HandlerFunc(h.dispatchProxy)

	handler := http.Handler(r)
	handler = wrapWithCORS(handler, allowedOrigins)
	handler = metrics.InstrumentHandler(handler)
	return handler
}

// dispatchProxy hands HTTP and WebSocket-upgrade requests on /proxy/* to the
// ReverseProxy component, per spec.md §4.5.
func (h *Handler) dispatchProxy(w http.ResponseWriter, r *http.Request) {
	if strings.EqualFold(r.Header.Get("Connection"), "upgrade") && strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		h.proxy.ServeWebSocket(w, r)
		return
	}
	h.proxy.ServeHTTP(w, r)
}

// wrapWithCORS allows cross-origin requests from the configured origins (or
// any origin when none is configured), mirroring the teacher's
// wrapWithCORS/corsMiddleware in internal/app/httpapi/service.go and
// cmd/gateway/middleware.go.
func wrapWithCORS(next http.Handler, allowedOrigins []string) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case len(allowed) == 0:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case allowed[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "timestamp": time.Now().UTC()})
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeAPIError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apierr.KindOf(err) {
	case apierr.KindValidation, apierr.KindCodeMissing, apierr.KindConflict:
		status = http.StatusBadRequest
	case apierr.KindNotFound, apierr.KindSandboxNotFound:
		status = http.StatusNotFound
	case apierr.KindServiceUnreachable:
		status = http.StatusServiceUnavailable
	case apierr.KindUpstreamTimeout:
		status = http.StatusGatewayTimeout
	case apierr.KindImageBuildFailed, apierr.KindSandboxCreateFailed, apierr.KindInfra:
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func parseLimitOffset(q map[string][]string, defLimit int) (limit, offset int, err error) {
	limit = defLimit
	if v := first(q, "limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, err
		}
	}
	if v := first(q, "offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			return 0, 0, err
		}
	}
	return limit, offset, nil
}

func first(q map[string][]string, key string) string {
	if vs, ok := q[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}
