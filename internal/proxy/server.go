package proxy

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/r3elabs/execforge/internal/domain/webservice"
	"github.com/r3elabs/execforge/pkg/config"
	"github.com/r3elabs/execforge/pkg/logger"
)

// Registry exposes the live web services the proxy routes to.
type Registry interface {
	Get(sandboxID string) (*webservice.WebService, bool)
	All() []*webservice.WebService
}

// Server is the ReverseProxy component.
type Server struct {
	registry    Registry
	hostAliases []string
	dialTimeout time.Duration
	httpClient  *http.Client
	log         *logger.Logger
}

// New constructs a Server.
func New(registry Registry, cfg config.DockerConfig, proxyCfg config.ProxyConfig, log *logger.Logger) *Server {
	return &Server{
		registry:    registry,
		hostAliases: cfg.HostAliases,
		dialTimeout: time.Duration(proxyCfg.DialTimeoutMS) * time.Millisecond,
		httpClient:  &http.Client{Timeout: time.Duration(proxyCfg.DialTimeoutMS) * time.Millisecond},
		log:         log,
	}
}

// ServeHTTP implements the non-WebSocket proxy path: /proxy/<short_id>/<rest>.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	shortID, _ := splitProxyPath(r.URL.Path)
	svc := s.findByShortID(shortID)

	if svc == nil {
		if fallback := s.staticFallback(r.URL.Path); fallback != nil {
			svc = fallback
			shortID = webservice.ProxyPathFor(svc.SandboxID)
		} else {
			http.NotFound(w, r)
			return
		}
	}

	handler := HandlerFor(svc.Framework)
	targetPath := handler.RewriteHTTP(shortID, r.URL.Path)

	upstream, err := resolveUpstream(r.Context(), s.httpClient, s.hostAliases, svc.ExternalPort, "/")
	if err != nil {
		s.log.WithField("sandbox", svc.SandboxID).Warn("upstream unreachable")
		http.Error(w, "service unreachable", http.StatusServiceUnavailable)
		return
	}

	target, err := url.Parse(upstream)
	if err != nil {
		http.Error(w, "bad upstream", http.StatusInternalServerError)
		return
	}

	rp := httputil.NewSingleHostReverseProxy(target)
	originalDirector := rp.Director
	rp.Director = func(req *http.Request) {
		originalDirector(req)
		req.URL.Path = targetPath
		req.Host = target.Host
		req.Header.Set("X-Real-IP", clientIP(r))
		req.Header.Add("X-Forwarded-For", clientIP(r))
		req.Header.Set("X-Forwarded-Proto", "http")
		req.Header.Del("Proxy-Connection")
		req.Header.Del("Accept-Encoding")
		for k, v := range handler.ExtraHeaders() {
			req.Header.Set(k, v)
		}
	}
	rp.ModifyResponse = func(resp *http.Response) error {
		if resp.StatusCode != http.StatusSwitchingProtocols {
			resp.Header.Del("Content-Encoding")
			resp.Header.Del("Transfer-Encoding")
		}
		return nil
	}
	rp.ServeHTTP(w, r)
}

func (s *Server) findByShortID(shortID string) *webservice.WebService {
	for _, svc := range s.registry.All() {
		if webservice.ProxyPathFor(svc.SandboxID) == shortID {
			return svc
		}
	}
	return nil
}

// staticFallback selects the most recently active service whose framework
// claims path's pattern, when the request arrives without a container
// prefix.
func (s *Server) staticFallback(path string) *webservice.WebService {
	if !IsKnownStaticPath(path) {
		return nil
	}
	var best *webservice.WebService
	for _, svc := range s.registry.All() {
		if !HandlerFor(svc.Framework).ClaimsStatic(path) {
			continue
		}
		if best == nil || svc.LastActiveAt.After(best.LastActiveAt) {
			best = svc
		}
	}
	return best
}

func splitProxyPath(path string) (shortID, rest string) {
	trimmed := strings.TrimPrefix(path, "/proxy/")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		return host[:idx]
	}
	return host
}
