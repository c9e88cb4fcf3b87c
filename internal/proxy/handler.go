// Package proxy implements the ReverseProxy component: it forwards external
// HTTP and WebSocket traffic addressed as /proxy/<short_id>/<rest> to the
// correct WebService, with framework-aware path handling and fallback
// routing for unqualified static-asset requests.
package proxy

import (
	"strings"

	"github.com/r3elabs/execforge/internal/domain/webservice"
)

// FrameworkHandler is the per-framework rewrite/claims strategy of spec.md
// §4.5's polymorphic handler selection.
type FrameworkHandler interface {
	RewriteHTTP(shortID, path string) string
	RewriteWS(shortID, path string) (primary string, alternative string)
	ExtraHeaders() map[string]string
	ClaimsStatic(path string) bool
}

// HandlerFor returns the FrameworkHandler for framework.
func HandlerFor(framework webservice.Framework) FrameworkHandler {
	switch framework {
	case webservice.FrameworkStreamlit:
		return streamlitHandler{}
	case webservice.FrameworkDash:
		return dashHandler{}
	case webservice.FrameworkGradio:
		return genericHandler{}
	default:
		return genericHandler{}
	}
}

func stripPrefix(shortID, path string) string {
	prefix := "/proxy/" + shortID
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" {
		return "/"
	}
	if !strings.HasPrefix(rest, "/") {
		return "/" + rest
	}
	return rest
}

// genericHandler covers FastAPI, Flask, and Gradio: strip the prefix, no
// static preference.
type genericHandler struct{}

func (genericHandler) RewriteHTTP(shortID, path string) string { return stripPrefix(shortID, path) }

func (genericHandler) RewriteWS(shortID, path string) (string, string) {
	return stripPrefix(shortID, path), ""
}

func (genericHandler) ExtraHeaders() map[string]string { return nil }

func (genericHandler) ClaimsStatic(string) bool { return false }

// streamlitHandler strips the prefix and prefers well-known Streamlit static
// asset patterns, with a fallback WebSocket path.
type streamlitHandler struct{}

func (streamlitHandler) RewriteHTTP(shortID, path string) string { return stripPrefix(shortID, path) }

func (streamlitHandler) RewriteWS(shortID, path string) (string, string) {
	stripped := stripPrefix(shortID, path)
	kept := path
	return stripped, kept
}

func (streamlitHandler) ExtraHeaders() map[string]string { return nil }

func (streamlitHandler) ClaimsStatic(path string) bool {
	return matchesAny(path, "_stcore", "static", "favicon.ico", "manifest.json")
}

// dashHandler preserves the prefix (Dash is configured with
// url_base_pathname) and enforces a trailing slash.
type dashHandler struct{}

func (dashHandler) RewriteHTTP(shortID, path string) string {
	prefix := "/proxy/" + shortID
	if path == prefix {
		return prefix + "/"
	}
	return path
}

func (dashHandler) RewriteWS(_, path string) (string, string) { return path, "" }

func (dashHandler) ExtraHeaders() map[string]string { return nil }

func (dashHandler) ClaimsStatic(path string) bool {
	return matchesAny(path, "_dash-component-suites", "_dash-layout", "_dash-dependencies", "_dash-update-component")
}

func matchesAny(path string, patterns ...string) bool {
	trimmed := strings.TrimPrefix(path, "/")
	for _, p := range patterns {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

// staticPatterns is the set recognised for unprefixed-static fallback
// routing, independent of any single framework's claims.
var staticPatterns = []string{"static", "_stcore", "_dash-component-suites", "favicon.ico"}

// IsKnownStaticPath reports whether path, with its leading slash removed,
// begins with one of the known static-asset patterns (a prefix match, not a
// whole-segment comparison).
func IsKnownStaticPath(path string) bool {
	return matchesAny(path, staticPatterns...)
}
