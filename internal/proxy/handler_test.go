package proxy_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/r3elabs/execforge/internal/domain/webservice"
	"github.com/r3elabs/execforge/internal/proxy"
)

func TestGenericHandlerStripsPrefix(t *testing.T) {
	h := proxy.HandlerFor(webservice.FrameworkFastAPI)
	require.Equal(t, "/items", h.RewriteHTTP("abcd1234", "/proxy/abcd1234/items"))
	require.Equal(t, "/", h.RewriteHTTP("abcd1234", "/proxy/abcd1234"))
}

func TestDashHandlerPreservesPrefixAndEnforcesTrailingSlash(t *testing.T) {
	h := proxy.HandlerFor(webservice.FrameworkDash)
	require.Equal(t, "/proxy/abcd1234/", h.RewriteHTTP("abcd1234", "/proxy/abcd1234"))
	require.Equal(t, "/proxy/abcd1234/_dash-layout", h.RewriteHTTP("abcd1234", "/proxy/abcd1234/_dash-layout"))
}

func TestStreamlitClaimsStaticPatterns(t *testing.T) {
	h := proxy.HandlerFor(webservice.FrameworkStreamlit)
	require.True(t, h.ClaimsStatic("/_stcore/stream"))
	require.True(t, h.ClaimsStatic("/static/main.js"))
	require.False(t, h.ClaimsStatic("/api/data"))
}

func TestIsKnownStaticPath(t *testing.T) {
	require.True(t, proxy.IsKnownStaticPath("/favicon.ico"))
	require.False(t, proxy.IsKnownStaticPath("/some/random/path"))
}
