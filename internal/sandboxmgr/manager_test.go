package sandboxmgr_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/r3elabs/execforge/internal/runtime"
	"github.com/r3elabs/execforge/internal/sandboxmgr"
	"github.com/r3elabs/execforge/pkg/config"
	"github.com/r3elabs/execforge/pkg/logger"
)

type fakeRuntime struct {
	created int
	stopped []string
}

func (f *fakeRuntime) CreateAndStart(_ context.Context, spec runtime.ContainerSpec) (string, error) {
	f.created++
	return spec.Name, nil
}

func (f *fakeRuntime) Stop(_ context.Context, containerID string) error {
	f.stopped = append(f.stopped, containerID)
	return nil
}

func newManager(rt *fakeRuntime) *sandboxmgr.Manager {
	cfg := config.SandboxConfig{MemoryLimitMB: 512, NanoCPUs: 500_000_000, PIDsLimit: 50, TmpfsSizeMB: 64}
	return sandboxmgr.New(rt, cfg, logger.NewDefault("sandboxmgr"))
}

func TestGetOrCreateReusableReturnsSameSandboxForSameDigest(t *testing.T) {
	rt := &fakeRuntime{}
	m := newManager(rt)

	first, err := m.GetOrCreateReusable(context.Background(), "abc123", "execforge-sandbox-base:abc123")
	require.NoError(t, err)

	second, err := m.GetOrCreateReusable(context.Background(), "abc123", "execforge-sandbox-base:abc123")
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, rt.created)
}

func TestCreateWebSandboxAlwaysAllocatesFresh(t *testing.T) {
	rt := &fakeRuntime{}
	m := newManager(rt)

	a, err := m.CreateWebSandbox(context.Background(), "execforge-sandbox-base:abc123", "abc123", 8501, 9005)
	require.NoError(t, err)
	b, err := m.CreateWebSandbox(context.Background(), "execforge-sandbox-base:abc123", "abc123", 8501, 9006)
	require.NoError(t, err)

	require.NotEqual(t, a.ID, b.ID)
	require.Equal(t, 2, m.Count())
}

func TestDestroyEvictsFromBothCaches(t *testing.T) {
	rt := &fakeRuntime{}
	m := newManager(rt)

	sb, err := m.GetOrCreateReusable(context.Background(), "digest", "execforge-sandbox-base:digest")
	require.NoError(t, err)

	require.NoError(t, m.Destroy(context.Background(), sb.ID))
	require.Equal(t, 0, m.Count())

	_, ok := m.Get(sb.ID)
	require.False(t, ok)
}
