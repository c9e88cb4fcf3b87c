package execution_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/r3elabs/execforge/internal/apierr"
	"github.com/r3elabs/execforge/internal/execution"
	"github.com/r3elabs/execforge/internal/runtime"
	"github.com/r3elabs/execforge/internal/sandboxmgr"
	"github.com/r3elabs/execforge/pkg/config"
	"github.com/r3elabs/execforge/pkg/logger"
)

type noopRuntime struct{}

func (noopRuntime) CreateAndStart(context.Context, runtime.ContainerSpec) (string, error) {
	return "", nil
}
func (noopRuntime) Stop(context.Context, string) error { return nil }

func sandboxManagerWithNoSandboxes(t *testing.T) *sandboxmgr.Manager {
	t.Helper()
	return sandboxmgr.New(noopRuntime{}, config.SandboxConfig{}, logger.NewDefault("test"))
}

func TestExecuteRejectsEmptyCode(t *testing.T) {
	e := execution.New(nil, nil, nil, nil, nil, nil)
	_, err := e.Execute(context.Background(), "", nil, 30, "")
	require.True(t, apierr.Is(err, apierr.KindCodeMissing))
}

func TestExecuteRejectsUnknownBoundSandbox(t *testing.T) {
	// Exercises resolveSandbox's not-found branch: the bound sandbox id is
	// looked up in a SandboxManager backed by a no-op runtime, and the image
	// cache and Docker client are never reached, so both can be nil.
	e := execution.New(nil, sandboxManagerWithNoSandboxes(t), nil, nil, nil, nil)
	_, err := e.Execute(context.Background(), "print(1)", nil, 30, "missing-id")
	require.True(t, apierr.Is(err, apierr.KindSandboxNotFound))
}
