// Package execution implements the ExecutionEngine component: it runs a
// fragment of user code inside a sandbox with streaming capture, deadline
// enforcement, and resource metering.
package execution

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/r3elabs/execforge/internal/apierr"
	"github.com/r3elabs/execforge/internal/domain/executionlog"
	"github.com/r3elabs/execforge/internal/domain/sandbox"
	"github.com/r3elabs/execforge/internal/imagecache"
	"github.com/r3elabs/execforge/internal/metrics"
	"github.com/r3elabs/execforge/internal/runtime"
	"github.com/r3elabs/execforge/internal/sandboxmgr"
	"github.com/r3elabs/execforge/pkg/logger"
)

// Classifier detects whether a code fragment is a web service, deferring to
// the WebServiceSupervisor without creating an import cycle between
// execution and websvc.
type Classifier interface {
	Detect(code string, packages []string) (framework string, isWebService bool)
}

// Secrets exposes the decrypted secret set injected as environment at
// execution time.
type Secrets interface {
	AllDecrypted(ctx context.Context) map[string]string
}

// Engine is the ExecutionEngine component.
type Engine struct {
	images     *imagecache.Cache
	sandboxes  *sandboxmgr.Manager
	runtime    *runtime.DockerClient
	classifier Classifier
	secrets    Secrets
	log        *logger.Logger

	sandboxLocks sync.Map // sandbox id -> *sync.Mutex
}

// New constructs an Engine.
func New(images *imagecache.Cache, sandboxes *sandboxmgr.Manager, rt *runtime.DockerClient, classifier Classifier, secrets Secrets, log *logger.Logger) *Engine {
	return &Engine{images: images, sandboxes: sandboxes, runtime: rt, classifier: classifier, secrets: secrets, log: log}
}

// Images exposes the underlying ImageCache so the HTTP layer can build the
// same image a plain /containers create would, before registering a reusable
// sandbox against it.
func (e *Engine) Images() *imagecache.Cache { return e.images }

// Sandboxes exposes the underlying SandboxManager for container endpoints
// that need to bypass execution to manage sandboxes directly.
func (e *Engine) Sandboxes() *sandboxmgr.Manager { return e.sandboxes }

func (e *Engine) lockFor(sandboxID string) *sync.Mutex {
	m, _ := e.sandboxLocks.LoadOrStore(sandboxID, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// Execute runs code against packages, reusing boundSandbox if given, and
// enforces timeoutS as a wall-clock deadline on one-shot runs. It implements
// only the one-shot algorithm of spec.md §4.3 step 3: the Classifier is not
// consulted, and no caller in this module (the /execute handler, the cron
// scheduler, the webhook router) classifies code first, so web-service code
// is run one-shot as well; websvc.Supervisor.Launch is not called from here.
func (e *Engine) Execute(ctx context.Context, code string, packages []string, timeoutS int, boundSandbox string) (Result, error) {
	if code == "" {
		return Result{}, apierr.CodeMissing()
	}

	start := time.Now()
	sb, err := e.resolveSandbox(ctx, packages, boundSandbox)
	if err != nil {
		return Result{}, err
	}

	lock := e.lockFor(sb.ID)
	lock.Lock()
	defer lock.Unlock()

	preStats, _ := e.runtime.Stats(ctx, sb.ID)

	execCtx := ctx
	var cancel context.CancelFunc
	if timeoutS > 0 {
		execCtx, cancel = context.WithTimeout(ctx, time.Duration(timeoutS)*time.Second)
		defer cancel()
	}

	env := e.secretEnv(ctx)
	encoded := base64.StdEncoding.EncodeToString([]byte(code))
	cmd := []string{"sh", "-c", fmt.Sprintf("echo %s | base64 -d | python3", encoded)}

	result, execErr := e.runtime.Exec(execCtx, sb.ID, append([]string{}, cmd...), env)

	timedOut := execCtx.Err() == context.DeadlineExceeded
	if timedOut {
		// Exec's read unblocked because the attach was force-closed, not
		// because the in-sandbox process exited; signal it directly.
		e.runtime.Kill(sb.ID, "python3")
	}
	elapsed := time.Since(start).Seconds()

	postStats, _ := e.runtime.Stats(ctx, sb.ID)
	snapshot := diffMetrics(preStats, postStats, result.ExitCode)

	mode := "oneshot"
	if boundSandbox != "" {
		mode = "service"
	}

	res := Result{
		SandboxID:      sb.ID,
		ExecutionTimeS: elapsed,
		TimedOut:       timedOut,
		ExitCode:       result.ExitCode,
		Output:         result.Output,
		Metrics:        snapshot,
	}

	switch {
	case timedOut:
		res.Success = false
		res.Output += "\n[execution timed out]"
		metrics.RecordExecution(mode, "timeout", time.Since(start))
	case execErr != nil || result.ExitCode != 0:
		res.Success = false
		res.Error = result.Output
		metrics.RecordExecution(mode, "error", time.Since(start))
	default:
		res.Success = true
		metrics.RecordExecution(mode, "success", time.Since(start))
	}

	return res, nil
}

func (e *Engine) resolveSandbox(ctx context.Context, packages []string, boundSandbox string) (*sandbox.Sandbox, error) {
	if boundSandbox != "" {
		sb, ok := e.sandboxes.Get(boundSandbox)
		if !ok {
			return nil, apierr.SandboxNotFound(boundSandbox)
		}
		return sb, nil
	}

	ref, err := e.images.Build(ctx, packages)
	if err != nil {
		return nil, err
	}
	digest := imagecache.Digest(packages)
	return e.sandboxes.GetOrCreateReusable(ctx, digest, ref)
}

func (e *Engine) secretEnv(ctx context.Context) []string {
	if e.secrets == nil {
		return nil
	}
	decrypted := e.secrets.AllDecrypted(ctx)
	env := make([]string, 0, len(decrypted))
	for k, v := range decrypted {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

// Status maps a Result to the ExecutionLog status vocabulary.
func (r Result) Status() executionlog.Status {
	switch {
	case r.TimedOut:
		return executionlog.StatusTimeout
	case !r.Success:
		return executionlog.StatusError
	default:
		return executionlog.StatusSuccess
	}
}
