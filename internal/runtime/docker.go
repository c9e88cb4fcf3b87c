package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
)

// sandboxUser is the non-root UID:GID every sandbox container runs as.
const sandboxUser = "1000:1000"

// DockerClient wraps the Docker Engine API client with the small surface the
// engine needs: image build/inspect, container create/start/stop/exec/remove.
type DockerClient struct {
	cli *client.Client
}

// NewDockerClient dials the Docker daemon at host (empty uses the client
// library's default, honoring DOCKER_HOST) pinned to apiVersion.
func NewDockerClient(host, apiVersion string) (*DockerClient, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	if apiVersion != "" {
		opts = append(opts, client.WithVersion(apiVersion))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &DockerClient{cli: cli}, nil
}

// Ping verifies the daemon is reachable.
func (d *DockerClient) Ping(ctx context.Context) error {
	_, err := d.cli.Ping(ctx)
	return err
}

// ImageExists reports whether an image tagged ref is present locally.
func (d *DockerClient) ImageExists(ctx context.Context, ref string) (bool, error) {
	_, _, err := d.cli.ImageInspectWithRaw(ctx, ref)
	if err == nil {
		return true, nil
	}
	if client.IsErrNotFound(err) {
		return false, nil
	}
	return false, err
}

// BuildImage runs a Dockerfile build from an in-memory tar context, tagging
// the result as ref. The caller supplies the tar stream (see imagecache for
// construction).
func (d *DockerClient) BuildImage(ctx context.Context, buildContext io.Reader, ref string) error {
	resp, err := d.cli.ImageBuild(ctx, buildContext, types.ImageBuildOptions{
		Tags:       []string{ref},
		Dockerfile: "Dockerfile",
		Remove:     true,
	})
	if err != nil {
		return fmt.Errorf("build image %s: %w", ref, err)
	}
	defer resp.Body.Close()
	_, err = io.Copy(io.Discard, resp.Body)
	return err
}

// ContainerSpec describes the container to create.
type ContainerSpec struct {
	Image          string
	Name           string
	Cmd            []string
	Env            []string
	MemoryBytes    int64
	NanoCPUs       int64
	PIDsLimit      int64
	TmpfsSizeMB    int64
	SeccompProfile string // path to a JSON seccomp profile; empty uses Docker's default
	PortBindings   map[string]string // containerPort/proto -> hostPort
	Network        string
}

// CreateAndStart creates a hardened container per spec and starts it,
// returning the container ID. The hardening profile (spec.md §4.2): all
// capabilities dropped except SETUID/SETGID (needed for the in-sandbox
// interpreter to drop further from its entrypoint), a read-only root
// filesystem with noexec,nosuid tmpfs scratch space, a non-root user, and
// ulimits bounding open files and process count on top of the PIDs cgroup.
func (d *DockerClient) CreateAndStart(ctx context.Context, spec ContainerSpec) (string, error) {
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for containerPort, hostPort := range spec.PortBindings {
		p, err := nat.NewPort("tcp", containerPort)
		if err != nil {
			return "", fmt.Errorf("parse container port %s: %w", containerPort, err)
		}
		exposed[p] = struct{}{}
		bindings[p] = []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: hostPort}}
	}

	securityOpt := []string{"no-new-privileges"}
	if spec.SeccompProfile != "" {
		securityOpt = append(securityOpt, "seccomp="+spec.SeccompProfile)
	}
	securityOpt = append(securityOpt, "apparmor=docker-default")

	pidsLimit := spec.PIDsLimit
	nofile := &container.Ulimit{Name: "nofile", Soft: 256, Hard: 256}
	nproc := &container.Ulimit{Name: "nproc", Soft: spec.PIDsLimit, Hard: spec.PIDsLimit}

	hostCfg := &container.HostConfig{
		PortBindings: bindings,
		Resources: container.Resources{
			Memory:    spec.MemoryBytes,
			NanoCPUs:  spec.NanoCPUs,
			PidsLimit: &pidsLimit,
			Ulimits:   []*container.Ulimit{nofile, nproc},
		},
		Tmpfs: map[string]string{
			"/tmp":     fmt.Sprintf("size=%dm,noexec,nosuid", spec.TmpfsSizeMB),
			"/var/tmp": fmt.Sprintf("size=%dm,noexec,nosuid", spec.TmpfsSizeMB),
		},
		SecurityOpt:    securityOpt,
		CapDrop:        []string{"ALL"},
		CapAdd:         []string{"SETUID", "SETGID"},
		ReadonlyRootfs: true,
	}

	created, err := d.cli.ContainerCreate(ctx, &container.Config{
		Image:        spec.Image,
		Cmd:          spec.Cmd,
		Env:          spec.Env,
		User:         sandboxUser,
		Tty:          false,
		ExposedPorts: exposed,
	}, hostCfg, nil, nil, spec.Name)
	if err != nil {
		return "", fmt.Errorf("create container %s: %w", spec.Name, err)
	}

	if err := d.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("start container %s: %w", created.ID, err)
	}
	return created.ID, nil
}

// Stop stops and removes a container, ignoring not-found errors.
func (d *DockerClient) Stop(ctx context.Context, containerID string) error {
	timeout := 5
	if err := d.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("stop container %s: %w", containerID, err)
	}
	if err := d.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("remove container %s: %w", containerID, err)
	}
	return nil
}

// Inspect returns the live container state.
func (d *DockerClient) Inspect(ctx context.Context, containerID string) (types.ContainerJSON, error) {
	return d.cli.ContainerInspect(ctx, containerID)
}

// Stats fetches a one-shot resource usage snapshot for a container.
func (d *DockerClient) Stats(ctx context.Context, containerID string) (types.StatsJSON, error) {
	resp, err := d.cli.ContainerStatsOneShot(ctx, containerID)
	if err != nil {
		return types.StatsJSON{}, fmt.Errorf("stats %s: %w", containerID, err)
	}
	defer resp.Body.Close()

	var stats types.StatsJSON
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return types.StatsJSON{}, fmt.Errorf("decode stats %s: %w", containerID, err)
	}
	return stats, nil
}

// ListLocalImages returns the repo tags already pulled/built locally.
func (d *DockerClient) ListLocalImages(ctx context.Context) ([]image.Summary, error) {
	return d.cli.ImageList(ctx, image.ListOptions{})
}

// ExecResult carries the combined output and exit code of a one-shot exec.
type ExecResult struct {
	Output   string
	ExitCode int
}

// Exec runs cmd inside a running container and waits for completion,
// capturing stdout/stderr combined. env is injected as the process
// environment (the decrypted secret vault, for user code execution). Used
// by the execution engine to run user code inside a reusable sandbox through
// a `base64 -d | python3` shell pipeline.
//
// The hijacked attach connection doesn't observe ctx cancellation on its
// own, so a watcher goroutine force-closes it when ctx is done, unblocking
// the StdCopy read. Callers that need the in-sandbox process itself killed
// on timeout (not just the read abandoned) should follow up with Kill.
func (d *DockerClient) Exec(ctx context.Context, containerID string, cmd []string, env []string) (ExecResult, error) {
	created, err := d.cli.ContainerExecCreate(ctx, containerID, types.ExecConfig{
		Cmd:          cmd,
		Env:          env,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return ExecResult{}, fmt.Errorf("exec create %s: %w", containerID, err)
	}

	attach, err := d.cli.ContainerExecAttach(ctx, created.ID, types.ExecStartCheck{})
	if err != nil {
		return ExecResult{}, fmt.Errorf("exec attach %s: %w", containerID, err)
	}
	defer attach.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			attach.Close()
		case <-done:
		}
	}()

	var stdout, stderr bytes.Buffer
	_, copyErr := stdcopy.StdCopy(&stdout, &stderr, attach.Reader)
	if copyErr != nil && ctx.Err() != nil {
		return ExecResult{}, ctx.Err()
	}
	if copyErr != nil {
		return ExecResult{}, fmt.Errorf("read exec output %s: %w", containerID, copyErr)
	}
	output := stdout.String() + stderr.String()

	inspect, err := d.cli.ContainerExecInspect(context.Background(), created.ID)
	if err != nil {
		return ExecResult{}, fmt.Errorf("exec inspect %s: %w", containerID, err)
	}

	return ExecResult{Output: string(output), ExitCode: inspect.ExitCode}, nil
}

// Kill best-effort signals any in-sandbox process matching pattern via
// pkill, using a short-lived detached context so it still runs after the
// caller's own exec context has expired (spec.md §4.3 step d). Errors are
// intentionally swallowed: this is a last-resort cleanup, not a guarantee.
func (d *DockerClient) Kill(containerID, pattern string) {
	killCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	created, err := d.cli.ContainerExecCreate(killCtx, containerID, types.ExecConfig{
		Cmd: []string{"pkill", "-f", pattern},
	})
	if err != nil {
		return
	}
	_ = d.cli.ContainerExecStart(killCtx, created.ID, types.ExecStartCheck{})
}

// Close releases the underlying HTTP transport.
func (d *DockerClient) Close() error {
	return d.cli.Close()
}
