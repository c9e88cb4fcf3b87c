// Package imagecache maintains a content-addressed cache of sandbox images,
// building on miss and coalescing concurrent builds of the same digest.
package imagecache

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/r3elabs/execforge/internal/apierr"
	"github.com/r3elabs/execforge/internal/domain/image"
	"github.com/r3elabs/execforge/internal/metrics"
	"github.com/r3elabs/execforge/pkg/logger"
)

// Runtime is the subset of the Docker client the cache needs.
type Runtime interface {
	ImageExists(ctx context.Context, ref string) (bool, error)
	BuildImage(ctx context.Context, buildContext io.Reader, ref string) error
}

// build tracks an in-flight build so concurrent callers for the same digest
// coalesce onto one result.
type build struct {
	done chan struct{}
	err  error
}

// Cache is the ImageCache component: digest(package_set) -> build(ref).
type Cache struct {
	runtime  Runtime
	baseRepo string
	log      *logger.Logger

	mu      sync.Mutex
	inFlight map[string]*build
	built    map[string]bool
}

// New constructs a Cache targeting baseRepo (e.g. "execforge-sandbox-base")
// for the canonical base image.
func New(runtime Runtime, baseRepo string, log *logger.Logger) *Cache {
	return &Cache{
		runtime:  runtime,
		baseRepo: baseRepo,
		log:      log,
		inFlight: make(map[string]*build),
		built:    make(map[string]bool),
	}
}

// Digest returns the content-addressed tag for packages.
func Digest(packages []string) string {
	return image.Digest(packages)
}

// EnsureBase builds the canonical base image if it is not already present.
// Callers invoke this lazily before any Build.
func (c *Cache) EnsureBase(ctx context.Context) error {
	return c.build(ctx, image.BaseTag, nil)
}

// Build returns the image reference for packages, building it if absent.
// Concurrent builds of the same digest coalesce: only one actually builds,
// the rest wait on the same result.
func (c *Cache) Build(ctx context.Context, packages []string) (string, error) {
	if err := c.EnsureBase(ctx); err != nil {
		return "", err
	}
	img := image.New(packages)
	if err := c.build(ctx, img.Tag, img.PackageSet); err != nil {
		return "", err
	}
	return c.ref(img.Tag), nil
}

func (c *Cache) ref(tag string) string {
	return fmt.Sprintf("%s:%s", c.baseRepo, tag)
}

func (c *Cache) build(ctx context.Context, tag string, packages []string) error {
	c.mu.Lock()
	if c.built[tag] {
		c.mu.Unlock()
		return nil
	}
	if existing, ok := c.inFlight[tag]; ok {
		c.mu.Unlock()
		<-existing.done
		return existing.err
	}
	b := &build{done: make(chan struct{})}
	c.inFlight[tag] = b
	c.mu.Unlock()

	err := c.buildOnce(ctx, tag, packages)

	c.mu.Lock()
	delete(c.inFlight, tag)
	if err == nil {
		c.built[tag] = true
	}
	c.mu.Unlock()

	b.err = err
	close(b.done)
	return err
}

func (c *Cache) buildOnce(ctx context.Context, tag string, packages []string) error {
	ref := c.ref(tag)
	exists, err := c.runtime.ImageExists(ctx, ref)
	if err != nil {
		return apierr.Wrap(apierr.KindImageBuildFailed, fmt.Sprintf("inspect image %s", ref), err)
	}
	if exists {
		metrics.RecordImageBuild("hit")
		return nil
	}

	dockerfile := dockerfileFor(c.baseRepo, tag, packages)
	tarCtx, err := tarBuildContext(dockerfile)
	if err != nil {
		return apierr.Wrap(apierr.KindImageBuildFailed, fmt.Sprintf("build context for %s", ref), err)
	}

	c.log.WithField("image", ref).Info("building sandbox image")
	if err := c.runtime.BuildImage(ctx, tarCtx, ref); err != nil {
		metrics.RecordImageBuild("failed")
		return apierr.Wrap(apierr.KindImageBuildFailed, fmt.Sprintf("build image %s", ref), err)
	}
	metrics.RecordImageBuild("built")
	return nil
}

// tarBuildContext packages a single Dockerfile into the tar stream the
// Docker build API expects as its build context.
func tarBuildContext(dockerfile string) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{
		Name: "Dockerfile",
		Mode: 0o644,
		Size: int64(len(dockerfile)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, err
	}
	if _, err := tw.Write([]byte(dockerfile)); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}

func dockerfileFor(baseRepo, tag string, packages []string) string {
	if tag == image.BaseTag {
		return strings.Join([]string{
			"FROM python:3.12-slim",
			"RUN useradd -u 1000 -m sandbox",
			"RUN pip install --no-cache-dir requests flask fastapi uvicorn streamlit gradio dash",
			"WORKDIR /home/sandbox",
			"USER 1000:1000",
		}, "\n") + "\n"
	}
	return fmt.Sprintf("FROM %s:%s\nUSER root\nRUN pip install --no-cache-dir %s\nUSER 1000:1000\n",
		baseRepo, image.BaseTag, strings.Join(packages, " "))
}
