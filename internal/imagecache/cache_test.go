package imagecache_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/r3elabs/execforge/internal/imagecache"
	"github.com/r3elabs/execforge/pkg/logger"
)

type fakeRuntime struct {
	mu        sync.Mutex
	existing  map[string]bool
	buildCnt  int32
	failBuild bool
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{existing: make(map[string]bool)}
}

func (f *fakeRuntime) ImageExists(_ context.Context, ref string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[ref], nil
}

func (f *fakeRuntime) BuildImage(_ context.Context, buildContext io.Reader, ref string) error {
	atomic.AddInt32(&f.buildCnt, 1)
	if _, err := io.Copy(io.Discard, buildContext); err != nil {
		return err
	}
	if f.failBuild {
		return errors.New("daemon exploded")
	}
	f.mu.Lock()
	f.existing[ref] = true
	f.mu.Unlock()
	return nil
}

func TestBuildCoalescesConcurrentCallsForSameDigest(t *testing.T) {
	rt := newFakeRuntime()
	cache := imagecache.New(rt, "execforge-sandbox-base", logger.NewDefault("imagecache"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Build(context.Background(), []string{"requests", "numpy"})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	// base image + one package image, regardless of concurrency
	require.EqualValues(t, 2, atomic.LoadInt32(&rt.buildCnt))
}

func TestBuildFailurePropagatesAndIsNotCached(t *testing.T) {
	rt := newFakeRuntime()
	rt.failBuild = true
	cache := imagecache.New(rt, "execforge-sandbox-base", logger.NewDefault("imagecache"))

	_, err := cache.Build(context.Background(), []string{"torch"})
	require.Error(t, err)

	// The failed base build was not recorded as built: a retry builds the
	// base image again and then the package image.
	rt.failBuild = false
	_, err = cache.Build(context.Background(), []string{"torch"})
	require.NoError(t, err)
	require.EqualValues(t, 3, atomic.LoadInt32(&rt.buildCnt))
}

func TestDigestIsDeterministicAcrossOrdering(t *testing.T) {
	require.Equal(t, imagecache.Digest([]string{"b", "a"}), imagecache.Digest([]string{"a", "b", "a"}))
}
