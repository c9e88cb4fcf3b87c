package servicesupervisor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/r3elabs/execforge/internal/domain/persistentservice"
	"github.com/r3elabs/execforge/internal/servicesupervisor"
	"github.com/r3elabs/execforge/pkg/logger"
)

type fakeStore struct {
	services map[string]persistentservice.Service
}

func newFakeStore(svcs ...persistentservice.Service) *fakeStore {
	s := &fakeStore{services: make(map[string]persistentservice.Service)}
	for _, svc := range svcs {
		s.services[svc.ID] = svc
	}
	return s
}

func (f *fakeStore) GetService(_ context.Context, id string) (persistentservice.Service, error) {
	svc, ok := f.services[id]
	if !ok {
		return persistentservice.Service{}, errors.New("service not found")
	}
	return svc, nil
}

func (f *fakeStore) UpdateService(_ context.Context, svc persistentservice.Service) (persistentservice.Service, error) {
	f.services[svc.ID] = svc
	return svc, nil
}

func (f *fakeStore) ListServices(_ context.Context) ([]persistentservice.Service, error) {
	out := make([]persistentservice.Service, 0, len(f.services))
	for _, svc := range f.services {
		out = append(out, svc)
	}
	return out, nil
}

func TestAutoStartSkipsInactiveAndNonAutoStartServices(t *testing.T) {
	store := newFakeStore(
		persistentservice.Service{ID: "a", AutoStart: false, IsActive: true},
		persistentservice.Service{ID: "b", AutoStart: true, IsActive: false},
	)
	s := servicesupervisor.New(store, nil, nil, nil, logger.NewDefault("servicesupervisor"))

	// Neither service qualifies for autostart, so AutoStart must not attempt
	// to resolve a sandbox (which would panic on the nil imagecache).
	s.AutoStart(context.Background())
}

func TestStopWithNoBoundSandboxTransitionsToStopped(t *testing.T) {
	store := newFakeStore(persistentservice.Service{ID: "svc-1", Status: persistentservice.StatusRunning})
	s := servicesupervisor.New(store, nil, nil, nil, logger.NewDefault("servicesupervisor"))

	require.NoError(t, s.Stop(context.Background(), "svc-1"))
	require.Equal(t, persistentservice.StatusStopped, store.services["svc-1"].Status)
}
