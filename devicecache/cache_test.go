package devicecache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/envmon/device"
)

type fakeLister struct {
	mu      sync.Mutex
	devices []device.Device
	err     error
	calls   int
}

func (f *fakeLister) ListActiveDevices(context.Context) ([]device.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.devices, nil
}

func (f *fakeLister) set(devices []device.Device, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices = devices
	f.err = err
}

func TestRefresh_SwapsSnapshot(t *testing.T) {
	lister := &fakeLister{devices: []device.Device{
		{ID: "a", Protocol: device.ProtocolHTTP},
		{ID: "b", Protocol: device.ProtocolBroker},
	}}
	cache := New(lister, time.Minute)

	require.NoError(t, cache.Refresh(context.Background()))
	assert.Equal(t, 2, cache.Size())

	active, err := cache.IsActive(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, active)

	active, err = cache.IsActive(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestRefresh_FailureKeepsOldSnapshot(t *testing.T) {
	lister := &fakeLister{devices: []device.Device{
		{ID: "a", Protocol: device.ProtocolRPC},
	}}
	cache := New(lister, time.Minute)
	require.NoError(t, cache.Refresh(context.Background()))

	lister.set(nil, fmt.Errorf("connection refused"))
	err := cache.Refresh(context.Background())
	assert.Error(t, err)

	// The previous snapshot survives the failed refresh.
	active, _ := cache.IsActive(context.Background(), "a")
	assert.True(t, active)
}

func TestActiveByProtocol(t *testing.T) {
	lister := &fakeLister{devices: []device.Device{
		{ID: "a", Protocol: device.ProtocolHTTP},
		{ID: "b", Protocol: device.ProtocolHTTP},
		{ID: "c", Protocol: device.ProtocolRPC},
	}}
	cache := New(lister, time.Minute)
	require.NoError(t, cache.Refresh(context.Background()))

	assert.Len(t, cache.ActiveByProtocol(device.ProtocolHTTP), 2)
	assert.Len(t, cache.ActiveByProtocol(device.ProtocolRPC), 1)
	assert.Empty(t, cache.ActiveByProtocol(device.ProtocolBroker))
}

func TestStart_RefreshesImmediatelyAndOnTicks(t *testing.T) {
	lister := &fakeLister{}
	cache := New(lister, 20*time.Millisecond)

	require.NoError(t, cache.Start(context.Background()))
	defer cache.Stop()

	assert.Eventually(t, func() bool {
		lister.mu.Lock()
		defer lister.mu.Unlock()
		return lister.calls >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestStart_FailsFastOnInitialError(t *testing.T) {
	lister := &fakeLister{err: fmt.Errorf("database is down")}
	cache := New(lister, time.Minute)

	err := cache.Start(context.Background())
	assert.Error(t, err)
}

func TestStop_Idempotent(t *testing.T) {
	cache := New(&fakeLister{}, time.Minute)
	require.NoError(t, cache.Start(context.Background()))

	cache.Stop()
	cache.Stop()
}
