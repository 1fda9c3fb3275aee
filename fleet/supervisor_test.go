package fleet

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/envmon/device"
	"github.com/c360/envmon/sample"
)

type fakeRegistry struct {
	mu      sync.Mutex
	devices []device.Device
	err     error
}

func (f *fakeRegistry) ActiveDevices(context.Context, device.Protocol) ([]device.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.devices, nil
}

func (f *fakeRegistry) set(devices []device.Device, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices = devices
	f.err = err
}

type countingSender struct {
	mu    sync.Mutex
	sent  []sample.Sample
	errFn func(sample.Sample) error
}

func (c *countingSender) Send(_ context.Context, smp sample.Sample) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.errFn != nil {
		if err := c.errFn(smp); err != nil {
			return err
		}
	}
	c.sent = append(c.sent, smp)
	return nil
}

func (c *countingSender) Close() error { return nil }

func (c *countingSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func newTestSupervisor(reg Registry, sender Sender) *Supervisor {
	return NewSupervisor(SupervisorConfig{
		Protocol:     device.ProtocolHTTP,
		Registry:     reg,
		Sender:       sender,
		PollInterval: 25 * time.Millisecond,
		SendInterval: 10 * time.Millisecond,
		PoolWorkers:  2,
	})
}

func TestSupervisor_StartsWorkersForActiveDevices(t *testing.T) {
	reg := &fakeRegistry{devices: []device.Device{
		{ID: "a", Protocol: device.ProtocolHTTP, Active: true},
		{ID: "b", Protocol: device.ProtocolHTTP, Active: true},
	}}
	sender := &countingSender{}
	sup := newTestSupervisor(reg, sender)

	require.NoError(t, sup.Start(context.Background()))
	defer sup.Stop(time.Second)

	assert.Eventually(t, func() bool { return sup.WorkerCount() == 2 },
		time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return sender.count() >= 2 },
		time.Second, 5*time.Millisecond)
}

func TestSupervisor_RetiresDepartedDevices(t *testing.T) {
	reg := &fakeRegistry{devices: []device.Device{
		{ID: "a", Protocol: device.ProtocolHTTP, Active: true},
		{ID: "b", Protocol: device.ProtocolHTTP, Active: true},
	}}
	sup := newTestSupervisor(reg, &countingSender{})

	require.NoError(t, sup.Start(context.Background()))
	defer sup.Stop(time.Second)

	require.Eventually(t, func() bool { return sup.WorkerCount() == 2 },
		time.Second, 5*time.Millisecond)

	reg.set([]device.Device{{ID: "b", Protocol: device.ProtocolHTTP, Active: true}}, nil)

	assert.Eventually(t, func() bool { return sup.WorkerCount() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestSupervisor_IgnoresInactiveDirectoryEntries(t *testing.T) {
	reg := &fakeRegistry{devices: []device.Device{
		{ID: "a", Protocol: device.ProtocolHTTP, Active: true},
		{ID: "b", Protocol: device.ProtocolHTTP, Active: false},
	}}
	sup := newTestSupervisor(reg, &countingSender{})

	require.NoError(t, sup.Start(context.Background()))
	defer sup.Stop(time.Second)

	// Only the active entry gets a worker.
	require.Eventually(t, func() bool { return sup.WorkerCount() == 1 },
		time.Second, 5*time.Millisecond)

	// A device flipped inactive is retired even while still listed.
	reg.set([]device.Device{
		{ID: "a", Protocol: device.ProtocolHTTP, Active: false},
	}, nil)

	assert.Eventually(t, func() bool { return sup.WorkerCount() == 0 },
		time.Second, 5*time.Millisecond)
}

func TestSupervisor_KeepsWorkersWhenDirectoryUnavailable(t *testing.T) {
	reg := &fakeRegistry{devices: []device.Device{
		{ID: "a", Protocol: device.ProtocolHTTP, Active: true},
	}}
	sup := newTestSupervisor(reg, &countingSender{})

	require.NoError(t, sup.Start(context.Background()))
	defer sup.Stop(time.Second)

	require.Eventually(t, func() bool { return sup.WorkerCount() == 1 },
		time.Second, 5*time.Millisecond)

	reg.set(nil, fmt.Errorf("connection refused"))
	time.Sleep(80 * time.Millisecond)

	// Fetch failures skip the cycle; existing workers keep running.
	assert.Equal(t, 1, sup.WorkerCount())
}

func TestSupervisor_StopIsIdempotent(t *testing.T) {
	sup := newTestSupervisor(&fakeRegistry{}, &countingSender{})
	require.NoError(t, sup.Start(context.Background()))

	require.NoError(t, sup.Stop(time.Second))
	require.NoError(t, sup.Stop(time.Second))
	assert.Zero(t, sup.WorkerCount())
}

func TestDeviceWorker_NoOverlappingCycles(t *testing.T) {
	block := make(chan struct{})
	sender := &countingSender{errFn: func(sample.Sample) error {
		<-block
		return nil
	}}

	dev := device.Device{ID: "slow", Protocol: device.ProtocolHTTP}
	var w *DeviceWorker
	submitted := make(chan *DeviceWorker, 16)
	w = NewDeviceWorker(dev, sender, 10*time.Millisecond,
		func(dw *DeviceWorker) error {
			submitted <- dw
			return nil
		}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	first := <-submitted
	go first.cycle(ctx)

	// While the first cycle is blocked in Send, further ticks must not queue
	// a second cycle for the same worker.
	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, submitted)

	close(block)
}

func TestDeviceWorker_RoundsReadings(t *testing.T) {
	sender := &countingSender{}
	w := NewDeviceWorker(device.Device{ID: "d"}, sender, time.Minute,
		func(*DeviceWorker) error { return nil }, nil)

	require.NoError(t, w.cycle(context.Background()))

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.sent, 1)
	smp := sender.sent[0]
	assert.Equal(t, smp.Temperature, sample.Round2(smp.Temperature))
	assert.Equal(t, smp.Humidity, sample.Round2(smp.Humidity))
	assert.NotZero(t, smp.GeneratedAt)
}

func TestRegistryClient_ActiveDevices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/devices/active/rpc", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"a","protocol":"rpc"},{"id":"b","protocol":"rpc"}]`))
	}))
	defer srv.Close()

	client := NewRegistryClient(srv.URL, nil)
	devices, err := client.ActiveDevices(context.Background(), device.ProtocolRPC)
	require.NoError(t, err)
	assert.Len(t, devices, 2)
}

func TestRegistryClient_NonOKYieldsEmptyList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewRegistryClient(srv.URL, nil)
	devices, err := client.ActiveDevices(context.Background(), device.ProtocolHTTP)
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestRegistryClient_NetworkErrorIsReturned(t *testing.T) {
	client := NewRegistryClient("http://127.0.0.1:1", nil)
	_, err := client.ActiveDevices(context.Background(), device.ProtocolHTTP)
	assert.Error(t, err)
}
