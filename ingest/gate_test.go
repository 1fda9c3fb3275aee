package ingest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/envmon/sample"
)

type fakeLookup struct {
	known map[string]bool // id -> active
	err   error
}

func (f *fakeLookup) Exists(_ context.Context, id string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.known[id]
	return ok, nil
}

func (f *fakeLookup) IsActive(_ context.Context, id string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.known[id], nil
}

type fakeWriter struct {
	inserted []sample.Sample
	err      error
}

func (f *fakeWriter) InsertSample(_ context.Context, smp sample.Sample) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, smp)
	return nil
}

func TestIngest_AcceptsActiveDevice(t *testing.T) {
	writer := &fakeWriter{}
	gate := NewGate(&fakeLookup{known: map[string]bool{"dev-1": true}}, writer)

	outcome, err := gate.Ingest(context.Background(), "http", sample.Sample{
		DeviceID:    "dev-1",
		Temperature: 21.5,
		Humidity:    48.0,
		GeneratedAt: 1000,
	})
	require.NoError(t, err)
	assert.True(t, outcome.Accepted)

	require.Len(t, writer.inserted, 1)
	stored := writer.inserted[0]
	assert.Equal(t, int64(1000), stored.GeneratedAt)
	assert.NotZero(t, stored.ReceivedAt, "collector stamps arrival time")
}

func TestIngest_RejectsUnknownDevice(t *testing.T) {
	writer := &fakeWriter{}
	gate := NewGate(&fakeLookup{known: map[string]bool{}}, writer)

	outcome, err := gate.Ingest(context.Background(), "rpc", sample.Sample{DeviceID: "ghost"})
	require.NoError(t, err)
	assert.False(t, outcome.Accepted)
	assert.Equal(t, ReasonUnknownDevice, outcome.Reason)
	assert.Empty(t, writer.inserted)
}

func TestIngest_RejectsInactiveDevice(t *testing.T) {
	writer := &fakeWriter{}
	gate := NewGate(&fakeLookup{known: map[string]bool{"dev-1": false}}, writer)

	outcome, err := gate.Ingest(context.Background(), "broker", sample.Sample{DeviceID: "dev-1"})
	require.NoError(t, err)
	assert.False(t, outcome.Accepted)
	assert.Equal(t, ReasonInactiveDevice, outcome.Reason)
	assert.Empty(t, writer.inserted)
}

func TestIngest_DefaultsGeneratedAt(t *testing.T) {
	writer := &fakeWriter{}
	gate := NewGate(&fakeLookup{known: map[string]bool{"dev-1": true}}, writer)

	_, err := gate.Ingest(context.Background(), "http", sample.Sample{DeviceID: "dev-1"})
	require.NoError(t, err)

	require.Len(t, writer.inserted, 1)
	assert.Equal(t, writer.inserted[0].ReceivedAt, writer.inserted[0].GeneratedAt,
		"missing timestamp defaults to arrival time")
}

func TestIngest_PropagatesLookupError(t *testing.T) {
	gate := NewGate(&fakeLookup{err: fmt.Errorf("storage down")}, &fakeWriter{})

	_, err := gate.Ingest(context.Background(), "http", sample.Sample{DeviceID: "dev-1"})
	assert.Error(t, err)
}

func TestIngest_PropagatesWriteError(t *testing.T) {
	gate := NewGate(
		&fakeLookup{known: map[string]bool{"dev-1": true}},
		&fakeWriter{err: fmt.Errorf("disk full")})

	_, err := gate.Ingest(context.Background(), "http", sample.Sample{DeviceID: "dev-1"})
	assert.Error(t, err)
}

func TestIngest_BroadcastsAcceptedOnly(t *testing.T) {
	var broadcasted []sample.Sample
	gate := NewGate(
		&fakeLookup{known: map[string]bool{"dev-1": true}},
		&fakeWriter{},
		WithBroadcast(func(smp sample.Sample) { broadcasted = append(broadcasted, smp) }))

	_, err := gate.Ingest(context.Background(), "http", sample.Sample{DeviceID: "dev-1"})
	require.NoError(t, err)
	_, err = gate.Ingest(context.Background(), "http", sample.Sample{DeviceID: "ghost"})
	require.NoError(t, err)

	assert.Len(t, broadcasted, 1)
}

func TestDecodeSample(t *testing.T) {
	t.Run("unix milliseconds", func(t *testing.T) {
		smp, err := decodeSample([]byte(`{"deviceId":"d1","temperature":20.5,"humidity":44,"timestamp":1700000000000}`))
		require.NoError(t, err)
		assert.Equal(t, "d1", smp.DeviceID)
		assert.Equal(t, int64(1700000000000), smp.GeneratedAt)
	})

	t.Run("zoneless string", func(t *testing.T) {
		smp, err := decodeSample([]byte(`{"deviceId":"d1","temperature":20.5,"humidity":44,"timestamp":"2024-11-14T22:13:20"}`))
		require.NoError(t, err)
		assert.NotZero(t, smp.GeneratedAt)
	})

	t.Run("missing timestamp", func(t *testing.T) {
		smp, err := decodeSample([]byte(`{"deviceId":"d1","temperature":20.5,"humidity":44}`))
		require.NoError(t, err)
		assert.Zero(t, smp.GeneratedAt)
	})

	t.Run("missing device id", func(t *testing.T) {
		_, err := decodeSample([]byte(`{"temperature":20.5}`))
		assert.Error(t, err)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := decodeSample([]byte(`hello`))
		assert.Error(t, err)
	})
}
