package fleet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/envmon/sample"
)

func TestHTTPSender_Send(t *testing.T) {
	var received sample.Sample
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/metrics/ingest", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewHTTPSender(srv.URL, 3, nil)
	err := sender.Send(context.Background(), sample.Sample{
		DeviceID: "dev-1", Temperature: 21.5, Humidity: 44.0, GeneratedAt: 1000,
	})
	require.NoError(t, err)
	assert.Equal(t, "dev-1", received.DeviceID)
	assert.Equal(t, 21.5, received.Temperature)
}

func TestHTTPSender_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewHTTPSender(srv.URL, 3, nil)
	sender.retryCfg.InitialDelay = 1
	sender.retryCfg.MaxDelay = 1

	err := sender.Send(context.Background(), sample.Sample{DeviceID: "dev-1"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load(), "exactly one delivery after two failures")
}

func TestHTTPSender_RejectionIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"accepted":false,"reason":"unknown-device","message":"device dev-1 is not registered"}`))
	}))
	defer srv.Close()

	sender := NewHTTPSender(srv.URL, 5, nil)
	err := sender.Send(context.Background(), sample.Sample{DeviceID: "dev-1"})

	require.Error(t, err)
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "unknown-device", rejected.Reason)
	assert.Equal(t, int32(1), calls.Load(), "400 is terminal, no retries")
}

func TestHTTPSender_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sender := NewHTTPSender(srv.URL, 3, nil)
	sender.retryCfg.InitialDelay = 1
	sender.retryCfg.MaxDelay = 1

	err := sender.Send(context.Background(), sample.Sample{DeviceID: "dev-1"})
	assert.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}
