package gateway

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/envmon/aggregate"
	"github.com/c360/envmon/ingest"
	"github.com/c360/envmon/sample"
	"github.com/c360/envmon/storage"
)

func TestHub_BroadcastWithoutClients(t *testing.T) {
	hub := NewHub(nil)
	hub.Broadcast(sample.Sample{DeviceID: "dev-1"})
	assert.Zero(t, hub.ClientCount())
}

func TestHub_LiveFeedDeliversSamples(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	hub := NewHub(nil)
	defer hub.Close()

	store := storage.NewWithDB(db, "sqlite")
	gate := ingest.NewGate(&fakeLookup{}, &fakeWriter{})
	server := NewServer(":0", store, gate, aggregate.NewEngine(store), WithHub(hub))

	srv := httptest.NewServer(server.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/metrics/live"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)

	hub.Broadcast(sample.Sample{DeviceID: "dev-1", Temperature: 21.5, Humidity: 44.0})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var smp sample.Sample
	require.NoError(t, json.Unmarshal(data, &smp))
	assert.Equal(t, "dev-1", smp.DeviceID)
	assert.Equal(t, 21.5, smp.Temperature)
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	hub := NewHub(nil)
	hub.Close()
	hub.Close()
	assert.Zero(t, hub.ClientCount())
}
