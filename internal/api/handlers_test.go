// internal/api/handlers_test.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry-gateway/internal/broadcast"
	"telemetry-gateway/internal/forward"
	"telemetry-gateway/internal/reading"
	"telemetry-gateway/internal/storage"
)

func newTestServer(t *testing.T, store ReadingStore) (*httptest.Server, *broadcast.Hub) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := broadcast.NewHub(logger, 16)
	fwd := forward.New(store, hub, logger)
	srv := httptest.NewServer(NewRouter(NewHandler(store, fwd, hub, logger)))
	t.Cleanup(srv.Close)
	return srv, hub
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t, storage.NewMemoryStore())

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestCreateReading(t *testing.T) {
	srv, _ := newTestServer(t, storage.NewMemoryStore())

	resp, err := http.Post(srv.URL+"/api/readings", "application/json",
		strings.NewReader(`{"temperature": 22.4, "humidity": 55.1}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stored reading.StoredReading
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stored))
	assert.Equal(t, int64(1), stored.ID)
	assert.Equal(t, 22.4, stored.Temperature)
	assert.Equal(t, 55.1, stored.Humidity)
	assert.False(t, stored.Timestamp.IsZero())
}

func TestCreateReadingValidation(t *testing.T) {
	srv, _ := newTestServer(t, storage.NewMemoryStore())

	tests := []struct {
		name string
		body string
		want int
	}{
		{"not json", `nope`, http.StatusBadRequest},
		{"missing humidity", `{"temperature": 22.4}`, http.StatusBadRequest},
		{"unknown field", `{"temperature": 22.4, "humidity": 55.1, "x": 1}`, http.StatusBadRequest},
		{"string value", `{"temperature": "22.4", "humidity": 55.1}`, http.StatusBadRequest},
		{"temperature out of range", `{"temperature": 200, "humidity": 55.1}`, http.StatusUnprocessableEntity},
		{"humidity out of range", `{"temperature": 20, "humidity": -1}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/readings", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

type brokenStore struct{}

func (brokenStore) Persist(context.Context, reading.Reading) (reading.StoredReading, error) {
	return reading.StoredReading{}, errors.New("db gone")
}
func (brokenStore) ListRecent(context.Context, int) ([]reading.StoredReading, error) {
	return nil, errors.New("db gone")
}
func (brokenStore) Latest(context.Context) (reading.StoredReading, error) {
	return reading.StoredReading{}, errors.New("db gone")
}

func TestStorageFailureSurfacesAs503(t *testing.T) {
	srv, hub := newTestServer(t, brokenStore{})
	sub := hub.Register()

	resp, err := http.Post(srv.URL+"/api/readings", "application/json",
		strings.NewReader(`{"temperature": 22.4, "humidity": 55.1}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	// A failed persist must not reach subscribers.
	select {
	case <-sub.Events():
		t.Fatal("broadcast happened despite storage failure")
	default:
	}
}

func TestListReadings(t *testing.T) {
	store := storage.NewMemoryStore()
	srv, _ := newTestServer(t, store)

	for i := 0; i < 5; i++ {
		_, err := store.Persist(context.Background(), reading.Reading{Temperature: float64(i), Humidity: 50})
		require.NoError(t, err)
	}

	resp, err := http.Get(srv.URL + "/api/readings?limit=3")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var readings []reading.StoredReading
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&readings))
	require.Len(t, readings, 3)
	// Most recent last
	assert.Equal(t, 2.0, readings[0].Temperature)
	assert.Equal(t, 4.0, readings[2].Temperature)
}

func TestListReadingsEmptyAndBadLimit(t *testing.T) {
	srv, _ := newTestServer(t, storage.NewMemoryStore())

	resp, err := http.Get(srv.URL + "/api/readings")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(string(body)))

	bad, err := http.Get(srv.URL + "/api/readings?limit=nope")
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestLatestReading(t *testing.T) {
	store := storage.NewMemoryStore()
	srv, _ := newTestServer(t, store)

	missing, err := http.Get(srv.URL + "/api/readings/latest")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	_, err = store.Persist(context.Background(), reading.Reading{Temperature: 21, Humidity: 45})
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/api/readings/latest")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var latest reading.StoredReading
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&latest))
	assert.Equal(t, 21.0, latest.Temperature)
}

func TestWebSocketReceivesBroadcast(t *testing.T) {
	srv, hub := newTestServer(t, storage.NewMemoryStore())

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// The handler registers the subscription just after the upgrade
	// handshake; wait for it before publishing.
	require.Eventually(t, func() bool { return hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	// POSTing a reading must fan out to the connected observer.
	post, err := http.Post(srv.URL+"/api/readings", "application/json",
		strings.NewReader(`{"temperature": 22.4, "humidity": 55.1}`))
	require.NoError(t, err)
	post.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event reading.Event
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, 22.4, event.Temperature)
	assert.Equal(t, 55.1, event.Humidity)
	assert.NotEmpty(t, event.Timestamp)
}
