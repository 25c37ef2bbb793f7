// internal/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"telemetry-gateway/internal/broadcast"
	"telemetry-gateway/internal/forward"
	"telemetry-gateway/internal/reading"
	"telemetry-gateway/internal/storage"
)

const defaultListLimit = 50

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // Dashboard runs on another origin
}

// ReadingStore is the storage surface the handlers need: the base Store
// plus the latest-reading lookup both implementations provide.
type ReadingStore interface {
	storage.Store
	Latest(ctx context.Context) (reading.StoredReading, error)
}

type Handler struct {
	store     ReadingStore
	forwarder *forward.Forwarder
	hub       *broadcast.Hub
	logger    *slog.Logger
}

func NewHandler(store ReadingStore, forwarder *forward.Forwarder, hub *broadcast.Hub, logger *slog.Logger) *Handler {
	return &Handler{store: store, forwarder: forwarder, hub: hub, logger: logger}
}

// HealthCheck reports liveness.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Server is running"})
}

// readingSubmission is the POST body: both fields required, numbers
// only. The MQTT sanitizer owns the loose t/h format; HTTP clients are
// trusted services speaking the normalized shape.
type readingSubmission struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

// CreateReading accepts a normalized reading, persists it and
// broadcasts it, mirroring the MQTT path.
func (h *Handler) CreateReading(w http.ResponseWriter, r *http.Request) {
	var body readingSubmission
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if body.Temperature == nil || body.Humidity == nil {
		http.Error(w, "temperature and humidity are required", http.StatusBadRequest)
		return
	}
	temp, hum := *body.Temperature, *body.Humidity
	if math.IsNaN(temp) || math.IsInf(temp, 0) || math.IsNaN(hum) || math.IsInf(hum, 0) {
		http.Error(w, "temperature and humidity must be finite", http.StatusBadRequest)
		return
	}
	if temp < reading.MinTemperature || temp > reading.MaxTemperature ||
		hum < reading.MinHumidity || hum > reading.MaxHumidity {
		http.Error(w, "reading outside accepted range", http.StatusUnprocessableEntity)
		return
	}

	stored, err := h.forwarder.Forward(r.Context(), reading.Reading{Temperature: temp, Humidity: hum})
	if err != nil {
		h.logger.Error("persist reading via HTTP", "error", err)
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, stored)
}

// ListReadings returns up to ?limit= stored readings, most recent last.
func (h *Handler) ListReadings(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		if parsed > 0 {
			limit = parsed
		}
	}

	readings, err := h.store.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("list readings", "error", err)
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}
	if readings == nil {
		readings = []reading.StoredReading{}
	}
	writeJSON(w, http.StatusOK, readings)
}

// LatestReading returns the most recent stored reading, served from the
// hot cache when available.
func (h *Handler) LatestReading(w http.ResponseWriter, r *http.Request) {
	latest, err := h.store.Latest(r.Context())
	if err != nil {
		if errors.Is(err, storage.ErrNoReadings) {
			http.Error(w, "no readings yet", http.StatusNotFound)
			return
		}
		h.logger.Error("latest reading", "error", err)
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

// HandleWebSocket upgrades the connection, registers a hub subscription
// and starts the pumps. Only events published after registration are
// delivered.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sub := h.hub.Register()
	client := broadcast.NewClient(conn, sub, h.logger)
	go client.WritePump()
	go client.ReadPump()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
