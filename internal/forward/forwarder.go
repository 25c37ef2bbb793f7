// internal/forward/forwarder.go
package forward

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"telemetry-gateway/internal/metrics"
	"telemetry-gateway/internal/reading"
	"telemetry-gateway/internal/storage"
)

// ErrStorageFailure marks a reading whose persistence failed. The
// reading is not broadcast in that case.
var ErrStorageFailure = errors.New("storage failure")

// Publisher fans a stored reading out to live subscribers. Delivery is
// best-effort and failures stay inside the hub.
type Publisher interface {
	Publish(r reading.StoredReading)
}

// Forwarder moves a validated reading through persistence and fan-out.
// Persistence and broadcast are deliberately not transactional: once a
// reading is stored it counts as forwarded, whatever happens to
// individual subscribers.
type Forwarder struct {
	store  storage.Store
	hub    Publisher
	logger *slog.Logger
}

func New(store storage.Store, hub Publisher, logger *slog.Logger) *Forwarder {
	return &Forwarder{store: store, hub: hub, logger: logger}
}

// Forward persists the reading and, on success, publishes the stored
// record to the hub.
func (f *Forwarder) Forward(ctx context.Context, r reading.Reading) (reading.StoredReading, error) {
	stored, err := f.store.Persist(ctx, r)
	if err != nil {
		metrics.ForwardFailures.Inc()
		return reading.StoredReading{}, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	metrics.ReadingsAccepted.Inc()
	f.logger.Debug("reading stored", "id", stored.ID, "temperature", stored.Temperature, "humidity", stored.Humidity)

	f.hub.Publish(stored)
	return stored, nil
}
