// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"telemetry-gateway/internal/reading"
)

// ErrNoReadings is returned when a latest-reading lookup finds nothing.
var ErrNoReadings = errors.New("no readings stored")

// Store persists accepted readings. Persist assigns the id and the
// timestamp; ListRecent returns up to limit readings, most recent last.
type Store interface {
	Persist(ctx context.Context, r reading.Reading) (reading.StoredReading, error)
	ListRecent(ctx context.Context, limit int) ([]reading.StoredReading, error)
}
