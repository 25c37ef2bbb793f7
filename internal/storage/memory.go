// internal/storage/memory.go
package storage

import (
	"context"
	"sync"
	"time"

	"telemetry-gateway/internal/reading"
)

const maxBufferSize = 1000 // Keep the last 1000 readings in memory

// MemoryStore is a mutex-guarded ring of readings. It backs the gateway
// when no Postgres URL is configured, and the tests.
type MemoryStore struct {
	mu       sync.RWMutex
	buffer   []reading.StoredReading
	capacity int
	nextID   int64
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buffer:   make([]reading.StoredReading, 0, maxBufferSize),
		capacity: maxBufferSize,
		nextID:   1,
		now:      time.Now,
	}
}

// Persist stores the reading, assigning the next monotonic id and the
// current UTC time.
func (s *MemoryStore) Persist(_ context.Context, r reading.Reading) (reading.StoredReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := reading.StoredReading{
		ID:          s.nextID,
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Timestamp:   s.now().UTC(),
	}
	s.nextID++

	if len(s.buffer) >= s.capacity {
		// Remove the oldest element
		s.buffer = s.buffer[1:]
	}
	s.buffer = append(s.buffer, stored)
	return stored, nil
}

// ListRecent returns up to limit readings, most recent last. A
// non-positive or oversized limit returns everything buffered.
func (s *MemoryStore) ListRecent(_ context.Context, limit int) ([]reading.StoredReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.buffer) {
		limit = len(s.buffer)
	}
	// Return a copy to avoid races if the caller holds on to the slice
	result := make([]reading.StoredReading, limit)
	copy(result, s.buffer[len(s.buffer)-limit:])
	return result, nil
}

// Latest returns the most recently persisted reading.
func (s *MemoryStore) Latest(_ context.Context) (reading.StoredReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.buffer) == 0 {
		return reading.StoredReading{}, ErrNoReadings
	}
	return s.buffer[len(s.buffer)-1], nil
}
