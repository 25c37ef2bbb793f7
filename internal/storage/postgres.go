// internal/storage/postgres.go
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"telemetry-gateway/internal/reading"
)

// lastReadingKey holds the serialized most recent reading in Redis.
// The TTL clears the key when the device fleet goes quiet for a day.
const (
	lastReadingKey = "reading:last"
	lastReadingTTL = 24 * time.Hour
)

const schema = `
	CREATE TABLE IF NOT EXISTS readings (
		id          BIGSERIAL PRIMARY KEY,
		temperature DOUBLE PRECISION NOT NULL,
		humidity    DOUBLE PRECISION NOT NULL,
		timestamp   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// PostgresStore persists readings in Postgres (source of truth) and
// keeps the latest reading in Redis as a hot cache for the dashboard.
type PostgresStore struct {
	pool  *pgxpool.Pool
	redis *redis.Client
}

// NewPostgresStore connects both backends, verifies them with a ping
// and ensures the readings table exists.
func NewPostgresStore(ctx context.Context, postgresURL, redisAddr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, postgresURL)
	if err != nil {
		return nil, fmt.Errorf("postgres config: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres unreachable: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure readings table: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis unreachable: %w", err)
	}

	return &PostgresStore{pool: pool, redis: rdb}, nil
}

// Close releases both connections.
func (s *PostgresStore) Close() {
	s.pool.Close()
	s.redis.Close()
}

// Persist inserts the reading; id and timestamp come back from the
// database. The hot cache update is best-effort: losing it only leaves
// the latest-reading endpoint stale until the next insert.
func (s *PostgresStore) Persist(ctx context.Context, r reading.Reading) (reading.StoredReading, error) {
	stored := reading.StoredReading{Temperature: r.Temperature, Humidity: r.Humidity}

	query := `INSERT INTO readings (temperature, humidity) VALUES ($1, $2) RETURNING id, timestamp`
	if err := s.pool.QueryRow(ctx, query, r.Temperature, r.Humidity).Scan(&stored.ID, &stored.Timestamp); err != nil {
		return reading.StoredReading{}, fmt.Errorf("insert reading: %w", err)
	}
	stored.Timestamp = stored.Timestamp.UTC()

	if payload, err := json.Marshal(stored); err == nil {
		s.redis.Set(ctx, lastReadingKey, payload, lastReadingTTL)
	}

	return stored, nil
}

// ListRecent queries the newest readings and reverses them so the
// response runs oldest to newest.
func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]reading.StoredReading, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, temperature, humidity, timestamp FROM readings ORDER BY timestamp DESC, id DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select readings: %w", err)
	}
	defer rows.Close()

	var result []reading.StoredReading
	for rows.Next() {
		var r reading.StoredReading
		if err := rows.Scan(&r.ID, &r.Temperature, &r.Humidity, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		r.Timestamp = r.Timestamp.UTC()
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate readings: %w", err)
	}

	// Most recent last
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result, nil
}

// Latest serves the Redis hot cache first and falls back to the
// database when the key is missing or unreadable.
func (s *PostgresStore) Latest(ctx context.Context) (reading.StoredReading, error) {
	payload, err := s.redis.Get(ctx, lastReadingKey).Bytes()
	if err == nil {
		var stored reading.StoredReading
		if err := json.Unmarshal(payload, &stored); err == nil {
			return stored, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return reading.StoredReading{}, fmt.Errorf("read hot cache: %w", err)
	}

	query := `SELECT id, temperature, humidity, timestamp FROM readings ORDER BY timestamp DESC, id DESC LIMIT 1`
	var stored reading.StoredReading
	if err := s.pool.QueryRow(ctx, query).Scan(&stored.ID, &stored.Temperature, &stored.Humidity, &stored.Timestamp); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return reading.StoredReading{}, ErrNoReadings
		}
		return reading.StoredReading{}, fmt.Errorf("select latest reading: %w", err)
	}
	stored.Timestamp = stored.Timestamp.UTC()
	return stored, nil
}
