// internal/reading/reading.go
package reading

import "time"

// Validation bounds for incoming sensor values. Values outside these
// closed ranges are physically implausible for the deployed sensors.
const (
	MinTemperature = -50.0
	MaxTemperature = 100.0
	MinHumidity    = 0.0
	MaxHumidity    = 100.0
)

// Reading is a validated temperature/humidity measurement. It is only
// constructed by the sanitizer and never mutated afterwards.
type Reading struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// StoredReading is a Reading after persistence: the store assigns the
// id (monotonically increasing) and the timestamp (UTC).
type StoredReading struct {
	ID          int64     `json:"id"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Timestamp   time.Time `json:"timestamp"`
}

// Event is the broadcast wire format sent to live subscribers. It
// mirrors the HTTP reading shape minus the id, so dashboard clients can
// consume both without special cases.
type Event struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Timestamp   string  `json:"timestamp"` // ISO-8601 / RFC 3339
}

// EventOf derives the broadcast event for a stored reading.
func EventOf(r StoredReading) Event {
	return Event{
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Timestamp:   r.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}
