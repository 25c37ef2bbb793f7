// internal/sanitize/sanitize.go
package sanitize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"telemetry-gateway/internal/reading"
)

// Rejection reasons. Callers match with errors.Is; the wrapped message
// carries the offending field and value for logging.
var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrNonNumeric       = errors.New("non-numeric value")
	ErrOutOfRange       = errors.New("value out of range")
)

// Reason returns a short stable label for a rejection error, suitable
// for metric labels and log fields.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, ErrNonNumeric):
		return "non_numeric"
	case errors.Is(err, ErrOutOfRange):
		return "out_of_range"
	default:
		return "unknown"
	}
}

// Sanitize validates a raw device payload and normalizes it into a
// Reading. The payload must be a JSON object with short keys "t"
// (temperature) and "h" (humidity); values may be JSON numbers or
// numeric strings. Pure function, safe for concurrent use.
func Sanitize(raw []byte) (reading.Reading, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return reading.Reading{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	temp, tempOK := coerceFloat(payload["t"])
	hum, humOK := coerceFloat(payload["h"])
	if !tempOK || !humOK {
		return reading.Reading{}, fmt.Errorf("%w: t=%s h=%s",
			ErrNonNumeric, fieldOrNull(payload, "t"), fieldOrNull(payload, "h"))
	}

	// Temperature is checked before humidity; when both are out of
	// range the first violation wins.
	if temp < reading.MinTemperature || temp > reading.MaxTemperature {
		return reading.Reading{}, fmt.Errorf("%w: temperature %v outside [%v, %v]",
			ErrOutOfRange, temp, reading.MinTemperature, reading.MaxTemperature)
	}
	if hum < reading.MinHumidity || hum > reading.MaxHumidity {
		return reading.Reading{}, fmt.Errorf("%w: humidity %v outside [%v, %v]",
			ErrOutOfRange, hum, reading.MinHumidity, reading.MaxHumidity)
	}

	return reading.Reading{Temperature: temp, Humidity: hum}, nil
}

// coerceFloat turns one extracted JSON value into a finite float64.
// Accepted: JSON numbers and numeric strings (leading/trailing
// whitespace and scientific notation allowed). Everything else —
// absent, null, bool, array, object, unparsable or non-finite — fails.
func coerceFloat(raw json.RawMessage) (float64, bool) {
	if raw == nil {
		return 0, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}

	switch val := v.(type) {
	case float64:
		// encoding/json never yields NaN/Inf here, but ParseFloat
		// below can, so gate both paths the same way.
		return val, !math.IsNaN(val) && !math.IsInf(val, 0)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// fieldOrNull renders a raw field for the rejection message.
func fieldOrNull(payload map[string]json.RawMessage, key string) string {
	if raw, ok := payload[key]; ok && raw != nil {
		return string(raw)
	}
	return "null"
}
