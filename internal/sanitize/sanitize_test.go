// internal/sanitize/sanitize_test.go
package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry-gateway/internal/reading"
)

func TestSanitizeAcceptsValidPayloads(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    reading.Reading
	}{
		{"plain numbers", `{"t": 22.4, "h": 55.1}`, reading.Reading{Temperature: 22.4, Humidity: 55.1}},
		{"integers", `{"t": 5, "h": 40}`, reading.Reading{Temperature: 5, Humidity: 40}},
		{"numeric strings", `{"t": "20.5", "h": "40"}`, reading.Reading{Temperature: 20.5, Humidity: 40}},
		{"scientific notation strings", `{"t": "1e1", "h": "4e1"}`, reading.Reading{Temperature: 10, Humidity: 40}},
		{"whitespace padded strings", `{"t": "  3.14  ", "h": " 50 "}`, reading.Reading{Temperature: 3.14, Humidity: 50}},
		{"boundary values", `{"t": -50.0, "h": 0.0}`, reading.Reading{Temperature: -50, Humidity: 0}},
		{"upper boundary values", `{"t": 100.0, "h": 100.0}`, reading.Reading{Temperature: 100, Humidity: 100}},
		{"extra keys ignored", `{"t": 21, "h": 45, "battery": 88}`, reading.Reading{Temperature: 21, Humidity: 45}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sanitize([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeStringAndNumberYieldSameReading(t *testing.T) {
	asNumber, err := Sanitize([]byte(`{"t": 20.5, "h": 40}`))
	require.NoError(t, err)
	asString, err := Sanitize([]byte(`{"t": "20.5", "h": "40"}`))
	require.NoError(t, err)
	assert.Equal(t, asNumber, asString)
}

func TestSanitizeRejectsMalformedPayloads(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `not json`},
		{"empty input", ``},
		{"top-level array", `[1, 2]`},
		{"top-level number", `42`},
		{"truncated object", `{"t": 22.4, "h":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sanitize([]byte(tt.payload))
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestSanitizeRejectsNonNumericValues(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"null temperature", `{"t": null, "h": 50.0}`},
		{"missing temperature", `{"h": 50.0}`},
		{"missing humidity", `{"t": 20.0}`},
		{"unparsable string", `{"t": "error", "h": 50.0}`},
		{"boolean", `{"t": true, "h": 50.0}`},
		{"array value", `{"t": [1, 2, 3], "h": 50.0}`},
		{"object value", `{"t": {"x": 1}, "h": 50.0}`},
		{"nan string", `{"t": "nan", "h": 50.0}`},
		{"inf string", `{"t": "inf", "h": 50.0}`},
		{"negative inf string", `{"t": 20.0, "h": "-inf"}`},
		{"overflowing literal string", `{"t": "1e999", "h": 50.0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sanitize([]byte(tt.payload))
			assert.ErrorIs(t, err, ErrNonNumeric)
			assert.NotErrorIs(t, err, ErrOutOfRange)
		})
	}
}

func TestSanitizeRejectsOutOfRangeValues(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"temperature too high", `{"t": 200.0, "h": 50.0}`},
		{"temperature too low", `{"t": -50.1, "h": 50.0}`},
		{"humidity negative", `{"t": 20.0, "h": -50.0}`},
		{"humidity too high", `{"t": 20.0, "h": 100.5}`},
		{"both out of range", `{"t": 200.0, "h": -50.0}`},
		{"out-of-range numeric string", `{"t": "150", "h": 50.0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sanitize([]byte(tt.payload))
			assert.ErrorIs(t, err, ErrOutOfRange)
		})
	}
}

func TestSanitizeIsDeterministic(t *testing.T) {
	payload := []byte(`{"t": "1e1", "h": "40"}`)
	first, err := Sanitize(payload)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Sanitize(payload)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, reading.Reading{Temperature: 10, Humidity: 40}, first)
}

func TestReasonLabels(t *testing.T) {
	_, malformed := Sanitize([]byte(`nope`))
	_, nonNumeric := Sanitize([]byte(`{"t": null, "h": 1}`))
	_, outOfRange := Sanitize([]byte(`{"t": 999, "h": 1}`))

	assert.Equal(t, "malformed_payload", Reason(malformed))
	assert.Equal(t, "non_numeric", Reason(nonNumeric))
	assert.Equal(t, "out_of_range", Reason(outOfRange))
}
