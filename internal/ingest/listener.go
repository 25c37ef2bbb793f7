// internal/ingest/listener.go
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"telemetry-gateway/internal/metrics"
	"telemetry-gateway/internal/reading"
	"telemetry-gateway/internal/sanitize"
)

// forwardTimeout bounds the storage call for one message so a hung
// database cannot back the listener up indefinitely.
const forwardTimeout = 5 * time.Second

// Forwarder persists a validated reading and triggers fan-out.
type Forwarder interface {
	Forward(ctx context.Context, r reading.Reading) (reading.StoredReading, error)
}

// Listener consumes raw device payloads from the MQTT topic and drives
// each one through sanitize and forward. Messages are processed one at
// a time per connection; a rejected or failed message is dropped and
// the stream continues.
type Listener struct {
	client    mqtt.Client
	topic     string
	forwarder Forwarder
	logger    *slog.Logger
}

func NewListener(client mqtt.Client, topic string, forwarder Forwarder, logger *slog.Logger) *Listener {
	return &Listener{client: client, topic: topic, forwarder: forwarder, logger: logger}
}

// Start subscribes to the configured topic. Reconnection after a
// transport drop is the MQTT client's responsibility; paho re-runs
// subscriptions on reconnect when configured to resume.
func (l *Listener) Start() error {
	token := l.client.Subscribe(l.topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		l.handle(msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", l.topic, token.Error())
	}
	l.logger.Info("listening for device payloads", "topic", l.topic)
	return nil
}

// Stop unsubscribes from the topic.
func (l *Listener) Stop() {
	if token := l.client.Unsubscribe(l.topic); token.Wait() && token.Error() != nil {
		l.logger.Warn("unsubscribe failed", "topic", l.topic, "error", token.Error())
	}
}

// handle processes one raw message. Every failure here is terminal for
// that message only.
func (l *Listener) handle(topic string, payload []byte) {
	r, err := sanitize.Sanitize(payload)
	if err != nil {
		metrics.ReadingsRejected.WithLabelValues(sanitize.Reason(err)).Inc()
		l.logger.Warn("reading rejected", "topic", topic, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), forwardTimeout)
	defer cancel()

	if _, err := l.forwarder.Forward(ctx, r); err != nil {
		l.logger.Error("forward failed, dropping reading", "topic", topic, "error", err)
	}
}
