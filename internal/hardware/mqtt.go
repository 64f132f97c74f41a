package hardware

import (
	"context"

	"github.com/tphakala/cropguard/internal/mqtt"
)

// MQTT payloads for actuator commands.
const (
	PayloadOn  = "on"
	PayloadOff = "off"
)

// MQTTActuator publishes retained on/off commands to a relay board that
// subscribes to its topic.
type MQTTActuator struct {
	name   string
	topic  string
	client mqtt.Client
}

// NewMQTTActuator returns an actuator that publishes on topic.
func NewMQTTActuator(name, topic string, client mqtt.Client) *MQTTActuator {
	return &MQTTActuator{name: name, topic: topic, client: client}
}

func (a *MQTTActuator) Name() string { return a.name }

// Topic returns the command topic.
func (a *MQTTActuator) Topic() string { return a.topic }

func (a *MQTTActuator) On(ctx context.Context) error { return a.publish(ctx, PayloadOn) }

func (a *MQTTActuator) Off(ctx context.Context) error { return a.publish(ctx, PayloadOff) }

// Retained so a board that reconnects picks up the current state.
func (a *MQTTActuator) publish(ctx context.Context, payload string) error {
	if err := a.client.PublishWithRetain(ctx, a.topic, payload, true); err != nil {
		return actuatorError(err, a.name, "mqtt")
	}
	return nil
}
