package hardware

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/tphakala/cropguard/internal/errors"
	"github.com/tphakala/cropguard/internal/logger"
	"github.com/tphakala/cropguard/internal/mqtt"
)

// ErrSensorUnavailable is returned when no current reading exists.
var ErrSensorUnavailable = errors.NewStd("sensor reading unavailable")

// DefaultReadingTTL is how long an MQTT reading stays valid.
const DefaultReadingTTL = 5 * time.Minute

const readingKey = "temperature"

// Sensor reads the ambient temperature in degrees Celsius.
type Sensor interface {
	Read(ctx context.Context) (float64, error)
}

// NoneSensor never has a reading.
type NoneSensor struct{}

func (NoneSensor) Read(context.Context) (float64, error) { return 0, ErrSensorUnavailable }

// MQTTSensor keeps the latest value published on a topic. Readings expire
// after the configured TTL so a dead sensor is not reported forever.
type MQTTSensor struct {
	topic    string
	jsonKey  string
	readings *cache.Cache
}

// NewMQTTSensor subscribes to topic. Payloads are either a bare number or a
// JSON object whose jsonKey field holds the number.
func NewMQTTSensor(ctx context.Context, client mqtt.Client, topic, jsonKey string, ttl time.Duration) (*MQTTSensor, error) {
	if ttl <= 0 {
		ttl = DefaultReadingTTL
	}
	s := &MQTTSensor{
		topic:   topic,
		jsonKey: jsonKey,
		// No janitor: expired items are dropped on Get.
		readings: cache.New(ttl, 0),
	}
	if err := client.Subscribe(ctx, topic, s.handle); err != nil {
		return nil, sensorError(err, "mqtt", topic)
	}
	return s, nil
}

func (s *MQTTSensor) handle(topic string, payload []byte) {
	v, err := parseReading(payload, s.jsonKey)
	if err != nil {
		GetLogger().Debug("ignoring sensor payload",
			logger.String("topic", topic),
			logger.Error(err))
		return
	}
	s.readings.SetDefault(readingKey, v)
}

func (s *MQTTSensor) Read(context.Context) (float64, error) {
	if v, ok := s.readings.Get(readingKey); ok {
		return v.(float64), nil
	}
	return 0, ErrSensorUnavailable
}

func parseReading(payload []byte, jsonKey string) (float64, error) {
	text := strings.TrimSpace(string(payload))
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return v, nil
	}
	if jsonKey == "" {
		return 0, fmt.Errorf("payload %q is not a number", text)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return 0, fmt.Errorf("payload is neither a number nor a JSON object: %w", err)
	}
	raw, ok := obj[jsonKey]
	if !ok {
		return 0, fmt.Errorf("field %q missing", jsonKey)
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("field %q: %w", jsonKey, err)
	}
	return v, nil
}

// HostSensor reads a thermal sensor of the host through gopsutil.
type HostSensor struct {
	key   string
	temps func(ctx context.Context) ([]host.TemperatureStat, error)
}

// NewHostSensor matches the first sensor whose key contains key; an empty
// key takes the first sensor reported.
func NewHostSensor(key string) *HostSensor {
	return &HostSensor{key: key, temps: host.SensorsTemperaturesWithContext}
}

func (s *HostSensor) Read(ctx context.Context) (float64, error) {
	stats, err := s.temps(ctx)
	// gopsutil returns partial results together with warnings.
	if len(stats) == 0 {
		if err != nil {
			return 0, sensorError(errors.Join(ErrSensorUnavailable, err), "host", s.key)
		}
		return 0, ErrSensorUnavailable
	}
	for _, st := range stats {
		if s.key == "" || strings.Contains(st.SensorKey, s.key) {
			return st.Temperature, nil
		}
	}
	return 0, ErrSensorUnavailable
}

// ReadOrNil returns a reading, or nil when the sensor has none. Failures
// other than ErrSensorUnavailable are logged.
func ReadOrNil(ctx context.Context, s Sensor) *float64 {
	if s == nil {
		return nil
	}
	v, err := s.Read(ctx)
	if err != nil {
		if !errors.Is(err, ErrSensorUnavailable) {
			GetLogger().Warn("sensor read failed", logger.Error(err))
		}
		return nil
	}
	return &v
}

func sensorError(err error, source, target string) error {
	return errors.New(err).
		Component("hardware").
		Category(errors.CategorySensor).
		Context("source", source).
		Context("target", target).
		Build()
}
