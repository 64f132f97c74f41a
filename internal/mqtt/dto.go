package mqtt

import (
	"context"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/tphakala/cropguard/internal/detection"
)

// DetectionDTO is the payload published for every detection.
//
// Field names are part of the MQTT contract used by home automation rules.
type DetectionDTO struct {
	Category    string    `json:"category"`
	Date        string    `json:"date"` // "2024-01-15"
	Time        string    `json:"time"` // "14:30:00"
	Timestamp   time.Time `json:"timestamp"`
	Image       string    `json:"image"`
	Sequence    int       `json:"sequence,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	Timezone    string    `json:"timezone,omitempty"`
}

// NewDetectionDTO builds the payload for ev rendered in loc.
func NewDetectionDTO(ev detection.Event, loc *time.Location) *DetectionDTO {
	if loc == nil {
		loc = time.Local
	}
	ts := ev.Timestamp.In(loc)
	return &DetectionDTO{
		Category:  ev.Category.String(),
		Date:      ts.Format(time.DateOnly),
		Time:      ts.Format(time.TimeOnly),
		Timestamp: ts,
		Image:     filepath.Base(ev.Path),
		Timezone:  loc.String(),
	}
}

// WithLedger adds the archive sequence number and the temperature reading,
// nil when the sensor had none.
func (d *DetectionDTO) WithLedger(seq int, temperature *float64) *DetectionDTO {
	d.Sequence = seq
	if temperature != nil {
		t := *temperature
		d.Temperature = &t
	}
	return d
}

// PublishJSON marshals v and publishes it on topic.
func PublishJSON(ctx context.Context, c Client, topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return publishError(err, topic)
	}
	return c.Publish(ctx, topic, string(data))
}
