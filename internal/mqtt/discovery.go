// discovery.go: Home Assistant MQTT auto-discovery.
// See: https://www.home-assistant.io/integrations/mqtt/#mqtt-discovery
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tphakala/cropguard/internal/logger"
)

// deviceIDPrefix is the prefix for all CropGuard device identifiers.
const deviceIDPrefix = "cropguard"

// idSanitizer matches characters Home Assistant does not accept in IDs.
var idSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// SanitizeID ensures the ID contains only [a-zA-Z0-9_-].
func SanitizeID(id string) string {
	sanitized := idSanitizer.ReplaceAllString(id, "_")
	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}
	sanitized = strings.Trim(sanitized, "_")
	if sanitized == "" {
		sanitized = "unknown"
	}
	return sanitized
}

// DiscoveryPayload represents a Home Assistant MQTT discovery message.
type DiscoveryPayload struct {
	Name                string           `json:"name"`
	UniqueID            string           `json:"unique_id"`
	StateTopic          string           `json:"state_topic"`
	ValueTemplate       string           `json:"value_template,omitempty"`
	DeviceClass         string           `json:"device_class,omitempty"`
	Icon                string           `json:"icon,omitempty"`
	EntityCategory      string           `json:"entity_category,omitempty"`
	PayloadOn           string           `json:"payload_on,omitempty"`
	PayloadOff          string           `json:"payload_off,omitempty"`
	PayloadAvailable    string           `json:"payload_available,omitempty"`
	PayloadNotAvailable string           `json:"payload_not_available,omitempty"`
	AvailabilityTopic   string           `json:"availability_topic,omitempty"`
	Device              DiscoveryDevice  `json:"device"`
	Origin              *DiscoveryOrigin `json:"origin,omitempty"`
}

// DiscoveryDevice represents the device information in a discovery payload.
type DiscoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// DiscoveryOrigin identifies the software creating the discovery message.
type DiscoveryOrigin struct {
	Name      string `json:"name"`
	SWVersion string `json:"sw_version,omitempty"`
}

// DiscoveryConfig holds configuration for generating discovery payloads.
type DiscoveryConfig struct {
	DiscoveryPrefix string // Home Assistant discovery topic prefix (default: homeassistant)
	DetectionTopic  string // topic carrying DetectionDTO payloads
	DeviceName      string // e.g. "CropGuard"
	NodeID          string // typically main.name
	Version         string
	// Actuators maps actuator names to their state topics.
	Actuators map[string]string
}

type discoveryEntry struct {
	component string
	objectID  string
	payload   DiscoveryPayload
}

// Publisher publishes Home Assistant discovery messages.
type Publisher struct {
	client Client
	config DiscoveryConfig
}

// NewDiscoveryPublisher creates a new discovery publisher.
func NewDiscoveryPublisher(client Client, config *DiscoveryConfig) *Publisher {
	cfg := *config
	if cfg.DiscoveryPrefix == "" {
		cfg.DiscoveryPrefix = "homeassistant"
	}
	if cfg.DeviceName == "" {
		cfg.DeviceName = "CropGuard"
	}
	return &Publisher{client: client, config: cfg}
}

// PublishDiscovery announces the status, last detection and actuator entities.
func (p *Publisher) PublishDiscovery(ctx context.Context) error {
	nodeID := SanitizeID(p.config.NodeID)
	deviceID := fmt.Sprintf("%s_%s", deviceIDPrefix, nodeID)
	statusTopic := StatusTopic(p.config.DetectionTopic)
	device := DiscoveryDevice{
		Identifiers:  []string{deviceID},
		Name:         p.config.DeviceName,
		Manufacturer: "CropGuard",
		Model:        "Field Station",
		SWVersion:    p.config.Version,
	}
	origin := &DiscoveryOrigin{Name: "CropGuard", SWVersion: p.config.Version}

	entries := []discoveryEntry{
		{"binary_sensor", "status", DiscoveryPayload{
			Name:           "Status",
			UniqueID:       deviceID + "_status",
			StateTopic:     statusTopic,
			DeviceClass:    "connectivity",
			EntityCategory: "diagnostic",
			PayloadOn:      statusOnline,
			PayloadOff:     statusOffline,
		}},
		{"sensor", "last_detection", DiscoveryPayload{
			Name:          "Last Detection",
			UniqueID:      deviceID + "_last_detection",
			StateTopic:    p.config.DetectionTopic,
			ValueTemplate: "{{ value_json.category }}",
			Icon:          "mdi:paw",
		}},
	}
	for name, topic := range p.config.Actuators {
		id := SanitizeID(name)
		entries = append(entries, discoveryEntry{"binary_sensor", id, DiscoveryPayload{
			Name:       strings.ToUpper(id[:1]) + id[1:],
			UniqueID:   deviceID + "_" + id,
			StateTopic: topic,
			PayloadOn:  "on",
			PayloadOff: "off",
			Icon:       actuatorIcon(id),
		}})
	}

	var firstErr error
	for _, e := range entries {
		e.payload.Device = device
		e.payload.Origin = origin
		if e.objectID != "status" {
			e.payload.AvailabilityTopic = statusTopic
			e.payload.PayloadAvailable = statusOnline
			e.payload.PayloadNotAvailable = statusOffline
		}
		if err := p.publishPayload(ctx, p.topic(e.component, nodeID, e.objectID), &e.payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return fmt.Errorf("failed to publish discovery: %w", firstErr)
	}
	GetLogger().Info("Home Assistant discovery published", logger.Int("entities", len(entries)))
	return nil
}

// RemoveDiscovery clears every retained discovery entry.
func (p *Publisher) RemoveDiscovery(ctx context.Context) error {
	nodeID := SanitizeID(p.config.NodeID)
	topics := []string{
		p.topic("binary_sensor", nodeID, "status"),
		p.topic("sensor", nodeID, "last_detection"),
	}
	for name := range p.config.Actuators {
		topics = append(topics, p.topic("binary_sensor", nodeID, SanitizeID(name)))
	}
	var firstErr error
	for _, topic := range topics {
		if err := p.client.PublishWithRetain(ctx, topic, "", true); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *Publisher) publishPayload(ctx context.Context, topic string, payload *DiscoveryPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal discovery payload: %w", err)
	}
	// Discovery messages must be retained
	return p.client.PublishWithRetain(ctx, topic, string(data), true)
}

func (p *Publisher) topic(component, nodeID, objectID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", p.config.DiscoveryPrefix, component, nodeID, objectID)
}

func actuatorIcon(name string) string {
	if strings.HasPrefix(name, "buzzer") {
		return "mdi:bullhorn"
	}
	return "mdi:lightbulb"
}
