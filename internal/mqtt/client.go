package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"path"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/tphakala/cropguard/internal/errors"
	"github.com/tphakala/cropguard/internal/logger"
	"github.com/tphakala/cropguard/internal/observability/metrics"
)

const (
	statusOnline  = "online"
	statusOffline = "offline"
)

// client implements the Client interface on paho.
type client struct {
	config  Config
	metrics *metrics.MQTTMetrics
	log     logger.Logger

	mu            sync.Mutex
	internal      paho.Client
	subscriptions map[string]MessageHandler
}

// NewClient creates a client. m may be nil.
func NewClient(cfg Config, m *metrics.MQTTMetrics) Client {
	def := DefaultConfig()
	if cfg.ClientID == "" {
		cfg.ClientID = def.ClientID
	}
	if cfg.Topic == "" {
		cfg.Topic = def.Topic
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = def.PublishTimeout
	}
	if cfg.DisconnectTimeout <= 0 {
		cfg.DisconnectTimeout = def.DisconnectTimeout
	}
	if cfg.MaxReconnectInterval <= 0 {
		cfg.MaxReconnectInterval = def.MaxReconnectInterval
	}
	return &client{
		config:        cfg,
		metrics:       m,
		log:           GetLogger().With(logger.String("broker", cfg.Broker)),
		subscriptions: make(map[string]MessageHandler),
	}
}

// StatusTopic is where the availability status is published.
func StatusTopic(detectionTopic string) string {
	return path.Dir(detectionTopic) + "/status"
}

// Connect resolves the broker host and connects. The broker's hostname is
// resolved first so DNS errors surface immediately instead of as retries.
func (c *client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.config.Broker)
	if err != nil || u.Host == "" {
		return connectionError(fmt.Errorf("invalid broker URL %q", c.config.Broker), c.config.Broker)
	}
	if host := u.Hostname(); net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return connectionError(fmt.Errorf("failed to resolve hostname %s: %w", host, err), c.config.Broker)
		}
	}

	statusTopic := StatusTopic(c.config.Topic)
	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetMaxReconnectInterval(c.config.MaxReconnectInterval)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetWill(statusTopic, statusOffline, 1, true)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
		c.metrics.IncrementReconnectAttempts()
		c.log.Debug("reconnecting to MQTT broker")
	})

	c.mu.Lock()
	if c.internal != nil {
		c.mu.Unlock()
		return nil
	}
	c.internal = paho.NewClient(opts)
	internal := c.internal
	c.mu.Unlock()

	token := internal.Connect()
	if err := wait(ctx, token, c.config.ConnectTimeout); err != nil {
		c.metrics.IncrementErrors()
		// paho keeps retrying in the background.
		return connectionError(err, c.config.Broker)
	}
	return nil
}

func (c *client) Publish(ctx context.Context, topic, payload string) error {
	return c.PublishWithRetain(ctx, topic, payload, c.config.Retain)
}

func (c *client) PublishWithRetain(ctx context.Context, topic, payload string, retain bool) error {
	internal := c.current()
	if internal == nil || !internal.IsConnectionOpen() {
		return publishError(fmt.Errorf("not connected to MQTT broker"), topic)
	}

	start := time.Now()
	token := internal.Publish(topic, 1, retain, payload)
	if err := wait(ctx, token, c.config.PublishTimeout); err != nil {
		c.metrics.IncrementErrors()
		return publishError(err, topic)
	}
	c.metrics.ObservePublish(len(payload), time.Since(start))
	c.log.Trace("published", logger.String("topic", topic), logger.Int("size", len(payload)))
	return nil
}

func (c *client) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	c.mu.Lock()
	c.subscriptions[topic] = handler
	internal := c.internal
	c.mu.Unlock()

	// Not yet connected: onConnect subscribes.
	if internal == nil || !internal.IsConnectionOpen() {
		return nil
	}
	token := internal.Subscribe(topic, 1, c.dispatch(handler))
	if err := wait(ctx, token, c.config.PublishTimeout); err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("operation", "subscribe").
			Context("topic", topic).
			Build()
	}
	return nil
}

func (c *client) IsConnected() bool {
	internal := c.current()
	return internal != nil && internal.IsConnectionOpen()
}

// Disconnect publishes the offline status and closes the connection.
func (c *client) Disconnect() {
	c.mu.Lock()
	internal := c.internal
	c.internal = nil
	c.mu.Unlock()
	if internal == nil {
		return
	}
	if internal.IsConnectionOpen() {
		internal.Publish(StatusTopic(c.config.Topic), 1, true, statusOffline).WaitTimeout(c.config.DisconnectTimeout)
	}
	internal.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
	c.metrics.UpdateConnectionStatus(false)
}

func (c *client) current() paho.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internal
}

func (c *client) onConnect(pc paho.Client) {
	c.log.Info("connected to MQTT broker")
	c.metrics.UpdateConnectionStatus(true)

	pc.Publish(StatusTopic(c.config.Topic), 1, true, statusOnline)

	c.mu.Lock()
	subs := make(map[string]MessageHandler, len(c.subscriptions))
	for topic, h := range c.subscriptions {
		subs[topic] = h
	}
	c.mu.Unlock()

	// Clean sessions drop subscriptions, so restore them on every connect.
	for topic, h := range subs {
		pc.Subscribe(topic, 1, c.dispatch(h))
	}
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	c.log.Warn("connection to MQTT broker lost", logger.Error(err))
	c.metrics.UpdateConnectionStatus(false)
	c.metrics.IncrementErrors()
}

func (c *client) dispatch(h MessageHandler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		c.metrics.IncrementReceived()
		h(msg.Topic(), msg.Payload())
	}
}

// wait blocks until the token completes, ctx ends or timeout elapses.
func wait(ctx context.Context, token paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	}
}

func connectionError(err error, broker string) error {
	return errors.New(err).
		Component("mqtt").
		Category(errors.CategoryMQTTConnection).
		Context("broker", broker).
		Build()
}

func publishError(err error, topic string) error {
	return errors.New(err).
		Component("mqtt").
		Category(errors.CategoryMQTTPublish).
		Context("topic", topic).
		Build()
}
