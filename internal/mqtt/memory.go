package mqtt

import (
	"context"
	"fmt"
	"sync"
)

// Message is one publish recorded by MemoryClient.
type Message struct {
	Topic   string
	Payload string
	Retain  bool
}

// MemoryClient is an in-process Client. Publishes are recorded and delivered
// to matching subscriptions synchronously. Wildcards are not supported.
type MemoryClient struct {
	mu        sync.Mutex
	connected bool
	messages  []Message
	subs      map[string]MessageHandler
	failWith  error
}

var _ Client = (*MemoryClient)(nil)

// NewMemoryClient returns a disconnected MemoryClient.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{subs: make(map[string]MessageHandler)}
}

// FailPublishes makes every publish return err; nil restores success.
func (m *MemoryClient) FailPublishes(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

func (m *MemoryClient) Connect(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *MemoryClient) Publish(ctx context.Context, topic, payload string) error {
	return m.PublishWithRetain(ctx, topic, payload, false)
}

func (m *MemoryClient) PublishWithRetain(_ context.Context, topic, payload string, retain bool) error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return publishError(fmt.Errorf("not connected to MQTT broker"), topic)
	}
	if m.failWith != nil {
		err := m.failWith
		m.mu.Unlock()
		return publishError(err, topic)
	}
	m.messages = append(m.messages, Message{Topic: topic, Payload: payload, Retain: retain})
	h := m.subs[topic]
	m.mu.Unlock()

	if h != nil {
		h(topic, []byte(payload))
	}
	return nil
}

func (m *MemoryClient) Subscribe(_ context.Context, topic string, handler MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[topic] = handler
	return nil
}

func (m *MemoryClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MemoryClient) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

// Messages returns a copy of every recorded publish.
func (m *MemoryClient) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages...)
}

// MessagesOn returns the payloads published on topic.
func (m *MemoryClient) MessagesOn(topic string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, msg := range m.messages {
		if msg.Topic == topic {
			out = append(out, msg.Payload)
		}
	}
	return out
}
