package mqtt

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcwait "github.com/testcontainers/testcontainers-go/wait"
)

// startMosquitto runs an anonymous Mosquitto broker and returns its URL.
func startMosquitto(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := t.Context()
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "eclipse-mosquitto:2.0",
			ExposedPorts: []string{"1883/tcp"},
			Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
			WaitingFor:   tcwait.ForListeningPort("1883/tcp"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "1883/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

func TestClientAgainstBroker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping broker test in short mode")
	}
	broker := startMosquitto(t)
	ctx := t.Context()

	sub := NewClient(Config{Broker: broker, ClientID: "cropguard-sub", Topic: "cropguard/detections"}, nil)
	require.NoError(t, sub.Connect(ctx))
	defer sub.Disconnect()

	var mu sync.Mutex
	var received []string
	require.NoError(t, sub.Subscribe(ctx, "cropguard/sensors/temperature", func(_ string, payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, string(payload))
	}))

	pub := NewClient(Config{Broker: broker, ClientID: "cropguard-pub", Topic: "cropguard/detections"}, nil)
	require.NoError(t, pub.Connect(ctx))
	defer pub.Disconnect()
	assert.True(t, pub.IsConnected())

	require.NoError(t, pub.Publish(ctx, "cropguard/sensors/temperature", "23.25"))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1 && received[0] == "23.25"
	}, 10*time.Second, 50*time.Millisecond)
}
