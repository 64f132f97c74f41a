package httpclient

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockClient(t *testing.T, cfg Config) (*Client, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	cfg.Transport = transport
	c := New(&cfg)
	t.Cleanup(c.Close)
	return c, transport
}

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	c := New(nil)
	assert.Equal(t, DefaultTimeout, c.defaultTimeout)
	assert.Equal(t, defaultUserAgent, c.userAgent)

	c = New(&Config{DefaultTimeout: 5 * time.Second, UserAgent: "cropguard-test/1.0"})
	assert.Equal(t, 5*time.Second, c.defaultTimeout)
	assert.Equal(t, "cropguard-test/1.0", c.userAgent)
}

func TestDoSetsUserAgentAndDeadline(t *testing.T) {
	t.Parallel()

	c, transport := newMockClient(t, Config{DefaultTimeout: time.Minute})
	transport.RegisterResponder(http.MethodGet, "https://api.example.test/ping",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, defaultUserAgent, req.Header.Get("User-Agent"))
			_, hasDeadline := req.Context().Deadline()
			assert.True(t, hasDeadline, "default timeout should set a deadline")
			return httpmock.NewStringResponse(http.StatusOK, "pong"), nil
		})

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, "https://api.example.test/ping", http.NoBody)
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "pong", string(body))
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestDoKeepsCallerDeadline(t *testing.T) {
	t.Parallel()

	c, transport := newMockClient(t, Config{DefaultTimeout: time.Hour})
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	want, _ := ctx.Deadline()

	transport.RegisterResponder(http.MethodGet, "https://api.example.test/deadline",
		func(req *http.Request) (*http.Response, error) {
			got, ok := req.Context().Deadline()
			assert.True(t, ok)
			assert.Equal(t, want, got)
			return httpmock.NewStringResponse(http.StatusNoContent, ""), nil
		})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.example.test/deadline", http.NoBody)
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
}

func TestAfterResponseHook(t *testing.T) {
	t.Parallel()

	c, transport := newMockClient(t, Config{})
	transport.RegisterResponder(http.MethodPost, "https://api.example.test/fail",
		httpmock.NewStringResponder(http.StatusBadGateway, "upstream down"))

	var calls atomic.Int32
	var status atomic.Int32
	c.SetAfterResponseHook(func(_ *http.Request, resp *http.Response, err error, _ time.Duration) {
		calls.Add(1)
		if err == nil {
			status.Store(int32(resp.StatusCode))
		}
	})

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, "https://api.example.test/fail", http.NoBody)
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(http.StatusBadGateway), status.Load())
}

func TestDoTransportError(t *testing.T) {
	t.Parallel()

	c, _ := newMockClient(t, Config{})
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, "https://unregistered.example.test/", http.NoBody)
	require.NoError(t, err)

	_, err = c.Do(req)
	require.Error(t, err)
}

func TestDoNilRequest(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Do(nil)
	require.Error(t, err)
}
