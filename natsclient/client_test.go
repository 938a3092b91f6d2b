package natsclient

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionStatusString(t *testing.T) {
	tests := []struct {
		status   ConnectionStatus
		expected string
	}{
		{StatusDisconnected, "disconnected"},
		{StatusConnecting, "connecting"},
		{StatusConnected, "connected"},
		{StatusReconnecting, "reconnecting"},
		{ConnectionStatus(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.String())
		})
	}
}

func TestNewClientDefaults(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", client.URL())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.False(t, client.IsConnected())
	assert.Equal(t, -1, client.maxReconnects)
	assert.Equal(t, 2*time.Second, client.reconnectWait)
	assert.Equal(t, 5*time.Second, client.timeout)
}

func TestNewClientOptions(t *testing.T) {
	client, err := NewClient("nats://localhost:4222",
		WithName("organ-connector"),
		WithTimeout(10*time.Second),
		WithMaxReconnects(5),
		WithReconnectWait(time.Second),
		WithDrainTimeout(3*time.Second),
		WithCredentials("user", "pass"),
		WithLogger(slog.Default()),
	)
	require.NoError(t, err)

	assert.Equal(t, "organ-connector", client.clientName)
	assert.Equal(t, 10*time.Second, client.timeout)
	assert.Equal(t, 5, client.maxReconnects)
	assert.Equal(t, time.Second, client.reconnectWait)
	assert.Equal(t, 3*time.Second, client.drainTimeout)
	assert.Equal(t, "user", client.username)
}

func TestNewClientInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"zero timeout", WithTimeout(0)},
		{"negative reconnect wait", WithReconnectWait(-time.Second)},
		{"zero drain timeout", WithDrainTimeout(0)},
		{"nil logger", WithLogger(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient("nats://localhost:4222", tt.opt)
			assert.Error(t, err)
		})
	}
}

func TestCloseWithoutConnect(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	// Close on a never-connected client succeeds and is idempotent
	require.NoError(t, client.Close(context.Background()))
	require.NoError(t, client.Close(context.Background()))
}

func TestConnectAfterClose(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	require.NoError(t, client.Close(context.Background()))
	assert.Error(t, client.Connect(context.Background()))
}

func TestConsumeStreamNotConnected(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	err = client.ConsumeStream(context.Background(), "EVENTS", "events.capability", func(context.Context, []byte) {})
	assert.Error(t, err)
}

func TestStopConsumerUnknownIsNoop(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	client.StopConsumer("EVENTS", "events.capability")
}

func TestIsKVNotFoundError(t *testing.T) {
	assert.False(t, IsKVNotFoundError(nil))
	assert.False(t, IsKVNotFoundError(context.Canceled))
}
