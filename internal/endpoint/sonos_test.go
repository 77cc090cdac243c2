package endpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleStartsUnknown(t *testing.T) {
	h := NewHandle("Living Room", 5, nil)
	assert.Equal(t, StateUnknown, h.State())
	assert.Equal(t, 5, h.BufferSec)
	assert.False(t, h.HealthCheck())
}

func TestHandleDefaultsBufferSec(t *testing.T) {
	h := NewHandle("Kitchen", 0, nil)
	assert.Equal(t, 3, h.BufferSec)
}

func TestSetStreamRequiresDiscoveredAddress(t *testing.T) {
	h := NewHandle("Office", 5, nil)
	err := h.SetStream(context.Background(), "http://example.com/stream")
	require.Error(t, err)
}

func TestSetStreamTransitionsToStreaming(t *testing.T) {
	h := NewHandle("Office", 5, nil)
	h.mu.Lock()
	h.ipAddress = "192.168.1.50"
	h.mu.Unlock()

	require.NoError(t, h.SetStream(context.Background(), "http://example.com/stream"))
	assert.Equal(t, StateStreaming, h.State())
	assert.True(t, h.HealthCheck())
}

func TestHealthSnapshot(t *testing.T) {
	h := NewHandle("Bedroom", 5, nil)
	h.mu.Lock()
	h.ipAddress = "10.0.0.5"
	h.state = StateDiscovered
	h.mu.Unlock()

	health := h.Health()
	assert.Equal(t, "Bedroom", health.Room)
	assert.Equal(t, StateDiscovered, health.State)
	assert.Equal(t, "10.0.0.5", health.IPAddress)
}
