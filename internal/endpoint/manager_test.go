package endpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerAddRoomAndGet(t *testing.T) {
	m := NewManager(nil)
	m.AddRoom("Living Room", 5)
	m.AddRoom("Kitchen", 0)

	h, ok := m.Get("Living Room")
	require.True(t, ok)
	assert.Equal(t, 5, h.BufferSec)

	_, ok = m.Get("Nonexistent")
	assert.False(t, ok)
}

func TestManagerHealthStatusCoversAllRooms(t *testing.T) {
	m := NewManager(nil)
	m.AddRoom("Living Room", 5)
	m.AddRoom("Kitchen", 5)

	status := m.HealthStatus()
	assert.Len(t, status, 2)
}

func TestManagerSetStreamUnknownRoom(t *testing.T) {
	m := NewManager(nil)
	err := m.SetStream(context.Background(), "Nowhere", "http://x")
	require.Error(t, err)
}
