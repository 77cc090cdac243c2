package endpoint

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const keepAliveInterval = 60 * time.Second

// Manager owns every configured Sonos-style room handle and runs an
// independent keep-alive goroutine per room, so a stuck device never
// delays the health check of any other.
type Manager struct {
	mu     sync.RWMutex
	rooms  map[string]*Handle
	logger *log.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager constructs an empty endpoint manager.
func NewManager(logger *log.Logger) *Manager {
	return &Manager{rooms: make(map[string]*Handle), logger: logger}
}

// AddRoom registers a room handle to be kept alive once Start runs.
func (m *Manager) AddRoom(room string, bufferSec int) *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := NewHandle(room, bufferSec, m.logger)
	m.rooms[room] = h
	return h
}

// Get returns the handle for a room, if registered.
func (m *Manager) Get(room string) (*Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.rooms[room]
	return h, ok
}

// InitializeAll discovers every registered room, continuing past
// individual failures so one missing device doesn't block the rest.
func (m *Manager) InitializeAll(ctx context.Context) {
	m.mu.RLock()
	rooms := make([]*Handle, 0, len(m.rooms))
	for _, h := range m.rooms {
		rooms = append(rooms, h)
	}
	m.mu.RUnlock()

	for _, h := range rooms {
		if err := h.Discover(ctx); err != nil && m.logger != nil {
			m.logger.Warn("endpoint discovery failed", "room", h.Room, "err", err)
		}
	}
}

// Start runs the periodic keep-alive loop until Stop is called.
func (m *Manager) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				m.runKeepAliveRound(runCtx)
			}
		}
	}()
}

func (m *Manager) runKeepAliveRound(ctx context.Context) {
	m.mu.RLock()
	rooms := make([]*Handle, 0, len(m.rooms))
	for _, h := range m.rooms {
		rooms = append(rooms, h)
	}
	m.mu.RUnlock()

	for _, h := range rooms {
		m.wg.Add(1)
		go func(h *Handle) {
			defer m.wg.Done()
			if err := h.KeepAlive(ctx); err != nil && m.logger != nil {
				m.logger.Error("keep-alive failed", "room", h.Room, "err", err)
			}
		}(h)
	}
}

// Stop halts the keep-alive loop and waits for in-flight rounds.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// HealthStatus returns a snapshot of every room's health.
func (m *Manager) HealthStatus() []Health {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Health, 0, len(m.rooms))
	for _, h := range m.rooms {
		out = append(out, h.Health())
	}
	return out
}

// SetStream sets the stream URL for a specific room.
func (m *Manager) SetStream(ctx context.Context, room, url string) error {
	h, ok := m.Get(room)
	if !ok {
		return &roomNotFoundError{room: room}
	}
	return h.SetStream(ctx, url)
}

type roomNotFoundError struct{ room string }

func (e *roomNotFoundError) Error() string {
	return "endpoint: room not found: " + e.room
}
