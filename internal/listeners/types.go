// Package listeners tracks the HTTP clients connected to an output's
// stream: when they connected, how much they've been sent, and the
// geo/user-agent enrichment attached once resolved.
package listeners

import (
	"net"
	"sync/atomic"
	"time"
)

// Listener is one connected HTTP stream client.
type Listener struct {
	ID       string
	OutputID string

	ConnectedAt    time.Time
	DisconnectedAt atomic.Pointer[time.Time]

	RemoteIP   net.IP
	IPHash     string
	Country    string
	Region     string
	City       string
	Lat, Lon   float64
	UserAgent  string
	ClientType string

	BytesSent     atomic.Int64
	LastHeartbeat atomic.Pointer[time.Time]

	Enriched atomic.Bool
}

// MarkDisconnected records the disconnect time once, idempotently.
func (l *Listener) MarkDisconnected() {
	if l.DisconnectedAt.Load() != nil {
		return
	}
	now := time.Now()
	l.DisconnectedAt.Store(&now)
}

// Active reports whether the listener hasn't disconnected yet.
func (l *Listener) Active() bool {
	return l.DisconnectedAt.Load() == nil
}
