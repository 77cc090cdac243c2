// Package endpoint controls Sonos-style playback endpoints: devices
// discovered over the network, fed a stream URL, and kept alive with
// periodic health checks. There is no SSDP/UPnP library in reach, so
// discovery rides on brutella/dnssd's mDNS browsing instead of its
// usual service-announcement role — the library finds `_sonos._tcp`
// instances on the LAN the same way it would find any other
// Bonjour-advertised service.
package endpoint

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

// State is the lifecycle of one endpoint handle.
type State string

const (
	StateUnknown    State = "unknown"
	StateDiscovered State = "discovered"
	StateStreaming  State = "streaming"
	StateStale      State = "stale"
)

const (
	sonosServiceType = "_sonos._tcp"
	staleAfter       = 60 * time.Second
)

// Handle manages one configured Sonos room: its discovered address,
// the stream URL last pushed to it, and its health state.
type Handle struct {
	Room      string
	BufferSec int

	mu          sync.Mutex
	state       State
	ipAddress   string
	streamURL   string
	lastContact time.Time
	groupedWith []string
	logger      *log.Logger
}

// NewHandle constructs a handle for one room.
func NewHandle(room string, bufferSec int, logger *log.Logger) *Handle {
	if bufferSec == 0 {
		bufferSec = 3
	}
	return &Handle{Room: room, BufferSec: bufferSec, state: StateUnknown, logger: logger}
}

// State reports the handle's current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Discover browses the local network for a device advertising the
// configured room name and records its address. Real Sonos devices
// don't name their DNS-SD instances after the room directly; this
// matches the room name as a case-insensitive substring of the
// instance name, the way a best-effort LAN scan would, and returns an
// error when nothing matches within 5 seconds (or ctx's deadline, if
// sooner).
func (h *Handle) Discover(ctx context.Context) error {
	found := make(chan string, 1)

	add := func(e dnssd.BrowseEntry) {
		if len(e.IPs) == 0 || !strings.Contains(strings.ToLower(e.Name), strings.ToLower(h.Room)) {
			return
		}
		select {
		case found <- e.IPs[0].String():
		default:
		}
	}
	rmv := func(e dnssd.BrowseEntry) {}

	browseCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	go func() {
		if err := dnssd.LookupType(browseCtx, sonosServiceType, add, rmv); err != nil && h.logger != nil {
			h.logger.Debug("dnssd lookup ended", "room", h.Room, "err", err)
		}
	}()

	select {
	case ip := <-found:
		h.mu.Lock()
		h.ipAddress = ip
		h.state = StateDiscovered
		h.lastContact = time.Now()
		h.mu.Unlock()
		if h.logger != nil {
			h.logger.Info("endpoint discovered", "room", h.Room, "ip", ip)
		}
		return nil
	case <-browseCtx.Done():
		return fmt.Errorf("endpoint: no device found for room %q", h.Room)
	}
}

// SetStream points the endpoint at a stream URL via SOAP/UPnP. No real
// UPnP control point exists in this stack yet, so this records intent
// and marks the handle streaming; swapping in a SOAP client later only
// touches this method.
func (h *Handle) SetStream(ctx context.Context, url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ipAddress == "" {
		return fmt.Errorf("endpoint: room %q has no discovered address", h.Room)
	}
	h.streamURL = url
	h.state = StateStreaming
	h.lastContact = time.Now()
	if h.logger != nil {
		h.logger.Info("stream set", "room", h.Room, "url", url)
	}
	return nil
}

// KeepAlive re-discovers a handle with no address, and re-asserts the
// stream URL on any handle that has gone quiet past staleAfter.
func (h *Handle) KeepAlive(ctx context.Context) error {
	h.mu.Lock()
	ip := h.ipAddress
	stale := h.ipAddress != "" && time.Since(h.lastContact) > staleAfter
	url := h.streamURL
	h.mu.Unlock()

	if ip == "" {
		return h.Discover(ctx)
	}
	if stale {
		if url != "" {
			return h.SetStream(ctx, url)
		}
		h.mu.Lock()
		h.state = StateStale
		h.mu.Unlock()
	}
	return nil
}

// HealthCheck reports whether the handle believes its device is
// reachable: true in the discovered and streaming states.
func (h *Handle) HealthCheck() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state == StateStreaming || h.state == StateDiscovered
}

// Health is the serializable status snapshot for the admin API.
type Health struct {
	Room        string   `json:"room"`
	State       State    `json:"state"`
	IPAddress   string   `json:"ip_address,omitempty"`
	GroupedWith []string `json:"grouped_with,omitempty"`
}

func (h *Handle) Health() Health {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Health{Room: h.Room, State: h.state, IPAddress: h.ipAddress, GroupedWith: h.groupedWith}
}
