// Package streamer serves one output's encoded MP3 stream to HTTP
// listeners: infinite chunked `audio/mpeg` responses, fanned out from
// a single upstream reader to any number of clients, with slow
// clients disconnected rather than allowed to back up the fan-out.
package streamer

import (
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/ivugurura/sonos-mux/internal/geo"
	"github.com/ivugurura/sonos-mux/internal/listeners"
)

const (
	listenerQueueDepth  = 512
	maxConsecutiveDrops = 50
	readChunkSize       = 4096
)

type listener struct {
	ch            chan []byte
	droppedInARow int
}

// Streamer fans out one output's MP3 bytes to any number of listening
// HTTP clients.
type Streamer struct {
	OutputID string

	listenersMu sync.RWMutex
	listeners   map[*listener]struct{}

	bytesSent atomic.Int64

	logger *log.Logger
	store  *listeners.Store
	geo    *geo.Resolver
}

// New constructs a streamer for one output. Listener sessions aren't
// tracked until WithTelemetry attaches a store.
func New(outputID string, logger *log.Logger) *Streamer {
	return &Streamer{
		OutputID:  outputID,
		listeners: make(map[*listener]struct{}),
		logger:    logger,
	}
}

// WithTelemetry attaches the listener store and geo resolver used to
// track and enrich connecting clients.
func (s *Streamer) WithTelemetry(store *listeners.Store, resolver *geo.Resolver) *Streamer {
	s.store = store
	s.geo = resolver
	return s
}

// Pump reads encoded bytes from r until it errors or returns EOF,
// fanning every chunk out to current listeners. It is meant to run in
// its own goroutine for the lifetime of the encoder feeding it.
func (s *Streamer) Pump(r io.Reader) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.broadcast(chunk)
		}
		if err != nil {
			if s.logger != nil {
				s.logger.Info("streamer pump stopped", "output", s.OutputID, "err", err)
			}
			return
		}
	}
}

func (s *Streamer) broadcast(data []byte) {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	for l := range s.listeners {
		select {
		case l.ch <- data:
			l.droppedInARow = 0
		default:
			l.droppedInARow++
			if l.droppedInARow > maxConsecutiveDrops {
				close(l.ch)
				go s.removeListener(l)
			}
		}
	}
}

func (s *Streamer) removeListener(l *listener) {
	s.listenersMu.Lock()
	delete(s.listeners, l)
	s.listenersMu.Unlock()
}

// ListenerCount reports the number of currently connected clients.
func (s *Streamer) ListenerCount() int {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	return len(s.listeners)
}

// BytesSent reports the cumulative bytes written across all listeners.
func (s *Streamer) BytesSent() int64 {
	return s.bytesSent.Load()
}

// ServeHTTP streams the output's MP3 bytes to one client until it
// disconnects or falls behind.
func (s *Streamer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	l := &listener{ch: make(chan []byte, listenerQueueDepth)}
	s.listenersMu.Lock()
	s.listeners[l] = struct{}{}
	s.listenersMu.Unlock()
	if s.logger != nil {
		s.logger.Info("listener connected", "output", s.OutputID, "total", s.ListenerCount())
	}

	var session *listeners.Listener
	if s.store != nil {
		session = s.newSession(r)
		s.store.Add(session)
		if s.geo != nil {
			go s.geo.Enrich(session)
		}
	}

	defer func() {
		s.removeListener(l)
		if session != nil {
			session.MarkDisconnected()
		}
		if s.logger != nil {
			s.logger.Info("listener disconnected", "output", s.OutputID, "total", s.ListenerCount())
		}
	}()

	for {
		var data []byte
		select {
		case d, ok := <-l.ch:
			if !ok {
				return
			}
			data = d
		case <-r.Context().Done():
			return
		}
		if len(data) == 0 {
			continue
		}
		n, err := w.Write(data)
		s.bytesSent.Add(int64(n))
		if session != nil {
			session.BytesSent.Add(int64(n))
		}
		if err != nil {
			return
		}
		flusher.Flush()
	}
}

func (s *Streamer) newSession(r *http.Request) *listeners.Listener {
	ua := r.Header.Get("User-Agent")
	return &listeners.Listener{
		ID:          uuid.NewString(),
		OutputID:    s.OutputID,
		ConnectedAt: time.Now(),
		RemoteIP:    extractClientIP(r),
		UserAgent:   ua,
		ClientType:  classifyClient(ua),
	}
}

// extractClientIP prefers the X-Forwarded-For chain, since sonos-mux
// is commonly fronted by a reverse proxy when exposed past the LAN,
// and falls back to the raw connection's remote address.
func extractClientIP(r *http.Request) net.IP {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		for _, p := range strings.Split(xff, ",") {
			if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

// classifyClient buckets a connecting listener's User-Agent into the
// categories that matter for this daemon's stream: an actual Sonos
// player asserting the transport URI we handed it, a generic media
// player, or a browser/other client poking the endpoint directly.
func classifyClient(ua string) string {
	l := strings.ToLower(ua)
	switch {
	case strings.Contains(l, "sonos"):
		return "sonos"
	case strings.Contains(l, "vlc"):
		return "vlc"
	case strings.Contains(l, "winamp"):
		return "winamp"
	case strings.Contains(l, "android"):
		return "android_browser"
	case strings.Contains(l, "iphone") || strings.Contains(l, "ipad"):
		return "ios_browser"
	case strings.Contains(l, "mozilla"):
		return "browser"
	default:
		return "other"
	}
}
