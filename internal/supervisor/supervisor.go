// Package supervisor owns the daemon's lifecycle: building the audio
// graph from configuration, starting it, serving its HTTP surface
// (stream endpoints, health, metrics), reacting to reloads, and
// shutting everything down cleanly.
package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ivugurura/sonos-mux/config"
	"github.com/ivugurura/sonos-mux/internal/analytics"
	"github.com/ivugurura/sonos-mux/internal/audio"
	"github.com/ivugurura/sonos-mux/internal/endpoint"
	"github.com/ivugurura/sonos-mux/internal/geo"
	"github.com/ivugurura/sonos-mux/internal/listeners"
	"github.com/ivugurura/sonos-mux/internal/router"
)

var (
	metricBytesEncoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sonos_mux_bytes_encoded_total",
		Help: "Cumulative PCM bytes fed into each output's encoder.",
	}, []string{"output"})

	metricListeners = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sonos_mux_listeners",
		Help: "Currently connected HTTP listeners per output.",
	}, []string{"output"})

	metricRMS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sonos_mux_rms_dbfs",
		Help: "Most recent mixed-buffer RMS level in dBFS per output.",
	}, []string{"output"})
)

// Supervisor runs one live audio graph and can swap it for another on
// reload.
type Supervisor struct {
	version  string
	bootedAt time.Time
	logger   *log.Logger

	endpoints *endpoint.Manager
	listeners *listeners.Store
	geo       *geo.Resolver
	analytics config.Analytics

	mu         sync.RWMutex
	graph      *router.Graph
	cancelProc context.CancelFunc
	procWG     sync.WaitGroup

	mux *chi.Mux
}

// New constructs a supervisor. Geo and analytics configuration are
// optional; a zero-value Analytics disables telemetry forwarding.
func New(version string, logger *log.Logger, geoResolver *geo.Resolver) *Supervisor {
	s := &Supervisor{
		version:   version,
		bootedAt:  time.Now(),
		logger:    logger,
		endpoints: endpoint.NewManager(logger),
		listeners: listeners.NewStore(),
		geo:       geoResolver,
		mux:       chi.NewRouter(),
	}
	s.mux.Get("/healthz", s.handleHealthz)
	s.mux.Handle("/metrics", promhttp.Handler())
	return s
}

// Version reports the daemon version string.
func (s *Supervisor) Version() string { return s.version }

// Handler returns the root HTTP handler serving /healthz, /metrics,
// and every output's /stream/{id} route.
func (s *Supervisor) Handler() http.Handler { return s.mux }

// Boot builds the initial graph from cfg and starts it, the network
// endpoints, and their keep-alive loop.
func (s *Supervisor) Boot(ctx context.Context, cfg *config.Config) error {
	if cfg.Analytics != nil {
		s.analytics = *cfg.Analytics
	}
	return s.swapGraph(ctx, cfg, true)
}

// Reload builds a new graph from cfg, starts it, and swaps it in,
// keeping any output's existing Streamer (and its connected listeners)
// alive across the swap when that output's config is byte-identical
// to the one it's replacing.
func (s *Supervisor) Reload(ctx context.Context, cfg *config.Config) error {
	return s.swapGraph(ctx, cfg, false)
}

func (s *Supervisor) swapGraph(ctx context.Context, cfg *config.Config, initial bool) error {
	s.mu.Lock()
	old := s.graph
	s.mu.Unlock()

	newGraph, err := router.Build(cfg, nil, s.logger)
	if err != nil {
		return fmt.Errorf("supervisor: building graph: %w", err)
	}

	if old != nil {
		for id, node := range newGraph.Outputs {
			oldNode, ok := old.Outputs[id]
			if ok && oldNode.Output.Equal(node.Output) {
				node.Streamer = oldNode.Streamer
			}
		}
	}

	if err := newGraph.Start(ctx); err != nil {
		return fmt.Errorf("supervisor: starting graph: %w", err)
	}

	// Nothing externally visible is touched above this line: the old
	// graph is still the one serving /stream/{id} until the new graph
	// has proven it can start. Only now do we register endpoint rooms,
	// repoint routes, attach telemetry, and start flush loops for the
	// graph taking over.
	for _, node := range newGraph.Outputs {
		if node.Output.Kind == config.OutputSonos {
			node.Endpoint = s.endpoints.AddRoom(node.Output.Room, int(node.Output.BufferSec))
		}
	}
	for id, node := range newGraph.Outputs {
		node.Streamer.WithTelemetry(s.listeners, s.geo)
		s.mux.Handle("/stream/"+id, node.Streamer)
		if s.analytics.IngestURL != "" {
			flushEvery := time.Duration(s.analytics.FlushEvery) * time.Second
			if flushEvery <= 0 {
				flushEvery = 30 * time.Second
			}
			analytics.StartFlush(s.listeners, id, s.analytics.IngestURL, s.analytics.APIKey, flushEvery)
		}
	}

	procCtx, cancel := context.WithCancel(ctx)
	s.startProcessors(procCtx, newGraph)

	s.mu.Lock()
	s.graph = newGraph
	prevCancel := s.cancelProc
	s.cancelProc = cancel
	s.mu.Unlock()

	if initial {
		s.endpoints.InitializeAll(ctx)
		s.endpoints.Start(ctx)
		for _, node := range newGraph.Outputs {
			if node.Endpoint != nil {
				_ = s.endpoints.SetStream(ctx, node.Output.Room, "http://localhost/stream/"+node.Output.ID)
			}
		}
	}

	if prevCancel != nil {
		prevCancel()
	}
	if old != nil {
		_ = old.Stop()
	}
	return nil
}

// startProcessors runs one pull-encode-send loop per output: pull the
// next mixed buffer, feed it to the encoder, and log RMS loudness
// every 10s.
func (s *Supervisor) startProcessors(ctx context.Context, g *router.Graph) {
	for id, node := range g.Outputs {
		s.procWG.Add(1)
		go func(id string, node *router.OutputNode) {
			defer s.procWG.Done()
			lastLog := time.Now()
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}
				buf, ok := node.Mixer.MixNext(ctx)
				if !ok {
					continue
				}
				if err := node.Encoder.Encode(buf); err != nil {
					if s.logger != nil {
						s.logger.Error("encode failed", "output", id, "err", err)
					}
					return
				}
				metricBytesEncoded.WithLabelValues(id).Add(float64(len(buf) * 2))
				metricListeners.WithLabelValues(id).Set(float64(node.Streamer.ListenerCount()))

				if time.Since(lastLog) >= 10*time.Second {
					metricRMS.WithLabelValues(id).Set(audio.RMS(buf))
					if s.logger != nil {
						s.logger.Info("output level", "output", id, "rms_dbfs", audio.RMS(buf), "listeners", node.Streamer.ListenerCount())
					}
					lastLog = time.Now()
				}
			}
		}(id, node)
	}
}

// healthOutput is one output's entry in the /healthz response.
type healthOutput struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Room    string `json:"room,omitempty"`
	Healthy bool   `json:"healthy"`
}

// healthResponse is the /healthz body: status is "ok" iff every
// output reports healthy, else "degraded".
type healthResponse struct {
	Status    string         `json:"status"`
	Version   string         `json:"version"`
	UptimeSec int64          `json:"uptime_sec"`
	Outputs   []healthOutput `json:"outputs"`
}

func (s *Supervisor) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	g := s.graph
	s.mu.RUnlock()

	resp := healthResponse{
		Status:    "ok",
		Version:   s.version,
		UptimeSec: int64(time.Since(s.bootedAt).Seconds()),
		Outputs:   []healthOutput{},
	}
	if g == nil {
		resp.Status = "degraded"
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	for id, node := range g.Outputs {
		healthy := true
		if node.Endpoint != nil {
			healthy = node.Endpoint.HealthCheck()
		}
		if !healthy {
			resp.Status = "degraded"
		}
		resp.Outputs = append(resp.Outputs, healthOutput{
			ID:      id,
			Kind:    string(node.Output.Kind),
			Room:    node.Output.Room,
			Healthy: healthy,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Stats returns the admin "stats" payload: listener snapshot and
// endpoint health.
func (s *Supervisor) Stats(ctx context.Context) (interface{}, error) {
	s.mu.RLock()
	g := s.graph
	s.mu.RUnlock()

	snap := analytics.Snapshot{GeneratedAt: time.Now().UTC(), Outputs: map[string]analytics.OutputSnapshot{}}
	if g != nil {
		for id := range g.Outputs {
			active := len(s.listeners.ActiveByOutput(id))
			snap.TotalActive += active
			snap.Outputs[id] = analytics.OutputSnapshot{OutputID: id, Active: active, Countries: map[string]int{}}
		}
	}

	return struct {
		Listeners analytics.Snapshot `json:"listeners"`
		Endpoints []endpoint.Health  `json:"endpoints"`
	}{
		Listeners: snap,
		Endpoints: s.endpoints.HealthStatus(),
	}, nil
}

// Shutdown stops the running graph, the keep-alive loop, and flushes
// every encoder.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	g := s.graph
	cancel := s.cancelProc
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.procWG.Wait()
	s.endpoints.Stop()
	if g != nil {
		_ = g.Stop()
	}
}
