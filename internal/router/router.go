// Package router is the pure transform from a validated Config into a
// running audio graph: one driver per input, one Mixer per output
// built from the routes that target it, an Encoder and Streamer
// attached to every output, and an endpoint Handle for every Sonos
// room.
package router

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/ivugurura/sonos-mux/config"
	"github.com/ivugurura/sonos-mux/internal/encoder"
	"github.com/ivugurura/sonos-mux/internal/endpoint"
	"github.com/ivugurura/sonos-mux/internal/input"
	"github.com/ivugurura/sonos-mux/internal/mixer"
	"github.com/ivugurura/sonos-mux/internal/source"
	"github.com/ivugurura/sonos-mux/internal/streamer"
)

// OutputNode bundles everything built for one configured output.
type OutputNode struct {
	Output   config.Output
	Mixer    *mixer.Mixer
	Encoder  *encoder.Encoder
	Streamer *streamer.Streamer
	Endpoint *endpoint.Handle
}

// Graph is the fully constructed, not-yet-started audio pipeline for
// one configuration.
type Graph struct {
	Config  *config.Config
	Outputs map[string]*OutputNode
	order   []string
}

// Build constructs a graph from a validated config. It assumes
// cfg.Validate() has already been called; referential integrity
// errors here would indicate a bug in validation, not user input.
func Build(cfg *config.Config, endpoints *endpoint.Manager, logger *log.Logger) (*Graph, error) {
	drivers := make(map[string]input.Driver, len(cfg.Inputs))
	for _, in := range cfg.Inputs {
		d, err := input.New(in)
		if err != nil {
			return nil, fmt.Errorf("router: building input %q: %w", in.ID, err)
		}
		drivers[in.ID] = d
	}

	// Routes grouped by output, in file order, so per-output
	// deduplication below preserves first-route-wins.
	routesByOutput := make(map[string][]config.Route)
	for _, route := range cfg.Routes {
		for _, outID := range route.Outputs {
			routesByOutput[outID] = append(routesByOutput[outID], route)
		}
	}

	g := &Graph{Config: cfg, Outputs: make(map[string]*OutputNode)}

	for _, out := range cfg.Outputs {
		routes, ok := routesByOutput[out.ID]
		if !ok {
			continue // no routes target this output; nothing to build
		}

		usedInputs := make(map[string]struct{})
		var sources []*source.Source
		for _, route := range routes {
			if _, used := usedInputs[route.Input]; used {
				continue // first route for this (input, output) pair wins
			}
			usedInputs[route.Input] = struct{}{}

			driver, ok := drivers[route.Input]
			if !ok {
				continue
			}
			duckPriority := route.DuckDB > 0
			duckAmount := route.DuckDB
			if duckAmount < 0 {
				duckAmount = -duckAmount
			}
			sources = append(sources, source.New(float64(route.GainDB), duckPriority, float64(duckAmount), driver.Clone()))
		}

		if len(sources) == 0 {
			continue
		}

		node := &OutputNode{
			Output:   out,
			Mixer:    mixer.New(sources),
			Encoder:  encoder.New(cfg.Bitrate, "", logger),
			Streamer: streamer.New(out.ID, logger),
		}

		if out.Kind == config.OutputSonos && endpoints != nil {
			node.Endpoint = endpoints.AddRoom(out.Room, int(out.BufferSec))
		}

		g.Outputs[out.ID] = node
		g.order = append(g.order, out.ID)
	}

	return g, nil
}

// Start brings up every output's mixer and encoder in declaration
// order.
func (g *Graph) Start(ctx context.Context) error {
	for _, id := range g.order {
		node := g.Outputs[id]
		if err := node.Mixer.Start(ctx); err != nil {
			return fmt.Errorf("router: starting mixer %q: %w", id, err)
		}
		if err := node.Encoder.Start(ctx); err != nil {
			return fmt.Errorf("router: starting encoder %q: %w", id, err)
		}
		go node.Streamer.Pump(node.Encoder.Output())
	}
	return nil
}

// Stop tears down every output's mixer and encoder in reverse
// declaration order.
func (g *Graph) Stop() error {
	var firstErr error
	for i := len(g.order) - 1; i >= 0; i-- {
		node := g.Outputs[g.order[i]]
		if err := node.Mixer.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := node.Encoder.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
