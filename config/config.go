// Package config loads and validates the daemon's declarative audio
// graph (TOML document of inputs, outputs, and routes) as well as the
// handful of process-level settings the binaries read from the
// environment.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Version is the daemon's version string, reported by /healthz, the
// admin "version" command, and muxctl.
const Version = "0.1.0"

// Error kinds are distinguished so callers (admin server, CLI) can
// report what specifically went wrong rather than an opaque string.
type Error struct {
	Kind    string
	Detail  string
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.wrapped }

func errIO(err error) error              { return &Error{Kind: "io", Detail: "reading config", wrapped: err} }
func errParse(err error) error           { return &Error{Kind: "parse", Detail: "parsing TOML", wrapped: err} }
func errUnknownInputKind(k string) error { return &Error{Kind: "unknown_input_kind", Detail: k} }
func errUnknownOutputKind(k string) error {
	return &Error{Kind: "unknown_output_kind", Detail: k}
}
func errDuplicateID(id string) error   { return &Error{Kind: "duplicate_id", Detail: id} }
func errIDNotFound(id string) error    { return &Error{Kind: "id_not_found", Detail: id} }
func errInvalidField(msg string) error { return &Error{Kind: "invalid_field", Detail: msg} }

// InputKind enumerates the supported input kinds. The set is closed:
// validation rejects anything else.
type InputKind string

const (
	InputAlsa    InputKind = "alsa"
	InputFile    InputKind = "file"
	InputHTTP    InputKind = "http"
	InputSilence InputKind = "silence"
)

// OutputKind enumerates the supported output kinds.
type OutputKind string

const (
	OutputSonos OutputKind = "sonos"
	OutputHTTP  OutputKind = "http"
)

// Input describes one configured audio source.
type Input struct {
	ID     string    `toml:"id"`
	Kind   InputKind `toml:"kind"`
	Device string    `toml:"device,omitempty"`
	Path   string    `toml:"path,omitempty"`
	Loop   bool      `toml:"loop,omitempty"`
	URL    string    `toml:"url,omitempty"`
}

// Output describes one configured playback destination.
type Output struct {
	ID        string     `toml:"id"`
	Kind      OutputKind `toml:"kind"`
	Room      string     `toml:"room,omitempty"`
	BufferSec uint32     `toml:"buffer_sec,omitempty"`
	Host      string     `toml:"host,omitempty"`
	Port      uint16     `toml:"port,omitempty"`
}

// Route binds one input to one or more outputs with a gain and an
// optional ducking amount.
type Route struct {
	Input   string   `toml:"input"`
	Outputs []string `toml:"outputs"`
	GainDB  float32  `toml:"gain_db"`
	DuckDB  float32  `toml:"duck_db"`
}

// Logging configures the structured logger.
type Logging struct {
	Level string `toml:"level"`
	File  string `toml:"file,omitempty"`
}

// Analytics optionally forwards HTTP-output listener telemetry to an
// external ingest endpoint. It has no counterpart in the original
// Sonos-focused design; it supplements it the way the teacher project
// forwards listener sessions for its own radio studios.
type Analytics struct {
	IngestURL  string `toml:"ingest_url,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
	GeoIPDB    string `toml:"geoip_db,omitempty"`
	GeoIPSalt  string `toml:"geoip_salt,omitempty"`
	FlushEvery uint32 `toml:"flush_every_sec,omitempty"`
}

// Config is the immutable snapshot produced by Load/Parse. It is never
// mutated after validation; reload builds a brand new Config and a
// brand new graph from it.
type Config struct {
	Inputs    []Input    `toml:"inputs"`
	Outputs   []Output   `toml:"outputs"`
	Routes    []Route    `toml:"routes"`
	Logging   *Logging   `toml:"logging,omitempty"`
	Analytics *Analytics `toml:"analytics,omitempty"`
	Bitrate   int        `toml:"bitrate_kbps,omitempty"`
}

// Load reads and validates a configuration file from disk.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errIO(err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads and validates a configuration document from r.
func Parse(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, errParse(err)
	}
	if cfg.Bitrate == 0 {
		cfg.Bitrate = 128
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseString is a convenience wrapper for callers holding the document
// in memory already (the admin server's "apply" command).
func ParseString(doc string) (*Config, error) {
	return Parse(strings.NewReader(doc))
}

// Validate enforces every invariant from the data model: unique IDs
// per namespace, closed kind enums with their required fields present,
// referential integrity of routes, and finite gain values.
func (c *Config) Validate() error {
	inputIDs := make(map[string]struct{}, len(c.Inputs))
	for _, in := range c.Inputs {
		switch in.Kind {
		case InputAlsa, InputFile, InputHTTP, InputSilence:
		default:
			return errUnknownInputKind(string(in.Kind))
		}
		if in.Kind == InputFile && in.Path == "" {
			return errInvalidField(fmt.Sprintf("input %q: file kind requires path", in.ID))
		}
		if in.Kind == InputHTTP && in.URL == "" {
			return errInvalidField(fmt.Sprintf("input %q: http kind requires url", in.ID))
		}
		if _, dup := inputIDs[in.ID]; dup {
			return errDuplicateID(in.ID)
		}
		inputIDs[in.ID] = struct{}{}
	}

	outputIDs := make(map[string]struct{}, len(c.Outputs))
	for _, out := range c.Outputs {
		switch out.Kind {
		case OutputSonos, OutputHTTP:
		default:
			return errUnknownOutputKind(string(out.Kind))
		}
		if out.Kind == OutputSonos && out.Room == "" {
			return errInvalidField(fmt.Sprintf("output %q: sonos kind requires room", out.ID))
		}
		if _, dup := outputIDs[out.ID]; dup {
			return errDuplicateID(out.ID)
		}
		outputIDs[out.ID] = struct{}{}
	}

	for _, route := range c.Routes {
		if _, ok := inputIDs[route.Input]; !ok {
			return errIDNotFound(route.Input)
		}
		for _, outID := range route.Outputs {
			if _, ok := outputIDs[outID]; !ok {
				return errIDNotFound(outID)
			}
		}
		if isNonFinite(float64(route.GainDB)) || isNonFinite(float64(route.DuckDB)) {
			return errInvalidField(fmt.Sprintf("route %s->%v: gain/duck must be finite", route.Input, route.Outputs))
		}
	}

	return nil
}

func isNonFinite(f float64) bool {
	return f != f || f > 1e308 || f < -1e308
}

// Equal reports whether two output configs are byte-identical in every
// field that matters to the running graph, used by the supervisor to
// decide whether an output's streamer can survive a live reload
// untouched.
func (o Output) Equal(other Output) bool {
	return o == other
}
