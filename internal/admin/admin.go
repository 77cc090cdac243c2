// Package admin implements the daemon's line-protocol control
// surface: a single-line command over a Unix or TCP socket, answered
// with one line of JSON. It exists so muxctl (and operators with
// netcat) can reload configuration and inspect health without a full
// HTTP API.
package admin

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/ivugurura/sonos-mux/config"
)

// Response is the JSON line sent back for every command.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Supervisor is the subset of daemon control the admin server needs.
// Implemented by *supervisor.Supervisor; declared here so this package
// doesn't import supervisor (which imports admin to start it).
type Supervisor interface {
	Version() string
	Reload(ctx context.Context, cfg *config.Config) error
	Stats(ctx context.Context) (interface{}, error)
}

// Server serves the admin protocol over one or more listeners.
type Server struct {
	configPath string
	supervisor Supervisor
	logger     *log.Logger
}

// New constructs an admin server. configPath is the default config
// file "reload" uses when no path is given on the command line.
func New(configPath string, sup Supervisor, logger *log.Logger) *Server {
	return &Server{configPath: configPath, supervisor: sup, logger: logger}
}

// ServeUnix listens on a Unix domain socket until ctx is cancelled,
// removing any stale socket file left by a previous run.
func (s *Server) ServeUnix(ctx context.Context, path string) error {
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	return s.serve(ctx, ln)
}

// ServeTCP listens on a TCP address until ctx is cancelled. Admin
// sockets are meant for localhost/operator use, not public exposure.
func (s *Server) ServeTCP(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if s.logger != nil {
				s.logger.Error("admin accept failed", "err", err)
			}
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return
	}
	line = strings.TrimSpace(line)
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return
	}

	var resp Response
	switch parts[0] {
	case "version":
		resp = Response{Success: true, Message: "sonos-mux v" + s.supervisor.Version()}
	case "reload":
		resp = s.handleReload(ctx, parts)
	case "apply":
		resp = s.handleApply(ctx, reader)
	case "stats":
		resp = s.handleStats(ctx)
	default:
		resp = Response{Success: false, Message: "unknown command: " + parts[0]}
	}

	body, _ := json.Marshal(resp)
	body = append(body, '\n')
	_, _ = conn.Write(body)
}

func (s *Server) handleReload(ctx context.Context, parts []string) Response {
	path := s.configPath
	if len(parts) >= 2 {
		path = parts[1]
	}
	if path == "" {
		return Response{Success: false, Message: "no config file specified"}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return Response{Success: false, Message: "failed to load config: " + err.Error()}
	}
	if err := s.supervisor.Reload(ctx, cfg); err != nil {
		return Response{Success: false, Message: "reload failed: " + err.Error()}
	}
	return Response{Success: true, Message: "configuration reloaded successfully"}
}

// handleApply reads a TOML document terminated by a blank line and
// applies it as the new configuration, letting an operator push a
// config directly over the socket without a file on disk.
func (s *Server) handleApply(ctx context.Context, reader *bufio.Reader) Response {
	var sb strings.Builder
	for {
		line, err := reader.ReadString('\n')
		if strings.TrimSpace(line) == "" {
			if sb.Len() > 0 || err != nil {
				break
			}
			if err == io.EOF {
				break
			}
			continue
		}
		sb.WriteString(line)
		if err != nil {
			break
		}
	}

	doc := sb.String()
	if strings.TrimSpace(doc) == "" {
		return Response{Success: false, Message: "no configuration provided"}
	}
	cfg, err := config.ParseString(doc)
	if err != nil {
		return Response{Success: false, Message: "failed to parse config: " + err.Error()}
	}
	if err := s.supervisor.Reload(ctx, cfg); err != nil {
		return Response{Success: false, Message: "apply failed: " + err.Error()}
	}
	return Response{Success: true, Message: "configuration applied successfully"}
}

func (s *Server) handleStats(ctx context.Context) Response {
	stats, err := s.supervisor.Stats(ctx)
	if err != nil {
		return Response{Success: false, Message: "stats failed: " + err.Error()}
	}
	body, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return Response{Success: false, Message: "failed to encode stats"}
	}
	return Response{Success: true, Message: string(body)}
}
