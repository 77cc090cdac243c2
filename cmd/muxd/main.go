// Command muxd is the sonos-mux daemon: it loads a configuration,
// builds the audio graph it describes, and serves stream, health,
// metrics, and admin endpoints until signalled to stop.
package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/ivugurura/sonos-mux/config"
	"github.com/ivugurura/sonos-mux/internal/admin"
	"github.com/ivugurura/sonos-mux/internal/geo"
	"github.com/ivugurura/sonos-mux/internal/supervisor"
)

func main() {
	_ = godotenv.Load()
	proc := config.LoadProcessConfig()

	configPath := flag.StringP("config", "c", proc.ConfigPath, "path to the TOML configuration file")
	adminAddr := flag.String("admin-addr", proc.AdminAddr, "admin socket address (unix:/path or host:port)")
	healthAddr := flag.String("health-addr", proc.HealthAddr, "HTTP address for /stream, /healthz and /metrics")
	logLevel := flag.String("log-level", proc.LogLevel, "log level: debug, info, warn, error")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("loading config", "err", err)
	}

	logOut := io.Writer(os.Stderr)
	level := *logLevel
	if cfg.Logging != nil {
		if cfg.Logging.Level != "" {
			level = cfg.Logging.Level
		}
		if cfg.Logging.File != "" {
			f, err := os.OpenFile(cfg.Logging.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				log.Fatal("opening log file", "path", cfg.Logging.File, "err", err)
			}
			defer f.Close()
			logOut = f
		}
	}
	logger := log.NewWithOptions(logOut, log.Options{ReportTimestamp: true})
	if lvl, err := log.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}

	var geoResolver *geo.Resolver
	if cfg.Analytics != nil && cfg.Analytics.GeoIPDB != "" {
		geoResolver = geo.NewResolver(cfg.Analytics.GeoIPDB, cfg.Analytics.GeoIPSalt, true)
	} else {
		geoResolver = geo.NewResolver("", "", false)
	}

	sup := supervisor.New(config.Version, logger, geoResolver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sup.Boot(ctx, cfg); err != nil {
		logger.Fatal("booting graph", "err", err)
	}
	logger.Info("graph running", "outputs", len(cfg.Outputs), "inputs", len(cfg.Inputs))

	adminSrv := admin.New(*configPath, sup, logger)
	go func() {
		var err error
		if path, ok := strippedUnixPath(*adminAddr); ok {
			err = adminSrv.ServeUnix(ctx, path)
		} else {
			err = adminSrv.ServeTCP(ctx, *adminAddr)
		}
		if err != nil && ctx.Err() == nil {
			logger.Error("admin server stopped", "err", err)
		}
	}()

	httpSrv := &http.Server{Addr: *healthAddr, Handler: sup.Handler()}
	go func() {
		logger.Info("http server listening", "addr", *healthAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	_ = httpSrv.Shutdown(context.Background())
	sup.Shutdown()
}

// strippedUnixPath reports whether addr names a Unix socket path
// (prefixed "unix:") and returns the path with the prefix removed.
func strippedUnixPath(addr string) (string, bool) {
	const prefix = "unix:"
	if len(addr) > len(prefix) && addr[:len(prefix)] == prefix {
		return addr[len(prefix):], true
	}
	return "", false
}
