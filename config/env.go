package config

import "os"

// ProcessConfig holds the handful of settings the binaries read from
// the environment at startup, in the same small-loader-with-defaults
// shape the teacher project used for its own process config.
type ProcessConfig struct {
	ConfigPath string
	AdminAddr  string
	HealthAddr string
	LogLevel   string
}

// LoadProcessConfig reads process-level settings from the environment,
// applying defaults for anything unset. Command-line flags (see
// cmd/muxd) take precedence over these when both are present.
func LoadProcessConfig() *ProcessConfig {
	return &ProcessConfig{
		ConfigPath: getenv("MUXD_CONFIG", "/etc/muxd/config.toml"),
		AdminAddr:  getenv("MUXD_ADMIN_ADDR", ":8383"),
		HealthAddr: getenv("MUXD_HEALTH_ADDR", ":8080"),
		LogLevel:   getenv("MUXD_LOG_LEVEL", "info"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
