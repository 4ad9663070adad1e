package config

import (
	"time"

	"github.com/pairlink/pairlink-server/internal/utils"
)

// Config holds everything a session process needs. The lobby supplies
// most of it through the environment when it spawns the process.
type Config struct {
	Port      int    `mapstructure:"port" yaml:"port"`
	SessionID string `mapstructure:"session_id" yaml:"session_id"`
	AppID     string `mapstructure:"app_id" yaml:"app_id"`
	LobbyURL  string `mapstructure:"lobby_url" yaml:"lobby_url"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`

	InactivityTimeoutMS       int64 `mapstructure:"inactivity_timeout_ms" yaml:"inactivity_timeout_ms"`
	InactivityCheckIntervalMS int64 `mapstructure:"inactivity_check_interval_ms" yaml:"inactivity_check_interval_ms"`

	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Port:                      3001,
		SessionID:                 "local-" + utils.NewID(6),
		AppID:                     "blockduel",
		LogLevel:                  "info",
		InactivityTimeoutMS:       300_000,
		InactivityCheckIntervalMS: 30_000,
		ReadHeaderTimeout:         5 * time.Second,
		ShutdownTimeout:           5 * time.Second,
	}
}

// InactivityTimeout converts the millisecond override, falling back to
// the default when the value is not a positive integer.
func (c Config) InactivityTimeout() time.Duration {
	if c.InactivityTimeoutMS <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.InactivityTimeoutMS) * time.Millisecond
}

// InactivityCheckInterval converts the millisecond override, falling
// back to the default when the value is not a positive integer.
func (c Config) InactivityCheckInterval() time.Duration {
	if c.InactivityCheckIntervalMS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.InactivityCheckIntervalMS) * time.Millisecond
}
