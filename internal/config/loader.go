package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envConfigDefaultPath = "PAIRLINK_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "session.yaml"
)

// The lobby contract uses bare environment names, so each key is bound
// explicitly instead of going through a prefix.
var envBindings = map[string]string{
	"port":                         "PORT",
	"session_id":                   "SESSION_ID",
	"app_id":                       "APP_ID",
	"lobby_url":                    "LOBBY_URL",
	"log_level":                    "LOG_LEVEL",
	"inactivity_timeout_ms":        "INACTIVITY_TIMEOUT_MS",
	"inactivity_check_interval_ms": "INACTIVITY_CHECK_INTERVAL_MS",
}

// Load builds configuration from defaults, optional config file, and env
// vars, and returns the resolved file path.
// Precedence: defaults < config file < env vars.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("port", cfg.Port)
	v.SetDefault("session_id", cfg.SessionID)
	v.SetDefault("app_id", cfg.AppID)
	v.SetDefault("lobby_url", cfg.LobbyURL)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("inactivity_timeout_ms", cfg.InactivityTimeoutMS)
	v.SetDefault("inactivity_check_interval_ms", cfg.InactivityCheckIntervalMS)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return cfg, "", fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, configPath, nil
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
