package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/pairlink/pairlink-server/internal/apps"
	"github.com/pairlink/pairlink-server/internal/config"
	"github.com/pairlink/pairlink-server/internal/session"
	transporthttp "github.com/pairlink/pairlink-server/internal/transport/http"
	"github.com/pairlink/pairlink-server/internal/watchdog"
)

// App wires the session runtime, inactivity monitor, and transport into
// one runnable session process.
type App struct {
	server          *stdhttp.Server
	runtime         *session.Runtime
	monitor         *watchdog.Monitor
	idleCh          chan string
	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

// New constructs the application with the provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	hooks, err := apps.New(cfg.AppID, logger)
	if err != nil {
		return nil, fmt.Errorf("init app: %w", err)
	}

	rt := session.NewRuntime(hooks, logger)

	var ignore []string
	if f, ok := hooks.(session.ActivityFilter); ok {
		ignore = f.ActivityIgnoreTypes()
	}

	idleCh := make(chan string, 1)
	mon := watchdog.New(watchdog.Config{
		Timeout:       cfg.InactivityTimeout(),
		CheckInterval: cfg.InactivityCheckInterval(),
		IgnoreTypes:   ignore,
		Logger:        logger,
		OnShutdown: func(reason string) {
			select {
			case idleCh <- reason:
			default:
			}
		},
	})

	server := transporthttp.NewServer(rt, mon, cfg, logger)

	logger.Info().
		Str("session_id", cfg.SessionID).
		Str("app_id", cfg.AppID).
		Int("port", cfg.Port).
		Msg("session process initialized")

	return &App{
		server:          server,
		runtime:         rt,
		monitor:         mon,
		idleCh:          idleCh,
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation,
// inactivity shutdown, or a fatal server error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	a.monitor.Start()

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case reason := <-a.idleCh:
		a.log.Info().Str("reason", reason).Msg("shutting down idle session")
		return a.shutdown(serverErr)
	case <-ctx.Done():
		a.log.Info().Msg("shutting down on signal")
		return a.shutdown(serverErr)
	}
}

// shutdown runs the graceful sequence once: monitor, runtime, listener.
func (a *App) shutdown(serverErr <-chan error) error {
	a.cleanup()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-serverErr
}

func (a *App) cleanup() {
	a.monitor.Stop()
	a.runtime.Stop()
}
