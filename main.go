// Package main serves HTTP routes guarded by sliding window log limiters.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"learn.windowlimiter/config"
)

func main() {
	configureLogging(config.DefaultLogFormat)

	port := flag.Int("p", 0, "Port to run the HTTP server on (overrides server.port)")
	path := flag.String("config", "config.yaml", "Path to the configuration file")
	logLevelStr := flag.String("log-level", "", "Logging level (trace, debug, info, warn, error, fatal, panic); defaults to logging.level")
	flag.Parse()

	log.Info().Str("config_path", *path).Msg("Starting application initialization")

	app, cleanup, err := InitializeApplication(configPath(*path))
	if err != nil {
		log.Fatal().Err(err).Str("config_path", *path).Msg("Application startup failed")
	}
	defer cleanup()

	configureLogging(app.Config.Logging.Format)
	level := app.Config.Logging.Level
	if *logLevelStr != "" {
		level = *logLevelStr
	}
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Fatal().Err(err).Str("log_level", level).Msg("Invalid log level provided")
	}
	zerolog.SetGlobalLevel(logLevel)

	if *port > 0 {
		app.Config.Server.Port = *port
	}

	if err := run(app); err != nil {
		log.Error().Err(err).Msg("HTTP server stopped with error")
		cleanup()
		os.Exit(1)
	}
}

// run serves until SIGINT or SIGTERM, then drains in-flight requests.
func run(app *application) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", app.Config.Server.Port),
		Handler:      app.Handler,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", srv.Addr).Int("limiters", len(app.Limiters)).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutdown signal received, draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info().Msg("HTTP server stopped")
	return nil
}

func configureLogging(format string) {
	if strings.EqualFold(format, "json") {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
