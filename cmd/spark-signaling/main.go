package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sparkchat/spark-signaling/internal/config"
	"github.com/sparkchat/spark-signaling/internal/httpserver"
	"github.com/sparkchat/spark-signaling/internal/hub"
	"github.com/sparkchat/spark-signaling/internal/metrics"
	"github.com/sparkchat/spark-signaling/internal/signaling"
	"github.com/sparkchat/spark-signaling/internal/turnrest"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine; real env vars win either way.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	logStartupWarnings(logger, cfg)

	m := &metrics.Metrics{}
	dispatcher := hub.NewDispatcher(logger, m)

	var turnGen *turnrest.Generator
	if cfg.TURNREST.Enabled() {
		turnGen, err = turnrest.NewGenerator(turnrest.GeneratorConfig{
			SharedSecret:   cfg.TURNREST.SharedSecret,
			TTLSeconds:     cfg.TURNREST.TTLSeconds,
			UsernamePrefix: cfg.TURNREST.UsernamePrefix,
		})
		if err != nil {
			return fmt.Errorf("turn rest: %w", err)
		}
	}

	wsServer := signaling.NewServer(logger, m, dispatcher, cfg)
	httpSrv := httpserver.New(logger, m, cfg, dispatcher, turnGen, resolveVersion())
	handler := httpSrv.Handler(wsServer.Register)

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}

	server := &http.Server{Handler: handler}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()

	httpSrv.SetReady()
	logger.Info("listening", "addr", listener.Addr().String(), "mode", cfg.Mode)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "err", err)
	}
	// Shutdown above does not close upgraded WebSocket connections.
	wsServer.Shutdown()

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func resolveVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return info.Main.Version
}
