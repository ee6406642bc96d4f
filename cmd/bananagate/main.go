package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AlexKimmel/BananaGate/internal/config"
	"github.com/AlexKimmel/BananaGate/internal/obs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	path := os.Getenv("BANANAGATE_CONFIG")
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path, os.Environ())
	if err != nil {
		boot := obs.SetupLogger("info")
		boot.Fatal().Err(err).Msg("load config")
	}

	logger := obs.NewLogger(os.Stdout, cfg.Observability.LogLevel, cfg.Observability.Console)
	if cfg.Auth.PasscodeDefaulted() {
		logger.Warn().Msg("APP_PASSCODE not set, using the built-in default passcode")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler, chain, err := newHandler(ctx, cfg, logger, reg)
	if err != nil {
		logger.Fatal().Err(err).Msg("build gateway")
	}
	defer func() {
		if err := chain.Close(); err != nil {
			logger.Warn().Err(err).Msg("close counter stores")
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout(),
		WriteTimeout:      cfg.Server.WriteTimeout(),
		IdleTimeout:       cfg.Server.IdleTimeout(),
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("static", cfg.Static.Dir).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("bye")
}
