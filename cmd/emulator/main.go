package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"product-api/internal/config"
	"product-api/internal/emulator"
	"product-api/internal/metrics"
)

func main() {
	log := zerolog.New(os.Stderr).With().
		Timestamp().
		Str("svc", "emulator").
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}
	log = log.Level(cfg.ZerologLevel())

	m := metrics.New("emulator", prometheus.DefaultRegisterer)
	srv := emulator.New(cfg.Emulator, log.With().Str("component", "emulator").Logger(), m)

	httpSrv := &http.Server{
		Addr:    cfg.Emulator.Addr,
		Handler: srv.Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().
			Str("listen", cfg.Emulator.Addr).
			Str("function", cfg.Emulator.FunctionName).
			Msg("emulator starting")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down...")

	if err := httpSrv.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}
