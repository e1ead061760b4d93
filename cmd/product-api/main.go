package main

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"product-api/internal/config"
	"product-api/internal/handler"
	"product-api/internal/metrics"
	"product-api/internal/product"
	"product-api/internal/runtime"
)

func main() {
	log := zerolog.New(os.Stderr).With().
		Timestamp().
		Str("svc", "product-api").
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}
	log = log.Level(cfg.ZerologLevel())

	client, err := runtime.NewClientFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("control plane address missing")
	}

	m := metrics.New(cfg.ServiceName, prometheus.DefaultRegisterer)

	store := product.NewStore()
	api := product.NewAPI(store, log.With().Str("component", "product").Logger())

	h := handler.Chain(api.Handle,
		handler.Recovery(log),
		handler.Logging(log.With().Str("component", "handler").Logger()),
		handler.Metrics(m),
	)

	rt := runtime.New(client, h, runtime.Config{
		Logger:  log.With().Str("component", "runtime").Logger(),
		Metrics: m,
	})

	log.Info().
		Str("environment", cfg.Environment).
		Msg("handler initialized, entering event loop")

	if err := rt.Run(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("runtime loop exited")
	}
}
