package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"timer-delivery-engine/internal/api"
	"timer-delivery-engine/internal/config"
	"timer-delivery-engine/internal/storage"
	"timer-delivery-engine/internal/telemetry"
)

func Run(cfg config.Config) {
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	store, err := storage.New(rootCtx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init storage")
	}
	defer store.Close()

	// Telemetry
	rec := telemetry.NewRecorder(store, cfg.Telemetry.UsageQueueSize)
	go rec.RunUsageWorker(rootCtx, time.Second)

	// HTTP
	if cfg.Proxy.Secret == "" && !cfg.IsDev() {
		log.Fatal().Msg("proxy secret not configured")
	}
	h := api.NewHandler(store, rec, cfg.Proxy.Secret, cfg.IsDev())
	r := api.Router(h)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Server goroutine
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Bool("dev", cfg.IsDev()).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server crashed")
		}
	}()

	// Wait for signal
	waitForSignal()
	log.Info().Msg("shutdown...")

	// Graceful shutdown
	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	cancel() // stop background goroutines
	_ = srv.Shutdown(shCtx)
}

func waitForSignal() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
