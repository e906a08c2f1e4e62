package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/zyra-ai/zyra/internal/pkg/config"
	"github.com/zyra-ai/zyra/internal/pkg/crypto"
	"github.com/zyra-ai/zyra/internal/pkg/httpclient"
	"github.com/zyra-ai/zyra/internal/pkg/logger"
	"github.com/zyra-ai/zyra/internal/scheduler/dispatcher"
	"github.com/zyra-ai/zyra/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	logger.Init("zyra-worker", cfg.App.Environment, cfg.App.Debug)

	log.Info().
		Str("app", cfg.App.Name).
		Str("api_url", cfg.Worker.APIURL).
		Msg("Starting worker service")

	var tokens dispatcher.TokenSource
	if cfg.Auth.Enabled {
		tokens = crypto.NewJWTManager(crypto.JWTConfig{
			Secret:        cfg.Auth.JWTSecret,
			AccessExpiry:  cfg.Auth.TokenExpiry,
			ServiceExpiry: cfg.Auth.ServiceToken,
			Issuer:        cfg.Auth.Issuer,
		})
	}

	client := httpclient.NewPooledClient(dispatcher.PoolConfig(&cfg.Scheduler))
	defer client.CloseIdleConnections()

	trigger := dispatcher.NewHTTPTrigger(cfg.Worker.APIURL, cfg.Scheduler.TriggerTimeout, tokens).WithClient(client)
	w := worker.New(cfg, trigger)

	if err := w.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start worker")
	}

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker...")
	w.Shutdown()
	log.Info().Msg("Worker stopped")
}
