package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/zyra-ai/zyra/internal/api"
	"github.com/zyra-ai/zyra/internal/execution"
	"github.com/zyra-ai/zyra/internal/execution/history"
	"github.com/zyra-ai/zyra/internal/pkg/config"
	"github.com/zyra-ai/zyra/internal/pkg/crypto"
	"github.com/zyra-ai/zyra/internal/pkg/httpclient"
	"github.com/zyra-ai/zyra/internal/pkg/logger"
	"github.com/zyra-ai/zyra/internal/pkg/queue"
	pkgredis "github.com/zyra-ai/zyra/internal/pkg/redis"
	"github.com/zyra-ai/zyra/internal/scheduler"
	"github.com/zyra-ai/zyra/internal/scheduler/dispatcher"
	"github.com/zyra-ai/zyra/internal/scheduler/leader"
	"github.com/zyra-ai/zyra/internal/scheduler/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	logger.Init("zyra-api", cfg.App.Environment, cfg.App.Debug)

	log.Info().
		Str("app", cfg.App.Name).
		Str("env", cfg.App.Environment).
		Str("storage", cfg.Storage.Driver).
		Msg("Starting API server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	st, err := openStorage(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer func() {
		if err := st.close(); err != nil {
			log.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	// Connect to Redis
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(&cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
	}

	// Auth
	var jwtManager *crypto.JWTManager
	serverDeps := &api.Dependencies{DB: st.pinger()}
	var tokens dispatcher.TokenSource
	if cfg.Auth.Enabled {
		jwtManager = crypto.NewJWTManager(crypto.JWTConfig{
			Secret:        cfg.Auth.JWTSecret,
			AccessExpiry:  cfg.Auth.TokenExpiry,
			ServiceExpiry: cfg.Auth.ServiceToken,
			Issuer:        cfg.Auth.Issuer,
		})
		serverDeps.Tokens = jwtManager
		tokens = jwtManager
	}

	// Execution history
	var archiver history.Archiver
	if cfg.History.ArchiveBucket != "" {
		s3Client, err := history.NewS3Client(ctx, &cfg.S3)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 client")
		}
		archiver = history.NewS3Archiver(s3Client, cfg.History.ArchiveBucket, cfg.History.ArchivePrefix)
		log.Info().Str("bucket", cfg.History.ArchiveBucket).Msg("History archiving enabled")
	}
	historyManager := history.NewManager(st.history, cfg.History.MaxEntries, archiver)

	// Execution tracker
	trackerOpts := []execution.Option{execution.WithMaxRetained(cfg.Executions.MaxRetained)}
	if cfg.Executions.RecordHistory {
		trackerOpts = append(trackerOpts, execution.WithRecorder(historyManager))
	}
	if redisClient != nil && cfg.Executions.PublishEvents {
		trackerOpts = append(trackerOpts, execution.WithPublisher(execution.NewRedisPublisher(redisClient)))
	}
	tracker := execution.NewTracker(trackerOpts...)
	go execution.NewJanitor(tracker, cfg.Executions.CleanupInterval).Run(ctx)

	// Scheduler
	schedules := st.schedules
	if redisClient != nil {
		schedules = store.NewCachedStore(schedules, redisClient, cfg.Redis.CacheTTL)
	}

	var trigger dispatcher.Trigger
	switch cfg.Scheduler.TriggerMode {
	case config.TriggerModeQueue:
		queueClient := queue.NewClient(&cfg.Redis)
		defer queueClient.Close()

		monitor := dispatcher.NewBackpressureMonitor(redisClient, queue.PendingKey(queue.QueueDefault), cfg.Scheduler.MaxQueueDepth)
		go monitor.Start(ctx)

		trigger = dispatcher.NewQueueTrigger(queueClient).WithBackpressure(monitor)
	default:
		trigger = dispatcher.NewHTTPTrigger(cfg.Scheduler.TriggerURL, cfg.Scheduler.TriggerTimeout, tokens).
			WithClient(httpclient.NewPooledClient(dispatcher.PoolConfig(&cfg.Scheduler)))
	}

	schedulerDeps := &scheduler.Dependencies{
		Store: schedules,
		Dispatcher: dispatcher.NewDispatcher(
			trigger,
			cfg.Scheduler.TriggerRate,
			cfg.Scheduler.TriggerBurst,
			cfg.Scheduler.TriggerTimeout,
		),
	}
	if cfg.Scheduler.LeaderElection {
		schedulerDeps.Election = leader.NewElection(redisClient, cfg.Scheduler.LeaderKey, cfg.Scheduler.LeaderTTL)
	}
	sched := scheduler.New(scheduler.ConfigFrom(&cfg.Scheduler), schedulerDeps)

	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start scheduler")
		}
		defer func() {
			if err := sched.Stop(); err != nil {
				log.Error().Err(err).Msg("Scheduler shutdown error")
			}
		}()
	} else {
		log.Warn().Msg("Scheduler disabled; schedules are stored but never fire")
	}

	// Create server
	serverDeps.Scheduler = sched
	serverDeps.Tracker = tracker
	serverDeps.History = historyManager
	if redisClient != nil {
		serverDeps.Redis = redisClient.Client
	}
	server := api.NewServer(cfg, serverDeps)

	if err := server.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Server error")
	}
}
