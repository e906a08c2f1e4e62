package queue

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
	"github.com/zyra-ai/zyra/internal/pkg/config"
)

// Server consumes trigger tasks. Handlers and middlewares are registered
// on its mux before Start.
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewServer(cfg *config.RedisConfig, concurrency int) *Server {
	server := asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency:  concurrency,
		Queues:       map[string]int{QueueDefault: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(reportFailure),
		Logger:       zerologAdapter{},
	})

	return &Server{
		server: server,
		mux:    asynq.NewServeMux(),
	}
}

func reportFailure(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	event := log.Warn()
	if retried >= maxRetry {
		event = log.Error()
	}
	if payload, perr := ParseScheduleTriggerTask(task); perr == nil {
		event = event.Str("schedule_id", payload.ScheduleID)
	}
	event.
		Err(err).
		Str("task_type", task.Type()).
		Int("retry", retried).
		Int("max_retry", maxRetry).
		Bool("final", retried >= maxRetry).
		Msg("Trigger task failed")
}

func (s *Server) HandleFunc(pattern string, handler func(context.Context, *asynq.Task) error) {
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) Use(mws ...asynq.MiddlewareFunc) {
	s.mux.Use(mws...)
}

func (s *Server) Start() error {
	log.Info().Str("queue", QueueDefault).Msg("Consuming trigger tasks")
	return s.server.Start(s.mux)
}

func (s *Server) Shutdown() {
	s.server.Shutdown()
}

type zerologAdapter struct{}

func (zerologAdapter) Debug(args ...interface{}) { log.Debug().Msgf("asynq: %v", args) }
func (zerologAdapter) Info(args ...interface{})  { log.Info().Msgf("asynq: %v", args) }
func (zerologAdapter) Warn(args ...interface{})  { log.Warn().Msgf("asynq: %v", args) }
func (zerologAdapter) Error(args ...interface{}) { log.Error().Msgf("asynq: %v", args) }
func (zerologAdapter) Fatal(args ...interface{}) { log.Fatal().Msgf("asynq: %v", args) }
