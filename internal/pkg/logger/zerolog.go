package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init replaces the global logger. Development gets a console writer; every
// other environment logs JSON lines tagged with the service name.
func Init(service, environment string, debug bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.DurationFieldUnit = time.Millisecond

	var output io.Writer = os.Stdout
	if environment == "development" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	if lvl, err := zerolog.ParseLevel(os.Getenv("ZYRA_LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		level = lvl
	}

	log.Logger = zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Caller().
		Logger()
}

func with(key, value string) zerolog.Logger {
	return log.With().Str(key, value).Logger()
}

func WithRequestID(requestID string) zerolog.Logger { return with("request_id", requestID) }

func WithScheduleID(scheduleID string) zerolog.Logger { return with("schedule_id", scheduleID) }

func WithWorkflowID(workflowID string) zerolog.Logger { return with("workflow_id", workflowID) }

func WithExecutionID(executionID string) zerolog.Logger { return with("execution_id", executionID) }
