package scheduler

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zyra-ai/zyra/internal/pkg/config"
)

type Config struct {
	// Timers
	Location      *time.Location
	CatchUpMissed bool

	// Resync
	ResyncInterval time.Duration

	// Leader Election
	AcquireInterval time.Duration

	// Shutdown
	ShutdownTimeout time.Duration

	// Now overrides the clock; tests only.
	Now func() time.Time
}

func DefaultConfig() *Config {
	return &Config{
		Location:        time.Local,
		CatchUpMissed:   true,
		ResyncInterval:  time.Minute,
		AcquireInterval: 5 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// ConfigFrom maps the application config onto the scheduler's.
func ConfigFrom(cfg *config.SchedulerConfig) *Config {
	c := DefaultConfig()
	c.CatchUpMissed = cfg.CatchUpMissed
	c.ResyncInterval = cfg.ResyncInterval

	if cfg.Timezone != "" && cfg.Timezone != "Local" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Warn().Str("timezone", cfg.Timezone).Msg("Invalid scheduler timezone, using local time")
		} else {
			c.Location = loc
		}
	}
	return c
}

// applyDefaults fills every unset field.
func (c *Config) applyDefaults() {
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.ResyncInterval <= 0 {
		c.ResyncInterval = time.Minute
	}
	if c.AcquireInterval <= 0 {
		c.AcquireInterval = 5 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.Now == nil {
		loc := c.Location
		c.Now = func() time.Time { return time.Now().In(loc) }
	}
}
