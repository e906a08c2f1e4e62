package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig
	Server     ServerConfig
	Storage    StorageConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Scheduler  SchedulerConfig
	Executions ExecutionsConfig
	History    HistoryConfig
	Auth       AuthConfig
	S3         S3Config
	Worker     WorkerConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Debug       bool
	URL         string
	FrontendURL string
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Storage drivers
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type StorageConfig struct {
	Driver     string
	SQLitePath string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	CacheTTL time.Duration
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Trigger modes
const (
	TriggerModeHTTP  = "http"
	TriggerModeQueue = "queue"
)

type SchedulerConfig struct {
	Enabled         bool
	SchedulesFile   string
	TriggerMode     string
	TriggerURL      string
	TriggerTimeout  time.Duration
	TriggerRate     float64
	TriggerBurst    int
	ResyncInterval  time.Duration
	CatchUpMissed   bool
	Timezone        string
	LeaderElection  bool
	LeaderKey       string
	LeaderTTL       time.Duration
	MaxQueueDepth   int64
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

type ExecutionsConfig struct {
	MaxRetained     int
	CleanupInterval time.Duration
	RecordHistory   bool
	PublishEvents   bool
}

type HistoryConfig struct {
	Path          string
	MaxEntries    int
	ArchiveBucket string
	ArchivePrefix string
}

type AuthConfig struct {
	Enabled      bool
	JWTSecret    string
	Issuer       string
	TokenExpiry  time.Duration
	ServiceToken time.Duration
}

type S3Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

type WorkerConfig struct {
	Concurrency int
	APIURL      string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("ZYRA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config

	// App
	cfg.App.Name = viper.GetString("app.name")
	cfg.App.Environment = viper.GetString("app.environment")
	cfg.App.Debug = viper.GetBool("app.debug")
	cfg.App.URL = viper.GetString("app.url")
	cfg.App.FrontendURL = viper.GetString("app.frontend_url")

	// Server
	cfg.Server.Host = viper.GetString("server.host")
	cfg.Server.Port = viper.GetInt("server.port")
	cfg.Server.ReadTimeout = viper.GetDuration("server.read_timeout")
	cfg.Server.WriteTimeout = viper.GetDuration("server.write_timeout")
	cfg.Server.IdleTimeout = viper.GetDuration("server.idle_timeout")

	// Storage
	cfg.Storage.Driver = viper.GetString("storage.driver")
	cfg.Storage.SQLitePath = viper.GetString("storage.sqlite_path")

	// Database
	cfg.Database.Host = viper.GetString("database.host")
	cfg.Database.Port = viper.GetInt("database.port")
	cfg.Database.User = viper.GetString("database.user")
	cfg.Database.Password = viper.GetString("database.password")
	cfg.Database.Name = viper.GetString("database.name")
	cfg.Database.SSLMode = viper.GetString("database.sslmode")
	cfg.Database.MaxOpenConns = viper.GetInt("database.max_open_conns")
	cfg.Database.MaxIdleConns = viper.GetInt("database.max_idle_conns")
	cfg.Database.ConnMaxLifetime = viper.GetDuration("database.conn_max_lifetime")

	// Redis
	cfg.Redis.Enabled = viper.GetBool("redis.enabled")
	cfg.Redis.Host = viper.GetString("redis.host")
	cfg.Redis.Port = viper.GetInt("redis.port")
	cfg.Redis.Password = viper.GetString("redis.password")
	cfg.Redis.DB = viper.GetInt("redis.db")
	cfg.Redis.CacheTTL = viper.GetDuration("redis.cache_ttl")

	// Scheduler
	cfg.Scheduler.Enabled = viper.GetBool("scheduler.enabled")
	cfg.Scheduler.SchedulesFile = viper.GetString("scheduler.schedules_file")
	cfg.Scheduler.TriggerMode = viper.GetString("scheduler.trigger_mode")
	cfg.Scheduler.TriggerURL = viper.GetString("scheduler.trigger_url")
	cfg.Scheduler.TriggerTimeout = viper.GetDuration("scheduler.trigger_timeout")
	cfg.Scheduler.TriggerRate = viper.GetFloat64("scheduler.trigger_rate")
	cfg.Scheduler.TriggerBurst = viper.GetInt("scheduler.trigger_burst")
	cfg.Scheduler.ResyncInterval = viper.GetDuration("scheduler.resync_interval")
	cfg.Scheduler.CatchUpMissed = viper.GetBool("scheduler.catch_up_missed")
	cfg.Scheduler.Timezone = viper.GetString("scheduler.timezone")
	cfg.Scheduler.LeaderElection = viper.GetBool("scheduler.leader_election")
	cfg.Scheduler.LeaderKey = viper.GetString("scheduler.leader_key")
	cfg.Scheduler.LeaderTTL = viper.GetDuration("scheduler.leader_ttl")
	cfg.Scheduler.MaxQueueDepth = viper.GetInt64("scheduler.max_queue_depth")
	cfg.Scheduler.BreakerFailures = viper.GetUint32("scheduler.breaker_failures")
	cfg.Scheduler.BreakerTimeout = viper.GetDuration("scheduler.breaker_timeout")

	// Executions
	cfg.Executions.MaxRetained = viper.GetInt("executions.max_retained")
	cfg.Executions.CleanupInterval = viper.GetDuration("executions.cleanup_interval")
	cfg.Executions.RecordHistory = viper.GetBool("executions.record_history")
	cfg.Executions.PublishEvents = viper.GetBool("executions.publish_events")

	// History
	cfg.History.Path = expandHome(viper.GetString("history.path"))
	cfg.History.MaxEntries = viper.GetInt("history.max_entries")
	cfg.History.ArchiveBucket = viper.GetString("history.archive_bucket")
	cfg.History.ArchivePrefix = viper.GetString("history.archive_prefix")

	// Auth
	cfg.Auth.Enabled = viper.GetBool("auth.enabled")
	cfg.Auth.JWTSecret = viper.GetString("auth.jwt_secret")
	cfg.Auth.Issuer = viper.GetString("auth.issuer")
	cfg.Auth.TokenExpiry = viper.GetDuration("auth.token_expiry")
	cfg.Auth.ServiceToken = viper.GetDuration("auth.service_token_expiry")

	// S3
	cfg.S3.Endpoint = viper.GetString("s3.endpoint")
	cfg.S3.Region = viper.GetString("s3.region")
	cfg.S3.AccessKeyID = viper.GetString("s3.access_key_id")
	cfg.S3.SecretAccessKey = viper.GetString("s3.secret_access_key")
	cfg.S3.UsePathStyle = viper.GetBool("s3.use_path_style")

	// Worker
	cfg.Worker.Concurrency = viper.GetInt("worker.concurrency")
	cfg.Worker.APIURL = viper.GetString("worker.api_url")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects combinations the runtime cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverFile, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Scheduler.TriggerMode {
	case TriggerModeHTTP:
	case TriggerModeQueue:
		if !c.Redis.Enabled {
			return fmt.Errorf("scheduler trigger mode %q requires redis", TriggerModeQueue)
		}
	default:
		return fmt.Errorf("unknown scheduler trigger mode %q", c.Scheduler.TriggerMode)
	}

	if c.Scheduler.LeaderElection && !c.Redis.Enabled {
		return fmt.Errorf("scheduler leader election requires redis")
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth enabled without jwt secret")
	}

	if c.History.MaxEntries <= 0 {
		return fmt.Errorf("history.max_entries must be positive")
	}

	return nil
}

func setDefaults() {
	// App defaults
	viper.SetDefault("app.name", "zyra")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", true)
	viper.SetDefault("app.url", "http://localhost:3000")
	viper.SetDefault("app.frontend_url", "http://localhost:3000")

	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 3000)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("server.idle_timeout", "60s")

	// Storage defaults
	viper.SetDefault("storage.driver", DriverSQLite)
	viper.SetDefault("storage.sqlite_path", "data/zyra.db")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.name", "zyra")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")

	// Redis defaults
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.cache_ttl", "5m")

	// Scheduler defaults
	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("scheduler.schedules_file", filepath.Join("data", "workflow-schedules.json"))
	viper.SetDefault("scheduler.trigger_mode", TriggerModeHTTP)
	viper.SetDefault("scheduler.trigger_url", "http://localhost:3000/api/background-executions")
	viper.SetDefault("scheduler.trigger_timeout", "30s")
	viper.SetDefault("scheduler.trigger_rate", 10.0)
	viper.SetDefault("scheduler.trigger_burst", 20)
	viper.SetDefault("scheduler.resync_interval", "1m")
	viper.SetDefault("scheduler.catch_up_missed", true)
	viper.SetDefault("scheduler.timezone", "Local")
	viper.SetDefault("scheduler.leader_election", false)
	viper.SetDefault("scheduler.leader_key", "zyra:scheduler:leader")
	viper.SetDefault("scheduler.leader_ttl", "30s")
	viper.SetDefault("scheduler.max_queue_depth", 1000)
	viper.SetDefault("scheduler.breaker_failures", 5)
	viper.SetDefault("scheduler.breaker_timeout", "30s")

	// Executions defaults
	viper.SetDefault("executions.max_retained", 50)
	viper.SetDefault("executions.cleanup_interval", "10m")
	viper.SetDefault("executions.record_history", true)
	viper.SetDefault("executions.publish_events", false)

	// History defaults
	viper.SetDefault("history.path", filepath.Join("~", ".claude", "execution-history", "history.json"))
	viper.SetDefault("history.max_entries", 100)
	viper.SetDefault("history.archive_prefix", "execution-history/")

	// Auth defaults
	viper.SetDefault("auth.enabled", false)
	viper.SetDefault("auth.issuer", "zyra")
	viper.SetDefault("auth.token_expiry", "15m")
	viper.SetDefault("auth.service_token_expiry", "1m")

	// S3 defaults
	viper.SetDefault("s3.region", "us-east-1")

	// Worker defaults
	viper.SetDefault("worker.concurrency", 10)
	viper.SetDefault("worker.api_url", "http://localhost:3000/api/background-executions")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
