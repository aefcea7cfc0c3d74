package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"vendue/api"
)

func ParseArgs() Args {
	// server config
	pflag.String("server-url", "0.0.0.0:8080", "")
	pflag.String("node-id", "", "node name used as consumer name in redis consumer groups")
	pflag.String("store-driver", api.DriverMemory, "memory | redis | postgres")
	pflag.String("log-level", "info", "debug | info | warn | error")

	// db config
	pflag.String("db-user", "", "")
	pflag.String("db-password", "", "")
	pflag.String("db-host", "", "")
	pflag.Int("db-port", 5432, "")
	pflag.String("db-database", "", "")
	pflag.String("db-schema", "", "")

	// redis config
	pflag.String("redis-addr", "", "")
	pflag.String("redis-password", "", "")
	pflag.Int("redis-db", 15, "")
	pflag.String("redis-key-prefix", "vendue:", "")
	pflag.Int64("redis-stream-maxlen", 10000, "approximate max length of notification stream")
	pflag.String("redis-archive-group", "archive", "consumer group writing streams into database")

	// scheduler config
	pflag.Duration("scheduler-interval", time.Second, "")
	pflag.Int("scheduler-batch-size", 100, "")
	pflag.Bool("scheduler-lease", false, "only one node scans at a time, requires redis")

	// notification config
	pflag.Int("notify-workers", 8, "")
	pflag.Int("notify-queue-length", 1024, "")
	pflag.Duration("notify-send-timeout", 5*time.Second, "")

	// bid rate limit config
	pflag.Int("ratelimit-limit", 10, "max bids per client in a window, 0 disables")
	pflag.Duration("ratelimit-window", time.Minute, "")
	pflag.Int("ratelimit-cache-size", 8*1024*1024, "")

	// sse config
	pflag.Duration("sse-heartbeat", 30*time.Second, "")
	pflag.Int("sse-buffer-size", 16, "")

	// bind pflag to viper
	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvPrefix("VENDUE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// initial arguments
	return Args{
		ServerURL: viper.GetString("server-url"),
		LogLevel:  viper.GetString("log-level"),
		ServerConfig: api.ServerConfig{
			ID: viper.GetString("node-id"),
			Store: api.StoreConfig{
				Driver: viper.GetString("store-driver"),
			},
			DB: api.DBConfig{
				User:     viper.GetString("db-user"),
				Password: viper.GetString("db-password"),
				Host:     viper.GetString("db-host"),
				Port:     viper.GetInt("db-port"),
				Database: viper.GetString("db-database"),
				Schema:   viper.GetString("db-schema"),
			},
			Redis: api.RedisConfig{
				Addr:         viper.GetString("redis-addr"),
				Password:     viper.GetString("redis-password"),
				DB:           viper.GetInt("redis-db"),
				KeyPrefix:    viper.GetString("redis-key-prefix"),
				StreamMaxLen: viper.GetInt64("redis-stream-maxlen"),
				ArchiveGroup: viper.GetString("redis-archive-group"),
			},
			Scheduler: api.SchedulerConfig{
				Interval:  viper.GetDuration("scheduler-interval"),
				BatchSize: viper.GetInt("scheduler-batch-size"),
				Lease:     viper.GetBool("scheduler-lease"),
			},
			Notify: api.NotifyConfig{
				Workers:     viper.GetInt("notify-workers"),
				QueueLength: viper.GetInt("notify-queue-length"),
				SendTimeout: viper.GetDuration("notify-send-timeout"),
			},
			RateLimit: api.RateLimitConfig{
				Limit:     viper.GetInt("ratelimit-limit"),
				Window:    viper.GetDuration("ratelimit-window"),
				CacheSize: viper.GetInt("ratelimit-cache-size"),
			},
			SSE: api.SSEConfig{
				Heartbeat:  viper.GetDuration("sse-heartbeat"),
				BufferSize: viper.GetInt("sse-buffer-size"),
			},
		},
	}
}

type Args struct {
	ServerURL    string
	LogLevel     string
	ServerConfig api.ServerConfig
}

func (args Args) Validate() error {
	config := args.ServerConfig
	if args.ServerURL == "" {
		return errors.New("server-url is required")
	}
	switch config.Store.Driver {
	case api.DriverMemory:
	case api.DriverRedis:
		if !config.Redis.Enabled() {
			return errors.New("redis driver requires redis-addr")
		}
	case api.DriverPostgres:
		if !config.DB.Enabled() {
			return errors.New("postgres driver requires db-host and db-database")
		}
	default:
		return fmt.Errorf("unknown store-driver %q", config.Store.Driver)
	}
	if config.Scheduler.Lease && !config.Redis.Enabled() {
		return errors.New("scheduler-lease requires redis-addr")
	}
	if config.Scheduler.Interval <= 0 {
		return errors.New("scheduler-interval must be positive")
	}
	if config.RateLimit.Limit > 0 && config.RateLimit.Window <= 0 {
		return errors.New("ratelimit-window must be positive")
	}
	return nil
}

func (args Args) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(args.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
