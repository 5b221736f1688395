package config

import (
	"github.com/spf13/viper"
)

// Default size limits: interactive uploads stay small enough for a web
// request, the batch tool accepts full collection exports.
const (
	DefaultInteractiveLimit = 500 * 1024 * 1024
	DefaultBatchLimit       = 2 * 1024 * 1024 * 1024
)

type (
	Config struct {
		HTTP
		Global
		Limits
		Worker
	}

	HTTP struct {
		Port int32
		Host string
	}

	Global struct {
		ShutdownTimeoutInSeconds int
		LogMode                  string
	}

	Limits struct {
		// InteractiveBytes caps uploads through the HTTP endpoint.
		InteractiveBytes int64
		// BatchBytes caps files converted through the batch command.
		BatchBytes int64
	}

	Worker struct {
		// Conversions is the number of conversions allowed in flight at
		// once through the background manager.
		Conversions int
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8190)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("log_mode", "dev")
	v.SetDefault("interactive_size_limit", DefaultInteractiveLimit)
	v.SetDefault("batch_size_limit", DefaultBatchLimit)
	v.SetDefault("worker_conversions", 2)

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
			LogMode:                  v.GetString("LOG_MODE"),
		},
		Limits: Limits{
			InteractiveBytes: v.GetInt64("INTERACTIVE_SIZE_LIMIT"),
			BatchBytes:       v.GetInt64("BATCH_SIZE_LIMIT"),
		},
		Worker: Worker{
			Conversions: v.GetInt("WORKER_CONVERSIONS"),
		},
	}
}
