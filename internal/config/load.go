package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables take
// precedence over values from the config file. Keys are prefixed with
// DETECT_ and nested with underscores, e.g. DETECT_DATABASE_URL,
// DETECT_QUEUE_ADDR. Returns a populated Config or an error if loading
// or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DETECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys with no default are invisible to Unmarshal unless bound explicitly.
	for _, key := range []string{
		"database.url",
		"auth.jwt_secret",
		"storage.access_key",
		"storage.secret_key",
		"queue.password",
		"inference.url",
		"worker.temp_dir",
		"storage.region",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars alone are a valid source.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers defaults for everything that has a sane
// local-development value. Secrets intentionally have no default.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("auth.token_lifetime_minutes", 60)

	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.bucket", "images")
	v.SetDefault("storage.use_ssl", false)

	v.SetDefault("queue.addr", "localhost:6379")
	v.SetDefault("queue.db", 0)
	v.SetDefault("queue.key", "jobs_queue")
	v.SetDefault("queue.poll_timeout", 5*time.Second)

	v.SetDefault("inference.model_name", "yolov8n")
	v.SetDefault("inference.model_version", "8.0")
	v.SetDefault("inference.timeout", 60*time.Second)

	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.process_timeout", 2*time.Minute)
	v.SetDefault("worker.reconcile_interval", time.Minute)
	v.SetDefault("worker.queued_age", 5*time.Minute)
	v.SetDefault("worker.metrics_port", 9091)
}
