package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"      validate:"required"`
	Storage   StorageConfig   `mapstructure:"storage"   validate:"required"`
	Queue     QueueConfig     `mapstructure:"queue"     validate:"required"`
	Inference InferenceConfig `mapstructure:"inference" validate:"required"`
	Worker    WorkerConfig    `mapstructure:"worker"    validate:"required"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains authentication and token settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// StorageConfig contains the artifact store (MinIO / S3-compatible) settings.
type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"   validate:"required"`
	AccessKey string `mapstructure:"access_key" validate:"required"`
	SecretKey string `mapstructure:"secret_key" validate:"required"`
	Bucket    string `mapstructure:"bucket"     validate:"required"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Region    string `mapstructure:"region"`
}

// QueueConfig contains the work queue (Redis) settings.
type QueueConfig struct {
	Addr        string        `mapstructure:"addr"         validate:"required"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"           validate:"gte=0"`
	Key         string        `mapstructure:"key"          validate:"required"`
	PollTimeout time.Duration `mapstructure:"poll_timeout" validate:"required"`
}

// InferenceConfig contains the external detection engine settings.
type InferenceConfig struct {
	URL          string        `mapstructure:"url"           validate:"required,url"`
	ModelName    string        `mapstructure:"model_name"    validate:"required"`
	ModelVersion string        `mapstructure:"model_version" validate:"required"`
	Timeout      time.Duration `mapstructure:"timeout"       validate:"required"`
}

// WorkerConfig contains settings for the background worker process.
type WorkerConfig struct {
	Concurrency       int           `mapstructure:"concurrency"        validate:"required,gt=0"`
	TempDir           string        `mapstructure:"temp_dir"`
	ProcessTimeout    time.Duration `mapstructure:"process_timeout"    validate:"required"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval" validate:"required"`
	QueuedAge         time.Duration `mapstructure:"queued_age"         validate:"required"`
	MetricsPort       int           `mapstructure:"metrics_port"       validate:"required,gt=0,lt=65536"`
}
