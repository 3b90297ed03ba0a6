// Package config defines the application configuration structures and
// loading logic. Configuration is sourced from environment variables
// (DETECT_ prefix) with an optional config.yaml for local development,
// and validated before use so misconfiguration fails fast at startup.
package config
