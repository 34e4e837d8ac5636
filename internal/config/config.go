// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Framework database holding the tenant registry.
	RegistryURL string

	// Tenant database settings. The registry stores only the host;
	// port and schema conventions are deployment-wide.
	TenantPort     int
	RoutineSchema  string
	RelationSchema string
	ExecTimeout    time.Duration

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel            string
	MaxRequestBodyBytes int64
	CORSAllowedOrigins  []string
	RateLimitEnabled    bool
	RateLimitRPS        float64
	RateLimitBurst      int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv reads configuration without validating it. Callers that apply
// programmatic overrides validate after overriding.
func FromEnv() Config {
	return Config{
		Port:                envInt("DISPATCH_PORT", 8080),
		ReadTimeout:         envDuration("DISPATCH_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        envDuration("DISPATCH_WRITE_TIMEOUT", 30*time.Second),
		RegistryURL:         envStr("REGISTRY_DATABASE_URL", ""),
		TenantPort:          envInt("DISPATCH_TENANT_PORT", 5432),
		RoutineSchema:       envStr("DISPATCH_ROUTINE_SCHEMA", "dbo"),
		RelationSchema:      envStr("DISPATCH_RELATION_SCHEMA", "public"),
		ExecTimeout:         envDuration("DISPATCH_EXEC_TIMEOUT", 30*time.Second),
		OTELEndpoint:        envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:        envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:         envStr("OTEL_SERVICE_NAME", "dispatch"),
		LogLevel:            envStr("DISPATCH_LOG_LEVEL", "info"),
		MaxRequestBodyBytes: int64(envInt("DISPATCH_MAX_REQUEST_BODY_BYTES", 1*1024*1024)), // 1 MB default
		CORSAllowedOrigins:  envList("DISPATCH_CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitEnabled:    envBool("DISPATCH_RATE_LIMIT_ENABLED", false),
		RateLimitRPS:        envFloat("DISPATCH_RATE_LIMIT_RPS", 10),
		RateLimitBurst:      envInt("DISPATCH_RATE_LIMIT_BURST", 30),
	}
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.RegistryURL == "" {
		return fmt.Errorf("config: REGISTRY_DATABASE_URL is required")
	}
	if c.TenantPort <= 0 || c.TenantPort > 65535 {
		return fmt.Errorf("config: DISPATCH_TENANT_PORT must be a valid port")
	}
	if c.RoutineSchema == "" || c.RelationSchema == "" {
		return fmt.Errorf("config: routine and relation schemas must not be empty")
	}
	if c.RoutineSchema == c.RelationSchema {
		return fmt.Errorf("config: routine and relation schemas must be disjoint")
	}
	if c.ExecTimeout <= 0 {
		return fmt.Errorf("config: DISPATCH_EXEC_TIMEOUT must be positive")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: DISPATCH_MAX_REQUEST_BODY_BYTES must be positive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
