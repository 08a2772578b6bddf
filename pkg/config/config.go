// Package config loads the detection server settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	Jobs   JobConfig
	CORS   CORSConfig
}

type ServerConfig struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxRequestBytes int64
	LogLevel        string
}

type JobConfig struct {
	MaxWorkers      int
	JobTimeout      time.Duration
	CleanupInterval time.Duration
	ResultTTL       time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

// Load reads the configuration from environment variables, falling back to
// the defaults below.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_ADDRESS", ":8080")
	v.SetDefault("SERVER_READ_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("MAX_REQUEST_BYTES", 32<<20) // 32MB
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("JOB_MAX_WORKERS", 4)
	v.SetDefault("JOB_TIMEOUT", 10*time.Minute)
	v.SetDefault("JOB_CLEANUP_INTERVAL", 5*time.Minute)
	v.SetDefault("JOB_RESULT_TTL", time.Hour)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	cfg := &Config{
		Server: ServerConfig{
			Address:         v.GetString("SERVER_ADDRESS"),
			ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
			MaxRequestBytes: v.GetInt64("MAX_REQUEST_BYTES"),
			LogLevel:        v.GetString("LOG_LEVEL"),
		},
		Jobs: JobConfig{
			MaxWorkers:      v.GetInt("JOB_MAX_WORKERS"),
			JobTimeout:      v.GetDuration("JOB_TIMEOUT"),
			CleanupInterval: v.GetDuration("JOB_CLEANUP_INTERVAL"),
			ResultTTL:       v.GetDuration("JOB_RESULT_TTL"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
	}

	if cfg.Jobs.MaxWorkers < 1 {
		return nil, fmt.Errorf("JOB_MAX_WORKERS must be at least 1, got %d", cfg.Jobs.MaxWorkers)
	}
	if cfg.Server.MaxRequestBytes <= 0 {
		return nil, fmt.Errorf("MAX_REQUEST_BYTES must be positive, got %d", cfg.Server.MaxRequestBytes)
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
