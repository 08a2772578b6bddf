package bkn

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config manages engine configuration using Viper
type Config struct {
	v *viper.Viper
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	v := viper.New()

	// Algorithm parameters
	v.SetDefault("algorithm.num_communities", 2)
	v.SetDefault("algorithm.num_trials", 5)
	v.SetDefault("algorithm.epsilon", 1.0)
	v.SetDefault("algorithm.max_iterations", 1000)
	v.SetDefault("algorithm.trial_timeout", time.Duration(0))
	v.SetDefault("algorithm.random_seed", int64(-1))
	v.SetDefault("algorithm.discard_non_converged", false)

	// Performance parameters
	v.SetDefault("performance.parallel", true)
	v.SetDefault("performance.num_workers", runtime.NumCPU())

	// Logging parameters
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.verbose", false)
	v.SetDefault("logging.enable_progress", true)

	return &Config{v: v}
}

// LoadFromFile loads configuration from file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

// Getters for algorithm parameters
func (c *Config) NumCommunities() int { return c.v.GetInt("algorithm.num_communities") }
func (c *Config) NumTrials() int { return c.v.GetInt("algorithm.num_trials") }
func (c *Config) Epsilon() float64 { return c.v.GetFloat64("algorithm.epsilon") }
func (c *Config) MaxIterations() int { return c.v.GetInt("algorithm.max_iterations") }
func (c *Config) TrialTimeout() time.Duration { return c.v.GetDuration("algorithm.trial_timeout") }
func (c *Config) RandomSeed() int64 { return c.v.GetInt64("algorithm.random_seed") }
func (c *Config) DiscardNonConverged() bool { return c.v.GetBool("algorithm.discard_non_converged") }

func (c *Config) Parallel() bool { return c.v.GetBool("performance.parallel") }
func (c *Config) NumWorkers() int { return c.v.GetInt("performance.num_workers") }

func (c *Config) LogLevel() string { return c.v.GetString("logging.level") }
func (c *Config) Verbose() bool { return c.v.GetBool("logging.verbose") }
func (c *Config) EnableProgress() bool { return c.v.GetBool("logging.enable_progress") }

// Set allows dynamic configuration changes
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if k := c.NumCommunities(); k < 1 {
		return fmt.Errorf("%w: num_communities must be >= 1, got %d", ErrInvalidConfig, k)
	}
	if t := c.NumTrials(); t < 1 {
		return fmt.Errorf("%w: num_trials must be >= 1, got %d", ErrInvalidConfig, t)
	}
	if eps := c.Epsilon(); !(eps > 0) {
		return fmt.Errorf("%w: epsilon must be positive, got %v", ErrInvalidConfig, eps)
	}
	if it := c.MaxIterations(); it < 1 {
		return fmt.Errorf("%w: max_iterations must be >= 1, got %d", ErrInvalidConfig, it)
	}
	if c.TrialTimeout() < 0 {
		return fmt.Errorf("%w: trial_timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

// CreateLogger creates a zerolog logger based on config
func (c *Config) CreateLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Str("service", "bkn").Logger()
}
