// Package config loads engine settings from file and environment. Every
// knob has a safe default so the zero configuration is usable.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all tunables for the analysis pipeline.
type Config struct {
	// UnboundedCostFactor stands in for an unbounded repetition bound in
	// cost scores (REGEXGUARD_COST_UNBOUNDED_FACTOR).
	UnboundedCostFactor float64 `mapstructure:"cost_unbounded_factor"`

	Equivalence struct {
		// MaxLength bounds test-string length for the brute-force language
		// comparison (REGEXGUARD_EQUIVALENCE_MAX_LENGTH).
		MaxLength int `mapstructure:"max_length"`
		// MaxStrings caps the corpus size (REGEXGUARD_EQUIVALENCE_MAX_STRINGS).
		MaxStrings int `mapstructure:"max_strings"`
		// MatchTimeout bounds one delegated match evaluation
		// (REGEXGUARD_EQUIVALENCE_MATCH_TIMEOUT).
		MatchTimeout time.Duration `mapstructure:"match_timeout"`
	} `mapstructure:"equivalence"`

	Batch struct {
		// Workers is the parallelism for batch analysis
		// (REGEXGUARD_BATCH_WORKERS).
		Workers int `mapstructure:"workers"`
	} `mapstructure:"batch"`

	Cache struct {
		// Enabled turns on the per-process report cache
		// (REGEXGUARD_CACHE_ENABLED).
		Enabled bool `mapstructure:"enabled"`
		// Size is the LRU capacity in reports (REGEXGUARD_CACHE_SIZE).
		Size int `mapstructure:"size"`
	} `mapstructure:"cache"`

	// MaxPatternLength rejects oversized patterns before parsing
	// (REGEXGUARD_MAX_PATTERN_LENGTH).
	MaxPatternLength int `mapstructure:"max_pattern_length"`
}

// Load reads configuration, optionally from a YAML file, with environment
// variables taking precedence under the REGEXGUARD_ prefix.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("cost_unbounded_factor", 64.0)
	v.SetDefault("equivalence.max_length", 6)
	v.SetDefault("equivalence.max_strings", 4000)
	v.SetDefault("equivalence.match_timeout", 250*time.Millisecond)
	v.SetDefault("batch.workers", 4)
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.size", 1024)
	v.SetDefault("max_pattern_length", 1000)

	v.SetEnvPrefix("REGEXGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration with all defaults applied.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// Defaults are static; a failure here is a programming error.
		panic(err)
	}
	return cfg
}

// Validate rejects configurations that would make analysis unbounded or
// useless.
func (c *Config) Validate() error {
	if c.UnboundedCostFactor <= 0 {
		return fmt.Errorf("config: cost_unbounded_factor must be positive, got %g", c.UnboundedCostFactor)
	}
	if c.Equivalence.MaxLength < 1 {
		return fmt.Errorf("config: equivalence.max_length must be at least 1, got %d", c.Equivalence.MaxLength)
	}
	if c.Equivalence.MaxStrings < 1 {
		return fmt.Errorf("config: equivalence.max_strings must be at least 1, got %d", c.Equivalence.MaxStrings)
	}
	if c.Equivalence.MatchTimeout <= 0 {
		return fmt.Errorf("config: equivalence.match_timeout must be positive, got %v", c.Equivalence.MatchTimeout)
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("config: batch.workers must be at least 1, got %d", c.Batch.Workers)
	}
	if c.Cache.Enabled && c.Cache.Size < 1 {
		return fmt.Errorf("config: cache.size must be at least 1 when the cache is enabled, got %d", c.Cache.Size)
	}
	if c.MaxPatternLength < 1 {
		return fmt.Errorf("config: max_pattern_length must be at least 1, got %d", c.MaxPatternLength)
	}
	return nil
}
