package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ruslano69/wrangle/pkg/calc"
)

// Config represents the main configuration structure
type Config struct {
	Engine  EngineConfig  `yaml:"engine,omitempty"`
	Cache   CacheConfig   `yaml:"cache,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// EngineConfig tunes the calculation coordinator. Zero values fall back to
// the engine defaults.
type EngineConfig struct {
	Certainty           float64 `yaml:"certainty,omitempty"`              // Confidence level for performance estimates (default: 0.95)
	DesiredExampleRows  int     `yaml:"desired_example_rows,omitempty"`   // Target rows in an example result (default: 500)
	MinExampleInputRows int     `yaml:"min_example_input_rows,omitempty"` // Lower budget clamp (default: 256)
	MaxExampleInputRows int     `yaml:"max_example_input_rows,omitempty"` // Upper budget clamp (default: 25000)
	MaxExampleTimeMs    int     `yaml:"max_example_time_ms,omitempty"`    // Soft time budget in ms (default: 1500)
	MaxIterations       int     `yaml:"max_iterations,omitempty"`         // Retry ceiling per example call (default: 10)
}

// CacheConfig controls the full-result cache
type CacheConfig struct {
	Enabled       bool   `yaml:"enabled"`
	RedisAddr     string `yaml:"redis_addr,omitempty"`     // Redis address; empty means in-memory cache
	TTLMinutes    int    `yaml:"ttl_minutes,omitempty"`    // Entry lifetime (default: no expiry)
	MaxMemoryMB   int    `yaml:"max_memory_mb,omitempty"`  // In-memory cache limit (default: 64)
	CompressLevel int    `yaml:"compress_level,omitempty"` // zstd level 1-22 (default: 3)
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr,omitempty"` // Listen address (default: :9090)
}

// LoadConfig loads configuration from YAML file
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveConfig saves configuration to YAML file
func SaveConfig(filename string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CreateSampleConfig creates a sample configuration with the engine defaults
// spelled out
func CreateSampleConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Certainty:           0.95,
			DesiredExampleRows:  500,
			MinExampleInputRows: 256,
			MaxExampleInputRows: 25000,
			MaxExampleTimeMs:    1500,
			MaxIterations:       10,
		},
		Cache: CacheConfig{
			Enabled:       false,
			TTLMinutes:    30,
			MaxMemoryMB:   64,
			CompressLevel: 3,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
	}
}

// ToCalc maps the engine section to a coordinator config. Zero fields stay
// zero; the engine fills its own defaults on validation.
func (e EngineConfig) ToCalc() calc.Config {
	cfg := calc.Config{
		Certainty:           e.Certainty,
		DesiredExampleRows:  e.DesiredExampleRows,
		MinExampleInputRows: e.MinExampleInputRows,
		MaxExampleInputRows: e.MaxExampleInputRows,
		MaxIterations:       e.MaxIterations,
	}
	if e.MaxExampleTimeMs > 0 {
		cfg.MaxExampleTime = time.Duration(e.MaxExampleTimeMs) * time.Millisecond
	}
	return cfg
}
