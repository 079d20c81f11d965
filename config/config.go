// Package config loads experiment configuration from YAML files,
// .env files and MATERNAL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/zeu5/maternal-rl/logging"
	"github.com/zeu5/maternal-rl/maternal"
	"gopkg.in/yaml.v3"
)

// Policy kinds understood by the train command
const (
	KindRandom    = "random"
	KindThreshold = "threshold"
	KindQLearning = "qlearning"
	KindSoftMax   = "softmax"
)

// Config is the complete configuration of a training or serving session
type Config struct {
	Environment EnvironmentConfig `json:"environment" yaml:"environment"`
	Experiment  ExperimentConfig  `json:"experiment" yaml:"experiment"`
	Policies    []PolicyConfig    `json:"policies" yaml:"policies"`
	Record      RecordConfig      `json:"record" yaml:"record"`
	Server      ServerConfig      `json:"server" yaml:"server"`
	Logging     LoggingConfig     `json:"logging" yaml:"logging"`
}

type EnvironmentConfig struct {
	MaxSteps int `json:"max_steps" yaml:"max_steps"`
	// RenderMode is "", "none", "human" or "rgb_array"
	RenderMode string `json:"render_mode" yaml:"render_mode"`
	// Seed fixes the environment's random source, nil seeds from the clock
	Seed *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// Maternal converts to the environment's own config
func (e EnvironmentConfig) Maternal() (maternal.Config, error) {
	mode, err := maternal.ParseRenderMode(e.RenderMode)
	if err != nil {
		return maternal.Config{}, err
	}
	c := maternal.Config{MaxSteps: e.MaxSteps, RenderMode: mode}
	return c, c.Validate()
}

type ExperimentConfig struct {
	Runs     int `json:"runs" yaml:"runs"`
	Episodes int `json:"episodes" yaml:"episodes"`
	Horizon  int `json:"horizon" yaml:"horizon"`
	// Timeout bounds each episode, 0 disables it
	Timeout                time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	ConsecutiveErrorsAbort int           `json:"consecutive_errors_abort" yaml:"consecutive_errors_abort"`
}

type PolicyConfig struct {
	Name         string  `json:"name" yaml:"name"`
	Kind         string  `json:"kind" yaml:"kind"`
	LearningRate float64 `json:"learning_rate,omitempty" yaml:"learning_rate,omitempty"`
	Discount     float64 `json:"discount,omitempty" yaml:"discount,omitempty"`
	Epsilon      float64 `json:"epsilon,omitempty" yaml:"epsilon,omitempty"`
	Temperature  float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

type RecordConfig struct {
	// Path receives plots, metrics, traces and policies
	Path     string `json:"path" yaml:"path"`
	Traces   bool   `json:"traces" yaml:"traces"`
	Policies bool   `json:"policies" yaml:"policies"`

	RedisAddr   string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	RedisKey    string `json:"redis_key,omitempty" yaml:"redis_key,omitempty"`
	RedisMaxLen int64  `json:"redis_max_len,omitempty" yaml:"redis_max_len,omitempty"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
	// MaxSessions caps concurrently open remote environments, 0 is unlimited
	MaxSessions int `json:"max_sessions" yaml:"max_sessions"`
}

type LoggingConfig struct {
	// Level is "trace", "debug", "info", "warn" or "error"
	Level string `json:"level" yaml:"level"`
}

// Default compares a random baseline, the threshold rule and both learners
func Default() *Config {
	return &Config{
		Environment: EnvironmentConfig{
			MaxSteps:   maternal.DefaultMaxSteps,
			RenderMode: "",
		},
		Experiment: ExperimentConfig{
			Runs:                   1,
			Episodes:               1000,
			Horizon:                maternal.DefaultMaxSteps,
			ConsecutiveErrorsAbort: 10,
		},
		Policies: []PolicyConfig{
			{Name: "random", Kind: KindRandom},
			{Name: "threshold", Kind: KindThreshold},
			{Name: "qlearning", Kind: KindQLearning, LearningRate: 0.1, Discount: 0.99, Epsilon: 0.1},
			{Name: "softmax", Kind: KindSoftMax, LearningRate: 0.1, Discount: 0.99, Temperature: 1},
		},
		Record: RecordConfig{
			Path:     "results",
			Traces:   false,
			Policies: true,
			RedisKey: "maternal:episodes",
		},
		Server: ServerConfig{
			Addr:        ":8080",
			MaxSessions: 64,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file over the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	config := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	ApplyEnv(config)
	return config, nil
}

// LoadEnvFiles loads .env style files into the process environment.
// Variables already set are kept. Missing files are ignored.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides config fields from MATERNAL_* variables
func ApplyEnv(config *Config) {
	if v := os.Getenv("MATERNAL_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("MATERNAL_RECORD_PATH"); v != "" {
		config.Record.Path = v
	}
	if v := os.Getenv("MATERNAL_REDIS_ADDR"); v != "" {
		config.Record.RedisAddr = v
	}
	if v := os.Getenv("MATERNAL_REDIS_KEY"); v != "" {
		config.Record.RedisKey = v
	}
	if v := os.Getenv("MATERNAL_SERVER_ADDR"); v != "" {
		config.Server.Addr = v
	}
	if v := os.Getenv("MATERNAL_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Environment.MaxSteps = n
		}
	}
	if v := os.Getenv("MATERNAL_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Environment.Seed = &n
		}
	}
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if _, err := c.Environment.Maternal(); err != nil {
		return err
	}
	e := c.Experiment
	if e.Runs <= 0 || e.Episodes <= 0 || e.Horizon <= 0 {
		return fmt.Errorf("runs, episodes and horizon must be positive, got %d, %d, %d", e.Runs, e.Episodes, e.Horizon)
	}
	if e.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative, got %v", e.Timeout)
	}
	if len(c.Policies) == 0 {
		return errors.New("at least one policy is required")
	}
	names := make(map[string]bool)
	for _, p := range c.Policies {
		if p.Name == "" {
			return fmt.Errorf("policy of kind %q has no name", p.Kind)
		}
		if names[p.Name] {
			return fmt.Errorf("duplicate policy name: %s", p.Name)
		}
		names[p.Name] = true
		if err := p.Validate(); err != nil {
			return err
		}
	}
	if c.Record.RedisMaxLen < 0 {
		return fmt.Errorf("redis_max_len must be non-negative, got %d", c.Record.RedisMaxLen)
	}
	if c.Server.MaxSessions < 0 {
		return fmt.Errorf("max_sessions must be non-negative, got %d", c.Server.MaxSessions)
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: trace, debug, info, warn, error)", c.Logging.Level)
	}
	return nil
}

func (p PolicyConfig) Validate() error {
	switch p.Kind {
	case KindRandom, KindThreshold:
		return nil
	case KindQLearning:
		if p.Epsilon < 0 || p.Epsilon > 1 {
			return fmt.Errorf("policy %s: epsilon must be between 0 and 1, got %f", p.Name, p.Epsilon)
		}
	case KindSoftMax:
		if p.Temperature <= 0 {
			return fmt.Errorf("policy %s: temperature must be positive, got %f", p.Name, p.Temperature)
		}
	default:
		return fmt.Errorf("policy %s: invalid kind %q (valid: random, threshold, qlearning, softmax)", p.Name, p.Kind)
	}
	if p.LearningRate <= 0 || p.LearningRate > 1 {
		return fmt.Errorf("policy %s: learning_rate must be in (0, 1], got %f", p.Name, p.LearningRate)
	}
	if p.Discount < 0 || p.Discount > 1 {
		return fmt.Errorf("policy %s: discount must be between 0 and 1, got %f", p.Name, p.Discount)
	}
	return nil
}
