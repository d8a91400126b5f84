package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"tpg/internal/evo"
	"tpg/internal/learner"
)

type Config struct {
	Learner  LearnerConfig `yaml:"learner"`
	Mutation evo.Rates     `yaml:"mutation"`
	Logging  LoggingConfig `yaml:"logging"`
}

type LearnerConfig struct {
	MaxProgramSize int `yaml:"max_program_size" validate:"min=1"`
	// Seed 0 seeds from the clock.
	Seed int64 `yaml:"seed"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
}

func Default() *Config {
	return &Config{
		Learner: LearnerConfig{
			MaxProgramSize: learner.DefaultMaxProgramSize,
		},
		Mutation: evo.Rates{
			Delete: 0.5,
			Add:    0.5,
			Swap:   1.0,
			Mutate: 1.0,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Load reads a YAML file over the defaults, applies TPG_* environment
// overrides and validates the result. An empty path or a missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("TPG_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TPG_SEED: %w", err)
		}
		c.Learner.Seed = seed
	}
	if v := os.Getenv("TPG_MAX_PROGRAM_SIZE"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TPG_MAX_PROGRAM_SIZE: %w", err)
		}
		c.Learner.MaxProgramSize = size
	}
	if v := os.Getenv("TPG_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
