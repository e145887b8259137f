// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads the pipeline configuration from defaults, an
// optional YAML file, PAPER_TRIAGE_* environment variables and bound CLI
// flags, in increasing order of precedence.
//
// Keys use "::" as the path delimiter so that score dimensions such as
// "paper.relevance" stay single map keys.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-triage/internal/scoring"
	"github.com/pdiddy/paper-triage/internal/secrets"
	"github.com/pdiddy/paper-triage/pkg/types"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "PAPER_TRIAGE"

	// KeyDelimiter separates nested keys.
	KeyDelimiter = "::"

	// Name is the config file base name searched for in "." and
	// ~/.config/paper-triage.
	Name = "paper-triage"
)

// Key joins path segments into a viper key.
func Key(parts ...string) string {
	return strings.Join(parts, KeyDelimiter)
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.NewWithOptions(viper.KeyDelimiter(KeyDelimiter))
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(KeyDelimiter, "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(Key("source", "paths"), []string{})
	v.SetDefault(Key("source", "limit"), 0)
	v.SetDefault(Key("source", "min_tier"), 0)
	v.SetDefault(Key("source", "snippet_length"), 2000)

	v.SetDefault(Key("analyzer", "backend"), string(types.BackendClaude))
	v.SetDefault(Key("analyzer", "model"), "claude-sonnet-4-5-20250929")
	v.SetDefault(Key("analyzer", "api_key"), "")
	v.SetDefault(Key("analyzer", "base_url"), "")
	v.SetDefault(Key("analyzer", "max_tokens"), 2048)
	v.SetDefault(Key("analyzer", "max_rate_limit_retries"), 5)
	v.SetDefault(Key("analyzer", "rate_limit"), 0.0)
	v.SetDefault(Key("analyzer", "rate_burst"), 1)
	v.SetDefault(Key("analyzer", "command", "paper"), []string{})
	v.SetDefault(Key("analyzer", "command", "repository"), []string{})

	v.SetDefault(Key("dispatch", "concurrency"), 4)
	v.SetDefault(Key("dispatch", "task_timeout"), 300*time.Second)
	v.SetDefault(Key("dispatch", "max_attempts"), 3)
	v.SetDefault(Key("dispatch", "backoff_base"), 2*time.Second)
	v.SetDefault(Key("dispatch", "checkpoint_every"), 10)

	weights := make(map[string]any, len(scoring.DefaultWeights))
	for k, w := range scoring.DefaultWeights {
		weights[k] = w
	}
	v.SetDefault(Key("scoring", "weights"), weights)
	v.SetDefault(Key("scoring", "include_threshold"), scoring.DefaultIncludeThreshold)
	v.SetDefault(Key("scoring", "exclude_threshold"), scoring.DefaultExcludeThreshold)

	v.SetDefault(Key("dataset", "output"), "dataset.json")
	v.SetDefault(Key("dataset", "checkpoint"), ".paper-triage/checkpoint.jsonl")
	v.SetDefault(Key("dataset", "ledger"), "")
	v.SetDefault(Key("dataset", "update"), false)
	v.SetDefault(Key("dataset", "update_threshold"), 0.5)

	v.SetDefault(Key("logging", "level"), "info")
	v.SetDefault(Key("logging", "format"), "console")
	v.SetDefault(Key("logging", "output"), "stderr")

	v.SetDefault("metrics_addr", "")
}

// ReadFile reads cfgFile, or searches the default locations when it is
// empty. A missing default file is not an error. It returns the file used.
func ReadFile(v *viper.Viper, cfgFile string) (string, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(Name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", Name))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("reading config file: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load unmarshals and validates the configuration held by v. Secrets fill
// the Claude API key when neither the file nor the environment set one;
// ANTHROPIC_API_KEY is honoured before the secrets directory.
func Load(v *viper.Viper, sec secrets.Secrets) (types.PipelineConfig, error) {
	var cfg types.PipelineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Analyzer.APIKey = sec.Default(secrets.AnthropicAPIKey,
		firstNonEmpty(cfg.Analyzer.APIKey, os.Getenv("ANTHROPIC_API_KEY")))

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field rules.
func Validate(cfg types.PipelineConfig) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	switch cfg.Analyzer.Backend {
	case types.BackendCommand:
		if len(cfg.Analyzer.Command.Paper) == 0 || len(cfg.Analyzer.Command.Repository) == 0 {
			return fmt.Errorf("invalid config: command backend requires analyzer.command.paper and analyzer.command.repository")
		}
	}
	return nil
}

// LogSummary writes the effective settings at debug level. The API key is
// reported only as present or absent.
func LogSummary(logger zerolog.Logger, cfg types.PipelineConfig) {
	logger.Debug().
		Strs("sources", cfg.Source.Paths).
		Str("backend", string(cfg.Analyzer.Backend)).
		Str("model", cfg.Analyzer.Model).
		Bool("api_key_set", cfg.Analyzer.APIKey != "").
		Int("concurrency", cfg.Dispatch.Concurrency).
		Dur("task_timeout", cfg.Dispatch.TaskTimeout).
		Int("max_attempts", cfg.Dispatch.MaxAttempts).
		Str("output", cfg.Dataset.Output).
		Str("checkpoint", cfg.Dataset.Checkpoint).
		Bool("update", cfg.Dataset.Update).
		Msg("effective configuration")
}

func firstNonEmpty(vals ...string) string {
	for _, s := range vals {
		if s != "" {
			return s
		}
	}
	return ""
}
