package types

import "time"

// SourceConfig holds settings for reading paper listings.
type SourceConfig struct {
	// Paths lists the markdown or YAML listing files to read, in order.
	Paths []string `json:"paths" yaml:"paths" mapstructure:"paths"`

	// Limit caps the number of records dispatched per run (0 = unlimited).
	Limit int `json:"limit" yaml:"limit" mapstructure:"limit" validate:"gte=0"`

	// MinTier keeps only records with 1 <= tier <= MinTier (0 disables the filter).
	MinTier int `json:"min_tier" yaml:"min_tier" mapstructure:"min_tier" validate:"gte=0"`

	// SnippetLength is the maximum number of characters kept per entry (default 2000).
	SnippetLength int `json:"snippet_length" yaml:"snippet_length" mapstructure:"snippet_length" validate:"gte=0"`
}

// AnalyzerBackend identifies how the external analyzers are reached.
type AnalyzerBackend string

const (
	BackendClaude  AnalyzerBackend = "claude"
	BackendCommand AnalyzerBackend = "command"
)

// AIConfig holds settings for analyzers that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the API endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// MaxTokens bounds the response length (default 2048).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens" validate:"gte=0"`

	// MaxRateLimitRetries is the number of HTTP 429 retries per call (default 5).
	MaxRateLimitRetries int `json:"max_rate_limit_retries" yaml:"max_rate_limit_retries" mapstructure:"max_rate_limit_retries" validate:"gte=0"`
}

// CommandConfig holds the external CLI invocations used by the command backend.
// Each command receives the JSON request on stdin and prints a JSON response.
type CommandConfig struct {
	Paper      []string `json:"paper" yaml:"paper" mapstructure:"paper"`
	Repository []string `json:"repository" yaml:"repository" mapstructure:"repository"`
}

// AnalyzerConfig holds settings for the external analyzers.
type AnalyzerConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// Backend selects the analyzer transport: claude or command.
	Backend AnalyzerBackend `json:"backend" yaml:"backend" mapstructure:"backend" validate:"oneof=claude command"`

	Command CommandConfig `json:"command" yaml:"command" mapstructure:"command"`

	// RateLimit is the sustained analyzer calls per second (0 = unlimited).
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit" validate:"gte=0"`

	// RateBurst is the token bucket size for RateLimit.
	RateBurst int `json:"rate_burst" yaml:"rate_burst" mapstructure:"rate_burst" validate:"gte=0"`
}

// DispatchConfig holds settings for the parallel dispatcher.
type DispatchConfig struct {
	// Concurrency is the number of worker goroutines.
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency" validate:"gte=1"`

	// TaskTimeout bounds a single attempt at one record (default 300s).
	TaskTimeout time.Duration `json:"task_timeout" yaml:"task_timeout" mapstructure:"task_timeout" validate:"gt=0"`

	// MaxAttempts is the total number of attempts per record (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts" validate:"gte=1"`

	// BackoffBase is the delay before the second attempt; it doubles per attempt.
	BackoffBase time.Duration `json:"backoff_base" yaml:"backoff_base" mapstructure:"backoff_base" validate:"gte=0"`

	// CheckpointEvery is the number of completed records per checkpoint flush (default 10).
	CheckpointEvery int `json:"checkpoint_every" yaml:"checkpoint_every" mapstructure:"checkpoint_every" validate:"gte=1"`
}

// ScoringConfig holds the weighting and classification policy.
type ScoringConfig struct {
	// Weights maps prefixed dimensions ("paper.relevance", "repo.code_quality")
	// to their weight in the composite score.
	Weights map[string]float64 `json:"weights" yaml:"weights" mapstructure:"weights" validate:"required,min=1,dive,keys,startswith=paper.|startswith=repo.,endkeys,gte=0"`

	// IncludeThreshold: composite >= IncludeThreshold classifies as INCLUDE.
	IncludeThreshold float64 `json:"include_threshold" yaml:"include_threshold" mapstructure:"include_threshold" validate:"gte=0,lte=10,gtfield=ExcludeThreshold"`

	// ExcludeThreshold: composite <= ExcludeThreshold classifies as EXCLUDE.
	ExcludeThreshold float64 `json:"exclude_threshold" yaml:"exclude_threshold" mapstructure:"exclude_threshold" validate:"gte=0,lte=10"`
}

// DatasetConfig holds settings for the dataset, checkpoint and ledger files.
type DatasetConfig struct {
	// Output is the dataset file (.json, .yaml or .yml).
	Output string `json:"output" yaml:"output" mapstructure:"output" validate:"required"`

	// Checkpoint is the append-only progress file.
	Checkpoint string `json:"checkpoint" yaml:"checkpoint" mapstructure:"checkpoint" validate:"required"`

	// Ledger is the SQLite run ledger (empty disables it).
	Ledger string `json:"ledger" yaml:"ledger" mapstructure:"ledger"`

	// Update merges into an existing dataset instead of replacing it.
	Update bool `json:"update" yaml:"update" mapstructure:"update"`

	// UpdateThreshold is the minimum composite delta that replaces an existing entry.
	UpdateThreshold float64 `json:"update_threshold" yaml:"update_threshold" mapstructure:"update_threshold" validate:"gte=0"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum level (trace, debug, info, warn, error).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is json or console.
	Format string `json:"format" yaml:"format" mapstructure:"format" validate:"omitempty,oneof=json console pretty"`

	// Output is stdout or stderr.
	Output string `json:"output" yaml:"output" mapstructure:"output" validate:"omitempty,oneof=stdout stderr"`
}

// PipelineConfig groups all stage configurations for a run.
type PipelineConfig struct {
	Source   SourceConfig   `json:"source" yaml:"source" mapstructure:"source"`
	Analyzer AnalyzerConfig `json:"analyzer" yaml:"analyzer" mapstructure:"analyzer"`
	Dispatch DispatchConfig `json:"dispatch" yaml:"dispatch" mapstructure:"dispatch"`
	Scoring  ScoringConfig  `json:"scoring" yaml:"scoring" mapstructure:"scoring"`
	Dataset  DatasetConfig  `json:"dataset" yaml:"dataset" mapstructure:"dataset"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging" mapstructure:"logging"`

	// MetricsAddr serves Prometheus metrics during a run when set (e.g. ":9091").
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr" mapstructure:"metrics_addr"`
}
