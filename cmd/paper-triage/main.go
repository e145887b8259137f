// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-triage CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pdiddy/paper-triage/internal/config"
	"github.com/pdiddy/paper-triage/internal/observability"
	"github.com/pdiddy/paper-triage/internal/secrets"
	"github.com/pdiddy/paper-triage/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// v holds layered configuration for the executing command.
	v = config.New()

	// cfg is the validated configuration, loaded before each command runs.
	cfg types.PipelineConfig

	// logger is built from cfg.Logging.
	logger = zerolog.Nop()
)

// skipConfig marks commands that run without loading configuration.
const skipConfig = "skip-config"

// flagKeys maps CLI flag names to configuration keys. Only the flags of the
// executing command are bound, so commands may share flag names.
var flagKeys = map[string]string{
	"limit":        config.Key("source", "limit"),
	"min-tier":     config.Key("source", "min_tier"),
	"backend":      config.Key("analyzer", "backend"),
	"model":        config.Key("analyzer", "model"),
	"rate-limit":   config.Key("analyzer", "rate_limit"),
	"concurrency":  config.Key("dispatch", "concurrency"),
	"timeout":      config.Key("dispatch", "task_timeout"),
	"max-attempts": config.Key("dispatch", "max_attempts"),
	"output":       config.Key("dataset", "output"),
	"checkpoint":   config.Key("dataset", "checkpoint"),
	"ledger":       config.Key("dataset", "ledger"),
	"update":       config.Key("dataset", "update"),
	"log-level":    config.Key("logging", "level"),
	"log-format":   config.Key("logging", "format"),
	"metrics-addr": "metrics_addr",
}

// rootCmd is the base command for the paper-triage CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-triage",
	Short: "Build a curated dataset of research papers and their code",
	Long: `paper-triage reads paper listings (markdown with arXiv links, or YAML),
sends each paper to a paper analyzer and, when a code repository is found, to
a repository analyzer. Scores are weighted into a composite, each paper is
classified INCLUDE, EXCLUDE or REVIEW, and the results are merged into a
dataset file.

Runs are resumable: completed papers are checkpointed and skipped on the
next run.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipConfig] == "true" {
			return nil
		}
		return loadConfig(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paper-triage.yaml or ~/.config/paper-triage/paper-triage.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", secrets.DefaultDir, "directory of secret files")
	rootCmd.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: console or json")
}

func loadConfig(cmd *cobra.Command) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok && bindErr == nil {
			bindErr = v.BindPFlag(key, f)
		}
	})
	if bindErr != nil {
		return bindErr
	}

	cfgFile, _ := cmd.Flags().GetString("config")
	used, err := config.ReadFile(v, cfgFile)
	if err != nil {
		return err
	}

	// Warnings raised before the configured logger exists go to stderr.
	boot := observability.NewLogger(types.LoggingConfig{Format: "console"})
	secretsDir, _ := cmd.Flags().GetString("secrets-dir")
	sec, err := secrets.Load(secretsDir, boot)
	if err != nil {
		return err
	}

	cfg, err = config.Load(v, sec)
	if err != nil {
		return err
	}
	logger = observability.NewLogger(cfg.Logging)
	if used != "" {
		logger.Debug().Str("file", used).Msg("using config file")
	}
	if keys := sec.Keys(); len(keys) > 0 {
		logger.Debug().Strs("keys", keys).Msg("loaded secrets")
	}
	config.LogSummary(logger, cfg)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
