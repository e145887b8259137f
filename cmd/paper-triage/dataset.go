// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-triage/internal/checkpoint"
	"github.com/pdiddy/paper-triage/internal/dataset"
	"github.com/pdiddy/paper-triage/internal/pipeline"
	"github.com/pdiddy/paper-triage/internal/source"
)

// --- write subcommand ---

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Rebuild the dataset from the checkpoint",
	Long: `Write assembles the dataset from checkpointed results alone and writes
it, without analyzing anything. Use it to retry the write step after a run
could not write its output.`,
	RunE: runWrite,
}

func runWrite(cmd *cobra.Command, args []string) error {
	ds, err := pipeline.Rebuild(cfg.Dataset, nil)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s: %d included, %d excluded, %d review\n",
		cfg.Dataset.Output, ds.Metadata.Included, ds.Metadata.Excluded, ds.Metadata.Review)
	return nil
}

// --- export subcommand ---

var exportCmd = &cobra.Command{
	Use:   "export [dataset]",
	Short: "Render a dataset file as a markdown table",
	Long: `Export reads a dataset (default: dataset.output from the config) and
prints one markdown table row per paper: title, arXiv link, GitHub link,
repository validity, codebase summary, composite score and decision.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	path := cfg.Dataset.Output
	if len(args) == 1 {
		path = args[0]
	}
	ds, err := dataset.Read(path)
	if err != nil {
		return err
	}
	if ds == nil {
		return fmt.Errorf("no dataset at %s", path)
	}

	dest, _ := cmd.Flags().GetString("dest")
	if dest == "" {
		return dataset.WriteMarkdown(ds, os.Stdout)
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	if err := dataset.WriteMarkdown(ds, f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", dest, err)
	}
	fmt.Printf("Exported %d papers to %s\n", ds.Metadata.Total, dest)
	return nil
}

// --- list subcommand ---

var listCmd = &cobra.Command{
	Use:   "list [sources...]",
	Short: "Show the papers a run would analyze",
	Long: `List reads the listing files and applies the checkpoint, tier filter
and limit exactly as run does, then prints the selected papers without
analyzing them.`,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	paths := cfg.Source.Paths
	if len(args) > 0 {
		paths = args
	}
	records, err := source.NewReader(cfg.Source).ReadAll(paths)
	if err != nil {
		return err
	}
	cp, err := checkpoint.Load(cfg.Dataset.Checkpoint)
	if err != nil {
		return err
	}
	todo, stats := source.Filter(records, source.FilterOptions{
		Limit:   cfg.Source.Limit,
		MinTier: cfg.Source.MinTier,
		Skip:    cp,
	})

	for _, r := range todo {
		tier := "-"
		if r.Tier > 0 {
			tier = fmt.Sprint(r.Tier)
		}
		fmt.Printf("%-12s  %-4s  %s\n", r.ID, tier, shorten(r.Title, 60))
	}
	fmt.Printf("\n%d to analyze, %d checkpointed, %d below tier, %d over limit (total: %d)\n",
		len(todo), stats.Skipped, stats.BelowTier, stats.OverLimit, len(records))
	return nil
}

// shorten cuts s to at most n runes, marking the cut with "...".
func shorten(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

func init() {
	exportCmd.Flags().String("dest", "", "markdown file to write (default: stdout)")

	writeCmd.Flags().String("output", "", "dataset file, .json or .yaml")
	writeCmd.Flags().String("checkpoint", "", "checkpoint file")
	writeCmd.Flags().Bool("update", false, "merge into the existing dataset instead of replacing it")

	listCmd.Flags().Int("limit", 0, "maximum number of papers (0 = all)")
	listCmd.Flags().Int("min-tier", 0, "only papers with tier 1..N (0 = no tier filter)")
	listCmd.Flags().String("checkpoint", "", "checkpoint file")

	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(listCmd)
}
