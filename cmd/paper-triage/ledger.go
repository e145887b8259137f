// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-triage/internal/ledger"
	"github.com/pdiddy/paper-triage/pkg/types"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Query the run ledger",
	Long: `Ledger reads the SQLite run ledger written by run --ledger. Every run and
every paper outcome (decision or failure) is recorded there.`,
}

// --- search subcommand ---

var ledgerSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search recorded outcomes by text, decision or failure",
	RunE:  runLedgerSearch,
}

func runLedgerSearch(cmd *cobra.Command, args []string) error {
	store, err := openLedger()
	if err != nil {
		return err
	}
	defer store.Close()

	decision, _ := cmd.Flags().GetString("decision")
	failed, _ := cmd.Flags().GetBool("failed")
	paperID, _ := cmd.Flags().GetString("paper")
	maxResults, _ := cmd.Flags().GetInt("max-results")

	opts := ledger.QueryOptions{
		Query:      strings.Join(args, " "),
		Decision:   types.Decision(strings.ToUpper(decision)),
		FailedOnly: failed,
		PaperID:    paperID,
		MaxResults: maxResults,
	}
	if opts.IsEmpty() {
		return fmt.Errorf("query or filter required: provide a search query, --decision, --failed, or --paper")
	}
	if opts.Decision != "" && !opts.Decision.Valid() {
		return fmt.Errorf("unknown decision %q: use include, exclude or review", decision)
	}

	entries, err := store.Search(cmd.Context(), opts)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-12s  %-40s  %-8s  %-9s  %s\n", "Paper", "Title", "Decision", "Composite", "Run")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))
	for _, e := range entries {
		title := shorten(e.Title, 40)
		decision := string(e.Decision)
		if e.Failed {
			decision = "FAILED"
		}
		fmt.Fprintf(os.Stdout, "%-12s  %-40s  %-8s  %9.2f  %s\n", e.PaperID, title, decision, e.Composite, e.RunID)
		if e.Failed {
			fmt.Fprintf(os.Stdout, "              %s: %s\n", e.FailureKind, e.Error)
		}
	}
	fmt.Fprintf(os.Stdout, "\n%d results\n", len(entries))
	return nil
}

// --- runs subcommand ---

var ledgerRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs, newest first",
	RunE:  runLedgerRuns,
}

func runLedgerRuns(cmd *cobra.Command, args []string) error {
	store, err := openLedger()
	if err != nil {
		return err
	}
	defer store.Close()

	maxResults, _ := cmd.Flags().GetInt("max-results")
	runs, err := store.Runs(cmd.Context(), maxResults)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}
	fmt.Fprintf(os.Stdout, "%-36s  %-20s  %9s  %6s  %7s\n", "Run", "Started", "Succeeded", "Failed", "Skipped")
	for _, r := range runs {
		fmt.Fprintf(os.Stdout, "%-36s  %-20s  %9d  %6d  %7d\n", r.ID, r.StartedAt, r.Succeeded, r.Failed, r.Skipped)
	}
	return nil
}

// --- shared helpers ---

func openLedger() (*ledger.Store, error) {
	if cfg.Dataset.Ledger == "" {
		return nil, fmt.Errorf("no ledger configured: pass --ledger or set dataset.ledger")
	}
	if _, err := os.Stat(cfg.Dataset.Ledger); err != nil {
		return nil, fmt.Errorf("ledger %s: %w", cfg.Dataset.Ledger, err)
	}
	return ledger.Open(cfg.Dataset.Ledger)
}

func init() {
	ledgerCmd.PersistentFlags().String("ledger", "", "SQLite run ledger")

	ledgerSearchCmd.Flags().String("decision", "", "filter by decision: include, exclude or review")
	ledgerSearchCmd.Flags().Bool("failed", false, "only failed outcomes")
	ledgerSearchCmd.Flags().String("paper", "", "filter by paper identifier")
	ledgerSearchCmd.Flags().Int("max-results", 0, "maximum results (default 20)")
	ledgerSearchCmd.Flags().Bool("json", false, "output results as JSON")

	ledgerRunsCmd.Flags().Int("max-results", 0, "maximum runs (default 20)")

	ledgerCmd.AddCommand(ledgerSearchCmd)
	ledgerCmd.AddCommand(ledgerRunsCmd)
	rootCmd.AddCommand(ledgerCmd)
}
