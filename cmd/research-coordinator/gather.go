// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-coordinator/internal/coordinator"
	"github.com/pdiddy/research-coordinator/internal/search"
	"github.com/pdiddy/research-coordinator/pkg/types"
)

var gatherCmd = &cobra.Command{
	Use:   "gather",
	Short: "Search every data source without generating a report",
	Long: `Gather runs only the data-gathering step: one query for the topic and one
per subtopic against every configured source, concurrently. The merged,
deduplicated, and length-bounded documents are printed as a table or JSON.
No generator key is needed.`,
	RunE: runGather,
}

func init() {
	addQueryFlags(gatherCmd)
	gatherCmd.Flags().StringSlice("sources", nil, "sources to query (default from config: arxiv,semantic_scholar,openalex,wikipedia,web)")
	gatherCmd.Flags().Bool("json", false, "output documents as JSON")

	rootCmd.AddCommand(gatherCmd)
}

func runGather(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper(), loadedSecrets)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("sources") {
		names, _ := cmd.Flags().GetStringSlice("sources")
		cfg.Gather.Sources = cfg.Gather.Sources[:0]
		for _, n := range names {
			cfg.Gather.Sources = append(cfg.Gather.Sources, types.SourceName(n))
		}
	}
	query, _, err := queryFromFlags(cmd, coordinator.RunOptionsFromConfig(cfg.Coordinator))
	if err != nil {
		return err
	}

	g, err := newGatherer(cfg.Gather, logger)
	if err != nil {
		return err
	}
	result := g.Gather(context.Background(), query)
	bounded := search.Bound(result.Documents, query.SearchTerms(), search.LimitsFromConfig(cfg.Gather))

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(bounded.Documents)
	}
	search.FormatTable(bounded.Documents, os.Stdout)
	printGatherStats(os.Stdout, result, bounded)
	return nil
}

func printGatherStats(w io.Writer, r search.GatherResult, b search.Bounded) {
	fmt.Fprintf(w, "%d calls in %s: %d empty, %d failed, %d duplicates removed, %d truncated, %d dropped\n",
		r.Calls, r.Elapsed.Round(time.Millisecond), r.EmptyCalls, len(r.Failures), r.DupsRemoved, b.Truncated, b.Dropped)
	for _, f := range r.FailureSummaries() {
		fmt.Fprintf(w, "  failed: %s\n", f)
	}
}
