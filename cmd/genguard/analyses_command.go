package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"genguard/internal/diagnosis"
	"genguard/internal/historystore"
)

func newAnalysesCommand(ctx *commandContext) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "analyses",
		Short: "List recent error analyses from the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			return ctx.withStore(func(store *historystore.Store) error {
				analyses, err := store.RecentAnalyses(cmd.Context(), limit)
				if err != nil {
					return fmt.Errorf("load analyses: %w", err)
				}
				if jsonOutput {
					if analyses == nil {
						analyses = []diagnosis.ErrorAnalysis{}
					}
					return writeJSON(cmd, analyses)
				}
				printAnalyses(cmd.OutOrStdout(), analyses)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of analyses to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printAnalyses(out io.Writer, analyses []diagnosis.ErrorAnalysis) {
	if len(analyses) == 0 {
		fmt.Fprintln(out, "No analyses recorded")
		return
	}
	rows := make([][]string, 0, len(analyses))
	for _, a := range analyses {
		top := "-"
		if len(a.SuggestedStrategies) > 0 {
			top = a.SuggestedStrategies[0].ID
		}
		rows = append(rows, []string{
			a.Timestamp.Local().Format("2006-01-02 15:04:05"),
			truncate(a.RequestID, 12),
			strconv.Itoa(a.AttemptNumber),
			string(a.Category),
			strconv.Itoa(len(a.Triggers)),
			top,
			formatConfidence(a.OverallConfidence),
		})
	}
	printTable(out, []column{
		{header: "Time"},
		{header: "Request"},
		{header: "Attempt", align: alignRight},
		{header: "Category"},
		{header: "Triggers", align: alignRight},
		{header: "Top strategy"},
		{header: "Confidence", align: alignRight},
	}, rows)
}
