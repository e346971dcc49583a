package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"genguard/internal/historystore"
	"genguard/internal/stats"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var (
		historical bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show persisted generation statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *historystore.Store) error {
				snapshot, err := store.LoadHistoricalStats(cmd.Context())
				if err != nil {
					return fmt.Errorf("load stats: %w", err)
				}
				if jsonOutput {
					if historical {
						return writeJSON(cmd, snapshot)
					}
					return writeJSON(cmd, snapshot.Counters)
				}
				printStats(cmd.OutOrStdout(), snapshot, historical)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&historical, "historical", false, "Include daily, weekly, and monthly rollups")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Clear persisted statistics and the analysis log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *historystore.Store) error {
				if err := store.Reset(cmd.Context()); err != nil {
					return fmt.Errorf("reset stats: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared statistics in %s\n", store.Path())
				return nil
			})
		},
	})
	return cmd
}

func printStats(out io.Writer, snapshot stats.HistoricalStats, historical bool) {
	colorize := shouldColorize(out)
	c := snapshot.Counters
	if c.TotalGenerations == 0 {
		fmt.Fprintln(out, renderStatusLine("Generations", statusInfo, "none recorded", colorize))
		return
	}
	kind := statusOK
	if c.Failures > 0 {
		kind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Generations", kind,
		fmt.Sprintf("%d total, %d succeeded, %d failed", c.TotalGenerations, c.Successes, c.Failures), colorize))
	fmt.Fprintln(out, renderField("Success rate", fmt.Sprintf("%.1f%%", c.SuccessRate*100)))
	fmt.Fprintln(out, renderField("Attempts", strconv.FormatInt(c.TotalAttempts, 10)))
	fmt.Fprintln(out, renderField("Retries", strconv.FormatInt(c.Retries, 10)))
	fmt.Fprintln(out, renderField("Cost", strconv.FormatFloat(c.CumulativeCost, 'f', 2, 64)))
	if !snapshot.FirstRecorded.IsZero() {
		fmt.Fprintln(out, renderField("Since", snapshot.FirstRecorded.Format("2006-01-02 15:04 MST")))
	}

	printCounts(out, "Success by attempt", "Attempt", c.SuccessByAttempt, colorize)
	printCounts(out, "Error categories", "Category", c.ErrorCategories, colorize)
	printCounts(out, "Strategy usage", "Strategy", c.StrategyUsage, colorize)

	if !historical {
		return
	}
	printBuckets(out, "By day", snapshot.ByDay, colorize)
	printBuckets(out, "By week", snapshot.ByWeek, colorize)
	printBuckets(out, "By month", snapshot.ByMonth, colorize)
}

func printCounts(out io.Writer, title, keyHeader string, counts map[string]int64, colorize bool) {
	if len(counts) == 0 {
		return
	}
	writeSection(out, title, colorize)
	rows := make([][]string, 0, len(counts))
	for _, key := range slices.Sorted(maps.Keys(counts)) {
		rows = append(rows, []string{key, strconv.FormatInt(counts[key], 10)})
	}
	printTable(out, []column{{header: keyHeader}, {header: "Count", align: alignRight}}, rows)
}

func printBuckets(out io.Writer, title string, buckets map[string]stats.Bucket, colorize bool) {
	if len(buckets) == 0 {
		return
	}
	writeSection(out, title, colorize)
	rows := make([][]string, 0, len(buckets))
	for _, key := range slices.Sorted(maps.Keys(buckets)) {
		b := buckets[key]
		rows = append(rows, []string{
			key,
			strconv.FormatInt(b.Generations, 10),
			strconv.FormatInt(b.Successes, 10),
			strconv.FormatInt(b.Failures, 10),
			strconv.FormatInt(b.Retries, 10),
			strconv.FormatFloat(b.Cost, 'f', 2, 64),
		})
	}
	printTable(out, []column{
		{header: "Period"},
		{header: "Generations", align: alignRight},
		{header: "Successes", align: alignRight},
		{header: "Failures", align: alignRight},
		{header: "Retries", align: alignRight},
		{header: "Cost", align: alignRight},
	}, rows)
}
