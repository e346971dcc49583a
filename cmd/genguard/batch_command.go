package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"genguard/internal/logging"
	"genguard/internal/notifications"
	"genguard/internal/retry"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var (
		abortOnFailure bool
		metricsAddr    string
		options        []string
		jsonOutput     bool
	)

	cmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Generate every input in FILE sequentially",
		Long: "FILE holds one input per line (blank lines and lines starting with # are skipped)\n" +
			"or a JSON array of strings.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := loadBatchFile(args[0])
			if err != nil {
				return err
			}
			opts, err := parseOptions(options)
			if err != nil {
				return err
			}
			rt, err := ctx.openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if !cmd.Flags().Changed("abort-on-failure") {
				abortOnFailure = rt.orchestrator.Policy().AbortBatchOnFailure
			}
			if !cmd.Flags().Changed("metrics-addr") {
				metricsAddr = rt.cfg.Metrics.ListenAddr
			}
			if addr := strings.TrimSpace(metricsAddr); addr != "" {
				bound, _, err := rt.metrics.Serve(cmd.Context(), addr)
				if err != nil {
					return fmt.Errorf("start metrics listener: %w", err)
				}
				rt.logger.Info("metrics endpoint listening", logging.String("addr", bound))
			}

			started := time.Now()
			items, runErr := rt.orchestrator.GenerateBatchWithRetry(cmd.Context(), jobs, retry.BatchOptions{
				Options:        opts,
				AbortOnFailure: abortOnFailure,
			})
			if runErr != nil && !errors.Is(runErr, retry.ErrBatchAborted) {
				return runErr
			}
			for _, item := range items {
				if !item.Success {
					rt.notifyTerminal(cmd.Context(), item.Err)
				}
			}
			succeeded := retry.CountSucceeded(items)
			summary := notifications.BatchSummary{
				Total:     len(jobs),
				Succeeded: succeeded,
				Aborted:   runErr != nil,
				Duration:  time.Since(started),
			}
			if err := rt.notifier.NotifyBatchCompleted(cmd.Context(), summary); err != nil {
				logging.WarnWithContext(rt.logger, "batch notification failed", "notify_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
					logging.String(logging.FieldImpact, "operator not alerted"),
				)
			}

			if jsonOutput {
				if err := writeJSON(cmd, items); err != nil {
					return err
				}
			} else {
				printBatchItems(cmd.OutOrStdout(), items, len(jobs), runErr != nil)
			}
			if runErr != nil {
				return runErr
			}
			if failed := len(items) - succeeded; failed > 0 {
				return fmt.Errorf("%d of %d jobs failed", failed, len(items))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&abortOnFailure, "abort-on-failure", false, "Stop at the first failed job (default from retry.abort_batch_on_failure)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address while the batch runs")
	cmd.Flags().StringArrayVarP(&options, "option", "o", nil, "Provider option applied to every job as key=value (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// loadBatchFile reads jobs from a JSON array of strings or a line-oriented file.
func loadBatchFile(path string) ([]retry.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	trimmed := strings.TrimSpace(string(data))
	var inputs []string
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &inputs); err != nil {
			return nil, fmt.Errorf("parse batch file: %w", err)
		}
	} else {
		for line := range strings.Lines(trimmed) {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			inputs = append(inputs, line)
		}
	}
	jobs := make([]retry.Job, 0, len(inputs))
	for _, input := range inputs {
		if strings.TrimSpace(input) == "" {
			continue
		}
		jobs = append(jobs, retry.Job{Input: input})
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("batch file %s contains no inputs", path)
	}
	return jobs, nil
}

func printBatchItems(out io.Writer, items []retry.BatchItem, total int, aborted bool) {
	colorize := shouldColorize(out)
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		status := "ok"
		detail := item.Output
		strategy := "-"
		if item.Result != nil {
			strategy = orDash(item.Result.Metadata.SuccessfulStrategy)
		}
		if !item.Success {
			status = "failed"
			detail = item.Error
		}
		rows = append(rows, []string{
			strconv.Itoa(item.Index),
			status,
			strconv.Itoa(len(item.AttemptHistory)),
			strategy,
			truncate(detail, 60),
		})
	}
	printTable(out, []column{
		{header: "Job", align: alignRight},
		{header: "Status"},
		{header: "Attempts", align: alignRight},
		{header: "Strategy"},
		{header: "Output / Error"},
	}, rows)

	succeeded := retry.CountSucceeded(items)
	kind := statusOK
	message := fmt.Sprintf("%d of %d succeeded", succeeded, total)
	switch {
	case aborted:
		kind = statusError
		message += fmt.Sprintf(", aborted after job %d", len(items)-1)
	case succeeded < total:
		kind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Batch", kind, message, colorize))
}
