package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"genguard/internal/diagnosis"
	"genguard/internal/retry"
	"genguard/internal/services"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var (
		segment    int
		options    []string
		requestID  string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "generate TEXT",
		Short: "Generate media, diagnosing and retrying rejected inputs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseOptions(options)
			if err != nil {
				return err
			}
			rt, err := ctx.openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			runCtx := cmd.Context()
			if cmd.Flags().Changed("segment") {
				runCtx = services.WithSegment(runCtx, segment)
			}
			result, err := rt.orchestrator.GenerateWithRetry(runCtx, retry.Request{
				Input:     strings.Join(args, " "),
				Options:   opts,
				RequestID: requestID,
			})
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			if err != nil {
				var terminal *retry.TerminalError
				if !errors.As(err, &terminal) {
					return err
				}
				rt.notifyTerminal(runCtx, err)
				if jsonOutput {
					if encodeErr := writeJSON(cmd, terminalView(terminal)); encodeErr != nil {
						return encodeErr
					}
				} else {
					fmt.Fprintln(out, renderStatusLine("Generation", statusError, terminal.Message, colorize))
					printAttemptHistory(out, terminal.AttemptHistory)
				}
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, result)
			}
			meta := result.Metadata
			kind := statusOK
			if meta.TotalAttempts > 1 {
				kind = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine("Generation", kind, "succeeded after "+pluralize(meta.TotalAttempts, "attempt"), colorize))
			fmt.Fprintln(out, renderField("Output", result.Output))
			fmt.Fprintln(out, renderField("Strategy", orDash(meta.SuccessfulStrategy)))
			if meta.FinalInput != meta.OriginalInput {
				fmt.Fprintln(out, renderField("Final input", meta.FinalInput))
				fmt.Fprintln(out, renderField("Retention", formatConfidence(meta.Retention)))
			}
			if result.Generation.Cost > 0 {
				fmt.Fprintln(out, renderField("Cost", strconv.FormatFloat(result.Generation.Cost, 'f', -1, 64)))
			}
			if meta.TotalAttempts > 1 {
				printAttemptHistory(out, meta.AttemptHistory)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&segment, "segment", 0, "Segment index recorded with the request")
	cmd.Flags().StringArrayVarP(&options, "option", "o", nil, "Provider option as key=value (repeatable)")
	cmd.Flags().StringVar(&requestID, "request-id", "", "Correlation id (generated when empty)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

type terminalOutput struct {
	Error          string                   `json:"error"`
	AttemptHistory []retry.AttemptRecord    `json:"attempt_history"`
	LastAnalysis   *diagnosis.ErrorAnalysis `json:"last_analysis,omitempty"`
}

func terminalView(terminal *retry.TerminalError) terminalOutput {
	return terminalOutput{
		Error:          terminal.Error(),
		AttemptHistory: terminal.AttemptHistory,
		LastAnalysis:   terminal.LastAnalysis,
	}
}

func printAttemptHistory(out io.Writer, history []retry.AttemptRecord) {
	rows := make([][]string, 0, len(history))
	for _, record := range history {
		strategy := orDash(record.StrategyApplied)
		if record.Degraded {
			strategy = "unmodified (degraded)"
		}
		rows = append(rows, []string{
			strconv.Itoa(record.AttemptNumber),
			strategy,
			string(record.Outcome),
			truncate(record.InputUsed, 48),
			truncate(orDash(record.Error), 60),
		})
	}
	printTable(out, []column{
		{header: "#", align: alignRight},
		{header: "Strategy"},
		{header: "Outcome"},
		{header: "Input"},
		{header: "Error"},
	}, rows)
}
