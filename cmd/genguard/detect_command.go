package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"genguard/internal/classify"
	"genguard/internal/mitigation"
	"genguard/internal/textutil"
	"genguard/internal/triggers"
)

var detectCategories = []classify.Category{
	classify.CategoryRestrictedEntity,
	classify.CategoryRestrictedContent,
	classify.CategoryGenericPolicy,
	classify.CategoryValidation,
	classify.CategoryTimeout,
	classify.CategoryUnknown,
}

type detectReport struct {
	Input                 string                `json:"input"`
	Category              classify.Category     `json:"category"`
	Triggers              []triggers.Trigger    `json:"triggers"`
	InformationalTriggers []triggers.Trigger    `json:"informational_triggers"`
	SuggestedStrategies   []mitigation.Strategy `json:"suggested_strategies"`
}

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var (
		categoryFlag string
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "detect TEXT",
		Short: "Show sensitive references in TEXT and the rewrites a rejection would trigger",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := parseCategory(categoryFlag)
			if err != nil {
				return err
			}
			registry, err := ctx.registry()
			if err != nil {
				return err
			}
			report := buildDetectReport(registry, strings.Join(args, " "), category)
			if jsonOutput {
				return writeJSON(cmd, report)
			}
			printDetectReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().StringVar(&categoryFlag, "category", string(classify.CategoryRestrictedEntity), "Failure category to plan strategies for")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func parseCategory(value string) (classify.Category, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, category := range detectCategories {
		if string(category) == value {
			return category, nil
		}
	}
	names := make([]string, len(detectCategories))
	for i, category := range detectCategories {
		names[i] = string(category)
	}
	return "", fmt.Errorf("unknown category %q (expected one of %s)", value, strings.Join(names, ", "))
}

func buildDetectReport(registry *triggers.Registry, text string, category classify.Category) detectReport {
	found := triggers.NewDetector(registry).Detect(text)
	actionable := triggers.Actionable(found)
	return detectReport{
		Input:                 text,
		Category:              category,
		Triggers:              actionable,
		InformationalTriggers: triggers.Informational(found),
		SuggestedStrategies:   mitigation.NewGenerator(registry).Generate(text, actionable, category),
	}
}

func printDetectReport(out io.Writer, report detectReport) {
	colorize := shouldColorize(out)
	all := append(append([]triggers.Trigger{}, report.Triggers...), report.InformationalTriggers...)
	if len(all) == 0 {
		fmt.Fprintln(out, renderStatusLine("Triggers", statusOK, "none detected", colorize))
	} else {
		for _, trigger := range all {
			label := fmt.Sprintf("%s (%s)", trigger.EntityValue, trigger.EntityType)
			message := trigger.Severity.String() + ": " + trigger.Rationale
			if len(trigger.Qualifiers) > 0 {
				message += " [" + strings.Join(trigger.Qualifiers, ", ") + "]"
			}
			fmt.Fprintln(out, renderStatusLine(label, severityKind(trigger.Severity), message, colorize))
		}
	}

	if len(report.SuggestedStrategies) == 0 {
		fmt.Fprintln(out, renderField("Strategies", "none for "+string(report.Category)))
		return
	}
	writeSection(out, "Strategies", colorize)
	rows := make([][]string, 0, len(report.SuggestedStrategies))
	for _, strategy := range report.SuggestedStrategies {
		rows = append(rows, []string{
			strategy.ID,
			formatConfidence(strategy.Confidence),
			formatConfidence(textutil.Retention(report.Input, strategy.Example)),
			truncate(strategy.Example, 60),
		})
	}
	printTable(out, []column{
		{header: "Strategy"},
		{header: "Confidence", align: alignRight},
		{header: "Retained", align: alignRight},
		{header: "Rewritten input", maxWidth: 60},
	}, rows)
}
