package retry_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"genguard/internal/generation"
	"genguard/internal/retry"
)

func failingOnMarker(_ int, input string) (generation.Result, error) {
	if strings.Contains(input, "Full Name") || strings.Contains(input, "Surname") || strings.Contains(input, "athlete") {
		return generation.Result{}, policyRejection
	}
	return generation.Result{Output: "out:" + input}, nil
}

func TestBatchContinuesPastFailedJob(t *testing.T) {
	h := newHarness(t, 3, failingOnMarker)
	jobs := []retry.Job{
		{Input: "A quiet harbor at dawn"},
		{Input: "Full Name plays for Team"},
		{Input: "A forest in autumn"},
	}
	items, err := h.orchestrator.GenerateBatchWithRetry(context.Background(), jobs, retry.BatchOptions{})
	if err != nil {
		t.Fatalf("GenerateBatchWithRetry: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if !items[0].Success || items[0].Output != "out:A quiet harbor at dawn" || items[0].Index != 0 {
		t.Fatalf("unexpected first item %+v", items[0])
	}
	failed := items[1]
	if failed.Success || failed.Err == nil || len(failed.AttemptHistory) != 3 {
		t.Fatalf("unexpected failed item %+v", failed)
	}
	var terminal *retry.TerminalError
	if !errors.As(failed.Err, &terminal) {
		t.Fatalf("failed item should carry a TerminalError, got %v", failed.Err)
	}
	if !items[2].Success || items[2].Index != 2 {
		t.Fatalf("unexpected third item %+v", items[2])
	}
	if got := retry.CountSucceeded(items); got != 2 {
		t.Fatalf("CountSucceeded = %d", got)
	}
	session := h.tracker.SessionReport()
	if session.TotalGenerations != 3 || session.Failures != 1 {
		t.Fatalf("unexpected session stats %+v", session.Counters)
	}
}

func TestBatchAbortsOnFirstFailure(t *testing.T) {
	h := newHarness(t, 2, failingOnMarker)
	jobs := []retry.Job{
		{Input: "A quiet harbor at dawn"},
		{Input: "Full Name plays for Team"},
		{Input: "A forest in autumn"},
	}
	items, err := h.orchestrator.GenerateBatchWithRetry(context.Background(), jobs, retry.BatchOptions{AbortOnFailure: true})
	if !errors.Is(err, retry.ErrBatchAborted) {
		t.Fatalf("expected ErrBatchAborted, got %v", err)
	}
	if len(items) != 2 || items[1].Success {
		t.Fatalf("expected partial results ending in the failure, got %+v", items)
	}
	for _, input := range h.generator.inputs {
		if input == "A forest in autumn" {
			t.Fatal("job after the abort was submitted")
		}
	}
}

func TestBatchMergesOptions(t *testing.T) {
	var seen []generation.Options
	gen := func(_ context.Context, _ string, opts generation.Options) (generation.Result, error) {
		seen = append(seen, opts)
		return generation.Result{Output: "ok"}, nil
	}
	h := newHarness(t, 1, nil)
	o, err := retry.New(h.orchestrator.Policy(), gen, h.analyzer())
	if err != nil {
		t.Fatalf("retry.New: %v", err)
	}
	jobs := []retry.Job{
		{Input: "one"},
		{Input: "two", Options: generation.Options{"duration": 10}},
	}
	if _, err := o.GenerateBatchWithRetry(context.Background(), jobs, retry.BatchOptions{Options: generation.Options{"duration": 5, "aspect": "16:9"}}); err != nil {
		t.Fatalf("GenerateBatchWithRetry: %v", err)
	}
	if seen[0]["duration"] != 5 || seen[1]["duration"] != 10 || seen[1]["aspect"] != "16:9" {
		t.Fatalf("unexpected merged options %v", seen)
	}
}
