package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"genguard/internal/diagnosis"
	"genguard/internal/retry"
	"genguard/internal/stats"
	"genguard/internal/testsupport"
)

func rejectFullName(prompt string) bool {
	return strings.Contains(prompt, "Full Name")
}

func TestGenerateSucceedsAfterMitigation(t *testing.T) {
	env := setupCLITestEnv(t, rejectFullName)

	out, _, err := runCLI(t, []string{"generate", "Full Name plays for Team", "--json", "--option", "duration=5"}, env.configPath)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var result retry.Result
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode result: %v\n%s", err, out)
	}
	if result.Metadata.TotalAttempts != 2 || result.Metadata.SuccessfulStrategy != "strip-qualifier:fullname" {
		t.Fatalf("unexpected metadata %+v", result.Metadata)
	}
	if result.Output != "https://cdn.test/job-2.mp4" {
		t.Fatalf("unexpected output %q", result.Output)
	}
	submitted := env.service.submitted()
	if len(submitted) != 2 || submitted[1] != "Surname" {
		t.Fatalf("unexpected submissions %q", submitted)
	}

	out, _, err = runCLI(t, []string{"stats", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var counters stats.Counters
	if err := json.Unmarshal([]byte(out), &counters); err != nil {
		t.Fatalf("decode stats: %v\n%s", err, out)
	}
	if counters.TotalGenerations != 1 || counters.Successes != 1 || counters.Retries != 1 {
		t.Fatalf("unexpected persisted counters %+v", counters)
	}
	if counters.SuccessByAttempt["2"] != 1 || counters.StrategyUsage["strip-qualifier:fullname"] != 1 {
		t.Fatalf("unexpected breakdowns %+v", counters)
	}

	out, _, err = runCLI(t, []string{"analyses", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("analyses: %v", err)
	}
	var analyses []diagnosis.ErrorAnalysis
	if err := json.Unmarshal([]byte(out), &analyses); err != nil {
		t.Fatalf("decode analyses: %v\n%s", err, out)
	}
	if len(analyses) != 1 || analyses[0].Category != "content_policy.restricted_entity" || analyses[0].AttemptNumber != 1 {
		t.Fatalf("unexpected analyses %+v", analyses)
	}
}

func TestGeneratePrintsSummary(t *testing.T) {
	env := setupCLITestEnv(t, rejectFullName)

	out, _, err := runCLI(t, []string{"generate", "Full", "Name", "plays", "for", "Team"}, env.configPath)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	requireContains(t, out, "succeeded after 2 attempts")
	requireContains(t, out, "strip-qualifier:fullname")
	requireContains(t, out, "Final input:")
	requireContains(t, out, "Surname")
}

func TestGenerateReportsTerminalFailure(t *testing.T) {
	var (
		mu     sync.Mutex
		titles []string
	)
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		mu.Lock()
		titles = append(titles, r.Header.Get("Title"))
		mu.Unlock()
	}))
	defer ntfy.Close()

	env := setupCLITestEnv(t, rejectPlaceholders, testsupport.WithNtfyTopic(ntfy.URL), testsupport.WithMaxAttempts(3))

	out, _, err := runCLI(t, []string{"generate", "Full Name plays for Team"}, env.configPath)
	var terminal *retry.TerminalError
	if !errors.As(err, &terminal) {
		t.Fatalf("expected TerminalError, got %v", err)
	}
	if len(terminal.AttemptHistory) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(terminal.AttemptHistory))
	}
	requireContains(t, out, "generation failed after 3 attempts")
	requireContains(t, out, "full-genericization")

	mu.Lock()
	defer mu.Unlock()
	if len(titles) != 1 || titles[0] != "genguard - Generation Failed" {
		t.Fatalf("unexpected notifications %q", titles)
	}
}

func TestGenerateRejectsMalformedOption(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	_, _, err := runCLI(t, []string{"generate", "a lighthouse", "--option", "novalue"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "expected key=value") {
		t.Fatalf("expected option error, got %v", err)
	}
	if len(env.service.submitted()) != 0 {
		t.Fatal("nothing should be submitted for invalid flags")
	}
}

func TestStatsResetClearsHistory(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	if _, _, err := runCLI(t, []string{"generate", "a lighthouse"}, env.configPath); err != nil {
		t.Fatalf("generate: %v", err)
	}
	out, _, err := runCLI(t, []string{"stats"}, env.configPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	requireContains(t, out, "1 total, 1 succeeded, 0 failed")

	out, _, err = runCLI(t, []string{"stats", "reset"}, env.configPath)
	if err != nil {
		t.Fatalf("stats reset: %v", err)
	}
	requireContains(t, out, "Cleared statistics")

	out, _, err = runCLI(t, []string{"stats", "--historical"}, env.configPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	requireContains(t, out, "none recorded")

	out, _, err = runCLI(t, []string{"analyses"}, env.configPath)
	if err != nil {
		t.Fatalf("analyses: %v", err)
	}
	requireContains(t, out, "No analyses recorded")
}
