package main

import (
	"encoding/json"
	"testing"

	"genguard/internal/classify"
	"genguard/internal/triggers"
)

func TestDetectJSON(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	out, _, err := runCLI(t, []string{"detect", "Full Name plays for Team", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	var report detectReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if len(report.Triggers) != 1 || report.Triggers[0].Severity != triggers.SeverityCritical {
		t.Fatalf("unexpected triggers %+v", report.Triggers)
	}
	if len(report.SuggestedStrategies) == 0 || report.SuggestedStrategies[0].ID != "strip-qualifier:fullname" {
		t.Fatalf("unexpected strategies %+v", report.SuggestedStrategies)
	}
	if report.SuggestedStrategies[0].Example != "Surname" {
		t.Fatalf("unexpected example %q", report.SuggestedStrategies[0].Example)
	}
}

func TestDetectTextOutput(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	out, _, err := runCLI(t, []string{"detect", "A quiet harbor"}, env.configPath)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	requireContains(t, out, "none detected")
	requireContains(t, out, "full-genericization")

	out, _, err = runCLI(t, []string{"detect", "A quiet harbor", "--category", "provider_timeout"}, env.configPath)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	requireContains(t, out, "none for provider_timeout")
}

func TestParseCategory(t *testing.T) {
	got, err := parseCategory(" Content_Policy.Generic ")
	if err != nil || got != classify.CategoryGenericPolicy {
		t.Fatalf("parseCategory = %q, %v", got, err)
	}
	if _, err := parseCategory("bogus"); err == nil {
		t.Fatal("expected error for unknown category")
	}
}
