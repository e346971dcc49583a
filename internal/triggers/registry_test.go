package triggers_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"genguard/internal/triggers"
)

func TestDefaultRegistryParses(t *testing.T) {
	registry, err := triggers.DefaultRegistry()
	if err != nil {
		t.Fatalf("DefaultRegistry: %v", err)
	}
	if len(registry.Entities) == 0 || len(registry.Brands) == 0 || len(registry.Connectors) == 0 {
		t.Fatalf("default registry incomplete: %d entities, %d brands", len(registry.Entities), len(registry.Brands))
	}
	messi, ok := registry.Entity("messi")
	if !ok {
		t.Fatal("expected messi entity")
	}
	if messi.ExactSeverity != triggers.SeverityCritical || messi.Role != "footballer" {
		t.Fatalf("unexpected messi entry %#v", messi)
	}
}

func TestParseRegistryDefaultsAndQualifierForms(t *testing.T) {
	registry, err := triggers.ParseRegistry([]byte(`
entities:
  - key: sample
    partial: Sample
    qualifiers:
      - Plain
      - term: Mapped
        severity: medium
        descriptor: a group
brands:
  - term: Acme
`))
	if err != nil {
		t.Fatalf("ParseRegistry: %v", err)
	}
	entity, _ := registry.Entity("sample")
	if entity.Role != "person" || entity.Descriptor != "an organization" {
		t.Fatalf("defaults not applied: %#v", entity)
	}
	if len(entity.Qualifiers) != 2 {
		t.Fatalf("expected two qualifiers, got %#v", entity.Qualifiers)
	}
	plain, mapped := entity.Qualifiers[0], entity.Qualifiers[1]
	if plain.Term != "Plain" || plain.Severity != triggers.SeverityHigh || plain.Descriptor != "an organization" {
		t.Fatalf("unexpected plain qualifier %#v", plain)
	}
	if mapped.Severity != triggers.SeverityMedium || mapped.Descriptor != "a group" {
		t.Fatalf("unexpected mapped qualifier %#v", mapped)
	}
	if registry.Brands[0].Severity != triggers.SeverityLow {
		t.Fatalf("brand severity default = %s", registry.Brands[0].Severity)
	}
	if len(registry.Connectors) == 0 {
		t.Fatal("expected default connectors")
	}
}

func TestParseRegistryRejectsInvalidTables(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{name: "missing key", data: "entities:\n  - partial: X\n", want: "key is required"},
		{name: "no identifiers", data: "entities:\n  - key: x\n", want: "exact or partial"},
		{name: "duplicate key", data: "entities:\n  - key: x\n    partial: X\n  - key: x\n    partial: Y\n", want: "duplicate key"},
		{name: "bad severity", data: "entities:\n  - key: x\n    partial: X\n    exact_severity: extreme\n", want: "unknown severity"},
		{name: "empty qualifier", data: "entities:\n  - key: x\n    partial: X\n    qualifiers: [\"\"]\n", want: "qualifier 0"},
		{name: "empty brand", data: "brands:\n  - descriptor: x\n", want: "brand 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := triggers.ParseRegistry([]byte(tt.data))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadRegistryFallsBackToDefault(t *testing.T) {
	registry, err := triggers.LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if _, ok := registry.Entity("haaland"); !ok {
		t.Fatal("expected default registry")
	}
}

func TestLoadRegistryReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities.yaml")
	if err := os.WriteFile(path, []byte(placeholderTable), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	registry, err := triggers.LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if _, ok := registry.Entity("fullname"); !ok || len(registry.Entities) != 1 {
		t.Fatalf("unexpected registry %#v", registry.Entities)
	}
}

func TestLoadRegistryReportsParseErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities.yaml")
	if err := os.WriteFile(path, []byte("entities: [\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := triggers.LoadRegistry(path); err == nil {
		t.Fatal("expected parse error")
	}
}
