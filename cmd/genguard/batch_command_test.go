package main

import (
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"genguard/internal/retry"
	"genguard/internal/testsupport"
)

func TestLoadBatchFile(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    []string
		wantErr bool
	}{
		{
			name:    "lines with comments",
			content: "# header\nA quiet harbor\n\n  A forest in autumn  \n",
			want:    []string{"A quiet harbor", "A forest in autumn"},
		},
		{
			name:    "json array",
			content: `["one", " ", "two"]`,
			want:    []string{"one", "two"},
		},
		{name: "empty", content: "\n# nothing\n", wantErr: true},
		{name: "broken json", content: `["one",`, wantErr: true},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".txt")
			testsupport.WriteText(t, path, tt.content)
			jobs, err := loadBatchFile(path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("case %d: expected error", i)
				}
				return
			}
			if err != nil {
				t.Fatalf("loadBatchFile: %v", err)
			}
			got := make([]string, len(jobs))
			for j, job := range jobs {
				got[j] = job.Input
			}
			if !slices.Equal(got, tt.want) {
				t.Fatalf("inputs = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBatchContinuesPastFailure(t *testing.T) {
	env := setupCLITestEnv(t, rejectPlaceholders)
	path := filepath.Join(testsupport.BaseDir(env.cfg), "batch.txt")
	testsupport.WriteLines(t, path, "A quiet harbor", "Full Name plays for Team", "A forest in autumn")

	out, _, err := runCLI(t, []string{"batch", path}, env.configPath)
	if err == nil || err.Error() != "1 of 3 jobs failed" {
		t.Fatalf("expected partial failure error, got %v", err)
	}
	requireContains(t, out, "2 of 3 succeeded")
	if !slices.Contains(env.service.submitted(), "A forest in autumn") {
		t.Fatal("job after the failure should still run")
	}
}

func TestBatchAbortOnFailure(t *testing.T) {
	env := setupCLITestEnv(t, rejectPlaceholders)
	path := filepath.Join(testsupport.BaseDir(env.cfg), "batch.json")
	testsupport.WriteText(t, path, `["Full Name plays for Team", "A forest in autumn"]`)

	out, _, err := runCLI(t, []string{"batch", path, "--abort-on-failure"}, env.configPath)
	if !errors.Is(err, retry.ErrBatchAborted) {
		t.Fatalf("expected ErrBatchAborted, got %v", err)
	}
	requireContains(t, out, "aborted after job 0")
	if slices.Contains(env.service.submitted(), "A forest in autumn") {
		t.Fatal("job after the abort was submitted")
	}
}
