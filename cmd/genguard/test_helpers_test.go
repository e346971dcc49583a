package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"genguard/internal/config"
	"genguard/internal/testsupport"
)

const placeholderEntities = `
entities:
  - key: fullname
    exact: [Full Name]
    partial: Surname
    qualifiers: [Team]
    role: athlete
    locale: European
    aliases: [the veteran]
`

// fakeMediaService imitates the job API. Prompts matching reject come back
// as content policy failures.
type fakeMediaService struct {
	mu      sync.Mutex
	prompts map[string]string
	order   []string
	reject  func(prompt string) bool
}

func (f *fakeMediaService) submitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

func (f *fakeMediaService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode submit: %v", err)
		}
		f.mu.Lock()
		id := fmt.Sprintf("job-%d", len(f.order)+1)
		f.prompts[id] = body.Prompt
		f.order = append(f.order, body.Prompt)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "status": "queued"})
	})
	mux.HandleFunc("GET /jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		f.mu.Lock()
		prompt, ok := f.prompts[id]
		f.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		if f.reject != nil && f.reject(prompt) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":     id,
				"status": "failed",
				"error": map[string]string{
					"code":    "content_policy_violation",
					"message": "prompt references restricted persons",
				},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":         id,
			"status":     "completed",
			"output_url": "https://cdn.test/" + id + ".mp4",
			"cost":       0.25,
		})
	})
	return mux
}

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	service    *fakeMediaService
}

func rejectPlaceholders(prompt string) bool {
	for _, marker := range []string{"Full Name", "Surname", "athlete"} {
		if strings.Contains(prompt, marker) {
			return true
		}
	}
	return false
}

func setupCLITestEnv(t *testing.T, reject func(string) bool, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	t.Setenv("GENGUARD_API_KEY", "")

	service := &fakeMediaService{prompts: map[string]string{}, reject: reject}
	server := httptest.NewServer(service.handler(t))
	t.Cleanup(server.Close)

	opts = append([]testsupport.ConfigOption{
		testsupport.WithGenerationURL(server.URL),
		testsupport.WithEntities(placeholderEntities),
	}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Logging.Level = "error"
	return &cliTestEnv{
		cfg:        cfg,
		configPath: testsupport.WriteConfig(t, cfg),
		service:    service,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
