package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"genguard/internal/config"
)

const userAgent = "genguard/0.1.0"

// Notifier is the alert surface used by the CLI.
type Notifier interface {
	NotifyTerminalFailure(ctx context.Context, failure TerminalFailure) error
	NotifyBatchCompleted(ctx context.Context, summary BatchSummary) error
	TestNotification(ctx context.Context) error
}

// TerminalFailure describes a request that exhausted its attempts.
type TerminalFailure struct {
	RequestID string
	Attempts  int
	Category  string
	Err       error
}

// BatchSummary describes a finished batch run.
type BatchSummary struct {
	Total     int
	Succeeded int
	Aborted   bool
	Duration  time.Duration
}

// NewService builds a notifier backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Notifier {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:         topic,
		client:           &http.Client{Timeout: timeout},
		terminalFailures: cfg.Notifications.TerminalFailures,
		batchCompleted:   cfg.Notifications.BatchCompleted,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint         string
	client           *http.Client
	terminalFailures bool
	batchCompleted   bool
}

func (n *ntfyService) NotifyTerminalFailure(ctx context.Context, failure TerminalFailure) error {
	if !n.terminalFailures {
		return nil
	}
	category := strings.TrimSpace(failure.Category)
	if category == "" {
		category = "unknown"
	}
	var builder strings.Builder
	fmt.Fprintf(&builder, "Generation failed after %d attempt(s) [%s]", failure.Attempts, category)
	if id := strings.TrimSpace(failure.RequestID); id != "" {
		fmt.Fprintf(&builder, "\nRequest: %s", id)
	}
	if failure.Err != nil {
		fmt.Fprintf(&builder, "\nLast error: %s", strings.TrimSpace(failure.Err.Error()))
	}
	return n.send(ctx, payload{
		title:    "genguard - Generation Failed",
		message:  builder.String(),
		tags:     []string{"genguard", "generation", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, summary BatchSummary) error {
	if !n.batchCompleted {
		return nil
	}
	duration := summary.Duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	failed := summary.Total - summary.Succeeded

	title := "genguard - Batch Complete"
	message := fmt.Sprintf("Batch complete: %d items generated in %s", summary.Succeeded, duration)
	switch {
	case summary.Aborted:
		title = "genguard - Batch Aborted"
		message = fmt.Sprintf("Batch aborted after a failure: %d succeeded before stopping (%s)", summary.Succeeded, duration)
	case failed > 0:
		title = "genguard - Batch Complete (with errors)"
		message = fmt.Sprintf("Batch complete: %d succeeded, %d failed in %s", summary.Succeeded, failed, duration)
	}
	return n.send(ctx, payload{
		title:   title,
		message: message,
		tags:    []string{"genguard", "batch", "completed"},
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "genguard - Test",
		message:  "Notification system test",
		tags:     []string{"genguard", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyTerminalFailure(context.Context, TerminalFailure) error { return nil }
func (noopService) NotifyBatchCompleted(context.Context, BatchSummary) error     { return nil }
func (noopService) TestNotification(context.Context) error                       { return nil }
