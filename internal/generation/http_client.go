package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout  = 30 * time.Second
	defaultPollInterval = 10 * time.Second
	defaultJobTimeout   = 15 * time.Minute
	maxErrorBody        = 4096
)

// Config captures the runtime settings required to talk to the media service.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
	PollInterval   time.Duration
	JobTimeout     time.Duration
}

// HTTPClient implements Client against a JSON job API:
// POST <base>/jobs submits, GET <base>/jobs/{id} reports status.
type HTTPClient struct {
	cfg        Config
	httpClient *http.Client
	sleeper    func(time.Duration)
	now        func() time.Time
}

// Option customizes the client.
type Option func(*HTTPClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleeper overrides how poll sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *HTTPClient) {
		c.sleeper = sleeper
	}
}

// WithClock overrides the clock used for job timeout accounting.
func WithClock(now func() time.Time) Option {
	return func(c *HTTPClient) {
		if now != nil {
			c.now = now
		}
	}
}

// NewHTTPClient constructs a client using the supplied configuration.
func NewHTTPClient(cfg Config, opts ...Option) *HTTPClient {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &HTTPClient{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			TimeoutSeconds: cfg.TimeoutSeconds,
			PollInterval:   cfg.PollInterval,
			JobTimeout:     cfg.JobTimeout,
		},
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
	if client.cfg.PollInterval <= 0 {
		client.cfg.PollInterval = defaultPollInterval
	}
	if client.cfg.JobTimeout <= 0 {
		client.cfg.JobTimeout = defaultJobTimeout
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type submitRequest struct {
	Prompt  string  `json:"prompt"`
	Options Options `json:"options,omitempty"`
}

type jobResponse struct {
	ID              string       `json:"id"`
	Status          string       `json:"status"`
	OutputURL       string       `json:"output_url"`
	Cost            float64      `json:"cost"`
	DurationSeconds float64      `json:"duration_seconds"`
	Error           *errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error   *errorDetail `json:"error"`
	Code    string       `json:"code"`
	Message string       `json:"message"`
}

// Submit creates a generation job.
func (c *HTTPClient) Submit(ctx context.Context, input string, opts Options) (JobHandle, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return JobHandle{}, &FailureResponse{Code: "invalid_request", Message: "prompt required"}
	}
	if c.cfg.APIKey == "" {
		return JobHandle{}, errors.New("generation submit: api key required")
	}
	encoded, err := json.Marshal(submitRequest{Prompt: input, Options: opts})
	if err != nil {
		return JobHandle{}, fmt.Errorf("generation submit: encode body: %w", err)
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "jobs")
	if err != nil {
		return JobHandle{}, fmt.Errorf("generation submit: build url: %w", err)
	}
	var job jobResponse
	if err := c.do(ctx, http.MethodPost, endpoint, encoded, &job); err != nil {
		return JobHandle{}, err
	}
	if strings.TrimSpace(job.ID) == "" {
		return JobHandle{}, errors.New("generation submit: response missing job id")
	}
	return JobHandle{ID: job.ID, SubmittedAt: c.now()}, nil
}

// WaitForCompletion polls the job until it completes, fails, or exceeds the
// configured job timeout.
func (c *HTTPClient) WaitForCompletion(ctx context.Context, job JobHandle) (Result, error) {
	if strings.TrimSpace(job.ID) == "" {
		return Result{}, errors.New("generation wait: job id required")
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "jobs", job.ID)
	if err != nil {
		return Result{}, fmt.Errorf("generation wait: build url: %w", err)
	}
	started := job.SubmittedAt
	if started.IsZero() {
		started = c.now()
	}
	deadline := started.Add(c.cfg.JobTimeout)

	for {
		var status jobResponse
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &status); err != nil {
			return Result{}, err
		}
		switch strings.ToLower(strings.TrimSpace(status.Status)) {
		case "completed", "succeeded":
			return Result{
				JobID:        job.ID,
				Output:       status.OutputURL,
				Cost:         status.Cost,
				DurationHint: time.Duration(status.DurationSeconds * float64(time.Second)),
			}, nil
		case "failed", "rejected", "error":
			failure := &FailureResponse{JobID: job.ID}
			if status.Error != nil {
				failure.Code = status.Error.Code
				failure.Message = status.Error.Message
			}
			return Result{}, failure
		}
		if !c.now().Before(deadline) {
			return Result{}, &FailureResponse{
				Code:    "timeout",
				Message: fmt.Sprintf("generation job did not complete within %s", c.cfg.JobTimeout),
				JobID:   job.ID,
			}
		}
		if err := c.sleep(ctx, c.cfg.PollInterval); err != nil {
			return Result{}, err
		}
	}
}

func (c *HTTPClient) do(ctx context.Context, method, endpoint string, body []byte, target any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("generation request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("generation request: http error (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("generation request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return statusFailure(resp.StatusCode, payload)
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("generation request: decode response: %w", err)
	}
	return nil
}

func statusFailure(status int, payload []byte) *FailureResponse {
	failure := &FailureResponse{StatusCode: status}
	var envelope errorEnvelope
	if err := json.Unmarshal(payload, &envelope); err == nil {
		if envelope.Error != nil {
			failure.Code = envelope.Error.Code
			failure.Message = envelope.Error.Message
		} else {
			failure.Code = envelope.Code
			failure.Message = envelope.Message
		}
	}
	if strings.TrimSpace(failure.Code) == "" {
		failure.Code = fmt.Sprintf("%d", status)
	}
	if strings.TrimSpace(failure.Message) == "" {
		text := strings.TrimSpace(string(payload))
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		failure.Message = text
	}
	return failure
}

func (c *HTTPClient) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ Client = (*HTTPClient)(nil)
