package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Options are provider generation parameters forwarded verbatim.
type Options map[string]any

// JobHandle identifies a submitted generation job.
type JobHandle struct {
	ID          string
	SubmittedAt time.Time
}

// Result is a completed generation.
type Result struct {
	JobID        string        `json:"job_id"`
	Output       string        `json:"output"`
	Cost         float64       `json:"cost"`
	DurationHint time.Duration `json:"duration_hint"`
}

// FailureResponse is the structured rejection returned by the provider.
type FailureResponse struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code,omitempty"`
	JobID      string `json:"job_id,omitempty"`
}

func (f *FailureResponse) Error() string {
	code := strings.TrimSpace(f.Code)
	msg := strings.TrimSpace(f.Message)
	switch {
	case code != "" && msg != "":
		return fmt.Sprintf("generation failed: %s: %s", code, msg)
	case code != "":
		return "generation failed: " + code
	case msg != "":
		return "generation failed: " + msg
	default:
		return "generation failed"
	}
}

// AsFailure converts any error into a raw provider response. Structured
// failures are returned as-is; opaque errors keep only their message.
func AsFailure(err error) FailureResponse {
	if err == nil {
		return FailureResponse{}
	}
	var failure *FailureResponse
	if errors.As(err, &failure) && failure != nil {
		return *failure
	}
	return FailureResponse{Message: strings.TrimSpace(err.Error())}
}

// Client is the generation service collaborator. Its submit/poll/timeout
// protocol is opaque to callers of Generator.
type Client interface {
	Submit(ctx context.Context, input string, opts Options) (JobHandle, error)
	WaitForCompletion(ctx context.Context, job JobHandle) (Result, error)
}

// Generator runs one generation as a single blocking unit.
type Generator func(ctx context.Context, input string, opts Options) (Result, error)

// NewGenerator composes Submit and WaitForCompletion into a Generator.
func NewGenerator(client Client) Generator {
	return func(ctx context.Context, input string, opts Options) (Result, error) {
		if client == nil {
			return Result{}, errors.New("generation: client is nil")
		}
		job, err := client.Submit(ctx, input, opts)
		if err != nil {
			return Result{}, err
		}
		return client.WaitForCompletion(ctx, job)
	}
}
