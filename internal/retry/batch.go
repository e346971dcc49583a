package retry

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"genguard/internal/generation"
	"genguard/internal/logging"
	"genguard/internal/services"
)

// Job is one item of a batch.
type Job struct {
	Input     string
	Options   generation.Options
	RequestID string
}

// BatchOptions control a batch run. Options are shared defaults that a
// job's own options override key by key.
type BatchOptions struct {
	Options        generation.Options
	AbortOnFailure bool
}

// BatchItem is the outcome of one job.
type BatchItem struct {
	Index          int             `json:"index"`
	Success        bool            `json:"success"`
	Output         string          `json:"output,omitempty"`
	Result         *Result         `json:"result,omitempty"`
	Error          string          `json:"error,omitempty"`
	Err            error           `json:"-"`
	AttemptHistory []AttemptRecord `json:"attempt_history"`
}

// GenerateBatchWithRetry runs one independent orchestrated sequence per job,
// strictly in order. With AbortOnFailure the first failed job stops the batch
// and the partial results are returned with ErrBatchAborted.
func (o *Orchestrator) GenerateBatchWithRetry(ctx context.Context, jobs []Job, opts BatchOptions) ([]BatchItem, error) {
	logger := logging.WithContext(ctx, o.logger)
	items := make([]BatchItem, 0, len(jobs))
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return items, err
		}
		jobCtx := services.WithSegment(ctx, i)
		result, err := o.GenerateWithRetry(jobCtx, Request{
			Input:     job.Input,
			Options:   mergeOptions(opts.Options, job.Options),
			RequestID: job.RequestID,
			Metadata:  map[string]string{"batch_index": fmt.Sprint(i)},
		})
		if err != nil && ctx.Err() != nil {
			return items, ctx.Err()
		}
		item := BatchItem{Index: i}
		if err == nil {
			item.Success = true
			item.Output = result.Output
			item.Result = &result
			item.AttemptHistory = result.Metadata.AttemptHistory
		} else {
			item.Err = err
			item.Error = err.Error()
			var terminal *TerminalError
			if errors.As(err, &terminal) {
				item.AttemptHistory = terminal.AttemptHistory
			}
		}
		items = append(items, item)
		if !item.Success && opts.AbortOnFailure {
			logger.Info("batch aborted after failed job",
				logging.Int(logging.FieldSegment, i),
				logging.Int("remaining", len(jobs)-i-1),
			)
			return items, fmt.Errorf("%w: job %d", ErrBatchAborted, i)
		}
	}
	logger.Info("batch finished",
		logging.Int("jobs", len(jobs)),
		logging.Int("succeeded", CountSucceeded(items)),
	)
	return items, nil
}

// CountSucceeded returns the number of successful items.
func CountSucceeded(items []BatchItem) int {
	n := 0
	for _, item := range items {
		if item.Success {
			n++
		}
	}
	return n
}

func mergeOptions(base, override generation.Options) generation.Options {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(generation.Options, len(base)+len(override))
	maps.Copy(out, base)
	maps.Copy(out, override)
	return out
}
