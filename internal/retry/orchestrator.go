package retry

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"genguard/internal/diagnosis"
	"genguard/internal/generation"
	"genguard/internal/logging"
	"genguard/internal/metrics"
	"genguard/internal/services"
	"genguard/internal/stats"
	"genguard/internal/textutil"
)

// Outcome is the result of one attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// AttemptRecord is one entry in a request's attempt history.
type AttemptRecord struct {
	AttemptNumber int `json:"attempt_number"`
	// StrategyApplied produced InputUsed; empty for the original input or an
	// unmodified resubmission.
	StrategyApplied string    `json:"strategy_applied,omitempty"`
	InputUsed       string    `json:"input_used"`
	Timestamp       time.Time `json:"timestamp"`
	Outcome         Outcome   `json:"outcome"`
	AnalysisRef     string    `json:"analysis_ref,omitempty"`
	Error           string    `json:"error,omitempty"`
	Degraded        bool      `json:"degraded,omitempty"`
}

// Request is one orchestrated generation.
type Request struct {
	Input     string
	Options   generation.Options
	RequestID string
	// Metadata is free-form caller context logged with the request.
	Metadata map[string]string
}

// Metadata describes how a successful result was reached.
type Metadata struct {
	TotalAttempts      int             `json:"total_attempts"`
	SuccessfulStrategy string          `json:"successful_strategy,omitempty"`
	AttemptHistory     []AttemptRecord `json:"attempt_history"`
	OriginalInput      string          `json:"original_input"`
	FinalInput         string          `json:"final_input"`
	// Retention is the vocabulary overlap between FinalInput and OriginalInput.
	Retention float64 `json:"retention"`
}

// Result is a successful orchestrated generation.
type Result struct {
	Output     string            `json:"output"`
	Generation generation.Result `json:"generation"`
	Metadata   Metadata          `json:"retry_metadata"`
}

// Analyzer diagnoses a failed attempt.
type Analyzer interface {
	Analyze(ctx context.Context, in diagnosis.Input) diagnosis.ErrorAnalysis
}

// Tracker receives lifecycle events. *stats.Tracker implements it.
type Tracker interface {
	RecordStart(info stats.StartInfo) string
	RecordRetry(id string, retryNumber int, info stats.RetryInfo) error
	RecordSuccess(ctx context.Context, id string, info stats.SuccessInfo) error
	RecordFailure(ctx context.Context, id string, info stats.FailureInfo) error
	Abandon(id string)
}

// AnalysisSink is the append-only audit log.
type AnalysisSink interface {
	AppendAnalysis(ctx context.Context, analysis diagnosis.ErrorAnalysis) error
}

// Orchestrator drives the diagnose, mitigate, and retry loop.
type Orchestrator struct {
	policy   Policy
	generate generation.Generator
	analyzer Analyzer
	tracker  Tracker
	sink     AnalysisSink
	metrics  *metrics.Metrics
	logger   *slog.Logger
	sleep    Sleeper
	now      func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithTracker sets the stats tracker.
func WithTracker(tracker Tracker) Option {
	return func(o *Orchestrator) { o.tracker = tracker }
}

// WithAnalysisSink sets the audit log sink.
func WithAnalysisSink(sink AnalysisSink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger sets the orchestrator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSleeper overrides how backoff waits are performed (useful for tests).
func WithSleeper(sleep Sleeper) Option {
	return func(o *Orchestrator) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// WithClock overrides the attempt timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New constructs an orchestrator.
func New(policy Policy, generate generation.Generator, analyzer Analyzer, opts ...Option) (*Orchestrator, error) {
	if generate == nil {
		return nil, ErrNoGenerator
	}
	if analyzer == nil {
		return nil, ErrNoAnalyzer
	}
	o := &Orchestrator{
		policy:   policy.normalized(),
		generate: generate,
		analyzer: analyzer,
		tracker:  stats.NewTracker(nil),
		logger:   logging.NewNop(),
		sleep:    sleepContext,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.tracker == nil {
		o.tracker = stats.NewTracker(nil)
	}
	o.logger = logging.NewComponentLogger(o.logger, "retry")
	return o, nil
}

// Policy returns the effective policy.
func (o *Orchestrator) Policy() Policy { return o.policy }

// GenerateWithRetry runs one request until success or the attempt budget is
// exhausted. Provider failures only escape as *TerminalError. Cancelling ctx
// returns the context error and leaves stats untouched.
func (o *Orchestrator) GenerateWithRetry(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Input) == "" {
		return Result{}, ErrEmptyInput
	}
	requestID := strings.TrimSpace(req.RequestID)
	if requestID == "" {
		if existing, ok := services.RequestIDFromContext(ctx); ok {
			requestID = existing
		} else {
			requestID = uuid.NewString()
		}
	}
	ctx = services.WithRequestID(ctx, requestID)
	logger := logging.WithContext(ctx, o.logger)
	segment, _ := services.SegmentFromContext(ctx)

	attemptID := o.tracker.RecordStart(stats.StartInfo{RequestID: requestID, Segment: segment})
	logger.Debug("orchestrated generation started",
		logging.Int("max_attempts", o.policy.MaxAttempts),
		logging.Any("metadata", maps.Clone(req.Metadata)),
	)

	var (
		state    = StateIdle
		input    = req.Input
		applied  string
		degraded bool
		history  = make([]AttemptRecord, 0, o.policy.MaxAttempts)
		used     = make(map[string]struct{})
	)
	for attempt := 1; ; attempt++ {
		state = nextAfterStart(state)
		if err := ctx.Err(); err != nil {
			return o.abandon(logger, attemptID, err)
		}
		record := AttemptRecord{
			AttemptNumber:   attempt,
			StrategyApplied: applied,
			InputUsed:       input,
			Timestamp:       o.now().UTC(),
			Degraded:        degraded,
		}
		attemptLogger := logger.With(logging.Attempt(attempt))

		generated, genErr := o.generate(ctx, input, req.Options)
		if genErr == nil {
			state = nextAfterSuccess()
			record.Outcome = OutcomeSuccess
			history = append(history, record)
			o.metrics.ObserveAttempt(true, "")
			o.metrics.ObserveTerminal(true, attempt)
			if err := o.tracker.RecordSuccess(ctx, attemptID, stats.SuccessInfo{Attempts: attempt, Strategy: applied, Cost: generated.Cost}); err != nil {
				attemptLogger.Debug("stats success not recorded", logging.Error(err))
			}
			attemptLogger.Info("generation succeeded",
				logging.Transition(string(state)),
				logging.Strategy(applied),
				logging.Int("total_attempts", attempt),
			)
			return Result{
				Output:     generated.Output,
				Generation: generated,
				Metadata: Metadata{
					TotalAttempts:      attempt,
					SuccessfulStrategy: applied,
					AttemptHistory:     history,
					OriginalInput:      req.Input,
					FinalInput:         input,
					Retention:          textutil.Retention(req.Input, input),
				},
			}, nil
		}
		if err := ctx.Err(); err != nil {
			return o.abandon(logger, attemptID, err)
		}

		analysis := o.analyzer.Analyze(ctx, diagnosis.Input{
			RequestID: requestID,
			Attempt:   attempt,
			Text:      input,
			Err:       genErr,
		})
		o.appendAnalysis(ctx, attemptLogger, analysis)
		record.Outcome = OutcomeFailure
		record.AnalysisRef = analysis.ID
		record.Error = genErr.Error()
		history = append(history, record)
		category := string(analysis.Category)
		o.metrics.ObserveAttempt(false, category)

		state = nextAfterFailure(attempt, o.policy.MaxAttempts)
		if state == StateFailedTerminal {
			o.metrics.ObserveTerminal(false, attempt)
			if err := o.tracker.RecordFailure(ctx, attemptID, stats.FailureInfo{Attempts: attempt, Category: category}); err != nil {
				attemptLogger.Debug("stats failure not recorded", logging.Error(err))
			}
			logging.ErrorWithContext(attemptLogger, "generation failed after exhausting attempts", "generation_exhausted",
				logging.Category(category),
				logging.Int("total_attempts", attempt),
				logging.Error(genErr),
				logging.String(logging.FieldErrorHint, "review the attempt history and rephrase the input manually"),
			)
			last := analysis
			return Result{}, &TerminalError{
				Message:        "generation failed after " + pluralAttempts(attempt),
				AttemptHistory: history,
				LastAnalysis:   &last,
				Err:            genErr,
			}
		}

		next := input
		applied, degraded = "", false
		if strategy, ok := selectStrategy(analysis, used); ok {
			used[strategy.ID] = struct{}{}
			applied = strategy.ID
			next = strategy.Apply(input)
		} else {
			degraded = true
			logging.WarnWithContext(attemptLogger, "no untried mitigation strategy; resubmitting input unchanged", "mitigation_exhausted",
				logging.Category(category),
				logging.Int("suggested", len(analysis.SuggestedStrategies)),
				logging.String(logging.FieldErrorHint, "extend the entity table or rephrase the input"),
				logging.String(logging.FieldImpact, "retry consumes an attempt without a semantic change"),
			)
		}

		delay := o.policy.Delay(attempt)
		if err := o.tracker.RecordRetry(attemptID, attempt, stats.RetryInfo{Strategy: applied, Category: category, Delay: delay}); err != nil {
			attemptLogger.Debug("stats retry not recorded", logging.Error(err))
		}
		o.metrics.ObserveRetry(applied, category, delay)
		attemptLogger.Info("generation failed; retrying",
			logging.Transition(string(state)),
			logging.Category(category),
			logging.Strategy(applied),
			logging.Duration("backoff", delay),
			logging.Float64("overall_confidence", analysis.OverallConfidence),
		)
		if err := o.sleep(ctx, delay); err != nil {
			return o.abandon(logger, attemptID, err)
		}
		input = next
	}
}

func (o *Orchestrator) appendAnalysis(ctx context.Context, logger *slog.Logger, analysis diagnosis.ErrorAnalysis) {
	if o.sink == nil {
		return
	}
	if err := o.sink.AppendAnalysis(ctx, analysis); err != nil {
		logging.WarnWithContext(logger, "error analysis not persisted", "analysis_append_failed",
			logging.Error(err),
			logging.String("analysis_id", analysis.ID),
			logging.String(logging.FieldErrorHint, "check history.db availability"),
			logging.String(logging.FieldImpact, "audit log is missing this attempt"),
		)
	}
}

func (o *Orchestrator) abandon(logger *slog.Logger, attemptID string, err error) (Result, error) {
	o.tracker.Abandon(attemptID)
	logger.Info("orchestrated generation abandoned", logging.Error(err))
	return Result{}, err
}

func pluralAttempts(n int) string {
	if n == 1 {
		return "1 attempt"
	}
	return fmt.Sprintf("%d attempts", n)
}
