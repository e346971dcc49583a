package diagnosis

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"genguard/internal/classify"
	"genguard/internal/generation"
	"genguard/internal/logging"
	"genguard/internal/mitigation"
	"genguard/internal/triggers"
)

// ErrorAnalysis is the immutable record built for one failed attempt.
type ErrorAnalysis struct {
	ID                    string                `json:"id"`
	Timestamp             time.Time             `json:"timestamp"`
	RequestID             string                `json:"request_id"`
	AttemptNumber         int                   `json:"attempt_number"`
	RawCode               string                `json:"raw_code"`
	RawMessage            string                `json:"raw_message"`
	Category              classify.Category     `json:"category"`
	Signal                string                `json:"signal,omitempty"`
	Rule                  string                `json:"rule"`
	Triggers              []triggers.Trigger    `json:"triggers"`
	InformationalTriggers []triggers.Trigger    `json:"informational_triggers,omitempty"`
	SuggestedStrategies   []mitigation.Strategy `json:"suggested_strategies"`
	OverallConfidence     float64               `json:"overall_confidence"`
}

// Input describes a failed attempt.
type Input struct {
	RequestID string
	Attempt   int
	Text      string
	Err       error
}

// Analyzer combines the classifier, detector, and strategy generator.
type Analyzer struct {
	classifier *classify.Classifier
	detector   *triggers.Detector
	generator  *mitigation.Generator
	logger     *slog.Logger
	now        func() time.Time
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithClock overrides the analysis timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger attaches a logger for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAnalyzer builds an analyzer over registry using the default classifier.
func NewAnalyzer(registry *triggers.Registry, opts ...Option) *Analyzer {
	return NewAnalyzerWith(classify.New(), triggers.NewDetector(registry), mitigation.NewGenerator(registry), opts...)
}

// NewAnalyzerWith wires explicit components.
func NewAnalyzerWith(classifier *classify.Classifier, detector *triggers.Detector, generator *mitigation.Generator, opts ...Option) *Analyzer {
	a := &Analyzer{
		classifier: classifier,
		detector:   detector,
		generator:  generator,
		logger:     logging.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze classifies the failure, scans the input that produced it, and
// ranks strategies. Timeouts skip trigger detection entirely.
func (a *Analyzer) Analyze(ctx context.Context, in Input) ErrorAnalysis {
	raw := generation.AsFailure(in.Err)
	classification := a.classifier.Classify(raw)
	now := a.now().UTC()

	analysis := ErrorAnalysis{
		ID:            ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Timestamp:     now,
		RequestID:     in.RequestID,
		AttemptNumber: in.Attempt,
		RawCode:       raw.Code,
		RawMessage:    raw.Message,
		Category:      classification.Category,
		Signal:        classification.Signal,
		Rule:          classification.Rule,
	}
	if classification.Category != classify.CategoryTimeout {
		found := a.detector.Detect(in.Text)
		analysis.Triggers = triggers.Actionable(found)
		analysis.InformationalTriggers = triggers.Informational(found)
		analysis.SuggestedStrategies = a.generator.Generate(in.Text, analysis.Triggers, classification.Category)
	}
	analysis.OverallConfidence = OverallConfidence(len(analysis.Triggers) > 0, classification.Category.Resolved(), strings.TrimSpace(raw.Message) != "")

	logging.WithContext(ctx, a.logger).Debug("error analysis built",
		logging.Category(string(analysis.Category)),
		logging.Int("trigger_count", len(analysis.Triggers)),
		logging.Int("informational_count", len(analysis.InformationalTriggers)),
		logging.Int("strategy_count", len(analysis.SuggestedStrategies)),
		logging.Float64("overall_confidence", analysis.OverallConfidence),
	)
	return analysis
}

// OverallConfidence scores an analysis from its corroborating signals. Each
// signal only ever adds weight.
func OverallConfidence(triggersFound, categoryResolved, messagePresent bool) float64 {
	tenths := 2
	if triggersFound {
		tenths += 3
	}
	if categoryResolved {
		tenths += 3
	}
	if messagePresent {
		tenths += 2
	}
	return float64(tenths) / 10
}

// StrategyIDs lists the suggested strategy ids in rank order.
func (e ErrorAnalysis) StrategyIDs() []string {
	out := make([]string, 0, len(e.SuggestedStrategies))
	for _, s := range e.SuggestedStrategies {
		out = append(out, s.ID)
	}
	return out
}
