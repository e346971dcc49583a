package stats

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"genguard/internal/logging"
)

// ErrUnknownAttempt is returned for an attempt id that is not in flight.
var ErrUnknownAttempt = errors.New("unknown attempt id")

// Store persists HistoricalStats across restarts.
type Store interface {
	LoadHistoricalStats(ctx context.Context) (HistoricalStats, error)
	SaveHistoricalStats(ctx context.Context, stats HistoricalStats) error
}

// StartInfo describes a new orchestrated request.
type StartInfo struct {
	RequestID string
	Segment   int
}

// RetryInfo describes one retry decision.
type RetryInfo struct {
	// Strategy is the applied strategy id, empty for an unmodified resubmission.
	Strategy string
	Category string
	Delay    time.Duration
}

// SuccessInfo describes a successful terminal outcome.
type SuccessInfo struct {
	Attempts int
	Strategy string
	Cost     float64
}

// FailureInfo describes an exhausted terminal outcome.
type FailureInfo struct {
	Attempts int
	Category string
}

type inflight struct {
	requestID  string
	started    time.Time
	retries    int
	strategies map[string]int64
}

// Tracker correlates lifecycle events per attempt id and folds each terminal
// outcome into the session and historical aggregates exactly once.
type Tracker struct {
	mu         sync.Mutex
	store      Store
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
	session    SessionStats
	historical HistoricalStats
	inflight   map[string]*inflight
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithLogger sets the tracker logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithClock overrides the tracker clock.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithIDGenerator overrides attempt id generation.
func WithIDGenerator(fn func() string) Option {
	return func(t *Tracker) {
		if fn != nil {
			t.newID = fn
		}
	}
}

// NewTracker constructs a tracker. A nil store keeps historical stats in
// memory only.
func NewTracker(store Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:    store,
		logger:   logging.NewNop(),
		now:      time.Now,
		newID:    uuid.NewString,
		inflight: make(map[string]*inflight),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.session.StartedAt = t.now().UTC()
	return t
}

// Load reads historical stats from the store. On failure the tracker keeps
// an empty in-memory history and the error is returned for reporting.
func (t *Tracker) Load(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	loaded, err := t.store.LoadHistoricalStats(ctx)
	if err != nil {
		logging.WarnWithContext(t.logger, "historical stats unavailable", "history_load_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check data_dir permissions and history.db integrity"),
			logging.String(logging.FieldImpact, "stats limited to this session"),
		)
		return err
	}
	t.mu.Lock()
	t.historical = loaded.Clone()
	t.mu.Unlock()
	return nil
}

// RecordStart registers a new request and returns its attempt id.
func (t *Tracker) RecordStart(info StartInfo) string {
	id := t.newID()
	t.mu.Lock()
	t.inflight[id] = &inflight{
		requestID:  info.RequestID,
		started:    t.now(),
		strategies: make(map[string]int64),
	}
	t.mu.Unlock()
	t.logger.Debug("generation started",
		logging.String("attempt_id", id),
		logging.String(logging.FieldRequestID, info.RequestID),
	)
	return id
}

// RecordRetry notes a retry. Counts are applied at the terminal outcome.
func (t *Tracker) RecordRetry(id string, retryNumber int, info RetryInfo) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.inflight[id]
	if !ok {
		return ErrUnknownAttempt
	}
	entry.retries++
	strategy := strings.TrimSpace(info.Strategy)
	if strategy == "" {
		strategy = UnmodifiedStrategy
	}
	entry.strategies[strategy]++
	t.logger.Debug("retry recorded",
		logging.String("attempt_id", id),
		logging.Int("retry_number", retryNumber),
		logging.Strategy(strategy),
		logging.Category(info.Category),
		logging.Duration("delay", info.Delay),
	)
	return nil
}

// RecordSuccess folds a successful outcome into the aggregates.
func (t *Tracker) RecordSuccess(ctx context.Context, id string, info SuccessInfo) error {
	return t.finish(ctx, id, func(entry *inflight) outcome {
		return outcome{success: true, attempts: info.Attempts, cost: info.Cost}
	})
}

// RecordFailure folds an exhausted outcome into the aggregates.
func (t *Tracker) RecordFailure(ctx context.Context, id string, info FailureInfo) error {
	return t.finish(ctx, id, func(entry *inflight) outcome {
		return outcome{attempts: info.Attempts, category: info.Category}
	})
}

// Abandon forgets an in-flight request without touching any aggregate.
func (t *Tracker) Abandon(id string) {
	t.mu.Lock()
	delete(t.inflight, id)
	t.mu.Unlock()
}

// InFlight reports how many requests have started but not finished.
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}

// ResetSession clears session counters.
func (t *Tracker) ResetSession() {
	t.mu.Lock()
	t.session = SessionStats{StartedAt: t.now().UTC()}
	t.mu.Unlock()
}

// SessionReport returns a copy of the session counters.
func (t *Tracker) SessionReport() SessionStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	report := t.session
	report.Counters = report.Counters.clone()
	report.Counters.ensureMaps()
	return report
}

// HistoricalReport returns a copy of the historical aggregates.
func (t *Tracker) HistoricalReport() HistoricalStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.historical.Clone()
}

func (t *Tracker) finish(ctx context.Context, id string, build func(*inflight) outcome) error {
	// The lock is held across the store write so flushes land in outcome order.
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.inflight[id]
	if !ok {
		return ErrUnknownAttempt
	}
	delete(t.inflight, id)

	now := t.now()
	o := build(entry)
	o.retries = entry.retries
	o.strategies = entry.strategies
	o.elapsed = now.Sub(entry.started)
	if o.attempts <= 0 {
		o.attempts = entry.retries + 1
	}

	t.session.apply(o)
	t.historical.apply(o, now)

	logger := logging.WithContext(ctx, t.logger)
	logger.Debug("terminal outcome recorded",
		logging.String("attempt_id", id),
		logging.Bool("success", o.success),
		logging.Attempt(o.attempts),
		logging.Duration("elapsed", o.elapsed),
	)
	if t.store == nil {
		return nil
	}
	if err := t.store.SaveHistoricalStats(ctx, t.historical.Clone()); err != nil {
		logging.WarnWithContext(logger, "historical stats flush failed", "history_save_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check data_dir free space and lock contention"),
			logging.String(logging.FieldImpact, "outcome kept in memory only"),
		)
	}
	return nil
}
