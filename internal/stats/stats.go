package stats

import (
	"fmt"
	"maps"
	"strconv"
	"time"
)

// UnmodifiedStrategy is the usage key recorded when a retry resubmits the
// input unchanged.
const UnmodifiedStrategy = "unmodified"

// Counters are the aggregates shared by session and historical views.
type Counters struct {
	TotalGenerations     int64            `json:"total_generations"`
	TotalAttempts        int64            `json:"total_attempts"`
	Successes            int64            `json:"successes"`
	Failures             int64            `json:"failures"`
	Retries              int64            `json:"retries"`
	ErrorCategories      map[string]int64 `json:"error_categories"`
	StrategyUsage        map[string]int64 `json:"strategy_usage"`
	SuccessByAttempt     map[string]int64 `json:"success_by_attempt"`
	CumulativeCost       float64          `json:"cumulative_cost"`
	CumulativeDurationMS int64            `json:"cumulative_duration_ms"`
	SuccessRate          float64          `json:"success_rate"`
}

// SessionStats are process-lifetime counters.
type SessionStats struct {
	StartedAt time.Time `json:"started_at"`
	Counters
}

// Bucket is a rollup for one day, ISO week, or month.
type Bucket struct {
	Generations int64   `json:"generations"`
	Successes   int64   `json:"successes"`
	Failures    int64   `json:"failures"`
	Retries     int64   `json:"retries"`
	Cost        float64 `json:"cost"`
}

// HistoricalStats is the durable counterpart of SessionStats.
type HistoricalStats struct {
	FirstRecorded time.Time `json:"first_recorded,omitzero"`
	LastUpdated   time.Time `json:"last_updated,omitzero"`
	Counters
	ByDay   map[string]Bucket `json:"by_day"`
	ByWeek  map[string]Bucket `json:"by_week"`
	ByMonth map[string]Bucket `json:"by_month"`
}

// outcome is the folded result of one terminal event.
type outcome struct {
	success    bool
	attempts   int
	retries    int
	strategies map[string]int64
	category   string
	cost       float64
	elapsed    time.Duration
}

func (c *Counters) apply(o outcome) {
	c.ensureMaps()
	c.TotalGenerations++
	c.TotalAttempts += int64(o.attempts)
	c.Retries += int64(o.retries)
	for id, n := range o.strategies {
		c.StrategyUsage[id] += n
	}
	if o.success {
		c.Successes++
		c.SuccessByAttempt[strconv.Itoa(o.attempts)]++
	} else {
		c.Failures++
		category := o.category
		if category == "" {
			category = "unknown"
		}
		c.ErrorCategories[category]++
	}
	c.CumulativeCost += o.cost
	c.CumulativeDurationMS += o.elapsed.Milliseconds()
	c.SuccessRate = successRate(c.Successes, c.TotalGenerations)
}

func (c *Counters) ensureMaps() {
	if c.ErrorCategories == nil {
		c.ErrorCategories = make(map[string]int64)
	}
	if c.StrategyUsage == nil {
		c.StrategyUsage = make(map[string]int64)
	}
	if c.SuccessByAttempt == nil {
		c.SuccessByAttempt = make(map[string]int64)
	}
}

func (c Counters) clone() Counters {
	c.ErrorCategories = cloneMap(c.ErrorCategories)
	c.StrategyUsage = cloneMap(c.StrategyUsage)
	c.SuccessByAttempt = cloneMap(c.SuccessByAttempt)
	c.SuccessRate = successRate(c.Successes, c.TotalGenerations)
	return c
}

func (b *Bucket) apply(o outcome) {
	b.Generations++
	if o.success {
		b.Successes++
	} else {
		b.Failures++
	}
	b.Retries += int64(o.retries)
	b.Cost += o.cost
}

func (h *HistoricalStats) apply(o outcome, at time.Time) {
	at = at.UTC()
	if h.FirstRecorded.IsZero() {
		h.FirstRecorded = at
	}
	h.LastUpdated = at
	h.Counters.apply(o)
	h.ensureBuckets()
	applyBucket(h.ByDay, DayKey(at), o)
	applyBucket(h.ByWeek, WeekKey(at), o)
	applyBucket(h.ByMonth, MonthKey(at), o)
}

func (h *HistoricalStats) ensureBuckets() {
	if h.ByDay == nil {
		h.ByDay = make(map[string]Bucket)
	}
	if h.ByWeek == nil {
		h.ByWeek = make(map[string]Bucket)
	}
	if h.ByMonth == nil {
		h.ByMonth = make(map[string]Bucket)
	}
}

// Clone returns a deep copy with maps allocated and the success rate derived.
func (h HistoricalStats) Clone() HistoricalStats {
	h.Counters = h.Counters.clone()
	h.Counters.ensureMaps()
	h.ByDay = cloneMap(h.ByDay)
	h.ByWeek = cloneMap(h.ByWeek)
	h.ByMonth = cloneMap(h.ByMonth)
	h.ensureBuckets()
	return h
}

func applyBucket(buckets map[string]Bucket, key string, o outcome) {
	b := buckets[key]
	b.apply(o)
	buckets[key] = b
}

// DayKey formats the UTC day bucket key (2006-01-02).
func DayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

// WeekKey formats the UTC ISO-8601 week bucket key (2006-W01).
func WeekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// MonthKey formats the UTC month bucket key (2006-01).
func MonthKey(t time.Time) string { return t.UTC().Format("2006-01") }

func successRate(successes, generations int64) float64 {
	if generations <= 0 {
		return 0
	}
	return float64(successes) / float64(generations)
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	if in == nil {
		return nil
	}
	return maps.Clone(in)
}
