package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the retry loop collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// AttemptsTotal counts generation calls by outcome (success, failure).
	AttemptsTotal *prometheus.CounterVec
	// RetriesTotal counts retries by applied strategy and failure category.
	RetriesTotal *prometheus.CounterVec
	// TerminalTotal counts finished requests by outcome.
	TerminalTotal *prometheus.CounterVec
	// ErrorsTotal counts classified failures by category.
	ErrorsTotal *prometheus.CounterVec
	// BackoffSeconds observes computed backoff delays.
	BackoffSeconds prometheus.Histogram
	// AttemptsPerRequest observes how many attempts a finished request used.
	AttemptsPerRequest *prometheus.HistogramVec
	// DegradedRetriesTotal counts resubmissions of the unmodified input.
	DegradedRetriesTotal prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		AttemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "genguard_generation_attempts_total",
			Help: "Total number of generation attempts",
		}, []string{"outcome"}),
		RetriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "genguard_retries_total",
			Help: "Total number of retries by applied strategy",
		}, []string{"strategy", "category"}),
		TerminalTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "genguard_requests_total",
			Help: "Total number of finished requests by outcome",
		}, []string{"outcome"}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "genguard_provider_errors_total",
			Help: "Total number of classified provider failures",
		}, []string{"category"}),
		BackoffSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "genguard_backoff_seconds",
			Help:    "Backoff delay before a retry in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 240, 480, 600},
		}),
		AttemptsPerRequest: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "genguard_attempts_per_request",
			Help:    "Attempts used by finished requests",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		}, []string{"outcome"}),
		DegradedRetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "genguard_degraded_retries_total",
			Help: "Retries that resubmitted the unmodified input",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// ObserveAttempt records one generation call.
func (m *Metrics) ObserveAttempt(success bool, category string) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(outcomeLabel(success)).Inc()
	if !success {
		m.ErrorsTotal.WithLabelValues(category).Inc()
	}
}

// ObserveRetry records a retry decision and its backoff.
func (m *Metrics) ObserveRetry(strategy, category string, delay time.Duration) {
	if m == nil {
		return
	}
	degraded := strategy == ""
	if degraded {
		strategy = "unmodified"
		m.DegradedRetriesTotal.Inc()
	}
	m.RetriesTotal.WithLabelValues(strategy, category).Inc()
	m.BackoffSeconds.Observe(delay.Seconds())
}

// ObserveTerminal records a finished request.
func (m *Metrics) ObserveTerminal(success bool, attempts int) {
	if m == nil {
		return
	}
	label := outcomeLabel(success)
	m.TerminalTotal.WithLabelValues(label).Inc()
	m.AttemptsPerRequest.WithLabelValues(label).Observe(float64(attempts))
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics and /healthz on addr until ctx is cancelled. The
// returned address is the bound listener address.
func (m *Metrics) Serve(ctx context.Context, addr string) (string, <-chan error, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok\n"))
	})
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan error, 1)
	go func() {
		err := server.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	return listener.Addr().String(), done, nil
}
