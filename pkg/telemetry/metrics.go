package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for solves and searches.
// A disabled Metrics ignores every Record call.
type Metrics struct {
	config MetricsConfig

	// Solve metrics
	solvesStarted   prometheus.Counter
	solvesCompleted *prometheus.CounterVec
	solveDuration   *prometheus.HistogramVec
	activeSolves    prometheus.Gauge

	// Search metrics
	searchTries   prometheus.Histogram
	searchSteps   *prometheus.CounterVec
	verdicts      *prometheus.CounterVec
	poolSize      prometheus.Histogram
	planLength    prometheus.Histogram
	phaseDuration *prometheus.HistogramVec

	// Policy metrics
	policyViolations *prometheus.CounterVec

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		solvesStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "solves_started_total",
				Help:      "Total number of solve calls started",
			},
		),
		solvesCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "solves_completed_total",
				Help:      "Total number of solve calls completed by status",
			},
			[]string{"status"},
		),
		solveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "solve_duration_seconds",
				Help:      "Duration of solve calls in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		activeSolves: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_solves",
				Help:      "Current number of running solve calls",
			},
		),

		searchTries: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "search",
				Name:      "tries",
				Help:      "Number of tries per search",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
			},
		),
		searchSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "search",
				Name:      "steps_total",
				Help:      "Total number of search tries by kind",
			},
			[]string{"kind"},
		),
		verdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "search",
				Name:      "verdicts_total",
				Help:      "Total number of oracle verdicts by result",
			},
			[]string{"result"},
		),
		poolSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "grounding",
				Name:      "pool_size",
				Help:      "Number of grounded actions per problem",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
			},
		),
		planLength: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "plan_length",
				Help:      "Length of the plans found",
				Buckets:   prometheus.LinearBuckets(0, 5, 20),
			},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "phase_duration_seconds",
				Help:      "Duration of solve phases in seconds",
				Buckets:   buckets,
			},
			[]string{"phase"},
		),

		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Total number of policy violations by policy and severity",
			},
			[]string{"policy", "severity"},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),
	}

	registry.MustRegister(
		m.solvesStarted,
		m.solvesCompleted,
		m.solveDuration,
		m.activeSolves,
		m.searchTries,
		m.searchSteps,
		m.verdicts,
		m.poolSize,
		m.planLength,
		m.phaseDuration,
		m.policyViolations,
		m.errorsByClass,
		m.errorsByCode,
	)

	return m, nil
}

// Solve Metrics

// RecordSolveStarted counts a started solve.
func (m *Metrics) RecordSolveStarted() {
	if m == nil || m.solvesStarted == nil {
		return
	}
	m.solvesStarted.Inc()
	m.activeSolves.Inc()
}

// RecordSolveCompleted records a finished solve with its status, duration and tries.
func (m *Metrics) RecordSolveCompleted(status string, duration time.Duration, tries int) {
	if m == nil || m.solvesCompleted == nil {
		return
	}
	m.solvesCompleted.WithLabelValues(status).Inc()
	m.solveDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.searchTries.Observe(float64(tries))
	m.activeSolves.Dec()
}

// Search Metrics

// RecordStep counts one search try and the verdict it received.
func (m *Metrics) RecordStep(kind, result string) {
	if m == nil || m.searchSteps == nil {
		return
	}
	m.searchSteps.WithLabelValues(kind).Inc()
	m.verdicts.WithLabelValues(result).Inc()
}

// RecordPoolSize records the size of a grounded action pool.
func (m *Metrics) RecordPoolSize(size int) {
	if m == nil || m.poolSize == nil {
		return
	}
	m.poolSize.Observe(float64(size))
}

// RecordPlanLength records the length of a plan found.
func (m *Metrics) RecordPlanLength(length int) {
	if m == nil || m.planLength == nil {
		return
	}
	m.planLength.Observe(float64(length))
}

// RecordPhase records the duration of a solve phase (ground, search, lift, validate).
func (m *Metrics) RecordPhase(phase string, duration time.Duration) {
	if m == nil || m.phaseDuration == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// Policy Metrics

// RecordPolicyViolation counts a policy violation.
func (m *Metrics) RecordPolicyViolation(policy, severity string) {
	if m == nil || m.policyViolations == nil {
		return
	}
	m.policyViolations.WithLabelValues(policy, severity).Inc()
}

// Error Metrics

// RecordError records an error by class and optionally by code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m == nil || m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
	if errorCode != "" {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// Registry returns the underlying registry, nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer serves the metrics endpoint until ctx is cancelled.
// Listen errors are passed to onError.
func (m *Metrics) StartMetricsServer(ctx context.Context, onError func(error)) error {
	if m == nil || !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) && onError != nil {
			onError(err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	return nil
}
