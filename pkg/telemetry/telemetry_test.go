package telemetry

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if err := DevelopmentConfig().Validate(); err != nil {
		t.Fatalf("development config should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty service name", func(c *Config) { c.ServiceName = "" }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad exporter", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Exporter = "jaeger" }},
		{"otlp without endpoint", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Exporter = "otlp" }},
		{"sampling rate", func(c *Config) { c.Tracing.SamplingRate = 2 }},
		{"metrics without address", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.ListenAddress = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LoggingConfig{Level: "debug", Format: "json"}, &buf)

	logger.NewComponentLogger("planner").WithRunID("run-1").WithProblem("robot").WithSeed(7).Info("search started")

	out := buf.String()
	for _, want := range []string{`"component":"planner"`, `"run_id":"run-1"`, `"problem":"robot"`, `"seed":7`, `"message":"search started"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
}

func TestLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn message should be logged")
	}
}

func TestMetrics_Disabled(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}
	m.RecordSolveStarted()
	m.RecordStep("extend", "applicability")
	m.RecordSolveCompleted("exhausted", time.Second, 10)

	var nilMetrics *Metrics
	nilMetrics.RecordError("search", "ORACLE_FAILED")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("expected 404 from disabled metrics, got %d", rec.Code)
	}
}

func TestMetrics_Handler(t *testing.T) {
	cfg := DefaultConfig().Metrics
	cfg.Enabled = true
	m, err := NewMetrics(cfg)
	if err != nil {
		t.Fatal(err)
	}

	m.RecordSolveStarted()
	m.RecordPoolSize(2)
	m.RecordStep("extend", "valid")
	m.RecordPlanLength(1)
	m.RecordPhase("ground", 10*time.Millisecond)
	m.RecordPolicyViolation("plan-length", "warning")
	m.RecordSolveCompleted("solved_satisficing", 20*time.Millisecond, 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`yoloplan_solves_completed_total{status="solved_satisficing"} 1`,
		`yoloplan_search_steps_total{kind="extend"} 1`,
		`yoloplan_search_verdicts_total{result="valid"} 1`,
		`yoloplan_policy_violations_total{policy="plan-length",severity="warning"} 1`,
		`yoloplan_active_solves 0`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func TestEventPublisher_Sync(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true, BufferSize: 10})
	if err != nil {
		t.Fatal(err)
	}

	var got []Event
	ep.Subscribe(func(e Event) { got = append(got, e) }, FilterByType(EventTypePlanFound))

	if err := ep.PublishSolveStarted("run-1", "robot"); err != nil {
		t.Fatal(err)
	}
	if err := ep.PublishPlanFound("run-1", "robot", 1); err != nil {
		t.Fatal(err)
	}

	if len(got) != 1 {
		t.Fatalf("expected 1 filtered event, got %d", len(got))
	}
	if got[0].ID == "" || got[0].Timestamp.IsZero() {
		t.Error("expected ID and timestamp to be set")
	}
	if got[0].Data["length"] != 1 {
		t.Errorf("expected length 1, got %v", got[0].Data["length"])
	}
}

func TestEventPublisher_AsyncShutdownDrains(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true, BufferSize: 10, MaxBatchSize: 5, EnableAsync: true})
	if err != nil {
		t.Fatal(err)
	}

	received := make(chan Event, 10)
	ep.Subscribe(func(e Event) { received <- e }, nil)

	for i := 0; i < 3; i++ {
		if err := ep.PublishSolveFailed("run", "robot", "boom"); err != nil {
			t.Fatal(err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ep.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if len(received) != 3 {
		t.Errorf("expected 3 delivered events, got %d", len(received))
	}
}

func TestStartOperation_WithoutTelemetry(t *testing.T) {
	op := StartOperation(context.Background(), "ground")
	if op.Span != nil {
		t.Error("expected no span without telemetry")
	}
	op.End(nil)
}

func TestStartOperation_WithTelemetry(t *testing.T) {
	tel := NewNop()
	ctx := tel.WithContext(context.Background())

	op := StartOperation(ctx, "search", AttrPoolSize.Int(2))
	if op.Span == nil {
		t.Fatal("expected a span")
	}
	if FromTelemetryContext(op.Ctx) != tel {
		t.Error("expected telemetry to propagate")
	}
	op.End(nil)

	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown failed: %v", err)
	}
}
