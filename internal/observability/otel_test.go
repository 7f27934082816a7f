package observability

import (
	"context"
	"testing"

	"github.com/yungbote/enrollment-backend/internal/platform/logger"
)

func TestLoadOtelConfig(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SAMPLER_RATIO", "2.5")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "x-api-key=abc, broken, =empty")
	cfg := LoadOtelConfig(logger.Nop())
	if !cfg.Enabled {
		t.Fatalf("expected enabled")
	}
	if cfg.SampleRatio != 1 {
		t.Fatalf("ratio clamp: want=1 got=%v", cfg.SampleRatio)
	}
	if len(cfg.Headers) != 1 || cfg.Headers["x-api-key"] != "abc" {
		t.Fatalf("headers: got %+v", cfg.Headers)
	}
}

func TestParseRatio(t *testing.T) {
	cases := map[string]float64{"0.25": 0.25, "-1": 0, "abc": 0.1, "1": 1}
	for raw, want := range cases {
		if got := parseRatio(raw, 0.1); got != want {
			t.Fatalf("parseRatio(%q): want=%v got=%v", raw, want, got)
		}
	}
}

func TestInitOTelDisabledIsNoop(t *testing.T) {
	shutdown := InitOTel(context.Background(), logger.Nop(), OtelConfig{Enabled: false})
	if shutdown == nil {
		t.Fatalf("expected a shutdown func")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	_, span := StartSpan(context.Background(), "test")
	EndSpan(span, nil)
}
