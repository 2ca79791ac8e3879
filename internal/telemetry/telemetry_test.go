package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "debug", Format: "json"}, &buf)
	logger.Debug("task added", "task", "reach")

	out := buf.String()
	if !strings.Contains(out, `"timestamp"`) {
		t.Errorf("expected renamed time key, got %s", out)
	}
	if !strings.Contains(out, `"task":"reach"`) {
		t.Errorf("expected task attribute, got %s", out)
	}
}

func TestNewLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn"}, &buf)
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info record should be filtered, got %s", buf.String())
	}
}

func TestInit_Disabled(t *testing.T) {
	p, err := Init(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer p.Shutdown(context.Background())

	m, err := NewMetrics(p.Meter)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordSolve("ik", time.Millisecond, time.Microsecond, nil)
	m.RecordSolve("ik", 0, 0, errors.New("infeasible"))
	m.TasksChanged(1)
	m.Starved()
}

func TestInit_EnabledNoneExporter(t *testing.T) {
	p, err := Init(context.Background(), Config{Enabled: true, Exporter: "none"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer p.Shutdown(context.Background())

	if _, err := NewMetrics(p.Meter); err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	_, span := p.Tracer.Start(context.Background(), "test")
	span.End()
}

func TestInit_UnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), Config{Enabled: true, Exporter: "zipkin"})
	if err == nil {
		t.Error("expected error for unknown exporter")
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.RecordSolve("preview", time.Second, time.Second, nil)
	m.TasksChanged(-1)
	m.Starved()
}
