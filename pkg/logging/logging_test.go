package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	ctrl "sigs.k8s.io/controller-runtime"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, test := range tests {
		result := test.level.String()
		if result != test.expected {
			t.Errorf("LogLevel(%d).String() = %s, expected %s", test.level, result, test.expected)
		}
	}
}

func TestLogLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{LogLevel(999), slog.LevelInfo},
	}

	for _, test := range tests {
		result := test.level.SlogLevel()
		if result != test.expected {
			t.Errorf("LogLevel(%d).SlogLevel() = %v, expected %v", test.level, result, test.expected)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LevelDebug,
		"info":    LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
	}
	for in, expected := range tests {
		if got := ParseLevel(in); got != expected {
			t.Errorf("ParseLevel(%q) = %v, expected %v", in, got, expected)
		}
	}
}

func TestInitForCLI(t *testing.T) {
	var buf bytes.Buffer

	InitForCLI(LevelInfo, &buf)

	Info("test-subsystem", "test message %d", 42)

	output := buf.String()
	if !strings.Contains(output, "test message 42") {
		t.Error("Expected log message to appear in CLI output")
	}
	if !strings.Contains(output, "test-subsystem") {
		t.Error("Expected subsystem to appear in CLI output")
	}
}

func TestCLILevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	InitForCLI(LevelInfo, &buf)

	Debug("test", "debug message")
	Info("test", "info message")

	output := buf.String()
	if strings.Contains(output, "debug message") {
		t.Error("Debug message should be filtered out at INFO level")
	}
	if !strings.Contains(output, "info message") {
		t.Error("Info message should appear at INFO level")
	}
}

func TestInitForJSON(t *testing.T) {
	var buf bytes.Buffer

	InitForJSON(LevelDebug, &buf)

	Error("Reconciler", errors.New("boom"), "apply failed for %s", "api")

	var record map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record); err != nil {
		t.Fatalf("expected a JSON record, got %q: %v", buf.String(), err)
	}
	if record["msg"] != "apply failed for api" {
		t.Errorf("unexpected msg: %v", record["msg"])
	}
	if record["subsystem"] != "Reconciler" {
		t.Errorf("unexpected subsystem: %v", record["subsystem"])
	}
	if record["error"] != "boom" {
		t.Errorf("unexpected error attribute: %v", record["error"])
	}
}

func TestControllerRuntimeLoggerInitialization(t *testing.T) {
	var buf bytes.Buffer

	InitForCLI(LevelInfo, &buf)

	logger := ctrl.Log
	if logger.GetSink() == nil {
		t.Error("Expected controller-runtime logger sink to be initialized")
	}
	if !logger.Enabled() {
		t.Error("Expected controller-runtime logger to be enabled")
	}

	logger.Info("test message from controller-runtime logger", "key", "value")
}
