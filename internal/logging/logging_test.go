package logging

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerWritesToConfiguredOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithConfig(LogConfig{
		Level:    "debug",
		Console:  true,
		File:     true,
		FilePath: filepath.Join(t.TempDir(), "logs", "wheel.log"),
		MaxSize:  1,
		Output:   &buf,
	})
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	LogAPICall(WithSymbol(logger, "F"), "GET", "/option-chains/F/nested", 500, 20*time.Millisecond, errors.New("boom"))

	out := buf.String()
	if !strings.Contains(out, "/option-chains/F/nested") || !strings.Contains(out, "API call failed") {
		t.Errorf("unexpected log output: %q", out)
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	if RequestID(ctx) != "req-1" {
		t.Errorf("RequestID = %q", RequestID(ctx))
	}
	if RequestID(context.Background()) != "" {
		t.Error("expected empty request ID")
	}

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	recovered := FromContext(WithLogger(ctx, logger))
	recovered.Info().Msg("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Error("logger not recovered from context")
	}
}
