package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewHandler(t *testing.T) {
	for _, dev := range []bool{true, false} {
		var buf bytes.Buffer
		h := NewHandler(&buf, slog.LevelWarn, dev)

		if h.Enabled(context.Background(), slog.LevelInfo) {
			t.Errorf("dev=%v: info enabled at warn level", dev)
		}

		slog.New(h).Warn("disk almost full", "free", "2%")
		if !strings.Contains(buf.String(), "disk almost full") {
			t.Errorf("dev=%v: message missing from %q", dev, buf.String())
		}
	}
}
