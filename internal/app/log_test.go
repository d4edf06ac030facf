package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTabHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		runID   string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			runID:   "run-123",
			level:   slog.LevelInfo,
			message: "transfer finalized",
			want:    "2024-06-15T14:30:45Z\tINFO\trun-123\ttransfer finalized\n",
		},
		{
			name:    "error level",
			runID:   "run-456",
			level:   slog.LevelError,
			message: "transfer failed",
			want:    "2024-06-15T14:30:45Z\tERROR\trun-456\ttransfer failed\n",
		},
		{
			name:    "with record attrs",
			runID:   "run-789",
			level:   slog.LevelInfo,
			message: "transfer finalized",
			attrs:   []slog.Attr{slog.String("folder", "docs"), slog.Int64("bytes", 42)},
			want:    "2024-06-15T14:30:45Z\tINFO\trun-789\ttransfer finalized\tfolder=docs\tbytes=42\n",
		},
		{
			name:    "error attr",
			runID:   "run-1",
			level:   slog.LevelWarn,
			message: "journaling transfer start",
			attrs:   []slog.Attr{slog.Any("error", errors.New("database is locked"))},
			want:    "2024-06-15T14:30:45Z\tWARN\trun-1\tjournaling transfer start\terror=database is locked\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := newTabHandler(&buf, tt.runID, slog.LevelDebug)

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestTabHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := newTabHandler(&buf, "run-1", slog.LevelInfo)

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "server")}).(*tabHandler)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "listening", 0)
	r.AddAttrs(slog.String("address", ":8080"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=server") {
		t.Errorf("expected pre-set attr component=server, got: %q", got)
	}
	if !strings.Contains(got, "address=:8080") {
		t.Errorf("expected record attr address=:8080, got: %q", got)
	}
	if len(h.attrs) != 0 {
		t.Errorf("original handler attrs modified: got %d, want 0", len(h.attrs))
	}
}

func TestTabHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newTabHandler(&buf, "run-1", slog.LevelInfo))

	logger.WithGroup("s3").Info("uploading", "bucket", "b", slog.Group("part", "n", 3))

	got := buf.String()
	if !strings.Contains(got, "\ts3.bucket=b") || !strings.Contains(got, "\ts3.part.n=3") {
		t.Errorf("grouped attrs not prefixed: %q", got)
	}
}

func TestTabHandler_Enabled(t *testing.T) {
	h := newTabHandler(&bytes.Buffer{}, "run-1", slog.LevelWarn)

	tests := []struct {
		level slog.Level
		want  bool
	}{
		{slog.LevelDebug, false},
		{slog.LevelInfo, false},
		{slog.LevelWarn, true},
		{slog.LevelError, true},
	}
	for _, tt := range tests {
		if got := h.Enabled(context.Background(), tt.level); got != tt.want {
			t.Errorf("Enabled(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := parseLevel(in)
		if err != nil {
			t.Errorf("parseLevel(%q) error = %v", in, err)
		}
		if got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := parseLevel("loud"); err == nil {
		t.Error("parseLevel(\"loud\") expected error")
	}
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")

	logger, f, err := newLogger(dir, "test-run", slog.LevelInfo)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	logger.Info("written to file", "k", "v")
	logger.Debug("filtered out")

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	got := string(data)
	if !strings.Contains(got, "\ttest-run\twritten to file\tk=v\n") {
		t.Errorf("log file = %q", got)
	}
	if strings.Contains(got, "filtered out") {
		t.Errorf("debug record written at info level: %q", got)
	}
}
