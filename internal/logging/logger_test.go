package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"DEBUG", zapcore.DebugLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{" error ", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	log, flush, err := New("debug")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer flush()
	if !log.V(1).Enabled() {
		t.Error("Expected V(1) to be enabled at debug level")
	}

	log, _, err = New("info")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if log.V(1).Enabled() {
		t.Error("Expected V(1) to be disabled at info level")
	}

	if _, _, err := New("loud"); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestNew_FlushWritesOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deploy.log")
	log, flush, err := newLogger("info", path)
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}

	log.Info("Successfully created new stack", "id", 7)
	log.V(1).Info("hidden at info level")
	flush()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "INFO") || !strings.Contains(out, "Successfully created new stack") {
		t.Errorf("Expected flushed info line, got %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected debug line to be filtered, got %q", out)
	}
}
