package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_FullConfig(t *testing.T) {
	yaml := `port: /dev/ttyUSB0
baudrate: 115200
socket: 192.168.4.1:17531
log_level: debug
trace: session.trace

timeouts:
  control: 2s
  storage: 30s
  lock_attempt: 250ms
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertEqual(t, "port", cfg.Port, "/dev/ttyUSB0")
	assertEqual(t, "socket", cfg.Socket, "192.168.4.1:17531")
	assertEqual(t, "log_level", cfg.LogLevel, "debug")
	assertEqual(t, "trace", cfg.Trace, "session.trace")
	if cfg.BaudRate != 115200 {
		t.Errorf("baudrate: got %d", cfg.BaudRate)
	}

	durations := []struct {
		field string
		got   time.Duration
		want  time.Duration
	}{
		{"timeouts.control", cfg.Timeouts.Control.Duration, 2 * time.Second},
		{"timeouts.storage", cfg.Timeouts.Storage.Duration, 30 * time.Second},
		{"timeouts.lock_attempt", cfg.Timeouts.LockAttempt.Duration, 250 * time.Millisecond},
	}
	for _, d := range durations {
		if d.got != d.want {
			t.Errorf("%s: got %s, want %s", d.field, d.got, d.want)
		}
	}

	tc := cfg.TransportConfig()
	if tc.Port != "/dev/ttyUSB0" || tc.BaudRate != 115200 || tc.Socket != "192.168.4.1:17531" {
		t.Errorf("TransportConfig() = %+v", tc)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeTemp(t, ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "" || cfg.Timeouts.Control.Duration != 0 {
		t.Errorf("expected zero config, got %+v", cfg)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("JAC_TEST_PORT", "/dev/ttyACM1")

	cfg, err := Load(writeTemp(t, "port: ${JAC_TEST_PORT}\nlog_level: ${JAC_TEST_UNSET:-warn}\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "port", cfg.Port, "/dev/ttyACM1")
	assertEqual(t, "log_level", cfg.LogLevel, "warn")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{name: "invalid yaml", content: "port: [unclosed", wantMsg: "invalid YAML"},
		{name: "bad duration", content: "timeouts:\n  control: soon\n", wantMsg: "invalid duration"},
		{name: "negative duration", content: "timeouts:\n  storage: -1s\n", wantMsg: "must not be negative"},
		{name: "negative baud", content: "baudrate: -9600\n", wantMsg: "baudrate must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTemp(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("err = %v", err)
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := LoadOptional("")
	if err != nil {
		t.Fatalf("LoadOptional without file failed: %v", err)
	}
	if *cfg != (Config{}) {
		t.Errorf("expected empty config, got %+v", cfg)
	}

	if err := os.WriteFile(filepath.Join(dir, DefaultFile), []byte("socket: host:1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadOptional("")
	if err != nil {
		t.Fatalf("LoadOptional with default file failed: %v", err)
	}
	assertEqual(t, "socket", cfg.Socket, "host:1")

	if _, err := LoadOptional(filepath.Join(dir, "other.yaml")); err == nil {
		t.Error("explicit missing path must fail")
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
