package logger

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	_ = w.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read pipe: %v", err)
	}
	return string(data)
}

func TestInitStdBackend(t *testing.T) {
	out := captureStdout(t, func() {
		Init(Config{
			Service: "demo",
			Version: "1.2.3",
			Env:     EnvDev,
			Backend: BackendStd,
		})
		slog.Info("booted", slog.String("k", "v"))
	})

	for _, want := range []string{"msg=booted", "service=demo", "version=1.2.3", "k=v"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestInitZapBackendJSON(t *testing.T) {
	out := captureStdout(t, func() {
		Init(Config{
			Service:          "demo",
			Version:          "1.2.3",
			Env:              EnvProd,
			Backend:          BackendZap,
			Level:            slog.LevelInfo,
			SampleInitial:    100000,
			SampleThereafter: 100000,
		})
		slog.Info("booted", slog.String("k", "v"))
	})

	line := strings.TrimSpace(out)
	var m map[string]any
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", line, err)
	}
	if m["msg"] != "booted" {
		t.Errorf("msg = %v", m["msg"])
	}
	if m["service"] != "demo" || m["env"] != "prod" {
		t.Errorf("attrs missing: service=%v env=%v", m["service"], m["env"])
	}
	if m["k"] != "v" {
		t.Errorf("custom field missing: %v", m["k"])
	}
}

func TestDetectEnv(t *testing.T) {
	tests := []struct {
		raw  string
		want Env
	}{
		{"prod", EnvProd},
		{"production", EnvProd},
		{"dev", EnvDev},
		{"", EnvDev},
		{"whatever", EnvDev},
	}

	for _, tt := range tests {
		t.Setenv("APP_ENV", tt.raw)
		if got := DetectEnv(); got != tt.want {
			t.Errorf("DetectEnv(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}
