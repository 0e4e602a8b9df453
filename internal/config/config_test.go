package config

import (
	"os"
	"path/filepath"
	"testing"
)

type testOptions struct {
	Config string `help:"Config file path"`

	StorePath   string `toml:"store.path" env:"STORE_PATH"`
	Port        int    `toml:"server.port" env:"PORT"`
	UseHardware bool   `toml:"encoder.hardware" env:"USE_HARDWARE"`
}

func writeTOML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fencecast.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeTOML(t, `
[store]
path = "/var/lib/fencecast/bindings.json"

[server]
port = 9090

[encoder]
hardware = true
`)

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if opts.StorePath != "/var/lib/fencecast/bindings.json" {
		t.Errorf("StorePath = %q", opts.StorePath)
	}
	if opts.Port != 9090 {
		t.Errorf("Port = %d, want 9090", opts.Port)
	}
	if !opts.UseHardware {
		t.Error("UseHardware = false, want true")
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("FENCECAST_STORE_PATH", "/tmp/bindings.json")
	t.Setenv("FENCECAST_PORT", "8088")
	t.Setenv("FENCECAST_USE_HARDWARE", "true")

	opts := &testOptions{}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if opts.StorePath != "/tmp/bindings.json" {
		t.Errorf("StorePath = %q", opts.StorePath)
	}
	if opts.Port != 8088 {
		t.Errorf("Port = %d, want 8088", opts.Port)
	}
	if !opts.UseHardware {
		t.Error("UseHardware = false, want true")
	}
}

func TestEnvOverridesTOML(t *testing.T) {
	path := writeTOML(t, `
[server]
port = 9090
`)
	t.Setenv("FENCECAST_PORT", "7070")

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if opts.Port != 7070 {
		t.Errorf("Port = %d, want env value 7070", opts.Port)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	path := writeTOML(t, "not toml [[[")

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err == nil {
		t.Fatal("expected error for invalid TOML")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &testOptions{Config: "/nonexistent/fencecast.toml", Port: 8080}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if opts.Port != 8080 {
		t.Errorf("Port = %d, defaults must survive a missing file", opts.Port)
	}
}

func TestFieldNameToFlag(t *testing.T) {
	cases := map[string]string{
		"Port":        "port",
		"StorePath":   "store-path",
		"UseHardware": "use-hardware",
	}
	for in, want := range cases {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeTOML(t, `
[logging]
level = "debug"
format = "json"
supervisor = "warn"
ffmpeg = "error"
`)

	cfg := LoadLoggingConfig(path)
	if cfg.Level != "debug" || cfg.Format != "json" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Modules["supervisor"] != "warn" || cfg.Modules["ffmpeg"] != "error" {
		t.Errorf("modules = %v", cfg.Modules)
	}
}

func TestLoadLoggingConfigDefaults(t *testing.T) {
	cfg := LoadLoggingConfig("/nonexistent/fencecast.toml")
	if cfg.Level != "info" || cfg.Format != "text" {
		t.Errorf("cfg = %+v, want info/text defaults", cfg)
	}
}
