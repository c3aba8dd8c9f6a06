package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Session struct {
		Timeout time.Duration `koanf:"timeout"`
	} `koanf:"session"`
	Log struct {
		Level string `koanf:"level"`
		File  string `koanf:"file"`
	} `koanf:"log"`
	Version struct {
		Check bool `koanf:"check"`
	} `koanf:"version"`
}

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cli.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	l := NewLoader()
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}

	l = NewLoader(WithOptionalConfigFile("/path/to/cli.yaml"))
	if l.filePath != "/path/to/cli.yaml" {
		t.Errorf("filePath = %q", l.filePath)
	}
}

func TestLoader_LoadFile(t *testing.T) {
	path := writeYAML(t, `
session:
  timeout: 30m
log:
  level: debug
`)

	l := NewLoader()
	if err := l.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	var cfg testConfig
	if err := l.Unmarshal(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Session.Timeout != 30*time.Minute {
		t.Errorf("session.timeout = %v, want 30m", cfg.Session.Timeout)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoader_LoadFile_NotFound(t *testing.T) {
	if err := NewLoader().LoadFile("/nonexistent/cli.yaml"); err == nil {
		t.Error("LoadFile() should return error for nonexistent file")
	}
	if err := NewLoader().LoadFile(""); err != nil {
		t.Errorf("LoadFile(\"\") error = %v", err)
	}
}

func TestLoader_Load_MissingFile(t *testing.T) {
	var cfg testConfig
	missing := filepath.Join(t.TempDir(), "cli.yaml")

	l := NewLoader(
		WithOptionalConfigFile(missing),
		WithDefaults(map[string]any{"log.level": "warn"}),
	)
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() with a missing file error = %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Level = %q, want default warn", cfg.Log.Level)
	}
}

func TestLoader_Load_BrokenFile(t *testing.T) {
	path := writeYAML(t, "log: [unterminated\n")

	var cfg testConfig
	if err := NewLoader(WithOptionalConfigFile(path)).Load(&cfg); err == nil {
		t.Error("Load() with an unparsable file should fail")
	}
}

func TestLoader_LoadEnv(t *testing.T) {
	t.Setenv("AERIE_CLI_SESSION_TIMEOUT", "2h")
	t.Setenv("AERIE_CLI_LOG_LEVEL", "info")

	l := NewLoader()
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}

	var cfg testConfig
	if err := l.Unmarshal(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Session.Timeout != 2*time.Hour {
		t.Errorf("session.timeout = %v, want 2h", cfg.Session.Timeout)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log.level = %q, want info", cfg.Log.Level)
	}
}

func TestLoader_LoadMap_DottedKeys(t *testing.T) {
	l := NewLoader()
	if err := l.LoadMap(map[string]any{"log.level": "debug", "version.check": false}); err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}

	var cfg testConfig
	cfg.Version.Check = true
	if err := l.Unmarshal(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "debug" || cfg.Version.Check {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoader_Load_Priority(t *testing.T) {
	path := writeYAML(t, `
session:
  timeout: 30m
log:
  level: info
`)
	t.Setenv("AERIE_CLI_LOG_LEVEL", "error")

	l := NewLoader(
		WithOptionalConfigFile(path),
		WithDefaults(map[string]any{
			"session.timeout": "12h",
			"log.level":       "warn",
			"log.file":        "default.log",
			"version.check":   true,
		}),
	)

	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Session.Timeout != 30*time.Minute {
		t.Errorf("Timeout = %v, want file value 30m", cfg.Session.Timeout)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("Level = %q, want env value error", cfg.Log.Level)
	}
	if cfg.Log.File != "default.log" {
		t.Errorf("File = %q, want default", cfg.Log.File)
	}
	if !cfg.Version.Check {
		t.Error("Check should keep its default")
	}

	if err := l.LoadMap(map[string]any{"log.level": "debug"}); err != nil {
		t.Fatal(err)
	}
	if err := l.Unmarshal(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level after LoadMap = %q, want debug", cfg.Log.Level)
	}
	if cfg.Session.Timeout != 30*time.Minute {
		t.Errorf("Timeout after LoadMap = %v, want 30m", cfg.Session.Timeout)
	}
}
