package config

import "time"

// CLIConfig holds the settings of one aerie-cli invocation.
type CLIConfig struct {
	Config  DirConfig     `koanf:"config"`
	Session SessionConfig `koanf:"session"`
	HTTP    HTTPConfig    `koanf:"http"`
	Log     LogConfig     `koanf:"log"`
	Output  OutputConfig  `koanf:"output"`
	Metrics MetricsConfig `koanf:"metrics"`
	TLS     TLSConfig     `koanf:"tls"`
	Version VersionConfig `koanf:"version"`
}

// DirConfig locates the settings directory.
type DirConfig struct {
	Dir string `koanf:"dir" validate:"required"`
}

// SessionConfig tunes the active session slot.
type SessionConfig struct {
	// Timeout is measured from the moment a session is activated.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// HTTPConfig tunes host requests.
type HTTPConfig struct {
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// LogConfig configures the console and the debug log file.
type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`

	// File is the debug log path; empty means <dir>/aerie_cli.log.
	File string `koanf:"file"`
}

// OutputConfig selects how command results are rendered.
type OutputConfig struct {
	Format string `koanf:"format" validate:"oneof=table json yaml"`
}

// MetricsConfig enables the metrics textfile written at exit.
type MetricsConfig struct {
	File string `koanf:"file"`
}

// TLSConfig adds trust roots for hosts behind a private CA.
type TLSConfig struct {
	CA string `koanf:"ca" validate:"omitempty,file"`
}

// VersionConfig controls the host version check at login.
type VersionConfig struct {
	Check bool `koanf:"check"`
}

// Default returns the default settings rooted at dir.
func Default(dir string) *CLIConfig {
	return &CLIConfig{
		Config:  DirConfig{Dir: dir},
		Session: SessionConfig{Timeout: 12 * time.Hour},
		HTTP:    HTTPConfig{Timeout: 30 * time.Second},
		Log:     LogConfig{Level: "warn"},
		Output:  OutputConfig{Format: "table"},
		Version: VersionConfig{Check: true},
	}
}

// defaults is Default in the shape the loader merges.
func defaults(dir string) map[string]any {
	d := Default(dir)
	return map[string]any{
		"config.dir":      d.Config.Dir,
		"session.timeout": d.Session.Timeout.String(),
		"http.timeout":    d.HTTP.Timeout.String(),
		"log.level":       d.Log.Level,
		"log.file":        "",
		"output.format":   d.Output.Format,
		"metrics.file":    "",
		"tls.ca":          "",
		"version.check":   d.Version.Check,
	}
}
