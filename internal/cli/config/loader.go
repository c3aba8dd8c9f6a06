package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/infra/confloader"
)

const (
	// AppDirName is the settings directory name under the user config dir.
	AppDirName = "aerie_cli"

	// FileName is the optional YAML settings file inside the settings dir.
	FileName = "cli.yaml"

	// EnvConfigDir overrides the settings directory.
	EnvConfigDir = confloader.DefaultEnvPrefix + "CONFIG_DIR"

	configurationsFile = "config.json"
	sessionsDir        = "sessions"
	logFile            = "aerie_cli.log"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DefaultDir returns $XDG_CONFIG_HOME/aerie_cli, falling back to
// ~/.config/aerie_cli.
func DefaultDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", AppDirName)
	}
	return filepath.Join(home, ".config", AppDirName)
}

// Load resolves settings from defaults, <dir>/cli.yaml, AERIE_CLI_*
// variables and finally flags, keyed by dotted path ("log.level").
func Load(flags map[string]any) (*CLIConfig, error) {
	dir := DefaultDir()
	if env := os.Getenv(EnvConfigDir); env != "" {
		dir = env
	}
	if v, ok := flags["config.dir"].(string); ok && v != "" {
		dir = v
	}

	loader := confloader.NewLoader(
		confloader.WithOptionalConfigFile(filepath.Join(dir, FileName)),
		confloader.WithDefaults(defaults(dir)),
	)

	var cfg CLIConfig
	if err := loader.Load(&cfg); err != nil {
		return nil, err
	}
	if len(flags) > 0 {
		if err := loader.LoadMap(flags); err != nil {
			return nil, err
		}
		if err := loader.Unmarshal(&cfg); err != nil {
			return nil, fmt.Errorf("unmarshal flags: %w", err)
		}
	}
	cfg.Config.Dir = dir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *CLIConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// ConfigurationsPath is the host configuration file.
func (c *CLIConfig) ConfigurationsPath() string {
	return filepath.Join(c.Config.Dir, configurationsFile)
}

// SessionsDir holds the active session record.
func (c *CLIConfig) SessionsDir() string {
	return filepath.Join(c.Config.Dir, sessionsDir)
}

// LogFilePath is the debug log file.
func (c *CLIConfig) LogFilePath() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return filepath.Join(c.Config.Dir, logFile)
}
