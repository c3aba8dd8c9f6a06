package command

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/cli/config"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/cli/connection"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/cli/output"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/cli/prompt"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/core/service"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/infra/buildinfo"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/infra/shutdown"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/infra/tlsroots"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/storage/credential"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/storage/sessionfile"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/telemetry/logger"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/telemetry/metric"
)

const runtimeKey = "runtime"

// Runtime holds the objects built once per invocation and shared by every
// command through cli.App.Metadata.
type Runtime struct {
	Config     *config.CLIConfig
	Log        logger.Logger
	Metrics    *metric.Registry
	Store      *credential.Store
	Records    *sessionfile.Manager
	Sessions   *service.PersistenceManager
	Dispatcher *service.Dispatcher
	Prompt     *prompt.Terminal
	Format     output.Format
	Shutdown   *shutdown.Handler

	Out io.Writer
	Err io.Writer
}

// App creates the CLI application on the process streams.
func App() *cli.App {
	return NewApp(os.Stdin, os.Stdout, os.Stderr)
}

// NewApp creates the CLI application reading answers from in.
func NewApp(in io.Reader, out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:    "aerie-cli",
		Usage:   "Command-line client for an Aerie planning host",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			ActivateCommand(),
			DeactivateCommand(),
			RoleCommand(),
			StatusCommand(),
			ConfigurationsCommand(),
		},
		Before:    setup,
		Reader:    in,
		Writer:    out,
		ErrWriter: errOut,
		Metadata:  map[string]any{},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "configuration",
			Aliases: []string{"c"},
			Usage:   "Run against a configuration name or file instead of the active session",
		},
		&cli.StringFlag{
			Name:  "hasura-admin-secret",
			Usage: "Send the admin secret with every GraphQL request",
		},
		&cli.StringFlag{
			Name:    "config-dir",
			Usage:   "Directory holding configurations and session records",
			EnvVars: []string{config.EnvConfigDir},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Console log level: debug, info, warn, error",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Log debug output to the console",
		},
		&cli.BoolFlag{
			Name:  "no-version-check",
			Usage: "Continue when the host version is not known to be compatible",
		},
	}
}

// settingFlags maps explicitly set global flags onto setting keys so they
// override the file and environment.
func settingFlags(c *cli.Context) map[string]any {
	flags := make(map[string]any)
	if c.IsSet("config-dir") {
		flags["config.dir"] = c.String("config-dir")
	}
	if c.IsSet("output") {
		flags["output.format"] = c.String("output")
	}
	if c.IsSet("log-level") {
		flags["log.level"] = c.String("log-level")
	}
	if c.Bool("verbose") {
		flags["log.level"] = "debug"
	}
	if c.Bool("no-version-check") {
		flags["version.check"] = false
	}
	return flags
}

// setup builds the Runtime. Exit hooks are registered as each resource is
// acquired so a partial setup is still released.
func setup(c *cli.Context) error {
	cfg, err := config.Load(settingFlags(c))
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	rt := &Runtime{
		Config:   cfg,
		Format:   format,
		Shutdown: shutdown.NewHandler(0),
		Out:      c.App.Writer,
		Err:      c.App.ErrWriter,
	}
	c.App.Metadata[runtimeKey] = rt

	logFile, logErr := logger.OpenFile(cfg.LogFilePath())
	var file io.Writer
	if logErr == nil {
		file = logFile
		rt.Shutdown.OnShutdown("debug log", func(context.Context) error {
			return logFile.Close()
		})
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Output: rt.Err, File: file})
	if err != nil {
		return err
	}
	logger.SetDefault(log)
	rt.Log = log
	if logErr != nil {
		log.Warn("debug log unavailable", "path", cfg.LogFilePath(), "error", logErr)
	}
	log.Debug("invocation", "args", c.Args().Slice(), "version", buildinfo.Get().Version, "config_dir", cfg.Config.Dir)

	rt.Store = credential.NewStore(cfg.ConfigurationsPath())
	rt.Records, err = sessionfile.NewManager(sessionfile.DefaultConfig(cfg.SessionsDir()))
	if err != nil {
		return err
	}

	rt.Metrics = metric.NewRegistry()
	if err := rt.Metrics.Register(metric.NewCollector(rt.localState)); err != nil {
		return err
	}
	if path := cfg.Metrics.File; path != "" {
		rt.Shutdown.OnShutdown("metrics", func(context.Context) error {
			return rt.Metrics.WriteFile(path)
		})
	}

	tlsConfig, err := tlsroots.ClientConfig(cfg.TLS.CA)
	if err != nil {
		return fmt.Errorf("load CA bundle: %w", err)
	}
	newClient := func() (*connection.HTTPClient, error) {
		return connection.NewHTTPClient(connection.HTTPClientOptions{
			Timeout:   cfg.HTTP.Timeout,
			TLSConfig: tlsConfig,
			UserAgent: buildinfo.UserAgent(),
			Metrics:   rt.Metrics,
			Logger:    log,
		})
	}

	rt.Sessions = service.NewPersistenceManager(service.PersistenceOptions{
		Records:   rt.Records,
		NewClient: newClient,
		Timeout:   cfg.Session.Timeout,
		Metrics:   rt.Metrics,
		Logger:    log,
	})
	rt.Prompt = prompt.New(c.App.Reader, rt.Err)
	rt.Dispatcher = service.NewDispatcher(service.DispatchOptions{
		Configurations:   rt.Store,
		Persistence:      rt.Sessions,
		NewClient:        newClient,
		Prompter:         rt.Prompt,
		Logger:           log,
		Override:         c.String("configuration"),
		AdminSecret:      c.String("hasura-admin-secret"),
		SkipVersionCheck: !cfg.Version.Check,
	})
	return nil
}

// localState feeds the metrics collector.
func (rt *Runtime) localState() (int, int, error) {
	names, err := rt.Store.Names()
	if err != nil {
		return 0, 0, err
	}
	infos, err := rt.Records.List()
	if err != nil {
		return 0, 0, err
	}
	return len(names), len(infos), nil
}

// runtimeOf returns the Runtime built by setup, or nil before setup ran.
func runtimeOf(app *cli.App) *Runtime {
	rt, _ := app.Metadata[runtimeKey].(*Runtime)
	return rt
}

// getRuntime retrieves the Runtime from a command context.
func getRuntime(c *cli.Context) (*Runtime, error) {
	rt := runtimeOf(c.App)
	if rt == nil || rt.Dispatcher == nil {
		return nil, fmt.Errorf("runtime not initialized")
	}
	return rt, nil
}

// commandContext tags the invocation context with the running command so
// host request logs can be traced back to it.
func commandContext(c *cli.Context) context.Context {
	return logger.WithCommand(c.Context, c.Command.FullName())
}

// Execute runs app with args, reports any failure on the app's error
// stream and runs the exit hooks. It returns the process exit code.
func Execute(ctx context.Context, app *cli.App, args []string) int {
	err := app.RunContext(ctx, args)
	code := Report(app.ErrWriter, err)

	if rt := runtimeOf(app); rt != nil {
		if herr := rt.Shutdown.Run(); herr != nil {
			fmt.Fprintf(app.ErrWriter, "warning: %v\n", herr)
		}
	}
	return code
}
