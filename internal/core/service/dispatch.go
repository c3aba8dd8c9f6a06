package service

import (
	"context"
	"fmt"
	"os"

	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/cli/connection"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/core/domain"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/storage/credential"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/telemetry/logger"
)

// ConfigurationSource looks up host configurations by name.
// credential.Store implements it.
type ConfigurationSource interface {
	Get(name string) (domain.HostConfiguration, error)
}

// Prompter collects values from the operator.
type Prompter interface {
	Input(label string) (string, error)
	Secret(label string) (string, error)
}

// DispatchOptions configures a Dispatcher for one invocation.
type DispatchOptions struct {
	Configurations ConfigurationSource
	Persistence    *PersistenceManager
	NewClient      ClientFactory
	Prompter       Prompter
	Logger         logger.Logger

	// Override names a configuration, or a path to a configuration file,
	// to use instead of the active session.
	Override string

	// AdminSecret is attached to the resolved session when set.
	AdminSecret string

	SkipVersionCheck bool
}

// LoginOptions carries credentials known up front. Empty fields are
// prompted for.
type LoginOptions struct {
	Username string
	Password string
	// Secrets holds external authentication values by post variable name.
	Secrets map[string]string
}

// Dispatcher decides which session a command runs against.
type Dispatcher struct {
	configs     ConfigurationSource
	persistence *PersistenceManager
	newClient   ClientFactory
	prompter    Prompter
	log         logger.Logger

	override         string
	adminSecret      string
	skipVersionCheck bool
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts DispatchOptions) *Dispatcher {
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}
	return &Dispatcher{
		configs:          opts.Configurations,
		persistence:      opts.Persistence,
		newClient:        opts.NewClient,
		prompter:         opts.Prompter,
		log:              log.With("component", "dispatch"),
		override:         opts.Override,
		adminSecret:      opts.AdminSecret,
		skipVersionCheck: opts.SkipVersionCheck,
	}
}

// Persistence returns the session slot.
func (d *Dispatcher) Persistence() *PersistenceManager {
	return d.persistence
}

// ResolveSession returns the session a command should use. With an
// override a fresh session is built and authenticated without touching
// persisted state; otherwise the active session is used. The admin
// secret, when set, requires an authenticated session.
func (d *Dispatcher) ResolveSession(ctx context.Context) (*connection.HostSession, error) {
	var (
		s   *connection.HostSession
		err error
	)
	if d.override != "" {
		cfg, cerr := d.ResolveConfiguration(d.override)
		if cerr != nil {
			return nil, cerr
		}
		d.log.Debug("using configuration override", "configuration", cfg.Name)
		s, err = d.Login(ctx, cfg, LoginOptions{})
	} else {
		s, err = d.persistence.GetActiveSession(ctx)
	}
	if err != nil {
		return nil, err
	}

	if d.adminSecret != "" {
		if err := s.SetAdminSecret(d.adminSecret); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ResolveConfiguration treats ref as a path when a file exists there and
// as a configuration name otherwise.
func (d *Dispatcher) ResolveConfiguration(ref string) (domain.HostConfiguration, error) {
	if fi, err := os.Stat(ref); err == nil && !fi.IsDir() {
		data, err := os.ReadFile(ref)
		if err != nil {
			return domain.HostConfiguration{}, domain.ErrConfigurationStorage.WithDetails(ref).WithCause(err)
		}
		return credential.DecodeOne(data)
	}
	return d.configs.Get(ref)
}

// Credentials fills the values missing from opts that logging in to cfg
// needs, prompting in order: external authentication secrets, username,
// password. The password is not asked for when the host runs without
// authentication.
func (d *Dispatcher) Credentials(ctx context.Context, cfg domain.HostConfiguration, opts LoginOptions) (LoginOptions, error) {
	var err error
	if ea := cfg.ExternalAuth; ea != nil {
		secrets := make(map[string]string, len(ea.SecretPostVars))
		for _, name := range ea.SecretPostVars {
			v, ok := opts.Secrets[name]
			if !ok {
				if v, err = d.secret(name); err != nil {
					return opts, err
				}
			}
			secrets[name] = v
		}
		opts.Secrets = secrets
	}

	if opts.Username == "" {
		opts.Username = cfg.Username
	}
	if opts.Username == "" {
		if opts.Username, err = d.input("Username"); err != nil {
			return opts, err
		}
	}
	if opts.Password == "" && d.authEnabled(ctx, cfg) {
		if opts.Password, err = d.secret(fmt.Sprintf("Password for %s", opts.Username)); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// Login builds a session for cfg and authenticates it, satisfying any
// external authentication proxy first. Missing credentials are prompted
// for. The session is not persisted.
func (d *Dispatcher) Login(ctx context.Context, cfg domain.HostConfiguration, opts LoginOptions) (*connection.HostSession, error) {
	opts, err := d.Credentials(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	client, err := d.newClient()
	if err != nil {
		return nil, err
	}
	s := connection.NewFromConfiguration(cfg, client)

	if cfg.ExternalAuth != nil {
		if err := s.ExternalAuthenticate(ctx, cfg.ExternalAuth, opts.Secrets); err != nil {
			return nil, err
		}
	}
	if err := s.Authenticate(ctx, opts.Username, opts.Password, connection.AuthOptions{SkipVersionCheck: d.skipVersionCheck}); err != nil {
		return nil, err
	}
	return s, nil
}

func (d *Dispatcher) authEnabled(ctx context.Context, cfg domain.HostConfiguration) bool {
	client, err := d.newClient()
	if err != nil {
		return true
	}
	return connection.NewFromConfiguration(cfg, client).AuthEnabled(ctx)
}

func (d *Dispatcher) input(label string) (string, error) {
	if d.prompter == nil {
		return "", domain.ErrAuthentication.WithDetails(label + " is required")
	}
	return d.prompter.Input(label)
}

func (d *Dispatcher) secret(label string) (string, error) {
	if d.prompter == nil {
		return "", domain.ErrAuthentication.WithDetails(label + " is required")
	}
	return d.prompter.Secret(label)
}
