package command

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/cli/connection"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/cli/output"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/cli/prompt"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/core/domain"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/core/service"
)

// ActivateCommand returns the activate command.
func ActivateCommand() *cli.Command {
	return &cli.Command{
		Name:  "activate",
		Usage: "Log in to a host and make it the active session",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Configuration to activate (prompted when omitted)",
			},
			&cli.StringFlag{
				Name:    "username",
				Aliases: []string{"u"},
				Usage:   "Username, overriding the configuration's",
			},
			&cli.StringFlag{
				Name:    "role",
				Aliases: []string{"r"},
				Usage:   "Role to assume instead of the token's default",
			},
		},
		Action: activateAction,
	}
}

func activateAction(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}

	name := c.String("name")
	if name == "" {
		if name, err = selectConfiguration(rt); err != nil {
			return err
		}
	}
	cfg, err := rt.Store.Get(name)
	if err != nil {
		return err
	}

	ctx := commandContext(c)
	opts, err := rt.Dispatcher.Credentials(ctx, cfg, service.LoginOptions{Username: c.String("username")})
	if err != nil {
		return err
	}

	sp := output.NewSpinner(rt.Out, fmt.Sprintf("Authenticating with %s", cfg.GatewayURL))
	sp.Start()
	s, err := rt.Dispatcher.Login(ctx, cfg, opts)
	if err != nil {
		sp.Fail("Activation failed")
		return err
	}
	if role := c.String("role"); role != "" {
		if err := s.ChangeRole(role); err != nil {
			sp.Fail("Activation failed")
			return err
		}
	}

	ok, err := rt.Sessions.SetActiveSession(ctx, s)
	if err != nil {
		sp.Fail("Activation failed")
		return err
	}
	if !ok {
		sp.Fail("Activation failed")
		return domain.ErrAuthentication.WithDetails("host did not accept the new session")
	}

	sp.Success(fmt.Sprintf("Activated %s", cfg.Name))
	fmt.Fprintf(rt.Out, "Active role: %s\n", s.ActiveRole())
	return nil
}

// selectConfiguration asks the operator to pick a stored configuration.
func selectConfiguration(rt *Runtime) (string, error) {
	configs, err := rt.Store.List()
	if err != nil {
		return "", err
	}
	if len(configs) == 0 {
		return "", domain.ErrConfigurationNotFound.WithDetails(
			"no configurations stored; add one with \"aerie-cli configurations create\"")
	}
	choices := make([]prompt.Choice, len(configs))
	for i, cfg := range configs {
		choices[i] = prompt.Choice{Value: cfg.Name, Detail: cfg.GatewayURL}
	}
	return rt.Prompt.Select("Select a configuration", choices)
}

// DeactivateCommand returns the deactivate command.
func DeactivateCommand() *cli.Command {
	return &cli.Command{
		Name:   "deactivate",
		Usage:  "Forget the active session",
		Action: deactivateAction,
	}
}

func deactivateAction(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}

	name, err := rt.Sessions.UnsetActiveSession()
	if err != nil {
		return err
	}
	if name == "" {
		fmt.Fprintln(rt.Out, "No active session")
		return nil
	}
	output.Successf(rt.Out, "Deactivated %s", name)
	return nil
}

// RoleCommand returns the role command.
func RoleCommand() *cli.Command {
	return &cli.Command{
		Name:  "role",
		Usage: "Change the role presented to the host",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "role",
				Aliases: []string{"r"},
				Usage:   "Role to assume (prompted when omitted)",
			},
		},
		Action: roleAction,
	}
}

func roleAction(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}

	ctx := commandContext(c)
	s, err := rt.Dispatcher.ResolveSession(ctx)
	if err != nil {
		return err
	}
	if !s.Authenticated() {
		return domain.ErrUnauthenticated
	}

	role := c.String("role")
	if role == "" {
		if role, err = selectRole(rt, s); err != nil {
			return err
		}
	}
	if err := s.ChangeRole(role); err != nil {
		return err
	}

	// An override session is never persisted.
	if c.String("configuration") == "" {
		ok, err := rt.Sessions.SetActiveSession(ctx, s)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NoActiveSession(domain.NoSessionRevoked, nil)
		}
	}
	output.Successf(rt.Out, "Changed role to %s", s.ActiveRole())
	return nil
}

func selectRole(rt *Runtime, s *connection.HostSession) (string, error) {
	roles := slices.Clone(s.Token().AllowedRoles)
	slices.Sort(roles)
	choices := make([]prompt.Choice, len(roles))
	for i, r := range roles {
		choices[i] = prompt.Choice{Value: r}
		if r == s.ActiveRole() {
			choices[i].Detail = "(active)"
		}
	}
	return rt.Prompt.Select("Select a role", choices)
}

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show the session commands run against",
		Action: statusAction,
	}
}

// statusView is the machine readable form of status.
type statusView struct {
	Configuration string     `json:"configuration"`
	GraphQLURL    string     `json:"graphql_url"`
	GatewayURL    string     `json:"gateway_url"`
	Username      string     `json:"username,omitempty"`
	ActiveRole    string     `json:"active_role,omitempty"`
	AllowedRoles  []string   `json:"allowed_roles,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func statusAction(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}

	s, err := rt.Dispatcher.ResolveSession(commandContext(c))
	if err != nil {
		return err
	}

	view := statusView{
		Configuration: s.ConfigurationName(),
		GraphQLURL:    s.GraphQLURL(),
		GatewayURL:    s.GatewayURL(),
		ActiveRole:    s.ActiveRole(),
	}
	if tok := s.Token(); tok != nil {
		view.Username = tok.Username
		view.AllowedRoles = slices.Sorted(slices.Values(tok.AllowedRoles))
	}
	if created := rt.Sessions.CreatedAt(); c.String("configuration") == "" && !created.IsZero() {
		expires := rt.Sessions.ExpiresAt()
		view.CreatedAt = &created
		view.ExpiresAt = &expires
	}

	if rt.Format != output.FormatTable {
		return output.NewFormatter(rt.Format).Format(rt.Out, view)
	}

	fields := []output.Field{
		{Label: "Configuration", Value: view.Configuration},
		{Label: "Gateway", Value: view.GatewayURL},
		{Label: "GraphQL", Value: view.GraphQLURL},
		{Label: "Username", Value: view.Username},
		{Label: "Role", Value: view.ActiveRole},
		{Label: "Allowed roles", Value: strings.Join(view.AllowedRoles, ", ")},
	}
	if view.CreatedAt != nil {
		fields = append(fields,
			output.Field{Label: "Created", Value: humanize.Time(*view.CreatedAt)},
			output.Field{Label: "Expires", Value: humanize.Time(*view.ExpiresAt)},
		)
	}
	fmt.Fprintln(rt.Out, output.Box("Active session", fields))
	return nil
}
