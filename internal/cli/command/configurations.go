package command

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/cli/output"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/core/domain"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/storage/credential"
)

// ConfigurationsCommand returns the configurations subcommand group.
func ConfigurationsCommand() *cli.Command {
	return &cli.Command{
		Name:    "configurations",
		Aliases: []string{"configs"},
		Usage:   "Manage host configurations",
		Subcommands: []*cli.Command{
			{
				Name:   "create",
				Usage:  "Add a configuration (missing values are prompted)",
				Flags:  configurationFlags(),
				Action: configurationsCreate,
			},
			{
				Name:      "update",
				Usage:     "Change fields of a configuration",
				ArgsUsage: "NAME",
				Flags:     configurationFlags(),
				Action:    configurationsUpdate,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a configuration",
				ArgsUsage: "NAME",
				Action:    configurationsDelete,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List configurations",
				Action:  configurationsList,
			},
			{
				Name:      "show",
				Usage:     "Show one configuration",
				ArgsUsage: "NAME",
				Action:    configurationsShow,
			},
			{
				Name:  "load",
				Usage: "Import configurations from a JSON file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "JSON array of configurations; comments are allowed",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "replace",
						Usage: "Overwrite configurations that already exist",
					},
				},
				Action: configurationsLoad,
			},
			{
				Name:  "clean",
				Usage: "Delete every configuration and the active session",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Skip confirmation",
					},
				},
				Action: configurationsClean,
			},
		},
	}
}

func configurationFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Configuration name"},
		&cli.StringFlag{Name: "graphql-url", Usage: "GraphQL endpoint URL"},
		&cli.StringFlag{Name: "gateway-url", Usage: "Gateway URL"},
		&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "Default username"},
		&cli.StringFlag{Name: "external-auth-url", Usage: "Authentication proxy URL"},
		&cli.StringSliceFlag{Name: "static-post-var", Usage: "Proxy form value as KEY=VALUE"},
		&cli.StringSliceFlag{Name: "secret-post-var", Usage: "Proxy form field prompted at login"},
	}
}

// applyConfigurationFlags copies the flags that were set onto cfg.
func applyConfigurationFlags(c *cli.Context, cfg *domain.HostConfiguration) error {
	if c.IsSet("name") {
		cfg.Name = c.String("name")
	}
	if c.IsSet("graphql-url") {
		cfg.GraphQLURL = c.String("graphql-url")
	}
	if c.IsSet("gateway-url") {
		cfg.GatewayURL = c.String("gateway-url")
	}
	if c.IsSet("username") {
		cfg.Username = c.String("username")
	}

	if !c.IsSet("external-auth-url") && !c.IsSet("static-post-var") && !c.IsSet("secret-post-var") {
		return nil
	}
	if cfg.ExternalAuth == nil {
		cfg.ExternalAuth = &domain.ExternalAuthConfig{}
	}
	ea := cfg.ExternalAuth
	if c.IsSet("external-auth-url") {
		ea.AuthURL = c.String("external-auth-url")
		if ea.AuthURL == "" {
			cfg.ExternalAuth = nil
			return nil
		}
	}
	if c.IsSet("static-post-var") {
		vars, err := parseKeyValues(c.StringSlice("static-post-var"))
		if err != nil {
			return err
		}
		ea.StaticPostVars = vars
	}
	if c.IsSet("secret-post-var") {
		ea.SecretPostVars = c.StringSlice("secret-post-var")
	}
	return nil
}

func parseKeyValues(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid KEY=VALUE pair %q", p)
		}
		out[k] = v
	}
	return out, nil
}

func configurationsCreate(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}

	var cfg domain.HostConfiguration
	if err := applyConfigurationFlags(c, &cfg); err != nil {
		return err
	}
	for _, field := range []struct {
		label string
		value *string
	}{
		{"Name", &cfg.Name},
		{"GraphQL URL", &cfg.GraphQLURL},
		{"Gateway URL", &cfg.GatewayURL},
	} {
		if *field.value != "" {
			continue
		}
		if *field.value, err = rt.Prompt.Input(field.label); err != nil {
			return err
		}
	}

	if err := rt.Store.Create(cfg); err != nil {
		return err
	}
	output.Successf(rt.Out, "Created configuration %s", cfg.Name)
	return nil
}

func configurationsUpdate(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("configuration name required")
	}

	cfg, err := rt.Store.Get(name)
	if err != nil {
		return err
	}
	if err := applyConfigurationFlags(c, &cfg); err != nil {
		return err
	}
	if cfg.Name != name {
		return domain.ErrConfigurationInvalid.WithDetails("a configuration cannot be renamed; create a new one instead")
	}
	if err := rt.Store.Update(cfg); err != nil {
		return err
	}
	output.Successf(rt.Out, "Updated configuration %s", name)
	return nil
}

func configurationsDelete(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("configuration name required")
	}

	if err := rt.Store.Delete(name); err != nil {
		return err
	}
	output.Successf(rt.Out, "Deleted configuration %s", name)
	return nil
}

// configurationRow is the table form of a configuration.
type configurationRow struct {
	Name         string `table:"NAME"`
	GatewayURL   string `table:"GATEWAY"`
	GraphQLURL   string `table:"GRAPHQL"`
	Username     string `table:"USERNAME"`
	ExternalAuth string `table:"EXTERNAL AUTH"`
}

func toRow(cfg domain.HostConfiguration) configurationRow {
	row := configurationRow{
		Name:       cfg.Name,
		GatewayURL: cfg.GatewayURL,
		GraphQLURL: cfg.GraphQLURL,
		Username:   cfg.Username,
	}
	if cfg.ExternalAuth != nil {
		row.ExternalAuth = cfg.ExternalAuth.AuthURL
	}
	return row
}

func configurationsList(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}

	configs, err := rt.Store.List()
	if err != nil {
		return err
	}
	if rt.Format != output.FormatTable {
		return output.NewFormatter(rt.Format).Format(rt.Out, configs)
	}
	if len(configs) == 0 {
		fmt.Fprintln(rt.Out, "No configurations")
		return nil
	}

	rows := make([]configurationRow, len(configs))
	for i, cfg := range configs {
		rows[i] = toRow(cfg)
	}
	return output.NewFormatter(rt.Format).Format(rt.Out, rows)
}

func configurationsShow(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("configuration name required")
	}

	cfg, err := rt.Store.Get(name)
	if err != nil {
		return err
	}
	if rt.Format != output.FormatTable {
		return output.NewFormatter(rt.Format).Format(rt.Out, cfg)
	}

	fields := []output.Field{
		{Label: "GraphQL", Value: cfg.GraphQLURL},
		{Label: "Gateway", Value: cfg.GatewayURL},
		{Label: "Username", Value: cfg.Username},
	}
	if ea := cfg.ExternalAuth; ea != nil {
		static := slices.Sorted(maps.Keys(ea.StaticPostVars))
		fields = append(fields,
			output.Field{Label: "External auth", Value: ea.AuthURL},
			output.Field{Label: "Static vars", Value: strings.Join(static, ", ")},
			output.Field{Label: "Secret vars", Value: strings.Join(ea.SecretPostVars, ", ")},
		)
	}
	fmt.Fprintln(rt.Out, output.Box(cfg.Name, fields))
	return nil
}

func configurationsLoad(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}
	path := c.String("input")

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ErrConfigurationStorage.WithDetails(path).WithCause(err)
	}
	configs, err := credential.Decode(data)
	if err != nil {
		return err
	}

	var added, replaced, skipped int
	for _, cfg := range configs {
		err := rt.Store.Create(cfg)
		switch {
		case err == nil:
			added++
		case domain.IsDomainError(err, domain.ErrConfigurationConflict.Code) && c.Bool("replace"):
			if err := rt.Store.Update(cfg); err != nil {
				return err
			}
			replaced++
		case domain.IsDomainError(err, domain.ErrConfigurationConflict.Code):
			output.Warnf(rt.Err, "Skipped %s: already exists (use --replace to overwrite)", cfg.Name)
			skipped++
		default:
			return err
		}
	}

	output.Successf(rt.Out, "Loaded %d configurations from %s (%d added, %d replaced, %d skipped)",
		len(configs), path, added, replaced, skipped)
	return nil
}

func configurationsClean(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}

	if !c.Bool("yes") {
		ok, err := rt.Prompt.Confirm("Delete every configuration and the active session?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(rt.Out, "Cancelled")
			return nil
		}
	}

	n, err := rt.Store.Clear()
	if err != nil {
		return err
	}
	if err := rt.Sessions.Reset(); err != nil {
		return err
	}
	output.Successf(rt.Out, "Removed %d configurations and the active session", n)
	return nil
}
