// Package command provides the aerie-cli command definitions.
//
// Commands are built on urfave/cli/v2:
//
//   - root.go: application, global flags, per-invocation Runtime
//   - session.go: activate, deactivate, role, status
//   - configurations.go: configurations subcommand group
//   - errors.go: top-level error reporting
//
// The Runtime (settings, logger, credential store, session slot and
// dispatcher) is built once in the Before hook and reached from actions
// through cli.App.Metadata.
package command
