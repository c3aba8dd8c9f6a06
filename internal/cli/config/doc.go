// Package config resolves aerie-cli settings.
//
//   - spec.go: CLIConfig and its defaults
//   - loader.go: layered loading and the paths derived from the settings dir
//
// The settings dir holds config.json (host configurations), sessions/
// (the active session record), aerie_cli.log and the optional cli.yaml.
package config
