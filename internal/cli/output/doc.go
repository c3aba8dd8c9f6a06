// Package output renders command results for aerie-cli.
//
//   - formatter.go: Formatter interface and format selection
//   - table.go: aligned tables; times are shown relative to now
//   - json.go, yaml.go: machine-readable output
//   - styles.go: lipgloss styles, status lines and boxes
//   - spinner.go: progress animation while waiting on the host
package output
