// Package buildinfo provides build information for aerie-cli.
//
// This package exposes build-time information injected via ldflags:
//
//   - Version: semantic version, also sent in the User-Agent header
//   - Commit: git commit hash
//   - BuildTime: build timestamp
//
// Usage:
//
//	go build -ldflags "-X buildinfo.Version=3.1.0 -X buildinfo.Commit=abc123"
package buildinfo
