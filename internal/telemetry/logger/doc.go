// Package logger provides structured logging for aerie-cli.
//
//   - logger.go: slog configuration, console and debug file sinks
//   - fanout.go: handler that writes one record to several sinks
//   - context.go: context-aware logging with command and request IDs
//   - redact.go: sensitive data redaction
package logger
