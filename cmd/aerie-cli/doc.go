// Package main provides the entry point for aerie-cli.
//
// aerie-cli logs in to an Aerie host and keeps one active session across
// invocations:
//
//   - activate, deactivate, role, status: session lifecycle
//   - configurations: host configuration management
//
// Usage:
//
//	aerie-cli configurations create --name local \
//	    --graphql-url http://localhost:8080/v1/graphql --gateway-url http://localhost:9000
//	aerie-cli activate --name local --username alice
//	aerie-cli status -o json
//	aerie-cli -c other-host status
package main
