// Package domain defines the core domain models for aerie-cli.
//
// Domain models are pure value objects without any IO dependencies or
// framework coupling. This package contains:
//
//   - HostConfiguration: named connection profile for one host deployment
//   - Token: parsed bearer credential with role claims
//   - SessionDescriptor: serializable form of a host session
//   - Errors: coded error taxonomy shared by every layer
package domain
