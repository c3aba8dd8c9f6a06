// Package connection provides the host transport and session for aerie-cli.
//
//   - http.go: HTTP client with a cookie jar, persistent headers and request IDs
//   - session.go: HostSession login, role selection, liveness and GraphQL execution
//   - hosttest/: in-process fake host used by tests
//
// A HostSession is never persisted directly. Its Descriptor is what the
// persistence layer writes, and FromDescriptor rebuilds a session on a
// fresh HTTPClient.
package connection
