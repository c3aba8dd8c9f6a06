// Package service provides the session services behind aerie-cli commands.
//
// This package contains:
//
//   - PersistenceManager: the single active session slot, backed by the
//     newest session record on disk
//   - Dispatcher: picks the session a command runs against, either a
//     configuration override or the active session
//
// Storage and transport are injected (RecordStore, ConfigurationSource,
// ClientFactory, Prompter) so tests run against temp dirs and a fake host.
package service
