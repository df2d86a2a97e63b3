// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime configuration, metrics and debug introspection for the server.
//
// Provides concurrent-safe state handling primitives including:
//   - Snapshot config reads and schema-validated atomic updates
//   - Reload listeners fired on accepted updates
//   - A metrics registry fed with engine counter snapshots
//   - Debug probes evaluated on demand
package control
