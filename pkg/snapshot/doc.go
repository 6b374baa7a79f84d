// Package snapshot loads the role and binding snapshot the authorization
// engine evaluates.
//
// A Source returns one Record per user. Roles, line bindings and station
// bindings must come from a single consistent read: SQLSource runs every
// query for a user inside one read-only transaction, and FileSource swaps the
// whole document atomically on reload.
//
// VersionStore tracks a per-user snapshot version. Caches above this package
// key on it and bump it whenever a role or binding changes.
package snapshot
