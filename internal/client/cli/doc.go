// Package cli provides the interactive WetMap field client.
//
// It wires configuration, the local store, the record store API, the
// connectivity monitor and the reconciliation engine behind a small REPL.
// Typical flow: resume or prompt for a session, start the background
// connectivity and sync loops, then execute user commands.
//
// Key features:
//   - Login / Logout (online with offline fallback)
//   - List, add, edit and delete locations, online or offline
//   - Manual sync and sync status
//   - User administration while connected
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
