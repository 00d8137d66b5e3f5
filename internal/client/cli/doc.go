// Package cli provides the interactive tallysync client.
//
// It wires configuration, the local store, the sync engine and scheduler,
// the connectivity watcher and the status server, then runs a REPL that
// works the same whether or not the remote side is reachable.
//
// Key features:
//   - add / update / delete / list records of any configured collection
//   - pending: unsynced counts per collection
//   - sync: run a pass now; status: syncing flag and progress
//   - offline on|off: toggle background syncing
//
// The REPL is started via App.Run(ctx), which blocks until the user exits
// or ctx is cancelled. See App and runREPL for details.
package cli
