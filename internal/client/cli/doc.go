// Package cli provides the interactive gophsync command-line client.
//
// NewApp opens the local store under the data directory, sweeps orphaned
// transfer files, builds the replica client and the sync engine, and wraps
// them in the entity façade. App.Run starts the engine status loop, the
// transfer session sweeper and the temp-dir watcher, then blocks in the REPL.
//
// Every command works offline. Changes are written locally first and show a
// '*' in listings until the engine has replicated them.
package cli
