// Package entities persists user entities in the local SQLite store.
//
// Every write bumps the row revision and flags the row UNSYNCED. The sync
// engine acknowledges a replicated row with MarkSynced, which only succeeds
// when the revision it replicated is still the current one.
package entities
