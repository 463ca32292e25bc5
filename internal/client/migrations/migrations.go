// Package migrations embeds the local SQLite schema migrations.
//
// Every migration must be additive. A migration that drops or rewrites data
// must carry the DestructiveMarker comment so that the store file is copied
// aside before it runs.
package migrations

import "embed"

// DestructiveMarker flags a migration that may lose data.
const DestructiveMarker = "-- gophsync:destructive"

//go:embed *.sql
var Migrations embed.FS
