// Package migrations embeds the replica server's PostgreSQL schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
