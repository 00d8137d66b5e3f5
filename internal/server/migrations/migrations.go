// Package migrations embeds the collector's PostgreSQL schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
