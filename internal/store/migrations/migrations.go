// Package migrations embeds the goose migrations for the local database.
package migrations

import "embed"

// Migrations holds the SQL migration files.
//
//go:embed *.sql
var Migrations embed.FS
