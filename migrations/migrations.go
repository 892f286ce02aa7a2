// Package migrations embeds the schema migrations for each supported database.
package migrations

import "embed"

// Embedded migration files bundled at compile time.
//
//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

//go:embed postgres/*.sql
var PostgresMigrations embed.FS
