// Package migrations embeds the Postgres schema.
package migrations

import "embed"

//go:embed postgres/*.sql
var Postgres embed.FS

// PostgresDir is the directory inside Postgres holding the migration files.
const PostgresDir = "postgres"
