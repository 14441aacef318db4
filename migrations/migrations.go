// Package migrations embeds the SQL schema files applied at startup.
package migrations

import "embed"

// FS holds the migration files. They are applied in lexical order by
// database.RunMigrations.
//
//go:embed *.sql
var FS embed.FS
