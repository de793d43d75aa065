// Package migrations embeds SQL migration files for the SQLite stores.
//
// Control holds the schema of the domain registry database; Domain holds
// the schema created in every per-domain database.
package migrations

import "embed"

// Control contains the control database migrations.
//
//go:embed control/*.sql
var Control embed.FS

// Domain contains the per-domain database migrations.
//
//go:embed domain/*.sql
var Domain embed.FS
