package db

import "embed"

// MigrationFS embeds SQL migration files from internal/db/migrations.
// Applied in order by internal/db/migrate; cmd/migrate is the only caller.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
