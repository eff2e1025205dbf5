package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the remote store schema. Each file registers itself from init.
var Migrations = migrate.NewMigrations()
