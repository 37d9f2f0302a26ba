package postgres

import "embed"

// MigrationsFS - схема хранилища записей, применяется через pkg/postgres.Migrate
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
