package playbook

import (
	"context"
	"embed"

	"github.com/uptrace/bun"

	"github.com/mwtmurphy/go-playbook/internal/migrations"
)

//go:embed data/sql/migrations/*.sql
var migrationsFS embed.FS

// GetMigrationsFS returns the embedded migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// RunMigrations applies the embedded schema migrations to db. Already applied
// files are skipped, so hosts can call it on every start.
func RunMigrations(ctx context.Context, db *bun.DB) error {
	return migrations.Apply(ctx, db, migrationsFS, "data/sql/migrations")
}
