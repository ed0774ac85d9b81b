package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

const trackingTable = "schema_migrations"

// statementSeparator splits one migration file into individually executed
// statements, matching the go-persistence-bun file convention.
const statementSeparator = "---bun:split"

// Apply executes the *.up.sql files under root that are not yet recorded in
// the schema_migrations table. Files run in name order, one transaction per
// file. Postgres jsonb cast defaults are stripped when the target dialect is
// SQLite.
func Apply(ctx context.Context, db *bun.DB, fsys fs.FS, root string) error {
	if db == nil {
		return fmt.Errorf("migrations: database is required")
	}
	if fsys == nil {
		return fmt.Errorf("migrations: migration filesystem is required")
	}

	files, err := upFiles(fsys, root)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx,
		"CREATE TABLE IF NOT EXISTS "+trackingTable+" (name VARCHAR(255) PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL)",
	); err != nil {
		return fmt.Errorf("migrations: ensure tracking table: %w", err)
	}

	for _, name := range files {
		applied, err := isApplied(ctx, db, name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		raw, err := fs.ReadFile(fsys, path.Join(root, name))
		if err != nil {
			return fmt.Errorf("migrations: read %s: %w", name, err)
		}
		content := normalizeForDialect(string(raw), db.Dialect().Name())

		err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			for _, statement := range splitStatements(content) {
				if _, err := tx.ExecContext(ctx, statement); err != nil {
					return fmt.Errorf("migrations: exec %s: %w", name, err)
				}
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO "+trackingTable+" (name, applied_at) VALUES (?, ?)",
				name, time.Now().UTC(),
			); err != nil {
				return fmt.Errorf("migrations: record %s: %w", name, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// Applied returns the recorded migration names in application order.
func Applied(ctx context.Context, db *bun.DB) ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("migrations: database is required")
	}
	var names []string
	if err := db.NewSelect().
		Table(trackingTable).
		Column("name").
		OrderExpr("name ASC").
		Scan(ctx, &names); err != nil {
		return nil, fmt.Errorf("migrations: list applied: %w", err)
	}
	return names, nil
}

func upFiles(fsys fs.FS, root string) ([]string, error) {
	dir := strings.TrimSpace(root)
	if dir == "" {
		dir = "."
	}
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("migrations: read dir %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func isApplied(ctx context.Context, db *bun.DB, name string) (bool, error) {
	exists, err := db.NewSelect().
		Table(trackingTable).
		Where("name = ?", name).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("migrations: check %s: %w", name, err)
	}
	return exists, nil
}

func splitStatements(content string) []string {
	chunks := strings.Split(content, statementSeparator)
	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		statement := strings.TrimSpace(chunk)
		if statement == "" {
			continue
		}
		out = append(out, statement)
	}
	return out
}

// normalizeForDialect rewrites Postgres-first DDL for SQLite targets, which
// reject jsonb cast defaults.
func normalizeForDialect(content string, name dialect.Name) string {
	if name != dialect.SQLite {
		return content
	}
	content = strings.ReplaceAll(content, "::jsonb", "")
	content = strings.ReplaceAll(content, "::JSONB", "")
	return content
}
