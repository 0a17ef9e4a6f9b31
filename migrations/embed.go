// Package migrations embeds cyncd's SQL schema files into the binary so
// the audit database can be initialised without the .sql files present
// on the filesystem.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
)

//go:embed *.sql
var FS embed.FS

// Apply executes every embedded .sql file against db, in filename
// order. Each file is expected to be idempotent (CREATE TABLE/INDEX IF
// NOT EXISTS) since there is no migrations-applied tracking table -
// cyncd's schema is small enough that re-running it on every startup is
// cheaper than building version tracking for it.
func Apply(ctx context.Context, db *sql.DB) error {
	entries, err := FS.ReadDir(".")
	if err != nil {
		return fmt.Errorf("reading embedded migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		b, err := FS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(b)); err != nil {
			return fmt.Errorf("applying migration %s: %w", name, err)
		}
	}
	return nil
}
