package db

import (
	"context"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

var identPart = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ParseTable splits a "schema.table" or "table" name into an identifier.
// Each part must be a plain SQL identifier.
func ParseTable(name string) (pgx.Identifier, error) {
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return nil, eris.Errorf("db: invalid table name %q", name)
	}
	for _, p := range parts {
		if !identPart.MatchString(p) {
			return nil, eris.Errorf("db: invalid table name %q", name)
		}
	}
	return pgx.Identifier(parts), nil
}

// CopyFrom bulk-inserts rows into table using the COPY protocol.
func CopyFrom(ctx context.Context, pool Pool, table pgx.Identifier, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := pool.CopyFrom(ctx, table, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", strings.Join(table, "."))
	}
	return n, nil
}

// ReplaceTable swaps the contents of table for rows in one transaction:
// TRUNCATE followed by COPY. Readers see either the old or the new rows.
func ReplaceTable(ctx context.Context, pool Pool, table pgx.Identifier, columns []string, rows [][]any) (int64, error) {
	name := strings.Join(table, ".")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "db: replace %s: begin tx", name)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "TRUNCATE "+table.Sanitize()); err != nil {
		return 0, eris.Wrapf(err, "db: replace %s: truncate", name)
	}

	var n int64
	if len(rows) > 0 {
		n, err = tx.CopyFrom(ctx, table, columns, pgx.CopyFromRows(rows))
		if err != nil {
			return 0, eris.Wrapf(err, "db: replace %s: COPY", name)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "db: replace %s: commit", name)
	}
	return n, nil
}
