package db

import (
	"strings"

	"github.com/jackc/pgx/v5"
)

// Ident quotes a table or index name. Workspace tables contain '-', so every
// dynamic name must go through here. The output is valid for SQLite too.
func Ident(name string) string {
	parts := strings.SplitN(name, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{name}.Sanitize()
}

// IndexName derives a deterministic index name for table and suffix.
func IndexName(table, suffix string) string {
	return Ident(table + "_" + suffix)
}

// JoinIdents quotes each column name and joins with commas.
func JoinIdents(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
