package sqlstore

import (
	_ "embed"
	"strconv"
	"strings"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

//go:embed schema_postgres.sql
var postgresSchema string

// Dialect captures the differences between the supported databases.
type Dialect struct {
	// Name is the database/sql driver name.
	Name string

	// Schema creates the entities table.
	Schema string

	// Numbered selects $1, $2, ... placeholders instead of ?.
	Numbered bool
}

var (
	// SQLite is the dialect of github.com/mattn/go-sqlite3.
	SQLite = Dialect{Name: "sqlite3", Schema: sqliteSchema}

	// Postgres is the dialect of github.com/lib/pq.
	Postgres = Dialect{Name: "postgres", Schema: postgresSchema, Numbered: true}
)

// rebind rewrites ? placeholders for the dialect.
func (d Dialect) rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(c)
	}
	return sb.String()
}
