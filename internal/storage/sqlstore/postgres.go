package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/lib/pq"

	"github.com/roach88/istore/internal/fault"
	"github.com/roach88/istore/internal/storage"
)

// PostgresDriver serves postgresql:// locations of the form
// [user[:password]@]host[:port]/dbname.
type PostgresDriver struct{}

// Name implements storage.Driver.
func (PostgresDriver) Name() string { return "postgresql" }

// Open implements storage.Driver. The sslmode option is passed to the
// server connection.
func (PostgresDriver) Open(ctx context.Context, location string, opts storage.Options) (storage.Handle, error) {
	if err := opts.CheckExtra("postgresql", "sslmode"); err != nil {
		return nil, err
	}
	if location == "" {
		return nil, fault.New(fault.StorageIO, "empty database location", "")
	}
	db, err := sql.Open(Postgres.Name, DSN(location, opts))
	if err != nil {
		return nil, fault.Wrap(fault.StorageIO, err, "cannot open database", redact(location))
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fault.Wrap(fault.StorageIO, err, "cannot connect to database", redact(location))
	}
	h, err := OpenDB(ctx, db, Postgres, redact(location), opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	h.owned = true
	return h, nil
}

// DSN builds the lib/pq connection URL for location.
func DSN(location string, opts storage.Options) string {
	dsn := "postgres://" + location
	if mode, ok := opts.Extra["sslmode"]; ok {
		sep := "?"
		if strings.Contains(location, "?") {
			sep = "&"
		}
		dsn += sep + "sslmode=" + mode
	}
	return dsn
}

// redact drops credentials from a location used in error messages.
func redact(location string) string {
	if i := strings.LastIndex(location, "@"); i >= 0 {
		return location[i+1:]
	}
	return location
}
