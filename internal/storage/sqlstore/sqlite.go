package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/istore/internal/fault"
	"github.com/roach88/istore/internal/storage"
)

// Schema version tracking:
// 0 - no entities table
// 1 - entities table with uri index
const currentSchemaVersion = 1

// SQLiteDriver serves sqlite:// locations, which are file paths.
type SQLiteDriver struct{}

// Name implements storage.Driver.
func (SQLiteDriver) Name() string { return "sqlite" }

// Open implements storage.Driver.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//
// In mode r the file must already exist.
func (SQLiteDriver) Open(ctx context.Context, location string, opts storage.Options) (storage.Handle, error) {
	if err := opts.CheckExtra("sqlite"); err != nil {
		return nil, err
	}
	if location == "" {
		return nil, fault.New(fault.StorageIO, "empty storage path", "")
	}
	info, err := os.Stat(location)
	switch {
	case err == nil && info.IsDir():
		return nil, fault.New(fault.StorageIO, "storage path is a directory", location)
	case errors.Is(err, fs.ErrNotExist) && opts.Mode == storage.ModeRead:
		return nil, fault.Wrap(fault.StorageIO, err, "no such storage file", location)
	}

	db, err := sql.Open(SQLite.Name, location)
	if err != nil {
		return nil, fault.Wrap(fault.StorageIO, err, "cannot open database", location)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fault.Wrap(fault.StorageIO, err, "cannot connect to database", location)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, fault.Wrap(fault.StorageIO, err, "cannot configure database", location)
	}

	h, err := OpenDB(ctx, db, SQLite, location, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := setSchemaVersion(ctx, db); err != nil {
		db.Close()
		return nil, fault.Wrap(fault.StorageIO, err, "cannot record schema version", location)
	}
	h.owned = true
	return h, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// setSchemaVersion records the schema version in user_version.
func setSchemaVersion(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version >= currentSchemaVersion {
		return nil
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
