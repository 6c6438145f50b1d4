// Package builtin registers every storage driver shipped with istore.
package builtin

import (
	"net/http"

	"github.com/roach88/istore/internal/storage"
	"github.com/roach88/istore/internal/storage/httpstore"
	"github.com/roach88/istore/internal/storage/jsonstore"
	"github.com/roach88/istore/internal/storage/redisstore"
	"github.com/roach88/istore/internal/storage/sqlstore"
	"github.com/roach88/istore/internal/storage/yamlstore"
)

// Register adds the built-in drivers to r. client is used by the HTTP
// driver; nil selects http.DefaultClient.
func Register(r *storage.Registry, client *http.Client) {
	r.Register(jsonstore.New())
	r.Register(yamlstore.New(), "yml")
	r.Register(httpstore.New(client), "https")
	r.Register(sqlstore.SQLiteDriver{}, "sqlite3")
	r.Register(sqlstore.PostgresDriver{}, "postgres")
	r.Register(redisstore.New())
}

// Registry returns a new registry holding the built-in drivers.
func Registry() *storage.Registry {
	r := storage.NewRegistry()
	Register(r, nil)
	return r
}
