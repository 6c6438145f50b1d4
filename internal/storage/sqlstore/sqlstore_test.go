package sqlstore

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/istore/internal/fault"
	"github.com/roach88/istore/internal/ident"
	"github.com/roach88/istore/internal/ir"
	"github.com/roach88/istore/internal/storage"
)

const pointURI = "http://onto-ns.com/meta/0.1/Point"

func metadataDoc() *ir.Object {
	return ir.NewObject(
		ir.M("uri", ir.String(pointURI)),
		ir.M("meta", ir.String("http://onto-ns.com/meta/0.3/EntitySchema")),
		ir.M("dimensions", ir.NewObject(ir.M("N", ir.String("")))),
		ir.M("properties", ir.NewObject(
			ir.M("coords", ir.NewObject(ir.M("type", ir.String("float64")), ir.M("shape", ir.Array{ir.String("N")}))),
		)),
	)
}

func instanceDoc(id, label string) *ir.Object {
	return ir.NewObject(
		ir.M("uuid", ir.String(id)),
		ir.M("uri", ir.String(label)),
		ir.M("meta", ir.String(pointURI)),
		ir.M("dimensions", ir.NewObject(ir.M("N", ir.Int(1)))),
		ir.M("properties", ir.NewObject(ir.M("coords", ir.Array{ir.Float(0.5)}))),
	)
}

func openSQLite(t *testing.T, path, options string) storage.Handle {
	t.Helper()
	opts, err := storage.ParseOptions(options)
	require.NoError(t, err)
	h, err := SQLiteDriver{}.Open(context.Background(), path, opts)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestSQLiteSaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "entities.db")
	h := openSQLite(t, path, "")

	metaID := ident.MustDerive(pointURI)
	instID := ident.MustDerive("p1")
	require.NoError(t, h.Save(ctx, metadataDoc(), metaID))
	require.NoError(t, h.Save(ctx, instanceDoc(instID, "p1"), instID))

	ids, err := h.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{metaID, instID}, ids)

	for _, id := range []string{metaID, pointURI} {
		doc, err := h.Load(ctx, id)
		require.NoError(t, err, id)
		uri, _ := doc.GetString("uri")
		assert.Equal(t, pointURI, uri)
	}

	doc, err := h.Load(ctx, "p1")
	require.NoError(t, err)
	want, _ := ir.Marshal(instanceDoc(instID, "p1"))
	got, _ := ir.Marshal(doc)
	assert.Equal(t, string(want), string(got))

	_, err = h.Load(ctx, "")
	assert.True(t, fault.Is(err, fault.NotFound), "two entities need an id")
	_, err = h.Load(ctx, "nope")
	assert.True(t, fault.Is(err, fault.NotFound))
}

func TestSQLiteModes(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "entities.db")
	metaID := ident.MustDerive(pointURI)

	h := openSQLite(t, path, "")
	require.NoError(t, h.Save(ctx, metadataDoc(), metaID))
	err := h.Save(ctx, metadataDoc(), metaID)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.ImmutableTarget), err.Error())
	require.NoError(t, h.Close())

	r := openSQLite(t, path, "mode=r")
	doc, err := r.Load(ctx, "")
	require.NoError(t, err)
	uri, _ := doc.GetString("uri")
	assert.Equal(t, pointURI, uri)
	err = r.Save(ctx, metadataDoc(), metaID)
	assert.True(t, fault.Is(err, fault.StorageIO))
	require.NoError(t, r.Close())

	w := openSQLite(t, path, "mode=w")
	ids, err := w.IDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids, "mode w starts empty")
	require.NoError(t, w.Save(ctx, metadataDoc(), metaID))
	require.NoError(t, w.Save(ctx, metadataDoc(), metaID))
}

func TestSQLiteOpenFailures(t *testing.T) {
	dir := t.TempDir()
	for name, path := range map[string]string{
		"empty":     "",
		"directory": dir,
		"missing":   filepath.Join(dir, "missing.db"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := SQLiteDriver{}.Open(context.Background(), path, storage.Options{Mode: storage.ModeRead})
			require.Error(t, err)
			assert.True(t, fault.Is(err, fault.StorageIO), err.Error())
		})
	}
}

func TestSQLiteRecordsSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities.db")
	h := openSQLite(t, path, "").(*Handle)

	var version int
	require.NoError(t, h.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)

	var mode string
	require.NoError(t, h.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestPostgresWithMock(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := ident.MustDerive("p1")
	doc := instanceDoc(id, "p1")
	text, _ := ir.Marshal(doc)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS entities").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM entities WHERE uuid = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO entities (uuid, uri, meta, document) VALUES ($1, $2, $3, $4)")).
		WithArgs(id, sqlmock.AnyArg(), sqlmock.AnyArg(), string(text)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT document FROM entities WHERE uuid = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow(string(text)))

	h, err := OpenDB(ctx, db, Postgres, "localhost/istore", storage.Options{})
	require.NoError(t, err)
	require.NoError(t, h.Save(ctx, doc, id))

	got, err := h.Load(ctx, "p1")
	require.NoError(t, err)
	gotText, _ := ir.Marshal(got)
	assert.Equal(t, string(text), string(gotText))

	require.NoError(t, h.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTruncatesInWriteMode(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS entities").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM entities").WillReturnResult(sqlmock.NewResult(0, 3))

	_, err = OpenDB(context.Background(), db, Postgres, "localhost/istore", storage.Options{Mode: storage.ModeWrite})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRebindAndDSN(t *testing.T) {
	assert.Equal(t, "a = $1 AND b = $2", Postgres.rebind("a = ? AND b = ?"))
	assert.Equal(t, "a = ?", SQLite.rebind("a = ?"))

	opts, err := storage.ParseOptions("sslmode=disable")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/istore?sslmode=disable", DSN("u:p@db:5432/istore", opts))
	assert.Equal(t, "db:5432/istore", redact("u:p@db:5432/istore"))
}
