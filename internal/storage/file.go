package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/roach88/istore/internal/fault"
	"github.com/roach88/istore/internal/ir"
)

// Codec converts between a file format and document values.
type Codec interface {
	Decode(data []byte) (*ir.Object, error)
	Encode(doc *ir.Object, compact bool) ([]byte, error)
}

// FileHandle is a Handle over a single file holding a DocSet.
// The whole file is read on open and rewritten atomically on every save.
type FileHandle struct {
	mu     sync.Mutex
	path   string
	opts   Options
	codec  Codec
	set    *DocSet
	closed bool
}

// OpenFile opens path with the given codec.
//
// In mode r the file must exist. In mode a an existing multi-entity file
// is read and extended; an existing single-entity file is never rewritten.
// In mode w existing content is discarded on the first save. An unset
// mode behaves as a.
func OpenFile(path string, opts Options, codec Codec) (*FileHandle, error) {
	if path == "" {
		return nil, fault.New(fault.StorageIO, "empty storage path", "")
	}
	opts = opts.WithDefaultMode(ModeAppend)

	h := &FileHandle{path: path, opts: opts, codec: codec, set: NewDocSet()}

	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return nil, fault.New(fault.StorageIO, "storage path is a directory", path)
	case errors.Is(err, fs.ErrNotExist):
		if opts.Mode == ModeRead {
			return nil, fault.Wrap(fault.StorageIO, err, "no such storage file", path)
		}
		if err := checkParentDir(path); err != nil {
			return nil, err
		}
		return h, nil
	case err != nil:
		return nil, fault.Wrap(fault.StorageIO, err, "cannot stat storage file", path)
	}

	if opts.Mode == ModeWrite {
		return h, nil
	}
	if err := h.read(); err != nil {
		return nil, err
	}
	return h, nil
}

func checkParentDir(path string) error {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return fault.Wrap(fault.StorageIO, err, "storage directory does not exist", dir)
	}
	if !info.IsDir() {
		return fault.New(fault.StorageIO, "storage parent is not a directory", dir)
	}
	return nil
}

func (h *FileHandle) read() error {
	data, err := os.ReadFile(h.path)
	if err != nil {
		return fault.Wrap(fault.StorageIO, err, "cannot read storage file", h.path)
	}
	if len(data) == 0 {
		return nil
	}
	root, err := h.codec.Decode(data)
	if err != nil {
		return fault.Wrap(fault.StorageIO, err, "cannot parse storage file", h.path)
	}
	set, err := ParseDocSet(root)
	if err != nil {
		return err
	}
	h.set = set
	return nil
}

// Path returns the file path.
func (h *FileHandle) Path() string { return h.path }

// Load implements Handle.
func (h *FileHandle) Load(_ context.Context, id string) (*ir.Object, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, fault.New(fault.StorageIO, "storage is closed", h.path)
	}
	return h.set.Find(id)
}

// Save implements Handle.
func (h *FileHandle) Save(_ context.Context, doc *ir.Object, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return fault.New(fault.StorageIO, "storage is closed", h.path)
	}
	if err := CheckWritable(h.opts.Mode, h.set.Has(id), id); err != nil {
		return err
	}
	if h.set.Single() && h.opts.Mode != ModeWrite {
		return fault.New(fault.ImmutableTarget, "storage file holds a single entity, use mode=w to overwrite", h.path)
	}
	h.set.Put(id, doc)

	root, err := h.set.Root(h.opts.Single)
	if err != nil {
		return err
	}
	data, err := h.codec.Encode(root, h.opts.Compact)
	if err != nil {
		return fault.Wrap(fault.StorageIO, err, "cannot encode storage file", h.path)
	}
	return WriteFileAtomic(h.path, data, 0o644)
}

// IDs implements Handle.
func (h *FileHandle) IDs(context.Context) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.set.Keys(), nil
}

// Close implements Handle. Every save is already on disk.
func (h *FileHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

// WriteFileAtomic writes data to a temporary file in the target's
// directory and renames it into place, so readers never observe a
// partially written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fault.Wrap(fault.StorageIO, err, "cannot create temporary file", path)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fault.Wrap(fault.StorageIO, err, "cannot write temporary file", path)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fault.Wrap(fault.StorageIO, err, "cannot sync temporary file", path)
	}
	if err := tmp.Close(); err != nil {
		return fault.Wrap(fault.StorageIO, err, "cannot close temporary file", path)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fault.Wrap(fault.StorageIO, err, "cannot set file mode", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fault.Wrap(fault.StorageIO, err, "cannot move file into place", path)
	}
	return nil
}
