// Package httpstore implements a read-only storage driver for http:// and
// https:// URLs. The whole document is fetched when the storage is opened.
package httpstore

import (
	"context"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/roach88/istore/internal/fault"
	"github.com/roach88/istore/internal/ir"
	"github.com/roach88/istore/internal/storage"
	"github.com/roach88/istore/internal/storage/jsonstore"
	"github.com/roach88/istore/internal/storage/yamlstore"
)

const (
	// Name is the primary scheme served by the driver.
	Name = "http"

	// DefaultTimeout bounds a fetch when no timeout option is given.
	DefaultTimeout = 30 * time.Second

	// maxBody caps the size of a fetched document.
	maxBody = 64 << 20
)

// Driver fetches documents over HTTP.
type Driver struct {
	client *http.Client
}

// New returns an HTTP driver using client, or http.DefaultClient if nil.
func New(client *http.Client) *Driver {
	if client == nil {
		client = http.DefaultClient
	}
	return &Driver{client: client}
}

// Name implements storage.Driver.
func (*Driver) Name() string { return Name }

// Open implements storage.Driver. The only driver-specific option is
// timeout, a Go duration such as "5s".
func (d *Driver) Open(ctx context.Context, location string, opts storage.Options) (storage.Handle, error) {
	if err := opts.CheckExtra(Name, "timeout"); err != nil {
		return nil, err
	}
	if opts.Mode == storage.ModeWrite || opts.Mode == storage.ModeAppend {
		return nil, fault.New(fault.StorageIO, "http storage is read-only", location)
	}
	timeout := DefaultTimeout
	if s, ok := opts.Extra["timeout"]; ok {
		t, err := time.ParseDuration(s)
		if err != nil || t <= 0 {
			return nil, fault.New(fault.InvalidInput, "timeout must be a positive duration", s)
		}
		timeout = t
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	root, err := d.fetch(ctx, location)
	if err != nil {
		return nil, err
	}
	set, err := storage.ParseDocSet(root)
	if err != nil {
		return nil, err
	}
	return &handle{location: location, set: set}, nil
}

func (d *Driver) fetch(ctx context.Context, location string) (*ir.Object, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fault.Wrap(fault.StorageIO, err, "invalid http location", location)
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fault.Wrap(fault.StorageIO, err, "http request failed", location)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fault.New(fault.StorageIO, "http request failed", location).
			WithDetail("status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fault.Wrap(fault.StorageIO, err, "cannot read http response", location)
	}
	root, err := codecFor(resp.Header.Get("Content-Type"), location).Decode(data)
	if err != nil {
		return nil, fault.Wrap(fault.StorageIO, err, "cannot parse http response", location)
	}
	return root, nil
}

// codecFor picks YAML for YAML media types or a .yaml/.yml path and JSON
// otherwise.
func codecFor(contentType, location string) storage.Codec {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && strings.Contains(mt, "yaml") {
		return yamlstore.Codec{}
	}
	p := location
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	switch path.Ext(p) {
	case ".yaml", ".yml":
		return yamlstore.Codec{}
	}
	return jsonstore.Codec{}
}

type handle struct {
	location string
	set      *storage.DocSet
	closed   bool
}

func (h *handle) Load(_ context.Context, id string) (*ir.Object, error) {
	if h.closed {
		return nil, fault.New(fault.StorageIO, "storage is closed", h.location)
	}
	return h.set.Find(id)
}

func (h *handle) Save(context.Context, *ir.Object, string) error {
	return fault.New(fault.StorageIO, "http storage is read-only", h.location)
}

func (h *handle) IDs(context.Context) ([]string, error) {
	return h.set.Keys(), nil
}

func (h *handle) Close() error {
	h.closed = true
	return nil
}
