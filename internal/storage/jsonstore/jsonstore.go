// Package jsonstore implements the json:// storage driver.
//
// A file holds either one entity document or a mapping from uuid to
// entity documents; see storage.DocSet.
package jsonstore

import (
	"context"
	"fmt"

	"github.com/roach88/istore/internal/ir"
	"github.com/roach88/istore/internal/storage"
)

// Name is the scheme served by the driver.
const Name = "json"

// Driver opens JSON files.
type Driver struct{}

// New returns the JSON driver.
func New() Driver { return Driver{} }

// Name implements storage.Driver.
func (Driver) Name() string { return Name }

// Open implements storage.Driver.
func (Driver) Open(_ context.Context, location string, opts storage.Options) (storage.Handle, error) {
	if err := opts.CheckExtra(Name); err != nil {
		return nil, err
	}
	return storage.OpenFile(location, opts, Codec{})
}

// Codec encodes documents as JSON, keeping member order.
type Codec struct{}

// Decode implements storage.Codec.
func (Codec) Decode(data []byte) (*ir.Object, error) {
	v, err := ir.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*ir.Object)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %s", ir.TypeName(v))
	}
	return obj, nil
}

// Encode implements storage.Codec. Indented output uses two spaces and
// ends with a newline.
func (Codec) Encode(doc *ir.Object, compact bool) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if compact {
		data, err = ir.Marshal(doc)
	} else {
		data, err = ir.MarshalIndent(doc, "", "  ")
	}
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
